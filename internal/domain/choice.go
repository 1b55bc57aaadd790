package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type ChoiceKind uint8

const (
	ChoiceNone ChoiceKind = iota
	ChoiceSingle
	ChoiceMulti
)

// Choice is either a single option index or a set of option indices. It is
// used for both correct-answer keys and selected answers. On the wire a single
// index is a JSON number and a set is a JSON array.
type Choice struct {
	kind  ChoiceKind
	index int
	set   []int
}

func Single(index int) Choice {
	return Choice{kind: ChoiceSingle, index: index}
}

// Multi builds a set choice; duplicates are dropped and indices kept sorted.
func Multi(indices ...int) Choice {
	seen := make(map[int]struct{}, len(indices))
	set := make([]int, 0, len(indices))
	for _, i := range indices {
		if _, ok := seen[i]; ok {
			continue
		}
		seen[i] = struct{}{}
		set = append(set, i)
	}
	sort.Ints(set)
	return Choice{kind: ChoiceMulti, set: set}
}

func (c Choice) Kind() ChoiceKind { return c.kind }

func (c Choice) IsZero() bool { return c.kind == ChoiceNone }

// Indices returns the selected indices; a single choice yields one element.
func (c Choice) Indices() []int {
	switch c.kind {
	case ChoiceSingle:
		return []int{c.index}
	case ChoiceMulti:
		out := make([]int, len(c.set))
		copy(out, c.set)
		return out
	}
	return nil
}

// Scalar returns the index when the choice denotes exactly one option.
func (c Choice) Scalar() (int, bool) {
	switch c.kind {
	case ChoiceSingle:
		return c.index, true
	case ChoiceMulti:
		if len(c.set) == 1 {
			return c.set[0], true
		}
	}
	return 0, false
}

// Equal compares two choices as a set when multi is true, otherwise as scalars.
func (c Choice) Equal(other Choice, multi bool) bool {
	if c.IsZero() || other.IsZero() {
		return false
	}
	if !multi {
		a, okA := c.Scalar()
		b, okB := other.Scalar()
		return okA && okB && a == b
	}
	a, b := c.Indices(), other.Indices()
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	sort.Ints(a)
	sort.Ints(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MaxIndex returns the largest index in the choice, or -1 when empty.
func (c Choice) MaxIndex() int {
	max := -1
	for _, i := range c.Indices() {
		if i > max {
			max = i
		}
	}
	return max
}

// Label renders the choice with 1-based option numbers, e.g. "2" or "1, 3".
func (c Choice) Label() string {
	idx := c.Indices()
	parts := make([]string, 0, len(idx))
	for _, i := range idx {
		parts = append(parts, strconv.Itoa(i+1))
	}
	return strings.Join(parts, ", ")
}

func (c Choice) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case ChoiceSingle:
		return []byte(strconv.Itoa(c.index)), nil
	case ChoiceMulti:
		if c.set == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(c.set)
	}
	return []byte("null"), nil
}

func (c *Choice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Choice{}
		return nil
	}
	if data[0] == '[' {
		var set []int
		if err := json.Unmarshal(data, &set); err != nil {
			return fmt.Errorf("decode choice set: %w", err)
		}
		*c = Multi(set...)
		return nil
	}
	var index int
	if err := json.Unmarshal(data, &index); err != nil {
		return fmt.Errorf("decode choice index: %w", err)
	}
	*c = Single(index)
	return nil
}
