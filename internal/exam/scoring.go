package exam

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"clickerexam/internal/domain"

	"github.com/tidwall/gjson"
)

type ScoreInput struct {
	Type          domain.QuestionType
	Correct       domain.Choice
	Selected      domain.Choice
	PositiveMarks float64
	NegativeMarks float64
}

type ScoreResult struct {
	Answered  bool    `json:"answered"`
	IsCorrect bool    `json:"is_correct"`
	Earned    float64 `json:"earned"`
	Reason    string  `json:"reason"`
}

// ScoreQuestion grades one selection. Multi-select questions compare index
// sets; the other types compare a single index. Wrong answers cost the
// question's negative marks.
func ScoreQuestion(in ScoreInput) ScoreResult {
	if in.Correct.IsZero() {
		return ScoreResult{Reason: "malformed_answer_key"}
	}
	if in.Selected.IsZero() || len(in.Selected.Indices()) == 0 {
		return ScoreResult{Reason: "unanswered"}
	}

	positive := math.Max(in.PositiveMarks, 0)
	negative := math.Max(in.NegativeMarks, 0)
	if in.Selected.Equal(in.Correct, in.Type.IsMulti()) {
		return ScoreResult{Answered: true, IsCorrect: true, Earned: positive, Reason: "correct"}
	}
	return ScoreResult{Answered: true, IsCorrect: false, Earned: -negative, Reason: "wrong"}
}

// NormalizeSelection parses a raw selected answer as sent by response devices:
// an integer index, a list of indices, or a single option letter ("A" is 0).
// When optionCount is positive, indices outside the option list are rejected.
func NormalizeSelection(raw json.RawMessage, optionCount int) (domain.Choice, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return domain.Choice{}, domain.ErrInvalidAnswer
	}

	var choice domain.Choice
	res := gjson.ParseBytes(raw)
	switch res.Type {
	case gjson.Number, gjson.String:
		idx, err := indexFromResult(res)
		if err != nil {
			return domain.Choice{}, err
		}
		choice = domain.Single(idx)
	case gjson.JSON:
		if !res.IsArray() {
			return domain.Choice{}, domain.ErrInvalidAnswer
		}
		var (
			indices []int
			bad     error
		)
		res.ForEach(func(_, item gjson.Result) bool {
			idx, err := indexFromResult(item)
			if err != nil {
				bad = err
				return false
			}
			indices = append(indices, idx)
			return true
		})
		if bad != nil {
			return domain.Choice{}, bad
		}
		if len(indices) == 0 {
			return domain.Choice{}, domain.ErrInvalidAnswer
		}
		choice = domain.Multi(indices...)
	default:
		return domain.Choice{}, domain.ErrInvalidAnswer
	}

	if optionCount > 0 && choice.MaxIndex() >= optionCount {
		return domain.Choice{}, fmt.Errorf("%w: option index %d out of range", domain.ErrInvalidAnswer, choice.MaxIndex())
	}
	return choice, nil
}

// maxOptionIndex bounds indices before conversion so huge numbers cannot wrap.
const maxOptionIndex = math.MaxInt32

func indexFromResult(res gjson.Result) (int, error) {
	switch res.Type {
	case gjson.Number:
		if res.Num < 0 || res.Num > maxOptionIndex || res.Num != math.Trunc(res.Num) {
			return 0, domain.ErrInvalidAnswer
		}
		return int(res.Num), nil
	case gjson.String:
		return LetterToIndex(res.Str)
	}
	return 0, domain.ErrInvalidAnswer
}

// LetterToIndex maps "A".."Z" (any case) to 0..25. Plain digit strings are
// accepted as indices.
func LetterToIndex(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, domain.ErrInvalidAnswer
	}
	if n, err := strconv.Atoi(v); err == nil {
		if n < 0 || n > maxOptionIndex {
			return 0, domain.ErrInvalidAnswer
		}
		return n, nil
	}
	if len(v) != 1 {
		return 0, domain.ErrInvalidAnswer
	}
	c := v[0]
	switch {
	case c >= 'A' && c <= 'Z':
		return int(c - 'A'), nil
	case c >= 'a' && c <= 'z':
		return int(c - 'a'), nil
	}
	return 0, domain.ErrInvalidAnswer
}
