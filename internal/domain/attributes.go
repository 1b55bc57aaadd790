package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// reservedAttributeKeys live on Participant itself and never in Extra.
var reservedAttributeKeys = map[string]struct{}{
	"name":       {},
	"clicker_id": {},
	"email":      {},
}

func IsReservedAttribute(key string) bool {
	_, ok := reservedAttributeKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// Attributes is an insertion-ordered string map of custom participant fields
// such as roll number or class.
type Attributes struct {
	keys   []string
	values map[string]string
}

// Set stores value under key. Reserved and blank keys are rejected.
func (a *Attributes) Set(key, value string) bool {
	key = strings.TrimSpace(key)
	if key == "" || IsReservedAttribute(key) {
		return false
	}
	if a.values == nil {
		a.values = make(map[string]string)
	}
	if _, exists := a.values[key]; !exists {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
	return true
}

func (a Attributes) Get(key string) (string, bool) {
	v, ok := a.values[key]
	return v, ok
}

func (a Attributes) Keys() []string {
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

func (a Attributes) Len() int { return len(a.keys) }

func (a Attributes) Clone() Attributes {
	var out Attributes
	for _, k := range a.keys {
		out.Set(k, a.values[k])
	}
	return out
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range a.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(a.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON keeps the key order of the source object. Non-string values
// are stored using their JSON text; reserved keys are dropped.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	*a = Attributes{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("attributes must be a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("attributes key must be a string")
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = string(raw)
		}
		a.Set(key, s)
	}
	_, err = dec.Token()
	return err
}
