package domain

import (
	"encoding/json"
	"fmt"
)

// Snapshot is the frozen copy of an exam's question set and marks. Once an
// exam is frozen every scoring decision reads this, never the question bank.
type Snapshot struct {
	ExamID      int64              `json:"exam_id"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Duration    int                `json:"duration"`
	Revisable   bool               `json:"revisable"`
	FrozenAt    string             `json:"frozen_at,omitempty"`
	GeneratedAt string             `json:"generated_at,omitempty"`
	Questions   []SnapshotQuestion `json:"questions"`
}

type SnapshotQuestion struct {
	QuestionID    int64        `json:"question_id"`
	Order         int          `json:"order"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options"`
	CorrectAnswer Choice       `json:"correct_answer"`
	Difficulty    Difficulty   `json:"difficulty"`
	PositiveMarks float64      `json:"positive_marks"`
	NegativeMarks float64      `json:"negative_marks"`
	IsOptional    bool         `json:"is_optional"`
}

// Lookup indexes the snapshot questions by question id.
func (s *Snapshot) Lookup() map[int64]SnapshotQuestion {
	out := make(map[int64]SnapshotQuestion, len(s.Questions))
	for _, q := range s.Questions {
		out[q.QuestionID] = q
	}
	return out
}

// FrozenSnapshot pairs a decoded snapshot with its stored bytes and version token.
type FrozenSnapshot struct {
	ExamID   int64
	Version  string
	Raw      json.RawMessage
	Snapshot Snapshot
	lookup   map[int64]SnapshotQuestion
}

func DecodeFrozenSnapshot(examID int64, version string, raw []byte) (*FrozenSnapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &FrozenSnapshot{
		ExamID:   examID,
		Version:  version,
		Raw:      append(json.RawMessage(nil), raw...),
		Snapshot: snap,
		lookup:   snap.Lookup(),
	}, nil
}

func (f *FrozenSnapshot) Question(id int64) (SnapshotQuestion, bool) {
	if f.lookup == nil {
		f.lookup = f.Snapshot.Lookup()
	}
	q, ok := f.lookup[id]
	return q, ok
}

func (f *FrozenSnapshot) Size() int {
	return len(f.Snapshot.Questions)
}
