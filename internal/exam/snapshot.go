package exam

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"clickerexam/internal/domain"

	"golang.org/x/crypto/blake2b"
)

// BuildSnapshot embeds the current bank content of every exam question,
// together with the exam-specific marks, in exam order. The stamp becomes
// frozen_at for a freeze and generated_at for a preview.
func BuildSnapshot(e *domain.Exam, rows []domain.ExamQuestionDetail, stamp time.Time, preview bool) domain.Snapshot {
	sorted := make([]domain.ExamQuestionDetail, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Order != sorted[j].Order {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].QuestionID < sorted[j].QuestionID
	})

	snap := domain.Snapshot{
		ExamID:      e.ID,
		Title:       e.Title,
		Description: e.Description,
		Duration:    e.DurationMinutes,
		Revisable:   e.Revisable,
		Questions:   make([]domain.SnapshotQuestion, 0, len(sorted)),
	}
	ts := stamp.UTC().Format(time.RFC3339Nano)
	if preview {
		snap.GeneratedAt = ts
	} else {
		snap.FrozenAt = ts
	}

	for _, row := range sorted {
		options := row.Question.Options
		if options == nil {
			options = []string{}
		}
		snap.Questions = append(snap.Questions, domain.SnapshotQuestion{
			QuestionID:    row.QuestionID,
			Order:         row.Order,
			Text:          row.Question.Text,
			Type:          row.Question.Type,
			Options:       append([]string(nil), options...),
			CorrectAnswer: row.Question.CorrectAnswer,
			Difficulty:    row.Question.Difficulty,
			PositiveMarks: row.PositiveMarks,
			NegativeMarks: row.NegativeMarks,
			IsOptional:    row.IsOptional,
		})
	}
	return snap
}

// CanonicalJSON serializes v with object keys sorted at every level, so the
// bytes depend only on the logical content.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("normalize snapshot: %w", err)
	}
	// encoding/json writes map keys in sorted order.
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("marshal canonical snapshot: %w", err)
	}
	return out, nil
}

// VersionToken is the hex BLAKE2b-256 digest of canonical snapshot bytes.
func VersionToken(canonical []byte) string {
	sum := blake2b.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// EncodeSnapshot returns the canonical payload and its version token.
func EncodeSnapshot(snap domain.Snapshot) ([]byte, string, error) {
	payload, err := CanonicalJSON(snap)
	if err != nil {
		return nil, "", err
	}
	return payload, VersionToken(payload), nil
}
