// Package live ingests clicker responses for frozen exams and keeps attempt
// summaries in step with the answer log.
package live

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"clickerexam/internal/domain"
	"clickerexam/internal/exam"
	"clickerexam/internal/participant"
	"clickerexam/internal/store"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// SnapshotSource returns the frozen snapshot of an exam, failing with a
// PreconditionError when the exam is still a draft.
type SnapshotSource interface {
	Get(ctx context.Context, examID int64) (*domain.FrozenSnapshot, error)
}

// Observer receives per-outcome counts after every batch.
type Observer interface {
	AddIngest(outcome string, n int)
}

type Response struct {
	ParticipantID  *int64          `json:"participant_id,omitempty"`
	ClickerID      string          `json:"clicker_id,omitempty"`
	QuestionID     int64           `json:"question_id"`
	SelectedAnswer json.RawMessage `json:"selected_answer"`
	AnsweredAt     json.RawMessage `json:"answered_at,omitempty"`
}

type SyncRequest struct {
	Responses  []Response `json:"responses"`
	Attendance []int64    `json:"attendance"`
}

type SyncResult struct {
	BatchID                string            `json:"batch_id"`
	Synced                 int               `json:"synced"`
	AttemptsUpdated        int               `json:"attempts_updated"`
	Received               int               `json:"received"`
	SkippedNoParticipant   int               `json:"skipped_no_participant"`
	SkippedNoQuestion      int               `json:"skipped_no_question"`
	SkippedAlreadyAnswered int               `json:"skipped_already_answered"`
	SkippedInvalidAnswer   int               `json:"skipped_invalid_answer"`
	Provisioned            int               `json:"provisioned"`
	ParticipantNames       map[string]string `json:"participant_names"`
	Skipped                []SkippedItem     `json:"skipped,omitempty"`
}

// SkippedItem explains why one response was not recorded. Duplicates are
// only counted; they are expected whenever a receiver resends a batch.
type SkippedItem struct {
	Index      int    `json:"index"`
	QuestionID int64  `json:"question_id"`
	ClickerID  string `json:"clicker_id,omitempty"`
	Reason     string `json:"reason"`
	Err        error  `json:"-"`
}

const maxSkippedDetails = 100

func (r *SyncResult) skip(i int, item Response, err error) {
	if len(r.Skipped) >= maxSkippedDetails {
		return
	}
	r.Skipped = append(r.Skipped, SkippedItem{
		Index:      i,
		QuestionID: item.QuestionID,
		ClickerID:  item.ClickerID,
		Reason:     err.Error(),
		Err:        err,
	})
}

type Service struct {
	store     store.Store
	snapshots SnapshotSource
	agg       *Aggregator
	observer  Observer
	now       func() time.Time
}

func NewService(st store.Store, snapshots SnapshotSource) *Service {
	return &Service{
		store:     st,
		snapshots: snapshots,
		agg:       NewAggregator(st),
		now:       time.Now,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.agg.now = now
	return s
}

func (s *Service) WithObserver(o Observer) *Service {
	s.observer = o
	return s
}

// Sync records a batch of live responses. Bad items are counted and skipped;
// only a missing snapshot or a storage failure aborts the batch. Every attempt
// the batch touched is re-aggregated before returning.
func (s *Service) Sync(ctx context.Context, examID int64, req SyncRequest) (*SyncResult, error) {
	snap, err := s.snapshots.Get(ctx, examID)
	if err != nil {
		return nil, err
	}

	res := &SyncResult{
		BatchID:          uuid.NewString(),
		Received:         len(req.Responses),
		ParticipantNames: make(map[string]string),
	}
	resolver := participant.NewResolver(s.store, examID)
	touched := make(map[int64]struct{})

	for i, item := range req.Responses {
		q, ok := snap.Question(item.QuestionID)
		if !ok {
			res.SkippedNoQuestion++
			res.skip(i, item, fmt.Errorf("question %d: %w", item.QuestionID, domain.ErrUnknownQuestion))
			continue
		}
		selected, err := exam.NormalizeSelection(item.SelectedAnswer, len(q.Options))
		if err != nil {
			res.SkippedInvalidAnswer++
			res.skip(i, item, err)
			continue
		}
		p, err := resolver.Resolve(ctx, participant.Identity{ParticipantID: item.ParticipantID, ClickerID: item.ClickerID})
		if err != nil {
			return nil, fmt.Errorf("resolve response %d: %w", i, err)
		}
		if p == nil {
			res.SkippedNoParticipant++
			res.skip(i, item, domain.ErrParticipantNotFound)
			continue
		}
		res.ParticipantNames[strconv.FormatInt(p.ID, 10)] = p.Name
		if tag := strings.TrimSpace(item.ClickerID); tag != "" {
			res.ParticipantNames[tag] = p.Name
		}

		answeredAt, stamped := parseAnsweredAt(item.AnsweredAt)
		now := s.now().UTC()
		if !stamped {
			answeredAt = now
		}
		startedAt := now
		if stamped && answeredAt.Before(now) {
			startedAt = answeredAt
		}

		score := exam.ScoreQuestion(exam.ScoreInput{
			Type:          q.Type,
			Correct:       q.CorrectAnswer,
			Selected:      selected,
			PositiveMarks: q.PositiveMarks,
			NegativeMarks: q.NegativeMarks,
		})

		var (
			attemptID int64
			inserted  bool
		)
		err = s.store.InTx(ctx, func(tx store.Repository) error {
			attempt, err := tx.FindOrCreateAttempt(ctx, examID, p.ID, snap.Size(), startedAt)
			if err != nil {
				return err
			}
			attemptID = attempt.ID
			elapsed := 0
			if stamped {
				elapsed = elapsedSeconds(attempt.StartedAt, answeredAt)
			}
			inserted, err = tx.InsertAnswerIfAbsent(ctx, &domain.Answer{
				AttemptID:      attempt.ID,
				QuestionID:     q.QuestionID,
				SelectedAnswer: selected,
				IsCorrect:      score.IsCorrect,
				TimeTaken:      elapsed,
				AnsweredAt:     answeredAt,
			})
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("record response %d: %w", i, err)
		}
		if !inserted {
			res.SkippedAlreadyAnswered++
			continue
		}
		res.Synced++
		touched[attemptID] = struct{}{}
	}

	for _, id := range req.Attendance {
		attemptID, err := s.markPresent(ctx, examID, id, snap.Size())
		if err != nil {
			return nil, err
		}
		if attemptID > 0 {
			touched[attemptID] = struct{}{}
		}
	}

	ids := make([]int64, 0, len(touched))
	for id := range touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if _, err := s.agg.Recompute(ctx, snap, id); err != nil {
			return nil, err
		}
	}
	res.AttemptsUpdated = len(ids)
	res.Provisioned = resolver.Provisioned()

	s.observe(res)
	if res.Received > 0 || len(req.Attendance) > 0 {
		log.Printf("live sync exam=%d batch=%s received=%d synced=%d duplicates=%d no_participant=%d no_question=%d invalid=%d provisioned=%d",
			examID, res.BatchID, res.Received, res.Synced, res.SkippedAlreadyAnswered,
			res.SkippedNoParticipant, res.SkippedNoQuestion, res.SkippedInvalidAnswer, res.Provisioned)
	}
	return res, nil
}

// markPresent puts a participant on the roster and opens an attempt for them.
// Unknown ids are ignored and report a zero attempt id.
func (s *Service) markPresent(ctx context.Context, examID, participantID int64, total int) (int64, error) {
	if participantID <= 0 {
		return 0, nil
	}
	var attemptID int64
	err := s.store.InTx(ctx, func(tx store.Repository) error {
		if _, err := tx.GetParticipant(ctx, participantID); err != nil {
			return err
		}
		if err := tx.EnsureRoster(ctx, examID, participantID); err != nil {
			return err
		}
		attempt, err := tx.FindOrCreateAttempt(ctx, examID, participantID, total, s.now().UTC())
		if err != nil {
			return err
		}
		attemptID = attempt.ID
		return nil
	})
	if errors.Is(err, domain.ErrParticipantNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("mark participant %d present: %w", participantID, err)
	}
	return attemptID, nil
}

func (s *Service) observe(res *SyncResult) {
	if s.observer == nil {
		return
	}
	s.observer.AddIngest("received", res.Received)
	s.observer.AddIngest("synced", res.Synced)
	s.observer.AddIngest("skipped_no_participant", res.SkippedNoParticipant)
	s.observer.AddIngest("skipped_no_question", res.SkippedNoQuestion)
	s.observer.AddIngest("skipped_already_answered", res.SkippedAlreadyAnswered)
	s.observer.AddIngest("skipped_invalid_answer", res.SkippedInvalidAnswer)
	s.observer.AddIngest("provisioned", res.Provisioned)
}

// parseAnsweredAt accepts an RFC 3339 string or a Unix epoch number in seconds
// or milliseconds. Anything else counts as no timestamp.
func parseAnsweredAt(raw json.RawMessage) (time.Time, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return time.Time{}, false
	}
	res := gjson.ParseBytes(raw)
	switch res.Type {
	case gjson.String:
		v := strings.TrimSpace(res.Str)
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), true
			}
		}
	case gjson.Number:
		n := res.Int()
		if n <= 0 {
			return time.Time{}, false
		}
		if n > 1e12 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	return time.Time{}, false
}
