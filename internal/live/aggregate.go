package live

import (
	"context"
	"fmt"
	"time"

	"clickerexam/internal/domain"
	"clickerexam/internal/store"

	"github.com/shopspring/decimal"
)

// Aggregator rebuilds attempt counters from the answer log. Counters are never
// incremented in place, so re-running it after a partial failure converges.
type Aggregator struct {
	store store.Store
	now   func() time.Time
}

func NewAggregator(st store.Store) *Aggregator {
	return &Aggregator{store: st, now: time.Now}
}

// Recompute reloads the attempt and its answers under one transaction and
// saves the summary.
func (a *Aggregator) Recompute(ctx context.Context, snap *domain.FrozenSnapshot, attemptID int64) (*domain.Attempt, error) {
	var out *domain.Attempt
	err := a.store.InTx(ctx, func(tx store.Repository) error {
		attempt, err := tx.GetAttempt(ctx, attemptID)
		if err != nil {
			return err
		}
		answers, err := tx.ListAnswers(ctx, attemptID)
		if err != nil {
			return err
		}
		summary := Summarize(snap, *attempt, answers, a.now().UTC())
		if err := tx.SaveAttemptTotals(ctx, &summary); err != nil {
			return err
		}
		out = &summary
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recompute attempt %d: %w", attemptID, err)
	}
	return out, nil
}

// Summarize is the pure part of Recompute. Marks come from the snapshot; an
// answer whose question is no longer listed still counts toward the answer
// set but earns nothing.
func Summarize(snap *domain.FrozenSnapshot, attempt domain.Attempt, answers []domain.Answer, now time.Time) domain.Attempt {
	total := attempt.TotalQuestions
	if total == 0 && snap != nil {
		total = snap.Size()
	}

	score := decimal.Zero
	correct := 0
	var latest time.Time
	for _, ans := range answers {
		if ans.AnsweredAt.After(latest) {
			latest = ans.AnsweredAt
		}
		var q domain.SnapshotQuestion
		var ok bool
		if snap != nil {
			q, ok = snap.Question(ans.QuestionID)
		}
		if ans.IsCorrect {
			correct++
			if ok {
				score = score.Add(nonNegative(q.PositiveMarks))
			}
			continue
		}
		if ok {
			score = score.Sub(nonNegative(q.NegativeMarks))
		}
	}

	attempt.TotalQuestions = total
	attempt.CorrectAnswers = correct
	attempt.WrongAnswers = len(answers) - correct
	attempt.Unattempted = total - len(answers)
	if attempt.Unattempted < 0 {
		attempt.Unattempted = 0
	}
	attempt.Score = score.Round(4).InexactFloat64()
	attempt.TimeTaken = 0
	if len(answers) > 0 {
		attempt.TimeTaken = elapsedSeconds(attempt.StartedAt, latest)
	}
	submitted := now
	attempt.SubmittedAt = &submitted
	return attempt
}

func nonNegative(v float64) decimal.Decimal {
	d := decimal.NewFromFloat(v)
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func elapsedSeconds(from, to time.Time) int {
	d := to.Sub(from)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
