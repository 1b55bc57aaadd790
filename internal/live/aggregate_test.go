package live

import (
	"context"
	"reflect"
	"testing"
	"time"

	"clickerexam/internal/domain"
)

func testSnapshot() *domain.FrozenSnapshot {
	snap := domain.Snapshot{
		ExamID: 1,
		Questions: []domain.SnapshotQuestion{
			{QuestionID: 10, Order: 1, Type: domain.QuestionMCQ, Options: []string{"a", "b"}, CorrectAnswer: domain.Single(1), PositiveMarks: 1, NegativeMarks: 0.25},
			{QuestionID: 20, Order: 2, Type: domain.QuestionMultipleSelect, Options: []string{"a", "b", "c"}, CorrectAnswer: domain.Multi(0, 1), PositiveMarks: 2, NegativeMarks: 0.5},
			{QuestionID: 30, Order: 3, Type: domain.QuestionTrueFalse, Options: []string{"T", "F"}, CorrectAnswer: domain.Single(0), PositiveMarks: 0.1, NegativeMarks: 0.1},
		},
	}
	return &domain.FrozenSnapshot{ExamID: 1, Snapshot: snap}
}

func TestSummarize(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	now := start.Add(time.Hour)
	attempt := domain.Attempt{ID: 5, ExamID: 1, ParticipantID: 2, StartedAt: start, TotalQuestions: 3}

	tests := []struct {
		name        string
		answers     []domain.Answer
		score       float64
		correct     int
		wrong       int
		unattempted int
		timeTaken   int
	}{
		{name: "no answers", unattempted: 3},
		{
			name: "mixed",
			answers: []domain.Answer{
				{QuestionID: 10, IsCorrect: true, AnsweredAt: start.Add(20 * time.Second)},
				{QuestionID: 20, IsCorrect: false, AnsweredAt: start.Add(90 * time.Second)},
			},
			score: 0.5, correct: 1, wrong: 1, unattempted: 1, timeTaken: 90,
		},
		{
			name: "decimal marks stay exact",
			answers: []domain.Answer{
				{QuestionID: 30, IsCorrect: true, AnsweredAt: start.Add(time.Second)},
				{QuestionID: 20, IsCorrect: true, AnsweredAt: start.Add(2 * time.Second)},
				{QuestionID: 10, IsCorrect: true, AnsweredAt: start.Add(3 * time.Second)},
			},
			score: 3.1, correct: 3, timeTaken: 3,
		},
		{
			name: "answer before start clamps time",
			answers: []domain.Answer{
				{QuestionID: 10, IsCorrect: false, AnsweredAt: start.Add(-time.Minute)},
			},
			score: -0.25, wrong: 1, unattempted: 2,
		},
		{
			name: "question missing from snapshot earns nothing",
			answers: []domain.Answer{
				{QuestionID: 99, IsCorrect: false, AnsweredAt: start},
			},
			wrong: 1, unattempted: 2,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Summarize(testSnapshot(), attempt, tc.answers, now)
			if got.Score != tc.score || got.CorrectAnswers != tc.correct || got.WrongAnswers != tc.wrong ||
				got.Unattempted != tc.unattempted || got.TimeTaken != tc.timeTaken {
				t.Fatalf("unexpected summary %+v", got)
			}
			if got.SubmittedAt == nil || !got.SubmittedAt.Equal(now) {
				t.Fatalf("expected submitted_at %v, got %v", now, got.SubmittedAt)
			}
		})
	}
}

func TestSummarizeKeepsFourDecimals(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	snap := &domain.FrozenSnapshot{ExamID: 1, Snapshot: domain.Snapshot{
		ExamID: 1,
		Questions: []domain.SnapshotQuestion{
			{QuestionID: 10, Order: 1, Type: domain.QuestionMCQ, Options: []string{"a", "b"}, CorrectAnswer: domain.Single(0), PositiveMarks: 0.4375, NegativeMarks: 0.125},
			{QuestionID: 20, Order: 2, Type: domain.QuestionMCQ, Options: []string{"a", "b"}, CorrectAnswer: domain.Single(0), PositiveMarks: 1, NegativeMarks: 0.125},
		},
	}}
	answers := []domain.Answer{
		{QuestionID: 10, IsCorrect: true, AnsweredAt: start.Add(time.Second)},
		{QuestionID: 20, IsCorrect: false, AnsweredAt: start.Add(2 * time.Second)},
	}
	got := Summarize(snap, domain.Attempt{ExamID: 1, StartedAt: start, TotalQuestions: 2}, answers, start.Add(time.Minute))
	if got.Score != 0.3125 {
		t.Fatalf("expected 0.3125, got %v", got.Score)
	}
}

func TestRecomputeIsDeterministic(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.svc.Sync(ctx, f.exam.ID, SyncRequest{Responses: []Response{
		{ClickerID: "71", QuestionID: f.q1.ID, SelectedAnswer: raw(`0`)},
		{ClickerID: "71", QuestionID: f.q2.ID, SelectedAnswer: raw(`[1,0]`)},
	}})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	snap, err := f.svc.snapshots.Get(ctx, f.exam.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	id := f.onlyAttempt(t).ID

	first, err := f.svc.agg.Recompute(ctx, snap, id)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	second, err := f.svc.agg.Recompute(ctx, snap, id)
	if err != nil {
		t.Fatalf("recompute again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("recompute drifted:\n%+v\n%+v", first, second)
	}
	if first.Score != 1.75 || first.CorrectAnswers != 1 || first.WrongAnswers != 1 {
		t.Fatalf("unexpected totals %+v", first)
	}
	stored := f.onlyAttempt(t)
	if stored.Score != first.Score || stored.CorrectAnswers != first.CorrectAnswers {
		t.Fatalf("stored attempt out of step: %+v", stored)
	}
}
