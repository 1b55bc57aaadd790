package report

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"clickerexam/internal/domain"
	"clickerexam/internal/exam"
	"clickerexam/internal/store/memory"
)

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type fixture struct {
	st   *memory.Store
	exam *domain.Exam
	qs   []*domain.Question
	svc  *Service
}

func newFixture(t *testing.T, freeze bool) *fixture {
	t.Helper()
	ctx := context.Background()
	st := memory.New()
	qs := []*domain.Question{
		{Text: "2+2?", Type: domain.QuestionMCQ, Options: []string{"3", "4", "5"}, CorrectAnswer: domain.Single(1), Difficulty: domain.DifficultyEasy},
		{Text: "Primes", Type: domain.QuestionMultipleSelect, Options: []string{"2", "4", "5"}, CorrectAnswer: domain.Multi(0, 2), Difficulty: domain.DifficultyHard},
	}
	for _, q := range qs {
		if err := st.CreateQuestion(ctx, q); err != nil {
			t.Fatalf("create question: %v", err)
		}
	}
	examSvc := exam.NewService(st).WithClock(func() time.Time { return fixedNow })
	e, err := examSvc.CreateExam(ctx, exam.CreateExamInput{Title: "Weekly quiz", DurationMinutes: 15})
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}
	for i, q := range qs {
		if _, err := examSvc.UpsertExamQuestion(ctx, exam.UpsertExamQuestionInput{ExamID: e.ID, QuestionID: q.ID, Order: i + 1}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if freeze {
		if _, err := examSvc.Freeze(ctx, e.ID); err != nil {
			t.Fatalf("freeze: %v", err)
		}
	}
	return &fixture{st: st, exam: e, qs: qs, svc: NewService(st).WithClock(func() time.Time { return fixedNow })}
}

func (f *fixture) participant(t *testing.T, name, tag string, onRoster bool) *domain.Participant {
	t.Helper()
	p := &domain.Participant{Name: name, ClickerID: tag}
	if err := f.st.CreateParticipant(context.Background(), p); err != nil {
		t.Fatalf("create participant: %v", err)
	}
	if onRoster {
		_ = f.st.EnsureRoster(context.Background(), f.exam.ID, p.ID)
	}
	return p
}

// attempt stores an attempt with fixed totals and the given answers.
func (f *fixture) attempt(t *testing.T, p *domain.Participant, score float64, timeTaken int, answers ...domain.Answer) domain.Attempt {
	t.Helper()
	ctx := context.Background()
	a, err := f.st.FindOrCreateAttempt(ctx, f.exam.ID, p.ID, len(f.qs), fixedNow)
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	correct := 0
	for i := range answers {
		answers[i].AttemptID = a.ID
		if answers[i].IsCorrect {
			correct++
		}
		if _, err := f.st.InsertAnswerIfAbsent(ctx, &answers[i]); err != nil {
			t.Fatalf("insert answer: %v", err)
		}
	}
	submitted := fixedNow
	a.Score = score
	a.TimeTaken = timeTaken
	a.CorrectAnswers = correct
	a.WrongAnswers = len(answers) - correct
	a.Unattempted = len(f.qs) - len(answers)
	a.SubmittedAt = &submitted
	if err := f.st.SaveAttemptTotals(ctx, a); err != nil {
		t.Fatalf("save totals: %v", err)
	}
	return *a
}

func TestExamReportWithoutAttempts(t *testing.T) {
	f := newFixture(t, true)
	rep, err := f.svc.ExamReport(context.Background(), f.exam.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.TotalParticipants != 0 || rep.AverageScore != 0 || rep.HighestScore != 0 || rep.LowestScore != 0 {
		t.Fatalf("expected zero report, got %+v", rep)
	}
	if len(rep.QuestionAnalysis) != 0 || len(rep.ParticipantResults) != 0 {
		t.Fatalf("expected empty lists, got %+v", rep)
	}
	if len(rep.Questions) != 2 {
		t.Fatalf("questions must still be listed for exports, got %d", len(rep.Questions))
	}
	body, _ := json.Marshal(rep)
	if !strings.Contains(string(body), `"question_analysis":[]`) || !strings.Contains(string(body), `"participant_results":[]`) {
		t.Fatalf("expected empty arrays in JSON, got %s", body)
	}
}

func TestExamReportRanking(t *testing.T) {
	f := newFixture(t, true)
	a := f.participant(t, "A", "1", true)
	b := f.participant(t, "B", "2", true)
	c := f.participant(t, "C", "3", true)
	d := f.participant(t, "D", "4", true)
	f.attempt(t, a, 5, 30)
	f.attempt(t, d, 5, 10)
	f.attempt(t, b, 5, 10)
	f.attempt(t, c, 7, 100)

	rep, err := f.svc.ExamReport(context.Background(), f.exam.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	want := []string{"C", "B", "D", "A"}
	for i, name := range want {
		got := rep.ParticipantResults[i]
		if got.ParticipantName != name || got.Rank != i+1 {
			t.Fatalf("position %d: want %s rank %d, got %s rank %d", i, name, i+1, got.ParticipantName, got.Rank)
		}
	}
	if rep.AverageScore != 5.5 || rep.HighestScore != 7 || rep.LowestScore != 5 {
		t.Fatalf("unexpected spread avg=%v max=%v min=%v", rep.AverageScore, rep.HighestScore, rep.LowestScore)
	}

	lb, err := f.svc.Leaderboard(context.Background(), f.exam.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 4 || lb.Entries[1].ParticipantName != "B" || lb.Entries[3].Rank != 4 {
		t.Fatalf("unexpected leaderboard %+v", lb.Entries)
	}
	if lb.Entries[0].Percentage != 350 {
		t.Fatalf("expected percentage 350 for 7 of 2 questions, got %v", lb.Entries[0].Percentage)
	}
}

func TestExamReportQuestionAnalysis(t *testing.T) {
	f := newFixture(t, true)
	q1, q2 := f.qs[0], f.qs[1]
	a := f.participant(t, "Ana", "1", true)
	b := f.participant(t, "Ben", "2", true)
	c := f.participant(t, "Cy", "3", true)
	f.attempt(t, a, 2, 40,
		domain.Answer{QuestionID: q1.ID, SelectedAnswer: domain.Single(1), IsCorrect: true, TimeTaken: 10, AnsweredAt: fixedNow.Add(10 * time.Second)},
		domain.Answer{QuestionID: q2.ID, SelectedAnswer: domain.Multi(0, 2), IsCorrect: true, TimeTaken: 40, AnsweredAt: fixedNow.Add(40 * time.Second)},
	)
	f.attempt(t, b, 1, 20,
		domain.Answer{QuestionID: q1.ID, SelectedAnswer: domain.Single(1), IsCorrect: true, TimeTaken: 5, AnsweredAt: fixedNow.Add(5 * time.Second)},
		domain.Answer{QuestionID: q2.ID, SelectedAnswer: domain.Multi(0), IsCorrect: false, TimeTaken: 20, AnsweredAt: fixedNow.Add(20 * time.Second)},
	)
	f.attempt(t, c, 0, 0,
		domain.Answer{QuestionID: q1.ID, SelectedAnswer: domain.Single(2), IsCorrect: false, TimeTaken: 6, AnsweredAt: fixedNow.Add(6 * time.Second)},
	)

	rep, err := f.svc.ExamReport(context.Background(), f.exam.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	first, second := rep.QuestionAnalysis[0], rep.QuestionAnalysis[1]
	if first.TotalAttempts != 3 || first.CorrectAttempts != 2 || first.Accuracy != 66.67 || first.AverageTime != 7 {
		t.Fatalf("unexpected q1 stats %+v", first)
	}
	if got := first.OptionCounts; len(got) != 3 || got[0] != 0 || got[1] != 2 || got[2] != 1 {
		t.Fatalf("unexpected q1 votes %v", got)
	}
	if second.TotalAttempts != 2 || second.CorrectAttempts != 1 || second.Accuracy != 50 || second.AverageTime != 30 {
		t.Fatalf("unexpected q2 stats %+v", second)
	}
	if got := second.OptionCounts; got[0] != 2 || got[1] != 0 || got[2] != 1 {
		t.Fatalf("unexpected q2 votes %v", got)
	}

	ben := rep.ParticipantResults[1]
	if ben.ParticipantName != "Ben" || len(ben.Answers) != 2 {
		t.Fatalf("unexpected second place %+v", ben)
	}
	if ben.Answers[0].Earned != 1 || ben.Answers[1].Earned != 0 || ben.Answers[1].Selected.Label() != "1" {
		t.Fatalf("unexpected answer details %+v", ben.Answers)
	}
}

func TestExamReportReadsSnapshotNotBank(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.qs[0].Text = "edited after freeze"
	if err := f.st.UpdateQuestion(ctx, f.qs[0]); err != nil {
		t.Fatalf("update question: %v", err)
	}
	p := f.participant(t, "Ana", "1", true)
	f.attempt(t, p, 1, 5, domain.Answer{QuestionID: f.qs[0].ID, SelectedAnswer: domain.Single(1), IsCorrect: true, AnsweredAt: fixedNow})

	rep, err := f.svc.ExamReport(ctx, f.exam.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.QuestionAnalysis[0].QuestionText != "2+2?" || !rep.Frozen || rep.SnapshotVersion == "" {
		t.Fatalf("expected snapshot content, got %+v", rep)
	}
}

func TestExamReportDraftUsesLiveQuestions(t *testing.T) {
	f := newFixture(t, false)
	rep, err := f.svc.ExamReport(context.Background(), f.exam.ID)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.Frozen || len(rep.Questions) != 2 || rep.Questions[1].Text != "Primes" {
		t.Fatalf("unexpected draft report %+v", rep)
	}
}

func TestAttendance(t *testing.T) {
	f := newFixture(t, true)
	here := f.participant(t, "Here", "1", true)
	f.participant(t, "Absent", "2", true)
	walkIn := f.participant(t, "Walk-in", "3", false)
	f.attempt(t, here, 0, 0)
	f.attempt(t, walkIn, 0, 0)

	got, err := f.svc.Attendance(context.Background(), f.exam.ID)
	if err != nil {
		t.Fatalf("attendance: %v", err)
	}
	if got.Total != 3 || got.Present != 2 {
		t.Fatalf("unexpected counts %+v", got)
	}
	present := map[string]bool{}
	for _, p := range got.Participants {
		present[p.Name] = p.Present
	}
	if !present["Here"] || present["Absent"] || !present["Walk-in"] {
		t.Fatalf("unexpected presence %v", present)
	}
}

func TestDashboard(t *testing.T) {
	f := newFixture(t, true)
	a := f.participant(t, "A", "1", true)
	b := f.participant(t, "B", "2", true)
	f.participant(t, "C", "3", true)
	f.participant(t, "D", "4", true)
	f.attempt(t, a, 2, 10)
	f.attempt(t, b, 1, 10)

	got, err := f.svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if got.Stats.TotalExams != 1 || got.Stats.TotalParticipants != 4 {
		t.Fatalf("unexpected totals %+v", got.Stats)
	}
	if got.Stats.AttendanceRate != 50 || got.Stats.AverageScore != 75 {
		t.Fatalf("unexpected rates %+v", got.Stats)
	}
	if len(got.RecentExams) != 1 || got.RecentExams[0].ParticipantCount != 2 {
		t.Fatalf("unexpected recent exams %+v", got.RecentExams)
	}
	if len(got.Performance) != 7 {
		t.Fatalf("expected 7 days, got %d", len(got.Performance))
	}
	today := got.Performance[6]
	if today.Date != "2026-03-14" || today.Participants != 2 || today.Score != 75 {
		t.Fatalf("unexpected today bucket %+v", today)
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		score    float64
		total    int
		positive float64
		want     float64
	}{
		{score: 0.5, total: 2, positive: 1, want: 25},
		{score: 2, total: 3, positive: 1, want: 66.67},
		{score: -1, total: 4, positive: 1, want: -25},
		{score: 3, total: 0, positive: 1, want: 0},
		{score: 3, total: 2, positive: 0, want: 0},
	}
	for _, tc := range tests {
		if got := Percentage(tc.score, tc.total, tc.positive); got != tc.want {
			t.Fatalf("Percentage(%v,%d,%v)=%v want %v", tc.score, tc.total, tc.positive, got, tc.want)
		}
	}
}
