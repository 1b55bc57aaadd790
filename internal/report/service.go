// Package report derives exam statistics from attempts and answers. Frozen
// exams are described by their snapshot; drafts fall back to the live
// question list.
package report

import (
	"context"
	"fmt"
	"sort"
	"time"

	"clickerexam/internal/domain"
	"clickerexam/internal/exam"
	"clickerexam/internal/store"

	"github.com/shopspring/decimal"
)

const recentExamsLimit = 5

type Service struct {
	repo store.Repository
	now  func() time.Time
}

// Question is the scoring view of one exam question as the report sees it.
type Question struct {
	QuestionID    int64
	Order         int
	Text          string
	Type          domain.QuestionType
	Options       []string
	CorrectAnswer domain.Choice
	PositiveMarks float64
	NegativeMarks float64
}

type QuestionStat struct {
	QuestionID      int64   `json:"question_id"`
	Order           int     `json:"order"`
	QuestionText    string  `json:"question_text"`
	TotalAttempts   int     `json:"total_attempts"`
	CorrectAttempts int     `json:"correct_attempts"`
	Accuracy        float64 `json:"accuracy"`
	AverageTime     float64 `json:"average_time"`
	// OptionCounts[i] is how many answers selected option i.
	OptionCounts []int `json:"option_counts"`
}

type AnswerDetail struct {
	QuestionID int64         `json:"question_id"`
	Order      int           `json:"order"`
	Selected   domain.Choice `json:"selected_answer"`
	IsCorrect  bool          `json:"is_correct"`
	Earned     float64       `json:"earned"`
	TimeTaken  int           `json:"time_taken"`
	AnsweredAt time.Time     `json:"answered_at"`
}

type ParticipantResult struct {
	Rank            int        `json:"rank"`
	ParticipantID   int64      `json:"participant_id"`
	ParticipantName string     `json:"participant_name"`
	ClickerID       string     `json:"clicker_id"`
	Email           string     `json:"email,omitempty"`
	Score           float64    `json:"score"`
	TotalQuestions  int        `json:"total_questions"`
	CorrectAnswers  int        `json:"correct_answers"`
	WrongAnswers    int        `json:"wrong_answers"`
	Unattempted     int        `json:"unattempted"`
	TimeTaken       int        `json:"time_taken"`
	Percentage      float64    `json:"percentage"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	// Answers are ordered by question order; rendered by exports only.
	Answers []AnswerDetail `json:"-"`
}

type Report struct {
	ExamID             int64               `json:"exam_id"`
	ExamTitle          string              `json:"exam_title"`
	Frozen             bool                `json:"frozen"`
	SnapshotVersion    string              `json:"snapshot_version,omitempty"`
	TotalParticipants  int                 `json:"total_participants"`
	AverageScore       float64             `json:"average_score"`
	HighestScore       float64             `json:"highest_score"`
	LowestScore        float64             `json:"lowest_score"`
	QuestionAnalysis   []QuestionStat      `json:"question_analysis"`
	ParticipantResults []ParticipantResult `json:"participant_results"`
	GeneratedAt        time.Time           `json:"generated_at"`
	// Questions lists every exam question in order, even without attempts.
	Questions []Question `json:"-"`
}

type LeaderboardEntry struct {
	Rank            int     `json:"rank"`
	ParticipantID   int64   `json:"participant_id"`
	ParticipantName string  `json:"participant_name"`
	Score           float64 `json:"score"`
	Percentage      float64 `json:"percentage"`
	TotalQuestions  int     `json:"total_questions"`
	CorrectAnswers  int     `json:"correct_answers"`
	TimeTaken       int     `json:"time_taken"`
}

type Leaderboard struct {
	ExamID      int64              `json:"exam_id"`
	ExamTitle   string             `json:"exam_title"`
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generated_at"`
}

type AttendanceEntry struct {
	ParticipantID int64  `json:"participant_id"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	ClickerID     string `json:"clicker_id"`
	Present       bool   `json:"present"`
}

type Attendance struct {
	ExamID       int64             `json:"exam_id"`
	Present      int               `json:"present"`
	Total        int               `json:"total"`
	Participants []AttendanceEntry `json:"participants"`
}

type DashboardStats struct {
	TotalExams        int     `json:"total_exams"`
	TotalParticipants int     `json:"total_participants"`
	AverageScore      float64 `json:"average_score"`
	AttendanceRate    float64 `json:"attendance_rate"`
}

type RecentExam struct {
	ID               int64             `json:"id"`
	Title            string            `json:"title"`
	Status           domain.ExamStatus `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	ParticipantCount int               `json:"participant_count"`
	AverageScore     float64           `json:"average_score"`
}

type DayPerformance struct {
	Date         string  `json:"date"`
	Score        float64 `json:"score"`
	Participants int     `json:"participants"`
}

type Dashboard struct {
	Stats       DashboardStats   `json:"stats"`
	RecentExams []RecentExam     `json:"recent_exams"`
	Performance []DayPerformance `json:"performance_data"`
}

func NewService(repo store.Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ExamReport builds the full report. Ranks are positional: score descending,
// then time taken ascending, then participant id.
func (s *Service) ExamReport(ctx context.Context, examID int64) (*Report, error) {
	e, err := s.repo.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	questions, err := s.questions(ctx, e)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		ExamID:             e.ID,
		ExamTitle:          e.Title,
		Frozen:             e.IsFrozen(),
		QuestionAnalysis:   []QuestionStat{},
		ParticipantResults: []ParticipantResult{},
		GeneratedAt:        s.now().UTC(),
		Questions:          questions,
	}
	if rep.Frozen {
		rep.SnapshotVersion = e.SnapshotVersion
	}

	attempts, err := s.repo.ListAttempts(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	if len(attempts) == 0 {
		return rep, nil
	}
	answers, err := s.repo.ListExamAnswers(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	people, err := s.participants(ctx, examID, attempts)
	if err != nil {
		return nil, err
	}

	byAttempt := make(map[int64][]domain.Answer, len(attempts))
	for _, a := range answers {
		byAttempt[a.AttemptID] = append(byAttempt[a.AttemptID], a)
	}
	index := make(map[int64]Question, len(questions))
	for _, q := range questions {
		index[q.QuestionID] = q
	}

	rep.TotalParticipants = len(attempts)
	rep.AverageScore, rep.HighestScore, rep.LowestScore = scoreSpread(attempts)
	rep.QuestionAnalysis = analyzeQuestions(questions, answers)

	sortAttempts(attempts)
	for i, a := range attempts {
		p := people[a.ParticipantID]
		res := ParticipantResult{
			Rank:            i + 1,
			ParticipantID:   a.ParticipantID,
			ParticipantName: p.Name,
			ClickerID:       p.ClickerID,
			Email:           p.Email,
			Score:           a.Score,
			TotalQuestions:  a.TotalQuestions,
			CorrectAnswers:  a.CorrectAnswers,
			WrongAnswers:    a.WrongAnswers,
			Unattempted:     a.Unattempted,
			TimeTaken:       a.TimeTaken,
			Percentage:      Percentage(a.Score, a.TotalQuestions, e.PositiveMarking),
			SubmittedAt:     a.SubmittedAt,
			Answers:         answerDetails(byAttempt[a.ID], index),
		}
		rep.ParticipantResults = append(rep.ParticipantResults, res)
	}
	return rep, nil
}

func (s *Service) Leaderboard(ctx context.Context, examID int64) (*Leaderboard, error) {
	e, err := s.repo.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.repo.ListAttempts(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	people, err := s.participants(ctx, examID, attempts)
	if err != nil {
		return nil, err
	}

	sortAttempts(attempts)
	out := &Leaderboard{
		ExamID:      e.ID,
		ExamTitle:   e.Title,
		Entries:     make([]LeaderboardEntry, 0, len(attempts)),
		GeneratedAt: s.now().UTC(),
	}
	for i, a := range attempts {
		out.Entries = append(out.Entries, LeaderboardEntry{
			Rank:            i + 1,
			ParticipantID:   a.ParticipantID,
			ParticipantName: people[a.ParticipantID].Name,
			Score:           a.Score,
			Percentage:      Percentage(a.Score, a.TotalQuestions, e.PositiveMarking),
			TotalQuestions:  a.TotalQuestions,
			CorrectAnswers:  a.CorrectAnswers,
			TimeTaken:       a.TimeTaken,
		})
	}
	return out, nil
}

// Attendance lists the roster. A participant is present when an attempt
// exists for them; attempts from outside the roster are listed as well.
func (s *Service) Attendance(ctx context.Context, examID int64) (*Attendance, error) {
	if _, err := s.repo.GetExam(ctx, examID); err != nil {
		return nil, err
	}
	roster, err := s.repo.ListRoster(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	attempts, err := s.repo.ListAttempts(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}

	present := make(map[int64]bool, len(attempts))
	for _, a := range attempts {
		present[a.ParticipantID] = true
	}
	out := &Attendance{ExamID: examID, Participants: make([]AttendanceEntry, 0, len(roster))}
	listed := make(map[int64]bool, len(roster))
	add := func(p domain.Participant) {
		listed[p.ID] = true
		out.Participants = append(out.Participants, AttendanceEntry{
			ParticipantID: p.ID,
			Name:          p.Name,
			Email:         p.Email,
			ClickerID:     p.ClickerID,
			Present:       present[p.ID],
		})
		if present[p.ID] {
			out.Present++
		}
	}
	for _, p := range roster {
		add(p)
	}
	for _, a := range attempts {
		if listed[a.ParticipantID] {
			continue
		}
		p, err := s.repo.GetParticipant(ctx, a.ParticipantID)
		if err != nil {
			return nil, fmt.Errorf("load participant %d: %w", a.ParticipantID, err)
		}
		add(*p)
	}
	out.Total = len(out.Participants)
	return out, nil
}

// Dashboard summarizes every exam. Scores are averaged as percentages so
// exams with different marking compare.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	exams, err := s.repo.ListExams(ctx)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	participants, err := s.repo.CountParticipants(ctx)
	if err != nil {
		return nil, fmt.Errorf("count participants: %w", err)
	}
	assigned, err := s.repo.CountRosterAssignments(ctx)
	if err != nil {
		return nil, fmt.Errorf("count roster: %w", err)
	}

	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	days := make([]dayBucket, 7)
	for i := range days {
		days[i].date = today.AddDate(0, 0, i-6)
		days[i].people = make(map[int64]struct{})
	}

	out := &Dashboard{RecentExams: []RecentExam{}}
	var all []float64
	attemptCount := 0
	for i, e := range exams {
		attempts, err := s.repo.ListAttempts(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("list attempts: %w", err)
		}
		attemptCount += len(attempts)
		var perExam []float64
		for _, a := range attempts {
			if a.TotalQuestions <= 0 {
				continue
			}
			pct := Percentage(a.Score, a.TotalQuestions, e.PositiveMarking)
			perExam = append(perExam, pct)
			if a.SubmittedAt != nil {
				for d := range days {
					if sameDay(days[d].date, a.SubmittedAt.UTC()) {
						days[d].scores = append(days[d].scores, pct)
						days[d].people[a.ParticipantID] = struct{}{}
					}
				}
			}
		}
		all = append(all, perExam...)
		if i < recentExamsLimit {
			out.RecentExams = append(out.RecentExams, RecentExam{
				ID:               e.ID,
				Title:            e.Title,
				Status:           e.Status,
				CreatedAt:        e.CreatedAt,
				ParticipantCount: len(attempts),
				AverageScore:     mean(perExam),
			})
		}
	}

	out.Stats = DashboardStats{
		TotalExams:        len(exams),
		TotalParticipants: participants,
		AverageScore:      mean(all),
		AttendanceRate:    ratio(attemptCount, assigned),
	}
	out.Performance = make([]DayPerformance, 0, len(days))
	for _, d := range days {
		out.Performance = append(out.Performance, DayPerformance{
			Date:         d.date.Format("2006-01-02"),
			Score:        mean(d.scores),
			Participants: len(d.people),
		})
	}
	return out, nil
}

type dayBucket struct {
	date   time.Time
	scores []float64
	people map[int64]struct{}
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// questions returns the exam's questions in order: the snapshot for frozen
// exams, a preview of the current rows otherwise.
func (s *Service) questions(ctx context.Context, e *domain.Exam) ([]Question, error) {
	var snap domain.Snapshot
	if e.IsFrozen() && len(e.SnapshotData) > 0 {
		frozen, err := domain.DecodeFrozenSnapshot(e.ID, e.SnapshotVersion, e.SnapshotData)
		if err != nil {
			return nil, err
		}
		snap = frozen.Snapshot
	} else {
		rows, err := s.repo.ListExamQuestions(ctx, e.ID)
		if err != nil {
			return nil, fmt.Errorf("list exam questions: %w", err)
		}
		snap = exam.BuildSnapshot(e, rows, s.now(), true)
	}

	out := make([]Question, 0, len(snap.Questions))
	for _, q := range snap.Questions {
		out = append(out, Question{
			QuestionID:    q.QuestionID,
			Order:         q.Order,
			Text:          q.Text,
			Type:          q.Type,
			Options:       q.Options,
			CorrectAnswer: q.CorrectAnswer,
			PositiveMarks: q.PositiveMarks,
			NegativeMarks: q.NegativeMarks,
		})
	}
	return out, nil
}

// participants indexes everyone who has an attempt, reading the roster first
// and loading stragglers one by one.
func (s *Service) participants(ctx context.Context, examID int64, attempts []domain.Attempt) (map[int64]domain.Participant, error) {
	roster, err := s.repo.ListRoster(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	out := make(map[int64]domain.Participant, len(roster))
	for _, p := range roster {
		out[p.ID] = p
	}
	for _, a := range attempts {
		if _, ok := out[a.ParticipantID]; ok {
			continue
		}
		p, err := s.repo.GetParticipant(ctx, a.ParticipantID)
		if err != nil {
			return nil, fmt.Errorf("load participant %d: %w", a.ParticipantID, err)
		}
		out[p.ID] = *p
	}
	return out, nil
}

func sortAttempts(attempts []domain.Attempt) {
	sort.SliceStable(attempts, func(i, j int) bool {
		a, b := attempts[i], attempts[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.TimeTaken != b.TimeTaken {
			return a.TimeTaken < b.TimeTaken
		}
		return a.ParticipantID < b.ParticipantID
	})
}

func scoreSpread(attempts []domain.Attempt) (avg, high, low float64) {
	if len(attempts) == 0 {
		return 0, 0, 0
	}
	sum := decimal.Zero
	hi := decimal.NewFromFloat(attempts[0].Score)
	lo := hi
	for _, a := range attempts {
		v := decimal.NewFromFloat(a.Score)
		sum = sum.Add(v)
		hi = decimal.Max(hi, v)
		lo = decimal.Min(lo, v)
	}
	avg = sum.DivRound(decimal.NewFromInt(int64(len(attempts))), 4).InexactFloat64()
	return avg, hi.InexactFloat64(), lo.InexactFloat64()
}

func analyzeQuestions(questions []Question, answers []domain.Answer) []QuestionStat {
	byQuestion := make(map[int64][]domain.Answer)
	for _, a := range answers {
		byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
	}
	out := make([]QuestionStat, 0, len(questions))
	for _, q := range questions {
		stat := QuestionStat{
			QuestionID:   q.QuestionID,
			Order:        q.Order,
			QuestionText: q.Text,
			OptionCounts: make([]int, len(q.Options)),
		}
		totalTime := 0
		for _, a := range byQuestion[q.QuestionID] {
			stat.TotalAttempts++
			if a.IsCorrect {
				stat.CorrectAttempts++
			}
			totalTime += a.TimeTaken
			for _, idx := range a.SelectedAnswer.Indices() {
				if idx >= 0 && idx < len(stat.OptionCounts) {
					stat.OptionCounts[idx]++
				}
			}
		}
		stat.Accuracy = ratio(stat.CorrectAttempts, stat.TotalAttempts)
		if stat.TotalAttempts > 0 {
			stat.AverageTime = decimal.NewFromInt(int64(totalTime)).
				DivRound(decimal.NewFromInt(int64(stat.TotalAttempts)), 2).InexactFloat64()
		}
		out = append(out, stat)
	}
	return out
}

func answerDetails(answers []domain.Answer, index map[int64]Question) []AnswerDetail {
	out := make([]AnswerDetail, 0, len(answers))
	for _, a := range answers {
		q := index[a.QuestionID]
		earned := decimal.Zero
		if a.IsCorrect {
			earned = decimal.NewFromFloat(q.PositiveMarks)
		} else if q.NegativeMarks > 0 {
			earned = decimal.NewFromFloat(q.NegativeMarks).Neg()
		}
		out = append(out, AnswerDetail{
			QuestionID: a.QuestionID,
			Order:      q.Order,
			Selected:   a.SelectedAnswer,
			IsCorrect:  a.IsCorrect,
			Earned:     earned.InexactFloat64(),
			TimeTaken:  a.TimeTaken,
			AnsweredAt: a.AnsweredAt,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out
}

// Percentage is score / (total questions x positive marking) x 100, rounded to
// two places, and 0 when the denominator is not positive.
func Percentage(score float64, totalQuestions int, positiveMarking float64) float64 {
	denom := decimal.NewFromFloat(positiveMarking).Mul(decimal.NewFromInt(int64(totalQuestions)))
	if !denom.IsPositive() {
		return 0
	}
	return decimal.NewFromFloat(score).Mul(decimal.NewFromInt(100)).DivRound(denom, 2).InexactFloat64()
}

func ratio(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 2).InexactFloat64()
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(decimal.NewFromFloat(v))
	}
	return sum.DivRound(decimal.NewFromInt(int64(len(values))), 2).InexactFloat64()
}
