// Package memory is an in-process Store used by tests and the demo server.
// Transactions run against a copy of the state that replaces the live state
// only when the callback succeeds.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"clickerexam/internal/domain"
	"clickerexam/internal/store"
)

type state struct {
	seq          int64
	exams        map[int64]domain.Exam
	questions    map[int64]domain.Question
	examQuestion map[int64]map[int64]domain.ExamQuestion
	participants map[int64]domain.Participant
	roster       map[int64]map[int64]time.Time
	attempts     map[int64]domain.Attempt
	answers      map[int64]domain.Answer
	clock        func() time.Time
}

func newState() *state {
	return &state{
		exams:        make(map[int64]domain.Exam),
		questions:    make(map[int64]domain.Question),
		examQuestion: make(map[int64]map[int64]domain.ExamQuestion),
		participants: make(map[int64]domain.Participant),
		roster:       make(map[int64]map[int64]time.Time),
		attempts:     make(map[int64]domain.Attempt),
		answers:      make(map[int64]domain.Answer),
		clock:        time.Now,
	}
}

func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq
	c.clock = s.clock
	for k, v := range s.exams {
		v.SnapshotData = append([]byte(nil), v.SnapshotData...)
		c.exams[k] = v
	}
	for k, v := range s.questions {
		c.questions[k] = copyQuestion(v)
	}
	for k, m := range s.examQuestion {
		inner := make(map[int64]domain.ExamQuestion, len(m))
		for qk, qv := range m {
			inner[qk] = qv
		}
		c.examQuestion[k] = inner
	}
	for k, v := range s.participants {
		v.Extra = v.Extra.Clone()
		c.participants[k] = v
	}
	for k, m := range s.roster {
		inner := make(map[int64]time.Time, len(m))
		for pk, pv := range m {
			inner[pk] = pv
		}
		c.roster[k] = inner
	}
	for k, v := range s.attempts {
		c.attempts[k] = v
	}
	for k, v := range s.answers {
		c.answers[k] = v
	}
	return c
}

func (s *state) nextID() int64 {
	s.seq++
	return s.seq
}

// Store is the in-process backend for tests, demos and the CLI's memory
// mode. It guards the state with a single mutex, so every call and every
// transaction is serialized.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

// SetClock overrides the timestamp source used for created/updated fields.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.clock = now
}

// InTx runs fn against a copy of the whole state and swaps it in on
// success. Each transaction copies everything held, so large workloads
// belong on the Postgres store.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Repository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	staged := s.st.clone()
	if err := fn(&repo{st: staged}); err != nil {
		return err
	}
	s.st = staged
	return nil
}

func (s *Store) with(fn func(r *repo) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&repo{st: s.st})
}

// repo operates on one state without locking.
type repo struct {
	st *state
}

func copyQuestion(q domain.Question) domain.Question {
	q.Options = append([]string(nil), q.Options...)
	q.Tags = append([]string(nil), q.Tags...)
	return q
}

func (r *repo) CreateExam(_ context.Context, e *domain.Exam) error {
	now := r.st.clock()
	e.ID = r.st.nextID()
	if e.Status == "" {
		e.Status = domain.ExamDraft
	}
	e.CreatedAt, e.UpdatedAt = now, now
	r.st.exams[e.ID] = *e
	return nil
}

func (r *repo) GetExam(_ context.Context, examID int64) (*domain.Exam, error) {
	e, ok := r.st.exams[examID]
	if !ok {
		return nil, domain.ErrExamNotFound
	}
	e.SnapshotData = append([]byte(nil), e.SnapshotData...)
	return &e, nil
}

func (r *repo) ListExams(_ context.Context) ([]domain.Exam, error) {
	out := make([]domain.Exam, 0, len(r.st.exams))
	for _, e := range r.st.exams {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *repo) UpdateExam(_ context.Context, e *domain.Exam) error {
	cur, ok := r.st.exams[e.ID]
	if !ok {
		return domain.ErrExamNotFound
	}
	cur.Title = e.Title
	cur.Description = e.Description
	cur.DurationMinutes = e.DurationMinutes
	cur.Revisable = e.Revisable
	cur.PositiveMarking = e.PositiveMarking
	cur.NegativeMarking = e.NegativeMarking
	cur.UpdatedAt = r.st.clock()
	r.st.exams[e.ID] = cur
	*e = cur
	return nil
}

func (r *repo) SaveExamSnapshot(_ context.Context, examID int64, payload []byte, version string, frozenAt time.Time) error {
	cur, ok := r.st.exams[examID]
	if !ok {
		return domain.ErrExamNotFound
	}
	if cur.Status != domain.ExamDraft {
		return domain.ErrExamFrozen
	}
	cur.Status = domain.ExamFrozen
	cur.SnapshotData = append([]byte(nil), payload...)
	cur.SnapshotVersion = version
	cur.FrozenAt = &frozenAt
	cur.UpdatedAt = r.st.clock()
	r.st.exams[examID] = cur
	return nil
}

func (r *repo) SetExamStatus(_ context.Context, examID int64, status domain.ExamStatus) error {
	cur, ok := r.st.exams[examID]
	if !ok {
		return domain.ErrExamNotFound
	}
	cur.Status = status
	cur.UpdatedAt = r.st.clock()
	r.st.exams[examID] = cur
	return nil
}

func (r *repo) CreateQuestion(_ context.Context, q *domain.Question) error {
	now := r.st.clock()
	q.ID = r.st.nextID()
	q.CreatedAt, q.UpdatedAt = now, now
	r.st.questions[q.ID] = copyQuestion(*q)
	return nil
}

func (r *repo) GetQuestion(_ context.Context, questionID int64) (*domain.Question, error) {
	q, ok := r.st.questions[questionID]
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	q = copyQuestion(q)
	return &q, nil
}

func (r *repo) UpdateQuestion(_ context.Context, q *domain.Question) error {
	cur, ok := r.st.questions[q.ID]
	if !ok {
		return domain.ErrQuestionNotFound
	}
	q.CreatedAt = cur.CreatedAt
	q.UpdatedAt = r.st.clock()
	r.st.questions[q.ID] = copyQuestion(*q)
	return nil
}

func (r *repo) SearchQuestions(_ context.Context, f store.QuestionFilter) ([]domain.Question, error) {
	excluded := r.st.examQuestion[f.ExcludeExam]
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]domain.Question, 0)
	for _, q := range r.st.questions {
		if f.Difficulty != "" && q.Difficulty != f.Difficulty {
			continue
		}
		if f.Type != "" && q.Type != f.Type {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(q.Text), search) {
			continue
		}
		if _, skip := excluded[q.ID]; skip {
			continue
		}
		out = append(out, copyQuestion(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *repo) ListExamQuestions(_ context.Context, examID int64) ([]domain.ExamQuestionDetail, error) {
	rows := r.st.examQuestion[examID]
	out := make([]domain.ExamQuestionDetail, 0, len(rows))
	for _, eq := range rows {
		q, ok := r.st.questions[eq.QuestionID]
		if !ok {
			continue
		}
		out = append(out, domain.ExamQuestionDetail{ExamQuestion: eq, Question: copyQuestion(q)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out, nil
}

func (r *repo) UpsertExamQuestion(_ context.Context, eq domain.ExamQuestion) error {
	if _, ok := r.st.exams[eq.ExamID]; !ok {
		return domain.ErrExamNotFound
	}
	if _, ok := r.st.questions[eq.QuestionID]; !ok {
		return domain.ErrQuestionNotFound
	}
	rows := r.st.examQuestion[eq.ExamID]
	if rows == nil {
		rows = make(map[int64]domain.ExamQuestion)
		r.st.examQuestion[eq.ExamID] = rows
	}
	for qid, existing := range rows {
		if qid != eq.QuestionID && existing.Order == eq.Order {
			return domain.ErrOrderTaken
		}
	}
	rows[eq.QuestionID] = eq
	return nil
}

func (r *repo) DeleteExamQuestion(_ context.Context, examID, questionID int64) error {
	rows := r.st.examQuestion[examID]
	if _, ok := rows[questionID]; !ok {
		return domain.ErrQuestionNotInExam
	}
	delete(rows, questionID)
	return nil
}

func (r *repo) CreateParticipant(_ context.Context, p *domain.Participant) error {
	for _, existing := range r.st.participants {
		if existing.ClickerID == p.ClickerID {
			return domain.ErrDuplicateClicker
		}
		if p.Email != "" && strings.EqualFold(existing.Email, p.Email) {
			return domain.ErrDuplicateEmail
		}
	}
	p.ID = r.st.nextID()
	p.CreatedAt = r.st.clock()
	stored := *p
	stored.Extra = p.Extra.Clone()
	r.st.participants[p.ID] = stored
	return nil
}

func (r *repo) GetParticipant(_ context.Context, participantID int64) (*domain.Participant, error) {
	p, ok := r.st.participants[participantID]
	if !ok {
		return nil, domain.ErrParticipantNotFound
	}
	p.Extra = p.Extra.Clone()
	return &p, nil
}

func (r *repo) FindParticipantByClicker(_ context.Context, clickerID string) (*domain.Participant, error) {
	for _, p := range r.st.participants {
		if p.ClickerID == clickerID {
			p.Extra = p.Extra.Clone()
			return &p, nil
		}
	}
	return nil, domain.ErrParticipantNotFound
}

func (r *repo) FindParticipantByEmail(_ context.Context, email string) (*domain.Participant, error) {
	for _, p := range r.st.participants {
		if p.Email != "" && strings.EqualFold(p.Email, email) {
			p.Extra = p.Extra.Clone()
			return &p, nil
		}
	}
	return nil, domain.ErrParticipantNotFound
}

func (r *repo) UpdateParticipantClicker(_ context.Context, participantID int64, clickerID string) error {
	p, ok := r.st.participants[participantID]
	if !ok {
		return domain.ErrParticipantNotFound
	}
	for id, other := range r.st.participants {
		if id != participantID && other.ClickerID == clickerID {
			return domain.ErrDuplicateClicker
		}
	}
	p.ClickerID = clickerID
	r.st.participants[participantID] = p
	return nil
}

func (r *repo) CountParticipants(_ context.Context) (int, error) {
	return len(r.st.participants), nil
}

func (r *repo) EnsureRoster(_ context.Context, examID, participantID int64) error {
	if _, ok := r.st.exams[examID]; !ok {
		return domain.ErrExamNotFound
	}
	if _, ok := r.st.participants[participantID]; !ok {
		return domain.ErrParticipantNotFound
	}
	members := r.st.roster[examID]
	if members == nil {
		members = make(map[int64]time.Time)
		r.st.roster[examID] = members
	}
	if _, ok := members[participantID]; !ok {
		members[participantID] = r.st.clock()
	}
	return nil
}

func (r *repo) ListRoster(_ context.Context, examID int64) ([]domain.Participant, error) {
	members := r.st.roster[examID]
	out := make([]domain.Participant, 0, len(members))
	for pid := range members {
		if p, ok := r.st.participants[pid]; ok {
			p.Extra = p.Extra.Clone()
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *repo) CountRosterAssignments(_ context.Context) (int, error) {
	n := 0
	for _, members := range r.st.roster {
		n += len(members)
	}
	return n, nil
}

func (r *repo) FindOrCreateAttempt(_ context.Context, examID, participantID int64, totalQuestions int, startedAt time.Time) (*domain.Attempt, error) {
	for _, a := range r.st.attempts {
		if a.ExamID == examID && a.ParticipantID == participantID {
			return &a, nil
		}
	}
	a := domain.Attempt{
		ID:             r.st.nextID(),
		ExamID:         examID,
		ParticipantID:  participantID,
		StartedAt:      startedAt,
		TotalQuestions: totalQuestions,
		Unattempted:    totalQuestions,
	}
	r.st.attempts[a.ID] = a
	return &a, nil
}

func (r *repo) GetAttempt(_ context.Context, attemptID int64) (*domain.Attempt, error) {
	a, ok := r.st.attempts[attemptID]
	if !ok {
		return nil, domain.ErrAttemptNotFound
	}
	return &a, nil
}

func (r *repo) ListAttempts(_ context.Context, examID int64) ([]domain.Attempt, error) {
	out := make([]domain.Attempt, 0)
	for _, a := range r.st.attempts {
		if a.ExamID == examID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *repo) SaveAttemptTotals(_ context.Context, a *domain.Attempt) error {
	cur, ok := r.st.attempts[a.ID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	cur.Score = a.Score
	cur.TotalQuestions = a.TotalQuestions
	cur.CorrectAnswers = a.CorrectAnswers
	cur.WrongAnswers = a.WrongAnswers
	cur.Unattempted = a.Unattempted
	cur.TimeTaken = a.TimeTaken
	cur.SubmittedAt = a.SubmittedAt
	r.st.attempts[a.ID] = cur
	return nil
}

func (r *repo) InsertAnswerIfAbsent(_ context.Context, a *domain.Answer) (bool, error) {
	if _, ok := r.st.attempts[a.AttemptID]; !ok {
		return false, domain.ErrAttemptNotFound
	}
	for _, existing := range r.st.answers {
		if existing.AttemptID == a.AttemptID && existing.QuestionID == a.QuestionID {
			return false, nil
		}
	}
	a.ID = r.st.nextID()
	r.st.answers[a.ID] = *a
	return true, nil
}

func (r *repo) ListAnswers(_ context.Context, attemptID int64) ([]domain.Answer, error) {
	out := make([]domain.Answer, 0)
	for _, a := range r.st.answers {
		if a.AttemptID == attemptID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *repo) ListExamAnswers(_ context.Context, examID int64) ([]domain.Answer, error) {
	out := make([]domain.Answer, 0)
	for _, a := range r.st.answers {
		if att, ok := r.st.attempts[a.AttemptID]; ok && att.ExamID == examID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
