package domain

import (
	"encoding/json"
	"time"
)

type ExamStatus string

const (
	ExamDraft     ExamStatus = "draft"
	ExamFrozen    ExamStatus = "frozen"
	ExamCompleted ExamStatus = "completed"
)

type QuestionType string

const (
	QuestionMCQ            QuestionType = "mcq"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionMultipleSelect QuestionType = "multiple_select"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMCQ, QuestionTrueFalse, QuestionMultipleSelect:
		return true
	}
	return false
}

// IsMulti reports whether answers are compared as index sets.
func (t QuestionType) IsMulti() bool {
	return t == QuestionMultipleSelect
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

type Exam struct {
	ID              int64           `json:"id"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	DurationMinutes int             `json:"duration"`
	Revisable       bool            `json:"revisable"`
	Status          ExamStatus      `json:"status"`
	PositiveMarking float64         `json:"positive_marking"`
	NegativeMarking float64         `json:"negative_marking"`
	SnapshotData    json.RawMessage `json:"snapshot_data,omitempty"`
	SnapshotVersion string          `json:"snapshot_version,omitempty"`
	FrozenAt        *time.Time      `json:"frozen_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// IsFrozen is true for frozen and completed exams; both score against the snapshot.
func (e *Exam) IsFrozen() bool {
	return e.Status == ExamFrozen || e.Status == ExamCompleted
}

type Question struct {
	ID            int64        `json:"id"`
	Text          string       `json:"text"`
	Type          QuestionType `json:"type"`
	Options       []string     `json:"options"`
	CorrectAnswer Choice       `json:"correct_answer"`
	Difficulty    Difficulty   `json:"difficulty"`
	Tags          []string     `json:"tags"`
	Marks         float64      `json:"marks"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type ExamQuestion struct {
	ExamID        int64   `json:"exam_id"`
	QuestionID    int64   `json:"question_id"`
	Order         int     `json:"order"`
	PositiveMarks float64 `json:"positive_marks"`
	NegativeMarks float64 `json:"negative_marks"`
	IsOptional    bool    `json:"is_optional"`
}

// ExamQuestionDetail is an exam question row joined with its bank question.
type ExamQuestionDetail struct {
	ExamQuestion
	Question Question `json:"question"`
}

type Participant struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email,omitempty"`
	ClickerID string     `json:"clicker_id"`
	Extra     Attributes `json:"extra"`
	CreatedAt time.Time  `json:"created_at"`
}

type ExamParticipant struct {
	ExamID        int64     `json:"exam_id"`
	ParticipantID int64     `json:"participant_id"`
	AssignedAt    time.Time `json:"assigned_at"`
}

type Attempt struct {
	ID             int64      `json:"id"`
	ExamID         int64      `json:"exam_id"`
	ParticipantID  int64      `json:"participant_id"`
	StartedAt      time.Time  `json:"started_at"`
	SubmittedAt    *time.Time `json:"submitted_at,omitempty"`
	Score          float64    `json:"score"`
	TotalQuestions int        `json:"total_questions"`
	CorrectAnswers int        `json:"correct_answers"`
	WrongAnswers   int        `json:"wrong_answers"`
	Unattempted    int        `json:"unattempted"`
	TimeTaken      int        `json:"time_taken"`
}

type Answer struct {
	ID             int64     `json:"id"`
	AttemptID      int64     `json:"attempt_id"`
	QuestionID     int64     `json:"question_id"`
	SelectedAnswer Choice    `json:"selected_answer"`
	IsCorrect      bool      `json:"is_correct"`
	TimeTaken      int       `json:"time_taken"`
	AnsweredAt     time.Time `json:"answered_at"`
}
