package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrExamNotFound        = errors.New("exam not found")
	ErrExamFrozen          = errors.New("exam is frozen")
	ErrExamNoQuestions     = errors.New("exam has no questions")
	ErrExamNotFrozen       = errors.New("exam is not frozen")
	ErrQuestionNotFound    = errors.New("question not found")
	ErrQuestionNotInExam   = errors.New("question not in exam")
	ErrOrderTaken          = errors.New("question order already used in exam")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrDuplicateClicker    = errors.New("clicker id already assigned")
	ErrDuplicateEmail      = errors.New("email already registered")
	ErrAttemptNotFound     = errors.New("attempt not found")
	ErrUnknownQuestion     = errors.New("question not in snapshot")
	ErrInvalidAnswer       = errors.New("unparsable selected answer")
)

// InvalidStateError is returned when an exam is not in a state that allows the
// requested lifecycle transition (freezing twice, freezing an empty exam).
type InvalidStateError struct {
	ExamID int64
	Err    error
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("exam %d: invalid state: %v", e.ExamID, e.Err)
}

func (e *InvalidStateError) Unwrap() error { return e.Err }

// PreconditionError rejects a whole operation up front, e.g. ingesting answers
// for an exam that has not been frozen.
type PreconditionError struct {
	ExamID int64
	Err    error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("exam %d: precondition failed: %v", e.ExamID, e.Err)
}

func (e *PreconditionError) Unwrap() error { return e.Err }

func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

func IsPrecondition(err error) bool {
	var target *PreconditionError
	return errors.As(err, &target)
}
