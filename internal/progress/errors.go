package progress

import (
	"errors"
	"fmt"
)

// Error kinds for errors.Is checks.
var (
	ErrShapeMismatch       = errors.New("answers do not match box entries")
	ErrInvalidAnswerLength = errors.New("answers exceed activity question count")
	ErrPoolExhausted       = errors.New("activity pool exhausted")
	ErrDuplicateActivity   = errors.New("activity sampled twice")
	ErrPositionNotFound    = errors.New("curriculum position not found")
	ErrLearnerNotFound     = errors.New("learner not found")
	ErrNoActiveBox         = errors.New("no active box")
	ErrConcurrentUpdate    = errors.New("progress modified concurrently")
	ErrLearnerLocked       = errors.New("learner is locked")
)

// Problem names what is wrong with a field, in the terms clients render.
type Problem string

const (
	ProblemMissing   Problem = "missing"
	ProblemInvalid   Problem = "invalid"
	ProblemDuplicate Problem = "duplicate"
)

// Error carries a kind plus the structured context needed to build a precise message.
type Error struct {
	Kind     error
	Op       string
	Field    string
	Problem  Problem
	Expected int
	Actual   int
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("progress.%s: %v", e.Op, e.Kind)
	if e.Field != "" {
		msg += fmt.Sprintf(" (%s: %s, expected %d, got %d)", e.Field, e.Problem, e.Expected, e.Actual)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error, falling back to the kind.
func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is matches either the kind or the wrapped error.
func (e *Error) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	return e.Err != nil && errors.Is(e.Err, target)
}

// PositionNotFound reports a module or stage id that does not resolve.
func PositionNotFound(op, field string, id int64) *Error {
	return &Error{Kind: ErrPositionNotFound, Op: op, Field: field, Problem: ProblemMissing, Actual: int(id)}
}

// LearnerNotFound reports a learner without a progress record.
func LearnerNotFound(op string, id int64) *Error {
	return &Error{Kind: ErrLearnerNotFound, Op: op, Field: "learner", Problem: ProblemMissing, Actual: int(id)}
}

// ConcurrentUpdate reports a stale progress write.
func ConcurrentUpdate(op string, version int64) *Error {
	return &Error{Kind: ErrConcurrentUpdate, Op: op, Field: "version", Problem: ProblemInvalid, Expected: int(version)}
}

func poolExhausted(stageID int64, want, got int) *Error {
	return &Error{
		Kind:     ErrPoolExhausted,
		Op:       "Build",
		Field:    fmt.Sprintf("stage[%d]", stageID),
		Problem:  ProblemMissing,
		Expected: want,
		Actual:   got,
	}
}

// AsError extracts the structured error from an error chain.
func AsError(err error) (*Error, bool) {
	var pe *Error
	ok := errors.As(err, &pe)
	return pe, ok
}
