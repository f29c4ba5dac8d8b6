package session

import (
	"errors"
	"fmt"
)

var (
	ErrBlankQuestion     = errors.New("question must not be blank")
	ErrNoDocument        = errors.New("no document selected")
	ErrSuperseded        = errors.New("superseded by a newer request")
	ErrClosed            = errors.New("workbench is closed")
	ErrCitationNotFound  = errors.New("citation not found")
	ErrNotActiveRenderer = errors.New("reported renderer is not the active one")
)

// AnswerServiceError wraps any failure of the answer service call.
type AnswerServiceError struct {
	Err error
}

func (e *AnswerServiceError) Error() string {
	return fmt.Sprintf("answer service failed: %v", e.Err)
}

func (e *AnswerServiceError) Unwrap() error { return e.Err }
