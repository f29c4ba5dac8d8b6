// Package answer talks to the external question answering service.
package answer

import (
	"context"
	"fmt"
)

type Request struct {
	Question          string `json:"question"`
	DocumentReference string `json:"documentReference"`
	TopK              int    `json:"topK"`
	MaxWords          int    `json:"maxWords"`
}

// Match is a retrieved passage the answer was grounded on.
type Match struct {
	ClauseNumber string `json:"clauseNumber"`
	Snippet      string `json:"snippet"`
}

type Response struct {
	AnswerText string  `json:"answerText"`
	Matches    []Match `json:"matches"`
}

type Service interface {
	Ask(ctx context.Context, req Request) (*Response, error)
}

// StatusError is a non-2xx reply from the answer service.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("answer service returned %d: %s", e.Status, e.Message)
}
