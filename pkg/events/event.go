package events

import (
	"context"
	"time"
)

// Event defines the contract for all workbench events.
type Event interface {
	// EventType returns the subject suffix, e.g. "question_answered".
	EventType() string

	Payload() map[string]interface{}

	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Handler processes one delivered event.
type Handler func(ctx context.Context, event Event) error

// Publisher sends events somewhere. Publishing is best effort for callers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

const (
	TypeDocumentSelected = "document_selected"
	TypeRendererChanged  = "renderer_changed"
	TypeQuestionAnswered = "question_answered"
	TypeQuestionFailed   = "question_failed"
)

func newEvent(kind, workbenchID string, data map[string]interface{}) BaseEvent {
	data["workbench_id"] = workbenchID
	return BaseEvent{Type: kind, Data: data, OccurredAt: time.Now().UTC()}
}

func DocumentSelected(workbenchID, documentID string) BaseEvent {
	return newEvent(TypeDocumentSelected, workbenchID, map[string]interface{}{"document_id": documentID})
}

// RendererChanged reports the variant that ended up mounted; an empty variant
// means every variant failed.
func RendererChanged(workbenchID, documentID, variant string, generation uint64) BaseEvent {
	return newEvent(TypeRendererChanged, workbenchID, map[string]interface{}{
		"document_id": documentID,
		"variant":     variant,
		"generation":  generation,
	})
}

func QuestionAnswered(workbenchID, documentID string, citations int) BaseEvent {
	return newEvent(TypeQuestionAnswered, workbenchID, map[string]interface{}{
		"document_id": documentID,
		"citations":   citations,
	})
}

func QuestionFailed(workbenchID, documentID string, err error) BaseEvent {
	return newEvent(TypeQuestionFailed, workbenchID, map[string]interface{}{
		"document_id": documentID,
		"error":       err.Error(),
	})
}
