package nats

import (
	"context"
	"errors"
	"testing"
	"time"

	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMsg struct {
	data                 []byte
	acked, naked, termed int
}

func (m *fakeMsg) Data() []byte    { return m.data }
func (m *fakeMsg) Subject() string { return "workbench.test" }
func (m *fakeMsg) Ack() error      { m.acked++; return nil }
func (m *fakeMsg) Nak() error      { m.naked++; return nil }
func (m *fakeMsg) Term() error     { m.termed++; return nil }

func TestSubject(t *testing.T) {
	assert.Equal(t, "workbench.question_answered", Subject(events.TypeQuestionAnswered))
	assert.Equal(t, "workbench.>", Subject(">"))
}

func TestDispatchDeliversPublishedEvent(t *testing.T) {
	s := &Subscriber{logger: logger.NewNopLogger()}
	sent := events.RendererChanged("wb-1", "abpi-2024", "pdfjs", 3)
	data, err := encode(sent)
	require.NoError(t, err)

	var got events.Event
	msg := &fakeMsg{data: data}
	s.dispatch(msg, func(_ context.Context, e events.Event) error {
		got = e
		return nil
	})

	require.NotNil(t, got)
	assert.Equal(t, 1, msg.acked)
	assert.Equal(t, events.TypeRendererChanged, got.EventType())
	assert.Equal(t, "wb-1", got.Payload()["workbench_id"])
	assert.Equal(t, "pdfjs", got.Payload()["variant"])
	assert.EqualValues(t, 3, got.Payload()["generation"])
	assert.WithinDuration(t, sent.OccurredAt, got.Timestamp(), time.Millisecond)
}

func TestDispatchFailures(t *testing.T) {
	s := &Subscriber{logger: logger.NewNopLogger()}

	t.Run("unreadable payload is terminated", func(t *testing.T) {
		msg := &fakeMsg{data: []byte("not json")}
		called := false
		s.dispatch(msg, func(context.Context, events.Event) error {
			called = true
			return nil
		})

		assert.False(t, called)
		assert.Equal(t, 1, msg.termed)
		assert.Zero(t, msg.acked+msg.naked)
	})

	t.Run("handler error is redelivered", func(t *testing.T) {
		data, err := encode(events.DocumentSelected("wb-1", "abpi-2024"))
		require.NoError(t, err)
		msg := &fakeMsg{data: data}

		s.dispatch(msg, func(context.Context, events.Event) error {
			return errors.New("audit log unavailable")
		})

		assert.Equal(t, 1, msg.naked)
		assert.Zero(t, msg.acked+msg.termed)
	})
}
