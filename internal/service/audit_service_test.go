package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	subject string
	durable string
	handler events.Handler
	err     error
}

func (f *fakeSubscriber) Subscribe(_ context.Context, eventType, durable string, handler events.Handler) error {
	f.subject, f.durable, f.handler = eventType, durable, handler
	return f.err
}

type entry struct {
	level   string
	message string
	details map[string]interface{}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []entry
}

func (l *recordingLogger) add(level, msg string, d map[string]interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry{level, msg, d})
}

func (l *recordingLogger) Debug(_, msg string, d map[string]interface{}) { l.add("debug", msg, d) }
func (l *recordingLogger) Info(_, msg string, d map[string]interface{})  { l.add("info", msg, d) }
func (l *recordingLogger) Warn(_, msg string, d map[string]interface{})  { l.add("warn", msg, d) }
func (l *recordingLogger) Error(_, msg string, d map[string]interface{}) { l.add("error", msg, d) }
func (l *recordingLogger) Sync() error                                   { return nil }

var _ logger.ILogger = (*recordingLogger)(nil)

func TestAuditRecordsEvents(t *testing.T) {
	sub := &fakeSubscriber{}
	audit := &recordingLogger{}
	s := NewAuditService(sub, audit, logger.NewNopLogger())

	s.Start(context.Background())
	require.NotNil(t, sub.handler)
	assert.Equal(t, ">", sub.subject)
	assert.Equal(t, "workbench-audit", sub.durable)

	require.NoError(t, sub.handler(context.Background(), events.DocumentSelected("wb-1", "abpi-2024")))
	require.NoError(t, sub.handler(context.Background(), events.QuestionFailed("wb-1", "abpi-2024", errors.New("timeout"))))

	require.Len(t, audit.entries, 2)
	assert.Equal(t, "info", audit.entries[0].level)
	assert.Equal(t, events.TypeDocumentSelected, audit.entries[0].message)
	assert.Equal(t, "wb-1", audit.entries[0].details["workbench_id"])
	assert.Equal(t, "warn", audit.entries[1].level)
	assert.Equal(t, "timeout", audit.entries[1].details["error"])
}

func TestAuditStartFailureIsLogged(t *testing.T) {
	sys := &recordingLogger{}
	s := NewAuditService(&fakeSubscriber{err: errors.New("no stream")}, logger.NewNopLogger(), sys)

	s.Start(context.Background())

	require.Len(t, sys.entries, 1)
	assert.Equal(t, "error", sys.entries[0].level)
}
