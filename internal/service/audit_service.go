package service

import (
	"context"

	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/pkg/events"
)

// EventSubscriber is satisfied by *nats.Subscriber.
type EventSubscriber interface {
	Subscribe(ctx context.Context, eventType, durableName string, handler events.Handler) error
}

// AuditService records every workbench event into a dedicated audit log.
type AuditService struct {
	subscriber EventSubscriber
	audit      logger.ILogger
	logger     logger.ILogger
}

func NewAuditService(sub EventSubscriber, audit, log logger.ILogger) *AuditService {
	return &AuditService{subscriber: sub, audit: audit, logger: log}
}

// Start begins listening to the event bus.
func (s *AuditService) Start(ctx context.Context) {
	if err := s.subscriber.Subscribe(ctx, ">", "workbench-audit", s.handleEvent); err != nil {
		s.logger.Error("AuditService", "Failed to start audit subscriber", map[string]interface{}{"error": err})
		return
	}
	s.logger.Info("AuditService", "Audit service started", nil)
}

func (s *AuditService) handleEvent(ctx context.Context, event events.Event) error {
	details := make(map[string]interface{}, len(event.Payload())+1)
	for k, v := range event.Payload() {
		details[k] = v
	}
	details["occurred_at"] = event.Timestamp()

	if event.EventType() == events.TypeQuestionFailed {
		s.audit.Warn("Audit", event.EventType(), details)
		return nil
	}
	s.audit.Info("Audit", event.EventType(), details)
	return nil
}
