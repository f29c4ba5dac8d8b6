package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/pkg/events"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type Subscriber struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger logger.ILogger
	cc     []jetstream.ConsumeContext
}

func NewSubscriber(url string, log logger.ILogger) (*Subscriber, error) {
	nc, js, err := connect(url)
	if err != nil {
		return nil, err
	}
	return &Subscriber{nc: nc, js: js, logger: log}, nil
}

// Subscribe registers a durable consumer for eventType ("" or ">" for all).
func (s *Subscriber) Subscribe(ctx context.Context, eventType, durableName string, handler events.Handler) error {
	if eventType == "" {
		eventType = ">"
	}
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       durableName,
		FilterSubject: Subject(eventType),
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	cc, err := consumer.Consume(func(msg jetstream.Msg) {
		s.dispatch(msg, handler)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	s.cc = append(s.cc, cc)

	s.logger.Info("NATS", "Subscribed", map[string]interface{}{"subject": Subject(eventType), "durable": durableName})
	return nil
}

// delivery is the part of jetstream.Msg a consumer needs.
type delivery interface {
	Data() []byte
	Subject() string
	Ack() error
	Nak() error
	Term() error
}

// dispatch hands one message to handler. Unreadable payloads are terminated,
// handler failures are redelivered.
func (s *Subscriber) dispatch(msg delivery, handler events.Handler) {
	var env envelope
	if err := json.Unmarshal(msg.Data(), &env); err != nil {
		s.logger.Error("NATS", "Unreadable event", map[string]interface{}{"subject": msg.Subject(), "error": err})
		msg.Term()
		return
	}

	event := events.BaseEvent{Type: env.Type, Data: env.Data, OccurredAt: env.OccurredAt}
	if err := handler(context.Background(), event); err != nil {
		s.logger.Warn("NATS", "Handler failed, will retry", map[string]interface{}{"subject": msg.Subject(), "error": err.Error()})
		msg.Nak()
		return
	}
	msg.Ack()
}

func (s *Subscriber) Close() {
	for _, cc := range s.cc {
		cc.Stop()
	}
	if s.nc != nil {
		s.nc.Close()
	}
}
