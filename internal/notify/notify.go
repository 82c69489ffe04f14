// Package notify delivers SLA and automation notifications to external
// targets.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Kind classifies a notification.
type Kind string

const (
	KindWarning    Kind = "warning"
	KindBreach     Kind = "breach"
	KindEscalation Kind = "escalation"
	KindAutomation Kind = "automation"
	KindStatus     Kind = "status"
)

// Notification is the message handed to a Sink.
type Notification struct {
	ID           string            `json:"id"`
	TicketID     string            `json:"ticket_id"`
	TicketNumber string            `json:"ticket_number,omitempty"`
	Kind         Kind              `json:"kind"`
	Title        string            `json:"title"`
	Message      string            `json:"message"`
	Channel      string            `json:"channel,omitempty"`
	Payload      map[string]string `json:"payload,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Text renders the notification as a single line.
func (n Notification) Text() string {
	if n.TicketNumber != "" {
		return fmt.Sprintf("[%s] %s: %s", n.TicketNumber, n.Title, n.Message)
	}
	return fmt.Sprintf("%s: %s", n.Title, n.Message)
}

// Sink delivers notifications. Send must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// LogSink writes notifications to the structured log. It is always wired
// so deliveries are visible even when no external target is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink builds a LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("notify")}
}

// Send logs n.
func (s *LogSink) Send(_ context.Context, n Notification) error {
	s.logger.Info("notification",
		zap.String("kind", string(n.Kind)),
		zap.String("ticket_id", n.TicketID),
		zap.String("ticket_number", n.TicketNumber),
		zap.String("title", n.Title),
		zap.String("message", n.Message),
	)
	return nil
}

// ErrUnknownTarget is returned by SendTo for a name that was never added.
var ErrUnknownTarget = errors.New("notify: unknown target")

type namedSink struct {
	name string
	sink Sink
}

// MultiSink fans a notification out to every target. A failing target does
// not stop delivery to the others.
type MultiSink struct {
	logger  *zap.Logger
	targets []namedSink
}

// NewMultiSink builds an empty fan-out sink.
func NewMultiSink(logger *zap.Logger) *MultiSink {
	return &MultiSink{logger: logger.Named("notify")}
}

// Add registers a target under name.
func (m *MultiSink) Add(name string, sink Sink) *MultiSink {
	m.targets = append(m.targets, namedSink{name: name, sink: sink})
	return m
}

// Targets returns the registered target names in order.
func (m *MultiSink) Targets() []string {
	names := make([]string, 0, len(m.targets))
	for _, t := range m.targets {
		names = append(names, t.name)
	}
	return names
}

// SendTo delivers to the named target only.
func (m *MultiSink) SendTo(ctx context.Context, target string, n Notification) error {
	for _, t := range m.targets {
		if t.name != target {
			continue
		}
		if err := t.sink.Send(ctx, n); err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownTarget, target)
}

// Send delivers to every target and joins the failures.
func (m *MultiSink) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, t := range m.targets {
		if err := t.sink.Send(ctx, n); err != nil {
			m.logger.Warn("notification target failed",
				zap.String("target", t.name),
				zap.String("ticket_id", n.TicketID),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		}
	}
	return errors.Join(errs...)
}
