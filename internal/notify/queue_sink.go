package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

// Envelope is the queued form of a notification for one delivery target.
// An empty Target means every target.
type Envelope struct {
	Notification Notification `json:"notification"`
	Target       string       `json:"target,omitempty"`
	Attempts     int          `json:"attempts"`
}

// QueueSink defers delivery by pushing notifications onto a Redis list
// drained by the notification worker. Each target gets its own envelope so
// a retry never repeats a delivery that already succeeded.
type QueueSink struct {
	client  redis.Cmdable
	key     string
	targets []string
}

// NewQueueSink builds a queue sink on key for the named targets.
func NewQueueSink(client redis.Cmdable, key string, targets []string) *QueueSink {
	return &QueueSink{client: client, key: key, targets: targets}
}

// Send enqueues one envelope per target.
func (s *QueueSink) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, env := range Envelopes(n, s.targets) {
		if err := Enqueue(ctx, s.client, s.key, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Envelopes splits n into one envelope per target.
func Envelopes(n Notification, targets []string) []Envelope {
	if len(targets) == 0 {
		return []Envelope{{Notification: n}}
	}
	out := make([]Envelope, 0, len(targets))
	for _, target := range targets {
		out = append(out, Envelope{Notification: n, Target: target})
	}
	return out
}

// Enqueue RPUSHes env onto key.
func Enqueue(ctx context.Context, client redis.Cmdable, key string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := client.RPush(ctx, key, body).Err(); err != nil {
		return apperrors.NewNotificationDeliveryError("queue", err)
	}
	return nil
}

// DecodeEnvelope parses a queued payload.
func DecodeEnvelope(payload string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}
