package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/notify"
	"github.com/spec-kit/helpdesk-sla/internal/service"
)

const defaultPopTimeout = 5 * time.Second

// Queue is the list the notification worker drains.
type Queue interface {
	// Pop blocks up to timeout for the next payload. It returns redis.Nil
	// when the queue stayed empty.
	Pop(ctx context.Context, timeout time.Duration) (string, error)
	Push(ctx context.Context, env notify.Envelope) error
}

// RedisQueue is a Queue over a Redis list.
type RedisQueue struct {
	client redis.Cmdable
	key    string
}

// NewRedisQueue wraps the list at key.
func NewRedisQueue(client redis.Cmdable, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

// Pop implements Queue with BLPOP.
func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (string, error) {
	values, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		return "", err
	}
	// BLPOP replies with [key, value].
	if len(values) < 2 {
		return "", redis.Nil
	}
	return values[1], nil
}

// Push implements Queue with RPUSH.
func (q *RedisQueue) Push(ctx context.Context, env notify.Envelope) error {
	return notify.Enqueue(ctx, q.client, q.key, env)
}

// NotificationWorker delivers queued notifications to their target and
// requeues failed deliveries until MaxRetries is exhausted.
type NotificationWorker struct {
	queue      Queue
	sink       *notify.MultiSink
	maxRetries int
	popTimeout time.Duration
	logger     *zap.Logger

	wg sync.WaitGroup
}

// NewNotificationWorker builds a worker.
func NewNotificationWorker(queue Queue, sink *notify.MultiSink, maxRetries int, logger *zap.Logger) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &NotificationWorker{
		queue:      queue,
		sink:       sink,
		maxRetries: maxRetries,
		popTimeout: defaultPopTimeout,
		logger:     logger.Named("notification_worker"),
	}
}

// Start runs the worker loop until ctx is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.Run(ctx)
	}()
}

// Wait blocks until a started worker has returned.
func (w *NotificationWorker) Wait() {
	w.wg.Wait()
}

// Run drains the queue until ctx is cancelled.
func (w *NotificationWorker) Run(ctx context.Context) {
	w.logger.Info("notification worker started")
	defer w.logger.Info("notification worker stopped")

	for ctx.Err() == nil {
		payload, err := w.queue.Pop(ctx, w.popTimeout)
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("queue pop failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		w.Handle(context.WithoutCancel(ctx), payload)
	}
}

// Handle delivers one queued payload. Undecodable payloads are dropped.
func (w *NotificationWorker) Handle(ctx context.Context, payload string) {
	env, err := notify.DecodeEnvelope(payload)
	if err != nil {
		w.logger.Error("dropping malformed notification", zap.Error(err))
		return
	}

	var sendErr error
	if env.Target != "" {
		sendErr = w.sink.SendTo(ctx, env.Target, env.Notification)
	} else {
		sendErr = w.sink.Send(ctx, env.Notification)
	}
	if sendErr == nil {
		return
	}

	if errors.Is(sendErr, notify.ErrUnknownTarget) {
		w.logger.Error("dropping notification for unknown target", zap.String("target", env.Target))
		return
	}
	env.Attempts++
	fields := []zap.Field{
		zap.String("target", env.Target),
		zap.String("ticket_id", env.Notification.TicketID),
		zap.String("kind", string(env.Notification.Kind)),
		zap.Int("attempts", env.Attempts),
		zap.Error(sendErr),
	}
	if env.Attempts > w.maxRetries {
		w.logger.Error("notification dropped after retries", fields...)
		return
	}
	if err := w.queue.Push(ctx, env); err != nil {
		w.logger.Error("requeue notification failed", append(fields, zap.NamedError("requeue_error", err))...)
		return
	}
	w.logger.Warn("notification requeued", fields...)
}

// StartNotificationWorker registers the event handlers and, when queued
// delivery is enabled, starts the worker draining the queue.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, worker *NotificationWorker) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if worker != nil {
		worker.Start(ctx)
	}
}
