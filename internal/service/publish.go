package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
)

// eventPublisher publishes events after commit. Delivery failures are
// logged and never reach the caller.
type eventPublisher struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

func (p *eventPublisher) publish(ctx context.Context, event events.Event) {
	if p == nil || p.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	// The state change is already committed; shutdown must not drop its
	// notification.
	if err := p.dispatcher.Publish(context.WithoutCancel(ctx), event); err != nil {
		p.logger.Warn("event delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err),
		)
	}
}

func (p *eventPublisher) publishTransition(ctx context.Context, tr *transition, actor domain.Actor, now time.Time) {
	p.publish(ctx, events.Event{
		Type:         events.EventTicketStatusChanged,
		TicketID:     tr.ticket.ID,
		TicketNumber: tr.ticket.Number,
		Actor:        events.ActorFrom(actor),
		Timestamp:    now,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: tr.from,
			NewStatus: tr.ticket.Status,
			Comment:   tr.history.Comment,
		},
	})
	p.publishSLAChanges(ctx, tr.ticket, tr.log, tr.slaChanges, now)
}

// publishSLAChanges emits one event per axis that moved into WARNING or
// BREACHED.
func (p *eventPublisher) publishSLAChanges(ctx context.Context, ticket *domain.Ticket, log *domain.SLALog, changes []sla.Change, now time.Time) {
	for _, c := range changes {
		var eventType events.EventType
		switch c.To {
		case domain.SLAStatusWarning:
			eventType = events.EventSLAWarning
		case domain.SLAStatusBreached:
			eventType = events.EventSLABreached
		default:
			continue
		}
		target := log.TargetResolutionTime
		if c.Axis == sla.AxisResponse {
			target = log.TargetResponseTime
		}
		p.publish(ctx, events.Event{
			Type:         eventType,
			TicketID:     ticket.ID,
			TicketNumber: ticket.Number,
			Actor:        events.ActorFrom(domain.SystemActor()),
			Timestamp:    now,
			Payload: events.SLAStatusPayload{
				Axis:     string(c.Axis),
				From:     c.From,
				To:       c.To,
				Target:   target,
				RuleName: log.RuleName,
			},
		})
	}
}
