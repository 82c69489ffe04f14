package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
)

// NotificationService turns domain events into notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	sink       notify.Sink
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, sink notify.Sink, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		sink:       sink,
		logger:     logger.Named("notifications"),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.AllTypes {
		n.dispatcher.Subscribe(eventType, n.handle)
	}
}

// handle forwards event to the sink. Delivery failures are logged and
// swallowed; notifications are best effort.
func (n *NotificationService) handle(ctx context.Context, event events.Event) error {
	notification, ok := toNotification(event)
	if !ok {
		return nil
	}
	if err := n.sink.Send(ctx, notification); err != nil {
		n.logger.Warn("notification delivery failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err),
		)
		return nil
	}
	n.logger.Debug("notification sent",
		zap.String("event_type", string(event.Type)),
		zap.String("ticket_id", event.TicketID),
	)
	return nil
}

func toNotification(event events.Event) (notify.Notification, bool) {
	n := notify.Notification{
		ID:           event.ID,
		TicketID:     event.TicketID,
		TicketNumber: event.TicketNumber,
		CreatedAt:    event.Timestamp,
		Payload:      map[string]string{"event_type": string(event.Type)},
	}

	switch p := event.Payload.(type) {
	case events.TicketCreatedPayload:
		n.Kind = notify.KindStatus
		n.Title = "Ticket created"
		n.Message = fmt.Sprintf("%s (%s, %s)", p.Title, p.Category, p.Priority)
		if p.SLARule != "" {
			n.Payload["sla_rule"] = p.SLARule
		}
	case events.TicketStatusChangedPayload:
		n.Kind = notify.KindStatus
		n.Title = "Status changed"
		n.Message = fmt.Sprintf("%s -> %s", p.OldStatus, p.NewStatus)
		if p.Comment != "" {
			n.Message += ": " + p.Comment
		}
		n.Payload["old_status"] = string(p.OldStatus)
		n.Payload["new_status"] = string(p.NewStatus)
	case events.SLAStatusPayload:
		n.Kind = notify.KindWarning
		n.Title = fmt.Sprintf("%s SLA at risk", capitalize(p.Axis))
		if event.Type == events.EventSLABreached {
			n.Kind = notify.KindBreach
			n.Title = fmt.Sprintf("%s SLA breached", capitalize(p.Axis))
		}
		n.Message = fmt.Sprintf("target %s under rule %q", p.Target.UTC().Format(time.RFC3339), p.RuleName)
		n.Payload["axis"] = p.Axis
		n.Payload["status"] = string(p.To)
	case events.SLAEscalatedPayload:
		n.Kind = notify.KindEscalation
		n.Title = "Ticket escalated"
		n.Message = fmt.Sprintf("unresolved %d minutes after creation under rule %q", p.AfterMinutes, p.RuleName)
	case events.AutomationNotifyPayload:
		n.Kind = notify.KindAutomation
		n.Title = fmt.Sprintf("Automation: %s", p.RuleName)
		n.Message = p.Message
		n.Channel = p.Channel
		n.Payload["rule_id"] = fmt.Sprint(p.RuleID)
	default:
		return notify.Notification{}, false
	}
	return n, true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
