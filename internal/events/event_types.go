package events

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventSLAWarning          EventType = "sla_warning"
	EventSLABreached         EventType = "sla_breached"
	EventSLAEscalated        EventType = "sla_escalated"
	EventAutomationNotify    EventType = "automation_notify"
)

// AllTypes lists every event type in publication order of a ticket's life.
var AllTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventSLAWarning,
	EventSLABreached,
	EventSLAEscalated,
	EventAutomationNotify,
}

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type domain.ActorType `json:"type"`
	ID   *string          `json:"id,omitempty"`
}

// ActorFrom converts a domain actor.
func ActorFrom(a domain.Actor) Actor {
	return Actor{Type: a.Type, ID: a.ID}
}

// Event represents a domain event emitted by services after commit.
type Event struct {
	ID           string    `json:"id"`
	Type         EventType `json:"type"`
	TicketID     string    `json:"ticket_id"`
	TicketNumber string    `json:"ticket_number"`
	Actor        Actor     `json:"actor"`
	Timestamp    time.Time `json:"timestamp"`
	Payload      any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title    string                `json:"title"`
	Category domain.TicketCategory `json:"category"`
	Priority domain.TicketPriority `json:"priority"`
	SLARule  string                `json:"sla_rule,omitempty"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// SLAStatusPayload accompanies sla_warning and sla_breached. Axis is
// "response" or "resolution".
type SLAStatusPayload struct {
	Axis     string           `json:"axis"`
	From     domain.SLAStatus `json:"from"`
	To       domain.SLAStatus `json:"to"`
	Target   time.Time        `json:"target"`
	RuleName string           `json:"rule_name"`
}

// SLAEscalatedPayload payload.
type SLAEscalatedPayload struct {
	RuleName     string    `json:"rule_name"`
	AfterMinutes int       `json:"after_minutes"`
	EscalatedAt  time.Time `json:"escalated_at"`
}

// AutomationNotifyPayload payload.
type AutomationNotifyPayload struct {
	RuleID   int64  `json:"rule_id"`
	RuleName string `json:"rule_name"`
	Message  string `json:"message"`
	Channel  string `json:"channel,omitempty"`
}
