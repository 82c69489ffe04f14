package domain

import "time"

// AutomationRuleType selects the action an automation rule performs.
type AutomationRuleType string

const (
	AutomationAutoAssign AutomationRuleType = "auto_assign"
	AutomationAutoClose  AutomationRuleType = "auto_close"
	AutomationAutoNotify AutomationRuleType = "auto_notify"
)

// AutomationConditions is the predicate a ticket must satisfy. Every set
// field must match; an empty condition set matches every open ticket.
type AutomationConditions struct {
	Category        *TicketCategory `json:"category,omitempty"`
	Priority        *TicketPriority `json:"priority,omitempty"`
	DepartmentID    *string         `json:"department_id,omitempty"`
	Status          *TicketStatus   `json:"status,omitempty"`
	MinutesInStatus *int            `json:"minutes_in_status,omitempty"`
	UnassignedOnly  bool            `json:"unassigned_only,omitempty"`
}

// AutomationAction carries the payload for the rule type.
type AutomationAction struct {
	AssigneeID *string `json:"assignee_id,omitempty"`
	Message    string  `json:"message,omitempty"`
	Channel    string  `json:"channel,omitempty"`
}

// AutomationRule is evaluated by the automation engine on every pass.
type AutomationRule struct {
	ID         int64
	Name       string
	RuleType   AutomationRuleType
	Conditions AutomationConditions
	Action     AutomationAction
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AutomationExecution records that a rule fired for a ticket. The
// (RuleID, TicketID) pair is unique.
type AutomationExecution struct {
	RuleID   int64
	TicketID string
	RuleType AutomationRuleType
	FiredAt  time.Time
}
