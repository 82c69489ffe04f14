package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// SLARuleRequest is the create/replace body for an SLA rule.
type SLARuleRequest struct {
	Name                     string                 `json:"name"`
	Priority                 *domain.TicketPriority `json:"priority"`
	Category                 *domain.TicketCategory `json:"category"`
	DepartmentID             *string                `json:"department_id"`
	ResponseTimeMinutes      int                    `json:"response_time_minutes"`
	ResolutionTimeMinutes    int                    `json:"resolution_time_minutes"`
	ResponseWarningMinutes   int                    `json:"response_warning_minutes"`
	ResolutionWarningMinutes int                    `json:"resolution_warning_minutes"`
	EscalationEnabled        bool                   `json:"escalation_enabled"`
	EscalationAfterMinutes   int                    `json:"escalation_after_minutes"`
	IsActive                 *bool                  `json:"is_active"`
}

// SLARuleResponse is the public view of an SLA rule.
type SLARuleResponse struct {
	ID                       int64                  `json:"id"`
	Name                     string                 `json:"name"`
	Priority                 *domain.TicketPriority `json:"priority"`
	Category                 *domain.TicketCategory `json:"category"`
	DepartmentID             *string                `json:"department_id"`
	ResponseTimeMinutes      int                    `json:"response_time_minutes"`
	ResolutionTimeMinutes    int                    `json:"resolution_time_minutes"`
	ResponseWarningMinutes   int                    `json:"response_warning_minutes"`
	ResolutionWarningMinutes int                    `json:"resolution_warning_minutes"`
	EscalationEnabled        bool                   `json:"escalation_enabled"`
	EscalationAfterMinutes   int                    `json:"escalation_after_minutes"`
	IsActive                 bool                   `json:"is_active"`
	CreatedAt                time.Time              `json:"created_at"`
	UpdatedAt                time.Time              `json:"updated_at"`
}

// AutomationRuleRequest is the create/replace body for an automation rule.
type AutomationRuleRequest struct {
	Name       string                      `json:"name"`
	RuleType   domain.AutomationRuleType   `json:"rule_type"`
	Conditions domain.AutomationConditions `json:"conditions"`
	Action     domain.AutomationAction     `json:"action"`
	IsActive   *bool                       `json:"is_active"`
}

// AutomationRuleResponse is the public view of an automation rule.
type AutomationRuleResponse struct {
	ID         int64                       `json:"id"`
	Name       string                      `json:"name"`
	RuleType   domain.AutomationRuleType   `json:"rule_type"`
	Conditions domain.AutomationConditions `json:"conditions"`
	Action     domain.AutomationAction     `json:"action"`
	IsActive   bool                        `json:"is_active"`
	CreatedAt  time.Time                   `json:"created_at"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}
