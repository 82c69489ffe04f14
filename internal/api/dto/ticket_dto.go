package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	OwnerID      string                `json:"owner_id" validate:"required"`
	Title        string                `json:"title" validate:"required,max=200"`
	Description  string                `json:"description"`
	Category     domain.TicketCategory `json:"category" validate:"omitempty,oneof=SOFTWARE HARDWARE NETWORK ACCESS OTHER"`
	Priority     domain.TicketPriority `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	DepartmentID *string               `json:"department_id"`
	BranchID     *string               `json:"branch_id"`
}

// TransitionRequest moves a ticket to a new status. ActorType defaults to
// STAFF when actor_id is set and SYSTEM otherwise.
type TransitionRequest struct {
	Status    domain.TicketStatus `json:"status" validate:"required,oneof=PENDING IN_PROGRESS RESOLVED CLOSED"`
	ActorType domain.ActorType    `json:"actor_type" validate:"omitempty,oneof=USER STAFF SYSTEM"`
	ActorID   *string             `json:"actor_id"`
	Comment   string              `json:"comment" validate:"max=2000"`
}

// TicketResponse is the public view of a ticket.
type TicketResponse struct {
	ID              string                `json:"id"`
	Number          string                `json:"number"`
	OwnerID         string                `json:"owner_id"`
	Title           string                `json:"title"`
	Description     string                `json:"description"`
	Category        domain.TicketCategory `json:"category"`
	Priority        domain.TicketPriority `json:"priority"`
	DepartmentID    *string               `json:"department_id"`
	BranchID        *string               `json:"branch_id"`
	AssigneeID      *string               `json:"assignee_id"`
	Status          domain.TicketStatus   `json:"status"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	StatusChangedAt time.Time             `json:"status_changed_at"`
	ResolvedAt      *time.Time            `json:"resolved_at"`
	ClosedAt        *time.Time            `json:"closed_at"`
}

// SLALogResponse exposes both SLA axes of a ticket.
type SLALogResponse struct {
	RuleID               *int64           `json:"rule_id"`
	RuleName             string           `json:"rule_name"`
	TargetResponseTime   time.Time        `json:"target_response_time"`
	TargetResolutionTime time.Time        `json:"target_resolution_time"`
	ActualResponseTime   *time.Time       `json:"actual_response_time"`
	ActualResolutionTime *time.Time       `json:"actual_resolution_time"`
	ResponseStatus       domain.SLAStatus `json:"response_status"`
	ResolutionStatus     domain.SLAStatus `json:"resolution_status"`
	Escalated            bool             `json:"escalated"`
	EscalatedAt          *time.Time       `json:"escalated_at"`
}

// TicketHistoryResponse is one audit entry.
type TicketHistoryResponse struct {
	ID            string              `json:"id"`
	FromStatus    domain.TicketStatus `json:"from_status"`
	Status        domain.TicketStatus `json:"status"`
	ChangedByType domain.ActorType    `json:"changed_by_type"`
	ChangedByID   *string             `json:"changed_by_id"`
	Comment       string              `json:"comment,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	Ticket  TicketResponse          `json:"ticket"`
	SLA     *SLALogResponse         `json:"sla"`
	History []TicketHistoryResponse `json:"history"`
}
