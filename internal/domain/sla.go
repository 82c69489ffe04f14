package domain

import "time"

// SLAStatus is the compliance state of one SLA axis (response or resolution).
type SLAStatus string

const (
	SLAStatusPending  SLAStatus = "PENDING"
	SLAStatusOnTime   SLAStatus = "ON_TIME"
	SLAStatusWarning  SLAStatus = "WARNING"
	SLAStatusBreached SLAStatus = "BREACHED"
)

// IsTerminal reports whether the axis can no longer change.
func (s SLAStatus) IsTerminal() bool {
	return s == SLAStatusOnTime || s == SLAStatusBreached
}

// SLARule defines response/resolution targets for the tickets it scopes.
// Nil scoping fields match any ticket.
type SLARule struct {
	ID                       int64
	Name                     string
	Priority                 *TicketPriority
	Category                 *TicketCategory
	DepartmentID             *string
	ResponseTimeMinutes      int
	ResolutionTimeMinutes    int
	ResponseWarningMinutes   int
	ResolutionWarningMinutes int
	EscalationEnabled        bool
	EscalationAfterMinutes   int
	IsActive                 bool
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// SLALog tracks one ticket against the rule matched at creation. The rule
// fields needed after creation are copied in so later rule edits or
// deletion leave existing deadlines untouched.
type SLALog struct {
	ID                       string
	TicketID                 string
	RuleID                   *int64
	RuleName                 string
	ResponseWarningMinutes   int
	ResolutionWarningMinutes int
	EscalationEnabled        bool
	EscalationAfterMinutes   int
	TargetResponseTime       time.Time
	TargetResolutionTime     time.Time
	ActualResponseTime       *time.Time
	ActualResolutionTime     *time.Time
	ResponseStatus           SLAStatus
	ResolutionStatus         SLAStatus
	Escalated                bool
	EscalatedAt              *time.Time
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

// IsSettled reports whether both axes are terminal.
func (l *SLALog) IsSettled() bool {
	return l.ResponseStatus.IsTerminal() && l.ResolutionStatus.IsTerminal()
}

// Clone returns a deep copy.
func (l *SLALog) Clone() *SLALog {
	if l == nil {
		return nil
	}
	c := *l
	if l.RuleID != nil {
		id := *l.RuleID
		c.RuleID = &id
	}
	c.ActualResponseTime = cloneTime(l.ActualResponseTime)
	c.ActualResolutionTime = cloneTime(l.ActualResolutionTime)
	c.EscalatedAt = cloneTime(l.EscalatedAt)
	return &c
}
