package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusClosed     TicketStatus = "CLOSED"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "LOW"
	TicketPriorityMedium TicketPriority = "MEDIUM"
	TicketPriorityHigh   TicketPriority = "HIGH"
	TicketPriorityUrgent TicketPriority = "URGENT"
)

// TicketCategory classifies what the request is about.
type TicketCategory string

const (
	TicketCategorySoftware TicketCategory = "SOFTWARE"
	TicketCategoryHardware TicketCategory = "HARDWARE"
	TicketCategoryNetwork  TicketCategory = "NETWORK"
	TicketCategoryAccess   TicketCategory = "ACCESS"
	TicketCategoryOther    TicketCategory = "OTHER"
)

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID              string
	Number          string
	OwnerID         string
	Title           string
	Description     string
	Category        TicketCategory
	Priority        TicketPriority
	DepartmentID    *string
	BranchID        *string
	AssigneeID      *string
	Status          TicketStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StatusChangedAt time.Time
	ResolvedAt      *time.Time
	ClosedAt        *time.Time
}

// IsOpen reports whether the ticket still takes part in SLA and automation passes.
func (t *Ticket) IsOpen() bool {
	return t.Status != TicketStatusClosed
}

// Clone returns a deep copy so callers can mutate without aliasing pointer fields.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.DepartmentID = cloneString(t.DepartmentID)
	c.BranchID = cloneString(t.BranchID)
	c.AssigneeID = cloneString(t.AssigneeID)
	c.ResolvedAt = cloneTime(t.ResolvedAt)
	c.ClosedAt = cloneTime(t.ClosedAt)
	return &c
}

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusPending:    {TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed},
	TicketStatusInProgress: {TicketStatusResolved, TicketStatusClosed},
	TicketStatusResolved:   {TicketStatusClosed, TicketStatusInProgress},
	TicketStatusClosed:     {},
}

// IsValidPriority reports whether p is a known priority.
func IsValidPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// IsValidCategory reports whether c is a known category.
func IsValidCategory(c TicketCategory) bool {
	switch c {
	case TicketCategorySoftware, TicketCategoryHardware, TicketCategoryNetwork, TicketCategoryAccess, TicketCategoryOther:
		return true
	}
	return false
}

// IsValidStatus reports whether s is a known ticket status.
func IsValidStatus(s TicketStatus) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransition reports whether the table permits current -> next.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
