package domain

import "time"

// ActorType indicates who caused a change.
type ActorType string

const (
	ActorTypeUser   ActorType = "USER"
	ActorTypeStaff  ActorType = "STAFF"
	ActorTypeSystem ActorType = "SYSTEM"
)

// Actor identifies the principal behind a transition. ID is nil for
// system-driven changes.
type Actor struct {
	Type ActorType
	ID   *string
}

// SystemActor is used by the schedulers.
func SystemActor() Actor {
	return Actor{Type: ActorTypeSystem}
}

// StaffActor builds an actor for a support agent.
func StaffActor(id string) Actor {
	return Actor{Type: ActorTypeStaff, ID: &id}
}

// UserActor builds an actor for the ticket owner.
func UserActor(id string) Actor {
	return Actor{Type: ActorTypeUser, ID: &id}
}

// TicketHistory is an immutable audit trail entry, one per status transition.
type TicketHistory struct {
	ID            string
	TicketID      string
	FromStatus    TicketStatus
	Status        TicketStatus
	ChangedByType ActorType
	ChangedByID   *string
	Comment       string
	CreatedAt     time.Time
}
