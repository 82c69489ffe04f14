package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

// transition is the outcome of applyTransition, used to publish events
// once the enclosing transaction has committed.
type transition struct {
	ticket     *domain.Ticket
	from       domain.TicketStatus
	history    *domain.TicketHistory
	log        *domain.SLALog
	slaChanges []sla.Change
}

// applyTransition moves ticket to next inside tx. ticket must have been
// loaded with GetForUpdate in the same transaction; any other pending
// field changes on it (such as a new assignee) are written too.
func applyTransition(ctx context.Context, tx repository.Repositories, ticket *domain.Ticket,
	next domain.TicketStatus, actor domain.Actor, comment string, now time.Time) (*transition, error) {
	from := ticket.Status
	if !domain.CanTransition(from, next) {
		return nil, apperrors.NewInvalidTransition(string(from), string(next))
	}

	ticket.Status = next
	ticket.StatusChangedAt = now
	ticket.UpdatedAt = now
	switch next {
	case domain.TicketStatusResolved:
		if ticket.ResolvedAt == nil {
			at := now
			ticket.ResolvedAt = &at
		}
	case domain.TicketStatusClosed:
		if ticket.ClosedAt == nil {
			at := now
			ticket.ClosedAt = &at
		}
	case domain.TicketStatusInProgress:
		if from == domain.TicketStatusResolved {
			ticket.ResolvedAt = nil
		}
	}

	result := &transition{ticket: ticket, from: from}

	log, err := tx.SLALogs().GetByTicketForUpdate(ctx, ticket.ID)
	switch {
	case repository.IsNotFound(err):
		log = nil
	case err != nil:
		return nil, apperrors.StoreError("load sla log", "sla_log", err)
	}
	if log != nil {
		stamped := false
		if next == domain.TicketStatusInProgress || next == domain.TicketStatusResolved {
			stamped = log.ActualResponseTime == nil
			if c, ok := sla.RecordActualResponse(log, now); ok {
				result.slaChanges = append(result.slaChanges, c)
			}
		}
		if next == domain.TicketStatusResolved {
			if log.ActualResolutionTime == nil {
				stamped = true
			}
			if c, ok := sla.RecordActualResolution(log, now); ok {
				result.slaChanges = append(result.slaChanges, c)
			}
		}
		if stamped {
			if err := tx.SLALogs().Update(ctx, log); err != nil {
				return nil, apperrors.StoreError("save sla log", "sla_log", err)
			}
		}
		result.log = log
	}

	if err := tx.Tickets().Update(ctx, ticket); err != nil {
		return nil, apperrors.StoreError("update ticket", "ticket", err)
	}

	entry := &domain.TicketHistory{
		ID:            uuid.NewString(),
		TicketID:      ticket.ID,
		FromStatus:    from,
		Status:        next,
		ChangedByType: actor.Type,
		ChangedByID:   actor.ID,
		Comment:       comment,
		CreatedAt:     now,
	}
	if err := tx.History().Create(ctx, entry); err != nil {
		return nil, apperrors.StoreError("append history", "ticket_history", err)
	}
	result.history = entry
	return result, nil
}
