package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/clock"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	store  repository.Store
	clock  clock.Clock
	events *eventPublisher
	logger *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Clock      clock.Clock
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	OwnerID      string
	Title        string
	Description  string
	Category     domain.TicketCategory
	Priority     domain.TicketPriority
	DepartmentID *string
	BranchID     *string
}

// TicketDetails is a ticket with its SLA log and history.
type TicketDetails struct {
	Ticket  *domain.Ticket
	SLALog  *domain.SLALog
	History []domain.TicketHistory
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger = logger.Named("tickets")
	return &TicketService{
		store:  deps.Store,
		clock:  clk,
		events: &eventPublisher{dispatcher: deps.Dispatcher, logger: logger},
		logger: logger,
	}
}

// CreateTicket stores a new PENDING ticket and, when an active SLA rule
// matches, its SLA log. The rule is chosen once, here.
func (s *TicketService) CreateTicket(ctx context.Context, input TicketCreateInput) (*domain.Ticket, *domain.SLALog, error) {
	ticket, err := s.newTicket(input)
	if err != nil {
		return nil, nil, err
	}

	var log *domain.SLALog
	err = s.store.InTx(ctx, func(tx repository.Repositories) error {
		rules, err := tx.SLARules().ListActive(ctx)
		if err != nil {
			return apperrors.StoreError("list sla rules", "sla_rule", err)
		}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			if repository.IsUniqueViolation(err) {
				return apperrors.NewConflict("ticket number already taken", map[string]any{"number": ticket.Number})
			}
			return apperrors.StoreError("create ticket", "ticket", err)
		}

		rule := sla.MatchRule(rules, ticket)
		if rule == nil {
			return nil
		}
		fresh := sla.NewLog(ticket, rule, ticket.CreatedAt)
		fresh.ID = uuid.NewString()
		stored, _, err := tx.SLALogs().GetOrCreate(ctx, fresh)
		if err != nil {
			return apperrors.StoreError("create sla log", "sla_log", err)
		}
		log = stored
		return nil
	})
	if err != nil {
		return nil, nil, apperrors.StoreError("create ticket", "ticket", err)
	}

	payload := events.TicketCreatedPayload{
		Title:    ticket.Title,
		Category: ticket.Category,
		Priority: ticket.Priority,
	}
	if log != nil {
		payload.SLARule = log.RuleName
	}
	s.events.publish(ctx, events.Event{
		Type:         events.EventTicketCreated,
		TicketID:     ticket.ID,
		TicketNumber: ticket.Number,
		Actor:        events.ActorFrom(domain.UserActor(ticket.OwnerID)),
		Timestamp:    ticket.CreatedAt,
		Payload:      payload,
	})
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("number", ticket.Number),
		zap.Bool("sla_tracked", log != nil),
	)
	return ticket, log, nil
}

func (s *TicketService) newTicket(input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	owner := strings.TrimSpace(input.OwnerID)
	details := map[string]any{}
	if title == "" {
		details["title"] = "required"
	}
	if owner == "" {
		details["owner_id"] = "required"
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	if !domain.IsValidPriority(input.Priority) {
		details["priority"] = "unknown priority"
	}
	if input.Category == "" {
		input.Category = domain.TicketCategoryOther
	}
	if !domain.IsValidCategory(input.Category) {
		details["category"] = "unknown category"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}

	now := s.clock.Now()
	return &domain.Ticket{
		ID:              uuid.NewString(),
		Number:          generateTicketNumber(),
		OwnerID:         owner,
		Title:           title,
		Description:     strings.TrimSpace(input.Description),
		Category:        input.Category,
		Priority:        input.Priority,
		DepartmentID:    input.DepartmentID,
		BranchID:        input.BranchID,
		Status:          domain.TicketStatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
		StatusChangedAt: now,
	}, nil
}

// Transition moves a ticket to next on behalf of actor. The status write,
// SLA timestamps and history entry commit together or not at all.
func (s *TicketService) Transition(ctx context.Context, ticketID string, next domain.TicketStatus, actor domain.Actor, comment string) (*domain.Ticket, error) {
	if !domain.IsValidStatus(next) {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": next})
	}

	var (
		result *transition
		now    time.Time
	)
	err := s.store.InTx(ctx, func(tx repository.Repositories) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return apperrors.StoreError("load ticket", "ticket", err)
		}
		// Read the clock under the row lock so timestamps follow commit order.
		now = s.clock.Now()
		result, err = applyTransition(ctx, tx, ticket, next, actor, strings.TrimSpace(comment), now)
		return err
	})
	if err != nil {
		return nil, apperrors.StoreError("transition ticket", "ticket", err)
	}

	s.events.publishTransition(ctx, result, actor, now)
	s.logger.Info("ticket transitioned",
		zap.String("ticket_id", ticketID),
		zap.String("from", string(result.from)),
		zap.String("to", string(next)),
		zap.String("actor_type", string(actor.Type)),
	)
	return result.ticket, nil
}

// GetTicket returns the ticket with its SLA log (nil when untracked) and
// history.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*TicketDetails, error) {
	ticket, err := s.store.Tickets().GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.StoreError("get ticket", "ticket", err)
	}
	log, err := s.store.SLALogs().GetByTicket(ctx, ticketID)
	if err != nil && !repository.IsNotFound(err) {
		return nil, apperrors.StoreError("get sla log", "sla_log", err)
	}
	history, err := s.store.History().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.StoreError("list history", "ticket_history", err)
	}
	return &TicketDetails{Ticket: ticket, SLALog: log, History: history}, nil
}

// ListHistory returns the ticket's transitions, oldest first.
func (s *TicketService) ListHistory(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	if _, err := s.store.Tickets().GetByID(ctx, ticketID); err != nil {
		return nil, apperrors.StoreError("get ticket", "ticket", err)
	}
	history, err := s.store.History().ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.StoreError("list history", "ticket_history", err)
	}
	return history, nil
}

func generateTicketNumber() string {
	return "TCK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
