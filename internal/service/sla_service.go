package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/clock"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

// SLAService runs the SLA monitor pass.
type SLAService struct {
	store   repository.Store
	clock   clock.Clock
	events  *eventPublisher
	logger  *zap.Logger
	retries int
}

// SLADependencies bundles collaborators for the SLA service.
type SLADependencies struct {
	Store       repository.Store
	Clock       clock.Clock
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	ItemRetries int
}

// NewSLAService constructs the service.
func NewSLAService(deps SLADependencies) *SLAService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger = logger.Named("sla")
	return &SLAService{
		store:   deps.Store,
		clock:   clk,
		events:  &eventPublisher{dispatcher: deps.Dispatcher, logger: logger},
		logger:  logger,
		retries: deps.ItemRetries,
	}
}

type monitorOutcome struct {
	ticket    *domain.Ticket
	log       *domain.SLALog
	changes   []sla.Change
	escalated bool
}

// MonitorPass reclassifies every monitored SLA log and escalates the ones
// that are due. A ticket that keeps failing is logged and skipped. Only a
// failure to list the work fails the pass.
func (s *SLAService) MonitorPass(ctx context.Context) (PassResult, error) {
	var result PassResult
	ids, err := s.store.SLALogs().ListMonitoredTicketIDs(ctx)
	if err != nil {
		return result, apperrors.StoreError("list monitored tickets", "sla_log", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Scanned++

		// The item in flight finishes even if ctx is cancelled meanwhile.
		itemCtx := context.WithoutCancel(ctx)
		var outcome *monitorOutcome
		err := retryTransient(ctx, s.retries, func() error {
			var err error
			outcome, err = s.monitorTicket(itemCtx, id)
			return err
		})
		if err != nil {
			result.Failed++
			s.logger.Warn("sla monitor skipped ticket", zap.String("ticket_id", id), zap.Error(err))
			continue
		}
		if outcome == nil {
			continue
		}
		result.Changed++
		now := outcome.log.UpdatedAt
		s.events.publishSLAChanges(itemCtx, outcome.ticket, outcome.log, outcome.changes, now)
		if outcome.escalated {
			s.publishEscalation(itemCtx, outcome)
		}
	}

	s.logger.Info("sla monitor pass finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("changed", result.Changed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// monitorTicket returns nil when nothing changed.
func (s *SLAService) monitorTicket(ctx context.Context, ticketID string) (*monitorOutcome, error) {
	var outcome *monitorOutcome
	err := s.store.InTx(ctx, func(tx repository.Repositories) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return apperrors.StoreError("load ticket", "ticket", err)
		}
		if !ticket.IsOpen() {
			return nil
		}
		log, err := tx.SLALogs().GetByTicketForUpdate(ctx, ticketID)
		if err != nil {
			return apperrors.StoreError("load sla log", "sla_log", err)
		}

		now := s.clock.Now()
		changes := sla.Reclassify(log, now)
		escalated := sla.Escalate(log, ticket.CreatedAt, now)
		if len(changes) == 0 && !escalated {
			return nil
		}
		log.UpdatedAt = now
		if err := tx.SLALogs().Update(ctx, log); err != nil {
			return apperrors.StoreError("save sla log", "sla_log", err)
		}
		outcome = &monitorOutcome{ticket: ticket, log: log, changes: changes, escalated: escalated}
		return nil
	})
	if err != nil {
		return nil, apperrors.StoreError("monitor ticket", "ticket", err)
	}
	return outcome, nil
}

func (s *SLAService) publishEscalation(ctx context.Context, o *monitorOutcome) {
	s.logger.Warn("sla escalated",
		zap.String("ticket_id", o.ticket.ID),
		zap.String("rule", o.log.RuleName),
	)
	s.events.publish(ctx, events.Event{
		Type:         events.EventSLAEscalated,
		TicketID:     o.ticket.ID,
		TicketNumber: o.ticket.Number,
		Actor:        events.ActorFrom(domain.SystemActor()),
		Timestamp:    *o.log.EscalatedAt,
		Payload: events.SLAEscalatedPayload{
			RuleName:     o.log.RuleName,
			AfterMinutes: o.log.EscalationAfterMinutes,
			EscalatedAt:  *o.log.EscalatedAt,
		},
	})
}
