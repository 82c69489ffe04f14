package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/automation"
	"github.com/spec-kit/helpdesk-sla/internal/clock"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

// AutomationService runs the automation engine.
type AutomationService struct {
	store   repository.Store
	clock   clock.Clock
	events  *eventPublisher
	logger  *zap.Logger
	retries int
}

// AutomationDependencies bundles collaborators for the automation service.
type AutomationDependencies struct {
	Store       repository.Store
	Clock       clock.Clock
	Dispatcher  events.Dispatcher
	Logger      *zap.Logger
	ItemRetries int
}

// NewAutomationService constructs the service.
func NewAutomationService(deps AutomationDependencies) *AutomationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger = logger.Named("automation")
	return &AutomationService{
		store:   deps.Store,
		clock:   clk,
		events:  &eventPublisher{dispatcher: deps.Dispatcher, logger: logger},
		logger:  logger,
		retries: deps.ItemRetries,
	}
}

// ticketActions collects what one ticket's transaction did so it can be
// published after commit.
type ticketActions struct {
	transitions []*transition
	notify      []events.Event
	now         time.Time
}

func (a *ticketActions) changed() bool {
	return len(a.transitions) > 0 || len(a.notify) > 0
}

// RunPass evaluates every active rule, in ascending id order, against
// every open ticket.
func (s *AutomationService) RunPass(ctx context.Context) (PassResult, error) {
	var result PassResult
	rules, err := s.store.AutomationRules().ListActive(ctx)
	if err != nil {
		return result, apperrors.StoreError("list automation rules", "automation_rule", err)
	}
	if len(rules) == 0 {
		return result, nil
	}
	tickets, err := s.store.Tickets().ListOpen(ctx)
	if err != nil {
		return result, apperrors.StoreError("list open tickets", "ticket", err)
	}

	for _, ticket := range tickets {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Scanned++

		itemCtx := context.WithoutCancel(ctx)
		var actions *ticketActions
		err := retryTransient(ctx, s.retries, func() error {
			var err error
			actions, err = s.runTicket(itemCtx, ticket.ID, rules)
			return err
		})
		if err != nil {
			result.Failed++
			s.logger.Warn("automation skipped ticket", zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		if !actions.changed() {
			continue
		}
		result.Changed++
		for _, tr := range actions.transitions {
			s.events.publishTransition(itemCtx, tr, domain.SystemActor(), actions.now)
		}
		for _, event := range actions.notify {
			s.events.publish(itemCtx, event)
		}
	}

	s.logger.Info("automation pass finished",
		zap.Int("rules", len(rules)),
		zap.Int("scanned", result.Scanned),
		zap.Int("changed", result.Changed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *AutomationService) runTicket(ctx context.Context, ticketID string, rules []domain.AutomationRule) (*ticketActions, error) {
	var actions *ticketActions
	err := s.store.InTx(ctx, func(tx repository.Repositories) error {
		ticket, err := tx.Tickets().GetForUpdate(ctx, ticketID)
		if err != nil {
			return apperrors.StoreError("load ticket", "ticket", err)
		}
		actions = &ticketActions{now: s.clock.Now()}
		for i := range rules {
			rule := &rules[i]
			matched, err := automation.Matches(rule, ticket, actions.now)
			if err != nil {
				s.logger.Warn("automation rule skipped",
					zap.Int64("rule_id", rule.ID),
					zap.String("rule", rule.Name),
					zap.Error(err),
				)
				continue
			}
			if !matched {
				continue
			}
			if err := s.apply(ctx, tx, rule, ticket, actions); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.StoreError("run automation", "ticket", err)
	}
	return actions, nil
}

func (s *AutomationService) apply(ctx context.Context, tx repository.Repositories, rule *domain.AutomationRule,
	ticket *domain.Ticket, actions *ticketActions) error {
	now := actions.now
	switch rule.RuleType {
	case domain.AutomationAutoAssign:
		// First assigning rule wins; resolved tickets are left alone.
		if ticket.AssigneeID != nil || ticket.Status == domain.TicketStatusResolved {
			return nil
		}
		assignee := *rule.Action.AssigneeID
		ticket.AssigneeID = &assignee
		if ticket.Status == domain.TicketStatusPending {
			tr, err := applyTransition(ctx, tx, ticket, domain.TicketStatusInProgress, domain.SystemActor(),
				fmt.Sprintf("auto-assigned to %s by rule %q", assignee, rule.Name), now)
			if err != nil {
				return err
			}
			actions.transitions = append(actions.transitions, tr)
		} else {
			ticket.UpdatedAt = now
			if err := tx.Tickets().Update(ctx, ticket); err != nil {
				return apperrors.StoreError("assign ticket", "ticket", err)
			}
		}

	case domain.AutomationAutoClose:
		tr, err := applyTransition(ctx, tx, ticket, domain.TicketStatusClosed, domain.SystemActor(),
			fmt.Sprintf("auto-closed by rule %q", rule.Name), now)
		if err != nil {
			return err
		}
		actions.transitions = append(actions.transitions, tr)

	case domain.AutomationAutoNotify:
		inserted, err := s.recordExecution(ctx, tx, rule, ticket, now)
		if err != nil {
			return err
		}
		if inserted {
			actions.notify = append(actions.notify, events.Event{
				Type:         events.EventAutomationNotify,
				TicketID:     ticket.ID,
				TicketNumber: ticket.Number,
				Actor:        events.ActorFrom(domain.SystemActor()),
				Timestamp:    now,
				Payload: events.AutomationNotifyPayload{
					RuleID:   rule.ID,
					RuleName: rule.Name,
					Message:  rule.Action.Message,
					Channel:  rule.Action.Channel,
				},
			})
		}
		return nil
	}

	_, err := s.recordExecution(ctx, tx, rule, ticket, now)
	return err
}

// recordExecution inserts the (rule, ticket) marker unless it exists.
func (s *AutomationService) recordExecution(ctx context.Context, tx repository.Repositories, rule *domain.AutomationRule,
	ticket *domain.Ticket, now time.Time) (bool, error) {
	inserted, err := tx.Executions().Record(ctx, &domain.AutomationExecution{
		RuleID:   rule.ID,
		TicketID: ticket.ID,
		RuleType: rule.RuleType,
		FiredAt:  now,
	})
	if err != nil {
		return false, apperrors.StoreError("record automation execution", "automation_execution", err)
	}
	return inserted, nil
}
