package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/clock"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/repository/memstore"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store      *memstore.Store
	clock      *clock.FakeClock
	events     *events.Recorder
	tickets    *TicketService
	sla        *SLAService
	automation *AutomationService
	rules      *RuleService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	clk := clock.Fake(t0)
	rec := events.NewRecorder()
	logger := zap.NewNop()

	return &fixture{
		store:  store,
		clock:  clk,
		events: rec,
		tickets: NewTicketService(TicketDependencies{
			Store: store, Clock: clk, Dispatcher: rec, Logger: logger,
		}),
		sla: NewSLAService(SLADependencies{
			Store: store, Clock: clk, Dispatcher: rec, Logger: logger, ItemRetries: 2,
		}),
		automation: NewAutomationService(AutomationDependencies{
			Store: store, Clock: clk, Dispatcher: rec, Logger: logger, ItemRetries: 2,
		}),
		rules: NewRuleService(store, clk, logger),
	}
}

func ptr[T any](v T) *T { return &v }

func (f *fixture) slaRule(t *testing.T, in SLARuleInput) *domain.SLARule {
	t.Helper()
	rule, err := f.rules.CreateSLARule(context.Background(), in)
	require.NoError(t, err)
	return rule
}

func (f *fixture) automationRule(t *testing.T, in AutomationRuleInput) *domain.AutomationRule {
	t.Helper()
	rule, err := f.rules.CreateAutomationRule(context.Background(), in)
	require.NoError(t, err)
	return rule
}

func (f *fixture) ticket(t *testing.T, priority domain.TicketPriority, category domain.TicketCategory) *domain.Ticket {
	t.Helper()
	ticket, _, err := f.tickets.CreateTicket(context.Background(), TicketCreateInput{
		OwnerID:  "user-1",
		Title:    "cannot log in",
		Category: category,
		Priority: priority,
	})
	require.NoError(t, err)
	return ticket
}

func (f *fixture) transition(t *testing.T, id string, next domain.TicketStatus) *domain.Ticket {
	t.Helper()
	ticket, err := f.tickets.Transition(context.Background(), id, next, domain.StaffActor("agent-1"), "")
	require.NoError(t, err)
	return ticket
}

func (f *fixture) log(t *testing.T, ticketID string) *domain.SLALog {
	t.Helper()
	log, err := f.store.SLALogs().GetByTicket(context.Background(), ticketID)
	require.NoError(t, err)
	return log
}

func (f *fixture) history(t *testing.T, ticketID string) []domain.TicketHistory {
	t.Helper()
	history, err := f.tickets.ListHistory(context.Background(), ticketID)
	require.NoError(t, err)
	return history
}

// highPriorityRule is R1: HIGH priority, 60m response, 240m resolution,
// 30m warning on both axes.
func highPriorityRule() SLARuleInput {
	return SLARuleInput{
		Name:                     "high",
		Priority:                 ptr(domain.TicketPriorityHigh),
		ResponseTimeMinutes:      60,
		ResolutionTimeMinutes:    240,
		ResponseWarningMinutes:   30,
		ResolutionWarningMinutes: 30,
	}
}
