package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/repository/memstore"
)

// gatedStore holds its first transaction at the door until released, so a
// competing writer can commit in between.
type gatedStore struct {
	*memstore.Store
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedStore(store *memstore.Store) *gatedStore {
	return &gatedStore{Store: store, entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) InTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.Store.InTx(ctx, fn)
}

func TestTransitionStampsTimeAfterAcquiringTicket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.slaRule(t, highPriorityRule())
	ticket := f.ticket(t, domain.TicketPriorityHigh, domain.TicketCategorySoftware)

	gated := newGatedStore(f.store)
	slow := NewTicketService(TicketDependencies{
		Store: gated, Clock: f.clock, Dispatcher: f.events, Logger: zap.NewNop(),
	})

	f.clock.Set(t0.Add(20 * time.Minute))
	done := make(chan error, 1)
	go func() {
		_, err := slow.Transition(ctx, ticket.ID, domain.TicketStatusClosed, domain.StaffActor("agent-2"), "")
		done <- err
	}()

	<-gated.entered
	f.clock.Set(t0.Add(30 * time.Minute))
	f.transition(t, ticket.ID, domain.TicketStatusResolved)
	close(gated.release)
	require.NoError(t, <-done)

	details, err := f.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, details.Ticket.ResolvedAt)
	require.NotNil(t, details.Ticket.ClosedAt)
	assert.False(t, details.Ticket.ClosedAt.Before(*details.Ticket.ResolvedAt))
	assert.Equal(t, t0.Add(30*time.Minute), details.Ticket.StatusChangedAt)

	require.Len(t, details.History, 2)
	assert.Equal(t, domain.TicketStatusResolved, details.History[0].Status)
	assert.Equal(t, domain.TicketStatusClosed, details.History[1].Status)
	assert.False(t, details.History[1].CreatedAt.Before(details.History[0].CreatedAt))
}

func TestAutomationEvaluatesAtLockTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.automationRule(t, AutomationRuleInput{
		Name:       "close resolved after an hour",
		RuleType:   domain.AutomationAutoClose,
		Conditions: domain.AutomationConditions{MinutesInStatus: ptr(60)},
	})
	ticket := f.ticket(t, domain.TicketPriorityMedium, domain.TicketCategoryNetwork)
	f.transition(t, ticket.ID, domain.TicketStatusResolved)

	gated := newGatedStore(f.store)
	slow := NewAutomationService(AutomationDependencies{
		Store: gated, Clock: f.clock, Dispatcher: f.events, Logger: zap.NewNop(), ItemRetries: 2,
	})

	f.clock.Set(t0.Add(30 * time.Minute))
	done := make(chan error, 1)
	go func() {
		_, err := slow.RunPass(ctx)
		done <- err
	}()

	<-gated.entered
	f.clock.Set(t0.Add(61 * time.Minute))
	close(gated.release)
	require.NoError(t, <-done)

	details, err := f.tickets.GetTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusClosed, details.Ticket.Status)
	require.NotNil(t, details.Ticket.ClosedAt)
	assert.Equal(t, t0.Add(61*time.Minute), *details.Ticket.ClosedAt)
}
