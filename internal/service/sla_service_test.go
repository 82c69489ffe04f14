package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

func TestMonitorPassWarnsThenBreaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.slaRule(t, highPriorityRule())
	ticket := f.ticket(t, domain.TicketPriorityHigh, domain.TicketCategorySoftware)

	f.clock.Set(t0.Add(35 * time.Minute))
	result, err := f.sla.MonitorPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Scanned: 1, Changed: 1}, result)
	log := f.log(t, ticket.ID)
	assert.Equal(t, domain.SLAStatusWarning, log.ResponseStatus)
	assert.Equal(t, domain.SLAStatusPending, log.ResolutionStatus)
	require.Len(t, f.events.Events(events.EventSLAWarning), 1)

	// Still in warning: no second notification.
	f.clock.Set(t0.Add(50 * time.Minute))
	result, err = f.sla.MonitorPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Changed)
	assert.Len(t, f.events.Events(events.EventSLAWarning), 1)

	f.clock.Set(t0.Add(61 * time.Minute))
	_, err = f.sla.MonitorPass(ctx)
	require.NoError(t, err)
	log = f.log(t, ticket.ID)
	assert.Equal(t, domain.SLAStatusBreached, log.ResponseStatus)
	breaches := f.events.Events(events.EventSLABreached)
	require.Len(t, breaches, 1)
	payload := breaches[0].Payload.(events.SLAStatusPayload)
	assert.Equal(t, "response", payload.Axis)
	assert.Equal(t, domain.SLAStatusWarning, payload.From)
	assert.Equal(t, t0.Add(60*time.Minute), payload.Target)

	for i := 0; i < 3; i++ {
		f.clock.Advance(time.Minute)
		_, err = f.sla.MonitorPass(ctx)
		require.NoError(t, err)
	}
	assert.Len(t, f.events.Events(events.EventSLABreached), 1)
	assert.Equal(t, domain.SLAStatusBreached, f.log(t, ticket.ID).ResponseStatus)
}

func TestMonitorPassEscalatesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.slaRule(t, SLARuleInput{
		Name:                     "escalating",
		ResponseTimeMinutes:      60,
		ResolutionTimeMinutes:    180,
		ResolutionWarningMinutes: 30,
		EscalationEnabled:        true,
		EscalationAfterMinutes:   120,
	})
	ticket := f.ticket(t, domain.TicketPriorityMedium, domain.TicketCategorySoftware)

	// Past the escalation delay but resolution is not yet at risk.
	f.clock.Set(t0.Add(130 * time.Minute))
	_, err := f.sla.MonitorPass(ctx)
	require.NoError(t, err)
	assert.False(t, f.log(t, ticket.ID).Escalated)

	f.clock.Set(t0.Add(155 * time.Minute))
	_, err = f.sla.MonitorPass(ctx)
	require.NoError(t, err)
	log := f.log(t, ticket.ID)
	assert.Equal(t, domain.SLAStatusWarning, log.ResolutionStatus)
	assert.True(t, log.Escalated)
	require.NotNil(t, log.EscalatedAt)
	assert.Equal(t, t0.Add(155*time.Minute), *log.EscalatedAt)

	for _, at := range []time.Duration{160, 181, 240, 600} {
		f.clock.Set(t0.Add(at * time.Minute))
		_, err := f.sla.MonitorPass(ctx)
		require.NoError(t, err)
	}
	escalations := f.events.Events(events.EventSLAEscalated)
	require.Len(t, escalations, 1)
	assert.Equal(t, 120, escalations[0].Payload.(events.SLAEscalatedPayload).AfterMinutes)

	// Nothing left to do: both axes breached and escalation spent.
	ids, err := f.store.SLALogs().ListMonitoredTicketIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestMonitorPassIsolatesFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.slaRule(t, highPriorityRule())
	good := f.ticket(t, domain.TicketPriorityHigh, domain.TicketCategorySoftware)
	bad := f.ticket(t, domain.TicketPriorityHigh, domain.TicketCategoryHardware)

	f.store.SetFault("tickets.GetForUpdate:"+bad.ID, errors.New("connection reset"))
	f.clock.Set(t0.Add(35 * time.Minute))

	result, err := f.sla.MonitorPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Scanned: 2, Changed: 1, Failed: 1}, result)
	assert.Equal(t, domain.SLAStatusWarning, f.log(t, good.ID).ResponseStatus)
	assert.Equal(t, domain.SLAStatusPending, f.log(t, bad.ID).ResponseStatus)

	// The skipped ticket is picked up once the store recovers.
	f.store.SetFault("tickets.GetForUpdate:"+bad.ID, nil)
	result, err = f.sla.MonitorPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Changed)
	assert.Equal(t, domain.SLAStatusWarning, f.log(t, bad.ID).ResponseStatus)
}

func TestMonitorPassFailsWhenListingFails(t *testing.T) {
	f := newFixture(t)
	f.store.SetFault("slaLogs.ListMonitoredTicketIDs", errors.New("store unreachable"))

	_, err := f.sla.MonitorPass(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
}

func TestMonitorPassSkipsClosedTickets(t *testing.T) {
	f := newFixture(t)
	f.slaRule(t, highPriorityRule())
	ticket := f.ticket(t, domain.TicketPriorityHigh, domain.TicketCategorySoftware)
	f.transition(t, ticket.ID, domain.TicketStatusClosed)

	f.clock.Set(t0.Add(500 * time.Minute))
	result, err := f.sla.MonitorPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Scanned)
	assert.Empty(t, f.events.Events(events.EventSLAWarning, events.EventSLABreached))
}

func TestMonitorPassStopsBetweenItemsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.slaRule(t, highPriorityRule())
	f.ticket(t, domain.TicketPriorityHigh, domain.TicketCategorySoftware)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.sla.MonitorPass(ctx)
	assert.Error(t, err)
}

func TestNotificationFailureDoesNotBlockSLAState(t *testing.T) {
	f := newFixture(t)
	var attempts int
	failing := notify.SinkFunc(func(context.Context, notify.Notification) error {
		attempts++
		return apperrors.NewNotificationDeliveryError("webhook", errors.New("503"))
	})
	NewNotificationService(f.events, failing, zap.NewNop()).RegisterHandlers()

	f.slaRule(t, highPriorityRule())
	ticket := f.ticket(t, domain.TicketPriorityHigh, domain.TicketCategorySoftware)

	f.clock.Set(t0.Add(61 * time.Minute))
	result, err := f.sla.MonitorPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Changed)
	assert.Equal(t, domain.SLAStatusBreached, f.log(t, ticket.ID).ResponseStatus)
	assert.Equal(t, 2, attempts, "ticket_created and sla_breached")
}

func TestRetryTransient(t *testing.T) {
	ctx := context.Background()
	transient := apperrors.NewTransientStoreError("op", errors.New("blip"))

	calls := 0
	err := retryTransient(ctx, 2, func() error {
		calls++
		if calls < 3 {
			return transient
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryTransient(ctx, 2, func() error {
		calls++
		return transient
	})
	assert.ErrorIs(t, err, apperrors.ErrTransientStore)
	assert.Equal(t, 3, calls)

	calls = 0
	err = retryTransient(ctx, 2, func() error {
		calls++
		return apperrors.NewInvalidTransition("CLOSED", "PENDING")
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
	assert.Equal(t, 1, calls)
}
