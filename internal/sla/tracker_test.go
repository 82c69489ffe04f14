package sla

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func highRule() *domain.SLARule {
	return &domain.SLARule{
		ID:                       1,
		Name:                     "R1",
		Priority:                 priority(domain.TicketPriorityHigh),
		ResponseTimeMinutes:      60,
		ResolutionTimeMinutes:    240,
		ResponseWarningMinutes:   30,
		ResolutionWarningMinutes: 30,
		IsActive:                 true,
	}
}

func newTestLog() *domain.SLALog {
	ticket := &domain.Ticket{ID: "t-1", Priority: domain.TicketPriorityHigh, CreatedAt: t0}
	return NewLog(ticket, highRule(), t0)
}

func TestNewLogComputesTargets(t *testing.T) {
	log := newTestLog()
	assert.Equal(t, t0.Add(60*time.Minute), log.TargetResponseTime)
	assert.Equal(t, t0.Add(240*time.Minute), log.TargetResolutionTime)
	assert.Equal(t, domain.SLAStatusPending, log.ResponseStatus)
	assert.Equal(t, domain.SLAStatusPending, log.ResolutionStatus)
	require.NotNil(t, log.RuleID)
	assert.Equal(t, int64(1), *log.RuleID)
	assert.Equal(t, "R1", log.RuleName)
}

func TestReclassifyScenario(t *testing.T) {
	log := newTestLog()

	assert.Empty(t, Reclassify(log, t0.Add(10*time.Minute)))
	assert.Equal(t, domain.SLAStatusPending, log.ResponseStatus)

	changes := Reclassify(log, t0.Add(35*time.Minute))
	require.Len(t, changes, 1)
	assert.Equal(t, Change{Axis: AxisResponse, From: domain.SLAStatusPending, To: domain.SLAStatusWarning}, changes[0])

	changes = Reclassify(log, t0.Add(61*time.Minute))
	require.Len(t, changes, 1)
	assert.Equal(t, domain.SLAStatusBreached, log.ResponseStatus)
	assert.Equal(t, domain.SLAStatusPending, log.ResolutionStatus)
}

func TestReclassifyNeverRegresses(t *testing.T) {
	log := newTestLog()
	Reclassify(log, t0.Add(40*time.Minute))
	require.Equal(t, domain.SLAStatusWarning, log.ResponseStatus)

	// Out-of-order or repeated ticks must not move the axis back.
	for _, at := range []time.Duration{0, 5 * time.Minute, 40 * time.Minute, 20 * time.Minute} {
		assert.Empty(t, Reclassify(log, t0.Add(at)))
		assert.Equal(t, domain.SLAStatusWarning, log.ResponseStatus)
	}

	Reclassify(log, t0.Add(300*time.Minute))
	assert.Equal(t, domain.SLAStatusBreached, log.ResponseStatus)
	assert.Equal(t, domain.SLAStatusBreached, log.ResolutionStatus)
	assert.Empty(t, Reclassify(log, t0.Add(20*time.Minute)))
	assert.Equal(t, domain.SLAStatusBreached, log.ResponseStatus)
}

func TestReclassifyJumpsStraightToBreach(t *testing.T) {
	log := newTestLog()
	changes := Reclassify(log, t0.Add(90*time.Minute))
	require.Len(t, changes, 1)
	assert.Equal(t, domain.SLAStatusPending, changes[0].From)
	assert.Equal(t, domain.SLAStatusBreached, changes[0].To)
}

func TestRecordActualIsIdempotent(t *testing.T) {
	log := newTestLog()

	change, ok := RecordActualResponse(log, t0.Add(20*time.Minute))
	require.True(t, ok)
	assert.Equal(t, domain.SLAStatusOnTime, change.To)

	_, ok = RecordActualResponse(log, t0.Add(50*time.Minute))
	assert.False(t, ok)
	assert.Equal(t, t0.Add(20*time.Minute), *log.ActualResponseTime)

	_, ok = RecordActualResolution(log, t0.Add(300*time.Minute))
	require.True(t, ok)
	assert.Equal(t, domain.SLAStatusBreached, log.ResolutionStatus)
	_, ok = RecordActualResolution(log, t0.Add(400*time.Minute))
	assert.False(t, ok)
	assert.True(t, log.IsSettled())
}

func TestActualBeforeTargetAfterWarningIsOnTime(t *testing.T) {
	log := newTestLog()
	Reclassify(log, t0.Add(45*time.Minute))
	require.Equal(t, domain.SLAStatusWarning, log.ResponseStatus)

	change, ok := RecordActualResponse(log, t0.Add(50*time.Minute))
	require.True(t, ok)
	assert.Equal(t, domain.SLAStatusWarning, change.From)
	assert.Equal(t, domain.SLAStatusOnTime, log.ResponseStatus)
	assert.Empty(t, Reclassify(log, t0.Add(100*time.Minute)))
}

func TestEscalationFiresOnce(t *testing.T) {
	rule := highRule()
	rule.EscalationEnabled = true
	rule.EscalationAfterMinutes = 120
	ticket := &domain.Ticket{ID: "t-2", CreatedAt: t0}
	log := NewLog(ticket, rule, t0)

	// Past the grace period but resolution still comfortably pending.
	Reclassify(log, t0.Add(130*time.Minute))
	assert.False(t, Escalate(log, ticket.CreatedAt, t0.Add(130*time.Minute)))

	Reclassify(log, t0.Add(215*time.Minute))
	require.Equal(t, domain.SLAStatusWarning, log.ResolutionStatus)
	assert.True(t, Escalate(log, ticket.CreatedAt, t0.Add(215*time.Minute)))
	require.NotNil(t, log.EscalatedAt)

	for i := 0; i < 5; i++ {
		assert.False(t, Escalate(log, ticket.CreatedAt, t0.Add(time.Duration(220+i*15)*time.Minute)))
	}
	assert.Equal(t, t0.Add(215*time.Minute), *log.EscalatedAt)
}

func TestEscalationDisabled(t *testing.T) {
	log := newTestLog()
	Reclassify(log, t0.Add(500*time.Minute))
	assert.False(t, ShouldEscalate(log, t0, t0.Add(500*time.Minute)))
}
