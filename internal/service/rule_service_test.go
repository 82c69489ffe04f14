package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

func TestSLARuleNameUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.slaRule(t, highPriorityRule())
	second := f.slaRule(t, SLARuleInput{Name: "fallback", ResponseTimeMinutes: 120, ResolutionTimeMinutes: 480})

	_, err := f.rules.CreateSLARule(ctx, highPriorityRule())
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	in := highPriorityRule()
	in.Name = "fallback"
	_, err = f.rules.UpdateSLARule(ctx, first.ID, in)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	in = highPriorityRule()
	in.ResponseTimeMinutes = 45
	updated, err := f.rules.UpdateSLARule(ctx, first.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 45, updated.ResponseTimeMinutes)
	assert.True(t, updated.IsActive)

	rules, err := f.rules.ListSLARules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, []int64{first.ID, second.ID}, []int64{rules[0].ID, rules[1].ID})
}

func TestSLARuleValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		in    SLARuleInput
		field string
	}{
		{name: "missing name", in: SLARuleInput{ResponseTimeMinutes: 10, ResolutionTimeMinutes: 20}, field: "Name"},
		{name: "zero response", in: SLARuleInput{Name: "x", ResolutionTimeMinutes: 20}, field: "ResponseTimeMinutes"},
		{name: "resolution before response", in: SLARuleInput{Name: "x", ResponseTimeMinutes: 30, ResolutionTimeMinutes: 20}, field: "ResolutionTimeMinutes"},
		{name: "warning not below target", in: SLARuleInput{Name: "x", ResponseTimeMinutes: 30, ResolutionTimeMinutes: 60, ResponseWarningMinutes: 30}, field: "ResponseWarningMinutes"},
		{name: "unknown priority", in: SLARuleInput{Name: "x", Priority: ptr(domain.TicketPriority("BLOCKER")), ResponseTimeMinutes: 10, ResolutionTimeMinutes: 20}, field: "Priority"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.rules.CreateSLARule(context.Background(), tt.in)
			require.ErrorIs(t, err, apperrors.ErrValidation)
			assert.Contains(t, apperrors.ToDomainError(err).Details, tt.field)
		})
	}
}

func TestUnknownRuleIDs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.rules.GetSLARule(ctx, 99)
	assert.ErrorIs(t, err, apperrors.ErrRuleNotFound)
	assert.ErrorIs(t, f.rules.DeleteSLARule(ctx, 99), apperrors.ErrRuleNotFound)
	_, err = f.rules.UpdateSLARule(ctx, 99, highPriorityRule())
	assert.ErrorIs(t, err, apperrors.ErrRuleNotFound)

	_, err = f.rules.GetAutomationRule(ctx, 99)
	assert.ErrorIs(t, err, apperrors.ErrRuleNotFound)
	assert.ErrorIs(t, f.rules.DeleteAutomationRule(ctx, 99), apperrors.ErrRuleNotFound)
}

func TestRuleChangesDoNotRewriteExistingLogs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.slaRule(t, highPriorityRule())
	ticket := f.ticket(t, domain.TicketPriorityHigh, domain.TicketCategorySoftware)
	before := f.log(t, ticket.ID)

	in := highPriorityRule()
	in.ResponseTimeMinutes = 5
	in.ResponseWarningMinutes = 1
	_, err := f.rules.UpdateSLARule(ctx, rule.ID, in)
	require.NoError(t, err)
	assert.Equal(t, before.TargetResponseTime, f.log(t, ticket.ID).TargetResponseTime)

	require.NoError(t, f.rules.DeleteSLARule(ctx, rule.ID))
	after := f.log(t, ticket.ID)
	assert.Nil(t, after.RuleID)
	assert.Equal(t, "high", after.RuleName)
	assert.Equal(t, 30, after.ResponseWarningMinutes)
	assert.Equal(t, before.TargetResolutionTime, after.TargetResolutionTime)

	// The log keeps working from its snapshot.
	f.clock.Set(t0.Add(35 * time.Minute))
	_, err = f.sla.MonitorPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.SLAStatusWarning, f.log(t, ticket.ID).ResponseStatus)
}

func TestAutomationRuleValidation(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		in   AutomationRuleInput
	}{
		{name: "unknown type", in: AutomationRuleInput{Name: "x", RuleType: "auto_escalate"}},
		{name: "assign without assignee", in: AutomationRuleInput{Name: "x", RuleType: domain.AutomationAutoAssign}},
		{name: "close without idle duration", in: AutomationRuleInput{Name: "x", RuleType: domain.AutomationAutoClose}},
		{name: "close targeting pending", in: AutomationRuleInput{
			Name:       "x",
			RuleType:   domain.AutomationAutoClose,
			Conditions: domain.AutomationConditions{Status: ptr(domain.TicketStatusPending), MinutesInStatus: ptr(10)},
		}},
		{name: "bad category", in: AutomationRuleInput{
			Name:       "x",
			RuleType:   domain.AutomationAutoNotify,
			Conditions: domain.AutomationConditions{Category: ptr(domain.TicketCategory("PRINTERS"))},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.rules.CreateAutomationRule(context.Background(), tt.in)
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestAutomationRuleLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rule := f.automationRule(t, AutomationRuleInput{
		Name:       "close stale",
		RuleType:   domain.AutomationAutoClose,
		Conditions: domain.AutomationConditions{MinutesInStatus: ptr(1440)},
	})
	assert.True(t, rule.IsActive)

	_, err := f.rules.CreateAutomationRule(ctx, AutomationRuleInput{
		Name:     "close stale",
		RuleType: domain.AutomationAutoNotify,
	})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	updated, err := f.rules.UpdateAutomationRule(ctx, rule.ID, AutomationRuleInput{
		Name:       "close stale",
		RuleType:   domain.AutomationAutoClose,
		Conditions: domain.AutomationConditions{MinutesInStatus: ptr(720)},
		IsActive:   ptr(false),
	})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 720, *updated.Conditions.MinutesInStatus)

	list, err := f.rules.ListAutomationRules(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, f.rules.DeleteAutomationRule(ctx, rule.ID))
	_, err = f.rules.GetAutomationRule(ctx, rule.ID)
	assert.ErrorIs(t, err, apperrors.ErrRuleNotFound)
}
