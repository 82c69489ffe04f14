package sla

import (
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// Axis names one of the two tracked SLA dimensions.
type Axis string

const (
	AxisResponse   Axis = "response"
	AxisResolution Axis = "resolution"
)

// Change describes one axis moving to a new status.
type Change struct {
	Axis Axis
	From domain.SLAStatus
	To   domain.SLAStatus
}

// NewLog builds the SLA log for a ticket created at now under rule.
func NewLog(ticket *domain.Ticket, rule *domain.SLARule, now time.Time) *domain.SLALog {
	ruleID := rule.ID
	return &domain.SLALog{
		TicketID:                 ticket.ID,
		RuleID:                   &ruleID,
		RuleName:                 rule.Name,
		ResponseWarningMinutes:   rule.ResponseWarningMinutes,
		ResolutionWarningMinutes: rule.ResolutionWarningMinutes,
		EscalationEnabled:        rule.EscalationEnabled,
		EscalationAfterMinutes:   rule.EscalationAfterMinutes,
		TargetResponseTime:       now.Add(minutes(rule.ResponseTimeMinutes)),
		TargetResolutionTime:     now.Add(minutes(rule.ResolutionTimeMinutes)),
		ResponseStatus:           domain.SLAStatusPending,
		ResolutionStatus:         domain.SLAStatusPending,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
}

// RecordActualResponse stamps the first response time. Later calls are
// no-ops. The response axis is finalized straight away.
func RecordActualResponse(log *domain.SLALog, now time.Time) (Change, bool) {
	if log.ActualResponseTime != nil {
		return Change{}, false
	}
	at := now
	log.ActualResponseTime = &at
	log.UpdatedAt = now
	return settle(AxisResponse, &log.ResponseStatus, at, log.TargetResponseTime)
}

// RecordActualResolution stamps the resolution time once and finalizes
// the resolution axis.
func RecordActualResolution(log *domain.SLALog, now time.Time) (Change, bool) {
	if log.ActualResolutionTime != nil {
		return Change{}, false
	}
	at := now
	log.ActualResolutionTime = &at
	log.UpdatedAt = now
	return settle(AxisResolution, &log.ResolutionStatus, at, log.TargetResolutionTime)
}

// Reclassify re-evaluates both axes at now and returns the axes whose
// status changed. Statuses only move forward: PENDING -> WARNING ->
// BREACHED, or to ON_TIME/BREACHED once an actual time exists.
func Reclassify(log *domain.SLALog, now time.Time) []Change {
	var changes []Change
	if c, ok := classify(AxisResponse, &log.ResponseStatus, log.ActualResponseTime,
		log.TargetResponseTime, log.ResponseWarningMinutes, now); ok {
		changes = append(changes, c)
	}
	if c, ok := classify(AxisResolution, &log.ResolutionStatus, log.ActualResolutionTime,
		log.TargetResolutionTime, log.ResolutionWarningMinutes, now); ok {
		changes = append(changes, c)
	}
	if len(changes) > 0 {
		log.UpdatedAt = now
	}
	return changes
}

// ShouldEscalate reports whether the escalation for log is due at now.
func ShouldEscalate(log *domain.SLALog, ticketCreatedAt, now time.Time) bool {
	if !log.EscalationEnabled || log.Escalated || log.ActualResolutionTime != nil {
		return false
	}
	if now.Before(ticketCreatedAt.Add(minutes(log.EscalationAfterMinutes))) {
		return false
	}
	return log.ResolutionStatus == domain.SLAStatusWarning || log.ResolutionStatus == domain.SLAStatusBreached
}

// Escalate marks log escalated if it is due. Returns true only on the
// call that flips the flag.
func Escalate(log *domain.SLALog, ticketCreatedAt, now time.Time) bool {
	if !ShouldEscalate(log, ticketCreatedAt, now) {
		return false
	}
	at := now
	log.Escalated = true
	log.EscalatedAt = &at
	log.UpdatedAt = now
	return true
}

func classify(axis Axis, status *domain.SLAStatus, actual *time.Time, target time.Time, warnMinutes int, now time.Time) (Change, bool) {
	if status.IsTerminal() {
		return Change{}, false
	}
	if actual != nil {
		return settle(axis, status, *actual, target)
	}
	next := *status
	switch {
	case !now.Before(target):
		next = domain.SLAStatusBreached
	case warnMinutes > 0 && !now.Before(target.Add(-minutes(warnMinutes))):
		next = domain.SLAStatusWarning
	}
	if next == *status {
		return Change{}, false
	}
	change := Change{Axis: axis, From: *status, To: next}
	*status = next
	return change, true
}

// settle finalizes an axis from its actual time. An axis already
// terminal is left alone.
func settle(axis Axis, status *domain.SLAStatus, actual, target time.Time) (Change, bool) {
	if status.IsTerminal() {
		return Change{}, false
	}
	next := domain.SLAStatusOnTime
	if actual.After(target) {
		next = domain.SLAStatusBreached
	}
	change := Change{Axis: axis, From: *status, To: next}
	*status = next
	return change, true
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
