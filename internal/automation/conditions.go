// Package automation evaluates automation rule conditions against tickets.
// It has no store access; the engine in the service package decides what
// to do with a match.
package automation

import (
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// ErrMalformedRule marks a rule whose definition cannot be evaluated.
var ErrMalformedRule = errors.New("malformed automation rule")

// Matches reports whether ticket satisfies every condition of rule at now.
func Matches(rule *domain.AutomationRule, ticket *domain.Ticket, now time.Time) (bool, error) {
	if err := Check(rule); err != nil {
		return false, err
	}
	if !ticket.IsOpen() {
		return false, nil
	}
	cond := rule.Conditions
	if cond.Category != nil && *cond.Category != ticket.Category {
		return false, nil
	}
	if cond.Priority != nil && *cond.Priority != ticket.Priority {
		return false, nil
	}
	if cond.DepartmentID != nil && (ticket.DepartmentID == nil || *cond.DepartmentID != *ticket.DepartmentID) {
		return false, nil
	}
	if cond.UnassignedOnly && ticket.AssigneeID != nil {
		return false, nil
	}

	status := cond.Status
	if rule.RuleType == domain.AutomationAutoClose {
		resolved := domain.TicketStatusResolved
		status = &resolved
	}
	if status != nil && *status != ticket.Status {
		return false, nil
	}
	if cond.MinutesInStatus != nil {
		if now.Sub(ticket.StatusChangedAt) < time.Duration(*cond.MinutesInStatus)*time.Minute {
			return false, nil
		}
	}
	return true, nil
}

// Check validates the parts of a rule the engine depends on.
func Check(rule *domain.AutomationRule) error {
	switch rule.RuleType {
	case domain.AutomationAutoAssign:
		if rule.Action.AssigneeID == nil || *rule.Action.AssigneeID == "" {
			return fmt.Errorf("%w: auto_assign rule %q has no assignee", ErrMalformedRule, rule.Name)
		}
	case domain.AutomationAutoClose:
		if rule.Conditions.MinutesInStatus == nil {
			return fmt.Errorf("%w: auto_close rule %q has no idle duration", ErrMalformedRule, rule.Name)
		}
		if rule.Conditions.Status != nil && *rule.Conditions.Status != domain.TicketStatusResolved {
			return fmt.Errorf("%w: auto_close rule %q must target resolved tickets", ErrMalformedRule, rule.Name)
		}
	case domain.AutomationAutoNotify:
	default:
		return fmt.Errorf("%w: unknown rule type %q", ErrMalformedRule, rule.RuleType)
	}
	if m := rule.Conditions.MinutesInStatus; m != nil && *m < 0 {
		return fmt.Errorf("%w: rule %q has negative minutes_in_status", ErrMalformedRule, rule.Name)
	}
	return nil
}
