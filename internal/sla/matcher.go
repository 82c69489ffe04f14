// Package sla holds the store-independent SLA logic: picking the rule for
// a new ticket, computing deadlines, and reclassifying compliance as time
// passes.
package sla

import "github.com/spec-kit/helpdesk-sla/internal/domain"

// Specificity returns how many scoping fields rule defines, and whether
// every one of them matches ticket. Nil rule fields are wildcards.
func Specificity(rule *domain.SLARule, ticket *domain.Ticket) (int, bool) {
	count := 0
	if rule.Priority != nil {
		if *rule.Priority != ticket.Priority {
			return 0, false
		}
		count++
	}
	if rule.Category != nil {
		if *rule.Category != ticket.Category {
			return 0, false
		}
		count++
	}
	if rule.DepartmentID != nil {
		if ticket.DepartmentID == nil || *rule.DepartmentID != *ticket.DepartmentID {
			return 0, false
		}
		count++
	}
	return count, true
}

// MatchRule selects the most specific active rule for ticket. Ties go to
// the lowest rule id so the choice is reproducible whatever order rules
// arrive in. Returns nil when nothing matches.
func MatchRule(rules []domain.SLARule, ticket *domain.Ticket) *domain.SLARule {
	var best *domain.SLARule
	bestScore := -1
	for i := range rules {
		rule := &rules[i]
		if !rule.IsActive {
			continue
		}
		score, ok := Specificity(rule, ticket)
		if !ok {
			continue
		}
		if score > bestScore || (score == bestScore && rule.ID < best.ID) {
			best = rule
			bestScore = score
		}
	}
	return best
}
