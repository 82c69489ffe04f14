package memstore

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
)

type ticketRepo struct{ v *view }

func (r ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	st, unlock, err := r.v.begin(ctx, "tickets.Create")
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := st.tickets[ticket.ID]; ok {
		return fmt.Errorf("ticket %s: %w", ticket.ID, repository.ErrDuplicate)
	}
	for _, t := range st.tickets {
		if t.Number == ticket.Number {
			return fmt.Errorf("ticket number %s: %w", ticket.Number, repository.ErrDuplicate)
		}
	}
	c := ticket.Clone()
	c.UpdatedAt = c.CreatedAt
	c.StatusChangedAt = c.CreatedAt
	st.tickets[ticket.ID] = c
	return nil
}

func (r ticketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	st, unlock, err := r.v.beginFor(ctx, "tickets.Update", ticket.ID)
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := st.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	st.tickets[ticket.ID] = ticket.Clone()
	return nil
}

func (r ticketRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	st, unlock, err := r.v.beginFor(ctx, "tickets.GetByID", id)
	if err != nil {
		return nil, err
	}
	defer unlock()
	t, ok := st.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t.Clone(), nil
}

func (r ticketRepo) GetForUpdate(ctx context.Context, id string) (*domain.Ticket, error) {
	st, unlock, err := r.v.beginFor(ctx, "tickets.GetForUpdate", id)
	if err != nil {
		return nil, err
	}
	defer unlock()
	t, ok := st.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t.Clone(), nil
}

func (r ticketRepo) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	st, unlock, err := r.v.begin(ctx, "tickets.ListOpen")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var result []domain.Ticket
	for _, t := range st.tickets {
		if t.IsOpen() {
			result = append(result, *t.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

type historyRepo struct{ v *view }

func (r historyRepo) Create(ctx context.Context, history *domain.TicketHistory) error {
	st, unlock, err := r.v.beginFor(ctx, "history.Create", history.TicketID)
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := st.tickets[history.TicketID]; !ok {
		return fmt.Errorf("history for unknown ticket %s: %w", history.TicketID, pgx.ErrNoRows)
	}
	entry := *history
	if history.ChangedByID != nil {
		id := *history.ChangedByID
		entry.ChangedByID = &id
	}
	st.history[history.TicketID] = append(st.history[history.TicketID], entry)
	return nil
}

func (r historyRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.TicketHistory, error) {
	st, unlock, err := r.v.beginFor(ctx, "history.ListByTicket", ticketID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	entries := st.history[ticketID]
	result := make([]domain.TicketHistory, len(entries))
	copy(result, entries)
	// Stable so entries sharing a timestamp keep insertion order.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

type slaRuleRepo struct{ v *view }

func cloneSLARule(rule *domain.SLARule) *domain.SLARule {
	c := *rule
	if rule.Priority != nil {
		p := *rule.Priority
		c.Priority = &p
	}
	if rule.Category != nil {
		cat := *rule.Category
		c.Category = &cat
	}
	if rule.DepartmentID != nil {
		d := *rule.DepartmentID
		c.DepartmentID = &d
	}
	return &c
}

func (r slaRuleRepo) Create(ctx context.Context, rule *domain.SLARule) error {
	st, unlock, err := r.v.begin(ctx, "slaRules.Create")
	if err != nil {
		return err
	}
	defer unlock()
	for _, existing := range st.slaRules {
		if existing.Name == rule.Name {
			return fmt.Errorf("sla rule name %q: %w", rule.Name, repository.ErrDuplicate)
		}
	}
	st.nextSLARuleID++
	rule.ID = st.nextSLARuleID
	rule.UpdatedAt = rule.CreatedAt
	st.slaRules[rule.ID] = cloneSLARule(rule)
	return nil
}

func (r slaRuleRepo) Update(ctx context.Context, rule *domain.SLARule) error {
	st, unlock, err := r.v.begin(ctx, "slaRules.Update")
	if err != nil {
		return err
	}
	defer unlock()
	existing, ok := st.slaRules[rule.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	for _, other := range st.slaRules {
		if other.ID != rule.ID && other.Name == rule.Name {
			return fmt.Errorf("sla rule name %q: %w", rule.Name, repository.ErrDuplicate)
		}
	}
	c := cloneSLARule(rule)
	c.CreatedAt = existing.CreatedAt
	st.slaRules[rule.ID] = c
	return nil
}

func (r slaRuleRepo) Delete(ctx context.Context, id int64) error {
	st, unlock, err := r.v.begin(ctx, "slaRules.Delete")
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := st.slaRules[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(st.slaRules, id)
	for ticketID, log := range st.slaLogs {
		if log.RuleID != nil && *log.RuleID == id {
			c := log.Clone()
			c.RuleID = nil
			st.slaLogs[ticketID] = c
		}
	}
	return nil
}

func (r slaRuleRepo) GetByID(ctx context.Context, id int64) (*domain.SLARule, error) {
	st, unlock, err := r.v.begin(ctx, "slaRules.GetByID")
	if err != nil {
		return nil, err
	}
	defer unlock()
	rule, ok := st.slaRules[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneSLARule(rule), nil
}

func (r slaRuleRepo) GetByName(ctx context.Context, name string) (*domain.SLARule, error) {
	st, unlock, err := r.v.begin(ctx, "slaRules.GetByName")
	if err != nil {
		return nil, err
	}
	defer unlock()
	for _, rule := range st.slaRules {
		if rule.Name == name {
			return cloneSLARule(rule), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r slaRuleRepo) List(ctx context.Context) ([]domain.SLARule, error) {
	return r.list(ctx, "slaRules.List", false)
}

func (r slaRuleRepo) ListActive(ctx context.Context) ([]domain.SLARule, error) {
	return r.list(ctx, "slaRules.ListActive", true)
}

func (r slaRuleRepo) list(ctx context.Context, op string, activeOnly bool) ([]domain.SLARule, error) {
	st, unlock, err := r.v.begin(ctx, op)
	if err != nil {
		return nil, err
	}
	defer unlock()
	var result []domain.SLARule
	for _, rule := range st.slaRules {
		if activeOnly && !rule.IsActive {
			continue
		}
		result = append(result, *cloneSLARule(rule))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type slaLogRepo struct{ v *view }

func (r slaLogRepo) GetOrCreate(ctx context.Context, log *domain.SLALog) (*domain.SLALog, bool, error) {
	st, unlock, err := r.v.beginFor(ctx, "slaLogs.GetOrCreate", log.TicketID)
	if err != nil {
		return nil, false, err
	}
	defer unlock()
	if existing, ok := st.slaLogs[log.TicketID]; ok {
		return existing.Clone(), false, nil
	}
	if _, ok := st.tickets[log.TicketID]; !ok {
		return nil, false, fmt.Errorf("sla log for unknown ticket %s: %w", log.TicketID, pgx.ErrNoRows)
	}
	c := log.Clone()
	c.Escalated = false
	c.UpdatedAt = c.CreatedAt
	st.slaLogs[log.TicketID] = c
	return c.Clone(), true, nil
}

func (r slaLogRepo) GetByTicket(ctx context.Context, ticketID string) (*domain.SLALog, error) {
	return r.get(ctx, "slaLogs.GetByTicket", ticketID)
}

func (r slaLogRepo) GetByTicketForUpdate(ctx context.Context, ticketID string) (*domain.SLALog, error) {
	return r.get(ctx, "slaLogs.GetByTicketForUpdate", ticketID)
}

func (r slaLogRepo) get(ctx context.Context, op, ticketID string) (*domain.SLALog, error) {
	st, unlock, err := r.v.beginFor(ctx, op, ticketID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	log, ok := st.slaLogs[ticketID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return log.Clone(), nil
}

func (r slaLogRepo) Update(ctx context.Context, log *domain.SLALog) error {
	st, unlock, err := r.v.beginFor(ctx, "slaLogs.Update", log.TicketID)
	if err != nil {
		return err
	}
	defer unlock()
	existing, ok := st.slaLogs[log.TicketID]
	if !ok {
		return pgx.ErrNoRows
	}
	c := log.Clone()
	c.ID = existing.ID
	c.CreatedAt = existing.CreatedAt
	st.slaLogs[log.TicketID] = c
	return nil
}

func (r slaLogRepo) ListMonitoredTicketIDs(ctx context.Context) ([]string, error) {
	st, unlock, err := r.v.begin(ctx, "slaLogs.ListMonitoredTicketIDs")
	if err != nil {
		return nil, err
	}
	defer unlock()
	var logs []*domain.SLALog
	for ticketID, log := range st.slaLogs {
		t, ok := st.tickets[ticketID]
		if !ok || !t.IsOpen() {
			continue
		}
		escalationDue := log.EscalationEnabled && !log.Escalated && log.ActualResolutionTime == nil &&
			log.ResolutionStatus == domain.SLAStatusBreached
		if log.IsSettled() && !escalationDue {
			continue
		}
		logs = append(logs, log)
	}
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].TargetResolutionTime.Equal(logs[j].TargetResolutionTime) {
			return logs[i].TicketID < logs[j].TicketID
		}
		return logs[i].TargetResolutionTime.Before(logs[j].TargetResolutionTime)
	})
	ids := make([]string, 0, len(logs))
	for _, log := range logs {
		ids = append(ids, log.TicketID)
	}
	return ids, nil
}

type autoRuleRepo struct{ v *view }

func cloneAutomationRule(rule *domain.AutomationRule) *domain.AutomationRule {
	c := *rule
	cond := rule.Conditions
	if cond.Category != nil {
		v := *cond.Category
		c.Conditions.Category = &v
	}
	if cond.Priority != nil {
		v := *cond.Priority
		c.Conditions.Priority = &v
	}
	if cond.DepartmentID != nil {
		v := *cond.DepartmentID
		c.Conditions.DepartmentID = &v
	}
	if cond.Status != nil {
		v := *cond.Status
		c.Conditions.Status = &v
	}
	if cond.MinutesInStatus != nil {
		v := *cond.MinutesInStatus
		c.Conditions.MinutesInStatus = &v
	}
	if rule.Action.AssigneeID != nil {
		v := *rule.Action.AssigneeID
		c.Action.AssigneeID = &v
	}
	return &c
}

func (r autoRuleRepo) Create(ctx context.Context, rule *domain.AutomationRule) error {
	st, unlock, err := r.v.begin(ctx, "automationRules.Create")
	if err != nil {
		return err
	}
	defer unlock()
	for _, existing := range st.autoRules {
		if existing.Name == rule.Name {
			return fmt.Errorf("automation rule name %q: %w", rule.Name, repository.ErrDuplicate)
		}
	}
	st.nextAutoRuleID++
	rule.ID = st.nextAutoRuleID
	rule.UpdatedAt = rule.CreatedAt
	st.autoRules[rule.ID] = cloneAutomationRule(rule)
	return nil
}

func (r autoRuleRepo) Update(ctx context.Context, rule *domain.AutomationRule) error {
	st, unlock, err := r.v.begin(ctx, "automationRules.Update")
	if err != nil {
		return err
	}
	defer unlock()
	existing, ok := st.autoRules[rule.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	for _, other := range st.autoRules {
		if other.ID != rule.ID && other.Name == rule.Name {
			return fmt.Errorf("automation rule name %q: %w", rule.Name, repository.ErrDuplicate)
		}
	}
	c := cloneAutomationRule(rule)
	c.CreatedAt = existing.CreatedAt
	st.autoRules[rule.ID] = c
	return nil
}

func (r autoRuleRepo) Delete(ctx context.Context, id int64) error {
	st, unlock, err := r.v.begin(ctx, "automationRules.Delete")
	if err != nil {
		return err
	}
	defer unlock()
	if _, ok := st.autoRules[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(st.autoRules, id)
	for key := range st.executions {
		if key.ruleID == id {
			delete(st.executions, key)
		}
	}
	return nil
}

func (r autoRuleRepo) GetByID(ctx context.Context, id int64) (*domain.AutomationRule, error) {
	st, unlock, err := r.v.begin(ctx, "automationRules.GetByID")
	if err != nil {
		return nil, err
	}
	defer unlock()
	rule, ok := st.autoRules[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneAutomationRule(rule), nil
}

func (r autoRuleRepo) GetByName(ctx context.Context, name string) (*domain.AutomationRule, error) {
	st, unlock, err := r.v.begin(ctx, "automationRules.GetByName")
	if err != nil {
		return nil, err
	}
	defer unlock()
	for _, rule := range st.autoRules {
		if rule.Name == name {
			return cloneAutomationRule(rule), nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r autoRuleRepo) List(ctx context.Context) ([]domain.AutomationRule, error) {
	return r.list(ctx, "automationRules.List", false)
}

func (r autoRuleRepo) ListActive(ctx context.Context) ([]domain.AutomationRule, error) {
	return r.list(ctx, "automationRules.ListActive", true)
}

func (r autoRuleRepo) list(ctx context.Context, op string, activeOnly bool) ([]domain.AutomationRule, error) {
	st, unlock, err := r.v.begin(ctx, op)
	if err != nil {
		return nil, err
	}
	defer unlock()
	var result []domain.AutomationRule
	for _, rule := range st.autoRules {
		if activeOnly && !rule.IsActive {
			continue
		}
		result = append(result, *cloneAutomationRule(rule))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type executionRepo struct{ v *view }

func (r executionRepo) Record(ctx context.Context, exec *domain.AutomationExecution) (bool, error) {
	st, unlock, err := r.v.beginFor(ctx, "executions.Record", exec.TicketID)
	if err != nil {
		return false, err
	}
	defer unlock()
	key := execKey{ruleID: exec.RuleID, ticketID: exec.TicketID}
	if _, ok := st.executions[key]; ok {
		return false, nil
	}
	st.executions[key] = *exec
	return true, nil
}

func (r executionRepo) ListByTicket(ctx context.Context, ticketID string) ([]domain.AutomationExecution, error) {
	st, unlock, err := r.v.beginFor(ctx, "executions.ListByTicket", ticketID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	var result []domain.AutomationExecution
	for key, exec := range st.executions {
		if key.ticketID == ticketID {
			result = append(result, exec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FiredAt.Equal(result[j].FiredAt) {
			return result[i].RuleID < result[j].RuleID
		}
		return result[i].FiredAt.Before(result[j].FiredAt)
	})
	return result, nil
}
