package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// AutomationExecutionRepository is the side table of (rule, ticket) pairs
// that have already fired.
type AutomationExecutionRepository interface {
	// Record inserts the execution if the pair is new. inserted is false
	// when the rule had already fired for the ticket.
	Record(ctx context.Context, exec *domain.AutomationExecution) (inserted bool, err error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.AutomationExecution, error)
}

type automationExecutionRepository struct {
	db DBTX
}

func (r *automationExecutionRepository) Record(ctx context.Context, exec *domain.AutomationExecution) (bool, error) {
	const query = `
        INSERT INTO automation_executions (rule_id, ticket_id, rule_type, fired_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (rule_id, ticket_id) DO NOTHING`
	cmd, err := r.db.Exec(ctx, query, exec.RuleID, exec.TicketID, exec.RuleType, exec.FiredAt)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() == 1, nil
}

func (r *automationExecutionRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.AutomationExecution, error) {
	const query = `
        SELECT rule_id, ticket_id, rule_type, fired_at
        FROM automation_executions WHERE ticket_id=$1 ORDER BY fired_at ASC, rule_id ASC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AutomationExecution
	for rows.Next() {
		var exec domain.AutomationExecution
		if err := rows.Scan(&exec.RuleID, &exec.TicketID, &exec.RuleType, &exec.FiredAt); err != nil {
			return nil, err
		}
		result = append(result, exec)
	}
	return result, rows.Err()
}
