package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// AutomationRuleRepository manages automation rule persistence.
type AutomationRuleRepository interface {
	Create(ctx context.Context, rule *domain.AutomationRule) error
	Update(ctx context.Context, rule *domain.AutomationRule) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.AutomationRule, error)
	GetByName(ctx context.Context, name string) (*domain.AutomationRule, error)
	List(ctx context.Context) ([]domain.AutomationRule, error)
	// ListActive returns active rules in ascending id order, the order the
	// engine evaluates them in.
	ListActive(ctx context.Context) ([]domain.AutomationRule, error)
}

type automationRuleRepository struct {
	db DBTX
}

const automationRuleColumns = `id, name, rule_type, conditions, action, is_active, created_at, updated_at`

func (r *automationRuleRepository) Create(ctx context.Context, rule *domain.AutomationRule) error {
	const query = `
        INSERT INTO automation_rules (name, rule_type, conditions, action, is_active, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$6)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		rule.Name,
		rule.RuleType,
		rule.Conditions,
		rule.Action,
		rule.IsActive,
		rule.CreatedAt,
	).Scan(&rule.ID)
}

func (r *automationRuleRepository) Update(ctx context.Context, rule *domain.AutomationRule) error {
	const query = `
        UPDATE automation_rules SET name=$1, rule_type=$2, conditions=$3, action=$4, is_active=$5, updated_at=$6
        WHERE id=$7`
	cmd, err := r.db.Exec(ctx, query,
		rule.Name,
		rule.RuleType,
		rule.Conditions,
		rule.Action,
		rule.IsActive,
		rule.UpdatedAt,
		rule.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *automationRuleRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM automation_rules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *automationRuleRepository) GetByID(ctx context.Context, id int64) (*domain.AutomationRule, error) {
	return scanAutomationRule(r.db.QueryRow(ctx, `SELECT `+automationRuleColumns+` FROM automation_rules WHERE id=$1`, id))
}

func (r *automationRuleRepository) GetByName(ctx context.Context, name string) (*domain.AutomationRule, error) {
	return scanAutomationRule(r.db.QueryRow(ctx, `SELECT `+automationRuleColumns+` FROM automation_rules WHERE name=$1`, name))
}

func (r *automationRuleRepository) List(ctx context.Context) ([]domain.AutomationRule, error) {
	return r.list(ctx, `SELECT `+automationRuleColumns+` FROM automation_rules ORDER BY id ASC`)
}

func (r *automationRuleRepository) ListActive(ctx context.Context) ([]domain.AutomationRule, error) {
	return r.list(ctx, `SELECT `+automationRuleColumns+` FROM automation_rules WHERE is_active = TRUE ORDER BY id ASC`)
}

func (r *automationRuleRepository) list(ctx context.Context, query string) ([]domain.AutomationRule, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AutomationRule
	for rows.Next() {
		rule, err := scanAutomationRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	return result, rows.Err()
}

func scanAutomationRule(row pgx.Row) (*domain.AutomationRule, error) {
	var rule domain.AutomationRule
	if err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.RuleType,
		&rule.Conditions,
		&rule.Action,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rule, nil
}
