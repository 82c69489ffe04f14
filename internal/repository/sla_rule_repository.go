package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// SLARuleRepository manages SLA rule persistence.
type SLARuleRepository interface {
	Create(ctx context.Context, rule *domain.SLARule) error
	Update(ctx context.Context, rule *domain.SLARule) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.SLARule, error)
	GetByName(ctx context.Context, name string) (*domain.SLARule, error)
	// List returns every rule ordered by id.
	List(ctx context.Context) ([]domain.SLARule, error)
	ListActive(ctx context.Context) ([]domain.SLARule, error)
}

type slaRuleRepository struct {
	db DBTX
}

const slaRuleColumns = `id, name, priority, category, department_id, response_time_minutes, resolution_time_minutes,
               response_warning_minutes, resolution_warning_minutes, escalation_enabled, escalation_after_minutes,
               is_active, created_at, updated_at`

func (r *slaRuleRepository) Create(ctx context.Context, rule *domain.SLARule) error {
	const query = `
        INSERT INTO sla_rules (name, priority, category, department_id, response_time_minutes, resolution_time_minutes,
            response_warning_minutes, resolution_warning_minutes, escalation_enabled, escalation_after_minutes,
            is_active, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		rule.Name,
		rule.Priority,
		rule.Category,
		rule.DepartmentID,
		rule.ResponseTimeMinutes,
		rule.ResolutionTimeMinutes,
		rule.ResponseWarningMinutes,
		rule.ResolutionWarningMinutes,
		rule.EscalationEnabled,
		rule.EscalationAfterMinutes,
		rule.IsActive,
		rule.CreatedAt,
	).Scan(&rule.ID)
}

func (r *slaRuleRepository) Update(ctx context.Context, rule *domain.SLARule) error {
	const query = `
        UPDATE sla_rules SET name=$1, priority=$2, category=$3, department_id=$4, response_time_minutes=$5,
            resolution_time_minutes=$6, response_warning_minutes=$7, resolution_warning_minutes=$8,
            escalation_enabled=$9, escalation_after_minutes=$10, is_active=$11, updated_at=$12
        WHERE id=$13`
	cmd, err := r.db.Exec(ctx, query,
		rule.Name,
		rule.Priority,
		rule.Category,
		rule.DepartmentID,
		rule.ResponseTimeMinutes,
		rule.ResolutionTimeMinutes,
		rule.ResponseWarningMinutes,
		rule.ResolutionWarningMinutes,
		rule.EscalationEnabled,
		rule.EscalationAfterMinutes,
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

func (r *slaRuleRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM sla_rules WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaRuleRepository) GetByID(ctx context.Context, id int64) (*domain.SLARule, error) {
	return scanSLARule(r.db.QueryRow(ctx, `SELECT `+slaRuleColumns+` FROM sla_rules WHERE id=$1`, id))
}

func (r *slaRuleRepository) GetByName(ctx context.Context, name string) (*domain.SLARule, error) {
	return scanSLARule(r.db.QueryRow(ctx, `SELECT `+slaRuleColumns+` FROM sla_rules WHERE name=$1`, name))
}

func (r *slaRuleRepository) List(ctx context.Context) ([]domain.SLARule, error) {
	return r.list(ctx, `SELECT `+slaRuleColumns+` FROM sla_rules ORDER BY id ASC`)
}

func (r *slaRuleRepository) ListActive(ctx context.Context) ([]domain.SLARule, error) {
	return r.list(ctx, `SELECT `+slaRuleColumns+` FROM sla_rules WHERE is_active = TRUE ORDER BY id ASC`)
}

func (r *slaRuleRepository) list(ctx context.Context, query string) ([]domain.SLARule, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLARule
	for rows.Next() {
		rule, err := scanSLARule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	return result, rows.Err()
}

func scanSLARule(row pgx.Row) (*domain.SLARule, error) {
	var rule domain.SLARule
	if err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Priority,
		&rule.Category,
		&rule.DepartmentID,
		&rule.ResponseTimeMinutes,
		&rule.ResolutionTimeMinutes,
		&rule.ResponseWarningMinutes,
		&rule.ResolutionWarningMinutes,
		&rule.EscalationEnabled,
		&rule.EscalationAfterMinutes,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &rule, nil
}
