package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
)

// SLALogRepository persists the per-ticket SLA log.
type SLALogRepository interface {
	// GetOrCreate inserts log unless the ticket already has one, and
	// returns whichever log is stored. created reports which case applied.
	GetOrCreate(ctx context.Context, log *domain.SLALog) (stored *domain.SLALog, created bool, err error)
	GetByTicket(ctx context.Context, ticketID string) (*domain.SLALog, error)
	GetByTicketForUpdate(ctx context.Context, ticketID string) (*domain.SLALog, error)
	Update(ctx context.Context, log *domain.SLALog) error
	// ListMonitoredTicketIDs returns tickets whose log still has a
	// non-terminal axis and whose ticket is not closed.
	ListMonitoredTicketIDs(ctx context.Context) ([]string, error)
}

type slaLogRepository struct {
	db DBTX
}

const slaLogColumns = `id, ticket_id, rule_id, rule_name, response_warning_minutes, resolution_warning_minutes,
               escalation_enabled, escalation_after_minutes, target_response_time, target_resolution_time,
               actual_response_time, actual_resolution_time, response_status, resolution_status,
               escalated, escalated_at, created_at, updated_at`

func (r *slaLogRepository) GetOrCreate(ctx context.Context, log *domain.SLALog) (*domain.SLALog, bool, error) {
	const query = `
        INSERT INTO sla_logs (id, ticket_id, rule_id, rule_name, response_warning_minutes, resolution_warning_minutes,
            escalation_enabled, escalation_after_minutes, target_response_time, target_resolution_time,
            response_status, resolution_status, escalated, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,FALSE,$13,$13)
        ON CONFLICT (ticket_id) DO NOTHING`
	cmd, err := r.db.Exec(ctx, query,
		log.ID,
		log.TicketID,
		log.RuleID,
		log.RuleName,
		log.ResponseWarningMinutes,
		log.ResolutionWarningMinutes,
		log.EscalationEnabled,
		log.EscalationAfterMinutes,
		log.TargetResponseTime,
		log.TargetResolutionTime,
		log.ResponseStatus,
		log.ResolutionStatus,
		log.CreatedAt,
	)
	if err != nil {
		return nil, false, err
	}
	stored, err := r.GetByTicket(ctx, log.TicketID)
	if err != nil {
		return nil, false, err
	}
	return stored, cmd.RowsAffected() == 1, nil
}

func (r *slaLogRepository) GetByTicket(ctx context.Context, ticketID string) (*domain.SLALog, error) {
	return scanSLALog(r.db.QueryRow(ctx, `SELECT `+slaLogColumns+` FROM sla_logs WHERE ticket_id=$1`, ticketID))
}

func (r *slaLogRepository) GetByTicketForUpdate(ctx context.Context, ticketID string) (*domain.SLALog, error) {
	return scanSLALog(r.db.QueryRow(ctx, `SELECT `+slaLogColumns+` FROM sla_logs WHERE ticket_id=$1 FOR UPDATE`, ticketID))
}

func (r *slaLogRepository) Update(ctx context.Context, log *domain.SLALog) error {
	const query = `
        UPDATE sla_logs SET actual_response_time=$1, actual_resolution_time=$2, response_status=$3,
            resolution_status=$4, escalated=$5, escalated_at=$6, updated_at=$7
        WHERE ticket_id=$8`
	cmd, err := r.db.Exec(ctx, query,
		log.ActualResponseTime,
		log.ActualResolutionTime,
		log.ResponseStatus,
		log.ResolutionStatus,
		log.Escalated,
		log.EscalatedAt,
		log.UpdatedAt,
		log.TicketID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *slaLogRepository) ListMonitoredTicketIDs(ctx context.Context) ([]string, error) {
	const query = `
        SELECT l.ticket_id FROM sla_logs l
        JOIN tickets t ON t.id = l.ticket_id
        WHERE t.status <> $1
          AND (l.response_status NOT IN ($2,$3) OR l.resolution_status NOT IN ($2,$3) OR
               (l.escalation_enabled AND NOT l.escalated AND l.actual_resolution_time IS NULL
                AND l.resolution_status = $3))
        ORDER BY l.target_resolution_time ASC`
	rows, err := r.db.Query(ctx, query, domain.TicketStatusClosed, domain.SLAStatusOnTime, domain.SLAStatusBreached)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanSLALog(row pgx.Row) (*domain.SLALog, error) {
	var log domain.SLALog
	if err := row.Scan(
		&log.ID,
		&log.TicketID,
		&log.RuleID,
		&log.RuleName,
		&log.ResponseWarningMinutes,
		&log.ResolutionWarningMinutes,
		&log.EscalationEnabled,
		&log.EscalationAfterMinutes,
		&log.TargetResponseTime,
		&log.TargetResolutionTime,
		&log.ActualResponseTime,
		&log.ActualResolutionTime,
		&log.ResponseStatus,
		&log.ResolutionStatus,
		&log.Escalated,
		&log.EscalatedAt,
		&log.CreatedAt,
		&log.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &log, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
