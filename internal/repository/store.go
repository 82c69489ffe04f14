package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicate is returned by non-postgres stores when a unique key is
// already taken.
var ErrDuplicate = errors.New("duplicate key")

// IsUniqueViolation reports whether err came from a unique constraint.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, ErrDuplicate) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so every repository
// can run inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repositories exposes every repository bound to one connection or
// transaction.
type Repositories interface {
	Tickets() TicketRepository
	History() TicketHistoryRepository
	SLARules() SLARuleRepository
	SLALogs() SLALogRepository
	AutomationRules() AutomationRuleRepository
	Executions() AutomationExecutionRepository
}

// TxRunner runs fn inside a single transaction. If fn returns an error
// nothing it wrote is kept.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx Repositories) error) error
}

// Store is the ticket store used by the services.
type Store interface {
	Repositories
	TxRunner
	Ping(ctx context.Context) error
}

type repoSet struct {
	db DBTX
}

func (r repoSet) Tickets() TicketRepository        { return &ticketRepository{db: r.db} }
func (r repoSet) History() TicketHistoryRepository { return &ticketHistoryRepository{db: r.db} }
func (r repoSet) SLARules() SLARuleRepository      { return &slaRuleRepository{db: r.db} }
func (r repoSet) SLALogs() SLALogRepository        { return &slaLogRepository{db: r.db} }
func (r repoSet) AutomationRules() AutomationRuleRepository {
	return &automationRuleRepository{db: r.db}
}
func (r repoSet) Executions() AutomationExecutionRepository {
	return &automationExecutionRepository{db: r.db}
}

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	repoSet
	pool *pgxpool.Pool
}

// NewPostgresStore builds a store on pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{repoSet: repoSet{db: pool}, pool: pool}
}

// InTx begins a read-committed transaction, runs fn and commits.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Repositories) error) (err error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
			}
		}
	}()

	if err = fn(repoSet{db: tx}); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return errors.New("postgres pool not configured")
	}
	return s.pool.Ping(ctx)
}
