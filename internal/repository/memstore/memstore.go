// Package memstore is an in-process implementation of repository.Store.
// Transactions are serialized and commit by swapping in the mutated copy,
// so a failed transaction leaves no trace.
package memstore

import (
	"context"
	"sync"

	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
)

type execKey struct {
	ruleID   int64
	ticketID string
}

type state struct {
	tickets        map[string]*domain.Ticket
	history        map[string][]domain.TicketHistory
	slaRules       map[int64]*domain.SLARule
	nextSLARuleID  int64
	slaLogs        map[string]*domain.SLALog
	autoRules      map[int64]*domain.AutomationRule
	nextAutoRuleID int64
	executions     map[execKey]domain.AutomationExecution
}

func newState() *state {
	return &state{
		tickets:    make(map[string]*domain.Ticket),
		history:    make(map[string][]domain.TicketHistory),
		slaRules:   make(map[int64]*domain.SLARule),
		slaLogs:    make(map[string]*domain.SLALog),
		autoRules:  make(map[int64]*domain.AutomationRule),
		executions: make(map[execKey]domain.AutomationExecution),
	}
}

// clone copies the maps. Stored values are never mutated in place, only
// replaced, so sharing them between copies is safe.
func (s *state) clone() *state {
	c := &state{
		tickets:        make(map[string]*domain.Ticket, len(s.tickets)),
		history:        make(map[string][]domain.TicketHistory, len(s.history)),
		slaRules:       make(map[int64]*domain.SLARule, len(s.slaRules)),
		nextSLARuleID:  s.nextSLARuleID,
		slaLogs:        make(map[string]*domain.SLALog, len(s.slaLogs)),
		autoRules:      make(map[int64]*domain.AutomationRule, len(s.autoRules)),
		nextAutoRuleID: s.nextAutoRuleID,
		executions:     make(map[execKey]domain.AutomationExecution, len(s.executions)),
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.history {
		c.history[k] = append([]domain.TicketHistory(nil), v...)
	}
	for k, v := range s.slaRules {
		c.slaRules[k] = v
	}
	for k, v := range s.slaLogs {
		c.slaLogs[k] = v
	}
	for k, v := range s.autoRules {
		c.autoRules[k] = v
	}
	for k, v := range s.executions {
		c.executions[k] = v
	}
	return c
}

// Store implements repository.Store in memory.
type Store struct {
	mu    sync.Mutex
	state *state

	faultMu sync.Mutex
	faults  map[string]error
}

var _ repository.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{state: newState(), faults: make(map[string]error)}
}

// SetFault makes every call of op fail with err until cleared with a nil
// err. op has the form "<repository>.<Method>", e.g. "tickets.Update".
// Appending ":<ticket id>" limits the fault to calls for that ticket.
func (s *Store) SetFault(op string, err error) {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op, ticketID string) error {
	s.faultMu.Lock()
	defer s.faultMu.Unlock()
	if err := s.faults[op]; err != nil {
		return err
	}
	if ticketID != "" {
		return s.faults[op+":"+ticketID]
	}
	return nil
}

// InTx runs fn against a private copy of the data and publishes the copy
// only when fn succeeds.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&view{store: s, st: func() *state { return working }, lock: noLock}); err != nil {
		return err
	}
	s.state = working
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (s *Store) direct() *view {
	return &view{
		store: s,
		st:    func() *state { return s.state },
		lock: func() func() {
			s.mu.Lock()
			return s.mu.Unlock
		},
	}
}

func (s *Store) Tickets() repository.TicketRepository        { return s.direct().Tickets() }
func (s *Store) History() repository.TicketHistoryRepository { return s.direct().History() }
func (s *Store) SLARules() repository.SLARuleRepository      { return s.direct().SLARules() }
func (s *Store) SLALogs() repository.SLALogRepository        { return s.direct().SLALogs() }
func (s *Store) AutomationRules() repository.AutomationRuleRepository {
	return s.direct().AutomationRules()
}
func (s *Store) Executions() repository.AutomationExecutionRepository {
	return s.direct().Executions()
}

func noLock() func() { return func() {} }

// view binds repositories to either the committed state (locking per call)
// or a transaction's working copy (already locked by InTx).
type view struct {
	store *Store
	st    func() *state
	lock  func() func()
}

func (v *view) Tickets() repository.TicketRepository        { return ticketRepo{v} }
func (v *view) History() repository.TicketHistoryRepository { return historyRepo{v} }
func (v *view) SLARules() repository.SLARuleRepository      { return slaRuleRepo{v} }
func (v *view) SLALogs() repository.SLALogRepository        { return slaLogRepo{v} }
func (v *view) AutomationRules() repository.AutomationRuleRepository {
	return autoRuleRepo{v}
}
func (v *view) Executions() repository.AutomationExecutionRepository { return executionRepo{v} }

// begin checks ctx and the fault table for op, then takes the lock.
func (v *view) begin(ctx context.Context, op string) (*state, func(), error) {
	return v.beginFor(ctx, op, "")
}

// beginFor is begin for an operation scoped to one ticket.
func (v *view) beginFor(ctx context.Context, op, ticketID string) (*state, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := v.store.fault(op, ticketID); err != nil {
		return nil, nil, err
	}
	unlock := v.lock()
	return v.st(), unlock, nil
}
