package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/automation"
	"github.com/spec-kit/helpdesk-sla/internal/clock"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

const (
	ruleKindSLA        = "sla_rule"
	ruleKindAutomation = "automation_rule"
)

// SLARuleInput is the create/replace payload for an SLA rule.
type SLARuleInput struct {
	Name                     string                 `validate:"required,max=120"`
	Priority                 *domain.TicketPriority `validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Category                 *domain.TicketCategory `validate:"omitempty,oneof=SOFTWARE HARDWARE NETWORK ACCESS OTHER"`
	DepartmentID             *string                `validate:"omitempty,min=1"`
	ResponseTimeMinutes      int                    `validate:"gt=0"`
	ResolutionTimeMinutes    int                    `validate:"gt=0,gtefield=ResponseTimeMinutes"`
	ResponseWarningMinutes   int                    `validate:"gte=0,ltfield=ResponseTimeMinutes"`
	ResolutionWarningMinutes int                    `validate:"gte=0,ltfield=ResolutionTimeMinutes"`
	EscalationEnabled        bool
	EscalationAfterMinutes   int `validate:"gte=0"`
	IsActive                 *bool
}

// AutomationRuleInput is the create/replace payload for an automation rule.
type AutomationRuleInput struct {
	Name       string                    `validate:"required,max=120"`
	RuleType   domain.AutomationRuleType `validate:"required,oneof=auto_assign auto_close auto_notify"`
	Conditions domain.AutomationConditions
	Action     domain.AutomationAction
	IsActive   *bool
}

// RuleService is the administrative surface for SLA and automation rules.
type RuleService struct {
	store     repository.Store
	clock     clock.Clock
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRuleService constructs the service.
func NewRuleService(store repository.Store, clk clock.Clock, logger *zap.Logger) *RuleService {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RuleService{
		store:     store,
		clock:     clk,
		validator: validator.New(),
		logger:    logger.Named("rules"),
	}
}

// CreateSLARule validates and stores a new SLA rule.
func (s *RuleService) CreateSLARule(ctx context.Context, in SLARuleInput) (*domain.SLARule, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate(in); err != nil {
		return nil, err
	}
	if err := s.ensureSLANameFree(ctx, in.Name, 0); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rule := &domain.SLARule{CreatedAt: now, UpdatedAt: now, IsActive: true}
	applySLAInput(rule, in)
	if err := s.store.SLARules().Create(ctx, rule); err != nil {
		return nil, s.writeError("create sla rule", ruleKindSLA, rule.Name, err)
	}
	s.logger.Info("sla rule created", zap.Int64("rule_id", rule.ID), zap.String("name", rule.Name))
	return rule, nil
}

// UpdateSLARule replaces the rule's definition. Existing SLA logs keep the
// values they were created with.
func (s *RuleService) UpdateSLARule(ctx context.Context, id int64, in SLARuleInput) (*domain.SLARule, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate(in); err != nil {
		return nil, err
	}
	rule, err := s.GetSLARule(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureSLANameFree(ctx, in.Name, id); err != nil {
		return nil, err
	}

	applySLAInput(rule, in)
	rule.UpdatedAt = s.clock.Now()
	if err := s.store.SLARules().Update(ctx, rule); err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewRuleNotFound(ruleKindSLA, id)
		}
		return nil, s.writeError("update sla rule", ruleKindSLA, rule.Name, err)
	}
	return rule, nil
}

// DeleteSLARule removes the rule. Logs created under it keep their
// snapshot and lose only the reference.
func (s *RuleService) DeleteSLARule(ctx context.Context, id int64) error {
	if err := s.store.SLARules().Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return apperrors.NewRuleNotFound(ruleKindSLA, id)
		}
		return apperrors.StoreError("delete sla rule", ruleKindSLA, err)
	}
	s.logger.Info("sla rule deleted", zap.Int64("rule_id", id))
	return nil
}

// GetSLARule fetches one rule.
func (s *RuleService) GetSLARule(ctx context.Context, id int64) (*domain.SLARule, error) {
	rule, err := s.store.SLARules().GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewRuleNotFound(ruleKindSLA, id)
		}
		return nil, apperrors.StoreError("get sla rule", ruleKindSLA, err)
	}
	return rule, nil
}

// ListSLARules returns all rules ordered by id.
func (s *RuleService) ListSLARules(ctx context.Context) ([]domain.SLARule, error) {
	rules, err := s.store.SLARules().List(ctx)
	if err != nil {
		return nil, apperrors.StoreError("list sla rules", ruleKindSLA, err)
	}
	return rules, nil
}

// CreateAutomationRule validates and stores a new automation rule.
func (s *RuleService) CreateAutomationRule(ctx context.Context, in AutomationRuleInput) (*domain.AutomationRule, error) {
	in.Name = strings.TrimSpace(in.Name)
	now := s.clock.Now()
	rule := &domain.AutomationRule{CreatedAt: now, UpdatedAt: now, IsActive: true}
	applyAutomationInput(rule, in)
	if err := s.validateAutomation(in, rule); err != nil {
		return nil, err
	}
	if err := s.ensureAutomationNameFree(ctx, in.Name, 0); err != nil {
		return nil, err
	}

	if err := s.store.AutomationRules().Create(ctx, rule); err != nil {
		return nil, s.writeError("create automation rule", ruleKindAutomation, rule.Name, err)
	}
	s.logger.Info("automation rule created",
		zap.Int64("rule_id", rule.ID),
		zap.String("name", rule.Name),
		zap.String("type", string(rule.RuleType)),
	)
	return rule, nil
}

// UpdateAutomationRule replaces the rule's definition. Executions already
// recorded for it are kept, so an auto_notify rule does not fire again for
// tickets it already notified.
func (s *RuleService) UpdateAutomationRule(ctx context.Context, id int64, in AutomationRuleInput) (*domain.AutomationRule, error) {
	in.Name = strings.TrimSpace(in.Name)
	rule, err := s.GetAutomationRule(ctx, id)
	if err != nil {
		return nil, err
	}
	applyAutomationInput(rule, in)
	if err := s.validateAutomation(in, rule); err != nil {
		return nil, err
	}
	if err := s.ensureAutomationNameFree(ctx, in.Name, id); err != nil {
		return nil, err
	}

	rule.UpdatedAt = s.clock.Now()
	if err := s.store.AutomationRules().Update(ctx, rule); err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewRuleNotFound(ruleKindAutomation, id)
		}
		return nil, s.writeError("update automation rule", ruleKindAutomation, rule.Name, err)
	}
	return rule, nil
}

// DeleteAutomationRule removes the rule and its execution markers.
func (s *RuleService) DeleteAutomationRule(ctx context.Context, id int64) error {
	if err := s.store.AutomationRules().Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return apperrors.NewRuleNotFound(ruleKindAutomation, id)
		}
		return apperrors.StoreError("delete automation rule", ruleKindAutomation, err)
	}
	s.logger.Info("automation rule deleted", zap.Int64("rule_id", id))
	return nil
}

// GetAutomationRule fetches one rule.
func (s *RuleService) GetAutomationRule(ctx context.Context, id int64) (*domain.AutomationRule, error) {
	rule, err := s.store.AutomationRules().GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewRuleNotFound(ruleKindAutomation, id)
		}
		return nil, apperrors.StoreError("get automation rule", ruleKindAutomation, err)
	}
	return rule, nil
}

// ListAutomationRules returns all rules ordered by id.
func (s *RuleService) ListAutomationRules(ctx context.Context) ([]domain.AutomationRule, error) {
	rules, err := s.store.AutomationRules().List(ctx)
	if err != nil {
		return nil, apperrors.StoreError("list automation rules", ruleKindAutomation, err)
	}
	return rules, nil
}

func (s *RuleService) validate(in any) error {
	return apperrors.FromValidation("invalid rule", s.validator.Struct(in))
}

func (s *RuleService) validateAutomation(in AutomationRuleInput, rule *domain.AutomationRule) error {
	if err := s.validate(in); err != nil {
		return err
	}
	cond := in.Conditions
	details := map[string]any{}
	if cond.Category != nil && !domain.IsValidCategory(*cond.Category) {
		details["conditions.category"] = "unknown category"
	}
	if cond.Priority != nil && !domain.IsValidPriority(*cond.Priority) {
		details["conditions.priority"] = "unknown priority"
	}
	if cond.Status != nil && !domain.IsValidStatus(*cond.Status) {
		details["conditions.status"] = "unknown status"
	}
	if len(details) > 0 {
		return apperrors.NewValidationError("invalid rule", details)
	}
	if err := automation.Check(rule); err != nil {
		return apperrors.NewValidationError(err.Error(), nil)
	}
	return nil
}

func (s *RuleService) ensureSLANameFree(ctx context.Context, name string, selfID int64) error {
	existing, err := s.store.SLARules().GetByName(ctx, name)
	switch {
	case repository.IsNotFound(err):
		return nil
	case err != nil:
		return apperrors.StoreError("check sla rule name", ruleKindSLA, err)
	case existing.ID != selfID:
		return nameTaken(ruleKindSLA, name)
	}
	return nil
}

func (s *RuleService) ensureAutomationNameFree(ctx context.Context, name string, selfID int64) error {
	existing, err := s.store.AutomationRules().GetByName(ctx, name)
	switch {
	case repository.IsNotFound(err):
		return nil
	case err != nil:
		return apperrors.StoreError("check automation rule name", ruleKindAutomation, err)
	case existing.ID != selfID:
		return nameTaken(ruleKindAutomation, name)
	}
	return nil
}

// writeError maps a lost race on the unique name index to CONFLICT.
func (s *RuleService) writeError(op, kind, name string, err error) error {
	if repository.IsUniqueViolation(err) {
		return nameTaken(kind, name)
	}
	return apperrors.StoreError(op, kind, err)
}

func nameTaken(kind, name string) error {
	return apperrors.NewConflict(kind+" name already in use", map[string]any{"name": name})
}

func applySLAInput(rule *domain.SLARule, in SLARuleInput) {
	rule.Name = in.Name
	rule.Priority = in.Priority
	rule.Category = in.Category
	rule.DepartmentID = in.DepartmentID
	rule.ResponseTimeMinutes = in.ResponseTimeMinutes
	rule.ResolutionTimeMinutes = in.ResolutionTimeMinutes
	rule.ResponseWarningMinutes = in.ResponseWarningMinutes
	rule.ResolutionWarningMinutes = in.ResolutionWarningMinutes
	rule.EscalationEnabled = in.EscalationEnabled
	rule.EscalationAfterMinutes = in.EscalationAfterMinutes
	if in.IsActive != nil {
		rule.IsActive = *in.IsActive
	}
}

func applyAutomationInput(rule *domain.AutomationRule, in AutomationRuleInput) {
	rule.Name = in.Name
	rule.RuleType = in.RuleType
	rule.Conditions = in.Conditions
	rule.Action = in.Action
	if in.IsActive != nil {
		rule.IsActive = *in.IsActive
	}
}
