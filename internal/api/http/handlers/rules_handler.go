package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-sla/internal/api/dto"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/service"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

// RulesHandler exposes SLA and automation rule administration.
// Payload validation lives in the rule service.
type RulesHandler struct {
	service *service.RuleService
}

// NewRulesHandler constructs handler.
func NewRulesHandler(ruleService *service.RuleService) *RulesHandler {
	return &RulesHandler{service: ruleService}
}

// ListSLARules GET /sla-rules.
func (h *RulesHandler) ListSLARules(c *fiber.Ctx) error {
	rules, err := h.service.ListSLARules(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.SLARuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, slaRuleResponse(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateSLARule POST /sla-rules.
func (h *RulesHandler) CreateSLARule(c *fiber.Ctx) error {
	var req dto.SLARuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rule, err := h.service.CreateSLARule(c.UserContext(), slaRuleInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": slaRuleResponse(rule)})
}

// GetSLARule GET /sla-rules/:id.
func (h *RulesHandler) GetSLARule(c *fiber.Ctx) error {
	id, err := ruleID(c)
	if err != nil {
		return err
	}
	rule, err := h.service.GetSLARule(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaRuleResponse(rule)})
}

// UpdateSLARule PUT /sla-rules/:id.
func (h *RulesHandler) UpdateSLARule(c *fiber.Ctx) error {
	id, err := ruleID(c)
	if err != nil {
		return err
	}
	var req dto.SLARuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rule, err := h.service.UpdateSLARule(c.UserContext(), id, slaRuleInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaRuleResponse(rule)})
}

// DeleteSLARule DELETE /sla-rules/:id.
func (h *RulesHandler) DeleteSLARule(c *fiber.Ctx) error {
	id, err := ruleID(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteSLARule(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListAutomationRules GET /automation-rules.
func (h *RulesHandler) ListAutomationRules(c *fiber.Ctx) error {
	rules, err := h.service.ListAutomationRules(c.UserContext())
	if err != nil {
		return err
	}
	items := make([]dto.AutomationRuleResponse, 0, len(rules))
	for i := range rules {
		items = append(items, automationRuleResponse(&rules[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// CreateAutomationRule POST /automation-rules.
func (h *RulesHandler) CreateAutomationRule(c *fiber.Ctx) error {
	var req dto.AutomationRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rule, err := h.service.CreateAutomationRule(c.UserContext(), automationRuleInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": automationRuleResponse(rule)})
}

// GetAutomationRule GET /automation-rules/:id.
func (h *RulesHandler) GetAutomationRule(c *fiber.Ctx) error {
	id, err := ruleID(c)
	if err != nil {
		return err
	}
	rule, err := h.service.GetAutomationRule(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": automationRuleResponse(rule)})
}

// UpdateAutomationRule PUT /automation-rules/:id.
func (h *RulesHandler) UpdateAutomationRule(c *fiber.Ctx) error {
	id, err := ruleID(c)
	if err != nil {
		return err
	}
	var req dto.AutomationRuleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	rule, err := h.service.UpdateAutomationRule(c.UserContext(), id, automationRuleInput(req))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": automationRuleResponse(rule)})
}

// DeleteAutomationRule DELETE /automation-rules/:id.
func (h *RulesHandler) DeleteAutomationRule(c *fiber.Ctx) error {
	id, err := ruleID(c)
	if err != nil {
		return err
	}
	if err := h.service.DeleteAutomationRule(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func slaRuleInput(req dto.SLARuleRequest) service.SLARuleInput {
	return service.SLARuleInput{
		Name:                     req.Name,
		Priority:                 req.Priority,
		Category:                 req.Category,
		DepartmentID:             req.DepartmentID,
		ResponseTimeMinutes:      req.ResponseTimeMinutes,
		ResolutionTimeMinutes:    req.ResolutionTimeMinutes,
		ResponseWarningMinutes:   req.ResponseWarningMinutes,
		ResolutionWarningMinutes: req.ResolutionWarningMinutes,
		EscalationEnabled:        req.EscalationEnabled,
		EscalationAfterMinutes:   req.EscalationAfterMinutes,
		IsActive:                 req.IsActive,
	}
}

func slaRuleResponse(rule *domain.SLARule) dto.SLARuleResponse {
	return dto.SLARuleResponse{
		ID:                       rule.ID,
		Name:                     rule.Name,
		Priority:                 rule.Priority,
		Category:                 rule.Category,
		DepartmentID:             rule.DepartmentID,
		ResponseTimeMinutes:      rule.ResponseTimeMinutes,
		ResolutionTimeMinutes:    rule.ResolutionTimeMinutes,
		ResponseWarningMinutes:   rule.ResponseWarningMinutes,
		ResolutionWarningMinutes: rule.ResolutionWarningMinutes,
		EscalationEnabled:        rule.EscalationEnabled,
		EscalationAfterMinutes:   rule.EscalationAfterMinutes,
		IsActive:                 rule.IsActive,
		CreatedAt:                rule.CreatedAt,
		UpdatedAt:                rule.UpdatedAt,
	}
}

func automationRuleInput(req dto.AutomationRuleRequest) service.AutomationRuleInput {
	return service.AutomationRuleInput{
		Name:       req.Name,
		RuleType:   req.RuleType,
		Conditions: req.Conditions,
		Action:     req.Action,
		IsActive:   req.IsActive,
	}
}

func automationRuleResponse(rule *domain.AutomationRule) dto.AutomationRuleResponse {
	return dto.AutomationRuleResponse{
		ID:         rule.ID,
		Name:       rule.Name,
		RuleType:   rule.RuleType,
		Conditions: rule.Conditions,
		Action:     rule.Action,
		IsActive:   rule.IsActive,
		CreatedAt:  rule.CreatedAt,
		UpdatedAt:  rule.UpdatedAt,
	}
}
