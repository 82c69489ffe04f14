package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-sla/internal/api/dto"
	"github.com/spec-kit/helpdesk-sla/internal/domain"
	"github.com/spec-kit/helpdesk-sla/internal/service"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ticket, log, err := h.service.CreateTicket(c.UserContext(), service.TicketCreateInput{
		OwnerID:      req.OwnerID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Priority:     req.Priority,
		DepartmentID: req.DepartmentID,
		BranchID:     req.BranchID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.TicketDetailResponse{
		Ticket:  ticketResponse(ticket),
		SLA:     slaLogResponse(log),
		History: []dto.TicketHistoryResponse{},
	}})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	details, err := h.service.GetTicket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketDetailResponse{
		Ticket:  ticketResponse(details.Ticket),
		SLA:     slaLogResponse(details.SLALog),
		History: historyResponses(details.History),
	}})
}

// TransitionTicket POST /tickets/:id/status.
func (h *TicketsHandler) TransitionTicket(c *fiber.Ctx) error {
	var req dto.TransitionRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ticket, err := h.service.Transition(c.UserContext(), c.Params("id"), req.Status, requestActor(req), req.Comment)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListHistory GET /tickets/:id/history.
func (h *TicketsHandler) ListHistory(c *fiber.Ctx) error {
	history, err := h.service.ListHistory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": historyResponses(history)})
}

func requestActor(req dto.TransitionRequest) domain.Actor {
	actorType := req.ActorType
	if actorType == "" {
		actorType = domain.ActorTypeSystem
		if req.ActorID != nil && *req.ActorID != "" {
			actorType = domain.ActorTypeStaff
		}
	}
	if actorType == domain.ActorTypeSystem {
		return domain.SystemActor()
	}
	return domain.Actor{Type: actorType, ID: req.ActorID}
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:              ticket.ID,
		Number:          ticket.Number,
		OwnerID:         ticket.OwnerID,
		Title:           ticket.Title,
		Description:     ticket.Description,
		Category:        ticket.Category,
		Priority:        ticket.Priority,
		DepartmentID:    ticket.DepartmentID,
		BranchID:        ticket.BranchID,
		AssigneeID:      ticket.AssigneeID,
		Status:          ticket.Status,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
		StatusChangedAt: ticket.StatusChangedAt,
		ResolvedAt:      ticket.ResolvedAt,
		ClosedAt:        ticket.ClosedAt,
	}
}

func slaLogResponse(log *domain.SLALog) *dto.SLALogResponse {
	if log == nil {
		return nil
	}
	return &dto.SLALogResponse{
		RuleID:               log.RuleID,
		RuleName:             log.RuleName,
		TargetResponseTime:   log.TargetResponseTime,
		TargetResolutionTime: log.TargetResolutionTime,
		ActualResponseTime:   log.ActualResponseTime,
		ActualResolutionTime: log.ActualResolutionTime,
		ResponseStatus:       log.ResponseStatus,
		ResolutionStatus:     log.ResolutionStatus,
		Escalated:            log.Escalated,
		EscalatedAt:          log.EscalatedAt,
	}
}

func historyResponses(entries []domain.TicketHistory) []dto.TicketHistoryResponse {
	resp := make([]dto.TicketHistoryResponse, 0, len(entries))
	for _, entry := range entries {
		resp = append(resp, dto.TicketHistoryResponse{
			ID:            entry.ID,
			FromStatus:    entry.FromStatus,
			Status:        entry.Status,
			ChangedByType: entry.ChangedByType,
			ChangedByID:   entry.ChangedByID,
			Comment:       entry.Comment,
			CreatedAt:     entry.CreatedAt,
		})
	}
	return resp
}
