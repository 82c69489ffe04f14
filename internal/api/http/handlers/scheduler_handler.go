package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-sla/internal/scheduler"
	apperrors "github.com/spec-kit/helpdesk-sla/pkg/util/errorutil"
)

// JobController is the part of the scheduler the API drives.
type JobController interface {
	Status() []scheduler.JobStatus
	Trigger(name string) error
}

// SchedulerHandler reports and triggers background jobs.
type SchedulerHandler struct {
	controller JobController
}

// NewSchedulerHandler constructs handler.
func NewSchedulerHandler(controller JobController) *SchedulerHandler {
	return &SchedulerHandler{controller: controller}
}

// List GET /schedulers.
func (h *SchedulerHandler) List(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.controller.Status()})
}

// Run POST /schedulers/:name/run.
func (h *SchedulerHandler) Run(c *fiber.Ctx) error {
	name := c.Params("name")
	if err := h.controller.Trigger(name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownJob) {
			return apperrors.NewNotFound("scheduler", map[string]any{"name": name})
		}
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": fiber.Map{"name": name, "triggered": true}})
}
