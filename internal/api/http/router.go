package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health     *handlers.HealthHandler
	Tickets    *handlers.TicketsHandler
	Rules      *handlers.RulesHandler
	Schedulers *handlers.SchedulerHandler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	tickets := app.Group("/tickets")
	tickets.Post("/", cfg.Tickets.CreateTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/status", cfg.Tickets.TransitionTicket)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)

	slaRules := app.Group("/sla-rules")
	slaRules.Get("/", cfg.Rules.ListSLARules)
	slaRules.Post("/", cfg.Rules.CreateSLARule)
	slaRules.Get("/:id", cfg.Rules.GetSLARule)
	slaRules.Put("/:id", cfg.Rules.UpdateSLARule)
	slaRules.Delete("/:id", cfg.Rules.DeleteSLARule)

	automationRules := app.Group("/automation-rules")
	automationRules.Get("/", cfg.Rules.ListAutomationRules)
	automationRules.Post("/", cfg.Rules.CreateAutomationRule)
	automationRules.Get("/:id", cfg.Rules.GetAutomationRule)
	automationRules.Put("/:id", cfg.Rules.UpdateAutomationRule)
	automationRules.Delete("/:id", cfg.Rules.DeleteAutomationRule)

	if cfg.Schedulers != nil {
		app.Get("/schedulers", cfg.Schedulers.List)
		app.Post("/schedulers/:name/run", cfg.Schedulers.Run)
	}
}
