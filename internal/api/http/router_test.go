package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-sla/internal/clock"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/repository/memstore"
	"github.com/spec-kit/helpdesk-sla/internal/scheduler"
	"github.com/spec-kit/helpdesk-sla/internal/service"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type stubJobs struct{ triggered []string }

func (s *stubJobs) Status() []scheduler.JobStatus {
	return []scheduler.JobStatus{{Name: "sla_monitor"}, {Name: "automation"}}
}

func (s *stubJobs) Trigger(name string) error {
	if name != "sla_monitor" && name != "automation" {
		return scheduler.ErrUnknownJob
	}
	s.triggered = append(s.triggered, name)
	return nil
}

type testServer struct {
	app     *fiber.App
	jobs    *stubJobs
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, redisErr error) *testServer {
	t.Helper()
	store := memstore.New()
	clk := clock.Fake(t0)
	dispatcher := events.NewInMemoryDispatcher()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	jobs := &stubJobs{}

	tickets := service.NewTicketService(service.TicketDependencies{
		Store: store, Clock: clk, Dispatcher: dispatcher, Logger: logger,
	})
	rules := service.NewRuleService(store, clk, logger)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health: handlers.NewHealthHandler("helpdesk-sla", "test", map[string]handlers.Pinger{
			"postgres": store,
			"redis":    pingFunc(func(context.Context) error { return redisErr }),
		}, metrics),
		Tickets:    handlers.NewTicketsHandler(tickets),
		Rules:      handlers.NewRulesHandler(rules),
		Schedulers: handlers.NewSchedulerHandler(jobs),
	})
	return &testServer{app: app, jobs: jobs, metrics: metrics}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func errorCode(body map[string]any) string {
	e, _ := body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func data(body map[string]any) map[string]any {
	d, _ := body["data"].(map[string]any)
	return d
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	status, body := s.do(t, "GET", "/health/live", nil)
	assert.Equal(t, 200, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, "GET", "/health/ready", nil)
	assert.Equal(t, 200, status)
	assert.Equal(t, "ready", body["status"])

	down := newTestServer(t, errors.New("connection refused"))
	status, body = down.do(t, "GET", "/health/ready", nil)
	assert.Equal(t, 503, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", errorCode(body))
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, "POST", "/sla-rules", map[string]any{
		"name":                       "high",
		"priority":                   "HIGH",
		"response_time_minutes":      60,
		"resolution_time_minutes":    240,
		"response_warning_minutes":   30,
		"resolution_warning_minutes": 30,
	})
	require.Equal(t, 201, status, body)

	status, body = s.do(t, "POST", "/tickets", map[string]any{
		"owner_id": "user-1",
		"title":    "VPN down",
		"priority": "HIGH",
		"category": "NETWORK",
	})
	require.Equal(t, 201, status, body)
	created := data(body)
	ticketID := created["ticket"].(map[string]any)["id"].(string)
	sla := created["sla"].(map[string]any)
	assert.Equal(t, "high", sla["rule_name"])
	assert.Equal(t, t0.Add(time.Hour).Format(time.RFC3339), sla["target_response_time"])

	status, body = s.do(t, "POST", "/tickets/"+ticketID+"/status", map[string]any{
		"status":   "IN_PROGRESS",
		"actor_id": "agent-7",
	})
	require.Equal(t, 200, status, body)
	assert.Equal(t, "IN_PROGRESS", data(body)["status"])

	status, body = s.do(t, "POST", "/tickets/"+ticketID+"/status", map[string]any{"status": "PENDING"})
	assert.Equal(t, 409, status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(body))

	status, body = s.do(t, "GET", "/tickets/"+ticketID, nil)
	require.Equal(t, 200, status)
	details := data(body)
	history := details["history"].([]any)
	require.Len(t, history, 1)
	entry := history[0].(map[string]any)
	assert.Equal(t, "STAFF", entry["changed_by_type"])
	assert.Equal(t, "agent-7", entry["changed_by_id"])
	assert.Equal(t, "ON_TIME", details["sla"].(map[string]any)["response_status"])

	status, body = s.do(t, "GET", "/tickets/"+ticketID+"/history", nil)
	require.Equal(t, 200, status)
	assert.Len(t, body["data"], 1)
}

func TestTicketErrors(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, "POST", "/tickets", map[string]any{"title": "no owner"})
	assert.Equal(t, 400, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
	assert.Contains(t, body["error"].(map[string]any)["details"], "OwnerID")

	status, body = s.do(t, "POST", "/tickets", map[string]any{"owner_id": "u", "title": "x", "priority": "BLOCKER"})
	assert.Equal(t, 400, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, "GET", "/tickets/missing", nil)
	assert.Equal(t, 404, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = s.do(t, "GET", "/nowhere", nil)
	assert.Equal(t, 404, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestRuleEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	rule := map[string]any{
		"name":                    "default",
		"response_time_minutes":   120,
		"resolution_time_minutes": 480,
	}

	status, body := s.do(t, "POST", "/sla-rules", rule)
	require.Equal(t, 201, status, body)
	id := data(body)["id"].(float64)
	assert.Equal(t, true, data(body)["is_active"])

	status, body = s.do(t, "POST", "/sla-rules", rule)
	assert.Equal(t, 409, status)
	assert.Equal(t, "CONFLICT", errorCode(body))

	rule["response_warning_minutes"] = 150
	status, body = s.do(t, "PUT", "/sla-rules/1", rule)
	assert.Equal(t, 400, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, "GET", "/sla-rules/99", nil)
	assert.Equal(t, 404, status)
	assert.Equal(t, "RULE_NOT_FOUND", errorCode(body))

	status, _ = s.do(t, "GET", "/sla-rules/abc", nil)
	assert.Equal(t, 400, status)

	status, _ = s.do(t, "DELETE", "/sla-rules/1", nil)
	assert.Equal(t, 204, status)
	assert.Equal(t, float64(1), id)

	status, body = s.do(t, "POST", "/automation-rules", map[string]any{
		"name":       "assign network",
		"rule_type":  "auto_assign",
		"conditions": map[string]any{"category": "NETWORK"},
		"action":     map[string]any{"assignee_id": "agent-7"},
	})
	require.Equal(t, 201, status, body)
	assert.Equal(t, "agent-7", data(body)["action"].(map[string]any)["assignee_id"])

	status, body = s.do(t, "POST", "/automation-rules", map[string]any{
		"name":      "close",
		"rule_type": "auto_close",
	})
	assert.Equal(t, 400, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, body = s.do(t, "GET", "/automation-rules", nil)
	require.Equal(t, 200, status)
	assert.Len(t, body["data"], 1)
}

func TestSchedulerEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	status, body := s.do(t, "GET", "/schedulers", nil)
	require.Equal(t, 200, status)
	assert.Len(t, body["data"], 2)

	status, _ = s.do(t, "POST", "/schedulers/sla_monitor/run", nil)
	assert.Equal(t, 202, status)
	assert.Equal(t, []string{"sla_monitor"}, s.jobs.triggered)

	status, body = s.do(t, "POST", "/schedulers/reports/run", nil)
	assert.Equal(t, 404, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, "GET", "/health/live", nil)
	s.do(t, "GET", "/sla-rules/99", nil)

	status, body := s.do(t, "GET", "/metrics", nil)
	require.Equal(t, 200, status)
	assert.NotEmpty(t, body["requests"])
	assert.NotEmpty(t, body["errors"])
}
