package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-sla/internal/api/http"
	"github.com/spec-kit/helpdesk-sla/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-sla/internal/clock"
	"github.com/spec-kit/helpdesk-sla/internal/config"
	"github.com/spec-kit/helpdesk-sla/internal/events"
	"github.com/spec-kit/helpdesk-sla/internal/notify"
	"github.com/spec-kit/helpdesk-sla/internal/observability"
	"github.com/spec-kit/helpdesk-sla/internal/persistence"
	"github.com/spec-kit/helpdesk-sla/internal/repository"
	"github.com/spec-kit/helpdesk-sla/internal/repository/memstore"
	"github.com/spec-kit/helpdesk-sla/internal/scheduler"
	"github.com/spec-kit/helpdesk-sla/internal/service"
	"github.com/spec-kit/helpdesk-sla/internal/worker"
)

const (
	jobSLAMonitor = "sla_monitor"
	jobAutomation = "automation"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var store repository.Store
	dependencies := map[string]handlers.Pinger{}
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = repository.NewPostgresStore(pool)
		dependencies["postgres"] = pg
	} else {
		mem := memstore.New()
		store = mem
		dependencies["store"] = mem
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()
	if redis.Enabled() {
		dependencies["redis"] = redis
	}

	clk := clock.Real()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	delivery := deliverySink(cfg.Notification, logger)
	var (
		sink               notify.Sink = delivery
		notificationWorker *worker.NotificationWorker
	)
	if cfg.Notification.QueueEnabled {
		sink = notify.NewQueueSink(redis.Client, cfg.Notification.QueueKey, delivery.Targets())
		notificationWorker = worker.NewNotificationWorker(
			worker.NewRedisQueue(redis.Client, cfg.Notification.QueueKey),
			delivery,
			cfg.Notification.MaxRetries,
			logger,
		)
	}
	notificationService := service.NewNotificationService(dispatcher, sink, logger)
	worker.StartNotificationWorker(ctx, notificationService, notificationWorker)

	ticketService := service.NewTicketService(service.TicketDependencies{
		Store: store, Clock: clk, Dispatcher: dispatcher, Logger: logger,
	})
	slaService := service.NewSLAService(service.SLADependencies{
		Store: store, Clock: clk, Dispatcher: dispatcher, Logger: logger,
		ItemRetries: cfg.Scheduler.SLAItemRetries,
	})
	automationService := service.NewAutomationService(service.AutomationDependencies{
		Store: store, Clock: clk, Dispatcher: dispatcher, Logger: logger,
		ItemRetries: cfg.Scheduler.SLAItemRetries,
	})
	ruleService := service.NewRuleService(store, clk, logger)

	controller := scheduler.NewController(clk, logger, metrics)
	if err := registerJobs(controller, cfg.Scheduler, metrics, slaService, automationService); err != nil {
		logger.Fatal("failed to register jobs", zap.Error(err))
	}
	if cfg.Scheduler.Enabled {
		controller.Start(ctx)
	} else {
		logger.Info("schedulers disabled")
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:     handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies, metrics),
		Tickets:    handlers.NewTicketsHandler(ticketService),
		Rules:      handlers.NewRulesHandler(ruleService),
		Schedulers: handlers.NewSchedulerHandler(controller),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	controller.Stop()
	cancel()
	if notificationWorker != nil {
		notificationWorker.Wait()
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

// deliverySink fans out to the log plus every target with credentials.
func deliverySink(cfg config.NotificationConfig, logger *zap.Logger) *notify.MultiSink {
	sink := notify.NewMultiSink(logger).Add("log", notify.NewLogSink(logger))
	if cfg.SlackToken != "" && cfg.SlackChannel != "" {
		sink.Add("slack", notify.NewSlackSink(cfg.SlackToken, cfg.SlackChannel, cfg.Timeout()))
	}
	if cfg.WebhookURL != "" {
		sink.Add("webhook", notify.NewWebhookSink(cfg.WebhookURL, cfg.Timeout()))
	}
	if cfg.SendGridKey != "" && cfg.EmailTo != "" {
		sink.Add("email", notify.NewEmailSink(cfg.SendGridKey, cfg.EmailFrom, cfg.EmailTo))
	}
	logger.Info("notification targets", zap.Strings("targets", sink.Targets()))
	return sink
}

func registerJobs(controller *scheduler.Controller, cfg config.SchedulerConfig, metrics *observability.Metrics,
	slaService *service.SLAService, automationService *service.AutomationService) error {
	slaSchedule, err := cfg.SLAMonitor()
	if err != nil {
		return err
	}
	automationSchedule, err := cfg.Automation()
	if err != nil {
		return err
	}

	if err := controller.Register(scheduler.Job{
		Name:     jobSLAMonitor,
		Schedule: slaSchedule,
		Backoff:  cfg.SLAMonitorBackoff(),
		Run:      passJob(jobSLAMonitor, metrics, slaService.MonitorPass),
	}); err != nil {
		return err
	}
	return controller.Register(scheduler.Job{
		Name:     jobAutomation,
		Schedule: automationSchedule,
		Backoff:  cfg.AutomationBackoff(),
		Run:      passJob(jobAutomation, metrics, automationService.RunPass),
	})
}

func passJob(name string, metrics *observability.Metrics, pass func(context.Context) (service.PassResult, error)) func(context.Context) error {
	return func(ctx context.Context) error {
		result, err := pass(ctx)
		metrics.RecordJobItems(name, "scanned", result.Scanned)
		metrics.RecordJobItems(name, "changed", result.Changed)
		metrics.RecordJobItems(name, "failed", result.Failed)
		return err
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
