package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	reportconsensus "tribunal/contexts/moderation-safety/report-consensus-service"
	postgresadapter "tribunal/contexts/moderation-safety/report-consensus-service/adapters/postgres"
	"tribunal/contexts/moderation-safety/report-consensus-service/application/workers"
	"tribunal/internal/platform/config"
	"tribunal/internal/platform/db"
	"tribunal/internal/platform/httpserver"
	"tribunal/internal/platform/identity"
	"tribunal/internal/platform/messaging"
	"tribunal/internal/platform/metrics"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	database *db.Database
	bus      *messaging.Kafka
	relay    workers.OutboxRelay
	audit    AuditConsumer
	logger   *slog.Logger
}

type WorkerApp struct {
	database *db.Database
	bus      *messaging.Kafka
	relay    workers.OutboxRelay
	audit    AuditConsumer
	logger   *slog.Logger
}

type engine struct {
	module     reportconsensus.Module
	repository *postgresadapter.Repository
	directory  postgresadapter.AgentDirectory
}

func buildEngine(database *db.Database, cfg config.Config, recorder *metrics.Prometheus, logger *slog.Logger) engine {
	repo := postgresadapter.NewRepository(database.DB, logger)
	module := reportconsensus.NewModule(reportconsensus.Dependencies{
		Reports:         repo,
		Bans:            repo,
		Contents:        postgresadapter.NewContentStores(database.DB, logger),
		Announcements:   postgresadapter.NewFeedSink(database.DB),
		Clock:           postgresadapter.SystemClock{},
		IDGen:           postgresadapter.UUIDGenerator{},
		Metrics:         recorder,
		QuorumThreshold: cfg.QuorumThreshold,
		MinReasonLength: cfg.ReportReasonMinLength,
		ReasonMaxLength: cfg.AnnouncementReasonMaxLength,
		AnnouncerID:     cfg.AnnouncerID,
		Logger:          logger,
	})
	return engine{
		module:     module,
		repository: repo,
		directory:  postgresadapter.NewAgentDirectory(database.DB),
	}
}

func connect(cfg config.Config, logger *slog.Logger) (*db.Database, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	database, err := db.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, err
	}
	if cfg.AutoMigrate {
		if err := migrateSchema(database); err != nil {
			_ = database.Close()
			return nil, err
		}
	}
	return database, nil
}

// newRelay builds the outbox relay for one process. The api and worker both
// relay; the owner tag keeps their leases apart in moderation_outbox.
func newRelay(cfg config.Config, process string, repo *postgresadapter.Repository, bus *messaging.Kafka, logger *slog.Logger) workers.OutboxRelay {
	return workers.OutboxRelay{
		Outbox:       repo,
		Publisher:    BusPublisher{Bus: bus},
		Clock:        postgresadapter.SystemClock{},
		Owner:        relayOwner(cfg.ServiceName, process),
		BatchSize:    100,
		PollInterval: cfg.OutboxPollInterval,
		Logger:       logger,
	}
}

func relayOwner(service string, process string) string {
	return fmt.Sprintf("%s/%s/%s", service, process, uuid.NewString())
}

func BuildAPI(cfg config.Config) (*APIApp, error) {
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	database, err := connect(cfg, logger)
	if err != nil {
		return nil, err
	}

	bus, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	recorder := metrics.NewPrometheus()
	built := buildEngine(database, cfg, recorder, logger)

	resolver, err := identity.NewJWTResolver(cfg.JWTSecret, built.directory)
	if err != nil {
		_ = database.Close()
		return nil, err
	}
	limiter := httpserver.NewParticipantLimiter(cfg.MutationRatePerMinute)
	limiter.OnLimited = recorder.RequestRateLimited

	server := httpserver.New(built.module, httpserver.Options{
		Addr:          normalizeAddr(cfg.HTTPPort),
		Resolver:      resolver,
		Limiter:       limiter,
		Metrics:       recorder.Handler(),
		EnableSwagger: cfg.EnableSwagger,
		Logger:        logger,
	})
	return &APIApp{
		server:   server,
		database: database,
		bus:      bus,
		relay:    newRelay(cfg, "api", built.repository, bus, logger),
		audit:    AuditConsumer{Logger: logger},
		logger:   logger,
	}, nil
}

func BuildWorker(cfg config.Config) (*WorkerApp, error) {
	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")

	database, err := connect(cfg, logger)
	if err != nil {
		return nil, err
	}

	bus, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	repo := postgresadapter.NewRepository(database.DB, logger)
	return &WorkerApp{
		database: database,
		bus:      bus,
		relay:    newRelay(cfg, "worker", repo, bus, logger),
		audit:    AuditConsumer{Logger: logger},
		logger:   logger,
	}, nil
}

// Migrate creates the engine and collaborator tables.
func Migrate(cfg config.Config) error {
	logger := slog.Default().With("service", cfg.ServiceName, "process", "migrate")
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required")
	}
	database, err := db.Connect(cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := migrateSchema(database); err != nil {
		return err
	}
	logger.Info("schema migrated",
		"event", "bootstrap_schema_migrated",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"driver", database.Driver,
	)
	return nil
}

func migrateSchema(database *db.Database) error {
	models := append(postgresadapter.Models(), postgresadapter.CollaboratorModels()...)
	return database.Migrate(models...)
}

// Run serves HTTP and relays the outbox until ctx is cancelled or either
// fails.
func (a *APIApp) Run(ctx context.Context) error {
	if err := a.audit.Start(ctx, a.bus); err != nil {
		return err
	}
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.server.Run(groupCtx)
	})
	group.Go(func() error {
		return a.relay.Run(groupCtx)
	})
	return group.Wait()
}

func (a *APIApp) Close() error {
	if a.database != nil {
		return a.database.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.audit.Start(ctx, w.bus); err != nil {
		return err
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.relay.PollInterval.String(),
	)
	return w.relay.Run(ctx)
}

func (w *WorkerApp) Close() error {
	if w.database != nil {
		return w.database.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
