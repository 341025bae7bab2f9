package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"recordwatch/internal/autofile"
	"recordwatch/internal/classify"
	"recordwatch/internal/config"
	"recordwatch/internal/dedup"
	"recordwatch/internal/domain"
	"recordwatch/internal/health"
	"recordwatch/internal/infrastructure/costs"
	"recordwatch/internal/infrastructure/delivery"
	"recordwatch/internal/infrastructure/llm"
	"recordwatch/internal/infrastructure/locker"
	"recordwatch/internal/infrastructure/parser"
	"recordwatch/internal/infrastructure/scheduler"
	"recordwatch/internal/infrastructure/storage"
	"recordwatch/internal/infrastructure/telegram"
	"recordwatch/internal/lifecycle"
	"recordwatch/internal/ports"
	"recordwatch/internal/retry"
	"recordwatch/internal/scanner"
	"recordwatch/internal/submit"
	"recordwatch/internal/usecase"
)

// Application wires configuration to adapters and use cases.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	db     *sql.DB

	source      *parser.StrategySource
	tracker     *health.Tracker
	filter      *dedup.RelevanceFilter
	dedup       *dedup.Deduplicator
	candidates  ports.CandidateStore
	decisions   ports.DecisionLog
	requests    ports.RequestStore
	targets     ports.TargetDirectory
	classifier  ports.SemanticClassifier
	predictor   ports.CostPredictor
	publisher   ports.Publisher
	coordinator *submit.Coordinator
}

// New connects storage, applies the schema, and wires all adapters.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Application, error) {
	db, err := storage.Open(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect storage: %w", err)
	}
	if err := storage.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate storage: %w", err)
	}

	registry := scanner.NewRegistry()
	registry.Register(parser.NewHTMLFeedScanner(nil))

	app := &Application{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		source:     parser.NewStrategySource(registry, cfg.Sources, logger.With("component", "source")),
		candidates: storage.NewCandidateRepository(db),
		decisions:  storage.NewDecisionRepository(db),
		requests:   storage.NewRequestRepository(db),
		targets:    storage.NewTargetRepository(db),
	}

	app.tracker = health.NewTracker(storage.NewHealthRepository(db), logger.With("component", "health"))
	app.filter = dedup.NewRelevanceFilter(dedup.Keywords{
		Junk:      cfg.Keywords.Junk,
		Indicator: cfg.Keywords.Indicator,
		Override:  cfg.Keywords.Override,
	})
	app.dedup = dedup.NewDeduplicator(app.candidates)

	if cfg.Classifier.APIKey != "" {
		app.classifier = llm.NewClassifier(cfg.Classifier)
	}
	if cfg.CostPredictor.Endpoint != "" {
		app.predictor = costs.NewClient(cfg.CostPredictor.Endpoint, cfg.CostPredictor.APIKey)
	}
	if cfg.Notifications.Telegram.BotToken != "" {
		app.publisher = telegram.NewPublisher(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	lc := lifecycle.NewManager(app.requests, app.targets, logger.With("component", "lifecycle"))
	deliverer := delivery.NewMailGateway(cfg.Delivery.Endpoint, cfg.Delivery.APIKey, cfg.Delivery.From)
	app.coordinator = submit.NewCoordinator(
		app.requests, app.targets, lc,
		locker.NewPostgresLocker(db), deliverer,
		storage.NewArtifactRepository(db), app.publisher,
		logger.With("component", "submit"))

	return app, nil
}

// buildPipeline snapshots the target registry and auto-file policy for one
// batch, so no decision inside it sees mid-batch config drift.
func (a *Application) buildPipeline(ctx context.Context) (*usecase.Pipeline, error) {
	targets, err := a.targets.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot targets: %w", err)
	}

	scorer := classify.NewScorer(a.classifier, targets, retry.Default(), a.logger.With("component", "classify"))
	engine := autofile.NewEngine(a.decisions, a.requests, a.targets, a.predictor, a.logger.With("component", "autofile"))

	return usecase.NewPipeline(usecase.PipelineDeps{
		SourceIDs:   a.source.SourceIDs(),
		Feed:        a.source,
		Health:      a.tracker,
		Filter:      a.filter,
		Dedup:       a.dedup,
		Scorer:      scorer,
		Engine:      engine,
		Coordinator: a.coordinator,
		Candidates:  a.candidates,
		Policy:      a.cfg.AutoFile.Policy(),
		Logger:      a.logger.With("component", "pipeline"),
	}), nil
}

// RunOnce executes a single ingestion batch.
func (a *Application) RunOnce(ctx context.Context) (domain.BatchReport, error) {
	pipeline, err := a.buildPipeline(ctx)
	if err != nil {
		return domain.BatchReport{}, err
	}
	return pipeline.Run(ctx, time.Now().In(a.cfg.Scheduler.Location())), nil
}

// RunDaemon schedules recurring batches until the context is canceled.
func (a *Application) RunDaemon(ctx context.Context) error {
	driver := scheduler.NewCronScheduler(a.cfg.Scheduler.CronExpression, a.cfg.Scheduler.Location())
	runner := usecase.NewScheduler(driver, a.buildPipeline, a.logger.With("component", "scheduler"))

	if err := runner.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", "cron", a.cfg.Scheduler.CronExpression)

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return runner.Stop(stopCtx)
}

// SubmitRequest triggers the coordinator for a manually drafted request.
func (a *Application) SubmitRequest(ctx context.Context, requestID string) (domain.Request, error) {
	return a.coordinator.Submit(ctx, requestID, "operator")
}

// ResetSource force-closes a source's circuit breaker.
func (a *Application) ResetSource(ctx context.Context, sourceID string) error {
	return a.tracker.Reset(ctx, sourceID)
}

// Close releases the storage connection.
func (a *Application) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}
