package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"podcaster/internal/config"
	"podcaster/internal/domain"
	"podcaster/internal/knowledge"
	"podcaster/internal/publisher"
	"podcaster/internal/scheduler"
	"podcaster/internal/script"
	"podcaster/internal/service"
	"podcaster/internal/source/reddit"
	"podcaster/internal/storage/postgres"
	"podcaster/internal/storage/spaces"
	"podcaster/internal/synthesis"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	task := flag.String("task", "serve", "generate|teaser|clean|remove|sync|serve")
	removeID := flag.String("id", "", "artifact id for -task remove")
	removeKind := flag.String("kind", "episode", "episode|teaser for -task remove")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	app, err := buildApp(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, app, cfg, *task, *removeID, *removeKind, logger); err != nil {
		logger.Error("task failed", "task", *task, "error", err)
		os.Exit(1)
	}
}

// app holds the wired components and the handles that need closing.
type app struct {
	generation *service.GenerationService
	corpus     *service.CorpusSyncService
	catalog    *spaces.CatalogRepository

	db       *sqlx.DB
	rabbitMQ *publisher.RabbitMQ
}

func (a *app) close() {
	if a.rabbitMQ != nil {
		a.rabbitMQ.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func buildApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := spaces.NewStore(spaces.Config{
		Endpoint:        cfg.Spaces.Endpoint,
		Region:          cfg.Spaces.Region,
		Bucket:          cfg.Spaces.Bucket,
		AccessKeyID:     cfg.Spaces.AccessKeyID,
		SecretAccessKey: cfg.Spaces.SecretAccessKey,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}

	catalog := spaces.NewCatalogRepository(store, cfg.Spaces.CatalogKey, logger)

	scripts := script.New(script.Config{
		Endpoint:  cfg.Script.Endpoint,
		AccessKey: cfg.Script.AccessKey,
		MaxTokens: cfg.Script.MaxTokens,
		Timeout:   cfg.Script.Timeout,
	}, logger)

	synthesizer := synthesis.New(synthesis.Config{
		Endpoint:        cfg.Synthesis.Endpoint,
		AccessKey:       cfg.Synthesis.AccessKey,
		Model:           cfg.Synthesis.Model,
		Voice:           cfg.Synthesis.Voice,
		PollInterval:    cfg.Synthesis.PollInterval,
		MaxPollAttempts: cfg.Synthesis.MaxPollAttempts,
		Timeout:         cfg.Synthesis.Timeout,
	}, logger)

	a := &app{catalog: catalog}

	var pub service.Publisher
	if cfg.RabbitMQ.Enabled {
		rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
			URL:        cfg.RabbitMQ.URL,
			Exchange:   cfg.RabbitMQ.Exchange,
			RoutingKey: cfg.RabbitMQ.RoutingKey,
			QueueName:  cfg.RabbitMQ.QueueName,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		a.rabbitMQ = rabbitMQ
		pub = rabbitMQ
		logger.Info("connected to rabbitmq", "exchange", cfg.RabbitMQ.Exchange)
	}

	a.generation = service.NewGenerationService(
		scripts,
		synthesizer,
		store,
		catalog,
		pub,
		cfg.Spaces.AudioPrefix,
		logger,
	)

	if cfg.Database.Enabled {
		db, err := sqlx.Connect("postgres", cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		logger.Info("connected to database")

		source := reddit.New(reddit.Config{
			PostLimit:      cfg.Corpus.PostLimit,
			TimeFilter:     cfg.Corpus.TimeFilter,
			Timeout:        cfg.Corpus.Timeout,
			MaxAttempts:    cfg.Corpus.Retry.MaxAttempts,
			InitialBackoff: cfg.Corpus.Retry.InitialBackoff,
			MaxBackoff:     cfg.Corpus.Retry.MaxBackoff,
		}, logger)

		var kb service.KnowledgeBase
		if cfg.Corpus.KnowledgeBase.BaseURL != "" {
			kb = knowledge.New(knowledge.Config{
				BaseURL:     cfg.Corpus.KnowledgeBase.BaseURL,
				WorkspaceID: cfg.Corpus.KnowledgeBase.WorkspaceID,
				KBID:        cfg.Corpus.KnowledgeBase.KBID,
				APIKey:      cfg.Corpus.KnowledgeBase.APIKey,
				Timeout:     cfg.Corpus.Timeout,
			}, logger)
		}

		a.corpus = service.NewCorpusSyncService(
			source,
			postgres.NewPostStore(db),
			postgres.NewSyncStateStore(db),
			postgres.NewTransactionManager(db),
			store,
			kb,
			cfg.Spaces.CorpusPrefix,
			logger,
			cfg.Corpus,
		)
	}

	return a, nil
}

func run(ctx context.Context, a *app, cfg *config.Config, task, removeID, removeKind string, logger *slog.Logger) error {
	switch task {
	case "generate":
		return runGenerate(ctx, a, domain.ModeFull)
	case "teaser":
		return runGenerate(ctx, a, domain.ModeTeaser)
	case "clean":
		stats, err := a.catalog.Clean(ctx)
		if err != nil {
			return err
		}
		logger.Info("catalog cleaned",
			"removed_episodes", stats.RemovedEpisodes,
			"removed_teasers", stats.RemovedTeasers,
			"remaining_episodes", stats.RemainingEpisodes,
			"remaining_teasers", stats.RemainingTeasers,
		)
		return nil
	case "remove":
		if removeID == "" {
			return fmt.Errorf("-task remove requires -id")
		}
		kind := domain.ArtifactKind(removeKind)
		if kind != domain.ArtifactEpisode && kind != domain.ArtifactTeaser {
			return fmt.Errorf("unknown kind %q", removeKind)
		}
		return a.catalog.Remove(ctx, removeID, kind)
	case "sync":
		if a.corpus == nil {
			return fmt.Errorf("-task sync requires database.enabled")
		}
		_, err := a.corpus.Sync(ctx)
		return err
	case "serve":
		return serve(ctx, a, cfg, logger)
	default:
		return fmt.Errorf("unknown task %q", task)
	}
}

func runGenerate(ctx context.Context, a *app, mode domain.Mode) error {
	_, err := a.generation.Generate(ctx, mode)
	return err
}

// serve runs the daily generation job, and the corpus sync job when a
// database is configured, until the context is cancelled.
func serve(ctx context.Context, a *app, cfg *config.Config, logger *slog.Logger) error {
	var wg sync.WaitGroup

	if a.corpus != nil {
		corpusSched := scheduler.New(
			"corpus-sync",
			scheduler.JobFunc(func(ctx context.Context) error {
				_, err := a.corpus.Sync(ctx)
				return err
			}),
			cfg.Corpus.Interval,
			10*time.Minute,
			logger,
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = corpusSched.Start(ctx)
		}()
	}

	generateSched := scheduler.New(
		"generate-episode",
		scheduler.JobFunc(func(ctx context.Context) error {
			_, err := a.generation.Generate(ctx, domain.ModeFull)
			return err
		}),
		cfg.Generate.Interval,
		cfg.Generate.Timeout,
		logger,
	)

	err := generateSched.Start(ctx)
	wg.Wait()

	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return err
	}
	return nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
