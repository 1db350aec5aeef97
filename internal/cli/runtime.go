package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"meal-planner/internal/app"
	"meal-planner/internal/config"
	"meal-planner/internal/database"
	"meal-planner/internal/exporter"
	"meal-planner/internal/llm"
	"meal-planner/internal/metrics"
	"meal-planner/internal/planner"
	"meal-planner/internal/recipe"
	"meal-planner/internal/storage"
	"meal-planner/internal/syncer"
	"meal-planner/internal/telegram"
	"meal-planner/internal/telemetry"
)

// runtime holds the wired services for one command invocation.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *database.DB
	store    *storage.SnapshotStore
	metrics  *metrics.Store
	notifier *telegram.Notifier
	app      *app.App

	closers []func() error
}

func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	rt := &runtime{cfg: cfg, logger: logger}
	if err := rt.wire(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) wire(ctx context.Context) error {
	cfg := rt.cfg

	shutdown, err := telemetry.Setup(ctx, "meal-planner", cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	rt.closers = append(rt.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(ctx)
	})

	rt.db, err = database.NewDB(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	rt.closers = append(rt.closers, rt.db.Close)

	rt.store, err = storage.NewSnapshotStore(cfg.SnapshotDir(), cfg.SnapshotRetention)
	if err != nil {
		return fmt.Errorf("failed to initialize snapshot store: %w", err)
	}
	rt.metrics = metrics.NewStore(rt.db.SQL)

	syncOpts := []syncer.Option{syncer.WithRecorder(rt.metrics)}

	if cfg.TelegramBotToken != "" {
		rt.notifier, err = telegram.NewNotifier(cfg, rt.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Telegram notifier: %w", err)
		}
		syncOpts = append(syncOpts, syncer.WithAlerter(rt.notifier))
	}

	if cfg.TranslateItemNames {
		var gen llm.Client
		switch cfg.TranslateProvider {
		case "groq":
			gen = llm.NewGroqClient(cfg.GroqAPIKey)
		default:
			gen, err = llm.NewGeminiClient(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to create Gemini client: %w", err)
			}
		}
		rt.closers = append(rt.closers, gen.Close)

		cache := llm.NewSQLiteTranslationCache(rt.db.SQL)
		translator := llm.NewItemTranslator(gen, cache, cfg.TranslateSourceLang, rt.logger)
		syncOpts = append(syncOpts, syncer.WithTranslator(translator))
	}

	sync := syncer.New(exporter.NewClient(cfg), rt.store, syncer.OptionsFromConfig(cfg), rt.logger, syncOpts...)

	catalogPath := cfg.CatalogPath()
	catalog, err := recipe.LoadCatalog(catalogPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		rt.logger.Warn("recipe catalog not found, starting with an empty catalog", "path", catalogPath)
		catalog = []recipe.Recipe{}
	case err != nil:
		return err
	}

	appOpts := []app.Option{app.WithCatalogPath(catalogPath)}
	if cfg.PersistPlans {
		appOpts = append(appOpts, app.WithPlanStore(planner.NewPlanRepository(rt.db.SQL)))
	}
	rt.app = app.New(sync, rt.store, planner.NewEngine(), catalog, rt.logger, appOpts...)
	return nil
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && rt.logger != nil {
			rt.logger.Warn("failed to release resource", "error", err)
		}
	}
	rt.closers = nil
}
