// Package app is the planning service facade: it decides when to sync,
// falls back to the last good snapshot and runs the planning engine.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"meal-planner/internal/apperr"
	"meal-planner/internal/inventory"
	"meal-planner/internal/planner"
	"meal-planner/internal/recipe"
	"meal-planner/internal/shopping"
	"meal-planner/internal/storage"
	"meal-planner/internal/syncer"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// Syncer pulls a fresh snapshot from the export service.
type Syncer interface {
	Sync(ctx context.Context) (syncer.Result, error)
}

// SnapshotReader reads committed snapshots.
type SnapshotReader interface {
	Latest(ctx context.Context) (inventory.Snapshot, error)
	Get(ctx context.Context, version int64) (inventory.Snapshot, error)
	Versions(ctx context.Context) ([]int64, error)
}

// PlanStore keeps generated plans.
type PlanStore interface {
	Save(ctx context.Context, plan planner.MealPlan) error
	Get(ctx context.Context, id string) (planner.MealPlan, error)
	ListRecent(ctx context.Context, limit int) ([]planner.MealPlan, error)
}

// PlanRequest is one planning request.
type PlanRequest struct {
	ForceRefresh bool     `json:"forceRefresh"`
	Tags         []string `json:"tags,omitempty"`
	MaxMeals     int      `json:"maxMeals,omitempty"`
}

// Option configures optional collaborators.
type Option func(*App)

// WithCatalogPath sets the file ReloadCatalog reads.
func WithCatalogPath(path string) Option {
	return func(a *App) { a.catalogPath = path }
}

// WithPlanStore persists every generated plan.
func WithPlanStore(s PlanStore) Option {
	return func(a *App) { a.plans = s }
}

// WithClock overrides the time source used for staleness.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// App holds the application's dependencies.
type App struct {
	syncer Syncer
	store  SnapshotReader
	engine *planner.Engine
	plans  PlanStore
	logger *slog.Logger
	now    func() time.Time
	tracer trace.Tracer

	catalogPath string
	catalogMu   sync.RWMutex
	catalog     []recipe.Recipe

	syncGroup singleflight.Group

	// syncFailure is the error of the most recent sync when it failed
	// recoverably; nil once a sync succeeds.
	syncMu      sync.Mutex
	syncFailure error
}

// New creates the facade over an initial recipe catalog.
func New(s Syncer, store SnapshotReader, engine *planner.Engine, catalog []recipe.Recipe, logger *slog.Logger, opts ...Option) *App {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{
		syncer:  s,
		store:   store,
		engine:  engine,
		logger:  logger.With("component", "app"),
		now:     time.Now,
		tracer:  otel.Tracer("meal-planner/app"),
		catalog: catalog,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// RequestPlan produces a meal plan. It syncs first when asked to or when no
// snapshot exists yet. If that sync fails but an older snapshot is
// available, the plan is computed from it and flagged stale. Plans are also
// flagged stale while the most recent sync attempt has failed.
func (a *App) RequestPlan(ctx context.Context, req PlanRequest) (planner.MealPlan, error) {
	ctx, span := a.tracer.Start(ctx, "app.RequestPlan", trace.WithAttributes(
		attribute.Bool("plan.force_refresh", req.ForceRefresh),
		attribute.Int("plan.max_meals", req.MaxMeals),
	))
	defer span.End()

	plan, err := a.requestPlan(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return planner.MealPlan{}, err
	}
	span.SetAttributes(
		attribute.Int64("plan.snapshot_version", plan.SnapshotVersion),
		attribute.Int("plan.selected", len(plan.SelectedRecipes)),
		attribute.Bool("plan.stale", plan.Stale),
	)
	return plan, nil
}

func (a *App) requestPlan(ctx context.Context, req PlanRequest) (planner.MealPlan, error) {
	if req.MaxMeals < 0 {
		return planner.MealPlan{}, apperr.New(apperr.CodeInvalidRequest, "maxMeals must not be negative")
	}

	snap, haveSnap, err := a.latest(ctx)
	if err != nil {
		return planner.MealPlan{}, planningFailure(err)
	}

	var staleWarning string
	synced := req.ForceRefresh || !haveSnap
	if synced {
		_, syncErr := a.runSync(ctx)
		switch {
		case syncErr == nil:
			snap, haveSnap, err = a.latest(ctx)
			if err != nil {
				return planner.MealPlan{}, planningFailure(err)
			}
		case isRecoverable(syncErr):
			// A concurrent sync may have committed while ours failed.
			if !haveSnap {
				snap, haveSnap, _ = a.latest(ctx)
			}
			if !haveSnap {
				return planner.MealPlan{}, planningFailure(syncErr)
			}
			staleWarning = staleMessage(syncErr, snap)
			a.logger.WarnContext(ctx, "serving plan from last good snapshot", "version", snap.Version, "error", syncErr)
		default:
			return planner.MealPlan{}, planningFailure(syncErr)
		}
	}
	if !haveSnap {
		return planner.MealPlan{}, planningFailure(storage.ErrEmptyStore)
	}
	if !synced {
		if failure := a.lastSyncFailure(); failure != nil {
			staleWarning = staleMessage(failure, snap)
		}
	}

	plan := a.engine.Plan(snap, a.Catalog(), planner.PlanOptions{Tags: req.Tags, MaxMeals: req.MaxMeals})
	plan.ID = uuid.NewString()
	if staleWarning != "" {
		plan.MarkStale(snap.Age(a.now()), staleWarning)
	}

	if a.plans != nil {
		if err := a.plans.Save(context.WithoutCancel(ctx), plan); err != nil {
			a.logger.WarnContext(ctx, "failed to save meal plan", "plan_id", plan.ID, "error", err)
		}
	}

	a.logger.InfoContext(ctx, "meal plan generated",
		"plan_id", plan.ID,
		"version", plan.SnapshotVersion,
		"selected", len(plan.SelectedRecipes),
		"unmet", len(plan.UnmetIngredients),
		"stale", plan.Stale)
	return plan, nil
}

// Sync forces a sync, sharing the run with any sync already in flight.
func (a *App) Sync(ctx context.Context) (syncer.Result, error) {
	res, err := a.runSync(ctx)
	if err != nil {
		return syncer.Result{}, planningFailure(err)
	}
	return res, nil
}

// runSync collapses concurrent syncs into one. The shared run is detached
// from any single caller's cancellation; each caller still stops waiting
// when its own context ends.
func (a *App) runSync(ctx context.Context) (syncer.Result, error) {
	ch := a.syncGroup.DoChan("sync", func() (any, error) {
		res, err := a.syncer.Sync(context.WithoutCancel(ctx))
		a.recordSyncOutcome(err)
		return res, err
	})
	select {
	case <-ctx.Done():
		return syncer.Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return syncer.Result{}, r.Err
		}
		return r.Val.(syncer.Result), nil
	}
}

func (a *App) recordSyncOutcome(err error) {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()
	switch {
	case err == nil:
		a.syncFailure = nil
	case isRecoverable(err):
		a.syncFailure = err
	}
}

func (a *App) lastSyncFailure() error {
	a.syncMu.Lock()
	defer a.syncMu.Unlock()
	return a.syncFailure
}

// Snapshot returns a stored snapshot; version 0 means the latest.
func (a *App) Snapshot(ctx context.Context, version int64) (inventory.Snapshot, error) {
	var (
		snap inventory.Snapshot
		err  error
	)
	if version == 0 {
		snap, err = a.store.Latest(ctx)
	} else {
		snap, err = a.store.Get(ctx, version)
	}
	if err != nil {
		return inventory.Snapshot{}, planningFailure(err)
	}
	return snap, nil
}

// Versions lists the stored snapshot versions.
func (a *App) Versions(ctx context.Context) ([]int64, error) {
	versions, err := a.store.Versions(ctx)
	if err != nil {
		return nil, planningFailure(err)
	}
	return versions, nil
}

// Plan returns a stored plan by id.
func (a *App) Plan(ctx context.Context, id string) (planner.MealPlan, error) {
	if a.plans == nil {
		return planner.MealPlan{}, apperr.New(apperr.CodeNotFound, "plan history is disabled")
	}
	plan, err := a.plans.Get(ctx, id)
	if err != nil {
		return planner.MealPlan{}, planningFailure(err)
	}
	return plan, nil
}

// RecentPlans lists stored plans, newest first.
func (a *App) RecentPlans(ctx context.Context, limit int) ([]planner.MealPlan, error) {
	if a.plans == nil {
		return nil, apperr.New(apperr.CodeNotFound, "plan history is disabled")
	}
	if limit <= 0 {
		limit = 10
	}
	plans, err := a.plans.ListRecent(ctx, limit)
	if err != nil {
		return nil, planningFailure(err)
	}
	return plans, nil
}

// ShoppingList builds the buy list for a stored plan.
func (a *App) ShoppingList(ctx context.Context, planID string) (shopping.List, error) {
	plan, err := a.Plan(ctx, planID)
	if err != nil {
		return shopping.List{}, err
	}
	return a.ShoppingListFor(ctx, plan), nil
}

// ShoppingListFor builds the buy list for plan. Names and units come from the
// plan's snapshot while it is still retained.
func (a *App) ShoppingListFor(ctx context.Context, plan planner.MealPlan) shopping.List {
	var stock map[string]inventory.Item
	if snap, err := a.store.Get(ctx, plan.SnapshotVersion); err == nil {
		stock = snap.Items
	} else {
		a.logger.DebugContext(ctx, "snapshot for shopping list unavailable", "version", plan.SnapshotVersion, "error", err)
	}
	return shopping.Build(plan, stock)
}

// Catalog returns the recipe catalog in priority order.
func (a *App) Catalog() []recipe.Recipe {
	a.catalogMu.RLock()
	defer a.catalogMu.RUnlock()
	return a.catalog
}

// ReloadCatalog re-reads the catalog file. On failure the current catalog
// stays in place. A malformed catalog is INVALID_REQUEST, a missing file
// NOT_FOUND; other read failures stay internal.
func (a *App) ReloadCatalog() (int, error) {
	if a.catalogPath == "" {
		return 0, apperr.New(apperr.CodeInvalidRequest, "no recipe catalog path configured")
	}
	recipes, err := recipe.LoadCatalog(a.catalogPath)
	switch {
	case errors.Is(err, recipe.ErrInvalidCatalog):
		return 0, apperr.Wrap(apperr.CodeInvalidRequest, err.Error(), err)
	case errors.Is(err, fs.ErrNotExist):
		return 0, apperr.Wrap(apperr.CodeNotFound, "recipe catalog not found: "+a.catalogPath, err)
	case err != nil:
		return 0, fmt.Errorf("failed to reload recipe catalog: %w", err)
	}

	a.catalogMu.Lock()
	a.catalog = recipes
	a.catalogMu.Unlock()

	a.logger.Info("recipe catalog reloaded", "path", a.catalogPath, "recipes", len(recipes))
	return len(recipes), nil
}

func (a *App) latest(ctx context.Context) (inventory.Snapshot, bool, error) {
	snap, err := a.store.Latest(ctx)
	if errors.Is(err, storage.ErrEmptyStore) {
		return inventory.Snapshot{}, false, nil
	}
	if err != nil {
		return inventory.Snapshot{}, false, err
	}
	return snap, true, nil
}

// isRecoverable reports whether a sync failure still allows planning from
// the previous snapshot.
func isRecoverable(err error) bool {
	return errors.Is(err, syncer.ErrSyncUnavailable) || errors.Is(err, syncer.ErrInvalidInventoryData)
}

func staleMessage(err error, snap inventory.Snapshot) string {
	reason := "inventory service unavailable"
	if errors.Is(err, syncer.ErrInvalidInventoryData) {
		reason = "inventory service returned invalid data"
	}
	return fmt.Sprintf("%s; plan uses snapshot v%d captured at %s", reason, snap.Version, snap.CapturedAt.UTC().Format(time.RFC3339))
}

// planningFailure maps a domain error onto the request-level taxonomy.
func planningFailure(err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}

	code := apperr.CodeInternal
	switch {
	case errors.Is(err, syncer.ErrSyncUnavailable):
		code = apperr.CodeSyncUnavailable
	case errors.Is(err, syncer.ErrInvalidInventoryData):
		code = apperr.CodeInvalidInventoryData
	case errors.Is(err, storage.ErrEmptyStore):
		code = apperr.CodeEmptyStore
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, planner.ErrPlanNotFound):
		code = apperr.CodeNotFound
	case errors.Is(err, storage.ErrStaleVersion):
		code = apperr.CodeStaleVersion
	case errors.Is(err, context.DeadlineExceeded):
		code = apperr.CodeSyncUnavailable
	}
	return apperr.Wrap(code, err.Error(), err)
}
