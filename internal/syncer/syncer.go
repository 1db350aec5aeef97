// Package syncer pulls inventory from the export service and commits it as
// a new snapshot version.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"meal-planner/internal/config"
	"meal-planner/internal/exporter"
	"meal-planner/internal/inventory"
	"meal-planner/internal/metrics"
	"meal-planner/internal/storage"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store is the subset of the snapshot store the syncer writes through.
type Store interface {
	Latest(ctx context.Context) (inventory.Snapshot, error)
	Put(ctx context.Context, snap inventory.Snapshot) (int64, error)
}

// Alerter notifies an operator about data that needs human attention.
type Alerter interface {
	Alert(ctx context.Context, title, detail string) error
}

// Translator renders item names into the planner's language. The result maps
// each source name to its translation; missing entries keep the source name.
type Translator interface {
	TranslateNames(ctx context.Context, names []string) (map[string]string, error)
}

// Options bounds the fetch retry loop.
type Options struct {
	Timeout        time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// OptionsFromConfig maps the SYNC_* settings. SYNC_MAX_RETRIES counts retries,
// so the attempt budget is one more.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Timeout:        cfg.SyncTimeout,
		MaxAttempts:    cfg.SyncMaxRetries + 1,
		InitialBackoff: cfg.SyncInitialBackoff,
		MaxBackoff:     cfg.SyncMaxBackoff,
	}
}

// Result describes a successful sync.
type Result struct {
	Version   int64 `json:"version"`
	Changed   bool  `json:"changed"`
	Attempts  int   `json:"attempts"`
	ItemCount int   `json:"items"`
}

// Option configures optional collaborators.
type Option func(*Syncer)

// WithAlerter sets where invalid payloads are reported.
func WithAlerter(a Alerter) Option {
	return func(s *Syncer) { s.alerter = a }
}

// WithTranslator enables item-name translation.
func WithTranslator(t Translator) Option {
	return func(s *Syncer) { s.translator = t }
}

// WithRecorder records one metric per sync run.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Syncer) { s.recorder = r }
}

// WithClock overrides the time source used for captured_at.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// Syncer fetches, validates and commits inventory snapshots.
type Syncer struct {
	client     exporter.Client
	store      Store
	opts       Options
	logger     *slog.Logger
	alerter    Alerter
	translator Translator
	recorder   metrics.Recorder
	now        func() time.Time
	tracer     trace.Tracer
}

// New creates a Syncer. A nil logger uses slog.Default.
func New(client exporter.Client, store Store, opts Options, logger *slog.Logger, options ...Option) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}

	s := &Syncer{
		client: client,
		store:  store,
		opts:   opts,
		logger: logger.With("component", "syncer"),
		now:    time.Now,
		tracer: otel.Tracer("meal-planner/syncer"),
	}
	for _, o := range options {
		o(s)
	}
	return s
}

// Sync fetches the current inventory and stores it as a new version. An
// unchanged inventory is a no-op that returns the existing version.
//
// Transient failures are retried with exponential backoff and end in a
// *SyncUnavailableError once the attempt budget is spent. An invalid payload
// fails at once with *InvalidInventoryDataError and is reported through the
// alerter.
func (s *Syncer) Sync(ctx context.Context) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "syncer.Sync")
	defer span.End()

	start := time.Now()
	res, err := s.sync(ctx)
	latency := time.Since(start)

	span.SetAttributes(
		attribute.Int("sync.attempts", res.Attempts),
		attribute.Int("sync.items", res.ItemCount),
		attribute.Int64("sync.version", res.Version),
		attribute.Bool("sync.changed", res.Changed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WarnContext(ctx, "inventory sync failed", "attempts", res.Attempts, "error", err)
	} else {
		s.logger.InfoContext(ctx, "inventory sync finished",
			"version", res.Version, "changed", res.Changed, "items", res.ItemCount,
			"attempts", res.Attempts, "latency_ms", latency.Milliseconds())
	}

	s.record(ctx, res, err, latency)
	return res, err
}

func (s *Syncer) sync(ctx context.Context) (Result, error) {
	raw, attempts, err := s.fetch(ctx)
	res := Result{Attempts: attempts}
	if err != nil {
		return res, s.reportInvalid(ctx, err)
	}

	items, err := inventory.Validate(raw)
	if err != nil {
		return res, s.reportInvalid(ctx, err)
	}
	res.ItemCount = len(items)

	version, changed, err := s.commit(ctx, items)
	if err != nil {
		return res, err
	}
	res.Version, res.Changed = version, changed
	return res, nil
}

// fetch runs the bounded retry loop and classifies the final error.
func (s *Syncer) fetch(ctx context.Context) ([]inventory.Item, int, error) {
	var (
		attempts int
		lastErr  error
	)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.InitialBackoff
	b.MaxInterval = s.opts.MaxBackoff

	op := func() ([]inventory.Item, error) {
		attempts++
		attemptCtx := ctx
		if s.opts.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
			defer cancel()
		}

		items, err := s.client.FetchInventory(attemptCtx)
		if err == nil {
			return items, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}
		if !exporter.IsTransient(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	notify := func(err error, wait time.Duration) {
		s.logger.WarnContext(ctx, "retrying inventory fetch",
			"attempt", attempts,
			"max_attempts", s.opts.MaxAttempts,
			"backoff_ms", wait.Milliseconds(),
			"error", err)
	}

	items, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.opts.MaxAttempts)),
		backoff.WithNotify(notify),
	)
	if err == nil {
		return items, attempts, nil
	}

	if ctx.Err() != nil {
		return nil, attempts, fmt.Errorf("inventory sync canceled after %d attempt(s): %w", attempts, ctx.Err())
	}
	if errors.Is(err, inventory.ErrInvalidData) {
		return nil, attempts, err
	}
	if lastErr == nil {
		lastErr = err
	}
	return nil, attempts, &SyncUnavailableError{Attempts: attempts, Cause: lastErr}
}

// reportInvalid alerts the operator when err is an invalid payload and
// returns err unchanged.
func (s *Syncer) reportInvalid(ctx context.Context, err error) error {
	if !errors.Is(err, inventory.ErrInvalidData) {
		return err
	}
	s.logger.ErrorContext(ctx, "export service sent invalid inventory data", "error", err)
	if s.alerter == nil {
		return err
	}
	if alertErr := s.alerter.Alert(ctx, "Inventory sync rejected invalid data", err.Error()); alertErr != nil {
		s.logger.ErrorContext(ctx, "failed to alert operator", "error", alertErr)
	}
	return err
}

// translate replaces item names in place and remembers the exported name.
// Failures keep the original names.
func (s *Syncer) translate(ctx context.Context, items map[string]inventory.Item) {
	if s.translator == nil || len(items) == 0 {
		return
	}

	ids := inventory.SortedIDs(items)
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, items[id].Name)
	}

	translated, err := s.translator.TranslateNames(ctx, names)
	if err != nil {
		s.logger.WarnContext(ctx, "item name translation failed, keeping original names", "error", err)
		return
	}
	for _, id := range ids {
		item := items[id]
		if name, ok := translated[item.Name]; ok && name != "" && name != item.Name {
			item.SourceName = item.Name
			item.Name = name
			items[id] = item
		}
	}
}

// commit stores items as latest+1 unless they equal the latest snapshot. The
// comparison runs on the exported payload; names are translated only for a
// version that will actually be written. A lost race against a concurrent
// writer is retried once with a fresh version.
func (s *Syncer) commit(ctx context.Context, items map[string]inventory.Item) (int64, bool, error) {
	var (
		lastErr    error
		translated bool
	)
	for try := 0; try < 2; try++ {
		next := int64(1)
		latest, err := s.store.Latest(ctx)
		switch {
		case errors.Is(err, storage.ErrEmptyStore):
		case err != nil:
			return 0, false, fmt.Errorf("failed to read latest snapshot: %w", err)
		default:
			if inventory.SameItems(latest.Items, items) {
				return latest.Version, false, nil
			}
			next = latest.Version + 1
		}
		if !translated {
			s.translate(ctx, items)
			translated = true
		}

		version, err := s.store.Put(ctx, inventory.Snapshot{
			Version:    next,
			CapturedAt: s.now().UTC(),
			Items:      items,
		})
		if err == nil {
			return version, true, nil
		}
		if !errors.Is(err, storage.ErrStaleVersion) {
			return 0, false, fmt.Errorf("failed to store snapshot: %w", err)
		}
		s.logger.InfoContext(ctx, "concurrent sync committed first, re-reading latest", "attempted", next)
		lastErr = err
	}
	return 0, false, fmt.Errorf("failed to store snapshot: %w", lastErr)
}

func (s *Syncer) record(ctx context.Context, res Result, err error, latency time.Duration) {
	if s.recorder == nil {
		return
	}

	m := metrics.SyncMetric{
		Attempts:        res.Attempts,
		ItemCount:       res.ItemCount,
		SnapshotVersion: res.Version,
		LatencyMS:       latency.Milliseconds(),
		Timestamp:       time.Now().UTC(),
	}
	switch {
	case err == nil && res.Changed:
		m.Outcome = metrics.OutcomeCommitted
	case err == nil:
		m.Outcome = metrics.OutcomeUnchanged
	case errors.Is(err, ErrSyncUnavailable):
		m.Outcome = metrics.OutcomeUnavailable
	case errors.Is(err, ErrInvalidInventoryData):
		m.Outcome = metrics.OutcomeInvalid
	default:
		m.Outcome = metrics.OutcomeFailed
	}
	if err != nil {
		m.Error = err.Error()
	}

	// The run already finished; a canceled request must not drop its metric.
	if recErr := s.recorder.RecordSync(context.WithoutCancel(ctx), m); recErr != nil {
		s.logger.WarnContext(ctx, "failed to record sync metric", "error", recErr)
	}
}
