package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"coverga/internal/evo"
	"coverga/internal/metrics"
	"coverga/internal/model"
	"coverga/internal/problem"
	"coverga/internal/storage"
)

var (
	ErrRunNotFound   = errors.New("run not found")
	ErrRunNotActive  = errors.New("run is not active")
	ErrDuplicateRun  = errors.New("run id already in use")
	ErrNotStarted    = errors.New("coordinator is not initialized")
	errStoreRequired = errors.New("store is required")
)

type Config struct {
	Store   storage.Store
	Metrics *metrics.RunMetrics
	Logger  *slog.Logger
	// Tracer defaults to the global otel tracer provider.
	Tracer trace.Tracer
	// Now defaults to time.Now.
	Now func() time.Time
}

// RunRequest describes one optimization run. ID is generated when empty.
// Selector names the survivor selection strategy ("tournament" when empty).
type RunRequest struct {
	ID       string
	Config   evo.Config
	Selector string
	Instance *problem.Instance
	Sink     evo.ProgressSink
}

// Coordinator executes runs, persists their history and tracks the active
// ones so they can be stopped. Each run gets its own engine.
type Coordinator struct {
	store   storage.Store
	metrics *metrics.RunMetrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time

	mu      sync.Mutex
	started bool
	active  map[string]context.CancelFunc
}

func NewCoordinator(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer("coverga/platform")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		store:   cfg.Store,
		metrics: cfg.Metrics,
		logger:  logger,
		tracer:  tracer,
		now:     now,
		active:  make(map[string]context.CancelFunc),
	}
}

func (c *Coordinator) Init(ctx context.Context) error {
	if c.store == nil {
		return errStoreRequired
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.started = true
	return nil
}

func NewRunID() string {
	return uuid.NewString()
}

// Run executes req synchronously and returns the persisted record. A run
// stopped through ctx or Stop completes with status cancelled and no error.
func (c *Coordinator) Run(ctx context.Context, req RunRequest) (model.RunRecord, evo.Result, error) {
	if !c.Started() {
		return model.RunRecord{}, evo.Result{}, ErrNotStarted
	}
	if req.Instance == nil {
		return model.RunRecord{}, evo.Result{}, fmt.Errorf("%w: instance is required", problem.ErrInvalidInstance)
	}
	selector, err := evo.SelectorByName(req.Selector, req.Config.TournamentSize)
	if err != nil {
		return model.RunRecord{}, evo.Result{}, err
	}
	ops, err := evo.NewBitOperators(req.Config.BitFlipProbability, selector)
	if err != nil {
		return model.RunRecord{}, evo.Result{}, err
	}
	id := req.ID
	if id == "" {
		id = NewRunID()
	}
	logger := c.logger.With("run_id", id)
	engine, err := evo.NewEngine(req.Config, ops, logger)
	if err != nil {
		return model.RunRecord{}, evo.Result{}, err
	}
	if req.Config.PenaltyWeight <= req.Instance.TotalCost() {
		logger.Warn("penalty weight does not exceed total facility cost; infeasible solutions may outrank feasible ones",
			"penalty_weight", req.Config.PenaltyWeight,
			"total_cost", req.Instance.TotalCost(),
		)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := c.register(id, cancel); err != nil {
		return model.RunRecord{}, evo.Result{}, err
	}
	defer c.unregister(id)

	persistCtx := context.WithoutCancel(ctx)
	record := storage.Stamp(model.RunRecord{
		ID:           id,
		CreatedAtUTC: c.now().UTC().Format(time.RFC3339Nano),
		Status:       model.RunActive,
		Config:       engine.Config().Record(),
		Clients:      req.Instance.Clients(),
		Facilities:   req.Instance.Facilities(),
	})
	if err := c.store.SaveRun(persistCtx, record); err != nil {
		return model.RunRecord{}, evo.Result{}, fmt.Errorf("save run %s: %w", id, err)
	}

	runCtx, span := c.tracer.Start(runCtx, "coverga.run", trace.WithAttributes(
		attribute.String("run.id", id),
		attribute.Int("instance.clients", record.Clients),
		attribute.Int("instance.facilities", record.Facilities),
		attribute.Int("engine.population_size", req.Config.PopulationSize),
		attribute.Int("engine.generations", req.Config.Generations),
		attribute.Int64("engine.seed", req.Config.Seed),
	))
	defer span.End()

	c.metrics.RunStarted()
	started := c.now()
	logger.Info("run started",
		"clients", record.Clients,
		"facilities", record.Facilities,
		"population_size", req.Config.PopulationSize,
		"generations", req.Config.Generations,
		"seed", req.Config.Seed,
	)

	recorder := &progressRecorder{next: req.Sink, metrics: c.metrics}
	result, runErr := engine.Run(runCtx, req.Instance, recorder)
	elapsed := c.now().Sub(started).Seconds()
	record.FinishedAtUTC = c.now().UTC().Format(time.RFC3339Nano)

	if runErr != nil {
		record.Status = model.RunFailed
		record.Error = runErr.Error()
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		c.metrics.RunFinished(string(model.RunFailed), elapsed, 0)
		logger.Error("run failed", "error", runErr)
		if err := c.store.SaveRun(persistCtx, record); err != nil {
			logger.Error("persist failed run", "error", err)
		}
		return record, evo.Result{}, runErr
	}

	record.Status = model.RunCompleted
	if result.Cancelled {
		record.Status = model.RunCancelled
	}
	record.GenerationsCompleted = result.Generations
	record.TotalCost = result.TotalCost
	record.SelectedIndices = result.SelectedIndices
	record.ClientsCovered = result.ClientsCovered

	span.SetAttributes(
		attribute.String("run.status", string(record.Status)),
		attribute.Float64("run.total_cost", record.TotalCost),
		attribute.Int("run.clients_covered", record.ClientsCovered),
	)
	c.metrics.RunFinished(string(record.Status), elapsed, record.TotalCost)

	if err := c.persist(persistCtx, record, recorder.snapshots, result.Diagnostics); err != nil {
		span.RecordError(err)
		return record, result, err
	}
	logger.Info("run finished",
		"status", record.Status,
		"generations", record.GenerationsCompleted,
		"total_cost", record.TotalCost,
		"clients_covered", record.ClientsCovered,
		"facilities_selected", len(record.SelectedIndices),
		"duration_seconds", elapsed,
	)
	return record, result, nil
}

func (c *Coordinator) persist(ctx context.Context, record model.RunRecord, snapshots []model.ProgressSnapshot, diagnostics []model.GenerationDiagnostics) error {
	if err := c.store.SaveProgress(ctx, record.ID, snapshots); err != nil {
		return fmt.Errorf("save progress %s: %w", record.ID, err)
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, record.ID, diagnostics); err != nil {
		return fmt.Errorf("save diagnostics %s: %w", record.ID, err)
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return fmt.Errorf("save run %s: %w", record.ID, err)
	}
	return nil
}

// Stop cancels an active run. The run finishes at its next generation
// boundary with status cancelled.
func (c *Coordinator) Stop(ctx context.Context, id string) error {
	c.mu.Lock()
	cancel, ok := c.active[id]
	c.mu.Unlock()
	if ok {
		cancel()
		c.logger.Info("run stop requested", "run_id", id)
		return nil
	}
	if _, found, err := c.store.GetRun(ctx, id); err != nil {
		return err
	} else if found {
		return fmt.Errorf("%w: %s", ErrRunNotActive, id)
	}
	return fmt.Errorf("%w: %s", ErrRunNotFound, id)
}

// StopAll cancels every active run.
func (c *Coordinator) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cancel := range c.active {
		cancel()
	}
}

func (c *Coordinator) ActiveRuns() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, 0, len(c.active))
	for id := range c.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (c *Coordinator) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func (c *Coordinator) Runs(ctx context.Context) ([]model.RunRecord, error) {
	return c.store.ListRuns(ctx)
}

func (c *Coordinator) GetRun(ctx context.Context, id string) (model.RunRecord, error) {
	run, ok, err := c.store.GetRun(ctx, id)
	if err != nil {
		return model.RunRecord{}, err
	}
	if !ok {
		return model.RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

func (c *Coordinator) Progress(ctx context.Context, id string) ([]model.ProgressSnapshot, error) {
	snapshots, ok, err := c.store.GetProgress(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return snapshots, nil
}

func (c *Coordinator) Diagnostics(ctx context.Context, id string) ([]model.GenerationDiagnostics, error) {
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return diagnostics, nil
}

func (c *Coordinator) register(id string, cancel context.CancelFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.active[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRun, id)
	}
	c.active[id] = cancel
	return nil
}

func (c *Coordinator) unregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, id)
}

// progressRecorder keeps the full snapshot history for persistence and
// forwards every snapshot to the caller's sink. The engine publishes from a
// single goroutine.
type progressRecorder struct {
	next      evo.ProgressSink
	metrics   *metrics.RunMetrics
	snapshots []model.ProgressSnapshot
}

func (r *progressRecorder) Publish(snapshot model.ProgressSnapshot) {
	r.snapshots = append(r.snapshots, snapshot)
	if snapshot.Status == model.StatusRunning {
		r.metrics.GenerationCompleted()
	}
	if r.next != nil {
		r.next.Publish(snapshot)
	}
}
