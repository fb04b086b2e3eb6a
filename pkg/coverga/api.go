// Package coverga is the embeddable client for weighted set-cover runs. It
// wraps the engine, the run coordinator and the run store behind plain
// request and summary types.
package coverga

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"slices"

	"coverga/internal/dataset"
	"coverga/internal/evo"
	"coverga/internal/model"
	"coverga/internal/platform"
	"coverga/internal/problem"
	"coverga/internal/stats"
	"coverga/internal/storage"
)

const (
	defaultExportsDir = "exports"
	defaultRunsLimit  = 20
)

var (
	// ErrRunNotFound is returned for an unknown run id.
	ErrRunNotFound = platform.ErrRunNotFound
	// ErrInvalidRequest wraps invalid run parameters and instances.
	ErrInvalidRequest = errors.New("invalid run request")
)

type Options struct {
	// StoreKind is memory, sqlite or badger. Empty means memory.
	StoreKind string
	StorePath string
	// ExportsDir is where Export writes when the request names no directory.
	ExportsDir string
	Logger     *slog.Logger
}

type Client struct {
	store       storage.Store
	coordinator *platform.Coordinator
	exportsDir  string
}

// RunRequest describes one run. The instance comes from Coverage and Cost
// when Coverage is set, otherwise from the CoveragePath and CostPath files.
// Every engine field is used as given, so start from DefaultRunRequest; a
// zero-valued request fails validation.
type RunRequest struct {
	Coverage [][]bool
	Cost     []float64

	CoveragePath string
	CostPath     string
	// Clients and Facilities shape a single-column coverage file.
	Clients    int
	Facilities int

	Population           int
	Generations          int
	Seed                 int64
	CrossoverProbability float64
	MutationProbability  float64
	BitFlipProbability   float64
	TournamentSize       int
	Selection            string
	PenaltyWeight        float64
	Workers              int

	// Progress, when set, receives one call per generation.
	Progress func(Progress)
}

type Progress struct {
	Generation       int
	TotalGenerations int
	BestCost         float64
	ClientsCovered   int
}

type RunSummary struct {
	RunID            string
	Status           string
	TotalCost        float64
	SelectedIndices  []int
	ClientsCovered   int
	TotalClients     int
	Generations      int
	Cancelled        bool
	BestByGeneration []float64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	Status         string
	Seed           int64
	Population     int
	Generations    int
	TotalCost      float64
	ClientsCovered int
	TotalClients   int
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

// DefaultRunRequest returns a request carrying the engine defaults.
func DefaultRunRequest() RunRequest {
	cfg := evo.DefaultConfig()
	return RunRequest{
		Population:           cfg.PopulationSize,
		Generations:          cfg.Generations,
		Seed:                 cfg.Seed,
		CrossoverProbability: cfg.CrossoverProbability,
		MutationProbability:  cfg.MutationProbability,
		BitFlipProbability:   cfg.BitFlipProbability,
		TournamentSize:       cfg.TournamentSize,
		Selection:            "tournament",
		PenaltyWeight:        evo.DefaultPenaltyWeight,
		Workers:              cfg.Workers,
	}
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, opts.StorePath, opts.Logger)
	if err != nil {
		return nil, err
	}
	return &Client{
		store:       store,
		coordinator: platform.NewCoordinator(platform.Config{Store: store, Logger: opts.Logger}),
		exportsDir:  exportsDir,
	}, nil
}

func (c *Client) Close() error {
	c.coordinator.StopAll()
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.coordinator.Init(ctx)
}

// Run executes one optimization and blocks until it finishes or ctx is
// cancelled. A cancelled run still returns its best-so-far summary.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.ensureInit(ctx); err != nil {
		return RunSummary{}, err
	}
	instance, err := req.instance()
	if err != nil {
		return RunSummary{}, errors.Join(ErrInvalidRequest, err)
	}
	cfg := req.config()

	var sink evo.ProgressSink
	if req.Progress != nil {
		sink = evo.SinkFunc(func(snapshot model.ProgressSnapshot) {
			if snapshot.Status != model.StatusRunning {
				return
			}
			req.Progress(Progress{
				Generation:       snapshot.Generation,
				TotalGenerations: snapshot.TotalGenerations,
				BestCost:         snapshot.BestCost,
				ClientsCovered:   snapshot.ClientsCovered,
			})
		})
	}

	record, result, err := c.coordinator.Run(ctx, platform.RunRequest{
		Config:   cfg,
		Selector: req.Selection,
		Instance: instance,
		Sink:     sink,
	})
	if err != nil {
		if errors.Is(err, evo.ErrInvalidConfiguration) || errors.Is(err, problem.ErrInvalidInstance) {
			return RunSummary{}, errors.Join(ErrInvalidRequest, err)
		}
		return RunSummary{}, err
	}
	return RunSummary{
		RunID:            record.ID,
		Status:           string(record.Status),
		TotalCost:        record.TotalCost,
		SelectedIndices:  record.SelectedIndices,
		ClientsCovered:   record.ClientsCovered,
		TotalClients:     record.Clients,
		Generations:      record.GenerationsCompleted,
		Cancelled:        result.Cancelled,
		BestByGeneration: result.BestByGeneration,
	}, nil
}

// Stop cancels an active run started by another goroutine.
func (c *Client) Stop(ctx context.Context, runID string) error {
	return c.coordinator.Stop(ctx, runID)
}

// Runs lists stored runs, newest first.
func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}
	if err := c.ensureInit(ctx); err != nil {
		return nil, err
	}
	runs, err := c.coordinator.Runs(ctx)
	if err != nil {
		return nil, err
	}
	slices.Reverse(runs)
	if len(runs) > req.Limit {
		runs = runs[:req.Limit]
	}

	out := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		out = append(out, RunItem{
			RunID:          run.ID,
			CreatedAtUTC:   run.CreatedAtUTC,
			Status:         string(run.Status),
			Seed:           run.Config.Seed,
			Population:     run.Config.PopulationSize,
			Generations:    run.GenerationsCompleted,
			TotalCost:      run.TotalCost,
			ClientsCovered: run.ClientsCovered,
			TotalClients:   run.Clients,
		})
	}
	return out, nil
}

// Export writes a run's artifacts under OutDir/<run id> and indexes it there.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	run, err := c.coordinator.GetRun(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	progress, err := c.coordinator.Progress(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	diagnostics, err := c.coordinator.Diagnostics(ctx, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	dir, err := stats.WriteRunArtifacts(req.OutDir, stats.RunArtifacts{Run: run, Progress: progress, Diagnostics: diagnostics})
	if err != nil {
		return ExportSummary{}, err
	}
	if err := stats.AppendRunIndex(req.OutDir, stats.IndexEntry(run)); err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(dir)}, nil
}

// Diagnostics returns per-generation population statistics. A positive Limit
// keeps the last Limit generations.
func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(ctx, req.RunID, req.Latest)
	if err != nil {
		return nil, err
	}
	diagnostics, err := c.coordinator.Diagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[len(diagnostics)-req.Limit:]
	}
	return diagnostics, nil
}

func (c *Client) resolveRunID(ctx context.Context, runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if err := c.ensureInit(ctx); err != nil {
		return "", err
	}
	if runID != "" {
		return runID, nil
	}
	runs, err := c.coordinator.Runs(ctx)
	if err != nil {
		return "", err
	}
	if len(runs) == 0 {
		return "", errors.New("no runs available")
	}
	return runs[len(runs)-1].ID, nil
}

func (c *Client) ensureInit(ctx context.Context) error {
	if c.coordinator.Started() {
		return nil
	}
	return c.coordinator.Init(ctx)
}

func (r RunRequest) instance() (*problem.Instance, error) {
	if r.Coverage != nil {
		return problem.NewInstance(r.Coverage, r.Cost)
	}
	if r.CoveragePath == "" || r.CostPath == "" {
		return nil, errors.New("coverage and cost are required")
	}
	return dataset.Load(dataset.Options{
		CoveragePath: r.CoveragePath,
		CostPath:     r.CostPath,
		Shape:        dataset.Shape{Clients: r.Clients, Facilities: r.Facilities},
		Cost:         dataset.CostOptions{Row: 1, Column: 1},
	})
}

func (r RunRequest) config() evo.Config {
	return evo.Config{
		PopulationSize:       r.Population,
		Generations:          r.Generations,
		Seed:                 r.Seed,
		CrossoverProbability: r.CrossoverProbability,
		MutationProbability:  r.MutationProbability,
		BitFlipProbability:   r.BitFlipProbability,
		TournamentSize:       r.TournamentSize,
		PenaltyWeight:        r.PenaltyWeight,
		Workers:              r.Workers,
	}
}
