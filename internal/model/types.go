package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type SnapshotStatus string

const (
	StatusRunning   SnapshotStatus = "running"
	StatusCompleted SnapshotStatus = "completed"
)

// ProgressSnapshot is emitted once per generation and once more when a run
// completes. BestCost and ClientsCovered describe the best individual seen so
// far; GenerationBestCost describes the current population only.
type ProgressSnapshot struct {
	Generation         int            `json:"generation"`
	TotalGenerations   int            `json:"total_generations"`
	BestCost           float64        `json:"best_cost"`
	ClientsCovered     int            `json:"clients_covered"`
	GenerationBestCost float64        `json:"generation_best_cost"`
	Status             SnapshotStatus `json:"status"`
}

type GenerationDiagnostics struct {
	Generation        int     `json:"generation"`
	BestFitness       float64 `json:"best_fitness"`
	MeanFitness       float64 `json:"mean_fitness"`
	StdDevFitness     float64 `json:"stddev_fitness"`
	WorstFitness      float64 `json:"worst_fitness"`
	FeasibleCount     int     `json:"feasible_count"`
	GenotypeDiversity int     `json:"genotype_diversity"`
	MeanSelected      float64 `json:"mean_selected"`
	Evaluations       int     `json:"evaluations"`
}

// RunConfig is the persisted form of the engine parameters a run used.
type RunConfig struct {
	PopulationSize       int     `json:"population_size"`
	Generations          int     `json:"generations"`
	Seed                 int64   `json:"seed"`
	CrossoverProbability float64 `json:"crossover_probability"`
	MutationProbability  float64 `json:"mutation_probability"`
	BitFlipProbability   float64 `json:"bit_flip_probability"`
	TournamentSize       int     `json:"tournament_size"`
	PenaltyWeight        float64 `json:"penalty_weight"`
	Workers              int     `json:"workers"`
}

type RunStatus string

const (
	RunActive    RunStatus = "active"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
	RunFailed    RunStatus = "failed"
)

// RunRecord summarizes one optimization run. It never carries the problem
// instance itself, only its dimensions.
type RunRecord struct {
	VersionedRecord
	ID                   string    `json:"id"`
	CreatedAtUTC         string    `json:"created_at_utc"`
	FinishedAtUTC        string    `json:"finished_at_utc,omitempty"`
	Status               RunStatus `json:"status"`
	Config               RunConfig `json:"config"`
	Clients              int       `json:"clients"`
	Facilities           int       `json:"facilities"`
	GenerationsCompleted int       `json:"generations_completed"`
	TotalCost            float64   `json:"total_cost"`
	SelectedIndices      []int     `json:"selected_indices"`
	ClientsCovered       int       `json:"clients_covered"`
	Error                string    `json:"error,omitempty"`
}
