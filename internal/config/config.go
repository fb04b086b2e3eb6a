// Package config loads the coverga service configuration from YAML, applies
// environment overrides and validates the result.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"coverga/internal/evo"
)

type Config struct {
	Server  ServerConfig  `yaml:"server" json:"server"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Dataset DatasetConfig `yaml:"dataset" json:"dataset"`
	Engine  EngineConfig  `yaml:"engine" json:"engine"`
	Log     LogConfig     `yaml:"log" json:"log"`
}

type ServerConfig struct {
	Addr        string   `yaml:"addr" json:"addr" validate:"required"`
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
	// RunRatePerSecond limits how often /run may start a new run. Zero
	// disables the limiter.
	RunRatePerSecond float64 `yaml:"run_rate_per_second" json:"run_rate_per_second" validate:"gte=0"`
	RunBurst         int     `yaml:"run_burst" json:"run_burst" validate:"gte=1"`
}

type StoreConfig struct {
	Kind string `yaml:"kind" json:"kind" validate:"oneof=memory sqlite badger"`
	Path string `yaml:"path" json:"path" validate:"required_if=Kind sqlite"`
}

// DatasetConfig locates the coverage matrix and cost vector. Clients and
// Facilities give the shape of a single-column coverage file; leave them zero
// for a grid file with one row per client.
type DatasetConfig struct {
	CoveragePath string `yaml:"coverage_path" json:"coverage_path"`
	CostPath     string `yaml:"cost_path" json:"cost_path" validate:"required_with=CoveragePath"`
	Clients      int    `yaml:"clients" json:"clients" validate:"gte=0"`
	Facilities   int    `yaml:"facilities" json:"facilities" validate:"gte=0"`
	CostSheet    string `yaml:"cost_sheet" json:"cost_sheet"`
	CostRow      int    `yaml:"cost_row" json:"cost_row" validate:"gte=0"`
	CostColumn   int    `yaml:"cost_column" json:"cost_column" validate:"gte=0"`
	Watch        bool   `yaml:"watch" json:"watch"`
}

type EngineConfig struct {
	PopulationSize       int     `yaml:"population_size" json:"population_size" validate:"gt=0"`
	Generations          int     `yaml:"generations" json:"generations" validate:"gte=0"`
	Seed                 int64   `yaml:"seed" json:"seed"`
	CrossoverProbability float64 `yaml:"crossover_probability" json:"crossover_probability" validate:"gte=0,lte=1"`
	MutationProbability  float64 `yaml:"mutation_probability" json:"mutation_probability" validate:"gte=0,lte=1"`
	BitFlipProbability   float64 `yaml:"bit_flip_probability" json:"bit_flip_probability" validate:"gte=0,lte=1"`
	TournamentSize       int     `yaml:"tournament_size" json:"tournament_size" validate:"gte=1"`
	Selector             string  `yaml:"selector" json:"selector" validate:"oneof=tournament truncation"`
	PenaltyWeight        float64 `yaml:"penalty_weight" json:"penalty_weight" validate:"gt=0"`
	Workers              int     `yaml:"workers" json:"workers" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" json:"format" validate:"oneof=auto text json"`
}

var validate = validator.New()

func Default() Config {
	engine := evo.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Addr:             ":5000",
			CORSOrigins:      []string{"*"},
			RunRatePerSecond: 1,
			RunBurst:         4,
		},
		Store: StoreConfig{Kind: "memory"},
		Dataset: DatasetConfig{
			CostRow:    1,
			CostColumn: 1,
		},
		Engine: EngineConfig{
			PopulationSize:       engine.PopulationSize,
			Generations:          engine.Generations,
			Seed:                 engine.Seed,
			CrossoverProbability: engine.CrossoverProbability,
			MutationProbability:  engine.MutationProbability,
			BitFlipProbability:   engine.BitFlipProbability,
			TournamentSize:       engine.TournamentSize,
			Selector:             "tournament",
			PenaltyWeight:        evo.DefaultPenaltyWeight,
			Workers:              1,
		},
		Log: LogConfig{Level: "info", Format: "auto"},
	}
}

// Load reads path over Default, applies COVERGA_* environment overrides and
// validates. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q", first.Namespace(), first.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Evo converts the engine section into the engine's own configuration.
func (e EngineConfig) Evo() evo.Config {
	return evo.Config{
		PopulationSize:       e.PopulationSize,
		Generations:          e.Generations,
		Seed:                 e.Seed,
		CrossoverProbability: e.CrossoverProbability,
		MutationProbability:  e.MutationProbability,
		BitFlipProbability:   e.BitFlipProbability,
		TournamentSize:       e.TournamentSize,
		PenaltyWeight:        e.PenaltyWeight,
		Workers:              e.Workers,
	}
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("COVERGA_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("COVERGA_STORE_KIND"); v != "" {
		cfg.Store.Kind = v
	}
	if v := os.Getenv("COVERGA_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("COVERGA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("COVERGA_WORKERS"); v != "" {
		workers, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse COVERGA_WORKERS: %w", err)
		}
		cfg.Engine.Workers = workers
	}
	if v := os.Getenv("COVERGA_PENALTY_WEIGHT"); v != "" {
		weight, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse COVERGA_PENALTY_WEIGHT: %w", err)
		}
		cfg.Engine.PenaltyWeight = weight
	}
	return nil
}
