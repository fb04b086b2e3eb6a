// Package stats writes the on-disk artifacts of finished runs: the run
// record, its snapshot history and diagnostics, a per-generation cost series
// and an index of exported runs.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"coverga/internal/model"
)

const (
	runIndexFile    = "index.json"
	runFile         = "run.json"
	progressFile    = "progress.json"
	diagnosticsFile = "generation_diagnostics.json"
	seriesFile      = "cost_series.csv"
)

var errRunIDRequired = errors.New("run id is required")

type RunArtifacts struct {
	Run         model.RunRecord
	Progress    []model.ProgressSnapshot
	Diagnostics []model.GenerationDiagnostics
}

// SeriesPoint is one row of cost_series.csv.
type SeriesPoint struct {
	Generation         int
	BestCost           float64
	GenerationBestCost float64
	ClientsCovered     int
}

type RunIndexEntry struct {
	RunID          string          `json:"run_id"`
	Status         model.RunStatus `json:"status"`
	Clients        int             `json:"clients"`
	Facilities     int             `json:"facilities"`
	PopulationSize int             `json:"population_size"`
	Generations    int             `json:"generations"`
	Seed           int64           `json:"seed"`
	TotalCost      float64         `json:"total_cost"`
	CreatedAtUTC   string          `json:"created_at_utc"`
}

// IndexEntry summarizes run for the export index.
func IndexEntry(run model.RunRecord) RunIndexEntry {
	return RunIndexEntry{
		RunID:          run.ID,
		Status:         run.Status,
		Clients:        run.Clients,
		Facilities:     run.Facilities,
		PopulationSize: run.Config.PopulationSize,
		Generations:    run.Config.Generations,
		Seed:           run.Config.Seed,
		TotalCost:      run.TotalCost,
		CreatedAtUTC:   run.CreatedAtUTC,
	}
}

// WriteRunArtifacts writes the artifacts into baseDir/<run id> and returns
// that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.ID == "" {
		return "", errRunIDRequired
	}

	runDir := filepath.Join(baseDir, artifacts.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, runFile), artifacts.Run); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, progressFile), nonNil(artifacts.Progress)); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, diagnosticsFile), nonNil(artifacts.Diagnostics)); err != nil {
		return "", err
	}
	if err := writeSeries(filepath.Join(runDir, seriesFile), artifacts.Progress); err != nil {
		return "", err
	}
	return runDir, nil
}

// AppendRunIndex adds entry to baseDir/index.json, replacing an entry with
// the same run id.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return errRunIDRequired
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}
	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the indexed runs, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode run index: %w", err)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAtUTC == entries[j].CreatedAtUTC {
			return entries[i].RunID < entries[j].RunID
		}
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

func ReadRun(baseDir, runID string) (model.RunRecord, bool, error) {
	var run model.RunRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, runFile), &run)
	return run, ok, err
}

// ReadCostSeries parses baseDir/<run id>/cost_series.csv.
func ReadCostSeries(baseDir, runID string) ([]SeriesPoint, bool, error) {
	f, err := os.Open(filepath.Join(baseDir, runID, seriesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, false, err
	}
	series := make([]SeriesPoint, 0, len(records))
	for i, record := range records {
		if i == 0 {
			continue
		}
		if len(record) != 4 {
			return nil, false, fmt.Errorf("%s line %d: expected 4 fields, got %d", seriesFile, i+1, len(record))
		}
		var point SeriesPoint
		if point.Generation, err = strconv.Atoi(record[0]); err != nil {
			return nil, false, err
		}
		if point.BestCost, err = strconv.ParseFloat(record[1], 64); err != nil {
			return nil, false, err
		}
		if point.GenerationBestCost, err = strconv.ParseFloat(record[2], 64); err != nil {
			return nil, false, err
		}
		if point.ClientsCovered, err = strconv.Atoi(record[3]); err != nil {
			return nil, false, err
		}
		series = append(series, point)
	}
	return series, true, nil
}

// writeSeries keeps the per-generation snapshots only; the completion
// snapshot repeats the last generation.
func writeSeries(path string, progress []model.ProgressSnapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"generation", "best_cost", "generation_best_cost", "clients_covered"}); err != nil {
		return err
	}
	for _, snapshot := range progress {
		if snapshot.Status != model.StatusRunning {
			continue
		}
		if err := w.Write([]string{
			strconv.Itoa(snapshot.Generation),
			strconv.FormatFloat(snapshot.BestCost, 'g', -1, 64),
			strconv.FormatFloat(snapshot.GenerationBestCost, 'g', -1, 64),
			strconv.Itoa(snapshot.ClientsCovered),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

func nonNil[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
