package stats

import (
	"os"
	"path/filepath"
	"testing"

	"coverga/internal/model"
)

func sampleArtifacts(id, created string) RunArtifacts {
	return RunArtifacts{
		Run: model.RunRecord{
			ID:                   id,
			CreatedAtUTC:         created,
			Status:               model.RunCompleted,
			Config:               model.RunConfig{PopulationSize: 10, Generations: 2, Seed: 3},
			Clients:              4,
			Facilities:           3,
			GenerationsCompleted: 2,
			TotalCost:            7.5,
			SelectedIndices:      []int{0, 2},
			ClientsCovered:       4,
		},
		Progress: []model.ProgressSnapshot{
			{Generation: 1, TotalGenerations: 2, BestCost: 9.25, GenerationBestCost: 9.25, ClientsCovered: 3, Status: model.StatusRunning},
			{Generation: 2, TotalGenerations: 2, BestCost: 7.5, GenerationBestCost: 8, ClientsCovered: 4, Status: model.StatusRunning},
			{Generation: 2, TotalGenerations: 2, BestCost: 7.5, GenerationBestCost: 8, ClientsCovered: 4, Status: model.StatusCompleted},
		},
		Diagnostics: []model.GenerationDiagnostics{{Generation: 0}, {Generation: 1}, {Generation: 2}},
	}
}

func TestWriteRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	artifacts := sampleArtifacts("run-1", "2026-01-02T00:00:00Z")

	runDir, err := WriteRunArtifacts(baseDir, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, file := range []string{runFile, progressFile, diagnosticsFile, seriesFile} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	run, ok, err := ReadRun(baseDir, "run-1")
	if err != nil || !ok {
		t.Fatalf("read run: ok=%v err=%v", ok, err)
	}
	if run.TotalCost != 7.5 || len(run.SelectedIndices) != 2 {
		t.Fatalf("unexpected run: %+v", run)
	}

	series, ok, err := ReadCostSeries(baseDir, "run-1")
	if err != nil || !ok {
		t.Fatalf("read series: ok=%v err=%v", ok, err)
	}
	if len(series) != 2 {
		t.Fatalf("expected the completion snapshot to be skipped, got %d points", len(series))
	}
	want := SeriesPoint{Generation: 2, BestCost: 7.5, GenerationBestCost: 8, ClientsCovered: 4}
	if series[1] != want {
		t.Fatalf("last point: got %+v want %+v", series[1], want)
	}
}

func TestWriteRunArtifactsRequiresID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected error for missing run id")
	}
}

func TestReadMissingArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	if _, ok, err := ReadRun(baseDir, "nope"); ok || err != nil {
		t.Fatalf("read run: ok=%v err=%v", ok, err)
	}
	if _, ok, err := ReadCostSeries(baseDir, "nope"); ok || err != nil {
		t.Fatalf("read series: ok=%v err=%v", ok, err)
	}
	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty index, got %d", len(entries))
	}
}

func TestRunIndexNewestFirstAndReplaces(t *testing.T) {
	baseDir := t.TempDir()
	older := IndexEntry(sampleArtifacts("run-a", "2026-01-01T00:00:00Z").Run)
	newer := IndexEntry(sampleArtifacts("run-b", "2026-01-03T00:00:00Z").Run)
	for _, entry := range []RunIndexEntry{older, newer} {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}

	older.TotalCost = 1
	if err := AppendRunIndex(baseDir, older); err != nil {
		t.Fatalf("replace: %v", err)
	}

	entries, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].RunID != "run-b" || entries[1].RunID != "run-a" {
		t.Fatalf("unexpected order: %s, %s", entries[0].RunID, entries[1].RunID)
	}
	if entries[1].TotalCost != 1 {
		t.Fatalf("expected replaced entry, got total cost %v", entries[1].TotalCost)
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{}); err == nil {
		t.Fatal("expected error for missing run id")
	}
}
