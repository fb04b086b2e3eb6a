package coverga

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestClient(t *testing.T, opts Options) *Client {
	t.Helper()
	client, err := New(opts)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	if err := client.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return client
}

func smallRequest() RunRequest {
	req := DefaultRunRequest()
	req.Coverage = [][]bool{
		{true, false, false, true},
		{false, true, false, true},
		{false, false, true, false},
		{true, true, false, false},
	}
	req.Cost = []float64{3, 4, 2, 5}
	req.Population = 16
	req.Generations = 6
	req.Seed = 5
	return req
}

func TestClientRunRunsAndExport(t *testing.T) {
	exportsDir := filepath.Join(t.TempDir(), "exports")
	client := newTestClient(t, Options{StoreKind: "memory", ExportsDir: exportsDir})

	var progress []Progress
	req := smallRequest()
	req.Progress = func(p Progress) { progress = append(progress, p) }

	summary, err := client.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" || summary.Status != "completed" || summary.Cancelled {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if len(progress) != 6 {
		t.Fatalf("expected 6 progress calls, got %d", len(progress))
	}
	if len(summary.BestByGeneration) != 6 {
		t.Fatalf("expected 6 best costs, got %d", len(summary.BestByGeneration))
	}
	if summary.TotalClients != 4 {
		t.Fatalf("expected 4 clients, got %d", summary.TotalClients)
	}

	second, err := client.Run(context.Background(), smallRequest())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	runs, err := client.Runs(context.Background(), RunsRequest{Limit: 1})
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != second.RunID {
		t.Fatalf("expected newest run %s first, got %+v", second.RunID, runs)
	}

	exported, err := client.Export(context.Background(), ExportRequest{RunID: summary.RunID})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.Directory != filepath.Join(exportsDir, summary.RunID) {
		t.Fatalf("unexpected export directory %s", exported.Directory)
	}
	for _, file := range []string{"run.json", "progress.json", "generation_diagnostics.json", "cost_series.csv"} {
		if _, err := os.Stat(filepath.Join(exported.Directory, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}

	latest, err := client.Export(context.Background(), ExportRequest{Latest: true, OutDir: t.TempDir()})
	if err != nil {
		t.Fatalf("export latest: %v", err)
	}
	if latest.RunID != second.RunID {
		t.Fatalf("expected latest run %s, got %s", second.RunID, latest.RunID)
	}

	diagnostics, err := client.Diagnostics(context.Background(), DiagnosticsRequest{RunID: summary.RunID, Limit: 2})
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if len(diagnostics) != 2 || diagnostics[1].Generation != 6 {
		t.Fatalf("unexpected diagnostics tail: %+v", diagnostics)
	}
}

func TestClientRunIsReproducible(t *testing.T) {
	client := newTestClient(t, Options{})
	a, err := client.Run(context.Background(), smallRequest())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	req := smallRequest()
	req.Workers = 4
	b, err := client.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if a.TotalCost != b.TotalCost || len(a.SelectedIndices) != len(b.SelectedIndices) {
		t.Fatalf("same seed diverged: %+v vs %+v", a, b)
	}
	for i := range a.SelectedIndices {
		if a.SelectedIndices[i] != b.SelectedIndices[i] {
			t.Fatalf("same seed selected different facilities: %v vs %v", a.SelectedIndices, b.SelectedIndices)
		}
	}
}

func TestClientRunFromFiles(t *testing.T) {
	dir := t.TempDir()
	coverage := filepath.Join(dir, "coverage.csv")
	cost := filepath.Join(dir, "cost.csv")
	// Single column after a header, reshaped to 2 clients by 2 facilities.
	if err := os.WriteFile(coverage, []byte("cover\n1\n0\n0\n1\n"), 0o644); err != nil {
		t.Fatalf("write coverage: %v", err)
	}
	if err := os.WriteFile(cost, []byte("2,3\n"), 0o644); err != nil {
		t.Fatalf("write cost: %v", err)
	}

	client := newTestClient(t, Options{})
	req := DefaultRunRequest()
	req.CoveragePath = coverage
	req.CostPath = cost
	req.Clients = 2
	req.Facilities = 2
	req.Population = 10
	req.Generations = 20
	summary, err := client.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.TotalCost != 5 || summary.ClientsCovered != 2 {
		t.Fatalf("expected both facilities at cost 5, got %+v", summary)
	}
}

func TestClientRunRejectsInvalidRequests(t *testing.T) {
	client := newTestClient(t, Options{})

	if _, err := client.Run(context.Background(), DefaultRunRequest()); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest without an instance, got %v", err)
	}

	req := smallRequest()
	req.Cost = []float64{1}
	if _, err := client.Run(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for mismatched cost, got %v", err)
	}

	req = smallRequest()
	req.MutationProbability = 3
	if _, err := client.Run(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for bad probability, got %v", err)
	}

	if _, err := client.Export(context.Background(), ExportRequest{}); err == nil {
		t.Fatal("expected export without run id to fail")
	}
	if _, err := client.Export(context.Background(), ExportRequest{Latest: true}); err == nil {
		t.Fatal("expected export latest with no runs to fail")
	}
	if _, err := client.Diagnostics(context.Background(), DiagnosticsRequest{RunID: "missing"}); !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestClientStopCancelsRun(t *testing.T) {
	client := newTestClient(t, Options{})

	started := make(chan struct{})
	var once sync.Once
	req := smallRequest()
	req.Generations = 100000
	req.Progress = func(Progress) {
		once.Do(func() { close(started) })
		time.Sleep(time.Millisecond)
	}

	done := make(chan RunSummary, 1)
	errs := make(chan error, 1)
	go func() {
		summary, err := client.Run(context.Background(), req)
		if err != nil {
			errs <- err
			return
		}
		done <- summary
	}()

	select {
	case <-started:
	case err := <-errs:
		t.Fatalf("run failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not start")
	}

	runs, err := client.Runs(context.Background(), RunsRequest{})
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected one active run: %+v err=%v", runs, err)
	}
	if err := client.Stop(context.Background(), runs[0].RunID); err != nil {
		t.Fatalf("stop: %v", err)
	}

	select {
	case summary := <-done:
		if !summary.Cancelled || summary.Status != "cancelled" {
			t.Fatalf("expected cancelled summary, got %+v", summary)
		}
		if summary.Generations >= req.Generations {
			t.Fatalf("expected early stop, got %d generations", summary.Generations)
		}
	case err := <-errs:
		t.Fatalf("run failed: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop")
	}
}

func TestClientRunHonoursZeroGenerations(t *testing.T) {
	client := newTestClient(t, Options{})
	req := smallRequest()
	req.Generations = 0

	calls := 0
	req.Progress = func(Progress) { calls++ }
	summary, err := client.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Generations != 0 || len(summary.BestByGeneration) != 0 {
		t.Fatalf("expected a run of the initial population only, got %+v", summary)
	}
	if calls != 0 {
		t.Fatalf("expected no per-generation progress, got %d calls", calls)
	}
	if summary.Status != "completed" || summary.TotalClients != 4 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestClientRunUsesRequestFieldsAsGiven(t *testing.T) {
	client := newTestClient(t, Options{})
	req := RunRequest{
		Coverage: smallRequest().Coverage,
		Cost:     smallRequest().Cost,
	}
	if _, err := client.Run(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for a zero-valued request, got %v", err)
	}

	req = smallRequest()
	req.PenaltyWeight = 0
	if _, err := client.Run(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for a missing penalty weight, got %v", err)
	}
}
