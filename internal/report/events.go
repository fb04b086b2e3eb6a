package report

import (
	"math"

	"coverga/internal/model"
)

const CompletedMessage = "optimization completed"

// RunningEvent is the per-generation payload of the /run event stream.
type RunningEvent struct {
	Iteration       int     `json:"iteration"`
	TotalIterations int     `json:"total_iterations"`
	CurrentCost     float64 `json:"current_cost"`
	ClientsCovered  int     `json:"clients_covered"`
	Status          string  `json:"status"`
}

// CompletedEvent is the final payload of the /run event stream.
type CompletedEvent struct {
	Status           string  `json:"status"`
	RunID            string  `json:"run_id,omitempty"`
	TotalCost        float64 `json:"total_cost"`
	AntennasSelected int     `json:"antennas_selected"`
	ClientsCovered   int     `json:"clients_covered"`
	TotalClients     int     `json:"total_clients"`
	SelectedIndices  []int   `json:"selected_indices"`
	Generations      int     `json:"generations"`
	Cancelled        bool    `json:"cancelled,omitempty"`
	Message          string  `json:"message"`
}

// ErrorEvent reports a run that failed after the stream opened.
type ErrorEvent struct {
	Status  string `json:"status"`
	RunID   string `json:"run_id,omitempty"`
	Message string `json:"message"`
}

func Running(snapshot model.ProgressSnapshot) RunningEvent {
	return RunningEvent{
		Iteration:       snapshot.Generation,
		TotalIterations: snapshot.TotalGenerations,
		CurrentCost:     Round2(snapshot.BestCost),
		ClientsCovered:  snapshot.ClientsCovered,
		Status:          string(model.StatusRunning),
	}
}

func Completed(run model.RunRecord) CompletedEvent {
	selected := run.SelectedIndices
	if selected == nil {
		selected = []int{}
	}
	return CompletedEvent{
		Status:           string(model.StatusCompleted),
		RunID:            run.ID,
		TotalCost:        Round2(run.TotalCost),
		AntennasSelected: len(selected),
		ClientsCovered:   run.ClientsCovered,
		TotalClients:     run.Clients,
		SelectedIndices:  selected,
		Generations:      run.GenerationsCompleted,
		Cancelled:        run.Status == model.RunCancelled,
		Message:          CompletedMessage,
	}
}

func Failed(runID string, err error) ErrorEvent {
	return ErrorEvent{Status: "error", RunID: runID, Message: err.Error()}
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
