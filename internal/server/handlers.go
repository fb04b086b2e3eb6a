package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"coverga/internal/evo"
	"coverga/internal/model"
	"coverga/internal/platform"
	"coverga/internal/problem"
	"coverga/internal/report"
)

type HealthResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	DatasetLoaded bool   `json:"dataset_loaded"`
	Clients       int    `json:"clients,omitempty"`
	Facilities    int    `json:"facilities,omitempty"`
	ActiveRuns    int    `json:"active_runs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type RunResponse struct {
	model.RunRecord
	Active bool `json:"active"`
}

var errNoDataset = errors.New("no dataset loaded")

func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{
		Status:     "active",
		Message:    "server operational",
		ActiveRuns: len(s.coordinator.ActiveRuns()),
	}
	if inst := s.Instance(); inst != nil {
		resp.DatasetLoaded = true
		resp.Clients = inst.Clients()
		resp.Facilities = inst.Facilities()
	}
	c.JSON(http.StatusOK, resp)
}

// handleRun streams one optimization run as server-sent events. Closing the
// connection cancels the run.
func (s *Server) handleRun(c *gin.Context) {
	if s.limiter != nil && !s.limiter.Allow() {
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many runs, retry later"})
		return
	}
	instance := s.Instance()
	if instance == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: errNoDataset.Error()})
		return
	}
	cfg, selector, err := s.runConfigFromQuery(c)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	id := platform.NewRunID()
	stream := report.NewStream()
	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()

	type outcome struct {
		record model.RunRecord
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		record, _, err := s.coordinator.Run(ctx, platform.RunRequest{
			ID:       id,
			Config:   cfg,
			Selector: selector,
			Instance: instance,
			Sink:     stream,
		})
		if err != nil {
			stopStream()
		}
		done <- outcome{record: record, err: err}
	}()

	setSSEHeaders(c)
	c.Status(http.StatusOK)
	c.Stream(func(io.Writer) bool {
		snapshot, ok := stream.Next(streamCtx)
		if !ok {
			// Without a client disconnect the stream only stops early when
			// the run failed.
			if ctx.Err() == nil {
				if out := <-done; out.err != nil {
					c.SSEvent("", report.Failed(id, out.err))
				}
			}
			return false
		}
		if snapshot.Status == model.StatusRunning {
			c.SSEvent("", report.Running(snapshot))
			return true
		}
		out := <-done
		if out.err != nil {
			c.SSEvent("", report.Failed(id, out.err))
			return false
		}
		c.SSEvent("", report.Completed(out.record))
		return false
	})
}

func (s *Server) runConfigFromQuery(c *gin.Context) (evo.Config, string, error) {
	cfg := s.defaults
	selector := s.selector
	var err error
	if cfg.PopulationSize, err = queryInt(c, "population", cfg.PopulationSize); err != nil {
		return evo.Config{}, "", err
	}
	if cfg.Generations, err = queryInt(c, "generations", cfg.Generations); err != nil {
		return evo.Config{}, "", err
	}
	if cfg.TournamentSize, err = queryInt(c, "tournsize", cfg.TournamentSize); err != nil {
		return evo.Config{}, "", err
	}
	if raw, ok := c.GetQuery("seed"); ok {
		if cfg.Seed, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return evo.Config{}, "", fmt.Errorf("%w: seed: %v", evo.ErrInvalidConfiguration, err)
		}
	}
	if cfg.CrossoverProbability, err = queryFloat(c, "cxpb", cfg.CrossoverProbability); err != nil {
		return evo.Config{}, "", err
	}
	if cfg.MutationProbability, err = queryFloat(c, "mutpb", cfg.MutationProbability); err != nil {
		return evo.Config{}, "", err
	}
	if cfg.BitFlipProbability, err = queryFloat(c, "indpb", cfg.BitFlipProbability); err != nil {
		return evo.Config{}, "", err
	}
	if raw, ok := c.GetQuery("selector"); ok {
		selector = raw
	}
	if err := cfg.Validate(); err != nil {
		return evo.Config{}, "", err
	}
	if _, err := evo.SelectorByName(selector, cfg.TournamentSize); err != nil {
		return evo.Config{}, "", err
	}
	return cfg, selector, nil
}

func (s *Server) handleListRuns(c *gin.Context) {
	runs, err := s.coordinator.Runs(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if status := c.Query("status"); status != "" {
		filtered := runs[:0]
		for _, run := range runs {
			if string(run.Status) == status {
				filtered = append(filtered, run)
			}
		}
		runs = filtered
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleGetRun(c *gin.Context) {
	id := c.Param("id")
	run, err := s.coordinator.GetRun(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	active := false
	for _, activeID := range s.coordinator.ActiveRuns() {
		if activeID == id {
			active = true
			break
		}
	}
	c.JSON(http.StatusOK, RunResponse{RunRecord: run, Active: active})
}

func (s *Server) handleRunProgress(c *gin.Context) {
	snapshots, err := s.coordinator.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}

func (s *Server) handleRunDiagnostics(c *gin.Context) {
	diagnostics, err := s.coordinator.Diagnostics(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"diagnostics": diagnostics})
}

func (s *Server) handleStopRun(c *gin.Context) {
	id := c.Param("id")
	if err := s.coordinator.Stop(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "stopping"})
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, evo.ErrInvalidConfiguration), errors.Is(err, problem.ErrInvalidInstance):
		status = http.StatusBadRequest
	case errors.Is(err, platform.ErrRunNotFound):
		status = http.StatusNotFound
	case errors.Is(err, platform.ErrRunNotActive), errors.Is(err, platform.ErrDuplicateRun):
		status = http.StatusConflict
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func setSSEHeaders(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", evo.ErrInvalidConfiguration, key, err)
	}
	return v, nil
}

func queryFloat(c *gin.Context, key string, fallback float64) (float64, error) {
	raw, ok := c.GetQuery(key)
	if !ok {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", evo.ErrInvalidConfiguration, key, err)
	}
	return v, nil
}
