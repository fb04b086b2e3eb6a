package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// RestartPolicy decides whether a background service is restarted after its
// run function returns.
type RestartPolicy string

const (
	// RestartAlways restarts after any return.
	RestartAlways RestartPolicy = "always"
	// RestartOnFailure restarts only after a non-nil error.
	RestartOnFailure RestartPolicy = "on_failure"
	// RestartNever lets the service finish.
	RestartNever RestartPolicy = "never"
)

type SupervisorPolicy struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffFactor  float64
	// MaxRestarts of zero means unlimited.
	MaxRestarts int
}

type ServiceStatus struct {
	Name         string        `json:"name"`
	Restart      RestartPolicy `json:"restart"`
	Running      bool          `json:"running"`
	RestartCount int           `json:"restart_count"`
	LastError    string        `json:"last_error,omitempty"`
	GaveUp       bool          `json:"gave_up"`
}

// Supervisor keeps long-lived background services such as the serve-mode
// dataset watcher running, restarting them with exponential backoff.
type Supervisor struct {
	policy SupervisorPolicy
	logger *slog.Logger

	mu       sync.Mutex
	services map[string]*service
}

type service struct {
	restart RestartPolicy
	cancel  context.CancelFunc
	done    chan struct{}

	running  bool
	restarts int
	lastErr  error
	gaveUp   bool
}

func NewSupervisor(policy SupervisorPolicy, logger *slog.Logger) *Supervisor {
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = 50 * time.Millisecond
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = max(5*time.Second, policy.InitialBackoff)
	}
	if policy.BackoffFactor < 1 {
		policy.BackoffFactor = 2
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Supervisor{
		policy:   policy,
		logger:   logger,
		services: make(map[string]*service),
	}
}

// Go starts run under supervision. The ctx passed to run is cancelled by Stop
// or StopAll.
func (s *Supervisor) Go(name string, restart RestartPolicy, run func(ctx context.Context) error) error {
	if name == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("service runner is required")
	}
	switch restart {
	case RestartAlways, RestartOnFailure, RestartNever:
	case "":
		restart = RestartOnFailure
	default:
		return fmt.Errorf("unsupported restart policy: %s", restart)
	}

	s.mu.Lock()
	if existing, ok := s.services[name]; ok && existing.running {
		s.mu.Unlock()
		return fmt.Errorf("service already running: %s", name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	svc := &service{restart: restart, cancel: cancel, done: make(chan struct{}), running: true}
	s.services[name] = svc
	s.mu.Unlock()

	go s.supervise(ctx, name, svc, run)
	return nil
}

func (s *Supervisor) supervise(ctx context.Context, name string, svc *service, run func(ctx context.Context) error) {
	defer func() {
		s.mu.Lock()
		svc.running = false
		s.mu.Unlock()
		close(svc.done)
	}()

	backoff := s.policy.InitialBackoff
	for {
		err := run(ctx)
		if ctx.Err() != nil {
			return
		}
		s.mu.Lock()
		svc.lastErr = err
		s.mu.Unlock()

		if !shouldRestart(svc.restart, err) {
			if err != nil {
				s.logger.Error("service exited", "service", name, "error", err)
			}
			return
		}
		s.mu.Lock()
		if s.policy.MaxRestarts > 0 && svc.restarts >= s.policy.MaxRestarts {
			svc.gaveUp = true
			s.mu.Unlock()
			s.logger.Error("service exceeded restart limit", "service", name, "restarts", s.policy.MaxRestarts, "error", err)
			return
		}
		svc.restarts++
		restarts := svc.restarts
		s.mu.Unlock()
		s.logger.Warn("restarting service", "service", name, "restart", restarts, "backoff", backoff, "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		backoff = min(time.Duration(float64(backoff)*s.policy.BackoffFactor), s.policy.MaxBackoff)
	}
}

func shouldRestart(policy RestartPolicy, err error) bool {
	switch policy {
	case RestartAlways:
		return true
	case RestartOnFailure:
		return err != nil
	default:
		return false
	}
}

// Stop cancels a service and waits for it to return.
func (s *Supervisor) Stop(name string) {
	s.mu.Lock()
	svc, ok := s.services[name]
	s.mu.Unlock()
	if !ok {
		return
	}
	svc.cancel()
	<-svc.done
}

func (s *Supervisor) StopAll() {
	s.mu.Lock()
	all := make([]*service, 0, len(s.services))
	for _, svc := range s.services {
		all = append(all, svc)
	}
	s.mu.Unlock()

	for _, svc := range all {
		svc.cancel()
	}
	for _, svc := range all {
		<-svc.done
	}
}

func (s *Supervisor) Status() []ServiceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ServiceStatus, 0, len(s.services))
	for name, svc := range s.services {
		status := ServiceStatus{
			Name:         name,
			Restart:      svc.restart,
			Running:      svc.running,
			RestartCount: svc.restarts,
			GaveUp:       svc.gaveUp,
		}
		if svc.lastErr != nil {
			status.LastError = svc.lastErr.Error()
		}
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
