// Package report turns engine progress into consumable output: a
// non-blocking snapshot stream, server-sent event payloads and convergence
// charts.
package report

import (
	"context"
	"sync"

	"coverga/internal/model"
)

// Stream is a ProgressSink for a single run with a single consumer. Running
// snapshots go through a one-slot buffer where a newer snapshot replaces an
// undelivered one, so Publish never blocks the engine. The completed
// snapshot has its own slot and is never dropped.
type Stream struct {
	mu      sync.Mutex
	updates chan model.ProgressSnapshot
	final   chan model.ProgressSnapshot
	closed  bool

	// consumer side only
	pendingFinal *model.ProgressSnapshot
	done         bool
}

func NewStream() *Stream {
	return &Stream{
		updates: make(chan model.ProgressSnapshot, 1),
		final:   make(chan model.ProgressSnapshot, 1),
	}
}

func (s *Stream) Publish(snapshot model.ProgressSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if snapshot.Status == model.StatusCompleted {
		s.final <- snapshot
		s.closed = true
		return
	}
	select {
	case s.updates <- snapshot:
	default:
		select {
		case <-s.updates:
		default:
		}
		s.updates <- snapshot
	}
}

// Next returns the next snapshot. It reports false once the completed
// snapshot has been returned or ctx is done. A running snapshot published
// before the completed one is always delivered first.
func (s *Stream) Next(ctx context.Context) (model.ProgressSnapshot, bool) {
	if s.done {
		return model.ProgressSnapshot{}, false
	}
	if s.pendingFinal != nil {
		final := *s.pendingFinal
		s.pendingFinal = nil
		s.done = true
		return final, true
	}

	select {
	case snapshot := <-s.updates:
		return snapshot, true
	case final := <-s.final:
		select {
		case snapshot := <-s.updates:
			s.pendingFinal = &final
			return snapshot, true
		default:
		}
		s.done = true
		return final, true
	case <-ctx.Done():
		return model.ProgressSnapshot{}, false
	}
}
