package routine

import (
	"sync"
	"sync/atomic"
)

// Phase is the controller's coarse state.
type Phase int32

const (
	PhaseRunning Phase = iota
	PhasePaused
	PhaseStopping
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseRunning:
		return "running"
	case PhasePaused:
		return "paused"
	case PhaseStopping:
		return "stopping"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// Controls is the handle external triggers (keyboard, buttons, signals,
// MCP calls) use to steer a running routine.
type Controls interface {
	Pause()
	Resume()
	TogglePause() bool
	Stop(reason string)
	Advance()
	Paused() bool
}

// State is the mutable execution state of one run. Its setters are safe
// to call from any goroutine.
type State struct {
	paused  atomic.Bool
	stopped atomic.Bool
	advance atomic.Bool
	done    atomic.Bool
	failed  atomic.Bool
	index   atomic.Int64

	mu         sync.Mutex
	stopReason string
}

var _ Controls = (*State)(nil)

func (s *State) Pause()  { s.paused.Store(true) }
func (s *State) Resume() { s.paused.Store(false) }

// TogglePause flips the pause flag and returns the new value.
func (s *State) TogglePause() bool {
	for {
		old := s.paused.Load()
		if s.paused.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

func (s *State) Paused() bool { return s.paused.Load() }

// Stop requests the run to halt. The first reason wins.
func (s *State) Stop(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped.Load() {
		return
	}
	s.stopReason = reason
	s.stopped.Store(true)
}

// StopRequested reports whether Stop was called, and why.
func (s *State) StopRequested() (bool, string) {
	if !s.stopped.Load() {
		return false, ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return true, s.stopReason
}

// Advance releases the current step gate.
func (s *State) Advance() { s.advance.Store(true) }

// CurrentIndex is the number of actions completed so far.
func (s *State) CurrentIndex() int { return int(s.index.Load()) }

// Failed reports whether any failure has been recorded.
func (s *State) Failed() bool { return s.failed.Load() }

func (s *State) Phase() Phase {
	switch {
	case s.done.Load():
		return PhaseDone
	case s.stopped.Load():
		return PhaseStopping
	case s.paused.Load():
		return PhasePaused
	}
	return PhaseRunning
}

func (s *State) resetAdvance() { s.advance.Store(false) }
func (s *State) consumeAdvance() bool { return s.advance.CompareAndSwap(true, false) }
