package server

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mj1618/user-routine/internal/output"
	"github.com/mj1618/user-routine/internal/routine"
)

// RunStatus describes a run held by the cache.
type RunStatus struct {
	RunID     string            `yaml:"run_id"           json:"run_id"`
	Phase     string            `yaml:"phase"            json:"phase"`
	Step      int               `yaml:"step"             json:"step"`
	Total     int               `yaml:"total"            json:"total"`
	Failed    bool              `yaml:"failed,omitempty" json:"failed,omitempty"` // a step has failed so far
	StartedAt time.Time         `yaml:"started_at"       json:"started_at"`
	Result    *output.RunResult `yaml:"result,omitempty" json:"result,omitempty"`
}

type runEntry struct {
	state    *routine.State
	cancel   context.CancelFunc
	total    int
	started  time.Time
	finished time.Time
	result   *output.RunResult
}

// RunCache tracks live runs and keeps finished results for ttl.
type RunCache struct {
	mu      sync.Mutex
	entries map[string]*runEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewRunCache creates a cache. A ttl of 0 drops results as soon as the
// next sweep runs.
func NewRunCache(ttl time.Duration) *RunCache {
	return &RunCache{
		entries: make(map[string]*runEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Add registers a starting run. cancel aborts it when the cache is closed.
func (c *RunCache) Add(r *routine.Runner, total int, cancel context.CancelFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	c.entries[r.ID()] = &runEntry{
		state:   r.State(),
		cancel:  cancel,
		total:   total,
		started: c.now(),
	}
}

// Finish stores the result of a run.
func (c *RunCache) Finish(id string, res output.RunResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return
	}
	e.result = &res
	e.finished = c.now()
	e.cancel = nil
}

// Status returns the current view of run id.
func (c *RunCache) Status(id string) (RunStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	e, ok := c.entries[id]
	if !ok {
		return RunStatus{}, false
	}
	return e.status(id), true
}

// List returns every held run, oldest first.
func (c *RunCache) List() []RunStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked()
	out := make([]RunStatus, 0, len(c.entries))
	for id, e := range c.entries {
		out = append(out, e.status(id))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].RunID < out[j].RunID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Controls returns the control handle of a run that has not finished.
func (c *RunCache) Controls(id string) (routine.Controls, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok || e.result != nil {
		return nil, false
	}
	return e.state, true
}

// Sweep drops finished runs older than the ttl and reports how many went.
func (c *RunCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked()
}

func (c *RunCache) sweepLocked() int {
	n := 0
	for id, e := range c.entries {
		if e.result != nil && c.now().Sub(e.finished) >= c.ttl {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

// CancelAll aborts every live run.
func (c *RunCache) CancelAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries {
		if e.cancel != nil {
			e.cancel()
		}
	}
}

func (e *runEntry) status(id string) RunStatus {
	st := RunStatus{
		RunID:     id,
		Phase:     e.state.Phase().String(),
		Step:      e.state.CurrentIndex(),
		Total:     e.total,
		Failed:    e.state.Failed(),
		StartedAt: e.started,
		Result:    e.result,
	}
	if e.result != nil {
		st.Phase = routine.PhaseDone.String()
	}
	return st
}
