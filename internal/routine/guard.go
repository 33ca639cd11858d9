package routine

import (
	"fmt"
	"sync"
)

// Guard tracks which targets have a routine in progress.
type Guard struct {
	mu     sync.Mutex
	active map[string]*guardEntry
}

type guardEntry struct {
	message string
	count   int
}

// DefaultGuard is shared by runners that are not given their own.
var DefaultGuard = NewGuard()

func NewGuard() *Guard {
	return &Guard{active: make(map[string]*guardEntry)}
}

// Acquire registers a run on target. Unless allowSimultaneous is set it
// fails while another run holds the target. The returned release func
// must be called once the run ends.
func (g *Guard) Acquire(target, message string, allowSimultaneous bool) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.active[target]; ok && !allowSimultaneous {
		return nil, fatalErr(ErrAlreadyRunning, fmt.Sprintf("User-Routine '%s' is already running", e.message), "")
	}
	e, ok := g.active[target]
	if !ok {
		e = &guardEntry{message: message}
		g.active[target] = e
	}
	e.count++

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			e.count--
			if e.count == 0 {
				delete(g.active, target)
			}
		})
	}, nil
}

// Running reports whether a run holds target.
func (g *Guard) Running(target string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.active[target]
	return ok
}
