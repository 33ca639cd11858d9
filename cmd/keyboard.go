package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/mj1618/user-routine/internal/routine"
)

// crlfWriter rewrites "\n" to "\r\n" while raw is set. A terminal in raw
// mode no longer returns the carriage on a bare line feed.
type crlfWriter struct {
	w   io.Writer
	raw atomic.Bool
}

func newCRLFWriter(w io.Writer) *crlfWriter {
	return &crlfWriter{w: w}
}

func (c *crlfWriter) Write(p []byte) (int, error) {
	if !c.raw.Load() {
		return c.w.Write(p)
	}
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}

const (
	keyCtrlC  = 3
	keyEscape = 27
)

// handleKey applies one key press to a run and reports whether more keys
// should be read. With stepOnly, as in tutorial mode, only advancing and
// stopping are honored.
func handleKey(key byte, controls routine.Controls, stepOnly bool) bool {
	switch key {
	case '\r', '\n', 'n':
		controls.Advance()
	case 'q', keyEscape, keyCtrlC:
		controls.Stop("keyboard")
		return false
	case ' ', 'p':
		if !stepOnly {
			controls.TogglePause()
		}
	}
	return true
}

// readKeys feeds bytes from r to handleKey until r fails or a stop key.
func readKeys(r io.Reader, controls routine.Controls, stepOnly bool) {
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n == 1 && !handleKey(buf[0], controls, stepOnly) {
			return
		}
		if err != nil {
			return
		}
	}
}

// keyboard turns the terminal into a remote for the run: space pauses,
// enter advances a tutorial step, q or ctrl-c stops.
type keyboard struct {
	routine.NopPresenter

	in     *os.File
	out    *crlfWriter
	logger *zap.Logger

	mu    sync.Mutex
	state *term.State
}

func newKeyboard(in *os.File, out *crlfWriter, logger *zap.Logger) *keyboard {
	return &keyboard{in: in, out: out, logger: logger}
}

func (k *keyboard) Begin(_ context.Context, cfg routine.Config, controls routine.Controls) {
	if !cfg.KeyboardControls && !cfg.TutorialMode {
		return
	}
	fd := int(k.in.Fd())
	if !term.IsTerminal(fd) {
		return
	}
	st, err := term.MakeRaw(fd)
	if err != nil {
		k.logger.Warn("keyboard controls unavailable", zap.Error(err))
		return
	}
	k.mu.Lock()
	k.state = st
	k.mu.Unlock()
	k.out.raw.Store(true)

	// The reader stays blocked on stdin after the run; the process exits
	// right after, so it is not joined.
	go readKeys(k.in, controls, cfg.TutorialMode)
}

func (k *keyboard) End(context.Context, routine.Result) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.state == nil {
		return
	}
	k.out.raw.Store(false)
	if err := term.Restore(int(k.in.Fd()), k.state); err != nil {
		k.logger.Warn("could not restore terminal", zap.Error(err))
	}
	k.state = nil
}
