// Package routine replays lists of human-readable actions against a
// platform.Document: it parses each action, resolves its target element,
// applies its effect and records the outcome in a Result.
package routine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mj1618/user-routine/internal/platform"
)

// StepEvent describes one dispatched action.
type StepEvent struct {
	RunID    string
	Index    int
	Kind     string // command keyword, "func" for callbacks
	Raw      string
	Duration time.Duration
	Err      error
}

// Hooks observe a run. Any field may be nil.
type Hooks struct {
	OnRunStart  func(ctx context.Context, runID string, total int)
	OnStepStart func(ctx context.Context, ev StepEvent)
	OnStepEnd   func(ctx context.Context, ev StepEvent)
	OnRunEnd    func(ctx context.Context, runID string, res Result, elapsed time.Duration)
}

// Runner executes one action list. A Runner is single use.
type Runner struct {
	doc       platform.Document
	cfg       Config
	setupErr  error
	warnings  []string
	id        string
	target    string
	guard     *Guard
	presenter Presenter
	logger    *zap.Logger
	hooks     Hooks
	state     *State

	step       int
	total      int
	lastGate   int
	announced  bool
	stopLogged bool

	// failTarget is the element the failing step pointed at, if any.
	failTarget platform.Element
}

// Option configures a Runner.
type Option func(*Runner)

func WithPresenter(p Presenter) Option {
	return func(r *Runner) {
		if p != nil {
			r.presenter = p
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithHooks(h Hooks) Option { return func(r *Runner) { r.hooks = h } }

// WithGuard replaces DefaultGuard.
func WithGuard(g *Guard) Option {
	return func(r *Runner) {
		if g != nil {
			r.guard = g
		}
	}
}

// WithTarget names the page for the run guard. It defaults to the
// document's identity.
func WithTarget(target string) Option { return func(r *Runner) { r.target = target } }

func WithRunID(id string) Option { return func(r *Runner) { r.id = id } }

// New returns a runner for cfg. The configuration is copied and cannot
// change once the run starts.
func New(doc platform.Document, cfg Config, opts ...Option) *Runner {
	r := &Runner{
		doc:       doc,
		cfg:       cfg,
		id:        uuid.NewString(),
		guard:     DefaultGuard,
		presenter: NopPresenter{},
		logger:    zap.NewNop(),
		state:     &State{},
		lastGate:  -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.target == "" {
		r.target = fmt.Sprintf("%T@%p", doc, doc)
	}
	return r
}

// NewFromOptions builds the configuration from a loose option map. Invalid
// options do not panic: the run fails with a validation entry instead.
func NewFromOptions(doc platform.Document, options map[string]any, opts ...Option) *Runner {
	cfg, warnings, err := NewConfig(options)
	r := New(doc, cfg, opts...)
	r.warnings = warnings
	r.setupErr = err
	return r
}

// Run is shorthand for NewFromOptions(doc, options, opts...).Run(ctx, actions).
func Run(ctx context.Context, doc platform.Document, actions []Action, options map[string]any, opts ...Option) Result {
	return NewFromOptions(doc, options, opts...).Run(ctx, actions)
}

func (r *Runner) ID() string { return r.id }

func (r *Runner) Config() Config { return r.cfg }

// State exposes the live execution state; it doubles as the run's Controls.
func (r *Runner) State() *State { return r.state }

// Run executes actions in order and returns the report. Canceling ctx has
// the same effect as Controls.Stop.
func (r *Runner) Run(ctx context.Context, actions []Action) Result {
	start := time.Now()
	r.logger = r.logger.With(zap.String("run_id", r.id))
	rep := &reporter{
		emit:   r.progress,
		onFail: func() { r.state.failed.Store(true) },
	}
	if r.hooks.OnRunStart != nil {
		r.hooks.OnRunStart(ctx, r.id, len(actions))
	}
	r.presenter.Begin(ctx, r.cfg, r.state)
	for _, w := range r.warnings {
		rep.warn(w)
	}

	switch {
	case r.setupErr != nil:
		rep.fail(r.setupErr, false)
	case actions == nil:
		rep.fail(fatalErr(ErrValidation, "Missing required argument Action List", ""), false)
	default:
		release, err := r.guard.Acquire(r.target, r.cfg.Message, r.cfg.SimultaneousAllowed)
		if err != nil {
			rep.fail(err, false)
			break
		}
		r.loop(ctx, actions, rep)
		release()
	}

	res := rep.finish(r.cfg)
	r.state.done.Store(true)
	r.presenter.End(ctx, res)
	r.logger.Info("routine finished",
		zap.Bool("success", res.Success),
		zap.Int("completed", r.state.CurrentIndex()),
		zap.Duration("elapsed", time.Since(start)))
	if r.hooks.OnRunEnd != nil {
		r.hooks.OnRunEnd(ctx, r.id, res, time.Since(start))
	}
	return res
}

func (r *Runner) loop(ctx context.Context, actions []Action, rep *reporter) {
	r.total = len(actions)
	if r.cfg.TutorialMode {
		r.lastGate = lastGated(actions, r.cfg)
	}
	for i, a := range actions {
		if r.halted(ctx, rep) {
			return
		}
		if err := r.sleep(ctx, r.cfg.Delay()); err != nil {
			r.halted(ctx, rep)
			return
		}

		r.step = i
		r.failTarget = nil
		ev := StepEvent{RunID: r.id, Index: i, Raw: a.String()}
		if r.hooks.OnStepStart != nil {
			r.hooks.OnStepStart(ctx, ev)
		}
		began := time.Now()
		kind, entry, err := r.dispatch(ctx, a)
		ev.Kind, ev.Duration, ev.Err = kind, time.Since(began), err
		if r.hooks.OnStepEnd != nil {
			r.hooks.OnStepEnd(ctx, ev)
		}

		if errors.Is(err, ErrStopped) {
			r.clear(ctx)
			r.release(ctx)
			r.halted(ctx, rep)
			return
		}
		if err != nil {
			r.logger.Debug("step failed", zap.Int("step", i), zap.String("kind", kind), zap.Error(err))
			r.announce(ctx, r.failTarget, "FAIL: "+err.Error(), StatusError, false)
		}
		r.clear(ctx)
		r.release(ctx)
		r.state.index.Add(1)
		if err != nil {
			if rep.fail(err, r.cfg.ContinueOnFailure) {
				return
			}
		} else if entry != "" {
			rep.note(entry)
		}
	}
}

// halted reports whether a stop was requested, recording the stop entry
// the first time it is observed.
func (r *Runner) halted(ctx context.Context, rep *reporter) bool {
	if err := ctx.Err(); err != nil {
		r.state.Stop(err.Error())
	}
	stopped, reason := r.state.StopRequested()
	if !stopped {
		return false
	}
	if !r.stopLogged {
		r.stopLogged = true
		rep.fail(fatalErr(ErrStopped, fmt.Sprintf("Stopped by external request (%s)", reason), ""), false)
	}
	return true
}

func (r *Runner) stopRequested(ctx context.Context) bool {
	stopped, _ := r.state.StopRequested()
	return stopped || ctx.Err() != nil
}

// sleep waits d in sub-interval ticks. While paused the remaining time is
// frozen. It returns ErrStopped as soon as a stop is observed.
func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	tick := r.cfg.SubInterval()
	for {
		if r.stopRequested(ctx) {
			return ErrStopped
		}
		if r.state.Paused() {
			if err := wait(ctx, tick); err != nil {
				return ErrStopped
			}
			continue
		}
		if d <= 0 {
			return nil
		}
		step := min(d, tick)
		if err := wait(ctx, step); err != nil {
			return ErrStopped
		}
		d -= step
	}
}

// gate blocks until the advance signal is raised or the run is stopped.
func (r *Runner) gate(ctx context.Context) error {
	for !r.state.consumeAdvance() {
		if r.stopRequested(ctx) {
			return ErrStopped
		}
		if err := wait(ctx, r.cfg.SubInterval()); err != nil {
			return ErrStopped
		}
	}
	return nil
}

// announce shows text to the presenter. Failures always go out so that
// observers such as the screenshot recorder see them; presenters that
// display progress check DisplayProgress themselves.
func (r *Runner) announce(ctx context.Context, target platform.Element, text string, status Status, gated bool) {
	if !r.cfg.DisplayProgress && status != StatusError {
		return
	}
	if r.cfg.TutorialMode && !gated && status != StatusError {
		return
	}
	r.presenter.Announce(ctx, Announcement{
		Target: target,
		Text:   text,
		Status: status,
		Step:   r.step + 1,
		Total:  r.total,
		Gated:  gated,
		Final:  gated && r.step == r.lastGate,
	})
	r.announced = true
}

// blame records el as the subject of the current step's failure. The
// failure is announced once, by the loop, pointing at el.
func (r *Runner) blame(el platform.Element) { r.failTarget = el }

func (r *Runner) clear(ctx context.Context) {
	if r.announced {
		r.presenter.Clear(ctx)
		r.announced = false
	}
}

func (r *Runner) progress(entry string, level Level) {
	switch level {
	case LevelError:
		r.logger.Warn(entry, zap.Int("step", r.step))
	case LevelWarn:
		r.logger.Warn(entry)
	default:
		r.logger.Info(entry, zap.Int("step", r.step))
	}
	if r.cfg.LogProgress {
		r.presenter.Progress(entry, level)
	}
}

// release drops the element handles the step resolved. It runs even after
// a stop so a canceled run does not leave them behind.
func (r *Runner) release(ctx context.Context) {
	if err := platform.Release(context.WithoutCancel(ctx), r.doc); err != nil {
		r.logger.Debug("release element handles", zap.Error(err))
	}
}

// lastGated returns the index of the last action that waits at a step gate.
func lastGated(actions []Action, cfg Config) int {
	for i := len(actions) - 1; i >= 0; i-- {
		if actions[i].IsFunc() {
			continue
		}
		cmd, err := ParseCommand(actions[i].raw, cfg)
		if err == nil && (cmd.Kind == KindLog || cmd.Kind == KindComment) {
			return i
		}
	}
	return -1
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
