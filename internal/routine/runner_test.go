package routine

import (
	"context"
	"errors"
	"maps"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mj1618/user-routine/internal/platform/htmldoc"
)

func fastOptions(extra map[string]any) map[string]any {
	opts := map[string]any{
		"globalDelay":   0,
		"awaitTimeout":  200,
		"awaitInterval": 10,
	}
	maps.Copy(opts, extra)
	return opts
}

func runSteps(t *testing.T, doc *htmldoc.Document, extra map[string]any, actions ...Action) Result {
	t.Helper()
	return Run(context.Background(), doc, actions, fastOptions(extra), WithGuard(NewGuard()))
}

// recorder is a Presenter that keeps everything it is shown.
type recorder struct {
	mu            sync.Mutex
	begun         bool
	announcements []Announcement
	progress      []string
	cleared       int
	result        *Result
	gated         chan Announcement
}

func newRecorder() *recorder { return &recorder{gated: make(chan Announcement, 16)} }

func (r *recorder) Begin(context.Context, Config, Controls) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.begun = true
}

func (r *recorder) Announce(_ context.Context, a Announcement) {
	r.mu.Lock()
	r.announcements = append(r.announcements, a)
	r.mu.Unlock()
	if a.Gated {
		r.gated <- a
	}
}

func (r *recorder) Clear(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared++
}

func (r *recorder) Progress(entry string, _ Level) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, entry)
}

func (r *recorder) End(_ context.Context, res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = &res
}

func TestRunFillThenValue(t *testing.T) {
	doc := newDoc(t, `<input id="name">`)
	res := runSteps(t, doc, nil, Steps("fill #name Alice", "value #name Alice")...)

	assert.True(t, res.Success)
	assert.Equal(t, []string{
		"Filled the value of #name to 'Alice'",
		"Element '#name' has the correct value: 'Alice'",
		"Done, success: true",
	}, res.Log)
	assert.Equal(t, DefaultMessage, res.Message)
	assert.Equal(t, 0, res.Configuration.GlobalDelay)
}

func TestRunHaltsOnFirstFailure(t *testing.T) {
	doc := newDoc(t, `<p id="status">Ready</p>`)
	res := runSteps(t, doc, nil, Steps("log a", "log b", "exists .missing", "log c")...)

	assert.False(t, res.Success)
	assert.Equal(t, []string{
		"a",
		"b",
		"FAIL: Did not exist: '.missing'. Halting execution.",
		"Done, success: false",
	}, res.Log)
}

func TestRunContinueOnFailure(t *testing.T) {
	doc := newDoc(t, `<p id="status">Ready</p>`)
	actions := Steps("exists .missing", "jump somewhere", "fill #status", "log end")
	res := runSteps(t, doc, map[string]any{"continueOnFailure": true}, actions...)

	assert.False(t, res.Success)
	require.Len(t, res.Log, len(actions)+1)
	assert.Equal(t, "FAIL: Did not exist: '.missing'. Continuing execution.", res.Log[0])
	assert.Equal(t, "FAIL: Action string keyword not recognized, got: 'jump somewhere'. Continuing execution.", res.Log[1])
	assert.Equal(t, "FAIL: Unexpected input with data, got: 'fill #status'. Continuing execution.", res.Log[2])
	assert.Equal(t, "end", res.Log[3])
	assert.Equal(t, "Done, success: false", res.Log[4])
}

func TestRunExistsComplement(t *testing.T) {
	doc := newDoc(t, `<div class="present">Hello</div>`)
	for _, target := range []string{".present", ".absent", ".present Hello", ".present Bye"} {
		pos := runSteps(t, doc, nil, Step("exists "+target))
		neg := runSteps(t, doc, nil, Step("!exists "+target))
		assert.NotEqual(t, pos.Success, neg.Success, target)
	}

	res := runSteps(t, doc, nil, Step("!exists .present Hello"))
	assert.Equal(t, "FAIL: Incorrectly exists: '.present' containing text 'Hello'. Halting execution.", res.Log[0])
	res = runSteps(t, doc, nil, Step("!exists .absent"))
	assert.Equal(t, "Confirmed does not exist: '.absent'", res.Log[0])
	res = runSteps(t, doc, nil, Step("exists .present hello"))
	assert.Equal(t, "Confirmed exists: '.present' containing text 'hello'", res.Log[0])
}

func TestRunClickWithText(t *testing.T) {
	doc := newDoc(t, `<div class="menu"><a id="home">Home</a><button id="save">Save <span>now</span></button></div>`)
	var clicked []string
	require.NoError(t, doc.OnClick("#save", func(ctx context.Context, d *htmldoc.Document, el *htmldoc.Element) error {
		clicked = append(clicked, "save")
		return nil
	}))

	res := runSteps(t, doc, nil, Step("click .menu Save"), Step("click #home"))
	require.True(t, res.Success, res.Log)
	assert.Equal(t, "Clicked text 'Save' inside .menu (clicked on BUTTON)", res.Log[0])
	assert.Equal(t, "Clicked #home", res.Log[1])
	assert.Equal(t, []string{"save"}, clicked)
}

func TestRunClickFailures(t *testing.T) {
	doc := newDoc(t, `<button id="b">OK</button>`)
	require.NoError(t, doc.OnClick("#b", func(context.Context, *htmldoc.Document, *htmldoc.Element) error {
		return errors.New("detached")
	}))

	res := runSteps(t, doc, map[string]any{"continueOnFailure": true},
		Step("click .nope"), Step("click body Cancel"), Step("click #b"))
	assert.Equal(t, "FAIL: CSS Selector not found: '.nope'. Continuing execution.", res.Log[0])
	assert.Equal(t, "FAIL: Could not find selector to click: 'body' containing text 'Cancel'. Continuing execution.", res.Log[1])
	assert.Equal(t, "FAIL: Unexpected error: 'detached'. Continuing execution.", res.Log[2])
}

func TestRunClickRevealsThenAwait(t *testing.T) {
	doc := newDoc(t, `<button id="load">Load</button><div id="out"><i class="spinner"></i></div>`)
	require.NoError(t, doc.OnClick("#load", func(ctx context.Context, d *htmldoc.Document, _ *htmldoc.Element) error {
		if _, err := d.Remove(".spinner"); err != nil {
			return err
		}
		return d.AppendHTML("#out", `<p class="loaded">Ready to go</p>`)
	}))

	res := runSteps(t, doc, nil, Steps("click #load", "await .loaded", "await #out ready", "!await .spinner")...)
	require.True(t, res.Success, res.Log)
	assert.Equal(t, []string{
		"Clicked #load",
		"...Found '.loaded'",
		"...Found '#out' containing text 'ready'",
		"...'.spinner' disappeared",
		"Done, success: true",
	}, res.Log)
}

func TestRunAwaitAppearsLater(t *testing.T) {
	doc := newDoc(t, `<div id="out"></div>`)
	timer := time.AfterFunc(30*time.Millisecond, func() {
		_ = doc.AppendHTML("#out", `<span>All done</span>`)
	})
	defer timer.Stop()

	res := runSteps(t, doc, map[string]any{"awaitTimeout": 2000}, Step("await #out all done"))
	require.True(t, res.Success, res.Log)
	assert.Equal(t, "...Found '#out' containing text 'all done'", res.Log[0])
}

func TestRunAwaitTimesOut(t *testing.T) {
	doc := newDoc(t, `<i class="spinner"></i>`)
	res := runSteps(t, doc, map[string]any{"awaitTimeout": 50, "continueOnFailure": true},
		Step("await .never"), Step("!await .spinner"))
	assert.False(t, res.Success)
	assert.Equal(t, "FAIL: Timed out after 0.05 second(s) awaiting '.never'. Continuing execution.", res.Log[0])
	assert.Equal(t, "FAIL: ...Timed out awaiting '.spinner' to not exist. Continuing execution.", res.Log[1])
}

func TestRunTextAndValueCommands(t *testing.T) {
	doc := newDoc(t, `<p id="status">Ready</p><input id="empty"><input id="name" value="Ann">`)
	res := runSteps(t, doc, map[string]any{"continueOnFailure": true},
		Step("write #status Working"),
		Step("append #status  done"),
		Step("value #empty"),
		Step("value #status"),
		Step("value #name Bob"),
		Step("value #name"),
	)
	assert.Equal(t, []string{
		"Wrote 'Working' over #status",
		"Appended ' done' to #status",
		"FAIL: Element '#empty' did not have a value. Continuing execution.",
		"FAIL: Element #status (P) did not have a value attribute. Continuing execution.",
		"FAIL: Element '#name' has an incorrect value, expected 'Bob' but saw 'Ann'. Continuing execution.",
		"Element '#name' had a value ('Ann')",
		"Done, success: false",
	}, res.Log)

	els, err := doc.Query(context.Background(), "#status")
	require.NoError(t, err)
	text, err := els[0].Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Working done", text)
}

func TestRunLogCommentNavWait(t *testing.T) {
	doc := newDoc(t, `<p id="status">Ready</p>`)
	res := runSteps(t, doc, nil, Steps(
		"log Hello there",
		"comment #status Looks good",
		"",
		"nav #settings",
		"wait 20",
	)...)
	require.True(t, res.Success, res.Log)
	assert.Equal(t, []string{
		"Hello there",
		"Commented on #status: 'Looks good'",
		"Navigated to #settings",
		"Waiting 0.02 second(s)",
		"Done, success: true",
	}, res.Log)
	assert.Equal(t, "#settings", doc.Location())
}

func TestRunCallbacks(t *testing.T) {
	doc := newDoc(t, ``)
	var calls int
	res := runSteps(t, doc, map[string]any{"continueOnFailure": true},
		Func(func(context.Context) error { calls++; return nil }),
		Func(func(context.Context) error { return errors.New("boom") }),
		Func(func(context.Context) error { panic("bad state") }),
	)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{
		"Ran provided function",
		"FAIL: Error running provided function: 'boom'. Continuing execution.",
		"FAIL: Error running provided function: 'bad state'. Continuing execution.",
		"Done, success: false",
	}, res.Log)
}

func TestRunValidation(t *testing.T) {
	doc := newDoc(t, ``)

	res := Run(context.Background(), doc, nil, fastOptions(nil), WithGuard(NewGuard()))
	assert.False(t, res.Success)
	assert.Equal(t, []string{
		"FAIL: Missing required argument Action List. Halting execution.",
		"Done, success: false",
	}, res.Log)

	res = Run(context.Background(), doc, Steps("log a"),
		map[string]any{"bogus": true, "continueOnFailure": true}, WithGuard(NewGuard()))
	assert.False(t, res.Success)
	require.Len(t, res.Log, 2)
	assert.True(t, strings.HasPrefix(res.Log[0], "FAIL: Options argument is not valid"), res.Log[0])
	assert.True(t, strings.HasSuffix(res.Log[0], "Halting execution."), res.Log[0])
}

func TestRunPauseBlocksProgress(t *testing.T) {
	doc := newDoc(t, ``)
	r := NewFromOptions(doc, fastOptions(nil), WithGuard(NewGuard()))
	st := r.State()

	done := make(chan Result, 1)
	go func() {
		done <- r.Run(context.Background(), []Action{
			Func(func(context.Context) error { st.Pause(); return nil }),
			Step("log after"),
		})
	}()

	require.Eventually(t, func() bool { return st.CurrentIndex() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, st.CurrentIndex())
	assert.Equal(t, PhasePaused, st.Phase())

	st.Resume()
	res := <-done
	assert.True(t, res.Success)
	assert.Equal(t, []string{"Ran provided function", "after", "Done, success: true"}, res.Log)
	assert.Equal(t, PhaseDone, st.Phase())
}

func TestRunStopHalts(t *testing.T) {
	doc := newDoc(t, ``)
	r := NewFromOptions(doc, fastOptions(map[string]any{"continueOnFailure": true}), WithGuard(NewGuard()))
	res := r.Run(context.Background(), []Action{
		Step("log a"),
		Func(func(context.Context) error { r.State().Stop("test"); return nil }),
		Step("log b"),
	})
	assert.False(t, res.Success)
	assert.Equal(t, []string{
		"a",
		"Ran provided function",
		"FAIL: Stopped by external request (test). Halting execution.",
		"Done, success: false",
	}, res.Log)
}

func TestRunStopDuringAwait(t *testing.T) {
	doc := newDoc(t, ``)
	r := NewFromOptions(doc, fastOptions(map[string]any{"awaitTimeout": 10000}), WithGuard(NewGuard()))
	timer := time.AfterFunc(30*time.Millisecond, func() { r.State().Stop("escape key") })
	defer timer.Stop()

	start := time.Now()
	res := r.Run(context.Background(), Steps("await .never", "log unreachable"))
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, res.Success)
	assert.Equal(t, []string{
		"FAIL: Stopped by external request (escape key). Halting execution.",
		"Done, success: false",
	}, res.Log)
}

func TestRunContextCanceled(t *testing.T) {
	doc := newDoc(t, ``)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	res := Run(ctx, doc, Steps("wait 10000", "log unreachable"), fastOptions(nil), WithGuard(NewGuard()))
	assert.False(t, res.Success)
	require.Len(t, res.Log, 2)
	assert.Equal(t, "FAIL: Stopped by external request (context deadline exceeded). Halting execution.", res.Log[0])
}

func TestRunTutorialGate(t *testing.T) {
	doc := newDoc(t, `<p id="status">Ready</p>`)
	rec := newRecorder()
	r := NewFromOptions(doc, fastOptions(map[string]any{"tutorialMode": true}),
		WithGuard(NewGuard()), WithPresenter(rec))
	st := r.State()

	// an advance raised before the gate must not release it
	st.Advance()

	done := make(chan Result, 1)
	go func() {
		done <- r.Run(context.Background(), Steps("log one", "fill #status x", "comment #status two"))
	}()

	first := <-rec.gated
	assert.Equal(t, "one", first.Text)
	assert.False(t, first.Final)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 0, st.CurrentIndex())

	st.Advance()
	second := <-rec.gated
	assert.Equal(t, "two", second.Text)
	assert.True(t, second.Final)
	assert.NotNil(t, second.Target)
	assert.Equal(t, 3, second.Step)
	assert.Equal(t, 3, second.Total)

	st.Advance()
	res := <-done
	require.True(t, res.Success, res.Log)
	assert.Len(t, res.Log, 4)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, a := range rec.announcements {
		assert.True(t, a.Gated, "tutorial mode only shows gated steps, got %q", a.Text)
	}
}

func TestRunStopReleasesGate(t *testing.T) {
	doc := newDoc(t, ``)
	rec := newRecorder()
	r := NewFromOptions(doc, fastOptions(map[string]any{"tutorialMode": true}),
		WithGuard(NewGuard()), WithPresenter(rec))

	done := make(chan Result, 1)
	go func() { done <- r.Run(context.Background(), Steps("log one", "log two")) }()

	<-rec.gated
	r.State().Stop("stop button")
	res := <-done
	assert.Equal(t, []string{
		"FAIL: Stopped by external request (stop button). Halting execution.",
		"Done, success: false",
	}, res.Log)
}

func TestRunGuard(t *testing.T) {
	doc := newDoc(t, ``)
	g := NewGuard()
	release, err := g.Acquire("page", "Other", false)
	require.NoError(t, err)

	res := Run(context.Background(), doc, Steps("log a"), fastOptions(nil), WithGuard(g), WithTarget("page"))
	assert.False(t, res.Success)
	assert.Equal(t, "FAIL: User-Routine 'Other' is already running. Halting execution.", res.Log[0])

	res = Run(context.Background(), doc, Steps("log a"),
		fastOptions(map[string]any{"simultaneousAllowed": true}), WithGuard(g), WithTarget("page"))
	assert.True(t, res.Success, res.Log)

	release()
	assert.False(t, g.Running("page"))

	res = Run(context.Background(), doc, Steps("log a"), fastOptions(nil), WithGuard(g), WithTarget("page"))
	assert.True(t, res.Success, res.Log)
	assert.False(t, g.Running("page"))
}

func TestRunPresenter(t *testing.T) {
	doc := newDoc(t, `<p id="status">Ready</p>`)

	rec := newRecorder()
	res := Run(context.Background(), doc, Steps("log a", "click #status"), fastOptions(nil),
		WithGuard(NewGuard()), WithPresenter(rec))
	require.True(t, res.Success)
	assert.True(t, rec.begun)
	assert.Equal(t, res.Log, rec.progress)
	require.NotNil(t, rec.result)
	assert.Equal(t, res, *rec.result)
	assert.Len(t, rec.announcements, 2)
	assert.Equal(t, 2, rec.cleared)

	quiet := newRecorder()
	Run(context.Background(), doc, Steps("log a"),
		fastOptions(map[string]any{"logProgress": false, "displayProgress": false}),
		WithGuard(NewGuard()), WithPresenter(quiet))
	assert.Empty(t, quiet.progress)
	assert.Empty(t, quiet.announcements)
	assert.NotNil(t, quiet.result)
}

func TestRunHooks(t *testing.T) {
	doc := newDoc(t, `<p id="status">Ready</p>`)
	var (
		started, total int
		kinds          []string
		ended          bool
	)
	hooks := Hooks{
		OnRunStart:  func(_ context.Context, _ string, n int) { total = n },
		OnStepStart: func(context.Context, StepEvent) { started++ },
		OnStepEnd:   func(_ context.Context, ev StepEvent) { kinds = append(kinds, ev.Kind) },
		OnRunEnd:    func(context.Context, string, Result, time.Duration) { ended = true },
	}
	r := NewFromOptions(doc, fastOptions(map[string]any{"continueOnFailure": true}),
		WithGuard(NewGuard()), WithHooks(hooks), WithRunID("run-1"))
	assert.Equal(t, "run-1", r.ID())

	r.Run(context.Background(), []Action{
		Step("!exists .x"),
		Step("bogus"),
		Func(func(context.Context) error { return nil }),
	})
	assert.Equal(t, 3, total)
	assert.Equal(t, 3, started)
	assert.Equal(t, []string{"!exists", "unknown", "func"}, kinds)
	assert.True(t, ended)
}

func TestRunAnnouncesFailureOnce(t *testing.T) {
	doc := newDoc(t, `<p class="x">Hi</p><input id="name" value="Bob">`)

	for _, step := range []string{"!exists .x", "value #name Alice"} {
		rec := newRecorder()
		res := Run(context.Background(), doc, Steps(step), fastOptions(nil),
			WithGuard(NewGuard()), WithPresenter(rec))
		require.False(t, res.Success)

		var failures []Announcement
		for _, a := range rec.announcements {
			if a.Status == StatusError {
				failures = append(failures, a)
			}
		}
		require.Len(t, failures, 1, step)
		assert.True(t, strings.HasPrefix(failures[0].Text, "FAIL: "), failures[0].Text)
		assert.NotNil(t, failures[0].Target, "failure should point at the element")
		assert.Equal(t, 1, failures[0].Step)
	}
}

func TestRunQuietStillAnnouncesFailures(t *testing.T) {
	doc := newDoc(t, `<p id="status">Ready</p>`)
	rec := newRecorder()
	res := Run(context.Background(), doc, Steps("click #status", "exists #missing"),
		fastOptions(map[string]any{"displayProgress": false}),
		WithGuard(NewGuard()), WithPresenter(rec))
	require.False(t, res.Success)

	require.Len(t, rec.announcements, 1)
	assert.Equal(t, StatusError, rec.announcements[0].Status)
	assert.Equal(t, 2, rec.announcements[0].Step)
}

func TestRunFillThenValueOnDiv(t *testing.T) {
	doc := newDoc(t, `<div id="d"></div>`)
	res := runSteps(t, doc, nil, Steps("fill #d Hello", "value #d Hello")...)

	assert.True(t, res.Success, res.Log)
	assert.Equal(t, "Element '#d' has the correct value: 'Hello'", res.Log[1])
}

// releasingDoc counts how often the runner drops element handles.
type releasingDoc struct {
	*htmldoc.Document
	released int
}

func (d *releasingDoc) Release(context.Context) error {
	d.released++
	return nil
}

func TestRunReleasesHandlesAfterEachStep(t *testing.T) {
	doc := &releasingDoc{Document: newDoc(t, `<p id="status">Ready</p>`)}
	res := Run(context.Background(), doc, Steps("exists #status", "click #status", "log done"),
		fastOptions(nil), WithGuard(NewGuard()))
	require.True(t, res.Success, res.Log)
	assert.Equal(t, 3, doc.released)

	doc.released = 0
	_, err := Inspect(context.Background(), doc, "#status", "", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.released)
}
