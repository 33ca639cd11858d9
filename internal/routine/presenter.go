package routine

import (
	"context"

	"github.com/mj1618/user-routine/internal/platform"
)

// Status colours an announcement.
type Status int

const (
	StatusInfo Status = iota
	StatusError
)

// Level is the severity of a progress entry.
type Level int

const (
	LevelLog Level = iota
	LevelWarn
	LevelError
)

// Announcement is a message shown next to an element, or on the banner
// when Target is nil.
type Announcement struct {
	Target platform.Element
	Text   string
	Status Status
	Step   int
	Total  int

	// Gated announcements wait for Controls.Advance; Final marks the last
	// gated step of the run.
	Gated bool
	Final bool
}

// Presenter shows a run to a human. Implementations must not block the
// runner for longer than it takes to render.
type Presenter interface {
	Begin(ctx context.Context, cfg Config, controls Controls)
	Announce(ctx context.Context, a Announcement)
	Clear(ctx context.Context)
	Progress(entry string, level Level)
	End(ctx context.Context, res Result)
}

// NopPresenter discards everything.
type NopPresenter struct{}

func (NopPresenter) Begin(context.Context, Config, Controls) {}
func (NopPresenter) Announce(context.Context, Announcement) {}
func (NopPresenter) Clear(context.Context) {}
func (NopPresenter) Progress(string, Level) {}
func (NopPresenter) End(context.Context, Result) {}

// Presenters fans every call out to ps in order.
func Presenters(ps ...Presenter) Presenter {
	return multiPresenter(ps)
}

type multiPresenter []Presenter

func (m multiPresenter) Begin(ctx context.Context, cfg Config, controls Controls) {
	for _, p := range m {
		p.Begin(ctx, cfg, controls)
	}
}

func (m multiPresenter) Announce(ctx context.Context, a Announcement) {
	for _, p := range m {
		p.Announce(ctx, a)
	}
}

func (m multiPresenter) Clear(ctx context.Context) {
	for _, p := range m {
		p.Clear(ctx)
	}
}

func (m multiPresenter) Progress(entry string, level Level) {
	for _, p := range m {
		p.Progress(entry, level)
	}
}

func (m multiPresenter) End(ctx context.Context, res Result) {
	for _, p := range m {
		p.End(ctx, res)
	}
}
