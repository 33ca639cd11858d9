package output

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/muesli/termenv"

	"github.com/mj1618/user-routine/internal/routine"
)

// Console renders a run for a person watching a terminal: a title, one
// line per announcement and the progress log as "* entry" lines.
type Console struct {
	mu        sync.Mutex
	w         io.Writer
	out       *termenv.Output
	cfg       routine.Config
	collapsed []string
}

var _ routine.Presenter = (*Console)(nil)

// NewConsole writes to w, coloring only when w is a terminal that supports it.
func NewConsole(w io.Writer, opts ...termenv.OutputOption) *Console {
	return &Console{w: w, out: termenv.NewOutput(w, opts...)}
}

func (c *Console) paint(s, hex string) termenv.Style {
	return c.out.String(s).Foreground(c.out.Color(hex))
}

func (c *Console) println(v ...any) {
	fmt.Fprintln(c.w, v...)
}

func (c *Console) Begin(_ context.Context, cfg routine.Config, _ routine.Controls) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.collapsed = nil
	if !cfg.DisplayMessage {
		return
	}
	c.println(c.paint(cfg.Title(), "#818cf8").Bold())
	if cfg.MessageAttribution != "" && cfg.MessageAttribution != cfg.Message {
		c.println(c.paint("  "+cfg.MessageAttribution, "#a78bfa").Faint())
	}
}

func (c *Console) Announce(ctx context.Context, a routine.Announcement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.cfg.DisplayProgress {
		return
	}

	var b strings.Builder
	if a.Total > 0 {
		fmt.Fprintf(&b, "[%d/%d] ", a.Step, a.Total)
	}
	if a.Target != nil {
		if tag, err := a.Target.TagName(ctx); err == nil {
			fmt.Fprintf(&b, "<%s> ", strings.ToLower(tag))
		}
	}
	b.WriteString(a.Text)

	hex := "#38bdf8"
	if a.Status == routine.StatusError {
		hex = "#f87171"
	}
	c.println(c.paint(b.String(), hex))
	if a.Gated {
		prompt := "  press enter or n for the next step"
		if a.Final {
			prompt = "  press enter or n to finish"
		}
		c.println(c.paint(prompt, "#fbbf24").Italic())
	}
}

func (c *Console) Clear(context.Context) {}

func (c *Console) Progress(entry string, level routine.Level) {
	c.mu.Lock()
	defer c.mu.Unlock()
	line := c.progressLine(entry, level)
	if c.cfg.LogCollapse {
		c.collapsed = append(c.collapsed, line)
		return
	}
	c.println(line)
}

func (c *Console) progressLine(entry string, level routine.Level) string {
	switch level {
	case routine.LevelError:
		return c.paint("* "+entry, "#f87171").String()
	case routine.LevelWarn:
		return c.paint("* "+entry, "#fbbf24").String()
	default:
		return "* " + entry
	}
}

// End prints collapsed progress as one group and, with logResult, the
// result document.
func (c *Console) End(_ context.Context, res routine.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.collapsed) > 0 {
		c.println(c.paint(fmt.Sprintf("%s (%d entries)", c.cfg.Title(), len(c.collapsed)), "#818cf8"))
		for _, line := range c.collapsed {
			c.println("  " + line)
		}
		c.collapsed = nil
	}
	if !c.cfg.LogResult {
		return
	}
	verdict := c.paint("succeeded", "#4ade80")
	if !res.Success {
		verdict = c.paint("failed", "#f87171")
	}
	c.println(fmt.Sprintf("%s %s", c.cfg.Title(), verdict))
	if err := PrintYAML(c.w, res); err != nil {
		c.println(err)
	}
}
