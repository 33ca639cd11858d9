package routine

import (
	"context"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Kind identifies what a command does.
type Kind int

const (
	KindNoop Kind = iota
	KindClick
	KindExists
	KindValue
	KindFill
	KindWrite
	KindAppend
	KindLog
	KindComment
	KindNav
	KindWait
	KindAwait
)

var kindNames = map[Kind]string{
	KindNoop:    "noop",
	KindClick:   "click",
	KindExists:  "exists",
	KindValue:   "value",
	KindFill:    "fill",
	KindWrite:   "write",
	KindAppend:  "append",
	KindLog:     "log",
	KindComment: "comment",
	KindNav:     "nav",
	KindWait:    "wait",
	KindAwait:   "await",
}

// maxWaitMillis is the longest wait a time.Duration can hold.
const maxWaitMillis = float64(math.MaxInt64 / int64(time.Millisecond))

// Keywords are recognised by their first three characters.
var prefixes = map[string]Kind{
	"cli": KindClick,
	"exi": KindExists,
	"val": KindValue,
	"fil": KindFill,
	"wri": KindWrite,
	"app": KindAppend,
	"log": KindLog,
	"com": KindComment,
	"nav": KindNav,
	"wai": KindWait,
	"awa": KindAwait,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// MarshalText renders the kind by name in yaml and json output.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Command is a parsed action string.
type Command struct {
	Raw      string        `yaml:"raw"                json:"raw"`
	Kind     Kind          `yaml:"kind"               json:"kind"`
	Negate   bool          `yaml:"negate,omitempty"   json:"negate,omitempty"`
	Selector string        `yaml:"selector,omitempty" json:"selector,omitempty"`
	Text     string        `yaml:"text,omitempty"     json:"text,omitempty"`
	HasText  bool          `yaml:"-"                  json:"-"`
	Wait     time.Duration `yaml:"-"                  json:"-"`
}

// Name is the keyword form of the command, with the negation marker.
func (c Command) Name() string {
	if c.Negate {
		return "!" + c.Kind.String()
	}
	return c.Kind.String()
}

// Target describes the command's selector and text filter for log entries.
func (c Command) Target() string {
	return targetText(c.Selector, c.Text)
}

func targetText(selector, text string) string {
	s := "'" + selector + "'"
	if text != "" {
		s += " containing text '" + text + "'"
	}
	return s
}

// Callback is a caller-supplied action.
type Callback func(ctx context.Context) error

// Action is either an action string or a Callback.
type Action struct {
	raw string
	fn  Callback
}

// Step returns an action string action.
func Step(raw string) Action { return Action{raw: raw} }

// Func returns a callback action.
func Func(fn Callback) Action { return Action{fn: fn} }

// Steps converts action strings to actions.
func Steps(raws ...string) []Action {
	out := make([]Action, 0, len(raws))
	for _, r := range raws {
		out = append(out, Step(r))
	}
	return out
}

// Lines splits a newline-separated action list.
func Lines(text string) []Action {
	return Steps(strings.Split(text, "\n")...)
}

// IsFunc reports whether the action is a callback.
func (a Action) IsFunc() bool { return a.fn != nil }

// Raw returns the action string, trimmed of leading whitespace.
func (a Action) Raw() string {
	return strings.TrimLeftFunc(a.raw, unicode.IsSpace)
}

func (a Action) String() string {
	if a.fn != nil {
		return "<func>"
	}
	return a.Raw()
}

// ParseCommand parses one action string. Parse failures are returned as
// *StepError so the runner can report them like any other failed action.
func ParseCommand(raw string, cfg Config) (Command, error) {
	raw = strings.TrimLeftFunc(raw, unicode.IsSpace)
	cmd := Command{Raw: raw, Kind: KindNoop}
	if raw == "" {
		return cmd, nil
	}
	sep := cfg.Separator
	if sep == "" {
		sep = " "
	}

	body := raw
	if strings.HasPrefix(body, "!") {
		cmd.Negate = true
		body = body[1:]
	}
	parts := strings.SplitN(body, sep, 3)
	head := parts[0]
	if len(head) < 3 {
		return cmd, stepErr(ErrUnrecognizedCommand, "Action string keyword not recognized, got", raw)
	}
	kind, ok := prefixes[head[:3]]
	if !ok {
		return cmd, stepErr(ErrUnrecognizedCommand, "Action string keyword not recognized, got", raw)
	}
	cmd.Kind = kind
	if cmd.Negate && kind != KindExists && kind != KindAwait {
		return cmd, stepErr(ErrUnrecognizedCommand, "Negation is only supported for exists and await, got", raw)
	}

	switch kind {
	case KindLog:
		rest := strings.SplitN(body, sep, 2)
		if len(rest) < 2 || rest[1] == "" {
			return cmd, stepErr(ErrValidation, "Value was not provided for log action", raw)
		}
		cmd.Text, cmd.HasText = rest[1], true

	case KindWait:
		if len(parts) < 2 {
			return cmd, stepErr(ErrValidation, "Unexpected wait action, got", raw)
		}
		ms, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || ms < 0 || ms > maxWaitMillis || math.IsNaN(ms) {
			return cmd, stepErr(ErrValidation, "Unexpected wait action, got", raw)
		}
		cmd.Text = parts[1]
		cmd.Wait = time.Duration(ms * float64(time.Millisecond))

	case KindNav:
		if len(parts) < 2 || !strings.HasPrefix(parts[1], "#") {
			return cmd, stepErr(ErrValidation, "Unexpected nav action, got", raw)
		}
		cmd.Text, cmd.HasText = parts[1], true

	case KindFill, KindWrite, KindAppend:
		if len(parts) < 3 || parts[1] == "" {
			return cmd, stepErr(ErrValidation, "Unexpected input with data, got", raw)
		}
		cmd.Selector = normalizeSelector(parts[1])
		cmd.Text, cmd.HasText = parts[2], true

	case KindComment:
		if len(parts) < 2 || parts[1] == "" {
			return cmd, stepErr(ErrValidation, "Missing selector for comment action, got", raw)
		}
		cmd.Selector = normalizeSelector(parts[1])
		if len(parts) < 3 || parts[2] == "" {
			return cmd, stepErr(ErrValidation, "Value was not provided for comment action", raw)
		}
		cmd.Text, cmd.HasText = parts[2], true

	default:
		if len(parts) < 2 || parts[1] == "" {
			return cmd, stepErr(ErrValidation, "Missing selector for "+kind.String()+" action, got", raw)
		}
		cmd.Selector = normalizeSelector(parts[1])
		if len(parts) == 3 && parts[2] != "" {
			cmd.Text, cmd.HasText = parts[2], true
		}
	}
	return cmd, nil
}

// normalizeSelector rewrites the ">>" combinator, which lets a selector
// contain a descendant step without using the separator.
func normalizeSelector(sel string) string {
	return strings.ReplaceAll(sel, ">>", " ")
}
