package output

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/mj1618/user-routine/internal/model"
	"github.com/mj1618/user-routine/internal/routine"
)

// Format represents the output format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// OutputFormat is the current output format, set by the root command's --format flag.
var OutputFormat Format = FormatYAML

// PrettyOutput enables pretty-printing for JSON output.
var PrettyOutput bool

// RunResult is the output of the `run` command.
type RunResult struct {
	routine.Result `yaml:",inline"`

	RunID       string          `yaml:"run_id"                json:"run_id"`
	Target      string          `yaml:"target,omitempty"      json:"target,omitempty"`
	Screenshots []string        `yaml:"screenshots,omitempty" json:"screenshots,omitempty"`
	Changes     *model.TreeDiff `yaml:"changes,omitempty"     json:"changes,omitempty"`
}

// ParsedAction is one line of the `parse` command output.
type ParsedAction struct {
	Index   int              `yaml:"index"             json:"index"`
	Raw     string           `yaml:"raw"               json:"raw"`
	Command *routine.Command `yaml:"command,omitempty" json:"command,omitempty"`
	Error   string           `yaml:"error,omitempty"   json:"error,omitempty"`
}

// ParseActions parses every action without running it.
func ParseActions(actions []routine.Action, cfg routine.Config) []ParsedAction {
	out := make([]ParsedAction, 0, len(actions))
	for i, a := range actions {
		p := ParsedAction{Index: i, Raw: a.String()}
		if !a.IsFunc() {
			cmd, err := routine.ParseCommand(a.Raw(), cfg)
			if err != nil {
				p.Error = err.Error()
			} else {
				p.Command = &cmd
			}
		}
		out = append(out, p)
	}
	return out
}

// InspectResult is the output of the `inspect` command.
type InspectResult struct {
	Target   string          `yaml:"target,omitempty" json:"target,omitempty"`
	Selector string          `yaml:"selector"         json:"selector"`
	Text     string          `yaml:"text,omitempty"   json:"text,omitempty"`
	TS       int64           `yaml:"ts"               json:"ts"`
	Elements []model.Element `yaml:"elements"         json:"elements"`
}

// InspectFlatResult is the output of `inspect --flat`.
type InspectFlatResult struct {
	Target   string              `yaml:"target,omitempty" json:"target,omitempty"`
	Selector string              `yaml:"selector"         json:"selector"`
	Text     string              `yaml:"text,omitempty"   json:"text,omitempty"`
	TS       int64               `yaml:"ts"               json:"ts"`
	Elements []model.FlatElement `yaml:"elements"         json:"elements"`
}

// Fprint serializes v to w in the current output format.
func Fprint(w io.Writer, v interface{}) error {
	switch OutputFormat {
	case FormatJSON:
		return PrintJSON(w, v, PrettyOutput)
	case FormatYAML:
		return PrintYAML(w, v)
	default:
		return fmt.Errorf("unsupported output format: %s", OutputFormat)
	}
}

// PrintJSON serializes v to w as JSON.
// If pretty is true, uses indentation; otherwise single-line.
func PrintJSON(w io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

// PrintYAML serializes v to w as YAML.
func PrintYAML(w io.Writer, v interface{}) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	return enc.Close()
}

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatYAML, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s (want yaml or json)", s)
	}
}
