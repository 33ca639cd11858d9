package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/mj1618/user-routine/internal/config"
	"github.com/mj1618/user-routine/internal/platform"
	"github.com/mj1618/user-routine/internal/routine"

	// Drivers register themselves with the platform package.
	_ "github.com/mj1618/user-routine/internal/platform/chrome"
	_ "github.com/mj1618/user-routine/internal/platform/htmldoc"
	_ "github.com/mj1618/user-routine/internal/platform/rodpage"
)

// flagKeys maps command line flags to their configuration keys. A flag
// only overrides the file and environment when it was set explicitly.
var flagKeys = map[string]string{
	"log-level":        "logger.level",
	"log-format":       "logger.format",
	"log-file":         "logger.log_file",
	"driver":           "browser.driver",
	"url":              "browser.url",
	"html":             "browser.html",
	"headless":         "browser.headless",
	"stealth":          "browser.stealth",
	"load-timeout":     "browser.timeout",
	"user-data-dir":    "browser.user_data_dir",
	"screenshots":      "browser.screenshot_dir",
	"screenshot-scale": "browser.screenshot_scale",
	"transport":        "server.transport",
	"addr":             "server.addr",
	"result-ttl":       "server.result_ttl",
}

// bindFlags binds every flag of cmd that has a configuration key.
func bindFlags(v *viper.Viper, cmd *cobra.Command) error {
	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

// addTargetFlags adds the flags that choose the page to open.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().String("url", "", "Page to open in a browser")
	cmd.Flags().String("html", "", "Static HTML file to load instead of a browser page")
	cmd.Flags().String("driver", "", "Driver: chromedp, rod, html (default: html with --html, chromedp with --url)")
	cmd.Flags().Bool("headless", true, "Run the browser without a window")
	cmd.Flags().Bool("stealth", false, "Hide common automation fingerprints (rod only)")
	cmd.Flags().Duration("load-timeout", 30*time.Second, "Max time to wait for the page to load")
	cmd.Flags().String("user-data-dir", "", "Browser profile directory (default: a throwaway profile)")
}

func targetOptions(b config.BrowserConfig) platform.OpenOptions {
	return platform.OpenOptions{
		URL:         b.URL,
		HTMLPath:    b.HTML,
		Headless:    b.Headless,
		Stealth:     b.Stealth,
		Timeout:     b.Timeout,
		UserDataDir: b.UserDataDir,
	}
}

// openTarget opens the configured page with the configured driver, or the
// default driver for the kind of target.
func openTarget(ctx context.Context, b config.BrowserConfig) (*platform.Provider, error) {
	opts := targetOptions(b)
	name, err := platform.DriverName(b.Driver, opts)
	if err != nil {
		return nil, err
	}
	return platform.Open(ctx, name, opts)
}

// parseOptionFlags turns repeated --option key=value flags into a routine
// option map. Numbers and booleans are decoded as YAML scalars; every
// other value stays the literal string.
func parseOptionFlags(values []string) (map[string]any, error) {
	options := make(map[string]any, len(values))
	for _, kv := range values {
		key, raw, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid option %q (want key=value)", kv)
		}
		var value any
		_ = yaml.Unmarshal([]byte(raw), &value)
		switch value.(type) {
		case bool, int, float64:
			options[key] = value
		default:
			options[key] = raw
		}
	}
	return options, nil
}

// loadRoutine reads a routine. YAML input is either a list of action
// strings or a document with options and actions keys; anything else is
// plain text with one action per line.
func loadRoutine(r io.Reader) ([]routine.Action, map[string]any, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read routine: %w", err)
	}
	text := string(data)

	kind := routineKind(text)
	if kind == "text" {
		return routine.Lines(strings.TrimRight(text, "\r\n")), nil, nil
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("failed to parse routine: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil, fmt.Errorf("failed to parse routine: empty document")
	}
	lines := strings.Split(text, "\n")
	root := doc.Content[0]

	if kind == "list" {
		raws, err := actionStrings(lines, root)
		if err != nil {
			return nil, nil, err
		}
		return routine.Steps(raws...), nil, nil
	}

	if root.Kind != yaml.MappingNode {
		return nil, nil, fmt.Errorf("line %d: routine must be a mapping with options and actions", root.Line)
	}
	var (
		raws    []string
		options map[string]any
	)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if value.ShortTag() == "!!null" {
			continue
		}
		switch key.Value {
		case "actions":
			if raws, err = actionStrings(lines, value); err != nil {
				return nil, nil, err
			}
		case "options":
			if err := value.Decode(&options); err != nil {
				return nil, nil, fmt.Errorf("line %d: invalid options: %w", value.Line, err)
			}
		}
	}
	return routine.Steps(raws...), options, nil
}

// actionStrings returns the items of a YAML sequence of actions. Unquoted
// block items are read back from the source line, since YAML would drop
// everything after " #" as a comment and selectors such as #save with it.
func actionStrings(lines []string, seq *yaml.Node) ([]string, error) {
	if seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: actions must be a list", seq.Line)
	}
	raws := make([]string, 0, len(seq.Content))
	for _, n := range seq.Content {
		if n.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("line %d: action must be a string", n.Line)
		}
		raw := n.Value
		if n.Style == 0 && seq.Style&yaml.FlowStyle == 0 && raw != "" && n.Line <= len(lines) {
			if line := lines[n.Line-1]; n.Column-1 < len(line) {
				raw = strings.TrimSpace(line[n.Column-1:])
			}
		}
		raws = append(raws, raw)
	}
	return raws, nil
}

// routineKind sniffs the first meaningful line. Plain text cannot go
// through the YAML parser because " #" would start a comment.
func routineKind(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "---" {
			continue
		}
		switch {
		case line == "-" || strings.HasPrefix(line, "- "):
			return "list"
		case strings.HasPrefix(line, "actions:") || strings.HasPrefix(line, "options:"):
			return "document"
		default:
			return "text"
		}
	}
	return "text"
}

// readActions collects the routine from --step flags, or from the file
// named by the first argument ("-" for stdin).
func readActions(cmd *cobra.Command, args []string) ([]routine.Action, map[string]any, error) {
	steps, _ := cmd.Flags().GetStringArray("step")
	if len(steps) > 0 {
		if len(args) > 0 {
			return nil, nil, fmt.Errorf("use either --step or a routine file, not both")
		}
		return routine.Steps(steps...), nil, nil
	}
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("no routine: pass a file, - for stdin, or --step")
	}
	if args[0] == "-" {
		return loadRoutine(cmd.InOrStdin())
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return loadRoutine(f)
}

func addRoutineFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("step", "e", nil, "Action to run, repeatable (instead of a routine file)")
	cmd.Flags().StringArrayP("option", "o", nil, "Routine option as key=value, repeatable (e.g. globalDelay=0)")
}

// routineOptions layers the configured options, the routine file's own
// options and --option flags, later ones winning.
func routineOptions(cmd *cobra.Command, fileOptions map[string]any) (map[string]any, error) {
	values, _ := cmd.Flags().GetStringArray("option")
	flagOptions, err := parseOptionFlags(values)
	if err != nil {
		return nil, err
	}
	var base map[string]any
	if appConfig != nil {
		base = appConfig.Routine
	}
	return routine.MergeOptions(routine.MergeOptions(base, fileOptions), flagOptions), nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
