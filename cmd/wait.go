package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mj1618/user-routine/internal/output"
	"github.com/mj1618/user-routine/internal/platform"
	"github.com/mj1618/user-routine/internal/routine"
)

// WaitResult is the output of the wait command.
type WaitResult struct {
	OK       bool   `yaml:"ok"                  json:"ok"`
	Selector string `yaml:"selector"            json:"selector"`
	Text     string `yaml:"text,omitempty"      json:"text,omitempty"`
	Gone     bool   `yaml:"gone,omitempty"      json:"gone,omitempty"`
	Elapsed  string `yaml:"elapsed"             json:"elapsed"`
	TimedOut bool   `yaml:"timed_out,omitempty" json:"timed_out,omitempty"`
}

var waitCmd = &cobra.Command{
	Use:   "wait <selector>",
	Short: "Wait for an element to appear or go away",
	Long: `Poll the page until an element matching the selector exists (optionally
holding --text), or with --gone until it no longer does.

Exits non-zero on timeout.`,
	Args: cobra.ExactArgs(1),
	RunE: runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)
	addTargetFlags(waitCmd)
	waitCmd.Flags().String("text", "", "Only count elements holding this text, case-insensitive")
	waitCmd.Flags().Bool("gone", false, "Invert: wait until the element is no longer there")
	waitCmd.Flags().Duration("timeout", 15*time.Second, "Max time to wait")
	waitCmd.Flags().Duration("interval", 250*time.Millisecond, "Polling interval")
}

// elementPresent checks for selector, or for the most specific element
// under it holding text.
func elementPresent(doc platform.Document, selector, text string) routine.Condition {
	return func(ctx context.Context) (bool, error) {
		var el platform.Element
		var err error
		if text == "" {
			el, err = routine.ResolveOne(ctx, doc, selector)
		} else {
			el, err = routine.ResolveSpecific(ctx, doc, selector, text)
		}
		if rerr := platform.Release(ctx, doc); err == nil {
			err = rerr
		}
		return el != nil, err
	}
}

func runWait(cmd *cobra.Command, args []string) error {
	selector := args[0]
	text, _ := cmd.Flags().GetString("text")
	gone, _ := cmd.Flags().GetBool("gone")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	interval, _ := cmd.Flags().GetDuration("interval")

	ctx := cmd.Context()
	provider, err := openTarget(ctx, appConfig.Browser)
	if err != nil {
		return err
	}
	defer provider.Close()

	start := time.Now()
	ok, err := routine.Await(ctx, elementPresent(provider.Document, selector, text), timeout, interval, gone, sleepCtx)
	if err != nil {
		return err
	}
	res := WaitResult{
		OK:       ok,
		Selector: selector,
		Text:     text,
		Gone:     gone,
		Elapsed:  fmt.Sprintf("%.1fs", time.Since(start).Seconds()),
		TimedOut: !ok,
	}
	if err := output.Fprint(cmd.OutOrStdout(), res); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("timeout after %s", timeout)
	}
	return nil
}
