package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mj1618/user-routine/internal/model"
	"github.com/mj1618/user-routine/internal/observability"
	"github.com/mj1618/user-routine/internal/output"
	"github.com/mj1618/user-routine/internal/routine"
	"github.com/mj1618/user-routine/internal/screenshot"
)

var runCmd = &cobra.Command{
	Use:   "run [file|-]",
	Short: "Run a routine against a page",
	Long: `Run a routine: a list of actions executed in order against the page.

The routine comes from a file, from stdin with "-", or from repeated --step
flags. Files hold one action per line, a YAML list of actions, or a YAML
document with options and actions keys.

Actions:
  click <sel> [text]     click the most specific element holding text
  exists <sel>           fail unless sel exists (!exists for the opposite)
  value <sel> [text]     fail unless the value property is set (or equals text)
  fill <sel> <text>      set the value property
  write <sel> <text>     replace the text content
  append <sel> <text>    append to the text content
  await <sel> [text]     wait for sel (!await to wait for it to go)
  wait <ms>              sleep
  nav <#fragment>        navigate within the page
  log <text>             add an entry to the log
  comment <sel> <text>   show text next to an element

The report goes to stdout; progress and logs go to stderr.

Examples:
  user-routine run --html page.html -e "fill #name Bob" -e "click button Save"
  user-routine run --url https://example.com checkout.yaml -o globalDelay=0
  echo "await #ready" | user-routine run --url https://example.com -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addTargetFlags(runCmd)
	addRoutineFlags(runCmd)
	runCmd.Flags().String("screenshots", "", "Save a screenshot of each failed step in this directory")
	runCmd.Flags().Float64("screenshot-scale", 0.5, "Scale factor for screenshots (0.1-1.0)")
	runCmd.Flags().String("watch", "", "Snapshot elements matching this selector before and after, and report the changes")
	runCmd.Flags().BoolP("quiet", "q", false, "Do not print progress to stderr")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	actions, fileOptions, err := readActions(cmd, args)
	if err != nil {
		return err
	}
	options, err := routineOptions(cmd, fileOptions)
	if err != nil {
		return err
	}
	watch, _ := cmd.Flags().GetString("watch")
	quiet, _ := cmd.Flags().GetBool("quiet")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := openTarget(ctx, cfg.Browser)
	if err != nil {
		return err
	}
	defer provider.Close()

	logger := observability.GetLogger()
	id := uuid.NewString()

	var presenters []routine.Presenter
	if !quiet {
		presenters = append(presenters,
			output.NewConsole(cmd.ErrOrStderr()),
			newKeyboard(os.Stdin, stderr, logger))
	}
	var recorder *screenshot.Recorder
	if dir := cfg.Browser.ScreenshotDir; dir != "" {
		if provider.Screenshotter == nil {
			logger.Warn("driver cannot take screenshots", zap.String("driver", provider.Driver))
		} else {
			recorder = screenshot.New(provider.Screenshotter, dir, id, cfg.Browser.ScreenshotScale, logger)
			presenters = append(presenters, recorder)
		}
	}

	var before []model.FlatElement
	if watch != "" {
		if before, err = routine.Snapshot(ctx, provider.Document, watch); err != nil {
			return fmt.Errorf("snapshot %s: %w", watch, err)
		}
	}

	res := routine.Run(ctx, provider.Document, actions, options,
		routine.WithRunID(id),
		routine.WithTarget(provider.Target),
		routine.WithLogger(logger),
		routine.WithPresenter(routine.Presenters(presenters...)),
	)

	result := output.RunResult{Result: res, RunID: id, Target: provider.Target}
	if recorder != nil {
		result.Screenshots = recorder.Paths()
	}
	if watch != "" {
		after, err := routine.Snapshot(ctx, provider.Document, watch)
		if err != nil {
			logger.Warn("could not snapshot after the run", zap.String("selector", watch), zap.Error(err))
		} else {
			diff := model.DiffElements(before, after)
			result.Changes = &diff
		}
	}

	if err := output.Fprint(cmd.OutOrStdout(), result); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("routine failed: %s", lastEntry(res.Log))
	}
	return nil
}

func lastEntry(log []string) string {
	if len(log) == 0 {
		return "no log"
	}
	return log[len(log)-1]
}
