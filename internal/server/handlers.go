package server

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mj1618/user-routine/internal/model"
	"github.com/mj1618/user-routine/internal/output"
	"github.com/mj1618/user-routine/internal/routine"
	"github.com/mj1618/user-routine/internal/screenshot"
)

// toText serializes v to YAML for an MCP response.
func toText(v interface{}) string {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(b)
}

func (s *Server) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	actions, err := actionsParam(params, "actions")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	options, err := mapParam(params, "options")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	wait := boolParam(params, "wait", true)

	id := uuid.NewString()
	var recorder *screenshot.Recorder
	runOpts := []routine.Option{
		routine.WithRunID(id),
		routine.WithGuard(s.guard),
		routine.WithTarget(s.provider.Target),
		routine.WithLogger(s.logger),
	}
	if s.opts.ScreenshotDir != "" && s.provider.Screenshotter != nil {
		recorder = screenshot.New(s.provider.Screenshotter, s.opts.ScreenshotDir, id, s.opts.ScreenshotScale, s.logger)
		runOpts = append(runOpts, routine.WithPresenter(recorder))
	}
	if s.opts.Metrics != nil {
		runOpts = append(runOpts, routine.WithHooks(s.opts.Metrics.Hooks()))
	}
	runner := routine.NewFromOptions(s.provider.Document, routine.MergeOptions(s.opts.Defaults, options), runOpts...)

	// Runs outlive the request that started them unless the caller waits.
	runCtx, cancel := context.WithCancel(context.Background())
	s.runs.Add(runner, len(actions), cancel)
	done := make(chan output.RunResult, 1)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		res := output.RunResult{
			Result: runner.Run(runCtx, actions),
			RunID:  id,
			Target: s.provider.Target,
		}
		if recorder != nil {
			res.Screenshots = recorder.Paths()
		}
		s.runs.Finish(id, res)
		done <- res
	}()

	if !wait {
		st, _ := s.runs.Status(id)
		return mcp.NewToolResultText(toText(st)), nil
	}

	var res output.RunResult
	select {
	case res = <-done:
	case <-ctx.Done():
		runner.State().Stop("request canceled")
		res = <-done
	}
	s.logger.Debug("run finished", zap.String("run_id", id), zap.Bool("success", res.Success))
	if !res.Success {
		return mcp.NewToolResultError(toText(res)), nil
	}
	return mcp.NewToolResultText(toText(res)), nil
}

func (s *Server) handleStatus(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringParam(request.GetArguments(), "run_id", "")
	if id == "" {
		return mcp.NewToolResultText(toText(s.runs.List())), nil
	}
	st, ok := s.runs.Status(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("run %s not found", id)), nil
	}
	return mcp.NewToolResultText(toText(st)), nil
}

func (s *Server) handleControl(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	id := stringParam(params, "run_id", "")
	action := stringParam(params, "action", "")

	controls, ok := s.runs.Controls(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("run %s is not active", id)), nil
	}
	switch action {
	case "pause":
		controls.Pause()
	case "resume":
		controls.Resume()
	case "toggle":
		controls.TogglePause()
	case "stop":
		controls.Stop(stringParam(params, "reason", "control_routine"))
	case "advance":
		controls.Advance()
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown action %q (use pause, resume, toggle, stop or advance)", action)), nil
	}
	s.logger.Info("control", zap.String("run_id", id), zap.String("action", action))

	st, _ := s.runs.Status(id)
	return mcp.NewToolResultText(toText(st)), nil
}

func (s *Server) handleParse(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	actions, err := actionsParam(params, "actions")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	cfg := routine.DefaultConfig()
	if sep := stringParam(params, "separator", ""); sep != "" {
		cfg.Separator = sep
	}
	return mcp.NewToolResultText(toText(output.ParseActions(actions, cfg))), nil
}

func (s *Server) handleInspect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	selector := stringParam(params, "selector", "")
	if selector == "" {
		return mcp.NewToolResultError("selector is required"), nil
	}
	text := stringParam(params, "text", "")
	depth := intParam(params, "depth", 0)

	elements, err := routine.Inspect(ctx, s.provider.Document, selector, text, depth)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if boolParam(params, "matches", false) && text != "" {
		elements = model.FilterMatches(elements)
	}

	ts := time.Now().Unix()
	if boolParam(params, "flat", false) {
		return mcp.NewToolResultText(toText(output.InspectFlatResult{
			Target:   s.provider.Target,
			Selector: selector,
			Text:     text,
			TS:       ts,
			Elements: model.FlattenElements(elements),
		})), nil
	}
	return mcp.NewToolResultText(toText(output.InspectResult{
		Target:   s.provider.Target,
		Selector: selector,
		Text:     text,
		TS:       ts,
		Elements: elements,
	})), nil
}
