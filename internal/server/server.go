// Package server exposes routines as MCP tools so agents can replay,
// watch and steer them. It serves over stdio or over HTTP next to the
// prometheus endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mj1618/user-routine/internal/metrics"
	"github.com/mj1618/user-routine/internal/platform"
	"github.com/mj1618/user-routine/internal/routine"
)

// Options configures a Server.
type Options struct {
	Version         string
	ResultTTL       time.Duration
	ScreenshotDir   string
	ScreenshotScale float64
	// Defaults are routine options applied under every call's own options.
	Defaults map[string]any
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Server runs routines against one opened page.
type Server struct {
	provider *platform.Provider
	opts     Options
	runs     *RunCache
	guard    *routine.Guard
	logger   *zap.Logger
	mcp      *mcpserver.MCPServer
	wg       sync.WaitGroup
}

func New(provider *platform.Provider, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	s := &Server{
		provider: provider,
		opts:     opts,
		runs:     NewRunCache(opts.ResultTTL),
		guard:    routine.NewGuard(),
		logger:   opts.Logger.Named("server"),
		mcp:      mcpserver.NewMCPServer("user-routine", opts.Version),
	}
	s.registerTools()
	return s
}

// Runs exposes the run registry.
func (s *Server) Runs() *RunCache { return s.runs }

// Close stops live runs and waits for them to report.
func (s *Server) Close() {
	s.runs.CancelAll()
	s.wg.Wait()
}

func (s *Server) registerTools() {
	s.mcp.AddTool(
		mcp.NewTool("run_routine",
			mcp.WithDescription("Run a list of User-Routine actions (click, exists, !exists, value, fill, write, append, await, !await, wait, nav, log, comment) against the open page and return the report."),
			mcp.WithArray("actions", mcp.Required(),
				mcp.Description("Action strings in order, or one newline separated string"),
				mcp.Items(map[string]any{"type": "string"})),
			mcp.WithObject("options", mcp.Description("Routine options such as globalDelay, awaitTimeout, continueOnFailure, separator, tutorialMode")),
			mcp.WithBoolean("wait", mcp.Description("Wait for the run to finish (default true). When false the run id is returned at once.")),
		),
		s.handleRun,
	)

	s.mcp.AddTool(
		mcp.NewTool("routine_status",
			mcp.WithDescription("Report the phase, step and result of a run. Without run_id, list every known run."),
			mcp.WithString("run_id", mcp.Description("Run id returned by run_routine")),
		),
		s.handleStatus,
	)

	s.mcp.AddTool(
		mcp.NewTool("control_routine",
			mcp.WithDescription("Pause, resume, stop or advance a running routine. advance releases a tutorial step gate."),
			mcp.WithString("run_id", mcp.Required(), mcp.Description("Run id returned by run_routine")),
			mcp.WithString("action", mcp.Required(),
				mcp.Description("Control to apply"),
				mcp.Enum("pause", "resume", "toggle", "stop", "advance")),
			mcp.WithString("reason", mcp.Description("Reason recorded with stop")),
		),
		s.handleControl,
	)

	s.mcp.AddTool(
		mcp.NewTool("parse_actions",
			mcp.WithDescription("Parse action strings without running them and report the command each becomes or why it is invalid."),
			mcp.WithArray("actions", mcp.Required(),
				mcp.Description("Action strings, or one newline separated string"),
				mcp.Items(map[string]any{"type": "string"})),
			mcp.WithString("separator", mcp.Description("Field separator (default: space)")),
		),
		s.handleParse,
	)

	s.mcp.AddTool(
		mcp.NewTool("inspect",
			mcp.WithDescription("Snapshot the elements matching a CSS selector. With text, flags the nodes containing it and the one a click would land on."),
			mcp.WithString("selector", mcp.Required(), mcp.Description("CSS selector; >> is accepted as a descendant combinator")),
			mcp.WithString("text", mcp.Description("Text filter, case-insensitive")),
			mcp.WithNumber("depth", mcp.Description("Levels below each match to include (0 = unlimited)")),
			mcp.WithBoolean("flat", mcp.Description("Return a flat list with paths instead of a tree")),
			mcp.WithBoolean("matches", mcp.Description("Only keep nodes containing text")),
		),
		s.handleInspect,
	)
}

// ServeStdio serves MCP over stdin and stdout until the client disconnects.
func (s *Server) ServeStdio() error {
	return mcpserver.ServeStdio(s.mcp)
}

// Router mounts the MCP endpoint, /metrics for gatherer and /healthz.
func (s *Server) Router(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintf(w, "ok %s\n", s.provider.Driver)
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Handle("/mcp", mcpserver.NewStreamableHTTPServer(s.mcp))
	return r
}

// ServeHTTP listens on addr until ctx is canceled.
func (s *Server) ServeHTTP(ctx context.Context, addr string, gatherer prometheus.Gatherer) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Router(gatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("listening", zap.String("addr", addr))
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}
