package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mj1618/user-routine/internal/metrics"
	"github.com/mj1618/user-routine/internal/observability"
	"github.com/mj1618/user-routine/internal/server"
	"github.com/mj1618/user-routine/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an MCP server that runs routines",
	Long: `Open a page and start a Model Context Protocol (MCP) server exposing the
routine runner as tools: run_routine, routine_status, control_routine,
parse_actions and inspect.

Supported transports:
  stdio   Standard I/O (default, for MCP clients that spawn the server)
  http    Streamable HTTP on --addr, with /metrics and /healthz alongside

Examples:
  user-routine serve --url https://example.com
  user-routine serve --html page.html --transport http --addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addTargetFlags(serveCmd)
	serveCmd.Flags().String("transport", "stdio", "Transport: stdio, http")
	serveCmd.Flags().String("addr", ":8080", "Listen address for the http transport")
	serveCmd.Flags().Duration("result-ttl", 10*time.Minute, "How long finished run results stay queryable")
	serveCmd.Flags().String("screenshots", "", "Save a screenshot of each failed step in this directory")
	serveCmd.Flags().Float64("screenshot-scale", 0.5, "Scale factor for screenshots (0.1-1.0)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider, err := openTarget(ctx, cfg.Browser)
	if err != nil {
		return err
	}
	defer provider.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := server.New(provider, server.Options{
		Version:         version.Version,
		ResultTTL:       cfg.Server.ResultTTL,
		ScreenshotDir:   cfg.Browser.ScreenshotDir,
		ScreenshotScale: cfg.Browser.ScreenshotScale,
		Defaults:        cfg.Routine,
		Logger:          logger,
		Metrics:         metrics.New(reg),
	})
	defer srv.Close()

	logger.Info("serving",
		zap.String("transport", cfg.Server.Transport),
		zap.String("driver", provider.Driver),
		zap.String("target", provider.Target))

	switch cfg.Server.Transport {
	case "stdio":
		return srv.ServeStdio()
	case "http":
		return srv.ServeHTTP(ctx, cfg.Server.Addr, reg)
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or http)", cfg.Server.Transport)
	}
}
