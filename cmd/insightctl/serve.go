package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	httpserver "github.com/fyrsmithlabs/insightkit/internal/http"
)

// serveAddr overrides server.addr
var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the telemetry relay HTTP server",
	Long: `Run an HTTP server that accepts telemetry on /api/v1/track/* and
forwards it to the configured backend. The server's own requests are
collected too, and Prometheus metrics are exposed on /metrics.

Examples:
  insightctl serve --addr 127.0.0.1:8080
  insightctl serve --backend otlp`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
}

// meterProviderSource is implemented by collectors that export metrics
// through OpenTelemetry.
type meterProviderSource interface {
	MeterProvider() metric.MeterProvider
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srvCfg := &httpserver.Config{
		Addr:     s.cfg.Server.Addr,
		Gatherer: s.registry,
	}
	if serveAddr != "" {
		srvCfg.Addr = serveAddr
	}
	if src, ok := s.client.Collector().(meterProviderSource); ok {
		srvCfg.MeterProvider = src.MeterProvider()
	}

	srv, err := httpserver.NewServer(s.client, s.logger.Underlying(), srvCfg)
	if err != nil {
		return errors.Join(err, s.close(ctx))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		s.logger.Info(ctx, "shutdown requested", zap.Error(context.Cause(ctx)))
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	return errors.Join(serveErr, srv.Shutdown(shutdownCtx), s.close(ctx))
}
