// Package main implements insightctl, a command-line client that sends
// telemetry through insightkit and can run the HTTP relay.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightkit/internal/config"
	"github.com/fyrsmithlabs/insightkit/internal/logging"
	"github.com/fyrsmithlabs/insightkit/pkg/insights"
)

var (
	// configPath overrides the default config file location
	configPath string
	// backend overrides telemetry.backend
	backend string
	// version information (set via ldflags during build)
	version = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "insightctl",
	Short: "Send telemetry through insightkit",
	Long: `insightctl sends events, metrics, traces, exceptions, page views and
dependencies to the configured telemetry backend, or runs the HTTP relay.

Credentials come from the config file or the standard
APPLICATIONINSIGHTS_CONNECTION_STRING / APPINSIGHTS_INSTRUMENTATIONKEY
environment variables.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/insightkit/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "collector backend, appinsights or otlp (overrides config)")

	rootCmd.AddCommand(eventCmd)
	rootCmd.AddCommand(metricCmd)
	rootCmd.AddCommand(traceCmd)
	rootCmd.AddCommand(exceptionCmd)
	rootCmd.AddCommand(pageViewCmd)
	rootCmd.AddCommand(dependencyCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}

// session is a loaded configuration with its logger and an initialized
// telemetry client.
type session struct {
	cfg      *config.Config
	logger   *logging.Logger
	client   *insights.Client
	registry *prometheus.Registry
}

func openSession(ctx context.Context) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if backend != "" {
		cfg.Telemetry.Backend = backend
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	// The client logs through the plain logger; only application logs are
	// teed into telemetry.
	reg := prometheus.NewRegistry()
	client := insights.New(logger.Underlying(), insights.WithRegisterer(reg))
	if err := client.Initialize(ctx, insights.FromAppConfig(cfg.Telemetry)); err != nil {
		_ = logger.Sync()
		return nil, err
	}
	logger = logger.WithTelemetry(client.Core())

	return &session{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		registry: reg,
	}, nil
}

// close flushes and shuts the client down within the configured timeout.
func (s *session) close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.Telemetry.ShutdownTimeout.Duration())
	defer cancel()

	err := s.client.Close(ctx)
	if err != nil {
		s.logger.Warn(ctx, "telemetry shutdown incomplete", zap.Error(err))
	}
	return errors.Join(err, s.logger.Sync())
}
