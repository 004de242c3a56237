package main

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/insightkit/internal/monitor"
)

var (
	watchURL      string
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show a live dashboard for a running relay",
	Long: `Poll a relay's Prometheus endpoint and render forwarded and dropped
telemetry per kind, the drop ratio and process health.

Examples:
  insightctl watch
  insightctl watch --url http://10.0.0.5:8080/metrics --interval 5s`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", "http://127.0.0.1:8080/metrics", "relay metrics endpoint")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "refresh interval")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	if watchInterval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", watchInterval)
	}

	p := tea.NewProgram(
		monitor.NewModel(watchURL, watchInterval),
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
