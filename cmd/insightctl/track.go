package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/insightkit/pkg/contracts"
	"github.com/fyrsmithlabs/insightkit/pkg/insights"
)

var eventCmd = &cobra.Command{
	Use:   "event NAME",
	Short: "Track a custom event",
	Long: `Track a named custom event.

Examples:
  insightctl event checkout.completed --prop tier=gold --prop region=eu`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := propsFromFlags(cmd)
		if err != nil {
			return err
		}
		return runTrack(cmd, "event", args[0], func(ctx context.Context, c *insights.Client) error {
			return c.TrackEvent(ctx, args[0], props)
		})
	},
}

var metricCmd = &cobra.Command{
	Use:   "metric NAME VALUE",
	Short: "Track a numeric measurement",
	Long: `Track a single numeric measurement.

Examples:
  insightctl metric queue.depth 42 --prop queue=ingest`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid metric value %q: %w", args[1], err)
		}
		props, err := propsFromFlags(cmd)
		if err != nil {
			return err
		}
		return runTrack(cmd, "metric", args[0], func(ctx context.Context, c *insights.Client) error {
			return c.TrackMetric(ctx, args[0], value, props)
		})
	},
}

var traceCmd = &cobra.Command{
	Use:   "trace MESSAGE",
	Short: "Track a diagnostic trace message",
	Long: `Track a diagnostic message with a severity of verbose, information,
warning, error or critical.

Examples:
  insightctl trace "cache rebuilt" --severity warning`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("severity")
		severity, err := contracts.ParseSeverity(name)
		if err != nil {
			return err
		}
		props, err := propsFromFlags(cmd)
		if err != nil {
			return err
		}
		return runTrack(cmd, "trace", args[0], func(ctx context.Context, c *insights.Client) error {
			return c.TrackTrace(ctx, args[0], severity, props)
		})
	},
}

var exceptionCmd = &cobra.Command{
	Use:   "exception MESSAGE",
	Short: "Track an exception",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		props, err := propsFromFlags(cmd)
		if err != nil {
			return err
		}
		return runTrack(cmd, "exception", args[0], func(ctx context.Context, c *insights.Client) error {
			return c.TrackException(ctx, errors.New(args[0]), props)
		})
	},
}

var pageViewCmd = &cobra.Command{
	Use:   "pageview NAME",
	Short: "Track a page view",
	Long: `Track a page or screen view.

Examples:
  insightctl pageview Home --url https://example.com/`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		props, err := propsFromFlags(cmd)
		if err != nil {
			return err
		}
		return runTrack(cmd, "pageview", args[0], func(ctx context.Context, c *insights.Client) error {
			return c.TrackPageView(ctx, args[0], url, props)
		})
	},
}

var dependencyCmd = &cobra.Command{
	Use:   "dependency NAME",
	Short: "Track an outbound call",
	Long: `Track a call the application made to another component.

Examples:
  insightctl dependency "GET /users" --type HTTP --target api.example.com \
    --result-code 200 --duration 120ms`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dep, err := dependencyFromFlags(cmd, args[0])
		if err != nil {
			return err
		}
		return runTrack(cmd, "dependency", args[0], func(ctx context.Context, c *insights.Client) error {
			return c.TrackDependency(ctx, dep)
		})
	},
}

func init() {
	for _, cmd := range []*cobra.Command{eventCmd, metricCmd, traceCmd, exceptionCmd, pageViewCmd, dependencyCmd} {
		cmd.Flags().StringArrayP("prop", "p", nil, "custom property as key=value (repeatable)")
	}
	traceCmd.Flags().String("severity", "information", "trace severity")
	pageViewCmd.Flags().String("url", "", "page URL")

	dependencyCmd.Flags().String("type", "HTTP", "dependency type")
	dependencyCmd.Flags().String("target", "", "target host or resource")
	dependencyCmd.Flags().String("data", "", "command or URL of the call")
	dependencyCmd.Flags().String("result-code", "", "result code of the call")
	dependencyCmd.Flags().Duration("duration", 0, "duration of the call")
	dependencyCmd.Flags().Bool("success", true, "whether the call succeeded")
}

// runTrack opens a session, sends one record and closes the session, which
// flushes it.
func runTrack(cmd *cobra.Command, kind, name string, track func(context.Context, *insights.Client) error) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}

	trackErr := track(ctx, s.client)
	if trackErr == nil {
		s.logger.Debug(ctx, "telemetry tracked", zap.String("kind", kind), zap.String("name", name))
	}
	if err := errors.Join(trackErr, s.close(ctx)); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sent %s %q\n", kind, name)
	return nil
}

func propsFromFlags(cmd *cobra.Command) (contracts.Properties, error) {
	pairs, err := cmd.Flags().GetStringArray("prop")
	if err != nil {
		return nil, err
	}
	return parseProps(pairs)
}

// parseProps turns key=value pairs into properties. Later pairs win.
func parseProps(pairs []string) (contracts.Properties, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	props := make(contracts.Properties, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid property %q: want key=value", pair)
		}
		props[key] = value
	}
	return props, nil
}

func dependencyFromFlags(cmd *cobra.Command, name string) (contracts.Dependency, error) {
	flags := cmd.Flags()
	depType, _ := flags.GetString("type")
	target, _ := flags.GetString("target")
	data, _ := flags.GetString("data")
	resultCode, _ := flags.GetString("result-code")
	duration, _ := flags.GetDuration("duration")
	success, _ := flags.GetBool("success")

	if duration < 0 {
		return contracts.Dependency{}, fmt.Errorf("duration cannot be negative: %s", duration)
	}
	props, err := propsFromFlags(cmd)
	if err != nil {
		return contracts.Dependency{}, err
	}

	return contracts.Dependency{
		Name:       name,
		Type:       depType,
		Target:     target,
		Data:       data,
		ResultCode: resultCode,
		Duration:   duration.Round(time.Millisecond),
		Success:    success,
		Properties: props,
	}, nil
}
