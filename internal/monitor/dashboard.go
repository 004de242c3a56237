package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
)

// Model represents the BubbleTea dashboard model
type Model struct {
	metricsURL string
	interval   time.Duration
	lastUpdate time.Time
	prev       *Sample
	metrics    MetricsSnapshot
	err        error
	quitting   bool

	dropProgress progress.Model
}

// MetricsSnapshot is what the dashboard renders.
type MetricsSnapshot struct {
	ForwardedRate  float64
	DroppedRate    float64
	ForwardedTotal float64
	DroppedTotal   float64
	// DropRatio is dropped / (forwarded + dropped) over the process lifetime.
	DropRatio float64

	ForwardedByKind map[string]float64
	DroppedByKind   map[string]float64
	Initialized     bool

	Uptime     time.Duration
	Goroutines int
	HeapBytes  float64

	// Historical data for sparklines (last N points)
	ForwardedHistory []float64
	DroppedHistory   []float64
	HeapHistory      []float64
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard polling metricsURL every interval.
func NewModel(metricsURL string, interval time.Duration) Model {
	return Model{
		metricsURL: metricsURL,
		interval:   interval,
		dropProgress: progress.New(
			progress.WithGradient("#00ff00", "#ff0000"),
			progress.WithWidth(40),
		),
		metrics: MetricsSnapshot{
			ForwardedHistory: make([]float64, 0, historySize),
			DroppedHistory:   make([]float64, 0, historySize),
			HeapHistory:      make([]float64, 0, historySize),
		},
	}
}

// getStatusBadge summarizes the relay: not initialized is an error, and a
// drop ratio above 1% or 10% warns or errors.
func getStatusBadge(initialized bool, dropRatio float64) string {
	switch {
	case !initialized:
		return errorStyle.Render("✗ NOT INITIALIZED")
	case dropRatio < 0.01:
		return healthyStyle.Render("✓ HEALTHY")
	case dropRatio < 0.10:
		return warningStyle.Render("⚠ DROPPING")
	}
	return errorStyle.Render("✗ DROPPING")
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// createSparkline creates a sparkline chart from historical data
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}

	return sparklineStyle.Render(spark.View())
}

// Message types
type tickMsg time.Time
type sampleMsg Sample
type errMsg error

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		fetchMetrics(m.metricsURL),
	)
}

// tick creates a tick command for auto-refresh
func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchMetrics scrapes the relay.
func fetchMetrics(metricsURL string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		sample, err := NewMetricsClient(metricsURL).Scrape(ctx)
		if err != nil {
			return errMsg(err)
		}
		return sampleMsg(sample)
	}
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, fetchMetrics(m.metricsURL)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			fetchMetrics(m.metricsURL),
		)

	case sampleMsg:
		sample := Sample(msg)
		m.metrics = m.applySample(sample)
		m.prev = &sample
		m.lastUpdate = sample.At
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// applySample derives the next snapshot. Rates need two samples; the first
// one only fills in totals.
func (m Model) applySample(s Sample) MetricsSnapshot {
	next := MetricsSnapshot{
		ForwardedTotal:  total(s.Forwarded),
		DroppedTotal:    total(s.Dropped),
		ForwardedByKind: s.Forwarded,
		DroppedByKind:   s.Dropped,
		Initialized:     s.Initializations["ok"] > 0,
		Goroutines:      int(s.Goroutines),
		HeapBytes:       s.HeapBytes,
	}
	if all := next.ForwardedTotal + next.DroppedTotal; all > 0 {
		next.DropRatio = next.DroppedTotal / all
	}
	if s.StartTime > 0 {
		next.Uptime = s.At.Sub(time.Unix(int64(s.StartTime), 0)).Truncate(time.Second)
	}

	if m.prev != nil {
		elapsed := s.At.Sub(m.prev.At)
		next.ForwardedRate = ratePerMinute(total(m.prev.Forwarded), next.ForwardedTotal, elapsed)
		next.DroppedRate = ratePerMinute(total(m.prev.Dropped), next.DroppedTotal, elapsed)
	}

	next.ForwardedHistory = appendToHistory(m.metrics.ForwardedHistory, next.ForwardedRate)
	next.DroppedHistory = appendToHistory(m.metrics.DroppedHistory, next.DroppedRate)
	next.HeapHistory = appendToHistory(m.metrics.HeapHistory, next.HeapBytes)
	return next
}

// View renders the dashboard
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	if m.err != nil {
		return m.renderError()
	}

	return m.renderDashboard()
}

func (m Model) renderError() string {
	header := headerStyle.Render("insightkit Monitor")

	var content string
	content += "\n"
	content += errorStyle.Render("⚠ Cannot scrape relay metrics") + "\n"
	content += "\n"
	content += dimStyle.Render("URL: ") + valueStyle.Render(m.metricsURL) + "\n"
	content += dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n"
	content += "\n"
	content += dimStyle.Render("Is `insightctl serve` running?") + "\n"
	content += "\n"
	content += footerStyle.Render("[q] quit  [r] retry") + "\n"

	return containerStyle.Render(header + "\n" + content)
}

func (m Model) renderDashboard() string {
	var content string

	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}

	header := headerStyle.Render(" insightkit Monitor ")
	headerLine := fmt.Sprintf("%s   %s   %s   %s",
		getStatusBadge(m.metrics.Initialized, m.metrics.DropRatio),
		dimStyle.Render("Uptime:"),
		valueStyle.Render(FormatUptime(m.metrics.Uptime)),
		dimStyle.Render(lastUpdateStr))

	content += header + "\n"
	content += headerLine + "\n"

	content += "\n" + sectionStyle.Render("┃ Telemetry") + "\n"
	content += labelStyle.Render("  Forwarded: ") +
		valueStyle.Render(FormatRate(m.metrics.ForwardedRate)) +
		dimStyle.Render(" ("+FormatCount(m.metrics.ForwardedTotal)+" total)") +
		"   " + createSparkline(m.metrics.ForwardedHistory) + "\n"
	content += labelStyle.Render("  Dropped:   ") +
		valueStyle.Render(FormatRate(m.metrics.DroppedRate)) +
		dimStyle.Render(" ("+FormatCount(m.metrics.DroppedTotal)+" total)") +
		"   " + createSparkline(m.metrics.DroppedHistory) + "\n"
	content += labelStyle.Render("  Drop ratio: ") +
		m.dropProgress.ViewAs(m.metrics.DropRatio) +
		" " + dimStyle.Render(FormatPercentage(m.metrics.DropRatio)) + "\n"

	content += "\n" + sectionStyle.Render("┃ By Kind") + "\n"
	kinds := sortedKinds(m.metrics.ForwardedByKind, m.metrics.DroppedByKind)
	if len(kinds) == 0 {
		content += dimStyle.Render("  nothing tracked yet") + "\n"
	}
	for _, kind := range kinds {
		content += labelStyle.Render(fmt.Sprintf("  %-12s", kind)) +
			valueStyle.Render(FormatCount(m.metrics.ForwardedByKind[kind])) +
			dimStyle.Render(" forwarded  ") +
			valueStyle.Render(FormatCount(m.metrics.DroppedByKind[kind])) +
			dimStyle.Render(" dropped") + "\n"
	}

	content += "\n" + sectionStyle.Render("┃ System") + "\n"
	content += labelStyle.Render("  Heap: ") +
		valueStyle.Render(FormatMemory(uint64(m.metrics.HeapBytes))) +
		"   " + createSparkline(m.metrics.HeapHistory) + "\n"
	content += labelStyle.Render("  Goroutines: ") +
		valueStyle.Render(fmt.Sprintf("%d", m.metrics.Goroutines)) + "\n"

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))

	content += "\n" + footer

	return containerStyle.Render(content)
}

func sortedKinds(maps ...map[string]float64) []string {
	seen := make(map[string]struct{})
	for _, m := range maps {
		for k := range m {
			seen[k] = struct{}{}
		}
	}
	kinds := make([]string, 0, len(seen))
	for k := range seen {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
