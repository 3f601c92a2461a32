package scenes

import (
	"fmt"
	"sort"
	"strings"

	"logsentry/internal/schema"
	"logsentry/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// SummaryScene displays report totals
type SummaryScene struct {
	report *schema.Report
	source string
	width  int
	height int
}

// NewSummaryScene creates a summary for report read from source.
func NewSummaryScene(report *schema.Report, source string) *SummaryScene {
	return &SummaryScene{report: report, source: source}
}

// Update handles messages for the summary
func (s *SummaryScene) Update(msg tea.Msg) (*SummaryScene, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		s.width = msg.Width
		s.height = msg.Height
	}
	return s, nil
}

// View renders the summary
func (s *SummaryScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Analysis Summary"))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("  File:   %s\n", s.source))
	b.WriteString(fmt.Sprintf("  Format: %s\n", s.report.Format))
	b.WriteString(fmt.Sprintf("  Report: %s\n\n", s.report.ID))

	flagged := s.report.CountByKind(schema.AnomalyRecord)
	patterns := s.report.CountByKind(schema.AnomalySequence)

	cards := []string{
		renderMetricCard("Rows", humanize.Comma(int64(len(s.report.Rows)))),
		renderMetricCard("Columns", humanize.Comma(int64(len(s.report.Columns)))),
		renderMetricCard("Flagged", humanize.Comma(int64(flagged))),
		renderMetricCard("Patterns", humanize.Comma(int64(patterns))),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards...))
	b.WriteString("\n\n")

	var status string
	if len(s.report.Anomalies) == 0 {
		status = styles.StatusOK.Render("● NO ANOMALIES")
	} else {
		status = styles.StatusError.Render(fmt.Sprintf("● %d ANOMALIES", len(s.report.Anomalies)))
	}
	b.WriteString(fmt.Sprintf("  Status: %s\n\n", status))

	if len(s.report.Anomalies) > 0 {
		b.WriteString(styles.Subtitle.Render("  Anomalies by rule"))
		b.WriteString("\n")
		b.WriteString(s.renderRuleCounts())
		b.WriteString("\n")
	}

	return b.String()
}

func (s *SummaryScene) renderRuleCounts() string {
	counts := make(map[string]int)
	for _, a := range s.report.Anomalies {
		counts[a.RuleID]++
	}
	rules := make([]string, 0, len(counts))
	for id := range counts {
		rules = append(rules, id)
	}
	sort.Strings(rules)

	rows := make([]string, 0, len(rules))
	for _, id := range rules {
		rows = append(rows, fmt.Sprintf("  %s %-40s %d", styles.StatusError.Render("●"), id, counts[id]))
	}
	return strings.Join(rows, "\n")
}

func renderMetricCard(label, value string) string {
	card := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.MutedColor).
		Padding(0, 2).
		Width(18).
		Align(lipgloss.Center)

	content := fmt.Sprintf("%s\n%s",
		styles.MetricValue.Render(value),
		styles.MetricLabel.Render(label),
	)

	return card.Render(content)
}
