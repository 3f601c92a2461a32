package scenes

import (
	"fmt"
	"strings"

	"logsentry/internal/schema"
	"logsentry/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// AnomaliesScene lists detected anomalies with details for the selected one
type AnomaliesScene struct {
	anomalies []schema.Anomaly
	scroll    scroller
	width     int
	height    int
}

// NewAnomaliesScene creates a list over report's anomalies.
func NewAnomaliesScene(report *schema.Report) *AnomaliesScene {
	return &AnomaliesScene{
		anomalies: report.Anomalies,
		scroll:    newScroller(len(report.Anomalies)),
	}
}

// Update handles messages for the anomalies scene
func (a *AnomaliesScene) Update(msg tea.Msg) (*AnomaliesScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.scroll.resize(a.height, 18)
	case tea.KeyMsg:
		a.scroll.handleKey(msg.String())
	}
	return a, nil
}

// Cursor returns the selected anomaly index.
func (a *AnomaliesScene) Cursor() int {
	return a.scroll.Cursor()
}

// View renders the anomaly list
func (a *AnomaliesScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Anomalies"))
	b.WriteString("\n\n")

	if len(a.anomalies) == 0 {
		b.WriteString(styles.StatusOK.Render("  No anomalies detected."))
		return b.String()
	}

	header := fmt.Sprintf("  %-10s %-9s %s", "Severity", "Kind", "Description")
	b.WriteString(styles.TableHeader.Render(header))
	b.WriteString("\n")

	descWidth := 70
	if a.width > 30 {
		descWidth = a.width - 26
	}

	start, end := a.scroll.window()
	for i := start; i < end; i++ {
		b.WriteString(a.renderRow(a.anomalies[i], descWidth, i == a.scroll.Cursor()))
		b.WriteString("\n")
	}

	if len(a.anomalies) > a.scroll.maxRows {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("\n  %d-%d of %d (↑↓ to scroll)", start+1, end, len(a.anomalies))))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(a.renderDetail(a.anomalies[a.scroll.Cursor()]))

	return b.String()
}

func (a *AnomaliesScene) renderRow(an schema.Anomaly, width int, selected bool) string {
	row := fmt.Sprintf("  %s %-9s %s", formatSeverity(an.Severity), an.Kind, truncate(an.Description, width))
	if selected {
		return lipgloss.NewStyle().
			Background(styles.Primary).
			Foreground(styles.White).
			Render(row)
	}
	return row
}

func (a *AnomaliesScene) renderDetail(an schema.Anomaly) string {
	lines := []string{
		fmt.Sprintf("Rule:       %s", an.RuleID),
		fmt.Sprintf("Severity:   %d", an.Severity),
	}
	if an.Identity != "" {
		lines = append(lines, fmt.Sprintf("User:       %s", an.Identity))
	}
	if len(an.Timestamps) > 0 {
		lines = append(lines, fmt.Sprintf("Timestamps: %s", strings.Join(an.Timestamps, ", ")))
	}
	lines = append(lines, "", an.Description)

	box := styles.Box
	if a.width > 8 {
		box = box.Width(a.width - 6)
	}
	return box.Render(strings.Join(lines, "\n"))
}

func formatSeverity(sev int) string {
	width := 10
	var label string
	var style lipgloss.Style

	switch {
	case sev >= 8:
		label = "CRITICAL"
		style = styles.StatusError
	case sev >= 6:
		label = "HIGH"
		style = styles.StatusError
	case sev >= 4:
		label = "MEDIUM"
		style = styles.StatusWarning
	case sev >= 2:
		label = "LOW"
		style = styles.StatusOK
	default:
		label = "INFO"
		style = styles.Muted
	}

	padded := fmt.Sprintf("%-*s", width, label)
	return style.Render(padded)
}
