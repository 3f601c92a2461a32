// Package tui provides an interactive terminal viewer for analysis reports.
package tui

import (
	"fmt"
	"strings"

	"logsentry/internal/schema"
	"logsentry/internal/tui/scenes"
	"logsentry/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Scene represents the current view
type Scene int

const (
	SceneSummary Scene = iota
	SceneRows
	SceneAnomalies
)

const sceneCount = 3

// Model is the viewer's root model
type Model struct {
	report *schema.Report

	scene Scene

	summary   *scenes.SummaryScene
	rows      *scenes.RowsScene
	anomalies *scenes.AnomaliesScene

	width  int
	height int

	quitting bool
}

// New creates a viewer for report read from source.
func New(report *schema.Report, source string) *Model {
	return &Model{
		report:    report,
		scene:     SceneSummary,
		summary:   scenes.NewSummaryScene(report, source),
		rows:      scenes.NewRowsScene(report),
		anomalies: scenes.NewAnomaliesScene(report),
	}
}

// Init initializes the viewer. The report is static, so there is nothing to
// fetch.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles all messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "1":
			m.scene = SceneSummary
			return m, nil
		case "2":
			m.scene = SceneRows
			return m, nil
		case "3":
			m.scene = SceneAnomalies
			return m, nil
		case "tab":
			m.scene = (m.scene + 1) % sceneCount
			return m, nil
		case "shift+tab":
			m.scene = (m.scene + sceneCount - 1) % sceneCount
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.summary, _ = m.summary.Update(msg)
		m.rows, _ = m.rows.Update(msg)
		m.anomalies, _ = m.anomalies.Update(msg)
		return m, nil
	}

	// Forward other messages to active scene only
	var cmd tea.Cmd
	switch m.scene {
	case SceneSummary:
		m.summary, cmd = m.summary.Update(msg)
	case SceneRows:
		m.rows, cmd = m.rows.Update(msg)
	case SceneAnomalies:
		m.anomalies, cmd = m.anomalies.Update(msg)
	}
	return m, cmd
}

// View renders the current view
func (m *Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	switch m.scene {
	case SceneSummary:
		b.WriteString(m.summary.View())
	case SceneRows:
		b.WriteString(m.rows.View())
	case SceneAnomalies:
		b.WriteString(m.anomalies.View())
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())

	return b.String()
}

func (m *Model) renderHeader() string {
	tabs := []struct {
		name  string
		key   string
		scene Scene
	}{
		{"Summary", "1", SceneSummary},
		{"Rows", "2", SceneRows},
		{fmt.Sprintf("Anomalies (%d)", len(m.report.Anomalies)), "3", SceneAnomalies},
	}

	var tabViews []string
	for _, tab := range tabs {
		label := fmt.Sprintf(" %s %s ", tab.key, tab.name)
		if tab.scene == m.scene {
			tabViews = append(tabViews, styles.TabActive.Render(label))
		} else {
			tabViews = append(tabViews, styles.TabInactive.Render(label))
		}
	}

	tabBar := lipgloss.JoinHorizontal(lipgloss.Top, tabViews...)

	return lipgloss.NewStyle().
		BorderBottom(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(styles.MutedColor).
		Width(m.width).
		Render(tabBar)
}

func (m *Model) renderFooter() string {
	help := " [1-3] Switch tabs  [Tab] Next tab  [↑↓/jk] Scroll  [q] Quit "
	return styles.Help.Render(help)
}

// Run opens the viewer for report and blocks until the user quits.
func Run(report *schema.Report, source string) error {
	p := tea.NewProgram(New(report, source), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
