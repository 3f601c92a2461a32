package scenes

import (
	"fmt"
	"strings"

	"logsentry/internal/correlation"
	"logsentry/internal/schema"
	"logsentry/internal/tui/styles"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// columnWidth is the display width of one table cell.
const columnWidth = 20

// RowsScene displays the normalized table
type RowsScene struct {
	columns []string
	rows    []schema.Record
	scroll  scroller
	width   int
	height  int
}

// NewRowsScene creates a table view over report's rows.
func NewRowsScene(report *schema.Report) *RowsScene {
	return &RowsScene{
		columns: report.Columns,
		rows:    report.Rows,
		scroll:  newScroller(len(report.Rows)),
	}
}

// Update handles messages for the rows scene
func (r *RowsScene) Update(msg tea.Msg) (*RowsScene, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.width = msg.Width
		r.height = msg.Height
		r.scroll.resize(r.height, 12)
	case tea.KeyMsg:
		r.scroll.handleKey(msg.String())
	}
	return r, nil
}

// Cursor returns the selected row index.
func (r *RowsScene) Cursor() int {
	return r.scroll.Cursor()
}

// View renders the table
func (r *RowsScene) View() string {
	var b strings.Builder

	b.WriteString(styles.Title.Render("  Log Entries"))
	b.WriteString("\n\n")

	if len(r.rows) == 0 {
		b.WriteString(styles.Muted.Render("  No rows."))
		return b.String()
	}

	b.WriteString(styles.Subtitle.Render(fmt.Sprintf("  %d rows, %d columns", len(r.rows), len(r.columns))))
	b.WriteString("\n\n")

	header := make([]string, len(r.columns))
	for i, c := range r.columns {
		header[i] = fmt.Sprintf("%-*s", columnWidth, truncate(c, columnWidth))
	}
	b.WriteString(styles.TableHeader.Render("  " + strings.Join(header, " ")))
	b.WriteString("\n")

	start, end := r.scroll.window()
	for i := start; i < end; i++ {
		b.WriteString(r.renderRow(r.rows[i], i == r.scroll.Cursor()))
		b.WriteString("\n")
	}

	if len(r.rows) > r.scroll.maxRows {
		b.WriteString(styles.Muted.Render(fmt.Sprintf("\n  %d-%d of %d (↑↓ to scroll)", start+1, end, len(r.rows))))
	}

	return b.String()
}

func (r *RowsScene) renderRow(row schema.Record, selected bool) string {
	cells := make([]string, len(r.columns))
	for i, c := range r.columns {
		text := ""
		if v, ok := row.Get(c); ok && !v.IsNull() {
			text = v.String()
		}
		cells[i] = fmt.Sprintf("%-*s", columnWidth, truncate(text, columnWidth))
	}
	line := "  " + strings.Join(cells, " ")

	if selected {
		return lipgloss.NewStyle().
			Background(styles.Primary).
			Foreground(styles.White).
			Render(line)
	}
	if level, ok := row.Text(schema.FieldLevel); ok && (level == correlation.LevelError || level == correlation.LevelCritical) {
		return styles.StatusError.Render(line)
	}
	return line
}
