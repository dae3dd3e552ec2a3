package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	title := m.theme.Title.Render("FIRSTRUN")
	if m.batchID != "" {
		id := m.batchID
		if len(id) > 8 {
			id = id[:8]
		}
		title += m.theme.Dim.Render(fmt.Sprintf("  batch %s", id))
	}
	if m.serial != "" {
		title += m.theme.Dim.Render(fmt.Sprintf("  device %s", m.serial))
	}

	parts := []string{title, m.renderTable(), m.renderFooter()}
	box := m.theme.Border
	if m.width > 4 {
		box = box.Width(m.width - 4)
	}
	return box.Render(lipgloss.JoinVertical(lipgloss.Left, parts...)) + "\n"
}

func (m Model) renderTable() string {
	rows := make([]table.Row, 0, len(m.rows))
	for _, r := range m.rows {
		elapsed := ""
		switch {
		case r.State == StateRunning && !r.Started.IsZero():
			elapsed = formatDuration(m.now().Sub(r.Started))
		case r.Elapsed > 0:
			elapsed = formatDuration(r.Elapsed)
		}
		rows = append(rows, table.Row{m.marker(r.State), r.App, string(r.State), elapsed})
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "App", Width: 16},
			{Title: "State", Width: 9},
			{Title: "Elapsed", Width: 8},
		}),
		table.WithRows(rows),
		table.WithHeight(len(rows)+1),
		table.WithFocused(false),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)
	return t.View()
}

func (m Model) marker(state AppState) string {
	switch state {
	case StateDone:
		return m.theme.StatusOK.Render("✓")
	case StateFailed:
		return m.theme.StatusFailed.Render("✗")
	case StateRunning:
		return m.spinner.View()
	case StateSkipped:
		return m.theme.Dim.Render("-")
	default:
		return m.theme.StatusPending.Render("·")
	}
}

func (m Model) renderFooter() string {
	done := 0
	for _, r := range m.rows {
		if r.State == StateDone {
			done++
		}
	}
	progress := m.theme.Highlight.Render(fmt.Sprintf("%d/%d dismissed", done, len(m.rows)))

	if m.summary == nil {
		if m.closed {
			return progress + m.theme.Dim.Render("  event stream closed")
		}
		return progress + m.theme.Dim.Render("  [ctrl+c] abort")
	}

	s := m.summary
	if s.Succeeded {
		return progress + "  " + m.theme.StatusOK.Render("completed in "+formatDuration(s.Duration))
	}
	var b strings.Builder
	b.WriteString(progress)
	b.WriteString("  ")
	b.WriteString(m.theme.StatusFailed.Render("failed: " + s.Kind))
	if s.App != "" {
		b.WriteString(m.theme.Dim.Render(" app=" + s.App))
	}
	if s.Phase != "" {
		b.WriteString(m.theme.Dim.Render(" phase=" + s.Phase))
	}
	if s.Error != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.StatusFailed.Render(s.Error))
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}
