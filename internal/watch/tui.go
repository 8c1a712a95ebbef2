// Package watch is a live terminal view of the sessions known to an
// events.Store.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/timvw/oscwatch/internal/events"
)

const DefaultRefreshInterval = time.Second

// TUI runs the session watcher.
type TUI struct {
	Store           *events.Store
	RefreshInterval time.Duration
	Theme           Theme
	// FailedOnly starts with the failed-only filter on.
	FailedOnly bool
}

type tickMsg struct{}

type tuiModel struct {
	store    *events.Store
	interval time.Duration
	now      func() time.Time
	st       styles

	table      table.Model
	sessions   []events.Event
	failedOnly bool
	failed     int

	width  int
	height int
}

// Run blocks until the user quits or ctx is cancelled.
func (t *TUI) Run(ctx context.Context) error {
	m := newModel(t.Store, t.Theme, t.RefreshInterval, time.Now)
	m.failedOnly = t.FailedOnly
	m.refresh()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func newModel(store *events.Store, theme Theme, interval time.Duration, now func() time.Time) *tuiModel {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	st := newStyles(theme)
	tbl := table.New(
		table.WithColumns(columns(80)),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	tbl.SetStyles(st.table)
	return &tuiModel{store: store, interval: interval, now: now, st: st, table: tbl}
}

// columns sizes the cwd column to what the terminal leaves over.
func columns(width int) []table.Column {
	cwd := width - (2 + 24 + 9 + 6 + 9 + 7) - 12
	if cwd < 12 {
		cwd = 12
	}
	return []table.Column{
		{Title: "", Width: 2},
		{Title: "Session", Width: 24},
		{Title: "State", Width: 9},
		{Title: "Cwd", Width: cwd},
		{Title: "Exit", Width: 6},
		{Title: "Took", Width: 9},
		{Title: "Age", Width: 7},
	}
}

func (m *tuiModel) Init() tea.Cmd {
	return m.scheduleTick()
}

func (m *tuiModel) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "f":
			m.failedOnly = !m.failedOnly
			m.refresh()
			return m, nil
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		m.applySelection()
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columns(msg.Width))
		if h := msg.Height - 4; h > 1 {
			m.table.SetHeight(h)
		}
		return m, nil

	case tickMsg:
		m.refresh()
		return m, m.scheduleTick()
	}
	return m, nil
}

// refresh reloads the store snapshot into the table.
func (m *tuiModel) refresh() {
	now := m.now()
	all := m.store.Snapshot(now)
	m.failed = 0
	for _, e := range all {
		if e.Failed() {
			m.failed++
		}
	}
	if m.failedOnly {
		m.sessions = m.store.SnapshotFailed(now)
	} else {
		m.sessions = all
	}

	rows := make([]table.Row, 0, len(m.sessions))
	for _, e := range m.sessions {
		rows = append(rows, m.row(e, now))
	}
	m.table.SetRows(rows)
	if c := m.table.Cursor(); c >= len(rows) && len(rows) > 0 {
		m.table.SetCursor(len(rows) - 1)
	}
	m.applySelection()
}

func (m *tuiModel) row(e events.Event, now time.Time) table.Row {
	mark, exit, took := "", "", ""
	if e.Commands > 0 {
		exit = fmt.Sprintf("%d", e.ExitCode)
		took = formatDuration(time.Duration(e.DurationMs) * time.Millisecond)
		if e.Failed() {
			mark = "✗"
		} else {
			mark = "✓"
		}
	}
	if e.State == events.StateRunning {
		mark = "…"
	}
	return table.Row{mark, e.Session, e.State, shortenPath(e.Cwd), exit, took, formatAge(now.Sub(e.TS))}
}

// applySelection colors the selected row red when its session failed.
func (m *tuiModel) applySelection() {
	ts := m.st.table
	ts.Selected = m.st.selectedOK
	if c := m.table.Cursor(); c >= 0 && c < len(m.sessions) && m.sessions[c].Failed() {
		ts.Selected = m.st.selectedFail
	}
	m.table.SetStyles(ts)
}

func (m *tuiModel) View() string {
	var b strings.Builder
	b.WriteString(m.st.title.Render("oscwatch"))
	b.WriteString("  ")
	b.WriteString(m.st.dim.Render(fmt.Sprintf("%d sessions", len(m.sessions))))
	if m.failed > 0 {
		b.WriteString("  ")
		b.WriteString(m.st.err.Render(fmt.Sprintf("%d failed", m.failed)))
	}
	if m.failedOnly {
		b.WriteString("  ")
		b.WriteString(m.st.running.Render("[failed only]"))
	}
	b.WriteString("\n")

	if len(m.sessions) == 0 {
		if m.failedOnly {
			b.WriteString("  No failed sessions.\n")
		} else {
			b.WriteString("  No sessions reporting. Start one with: oscwatch run\n")
		}
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}
	b.WriteString(m.st.dim.Render("↑↓=select  f=failed only  q=quit"))
	return b.String()
}

// formatDuration renders a command duration compactly (e.g. "850ms", "1m05s").
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// formatAge renders how long ago a session reported.
func formatAge(d time.Duration) string {
	switch {
	case d < 0:
		return "0s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}

// shortenPath keeps the last two path elements of long directories.
func shortenPath(p string) string {
	if len(p) <= 32 {
		return p
	}
	parent, base := filepath.Split(strings.TrimSuffix(p, "/"))
	return "…/" + filepath.Join(filepath.Base(parent), base)
}
