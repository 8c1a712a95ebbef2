package watch

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/timvw/oscwatch/internal/events"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestModel(evs ...events.Event) *tuiModel {
	store := events.NewStore(0)
	for _, e := range evs {
		store.Upsert(e)
	}
	m := newModel(store, DarkTheme(), time.Second, func() time.Time { return testNow })
	m.refresh()
	return m
}

func finished(session string, exit int) events.Event {
	return events.Event{
		Session:    session,
		Kind:       events.KindCommandFinished,
		State:      events.StateIdle,
		TS:         testNow.Add(-5 * time.Second),
		Cwd:        "/home/u/proj",
		Commands:   1,
		ExitCode:   exit,
		DurationMs: 1500,
	}
}

func TestRefresh_Rows(t *testing.T) {
	m := newTestModel(finished("b", 0), finished("a", 2))

	rows := m.table.Rows()
	if len(rows) != 2 {
		t.Fatalf("rows: got %d, want 2", len(rows))
	}
	want := []string{"✗", "a", "idle", "/home/u/proj", "2", "1.5s", "5s"}
	for i, cell := range want {
		if rows[0][i] != cell {
			t.Errorf("row 0 cell %d: got %q, want %q", i, rows[0][i], cell)
		}
	}
	if m.failed != 1 {
		t.Errorf("failed count: got %d, want 1", m.failed)
	}
}

func TestKey_FTogglesFailedOnly(t *testing.T) {
	m := newTestModel(finished("a", 0), finished("b", 1))

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'f'}})
	if !m.failedOnly {
		t.Fatal("expected failed-only filter on")
	}
	if rows := m.table.Rows(); len(rows) != 1 || rows[0][1] != "b" {
		t.Fatalf("failed-only rows: got %v", rows)
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'f'}})
	if len(m.table.Rows()) != 2 {
		t.Fatalf("expected both sessions after toggling back, got %d", len(m.table.Rows()))
	}
}

func TestKey_Quit(t *testing.T) {
	for _, msg := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune{'q'}},
		{Type: tea.KeyCtrlC},
	} {
		m := newTestModel()
		_, cmd := m.Update(msg)
		if cmd == nil {
			t.Fatalf("%q: expected a command", msg.String())
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%q: expected tea.QuitMsg", msg.String())
		}
	}
}

func TestTick_PicksUpNewSessions(t *testing.T) {
	m := newTestModel()
	if len(m.table.Rows()) != 0 {
		t.Fatal("expected no rows")
	}
	m.store.Upsert(finished("new", 0))

	_, cmd := m.Update(tickMsg{})
	if cmd == nil {
		t.Fatal("tick should schedule the next tick")
	}
	if len(m.table.Rows()) != 1 {
		t.Fatalf("rows after tick: got %d, want 1", len(m.table.Rows()))
	}
}

func TestRow_Running(t *testing.T) {
	m := newTestModel()
	e := finished("r", 0)
	e.State = events.StateRunning
	if got := m.row(e, testNow)[0]; got != "…" {
		t.Errorf("running mark: got %q", got)
	}
	e.Commands = 0
	row := m.row(e, testNow)
	if row[4] != "" || row[5] != "" {
		t.Errorf("no finished command should leave exit and duration empty, got %v", row)
	}
}

func TestView(t *testing.T) {
	m := newTestModel()
	if !strings.Contains(m.View(), "No sessions reporting") {
		t.Errorf("empty view: %q", m.View())
	}

	m = newTestModel(finished("a", 1))
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	v := m.View()
	if !strings.Contains(v, "1 failed") || !strings.Contains(v, "a") {
		t.Errorf("view missing content: %q", v)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{850 * time.Millisecond, "850ms"},
		{1500 * time.Millisecond, "1.5s"},
		{65 * time.Second, "1m05s"},
		{2*time.Hour + 3*time.Minute, "2h03m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v): got %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestShortenPath(t *testing.T) {
	if got := shortenPath("/short"); got != "/short" {
		t.Errorf("got %q", got)
	}
	long := "/home/someone/src/github.com/org/very-long-repository-name"
	if got := shortenPath(long); got != "…/org/very-long-repository-name" {
		t.Errorf("got %q", got)
	}
}

func TestThemeByName(t *testing.T) {
	if ThemeByName("light").Error != LightTheme().Error {
		t.Error("light theme not selected")
	}
	if ThemeByName("anything").Error != DarkTheme().Error {
		t.Error("dark should be the default")
	}
}
