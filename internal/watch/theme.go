package watch

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Theme defines the colors of the watch TUI.
type Theme struct {
	Primary        lipgloss.Color // title
	Error          lipgloss.Color // failed sessions
	Warning        lipgloss.Color // running commands
	Success        lipgloss.Color // clean exits
	Text           lipgloss.Color
	TextMuted      lipgloss.Color // hints, ages
	BackgroundElem lipgloss.Color // selected row background
	Border         lipgloss.Color
}

// DarkTheme is the default.
func DarkTheme() Theme {
	return Theme{
		Primary:        lipgloss.Color("#fab283"),
		Error:          lipgloss.Color("#e06c75"),
		Warning:        lipgloss.Color("#f5a742"),
		Success:        lipgloss.Color("#7fd88f"),
		Text:           lipgloss.Color("#eeeeee"),
		TextMuted:      lipgloss.Color("#808080"),
		BackgroundElem: lipgloss.Color("#1e1e1e"),
		Border:         lipgloss.Color("#484848"),
	}
}

// LightTheme is for bright terminal backgrounds.
func LightTheme() Theme {
	return Theme{
		Primary:        lipgloss.Color("#b35c00"),
		Error:          lipgloss.Color("#cf222e"),
		Warning:        lipgloss.Color("#bf8700"),
		Success:        lipgloss.Color("#116329"),
		Text:           lipgloss.Color("#1f2328"),
		TextMuted:      lipgloss.Color("#656d76"),
		BackgroundElem: lipgloss.Color("#f6f8fa"),
		Border:         lipgloss.Color("#d0d7de"),
	}
}

// ThemeByName returns a theme by name. Defaults to dark.
func ThemeByName(name string) Theme {
	switch name {
	case "light":
		return LightTheme()
	default:
		return DarkTheme()
	}
}

type styles struct {
	title   lipgloss.Style
	err     lipgloss.Style
	running lipgloss.Style
	ok      lipgloss.Style
	dim     lipgloss.Style

	table        table.Styles
	selectedOK   lipgloss.Style
	selectedFail lipgloss.Style
}

func newStyles(t Theme) styles {
	ts := table.DefaultStyles()
	ts.Header = ts.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(t.Border).
		BorderBottom(true).
		Bold(true)
	ts.Cell = ts.Cell.Foreground(t.Text)

	selected := lipgloss.NewStyle().Bold(true).Background(t.BackgroundElem)
	return styles{
		title:   lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		err:     lipgloss.NewStyle().Foreground(t.Error),
		running: lipgloss.NewStyle().Foreground(t.Warning),
		ok:      lipgloss.NewStyle().Foreground(t.Success),
		dim:     lipgloss.NewStyle().Foreground(t.TextMuted),

		table:        ts,
		selectedOK:   selected.Foreground(t.Text),
		selectedFail: selected.Foreground(t.Error),
	}
}
