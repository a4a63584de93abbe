package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/greyhoundforty/blueterm/internal/cloud"
)

// Palette is one color theme.
type Palette struct {
	Name      string
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Text      lipgloss.Color
	Muted     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Highlight lipgloss.Color
}

// Themes are cycled with `t` in the dashboard. The first is the default.
var Themes = []Palette{
	{
		Name:      "ibm",
		Primary:   lipgloss.Color("#0F62FE"),
		Secondary: lipgloss.Color("#78A9FF"),
		Text:      lipgloss.Color("#F4F4F4"),
		Muted:     lipgloss.Color("#8D8D8D"),
		Success:   lipgloss.Color("#42BE65"),
		Warning:   lipgloss.Color("#F1C21B"),
		Error:     lipgloss.Color("#FA4D56"),
		Highlight: lipgloss.Color("#393939"),
	},
	{
		Name:      "dracula",
		Primary:   lipgloss.Color("#BD93F9"),
		Secondary: lipgloss.Color("#FF79C6"),
		Text:      lipgloss.Color("#F8F8F2"),
		Muted:     lipgloss.Color("#6272A4"),
		Success:   lipgloss.Color("#50FA7B"),
		Warning:   lipgloss.Color("#F1FA8C"),
		Error:     lipgloss.Color("#FF5555"),
		Highlight: lipgloss.Color("#44475A"),
	},
	{
		Name:      "nord",
		Primary:   lipgloss.Color("#88C0D0"),
		Secondary: lipgloss.Color("#81A1C1"),
		Text:      lipgloss.Color("#ECEFF4"),
		Muted:     lipgloss.Color("#4C566A"),
		Success:   lipgloss.Color("#A3BE8C"),
		Warning:   lipgloss.Color("#EBCB8B"),
		Error:     lipgloss.Color("#BF616A"),
		Highlight: lipgloss.Color("#3B4252"),
	},
	{
		Name:      "gruvbox",
		Primary:   lipgloss.Color("#FE8019"),
		Secondary: lipgloss.Color("#FABD2F"),
		Text:      lipgloss.Color("#EBDBB2"),
		Muted:     lipgloss.Color("#928374"),
		Success:   lipgloss.Color("#B8BB26"),
		Warning:   lipgloss.Color("#FABD2F"),
		Error:     lipgloss.Color("#FB4934"),
		Highlight: lipgloss.Color("#3C3836"),
	},
}

// ThemeIndex returns the position of the named theme, 0 when unknown.
func ThemeIndex(name string) int {
	for i, p := range Themes {
		if p.Name == name {
			return i
		}
	}
	return 0
}

// Styles are the rendered styles for one palette.
type Styles struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Header    lipgloss.Style
	Selected  lipgloss.Style
	Help      lipgloss.Style
	Error     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Muted     lipgloss.Style
	Box       lipgloss.Style
	StatusBar lipgloss.Style
	Spinner   lipgloss.Style
	Tab       lipgloss.Style
	ActiveTab lipgloss.Style

	palette Palette
}

// NewStyles renders a palette into styles.
func NewStyles(p Palette) Styles {
	return Styles{
		palette:  p,
		Title:    lipgloss.NewStyle().Bold(true).Foreground(p.Primary).MarginBottom(1),
		Subtitle: lipgloss.NewStyle().Foreground(p.Muted).Italic(true),
		Header:   lipgloss.NewStyle().Bold(true).Foreground(p.Secondary),
		Selected: lipgloss.NewStyle().Foreground(p.Text).Background(p.Highlight).Bold(true),
		Help:     lipgloss.NewStyle().Foreground(p.Muted),
		Error:    lipgloss.NewStyle().Foreground(p.Error).Bold(true),
		Success:  lipgloss.NewStyle().Foreground(p.Success),
		Warning:  lipgloss.NewStyle().Foreground(p.Warning),
		Muted:    lipgloss.NewStyle().Foreground(p.Muted),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Primary).
			Padding(1, 2),
		StatusBar: lipgloss.NewStyle().Foreground(p.Text).Background(p.Highlight).Padding(0, 1),
		Spinner:   lipgloss.NewStyle().Foreground(p.Primary),
		Tab:       lipgloss.NewStyle().Foreground(p.Muted).Padding(0, 1),
		ActiveTab: lipgloss.NewStyle().Foreground(p.Text).Background(p.Primary).Bold(true).Padding(0, 1),
	}
}

// Status colors a status label.
func (s Styles) Status(st cloud.Status) lipgloss.Style {
	switch st {
	case cloud.StatusRunning:
		return s.Success
	case cloud.StatusStopped:
		return s.Muted
	case cloud.StatusFailed, cloud.StatusCritical:
		return s.Error
	case cloud.StatusWarning:
		return s.Warning
	}
	if st.Transitional() {
		return s.Warning
	}
	return lipgloss.NewStyle().Foreground(s.palette.Text)
}

// Standalone prompt styles used outside the dashboard.
var (
	titleStyle    = NewStyles(Themes[0]).Title
	quitTextStyle = lipgloss.NewStyle().Margin(1, 0, 2, 4).Foreground(Themes[0].Muted)
	spinnerStyle  = lipgloss.NewStyle().Foreground(Themes[0].Primary)
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)
