package render

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"pkt.systems/teamwatch/schema"
)

// Theme holds the styles used by the text sink. All styles come from one
// lipgloss renderer so the color profile is decided once.
type Theme struct {
	renderer *lipgloss.Renderer

	Header    lipgloss.Style
	Faint     lipgloss.Style
	Count     lipgloss.Style
	BarEmpty  lipgloss.Style
	Connected lipgloss.Style
	Offline   lipgloss.Style
	Pending   lipgloss.Style
}

// NewTheme builds styles for output rendered with profile.
func NewTheme(renderer *lipgloss.Renderer, profile termenv.Profile) Theme {
	renderer.SetColorProfile(profile)
	return Theme{
		renderer:  renderer,
		Header:    renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("#c9d1d9")),
		Faint:     renderer.NewStyle().Foreground(lipgloss.Color("#8b949e")),
		Count:     renderer.NewStyle().Bold(true),
		BarEmpty:  renderer.NewStyle().Foreground(lipgloss.Color("#30363d")),
		Connected: renderer.NewStyle().Foreground(lipgloss.Color("#3fb950")),
		Offline:   renderer.NewStyle().Foreground(lipgloss.Color("#f85149")),
		Pending:   renderer.NewStyle().Foreground(lipgloss.Color("#d29922")),
	}
}

// Agent styles an agent name with its palette color.
func (t Theme) Agent(name string) string {
	return t.renderer.NewStyle().Bold(true).Foreground(lipgloss.Color(AgentColor(name))).Render(name)
}

// Category styles a category badge.
func (t Theme) Category(category schema.Category, text string) string {
	return t.renderer.NewStyle().Foreground(lipgloss.Color(CategoryColor(category))).Render(text)
}

// Status styles the connection indicator.
func (t Theme) Status(state schema.ConnState) string {
	label := StatusLabel(state)
	switch state {
	case schema.ConnOpen:
		return t.Connected.Render("● " + label)
	case schema.ConnDisconnected:
		return t.Offline.Render("○ " + label)
	default:
		return t.Pending.Render("◌ " + label)
	}
}
