package style

import "github.com/charmbracelet/lipgloss"

// HUD palette.
var (
	Base    = lipgloss.Color("#1e1e2e")
	Text    = lipgloss.Color("#cdd6f4")
	Subtext = lipgloss.Color("#a6adc8")
	Overlay = lipgloss.Color("#6c7086")
	Surface = lipgloss.Color("#313244")

	Mauve    = lipgloss.Color("#cba6f7")
	Red      = lipgloss.Color("#f38ba8")
	Peach    = lipgloss.Color("#fab387")
	Yellow   = lipgloss.Color("#f9e2af")
	Green    = lipgloss.Color("#a6e3a1")
	Teal     = lipgloss.Color("#94e2d5")
	Sapphire = lipgloss.Color("#74c7ec")
	Blue     = lipgloss.Color("#89b4fa")
	Lavender = lipgloss.Color("#b4befe")

	AccentColor    = Mauve
	SecondaryColor = Lavender
	SuccessColor   = Green
	WarningColor   = Yellow
	ErrorColor     = Red
	FaintColor     = Overlay

	BorderColor       = Surface
	ActiveBorderColor = AccentColor
)

// stateColors maps playback state names to their badge color.
var stateColors = map[string]lipgloss.Color{
	"idle":      Overlay,
	"loading":   Sapphire,
	"ready":     Teal,
	"playing":   Green,
	"paused":    Yellow,
	"buffering": Peach,
	"error":     Red,
}

// StateColor returns the badge color of a playback state.
func StateColor(state string) lipgloss.Color {
	if c, ok := stateColors[state]; ok {
		return c
	}
	return Overlay
}
