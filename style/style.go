// Package style provides a functional API for composing lipgloss styles.
package style

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/streamctl/streamctl/color"
)

// New returns an empty lipgloss.Style.
func New() lipgloss.Style {
	return lipgloss.NewStyle()
}

// Colored initializes a new style with the given foreground and background.
func Colored(fg, bg lipgloss.Color) lipgloss.Style {
	return New().Foreground(fg).Background(bg)
}

// Fg returns a renderer applying a foreground color.
func Fg(c lipgloss.Color) func(string) string {
	return func(s string) string { return Colored(c, "").Render(s) }
}

// Bg returns a renderer applying a background color.
func Bg(c lipgloss.Color) func(string) string {
	return func(s string) string { return Colored("", c).Render(s) }
}

var (
	Faint     = func(s string) string { return New().Faint(true).Render(s) }
	Bold      = func(s string) string { return New().Bold(true).Render(s) }
	Italic    = func(s string) string { return New().Italic(true).Render(s) }
	Underline = func(s string) string { return New().Underline(true).Render(s) }
)

// Title renders a banner.
var Title = func(s string) string {
	return Colored(color.New("230"), color.New("62")).Padding(0, 1).Render(s)
}

// ErrorTitle renders an error banner.
var ErrorTitle = func(s string) string {
	return Colored(color.New("230"), color.Red).Padding(0, 1).Render(s)
}

// Tag returns a renderer for a colored, padded tag.
func Tag(fg, bg lipgloss.Color) func(string) string {
	return func(s string) string { return Colored(fg, bg).Padding(0, 1).Render(s) }
}

// State renders a playback state as an upper-case badge.
func State(state string) string {
	return Tag(Base, StateColor(state))(strings.ToUpper(state))
}

// Route renders an engine route name as a tag.
func Route(route string) string {
	return Tag(Base, color.ForRoute(route))(route)
}

// Panel is the bordered box around HUD sections.
func Panel(active bool) lipgloss.Style {
	border := BorderColor
	if active {
		border = ActiveBorderColor
	}
	return New().Border(lipgloss.RoundedBorder()).BorderForeground(border).Padding(0, 1)
}
