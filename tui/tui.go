// Package tui renders the playback HUD and turns key presses into controller intents.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/streamctl/streamctl/channel"
	"github.com/streamctl/streamctl/player"
)

// Options configures the HUD.
type Options struct {
	Controller *player.Controller
	// Directory enables the channel switcher when it has channels.
	Directory *channel.Directory
	// Telemetry shows the telemetry panel.
	Telemetry bool
	// OnLoad is called after the switcher loaded a channel.
	OnLoad func(channel.Channel)
}

// Run starts the HUD and blocks until the user quits.
func Run(options *Options) error {
	_, err := tea.NewProgram(newBubble(options), tea.WithAltScreen()).Run()
	return err
}
