package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/streamctl/streamctl/color"
	"github.com/streamctl/streamctl/style"
)

type keymap struct {
	quit, forceQuit,
	playPause, volumeUp, volumeDown, mute,
	pin, auto, retry,
	telemetry, channels, confirm, back,
	showHelp key.Binding

	// switching is set while the channel switcher is open.
	switching bool
}

func newKeymap() *keymap {
	return &keymap{
		quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		forceQuit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+d"),
			key.WithHelp("ctrl+c", "quit"),
		),
		playPause: key.NewBinding(
			key.WithKeys(" ", "space"),
			key.WithHelp("space", "play/pause"),
		),
		volumeUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "volume up"),
		),
		volumeDown: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "volume down"),
		),
		mute: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mute"),
		),
		pin: key.NewBinding(
			key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("0-9", "pin quality"),
		),
		auto: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "auto quality"),
		),
		retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp(style.Fg(color.Orange)("r"), style.Fg(color.Orange)("retry")),
		),
		telemetry: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "telemetry"),
		),
		channels: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "channels"),
		),
		confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "play"),
		),
		back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		showHelp: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k *keymap) ShortHelp() []key.Binding {
	if k.switching {
		return []key.Binding{k.confirm, k.back, k.forceQuit}
	}
	return []key.Binding{k.playPause, k.pin, k.auto, k.retry, k.showHelp, k.quit}
}

// FullHelp implements help.KeyMap.
func (k *keymap) FullHelp() [][]key.Binding {
	if k.switching {
		return [][]key.Binding{k.ShortHelp()}
	}
	return [][]key.Binding{
		{k.playPause, k.volumeUp, k.volumeDown, k.mute},
		{k.pin, k.auto, k.retry},
		{k.telemetry, k.channels, k.showHelp, k.quit},
	}
}
