package tui

import (
	"fmt"

	bubblesKey "github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/streamctl/streamctl/channel"
	"github.com/streamctl/streamctl/player"
	"github.com/streamctl/streamctl/quality"
)

// eventMsg carries one controller event.
type eventMsg player.Event

// closedMsg is sent when the controller closed the subscription.
type closedMsg struct{}

// loadedMsg is sent after the switcher finished loading a channel.
type loadedMsg struct{ channel channel.Channel }

// listen waits for the next controller event.
func (b *bubble) listen() tea.Cmd {
	sub := b.sub
	return func() tea.Msg {
		ev, ok := <-sub.C()
		if !ok {
			return closedMsg{}
		}
		return eventMsg(ev)
	}
}

func (b *bubble) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.resize(msg.Width, msg.Height)
		return b, nil
	case eventMsg:
		b.observe(player.Event(msg))
		return b, b.listen()
	case closedMsg:
		return b, tea.Quit
	case loadedMsg:
		b.status = fmt.Sprintf("switched to %s", msg.channel.Name)
		b.reloadChannels()
		return b, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		b.spinnerC, cmd = b.spinnerC.Update(msg)
		return b, cmd
	case tea.KeyMsg:
		if bubblesKey.Matches(msg, b.keymap.forceQuit) {
			b.sub.Close()
			return b, tea.Quit
		}
		if b.switching {
			return b.updateSwitcher(msg)
		}
		return b.updateHUD(msg)
	}

	return b, nil
}

func (b *bubble) updateHUD(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case bubblesKey.Matches(msg, b.keymap.quit):
		b.sub.Close()
		return b, tea.Quit
	case bubblesKey.Matches(msg, b.keymap.playPause):
		b.ctrl.Toggle()
		b.intent = b.ctrl.Intent()
	case bubblesKey.Matches(msg, b.keymap.volumeUp):
		b.ctrl.SetVolume(b.intent.Volume + volumeStep)
		b.intent = b.ctrl.Intent()
	case bubblesKey.Matches(msg, b.keymap.volumeDown):
		b.ctrl.SetVolume(b.intent.Volume - volumeStep)
		b.intent = b.ctrl.Intent()
	case bubblesKey.Matches(msg, b.keymap.mute):
		b.ctrl.SetMuted(!b.intent.Muted)
		b.intent = b.ctrl.Intent()
	case bubblesKey.Matches(msg, b.keymap.pin):
		b.pin(int(msg.String()[0] - '0'))
	case bubblesKey.Matches(msg, b.keymap.auto):
		if b.ctrl.SelectQuality(quality.Auto) {
			b.status = "automatic quality"
		}
	case bubblesKey.Matches(msg, b.keymap.retry):
		b.status = "reloading"
		ctrl := b.ctrl
		return b, func() tea.Msg {
			ctrl.Reload()
			return nil
		}
	case bubblesKey.Matches(msg, b.keymap.telemetry):
		b.telemetry = !b.telemetry
	case bubblesKey.Matches(msg, b.keymap.channels):
		if b.hasChannels() {
			b.switching = true
			b.keymap.switching = true
		}
	case bubblesKey.Matches(msg, b.keymap.showHelp):
		b.helpC.ShowAll = !b.helpC.ShowAll
	}

	return b, nil
}

// pin selects the track shown at position n of the quality list.
func (b *bubble) pin(n int) {
	if n >= len(b.tracks) {
		b.status = fmt.Sprintf("no quality %d", n)
		return
	}

	t := b.tracks[n]
	if b.ctrl.SelectQuality(t.Index) {
		b.status = "pinned " + quality.Label(t)
	} else {
		b.status = "quality selection unavailable"
	}
}

func (b *bubble) updateSwitcher(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	filtering := b.channelC.FilterState() == list.Filtering

	switch {
	case !filtering && bubblesKey.Matches(msg, b.keymap.back):
		b.switching = false
		b.keymap.switching = false
		return b, nil
	case !filtering && bubblesKey.Matches(msg, b.keymap.confirm):
		selected, ok := b.channelC.SelectedItem().(*item)
		if !ok {
			return b, nil
		}
		b.switching = false
		b.keymap.switching = false
		b.status = "loading " + selected.channel.Name

		ctrl, onLoad := b.ctrl, b.options.OnLoad
		ch := selected.channel
		return b, func() tea.Msg {
			ctrl.Load(ch.Source())
			if onLoad != nil {
				onLoad(ch)
			}
			return loadedMsg{channel: ch}
		}
	}

	var cmd tea.Cmd
	b.channelC, cmd = b.channelC.Update(msg)
	return b, cmd
}

// observe folds an event into the view model.
func (b *bubble) observe(ev player.Event) {
	switch ev.Kind {
	case player.SessionStarted:
		b.session = ev.Session
		b.src = ev.Source
		b.route = ev.Route
		b.sample = ev.Sample
		b.retry = player.RetryState{}
		b.failure = nil
	case player.StateChanged:
		b.state = ev.To
		if ev.To == player.Playing || ev.To == player.Paused {
			b.retry = player.RetryState{}
		}
	case player.TracksChanged:
		b.tracks = ev.Tracks
	case player.TelemetrySampled:
		b.sample = ev.Sample
	case player.Retrying:
		b.retry = ev.Retry
	case player.Failed:
		b.failure = ev.Err
	}
}
