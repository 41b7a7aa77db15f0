package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
	"github.com/streamctl/streamctl/channel"
	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/player"
	"github.com/streamctl/streamctl/quality"
	"github.com/streamctl/streamctl/source"
	"github.com/streamctl/streamctl/style"
)

// volumeStep is the change applied by one volume key press.
const volumeStep = 0.05

// bubble is the HUD model. It mirrors the controller's events and never
// holds playback state of its own beyond what it was told.
type bubble struct {
	ctrl    *player.Controller
	sub     *player.Subscription
	options *Options

	keymap   *keymap
	spinnerC spinner.Model
	helpC    help.Model
	channelC list.Model

	state   player.State
	session string
	src     source.StreamSource
	route   source.Route
	tracks  []quality.Track
	sample  engine.Sample
	retry   player.RetryState
	failure *engine.ErrorInfo
	intent  engine.Intent

	telemetry bool
	switching bool
	status    string

	width, height int
}

func newBubble(options *Options) *bubble {
	b := &bubble{
		ctrl:      options.Controller,
		options:   options,
		keymap:    newKeymap(),
		spinnerC:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		helpC:     help.New(),
		telemetry: options.Telemetry,
		state:     options.Controller.State(),
		tracks:    options.Controller.Tracks(),
		sample:    options.Controller.Latest(),
		retry:     options.Controller.Retry(),
		failure:   options.Controller.Failure(),
		session:   options.Controller.Session(),
		src:       options.Controller.Source(),
		intent:    options.Controller.Intent(),
	}
	b.route = source.Classify(b.src.Address)
	b.sub = b.ctrl.Subscribe()

	b.spinnerC.Style = style.New().Foreground(style.AccentColor)

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(style.AccentColor).BorderForeground(style.AccentColor)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.BorderForeground(style.AccentColor)
	b.channelC = list.New(nil, delegate, 0, 0)
	b.channelC.Title = "Channels"
	b.channelC.Styles.Title = style.New().Foreground(style.Base).Background(style.AccentColor).Padding(0, 1)
	b.channelC.SetShowHelp(false)
	b.resize(defaultWidth, defaultHeight)
	b.reloadChannels()

	return b
}

func (b *bubble) Init() tea.Cmd {
	return tea.Batch(b.spinnerC.Tick, b.listen())
}

// reloadChannels fills the switcher from the directory, marking the current source.
func (b *bubble) reloadChannels() {
	if b.options.Directory == nil {
		return
	}
	items := lo.Map(b.options.Directory.All(), func(ch channel.Channel, _ int) list.Item {
		return &item{channel: ch, current: ch.Address == b.src.Address}
	})
	b.channelC.SetItems(items)
}

func (b *bubble) hasChannels() bool {
	return b.options.Directory != nil && b.options.Directory.Len() > 0
}

func (b *bubble) resize(width, height int) {
	b.width, b.height = width, height
	b.helpC.Width = width
	b.channelC.SetSize(width, height-2)
}
