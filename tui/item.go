package tui

import (
	"github.com/streamctl/streamctl/channel"
	"github.com/streamctl/streamctl/source"
	"github.com/streamctl/streamctl/style"
)

// item is a channel in the switcher list.
type item struct {
	channel channel.Channel
	current bool
}

func (i *item) FilterValue() string {
	return i.channel.Name + " " + i.channel.ID
}

func (i *item) Title() string {
	title := i.channel.String()
	if i.current {
		title = style.Bold(title) + " " + style.Faint("(playing)")
	}
	return title
}

func (i *item) Description() string {
	return source.Classify(i.channel.Address).String() + "  " + style.Faint(i.channel.Address)
}
