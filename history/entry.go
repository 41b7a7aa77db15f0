package history

import (
	"fmt"
	"time"

	"github.com/streamctl/streamctl/source"
)

// Entry is one recently played source.
type Entry struct {
	Address  string    `json:"address"`
	Title    string    `json:"title"`
	Route    string    `json:"route"`
	SNIMask  string    `json:"sni_mask,omitempty"`
	Channel  string    `json:"channel,omitempty"`
	PlayedAt time.Time `json:"played_at"`
	Plays    int       `json:"plays"`
}

func (e *Entry) encode() string {
	return e.Address
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s (%s)", e.Title, e.Route)
}

// Source rebuilds the stream source the entry was saved from.
func (e *Entry) Source() source.StreamSource {
	return source.New(e.Address, e.Title).WithMask(e.SNIMask)
}

func newEntry(src source.StreamSource, route source.Route, channel string) *Entry {
	mask, _ := src.Mask()
	return &Entry{
		Address:  src.Address,
		Title:    src.Title(),
		Route:    route.String(),
		SNIMask:  mask,
		Channel:  channel,
		PlayedAt: time.Now(),
	}
}
