// Package channel reads the configured channel directory and looks channels up by name.
package channel

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/viper"
	"github.com/streamctl/streamctl/key"
	"github.com/streamctl/streamctl/source"
)

// Channel is one entry of the directory.
type Channel struct {
	ID      string `mapstructure:"id" json:"id"`
	Name    string `mapstructure:"name" json:"name"`
	Address string `mapstructure:"address" json:"address"`
	Group   string `mapstructure:"group" json:"group,omitempty"`
	SNIMask string `mapstructure:"sni_mask" json:"sni_mask,omitempty"`
	Proxy   bool   `mapstructure:"proxy" json:"proxy"`
}

// Source returns the stream source of the channel. The mask is only
// active when the channel asks for the proxy.
func (c Channel) Source() source.StreamSource {
	src := source.New(c.Address, c.Name)
	if c.SNIMask == "" {
		return src
	}
	src = src.WithMask(c.SNIMask)
	src.ProxyActive = c.Proxy
	return src
}

func (c Channel) String() string {
	if c.Group == "" {
		return c.Name
	}
	return fmt.Sprintf("%s / %s", c.Group, c.Name)
}

// ErrNotFound is returned when no channel matches a query.
var ErrNotFound = errors.New("channel not found")

// Directory is an immutable list of channels.
type Directory struct {
	channels []Channel
}

// New validates channels and returns their directory. Channels without an
// ID get one derived from their name.
func New(channels []Channel) (*Directory, error) {
	seen := make(map[string]struct{}, len(channels))
	out := make([]Channel, 0, len(channels))

	for i, ch := range channels {
		ch.Name = strings.TrimSpace(ch.Name)
		ch.Address = strings.TrimSpace(ch.Address)
		if ch.Address == "" {
			return nil, fmt.Errorf("channel %d (%q): empty address", i, ch.Name)
		}
		if ch.Name == "" {
			ch.Name = ch.Address
		}
		if ch.ID == "" {
			ch.ID = slug(ch.Name)
		}
		ch.ID = strings.ToLower(ch.ID)

		if _, dup := seen[ch.ID]; dup {
			return nil, fmt.Errorf("duplicate channel id %q", ch.ID)
		}
		seen[ch.ID] = struct{}{}
		out = append(out, ch)
	}

	return &Directory{channels: out}, nil
}

// Load reads the directory from the channels config key.
func Load() (*Directory, error) {
	var channels []Channel
	if err := viper.UnmarshalKey(key.Channels, &channels); err != nil {
		return nil, fmt.Errorf("read channels: %w", err)
	}
	return New(channels)
}

// All returns every channel in configuration order.
func (d *Directory) All() []Channel {
	return append([]Channel(nil), d.channels...)
}

// Len is the number of channels.
func (d *Directory) Len() int {
	return len(d.channels)
}

// Get returns the channel with the given ID, case-insensitively.
func (d *Directory) Get(id string) mo.Option[Channel] {
	id = strings.ToLower(strings.TrimSpace(id))
	ch, ok := lo.Find(d.channels, func(c Channel) bool {
		return c.ID == id
	})
	if !ok {
		return mo.None[Channel]()
	}
	return mo.Some(ch)
}

// Find returns the channels whose name or ID fuzzily matches query, closest first.
// An empty query matches every channel.
func (d *Directory) Find(query string) []Channel {
	query = strings.TrimSpace(query)
	if query == "" {
		return d.All()
	}

	best := make(map[int]int)
	for _, targets := range [][]string{d.names(), d.ids()} {
		for _, rank := range fuzzy.RankFindFold(query, targets) {
			if dist, ok := best[rank.OriginalIndex]; !ok || rank.Distance < dist {
				best[rank.OriginalIndex] = rank.Distance
			}
		}
	}

	indexes := lo.Keys(best)
	sort.Slice(indexes, func(i, j int) bool {
		a, b := indexes[i], indexes[j]
		if best[a] != best[b] {
			return best[a] < best[b]
		}
		return a < b
	})

	return lo.Map(indexes, func(i int, _ int) Channel {
		return d.channels[i]
	})
}

// Resolve returns the channel with ID query, or else the closest fuzzy match.
func (d *Directory) Resolve(query string) (Channel, error) {
	if ch, ok := d.Get(query).Get(); ok {
		return ch, nil
	}

	found := d.Find(query)
	if len(found) == 0 || strings.TrimSpace(query) == "" {
		return Channel{}, fmt.Errorf("%w: %q", ErrNotFound, query)
	}
	return found[0], nil
}

func (d *Directory) names() []string {
	return lo.Map(d.channels, func(c Channel, _ int) string { return c.Name })
}

func (d *Directory) ids() []string {
	return lo.Map(d.channels, func(c Channel, _ int) string { return c.ID })
}

func slug(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	})
	return strings.Join(fields, "-")
}
