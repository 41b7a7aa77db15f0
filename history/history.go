// Package history keeps the list of recently played sources.
package history

import (
	"sort"

	"github.com/metafates/gache"
	"github.com/samber/lo"
	"github.com/samber/mo"
	"github.com/spf13/viper"
	"github.com/streamctl/streamctl/filesystem"
	"github.com/streamctl/streamctl/key"
	"github.com/streamctl/streamctl/source"
	"github.com/streamctl/streamctl/where"
)

var cacher = gache.New[map[string]*Entry](
	&gache.Options{
		Path:       where.History(),
		FileSystem: &filesystem.GacheFs{},
	},
)

// Get returns every saved entry keyed by address.
func Get() (map[string]*Entry, error) {
	cached, expired, err := cacher.Get()
	if err != nil {
		return nil, err
	}
	if expired || cached == nil {
		return make(map[string]*Entry), nil
	}
	return cached, nil
}

// List returns the saved entries, most recently played first.
func List() ([]*Entry, error) {
	saved, err := Get()
	if err != nil {
		return nil, err
	}

	entries := lo.Values(saved)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PlayedAt.After(entries[j].PlayedAt)
	})
	return entries, nil
}

// Last returns the most recently played entry.
func Last() (mo.Option[*Entry], error) {
	entries, err := List()
	if err != nil {
		return mo.None[*Entry](), err
	}
	if len(entries) == 0 {
		return mo.None[*Entry](), nil
	}
	return mo.Some(entries[0]), nil
}

// Save records a play of src. It does nothing when history.save is off.
// Only the history.limit most recent entries are kept.
func Save(src source.StreamSource, route source.Route, channel string) error {
	if !viper.GetBool(key.HistorySave) {
		return nil
	}

	saved, err := Get()
	if err != nil {
		return err
	}

	entry := newEntry(src, route, channel)
	if existing, ok := saved[entry.encode()]; ok {
		entry.Plays = existing.Plays
		if entry.Channel == "" {
			entry.Channel = existing.Channel
		}
	}
	entry.Plays++
	saved[entry.encode()] = entry

	if limit := viper.GetInt(key.HistoryLimit); limit > 0 && len(saved) > limit {
		entries := lo.Values(saved)
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].PlayedAt.After(entries[j].PlayedAt)
		})
		for _, stale := range entries[limit:] {
			delete(saved, stale.encode())
		}
	}

	return cacher.Set(saved)
}

// Remove deletes one entry.
func Remove(entry *Entry) error {
	saved, err := Get()
	if err != nil {
		return err
	}

	delete(saved, entry.encode())
	return cacher.Set(saved)
}

// Clear deletes every entry.
func Clear() error {
	return cacher.Set(make(map[string]*Entry))
}
