// Package cache prunes artifacts that earlier sessions left behind.
package cache

import (
	"os"
	"path/filepath"
	"time"

	"github.com/streamctl/streamctl/constant"
	"github.com/streamctl/streamctl/filesystem"
	"github.com/streamctl/streamctl/log"
	"github.com/streamctl/streamctl/util"
	"github.com/streamctl/streamctl/where"
)

// TTL is how long an artifact may outlive the session that created it.
const TTL = 24 * time.Hour

// CollectGarbage removes stale embed pages and orphaned mpv sockets.
func CollectGarbage() {
	now := time.Now()
	removed := prune(where.Temp(), "*", now)
	removed += prune(os.TempDir(), constant.Streamctl+"-*.sock", now)

	if removed > 0 {
		log.Infof("removed %s", util.Quantify(removed, "stale file", "stale files"))
	}
}

// prune removes files in dir matching pattern that are older than TTL and returns how many it removed.
func prune(dir, pattern string, now time.Time) int {
	fs := filesystem.API()
	infos, err := fs.ReadDir(dir)
	if err != nil {
		return 0
	}

	var removed int
	for _, info := range infos {
		if info.IsDir() || now.Sub(info.ModTime()) <= TTL {
			continue
		}
		if ok, _ := filepath.Match(pattern, info.Name()); !ok {
			continue
		}
		if err := fs.Remove(filepath.Join(dir, info.Name())); err != nil {
			log.Warn(err)
			continue
		}
		removed++
	}
	return removed
}
