package mpv

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/profile"
)

// launch is everything needed to build the mpv command line.
type launch struct {
	socket    string
	title     string
	cfg       profile.BufferConfig
	intent    engine.Intent
	headers   map[string]string
	userAgent string
}

func seconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// args builds the mpv arguments. The address is sent later with loadfile so the
// event listener is attached before the file can load.
func (l launch) args() []string {
	title := sanitizeTitle(l.title)

	args := []string{
		"--no-terminal",
		"--really-quiet",
		"--idle=yes",
		"--force-window=yes",
		"--input-ipc-server=" + l.socket,
		"--force-media-title=" + title,
		"--title=" + title,
		"--cache=yes",
	}

	args = append(args, cacheArgs(l.cfg)...)

	if l.cfg.DataSaver {
		args = append(args,
			"--hls-bitrate=min",
			fmt.Sprintf("--ytdl-format=bestvideo[height<=?%d]+bestaudio/best[height<=?%d]", l.cfg.MaxHeight, l.cfg.MaxHeight),
		)
	} else {
		args = append(args, "--hls-bitrate=max")
	}

	args = append(args, headerArgs(l.headers)...)
	if l.userAgent != "" {
		args = append(args, "--user-agent="+l.userAgent)
	}

	args = append(args,
		"--volume="+strconv.Itoa(int(engine.ClampVolume(l.intent.Volume)*100)),
		"--mute="+yesNo(l.intent.Muted),
		"--pause="+yesNo(!l.intent.Playing),
	)

	return args
}

// cacheArgs maps the buffering goals onto mpv's demuxer cache.
func cacheArgs(cfg profile.BufferConfig) []string {
	return []string{
		"--demuxer-readahead-secs=" + seconds(cfg.BufferingGoalSeconds),
		"--cache-secs=" + seconds(cfg.BufferingGoalSeconds),
		"--cache-pause-wait=" + seconds(cfg.RebufferingGoalSeconds),
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// headerArgs appends each header as a single list item, sorted for stable output.
// The -append form takes the value verbatim, so commas need no escaping.
func headerArgs(headers map[string]string) []string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys))
	for _, k := range keys {
		args = append(args, fmt.Sprintf("--http-header-fields-append=%s: %s", k, headers[k]))
	}
	return args
}

// sanitizeMediaTarget validates that an address is safe to hand to mpv.
func sanitizeMediaTarget(link string) (string, error) {
	l := strings.TrimSpace(link)
	if l == "" {
		return "", fmt.Errorf("empty URL")
	}

	if strings.ContainsAny(l, "\x00\n\r") {
		return "", fmt.Errorf("invalid control characters in URL")
	}

	// flag injection
	if strings.HasPrefix(l, "-") {
		return "", fmt.Errorf("url must not start with '-' (looks like a flag)")
	}

	if strings.Contains(l, "://") {
		u, err := url.Parse(l)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https", "file":
			return l, nil
		default:
			return "", fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
		}
	}

	return filepath.Clean(l), nil
}

func sanitizeTitle(title string) string {
	t := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ", "\x00", "").Replace(title)
	return strings.TrimSpace(t)
}
