// Package embed implements the fallback engine: the address is wrapped in a sandboxed
// iframe page and handed to the browser. The host learns nothing about playback.
package embed

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/streamctl/streamctl/constant"
	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/filesystem"
	"github.com/streamctl/streamctl/key"
	"github.com/streamctl/streamctl/log"
	"github.com/streamctl/streamctl/open"
	"github.com/streamctl/streamctl/profile"
	"github.com/streamctl/streamctl/quality"
	"github.com/streamctl/streamctl/source"
	"github.com/streamctl/streamctl/where"
)

var page = template.Must(template.New("embed").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="referrer" content="no-referrer">
<title>{{.Title}} · {{.App}}</title>
<style>html,body{margin:0;height:100%;background:#000}iframe{border:0;width:100%;height:100%}</style>
</head>
<body>
<iframe src="{{.Address}}" sandbox="allow-scripts allow-same-origin allow-presentation allow-popups" allow="autoplay; fullscreen; picture-in-picture; encrypted-media" referrerpolicy="no-referrer" allowfullscreen></iframe>
</body>
</html>
`))

// Render returns the embed page for src.
func Render(src source.StreamSource) ([]byte, error) {
	var buf bytes.Buffer
	err := page.Execute(&buf, struct {
		Title, Address, App string
	}{src.Title(), src.Address, constant.Streamctl})
	if err != nil {
		return nil, fmt.Errorf("render embed page: %w", err)
	}
	return buf.Bytes(), nil
}

// Options configures the engine.
type Options struct {
	// Browser opens the page instead of the system handler when set.
	Browser string
	// Open hands a file to a browser. Defaults to open.Start.
	Open func(path, app string) error
}

// OptionsFromConfig reads the engine settings.
func OptionsFromConfig() Options {
	return Options{Browser: viper.GetString(key.EmbedBrowser)}
}

// Constructor returns an engine.Constructor for the registry.
func Constructor(opts Options) engine.Constructor {
	return func(cb engine.Callbacks) (engine.Engine, error) {
		return New(cb, opts), nil
	}
}

// Engine is the embed fallback engine.
type Engine struct {
	cb   engine.Callbacks
	opts Options

	mu        sync.Mutex
	path      string
	destroyed bool
	wg        sync.WaitGroup
}

func New(cb engine.Callbacks, opts Options) *Engine {
	if opts.Open == nil {
		opts.Open = open.Start
	}
	return &Engine{cb: cb, opts: opts}
}

// Load writes the page and opens it. Failures are only logged: an embed gives
// the host no way to observe errors, so the session simply never becomes ready.
func (e *Engine) Load(src source.StreamSource, _ profile.BufferConfig) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()

		data, err := Render(src)
		if err != nil {
			log.Warnf("embed: %v", err)
			return
		}

		path := filepath.Join(where.Temp(), fmt.Sprintf("embed-%s.html", uuid.NewString()))
		if err := filesystem.WriteAtomic(path, data, 0o600); err != nil {
			log.Warnf("embed: write page: %v", err)
			return
		}

		e.mu.Lock()
		if e.destroyed {
			e.mu.Unlock()
			_ = filesystem.API().Remove(path)
			return
		}
		e.remove()
		e.path = path
		e.mu.Unlock()

		if err := e.opts.Open(path, e.opts.Browser); err != nil {
			log.Warnf("embed: open %s: %v", path, err)
			return
		}

		log.Infof("embed: opened %q", src.Title())
		e.cb.Ready()
	}()
}

// remove deletes the current page. Callers hold mu.
func (e *Engine) remove() {
	if e.path == "" {
		return
	}
	if err := filesystem.API().Remove(e.path); err != nil {
		log.Debugf("embed: remove %s: %v", e.path, err)
	}
	e.path = ""
}

func (e *Engine) SetPlaying(bool)   {}
func (e *Engine) SetVolume(float64) {}
func (e *Engine) SetMuted(bool)     {}

func (e *Engine) QualityTracks() []quality.Track {
	return []quality.Track{}
}

func (e *Engine) SelectQuality(int) {}

// Stats is always the placeholder: the frame exposes no telemetry.
func (e *Engine) Stats() engine.Sample {
	return engine.Placeholder()
}

func (e *Engine) Reconfigure(profile.BufferConfig) bool {
	return true
}

func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	e.mu.Unlock()

	e.wg.Wait()

	e.mu.Lock()
	e.remove()
	e.mu.Unlock()
}
