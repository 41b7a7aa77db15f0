// Package mpv implements the compatibility engine: the mpv player driven over its JSON-IPC socket.
//
// mpv resolves embeddable video hosts through ytdl and plays HLS and DASH itself,
// so the engine only translates intents into properties and events into callbacks.
package mpv

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/viper"
	"github.com/streamctl/streamctl/constant"
	"github.com/streamctl/streamctl/engine"
	"github.com/streamctl/streamctl/key"
	"github.com/streamctl/streamctl/log"
	"github.com/streamctl/streamctl/network"
	"github.com/streamctl/streamctl/profile"
	"github.com/streamctl/streamctl/quality"
	"github.com/streamctl/streamctl/source"
)

const (
	socketWaitRetries = 20
	socketWaitDelay   = 150 * time.Millisecond
	quitTimeout       = 3 * time.Second
	commandQueue      = 64
)

// Options configures the engine.
type Options struct {
	// Path is the mpv executable.
	Path      string
	UserAgent string
}

// OptionsFromConfig reads the engine settings.
func OptionsFromConfig() Options {
	return Options{
		Path:      viper.GetString(key.MPVPath),
		UserAgent: viper.GetString(key.NetworkUserAgent),
	}
}

// Constructor returns an engine.Constructor for the registry. It fails when mpv is not installed.
func Constructor(opts Options) engine.Constructor {
	return func(cb engine.Callbacks) (engine.Engine, error) {
		path := opts.Path
		if path == "" {
			path = "mpv"
		}
		resolved, err := exec.LookPath(path)
		if err != nil {
			return nil, fmt.Errorf("mpv not found: %w", err)
		}
		opts.Path = resolved
		return New(cb, opts), nil
	}
}

// Engine is the mpv compatibility engine.
type Engine struct {
	cb   engine.Callbacks
	opts Options

	mu        sync.Mutex
	intent    engine.Intent
	cfg       profile.BufferConfig
	ready     bool
	destroyed bool
	pinned    int
	entries   []quality.MPVTrack
	telemetry engine.Sample

	cmd      *exec.Cmd
	exited   chan struct{}
	socket   string
	ipc      *ipcClient
	listener *eventListener
	queue    chan []any
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates an idle engine. Nothing is spawned until Load.
func New(cb engine.Callbacks, opts Options) *Engine {
	if opts.Path == "" {
		opts.Path = "mpv"
	}
	return &Engine{
		cb:     cb,
		opts:   opts,
		intent: engine.DefaultIntent(),
		pinned: quality.Auto,
	}
}

func (e *Engine) Load(src source.StreamSource, cfg profile.BufferConfig) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	// one process per session
	e.teardown()

	e.mu.Lock()
	e.cfg = cfg
	e.ready = false
	e.pinned = quality.Auto
	e.entries = nil
	e.telemetry = engine.Sample{}
	e.stop = make(chan struct{})
	e.wg.Add(1)
	e.mu.Unlock()

	go e.start(src, cfg)
}

func (e *Engine) start(src source.StreamSource, cfg profile.BufferConfig) {
	defer e.wg.Done()

	target, err := sanitizeMediaTarget(src.Address)
	if err != nil {
		e.fail(engine.Wrap(engine.EngineInitFailed, err, "invalid media target"))
		return
	}

	socket, err := socketPath()
	if err != nil {
		e.fail(engine.Wrap(engine.EngineInitFailed, err, "generate socket name"))
		return
	}

	e.mu.Lock()
	l := launch{
		socket:    socket,
		title:     src.Title(),
		cfg:       cfg,
		intent:    e.intent,
		headers:   network.Headers(network.FiltersFor(src)...),
		userAgent: e.opts.UserAgent,
	}
	e.mu.Unlock()

	cmd := exec.Command(e.opts.Path, l.args()...)
	cmd.SysProcAttr = sysProcAttr()
	cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil

	if err := cmd.Start(); err != nil {
		e.fail(engine.Wrap(engine.EngineInitFailed, err, "start mpv"))
		return
	}

	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	e.mu.Lock()
	stop := e.stop
	if e.destroyed || stop == nil {
		e.mu.Unlock()
		_ = killProcess(cmd)
		return
	}
	e.cmd, e.exited, e.socket = cmd, exited, socket
	e.ipc = &ipcClient{socket: socket}
	e.mu.Unlock()

	if err := waitForSocket(socket, exited, stop); err != nil {
		e.fail(engine.Wrap(engine.EngineInitFailed, err, "mpv socket not ready"))
		return
	}

	listener, err := listen(socket, e.handle)
	if err != nil {
		e.fail(engine.Wrap(engine.EngineInitFailed, err, ""))
		return
	}

	queue := make(chan []any, commandQueue)
	e.mu.Lock()
	e.listener, e.queue = listener, queue
	e.mu.Unlock()

	e.wg.Add(2)
	go e.send(queue, stop)
	go e.watch(exited, stop)

	log.Infof("mpv: loading %q", src.Title())
	e.enqueue("loadfile", target, "replace")
}

// waitForSocket polls until the mpv IPC socket is accepting connections.
func waitForSocket(socket string, exited, stop <-chan struct{}) error {
	for i := 0; i < socketWaitRetries; i++ {
		select {
		case <-exited:
			return errors.New("mpv exited before socket was ready")
		case <-stop:
			return errors.New("cancelled")
		case <-time.After(socketWaitDelay):
		}

		conn, err := net.Dial("unix", socket)
		if err == nil {
			conn.Close()
			return nil
		}
	}
	return fmt.Errorf("socket %s not ready after %d attempts", socket, socketWaitRetries)
}

func socketPath() (string, error) {
	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("%s-%x.sock", constant.Streamctl, randomBytes)), nil
}

// send applies queued commands in order.
func (e *Engine) send(queue <-chan []any, stop <-chan struct{}) {
	defer e.wg.Done()

	for {
		select {
		case <-stop:
			return
		case cmd := <-queue:
			e.mu.Lock()
			ipc := e.ipc
			e.mu.Unlock()
			if ipc == nil {
				continue
			}
			if _, err := ipc.call(cmd...); err != nil {
				log.Warnf("mpv: %v: %v", cmd[0], err)
			}
		}
	}
}

// enqueue schedules a command without blocking. Commands before the socket is up are dropped,
// the intent they carry is replayed on file-loaded.
func (e *Engine) enqueue(command ...any) {
	e.mu.Lock()
	queue := e.queue
	e.mu.Unlock()

	if queue == nil {
		return
	}

	select {
	case queue <- command:
	default:
		log.Warnf("mpv: command queue full, dropping %v", command[0])
	}
}

// watch reports mpv exiting on its own.
func (e *Engine) watch(exited, stop <-chan struct{}) {
	defer e.wg.Done()

	select {
	case <-stop:
	case <-exited:
		e.mu.Lock()
		ready := e.ready
		e.mu.Unlock()

		if ready {
			e.fail(engine.Newf(engine.FatalEngineError, "mpv exited"))
		} else {
			e.fail(engine.Newf(engine.EngineInitFailed, "mpv exited before the file loaded"))
		}
	}
}

func (e *Engine) fail(info *engine.ErrorInfo) {
	e.mu.Lock()
	stopped := e.destroyed || e.stop == nil
	e.mu.Unlock()

	if stopped {
		return
	}
	log.Errorf("mpv: %s", info)
	e.cb.Error(info)
}

// handle dispatches one event from the listener.
func (e *Engine) handle(msg ipcMessage) {
	switch msg.Event {
	case "file-loaded":
		e.mu.Lock()
		e.ready = true
		intent, pinned := e.intent, e.pinned
		e.mu.Unlock()

		e.replay(intent, pinned)
		e.cb.Ready()

	case "end-file":
		if msg.Reason != "error" {
			return
		}
		cause := errors.New(msg.FileError)
		if msg.FileError == "" {
			cause = errors.New("unknown error")
		}

		e.mu.Lock()
		ready := e.ready
		e.mu.Unlock()

		if ready {
			e.fail(engine.Wrap(engine.FatalEngineError, cause, "playback failed"))
		} else {
			e.fail(engine.Wrap(engine.FatalEngineError, engine.Wrap(engine.ManifestLoadFailed, cause, "open"), "mpv could not load the file"))
		}

	case "property-change":
		e.property(msg.Name, msg.Data)
	}
}

func (e *Engine) property(name string, data json.RawMessage) {
	switch name {
	case "paused-for-cache":
		var buffering bool
		if err := json.Unmarshal(data, &buffering); err != nil {
			return
		}
		e.mu.Lock()
		ready := e.ready
		e.mu.Unlock()
		if ready {
			e.cb.Buffering(buffering)
		}

	case "track-list":
		var entries []quality.MPVTrack
		if err := json.Unmarshal(data, &entries); err != nil {
			log.Debugf("mpv: track-list: %v", err)
			return
		}
		e.mu.Lock()
		e.entries = entries
		tracks := e.tracksLocked()
		e.mu.Unlock()
		e.cb.Tracks(tracks)

	case "video-bitrate", "demuxer-cache-duration", "estimated-vf-fps":
		// null while unavailable
		var v *float64
		if err := json.Unmarshal(data, &v); err != nil {
			log.Debugf("mpv: %s: %v", name, err)
			return
		}
		value := lo.FromPtr(v)

		e.mu.Lock()
		switch name {
		case "video-bitrate":
			e.telemetry.BitrateKbps = int(value / 1000)
		case "demuxer-cache-duration":
			e.telemetry.BufferSeconds = value
		case "estimated-vf-fps":
			e.telemetry.FPS = int(math.Round(value))
		}
		e.mu.Unlock()

	case "video-codec":
		var codec *string
		if err := json.Unmarshal(data, &codec); err != nil {
			log.Debugf("mpv: video-codec: %v", err)
			return
		}
		e.mu.Lock()
		e.telemetry.Codec = lo.FromPtr(codec)
		e.mu.Unlock()
	}
}

// replay applies intents recorded before the file loaded.
func (e *Engine) replay(intent engine.Intent, pinned int) {
	e.enqueue("set_property", "pause", !intent.Playing)
	e.enqueue("set_property", "volume", math.Round(intent.Volume*100))
	e.enqueue("set_property", "mute", intent.Muted)
	if pinned != quality.Auto {
		e.enqueue("set_property", "vid", pinned)
	}
}

func (e *Engine) SetPlaying(playing bool) {
	e.mu.Lock()
	e.intent.Playing = playing
	ready := e.ready
	e.mu.Unlock()

	if ready {
		e.enqueue("set_property", "pause", !playing)
	}
}

func (e *Engine) SetVolume(volume float64) {
	volume = engine.ClampVolume(volume)
	e.mu.Lock()
	e.intent.Volume = volume
	ready := e.ready
	e.mu.Unlock()

	if ready {
		e.enqueue("set_property", "volume", math.Round(volume*100))
	}
}

func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	e.intent.Muted = muted
	ready := e.ready
	e.mu.Unlock()

	if ready {
		e.enqueue("set_property", "mute", muted)
	}
}

func (e *Engine) tracksLocked() []quality.Track {
	return quality.Normalize(quality.MPVTrackList{Entries: e.entries, Pinned: e.pinned})
}

func (e *Engine) QualityTracks() []quality.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracksLocked()
}

func (e *Engine) SelectQuality(index int) {
	e.mu.Lock()
	if index != quality.Auto {
		if _, ok := quality.Find(e.tracksLocked(), index); !ok {
			e.mu.Unlock()
			return
		}
	}
	if e.pinned == index {
		e.mu.Unlock()
		return
	}
	e.pinned = index
	tracks := e.tracksLocked()
	ready := e.ready
	e.mu.Unlock()

	if ready {
		if index == quality.Auto {
			e.enqueue("set_property", "vid", "auto")
		} else {
			e.enqueue("set_property", "vid", index)
		}
	}
	e.cb.Tracks(tracks)
}

// Stats returns the last observed playback properties. Missing properties stay zero.
func (e *Engine) Stats() engine.Sample {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.ready {
		return engine.Sample{}
	}

	s := e.telemetry
	if s.Codec == "" {
		s.Codec = engine.UnknownCodec
	}
	return s
}

// Reconfigure updates the cache goals live. The data saver changes launch
// options, so toggling it needs a reload.
func (e *Engine) Reconfigure(cfg profile.BufferConfig) bool {
	e.mu.Lock()
	prev := e.cfg
	e.cfg = cfg
	e.mu.Unlock()

	if prev.DataSaver != cfg.DataSaver {
		return false
	}

	e.enqueue("set_property", "demuxer-readahead-secs", cfg.BufferingGoalSeconds)
	e.enqueue("set_property", "cache-secs", cfg.BufferingGoalSeconds)
	e.enqueue("set_property", "cache-pause-wait", cfg.RebufferingGoalSeconds)
	return true
}

// teardown stops the current process, if any, and waits for every goroutine.
func (e *Engine) teardown() {
	e.mu.Lock()
	stop, cmd, exited, socket, ipc, listener := e.stop, e.cmd, e.exited, e.socket, e.ipc, e.listener
	if stop != nil {
		close(stop)
	}
	e.stop, e.cmd, e.exited, e.socket, e.ipc, e.listener, e.queue = nil, nil, nil, "", nil, nil, nil
	e.ready = false
	e.mu.Unlock()

	if listener != nil {
		listener.stop()
	}

	if cmd != nil {
		if ipc != nil {
			_, _ = ipc.call("quit")
		}
		select {
		case <-exited:
		case <-time.After(quitTimeout):
			_ = killProcess(cmd)
			<-exited
		}
	}

	e.wg.Wait()

	if socket != "" {
		_ = os.Remove(socket)
	}
}

func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	e.mu.Unlock()

	e.teardown()
}
