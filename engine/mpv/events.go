package mpv

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/streamctl/streamctl/log"
)

// observed properties, in observe_property id order. The telemetry
// properties feed Stats without a round trip.
var observed = []string{
	"paused-for-cache",
	"track-list",
	"video-bitrate",
	"demuxer-cache-duration",
	"estimated-vf-fps",
	"video-codec",
}

// eventListener keeps a persistent connection open and forwards every event line.
// Property observation is per client, so observers are registered on this connection.
type eventListener struct {
	conn   net.Conn
	handle func(ipcMessage)
	done   chan struct{}
	once   sync.Once
}

func listen(socket string, handle func(ipcMessage)) (*eventListener, error) {
	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, fmt.Errorf("event listener connect: %w", err)
	}

	for i, name := range observed {
		payload, _ := json.Marshal(ipcCommand{Command: []any{"observe_property", i + 1, name}})
		if _, err := conn.Write(append(payload, '\n')); err != nil {
			conn.Close()
			return nil, fmt.Errorf("observe %s: %w", name, err)
		}
	}

	el := &eventListener{
		conn:   conn,
		handle: handle,
		done:   make(chan struct{}),
	}
	go el.readLoop()

	log.Debugf("mpv: event listener started on %s", socket)
	return el, nil
}

func (el *eventListener) readLoop() {
	defer close(el.done)

	scanner := bufio.NewScanner(el.conn)
	scanner.Buffer(make([]byte, 64<<10), 4<<20)

	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		// replies to observe_property
		if msg.Event == "" {
			continue
		}
		el.handle(msg)
	}
}

// stop closes the connection and waits for the read loop. Safe to call more than once.
func (el *eventListener) stop() {
	el.once.Do(func() {
		el.conn.Close()
	})
	<-el.done
}
