package player

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/subloop-cli/subloop/log"
)

// Message is a single notification from mpv. Property changes carry Name and
// Data; other events only carry Event (and Reason for end-file).
type Message struct {
	Event  string
	Name   string
	Data   any
	Reason string
}

// EventCallback is the function signature for mpv event notifications.
type EventCallback func(Message)

// observed are the properties the listener asks mpv to report.
var observed = []string{
	"time-pos",
	"pause",
	"speed",
	"volume",
	"mute",
	"duration",
	"eof-reached",
	"paused-for-cache",
	"playlist-pos",
}

// EventListener provides real-time mpv event monitoring via observe_property.
type EventListener struct {
	socketPath string
	conn       net.Conn
	callback   EventCallback
	onClose    func()
	logger     *logrus.Entry

	mu        sync.Mutex
	listening bool
	done      chan struct{}
}

// NewEventListener creates a new event listener for the given socket.
// onClose runs once when the connection ends for any reason other than Stop.
func NewEventListener(socketPath string, callback EventCallback, onClose func()) *EventListener {
	return &EventListener{
		socketPath: socketPath,
		callback:   callback,
		onClose:    onClose,
		logger:     log.For("mpv-events"),
		done:       make(chan struct{}),
	}
}

// Start opens a persistent connection, registers the property observers on it
// and starts the read loop.
func (el *EventListener) Start() error {
	el.mu.Lock()
	defer el.mu.Unlock()

	if el.listening {
		return nil
	}

	conn, err := net.DialTimeout("unix", el.socketPath, dialTimeout)
	if err != nil {
		return fmt.Errorf("event listener connect: %w", err)
	}

	// Observers belong to the connection that registered them, so they must
	// be sent on the one the read loop uses.
	enc := json.NewEncoder(conn)
	for i, name := range observed {
		if err := enc.Encode(ipcCommand{Command: []any{"observe_property", i + 1, name}}); err != nil {
			conn.Close()
			return fmt.Errorf("observe %s: %w", name, err)
		}
	}

	el.conn = conn
	el.listening = true
	go el.readLoop()

	el.logger.WithField("socket", el.socketPath).Info("mpv event listener started")
	return nil
}

// Stop terminates the event listener. It is idempotent.
func (el *EventListener) Stop() {
	el.mu.Lock()
	if !el.listening {
		el.mu.Unlock()
		return
	}
	el.listening = false
	conn := el.conn
	el.mu.Unlock()

	conn.Close()
	<-el.done
}

// readLoop reads newline-delimited events until the connection closes.
func (el *EventListener) readLoop() {
	defer close(el.done)

	scanner := bufio.NewScanner(el.conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	for scanner.Scan() {
		el.processEvent(scanner.Bytes())
	}

	el.mu.Lock()
	stopped := !el.listening
	el.listening = false
	el.mu.Unlock()

	if stopped {
		return
	}
	if err := scanner.Err(); err != nil {
		el.logger.WithError(err).Warn("event listener read error")
	}
	if el.onClose != nil {
		el.onClose()
	}
}

// processEvent parses and dispatches a single mpv event line. Replies to
// commands and unparseable lines are skipped.
func (el *EventListener) processEvent(line []byte) {
	var msg ipcMessage
	if err := json.Unmarshal(line, &msg); err != nil || msg.Event == "" {
		return
	}

	if el.callback == nil {
		return
	}
	el.callback(Message{
		Event:  msg.Event,
		Name:   msg.Name,
		Data:   msg.Data,
		Reason: msg.Reason,
	})
}
