package player

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"
)

// ipcCommand is the JSON structure sent to mpv's IPC socket.
type ipcCommand struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id,omitempty"`
}

// ipcMessage is any line received from mpv's IPC socket: a reply carries
// request_id, an event carries event.
type ipcMessage struct {
	Data      any    `json:"data"`
	Error     string `json:"error"`
	RequestID int64  `json:"request_id"`
	Event     string `json:"event"`
	Name      string `json:"name"`
	ID        int64  `json:"id"`
	Reason    string `json:"reason"`
}

const (
	maxRetries   = 3
	retryDelay   = 100 * time.Millisecond
	dialTimeout  = time.Second
	readDeadline = 1 * time.Second
	maxLineSize  = 1 << 20
)

// ErrUnavailable is mpv's "property unavailable": the property exists but
// has no value right now, typically because nothing is loaded.
var ErrUnavailable = errors.New("property unavailable")

// mpvError is a failure reported by mpv itself, as opposed to a transport failure.
type mpvError string

func (e mpvError) Error() string {
	return "mpv error: " + string(e)
}

func (e mpvError) Is(target error) bool {
	return target == ErrUnavailable && string(e) == "property unavailable"
}

// client sends JSON-IPC commands over short-lived connections.
type client struct {
	socketPath string
	seq        atomic.Int64
}

func newClient(socketPath string) *client {
	return &client{socketPath: socketPath}
}

// command sends a JSON-IPC command to mpv and returns the reply data.
// Transport failures are retried; errors reported by mpv are not.
func (c *client) command(args ...any) (any, error) {
	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)
		}

		result, err := doSendCommand(c.socketPath, c.seq.Add(1), args)
		if err == nil {
			return result, nil
		}
		var reported mpvError
		if errors.As(err, &reported) {
			return nil, err
		}
		lastErr = err
	}

	return nil, fmt.Errorf("ipc command failed after %d attempts: %w", maxRetries, lastErr)
}

// doSendCommand performs a single IPC command attempt. Events broadcast on the
// connection before the reply are skipped.
func doSendCommand(socketPath string, id int64, command []any) (any, error) {
	conn, err := net.DialTimeout("unix", socketPath, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	payload, err := json.Marshal(ipcCommand{Command: command, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	// mpv requires newline-delimited JSON
	if _, err = conn.Write(append(payload, '\n')); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			return nil, fmt.Errorf("unmarshal: %w", err)
		}
		if msg.Event != "" || msg.RequestID != id {
			continue
		}
		if msg.Error != "" && msg.Error != "success" {
			return nil, mpvError(msg.Error)
		}
		return msg.Data, nil
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return nil, fmt.Errorf("read: connection closed before reply")
}
