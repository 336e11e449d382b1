// Package player controls an external mpv process over its JSON IPC socket.
//
// mpv reads one JSON object per line and answers each command with a line
// carrying the same request_id. Event lines are interleaved with replies and
// carry an "event" field instead.
package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scenelocate/scenelocate-agent/internal/seek"
)

var (
	ErrClosed              = errors.New("player connection closed")
	ErrPropertyUnavailable = errors.New("property unavailable")
)

const (
	statusSuccess     = "success"
	statusUnavailable = "property unavailable"

	// DefaultQueryTimeout bounds a single property read made by State.
	DefaultQueryTimeout = time.Second
)

// CommandError is a non-success status returned by mpv for a command.
type CommandError struct {
	Command string
	Status  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("mpv %s: %s", e.Command, e.Status)
}

func (e *CommandError) Is(target error) bool {
	return target == ErrPropertyUnavailable && e.Status == statusUnavailable
}

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

type reply struct {
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	RequestID *int64          `json:"request_id"`
	Event     string          `json:"event"`
}

// Client is one IPC connection to mpv. It is safe for concurrent use.
type Client struct {
	conn         net.Conn
	logger       *slog.Logger
	queryTimeout time.Duration

	writeMu sync.Mutex
	nextID  atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan reply
	err     error
	done    chan struct{}
}

// Dial connects to the mpv IPC socket at path.
func Dial(ctx context.Context, path string, logger *slog.Logger) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("dial mpv socket %s: %w", path, err)
	}
	return newClient(conn, logger), nil
}

func newClient(conn net.Conn, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Client{
		conn:         conn,
		logger:       logger,
		queryTimeout: DefaultQueryTimeout,
		pending:      make(map[int64]chan reply),
		done:         make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Client) readLoop() {
	r := bufio.NewReader(c.conn)
	var err error
	for {
		var line []byte
		line, err = r.ReadBytes('\n')
		if len(line) > 0 {
			c.dispatch(line)
		}
		if err != nil {
			break
		}
	}
	c.shutdown(fmt.Errorf("%w: %w", ErrClosed, err))
}

func (c *Client) dispatch(line []byte) {
	var rep reply
	if err := json.Unmarshal(line, &rep); err != nil {
		c.logger.Debug("ignoring malformed mpv line", "error", err)
		return
	}
	if rep.Event != "" {
		c.logger.Debug("mpv event", "event", rep.Event)
		return
	}
	if rep.RequestID == nil {
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[*rep.RequestID]
	delete(c.pending, *rep.RequestID)
	c.mu.Unlock()

	if ok {
		ch <- rep
	}
}

func (c *Client) shutdown(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = err
	close(c.done)
	c.pending = make(map[int64]chan reply)
}

// Closed reports whether the connection has gone away.
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Client) Close() error {
	err := c.conn.Close()
	c.shutdown(ErrClosed)
	return err
}

// Command sends an mpv command and waits for its reply.
func (c *Client) Command(ctx context.Context, args ...any) (json.RawMessage, error) {
	if len(args) == 0 {
		return nil, errors.New("empty mpv command")
	}
	id := c.nextID.Add(1)
	ch := make(chan reply, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	data, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("encode mpv command: %w", err)
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
	}
	_, err = c.conn.Write(data)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("write mpv command: %w", err)
	}

	select {
	case rep := <-ch:
		if rep.Error != statusSuccess {
			return nil, &CommandError{Command: fmt.Sprint(args[0]), Status: rep.Error}
		}
		return rep.Data, nil
	case <-c.done:
		return nil, c.closeErr()
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// GetProperty reads a property into v.
func (c *Client) GetProperty(ctx context.Context, name string, v any) error {
	data, err := c.Command(ctx, "get_property", name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// Load replaces the current file and starts playing path.
func (c *Client) Load(ctx context.Context, path string) error {
	_, err := c.Command(ctx, "loadfile", path, "replace")
	return err
}

// State reads the loaded clip's duration and whether a file is active.
// A duration mpv has not determined yet is reported as unknown.
func (c *Client) State() seek.PlaybackState {
	ctx, cancel := context.WithTimeout(context.Background(), c.queryTimeout)
	defer cancel()

	var st seek.PlaybackState

	var idle bool
	if err := c.GetProperty(ctx, "idle-active", &idle); err != nil {
		c.logger.Debug("idle-active unavailable", "error", err)
		return st
	}
	st.Ready = !idle

	var duration float64
	if err := c.GetProperty(ctx, "duration", &duration); err != nil {
		if !errors.Is(err, ErrPropertyUnavailable) {
			c.logger.Debug("duration query failed", "error", err)
		}
		return st
	}
	st.Duration = duration
	st.DurationKnown = duration > 0
	return st
}

// SeekTo moves playback to an absolute position.
func (c *Client) SeekTo(seconds int) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.queryTimeout)
	defer cancel()
	_, err := c.Command(ctx, "seek", seconds, "absolute")
	return err
}
