package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/scenelocate/scenelocate-agent/internal/seek"
)

var ErrNotRunning = errors.New("no media player is running")

const (
	dialTimeout   = 500 * time.Millisecond
	launchTimeout = 5 * time.Second
	launchPoll    = 50 * time.Millisecond
)

// Controller owns the connection to the player. It reconnects lazily, and
// when an mpv binary is configured it starts the player on demand.
type Controller struct {
	socket  string
	mpvPath string
	logger  *slog.Logger

	mu     sync.Mutex
	client *Client
	cmd    *exec.Cmd
	exited chan struct{}
}

func NewController(socket, mpvPath string, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{socket: socket, mpvPath: mpvPath, logger: logger}
}

func (c *Controller) Socket() string {
	return c.socket
}

// Handle returns the current player connection, or nil when no player is
// reachable. It never starts a player.
func (c *Controller) Handle() seek.Handle {
	c.mu.Lock()
	defer c.mu.Unlock()

	client, err := c.connectLocked(context.Background())
	if err != nil {
		return nil
	}
	return client
}

// Connected reports whether a player answered on the socket.
func (c *Controller) Connected() bool {
	return c.Handle() != nil
}

// Load opens path in the player, starting mpv first if it is configured and
// not running.
func (c *Controller) Load(ctx context.Context, path string) error {
	c.mu.Lock()
	client, err := c.connectLocked(ctx)
	if err != nil && c.mpvPath != "" {
		client, err = c.launchLocked(ctx)
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if err := client.Load(ctx, path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	c.logger.Info("player loading file", "path", path)
	return nil
}

func (c *Controller) connectLocked(ctx context.Context) (*Client, error) {
	if c.client != nil && !c.client.Closed() {
		return c.client, nil
	}
	c.client = nil

	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	client, err := Dial(ctx, c.socket, c.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotRunning, err)
	}
	c.logger.Debug("connected to player", "socket", c.socket)
	c.client = client
	return client, nil
}

func (c *Controller) launchLocked(ctx context.Context) (*Client, error) {
	if c.launchedRunning() {
		// launched earlier and still starting up
		return c.waitLocked(ctx)
	}

	cmd, err := Launch(c.mpvPath, c.socket)
	if err != nil {
		return nil, err
	}
	exited := make(chan struct{})
	c.cmd = cmd
	c.exited = exited
	c.logger.Info("started media player", "path", c.mpvPath, "pid", cmd.Process.Pid, "socket", c.socket)

	go func() {
		err := cmd.Wait()
		close(exited)
		c.logger.Info("media player exited", "error", err)
	}()

	return c.waitLocked(ctx)
}

func (c *Controller) waitLocked(ctx context.Context) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, launchTimeout)
	defer cancel()

	ticker := time.NewTicker(launchPoll)
	defer ticker.Stop()

	for {
		if client, err := c.connectLocked(ctx); err == nil {
			return client, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: player did not open %s", ErrNotRunning, c.socket)
		case <-ticker.C:
		}
	}
}

// Close drops the connection and stops a player this controller started.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	if c.client != nil {
		err = c.client.Close()
		c.client = nil
	}
	if c.launchedRunning() {
		_ = c.cmd.Process.Signal(os.Interrupt)
	}
	return err
}

func (c *Controller) launchedRunning() bool {
	if c.cmd == nil {
		return false
	}
	select {
	case <-c.exited:
		return false
	default:
		return true
	}
}

// Launch starts mpv idle with its IPC server on socket. The caller owns the
// returned process.
func Launch(mpvPath, socket string) (*exec.Cmd, error) {
	bin, err := exec.LookPath(mpvPath)
	if err != nil {
		return nil, fmt.Errorf("mpv not found: %w", err)
	}
	_ = os.Remove(socket)

	cmd := exec.Command(bin,
		"--idle=yes",
		"--force-window=yes",
		"--keep-open=yes",
		"--input-ipc-server="+socket,
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mpv: %w", err)
	}
	return cmd, nil
}
