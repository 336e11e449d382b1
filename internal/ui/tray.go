// Package ui shows the agent in the system tray: backend and player status,
// the latest notice, and a shortcut to jump back to the last found scene.
package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/scenelocate/scenelocate-agent/internal/finder"
	"github.com/scenelocate/scenelocate-agent/internal/search"
)

const (
	refreshInterval = 30 * time.Second
	jumpTimeout     = 30 * time.Second
	maxNoticeLen    = 60
)

// Jumper moves the player back to the last found scene.
type Jumper interface {
	JumpToLast(ctx context.Context) error
}

type BackendHealth interface {
	Get(ctx context.Context) search.Health
}

type PlayerStatus interface {
	Connected() bool
}

type VideoCounter interface {
	CountVideos(ctx context.Context) (int, error)
}

type Tray struct {
	finder  Jumper
	health  BackendHealth
	player  PlayerStatus
	library VideoCounter
	logger  *slog.Logger

	statusItem  *systray.MenuItem
	videosItem  *systray.MenuItem
	noticeItem  *systray.MenuItem
	jumpItem    *systray.MenuItem
	refreshItem *systray.MenuItem

	mu     sync.Mutex
	ready  bool
	notice *finder.Notice

	onQuit func()
	stop   chan struct{}
}

type TrayConfig struct {
	Finder  Jumper
	Health  BackendHealth
	Player  PlayerStatus
	Library VideoCounter
	Logger  *slog.Logger
	OnQuit  func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		finder:  cfg.Finder,
		health:  cfg.Health,
		player:  cfg.Player,
		library: cfg.Library,
		logger:  cfg.Logger,
		onQuit:  cfg.OnQuit,
		stop:    make(chan struct{}),
	}
}

// SetFinder wires the jump action. Call before Run.
func (t *Tray) SetFinder(f Jumper) {
	t.finder = f
}

// SetOnQuit sets the callback for the Quit item. Call before Run.
func (t *Tray) SetOnQuit(fn func()) {
	t.onQuit = fn
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("SceneLocate")
	systray.SetTooltip("SceneLocate Agent")

	t.statusItem = systray.AddMenuItem("Status: checking...", "Backend and player status")
	t.statusItem.Disable()

	t.videosItem = systray.AddMenuItem("Videos: 0", "Videos in the library")
	t.videosItem.Disable()

	t.noticeItem = systray.AddMenuItem("No recent activity", "Latest search or seek message")
	t.noticeItem.Disable()

	systray.AddSeparator()

	t.jumpItem = systray.AddMenuItem("Jump to Last Scene", "Seek the player to the last found scene")
	t.refreshItem = systray.AddMenuItem("Refresh Status", "Check the backend again")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit SceneLocate Agent")

	t.mu.Lock()
	t.ready = true
	pending := t.notice
	t.mu.Unlock()
	if pending != nil {
		t.noticeItem.SetTitle(noticeTitle(*pending))
	}

	go t.refreshLoop()

	go func() {
		for {
			select {
			case <-t.jumpItem.ClickedCh:
				go t.handleJump()
			case <-t.refreshItem.ClickedCh:
				go t.refresh()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	close(t.stop)
	t.logger.Info("system tray exiting")
}

func (t *Tray) refreshLoop() {
	t.refresh()
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.refresh()
		case <-t.stop:
			return
		}
	}
}

func (t *Tray) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var h search.Health
	if t.health != nil {
		h = t.health.Get(ctx)
	}
	connected := t.player != nil && t.player.Connected()
	t.UpdateStatus(statusTitle(h, connected))

	if t.library != nil {
		if n, err := t.library.CountVideos(ctx); err == nil {
			t.UpdateVideosCount(n)
		}
	}
}

func (t *Tray) handleJump() {
	if t.finder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), jumpTimeout)
	defer cancel()
	// the finder reports the outcome as a notice
	if err := t.finder.JumpToLast(ctx); err != nil {
		t.logger.Warn("jump to last scene failed", "error", err)
	}
}

// Notify shows n as the latest notice. Notices that arrive before the tray is
// ready are shown once it is.
func (t *Tray) Notify(n finder.Notice) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.notice = &n
	if t.ready {
		t.noticeItem.SetTitle(noticeTitle(n))
	}
}

func (t *Tray) UpdateStatus(status string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ready {
		t.statusItem.SetTitle(status)
	}
}

func (t *Tray) UpdateVideosCount(count int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ready {
		t.videosItem.SetTitle(fmt.Sprintf("Videos: %d", count))
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}

func statusTitle(h search.Health, playerConnected bool) string {
	backend := "backend offline"
	if h.Reachable {
		backend = "backend online"
	}
	player := "no player"
	if playerConnected {
		player = "player connected"
	}
	return "Status: " + backend + ", " + player
}

func noticeTitle(n finder.Notice) string {
	msg := n.Message
	if r := []rune(msg); len(r) > maxNoticeLen {
		msg = string(r[:maxNoticeLen-3]) + "..."
	}
	switch n.Level {
	case finder.LevelError:
		return "Error: " + msg
	case finder.LevelWarn:
		return "Warning: " + msg
	default:
		return msg
	}
}
