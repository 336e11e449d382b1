package finder

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Notice is a short user-facing message about a search or seek.
type Notice struct {
	Level   string    `json:"level"`
	Message string    `json:"message"`
	VideoID string    `json:"video_id,omitempty"`
	At      time.Time `json:"at"`
}

// Notifier shows notices to the user.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// Multi fans a notice out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(n Notice) {
	for _, x := range m {
		if x != nil {
			x.Notify(n)
		}
	}
}

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(n Notice) {
	level := slog.LevelInfo
	switch n.Level {
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	}
	l.Logger.Log(context.Background(), level, "notice", "message", n.Message, "video_id", n.VideoID)
}

const DefaultRecentSize = 20

// Recent keeps the last notices in a ring for status reporting.
type Recent struct {
	mu    sync.Mutex
	buf   []Notice
	next  int
	count int
}

func NewRecent(size int) *Recent {
	if size <= 0 {
		size = DefaultRecentSize
	}
	return &Recent{buf: make([]Notice, size)}
}

func (r *Recent) Notify(n Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = n
	r.next = (r.next + 1) % len(r.buf)
	if r.count < len(r.buf) {
		r.count++
	}
}

// List returns the stored notices newest first.
func (r *Recent) List() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notice, 0, r.count)
	for i := 1; i <= r.count; i++ {
		idx := (r.next - i + len(r.buf)) % len(r.buf)
		out = append(out, r.buf[idx])
	}
	return out
}

// Last returns the newest notice.
func (r *Recent) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return Notice{}, false
	}
	return r.buf[(r.next-1+len(r.buf))%len(r.buf)], true
}
