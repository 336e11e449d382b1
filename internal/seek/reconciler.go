// Package seek moves a media player to a target position, retrying while the
// player has not yet reported the duration of the loaded clip.
//
// A Reconciler serves a single player handle. It keeps at most one request
// outstanding: starting a new request stops the pending retry timer of the
// previous one, so a stale retry can never override a newer target.
package seek

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrHandleUnavailable = errors.New("playback handle unavailable")
	ErrOutOfRange        = errors.New("timestamp out of video range")
	ErrTimeout           = errors.New("could not seek: player did not report a duration")
	ErrCanceled          = errors.New("seek canceled")
)

const (
	DefaultMaxAttempts = 20
	DefaultRetryDelay  = 500 * time.Millisecond
)

// PlaybackState is the part of a player's state the reconciler reads.
type PlaybackState struct {
	Duration      float64
	DurationKnown bool
	Ready         bool
}

// Handle is a player that can report its state and jump to a position.
type Handle interface {
	State() PlaybackState
	SeekTo(seconds int) error
}

// Timer is a scheduled callback that can be stopped before it fires.
type Timer interface {
	Stop() bool
}

// Scheduler defers callbacks. The zero Config uses time.AfterFunc.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Request is one seek operation. It is discarded once resolved.
type Request struct {
	Target            int
	AttemptsRemaining int
}

// Config holds the retry budget shared by every request of a Reconciler.
type Config struct {
	MaxAttempts int
	RetryDelay  time.Duration
	Scheduler   Scheduler
	Logger      *slog.Logger
	// OnResolve, if set, observes every resolved request.
	OnResolve func(req Request, attempts int, err error)
}

type pending struct {
	req      Request
	handle   Handle
	done     func(error)
	timer    Timer
	attempts int
}

// Reconciler drives one player handle to requested positions.
type Reconciler struct {
	maxAttempts int
	retryDelay  time.Duration
	scheduler   Scheduler
	logger      *slog.Logger
	onResolve   func(Request, int, error)

	mu      sync.Mutex
	current *pending
}

func NewReconciler(cfg Config) *Reconciler {
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = realScheduler{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		scheduler:   cfg.Scheduler,
		logger:      cfg.Logger,
		onResolve:   cfg.OnResolve,
	}
}

// Timeout is the longest a request waits for the player before giving up.
func (r *Reconciler) Timeout() time.Duration {
	return time.Duration(r.maxAttempts) * r.retryDelay
}

// Reconcile starts moving handle to target and reports the outcome to done
// exactly once. The first attempt runs before Reconcile returns. Any request
// still outstanding is resolved with ErrCanceled.
func (r *Reconciler) Reconcile(handle Handle, target int, done func(error)) {
	r.start(handle, target, done)
}

// Seek is the blocking form of Reconcile. If ctx ends first the request is
// canceled and ctx's error is returned.
func (r *Reconciler) Seek(ctx context.Context, handle Handle, target int) error {
	result := make(chan error, 1)
	p := r.start(handle, target, func(err error) { result <- err })

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		r.cancel(p)
		return ctx.Err()
	}
}

// Cancel stops the outstanding request, if any, and resolves it with
// ErrCanceled. A request whose SeekTo call is already running is left to
// finish.
func (r *Reconciler) Cancel() {
	r.cancel(nil)
}

func (r *Reconciler) start(handle Handle, target int, done func(error)) *pending {
	if done == nil {
		done = func(error) {}
	}

	p := &pending{
		req:    Request{Target: target, AttemptsRemaining: r.maxAttempts},
		handle: handle,
		done:   done,
	}

	r.mu.Lock()
	prev := r.supersede()
	r.current = p
	r.mu.Unlock()

	if prev != nil {
		r.finish(prev, ErrCanceled)
	}
	r.attempt(p)
	return p
}

// cancel resolves only if p is still current; nil p matches any request.
func (r *Reconciler) cancel(p *pending) {
	r.mu.Lock()
	if r.current == nil || (p != nil && r.current != p) {
		r.mu.Unlock()
		return
	}
	prev := r.supersede()
	r.mu.Unlock()

	r.finish(prev, ErrCanceled)
}

// Pending reports whether a request is outstanding.
func (r *Reconciler) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current != nil
}

// supersede detaches the current request and stops its timer. Callers hold mu.
func (r *Reconciler) supersede() *pending {
	prev := r.current
	if prev == nil {
		return nil
	}
	if prev.timer != nil {
		prev.timer.Stop()
		prev.timer = nil
	}
	r.current = nil
	return prev
}

// attempt runs one poll of p. The handle is called without holding mu, so a
// slow player never blocks Cancel or a newer request; a request replaced
// while its poll was in flight is dropped when the poll returns.
func (r *Reconciler) attempt(p *pending) {
	r.mu.Lock()
	if r.current != p {
		// superseded or canceled before the timer callback ran
		r.mu.Unlock()
		return
	}
	p.timer = nil
	r.mu.Unlock()

	var state PlaybackState
	if p.handle != nil && p.req.Target >= 0 {
		state = p.handle.State()
	}

	r.mu.Lock()
	if r.current != p {
		r.mu.Unlock()
		return
	}
	p.attempts++

	var err error
	switch {
	case p.handle == nil:
		err = ErrHandleUnavailable
	case p.req.Target < 0:
		err = fmt.Errorf("%w: target %ds is negative", ErrOutOfRange, p.req.Target)
	case !state.Ready || !state.DurationKnown:
		if p.req.AttemptsRemaining > 0 {
			p.req.AttemptsRemaining--
			r.logger.Debug("player not ready, retrying seek",
				"target", p.req.Target,
				"attempts_remaining", p.req.AttemptsRemaining,
				"delay", r.retryDelay,
			)
			p.timer = r.scheduler.AfterFunc(r.retryDelay, func() { r.attempt(p) })
			r.mu.Unlock()
			return
		}
		err = ErrTimeout
	case float64(p.req.Target) > state.Duration:
		err = fmt.Errorf("%w: target %ds exceeds duration %.1fs", ErrOutOfRange, p.req.Target, state.Duration)
	}
	// from here on the request can no longer be canceled
	r.current = nil
	r.mu.Unlock()

	if err == nil {
		if seekErr := p.handle.SeekTo(p.req.Target); seekErr != nil {
			err = fmt.Errorf("seek to %ds: %w", p.req.Target, seekErr)
		}
	}
	r.finish(p, err)
}

func (r *Reconciler) finish(p *pending, err error) {
	switch {
	case err == nil:
		r.logger.Info("seek completed", "target", p.req.Target, "attempts", p.attempts)
	case errors.Is(err, ErrCanceled):
		r.logger.Debug("seek superseded", "target", p.req.Target)
	default:
		r.logger.Warn("seek failed", "target", p.req.Target, "attempts", p.attempts, "error", err)
	}
	if r.onResolve != nil {
		r.onResolve(p.req, p.attempts, err)
	}
	p.done(err)
}
