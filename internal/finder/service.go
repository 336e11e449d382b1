// Package finder runs a scene search for a library video and moves the
// player to the scene the backend found.
package finder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/scenelocate/scenelocate-agent/internal/library"
	"github.com/scenelocate/scenelocate-agent/internal/metrics"
	"github.com/scenelocate/scenelocate-agent/internal/search"
	"github.com/scenelocate/scenelocate-agent/internal/seek"
	"github.com/scenelocate/scenelocate-agent/internal/timestamp"
)

var (
	ErrNoVideo          = errors.New("please select a video file")
	ErrNoDescription    = errors.New("please enter a scene description")
	ErrNoScene          = errors.New("no valid timestamp to seek to")
	ErrInvalidTimestamp = errors.New("invalid timestamp format from backend")
	ErrVideoMissing     = errors.New("video file not available, please re-add the video")
)

// Library is the part of the video library the finder reads.
type Library interface {
	GetVideo(ctx context.Context, id string) (*library.Video, error)
	EnsureDuration(ctx context.Context, v *library.Video)
}

// History stores search outcomes.
type History interface {
	Begin(ctx context.Context, videoID, description string) (*library.SearchRecord, error)
	Finish(ctx context.Context, rec *library.SearchRecord) error
	LastFound(ctx context.Context) (*library.SearchRecord, error)
}

// Player opens files and exposes the handle seeks are applied to.
type Player interface {
	Handle() seek.Handle
	Load(ctx context.Context, path string) error
}

type Options struct {
	Library    Library
	History    History
	Search     search.Client
	Player     Player
	Reconciler *seek.Reconciler
	Notifier   Notifier
	Logger     *slog.Logger
}

type Service struct {
	library    Library
	history    History
	search     search.Client
	player     Player
	reconciler *seek.Reconciler
	notifier   Notifier
	logger     *slog.Logger
}

func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Notifier == nil {
		opts.Notifier = LogNotifier{Logger: opts.Logger}
	}
	return &Service{
		library:    opts.Library,
		history:    opts.History,
		search:     opts.Search,
		player:     opts.Player,
		reconciler: opts.Reconciler,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
	}
}

// Outcome is a search that found a scene. The seek to it runs in the
// background; WaitSeek blocks until it resolves.
type Outcome struct {
	Search *library.SearchRecord
	Result *search.Result
	Target int

	done chan struct{}
	once sync.Once
	err  error
}

func newOutcome(rec *library.SearchRecord, res *search.Result, target int) *Outcome {
	return &Outcome{Search: rec, Result: res, Target: target, done: make(chan struct{})}
}

func (o *Outcome) resolve(err error) {
	o.once.Do(func() {
		o.err = err
		close(o.done)
	})
}

// WaitSeek returns the seek result, or ctx's error if ctx ends first. It
// does not cancel the seek.
func (o *Outcome) WaitSeek(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SeekDone reports whether the seek has resolved, and its result.
func (o *Outcome) SeekDone() (bool, error) {
	select {
	case <-o.done:
		return true, o.err
	default:
		return false, nil
	}
}

// Search sends the video and description to the backend, records the
// outcome in history, and starts seeking the player to the found scene.
func (s *Service) Search(ctx context.Context, videoID, description string) (*Outcome, error) {
	videoID = strings.TrimSpace(videoID)
	description = strings.TrimSpace(description)
	if videoID == "" {
		s.notify(LevelError, "", ErrNoVideo.Error())
		return nil, ErrNoVideo
	}
	if description == "" {
		s.notify(LevelError, videoID, ErrNoDescription.Error())
		return nil, ErrNoDescription
	}

	video, err := s.library.GetVideo(ctx, videoID)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(video.Path)
	if err != nil {
		s.notify(LevelError, videoID, ErrVideoMissing.Error())
		return nil, fmt.Errorf("%w: %w", ErrVideoMissing, err)
	}
	defer f.Close()

	// The player starts demuxing while the backend works. If it is not
	// running the seek reports the missing handle later.
	if err := s.player.Load(ctx, video.Path); err != nil {
		s.logger.Warn("player could not load video", "video_id", videoID, "error", err)
	}

	rec, err := s.history.Begin(ctx, videoID, description)
	if err != nil {
		return nil, err
	}

	s.logger.Info("searching scene", "video_id", videoID, "search_id", rec.ID)

	start := time.Now()
	res, err := s.search.Search(ctx, search.Upload{
		Filename:    video.Name,
		ContentType: video.Type,
		Size:        video.Size,
		Body:        f,
	}, description)
	metrics.SearchDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		s.searchFailed(ctx, rec, err)
		return nil, err
	}

	rec.TimestampRaw = res.TimestampRaw
	rec.EndTimestampRaw = res.EndTimestampRaw
	rec.Similarity = res.Similarity
	rec.Category = res.BestCategory
	rec.CategoryScore = res.CategoryScore
	rec.Message = res.Message

	target, err := timestamp.Parse(res.TimestampRaw)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidTimestamp, err)
		s.finishFound(ctx, rec, err)
		s.notify(LevelError, videoID, "Invalid timestamp format from backend.")
		return nil, err
	}

	s.library.EnsureDuration(ctx, video)
	if video.HasDuration() && float64(target) > video.DurationSeconds {
		err = fmt.Errorf("%w: %s is past the end of %s", seek.ErrOutOfRange, res.TimestampRaw, video.Name)
		s.finishFound(ctx, rec, err)
		s.notify(LevelError, videoID, "Timestamp is out of video range.")
		return nil, err
	}

	rec.TargetSeconds = &target
	s.finishFound(ctx, rec, nil)
	s.notify(LevelInfo, videoID, fmt.Sprintf("Scene found at %s.", timestamp.Format(target)))

	out := newOutcome(rec, res, target)
	s.seek(videoID, target, out.resolve)
	return out, nil
}

func (s *Service) searchFailed(ctx context.Context, rec *library.SearchRecord, err error) {
	var respErr *search.ResponseError
	rec.Status = library.SearchStatusFailed
	rec.Error = err.Error()

	switch {
	case errors.As(err, &respErr) && respErr.NotFound():
		metrics.SearchesTotal.WithLabelValues("not_found").Inc()
		rec.Status = library.SearchStatusNotFound
		rec.Error = respErr.Message
		rec.Similarity = respErr.Similarity
		s.notify(LevelWarn, rec.VideoID, "Scene not found. Try a different description.")
	case errors.As(err, &respErr):
		metrics.SearchesTotal.WithLabelValues("failed").Inc()
		rec.Error = respErr.Message
		s.notify(LevelError, rec.VideoID, "Scene search failed: "+respErr.Message)
	case errors.Is(err, search.ErrNoResponse):
		metrics.SearchesTotal.WithLabelValues("unreachable").Inc()
		s.notify(LevelError, rec.VideoID, "Connection failed. Please check your backend server.")
	default:
		metrics.SearchesTotal.WithLabelValues("failed").Inc()
		s.notify(LevelError, rec.VideoID, "Scene search failed.")
	}

	s.logger.Warn("scene search failed", "video_id", rec.VideoID, "search_id", rec.ID, "error", err)

	// the request ctx may already be done, history still needs the outcome
	if err := s.history.Finish(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("failed to store search outcome", "search_id", rec.ID, "error", err)
	}
}

func (s *Service) finishFound(ctx context.Context, rec *library.SearchRecord, err error) {
	metrics.SearchesTotal.WithLabelValues("found").Inc()
	rec.Status = library.SearchStatusFound
	if err != nil {
		rec.Error = err.Error()
	}
	if err := s.history.Finish(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error("failed to store search outcome", "search_id", rec.ID, "error", err)
	}
}

// Jump moves the player to a typed timestamp. It replaces any seek still
// waiting on the player.
func (s *Service) Jump(ctx context.Context, raw string) error {
	target, err := timestamp.Parse(raw)
	if err != nil {
		s.notify(LevelError, "", "Invalid timestamp value.")
		return err
	}

	err = s.reconciler.Seek(ctx, s.player.Handle(), target)
	s.report("", target, err)
	return err
}

// JumpToLast reloads the video of the most recent found scene and seeks to it.
func (s *Service) JumpToLast(ctx context.Context) error {
	rec, err := s.history.LastFound(ctx)
	if err != nil {
		return err
	}
	if rec == nil || rec.TargetSeconds == nil {
		s.notify(LevelWarn, "", "No valid timestamp to seek to.")
		return ErrNoScene
	}

	video, err := s.library.GetVideo(ctx, rec.VideoID)
	if err != nil {
		return err
	}
	if err := s.player.Load(ctx, video.Path); err != nil {
		s.logger.Warn("player could not load video", "video_id", video.ID, "error", err)
	}

	err = s.reconciler.Seek(ctx, s.player.Handle(), *rec.TargetSeconds)
	s.report(video.ID, *rec.TargetSeconds, err)
	return err
}

// seek hands target to the reconciler without waiting for it.
func (s *Service) seek(videoID string, target int, done func(error)) {
	s.reconciler.Reconcile(s.player.Handle(), target, func(err error) {
		s.report(videoID, target, err)
		done(err)
	})
}

// report turns a seek result into a notice. Superseded and abandoned
// requests stay silent.
func (s *Service) report(videoID string, target int, err error) {
	switch {
	case err == nil:
		s.notify(LevelInfo, videoID, "Jumped to "+timestamp.Format(target))
	case errors.Is(err, seek.ErrCanceled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	case errors.Is(err, seek.ErrOutOfRange):
		s.notify(LevelError, videoID, "Timestamp is beyond video duration.")
	case errors.Is(err, seek.ErrHandleUnavailable):
		s.notify(LevelError, videoID, "No media player is running.")
	case errors.Is(err, seek.ErrTimeout):
		s.notify(LevelError, videoID, "Could not seek: the video did not finish loading.")
	default:
		s.notify(LevelError, videoID, "Seek failed.")
	}
}

func (s *Service) notify(level, videoID, msg string) {
	s.notifier.Notify(Notice{Level: level, Message: msg, VideoID: videoID, At: time.Now()})
}

// ObserveSeek records a resolved seek request in metrics. It is meant as
// the reconciler's OnResolve hook.
func ObserveSeek(req seek.Request, attempts int, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, seek.ErrOutOfRange):
		outcome = "out_of_range"
	case errors.Is(err, seek.ErrTimeout):
		outcome = "timeout"
	case errors.Is(err, seek.ErrHandleUnavailable):
		outcome = "unavailable"
	case errors.Is(err, seek.ErrCanceled):
		outcome = "canceled"
	default:
		outcome = "error"
	}
	metrics.SeeksTotal.WithLabelValues(outcome).Inc()
	metrics.SeekAttempts.Observe(float64(attempts))
}
