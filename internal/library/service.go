package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/scenelocate/scenelocate-agent/internal/metrics"
)

var (
	ErrNotFound    = errors.New("video not found")
	ErrNotVideo    = errors.New("not a supported video file")
	ErrNotFile     = errors.New("path is not a regular file")
	ErrNoSelection = errors.New("no videos selected")
	// ErrAlreadySaved is a second entry for a path the library already holds.
	ErrAlreadySaved = errors.New("video already saved at this path")
)

// Prober reports the playable length of a media file in seconds.
type Prober interface {
	Duration(ctx context.Context, path string) (float64, error)
}

type LibraryService interface {
	AddVideo(ctx context.Context, path string) (*Video, bool, error)
	GetVideo(ctx context.Context, id string) (*Video, error)
	ListVideos(ctx context.Context, query string) ([]*Video, error)
	RemoveVideos(ctx context.Context, ids []string) (int64, error)
	CountVideos(ctx context.Context) (int, error)
}

type Service struct {
	repo       Repository
	prober     Prober
	maxEntries int
	logger     *slog.Logger
}

// NewService builds the library service. prober may be nil; maxEntries <= 0
// keeps every entry.
func NewService(repo Repository, prober Prober, maxEntries int, logger *slog.Logger) *Service {
	return &Service{repo: repo, prober: prober, maxEntries: maxEntries, logger: logger}
}

// AddVideo saves a video file to the library. A file already saved under the
// same name and size is not added twice: the existing entry is returned with
// created set to false. A saved path whose file changed since is refreshed in
// place, duration included.
func (s *Service) AddVideo(ctx context.Context, path string) (*Video, bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, false, fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, false, fmt.Errorf("path does not exist: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, false, fmt.Errorf("%w: %s", ErrNotFile, absPath)
	}
	name := filepath.Base(absPath)
	if !IsVideoFile(name) {
		return nil, false, fmt.Errorf("%w: %s", ErrNotVideo, name)
	}

	existing, err := s.repo.FindVideo(ctx, name, info.Size())
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		if s.logger != nil {
			s.logger.Info("video already saved", "video_id", existing.ID, "name", name)
		}
		return existing, false, nil
	}

	changed, err := s.repo.GetVideoByPath(ctx, absPath)
	if err != nil {
		return nil, false, err
	}
	if changed != nil {
		changed.Size = info.Size()
		changed.Type = ContentType(name)
		changed.DurationSeconds = s.probe(ctx, absPath)
		if err := s.repo.UpdateVideoFile(ctx, changed); err != nil {
			return nil, false, err
		}
		if s.logger != nil {
			s.logger.Info("video changed on disk, entry refreshed",
				"video_id", changed.ID, "size", changed.Size, "duration", changed.DurationSeconds)
		}
		return changed, false, nil
	}

	video := &Video{
		ID:        NewID(),
		Name:      name,
		Path:      absPath,
		Size:      info.Size(),
		Type:      ContentType(name),
		CreatedAt: time.Now(),
	}
	video.DurationSeconds = s.probe(ctx, absPath)

	if err := s.repo.CreateVideo(ctx, video); err != nil {
		return nil, false, err
	}

	if s.logger != nil {
		s.logger.Info("video saved", "video_id", video.ID, "name", name, "size", video.Size)
	}

	s.prune(ctx)
	s.updateGauge(ctx)
	return video, true, nil
}

func (s *Service) probe(ctx context.Context, path string) float64 {
	if s.prober == nil {
		return 0
	}
	d, err := s.prober.Duration(ctx, path)
	if err != nil {
		if s.logger != nil {
			s.logger.Debug("duration probe failed", "path", path, "error", err)
		}
		return 0
	}
	return d
}

// prune drops the oldest entries beyond the configured cap. Failure only
// costs disk space, so it is logged and not returned.
func (s *Service) prune(ctx context.Context) {
	if s.maxEntries <= 0 {
		return
	}
	n, err := s.repo.PruneVideos(ctx, s.maxEntries)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("failed to prune library", "error", err)
		}
		return
	}
	if n > 0 {
		metrics.LibraryPrunedTotal.Add(float64(n))
		if s.logger != nil {
			s.logger.Info("pruned library", "removed", n, "kept", s.maxEntries)
		}
	}
}

func (s *Service) updateGauge(ctx context.Context) {
	if n, err := s.repo.CountVideos(ctx); err == nil {
		metrics.LibraryVideos.Set(float64(n))
	}
}

func (s *Service) GetVideo(ctx context.Context, id string) (*Video, error) {
	v, err := s.repo.GetVideo(ctx, id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v, nil
}

// EnsureDuration probes v again when its duration is still unknown and
// stores the result.
func (s *Service) EnsureDuration(ctx context.Context, v *Video) {
	if v.HasDuration() {
		return
	}
	d := s.probe(ctx, v.Path)
	if d <= 0 {
		return
	}
	v.DurationSeconds = d
	if err := s.repo.UpdateVideoDuration(ctx, v.ID, d); err != nil && s.logger != nil {
		s.logger.Warn("failed to store duration", "video_id", v.ID, "error", err)
	}
}

func (s *Service) ListVideos(ctx context.Context, query string) ([]*Video, error) {
	return s.repo.ListVideos(ctx, query)
}

func (s *Service) RemoveVideos(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, ErrNoSelection
	}
	n, err := s.repo.DeleteVideos(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to remove videos: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("videos removed", "requested", len(ids), "removed", n)
	}
	s.updateGauge(ctx)
	return n, nil
}

func (s *Service) CountVideos(ctx context.Context) (int, error) {
	return s.repo.CountVideos(ctx)
}

// SyncMetrics publishes the current library size.
func (s *Service) SyncMetrics(ctx context.Context) {
	s.updateGauge(ctx)
}
