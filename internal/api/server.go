// Package api serves the agent's loopback HTTP API: library management,
// scene searches, manual jumps, search history and video streaming.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/scenelocate/scenelocate-agent/internal/finder"
	"github.com/scenelocate/scenelocate-agent/internal/library"
	"github.com/scenelocate/scenelocate-agent/internal/playback"
	"github.com/scenelocate/scenelocate-agent/internal/search"
)

// SceneFinder runs searches and jumps the player.
type SceneFinder interface {
	Search(ctx context.Context, videoID, description string) (*finder.Outcome, error)
	Jump(ctx context.Context, raw string) error
	JumpToLast(ctx context.Context) error
}

// SearchHistory lists past searches.
type SearchHistory interface {
	List(ctx context.Context, videoID string, limit int) ([]*library.SearchRecord, error)
}

// BackendHealth reports whether the inference backend answers.
type BackendHealth interface {
	Get(ctx context.Context) search.Health
}

// PlayerStatus reports whether a media player is attached.
type PlayerStatus interface {
	Connected() bool
}

// SeekState reports whether a seek is still waiting on the player.
type SeekState interface {
	Pending() bool
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Port           int
	Version        string
	Library        library.LibraryService
	History        SearchHistory
	Finder         SceneFinder
	PlaybackServer playback.PlaybackService
	Repository     ConfigStore
	Health         BackendHealth
	Player         PlayerStatus
	Seeks          SeekState
	Notices        *finder.Recent
	Logger         *slog.Logger
	StartTime      time.Time
	DeviceID       string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
