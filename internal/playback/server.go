// Package playback streams library videos over HTTP with byte-range support
// so a browser or player can scrub without downloading the whole file.
package playback

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
)

var ErrNotFound = errors.New("video file not found")

type PlaybackService interface {
	ServeFile(w http.ResponseWriter, r *http.Request, filePath, contentType string) error
}

type Server struct {
	logger *slog.Logger
}

func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Server{logger: logger}
}

// ServeFile writes filePath to w, honoring Range and conditional request
// headers. A missing file returns ErrNotFound before anything is written.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, filePath, contentType string) error {
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, filePath)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if !stat.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrNotFound, filePath)
	}

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Accept-Ranges", "bytes")

	s.logger.Debug("serving video", "path", filePath, "size", stat.Size(), "range", r.Header.Get("Range"))
	http.ServeContent(w, r, filepath.Base(filePath), stat.ModTime(), file)
	return nil
}
