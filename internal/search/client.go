// Package search talks to the scene search backend: it uploads a video with
// a free-text scene description and returns the position the backend found.
package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrNoResponse marks a request that never produced an HTTP response
// (connection refused, reset, DNS failure).
var ErrNoResponse = errors.New("no response from search backend")

const (
	defaultNotFoundMessage = "scene not found in this clip"
	defaultFailedMessage   = "error processing video"
)

// Upload is the video sent with a search.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Result is a successful backend response. TimestampRaw is not parsed here.
type Result struct {
	Message         string  `json:"message"`
	TimestampRaw    string  `json:"timestamp"`
	EndTimestampRaw string  `json:"end_timestamp"`
	BestCategory    string  `json:"best_category"`
	CategoryScore   float64 `json:"category_score"`
	Similarity      float64 `json:"similarity"`
}

// ResponseError is a non-2xx answer from the backend.
type ResponseError struct {
	StatusCode int
	Message    string
	Similarity float64
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("search backend: HTTP %d: %s", e.StatusCode, e.Message)
}

// NotFound reports whether the backend searched the clip and found no
// matching scene.
func (e *ResponseError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err is a not-found answer from the backend.
func IsNotFound(err error) bool {
	var re *ResponseError
	return errors.As(err, &re) && re.NotFound()
}

// Client is the scene search backend.
type Client interface {
	Search(ctx context.Context, video Upload, description string) (*Result, error)
	Ping(ctx context.Context) error
}
