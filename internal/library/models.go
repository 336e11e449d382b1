package library

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Video is a saved library entry. Only the path is kept; the agent never
// copies video bytes.
type Video struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Path            string    `json:"path"`
	Size            int64     `json:"size"`
	Type            string    `json:"type"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// HasDuration reports whether the duration was probed successfully.
func (v *Video) HasDuration() bool {
	return v.DurationSeconds > 0
}

const (
	SearchStatusPending  = "pending"
	SearchStatusFound    = "found"
	SearchStatusNotFound = "not_found"
	SearchStatusFailed   = "failed"
)

// SearchRecord is one scene description sent to the backend for a video.
type SearchRecord struct {
	ID              string    `json:"id"`
	VideoID         string    `json:"video_id"`
	Description     string    `json:"description"`
	Status          string    `json:"status"`
	TimestampRaw    string    `json:"timestamp,omitempty"`
	EndTimestampRaw string    `json:"end_timestamp,omitempty"`
	TargetSeconds   *int      `json:"target_seconds,omitempty"`
	Similarity      float64   `json:"similarity,omitempty"`
	Category        string    `json:"category,omitempty"`
	CategoryScore   float64   `json:"category_score,omitempty"`
	Message         string    `json:"message,omitempty"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ConfigEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

var VideoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
}

func NewID() string {
	return uuid.NewString()
}

func IsVideoFile(filename string) bool {
	_, ok := VideoExtensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// ContentType returns the MIME type for a video filename, or
// application/octet-stream when the extension is unknown.
func ContentType(filename string) string {
	if t, ok := VideoExtensions[strings.ToLower(filepath.Ext(filename))]; ok {
		return t
	}
	return "application/octet-stream"
}
