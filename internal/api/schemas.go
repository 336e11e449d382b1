package api

import (
	"time"

	"github.com/scenelocate/scenelocate-agent/internal/finder"
	"github.com/scenelocate/scenelocate-agent/internal/library"
	"github.com/scenelocate/scenelocate-agent/internal/timestamp"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	State           string          `json:"state"`
	Backend         BackendStatus   `json:"backend"`
	PlayerConnected bool            `json:"player_connected"`
	SeekPending     bool            `json:"seek_pending"`
	VideosCount     int             `json:"videos_count"`
	LastNotice      *finder.Notice  `json:"last_notice,omitempty"`
	Notices         []finder.Notice `json:"notices"`
}

type BackendStatus struct {
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
	CheckedAt string `json:"checked_at,omitempty"`
}

type AddVideoRequest struct {
	Path string `json:"path"`
}

type AddVideoResponse struct {
	Video   VideoResponse `json:"video"`
	Created bool          `json:"created"`
}

type RemoveVideosRequest struct {
	IDs []string `json:"ids"`
}

type RemoveVideosResponse struct {
	Removed int64 `json:"removed"`
}

type VideoResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Path            string  `json:"path"`
	Size            int64   `json:"size"`
	Type            string  `json:"type"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	Duration        string  `json:"duration,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

type VideosResponse struct {
	Videos []VideoResponse `json:"videos"`
}

type SearchRequest struct {
	VideoID          string `json:"video_id"`
	SceneDescription string `json:"scene_description"`
}

type SearchResponse struct {
	Search SearchRecordResponse `json:"search"`
	Seek   SeekStatus           `json:"seek"`
}

// SeekStatus is "pending" until the player reached the scene, then "ok" or
// "failed" with the reason.
type SeekStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type SearchRecordResponse struct {
	ID              string  `json:"id"`
	VideoID         string  `json:"video_id"`
	Description     string  `json:"description"`
	Status          string  `json:"status"`
	Timestamp       string  `json:"timestamp,omitempty"`
	EndTimestamp    string  `json:"end_timestamp,omitempty"`
	TargetSeconds   *int    `json:"target_seconds,omitempty"`
	Similarity      float64 `json:"similarity,omitempty"`
	Category        string  `json:"category,omitempty"`
	CategoryScore   float64 `json:"category_score,omitempty"`
	Message         string  `json:"message,omitempty"`
	Error           string  `json:"error,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
	ProgressPercent float64 `json:"progress_percent,omitempty"`
}

type SearchesResponse struct {
	Searches []SearchRecordResponse `json:"searches"`
}

type SeekRequest struct {
	Timestamp string `json:"timestamp"`
}

type SeekResponse struct {
	Status        string `json:"status"`
	Timestamp     string `json:"timestamp,omitempty"`
	TargetSeconds int    `json:"target_seconds"`
}

type ErrorResponse struct {
	Error      string  `json:"error"`
	Code       string  `json:"code,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

func VideoToResponse(v *library.Video) VideoResponse {
	resp := VideoResponse{
		ID:        v.ID,
		Name:      v.Name,
		Path:      v.Path,
		Size:      v.Size,
		Type:      v.Type,
		CreatedAt: v.CreatedAt.Format(time.RFC3339),
	}
	if v.HasDuration() {
		resp.DurationSeconds = v.DurationSeconds
		resp.Duration = timestamp.Format(int(v.DurationSeconds))
	}
	return resp
}

// SearchToResponse renders a history record. duration, when positive, fills
// the scene's position as a percentage of the clip.
func SearchToResponse(s *library.SearchRecord, duration float64) SearchRecordResponse {
	resp := SearchRecordResponse{
		ID:            s.ID,
		VideoID:       s.VideoID,
		Description:   s.Description,
		Status:        s.Status,
		Timestamp:     s.TimestampRaw,
		EndTimestamp:  s.EndTimestampRaw,
		TargetSeconds: s.TargetSeconds,
		Similarity:    s.Similarity,
		Category:      s.Category,
		CategoryScore: s.CategoryScore,
		Message:       s.Message,
		Error:         s.Error,
		CreatedAt:     s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     s.UpdatedAt.Format(time.RFC3339),
	}
	if s.TargetSeconds != nil {
		if pct, ok := timestamp.Progress(s.TimestampRaw, duration); ok {
			resp.ProgressPercent = pct
		}
	}
	return resp
}
