package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/scenelocate/scenelocate-agent/internal/export"
	"github.com/scenelocate/scenelocate-agent/internal/library"
)

const exportHistoryLimit = 1000

type ExportRequest struct {
	VideoID   string  `json:"video_id,omitempty"`
	Title     string  `json:"title,omitempty"`
	OutputDir string  `json:"output_dir"`
	FrameRate float64 `json:"frame_rate,omitempty"`
}

type ExportResponse struct {
	Status             string   `json:"status"`
	OutputPath         string   `json:"output_path"`
	ClipCount          int      `json:"clip_count"`
	UnresolvedSearches []string `json:"unresolved_searches,omitempty"`
}

// exportEDLHandler returns the found scenes as an EDL download.
func exportEDLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		edl, err := buildEDL(r.Context(), cfg, q.Get("video_id"), q.Get("title"), export.DefaultFrameRate)
		if err != nil {
			writeExportError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(edl.title)))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(edl.content))
	}
}

// exportFileHandler writes the EDL into a directory on this machine.
func exportFileHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if err := export.ValidateOutputDir(req.OutputDir); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		frameRate := req.FrameRate
		if frameRate <= 0 {
			frameRate = export.DefaultFrameRate
		}

		edl, err := buildEDL(r.Context(), cfg, req.VideoID, req.Title, frameRate)
		if err != nil {
			writeExportError(w, err)
			return
		}

		path, err := export.WriteFile(req.OutputDir, edl.title, edl.content)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to write export file", "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, ExportResponse{
			Status:             "ok",
			OutputPath:         path,
			ClipCount:          edl.clips,
			UnresolvedSearches: edl.unresolved,
		})
	}
}

type builtEDL struct {
	title      string
	content    string
	clips      int
	unresolved []string
}

var errNoClips = errors.New("no found scenes to export")

func buildEDL(ctx context.Context, cfg ServerConfig, videoID, title string, frameRate float64) (*builtEDL, error) {
	videos, err := videosByID(ctx, cfg.Library)
	if err != nil {
		return nil, err
	}
	if videoID != "" {
		if _, ok := videos[videoID]; !ok {
			return nil, library.ErrNotFound
		}
	}

	records, err := cfg.History.List(ctx, videoID, exportHistoryLimit)
	if err != nil {
		return nil, err
	}
	// history is newest first, the timeline reads oldest first
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}

	clips, unresolved := export.ClipsFromSearches(records, videos)
	if len(clips) == 0 {
		return nil, errNoClips
	}

	title = strings.TrimSpace(title)
	if title == "" && videoID != "" {
		name := videos[videoID].Name
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if title == "" {
		title = "scenes"
	}

	if len(unresolved) > 0 {
		cfg.Logger.Warn("searches without a library video left out of export", "count", len(unresolved))
	}

	return &builtEDL{
		title:      title,
		content:    export.GenerateEDL(clips, title, frameRate),
		clips:      len(clips),
		unresolved: unresolved,
	}, nil
}

func writeExportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errNoClips):
		WriteError(w, http.StatusNotFound, err.Error(), "NO_SCENES")
	case errors.Is(err, library.ErrNotFound):
		WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}
