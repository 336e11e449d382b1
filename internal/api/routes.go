package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/scenelocate/scenelocate-agent/internal/finder"
	"github.com/scenelocate/scenelocate-agent/internal/library"
	"github.com/scenelocate/scenelocate-agent/internal/playback"
	"github.com/scenelocate/scenelocate-agent/internal/timestamp"
)

const defaultHistoryLimit = 50

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())
	r.Use(MetricsMiddleware())
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/library", listVideosHandler(cfg))
		r.Post("/library", addVideoHandler(cfg))
		r.Delete("/library", removeVideosHandler(cfg))
		r.Get("/library/{id}", getVideoHandler(cfg))
		r.Post("/search", searchHandler(cfg))
		r.Post("/seek", seekHandler(cfg))
		r.Post("/seek/last", seekLastHandler(cfg))
		r.Get("/searches", listSearchesHandler(cfg))
		r.Get("/searches/export.edl", exportEDLHandler(cfg))
		r.Post("/searches/export", exportFileHandler(cfg))
	})

	// Players and <video> elements cannot send a bearer token, so streaming
	// is limited to local callers instead.
	r.Group(func(r chi.Router) {
		r.Use(LoopbackGuard())
		r.Get("/playback/file", playbackHandler(cfg))
		r.Head("/playback/file", playbackHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		version := cfg.Version
		if version == "" {
			version = "dev"
		}
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		resp := StatusResponse{State: "ready", Notices: []finder.Notice{}}

		if count, err := cfg.Library.CountVideos(ctx); err == nil {
			resp.VideosCount = count
		}

		if cfg.Health != nil {
			h := cfg.Health.Get(ctx)
			resp.Backend = BackendStatus{
				Reachable: h.Reachable,
				Error:     h.Error,
				LatencyMs: h.Latency.Milliseconds(),
			}
			if !h.CheckedAt.IsZero() {
				resp.Backend.CheckedAt = h.CheckedAt.Format(time.RFC3339)
			}
			if !h.Reachable {
				resp.State = "backend_unreachable"
			}
		}

		if cfg.Player != nil {
			resp.PlayerConnected = cfg.Player.Connected()
		}
		if cfg.Seeks != nil {
			resp.SeekPending = cfg.Seeks.Pending()
		}

		if cfg.Notices != nil {
			resp.Notices = cfg.Notices.List()
			if last, ok := cfg.Notices.Last(); ok {
				resp.LastNotice = &last
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func listVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videos, err := cfg.Library.ListVideos(r.Context(), r.URL.Query().Get("q"))
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list videos", "INTERNAL_ERROR")
			return
		}

		resp := VideosResponse{Videos: make([]VideoResponse, len(videos))}
		for i, v := range videos {
			resp.Videos[i] = VideoToResponse(v)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func addVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddVideoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		if strings.TrimSpace(req.Path) == "" {
			WriteError(w, http.StatusBadRequest, "path is required", "BAD_REQUEST")
			return
		}

		video, created, err := cfg.Library.AddVideo(r.Context(), req.Path)
		if errors.Is(err, library.ErrAlreadySaved) {
			WriteError(w, http.StatusConflict, err.Error(), "ALREADY_SAVED")
			return
		}
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		WriteJSON(w, status, AddVideoResponse{Video: VideoToResponse(video), Created: created})
	}
}

func removeVideosHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RemoveVideosRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		removed, err := cfg.Library.RemoveVideos(r.Context(), req.IDs)
		if err != nil {
			if errors.Is(err, library.ErrNoSelection) {
				WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}

		WriteJSON(w, http.StatusOK, RemoveVideosResponse{Removed: removed})
	}
}

func getVideoHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			WriteError(w, http.StatusBadRequest, "video id required", "BAD_REQUEST")
			return
		}

		video, err := cfg.Library.GetVideo(r.Context(), id)
		if err != nil {
			writeFinderError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, VideoToResponse(video))
	}
}

func searchHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		ctx := r.Context()
		out, err := cfg.Finder.Search(ctx, req.VideoID, req.SceneDescription)
		if err != nil {
			writeFinderError(w, err)
			return
		}

		var st SeekStatus
		if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
			st = seekStatusOf(true, out.WaitSeek(ctx))
		} else {
			st = seekStatusOf(out.SeekDone())
		}

		var duration float64
		if v, err := cfg.Library.GetVideo(ctx, out.Search.VideoID); err == nil {
			duration = v.DurationSeconds
		}

		WriteJSON(w, http.StatusOK, SearchResponse{
			Search: SearchToResponse(out.Search, duration),
			Seek:   st,
		})
	}
}

func seekStatusOf(done bool, err error) SeekStatus {
	switch {
	case !done:
		return SeekStatus{Status: "pending"}
	case err != nil:
		return SeekStatus{Status: "failed", Error: err.Error()}
	default:
		return SeekStatus{Status: "ok"}
	}
}

func seekHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SeekRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		target, err := timestamp.Parse(req.Timestamp)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid timestamp value", "INVALID_TIMESTAMP")
			return
		}

		if err := cfg.Finder.Jump(r.Context(), req.Timestamp); err != nil {
			writeFinderError(w, err)
			return
		}

		WriteJSON(w, http.StatusOK, SeekResponse{
			Status:        "ok",
			Timestamp:     timestamp.Format(target),
			TargetSeconds: target,
		})
	}
}

func seekLastHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Finder.JumpToLast(r.Context()); err != nil {
			writeFinderError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func listSearchesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "limit must be a positive integer", "BAD_REQUEST")
				return
			}
			limit = n
		}

		records, err := cfg.History.List(ctx, r.URL.Query().Get("video_id"), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list searches", "INTERNAL_ERROR")
			return
		}

		videos, err := videosByID(ctx, cfg.Library)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list videos", "INTERNAL_ERROR")
			return
		}

		resp := SearchesResponse{Searches: make([]SearchRecordResponse, len(records))}
		for i, rec := range records {
			var duration float64
			if v, ok := videos[rec.VideoID]; ok {
				duration = v.DurationSeconds
			}
			resp.Searches[i] = SearchToResponse(rec, duration)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func playbackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := r.URL.Query().Get("video_id")
		if videoID == "" {
			WriteError(w, http.StatusBadRequest, "video_id is required", "BAD_REQUEST")
			return
		}

		video, err := cfg.Library.GetVideo(r.Context(), videoID)
		if err != nil {
			writeFinderError(w, err)
			return
		}

		if err := cfg.PlaybackServer.ServeFile(w, r, video.Path, video.Type); err != nil {
			if errors.Is(err, playback.ErrNotFound) {
				WriteError(w, http.StatusNotFound, "video file not available, please re-add the video", "VIDEO_MISSING")
				return
			}
			cfg.Logger.Error("playback error", "error", err, "video_id", videoID)
			WriteError(w, http.StatusInternalServerError, "failed to serve video", "INTERNAL_ERROR")
		}
	}
}
