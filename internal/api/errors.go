package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/scenelocate/scenelocate-agent/internal/finder"
	"github.com/scenelocate/scenelocate-agent/internal/library"
	"github.com/scenelocate/scenelocate-agent/internal/search"
	"github.com/scenelocate/scenelocate-agent/internal/seek"
	"github.com/scenelocate/scenelocate-agent/internal/timestamp"
)

// writeFinderError maps library, search and seek failures to responses.
// Backend failures keep the backend's own message.
func writeFinderError(w http.ResponseWriter, err error) {
	var respErr *search.ResponseError

	switch {
	case errors.Is(err, finder.ErrNoVideo), errors.Is(err, finder.ErrNoDescription):
		WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
	case errors.Is(err, library.ErrNotFound):
		WriteError(w, http.StatusNotFound, "video not found", "NOT_FOUND")
	case errors.Is(err, finder.ErrVideoMissing):
		WriteError(w, http.StatusGone, finder.ErrVideoMissing.Error(), "VIDEO_MISSING")
	case errors.As(err, &respErr) && respErr.NotFound():
		WriteJSON(w, http.StatusNotFound, ErrorResponse{
			Error:      respErr.Message,
			Code:       "SCENE_NOT_FOUND",
			Similarity: respErr.Similarity,
		})
	case errors.As(err, &respErr):
		WriteError(w, http.StatusBadGateway, respErr.Message, "BACKEND_ERROR")
	case errors.Is(err, search.ErrNoResponse):
		WriteError(w, http.StatusBadGateway, "connection failed, please check your backend server", "BACKEND_UNREACHABLE")
	case errors.Is(err, finder.ErrInvalidTimestamp):
		WriteError(w, http.StatusUnprocessableEntity, finder.ErrInvalidTimestamp.Error(), "INVALID_TIMESTAMP")
	case errors.Is(err, timestamp.ErrMalformedFormat):
		WriteError(w, http.StatusBadRequest, "invalid timestamp value", "INVALID_TIMESTAMP")
	case errors.Is(err, seek.ErrOutOfRange):
		WriteError(w, http.StatusUnprocessableEntity, seek.ErrOutOfRange.Error(), "OUT_OF_RANGE")
	case errors.Is(err, finder.ErrNoScene):
		WriteError(w, http.StatusNotFound, finder.ErrNoScene.Error(), "NO_SCENE")
	case errors.Is(err, seek.ErrHandleUnavailable):
		WriteError(w, http.StatusConflict, "no media player is running", "PLAYER_UNAVAILABLE")
	case errors.Is(err, seek.ErrCanceled):
		WriteError(w, http.StatusConflict, "seek replaced by a newer request", "SEEK_SUPERSEDED")
	case errors.Is(err, seek.ErrTimeout):
		WriteError(w, http.StatusGatewayTimeout, seek.ErrTimeout.Error(), "SEEK_TIMEOUT")
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusGatewayTimeout, "request timed out", "TIMEOUT")
	default:
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
	}
}

func videosByID(ctx context.Context, lib library.LibraryService) (map[string]*library.Video, error) {
	videos, err := lib.ListVideos(ctx, "")
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*library.Video, len(videos))
	for _, v := range videos {
		byID[v.ID] = v
	}
	return byID, nil
}
