package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/scenelocate/scenelocate-agent/internal/db"
	"github.com/scenelocate/scenelocate-agent/internal/finder"
	"github.com/scenelocate/scenelocate-agent/internal/library"
	"github.com/scenelocate/scenelocate-agent/internal/playback"
	"github.com/scenelocate/scenelocate-agent/internal/search"
	"github.com/scenelocate/scenelocate-agent/internal/seek"
	"github.com/scenelocate/scenelocate-agent/internal/timestamp"
)

const testToken = "test-token"

type testEnv struct {
	cfg     ServerConfig
	repo    library.Repository
	lib     *library.Service
	history *library.History
	dir     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := library.NewRepository(database)
	if err := repo.SetConfig(context.Background(), AuthTokenKey, testToken); err != nil {
		t.Fatalf("SetConfig() error = %v", err)
	}

	lib := library.NewService(repo, nil, 0, logger)
	history := library.NewHistory(repo)

	return &testEnv{
		cfg: ServerConfig{
			Library:        lib,
			History:        history,
			Finder:         &fakeFinder{},
			PlaybackServer: playback.NewServer(logger),
			Repository:     repo,
			Notices:        finder.NewRecent(5),
			Logger:         logger,
			StartTime:      time.Now(),
			DeviceID:       "test-device",
		},
		repo:    repo,
		lib:     lib,
		history: history,
		dir:     t.TempDir(),
	}
}

func (e *testEnv) addVideo(t *testing.T, name string, content string) *library.Video {
	t.Helper()
	path := filepath.Join(e.dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	v, _, err := e.lib.AddVideo(context.Background(), path)
	if err != nil {
		t.Fatalf("AddVideo() error = %v", err)
	}
	return v
}

func (e *testEnv) addFound(t *testing.T, videoID, desc, raw string) *library.SearchRecord {
	t.Helper()
	ctx := context.Background()
	rec, err := e.history.Begin(ctx, videoID, desc)
	if err != nil {
		t.Fatal(err)
	}
	target, err := timestamp.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	rec.Status = library.SearchStatusFound
	rec.TimestampRaw = raw
	rec.TargetSeconds = &target
	if err := e.history.Finish(ctx, rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

func (e *testEnv) do(t *testing.T, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.RemoteAddr = "127.0.0.1:40000"
	rr := httptest.NewRecorder()
	NewRouter(e.cfg).ServeHTTP(rr, req)
	return rr
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestHealthHandler_NoAuth(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	NewRouter(env.cfg).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	body := decodeJSONBody(t, rr)
	if body["device_id"] != "test-device" {
		t.Errorf("device_id = %v, want test-device", body["device_id"])
	}
	if body["version"] != "dev" {
		t.Errorf("version = %v, want dev", body["version"])
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + testToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/library", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			NewRouter(env.cfg).ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestStatusHandler(t *testing.T) {
	env := newTestEnv(t)
	env.addVideo(t, "a.mp4", "aaaa")
	env.cfg.Health = fakeHealth{h: search.Health{Reachable: false, Error: "connection refused", CheckedAt: time.Now()}}
	env.cfg.Player = fakePlayerStatus(true)
	env.cfg.Seeks = fakeSeekState(true)
	env.cfg.Notices.Notify(finder.Notice{Level: finder.LevelError, Message: "first"})
	env.cfg.Notices.Notify(finder.Notice{Level: finder.LevelInfo, Message: "second"})

	rr := env.do(t, http.MethodGet, "/status", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp StatusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.State != "backend_unreachable" {
		t.Errorf("state = %q, want backend_unreachable", resp.State)
	}
	if resp.Backend.Error != "connection refused" {
		t.Errorf("backend.error = %q", resp.Backend.Error)
	}
	if !resp.PlayerConnected {
		t.Error("player_connected = false, want true")
	}
	if !resp.SeekPending {
		t.Error("seek_pending = false, want true")
	}
	if resp.VideosCount != 1 {
		t.Errorf("videos_count = %d, want 1", resp.VideosCount)
	}
	if resp.LastNotice == nil || resp.LastNotice.Message != "second" {
		t.Errorf("last_notice = %+v, want second", resp.LastNotice)
	}
	if len(resp.Notices) != 2 {
		t.Errorf("notices = %d, want 2", len(resp.Notices))
	}
}

func TestStatusHandler_NoHealth(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/status", nil)
	body := decodeJSONBody(t, rr)
	if body["state"] != "ready" {
		t.Errorf("state = %v, want ready", body["state"])
	}
	if _, ok := body["last_notice"]; ok {
		t.Error("last_notice should be omitted without notices")
	}
	if body["seek_pending"] != false {
		t.Errorf("seek_pending = %v, want false", body["seek_pending"])
	}
}

func TestAddVideo_FileChangedInPlace(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("short"), 0644); err != nil {
		t.Fatal(err)
	}

	rr := env.do(t, http.MethodPost, "/library", AddVideoRequest{Path: path})
	var first AddVideoResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &first); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, []byte("a much longer re-encode"), 0644); err != nil {
		t.Fatal(err)
	}
	rr = env.do(t, http.MethodPost, "/library", AddVideoRequest{Path: path})
	if rr.Code != http.StatusOK {
		t.Fatalf("re-add status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	var second AddVideoResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &second); err != nil {
		t.Fatal(err)
	}
	if second.Created || second.Video.ID != first.Video.ID {
		t.Errorf("re-add = %+v, want existing entry %s", second, first.Video.ID)
	}
	if second.Video.Size != int64(len("a much longer re-encode")) {
		t.Errorf("size = %d, want refreshed size", second.Video.Size)
	}
}

func TestLibraryRoutes(t *testing.T) {
	env := newTestEnv(t)
	path := filepath.Join(env.dir, "Beach Day.mp4")
	if err := os.WriteFile(path, []byte("video bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	rr := env.do(t, http.MethodPost, "/library", AddVideoRequest{Path: path})
	if rr.Code != http.StatusCreated {
		t.Fatalf("add status = %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var added AddVideoResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &added); err != nil {
		t.Fatal(err)
	}
	if !added.Created || added.Video.Name != "Beach Day.mp4" || added.Video.Type != "video/mp4" {
		t.Fatalf("added = %+v", added)
	}

	rr = env.do(t, http.MethodPost, "/library", AddVideoRequest{Path: path})
	if rr.Code != http.StatusOK {
		t.Fatalf("duplicate add status = %d, want %d", rr.Code, http.StatusOK)
	}
	if body := decodeJSONBody(t, rr); body["created"] != false {
		t.Errorf("duplicate created = %v, want false", body["created"])
	}

	rr = env.do(t, http.MethodGet, "/library?q=beach", nil)
	var list VideosResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Videos) != 1 {
		t.Fatalf("videos = %d, want 1", len(list.Videos))
	}

	rr = env.do(t, http.MethodGet, "/library?q=mountain", nil)
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list.Videos) != 0 {
		t.Errorf("filtered videos = %d, want 0", len(list.Videos))
	}

	rr = env.do(t, http.MethodGet, "/library/"+added.Video.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", rr.Code, http.StatusOK)
	}

	rr = env.do(t, http.MethodDelete, "/library", RemoveVideosRequest{IDs: []string{added.Video.ID}})
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status = %d, want %d", rr.Code, http.StatusOK)
	}
	if body := decodeJSONBody(t, rr); body["removed"] != float64(1) {
		t.Errorf("removed = %v, want 1", body["removed"])
	}

	rr = env.do(t, http.MethodGet, "/library/"+added.Video.ID, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestLibraryRoutes_BadInput(t *testing.T) {
	env := newTestEnv(t)
	notes := filepath.Join(env.dir, "notes.txt")
	if err := os.WriteFile(notes, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		method string
		body   interface{}
		want   int
	}{
		{"empty path", http.MethodPost, AddVideoRequest{}, http.StatusBadRequest},
		{"not a video", http.MethodPost, AddVideoRequest{Path: notes}, http.StatusBadRequest},
		{"missing file", http.MethodPost, AddVideoRequest{Path: filepath.Join(env.dir, "gone.mp4")}, http.StatusBadRequest},
		{"empty selection", http.MethodDelete, RemoveVideosRequest{}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, tt.method, "/library", tt.body)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestSearchHandler_Errors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"no video", finder.ErrNoVideo, http.StatusBadRequest, "BAD_REQUEST"},
		{"no description", finder.ErrNoDescription, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown video", fmt.Errorf("%w: v1", library.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"file gone", fmt.Errorf("%w: open", finder.ErrVideoMissing), http.StatusGone, "VIDEO_MISSING"},
		{"scene not found", &search.ResponseError{StatusCode: 404, Message: "scene not found in this clip", Similarity: 0.21}, http.StatusNotFound, "SCENE_NOT_FOUND"},
		{"backend failure", &search.ResponseError{StatusCode: 500, Message: "error processing video"}, http.StatusBadGateway, "BACKEND_ERROR"},
		{"no response", fmt.Errorf("%w: %w", search.ErrNoResponse, errors.New("connection refused")), http.StatusBadGateway, "BACKEND_UNREACHABLE"},
		{"bad backend timestamp", fmt.Errorf("%w: %w", finder.ErrInvalidTimestamp, timestamp.ErrMalformedFormat), http.StatusUnprocessableEntity, "INVALID_TIMESTAMP"},
		{"out of range", fmt.Errorf("%w: past the end", seek.ErrOutOfRange), http.StatusUnprocessableEntity, "OUT_OF_RANGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.cfg.Finder = &fakeFinder{searchErr: tt.err}

			rr := env.do(t, http.MethodPost, "/search", SearchRequest{VideoID: "v1", SceneDescription: "a dog"})
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			body := decodeJSONBody(t, rr)
			if body["code"] != tt.wantErr {
				t.Errorf("code = %v, want %s", body["code"], tt.wantErr)
			}
		})
	}
}

func TestSearchHandler_NotFoundCarriesSimilarity(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Finder = &fakeFinder{searchErr: &search.ResponseError{StatusCode: 404, Message: "scene not found in this clip", Similarity: 0.21}}

	rr := env.do(t, http.MethodPost, "/search", SearchRequest{VideoID: "v1", SceneDescription: "a dog"})
	body := decodeJSONBody(t, rr)
	if body["similarity"] != 0.21 {
		t.Errorf("similarity = %v, want 0.21", body["similarity"])
	}
	if body["error"] != "scene not found in this clip" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestSearchHandler_InvalidBody(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+testToken)
	rr := httptest.NewRecorder()
	NewRouter(env.cfg).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestSearchHandler_EndToEnd(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/process_video" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"message":"ok","timestamp":"00:01:05","end_timestamp":"00:01:12","similarity":0.83,"best_category":"animals","category_score":0.9}`)
	}))
	defer backend.Close()

	tests := []struct {
		name     string
		handle   *fakeHandle
		wantSeek string
	}{
		{"player ready", &fakeHandle{ready: true, duration: 300}, "ok"},
		{"no player", nil, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			video := env.addVideo(t, "dog.mp4", "dog video")
			player := &fakeFinderPlayer{handle: tt.handle}
			env.cfg.Finder = finder.NewService(finder.Options{
				Library:    env.lib,
				History:    env.history,
				Search:     search.NewHTTPClient(backend.URL, 0, env.cfg.Logger),
				Player:     player,
				Reconciler: seek.NewReconciler(seek.Config{MaxAttempts: 2, RetryDelay: time.Millisecond}),
				Notifier:   env.cfg.Notices,
				Logger:     env.cfg.Logger,
			})

			rr := env.do(t, http.MethodPost, "/search?wait=true", SearchRequest{VideoID: video.ID, SceneDescription: "a dog"})
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
			}

			var resp SearchResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Search.Timestamp != "00:01:05" || resp.Search.TargetSeconds == nil || *resp.Search.TargetSeconds != 65 {
				t.Errorf("search = %+v", resp.Search)
			}
			if resp.Search.Status != library.SearchStatusFound {
				t.Errorf("status = %q, want found", resp.Search.Status)
			}
			if resp.Seek.Status != tt.wantSeek {
				t.Errorf("seek = %+v, want %s", resp.Seek, tt.wantSeek)
			}
			if tt.handle != nil {
				if got := tt.handle.seekLog(); len(got) != 1 || got[0] != 65 {
					t.Errorf("seeks = %v, want [65]", got)
				}
			}
		})
	}
}

func TestSeekHandler(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		jumpErr  error
		wantCode int
	}{
		{"ok", "00:01:05", nil, http.StatusOK},
		{"malformed", "1:05", nil, http.StatusBadRequest},
		{"out of range", "10:00:00", fmt.Errorf("%w: too far", seek.ErrOutOfRange), http.StatusUnprocessableEntity},
		{"no player", "00:00:10", seek.ErrHandleUnavailable, http.StatusConflict},
		{"superseded", "00:00:10", seek.ErrCanceled, http.StatusConflict},
		{"timeout", "00:00:10", seek.ErrTimeout, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ff := &fakeFinder{jumpErr: tt.jumpErr}
			env.cfg.Finder = ff

			rr := env.do(t, http.MethodPost, "/seek", SeekRequest{Timestamp: tt.raw})
			if rr.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.wantCode, rr.Body.String())
			}
			if tt.wantCode == http.StatusOK {
				body := decodeJSONBody(t, rr)
				if body["target_seconds"] != float64(65) {
					t.Errorf("target_seconds = %v, want 65", body["target_seconds"])
				}
				if ff.jumped != tt.raw {
					t.Errorf("jumped = %q, want %q", ff.jumped, tt.raw)
				}
			}
		})
	}
}

func TestSeekLastHandler(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.Finder = &fakeFinder{jumpErr: finder.ErrNoScene}

	rr := env.do(t, http.MethodPost, "/seek/last", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusNotFound)
	}

	env.cfg.Finder = &fakeFinder{}
	rr = env.do(t, http.MethodPost, "/seek/last", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestListSearchesHandler(t *testing.T) {
	env := newTestEnv(t)
	a := env.addVideo(t, "a.mp4", "aaaa")
	b := env.addVideo(t, "b.mp4", "bbbbbb")
	if err := env.repo.UpdateVideoDuration(context.Background(), a.ID, 200); err != nil {
		t.Fatal(err)
	}
	env.addFound(t, a.ID, "a cat", "00:00:50")
	env.addFound(t, b.ID, "a car", "00:00:10")

	rr := env.do(t, http.MethodGet, "/searches", nil)
	var all SearchesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &all); err != nil {
		t.Fatal(err)
	}
	if len(all.Searches) != 2 {
		t.Fatalf("searches = %d, want 2", len(all.Searches))
	}

	rr = env.do(t, http.MethodGet, "/searches?video_id="+a.ID, nil)
	var filtered SearchesResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &filtered); err != nil {
		t.Fatal(err)
	}
	if len(filtered.Searches) != 1 {
		t.Fatalf("filtered searches = %d, want 1", len(filtered.Searches))
	}
	if got := filtered.Searches[0].ProgressPercent; got != 25 {
		t.Errorf("progress_percent = %v, want 25", got)
	}

	rr = env.do(t, http.MethodGet, "/searches?limit=0", nil)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("limit=0 status = %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestPlaybackHandler(t *testing.T) {
	env := newTestEnv(t)
	video := env.addVideo(t, "clip.mp4", "0123456789")

	rr := env.do(t, http.MethodGet, "/playback/file?video_id="+video.ID, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Body.String() != "0123456789" {
		t.Errorf("body = %q", rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q, want video/mp4", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/playback/file?video_id="+video.ID, nil)
	req.RemoteAddr = "127.0.0.1:40000"
	req.Header.Set("Range", "bytes=2-4")
	rr = httptest.NewRecorder()
	NewRouter(env.cfg).ServeHTTP(rr, req)
	if rr.Code != http.StatusPartialContent {
		t.Fatalf("range status = %d, want %d", rr.Code, http.StatusPartialContent)
	}
	if rr.Body.String() != "234" {
		t.Errorf("range body = %q, want 234", rr.Body.String())
	}
}

func TestPlaybackHandler_Errors(t *testing.T) {
	env := newTestEnv(t)
	video := env.addVideo(t, "clip.mp4", "0123456789")
	if err := os.Remove(video.Path); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{"missing id", "/playback/file", http.StatusBadRequest},
		{"unknown id", "/playback/file?video_id=nope", http.StatusNotFound},
		{"file removed", "/playback/file?video_id=" + video.ID, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, http.MethodGet, tt.target, nil)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
		})
	}
}

func TestPlaybackHandler_RejectsRemote(t *testing.T) {
	env := newTestEnv(t)
	video := env.addVideo(t, "clip.mp4", "0123456789")

	req := httptest.NewRequest(http.MethodGet, "/playback/file?video_id="+video.ID, nil)
	req.RemoteAddr = "192.168.1.20:5555"
	rr := httptest.NewRecorder()
	NewRouter(env.cfg).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusForbidden)
	}
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t)
	router := NewRouter(env.cfg)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	if !strings.Contains(rr.Body.String(), "scenelocate_http_requests_total") {
		t.Error("metrics output missing scenelocate_http_requests_total")
	}
}

type fakeFinder struct {
	searchErr error
	jumpErr   error
	jumped    string
}

func (f *fakeFinder) Search(ctx context.Context, videoID, description string) (*finder.Outcome, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return nil, errors.New("fakeFinder: no outcome configured")
}

func (f *fakeFinder) Jump(ctx context.Context, raw string) error {
	f.jumped = raw
	return f.jumpErr
}

func (f *fakeFinder) JumpToLast(ctx context.Context) error {
	return f.jumpErr
}

type fakeHealth struct {
	h search.Health
}

func (f fakeHealth) Get(ctx context.Context) search.Health { return f.h }

type fakePlayerStatus bool

func (f fakePlayerStatus) Connected() bool { return bool(f) }

type fakeSeekState bool

func (f fakeSeekState) Pending() bool { return bool(f) }

type fakeHandle struct {
	mu       sync.Mutex
	ready    bool
	duration float64
	seeks    []int
}

func (h *fakeHandle) State() seek.PlaybackState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return seek.PlaybackState{Duration: h.duration, DurationKnown: h.ready, Ready: h.ready}
}

func (h *fakeHandle) SeekTo(seconds int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seeks = append(h.seeks, seconds)
	return nil
}

func (h *fakeHandle) seekLog() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.seeks...)
}

type fakeFinderPlayer struct {
	handle *fakeHandle
}

func (p *fakeFinderPlayer) Handle() seek.Handle {
	if p.handle == nil {
		return nil
	}
	return p.handle
}

func (p *fakeFinderPlayer) Load(ctx context.Context, path string) error {
	return nil
}
