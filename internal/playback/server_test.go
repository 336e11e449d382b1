package playback

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "clip.mp4")
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestServeFile(t *testing.T) {
	path := writeFile(t, "0123456789")
	srv := NewServer(nil)

	tests := []struct {
		name       string
		rangeHdr   string
		wantStatus int
		wantBody   string
		wantRange  string
	}{
		{name: "full", wantStatus: http.StatusOK, wantBody: "0123456789"},
		{name: "start-end", rangeHdr: "bytes=2-5", wantStatus: http.StatusPartialContent, wantBody: "2345", wantRange: "bytes 2-5/10"},
		{name: "open ended", rangeHdr: "bytes=7-", wantStatus: http.StatusPartialContent, wantBody: "789", wantRange: "bytes 7-9/10"},
		{name: "suffix", rangeHdr: "bytes=-3", wantStatus: http.StatusPartialContent, wantBody: "789", wantRange: "bytes 7-9/10"},
		{name: "unsatisfiable", rangeHdr: "bytes=20-30", wantStatus: http.StatusRequestedRangeNotSatisfiable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/playback/file", nil)
			if tt.rangeHdr != "" {
				req.Header.Set("Range", tt.rangeHdr)
			}
			w := httptest.NewRecorder()

			if err := srv.ServeFile(w, req, path, "video/mp4"); err != nil {
				t.Fatalf("ServeFile() error = %v", err)
			}

			resp := w.Result()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if tt.wantBody != "" {
				body, _ := io.ReadAll(resp.Body)
				if string(body) != tt.wantBody {
					t.Errorf("body = %q, want %q", body, tt.wantBody)
				}
			}
			if tt.wantRange != "" && resp.Header.Get("Content-Range") != tt.wantRange {
				t.Errorf("Content-Range = %q, want %q", resp.Header.Get("Content-Range"), tt.wantRange)
			}
			if resp.StatusCode < 300 && resp.Header.Get("Content-Type") != "video/mp4" {
				t.Errorf("Content-Type = %q, want video/mp4", resp.Header.Get("Content-Type"))
			}
		})
	}
}

func TestServeFile_Missing(t *testing.T) {
	srv := NewServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/playback/file", nil)
	w := httptest.NewRecorder()

	err := srv.ServeFile(w, req, filepath.Join(t.TempDir(), "gone.mp4"), "video/mp4")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ServeFile() error = %v, want ErrNotFound", err)
	}
}
