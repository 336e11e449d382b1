package player

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestController_HandleNilWithoutPlayer(t *testing.T) {
	dir, err := os.MkdirTemp("", "mpv")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	c := NewController(filepath.Join(dir, "none"), "", nil)
	if h := c.Handle(); h != nil {
		t.Errorf("Handle() = %v, want nil with no player", h)
	}
	if c.Connected() {
		t.Error("Connected() = true with no player")
	}

	err = c.Load(context.Background(), "/videos/a.mp4")
	if !errors.Is(err, ErrNotRunning) {
		t.Errorf("Load() error = %v, want ErrNotRunning", err)
	}
}

func TestController_ConnectsAndLoads(t *testing.T) {
	f := newFakeMPV(t)
	c := NewController(f.socket, "", nil)
	defer c.Close()

	if h := c.Handle(); h == nil {
		t.Fatal("Handle() = nil with a running player")
	}
	if err := c.Load(context.Background(), "/videos/b.mp4"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	f.mu.Lock()
	loaded := append([]string(nil), f.loaded...)
	f.mu.Unlock()
	if len(loaded) != 1 || loaded[0] != "/videos/b.mp4" {
		t.Errorf("loaded = %v", loaded)
	}
}

func TestController_Reconnects(t *testing.T) {
	f := newFakeMPV(t)
	c := NewController(f.socket, "", nil)
	defer c.Close()

	first := c.Handle()
	if first == nil {
		t.Fatal("Handle() = nil")
	}
	first.(*Client).Close()

	second := c.Handle()
	if second == nil {
		t.Fatal("Handle() = nil after reconnect")
	}
	if second == first {
		t.Error("Handle() reused a closed connection")
	}
}

func TestLaunch_MissingBinary(t *testing.T) {
	if _, err := Launch("definitely-not-mpv-binary", filepath.Join(t.TempDir(), "s")); err == nil {
		t.Error("Launch() should fail for a missing binary")
	}
}
