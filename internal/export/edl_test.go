package export

import (
	"strings"
	"testing"
	"time"

	"github.com/scenelocate/scenelocate-agent/internal/library"
)

func TestGenerateEDL_SingleClip(t *testing.T) {
	clips := []Clip{{
		Name:        "beach.mp4",
		Description: "waves crashing",
		MediaPath:   "/media/beach.mp4",
		Start:       83,
		End:         93,
	}}

	edl := GenerateEDL(clips, "Beach scenes", 30.0)

	for _, want := range []string{
		"TITLE: Beach scenes",
		"FCM: NON-DROP FRAME",
		"001  AX       V     C        00:01:23:00 00:01:33:00 00:00:00:00 00:00:10:00",
		"* FROM CLIP NAME:  beach.mp4",
		"* MEDIA PATH:  /media/beach.mp4",
		"* COMMENT:  waves crashing",
	} {
		if !strings.Contains(edl, want) {
			t.Fatalf("EDL missing %q:\n%s", want, edl)
		}
	}
}

func TestGenerateEDL_RecordOffset(t *testing.T) {
	clips := []Clip{
		{Name: "a.mp4", MediaPath: "/a.mp4", Start: 0, End: 10},
		{Name: "b.mp4", MediaPath: "/b.mp4", Start: 3600, End: 3605},
	}

	edl := GenerateEDL(clips, "Multi", 25)

	if !strings.Contains(edl, "001  AX       V     C        00:00:00:00 00:00:10:00 00:00:00:00 00:00:10:00") {
		t.Fatalf("first event line mismatch:\n%s", edl)
	}
	if !strings.Contains(edl, "002  AX       V     C        01:00:00:00 01:00:05:00 00:00:10:00 00:00:15:00") {
		t.Fatalf("second event line mismatch:\n%s", edl)
	}
}

func TestGenerateEDL_DropFrame(t *testing.T) {
	edl := GenerateEDL([]Clip{{Name: "x", MediaPath: "/x.mp4", End: 1}}, "Drop", 29.97)
	if !strings.Contains(edl, "FCM: DROP FRAME") {
		t.Fatalf("expected drop frame FCM, got: %q", edl)
	}
}

func intPtr(v int) *int { return &v }

func TestClipsFromSearches(t *testing.T) {
	videos := map[string]*library.Video{
		"v1": {ID: "v1", Name: "beach.mp4", Path: "/media/beach.mp4", DurationSeconds: 88},
		"v2": {ID: "v2", Name: "park.mp4", Path: "/media/park.mp4"},
	}
	now := time.Now()
	records := []*library.SearchRecord{
		{ID: "s1", VideoID: "v1", Status: library.SearchStatusFound, TargetSeconds: intPtr(83), EndTimestampRaw: "00:01:33", CreatedAt: now},
		{ID: "s2", VideoID: "v2", Status: library.SearchStatusFound, TargetSeconds: intPtr(5)},
		{ID: "s3", VideoID: "v1", Status: library.SearchStatusNotFound},
		{ID: "s4", VideoID: "gone", Status: library.SearchStatusFound, TargetSeconds: intPtr(1)},
		{ID: "s5", VideoID: "v2", Status: library.SearchStatusFound},
	}

	clips, unresolved := ClipsFromSearches(records, videos)

	if len(clips) != 2 {
		t.Fatalf("got %d clips, want 2", len(clips))
	}
	// end clamped to the probed duration
	if clips[0].Start != 83 || clips[0].End != 88 {
		t.Errorf("clip 0 = %d-%d, want 83-88", clips[0].Start, clips[0].End)
	}
	// no end reported, default scene length
	if clips[1].Start != 5 || clips[1].End != 5+DefaultSceneLength {
		t.Errorf("clip 1 = %d-%d, want 5-%d", clips[1].Start, clips[1].End, 5+DefaultSceneLength)
	}
	if len(unresolved) != 1 || unresolved[0] != "s4" {
		t.Errorf("unresolved = %v, want [s4]", unresolved)
	}
}
