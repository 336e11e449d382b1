// Package export renders found scenes as an edit decision list so they can
// be reviewed in an editor.
package export

import (
	"github.com/scenelocate/scenelocate-agent/internal/library"
	"github.com/scenelocate/scenelocate-agent/internal/timestamp"
)

const (
	DefaultFrameRate = 30.0
	// DefaultSceneLength is the span given to a scene whose end the
	// backend did not report.
	DefaultSceneLength = 10
)

// Clip is one found scene of a library video, in whole seconds.
type Clip struct {
	Name        string
	Description string
	MediaPath   string
	Start       int
	End         int
}

// ClipsFromSearches turns found searches into clips. Searches whose video
// is no longer in videos are returned by id in unresolved.
func ClipsFromSearches(records []*library.SearchRecord, videos map[string]*library.Video) (clips []Clip, unresolved []string) {
	for _, rec := range records {
		if rec.Status != library.SearchStatusFound || rec.TargetSeconds == nil {
			continue
		}
		v, ok := videos[rec.VideoID]
		if !ok {
			unresolved = append(unresolved, rec.ID)
			continue
		}

		start := *rec.TargetSeconds
		end, err := timestamp.Parse(rec.EndTimestampRaw)
		if err != nil || end <= start {
			end = start + DefaultSceneLength
		}
		if v.HasDuration() && float64(end) > v.DurationSeconds {
			end = int(v.DurationSeconds)
		}
		if end <= start {
			end = start + 1
		}

		clips = append(clips, Clip{
			Name:        v.Name,
			Description: rec.Description,
			MediaPath:   v.Path,
			Start:       start,
			End:         end,
		})
	}
	return clips, unresolved
}
