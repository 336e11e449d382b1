// Package media reads container metadata from video files with ffprobe.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"time"
)

// ErrUnavailable means no ffprobe binary could be found.
var ErrUnavailable = errors.New("ffprobe not available")

const defaultProbeTimeout = 30 * time.Second

// ProbeResult is the subset of ffprobe output the agent uses.
type ProbeResult struct {
	Duration   float64
	FormatName string
	Width      int
	Height     int
	VideoCodec string
	AudioCodec string
}

type ffprobeOutput struct {
	Streams []struct {
		CodecName string `json:"codec_name"`
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// FFprobe runs the ffprobe binary.
type FFprobe struct {
	bin     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewFFprobe looks ffprobe up on PATH. When it is missing every probe
// returns ErrUnavailable.
func NewFFprobe(logger *slog.Logger) *FFprobe {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	bin, err := exec.LookPath("ffprobe")
	if err != nil {
		logger.Info("ffprobe not found, video durations will be unknown")
		bin = ""
	}
	return &FFprobe{bin: bin, timeout: defaultProbeTimeout, logger: logger}
}

func (f *FFprobe) Available() bool {
	return f.bin != ""
}

// Probe runs ffprobe on path.
func (f *FFprobe) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if f.bin == "" {
		return nil, ErrUnavailable
	}
	if path == "" {
		return nil, fmt.Errorf("source path cannot be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed on %s: %w", path, err)
	}

	res, err := parseProbeOutput(output)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("probed media", "path", path, "duration", res.Duration, "format", res.FormatName)
	return res, nil
}

// Duration returns the playable length of path in seconds.
func (f *FFprobe) Duration(ctx context.Context, path string) (float64, error) {
	res, err := f.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	if res.Duration <= 0 {
		return 0, fmt.Errorf("duration not available for %s", path)
	}
	return res.Duration, nil
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe JSON output: %w", err)
	}

	res := &ProbeResult{FormatName: out.Format.FormatName}
	res.Duration = parseSeconds(out.Format.Duration)

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if res.VideoCodec == "" {
				res.VideoCodec = s.CodecName
				res.Width = s.Width
				res.Height = s.Height
			}
			// some containers only carry the duration per stream
			if res.Duration == 0 {
				res.Duration = parseSeconds(s.Duration)
			}
		case "audio":
			if res.AudioCodec == "" {
				res.AudioCodec = s.CodecName
			}
		}
	}
	return res, nil
}

func parseSeconds(s string) float64 {
	if s == "" || s == "N/A" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
