package export

import (
	"fmt"
	"math"
	"strings"
)

// GenerateEDL renders clips as a CMX3600 EDL. Clips are laid back to back on
// the record side.
func GenerateEDL(clips []Clip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = int(DefaultFrameRate)
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{"TITLE: " + title}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	record := 0
	for i, clip := range clips {
		length := clip.End - clip.Start
		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "V",
				timecode(clip.Start, fps), timecode(clip.End, fps),
				timecode(record, fps), timecode(record+length, fps)),
			"* FROM CLIP NAME:  "+clip.Name,
			"* MEDIA PATH:  "+clip.MediaPath,
		)
		if clip.Description != "" {
			lines = append(lines, "* COMMENT:  "+SanitizeName(clip.Description, 120))
		}
		record += length
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// timecode renders whole seconds as HH:MM:SS:FF. Frames are always zero.
func timecode(seconds int, fps int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60, 0)
}
