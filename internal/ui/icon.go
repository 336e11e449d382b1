package ui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

var iconBytes = renderIcon(32)

// renderIcon draws a play triangle on a rounded dark square.
func renderIcon(size int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	bg := color.NRGBA{R: 0x22, G: 0x2b, B: 0x38, A: 0xff}
	fg := color.NRGBA{R: 0x4f, G: 0xc3, B: 0xf7, A: 0xff}

	radius := size / 6
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if inRoundedRect(x, y, size, radius) {
				img.Set(x, y, bg)
			}
		}
	}

	left, top, bottom := size*3/8, size/4, size*3/4
	right := size * 3 / 4
	mid := size / 2
	for y := top; y <= bottom; y++ {
		// triangle narrows toward the tip at (right, mid)
		half := bottom - mid - abs(y-mid)
		end := left + (right-left)*half/(bottom-mid)
		for x := left; x <= end; x++ {
			img.Set(x, y, fg)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil
	}
	return buf.Bytes()
}

func inRoundedRect(x, y, size, r int) bool {
	cx, cy := x, y
	switch {
	case x < r:
		cx = r
	case x >= size-r:
		cx = size - r - 1
	}
	switch {
	case y < r:
		cy = r
	case y >= size-r:
		cy = size - r - 1
	}
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r*r
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
