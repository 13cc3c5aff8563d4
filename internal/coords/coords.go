// Package coords translates pointer positions on a rendered, possibly
// rescaled, frame into the remote browser's native pixel coordinates.
package coords

import (
	"errors"
	"math"
)

var (
	// ErrEmptyRect is returned when the display rectangle has no area.
	ErrEmptyRect = errors.New("display rect is empty")
	// ErrNoFrame is returned when the native frame size is unknown.
	ErrNoFrame = errors.New("no frame dimensions")
)

// Rect is the on-screen rectangle a frame is rendered into.
type Rect struct {
	Left   float64
	Top    float64
	Width  float64
	Height float64
}

// Contains reports whether (x, y) lies inside the rectangle, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.Left && x <= r.Left+r.Width && y >= r.Top && y <= r.Top+r.Height
}

// Point is a position in native frame pixels.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Map converts the pointer position (x, y), given in the same space as rect,
// into native coordinates of a nativeWidth x nativeHeight frame. The result
// is rounded half away from zero and clamped to the frame.
func Map(rect Rect, nativeWidth, nativeHeight int, x, y float64) (Point, error) {
	if rect.Width <= 0 || rect.Height <= 0 {
		return Point{}, ErrEmptyRect
	}
	if nativeWidth <= 0 || nativeHeight <= 0 {
		return Point{}, ErrNoFrame
	}

	scaleX := float64(nativeWidth) / rect.Width
	scaleY := float64(nativeHeight) / rect.Height

	return Point{
		X: clamp(int(math.Round((x-rect.Left)*scaleX)), 0, nativeWidth-1),
		Y: clamp(int(math.Round((y-rect.Top)*scaleY)), 0, nativeHeight-1),
	}, nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
