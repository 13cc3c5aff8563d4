package coords

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	rect := Rect{Left: 100, Top: 50, Width: 800, Height: 450}

	tests := []struct {
		name string
		x, y float64
		want Point
	}{
		{name: "center", x: 500, y: 275, want: Point{X: 800, Y: 450}},
		{name: "top left", x: 100, y: 50, want: Point{X: 0, Y: 0}},
		{name: "bottom right corner clamps", x: 900, y: 500, want: Point{X: 1599, Y: 899}},
		{name: "outside left clamps to zero", x: 20, y: 60, want: Point{X: 0, Y: 20}},
		{name: "far outside clamps to max", x: 5000, y: 5000, want: Point{X: 1599, Y: 899}},
		{name: "half pixel rounds away from zero", x: 100.25, y: 50.25, want: Point{X: 1, Y: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Map(rect, 1600, 900, tt.x, tt.y)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapDownscaledFrame(t *testing.T) {
	rect := Rect{Left: 0, Top: 0, Width: 1280, Height: 800}

	got, err := Map(rect, 640, 400, 639, 399)
	require.NoError(t, err)
	assert.Equal(t, Point{X: 320, Y: 200}, got)
}

func TestMapErrors(t *testing.T) {
	_, err := Map(Rect{Width: 0, Height: 10}, 100, 100, 1, 1)
	assert.ErrorIs(t, err, ErrEmptyRect)

	_, err = Map(Rect{Width: 10, Height: 10}, 0, 100, 1, 1)
	assert.ErrorIs(t, err, ErrNoFrame)
}

func TestRectContains(t *testing.T) {
	r := Rect{Left: 10, Top: 10, Width: 20, Height: 5}

	assert.True(t, r.Contains(10, 10))
	assert.True(t, r.Contains(30, 15))
	assert.False(t, r.Contains(9.9, 12))
	assert.False(t, r.Contains(20, 16))
}
