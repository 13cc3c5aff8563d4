package console

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const upperHalfBlock = "▀"

// fitCells returns the cell grid a width x height image occupies when drawn
// with half blocks inside maxCols x maxRows cells. Each cell carries two
// vertically stacked pixels, so the aspect ratio is kept.
func fitCells(width, height, maxCols, maxRows int) (cols, rows int) {
	if width <= 0 || height <= 0 || maxCols <= 0 || maxRows <= 0 {
		return 0, 0
	}
	scale := math.Min(float64(maxCols)/float64(width), float64(2*maxRows)/float64(height))
	cols = max(1, int(math.Round(float64(width)*scale)))
	pixRows := max(1, int(math.Round(float64(height)*scale)))
	rows = (pixRows + 1) / 2
	return min(cols, maxCols), min(rows, maxRows)
}

// thumbnail is a frame rendered for the terminal.
type thumbnail struct {
	text string
	cols int
	rows int
}

// renderThumbnail decodes data and draws it in at most maxCols x maxRows
// cells using nearest-neighbour sampling.
func renderThumbnail(data []byte, maxCols, maxRows int) (thumbnail, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return thumbnail{}, fmt.Errorf("decode frame: %w", err)
	}
	b := img.Bounds()
	cols, rows := fitCells(b.Dx(), b.Dy(), maxCols, maxRows)
	if cols == 0 {
		return thumbnail{}, nil
	}

	pixRows := rows * 2
	sample := func(cx, py int) lipgloss.Color {
		x := b.Min.X + cx*b.Dx()/cols
		y := b.Min.Y + py*b.Dy()/pixRows
		if y >= b.Max.Y {
			y = b.Max.Y - 1
		}
		r, g, bl, _ := img.At(x, y).RGBA()
		return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, bl>>8))
	}

	var sb strings.Builder
	for row := 0; row < rows; row++ {
		if row > 0 {
			sb.WriteByte('\n')
		}
		for col := 0; col < cols; col++ {
			cell := lipgloss.NewStyle().
				Foreground(sample(col, row*2)).
				Background(sample(col, row*2+1))
			sb.WriteString(cell.Render(upperHalfBlock))
		}
	}
	return thumbnail{text: sb.String(), cols: cols, rows: rows}, nil
}
