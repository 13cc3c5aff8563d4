package session

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnsupportedImage is returned for screenshots that are not a known image
// format.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Frame is the most recent screenshot of the remote browser.
type Frame struct {
	Image        []byte
	MIME         string
	NativeWidth  int
	NativeHeight int
	ReceivedAt   time.Time
}

// Extension returns the file extension matching the frame's format.
func (f Frame) Extension() string {
	if m := mimetype.Lookup(f.MIME); m != nil {
		return m.Extension()
	}
	return ".bin"
}

// DecodeFrame decodes a base64 screenshot payload. A data URL prefix is
// accepted.
func DecodeFrame(data string, at time.Time) (Frame, error) {
	if i := strings.Index(data, ";base64,"); i >= 0 && strings.HasPrefix(data, "data:") {
		data = data[i+len(";base64,"):]
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(data))
	if err != nil {
		return Frame{}, fmt.Errorf("decode screenshot: %w", err)
	}

	mt := mimetype.Detect(raw)
	if !mt.Is("image/png") && !mt.Is("image/jpeg") && !mt.Is("image/gif") {
		return Frame{}, fmt.Errorf("%w: %s", ErrUnsupportedImage, mt.String())
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return Frame{}, fmt.Errorf("read image header: %w", err)
	}

	return Frame{
		Image:        raw,
		MIME:         mt.String(),
		NativeWidth:  cfg.Width,
		NativeHeight: cfg.Height,
		ReceivedAt:   at,
	}, nil
}
