package browser

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
)

// Fake is an in-memory Browser that serves a solid frame and records input.
type Fake struct {
	mu      sync.Mutex
	width   int
	height  int
	frame   []byte
	url     string
	clicks  [][2]int
	typed   []string
	targets []string
	shots   int
	closed  bool
	FailErr error
	// Missing lists selectors that match no element.
	Missing []string
}

var _ Browser = (*Fake)(nil)

// NewFake creates a fake with the given viewport.
func NewFake(width, height int) *Fake {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 30, B: 46, A: 255})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return &Fake{width: width, height: height, frame: buf.Bytes(), url: "about:blank"}
}

func (f *Fake) check() error {
	if f.closed {
		return ErrClosed
	}
	return f.FailErr
}

func (f *Fake) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	f.url = url
	return nil
}

func (f *Fake) Screenshot(_ context.Context) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return nil, err
	}
	f.shots++
	return append([]byte(nil), f.frame...), nil
}

func (f *Fake) Click(_ context.Context, x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	if x < 0 || y < 0 || x >= f.width || y >= f.height {
		return fmt.Errorf("click (%d,%d) outside viewport %dx%d", x, y, f.width, f.height)
	}
	f.clicks = append(f.clicks, [2]int{x, y})
	return nil
}

func (f *Fake) Type(_ context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	f.typed = append(f.typed, text)
	return nil
}

func (f *Fake) ClickElement(_ context.Context, selector string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.find(selector); err != nil {
		return err
	}
	f.targets = append(f.targets, selector)
	return nil
}

func (f *Fake) TypeInto(_ context.Context, selector, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.find(selector); err != nil {
		return err
	}
	f.targets = append(f.targets, selector)
	f.typed = append(f.typed, text)
	return nil
}

func (f *Fake) find(selector string) error {
	if err := f.check(); err != nil {
		return err
	}
	for _, m := range f.Missing {
		if m == selector {
			return fmt.Errorf("no element matches %s", selector)
		}
	}
	return nil
}

func (f *Fake) Viewport() (int, int) { return f.width, f.height }

func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Clicks returns the recorded clicks.
func (f *Fake) Clicks() [][2]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]int(nil), f.clicks...)
}

// Typed returns the recorded text inputs.
func (f *Fake) Typed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.typed...)
}

// Targets returns the selectors clicked or typed into, in order.
func (f *Fake) Targets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.targets...)
}

// Screenshots returns how many frames were captured.
func (f *Fake) Screenshots() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shots
}

// URL returns the last navigated URL.
func (f *Fake) URL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url
}
