// Package browser drives the remote browser the agent and the operator share.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const actionTimeout = 10 * time.Second

// ErrClosed is returned after Close.
var ErrClosed = errors.New("browser closed")

// Browser is the surface the hub needs.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	// Screenshot returns a PNG of the current viewport.
	Screenshot(ctx context.Context) ([]byte, error)
	Click(ctx context.Context, x, y int) error
	Type(ctx context.Context, text string) error
	// ClickElement clicks the first visible element matching a CSS selector.
	ClickElement(ctx context.Context, selector string) error
	// TypeInto focuses the element matching selector and types text into it.
	TypeInto(ctx context.Context, selector, text string) error
	Viewport() (width, height int)
	Close() error
}

// Options configures Launch.
type Options struct {
	// RemoteURL attaches to an existing browser's debugging endpoint instead
	// of launching one.
	RemoteURL string
	Headless  bool
	Width     int
	Height    int
	StartURL  string
	Logger    *zap.Logger
}

// Chrome is a Browser backed by chromedp.
type Chrome struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	width       int
	height      int
	logger      *zap.Logger
}

var _ Browser = (*Chrome)(nil)

// Launch starts or attaches to a browser and opens one tab at the start URL.
func Launch(ctx context.Context, opts Options) (*Chrome, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid viewport %dx%d", opts.Width, opts.Height)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("browser")

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.RemoteURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.WindowSize(opts.Width, opts.Height),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocOpts...)
	}

	sugar := logger.Sugar()
	tabCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Warnf),
	)

	start := opts.StartURL
	if start == "" {
		start = "about:blank"
	}
	err := chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(start),
	)
	if err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	logger.Info("browser ready",
		zap.Bool("remote", opts.RemoteURL != ""),
		zap.Int("width", opts.Width),
		zap.Int("height", opts.Height),
		zap.String("url", start),
	)
	return &Chrome{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		width:       opts.Width,
		height:      opts.Height,
		logger:      logger,
	}, nil
}

// run executes actions on the tab, bounded by ctx and the action timeout.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	opCtx, cancel := context.WithTimeout(c.ctx, actionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(opCtx, actions...)
}

// Navigate loads url in the tab.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Screenshot captures the viewport.
func (c *Chrome) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := c.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return buf, nil
}

// Click presses and releases the left button at viewport coordinates.
func (c *Chrome) Click(ctx context.Context, x, y int) error {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return fmt.Errorf("click (%d,%d) outside viewport %dx%d", x, y, c.width, c.height)
	}
	fx, fy := float64(x), float64(y)
	err := c.run(ctx,
		input.DispatchMouseEvent(input.MouseMoved, fx, fy),
		input.DispatchMouseEvent(input.MousePressed, fx, fy).WithButton(input.Left).WithButtons(1).WithClickCount(1),
		input.DispatchMouseEvent(input.MouseReleased, fx, fy).WithButton(input.Left).WithClickCount(1),
	)
	if err != nil {
		return fmt.Errorf("click (%d,%d): %w", x, y, err)
	}
	c.logger.Debug("clicked", zap.Int("x", x), zap.Int("y", y))
	return nil
}

// Type sends text to the focused element.
func (c *Chrome) Type(ctx context.Context, text string) error {
	if err := c.run(ctx, chromedp.KeyEvent(text)); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	return nil
}

// ClickElement waits for selector to be visible and clicks it.
func (c *Chrome) ClickElement(ctx context.Context, selector string) error {
	if err := c.run(ctx, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	c.logger.Debug("clicked element", zap.String("selector", selector))
	return nil
}

// TypeInto clicks the element matching selector, then sends text to it.
func (c *Chrome) TypeInto(ctx context.Context, selector, text string) error {
	err := c.run(ctx,
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

// Viewport returns the fixed viewport size.
func (c *Chrome) Viewport() (int, int) { return c.width, c.height }

// Close closes the tab and, for launched browsers, the browser process.
func (c *Chrome) Close() error {
	c.cancel()
	c.allocCancel()
	return nil
}
