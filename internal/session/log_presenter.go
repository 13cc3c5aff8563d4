package session

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"commuter/internal/activity"
	"commuter/internal/channel"
	"commuter/internal/coords"
)

// LogPresenter renders a session to a structured log, for headless use. The
// latest frame is written to FrameDir when set.
type LogPresenter struct {
	logger   *zap.Logger
	frameDir string
	lastLog  activity.Entry
}

// NewLogPresenter creates a presenter writing to logger.
func NewLogPresenter(logger *zap.Logger, frameDir string) *LogPresenter {
	return &LogPresenter{logger: logger.Named("view"), frameDir: frameDir}
}

func (p *LogPresenter) Render(f Frame) {
	p.logger.Debug("frame",
		zap.Int("width", f.NativeWidth),
		zap.Int("height", f.NativeHeight),
		zap.Int("bytes", len(f.Image)))
	if p.frameDir == "" {
		return
	}
	path := filepath.Join(p.frameDir, "latest_view"+f.Extension())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, f.Image, 0o644); err != nil {
		p.logger.Warn("write frame", zap.Error(err))
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		p.logger.Warn("write frame", zap.Error(err))
	}
}

func (p *LogPresenter) RenderTranscript(e TranscriptEntry) {
	p.logger.Info(e.Text, zap.String("role", string(e.Role)))
}

// RenderLog logs only the newest entry; the rest were logged before.
func (p *LogPresenter) RenderLog(entries []activity.Entry) {
	if len(entries) == 0 || entries[0] == p.lastLog {
		return
	}
	p.lastLog = entries[0]
	head := entries[0]
	if head.Category == activity.CategoryError {
		p.logger.Warn(head.Text, zap.String("category", string(head.Category)))
		return
	}
	p.logger.Info(head.Text, zap.String("category", string(head.Category)))
}

func (p *LogPresenter) SetMode(m Mode) {
	p.logger.Info("mode changed", zap.Stringer("mode", m))
}

func (p *LogPresenter) SetConnection(s channel.State) {
	p.logger.Info("connection", zap.Stringer("state", s))
}

func (p *LogPresenter) SetThinking(text string, visible bool) {
	if visible {
		p.logger.Info("agent thinking", zap.String("status", text))
	}
}

// DisplayRect reports no rectangle; a headless view never forwards clicks.
func (p *LogPresenter) DisplayRect() (coords.Rect, bool) {
	return coords.Rect{}, false
}
