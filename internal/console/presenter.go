package console

import (
	"commuter/internal/activity"
	"commuter/internal/channel"
	"commuter/internal/coords"
	"commuter/internal/session"

	"go.uber.org/zap"
)

const maxTranscript = 500

// presenter collects what the session wants shown. The model reads it when
// drawing. Every call happens inside Update.
type presenter struct {
	logger *zap.Logger

	frame      *session.Frame
	thumb      thumbnail
	thumbErr   error
	transcript []session.TranscriptEntry
	log        []activity.Entry
	mode       session.Mode
	connection channel.State
	thinking   string
	showThink  bool

	// Frame panel content area, in cells.
	left, top        int
	maxCols, maxRows int

	dirty bool
}

func newPresenter(logger *zap.Logger) *presenter {
	return &presenter{logger: logger}
}

func (p *presenter) Render(f session.Frame) {
	p.frame = &f
	p.redrawThumbnail()
}

func (p *presenter) RenderTranscript(e session.TranscriptEntry) {
	p.transcript = append(p.transcript, e)
	if len(p.transcript) > maxTranscript {
		p.transcript = p.transcript[len(p.transcript)-maxTranscript:]
	}
	p.dirty = true
}

func (p *presenter) RenderLog(entries []activity.Entry) {
	p.log = entries
	p.dirty = true
}

func (p *presenter) SetMode(m session.Mode) { p.mode = m }

func (p *presenter) SetConnection(s channel.State) { p.connection = s }

func (p *presenter) SetThinking(text string, visible bool) {
	p.thinking = text
	p.showThink = visible
}

// DisplayRect is the cell rectangle the thumbnail occupies. Mouse events
// arrive in the same cell space.
func (p *presenter) DisplayRect() (coords.Rect, bool) {
	if p.thumb.cols == 0 || p.thumb.rows == 0 {
		return coords.Rect{}, false
	}
	return coords.Rect{
		Left:   float64(p.left),
		Top:    float64(p.top),
		Width:  float64(p.thumb.cols),
		Height: float64(p.thumb.rows),
	}, true
}

// resize moves the frame panel and redraws the thumbnail for its new size.
func (p *presenter) resize(left, top, maxCols, maxRows int) {
	if left == p.left && top == p.top && maxCols == p.maxCols && maxRows == p.maxRows {
		return
	}
	p.left, p.top, p.maxCols, p.maxRows = left, top, maxCols, maxRows
	p.redrawThumbnail()
}

func (p *presenter) redrawThumbnail() {
	if p.frame == nil {
		return
	}
	thumb, err := renderThumbnail(p.frame.Image, p.maxCols, p.maxRows)
	if err != nil {
		p.logger.Warn("render frame", zap.Error(err))
		p.thumbErr = err
		p.thumb = thumbnail{}
		return
	}
	p.thumbErr = nil
	p.thumb = thumb
}
