// Package document turns uploaded CVs into plain text for the agent.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
)

// MinTextLength is the number of characters extracted text must exceed to
// count as a CV.
const MinTextLength = 50

var (
	// ErrUnsupported is returned for types other than PDF and plain text.
	ErrUnsupported = errors.New("unsupported document type")
	// ErrTooShort is returned when too little text could be extracted.
	ErrTooShort = errors.New("extracted text too short")
	// ErrUnreadable is returned for PDFs that cannot be parsed.
	ErrUnreadable = errors.New("unreadable document")
)

// Document is a sniffed upload and its text.
type Document struct {
	MIME string
	Text string
	// Length is the number of characters in Text.
	Length int
}

// Extract detects the content type of data and extracts its text.
func Extract(data []byte) (Document, error) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/pdf"):
		text, err := pdfText(data)
		if err != nil {
			return Document{MIME: "application/pdf"}, fmt.Errorf("%w: %v", ErrUnreadable, err)
		}
		return finish("application/pdf", text)
	case isText(mt):
		if !utf8.Valid(data) {
			return Document{}, fmt.Errorf("%w: text is not UTF-8", ErrUnsupported)
		}
		return finish("text/plain", string(data))
	default:
		return Document{}, fmt.Errorf("%w: %s", ErrUnsupported, mt.String())
	}
}

// isText reports whether mt is plain text or one of its subtypes, such as CSV.
func isText(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

func finish(mime, text string) (Document, error) {
	text = strings.Join(strings.Fields(strings.ToValidUTF8(text, "")), " ")
	doc := Document{MIME: mime, Text: text, Length: utf8.RuneCountInString(text)}
	if doc.Length <= MinTextLength {
		return doc, ErrTooShort
	}
	return doc, nil
}

// pdfText returns the text shown on every page, one page per line. Font
// encodings and ToUnicode maps are applied by the reader.
func pdfText(data []byte) (text string, err error) {
	// The reader panics on some malformed objects.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		fonts := make(map[string]*pdf.Font)
		for _, name := range p.Fonts() {
			f := p.Font(name)
			fonts[name] = &f
		}
		t, err := p.GetPlainText(fonts)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		sb.WriteString(t)
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
