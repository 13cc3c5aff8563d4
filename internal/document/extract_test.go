package document

import (
	"bytes"
	"compress/zlib"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a one-page PDF with a Helvetica font and content as its
// page stream, including a valid cross-reference table.
func buildPDF(t *testing.T, content string, compress bool) []byte {
	t.Helper()
	stream := []byte(content)
	filter := ""
	if compress {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		_, err := zw.Write(stream)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
		stream = buf.Bytes()
		filter = " /Filter /FlateDecode"
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 5 0 R >> >> /Contents 4 0 R >>",
		fmt.Sprintf("<< /Length %d%s >>\nstream\n%s\nendstream", len(stream), filter, stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return out.Bytes()
}

const cvContent = `BT /F1 12 Tf 14 TL 72 720 Td (Ada Lovelace) Tj T*
(Senior Backend Engineer \(Go\)) Tj T*
[(Ten years building )(distributed systems)] TJ T*
(ada@example.com) Tj ET`

func TestExtractPDF(t *testing.T) {
	for _, compress := range []bool{false, true} {
		doc, err := Extract(buildPDF(t, cvContent, compress))
		require.NoError(t, err, "compress=%v", compress)
		assert.Equal(t, "application/pdf", doc.MIME)
		assert.Contains(t, doc.Text, "Ada Lovelace")
		assert.Contains(t, doc.Text, "Senior Backend Engineer (Go)")
		assert.Contains(t, doc.Text, "Ten years building distributed systems")
		assert.Contains(t, doc.Text, "ada@example.com")
	}
}

func TestExtractPDFHexStrings(t *testing.T) {
	line := "Jane Doe, Site Reliability Engineer, Kubernetes and Go since 2015"
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td <%s> Tj ET", hex.EncodeToString([]byte(line)))

	doc, err := Extract(buildPDF(t, content, true))
	require.NoError(t, err)
	assert.Equal(t, line, doc.Text)
	assert.Equal(t, len(line), doc.Length)
}

func TestExtractPDFTooShort(t *testing.T) {
	_, err := Extract(buildPDF(t, "BT /F1 12 Tf (Hi) Tj ET", true))
	assert.True(t, errors.Is(err, ErrTooShort))
}

func TestExtractPDFUnreadable(t *testing.T) {
	_, err := Extract([]byte("%PDF-1.4\nthis is not really a pdf at all\n%%EOF\n"))
	assert.True(t, errors.Is(err, ErrUnreadable), "got %v", err)
}

func TestExtractText(t *testing.T) {
	text := strings.Repeat("Experienced engineer.   ", 5)
	doc, err := Extract([]byte(text))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", doc.MIME)
	assert.NotContains(t, doc.Text, "  ")

	_, err = Extract([]byte("short"))
	assert.True(t, errors.Is(err, ErrTooShort))
}

func TestExtractTextSubtype(t *testing.T) {
	csv := "company,role,years\nAcme,backend engineer,4\nGlobex,platform lead,6\n"
	doc, err := Extract([]byte(csv))
	require.NoError(t, err)
	assert.Equal(t, "text/plain", doc.MIME)
	assert.Contains(t, doc.Text, "Globex,platform lead,6")
}

func TestExtractCountsCharactersNotBytes(t *testing.T) {
	// 30 characters but 60 bytes.
	doc, err := Extract([]byte(strings.Repeat("é", 30)))
	assert.True(t, errors.Is(err, ErrTooShort))
	assert.Equal(t, 30, doc.Length)

	doc, err = Extract([]byte(strings.Repeat("é", 51)))
	require.NoError(t, err)
	assert.Equal(t, 51, doc.Length)
}

func TestExtractRejectsOtherTypes(t *testing.T) {
	_, err := Extract([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	assert.True(t, errors.Is(err, ErrUnsupported))
}
