package extract

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const docBody = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Why did John Smith</w:t></w:r><w:r><w:t xml:space="preserve"> leave?</w:t></w:r></w:p>
    <w:p><w:r><w:t>Call</w:t><w:tab/><w:t>555-123-4567</w:t></w:r></w:p>
    <w:p/>
    <w:p><w:r><w:t>line one</w:t><w:br/><w:t>line two</w:t></w:r></w:p>
    <w:sectPr><w:pgSz w:w="12240"/></w:sectPr>
  </w:body>
</w:document>`

func docx(t *testing.T, parts map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range parts {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestFormatOf(t *testing.T) {
	tests := []struct {
		name string
		want Format
		err  error
	}{
		{"notes.txt", FormatTXT, nil},
		{"README.MD", FormatMD, nil},
		{"report.docx", FormatDocx, nil},
		{"legacy.doc", "", ErrLegacyDoc},
		{"scan.pdf", "", ErrUnsupportedFormat},
		{"noext", "", ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FormatOf(tt.name)
			assert.Equal(t, tt.want, got)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestText_Plain(t *testing.T) {
	got, err := Text("a.md", strings.NewReader("# Zoë\nmail me"), 0)
	require.NoError(t, err)
	assert.Equal(t, "# Zoë\nmail me", got)
}

func TestText_InvalidUTF8(t *testing.T) {
	_, err := Text("a.txt", bytes.NewReader([]byte{0xff, 0xfe, 'x'}), 0)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestText_TooLarge(t *testing.T) {
	_, err := Text("a.txt", strings.NewReader("0123456789"), 5)
	assert.ErrorIs(t, err, ErrTooLarge)

	got, err := Text("a.txt", strings.NewReader("01234"), 5)
	require.NoError(t, err)
	assert.Equal(t, "01234", got)
}

func TestText_Docx(t *testing.T) {
	data := docx(t, map[string]string{
		"[Content_Types].xml": `<Types/>`,
		documentPart:          docBody,
	})
	got, err := Text("report.docx", bytes.NewReader(data), 0)
	require.NoError(t, err)
	assert.Equal(t, "Why did John Smith leave?\nCall\t555-123-4567\n\nline one\nline two", got)
}

func TestText_DocxMissingBody(t *testing.T) {
	data := docx(t, map[string]string{"word/styles.xml": `<w:styles/>`})
	_, err := Text("report.docx", bytes.NewReader(data), 0)
	assert.ErrorContains(t, err, "not found")
}

func TestText_DocxNotZip(t *testing.T) {
	_, err := Text("report.docx", strings.NewReader("plain text pretending"), 0)
	assert.ErrorContains(t, err, "open docx")
}

func TestText_RejectsBeforeReading(t *testing.T) {
	_, err := Text("old.doc", failingReader{}, 0)
	assert.ErrorIs(t, err, ErrLegacyDoc)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { panic("reader must not be used") }
