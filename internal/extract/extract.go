// Package extract turns uploaded files into plain text for the pipeline.
// Only plain text, Markdown and DOCX are accepted; everything else is
// rejected before the pipeline sees it.
package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Format identifies a supported document type.
type Format string

const (
	FormatTXT  Format = "txt"
	FormatMD   Format = "md"
	FormatDocx Format = "docx"
)

var (
	// ErrUnsupportedFormat is returned for file types with no extractor.
	ErrUnsupportedFormat = errors.New("Unsupported file type.") //nolint:staticcheck // returned to HTTP clients verbatim
	// ErrLegacyDoc is returned for binary .doc files.
	ErrLegacyDoc = errors.New("DOC format not supported. Please use DOCX.") //nolint:staticcheck // returned to HTTP clients verbatim
	// ErrEncoding is returned when a text file is not valid UTF-8.
	ErrEncoding = errors.New("file is not valid UTF-8")
	// ErrTooLarge is returned when the content exceeds the read limit.
	ErrTooLarge = errors.New("file too large")
)

// DefaultMaxBytes caps how much of an upload is read.
const DefaultMaxBytes = 10 << 20

const documentPart = "word/document.xml"

// FormatOf maps a file name to its Format by extension.
func FormatOf(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return FormatTXT, nil
	case ".md":
		return FormatMD, nil
	case ".docx":
		return FormatDocx, nil
	case ".doc":
		return "", ErrLegacyDoc
	}
	return "", ErrUnsupportedFormat
}

// Text reads r as the file called name and returns its text. At most
// maxBytes are read; zero or less means DefaultMaxBytes.
func Text(name string, r io.Reader, maxBytes int64) (string, error) {
	f, err := FormatOf(name)
	if err != nil {
		return "", err
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", f, err)
	}
	if int64(len(data)) > maxBytes {
		return "", ErrTooLarge
	}

	switch f {
	case FormatDocx:
		return docxText(data)
	default:
		if !utf8.Valid(data) {
			return "", ErrEncoding
		}
		return string(data), nil
	}
}

// docxText returns the document body, one line per paragraph.
func docxText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	for _, zf := range zr.File {
		if zf.Name != documentPart {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return "", fmt.Errorf("open %s: %w", documentPart, err)
		}
		defer rc.Close() //nolint:errcheck // read-only
		return paragraphs(io.LimitReader(rc, DefaultMaxBytes*4))
	}
	return "", fmt.Errorf("docx: %s not found", documentPart)
}

// paragraphs walks WordprocessingML and joins the text runs of each w:p.
func paragraphs(r io.Reader) (string, error) {
	var (
		paras []string
		cur   strings.Builder
		inP   bool
		inT   bool
	)
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inP = true
				cur.Reset()
			case "t":
				inT = true
			case "tab":
				if inP {
					cur.WriteByte('\t')
				}
			case "br", "cr":
				if inP {
					cur.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				paras = append(paras, cur.String())
				inP = false
			case "t":
				inT = false
			}
		case xml.CharData:
			if inP && inT {
				cur.Write(t)
			}
		}
	}
	return strings.Join(paras, "\n"), nil
}
