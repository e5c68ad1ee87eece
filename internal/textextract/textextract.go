// Package textextract pulls plain text out of TXT, PDF and DOCX attachments.
package textextract

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"golang.org/x/text/encoding/charmap"
)

const (
	// MaxChars caps the extracted text handed to the AI.
	MaxChars = 5000

	// MaxPDFPages bounds how many PDF pages are read.
	MaxPDFPages = 5
)

// ErrUnsupportedFormat is returned for extensions without an extractor.
var ErrUnsupportedFormat = errors.New("unsupported format for text extraction")

// Supported reports whether path has an extension Extract understands.
func Supported(path string) bool {
	switch ext(path) {
	case ".txt", ".pdf", ".docx":
		return true
	}
	return false
}

// Extract returns the text of path under a header naming its type and file,
// truncated to MaxChars characters.
func Extract(path string) (string, error) {
	var (
		text string
		err  error
	)
	kind := ext(path)
	switch kind {
	case ".txt":
		text, err = readTXT(path)
	case ".pdf":
		text, err = readPDF(path, MaxPDFPages)
	case ".docx":
		text, err = readDOCX(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, kind)
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToUpper(strings.TrimPrefix(kind, ".")), err)
	}

	header := fmt.Sprintf("--- %s CONTENT (%s) ---\n", strings.ToUpper(strings.TrimPrefix(kind, ".")), filepath.Base(path))
	return header + Truncate(text, MaxChars), nil
}

// Truncate cuts s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// readTXT decodes UTF-8, falling back to Latin-1 for files that are not valid UTF-8.
func readTXT(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�"), nil
	}
	return string(decoded), nil
}

func readPDF(path string, maxPages int) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var parts []string
	for i := 1; i <= r.NumPage() && i <= maxPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// readDOCX collects the non-empty paragraphs of word/document.xml.
func readDOCX(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return docxParagraphs(rc)
	}
	return "", errors.New("word/document.xml not found")
}

func docxParagraphs(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		current    strings.Builder
		inText     bool
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				current.WriteByte('\t')
			case "br":
				current.WriteByte('\n')
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				if strings.TrimSpace(current.String()) != "" {
					paragraphs = append(paragraphs, current.String())
				}
				current.Reset()
			}
		case xml.CharData:
			if inText {
				current.Write(el)
			}
		}
	}
	return strings.Join(paragraphs, "\n"), nil
}
