// internal/ingest/parser.go
package ingest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// Parser extracts plain text from one file format.
type Parser interface {
	Parse(path string) (string, error)
}

// ParserRegistry dispatches files to format parsers by extension.
type ParserRegistry struct {
	parsers map[string]Parser
}

// NewParserRegistry returns a registry with the built-in parsers for
// .txt, .html, and .pdf files.
func NewParserRegistry() *ParserRegistry {
	return &ParserRegistry{
		parsers: map[string]Parser{
			".txt":  textParser{},
			".html": htmlParser{},
			".pdf":  pdfParser{},
		},
	}
}

// Supports reports whether the registry has a parser for the extension.
func (r *ParserRegistry) Supports(extension string) bool {
	_, ok := r.parsers[strings.ToLower(extension)]
	return ok
}

// Parse extracts text from the file at path, choosing the parser by the
// file's extension.
func (r *ParserRegistry) Parse(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	parser, ok := r.parsers[ext]
	if !ok {
		return "", fmt.Errorf("no parser for extension %q", ext)
	}
	text, err := parser.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("parse %s: document contains no extractable text", filepath.Base(path))
	}
	return text, nil
}

type textParser struct{}

func (textParser) Parse(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type htmlParser struct{}

// Parse strips markup and returns the document's visible text. Script and
// style bodies are removed first so they do not leak into chunks.
func (htmlParser) Parse(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", err
	}
	doc.Find("script, style, noscript").Remove()

	var b strings.Builder
	doc.Find("body").Each(func(_ int, sel *goquery.Selection) {
		b.WriteString(sel.Text())
	})
	text := b.String()
	if strings.TrimSpace(text) == "" {
		// No body element: fall back to the whole document.
		text = doc.Text()
	}
	return normalizeWhitespace(text), nil
}

type pdfParser struct{}

func (pdfParser) Parse(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// normalizeWhitespace collapses runs of blank lines and intra-line spaces
// left behind by markup removal.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
