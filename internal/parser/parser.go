package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"rag-chatbot/internal/models"
)

const (
	pageSeparator      = "\n"
	paragraphSeparator = "\n"
	maxTitleRunes      = 120
)

// Extractor turns raw file bytes into plain text. It holds no state and is
// safe for concurrent use.
type Extractor struct {
	md goldmark.Markdown
}

func NewExtractor() *Extractor {
	return &Extractor{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Extract converts data of the declared format into a single plain-text string.
func (e *Extractor) Extract(data []byte, format models.Format) (string, error) {
	switch format {
	case models.FormatPDF:
		return extractPDF(data)
	case models.FormatDOCX, models.FormatDOC:
		// .doc is only readable when it is an OOXML container; legacy binary
		// Word files fail here as corrupt input.
		return extractDOCX(data)
	case models.FormatText, models.FormatMarkdown:
		return extractText(data)
	default:
		return "", fmt.Errorf("%w: %q", models.ErrUnsupportedFormat, format)
	}
}

// ExtractFile reads the file at path and extracts it using the format implied
// by its extension.
func (e *Extractor) ExtractFile(path string) (string, models.Format, error) {
	format, err := models.FormatFromFilename(path)
	if err != nil {
		return "", "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	content, err := e.Extract(data, format)
	return content, format, err
}

// Title picks a display title: the first Markdown heading, otherwise the
// first non-empty line, otherwise the file name without its extension.
func (e *Extractor) Title(content string, format models.Format, filename string) string {
	if format == models.FormatMarkdown {
		if title := e.markdownTitle([]byte(content)); title != "" {
			return truncateRunes(title, maxTitleRunes)
		}
	}
	for _, line := range strings.Split(content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return truncateRunes(line, maxTitleRunes)
		}
	}
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func extractPDF(data []byte) (content string, err error) {
	// ledongthuc/pdf panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			content, err = "", fmt.Errorf("%w: pdf reader: %v", models.ErrExtraction, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: pdf reader: %v", models.ErrExtraction, err)
	}
	return joinPages(reader.NumPage(), func(i int) (string, error) {
		page := reader.Page(i)
		if page.V.IsNull() {
			return "", nil
		}
		return page.GetPlainText(nil)
	})
}

// joinPages concatenates pages 1..numPages in order. A page without text
// contributes an empty string.
func joinPages(numPages int, pageText func(i int) (string, error)) (string, error) {
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		t, err := pageText(i)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", models.ErrExtraction, i, err)
		}
		pages = append(pages, t)
	}
	return strings.Join(pages, pageSeparator), nil
}

func extractDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: docx reader: %v", models.ErrExtraction, err)
	}
	defer r.Close()

	return paragraphText(r.Editable().GetContent())
}

// word/document.xml, body-level paragraphs only
type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []struct {
		Text []struct {
			Content string `xml:",chardata"`
		} `xml:"t"`
	} `xml:"r"`
}

func paragraphText(documentXMLContent string) (string, error) {
	var doc documentXML
	if err := xml.Unmarshal([]byte(documentXMLContent), &doc); err != nil {
		return "", fmt.Errorf("%w: docx body: %v", models.ErrExtraction, err)
	}

	paragraphs := make([]string, 0, len(doc.Body.Paragraphs))
	for _, p := range doc.Body.Paragraphs {
		var b strings.Builder
		for _, run := range p.Runs {
			for _, t := range run.Text {
				b.WriteString(t.Content)
			}
		}
		paragraphs = append(paragraphs, b.String())
	}
	return strings.Join(paragraphs, paragraphSeparator), nil
}

func extractText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: content is not valid UTF-8", models.ErrExtraction)
	}
	return string(data), nil
}

func (e *Extractor) markdownTitle(src []byte) string {
	root := e.md.Parser().Parse(text.NewReader(src))

	var title string
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok {
			title = strings.TrimSpace(inlineText(h, src))
			if title != "" {
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return title
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if t, ok := c.(*ast.Text); ok && entering {
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
