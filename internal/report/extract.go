// Package report turns source medical report PDFs into the merged,
// chunked context text the resolver answers questions from.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	defaultMaxFileSize = 100 * 1024 * 1024
	maxTextSize        = 10 * 1024 * 1024
)

// Extractor reads plain text out of report PDFs.
type Extractor struct {
	maxFileSize int64
}

// NewExtractor creates an extractor with the given file size cap;
// zero means the default.
func NewExtractor(maxFileSize int64) *Extractor {
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}
	return &Extractor{maxFileSize: maxFileSize}
}

// ExtractText returns the text content of one report PDF.
func (e *Extractor) ExtractText(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("report %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("report %s is a directory", path)
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "", fmt.Errorf("report %s is not a PDF", path)
	}
	if info.Size() > e.maxFileSize {
		return "", fmt.Errorf("report %s too large: %d bytes (max %d)", path, info.Size(), e.maxFileSize)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open report %s: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	total := 0
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not lose the report.
			continue
		}
		if total+len(content) > maxTextSize {
			remaining := maxTextSize - total
			if remaining > 0 {
				b.WriteString(content[:remaining])
			}
			break
		}
		b.WriteString(content)
		total += len(content)
		b.WriteString("\n")
	}

	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("report %s: no extractable text", path)
	}
	return text, nil
}

// Merge extracts and concatenates several reports, each under a header
// naming its source file, in the order given.
func (e *Extractor) Merge(paths []string) (string, error) {
	var b strings.Builder
	var lastErr error
	merged := 0

	for _, p := range paths {
		text, err := e.ExtractText(p)
		if err != nil {
			lastErr = err
			continue
		}
		if merged > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "=== RAPPORT: %s ===\n\n", filepath.Base(p))
		b.WriteString(text)
		merged++
	}

	if merged == 0 {
		if lastErr != nil {
			return "", fmt.Errorf("no readable reports: %w", lastErr)
		}
		return "", fmt.Errorf("no reports given")
	}
	return b.String(), nil
}
