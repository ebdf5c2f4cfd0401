package report

import (
	"regexp"
	"strings"
)

const (
	// DefaultChunkSize is the chunk length in characters.
	DefaultChunkSize = 1200
	// DefaultChunkOverlap is carried between consecutive chunks so
	// facts spanning a boundary stay retrievable.
	DefaultChunkOverlap = 200
)

var excessNewlines = regexp.MustCompile(`\n{3,}`)

// Chunk splits merged report text into overlapping chunks, preferring
// paragraph and sentence boundaries near each cut.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}

	text = excessNewlines.ReplaceAllString(text, "\n\n")

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end < len(text) {
			end = breakPoint(text, start, end)
		} else {
			end = len(text)
		}

		if c := strings.TrimSpace(text[start:end]); c != "" {
			chunks = append(chunks, c)
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// breakPoint scans the last 100 characters before end for a paragraph
// break, then a sentence break, and falls back to the hard cut.
func breakPoint(text string, start, end int) int {
	searchStart := end - 100
	if searchStart < start {
		searchStart = start
	}
	zone := text[searchStart:end]

	if i := strings.LastIndex(zone, "\n\n"); i != -1 {
		return searchStart + i + 2
	}
	for i := len(zone) - 2; i >= 0; i-- {
		switch zone[i] {
		case '.', '?', '!':
			if zone[i+1] == ' ' || zone[i+1] == '\n' {
				return searchStart + i + 2
			}
		}
	}
	return end
}
