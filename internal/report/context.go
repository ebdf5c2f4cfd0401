package report

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultContextBudget caps the context handed to the resolver, in
// characters (roughly a quarter of that in tokens).
const DefaultContextBudget = 12000

// Index holds the chunked reports and answers per-question context
// selection. It is read-only after New and safe to share across the
// resolver fan-out.
type Index struct {
	chunks []string
	terms  []map[string]int
}

// NewIndex chunks the merged report text and precomputes term counts.
func NewIndex(merged string, chunkSize, overlap int) *Index {
	chunks := Chunk(merged, chunkSize, overlap)
	terms := make([]map[string]int, len(chunks))
	for i, c := range chunks {
		terms[i] = termCounts(c)
	}
	return &Index{chunks: chunks, terms: terms}
}

// Len reports the number of chunks.
func (ix *Index) Len() int { return len(ix.chunks) }

// ContextFor returns the chunks most relevant to the question, best
// first, concatenated within the character budget. With no scoring
// signal at all, the leading chunks are returned so short documents
// still answer.
func (ix *Index) ContextFor(question string, budget int) string {
	if budget <= 0 {
		budget = DefaultContextBudget
	}
	qTerms := termCounts(question)

	type scored struct {
		idx   int
		score float64
	}
	ranked := make([]scored, len(ix.chunks))
	for i := range ix.chunks {
		ranked[i] = scored{idx: i, score: overlapScore(qTerms, ix.terms[i])}
	}
	sort.SliceStable(ranked, func(a, b int) bool { return ranked[a].score > ranked[b].score })

	var b strings.Builder
	for _, r := range ranked {
		chunk := ix.chunks[r.idx]
		if b.Len()+len(chunk) > budget {
			if b.Len() == 0 {
				// Back up to a rune boundary so the cut never splits
				// a multi-byte character.
				cut := budget
				for cut > 0 && !utf8.RuneStart(chunk[cut]) {
					cut--
				}
				b.WriteString(chunk[:cut])
			}
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString(chunk)
	}
	return b.String()
}

// overlapScore is a keyword-overlap score weighted by term frequency.
func overlapScore(question, chunk map[string]int) float64 {
	var s float64
	for term := range question {
		if n, ok := chunk[term]; ok {
			s += float64(n)
		}
	}
	return s
}

// stop words too common to carry signal, French and English mixed as
// the reports are.
var stopWords = map[string]bool{
	"le": true, "la": true, "les": true, "de": true, "des": true, "du": true,
	"un": true, "une": true, "et": true, "en": true, "est": true, "que": true,
	"the": true, "a": true, "an": true, "of": true, "and": true, "is": true,
	"in": true, "to": true, "for": true,
}

func termCounts(text string) map[string]int {
	counts := make(map[string]int)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		if len(w) < 3 || stopWords[w] {
			continue
		}
		counts[w]++
	}
	return counts
}
