package llm

import (
	"context"

	"github.com/doctorfill-dev/doctorfill/internal/resolve"
	"github.com/doctorfill-dev/doctorfill/internal/schema"
)

// Static resolves fields from a fixed answer map. It backs offline
// runs and tests, and is the resolver of last resort when no model
// provider is configured.
type Static struct {
	answers    map[string]resolve.Answer
	provenance resolve.Provenance
	confidence float64
}

// NewStatic creates a static resolver with generated provenance.
func NewStatic(answers map[string]resolve.Answer) *Static {
	return &Static{
		answers:    answers,
		provenance: resolve.ProvenanceGenerated,
		confidence: 1,
	}
}

// NewStaticManual creates a static resolver whose candidates carry
// manual provenance, as template-curated answers do.
func NewStaticManual(answers map[string]resolve.Answer) *Static {
	return &Static{
		answers:    answers,
		provenance: resolve.ProvenanceManual,
		confidence: 1,
	}
}

// Resolve returns the fixed answer for the field, or ErrNoAnswer.
func (s *Static) Resolve(_ context.Context, field schema.FieldSpec, _ string) (resolve.Candidate, error) {
	ans, ok := s.answers[field.ID]
	if !ok || ans.Empty() {
		return resolve.Candidate{}, resolve.ErrNoAnswer
	}
	ans.FieldID = field.ID
	return resolve.Candidate{
		Answer:     ans,
		Provenance: s.provenance,
		Confidence: s.confidence,
	}, nil
}
