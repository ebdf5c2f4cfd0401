// Package resolve defines the answer-resolution boundary: candidate
// answers with provenance, the deterministic selection policy between
// them, and the bounded fan-out that gathers candidates for every
// field of a schema.
package resolve

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/doctorfill-dev/doctorfill/internal/schema"
)

// ErrNoAnswer signals that a field cannot be answered from the
// available context. It is field-local and never fails a fill run.
var ErrNoAnswer = errors.New("no answer")

// Provenance tags where a candidate came from. Manually curated
// template answers always outrank generated fallbacks.
type Provenance int

const (
	ProvenanceGenerated Provenance = iota
	ProvenanceManual
)

func (p Provenance) String() string {
	if p == ProvenanceManual {
		return "manual"
	}
	return "generated"
}

// Answer is one resolved semantic value for a field. Exactly one of
// the value shapes is populated, matching the field type: Value for
// scalars, Items for repeat fields, Sub for block fields.
type Answer struct {
	FieldID string
	Value   string
	Items   []string
	Sub     map[string]string
}

// Empty reports whether the answer carries no content at all.
func (a Answer) Empty() bool {
	return a.Value == "" && len(a.Items) == 0 && len(a.Sub) == 0
}

// Candidate is an answer plus the metadata the selection policy ranks
// on. Seq records arrival order and breaks confidence ties, keeping
// selection deterministic across runs.
type Candidate struct {
	Answer     Answer
	Provenance Provenance
	Confidence float64
	Seq        int
}

// Pick selects the winning candidate: manual beats generated, then
// higher confidence, then earliest arrival. Returns false when no
// candidate carries content.
func Pick(candidates []Candidate) (Answer, bool) {
	live := candidates[:0:0]
	for _, c := range candidates {
		if !c.Answer.Empty() {
			live = append(live, c)
		}
	}
	if len(live) == 0 {
		return Answer{}, false
	}
	sort.SliceStable(live, func(i, j int) bool {
		if live[i].Provenance != live[j].Provenance {
			return live[i].Provenance > live[j].Provenance
		}
		if live[i].Confidence != live[j].Confidence {
			return live[i].Confidence > live[j].Confidence
		}
		return live[i].Seq < live[j].Seq
	})
	return live[0].Answer, true
}

// Resolver produces one candidate answer for one field, given the
// context text selected for its question. Implementations may be slow
// (model latency); callers apply the fan-out discipline below.
type Resolver interface {
	Resolve(ctx context.Context, field schema.FieldSpec, contextText string) (Candidate, error)
}

// FanOutConfig bounds the candidate-gathering stage.
type FanOutConfig struct {
	// Limit is the maximum number of in-flight Resolve calls.
	Limit int
	// Timeout bounds the whole fan-out, not individual fields.
	Timeout time.Duration
}

// FanOut requests a candidate for every field concurrently and joins
// before returning. A field whose request fails, returns ErrNoAnswer,
// or is cut off by the timeout simply contributes no candidate;
// resolution failures stay field-local.
func FanOut(
	ctx context.Context,
	r Resolver,
	fields []schema.FieldSpec,
	contextFor func(schema.FieldSpec) string,
	cfg FanOutConfig,
) map[string][]Candidate {
	if cfg.Limit <= 0 {
		cfg.Limit = 4
	}
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	type completion struct {
		cand Candidate
		ok   bool
	}

	jobs := make(chan schema.FieldSpec)
	done := make(chan completion, len(fields))

	workers := cfg.Limit
	if workers > len(fields) {
		workers = len(fields)
	}
	for w := 0; w < workers; w++ {
		go func() {
			for f := range jobs {
				cand, err := r.Resolve(ctx, f, contextFor(f))
				if err != nil {
					done <- completion{}
					continue
				}
				cand.Answer.FieldID = f.ID
				done <- completion{cand: cand, ok: true}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range fields {
			select {
			case jobs <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	out := make(map[string][]Candidate)
	seq := 0
	pending := len(fields)
	for pending > 0 {
		select {
		case c := <-done:
			pending--
			if c.ok {
				c.cand.Seq = seq
				seq++
				out[c.cand.Answer.FieldID] = append(out[c.cand.Answer.FieldID], c.cand)
			}
		case <-ctx.Done():
			// Workers still draining jobs observe the same ctx and
			// finish quickly; whatever did not complete degrades to
			// no candidate.
			return out
		}
	}
	return out
}
