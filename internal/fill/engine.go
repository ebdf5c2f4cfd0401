// Package fill contains the field fill engine: given a parsed
// datasets tree, a form schema and the resolved answer set, it writes
// every answerable field and reports a per-field outcome. Mutation is
// strictly sequential; the tree is owned by the running fill.
package fill

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/doctorfill-dev/doctorfill/internal/convert"
	"github.com/doctorfill-dev/doctorfill/internal/resolve"
	"github.com/doctorfill-dev/doctorfill/internal/schema"
	"github.com/doctorfill-dev/doctorfill/internal/xfa"
)

// Status classifies what happened to one field.
type Status string

const (
	StatusWritten  Status = "written"
	StatusOverflow Status = "written_with_overflow"
	StatusSkipped  Status = "skipped"
)

// Reason explains a skip. Skips are field-local and never abort a run.
type Reason string

const (
	ReasonNoAnswer Reason = "no_answer"
	ReasonEncoding Reason = "encoding_error"
)

// FieldOutcome is the per-field result of one Apply pass.
type FieldOutcome struct {
	FieldID string
	Status  Status
	Reason  Reason
	Err     error
}

// overflowMarker prefixes overflowed content with a reference back to
// its source field, the forms' "suite" (continued) convention.
func overflowMarker(fieldID string) string {
	return "[suite " + fieldID + "] "
}

// Apply fills every schema field in declared order. Field-local
// failures produce skipped outcomes; a path miss is returned as an
// error because it means the schema and the document disagree about
// the form's structure, and nothing downstream can be trusted.
func Apply(ds *xfa.Datasets, sch *schema.FormSchema, answers map[string]resolve.Answer) ([]FieldOutcome, error) {
	outcomes := make([]FieldOutcome, 0, sch.Len())

	for _, f := range sch.Fields {
		answer, answered := answers[f.ID]
		if answered && answer.Empty() {
			answered = false
		}

		// A declared gate is written from answer presence alone,
		// independent of how the gated field itself turns out. The
		// gate marks "unable to answer", so it is on when no answer
		// resolved.
		if f.Gate != "" {
			gate, ok := sch.Field(f.Gate)
			if ok {
				sentinel := convert.EncodeBool(!answered, gate.EffectiveBoolStyle())
				if err := ds.SetText(gate.Path, sentinel); err != nil {
					return outcomes, fmt.Errorf("gate %s: %w", gate.ID, err)
				}
			}
		}

		if !answered {
			outcomes = append(outcomes, FieldOutcome{FieldID: f.ID, Status: StatusSkipped, Reason: ReasonNoAnswer})
			continue
		}

		outcome, err := writeField(ds, sch, f, answer)
		if err != nil {
			if errors.Is(err, xfa.ErrPathNotFound) {
				return outcomes, fmt.Errorf("field %s: %w", f.ID, err)
			}
			outcomes = append(outcomes, FieldOutcome{FieldID: f.ID, Status: StatusSkipped, Reason: ReasonEncoding, Err: err})
			continue
		}
		outcomes = append(outcomes, outcome)
	}

	return outcomes, nil
}

func writeField(ds *xfa.Datasets, sch *schema.FormSchema, f schema.FieldSpec, answer resolve.Answer) (FieldOutcome, error) {
	switch f.Type {
	case schema.FieldTypeRepeat:
		return writeRepeat(ds, f, answer)
	case schema.FieldTypeBlock:
		return writeBlock(ds, f, answer)
	default:
		return writeScalar(ds, sch, f, answer)
	}
}

// writeRepeat appends one sibling per list entry after any
// pre-existing entries; it never reorders what is already there.
func writeRepeat(ds *xfa.Datasets, f schema.FieldSpec, answer resolve.Answer) (FieldOutcome, error) {
	items := answer.Items
	if len(items) == 0 && answer.Value != "" {
		items = []string{answer.Value}
	}
	for _, item := range items {
		if err := ds.AppendSibling(f.Path, f.RepeatTag, strings.TrimSpace(item)); err != nil {
			return FieldOutcome{}, err
		}
	}
	return FieldOutcome{FieldID: f.ID, Status: StatusWritten}, nil
}

// writeBlock writes each provided subfield leaf under the block's
// grouping node, in stable subfield order.
func writeBlock(ds *xfa.Datasets, f schema.FieldSpec, answer resolve.Answer) (FieldOutcome, error) {
	subIDs := make([]string, 0, len(f.Subfields))
	for id := range f.Subfields {
		subIDs = append(subIDs, id)
	}
	sort.Strings(subIDs)

	for _, subID := range subIDs {
		value, ok := answer.Sub[subID]
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		leaf := f.Path + "/" + f.Subfields[subID]
		if err := ds.SetText(leaf, strings.TrimSpace(value)); err != nil {
			return FieldOutcome{}, err
		}
	}
	return FieldOutcome{FieldID: f.ID, Status: StatusWritten}, nil
}

func writeScalar(ds *xfa.Datasets, sch *schema.FormSchema, f schema.FieldSpec, answer resolve.Answer) (FieldOutcome, error) {
	encoded, err := convert.EncodeScalar(f, answer.Value)
	if err != nil {
		return FieldOutcome{}, err
	}

	// Overflow linking: content past the word limit moves to the
	// declared target instead of being discarded. The overflow write
	// happens only after the primary encoding decision is known.
	if isText(f.Type) && f.MaxWords > 0 && f.OverflowTo != "" &&
		convert.WordCount(encoded) > f.MaxWords {
		head, tail := convert.SplitWords(encoded, f.MaxWords)
		if err := ds.SetText(f.Path, head); err != nil {
			return FieldOutcome{}, err
		}
		target, _ := sch.Field(f.OverflowTo)
		if err := ds.SetText(target.Path, overflowMarker(f.ID)+tail); err != nil {
			return FieldOutcome{}, err
		}
		return FieldOutcome{FieldID: f.ID, Status: StatusOverflow}, nil
	}

	if err := ds.SetText(f.Path, encoded); err != nil {
		return FieldOutcome{}, err
	}
	return FieldOutcome{FieldID: f.ID, Status: StatusWritten}, nil
}

func isText(t schema.FieldType) bool {
	return t == schema.FieldTypeText || t == schema.FieldTypeMultiline
}
