// Package pipeline drives one end-to-end form fill: schema load,
// datasets extraction, answer resolution, field filling, and
// re-injection into the output document.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/doctorfill-dev/doctorfill/internal/fill"
	"github.com/doctorfill-dev/doctorfill/internal/report"
	"github.com/doctorfill-dev/doctorfill/internal/resolve"
	"github.com/doctorfill-dev/doctorfill/internal/schema"
	"github.com/doctorfill-dev/doctorfill/internal/store"
	"github.com/doctorfill-dev/doctorfill/internal/xfa"
)

// FillRequest names one fill run: the registered form and the source
// report documents the answers come from.
type FillRequest struct {
	FormName    string
	ReportPaths []string

	// OutputKey is the store key for the filled document; empty means
	// a timestamped default next to the form name.
	OutputKey string
}

// SkippedField records one field that was not written and why.
type SkippedField struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// FillResult is the outward-facing record of one fill run. Field-local
// failures appear only in Skipped; a false Success means the run
// aborted and no output document exists.
type FillResult struct {
	Success      bool           `json:"success"`
	FormName     string         `json:"form_name"`
	FilledFields int            `json:"filled_fields"`
	TotalFields  int            `json:"total_fields"`
	Skipped      []SkippedField `json:"skipped,omitempty"`
	OutputKey    string         `json:"output_key,omitempty"`
}

// Orchestrator wires the fill stages together. It is safe for
// concurrent Run calls: all per-run state lives in the run, the only
// shared pieces (registry cache, report index inputs) are read-only.
type Orchestrator struct {
	registry  *schema.Registry
	resolver  resolve.Resolver
	documents store.Store
	extractor *report.Extractor
	fanout    resolve.FanOutConfig
	log       zerolog.Logger
}

// New assembles an orchestrator from its collaborators.
func New(
	registry *schema.Registry,
	resolver resolve.Resolver,
	documents store.Store,
	extractor *report.Extractor,
	fanout resolve.FanOutConfig,
	log zerolog.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		resolver:  resolver,
		documents: documents,
		extractor: extractor,
		fanout:    fanout,
		log:       log,
	}
}

// Run executes one fill. Schema and document errors abort the run and
// return a failed result alongside the error; no partially written
// document is ever saved.
func (o *Orchestrator) Run(ctx context.Context, req FillRequest) (*FillResult, error) {
	failed := &FillResult{FormName: req.FormName}

	sch, err := o.registry.Load(req.FormName)
	if err != nil {
		return failed, fmt.Errorf("load schema: %w", err)
	}
	failed.TotalFields = sch.Len()
	o.log.Info().
		Str("form", sch.Name).
		Int("fields", sch.Len()).
		Bool("generated", sch.Generated).
		Msg("schema loaded")

	formPath, err := o.registry.FormPDFPath(req.FormName)
	if err != nil {
		return failed, fmt.Errorf("locate form pdf: %w", err)
	}
	formBytes, err := o.documents.Load(ctx, formPath)
	if err != nil {
		return failed, fmt.Errorf("load form pdf: %w", err)
	}

	rawDatasets, err := xfa.ExtractDatasets(formBytes)
	if err != nil {
		return failed, fmt.Errorf("extract datasets: %w", err)
	}
	ds, err := xfa.ParseDatasets(rawDatasets)
	if err != nil {
		return failed, fmt.Errorf("parse datasets: %w", err)
	}

	answers := o.resolveAnswers(ctx, sch, req.ReportPaths)

	outcomes, err := fill.Apply(ds, sch, answers)
	if err != nil {
		return failed, fmt.Errorf("fill: %w", err)
	}

	serialized, err := ds.Serialize()
	if err != nil {
		return failed, fmt.Errorf("serialize datasets: %w", err)
	}
	outBytes, err := xfa.InjectDatasets(formBytes, serialized)
	if err != nil {
		return failed, fmt.Errorf("inject datasets: %w", err)
	}

	outputKey := req.OutputKey
	if outputKey == "" {
		outputKey = fmt.Sprintf("%s_filled_%s.pdf", sch.Name, time.Now().Format("20060102-150405"))
	}
	if err := o.documents.Save(ctx, outputKey, outBytes); err != nil {
		return failed, fmt.Errorf("save output: %w", err)
	}

	res := summarize(sch, outcomes)
	res.OutputKey = outputKey
	o.log.Info().
		Str("form", sch.Name).
		Int("filled", res.FilledFields).
		Int("total", res.TotalFields).
		Int("skipped", len(res.Skipped)).
		Str("output", outputKey).
		Msg("fill complete")
	return res, nil
}

// resolveAnswers gathers candidates for every field and applies the
// selection policy. Manual template answers enter as candidates like
// any other so precedence stays in one place (resolve.Pick).
func (o *Orchestrator) resolveAnswers(ctx context.Context, sch *schema.FormSchema, reportPaths []string) map[string]resolve.Answer {
	candidates := make(map[string][]resolve.Candidate)

	for _, f := range sch.Fields {
		if f.Answer != "" {
			candidates[f.ID] = append(candidates[f.ID], resolve.Candidate{
				Answer:     resolve.Answer{FieldID: f.ID, Value: f.Answer},
				Provenance: resolve.ProvenanceManual,
				Confidence: 1,
			})
		}
	}

	if o.resolver != nil {
		ix := o.buildIndex(reportPaths)
		contextFor := func(f schema.FieldSpec) string {
			return ix.ContextFor(f.Question, report.DefaultContextBudget)
		}
		generated := resolve.FanOut(ctx, o.resolver, sch.Fields, contextFor, o.fanout)
		for id, cands := range generated {
			candidates[id] = append(candidates[id], cands...)
		}
	}

	answers := make(map[string]resolve.Answer, len(candidates))
	for _, f := range sch.Fields {
		if a, ok := resolve.Pick(candidates[f.ID]); ok {
			answers[f.ID] = a
		}
	}
	return answers
}

// buildIndex merges the reports into a searchable index. Unreadable
// reports degrade to an empty index: the affected fields resolve to
// NoAnswer instead of failing the run.
func (o *Orchestrator) buildIndex(reportPaths []string) *report.Index {
	if len(reportPaths) == 0 {
		return report.NewIndex("", 0, 0)
	}
	merged, err := o.extractor.Merge(reportPaths)
	if err != nil {
		o.log.Warn().Err(err).Msg("report extraction failed; resolving without context")
		return report.NewIndex("", 0, 0)
	}
	return report.NewIndex(merged, report.DefaultChunkSize, report.DefaultChunkOverlap)
}

func summarize(sch *schema.FormSchema, outcomes []fill.FieldOutcome) *FillResult {
	res := &FillResult{
		Success:     true,
		FormName:    sch.Name,
		TotalFields: sch.Len(),
	}
	for _, oc := range outcomes {
		switch oc.Status {
		case fill.StatusWritten, fill.StatusOverflow:
			res.FilledFields++
		case fill.StatusSkipped:
			res.Skipped = append(res.Skipped, SkippedField{ID: oc.FieldID, Reason: string(oc.Reason)})
		}
	}
	return res
}
