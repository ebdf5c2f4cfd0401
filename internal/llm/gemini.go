// Package llm provides resolver implementations that turn source
// report context into candidate answers, one field at a time.
package llm

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"github.com/doctorfill-dev/doctorfill/internal/resolve"
	"github.com/doctorfill-dev/doctorfill/internal/schema"
)

const unknownMarker = "UNKNOWN"

// Gemini resolves field answers with the Gemini API. It is a thin
// wrapper around the official genai client; retries and rate limiting
// stay with the caller's fan-out discipline.
type Gemini struct {
	cli   *genai.Client
	model string
}

// NewGemini creates a resolver for the given model. The API key is
// read from the environment by the genai client.
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{cli: cli, model: model}, nil
}

// Resolve asks the model the field's question over the given context
// and returns a generated-provenance candidate. ErrNoAnswer is
// returned when the model cannot ground an answer in the context.
func (g *Gemini) Resolve(ctx context.Context, field schema.FieldSpec, contextText string) (resolve.Candidate, error) {
	if field.Question == "" {
		return resolve.Candidate{}, resolve.ErrNoAnswer
	}

	prompt := buildPrompt(field, contextText)
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: prompt}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "text/plain"},
	)
	if err != nil {
		return resolve.Candidate{}, fmt.Errorf("gemini: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return resolve.Candidate{}, resolve.ErrNoAnswer
	}

	raw := resp.Candidates[0].Content.Parts[0].Text
	value, err := CleanResponse(raw)
	if err != nil {
		return resolve.Candidate{}, err
	}

	ans := resolve.Answer{FieldID: field.ID}
	if field.Type == schema.FieldTypeRepeat {
		ans.Items = SplitList(value)
	} else {
		ans.Value = value
	}
	return resolve.Candidate{
		Answer:     ans,
		Provenance: resolve.ProvenanceGenerated,
		Confidence: 0.5,
	}, nil
}

func buildPrompt(field schema.FieldSpec, contextText string) string {
	var b strings.Builder
	b.WriteString("You extract facts from medical reports to fill an official form.\n")
	b.WriteString("Answer the question using only the report excerpts below.\n")
	b.WriteString("Reply with the bare value, no explanation. ")
	b.WriteString("If the reports do not contain the answer, reply exactly " + unknownMarker + ".\n")

	switch field.Type {
	case schema.FieldTypeBoolean:
		b.WriteString("Reply oui or non.\n")
	case schema.FieldTypeDate:
		b.WriteString("Reply as a date in the form DD.MM.YYYY.\n")
	case schema.FieldTypeEnum:
		b.WriteString("Reply with one of: " + strings.Join(field.Enum, ", ") + "\n")
	case schema.FieldTypeRepeat:
		b.WriteString("Reply with a comma-separated list.\n")
	}

	b.WriteString("\n[QUESTION]\n")
	b.WriteString(field.Question)
	b.WriteString("\n\n[REPORT EXCERPTS]\n")
	b.WriteString(contextText)
	return b.String()
}
