package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctorfill-dev/doctorfill/internal/fill"
	"github.com/doctorfill-dev/doctorfill/internal/llm"
	"github.com/doctorfill-dev/doctorfill/internal/report"
	"github.com/doctorfill-dev/doctorfill/internal/resolve"
	"github.com/doctorfill-dev/doctorfill/internal/schema"
	"github.com/doctorfill-dev/doctorfill/internal/store"
)

const testTemplate = `{
  "form": "AI_Bericht",
  "fields": [
    {"id": "last_name", "path": "patient/lastName", "type": "text", "question": "Nom du patient?"},
    {"id": "diagnosis", "path": "diagnosis/primary", "type": "text", "question": "Diagnostic principal?"},
    {"id": "insurer", "path": "header/insurer", "type": "text", "answer": "Caisse ABC"}
  ]
}`

type testEnv struct {
	orchestrator *Orchestrator
	registry     *schema.Registry
	formsDir     string
	outDir       string
}

func newTestEnv(t *testing.T, resolver resolve.Resolver) *testEnv {
	t.Helper()

	templatesDir := t.TempDir()
	formsDir := t.TempDir()
	outDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(templatesDir, "AI_Bericht.json"), []byte(testTemplate), 0o640))
	// Not a real XFA document; runs against it must abort before saving.
	require.NoError(t, os.WriteFile(filepath.Join(formsDir, "AI_Bericht.pdf"), []byte("%PDF-1.7 garbage"), 0o640))

	registry, err := schema.NewRegistry(templatesDir, formsDir)
	require.NoError(t, err)
	documents, err := store.NewLocal(outDir, formsDir)
	require.NoError(t, err)

	o := New(
		registry,
		resolver,
		documents,
		report.NewExtractor(0),
		resolve.FanOutConfig{Limit: 2, Timeout: 5 * time.Second},
		zerolog.Nop(),
	)
	return &testEnv{orchestrator: o, registry: registry, formsDir: formsDir, outDir: outDir}
}

func TestRunUnknownFormFails(t *testing.T) {
	env := newTestEnv(t, llm.NewStatic(nil))

	res, err := env.orchestrator.Run(context.Background(), FillRequest{FormName: "Unknown_Form"})
	require.Error(t, err)
	assert.ErrorIs(t, err, schema.ErrSchemaNotFound)
	assert.False(t, res.Success)
	assert.Equal(t, "Unknown_Form", res.FormName)
}

func TestRunAbortsOnUnreadableFormDocument(t *testing.T) {
	env := newTestEnv(t, llm.NewStatic(nil))

	res, err := env.orchestrator.Run(context.Background(), FillRequest{FormName: "AI_Bericht", OutputKey: "out.pdf"})
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, 3, res.TotalFields, "the schema loaded before the abort")

	_, statErr := os.Stat(filepath.Join(env.outDir, "out.pdf"))
	assert.True(t, os.IsNotExist(statErr), "no output document is saved on an aborted run")
}

func TestResolveAnswersManualBeatsGenerated(t *testing.T) {
	env := newTestEnv(t, llm.NewStatic(map[string]resolve.Answer{
		"last_name": {Value: "Dupont"},
		"insurer":   {Value: "Caisse générée"},
	}))

	sch, err := env.registry.Load("AI_Bericht")
	require.NoError(t, err)

	answers := env.orchestrator.resolveAnswers(context.Background(), sch, nil)
	assert.Equal(t, "Dupont", answers["last_name"].Value)
	assert.Equal(t, "Caisse ABC", answers["insurer"].Value,
		"the template's curated answer outranks the generated one")
	_, ok := answers["diagnosis"]
	assert.False(t, ok, "unanswerable fields resolve to nothing")
}

func TestResolveAnswersWithoutResolver(t *testing.T) {
	env := newTestEnv(t, nil)

	sch, err := env.registry.Load("AI_Bericht")
	require.NoError(t, err)

	answers := env.orchestrator.resolveAnswers(context.Background(), sch, nil)
	require.Len(t, answers, 1)
	assert.Equal(t, "Caisse ABC", answers["insurer"].Value)
}

func TestBuildIndexDegradesOnBadReports(t *testing.T) {
	env := newTestEnv(t, llm.NewStatic(nil))

	ix := env.orchestrator.buildIndex([]string{"/nonexistent/report.pdf"})
	require.NotNil(t, ix)
	assert.Zero(t, ix.Len(), "unreadable reports degrade to an empty index")
}

func TestSummarizeCountsPartialFill(t *testing.T) {
	fields := make([]schema.FieldSpec, 10)
	for i := range fields {
		fields[i] = schema.FieldSpec{
			ID:   string(rune('a' + i)),
			Path: "form1/" + string(rune('a'+i)),
			Type: schema.FieldTypeText,
		}
	}
	sch, err := schema.NewFormSchema("AI_Bericht", fields)
	require.NoError(t, err)

	outcomes := []fill.FieldOutcome{
		{FieldID: "a", Status: fill.StatusWritten},
		{FieldID: "b", Status: fill.StatusWritten},
		{FieldID: "c", Status: fill.StatusOverflow},
		{FieldID: "d", Status: fill.StatusWritten},
		{FieldID: "e", Status: fill.StatusWritten},
		{FieldID: "f", Status: fill.StatusWritten},
		{FieldID: "g", Status: fill.StatusWritten},
		{FieldID: "h", Status: fill.StatusSkipped, Reason: fill.ReasonNoAnswer},
		{FieldID: "i", Status: fill.StatusSkipped, Reason: fill.ReasonNoAnswer},
		{FieldID: "j", Status: fill.StatusSkipped, Reason: fill.ReasonEncoding},
	}

	res := summarize(sch, outcomes)
	assert.True(t, res.Success)
	assert.Equal(t, 7, res.FilledFields, "overflowed fields count as filled")
	assert.Equal(t, 10, res.TotalFields)
	require.Len(t, res.Skipped, 3)
	assert.Equal(t, SkippedField{ID: "h", Reason: "no_answer"}, res.Skipped[0])
	assert.Equal(t, SkippedField{ID: "j", Reason: "encoding_error"}, res.Skipped[2])
}
