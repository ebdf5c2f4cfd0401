package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/doctorfill-dev/doctorfill/internal/xfa"
)

// ErrSchemaNotFound reports that no template is registered for a form.
var ErrSchemaNotFound = errors.New("schema not found")

const registryCacheSize = 64

// templateFile is the on-disk JSON shape of a manual template.
type templateFile struct {
	Form   string      `json:"form"`
	Label  string      `json:"label,omitempty"`
	Fields []FieldSpec `json:"fields"`
}

// FormInfo describes one registered form without loading its schema.
type FormInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Label string `json:"label"`
}

// Registry loads form schemas from a templates directory and caches
// them for the process lifetime. Schemas are validated exactly once,
// at load; cached entries are immutable and safe to share across
// concurrent fill runs.
type Registry struct {
	templatesDir string
	formsDir     string

	mu    sync.Mutex
	cache *lru.Cache[string, *FormSchema]
}

// NewRegistry creates a registry over a templates directory and the
// directory holding the blank form PDFs.
func NewRegistry(templatesDir, formsDir string) (*Registry, error) {
	absTemplates, err := filepath.Abs(templatesDir)
	if err != nil {
		return nil, fmt.Errorf("resolve templates dir: %w", err)
	}
	absForms, err := filepath.Abs(formsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve forms dir: %w", err)
	}
	cache, err := lru.New[string, *FormSchema](registryCacheSize)
	if err != nil {
		return nil, err
	}
	return &Registry{
		templatesDir: absTemplates,
		formsDir:     absForms,
		cache:        cache,
	}, nil
}

// Load returns the validated schema for a form name, loading it on
// first use. A curated template always wins; a form with no template
// but a registered blank PDF gets a schema generated from the form's
// own datasets structure. Returns ErrSchemaNotFound if neither exists,
// or a *ValidationError if the template is unsound.
func (r *Registry) Load(formName string) (*FormSchema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.cache.Get(formName); ok {
		return s, nil
	}

	path, err := r.templatePath(formName)
	if err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r.loadGenerated(formName)
		}
		return nil, fmt.Errorf("read template %s: %w", path, err)
	}

	var tf templateFile
	if err := json.Unmarshal(raw, &tf); err != nil {
		return nil, &ValidationError{Form: formName, Problems: []string{"template is not valid JSON: " + err.Error()}}
	}
	if len(tf.Fields) == 0 {
		return nil, &ValidationError{Form: formName, Problems: []string{"template declares no fields"}}
	}

	s, err := NewFormSchema(formName, tf.Fields)
	if err != nil {
		return nil, err
	}

	r.cache.Add(formName, s)
	return s, nil
}

// loadGenerated derives a schema from the blank form's datasets
// structure. Caller holds the registry lock.
func (r *Registry) loadGenerated(formName string) (*FormSchema, error) {
	pdfPath, err := resolveWithin(r.formsDir, filepath.Join(r.formsDir, formName+".pdf"))
	if err != nil {
		return nil, err
	}
	pdfBytes, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("form %q: %w", formName, ErrSchemaNotFound)
	}

	rawDatasets, err := xfa.ExtractDatasets(pdfBytes)
	if err != nil {
		return nil, fmt.Errorf("generate schema for form %q: %w", formName, err)
	}
	ds, err := xfa.ParseDatasets(rawDatasets)
	if err != nil {
		return nil, fmt.Errorf("generate schema for form %q: %w", formName, err)
	}

	s, err := GenerateFormSchema(formName, ds)
	if err != nil {
		return nil, err
	}
	r.cache.Add(formName, s)
	return s, nil
}

// FormPDFPath returns the path of the blank form PDF for a form name,
// verifying it stays inside the configured forms directory.
func (r *Registry) FormPDFPath(formName string) (string, error) {
	p, err := resolveWithin(r.formsDir, filepath.Join(r.formsDir, formName+".pdf"))
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		return "", fmt.Errorf("form %q: %w", formName, ErrSchemaNotFound)
	}
	return p, nil
}

// List enumerates the forms for which a template file exists.
func (r *Registry) List() ([]FormInfo, error) {
	entries, err := os.ReadDir(r.templatesDir)
	if err != nil {
		return nil, fmt.Errorf("read templates dir: %w", err)
	}

	var forms []FormInfo
	for _, e := range entries {
		if e.IsDir() || e.Type()&os.ModeSymlink != 0 {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		base := strings.TrimSuffix(name, ".json")
		forms = append(forms, FormInfo{
			ID:    formID(base),
			Name:  base,
			Label: strings.ReplaceAll(base, "_", " "),
		})
	}
	sort.Slice(forms, func(i, j int) bool { return forms[i].Name < forms[j].Name })
	return forms, nil
}

func (r *Registry) templatePath(formName string) (string, error) {
	return resolveWithin(r.templatesDir, filepath.Join(r.templatesDir, formName+".json"))
}

func formID(name string) string {
	return uuid.NewSHA1(FormNamespace, []byte(name)).String()
}

// resolveWithin resolves candidate and verifies it does not escape
// base. Form names come from callers, so traversal has to be rejected
// here rather than trusted away.
func resolveWithin(base, candidate string) (string, error) {
	abs, err := filepath.Abs(candidate)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes %s: %s", base, candidate)
	}
	return abs, nil
}
