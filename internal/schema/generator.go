package schema

import (
	"fmt"
	"strings"

	"github.com/doctorfill-dev/doctorfill/internal/xfa"
)

// GenerateFormSchema derives a best-effort schema from a blank form's
// datasets tree, for forms that have no curated template. Leaves
// pre-seeded with On/Off become checkbox-style booleans, everything
// else free text. Generated schemas carry no curated answers, so every
// field goes through the resolver.
func GenerateFormSchema(formName string, ds *xfa.Datasets) (*FormSchema, error) {
	checkbox := make(map[string]bool)
	for _, p := range xfa.DiscoverCheckboxPaths(ds) {
		checkbox[p] = true
	}

	var fields []FieldSpec
	seenID := make(map[string]bool)
	for _, path := range xfa.LeafPaths(ds) {
		base := fieldIDFromPath(path)
		id := base
		for n := 2; seenID[id]; n++ {
			id = fmt.Sprintf("%s_%d", base, n)
		}
		seenID[id] = true

		f := FieldSpec{
			ID:       id,
			Path:     path,
			Question: labelFromPath(path),
		}
		if checkbox[path] {
			f.Type = FieldTypeBoolean
			f.BoolStyle = BoolStyleOnOff
		} else {
			f.Type = FieldTypeText
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, &ValidationError{Form: formName, Problems: []string{"form declares no fillable leaves"}}
	}

	s, err := NewFormSchema(formName, fields)
	if err != nil {
		return nil, err
	}
	s.Generated = true
	return s, nil
}

func fieldIDFromPath(path string) string {
	return strings.ToLower(strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(path))
}

// labelFromPath turns the leaf tag into a readable prompt:
// "patient/lastName" becomes "last name".
func labelFromPath(path string) string {
	leaf := path[strings.LastIndex(path, "/")+1:]

	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range leaf {
		switch {
		case r >= 'A' && r <= 'Z':
			flush()
			cur.WriteRune(r + ('a' - 'A'))
		case r == '_' || r == '-':
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return strings.Join(words, " ")
}
