package schema

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Namespace used to derive stable form identifiers from template names.
var FormNamespace = uuid.MustParse("f7bc1110-7f40-4b0d-9d33-7d732b4f5c2d")

// FieldType classifies how a field's value is encoded into the
// datasets tree.
type FieldType string

const (
	FieldTypeText      FieldType = "text"
	FieldTypeMultiline FieldType = "multiline"
	FieldTypeBoolean   FieldType = "boolean"
	FieldTypeEnum      FieldType = "enum"
	FieldTypeDate      FieldType = "date"
	FieldTypeDecimal   FieldType = "decimal"
	FieldTypeRepeat    FieldType = "repeat"
	FieldTypeBlock     FieldType = "block"
)

// BoolStyle selects the sentinel pair a boolean field uses. XFA forms
// mix both conventions, so the style is declared per field rather than
// assumed globally.
type BoolStyle string

const (
	BoolStyle01    BoolStyle = "01"    // "1" / "0"
	BoolStyleOnOff BoolStyle = "onoff" // "On" / "Off"
)

// DefaultPrecision is the fraction-digit count for decimal fields when
// the template does not declare one.
const DefaultPrecision = 8

// FieldSpec declares one fillable field of a form.
type FieldSpec struct {
	ID       string    `json:"id"`
	Path     string    `json:"path"`
	Type     FieldType `json:"type"`
	Question string    `json:"question,omitempty"`

	MaxWords  int       `json:"max_words,omitempty"`
	Enum      []string  `json:"enum,omitempty"`
	Precision int       `json:"precision,omitempty"`
	BoolStyle BoolStyle `json:"bool_style,omitempty"`

	// OverflowTo names the field that receives content exceeding
	// MaxWords instead of discarding it.
	OverflowTo string `json:"overflow_to,omitempty"`

	// Gate names a boolean field toggled by whether this field
	// resolved an answer at all (e.g. an "unable to answer" checkbox).
	Gate string `json:"gate,omitempty"`

	// Subfields maps sub-identifiers to leaf paths relative to Path
	// for block fields (address blocks and the like).
	Subfields map[string]string `json:"subfields,omitempty"`

	// RepeatTag is the tag appended under Path for each list entry of
	// a repeat field.
	RepeatTag string `json:"repeat_tag,omitempty"`

	// Answer is a curated fixed value carried by a manual template.
	// It takes precedence over anything the resolver generates.
	Answer string `json:"answer,omitempty"`
}

// EffectivePrecision returns the declared precision or the default.
func (f FieldSpec) EffectivePrecision() int {
	if f.Precision > 0 {
		return f.Precision
	}
	return DefaultPrecision
}

// EffectiveBoolStyle returns the declared style or the "1"/"0" default.
func (f FieldSpec) EffectiveBoolStyle() BoolStyle {
	if f.BoolStyle == "" {
		return BoolStyle01
	}
	return f.BoolStyle
}

// FormSchema is the ordered, immutable field set of one form type.
type FormSchema struct {
	ID     uuid.UUID
	Name   string
	Fields []FieldSpec

	// Generated marks a schema derived from the form's own structure
	// rather than a curated template.
	Generated bool

	byID map[string]int
}

// NewFormSchema builds a schema and validates it. The returned schema
// must not be mutated; the registry shares it across fill runs.
func NewFormSchema(name string, fields []FieldSpec) (*FormSchema, error) {
	s := &FormSchema{
		ID:     uuid.NewSHA1(FormNamespace, []byte(name)),
		Name:   name,
		Fields: fields,
		byID:   make(map[string]int, len(fields)),
	}
	for i, f := range fields {
		s.byID[f.ID] = i
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Field looks up a spec by identifier.
func (s *FormSchema) Field(id string) (FieldSpec, bool) {
	i, ok := s.byID[id]
	if !ok {
		return FieldSpec{}, false
	}
	return s.Fields[i], true
}

// Len reports the number of declared fields.
func (s *FormSchema) Len() int { return len(s.Fields) }

// ValidationError reports template problems found at load time.
// Validation happens once per form so later stages can assume
// structural soundness.
type ValidationError struct {
	Form     string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("schema %q invalid: %s", e.Form, strings.Join(e.Problems, "; "))
}

func (s *FormSchema) validate() error {
	var problems []string

	seenID := make(map[string]bool, len(s.Fields))
	seenPath := make(map[string]string, len(s.Fields))

	for _, f := range s.Fields {
		if f.ID == "" {
			problems = append(problems, "field with empty id")
			continue
		}
		if seenID[f.ID] {
			problems = append(problems, fmt.Sprintf("duplicate field id %q", f.ID))
		}
		seenID[f.ID] = true

		if f.Path == "" {
			problems = append(problems, fmt.Sprintf("field %q has no path", f.ID))
		} else if prev, dup := seenPath[f.Path]; dup {
			problems = append(problems, fmt.Sprintf("fields %q and %q declare the same path %q", prev, f.ID, f.Path))
		} else {
			seenPath[f.Path] = f.ID
		}

		switch f.Type {
		case FieldTypeText, FieldTypeMultiline, FieldTypeBoolean,
			FieldTypeDate, FieldTypeDecimal:
		case FieldTypeEnum:
			if len(f.Enum) == 0 {
				problems = append(problems, fmt.Sprintf("enum field %q declares no values", f.ID))
			}
		case FieldTypeRepeat:
			if f.RepeatTag == "" {
				problems = append(problems, fmt.Sprintf("repeat field %q declares no repeat_tag", f.ID))
			}
		case FieldTypeBlock:
			if len(f.Subfields) == 0 {
				problems = append(problems, fmt.Sprintf("block field %q declares no subfields", f.ID))
			}
		default:
			problems = append(problems, fmt.Sprintf("field %q has unknown type %q", f.ID, f.Type))
		}

		switch f.BoolStyle {
		case "", BoolStyle01, BoolStyleOnOff:
		default:
			problems = append(problems, fmt.Sprintf("field %q has unknown bool_style %q", f.ID, f.BoolStyle))
		}
	}

	// Cross-field references can only be checked once all ids are known.
	for _, f := range s.Fields {
		if f.OverflowTo != "" {
			target, ok := s.Field(f.OverflowTo)
			if !ok {
				problems = append(problems, fmt.Sprintf("field %q overflows to undeclared field %q", f.ID, f.OverflowTo))
			} else if target.Type != FieldTypeText && target.Type != FieldTypeMultiline {
				problems = append(problems, fmt.Sprintf("field %q overflows to non-text field %q", f.ID, f.OverflowTo))
			}
		}
		if f.Gate != "" {
			gate, ok := s.Field(f.Gate)
			if !ok {
				problems = append(problems, fmt.Sprintf("field %q gated by undeclared field %q", f.ID, f.Gate))
			} else if gate.Type != FieldTypeBoolean {
				problems = append(problems, fmt.Sprintf("field %q gated by non-boolean field %q", f.ID, f.Gate))
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Form: s.Name, Problems: problems}
	}
	return nil
}
