package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validFields() []FieldSpec {
	return []FieldSpec{
		{ID: "last_name", Path: "form1/page1/patient/lastName", Type: FieldTypeText, Question: "Nom du patient?"},
		{ID: "remarks", Path: "form1/page1/diagnosis/remarks", Type: FieldTypeMultiline},
		{ID: "diagnosis", Path: "form1/page1/diagnosis/primary", Type: FieldTypeText, MaxWords: 5, OverflowTo: "remarks"},
		{ID: "smoker", Path: "form1/page1/smoker", Type: FieldTypeBoolean, BoolStyle: BoolStyleOnOff},
	}
}

func TestNewFormSchemaValid(t *testing.T) {
	s, err := NewFormSchema("AI_Report", validFields())
	require.NoError(t, err)

	assert.Equal(t, 4, s.Len())
	assert.Equal(t, "AI_Report", s.Name)
	assert.NotEqual(t, "", s.ID.String())

	f, ok := s.Field("diagnosis")
	require.True(t, ok)
	assert.Equal(t, "remarks", f.OverflowTo)

	_, ok = s.Field("unknown")
	assert.False(t, ok)
}

func TestFormIDStable(t *testing.T) {
	a, err := NewFormSchema("AI_Report", validFields())
	require.NoError(t, err)
	b, err := NewFormSchema("AI_Report", validFields())
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID, "form identity derives from the name alone")
}

func TestValidationRejects(t *testing.T) {
	tests := []struct {
		name    string
		fields  []FieldSpec
		problem string
	}{
		{
			"duplicate path",
			[]FieldSpec{
				{ID: "a", Path: "form1/x", Type: FieldTypeText},
				{ID: "b", Path: "form1/x", Type: FieldTypeText},
			},
			"same path",
		},
		{
			"duplicate id",
			[]FieldSpec{
				{ID: "a", Path: "form1/x", Type: FieldTypeText},
				{ID: "a", Path: "form1/y", Type: FieldTypeText},
			},
			"duplicate field id",
		},
		{
			"dangling overflow target",
			[]FieldSpec{
				{ID: "a", Path: "form1/x", Type: FieldTypeText, MaxWords: 5, OverflowTo: "missing"},
			},
			"undeclared field",
		},
		{
			"overflow into boolean",
			[]FieldSpec{
				{ID: "a", Path: "form1/x", Type: FieldTypeText, MaxWords: 5, OverflowTo: "b"},
				{ID: "b", Path: "form1/y", Type: FieldTypeBoolean},
			},
			"non-text field",
		},
		{
			"empty enum",
			[]FieldSpec{
				{ID: "a", Path: "form1/x", Type: FieldTypeEnum},
			},
			"no values",
		},
		{
			"repeat without tag",
			[]FieldSpec{
				{ID: "a", Path: "form1/x", Type: FieldTypeRepeat},
			},
			"repeat_tag",
		},
		{
			"unknown type",
			[]FieldSpec{
				{ID: "a", Path: "form1/x", Type: "mystery"},
			},
			"unknown type",
		},
		{
			"unknown bool style",
			[]FieldSpec{
				{ID: "a", Path: "form1/x", Type: FieldTypeBoolean, BoolStyle: "truthy"},
			},
			"bool_style",
		},
		{
			"gate references non-boolean",
			[]FieldSpec{
				{ID: "a", Path: "form1/x", Type: FieldTypeText, Gate: "b"},
				{ID: "b", Path: "form1/y", Type: FieldTypeText},
			},
			"non-boolean",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFormSchema("Broken", tt.fields)
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Error(), tt.problem)
		})
	}
}

func TestEffectiveDefaults(t *testing.T) {
	f := FieldSpec{Type: FieldTypeDecimal}
	assert.Equal(t, DefaultPrecision, f.EffectivePrecision())
	assert.Equal(t, BoolStyle01, f.EffectiveBoolStyle())

	f = FieldSpec{Type: FieldTypeDecimal, Precision: 2, BoolStyle: BoolStyleOnOff}
	assert.Equal(t, 2, f.EffectivePrecision())
	assert.Equal(t, BoolStyleOnOff, f.EffectiveBoolStyle())
}
