package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doctorfill-dev/doctorfill/internal/xfa"
)

const blankFormDatasets = `<xfa:datasets xmlns:xfa="http://www.xfa.org/schema/xfa-data/1.0/">
<xfa:data>
<form1>
<page1 xfa:dataNode="dataGroup">
<patient>
<lastName/>
<birthDate/>
</patient>
<smoker>Off</smoker>
<consent>On</consent>
<section2 xfa:dataNode="dataGroup"/>
</page1>
</form1>
</xfa:data>
</xfa:datasets>`

func generatedSchema(t *testing.T) *FormSchema {
	t.Helper()
	ds, err := xfa.ParseDatasets([]byte(blankFormDatasets))
	require.NoError(t, err)
	s, err := GenerateFormSchema("New_Form", ds)
	require.NoError(t, err)
	return s
}

func TestGenerateFormSchema(t *testing.T) {
	s := generatedSchema(t)

	assert.True(t, s.Generated)
	assert.Equal(t, "New_Form", s.Name)
	assert.Equal(t, 4, s.Len(), "one field per value leaf, grouping nodes excluded")

	byPath := make(map[string]FieldSpec, s.Len())
	for _, f := range s.Fields {
		byPath[f.Path] = f
	}

	last, ok := byPath["form1/page1/patient/lastName"]
	require.True(t, ok)
	assert.Equal(t, FieldTypeText, last.Type)
	assert.Equal(t, "form1_page1_patient_lastname", last.ID)
	assert.Equal(t, "last name", last.Question)

	smoker, ok := byPath["form1/page1/smoker"]
	require.True(t, ok)
	assert.Equal(t, FieldTypeBoolean, smoker.Type, "On/Off leaves become checkboxes")
	assert.Equal(t, BoolStyleOnOff, smoker.BoolStyle)

	consent, ok := byPath["form1/page1/consent"]
	require.True(t, ok)
	assert.Equal(t, FieldTypeBoolean, consent.Type)

	_, ok = byPath["form1/page1/section2"]
	assert.False(t, ok, "childless grouping nodes are not fields")
}

func TestGenerateFormSchemaCarriesNoAnswers(t *testing.T) {
	s := generatedSchema(t)
	for _, f := range s.Fields {
		assert.Empty(t, f.Answer, f.ID)
	}
}

func TestGenerateFormSchemaEmptyForm(t *testing.T) {
	ds, err := xfa.ParseDatasets([]byte(
		`<xfa:datasets xmlns:xfa="http://www.xfa.org/schema/xfa-data/1.0/"><xfa:data/></xfa:datasets>`))
	require.NoError(t, err)

	_, err = GenerateFormSchema("Empty", ds)
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestLabelFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"patient/lastName", "last name"},
		{"form1/page1/birthDate", "birth date"},
		{"capacity_degree", "capacity degree"},
		{"note", "note"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, labelFromPath(tt.path), tt.path)
	}
}
