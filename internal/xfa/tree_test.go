package xfa

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDatasets = `<xfa:datasets xmlns:xfa="http://www.xfa.org/schema/xfa-data/1.0/">
<xfa:data>
<form1>
<page1 xfa:dataNode="dataGroup">
<patient>
<lastName>Dupont</lastName>
<firstName/>
<birthDate>01.01.1960</birthDate>
</patient>
<diagnosis>
<primary/>
<remarks/>
</diagnosis>
<capacity>
<unable>0</unable>
<degree/>
</capacity>
<jurisdictions>
<country>CH</country>
</jurisdictions>
<smoker>Off</smoker>
</page1>
</form1>
</xfa:data>
</xfa:datasets>`

func mustParse(t *testing.T) *Datasets {
	t.Helper()
	ds, err := ParseDatasets([]byte(sampleDatasets))
	require.NoError(t, err)
	return ds
}

func TestParseDatasetsMalformed(t *testing.T) {
	_, err := ParseDatasets([]byte("<xfa:datasets><truncated"))
	assert.ErrorIs(t, err, ErrTreeParse)

	_, err = ParseDatasets(nil)
	assert.ErrorIs(t, err, ErrTreeParse)
}

func TestRoundTripUntouched(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"mixed fixture", sampleDatasets},
		{
			"expanded empty elements",
			`<xfa:datasets xmlns:xfa="http://www.xfa.org/schema/xfa-data/1.0/"><xfa:data><form1><lastName></lastName><firstName/></form1></xfa:data></xfa:datasets>`,
		},
		{
			"character references",
			"<form1><note>line&#xA;break &amp; more &lt;ok&gt;</note></form1>",
		},
		{
			"single quoted attributes",
			`<form1 xmlns:xfa='http://www.xfa.org/schema/xfa-data/1.0/'><page1 xfa:dataNode='dataGroup'><a/></page1></form1>`,
		},
		{
			"xml declaration and whitespace",
			"<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<form1>\n  <a/>\n</form1>\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := ParseDatasets([]byte(tt.doc))
			require.NoError(t, err)

			out, err := ds.Serialize()
			require.NoError(t, err)
			assert.Equal(t, tt.doc, string(out),
				"serialize must be the exact inverse of parse for untouched documents")
		})
	}
}

func TestSerializePreservesUntouchedRegions(t *testing.T) {
	doc := `<xfa:datasets xmlns:xfa="http://www.xfa.org/schema/xfa-data/1.0/"><xfa:data><form1>` +
		`<patient><lastName></lastName><firstName/><note>a&#xA;b</note></patient>` +
		`<meta version='2'/>` +
		`</form1></xfa:data></xfa:datasets>`

	ds, err := ParseDatasets([]byte(doc))
	require.NoError(t, err)
	require.NoError(t, ds.SetText("patient/firstName", "Marie"))

	out, err := ds.Serialize()
	require.NoError(t, err)
	s := string(out)

	assert.Contains(t, s, "<firstName>Marie</firstName>")
	assert.Contains(t, s, "<lastName></lastName>",
		"expanded empty elements outside the edit keep their shape")
	assert.Contains(t, s, "a&#xA;b",
		"character references outside the edit are not re-escaped")
	assert.Contains(t, s, "version='2'",
		"attribute quoting outside the edit is untouched")
}

func TestSetTextEscapesMarkup(t *testing.T) {
	ds := mustParse(t)
	require.NoError(t, ds.SetText("diagnosis/primary", "A & B <em>"))

	out, err := ds.Serialize()
	require.NoError(t, err)
	assert.Contains(t, string(out), "<primary>A &amp; B &lt;em&gt;</primary>")

	// The in-memory view stays unescaped.
	assert.Equal(t, "A & B <em>", ds.Text("diagnosis/primary"))
}

func TestSetTextOverwritesExpandedEmptyElement(t *testing.T) {
	doc := `<form1><remarks></remarks><primary>old</primary></form1>`
	ds, err := ParseDatasets([]byte(doc))
	require.NoError(t, err)

	require.NoError(t, ds.SetText("form1/remarks", "new"))
	require.NoError(t, ds.SetText("form1/primary", "changed"))

	out, err := ds.Serialize()
	require.NoError(t, err)
	assert.Equal(t, `<form1><remarks>new</remarks><primary>changed</primary></form1>`, string(out))
}

func TestGet(t *testing.T) {
	ds := mustParse(t)

	el := ds.Get("form1/page1/patient/lastName")
	require.NotNil(t, el)
	assert.Equal(t, "Dupont", el.Text())

	// The first segment may match anywhere below the data root.
	el = ds.Get("patient/birthDate")
	require.NotNil(t, el)
	assert.Equal(t, "01.01.1960", el.Text())

	assert.Nil(t, ds.Get("form1/page1/nonexistent"))
	assert.Nil(t, ds.Get(""))
}

func TestSetText(t *testing.T) {
	ds := mustParse(t)

	require.NoError(t, ds.SetText("patient/firstName", "Marie"))
	assert.Equal(t, "Marie", ds.Text("patient/firstName"))

	err := ds.SetText("patient/middleName", "x")
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestSetTextPreservesGroupingMarker(t *testing.T) {
	ds := mustParse(t)
	require.NoError(t, ds.SetText("diagnosis/primary", "M54.5"))

	out, err := ds.Serialize()
	require.NoError(t, err)
	assert.Contains(t, string(out), `xfa:dataNode="dataGroup"`,
		"grouping marker must survive unrelated mutations")
	assert.Contains(t, string(out), "<primary>M54.5</primary>")
}

func TestAppendSibling(t *testing.T) {
	ds := mustParse(t)

	require.NoError(t, ds.AppendSibling("jurisdictions", "country", "FR"))

	out, err := ds.Serialize()
	require.NoError(t, err)

	s := string(out)
	ch := strings.Index(s, "<country>CH</country>")
	fr := strings.Index(s, "<country>FR</country>")
	require.NotEqual(t, -1, ch)
	require.NotEqual(t, -1, fr)
	assert.Less(t, ch, fr, "new entries append after pre-existing siblings")

	err = ds.AppendSibling("nosuchparent", "country", "IT")
	assert.ErrorIs(t, err, ErrPathNotFound)
}

func TestFillIdempotence(t *testing.T) {
	run := func() []byte {
		ds := mustParse(t)
		require.NoError(t, ds.SetText("patient/firstName", "Marie"))
		require.NoError(t, ds.AppendSibling("jurisdictions", "country", "FR"))
		out, err := ds.Serialize()
		require.NoError(t, err)
		return out
	}
	assert.Equal(t, run(), run(), "identical mutations must produce identical output")
}

func TestDiscoverCheckboxPaths(t *testing.T) {
	ds := mustParse(t)

	paths := DiscoverCheckboxPaths(ds)
	assert.Equal(t, []string{"form1/page1/smoker"}, paths,
		"only On/Off leaves are checkboxes; numeric sentinels are not")
}

func TestPathOfSkipsContainers(t *testing.T) {
	ds := mustParse(t)
	el := ds.Get("patient/lastName")
	require.NotNil(t, el)
	assert.Equal(t, "form1/page1/patient/lastName", PathOf(el))
}
