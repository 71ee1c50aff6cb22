package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefs() []FieldDef {
	return []FieldDef{
		{Name: "sample_id", Type: TypeIdentifier},
		{Name: "country", Type: TypeChoice, Choices: []string{"eng", "scot", "wales", "ni"}},
		{Name: "start", Type: TypeInteger},
		{Name: "admin_note", Type: TypeText, Scopes: []string{"admin"}},
		{Name: "tests", Type: TypeRelation, Fields: []FieldDef{
			{Name: "result", Type: TypeChoice, Choices: []string{"positive", "negative"}},
			{Name: "test_date", Type: TypeDate},
		}},
	}
}

func TestNewCatalog_DeclarationOrder(t *testing.T) {
	c, err := NewCatalog("mycology", testDefs())
	require.NoError(t, err)

	var paths []string
	for _, desc := range c.Fields() {
		paths = append(paths, desc.Path)
	}
	assert.Equal(t, []string{
		"sample_id",
		"country",
		"start",
		"admin_note",
		"tests",
		"tests__result",
		"tests__test_date",
	}, paths)
}

func TestNewCatalog_RelationPaths(t *testing.T) {
	c, err := NewCatalog("mycology", testDefs())
	require.NoError(t, err)

	desc, ok := c.Find("tests__result")
	require.True(t, ok)
	assert.Equal(t, []string{"tests"}, desc.RelationPath)
	assert.True(t, desc.Nested())

	top, ok := c.Find("country")
	require.True(t, ok)
	assert.Empty(t, top.RelationPath)
	assert.False(t, top.Nested())
}

func TestFind_CaseInsensitiveCanonicalCase(t *testing.T) {
	c, err := NewCatalog("mycology", testDefs())
	require.NoError(t, err)

	desc, ok := c.Find("SAMPLE_ID")
	require.True(t, ok)
	assert.Equal(t, "sample_id", desc.Path)

	_, ok = c.Find("nope")
	assert.False(t, ok)
}

func TestNewCatalog_DefaultActions(t *testing.T) {
	c, err := NewCatalog("mycology", testDefs())
	require.NoError(t, err)

	desc, _ := c.Find("country")
	assert.True(t, desc.Allows(ActionView))
	assert.True(t, desc.Allows(ActionFilter))
	assert.False(t, desc.Allows(ActionDelete))
}

func TestNewCatalog_RejectsReservedName(t *testing.T) {
	_, err := NewCatalog("p", []FieldDef{{Name: "&", Type: TypeText}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestNewCatalog_RejectsSeparatorInName(t *testing.T) {
	_, err := NewCatalog("p", []FieldDef{{Name: "bad__name", Type: TypeText}})
	assert.Error(t, err)
}

func TestNewCatalog_RejectsTrailingUnderscore(t *testing.T) {
	_, err := NewCatalog("p", []FieldDef{{Name: "bad_", Type: TypeText}})
	assert.Error(t, err)
}

func TestNewCatalog_RejectsCaseInsensitiveDuplicate(t *testing.T) {
	_, err := NewCatalog("p", []FieldDef{
		{Name: "Country", Type: TypeText},
		{Name: "country", Type: TypeText},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestNewCatalog_ChoiceRequiresChoices(t *testing.T) {
	_, err := NewCatalog("p", []FieldDef{{Name: "c", Type: TypeChoice}})
	assert.Error(t, err)
}

func TestNewCatalog_RelationShape(t *testing.T) {
	// A relation needs sub-fields; a leaf cannot carry them.
	_, err := NewCatalog("p", []FieldDef{{Name: "r", Type: TypeRelation}})
	assert.Error(t, err)

	_, err = NewCatalog("p", []FieldDef{{
		Name: "leaf", Type: TypeText,
		Fields: []FieldDef{{Name: "x", Type: TypeText}},
	}})
	assert.Error(t, err)
}

func TestNewCatalog_RequiresProject(t *testing.T) {
	_, err := NewCatalog("", testDefs())
	assert.Error(t, err)
}

func TestTypeLookups_RelationOnlyExistence(t *testing.T) {
	assert.Equal(t, []Lookup{LookupIsNull}, TypeLookups(TypeRelation))
}

func TestTypeLookups_EveryLookupIsKnown(t *testing.T) {
	// The per-type tables draw only from the global lookup table.
	for _, ft := range FieldTypes() {
		for _, l := range TypeLookups(ft) {
			assert.True(t, KnownLookup(string(l)), "type %s lookup %s", ft, l)
		}
	}
}

func TestHasLookup(t *testing.T) {
	c, err := NewCatalog("mycology", testDefs())
	require.NoError(t, err)

	start, _ := c.Find("start")
	assert.True(t, start.HasLookup(LookupGTE))
	assert.False(t, start.HasLookup(LookupRegex))

	tests, _ := c.Find("tests")
	assert.True(t, tests.IsRelation())
	assert.True(t, tests.HasLookup(LookupIsNull))
	assert.False(t, tests.HasLookup(LookupExact))
}

func TestFold(t *testing.T) {
	assert.Equal(t, Fold("Sample_ID"), Fold("sample_id"))
}
