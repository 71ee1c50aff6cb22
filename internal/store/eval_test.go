package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/strata/internal/predicate"
	"github.com/roach88/strata/internal/record"
	"github.com/roach88/strata/internal/schema"
)

func testRecord(t *testing.T, doc string) *record.Record {
	t.Helper()
	rec := record.New()
	require.NoError(t, json.Unmarshal([]byte(doc), rec))
	return rec
}

func match(path string, relationPath []string, ft schema.FieldType, lookup schema.Lookup, v record.Value) *predicate.Match {
	return &predicate.Match{
		Path:         path,
		RelationPath: relationPath,
		Type:         ft,
		Lookup:       lookup,
		Value:        v,
	}
}

func evalOK(t *testing.T, rec *record.Record, p predicate.Predicate) bool {
	t.Helper()
	ok, err := Eval(rec, p)
	require.NoError(t, err)
	return ok
}

func TestEval_True(t *testing.T) {
	assert.True(t, evalOK(t, record.New(), predicate.True{}))
}

func TestEval_Exact(t *testing.T) {
	rec := testRecord(t, `{"country": "eng", "start": 5}`)

	assert.True(t, evalOK(t, rec,
		match("country", nil, schema.TypeChoice, schema.LookupExact, record.String("eng"))))
	assert.False(t, evalOK(t, rec,
		match("country", nil, schema.TypeChoice, schema.LookupExact, record.String("scot"))))

	// Numeric equality crosses Int/Float.
	assert.True(t, evalOK(t, rec,
		match("start", nil, schema.TypeInteger, schema.LookupExact, record.Float(5))))
}

func TestEval_Ordering(t *testing.T) {
	rec := testRecord(t, `{"start": 5}`)

	assert.True(t, evalOK(t, rec,
		match("start", nil, schema.TypeInteger, schema.LookupGTE, record.Int(5))))
	assert.True(t, evalOK(t, rec,
		match("start", nil, schema.TypeInteger, schema.LookupLT, record.Int(6))))
	assert.False(t, evalOK(t, rec,
		match("start", nil, schema.TypeInteger, schema.LookupGT, record.Int(5))))
}

func TestEval_OrderingNullNeverMatches(t *testing.T) {
	rec := testRecord(t, `{"start": null}`)
	assert.False(t, evalOK(t, rec,
		match("start", nil, schema.TypeInteger, schema.LookupLT, record.Int(100))))
}

func TestEval_Range(t *testing.T) {
	rec := testRecord(t, `{"start": 5}`)
	bounds := record.List{record.Int(1), record.Int(10)}

	assert.True(t, evalOK(t, rec,
		match("start", nil, schema.TypeInteger, schema.LookupRange, bounds)))

	// Both ends inclusive.
	assert.True(t, evalOK(t, rec,
		match("start", nil, schema.TypeInteger, schema.LookupRange, record.List{record.Int(5), record.Int(10)})))
	assert.True(t, evalOK(t, rec,
		match("start", nil, schema.TypeInteger, schema.LookupRange, record.List{record.Int(1), record.Int(5)})))
	assert.False(t, evalOK(t, rec,
		match("start", nil, schema.TypeInteger, schema.LookupRange, record.List{record.Int(6), record.Int(10)})))
}

func TestEval_In(t *testing.T) {
	rec := testRecord(t, `{"country": "eng"}`)

	assert.True(t, evalOK(t, rec,
		match("country", nil, schema.TypeChoice, schema.LookupIn,
			record.List{record.String("eng"), record.String("scot")})))
	assert.False(t, evalOK(t, rec,
		match("country", nil, schema.TypeChoice, schema.LookupIn,
			record.List{record.String("wales")})))
}

func TestEval_TextLookups(t *testing.T) {
	rec := testRecord(t, `{"run_name": "Run-2023-A"}`)

	assert.True(t, evalOK(t, rec,
		match("run_name", nil, schema.TypeText, schema.LookupContains, record.String("2023"))))
	assert.True(t, evalOK(t, rec,
		match("run_name", nil, schema.TypeText, schema.LookupStartsWith, record.String("Run"))))
	assert.True(t, evalOK(t, rec,
		match("run_name", nil, schema.TypeText, schema.LookupEndsWith, record.String("-A"))))
	assert.False(t, evalOK(t, rec,
		match("run_name", nil, schema.TypeText, schema.LookupContains, record.String("run"))))
}

func TestEval_CaseInsensitiveTextLookups(t *testing.T) {
	rec := testRecord(t, `{"run_name": "Run-2023-A"}`)

	assert.True(t, evalOK(t, rec,
		match("run_name", nil, schema.TypeText, schema.LookupIExact, record.String("run-2023-a"))))
	assert.True(t, evalOK(t, rec,
		match("run_name", nil, schema.TypeText, schema.LookupIContains, record.String("RUN"))))
	assert.True(t, evalOK(t, rec,
		match("run_name", nil, schema.TypeText, schema.LookupIStartsWith, record.String("rUn"))))
	assert.True(t, evalOK(t, rec,
		match("run_name", nil, schema.TypeText, schema.LookupIEndsWith, record.String("-a"))))
}

func TestEval_Regex(t *testing.T) {
	rec := testRecord(t, `{"run_name": "Run-2023-A"}`)

	assert.True(t, evalOK(t, rec,
		match("run_name", nil, schema.TypeText, schema.LookupRegex, record.String(`^Run-\d{4}`))))
	assert.False(t, evalOK(t, rec,
		match("run_name", nil, schema.TypeText, schema.LookupRegex, record.String(`^run`))))
	assert.True(t, evalOK(t, rec,
		match("run_name", nil, schema.TypeText, schema.LookupIRegex, record.String(`^run`))))

	_, err := Eval(rec,
		match("run_name", nil, schema.TypeText, schema.LookupRegex, record.String(`([`)))
	assert.Error(t, err)
}

func TestEval_Length(t *testing.T) {
	rec := testRecord(t, `{"run_name": "héllo", "tags": ["a", "b", "c"]}`)

	// Text length counts runes, not bytes.
	assert.True(t, evalOK(t, rec,
		match("run_name", nil, schema.TypeText, schema.LookupLength, record.Int(5))))

	// Array length counts elements.
	assert.True(t, evalOK(t, rec,
		match("tags", nil, schema.TypeArray, schema.LookupLength, record.Int(3))))

	assert.True(t, evalOK(t, rec,
		match("tags", nil, schema.TypeArray, schema.LookupLengthIn,
			record.List{record.Int(2), record.Int(3)})))
	assert.True(t, evalOK(t, rec,
		match("tags", nil, schema.TypeArray, schema.LookupLengthRange,
			record.List{record.Int(1), record.Int(5)})))
}

func TestEval_ArrayContains(t *testing.T) {
	rec := testRecord(t, `{"tags": ["ont", "ill"]}`)

	assert.True(t, evalOK(t, rec,
		match("tags", nil, schema.TypeArray, schema.LookupContains, record.String("ont"))))
	assert.False(t, evalOK(t, rec,
		match("tags", nil, schema.TypeArray, schema.LookupContains, record.String("pac"))))
}

func TestEval_Year(t *testing.T) {
	rec := testRecord(t, `{"published_date": "2023-06-15", "collection_month": "2021-02"}`)

	assert.True(t, evalOK(t, rec,
		match("published_date", nil, schema.TypeDate, schema.LookupYear, record.Int(2023))))
	assert.True(t, evalOK(t, rec,
		match("collection_month", nil, schema.TypeYearMonth, schema.LookupYearRange,
			record.List{record.Int(2020), record.Int(2022)})))
	assert.False(t, evalOK(t, rec,
		match("published_date", nil, schema.TypeDate, schema.LookupYearIn,
			record.List{record.Int(2021), record.Int(2022)})))
}

func TestEval_DateComparisons(t *testing.T) {
	rec := testRecord(t, `{"published_date": "2023-06-15"}`)
	cutoff := record.NewDate(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.True(t, evalOK(t, rec,
		match("published_date", nil, schema.TypeDate, schema.LookupGTE, cutoff)))
}

func TestEval_IsNull(t *testing.T) {
	rec := testRecord(t, `{"present": "x", "absent": null}`)

	assert.True(t, evalOK(t, rec,
		match("absent", nil, schema.TypeText, schema.LookupIsNull, record.Bool(true))))
	assert.False(t, evalOK(t, rec,
		match("present", nil, schema.TypeText, schema.LookupIsNull, record.Bool(true))))
	assert.True(t, evalOK(t, rec,
		match("present", nil, schema.TypeText, schema.LookupIsNull, record.Bool(false))))

	// A field never written at all reads as null too.
	assert.True(t, evalOK(t, rec,
		match("missing", nil, schema.TypeText, schema.LookupIsNull, record.Bool(true))))
}

func TestEval_NestedAnyRowMatches(t *testing.T) {
	rec := testRecord(t, `{"tests": [
		{"result": "negative"},
		{"result": "positive"}
	]}`)

	// One matching sub-row is enough.
	assert.True(t, evalOK(t, rec,
		match("tests__result", []string{"tests"}, schema.TypeChoice,
			schema.LookupExact, record.String("positive"))))
	assert.False(t, evalOK(t, rec,
		match("tests__result", []string{"tests"}, schema.TypeChoice,
			schema.LookupExact, record.String("inconclusive"))))
}

func TestEval_DeepNesting(t *testing.T) {
	rec := testRecord(t, `{"tests": [
		{"details": [{"comment": "fine"}]},
		{"details": [{"comment": "repeat"}]}
	]}`)

	assert.True(t, evalOK(t, rec,
		match("tests__details__comment", []string{"tests", "details"},
			schema.TypeText, schema.LookupExact, record.String("repeat"))))
}

func TestEval_NestedIsNullWithNoRows(t *testing.T) {
	rec := testRecord(t, `{"tests": []}`)

	// No reachable row means the nested value is absent.
	assert.True(t, evalOK(t, rec,
		match("tests__result", []string{"tests"}, schema.TypeChoice,
			schema.LookupIsNull, record.Bool(true))))
	assert.False(t, evalOK(t, rec,
		match("tests__result", []string{"tests"}, schema.TypeChoice,
			schema.LookupIsNull, record.Bool(false))))
}

func TestEval_RelationExistence(t *testing.T) {
	with := testRecord(t, `{"tests": [{"result": "positive"}]}`)
	without := testRecord(t, `{"tests": []}`)

	hasTests := match("tests", nil, schema.TypeRelation, schema.LookupIsNull, record.Bool(false))
	noTests := match("tests", nil, schema.TypeRelation, schema.LookupIsNull, record.Bool(true))

	assert.True(t, evalOK(t, with, hasTests))
	assert.False(t, evalOK(t, with, noTests))
	assert.False(t, evalOK(t, without, hasTests))
	assert.True(t, evalOK(t, without, noTests))
}

func TestEval_BooleanCombinators(t *testing.T) {
	rec := testRecord(t, `{"a": 1, "b": 2}`)

	aIs1 := match("a", nil, schema.TypeInteger, schema.LookupExact, record.Int(1))
	bIs2 := match("b", nil, schema.TypeInteger, schema.LookupExact, record.Int(2))
	aIs9 := match("a", nil, schema.TypeInteger, schema.LookupExact, record.Int(9))

	assert.True(t, evalOK(t, rec, &predicate.And{Predicates: []predicate.Predicate{aIs1, bIs2}}))
	assert.False(t, evalOK(t, rec, &predicate.And{Predicates: []predicate.Predicate{aIs1, aIs9}}))
	assert.True(t, evalOK(t, rec, &predicate.Or{Predicates: []predicate.Predicate{aIs9, bIs2}}))
	assert.False(t, evalOK(t, rec, &predicate.Or{Predicates: []predicate.Predicate{aIs9, aIs9}}))
	assert.True(t, evalOK(t, rec, &predicate.Not{Predicate: aIs9}))
	assert.False(t, evalOK(t, rec, &predicate.Not{Predicate: aIs1}))
}

func TestEval_XorOddParity(t *testing.T) {
	rec := testRecord(t, `{"a": 1}`)

	yes := match("a", nil, schema.TypeInteger, schema.LookupExact, record.Int(1))
	no := match("a", nil, schema.TypeInteger, schema.LookupExact, record.Int(9))

	assert.True(t, evalOK(t, rec, &predicate.Xor{Predicates: []predicate.Predicate{yes, no}}))
	assert.False(t, evalOK(t, rec, &predicate.Xor{Predicates: []predicate.Predicate{yes, yes}}))
	assert.True(t, evalOK(t, rec, &predicate.Xor{Predicates: []predicate.Predicate{yes, yes, yes}}))
	assert.False(t, evalOK(t, rec, &predicate.Xor{Predicates: []predicate.Predicate{no, no}}))
}

func TestEval_NotIsComplement(t *testing.T) {
	// NOT(X) matches exactly the records X does not, over a fixed set.
	docs := []string{
		`{"country": "eng"}`,
		`{"country": "scot"}`,
		`{"country": null}`,
		`{}`,
	}
	p := match("country", nil, schema.TypeChoice, schema.LookupExact, record.String("eng"))

	for _, doc := range docs {
		rec := testRecord(t, doc)
		direct := evalOK(t, rec, p)
		negated := evalOK(t, rec, &predicate.Not{Predicate: p})
		assert.NotEqual(t, direct, negated, "doc %s", doc)
	}
}
