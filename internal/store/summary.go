package store

import (
	"context"
	"sort"

	"github.com/roach88/strata/internal/predicate"
	"github.com/roach88/strata/internal/record"
	"github.com/roach88/strata/internal/schema"
)

// GroupCount is one bucket of a grouped summary.
type GroupCount struct {
	// Value is the canonical rendering of the grouped value.
	Value string `json:"value"`

	// Count is the number of occurrences across the matching records.
	Count int64 `json:"count"`
}

// DistinctCount counts the distinct values a field takes across the
// records matching a predicate. Occurrences are counted per reachable
// row, so a field behind a one-to-many relation contributes one value
// per sub-record.
func (s *Store) DistinctCount(ctx context.Context, project string, compiled *predicate.Compiled, field *schema.FieldDescriptor) (int64, error) {
	matched, err := s.List(ctx, project, compiled)
	if err != nil {
		return 0, err
	}

	distinct := map[string]bool{}
	for _, stored := range matched {
		for _, v := range fieldValues(stored.Record, field) {
			distinct[record.Format(v)] = true
		}
	}
	return int64(len(distinct)), nil
}

// GroupedCounts groups the matching records by a field's values and
// counts occurrences per group, ordered by value. Null occurrences form
// their own group.
func (s *Store) GroupedCounts(ctx context.Context, project string, compiled *predicate.Compiled, field *schema.FieldDescriptor) ([]GroupCount, error) {
	matched, err := s.List(ctx, project, compiled)
	if err != nil {
		return nil, err
	}

	counts := map[string]int64{}
	samples := map[string]record.Value{}
	for _, stored := range matched {
		for _, v := range fieldValues(stored.Record, field) {
			key := record.Format(v)
			counts[key]++
			samples[key] = v
		}
	}

	groups := make([]GroupCount, 0, len(counts))
	for key, n := range counts {
		groups = append(groups, GroupCount{Value: key, Count: n})
	}

	sort.Slice(groups, func(i, j int) bool {
		a, b := samples[groups[i].Value], samples[groups[j].Value]
		if record.IsNull(a) != record.IsNull(b) {
			return record.IsNull(b) // nulls sort last
		}
		if cmp, err := record.Compare(a, b); err == nil {
			return cmp < 0
		}
		return groups[i].Value < groups[j].Value
	})
	return groups, nil
}

// fieldValues collects every occurrence of a field across the rows a
// record reaches along the field's relation path.
func fieldValues(rec *record.Record, field *schema.FieldDescriptor) []record.Value {
	name := fieldName(field.Path)
	var values []record.Value
	for _, parent := range reachRecords(rec, field.RelationPath) {
		values = append(values, parent.Scalar(name))
	}
	return values
}
