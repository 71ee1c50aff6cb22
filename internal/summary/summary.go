// Package summary guards grouped aggregation behind a distinct-value
// cardinality ceiling. A summary over a field with too many distinct
// values fails closed before any grouped counting runs: a refused answer
// over a truncated one.
package summary

import (
	"context"

	"github.com/roach88/strata/internal/predicate"
	"github.com/roach88/strata/internal/resolve"
	"github.com/roach88/strata/internal/schema"
	"github.com/roach88/strata/internal/store"
)

// DefaultCeiling is the distinct-value limit applied when no ceiling is
// configured.
const DefaultCeiling = 100000

// Counter is the aggregation surface the guard needs from the store.
type Counter interface {
	DistinctCount(ctx context.Context, project string, compiled *predicate.Compiled, field *schema.FieldDescriptor) (int64, error)
	GroupedCounts(ctx context.Context, project string, compiled *predicate.Compiled, field *schema.FieldDescriptor) ([]store.GroupCount, error)
}

// Guard runs cardinality-checked summaries for one actor's request.
type Guard struct {
	resolver *resolve.Resolver
	counter  Counter
	ceiling  int64
}

// NewGuard builds a guard. A non-positive ceiling falls back to
// DefaultCeiling.
func NewGuard(resolver *resolve.Resolver, counter Counter, ceiling int64) *Guard {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Guard{resolver: resolver, counter: counter, ceiling: ceiling}
}

// Summarise groups the records matching compiled by the named field's
// values and counts each group.
//
// The field key may not carry a lookup suffix and may not name a relation
// container. The distinct-value count is checked against the ceiling
// before any grouped counting happens; on breach the request fails with a
// CardinalityExceeded error and no groups are computed.
func (g *Guard) Summarise(ctx context.Context, project string, compiled *predicate.Compiled, key string) ([]store.GroupCount, error) {
	res, rerr := g.resolver.Resolve(key, false)
	if rerr != nil {
		return nil, rerr
	}
	if res.Descriptor.IsRelation() {
		return nil, &schema.Error{
			Code:    schema.ErrCodeRelationFilter,
			Field:   key,
			Message: "cannot summarise over a relation",
		}
	}

	distinct, err := g.counter.DistinctCount(ctx, project, compiled, res.Descriptor)
	if err != nil {
		return nil, err
	}
	if distinct > g.ceiling {
		return nil, schema.NewCardinalityError(key, distinct, g.ceiling)
	}

	return g.counter.GroupedCounts(ctx, project, compiled, res.Descriptor)
}
