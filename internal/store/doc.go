// Package store is the storage collaborator: a sqlite-backed typed-record
// store executing compiled predicates.
//
// Records persist as canonical JSON documents keyed by UUID, with a
// monotonic sequence column providing the stable creation order every
// listing uses. Predicates are evaluated in-process against decoded
// records: an atom reaching through a one-to-many relation matches a
// record when any sub-record row satisfies it, and because evaluation is
// per-record (not per-join-row) results are naturally deduplicated.
//
// The store also provides the distinct-value counting and grouped
// aggregation counting the summary guard builds on.
package store
