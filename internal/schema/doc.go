// Package schema defines the field catalog: the static, per-project registry
// describing every field a project exposes.
//
// A Catalog is built once from a declarative CUE definition (or
// programmatically from FieldDefs) and is immutable afterwards. Concurrent
// readers need no synchronization; a schema change means building a whole
// new Catalog and swapping the reference.
//
// The package also owns the closed field type enumeration, the type-indexed
// lookup legality table, and the error vocabulary shared by the resolver,
// the query validator and the summary guard.
package schema
