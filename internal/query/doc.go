// Package query parses and validates client filter expressions.
//
// The pipeline has two stages. Parse turns a nested JSON-like structure
// (or a flat GET-style parameter list) into a purely structural expression
// tree of boolean groups and raw atoms; no field names or types are
// checked. Validate then resolves every atom's field through the resolver,
// checks lookup legality and coerces raw values into typed atoms,
// accumulating all errors keyed by field path instead of stopping at the
// first.
//
// Structural parse errors are the one fatal category: a malformed tree
// cannot be partially validated.
package query
