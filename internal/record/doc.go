// Package record defines the typed value atoms and the document type used
// throughout strata.
//
// A Value is a sealed union of the scalar types a field may hold. A Record
// is a document of named scalar values plus nested one-to-many sub-record
// lists. Records round-trip through JSON: scalar fields marshal as their
// natural JSON forms, nested relation fields marshal as arrays of objects.
//
// Values are immutable once constructed and own no external resources.
package record
