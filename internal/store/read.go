package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/strata/internal/predicate"
	"github.com/roach88/strata/internal/record"
)

// Get retrieves a single record by id within a project.
// Returns ErrNotFound when the id does not exist.
func (s *Store) Get(ctx context.Context, project, id string) (*Stored, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, created, doc
		FROM records
		WHERE project = ? AND id = ?
	`, project, id)

	stored, err := scanStored(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return stored, err
}

// List returns every record of a project matching a compiled predicate,
// ordered by the monotonic creation key.
//
// Evaluation happens per stored record, so each matching record appears
// exactly once regardless of how many sub-record rows satisfied a nested
// atom; the Distinct instruction from the compiler is honoured by
// construction.
func (s *Store) List(ctx context.Context, project string, compiled *predicate.Compiled) ([]*Stored, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, created, doc
		FROM records
		WHERE project = ?
		ORDER BY seq ASC
	`, project)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	pred := predicate.Predicate(predicate.True{})
	if compiled != nil {
		pred = compiled.Predicate
	}

	// Return empty slice instead of nil
	matched := []*Stored{}
	for rows.Next() {
		stored, err := scanStored(rows)
		if err != nil {
			return nil, err
		}

		ok, err := Eval(stored.Record, pred)
		if err != nil {
			return nil, fmt.Errorf("evaluate record %s: %w", stored.ID, err)
		}
		if ok {
			matched = append(matched, stored)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return matched, nil
}

// scanner abstracts sql.Row and sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...any) error
}

// scanStored decodes one records row.
func scanStored(sc scanner) (*Stored, error) {
	var seq int64
	var id, createdRaw, doc string
	if err := sc.Scan(&seq, &id, &createdRaw, &doc); err != nil {
		return nil, err
	}

	created, err := time.Parse(time.RFC3339Nano, createdRaw)
	if err != nil {
		return nil, fmt.Errorf("record %s: bad created timestamp: %w", id, err)
	}

	rec := record.New()
	if err := json.Unmarshal([]byte(doc), rec); err != nil {
		return nil, fmt.Errorf("record %s: decode document: %w", id, err)
	}

	return &Stored{ID: id, Seq: seq, Created: created, Record: rec}, nil
}
