package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/strata/internal/record"
)

// Stored is one persisted record together with its storage identity.
type Stored struct {
	// ID is the record's UUID.
	ID string

	// Seq is the monotonic creation-order key.
	Seq int64

	// Created is the insertion timestamp (UTC).
	Created time.Time

	// Record is the decoded document.
	Record *record.Record
}

// Insert persists a record under a project, assigning a fresh UUID.
// The document is serialized with sorted keys so stored bytes are stable.
func (s *Store) Insert(ctx context.Context, project string, rec *record.Record) (*Stored, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}

	id := uuid.NewString()
	created := time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO records (id, project, created, doc)
		VALUES (?, ?, ?, ?)
	`, id, project, created.Format(time.RFC3339Nano), string(doc))
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}

	return &Stored{ID: id, Seq: seq, Created: created, Record: rec}, nil
}

// Delete removes a record by id. Returns ErrNotFound if absent.
func (s *Store) Delete(ctx context.Context, project, id string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM records WHERE project = ? AND id = ?
	`, project, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
