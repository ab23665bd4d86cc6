package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tethergrid/tether/internal/native"
	"github.com/tethergrid/tether/internal/value"
)

// ErrObjectNotFound is returned when the object table has no row for the
// requested identifier.
var ErrObjectNotFound = errors.New("object not found")

// PutObject stores a tensor under (workerID, objectID), replacing any
// previous payload for the same key.
func (s *Store) PutObject(ctx context.Context, workerID value.WorkerID, objectID value.ObjectID, t *native.Tensor) error {
	payload, err := value.EncodeTensor(t)
	if err != nil {
		return fmt.Errorf("put object %s: %w", objectID, err)
	}
	digest, err := value.ObjectDigest(t)
	if err != nil {
		return fmt.Errorf("put object %s: %w", objectID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO objects (object_id, worker_id, payload, digest)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(worker_id, object_id) DO UPDATE SET
			payload = excluded.payload,
			digest  = excluded.digest
	`, string(objectID), string(workerID), string(payload), digest)
	if err != nil {
		return fmt.Errorf("put object %s: %w", objectID, err)
	}
	return nil
}

// GetObject loads the tensor stored under (workerID, objectID).
// Returns ErrObjectNotFound when no row exists.
func (s *Store) GetObject(ctx context.Context, workerID value.WorkerID, objectID value.ObjectID) (*native.Tensor, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM objects WHERE worker_id = ? AND object_id = ?
	`, string(workerID), string(objectID)).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get object %s: %w", objectID, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", objectID, err)
	}
	return value.DecodeTensor([]byte(payload))
}

// DeleteObject removes the row for (workerID, objectID). Deleting a missing
// object is not an error.
func (s *Store) DeleteObject(ctx context.Context, workerID value.WorkerID, objectID value.ObjectID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM objects WHERE worker_id = ? AND object_id = ?
	`, string(workerID), string(objectID))
	if err != nil {
		return fmt.Errorf("delete object %s: %w", objectID, err)
	}
	return nil
}

// ListObjects returns the object identifiers a worker holds, in lexical
// order for deterministic output.
func (s *Store) ListObjects(ctx context.Context, workerID value.WorkerID) ([]value.ObjectID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT object_id FROM objects WHERE worker_id = ?
		ORDER BY object_id COLLATE BINARY ASC
	`, string(workerID))
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var ids []value.ObjectID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		ids = append(ids, value.ObjectID(id))
	}
	return ids, rows.Err()
}
