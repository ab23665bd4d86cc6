package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tethergrid/tether/internal/value"
)

// LoggedCommand is one command log row.
type LoggedCommand struct {
	Seq        int64
	Digest     string
	WorkerID   value.WorkerID
	Op         string
	ReceiverID string // empty for free functions
	Payload    string // canonical JSON command encoding
}

// AppendCommand records an executed command in the worker's log.
func (s *Store) AppendCommand(ctx context.Context, workerID value.WorkerID, cmd value.Command) error {
	digest, err := cmd.Digest()
	if err != nil {
		return fmt.Errorf("append command: %w", err)
	}
	payload, err := cmd.MarshalWire()
	if err != nil {
		return fmt.Errorf("append command: %w", err)
	}

	var receiverID sql.NullString
	if cmd.Receiver != nil {
		receiverID = sql.NullString{String: string(cmd.Receiver.ID()), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO command_log (digest, worker_id, op, receiver_id, payload)
		VALUES (?, ?, ?, ?, ?)
	`, digest, string(workerID), cmd.Op, receiverID, string(payload))
	if err != nil {
		return fmt.Errorf("append command: %w", err)
	}
	return nil
}

// Commands returns a worker's command log in execution order.
func (s *Store) Commands(ctx context.Context, workerID value.WorkerID) ([]LoggedCommand, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, digest, worker_id, op, receiver_id, payload
		FROM command_log
		WHERE worker_id = ?
		ORDER BY seq ASC
	`, string(workerID))
	if err != nil {
		return nil, fmt.Errorf("read command log: %w", err)
	}
	defer rows.Close()

	var out []LoggedCommand
	for rows.Next() {
		var (
			lc       LoggedCommand
			worker   string
			receiver sql.NullString
		)
		if err := rows.Scan(&lc.Seq, &lc.Digest, &worker, &lc.Op, &receiver, &lc.Payload); err != nil {
			return nil, fmt.Errorf("read command log: %w", err)
		}
		lc.WorkerID = value.WorkerID(worker)
		if receiver.Valid {
			lc.ReceiverID = receiver.String
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}
