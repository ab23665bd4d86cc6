// Package testutil provides deterministic substitutes for the identifier
// generator and the command sender, so tests can assert on exact
// identifiers and routed commands.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/tethergrid/tether/internal/value"
)

// SeqGenerator hands out "id-1", "id-2", ... in order.
//
// Thread-safety: safe for concurrent use via internal mutex, though the
// core's synchronous model rarely needs it.
type SeqGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSeqGenerator creates a generator with the given prefix; an empty
// prefix defaults to "id".
func NewSeqGenerator(prefix string) *SeqGenerator {
	if prefix == "" {
		prefix = "id"
	}
	return &SeqGenerator{prefix: prefix}
}

// Generate returns the next identifier in the sequence.
func (g *SeqGenerator) Generate() value.ObjectID {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return value.ObjectID(fmt.Sprintf("%s-%d", g.prefix, g.n))
}

// Count returns how many identifiers have been generated.
func (g *SeqGenerator) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.n
}

// SentCommand records one routed command.
type SentCommand struct {
	Location value.WorkerID
	Command  value.Command
}

// RecordingSender captures every command routed through it and answers with
// a configured response. It asserts the remote-forwarding property: exactly
// one send, zero local executions.
type RecordingSender struct {
	Response value.Value
	Err      error
	Sent     []SentCommand
}

// SendCommand records the command and returns the configured response.
func (s *RecordingSender) SendCommand(_ context.Context, location value.WorkerID, cmd value.Command) (value.Value, error) {
	s.Sent = append(s.Sent, SentCommand{Location: location, Command: cmd})
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Response, nil
}

// QuietLogger returns a logger that discards everything, for tests that do
// not assert on log output.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
