package value

import "github.com/google/uuid"

// Generator produces object identifiers. Production uses UUIDv7Generator;
// tests substitute a fixed-sequence generator for deterministic output.
type Generator interface {
	Generate() ObjectID
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers. Sortability by
// creation time helps when reading command logs and object tables.
//
// Thread-safety: stateless, safe for concurrent use.
type UUIDv7Generator struct{}

// Generate returns a new UUIDv7 as a hyphenated string.
// Panics if UUID generation fails, which does not happen in practice.
func (UUIDv7Generator) Generate() ObjectID {
	return ObjectID(uuid.Must(uuid.NewV7()).String())
}

// defaultGenerator backs lazy proxy identifier allocation when no generator
// is injected.
var defaultGenerator Generator = UUIDv7Generator{}
