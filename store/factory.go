package store

import (
	"fmt"

	"github.com/stevemurr/student-manager/student"
)

// New creates a backend by name.
//
// Supported backends:
//
//	"json"   - a single JSON document at path (default)
//	"sqlite" - a SQLite database at path
//	"memory" - in-memory (ephemeral, for testing); path is ignored
func New(backend, path string) (student.Backend, error) {
	switch backend {
	case "json", "":
		return NewJsonFileStore(path)
	case "sqlite":
		return NewSqliteStore(path)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %q (supported: json, sqlite, memory)", backend)
	}
}
