package store

import (
	"fmt"
	"sync"

	"github.com/stevemurr/student-manager/student"
)

// MemoryStore keeps the collection in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records []student.Record
	saved   bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the collection, or ErrDocumentNotExist if
// nothing has been saved yet.
func (m *MemoryStore) Load() ([]student.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.saved {
		return nil, fmt.Errorf("%w: memory", student.ErrDocumentNotExist)
	}
	return cloneRecords(m.records), nil
}

func (m *MemoryStore) Save(records []student.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = cloneRecords(records)
	m.saved = true
	return nil
}
