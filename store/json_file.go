package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/stevemurr/student-manager/student"
)

// JsonFileStore keeps the whole collection in one JSON document.
//
// Layout:
//
//	{
//	  "students": [
//	    {"id": 1, "name": "Alice", "age": 20, "grade": "A", "subjects": ["Math"]}
//	  ]
//	}
type JsonFileStore struct {
	mu   sync.RWMutex
	path string
}

type document struct {
	Students *[]student.Record `json:"students"`
}

func NewJsonFileStore(path string) (*JsonFileStore, error) {
	if path == "" {
		return nil, errors.New("json store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &JsonFileStore{path: path}, nil
}

// Path returns the location of the document.
func (s *JsonFileStore) Path() string {
	return s.path
}

func (s *JsonFileStore) Load() ([]student.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", student.ErrDocumentNotExist, s.path)
		}
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", student.ErrDocumentMalformed, s.path, err)
	}
	if doc.Students == nil {
		return nil, fmt.Errorf("%w: %s", student.ErrDocumentMissingField, s.path)
	}
	return *doc.Students, nil
}

// Save overwrites the document in place. The write is not atomic: a
// failure part way through can leave a truncated file behind, which the
// next Load reports as malformed.
func (s *JsonFileStore) Save(records []student.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if records == nil {
		records = []student.Record{}
	}
	b, err := json.MarshalIndent(document{Students: &records}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, b, 0o644)
}
