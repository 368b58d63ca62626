package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/stevemurr/student-manager/student"
)

// SqliteStore keeps the collection in a single SQLite table.
//
// Tables:
//
//	students(position, id, name, age, grade, subjects)  PRIMARY KEY (position)
//
// position records storage order; subjects holds a JSON array.
//
// The table is created on open, so Load never reports
// student.ErrDocumentNotExist: a fresh database loads as an empty slice.
type SqliteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS students (
		position INTEGER PRIMARY KEY,
		id INTEGER NOT NULL,
		name TEXT NOT NULL,
		age INTEGER NOT NULL,
		grade TEXT NOT NULL,
		subjects TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) Load() ([]student.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query("SELECT id, name, age, grade, subjects FROM students ORDER BY position")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := []student.Record{}
	for rows.Next() {
		var (
			r   student.Record
			raw string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Age, &r.Grade, &raw); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(raw), &r.Subjects); err != nil {
			return nil, fmt.Errorf("%w: subjects of student %d: %v", student.ErrDocumentMalformed, r.ID, err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Save replaces the table contents in one transaction.
func (s *SqliteStore) Save(records []student.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM students"); err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO students (position, id, name, age, grade, subjects) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, r := range records {
		subjects := r.Subjects
		if subjects == nil {
			subjects = []string{}
		}
		b, err := json.Marshal(subjects)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(i, r.ID, r.Name, r.Age, r.Grade, string(b)); err != nil {
			return err
		}
	}
	return tx.Commit()
}
