package store

import "database/sql"

// DB exposes the underlying database to tests.
func (s *SqliteStore) DB() *sql.DB {
	return s.db
}
