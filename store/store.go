// Package store provides the backends a student.Manager persists through.
package store

import "github.com/stevemurr/student-manager/student"

var (
	_ student.Backend = (*JsonFileStore)(nil)
	_ student.Backend = (*SqliteStore)(nil)
	_ student.Backend = (*MemoryStore)(nil)
)

// cloneRecords returns a copy of records that shares no slices with it.
func cloneRecords(records []student.Record) []student.Record {
	out := make([]student.Record, len(records))
	for i, r := range records {
		if r.Subjects != nil {
			r.Subjects = append([]string{}, r.Subjects...)
		}
		out[i] = r
	}
	return out
}
