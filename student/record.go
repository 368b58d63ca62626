// Package student implements the student record store: a flat collection
// of records persisted through a Backend, with search, filter and
// statistics operations on top.
package student

import (
	"errors"
	"fmt"
	"strings"
)

// Record is one student.
type Record struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Age      int      `json:"age"`
	Grade    string   `json:"grade"`
	Subjects []string `json:"subjects"`
}

// clone returns a copy that shares no slices with r.
func (r Record) clone() Record {
	if r.Subjects != nil {
		r.Subjects = append([]string{}, r.Subjects...)
	}
	return r
}

// Draft is the payload for creating a record. Every field must be set;
// the id is always allocated by the Manager.
type Draft struct {
	Name     *string  `json:"name"`
	Age      *int     `json:"age"`
	Grade    *string  `json:"grade"`
	Subjects []string `json:"subjects"`
}

// missing reports the required fields that are absent, in field order.
func (d Draft) missing() []string {
	var fields []string
	if d.Name == nil {
		fields = append(fields, "name")
	}
	if d.Age == nil {
		fields = append(fields, "age")
	}
	if d.Grade == nil {
		fields = append(fields, "grade")
	}
	if d.Subjects == nil {
		fields = append(fields, "subjects")
	}
	return fields
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Name     *string   `json:"name"`
	Age      *int      `json:"age"`
	Grade    *string   `json:"grade"`
	Subjects *[]string `json:"subjects"`
}

// Empty reports whether the patch would change nothing.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Age == nil && p.Grade == nil && p.Subjects == nil
}

func (p Patch) apply(r *Record) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Age != nil {
		r.Age = *p.Age
	}
	if p.Grade != nil {
		r.Grade = *p.Grade
	}
	if p.Subjects != nil {
		r.Subjects = append([]string{}, (*p.Subjects)...)
	}
}

// Errors returned by Manager mutations.
var (
	ErrNotFound   = errors.New("student not found")
	ErrValidation = errors.New("validation error")
	ErrPersist    = errors.New("failed to persist students")
)

// Errors a Backend reports from Load. The Manager turns each into an
// empty collection with its own diagnostic.
var (
	ErrDocumentNotExist     = errors.New("students document does not exist")
	ErrDocumentMalformed    = errors.New("students document is malformed")
	ErrDocumentMissingField = errors.New(`students document has no "students" field`)
)

// ValidationError lists the required fields a Draft is missing.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required field: %s", strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Statistics summarizes a collection.
type Statistics struct {
	TotalStudents     int            `json:"total_students"`
	AverageAge        float64        `json:"average_age"`
	GradeDistribution map[string]int `json:"grade_distribution"`
	UniqueSubjects    []string       `json:"unique_subjects"`
}
