package student

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Backend is the durable storage behind a Manager. Load returns the full
// collection in storage order; Save replaces it.
type Backend interface {
	Load() ([]Record, error)
	Save(records []Record) error
}

// Options configures a Manager.
type Options struct {
	Logger *zap.Logger

	// CaseSensitiveSearch makes SearchByName compare names exactly.
	// The default is a case-insensitive substring match.
	CaseSensitiveSearch bool
}

// Manager provides CRUD and query operations over the collection held by
// a Backend. It keeps no state between calls: every operation loads the
// whole collection and mutations save the whole collection back.
//
// Mutations hold a single writer lock across load, modify and save, so
// concurrent creates through one Manager never allocate the same id.
// Writers outside the process are not coordinated with.
type Manager struct {
	backend Backend
	log     *zap.Logger
	opts    Options

	writeMu sync.Mutex
}

// NewManager returns a Manager over b.
func NewManager(b Backend, opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{backend: b, log: log, opts: opts}
}

// All returns every record. It never fails: an absent, unreadable or
// malformed document yields an empty slice and a log line.
func (m *Manager) All() []Record {
	records, err := m.backend.Load()
	if err == nil {
		if records == nil {
			records = []Record{}
		}
		return records
	}
	switch {
	case errors.Is(err, ErrDocumentNotExist):
		m.log.Warn("students document not found, using empty collection", zap.Error(err))
	case errors.Is(err, ErrDocumentMalformed):
		m.log.Error("students document is not valid JSON, using empty collection", zap.Error(err))
	case errors.Is(err, ErrDocumentMissingField):
		m.log.Error(`students document has no "students" field, using empty collection`, zap.Error(err))
	default:
		m.log.Error("unexpected error loading students, using empty collection", zap.Error(err))
	}
	return []Record{}
}

func (m *Manager) save(records []Record) error {
	if err := m.backend.Save(records); err != nil {
		m.log.Error("cannot save students", zap.Int("count", len(records)), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// Get returns the first record with the given id.
func (m *Manager) Get(id int) (Record, bool) {
	for _, r := range m.All() {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// SearchByName returns records whose name contains q.
func (m *Manager) SearchByName(q string) []Record {
	match := func(name string) bool { return strings.Contains(name, q) }
	if !m.opts.CaseSensitiveSearch {
		lower := strings.ToLower(q)
		match = func(name string) bool { return strings.Contains(strings.ToLower(name), lower) }
	}
	return m.filter(func(r Record) bool { return match(r.Name) })
}

// FilterByGrade returns records whose grade equals grade exactly.
func (m *Manager) FilterByGrade(grade string) []Record {
	return m.filter(func(r Record) bool { return r.Grade == grade })
}

// FilterByAge returns records with minAge <= age <= maxAge. A maxAge of 0
// means no upper bound, so FilterByAge(n, 0) is the same as age >= n.
func (m *Manager) FilterByAge(minAge, maxAge int) []Record {
	if maxAge != 0 {
		return m.filter(func(r Record) bool { return r.Age >= minAge && r.Age <= maxAge })
	}
	return m.filter(func(r Record) bool { return r.Age >= minAge })
}

func (m *Manager) filter(keep func(Record) bool) []Record {
	out := []Record{}
	for _, r := range m.All() {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// Create validates d, assigns the next id and saves the new record. The
// record is returned only if it was persisted.
func (m *Manager) Create(d Draft) (Record, error) {
	if missing := d.missing(); len(missing) > 0 {
		err := &ValidationError{Missing: missing}
		m.log.Warn("rejected student", zap.Error(err))
		return Record{}, err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	records := m.All()
	next := 1
	for _, r := range records {
		if r.ID >= next {
			next = r.ID + 1
		}
	}
	rec := Record{
		ID:       next,
		Name:     *d.Name,
		Age:      *d.Age,
		Grade:    *d.Grade,
		Subjects: append([]string{}, d.Subjects...),
	}
	if err := m.save(append(records, rec)); err != nil {
		return Record{}, err
	}
	m.log.Debug("created student", zap.Int("id", rec.ID))
	return rec, nil
}

// Update merges the set fields of p into the record with the given id.
// The id itself never changes.
func (m *Manager) Update(id int, p Patch) (Record, error) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	records := m.All()
	for i := range records {
		if records[i].ID != id {
			continue
		}
		p.apply(&records[i])
		records[i].ID = id
		if err := m.save(records); err != nil {
			return Record{}, err
		}
		return records[i].clone(), nil
	}
	m.log.Info("student not found for update", zap.Int("id", id))
	return Record{}, fmt.Errorf("update %d: %w", id, ErrNotFound)
}

// Delete removes the record with the given id. The collection is saved
// only if something was removed.
func (m *Manager) Delete(id int) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	records := m.All()
	kept := make([]Record, 0, len(records))
	for _, r := range records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		m.log.Info("student not found for delete", zap.Int("id", id))
		return fmt.Errorf("delete %d: %w", id, ErrNotFound)
	}
	return m.save(kept)
}

// Statistics aggregates the collection. An empty collection produces
// zero values with a non-nil map and slice.
func (m *Manager) Statistics() Statistics {
	records := m.All()
	stats := Statistics{
		TotalStudents:     len(records),
		GradeDistribution: map[string]int{},
		UniqueSubjects:    []string{},
	}
	if len(records) == 0 {
		return stats
	}

	var ages int
	seen := map[string]struct{}{}
	for _, r := range records {
		ages += r.Age
		stats.GradeDistribution[r.Grade]++
		for _, s := range r.Subjects {
			if _, ok := seen[s]; !ok {
				seen[s] = struct{}{}
				stats.UniqueSubjects = append(stats.UniqueSubjects, s)
			}
		}
	}
	sort.Strings(stats.UniqueSubjects)
	// Ties round to even: 161/8 reports 20.12.
	stats.AverageAge = math.RoundToEven(float64(ages)/float64(len(records))*100) / 100
	return stats
}
