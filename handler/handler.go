// Package handler provides the HTTP API over the student record store.
package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/stevemurr/student-manager/schema"
	"github.com/stevemurr/student-manager/student"
)

// Version is reported by the root endpoint.
const Version = "1.0.0"

// Handler holds the server dependencies and registers routes.
type Handler struct {
	students *student.Manager
	log      *zap.Logger
	mux      *http.ServeMux
	chain    http.Handler
}

// New creates a Handler and wires up all routes. A nil logger disables
// access logging.
func New(m *student.Manager, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{students: m, log: log, mux: http.NewServeMux()}
	h.routes()
	h.chain = requestID(accessLog(log, h.mux))
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.chain.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /{$}", h.root)
	h.mux.HandleFunc("GET /health", h.health)

	h.mux.HandleFunc("GET /students", h.listStudents)
	h.mux.HandleFunc("GET /students/search", h.searchStudents)
	h.mux.HandleFunc("GET /students/stats", h.statistics)
	h.mux.HandleFunc("GET /students/filter/grade/{grade}", h.filterByGrade)
	h.mux.HandleFunc("GET /students/filter/age", h.filterByAge)
	h.mux.HandleFunc("GET /students/filter/age/{$}", h.filterByAge)
	h.mux.HandleFunc("GET /students/{id}", h.getStudent)
	h.mux.HandleFunc("POST /students", h.createStudent)
	h.mux.HandleFunc("PUT /students/{id}", h.updateStudent)
	h.mux.HandleFunc("DELETE /students/{id}", h.deleteStudent)
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}

// readJSON decodes the request body into v after checking it against s.
// It writes the error response itself and reports whether decoding
// succeeded.
func readJSON(w http.ResponseWriter, r *http.Request, s *schema.Schema, v any) bool {
	defer r.Body.Close()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "cannot read body: "+err.Error())
		return false
	}
	var raw any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	if err := schema.Validate(s, raw); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation failed: "+err.Error())
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation failed: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid student id %q", r.PathValue("id")))
		return 0, false
	}
	return id, true
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Welcome to the Student Management API!",
		"version": Version,
		"endpoints": map[string]string{
			"all_students":    "/students",
			"single_student":  "/students/{id}",
			"search":          "/students/search?name=xyz",
			"filter_by_grade": "/students/filter/grade/{grade}",
			"filter_by_age":   "/students/filter/age?min_age=18&max_age=25",
			"statistics":      "/students/stats",
		},
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ---------- queries ----------

func (h *Handler) listStudents(w http.ResponseWriter, r *http.Request) {
	students := h.students.All()
	writeJSON(w, http.StatusOK, map[string]any{
		"total":    len(students),
		"students": students,
	})
}

func (h *Handler) getStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s, found := h.students.Get(id)
	if !found {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Student with ID %d not found", id))
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) searchStudents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("name") {
		writeError(w, http.StatusUnprocessableEntity, "query parameter \"name\" is required")
		return
	}
	name := q.Get("name")
	results := h.students.SearchByName(name)
	writeJSON(w, http.StatusOK, map[string]any{
		"search_query": name,
		"found":        len(results),
		"students":     results,
	})
}

func (h *Handler) filterByGrade(w http.ResponseWriter, r *http.Request) {
	grade := r.PathValue("grade")
	results := h.students.FilterByGrade(grade)
	writeJSON(w, http.StatusOK, map[string]any{
		"grade":    grade,
		"found":    len(results),
		"students": results,
	})
}

func (h *Handler) filterByAge(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minAge, err := strconv.Atoi(q.Get("min_age"))
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "query parameter \"min_age\" must be an integer")
		return
	}
	var maxAge *int
	if raw := q.Get("max_age"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "query parameter \"max_age\" must be an integer")
			return
		}
		maxAge = &n
	}

	bound := 0
	if maxAge != nil {
		bound = *maxAge
	}
	results := h.students.FilterByAge(minAge, bound)
	writeJSON(w, http.StatusOK, map[string]any{
		"min_age":  minAge,
		"max_age":  maxAge,
		"found":    len(results),
		"students": results,
	})
}

func (h *Handler) statistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.students.Statistics())
}

// ---------- mutations ----------

func (h *Handler) createStudent(w http.ResponseWriter, r *http.Request) {
	var d student.Draft
	if !readJSON(w, r, schema.Student, &d) {
		return
	}
	s, err := h.students.Create(d)
	switch {
	case errors.Is(err, student.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to add new student")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Student added successfully",
		"student": s,
	})
}

func (h *Handler) updateStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var p student.Patch
	if !readJSON(w, r, schema.StudentPatch, &p) {
		return
	}
	if p.Empty() {
		writeError(w, http.StatusBadRequest, "No data provided for update")
		return
	}
	s, err := h.students.Update(id, p)
	switch {
	case errors.Is(err, student.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Student with ID %d not found", id))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to update student with ID %d", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Student updated successfully",
		"student": s,
	})
}

func (h *Handler) deleteStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	err := h.students.Delete(id)
	switch {
	case errors.Is(err, student.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Student with ID %d not found", id))
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to delete student with ID %d", id))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Student deleted successfully"})
}
