package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/couchcryptid/neo-data-etl/internal/query"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 100
)

type queryInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (s *Server) handleListQueries(w http.ResponseWriter, _ *http.Request) {
	list := s.queries.Queries()
	out := make([]queryInfo, len(list))
	for i, q := range list {
		out[i] = queryInfo{ID: q.ID, Title: q.Title}
	}
	writeJSON(w, http.StatusOK, map[string]any{"queries": out})
}

func (s *Server) handleRunQuery(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	csvOut, err := wantCSV(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.queries.Run(r.Context(), id)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	if csvOut {
		s.writeCSV(w, id+".csv", res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleApproaches(w http.ResponseWriter, r *http.Request) {
	csvOut, err := wantCSV(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := s.queries.Filter(r.Context(), f)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	if csvOut {
		s.writeCSV(w, "filtered_neo_data.csv", res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRunLimit {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be between 1 and %d", maxRunLimit))
			return
		}
		limit = n
	}

	runs, err := s.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, query.ErrUnknownQuery):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, query.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, err)
	default:
		s.logger.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func (s *Server) writeCSV(w http.ResponseWriter, filename string, res query.Result) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if err := res.WriteCSV(w); err != nil {
		s.logger.Warn("csv write failed", "file", filename, "error", err)
	}
}

func wantCSV(r *http.Request) (bool, error) {
	switch r.URL.Query().Get("format") {
	case "", "json":
		return false, nil
	case "csv":
		return true, nil
	default:
		return false, errors.New("format must be json or csv")
	}
}

// parseFilter reads filter parameters from the query string. Absent
// parameters keep their default.
func parseFilter(r *http.Request) (query.Filter, error) {
	q := r.URL.Query()
	f := query.DefaultFilter()
	f.Date = q.Get("date")

	floats := []struct {
		name string
		dst  *float64
	}{
		{"velocity_min", &f.VelocityMin},
		{"velocity_max", &f.VelocityMax},
		{"au_max", &f.AUMax},
		{"lunar_max", &f.LunarMax},
		{"diameter_min", &f.DiameterMin},
		{"diameter_max", &f.DiameterMax},
	}
	for _, p := range floats {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return f, fmt.Errorf("%w: %s is not a number", query.ErrInvalidFilter, p.name)
		}
		*p.dst = n
	}

	hazard, err := query.ParseHazard(q.Get("hazardous"))
	if err != nil {
		return f, err
	}
	f.Hazardous = hazard
	return f, f.Validate()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
