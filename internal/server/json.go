package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/rallye/internal/rallye"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeStoreError maps store sentinels to status codes. Anything unknown
// is logged and reported as 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, notFound string) {
	switch {
	case errors.Is(err, rallye.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, rallye.ErrGroupTaken):
		writeError(w, http.StatusConflict, "group name already taken")
	case errors.Is(err, rallye.ErrUnknownQuestion):
		writeError(w, http.StatusNotFound, "question not found")
	default:
		logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// idParam parses a positive integer URL parameter.
func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

// idQuery parses a positive integer query parameter, trying each name in turn.
func idQuery(r *http.Request, names ...string) (int64, bool) {
	for _, n := range names {
		if v := r.URL.Query().Get(n); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			return id, err == nil && id > 0
		}
	}
	return 0, false
}
