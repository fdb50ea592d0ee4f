// Package health reports whether the service's infrastructure is reachable.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
)

const checkTimeout = 3 * time.Second

const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusError    = "error"
)

// Checker verifies that an infrastructure dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a plain function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// Response is the /healthz body.
type Response struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

type CheckResult struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Handler answers 503 when a required check fails. Failing optional
// checks (the live-location cache) only degrade the status.
type Handler struct {
	required map[string]Checker
	optional map[string]Checker
	logger   *slog.Logger
}

func NewHandler(logger *slog.Logger, required, optional map[string]Checker) *Handler {
	return &Handler{required: required, optional: optional, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.check)
	return r
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := Response{Status: StatusOK, Checks: make(map[string]CheckResult, len(h.required)+len(h.optional))}
	var mu sync.Mutex
	var g errgroup.Group

	run := func(name string, c Checker, optional bool) {
		g.Go(func() error {
			res := CheckResult{Status: StatusOK, Optional: optional}
			if err := c.Check(ctx); err != nil {
				h.logger.Error("health check failed", "name", name, "optional", optional, "error", err)
				res.Status = StatusError
				res.Error = err.Error()
			}
			mu.Lock()
			defer mu.Unlock()
			resp.Checks[name] = res
			switch {
			case res.Status == StatusOK:
			case !optional:
				resp.Status = StatusError
			case resp.Status == StatusOK:
				resp.Status = StatusDegraded
			}
			return nil
		})
	}
	for name, c := range h.required {
		run(name, c, false)
	}
	for name, c := range h.optional {
		run(name, c, true)
	}
	_ = g.Wait()

	code := http.StatusOK
	if resp.Status == StatusError {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}
