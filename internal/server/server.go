// Package server is the rallye backend: rooms, content, scoring and the
// admin live view over SQLite, with a per-room event broker.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const DefaultPointsPerAnswer = 100

// Deps are the collaborators the HTTP handlers need.
type Deps struct {
	Store           Store
	Broker          *Broker
	Cache           LocationCache // optional
	PointsPerAnswer int
	SPADir          string
}

type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// New builds the server. mount registers infrastructure routes (health,
// websocket) that live outside this package.
func New(addr string, logger *slog.Logger, deps Deps, mount func(chi.Router)) *Server {
	if deps.Broker == nil {
		deps.Broker = NewBroker()
	}
	if deps.PointsPerAnswer <= 0 {
		deps.PointsPerAnswer = DefaultPointsPerAnswer
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(newStructuredLogger(logger))
	r.Use(middleware.Recoverer)

	if mount != nil {
		mount(r)
	}
	addRoutes(r, logger, deps)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

func (s *Server) Run(_ context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.srv.Addr, err)
	}

	err = s.srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
