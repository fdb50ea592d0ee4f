package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/playperu/rallye/internal/game"
	"github.com/playperu/rallye/internal/geo"
	"github.com/playperu/rallye/internal/livesync"
	"github.com/playperu/rallye/internal/rallye"
)

type staticContent []rallye.POI

func (s staticContent) ListPOIs(context.Context, int64) ([]rallye.POI, error) { return s, nil }

type fakeBoard struct {
	rows     []livesync.Row
	ceremony bool
	changed  chan struct{}
}

func (b *fakeBoard) Scoreboard() []livesync.Row { return b.rows }
func (b *fakeBoard) CeremonyStarted() bool { return b.ceremony }
func (b *fakeBoard) Changed() <-chan struct{} { return b.changed }
func (b *fakeBoard) ReportCorrect(rallye.PointReport) {}

func newConsole(t *testing.T) (*console, *bytes.Buffer) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gate := rallye.POI{
		ID:           1,
		Name:         "Brandenburger Tor",
		Coordinate:   &rallye.Position{Lat: 52.516275, Lon: 13.377704},
		RadiusMeters: 50,
		Questions: []rallye.Question{
			{ID: 10, Text: "Wie heißt die Figur?", Answer: "Quadriga"},
		},
	}
	provider := geo.NewProvider(logger, nil)
	t.Cleanup(provider.Close)

	board := &fakeBoard{changed: make(chan struct{}, 1)}
	session := game.New(game.Config{RoomCode: "SPREE2", GroupName: "Adler", Logger: logger},
		staticContent{gate}, provider, board)
	session.Start(context.Background())

	var out bytes.Buffer
	return &console{out: &out, session: session, mover: provider, board: board, stepMeters: 75}, &out
}

func TestConsoleNoPosition(t *testing.T) {
	c, out := newConsole(t)

	c.handle("poi")
	if !strings.Contains(out.String(), "position unknown") {
		t.Fatalf("expected position unknown, got %q", out.String())
	}

	out.Reset()
	c.handle("w")
	if !strings.Contains(out.String(), "cannot move") {
		t.Fatalf("expected move to fail without a position, got %q", out.String())
	}
}

func TestConsolePlaysPOI(t *testing.T) {
	c, out := newConsole(t)

	c.handle("mode simulated")
	c.handle("poi")
	if !strings.Contains(out.String(), "question 10: Wie heißt die Figur?") {
		t.Fatalf("expected question, got %q", out.String())
	}

	out.Reset()
	c.handle("d")
	if !strings.Contains(out.String(), "Brandenburger Tor in 75 m") {
		t.Fatalf("expected distance note, got %q", out.String())
	}

	out.Reset()
	c.handle("answer 10 Quadriga")
	if !strings.Contains(out.String(), "not at the point of interest") {
		t.Fatalf("expected proximity rejection, got %q", out.String())
	}

	c.handle("a")
	out.Reset()
	c.handle("answer 10 quadriga")
	if !strings.Contains(out.String(), "completed") {
		t.Fatalf("expected completion, got %q", out.String())
	}
}

func TestConsoleCommands(t *testing.T) {
	tests := []struct {
		line string
		want string
		more bool
	}{
		{"", "", true},
		{"mode car", "usage: mode", true},
		{"answer 10", "usage: answer", true},
		{"answer x 1", "invalid question id", true},
		{"fly", "unknown command", true},
		{"status", "time left 02:00:00", true},
		{"mode gps", "warning: location unavailable: no gps source configured", true},
		{"quit", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			c, out := newConsole(t)
			if got := c.handle(tt.line); got != tt.more {
				t.Fatalf("handle(%q) = %v, want %v", tt.line, got, tt.more)
			}
			if !strings.Contains(out.String(), tt.want) {
				t.Fatalf("output %q does not contain %q", out.String(), tt.want)
			}
		})
	}
}

func TestConsoleScoreboard(t *testing.T) {
	c, out := newConsole(t)
	c.board.(*fakeBoard).rows = []livesync.Row{
		{Key: "1", Name: "Bären", Points: 300, Rank: 1},
		{Key: "separator", Separator: true},
		{Key: "2", Name: "Adler", Points: 100, Rank: 6, Self: true},
	}

	c.handle("score")
	got := out.String()
	if !strings.Contains(got, "Bären") || !strings.Contains(got, "...") || !strings.Contains(got, "* ") {
		t.Fatalf("unexpected scoreboard: %q", got)
	}
}

func TestConsoleStatusShowsGPSFailure(t *testing.T) {
	c, out := newConsole(t)

	c.handle("mode gps")
	out.Reset()
	c.handle("status")
	if !strings.Contains(out.String(), "gps: location unavailable") {
		t.Fatalf("expected gps failure in status, got:\n%s", out)
	}

	c.handle("mode simulated")
	out.Reset()
	c.handle("status")
	if strings.Contains(out.String(), "gps:") {
		t.Fatalf("expected no gps failure after switching back, got:\n%s", out)
	}
}
