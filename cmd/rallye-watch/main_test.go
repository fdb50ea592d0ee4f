package main

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/playperu/rallye/internal/adminview"
	"github.com/playperu/rallye/internal/rallye"
)

type fakeView struct {
	snap     adminview.Snapshot
	selected *rallye.Group
}

func (v *fakeView) Snapshot() adminview.Snapshot { return v.snap }
func (v *fakeView) Select(g rallye.Group) { v.selected = &g }
func (v *fakeView) Deselect() { v.selected = nil }

type fakeAdmin struct {
	ceremony string
	finished string
}

func (a *fakeAdmin) StartCeremony(_ context.Context, code string) error {
	a.ceremony = code
	return nil
}

func (a *fakeAdmin) FinishRoom(_ context.Context, code string) (rallye.Room, error) {
	a.finished = code
	return rallye.Room{Code: code, Status: rallye.RoomClosed}, nil
}

func TestCommand(t *testing.T) {
	view := &fakeView{snap: adminview.Snapshot{Roster: []rallye.Group{{ID: 1, Name: "Adler"}, {ID: 4, Name: "Luchse"}}}}
	admin := &fakeAdmin{}
	var out strings.Builder
	printf := func(format string, args ...any) { fmt.Fprintf(&out, format+"\n", args...) }
	ctx := context.Background()

	command(ctx, "select luchse", "SPREE2", view, admin, printf)
	if view.selected == nil || view.selected.ID != 4 {
		t.Fatalf("expected Luchse selected, got %+v", view.selected)
	}
	command(ctx, "select 1", "SPREE2", view, admin, printf)
	if view.selected == nil || view.selected.Name != "Adler" {
		t.Fatalf("expected Adler selected, got %+v", view.selected)
	}
	command(ctx, "select Pinguine", "SPREE2", view, admin, printf)
	if !strings.Contains(out.String(), `no player "Pinguine"`) {
		t.Fatalf("expected unknown player message, got %q", out.String())
	}
	command(ctx, "deselect", "SPREE2", view, admin, printf)
	if view.selected != nil {
		t.Fatal("expected selection cleared")
	}

	command(ctx, "ceremony", "SPREE2", view, admin, printf)
	command(ctx, "finish", "SPREE2", view, admin, printf)
	if admin.ceremony != "SPREE2" || admin.finished != "SPREE2" {
		t.Fatalf("admin calls not made: %+v", admin)
	}

	if command(ctx, "quit", "SPREE2", view, admin, printf) {
		t.Fatal("expected quit to stop the loop")
	}
}

func TestRender(t *testing.T) {
	score := 200
	s := adminview.Snapshot{
		Roster:   []rallye.Group{{ID: 1, Name: "Adler"}},
		Selected: &rallye.Group{ID: 1, Name: "Adler"},
		Route:    []rallye.Position{{Lat: 52.5, Lon: 13.4}, {Lat: 52.51, Lon: 13.41}},
		Location: &rallye.Position{Lat: 52.51, Lon: 13.41},
		Score:    &score,
	}
	want := "players [1:Adler] | Adler: route 2 points, at 52.510000, 13.410000, 200 points"
	if got := render(s); got != want {
		t.Fatalf("render = %q, want %q", got, want)
	}
	if got := render(adminview.Snapshot{}); got != "players []" {
		t.Fatalf("render empty = %q", got)
	}
}
