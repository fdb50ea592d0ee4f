package geo

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/playperu/rallye/internal/rallye"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// feed is a Source driven by the test.
type feed struct {
	fixes   chan rallye.Position
	fail    chan error
	stopped chan struct{}
}

func newFeed() *feed {
	return &feed{
		fixes:   make(chan rallye.Position),
		fail:    make(chan error, 1),
		stopped: make(chan struct{}),
	}
}

func (f *feed) Watch(ctx context.Context, out chan<- rallye.Position) error {
	defer close(f.stopped)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-f.fail:
			return err
		case pos := <-f.fixes:
			select {
			case out <- pos:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func TestProviderGPSUpdates(t *testing.T) {
	f := newFeed()
	p := NewProvider(slog.Default(), f)
	defer p.Close()

	if err := p.SetMode(rallye.ModeGPS); err != nil {
		t.Fatalf("SetMode: %v", err)
	}

	f.fixes <- brandenburgGate
	waitFor(t, "first fix", func() bool {
		pos, ok := p.Current()
		return ok && pos == brandenburgGate
	})
}

func TestProviderModeSwitchKeepsLastPosition(t *testing.T) {
	f := newFeed()
	p := NewProvider(slog.Default(), f)
	defer p.Close()

	p.SetMode(rallye.ModeGPS)
	f.fixes <- brandenburgGate
	waitFor(t, "gps fix", func() bool { _, ok := p.Current(); return ok })

	if err := p.SetMode(rallye.ModeSimulated); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	select {
	case <-f.stopped:
	case <-time.After(time.Second):
		t.Fatal("gps source not cancelled on mode switch")
	}

	pos, ok := p.Current()
	if !ok || pos != brandenburgGate {
		t.Fatalf("seed position = %v, %v; want %v", pos, ok, brandenburgGate)
	}

	moved, err := p.Move(North, 75)
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if moved.Lat <= brandenburgGate.Lat {
		t.Errorf("expected move north from seed, got %v", moved)
	}
}

func TestProviderSimulatedToGPSKeepsPosition(t *testing.T) {
	f := newFeed()
	p := NewProvider(slog.Default(), f)
	defer p.Close()

	p.Set(brandenburgGate)
	p.SetMode(rallye.ModeGPS)

	pos, ok := p.Current()
	if !ok || pos != brandenburgGate {
		t.Fatalf("position after switch = %v, %v", pos, ok)
	}
	if _, err := p.Move(North, 75); err == nil {
		t.Error("Move should fail in gps mode")
	}
}

func TestProviderGPSFailureIsNonFatal(t *testing.T) {
	f := newFeed()
	p := NewProvider(slog.Default(), f)
	defer p.Close()

	p.Set(brandenburgGate)
	p.SetMode(rallye.ModeGPS)
	f.fail <- errors.New("permission denied")

	waitFor(t, "location unavailable", func() bool {
		return errors.Is(p.Err(), rallye.ErrLocationUnavailable)
	})
	if pos, ok := p.Current(); !ok || pos != brandenburgGate {
		t.Errorf("last position lost after gps failure: %v, %v", pos, ok)
	}

	// Simulated mode still works and clears the condition.
	p.SetMode(rallye.ModeSimulated)
	if p.Err() != nil {
		t.Errorf("Err after switching away from gps = %v", p.Err())
	}
	if _, err := p.Move(East, 10); err != nil {
		t.Errorf("Move: %v", err)
	}
}

func TestProviderWithoutGPSSource(t *testing.T) {
	p := NewProvider(slog.Default(), nil)
	if err := p.SetMode(rallye.ModeGPS); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if !errors.Is(p.Err(), rallye.ErrLocationUnavailable) {
		t.Errorf("Err = %v, want ErrLocationUnavailable", p.Err())
	}
}

func TestProviderMoveWithoutPosition(t *testing.T) {
	p := NewProvider(slog.Default(), nil)
	if _, err := p.Move(North, 75); !errors.Is(err, rallye.ErrLocationUnavailable) {
		t.Errorf("Move err = %v, want ErrLocationUnavailable", err)
	}
}

func TestProviderRejectsUnknownMode(t *testing.T) {
	p := NewProvider(slog.Default(), nil)
	if err := p.SetMode("teleport"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestProviderSubscribeLatestWins(t *testing.T) {
	p := NewProvider(slog.Default(), nil)
	ch, unsubscribe := p.Subscribe()
	defer unsubscribe()

	p.Set(brandenburgGate)
	last, _ := p.Move(North, 75)
	last, _ = p.Move(North, 75)

	select {
	case got := <-ch:
		if got != last {
			t.Errorf("got %v, want latest %v", got, last)
		}
	default:
		t.Fatal("expected a pending position")
	}
	select {
	case got := <-ch:
		t.Errorf("unexpected extra position %v", got)
	default:
	}
}

func TestProviderIgnoresStaleSource(t *testing.T) {
	src := SourceFunc(func(ctx context.Context, out chan<- rallye.Position) error {
		for {
			select {
			case out <- rallye.Position{Lat: 1, Lon: 1}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	p := NewProvider(slog.Default(), src)
	defer p.Close()
	p.SetMode(rallye.ModeGPS)
	waitFor(t, "gps fix", func() bool { _, ok := p.Current(); return ok })

	p.SetMode(rallye.ModeSimulated)
	p.Set(brandenburgGate)

	time.Sleep(20 * time.Millisecond)
	if pos, _ := p.Current(); pos != brandenburgGate {
		t.Errorf("fix from cancelled gps source applied: %v", pos)
	}
}
