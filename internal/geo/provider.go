package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/playperu/rallye/internal/rallye"
)

// Source is a continuous device position stream. Watch sends fixes to out
// until ctx is cancelled or the stream fails.
type Source interface {
	Watch(ctx context.Context, out chan<- rallye.Position) error
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, out chan<- rallye.Position) error

func (f SourceFunc) Watch(ctx context.Context, out chan<- rallye.Position) error { return f(ctx, out) }

var errWrongMode = errors.New("provider is not in simulated mode")

// Provider exposes a single current position fed either by a GPS Source or
// by simulated steps. Switching modes cancels the previous source and keeps
// the last known position as the seed of the new mode.
type Provider struct {
	logger *slog.Logger
	gps    Source

	mu     sync.Mutex
	mode   rallye.Mode
	pos    *rallye.Position
	err    error
	gen    uint64
	cancel context.CancelFunc
	subs   map[chan rallye.Position]struct{}
	closed bool
}

func NewProvider(logger *slog.Logger, gps Source) *Provider {
	return &Provider{
		logger: logger,
		gps:    gps,
		mode:   rallye.ModeSimulated,
		subs:   make(map[chan rallye.Position]struct{}),
	}
}

func (p *Provider) Mode() rallye.Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// Current returns the last known position.
func (p *Provider) Current() (rallye.Position, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos == nil {
		return rallye.Position{}, false
	}
	return *p.pos, true
}

// Err returns the LocationUnavailable condition of the GPS mode, if any.
func (p *Provider) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// SetMode switches the position source. It never fails on GPS trouble:
// that is surfaced through Err while the last position stays valid.
func (p *Provider) SetMode(mode rallye.Mode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown mode %q", mode)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}

	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	p.mode = mode
	p.err = nil

	if mode != rallye.ModeGPS {
		return nil
	}
	if p.gps == nil {
		p.err = fmt.Errorf("%w: no gps source configured", rallye.ErrLocationUnavailable)
		p.logger.Warn("gps unavailable", "error", p.err)
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go p.watch(ctx, p.gen)
	return nil
}

// Set replaces the current position regardless of mode. Used to seed a
// mode that has no fix yet.
func (p *Provider) Set(pos rallye.Position) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setLocked(pos)
}

// Move applies one simulated step. It fails outside simulated mode and
// before any position is known.
func (p *Provider) Move(d Direction, meters float64) (rallye.Position, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.mode != rallye.ModeSimulated {
		return rallye.Position{}, errWrongMode
	}
	if p.pos == nil {
		return rallye.Position{}, rallye.ErrLocationUnavailable
	}
	next := Step(*p.pos, d, meters)
	p.setLocked(next)
	return next, nil
}

// Subscribe returns a channel receiving every position change. Slow
// subscribers only see the latest value.
func (p *Provider) Subscribe() (<-chan rallye.Position, func()) {
	ch := make(chan rallye.Position, 1)
	p.mu.Lock()
	p.subs[ch] = struct{}{}
	p.mu.Unlock()

	return ch, func() {
		p.mu.Lock()
		delete(p.subs, ch)
		p.mu.Unlock()
	}
}

// Close stops the GPS source. Positions are no longer updated afterwards.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	p.closed = true
}

func (p *Provider) watch(ctx context.Context, gen uint64) {
	updates := make(chan rallye.Position)
	errc := make(chan error, 1)
	go func() { errc <- p.gps.Watch(ctx, updates) }()

	for {
		select {
		case <-ctx.Done():
			return
		case pos := <-updates:
			p.mu.Lock()
			if p.gen == gen {
				p.err = nil
				p.setLocked(pos)
			}
			p.mu.Unlock()
		case err := <-errc:
			if ctx.Err() != nil {
				return
			}
			p.mu.Lock()
			if p.gen == gen {
				p.err = fmt.Errorf("%w: %v", rallye.ErrLocationUnavailable, err)
				p.logger.Warn("gps stream failed", "error", err)
			}
			p.mu.Unlock()
			return
		}
	}
}

func (p *Provider) setLocked(pos rallye.Position) {
	p.pos = &pos
	for ch := range p.subs {
		select {
		case ch <- pos:
		default:
			// Replace the stale value nobody has read yet.
			select {
			case <-ch:
			default:
			}
			ch <- pos
		}
	}
}
