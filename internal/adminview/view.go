// Package adminview is the operator's read-only live mirror of a room:
// the player roster plus route, location and score of one selected player.
package adminview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/rallye/internal/geo"
	"github.com/playperu/rallye/internal/rallye"
)

const (
	DefaultRosterInterval   = 5 * time.Second
	DefaultRouteInterval    = 4 * time.Second
	DefaultLocationInterval = 10 * time.Second
	DefaultScoreInterval    = 10 * time.Second
	DefaultPanFrames        = 30
)

type Backend interface {
	ListPlayers(ctx context.Context, roomCode string) ([]rallye.Group, error)
	PlayerRoute(ctx context.Context, roomCode string, groupID int64) ([]rallye.Position, error)
	// PlayerLocation reports false when the player has not sent a position yet.
	PlayerLocation(ctx context.Context, roomCode string, groupID int64) (rallye.Position, bool, error)
	PlayerScore(ctx context.Context, roomCode string, groupID int64) (int, error)
}

type Config struct {
	RoomCode         string
	RosterInterval   time.Duration
	RouteInterval    time.Duration
	LocationInterval time.Duration
	ScoreInterval    time.Duration

	// InitialCenter is where the view starts before any player is located.
	InitialCenter *rallye.Position
	PanFrames     int
	// OnRecenter receives the animation frames toward a new player location.
	OnRecenter func(frames []rallye.Position)
	// OnChange is called after any displayed value changed.
	OnChange func()
	Logger   *slog.Logger
}

// Snapshot is what the view currently displays.
type Snapshot struct {
	Roster   []rallye.Group
	Selected *rallye.Group
	Route    []rallye.Position
	Location *rallye.Position
	Score    *int
	Center   *rallye.Position
}

type View struct {
	cfg     Config
	backend Backend
	logger  *slog.Logger

	mu       sync.Mutex
	base     context.Context
	roster   []rallye.Group
	selected *rallye.Group
	gen      uint64
	cancel   context.CancelFunc
	route    []rallye.Position
	location *rallye.Position
	score    *int
	center   *rallye.Position
	players  sync.WaitGroup
}

func New(cfg Config, backend Backend) *View {
	if cfg.RosterInterval <= 0 {
		cfg.RosterInterval = DefaultRosterInterval
	}
	if cfg.RouteInterval <= 0 {
		cfg.RouteInterval = DefaultRouteInterval
	}
	if cfg.LocationInterval <= 0 {
		cfg.LocationInterval = DefaultLocationInterval
	}
	if cfg.ScoreInterval <= 0 {
		cfg.ScoreInterval = DefaultScoreInterval
	}
	if cfg.PanFrames <= 0 {
		cfg.PanFrames = DefaultPanFrames
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	v := &View{
		cfg:     cfg,
		backend: backend,
		logger:  cfg.Logger.With("room", cfg.RoomCode),
	}
	if cfg.InitialCenter != nil {
		c := *cfg.InitialCenter
		v.center = &c
	}
	return v
}

// Run polls the roster until ctx is cancelled. Per-player polls started
// by Select are tied to the same context.
func (v *View) Run(ctx context.Context) error {
	v.mu.Lock()
	v.base = ctx
	if v.selected != nil && v.cancel == nil {
		v.startPlayerLocked(*v.selected)
	}
	v.mu.Unlock()

	defer v.players.Wait()
	defer v.Deselect()

	every(ctx, v.cfg.RosterInterval, v.pollRoster)
	return nil
}

func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := Snapshot{
		Roster: append([]rallye.Group(nil), v.roster...),
		Route:  append([]rallye.Position(nil), v.route...),
	}
	if v.selected != nil {
		g := *v.selected
		s.Selected = &g
	}
	if v.location != nil {
		p := *v.location
		s.Location = &p
	}
	if v.score != nil {
		n := *v.score
		s.Score = &n
	}
	if v.center != nil {
		c := *v.center
		s.Center = &c
	}
	return s
}

// Select switches the per-player polls to player. Data for the previous
// player is cleared immediately.
func (v *View) Select(player rallye.Group) {
	v.mu.Lock()
	v.stopPlayerLocked()
	v.selected = &player
	v.startPlayerLocked(player)
	v.mu.Unlock()
	v.logger.Info("player selected", "group", player.ID, "name", player.Name)
	v.changed()
}

// Deselect stops the per-player polls and clears their data.
func (v *View) Deselect() {
	v.mu.Lock()
	had := v.selected != nil
	v.stopPlayerLocked()
	v.selected = nil
	v.mu.Unlock()
	if had {
		v.changed()
	}
}

func (v *View) stopPlayerLocked() {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.gen++
	v.route = nil
	v.location = nil
	v.score = nil
}

func (v *View) startPlayerLocked(player rallye.Group) {
	if v.base == nil {
		return
	}
	ctx, cancel := context.WithCancel(v.base)
	v.cancel = cancel
	gen := v.gen

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		every(ctx, v.cfg.RouteInterval, func(ctx context.Context) { v.pollRoute(ctx, gen, player.ID) })
		return nil
	})
	g.Go(func() error {
		every(ctx, v.cfg.LocationInterval, func(ctx context.Context) { v.pollLocation(ctx, gen, player.ID) })
		return nil
	})
	g.Go(func() error {
		every(ctx, v.cfg.ScoreInterval, func(ctx context.Context) { v.pollScore(ctx, gen, player.ID) })
		return nil
	})

	v.players.Add(1)
	go func() {
		defer v.players.Done()
		_ = g.Wait()
	}()
}

func (v *View) pollRoster(ctx context.Context) {
	players, err := v.backend.ListPlayers(ctx, v.cfg.RoomCode)
	if err != nil {
		v.logFailure(ctx, "roster poll failed", err)
		return
	}
	v.mu.Lock()
	v.roster = players
	v.mu.Unlock()
	v.changed()
}

func (v *View) pollRoute(ctx context.Context, gen uint64, groupID int64) {
	route, err := v.backend.PlayerRoute(ctx, v.cfg.RoomCode, groupID)
	if err != nil {
		v.logFailure(ctx, "route poll failed", err)
		return
	}
	v.apply(gen, func() { v.route = route })
}

func (v *View) pollScore(ctx context.Context, gen uint64, groupID int64) {
	score, err := v.backend.PlayerScore(ctx, v.cfg.RoomCode, groupID)
	if err != nil {
		v.logFailure(ctx, "score poll failed", err)
		return
	}
	v.apply(gen, func() { v.score = &score })
}

func (v *View) pollLocation(ctx context.Context, gen uint64, groupID int64) {
	pos, ok, err := v.backend.PlayerLocation(ctx, v.cfg.RoomCode, groupID)
	if err != nil {
		v.logFailure(ctx, "location poll failed", err)
		return
	}
	if !ok {
		return
	}

	var frames []rallye.Position
	applied := v.apply(gen, func() {
		v.location = &pos
		if v.center == nil {
			frames = []rallye.Position{pos}
		} else if *v.center != pos {
			frames = geo.PanPath(*v.center, pos, v.cfg.PanFrames)
		}
		v.center = &pos
	})
	if applied && len(frames) > 0 && v.cfg.OnRecenter != nil {
		v.cfg.OnRecenter(frames)
	}
}

// apply runs set only if the poll still belongs to the current selection.
func (v *View) apply(gen uint64, set func()) bool {
	v.mu.Lock()
	if gen != v.gen {
		v.mu.Unlock()
		return false
	}
	set()
	v.mu.Unlock()
	v.changed()
	return true
}

func (v *View) changed() {
	if v.cfg.OnChange != nil {
		v.cfg.OnChange()
	}
}

func (v *View) logFailure(ctx context.Context, msg string, err error) {
	if ctx.Err() != nil {
		return
	}
	v.logger.Warn(msg, "error", err)
}

// every calls fn immediately and then on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		fn(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
