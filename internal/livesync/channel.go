// Package livesync keeps a player's session in sync with the backend: it
// pushes positions, polls the scoreboard and delivers point reports.
package livesync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/playperu/rallye/internal/rallye"
)

const (
	DefaultPushInterval = 10 * time.Second
	DefaultPollInterval = 5 * time.Second
	MinPollInterval     = 2 * time.Second

	reportQueueSize = 64
)

// Backend is the subset of the rallye API the sync channel talks to.
type Backend interface {
	PushLocation(ctx context.Context, u rallye.LocationUpdate) error
	ListScores(ctx context.Context, roomCode string) ([]rallye.GroupScore, error)
	GroupNames(ctx context.Context, roomCode string) ([]rallye.Group, error)
	ReportPoints(ctx context.Context, r rallye.PointReport) error
	CeremonyStarted(ctx context.Context, roomCode string) (bool, error)
}

// Positions is the location signal pushed to the backend.
type Positions interface {
	Current() (rallye.Position, bool)
	Subscribe() (<-chan rallye.Position, func())
}

type Config struct {
	RoomCode     string
	GroupName    string
	PushInterval time.Duration
	PollInterval time.Duration
	Logger       *slog.Logger
}

type Channel struct {
	cfg       Config
	backend   Backend
	positions Positions
	logger    *slog.Logger
	reports   chan rallye.PointReport
	changed   chan struct{}

	mu       sync.Mutex
	names    map[int64]string
	ranked   []Row
	ceremony bool
}

func New(cfg Config, backend Backend, positions Positions) *Channel {
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = DefaultPushInterval
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.PollInterval < MinPollInterval {
		cfg.PollInterval = MinPollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Channel{
		cfg:       cfg,
		backend:   backend,
		positions: positions,
		logger:    cfg.Logger.With("room", cfg.RoomCode, "group", cfg.GroupName),
		reports:   make(chan rallye.PointReport, reportQueueSize),
		changed:   make(chan struct{}, 1),
		ranked:    Rank(nil, nil, cfg.GroupName),
	}
}

// ReportCorrect queues a point report without blocking. Reports are sent
// at most once; a full queue drops the report.
func (c *Channel) ReportCorrect(r rallye.PointReport) {
	select {
	case c.reports <- r:
	default:
		c.logger.Warn("point report dropped", "poi", r.POIID, "question", r.QuestionID)
	}
}

// Scoreboard returns the rows to display.
func (c *Channel) Scoreboard() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Display(c.ranked, DisplayTop)
}

func (c *Channel) CeremonyStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ceremony
}

// Changed fires after the scoreboard or ceremony flag was refreshed.
func (c *Channel) Changed() <-chan struct{} { return c.changed }

// Run blocks until ctx is cancelled. Backend failures are logged and
// retried on the next tick; they never stop the channel.
func (c *Channel) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.pushLoop(ctx) })
	g.Go(func() error { return c.pollLoop(ctx) })
	g.Go(func() error { return c.reportLoop(ctx) })
	return g.Wait()
}

func (c *Channel) pushLoop(ctx context.Context) error {
	updates, unsubscribe := c.positions.Subscribe()
	defer unsubscribe()

	ticker := time.NewTicker(c.cfg.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case pos := <-updates:
			c.push(ctx, pos)
		case <-ticker.C:
			if pos, ok := c.positions.Current(); ok {
				c.push(ctx, pos)
			}
		}
	}
}

func (c *Channel) push(ctx context.Context, pos rallye.Position) {
	err := c.backend.PushLocation(ctx, rallye.LocationUpdate{
		RoomCode:  c.cfg.RoomCode,
		GroupName: c.cfg.GroupName,
		Position:  pos,
	})
	c.logFailure(ctx, "location push failed", err)
}

func (c *Channel) pollLoop(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		c.poll(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// poll refreshes names (until they load once), scores and the ceremony flag.
func (c *Channel) poll(ctx context.Context) {
	c.mu.Lock()
	haveNames := c.names != nil
	c.mu.Unlock()

	if !haveNames {
		groups, err := c.backend.GroupNames(ctx, c.cfg.RoomCode)
		if err != nil {
			c.logFailure(ctx, "group names lookup failed", err)
		} else {
			names := make(map[int64]string, len(groups))
			for _, g := range groups {
				names[g.ID] = g.Name
			}
			c.mu.Lock()
			c.names = names
			c.mu.Unlock()
		}
	}

	scores, err := c.backend.ListScores(ctx, c.cfg.RoomCode)
	if err != nil {
		c.logFailure(ctx, "scoreboard poll failed", err)
	} else {
		c.mu.Lock()
		c.ranked = Rank(scores, c.names, c.cfg.GroupName)
		c.mu.Unlock()
		c.notify()
	}

	started, err := c.backend.CeremonyStarted(ctx, c.cfg.RoomCode)
	if err != nil {
		c.logFailure(ctx, "ceremony status failed", err)
		return
	}
	c.mu.Lock()
	flipped := started && !c.ceremony
	c.ceremony = started
	c.mu.Unlock()
	if flipped {
		c.logger.Info("award ceremony started")
		c.notify()
	}
}

func (c *Channel) reportLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-c.reports:
			err := c.backend.ReportPoints(ctx, r)
			c.logFailure(ctx, "point report failed", err)
		}
	}
}

func (c *Channel) notify() {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

// logFailure swallows errors caused by shutdown.
func (c *Channel) logFailure(ctx context.Context, msg string, err error) {
	if err == nil || ctx.Err() != nil {
		return
	}
	c.logger.Warn(msg, "error", err)
}
