// Package game drives one player's rallye: POI sequencing, the countdown
// and the binding of proximity checks to the per-POI question flows.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/playperu/rallye/internal/geo"
	"github.com/playperu/rallye/internal/quiz"
	"github.com/playperu/rallye/internal/rallye"
)

const (
	DefaultDuration     = 2 * time.Hour
	DefaultAdvanceDelay = 300 * time.Millisecond
)

// Content loads the POIs (with their questions) of a rallye.
type Content interface {
	ListPOIs(ctx context.Context, rallyeID int64) ([]rallye.POI, error)
}

// Locator is the current-position signal the session reads from.
type Locator interface {
	Current() (rallye.Position, bool)
	Mode() rallye.Mode
	SetMode(rallye.Mode) error
	Set(rallye.Position)
}

// Reporter receives one report per newly-correct answer. It must not block.
type Reporter interface {
	ReportCorrect(rallye.PointReport)
}

type Config struct {
	RoomCode     string
	GroupName    string
	RallyeID     int64
	Duration     time.Duration
	AdvanceDelay time.Duration
	Rand         *rand.Rand
	Logger       *slog.Logger
}

type SelectionKind int

const (
	NoActivePOI SelectionKind = iota
	// TooFar means the view should fly to the POI instead of opening it.
	TooFar
	Engaged
)

type Selection struct {
	Kind SelectionKind
	POI  rallye.POI
	// Question is the next pending question when Kind is Engaged.
	Question    rallye.Question
	HasQuestion bool
}

type Session struct {
	cfg      Config
	content  Content
	locator  Locator
	reporter Reporter
	logger   *slog.Logger

	mu        sync.Mutex
	pois      []rallye.POI
	flows     []*quiz.Flow
	active    int
	remaining int
	finished  bool
	banner    error
	advancing *time.Timer
	closed    bool
}

func New(cfg Config, content Content, locator Locator, reporter Reporter) *Session {
	if cfg.Duration <= 0 {
		cfg.Duration = DefaultDuration
	}
	if cfg.AdvanceDelay <= 0 {
		cfg.AdvanceDelay = DefaultAdvanceDelay
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Session{
		cfg:       cfg,
		content:   content,
		locator:   locator,
		reporter:  reporter,
		logger:    cfg.Logger.With("room", cfg.RoomCode, "group", cfg.GroupName),
		remaining: int(cfg.Duration / time.Second),
	}
}

// Start loads and shuffles the POIs once. A load failure is kept as the
// session banner; play continues with whatever POIs did load.
func (s *Session) Start(ctx context.Context) {
	pois, err := s.content.ListPOIs(ctx, s.cfg.RallyeID)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.banner = nil
	if err != nil {
		s.banner = fmt.Errorf("loading points of interest: %w", err)
		s.logger.Warn("poi load failed", "error", err, "pois", len(pois))
	}
	shuffle(s.cfg.Rand, pois)

	s.pois = pois
	s.flows = make([]*quiz.Flow, len(pois))
	for i, p := range pois {
		s.flows[i] = quiz.NewFlow(p)
	}
	s.active = 0
	s.finished = false
	s.logger.Info("game started", "pois", len(pois), "duration", s.cfg.Duration)
}

// Run counts the timer down once per second until ctx is cancelled.
// Expiry is informational and does not end the session.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	defer s.close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Session) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remaining > 0 {
		s.remaining--
	}
}

func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.advancing != nil {
		s.advancing.Stop()
		s.advancing = nil
	}
}

func (s *Session) State() rallye.GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rallye.GameState{
		POIs:             append([]rallye.POI(nil), s.pois...),
		ActivePOIIndex:   s.active,
		RemainingSeconds: s.remaining,
		Mode:             s.locator.Mode(),
		Finished:         s.finished,
	}
}

// Banner returns the non-fatal load failure, if any.
func (s *Session) Banner() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banner
}

func (s *Session) ActivePOI() (rallye.POI, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.activeFlowLocked()
	if f == nil {
		return rallye.POI{}, false
	}
	return f.POI(), true
}

// Nearby reports whether the current position is inside the active POI's geofence.
func (s *Session) Nearby() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nearbyLocked()
}

// OnPOISelected engages the active POI when the player is inside its
// geofence; otherwise the caller should move the view toward it.
func (s *Session) OnPOISelected() Selection {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.activeFlowLocked()
	if f == nil {
		return Selection{Kind: NoActivePOI}
	}
	if !s.nearbyLocked() {
		return Selection{Kind: TooFar, POI: f.POI()}
	}

	sel := Selection{Kind: Engaged, POI: f.POI()}
	sel.Question, sel.HasQuestion = f.Current()
	if f.Complete() {
		s.scheduleAdvanceLocked()
	}
	return sel
}

// OnAnswer submits value for a question of the active POI. A correct
// first answer is reported exactly once; completing the POI advances the
// session after the configured delay.
func (s *Session) OnAnswer(questionID int64, value string) (quiz.Result, error) {
	s.mu.Lock()
	f := s.activeFlowLocked()
	if f == nil {
		s.mu.Unlock()
		return quiz.Result{}, rallye.ErrUnknownQuestion
	}
	res, err := f.Submit(questionID, value, s.nearbyLocked())
	if err != nil {
		s.mu.Unlock()
		return res, err
	}
	if res.Complete {
		s.scheduleAdvanceLocked()
	}
	poiID := f.POI().ID
	s.mu.Unlock()

	if res.NewlyCorrect && s.reporter != nil {
		s.reporter.ReportCorrect(rallye.PointReport{
			RoomCode:   s.cfg.RoomCode,
			GroupName:  s.cfg.GroupName,
			POIID:      poiID,
			QuestionID: questionID,
			Correct:    true,
		})
	}
	s.logger.Debug("answer submitted", "poi", poiID, "question", questionID, "correct", res.Attempt.Correct)
	return res, nil
}

// SetMode switches the position source. Entering simulated mode without
// any known position seeds it at the active POI.
func (s *Session) SetMode(mode rallye.Mode) error {
	if err := s.locator.SetMode(mode); err != nil {
		return err
	}
	if mode != rallye.ModeSimulated {
		return nil
	}
	if _, ok := s.locator.Current(); ok {
		return nil
	}
	if poi, ok := s.ActivePOI(); ok && poi.Coordinate != nil {
		s.locator.Set(*poi.Coordinate)
	}
	return nil
}

func (s *Session) activeFlowLocked() *quiz.Flow {
	if s.finished || s.active < 0 || s.active >= len(s.flows) {
		return nil
	}
	return s.flows[s.active]
}

func (s *Session) nearbyLocked() bool {
	f := s.activeFlowLocked()
	if f == nil {
		return false
	}
	pos, ok := s.locator.Current()
	if !ok {
		return false
	}
	poi := f.POI()
	return geo.IsWithin(&poi, &pos)
}

func (s *Session) scheduleAdvanceLocked() {
	if s.advancing != nil || s.closed {
		return
	}
	from := s.active
	s.advancing = time.AfterFunc(s.cfg.AdvanceDelay, func() { s.advance(from) })
}

// advance moves past POI index from. The index never rewinds and a stale
// call for an already-left POI is a no-op.
func (s *Session) advance(from int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.advancing = nil
	if s.closed || s.finished || s.active != from {
		return
	}
	if from >= len(s.flows)-1 {
		s.finished = true
		s.logger.Info("all points of interest completed")
		return
	}
	s.active = from + 1
	s.logger.Info("advanced to next poi", "index", s.active, "poi", s.flows[s.active].POI().ID)
}

func shuffle(r *rand.Rand, pois []rallye.POI) {
	swap := func(i, j int) { pois[i], pois[j] = pois[j], pois[i] }
	if r == nil {
		rand.Shuffle(len(pois), swap)
		return
	}
	r.Shuffle(len(pois), swap)
}

// FormatRemaining renders a countdown as HH:MM:SS.
func FormatRemaining(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, seconds/60%60, seconds%60)
}
