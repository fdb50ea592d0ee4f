package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/playperu/rallye/internal/game"
	"github.com/playperu/rallye/internal/geo"
	"github.com/playperu/rallye/internal/livesync"
	"github.com/playperu/rallye/internal/rallye"
)

const helpText = `commands:
  w a s d            step north, west, south, east (simulated mode)
  poi                open the active point of interest
  answer <id> <val>  answer a question (option index or text)
  mode gps|simulated switch the position source
  status             remaining time and position
  score              scoreboard
  quit`

type mover interface {
	Move(d geo.Direction, meters float64) (rallye.Position, error)
	Current() (rallye.Position, bool)
	Err() error
}

type scoreboard interface {
	Scoreboard() []livesync.Row
	CeremonyStarted() bool
	Changed() <-chan struct{}
}

type console struct {
	session    *game.Session
	mover      mover
	board      scoreboard
	stepMeters float64

	mu  sync.Mutex
	out io.Writer
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format+"\n", args...)
}

func (c *console) welcome(room, group string) {
	c.printf("room %s, playing as %s", room, group)
	if err := c.session.Banner(); err != nil {
		c.printf("warning: %v", err)
	}
	c.printf("%s", helpText)
}

// run reads commands until quit, EOF or ctx is done.
func (c *console) run(ctx context.Context, in io.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok || !c.handle(line) {
				return
			}
		}
	}
}

func (c *console) watchCeremony(ctx context.Context, board scoreboard) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-board.Changed():
			if board.CeremonyStarted() {
				c.printf("the award ceremony has started!")
				c.printScore()
				return
			}
		}
	}
}

// handle executes one command line and reports whether to keep going.
func (c *console) handle(line string) bool {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return true
	}

	if d, ok := geo.ParseDirection(fields[0]); ok {
		c.step(d)
		return true
	}

	switch fields[0] {
	case "quit", "exit", "q":
		return false
	case "help", "?":
		c.printf("%s", helpText)
	case "poi":
		c.selectPOI()
	case "answer":
		if len(fields) < 3 {
			c.printf("usage: answer <question id> <value>")
			return true
		}
		c.answer(fields[1], strings.Join(strings.Fields(line)[2:], " "))
	case "mode":
		if len(fields) != 2 || !rallye.Mode(fields[1]).Valid() {
			c.printf("usage: mode gps|simulated")
			return true
		}
		if err := c.session.SetMode(rallye.Mode(fields[1])); err != nil {
			c.printf("cannot switch mode: %v", err)
			return true
		}
		c.printf("mode: %s", fields[1])
		if err := c.mover.Err(); err != nil {
			c.printf("warning: %v", err)
		}
	case "status":
		c.status()
	case "score":
		c.printScore()
	default:
		c.printf("unknown command %q, type help", fields[0])
	}
	return true
}

func (c *console) step(d geo.Direction) {
	pos, err := c.mover.Move(d, c.stepMeters)
	if err != nil {
		c.printf("cannot move: %v", err)
		return
	}
	c.printf("position %.6f, %.6f%s", pos.Lat, pos.Lon, c.distanceNote(pos))
}

func (c *console) distanceNote(pos rallye.Position) string {
	poi, ok := c.session.ActivePOI()
	if !ok || poi.Coordinate == nil {
		return ""
	}
	d := geo.Distance(pos, *poi.Coordinate)
	if d <= poi.Radius() {
		return fmt.Sprintf(" (at %s)", poi.Name)
	}
	return fmt.Sprintf(" (%s in %.0f m)", poi.Name, d)
}

func (c *console) selectPOI() {
	sel := c.session.OnPOISelected()
	switch sel.Kind {
	case game.NoActivePOI:
		if c.session.State().Finished {
			c.printf("all points of interest completed")
		} else {
			c.printf("no point of interest to visit")
		}
	case game.TooFar:
		pos, ok := c.mover.Current()
		if !ok || sel.POI.Coordinate == nil {
			c.printf("%s: position unknown", sel.POI.Name)
			return
		}
		c.printf("%s is %.0f m away, get within %.0f m", sel.POI.Name, geo.Distance(pos, *sel.POI.Coordinate), sel.POI.Radius())
	case game.Engaged:
		if !sel.HasQuestion {
			c.printf("%s: nothing left to answer", sel.POI.Name)
			return
		}
		q := sel.Question
		c.printf("%s, question %d: %s", sel.POI.Name, q.ID, q.Text)
		for i, opt := range q.Options {
			c.printf("  [%d] %s", i, opt)
		}
	}
}

func (c *console) answer(rawID, value string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		c.printf("invalid question id %q", rawID)
		return
	}
	res, err := c.session.OnAnswer(id, value)
	switch {
	case errors.Is(err, rallye.ErrNotNearby):
		c.printf("you are not at the point of interest")
	case errors.Is(err, rallye.ErrAlreadyAnswered):
		c.printf("question %d is already answered", id)
	case errors.Is(err, rallye.ErrUnknownQuestion):
		c.printf("question %d does not belong to the active point of interest", id)
	case err != nil:
		c.printf("answer failed: %v", err)
	case !res.Attempt.Correct:
		c.printf("wrong, try again")
	case res.Complete:
		c.printf("correct! point of interest completed")
	default:
		c.printf("correct!")
	}
}

func (c *console) status() {
	st := c.session.State()
	c.printf("time left %s, mode %s, poi %d/%d", game.FormatRemaining(st.RemainingSeconds), st.Mode,
		min(st.ActivePOIIndex+1, len(st.POIs)), len(st.POIs))
	if pos, ok := c.mover.Current(); ok {
		c.printf("position %.6f, %.6f%s", pos.Lat, pos.Lon, c.distanceNote(pos))
	} else {
		c.printf("position unknown")
	}
	if err := c.mover.Err(); err != nil {
		c.printf("gps: %v", err)
	}
}

func (c *console) printScore() {
	for _, row := range c.board.Scoreboard() {
		if row.Separator {
			c.printf("  ...")
			continue
		}
		marker := " "
		if row.Self {
			marker = "*"
		}
		c.printf("%s %2d. %-12s %5d", marker, row.Rank, row.Name, row.Points)
	}
}
