// Command rallye-watch is the terminal admin live view of one room: the
// player roster and, for a selected player, route, location and score.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/rallye/internal/adminview"
	"github.com/playperu/rallye/internal/backend"
	"github.com/playperu/rallye/internal/config"
	"github.com/playperu/rallye/internal/rallye"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := config.LoadWatch()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	client := backend.New(cfg.API, &http.Client{Timeout: cfg.HTTPTimeout}, logger)

	var mu sync.Mutex
	printf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(stdout, format+"\n", args...)
	}

	// Only print when the rendered line differs from the previous one.
	var last string
	var view *adminview.View
	view = adminview.New(adminview.Config{
		RoomCode:         cfg.RoomCode,
		RosterInterval:   cfg.RosterInterval,
		RouteInterval:    cfg.RouteInterval,
		LocationInterval: cfg.LocationInterval,
		ScoreInterval:    cfg.ScoreInterval,
		OnRecenter: func(frames []rallye.Position) {
			if len(frames) > 0 {
				c := frames[len(frames)-1]
				printf("map centered on %.6f, %.6f", c.Lat, c.Lon)
			}
		},
		OnChange: func() {
			line := render(view.Snapshot())
			mu.Lock()
			if line == last {
				mu.Unlock()
				return
			}
			last = line
			mu.Unlock()
			printf("%s", line)
		},
		Logger:   logger,
	}, client)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	printf("watching room %s (players, select <id|name>, deselect, ceremony, finish, quit)", cfg.RoomCode)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return view.Run(gctx) })
	g.Go(func() error {
		defer cancel()
		sc := bufio.NewScanner(stdin)
		for sc.Scan() {
			if !command(gctx, sc.Text(), cfg.RoomCode, view, client, printf) {
				return nil
			}
		}
		return nil
	})
	return g.Wait()
}

type roomAdmin interface {
	StartCeremony(ctx context.Context, roomCode string) error
	FinishRoom(ctx context.Context, code string) (rallye.Room, error)
}

type selector interface {
	Snapshot() adminview.Snapshot
	Select(rallye.Group)
	Deselect()
}

// command executes one input line and reports whether to keep reading.
func command(ctx context.Context, line, room string, view selector, admin roomAdmin, printf func(string, ...any)) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	switch strings.ToLower(fields[0]) {
	case "quit", "exit", "q":
		return false
	case "players":
		printf("%s", render(view.Snapshot()))
	case "select":
		if len(fields) < 2 {
			printf("usage: select <id|name>")
			return true
		}
		g, ok := findPlayer(view.Snapshot().Roster, strings.Join(fields[1:], " "))
		if !ok {
			printf("no player %q in room %s", strings.Join(fields[1:], " "), room)
			return true
		}
		view.Select(g)
		printf("selected %s", g.Name)
	case "deselect":
		view.Deselect()
		printf("selection cleared")
	case "ceremony":
		if err := admin.StartCeremony(ctx, room); err != nil {
			printf("starting ceremony failed: %v", err)
			return true
		}
		printf("award ceremony started")
	case "finish":
		if _, err := admin.FinishRoom(ctx, room); err != nil {
			printf("finishing room failed: %v", err)
			return true
		}
		printf("room %s closed", room)
	default:
		printf("unknown command %q", fields[0])
	}
	return true
}

func findPlayer(roster []rallye.Group, key string) (rallye.Group, bool) {
	id, err := strconv.ParseInt(key, 10, 64)
	for _, g := range roster {
		if (err == nil && g.ID == id) || strings.EqualFold(g.Name, key) {
			return g, true
		}
	}
	return rallye.Group{}, false
}

func render(s adminview.Snapshot) string {
	var b strings.Builder
	names := make([]string, len(s.Roster))
	for i, g := range s.Roster {
		names[i] = fmt.Sprintf("%d:%s", g.ID, g.Name)
	}
	fmt.Fprintf(&b, "players [%s]", strings.Join(names, " "))
	if s.Selected == nil {
		return b.String()
	}
	fmt.Fprintf(&b, " | %s: route %d points", s.Selected.Name, len(s.Route))
	if s.Location != nil {
		fmt.Fprintf(&b, ", at %.6f, %.6f", s.Location.Lat, s.Location.Lon)
	}
	if s.Score != nil {
		fmt.Fprintf(&b, ", %d points", *s.Score)
	}
	return b.String()
}
