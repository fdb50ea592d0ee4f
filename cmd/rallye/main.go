// Command rallye is the terminal player client. It joins a room with a
// group name and plays the rallye with simulated steps or a gpsd feed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/rallye/internal/backend"
	"github.com/playperu/rallye/internal/config"
	"github.com/playperu/rallye/internal/game"
	"github.com/playperu/rallye/internal/geo"
	"github.com/playperu/rallye/internal/livesync"
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

	cfg, err := config.LoadPlayer()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	client := backend.New(cfg.API, &http.Client{Timeout: cfg.HTTPTimeout}, logger)

	check, err := client.CheckRoom(ctx, cfg.RoomCode)
	if err != nil {
		return fmt.Errorf("checking room %s: %w", cfg.RoomCode, err)
	}
	if !check.Exists {
		return fmt.Errorf("room %s does not exist or is closed", cfg.RoomCode)
	}

	switch err := client.JoinGroup(ctx, cfg.RoomCode, cfg.GroupName); {
	case errors.Is(err, rallye.ErrGroupTaken):
		logger.Warn("group already joined, continuing", "group", cfg.GroupName)
	case err != nil:
		return fmt.Errorf("joining as %s: %w", cfg.GroupName, err)
	}

	var gps geo.Source
	if cfg.GPSDAddr != "" {
		gps = geo.GPSDSource{Addr: cfg.GPSDAddr}
	}
	provider := geo.NewProvider(logger, gps)
	defer provider.Close()

	channel := livesync.New(livesync.Config{
		RoomCode:     cfg.RoomCode,
		GroupName:    cfg.GroupName,
		PushInterval: cfg.PushInterval,
		PollInterval: cfg.PollInterval,
		Logger:       logger,
	}, client, provider)

	session := game.New(game.Config{
		RoomCode:  cfg.RoomCode,
		GroupName: cfg.GroupName,
		RallyeID:  check.RallyeID,
		Duration:  cfg.Duration,
		Logger:    logger,
	}, client, provider, channel)

	session.Start(ctx)
	if err := session.SetMode(rallye.Mode(cfg.Mode)); err != nil {
		return fmt.Errorf("setting mode %s: %w", cfg.Mode, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	con := &console{
		out:        stdout,
		session:    session,
		mover:      provider,
		board:      channel,
		stepMeters: cfg.StepMeters,
	}
	con.welcome(cfg.RoomCode, cfg.GroupName)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return session.Run(gctx) })
	g.Go(func() error { return channel.Run(gctx) })
	g.Go(func() error {
		con.watchCeremony(gctx, channel)
		return nil
	})
	g.Go(func() error {
		con.run(gctx, stdin)
		cancel()
		return nil
	})

	return g.Wait()
}
