// Package live streams room events to websocket clients.
package live

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// Feed delivers JSON-encoded events per room code.
type Feed interface {
	Subscribe(code string) chan []byte
	Unsubscribe(code string, ch chan []byte)
}

type Handler struct {
	feed   Feed
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger, feed Feed) *Handler {
	return &Handler{feed: feed, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/rooms/{code}", h.stream)
	return r
}

// stream forwards every event of the room until either side goes away.
// Messages sent by the client are ignored.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())

	ch := h.feed.Subscribe(code)
	defer h.feed.Unsubscribe(code, ch)
	h.logger.Debug("live feed opened", "room", code)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("live feed closed", "room", code, "error", ctx.Err())
			return
		case data := <-ch:
			if err := write(ctx, conn, data); err != nil {
				h.logger.Debug("websocket write failed", "room", code, "error", err)
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				h.logger.Debug("websocket ping failed", "room", code, "error", err)
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
