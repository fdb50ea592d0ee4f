package server

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggest/swgui/v5emb"

	"github.com/playperu/rallye/internal/rallye"
)

func addRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Rallye API", "/openapi.json", "/docs"))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Rooms. {room} is the numeric id for start/close and the code elsewhere.
		r.Get("/rooms", handleListRooms(logger, d.Store))
		r.Post("/rooms", handleCreateRoom(logger, d.Store))
		r.Get("/rooms/check/{room}", handleCheckRoom(logger, d.Store))
		r.Route("/rooms/{room}", func(r chi.Router) {
			r.Delete("/", handleDeleteRoom(logger, d.Store))
			r.Patch("/start", handleSetRoomStatus(logger, d.Store, rallye.RoomStarted))
			r.Patch("/close", handleSetRoomStatus(logger, d.Store, rallye.RoomClosed))
			r.Post("/finish", handleFinishRoom(logger, d.Store))
			r.Get("/taken-groups", handleTakenGroups(logger, d.Store))
			r.Post("/join-group", handleJoinGroup(logger, d.Store, d.Broker))
			r.Get("/ceremony", handleCeremonyStatus(logger, d.Store))
			r.Post("/ceremony", handleStartCeremony(logger, d.Store, d.Broker))
			r.Get("/events", handleEvents(logger, d.Store, d.Broker))
		})

		// Content.
		r.Get("/rallyes", handleListRallyes(logger, d.Store))
		r.Get("/pois", handleListPOIs(logger, d.Store))
		r.Get("/questions", handleListQuestions(logger, d.Store))

		// Scoring.
		r.Post("/sessiongroups/location", handleRecordLocation(logger, d.Store, d.Cache, d.Broker))
		r.Get("/sessiongroups", handleListScores(logger, d.Store))
		r.Get("/group-names", handleGroupNames(logger, d.Store))
		r.Post("/points", handleAwardPoints(logger, d.Store, d.Broker, d.PointsPerAnswer))

		// Admin content editing.
		r.Post("/admin/pois", handleCreatePOI(logger, d.Store))
		r.Put("/admin/pois/{poiID}", handleUpdatePOI(logger, d.Store))
		r.Delete("/admin/pois/{poiID}", handleDeletePOI(logger, d.Store))
		r.Post("/admin/pois/{poiID}/questions", handleCreateQuestion(logger, d.Store))
		r.Put("/admin/questions/{questionID}", handleUpdateQuestion(logger, d.Store))
		r.Delete("/admin/questions/{questionID}", handleDeleteQuestion(logger, d.Store))

		// Admin live view.
		r.Route("/admin/rooms/{code}/players", func(r chi.Router) {
			r.Get("/", handleAdminPlayers(logger, d.Store))
			r.Get("/{groupID}/route", handleAdminRoute(logger, d.Store))
			r.Get("/{groupID}/location", handleAdminLocation(logger, d.Store, d.Cache))
			r.Get("/{groupID}/score", handleAdminScore(logger, d.Store))
		})
	})

	if d.SPADir != "" {
		if info, err := os.Stat(d.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", d.SPADir)
			r.NotFound(handleSPA(d.SPADir))
		}
	}
}
