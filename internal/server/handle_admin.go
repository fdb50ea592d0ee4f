package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/rallye/internal/rallye"
)

type PlayersResponse struct {
	Players []GroupNameResponse `json:"players"`
}

type LatLong struct {
	Lat  float64 `json:"lat"`
	Long float64 `json:"long"`
}

type RouteResponse struct {
	Route []LatLong `json:"route"`
}

type LocationResponse struct {
	Location LatLong `json:"location"`
}

type ScoreResponse struct {
	Points int `json:"points"`
}

func toLatLong(p rallye.Position) LatLong { return LatLong{Lat: p.Lat, Long: p.Lon} }

func handleAdminPlayers(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := store.ListPlayers(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeStoreError(w, r, logger, err, "room not found")
			return
		}
		writeJSON(w, http.StatusOK, PlayersResponse{Players: toGroupNames(groups)})
	}
}

func handleAdminRoute(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, ok := idParam(r, "groupID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid group id")
			return
		}
		route, err := store.PlayerRoute(r.Context(), chi.URLParam(r, "code"), groupID)
		if err != nil {
			writeStoreError(w, r, logger, err, "room not found")
			return
		}
		resp := RouteResponse{Route: make([]LatLong, len(route))}
		for i, p := range route {
			resp.Route[i] = toLatLong(p)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleAdminLocation serves the cached position when there is one.
func handleAdminLocation(logger *slog.Logger, store Store, cache LocationCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, ok := idParam(r, "groupID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid group id")
			return
		}
		code := chi.URLParam(r, "code")

		if cache != nil {
			pos, hit, err := cache.Get(r.Context(), code, groupID)
			if err != nil {
				logger.Warn("location cache read failed", "room", code, "group", groupID, "error", err)
			}
			if hit {
				writeJSON(w, http.StatusOK, LocationResponse{Location: toLatLong(pos)})
				return
			}
		}

		pos, err := store.PlayerLocation(r.Context(), code, groupID)
		if err != nil {
			writeStoreError(w, r, logger, err, "no location yet")
			return
		}
		writeJSON(w, http.StatusOK, LocationResponse{Location: toLatLong(pos)})
	}
}

func handleAdminScore(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID, ok := idParam(r, "groupID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid group id")
			return
		}
		points, err := store.PlayerScore(r.Context(), chi.URLParam(r, "code"), groupID)
		if err != nil {
			writeStoreError(w, r, logger, err, "player not in room")
			return
		}
		writeJSON(w, http.StatusOK, ScoreResponse{Points: points})
	}
}
