package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/rallye/internal/rallye"
)

type RoomResponse struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	RallyeID int64  `json:"rallyeId"`
	Status   string `json:"status"`
}

type RoomEnvelope struct {
	Room RoomResponse `json:"room"`
}

type RoomsResponse struct {
	Rooms []RoomResponse `json:"rooms"`
}

type RoomCheckResponse struct {
	Exists   bool   `json:"exists"`
	ID       int64  `json:"id,omitempty"`
	Code     string `json:"code,omitempty"`
	RallyeID int64  `json:"rallyeId,omitempty"`
	Status   string `json:"status,omitempty"`
}

type CreateRoomRequest struct {
	RallyeID int64 `json:"rallyeId"`
}

type TakenGroupsResponse struct {
	TakenGroups []string `json:"takenGroups"`
}

type JoinGroupRequest struct {
	GroupName string `json:"groupName"`
}

type JoinGroupResponse struct {
	Success   bool   `json:"success"`
	GroupID   int64  `json:"groupId"`
	GroupName string `json:"groupName"`
}

type CeremonyResponse struct {
	Ceremony bool `json:"ceremony"`
}

func toRoomResponse(r rallye.Room) RoomResponse {
	return RoomResponse{ID: r.ID, Code: r.Code, RallyeID: r.RallyeID, Status: string(r.Status)}
}

func handleCheckRoom(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := store.CheckRoom(r.Context(), chi.URLParam(r, "room"))
		if errors.Is(err, rallye.ErrNotFound) {
			writeJSON(w, http.StatusOK, RoomCheckResponse{Exists: false})
			return
		}
		if err != nil {
			writeStoreError(w, r, logger, err, "room not found")
			return
		}
		writeJSON(w, http.StatusOK, RoomCheckResponse{
			Exists:   true,
			ID:       room.ID,
			Code:     room.Code,
			RallyeID: room.RallyeID,
			Status:   string(room.Status),
		})
	}
}

func handleCreateRoom(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.RallyeID <= 0 {
			writeError(w, http.StatusBadRequest, "rallyeId is required")
			return
		}

		room, err := store.CreateRoom(r.Context(), req.RallyeID)
		if err != nil {
			writeStoreError(w, r, logger, err, "rallye not found")
			return
		}
		roomsCreated.Inc()
		logger.Info("room created", "room", room.Code, "rallye", room.RallyeID)
		writeJSON(w, http.StatusCreated, RoomEnvelope{Room: toRoomResponse(room)})
	}
}

func handleListRooms(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := store.ListOpenRooms(r.Context())
		if err != nil {
			writeStoreError(w, r, logger, err, "")
			return
		}
		resp := RoomsResponse{Rooms: make([]RoomResponse, len(rooms))}
		for i, room := range rooms {
			resp.Rooms[i] = toRoomResponse(room)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleSetRoomStatus(logger *slog.Logger, store Store, status rallye.RoomStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "room")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid room id")
			return
		}
		room, err := store.SetRoomStatus(r.Context(), id, status)
		if err != nil {
			writeStoreError(w, r, logger, err, "room not found")
			return
		}
		logger.Info("room status changed", "room", room.Code, "status", status)
		writeJSON(w, http.StatusOK, RoomEnvelope{Room: toRoomResponse(room)})
	}
}

func handleFinishRoom(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room, err := store.FinishRoom(r.Context(), chi.URLParam(r, "room"))
		if err != nil {
			writeStoreError(w, r, logger, err, "room not found")
			return
		}
		logger.Info("room finished", "room", room.Code)
		writeJSON(w, http.StatusOK, RoomEnvelope{Room: toRoomResponse(room)})
	}
}

func handleTakenGroups(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := store.TakenGroups(r.Context(), chi.URLParam(r, "room"))
		if err != nil {
			writeStoreError(w, r, logger, err, "room not found")
			return
		}
		writeJSON(w, http.StatusOK, TakenGroupsResponse{TakenGroups: names})
	}
}

func handleJoinGroup(logger *slog.Logger, store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinGroupRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.GroupName = strings.TrimSpace(req.GroupName)
		if req.GroupName == "" {
			writeError(w, http.StatusBadRequest, "groupName is required")
			return
		}

		code := chi.URLParam(r, "room")
		g, err := store.JoinGroup(r.Context(), code, req.GroupName)
		if err != nil {
			writeStoreError(w, r, logger, err, "room or group not found")
			return
		}

		broker.Publish(code, RoomEvent{Type: EventGroupJoined, GroupID: g.ID, GroupName: g.Name})
		writeJSON(w, http.StatusOK, JoinGroupResponse{Success: true, GroupID: g.ID, GroupName: g.Name})
	}
}

func handleCeremonyStatus(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started, err := store.Ceremony(r.Context(), chi.URLParam(r, "room"))
		if err != nil {
			writeStoreError(w, r, logger, err, "room not found")
			return
		}
		writeJSON(w, http.StatusOK, CeremonyResponse{Ceremony: started})
	}
}

func handleStartCeremony(logger *slog.Logger, store Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "room")
		if err := store.StartCeremony(r.Context(), code); err != nil {
			writeStoreError(w, r, logger, err, "room not found")
			return
		}
		broker.Publish(code, RoomEvent{Type: EventCeremonyStarted})
		logger.Info("award ceremony started", "room", code)
		writeJSON(w, http.StatusOK, CeremonyResponse{Ceremony: true})
	}
}
