package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/playperu/rallye/internal/rallye"
)

type LocationRequest struct {
	RoomCode  string   `json:"roomCode"`
	GroupName string   `json:"groupName"`
	Lat       *float64 `json:"lat"`
	Long      *float64 `json:"long"`
}

type SuccessResponse struct {
	Success bool `json:"success"`
}

type SessionGroupResponse struct {
	GroupID int64    `json:"groupId"`
	Points  int      `json:"points"`
	Lat     *float64 `json:"lat,omitempty"`
	Long    *float64 `json:"long,omitempty"`
}

type SessionGroupsResponse struct {
	SessionGroups []SessionGroupResponse `json:"sessiongroups"`
}

type GroupNameResponse struct {
	GroupID   int64  `json:"groupId"`
	GroupName string `json:"groupName"`
}

type GroupNamesResponse struct {
	GroupNames []GroupNameResponse `json:"groupNames"`
}

type PointsRequest struct {
	RoomCode   string `json:"roomCode"`
	GroupName  string `json:"groupName"`
	POIID      int64  `json:"poiId"`
	QuestionID int64  `json:"questionId"`
	Correct    bool   `json:"correct"`
}

type PointsResponse struct {
	Success   bool `json:"success"`
	Awarded   bool `json:"awarded"`
	NewPoints int  `json:"newPoints"`
}

func handleRecordLocation(logger *slog.Logger, store Store, cache LocationCache, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LocationRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.RoomCode = strings.TrimSpace(req.RoomCode)
		req.GroupName = strings.TrimSpace(req.GroupName)
		if req.RoomCode == "" || req.GroupName == "" || req.Lat == nil || req.Long == nil {
			writeError(w, http.StatusBadRequest, "roomCode, groupName, lat and long are required")
			return
		}
		if *req.Lat < -90 || *req.Lat > 90 || *req.Long < -180 || *req.Long > 180 {
			writeError(w, http.StatusBadRequest, "coordinates out of range")
			return
		}

		pos := rallye.Position{Lat: *req.Lat, Lon: *req.Long}
		g, err := store.RecordLocation(r.Context(), rallye.LocationUpdate{
			RoomCode:  req.RoomCode,
			GroupName: req.GroupName,
			Position:  pos,
		})
		if err != nil {
			writeStoreError(w, r, logger, err, "room or group not found")
			return
		}
		locationUpdates.Inc()

		if cache != nil {
			if err := cache.Put(r.Context(), req.RoomCode, g.ID, pos); err != nil {
				logger.Warn("location cache write failed", "room", req.RoomCode, "group", g.ID, "error", err)
			}
		}
		broker.Publish(req.RoomCode, RoomEvent{Type: EventLocationUpdated, GroupID: g.ID, GroupName: g.Name, Position: &pos})
		writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
	}
}

// handleListScores answers unknown rooms with an empty list.
func handleListScores(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := strings.TrimSpace(r.URL.Query().Get("roomCode"))
		if code == "" {
			writeError(w, http.StatusBadRequest, "roomCode is required")
			return
		}

		scores, err := store.ListScores(r.Context(), code)
		if err != nil && !errors.Is(err, rallye.ErrNotFound) {
			writeStoreError(w, r, logger, err, "")
			return
		}
		resp := SessionGroupsResponse{SessionGroups: make([]SessionGroupResponse, len(scores))}
		for i, s := range scores {
			row := SessionGroupResponse{GroupID: s.GroupID, Points: s.Points}
			if s.Location != nil {
				lat, lon := s.Location.Lat, s.Location.Lon
				row.Lat, row.Long = &lat, &lon
			}
			resp.SessionGroups[i] = row
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleGroupNames(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := store.GroupNames(r.Context())
		if err != nil {
			writeStoreError(w, r, logger, err, "")
			return
		}
		writeJSON(w, http.StatusOK, GroupNamesResponse{GroupNames: toGroupNames(groups)})
	}
}

func toGroupNames(groups []rallye.Group) []GroupNameResponse {
	out := make([]GroupNameResponse, len(groups))
	for i, g := range groups {
		out[i] = GroupNameResponse{GroupID: g.ID, GroupName: g.Name}
	}
	return out
}

// handleAwardPoints credits pointsPerAnswer for a correct answer, once per
// room, group and question. Repeated or incorrect reports are acknowledged
// without changing the score.
func handleAwardPoints(logger *slog.Logger, store Store, broker *Broker, pointsPerAnswer int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PointsRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.RoomCode = strings.TrimSpace(req.RoomCode)
		req.GroupName = strings.TrimSpace(req.GroupName)
		if req.RoomCode == "" || req.GroupName == "" || req.QuestionID <= 0 {
			writeError(w, http.StatusBadRequest, "roomCode, groupName and questionId are required")
			return
		}
		if !req.Correct {
			pointReports.WithLabelValues("ignored").Inc()
			writeJSON(w, http.StatusOK, PointsResponse{Success: true})
			return
		}

		res, err := store.AwardPoints(r.Context(), Award{
			RoomCode:   req.RoomCode,
			GroupName:  req.GroupName,
			POIID:      req.POIID,
			QuestionID: req.QuestionID,
			Points:     pointsPerAnswer,
		})
		if err != nil {
			writeStoreError(w, r, logger, err, "room or group not found")
			return
		}

		if !res.Awarded {
			pointReports.WithLabelValues("duplicate").Inc()
			logger.Info("duplicate point report", "room", req.RoomCode, "group", req.GroupName, "question", req.QuestionID)
		} else {
			pointReports.WithLabelValues("awarded").Inc()
			broker.Publish(req.RoomCode, RoomEvent{
				Type:       EventPointsAwarded,
				GroupID:    res.GroupID,
				GroupName:  req.GroupName,
				QuestionID: req.QuestionID,
				Points:     res.Total,
			})
		}
		writeJSON(w, http.StatusOK, PointsResponse{Success: true, Awarded: res.Awarded, NewPoints: res.Total})
	}
}
