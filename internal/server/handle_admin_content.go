package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/playperu/rallye/internal/rallye"
)

type POIRequest struct {
	RallyeID     int64    `json:"rallyeId"`
	Name         string   `json:"name"`
	Lat          *float64 `json:"lat"`
	Long         *float64 `json:"long"`
	RadiusMeters float64  `json:"radiusMeters"`
}

type POIEnvelope struct {
	POI POIResponse `json:"poi"`
}

type QuestionRequest struct {
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
	Answer             string   `json:"answer"`
}

type QuestionEnvelope struct {
	Question QuestionResponse `json:"question"`
}

type DeleteRoomResponse struct {
	Success bool         `json:"success"`
	Room    RoomResponse `json:"room"`
}

func toPOIResponse(p rallye.POI) POIResponse {
	return POIResponse{
		ID:           p.ID,
		RallyeID:     p.RallyeID,
		Name:         p.Name,
		Lat:          p.Coordinate.Lat,
		Long:         p.Coordinate.Lon,
		RadiusMeters: p.Radius(),
	}
}

func toQuestionResponse(q rallye.Question) QuestionResponse {
	opts := q.Options
	if opts == nil {
		opts = []string{}
	}
	return QuestionResponse{
		ID:                 q.ID,
		Text:               q.Text,
		Options:            opts,
		CorrectOptionIndex: q.CorrectOptionIndex,
		Answer:             q.Answer,
	}
}

// poi validates the request and returns the POI it describes, or a
// message for a 400.
func (req POIRequest) poi() (rallye.POI, string) {
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "" || req.Lat == nil || req.Long == nil:
		return rallye.POI{}, "name, lat and long are required"
	case *req.Lat < -90 || *req.Lat > 90 || *req.Long < -180 || *req.Long > 180:
		return rallye.POI{}, "coordinates out of range"
	case req.RadiusMeters < 0:
		return rallye.POI{}, "radiusMeters must not be negative"
	}
	return rallye.POI{
		RallyeID:     req.RallyeID,
		Name:         name,
		Coordinate:   &rallye.Position{Lat: *req.Lat, Lon: *req.Long},
		RadiusMeters: req.RadiusMeters,
	}, ""
}

// question validates the request. Choice questions need the correct index
// inside their options, free-text questions need an answer.
func (req QuestionRequest) question() (rallye.Question, string) {
	q := rallye.Question{
		Text:               strings.TrimSpace(req.Text),
		CorrectOptionIndex: req.CorrectOptionIndex,
		Answer:             strings.TrimSpace(req.Answer),
	}
	for _, o := range req.Options {
		if o = strings.TrimSpace(o); o != "" {
			q.Options = append(q.Options, o)
		}
	}
	switch {
	case q.Text == "":
		return q, "text is required"
	case q.FreeText() && q.Answer == "":
		return q, "answer is required for free-text questions"
	case !q.FreeText() && (q.CorrectOptionIndex < 0 || q.CorrectOptionIndex >= len(q.Options)):
		return q, "correctOptionIndex out of range"
	}
	return q, ""
}

func handleCreatePOI(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req POIRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		p, msg := req.poi()
		if msg == "" && p.RallyeID <= 0 {
			msg = "rallyeId is required"
		}
		if msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		p, err := store.CreatePOI(r.Context(), p)
		if err != nil {
			writeStoreError(w, r, logger, err, "rallye not found")
			return
		}
		logger.Info("poi created", "poi", p.ID, "rallye", p.RallyeID, "name", p.Name)
		writeJSON(w, http.StatusCreated, POIEnvelope{POI: toPOIResponse(p)})
	}
}

func handleUpdatePOI(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "poiID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid poi id")
			return
		}
		var req POIRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		p, msg := req.poi()
		if msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		p.ID = id

		p, err := store.UpdatePOI(r.Context(), p)
		if err != nil {
			writeStoreError(w, r, logger, err, "poi not found")
			return
		}
		writeJSON(w, http.StatusOK, POIEnvelope{POI: toPOIResponse(p)})
	}
}

func handleDeletePOI(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "poiID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid poi id")
			return
		}
		if err := store.DeletePOI(r.Context(), id); err != nil {
			writeStoreError(w, r, logger, err, "")
			return
		}
		logger.Info("poi deleted", "poi", id)
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleCreateQuestion(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		poiID, ok := idParam(r, "poiID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid poi id")
			return
		}
		var req QuestionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		q, msg := req.question()
		if msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}

		q, err := store.CreateQuestion(r.Context(), poiID, q)
		if err != nil {
			writeStoreError(w, r, logger, err, "poi not found")
			return
		}
		writeJSON(w, http.StatusCreated, QuestionEnvelope{Question: toQuestionResponse(q)})
	}
}

func handleUpdateQuestion(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "questionID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid question id")
			return
		}
		var req QuestionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		q, msg := req.question()
		if msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
		q.ID = id

		q, err := store.UpdateQuestion(r.Context(), q)
		if err != nil {
			writeStoreError(w, r, logger, err, "question not found")
			return
		}
		writeJSON(w, http.StatusOK, QuestionEnvelope{Question: toQuestionResponse(q)})
	}
}

func handleDeleteQuestion(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "questionID")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid question id")
			return
		}
		if err := store.DeleteQuestion(r.Context(), id); err != nil {
			writeStoreError(w, r, logger, err, "")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDeleteRoom(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := idParam(r, "room")
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid room id")
			return
		}
		room, err := store.DeleteRoom(r.Context(), id)
		if err != nil {
			writeStoreError(w, r, logger, err, "room not found")
			return
		}
		logger.Info("room deleted", "room", room.Code)
		writeJSON(w, http.StatusOK, DeleteRoomResponse{Success: true, Room: toRoomResponse(room)})
	}
}
