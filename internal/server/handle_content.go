package server

import (
	"log/slog"
	"net/http"

	"github.com/playperu/rallye/internal/rallye"
)

type RallyesResponse struct {
	Rallyes []rallye.Rallye `json:"rallyes"`
}

type POIResponse struct {
	ID           int64   `json:"id"`
	RallyeID     int64   `json:"rallyeId"`
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Long         float64 `json:"long"`
	RadiusMeters float64 `json:"radiusMeters"`
}

type POIsResponse struct {
	POIs []POIResponse `json:"pois"`
}

type QuestionResponse struct {
	ID                 int64    `json:"id"`
	Text               string   `json:"text"`
	Options            []string `json:"options"`
	CorrectOptionIndex int      `json:"correctOptionIndex"`
	Answer             string   `json:"answer,omitempty"`
}

type QuestionsResponse struct {
	Questions []QuestionResponse `json:"questions"`
}

func handleListRallyes(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rallyes, err := store.ListRallyes(r.Context())
		if err != nil {
			writeStoreError(w, r, logger, err, "")
			return
		}
		writeJSON(w, http.StatusOK, RallyesResponse{Rallyes: rallyes})
	}
}

// handleListPOIs lists the POIs of ?rallyeId= (or ?rallye_id=), or all POIs
// when the parameter is absent.
func handleListPOIs(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rallyeID int64
		if r.URL.Query().Has("rallyeId") || r.URL.Query().Has("rallye_id") {
			id, ok := idQuery(r, "rallyeId", "rallye_id")
			if !ok {
				writeError(w, http.StatusBadRequest, "invalid rallyeId")
				return
			}
			rallyeID = id
		}

		pois, err := store.ListPOIs(r.Context(), rallyeID)
		if err != nil {
			writeStoreError(w, r, logger, err, "")
			return
		}
		resp := POIsResponse{POIs: make([]POIResponse, 0, len(pois))}
		for _, p := range pois {
			if p.Coordinate == nil {
				continue
			}
			resp.POIs = append(resp.POIs, toPOIResponse(p))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleListQuestions(logger *slog.Logger, store Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		poiID, ok := idQuery(r, "poiId", "poi_id")
		if !ok {
			writeError(w, http.StatusBadRequest, "poiId is required")
			return
		}
		qs, err := store.ListQuestions(r.Context(), poiID)
		if err != nil {
			writeStoreError(w, r, logger, err, "")
			return
		}
		resp := QuestionsResponse{Questions: make([]QuestionResponse, len(qs))}
		for i, q := range qs {
			resp.Questions[i] = toQuestionResponse(q)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
