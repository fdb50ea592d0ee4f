package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/rallye/internal/handler/health"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

type operation struct {
	method, path, summary, description string
	req                                any
	resp                               any
	status                             int
	errors                             []int
	unavailable                        any
	contentType                        string
}

var operations = []operation{
	{method: http.MethodGet, path: "/healthz", summary: "Health check",
		description: "Required checks (sqlite, schema) answer 503 on failure; the optional redis cache only degrades the status.",
		resp:        health.Response{}, status: http.StatusOK, unavailable: health.Response{}},
	{method: http.MethodGet, path: "/ws/rooms/{code}", summary: "Room event websocket",
		description: "Upgrades to a WebSocket that carries the same events as the SSE stream.",
		status:      http.StatusSwitchingProtocols, contentType: "application/json"},
	{method: http.MethodGet, path: "/api/rooms/check/{room}", summary: "Check room code",
		description: "Looks up a room by its entry code. Unknown codes answer exists=false.",
		resp:        RoomCheckResponse{}, status: http.StatusOK},
	{method: http.MethodGet, path: "/api/rooms", summary: "List open rooms",
		resp: RoomsResponse{}, status: http.StatusOK},
	{method: http.MethodPost, path: "/api/rooms", summary: "Create room",
		description: "Creates a room for a rallye with a fresh six character code.",
		req:         CreateRoomRequest{}, resp: RoomEnvelope{}, status: http.StatusCreated,
		errors: []int{http.StatusBadRequest, http.StatusNotFound}},
	{method: http.MethodPatch, path: "/api/rooms/{room}/start", summary: "Start room",
		resp: RoomEnvelope{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
	{method: http.MethodPatch, path: "/api/rooms/{room}/close", summary: "Close room",
		resp: RoomEnvelope{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
	{method: http.MethodDelete, path: "/api/rooms/{room}", summary: "Delete room",
		description: "Deletes a room by numeric id together with its groups, routes and awards.",
		resp:        DeleteRoomResponse{}, status: http.StatusOK, errors: []int{http.StatusBadRequest, http.StatusNotFound}},
	{method: http.MethodPost, path: "/api/rooms/{room}/finish", summary: "Finish room by code",
		resp: RoomEnvelope{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
	{method: http.MethodGet, path: "/api/rooms/{room}/taken-groups", summary: "Taken group names",
		resp: TakenGroupsResponse{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
	{method: http.MethodPost, path: "/api/rooms/{room}/join-group", summary: "Join with a group name",
		description: "Claims a group name from the directory for this room. 409 when already taken.",
		req:         JoinGroupRequest{}, resp: JoinGroupResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict}},
	{method: http.MethodGet, path: "/api/rooms/{room}/ceremony", summary: "Award ceremony status",
		resp: CeremonyResponse{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
	{method: http.MethodPost, path: "/api/rooms/{room}/ceremony", summary: "Start award ceremony",
		resp: CeremonyResponse{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
	{method: http.MethodGet, path: "/api/rooms/{room}/events", summary: "Room event stream",
		description: "Server-Sent Events with location, points, join and ceremony events.",
		status:      http.StatusOK, contentType: "text/event-stream", errors: []int{http.StatusNotFound}},
	{method: http.MethodGet, path: "/api/rallyes", summary: "List rallyes",
		resp: RallyesResponse{}, status: http.StatusOK},
	{method: http.MethodGet, path: "/api/pois", summary: "List points of interest",
		description: "Optional rallyeId query parameter filters by rallye.",
		resp:        POIsResponse{}, status: http.StatusOK, errors: []int{http.StatusBadRequest}},
	{method: http.MethodGet, path: "/api/questions", summary: "List questions of a POI",
		description: "Requires the poiId query parameter.",
		resp:        QuestionsResponse{}, status: http.StatusOK, errors: []int{http.StatusBadRequest}},
	{method: http.MethodPost, path: "/api/sessiongroups/location", summary: "Push group location",
		req: LocationRequest{}, resp: SuccessResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusNotFound}},
	{method: http.MethodGet, path: "/api/sessiongroups", summary: "Scores of a room",
		description: "Requires the roomCode query parameter. Unknown rooms answer an empty list.",
		resp:        SessionGroupsResponse{}, status: http.StatusOK, errors: []int{http.StatusBadRequest}},
	{method: http.MethodGet, path: "/api/group-names", summary: "Group name directory",
		resp: GroupNamesResponse{}, status: http.StatusOK},
	{method: http.MethodPost, path: "/api/points", summary: "Report a correct answer",
		description: "Credits points once per room, group and question.",
		req:         PointsRequest{}, resp: PointsResponse{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusNotFound}},
	{method: http.MethodPost, path: "/api/admin/pois", summary: "Create POI",
		req: POIRequest{}, resp: POIEnvelope{}, status: http.StatusCreated,
		errors: []int{http.StatusBadRequest, http.StatusNotFound}},
	{method: http.MethodPut, path: "/api/admin/pois/{poiID}", summary: "Update POI",
		description: "Rewrites name, coordinate and radius. The rallye cannot change.",
		req:         POIRequest{}, resp: POIEnvelope{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusNotFound}},
	{method: http.MethodDelete, path: "/api/admin/pois/{poiID}", summary: "Delete POI",
		description: "Deletes the POI and its questions. Answers 204 even when nothing was deleted.",
		status:      http.StatusNoContent, errors: []int{http.StatusBadRequest}},
	{method: http.MethodPost, path: "/api/admin/pois/{poiID}/questions", summary: "Create question",
		description: "Choice questions need correctOptionIndex inside options; free-text questions need answer.",
		req:         QuestionRequest{}, resp: QuestionEnvelope{}, status: http.StatusCreated,
		errors: []int{http.StatusBadRequest, http.StatusNotFound}},
	{method: http.MethodPut, path: "/api/admin/questions/{questionID}", summary: "Update question",
		req: QuestionRequest{}, resp: QuestionEnvelope{}, status: http.StatusOK,
		errors: []int{http.StatusBadRequest, http.StatusNotFound}},
	{method: http.MethodDelete, path: "/api/admin/questions/{questionID}", summary: "Delete question",
		status: http.StatusNoContent, errors: []int{http.StatusBadRequest}},
	{method: http.MethodGet, path: "/api/admin/rooms/{code}/players", summary: "Players of a room",
		resp: PlayersResponse{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
	{method: http.MethodGet, path: "/api/admin/rooms/{code}/players/{groupID}/route", summary: "Route of a player",
		resp: RouteResponse{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
	{method: http.MethodGet, path: "/api/admin/rooms/{code}/players/{groupID}/location", summary: "Last location of a player",
		resp: LocationResponse{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
	{method: http.MethodGet, path: "/api/admin/rooms/{code}/players/{groupID}/score", summary: "Score of a player",
		resp: ScoreResponse{}, status: http.StatusOK, errors: []int{http.StatusNotFound}},
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Rallye API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the city rallye.")

	for _, op := range operations {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			continue
		}
		oc.SetSummary(op.summary)
		if op.description != "" {
			oc.SetDescription(op.description)
		}
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		if op.contentType != "" {
			oc.AddRespStructure(nil, openapi.WithHTTPStatus(op.status), openapi.WithContentType(op.contentType))
		} else {
			oc.AddRespStructure(op.resp, openapi.WithHTTPStatus(op.status))
		}
		if op.unavailable != nil {
			oc.AddRespStructure(op.unavailable, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
		}
		for _, status := range op.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(status))
		}
		_ = r.AddOperation(oc)
	}

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
