package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/playperu/rallye/internal/database"
	"github.com/playperu/rallye/internal/migrations"
	"github.com/playperu/rallye/internal/rallye"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, logger := newTestStore(t)
	return New(":0", logger, Deps{Store: store}, nil)
}

func newTestStore(t *testing.T) (Store, *slog.Logger) {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.MemoryPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	if err := migrations.Run(ctx, db); err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := SeedDemo(ctx, logger, db); err != nil {
		t.Fatal(err)
	}

	return NewSQLiteStore(db), logger
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decoding %q: %v", w.Body.String(), err)
	}
	return v
}

func TestCheckRoom(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, http.MethodGet, "/api/rooms/check/spree2", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[RoomCheckResponse](t, w)
	if !resp.Exists || resp.Code != DemoRoomCode || resp.RallyeID != 1 || resp.Status != "open" {
		t.Fatalf("unexpected check response: %+v", resp)
	}

	w = do(t, h, http.MethodGet, "/api/rooms/check/NOPE99", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if decode[RoomCheckResponse](t, w).Exists {
		t.Fatal("expected unknown room to not exist")
	}
}

func TestRoomLifecycle(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, http.MethodPost, "/api/rooms", `{"rallyeId":1}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	room := decode[RoomEnvelope](t, w).Room
	if len(room.Code) != roomCodeLength {
		t.Fatalf("expected %d character code, got %q", roomCodeLength, room.Code)
	}
	for _, c := range room.Code {
		if !strings.ContainsRune(roomCodeAlphabet, c) {
			t.Fatalf("code %q has character %q outside the alphabet", room.Code, c)
		}
	}

	w = do(t, h, http.MethodPatch, "/api/rooms/"+itoa(room.ID)+"/start", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[RoomEnvelope](t, w).Room.Status; got != "started" {
		t.Fatalf("expected started, got %q", got)
	}

	w = do(t, h, http.MethodGet, "/api/rooms", "")
	if n := len(decode[RoomsResponse](t, w).Rooms); n != 2 {
		t.Fatalf("expected 2 open rooms, got %d", n)
	}

	w = do(t, h, http.MethodPost, "/api/rooms/"+room.Code+"/finish", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/api/rooms/check/"+room.Code, "")
	if decode[RoomCheckResponse](t, w).Exists {
		t.Fatal("expected closed room to be unjoinable")
	}
}

func TestCreateRoomValidation(t *testing.T) {
	h := newTestServer(t).Handler()

	if w := do(t, h, http.MethodPost, "/api/rooms", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/rooms", `{"rallyeId":42}`); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := do(t, h, http.MethodPatch, "/api/rooms/abc/start", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestJoinGroup(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, http.MethodPost, "/api/rooms/SPREE2/join-group", `{"groupName":"Adler"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode[JoinGroupResponse](t, w); !resp.Success || resp.GroupName != "Adler" {
		t.Fatalf("unexpected join response: %+v", resp)
	}

	w = do(t, h, http.MethodPost, "/api/rooms/SPREE2/join-group", `{"groupName":"Adler"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodPost, "/api/rooms/SPREE2/join-group", `{"groupName":"Pinguine"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/api/rooms/SPREE2/taken-groups", "")
	taken := decode[TakenGroupsResponse](t, w).TakenGroups
	if len(taken) != 1 || taken[0] != "Adler" {
		t.Fatalf("expected [Adler], got %v", taken)
	}
}

func TestContent(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, http.MethodGet, "/api/rallyes", "")
	if n := len(decode[RallyesResponse](t, w).Rallyes); n != 1 {
		t.Fatalf("expected 1 rallye, got %d", n)
	}

	w = do(t, h, http.MethodGet, "/api/pois?rallye_id=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	pois := decode[POIsResponse](t, w).POIs
	if len(pois) != len(demoPOIs) {
		t.Fatalf("expected %d pois, got %d", len(demoPOIs), len(pois))
	}
	if pois[0].Name != "Brandenburger Tor" || pois[0].RadiusMeters != 60 {
		t.Fatalf("unexpected first poi: %+v", pois[0])
	}

	w = do(t, h, http.MethodGet, "/api/questions?poiId="+itoa(pois[0].ID), "")
	qs := decode[QuestionsResponse](t, w).Questions
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	if len(qs[0].Options) != 4 || qs[0].CorrectOptionIndex != 1 {
		t.Fatalf("unexpected choice question: %+v", qs[0])
	}
	if len(qs[1].Options) != 0 || qs[1].Answer != "Quadriga" {
		t.Fatalf("unexpected free-text question: %+v", qs[1])
	}

	if w := do(t, h, http.MethodGet, "/api/questions", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestPointsAreIdempotent(t *testing.T) {
	h := newTestServer(t).Handler()
	body := `{"roomCode":"spree2","groupName":"Adler","poiId":1,"questionId":1,"correct":true}`

	w := do(t, h, http.MethodPost, "/api/points", body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode[PointsResponse](t, w); !resp.Awarded || resp.NewPoints != DefaultPointsPerAnswer {
		t.Fatalf("unexpected first award: %+v", resp)
	}

	w = do(t, h, http.MethodPost, "/api/points", body)
	if resp := decode[PointsResponse](t, w); resp.Awarded || resp.NewPoints != DefaultPointsPerAnswer {
		t.Fatalf("expected duplicate to keep %d points, got %+v", DefaultPointsPerAnswer, resp)
	}

	w = do(t, h, http.MethodPost, "/api/points",
		`{"roomCode":"SPREE2","groupName":"Adler","poiId":1,"questionId":2,"correct":false}`)
	if resp := decode[PointsResponse](t, w); resp.Awarded {
		t.Fatalf("expected incorrect report to be ignored, got %+v", resp)
	}

	w = do(t, h, http.MethodPost, "/api/points",
		`{"roomCode":"SPREE2","groupName":"Adler","poiId":1,"questionId":999,"correct":true}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/api/sessiongroups?roomCode=SPREE2", "")
	rows := decode[SessionGroupsResponse](t, w).SessionGroups
	if len(rows) != 1 || rows[0].GroupID != 1 || rows[0].Points != DefaultPointsPerAnswer {
		t.Fatalf("unexpected scores: %+v", rows)
	}
}

func TestScoresUnknownRoom(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, http.MethodGet, "/api/sessiongroups?roomCode=NOPE99", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"sessiongroups":[]`) {
		t.Fatalf("expected empty list, got %s", w.Body.String())
	}
}

func TestLocationAndAdminView(t *testing.T) {
	h := newTestServer(t).Handler()

	for _, body := range []string{
		`{"roomCode":"SPREE2","groupName":"Eulen","lat":52.5163,"long":13.3777}`,
		`{"roomCode":"SPREE2","groupName":"Eulen","lat":52.5186,"long":13.3762}`,
	} {
		w := do(t, h, http.MethodPost, "/api/sessiongroups/location", body)
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
	}

	w := do(t, h, http.MethodGet, "/api/admin/rooms/SPREE2/players", "")
	players := decode[PlayersResponse](t, w).Players
	if len(players) != 1 || players[0].GroupName != "Eulen" {
		t.Fatalf("unexpected players: %+v", players)
	}
	id := itoa(players[0].GroupID)

	w = do(t, h, http.MethodGet, "/api/admin/rooms/SPREE2/players/"+id+"/route", "")
	route := decode[RouteResponse](t, w).Route
	if len(route) != 2 || route[1].Lat != 52.5186 {
		t.Fatalf("unexpected route: %+v", route)
	}

	w = do(t, h, http.MethodGet, "/api/admin/rooms/SPREE2/players/"+id+"/location", "")
	if loc := decode[LocationResponse](t, w).Location; loc.Long != 13.3762 {
		t.Fatalf("unexpected location: %+v", loc)
	}

	w = do(t, h, http.MethodGet, "/api/admin/rooms/SPREE2/players/"+id+"/score", "")
	if pts := decode[ScoreResponse](t, w).Points; pts != 0 {
		t.Fatalf("expected 0 points, got %d", pts)
	}

	if w := do(t, h, http.MethodGet, "/api/admin/rooms/SPREE2/players/2/location", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for silent group, got %d", w.Code)
	}
}

func TestLocationValidation(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		name string
		body string
		want int
	}{
		{"missing long", `{"roomCode":"SPREE2","groupName":"Adler","lat":52.5}`, http.StatusBadRequest},
		{"out of range", `{"roomCode":"SPREE2","groupName":"Adler","lat":91,"long":13}`, http.StatusBadRequest},
		{"unknown group", `{"roomCode":"SPREE2","groupName":"Pinguine","lat":52.5,"long":13.4}`, http.StatusNotFound},
		{"unknown room", `{"roomCode":"NOPE99","groupName":"Adler","lat":52.5,"long":13.4}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/sessiongroups/location", tt.body)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestCeremony(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, http.MethodGet, "/api/rooms/SPREE2/ceremony", "")
	if decode[CeremonyResponse](t, w).Ceremony {
		t.Fatal("expected ceremony not started")
	}
	if w := do(t, h, http.MethodPost, "/api/rooms/SPREE2/ceremony", ""); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w = do(t, h, http.MethodGet, "/api/rooms/spree2/ceremony", "")
	if !decode[CeremonyResponse](t, w).Ceremony {
		t.Fatal("expected ceremony started")
	}
	if w := do(t, h, http.MethodGet, "/api/rooms/NOPE99/ceremony", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestEventsStream(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t).Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/rooms/SPREE2/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	post, err := http.Post(ts.URL+"/api/sessiongroups/location", "application/json",
		strings.NewReader(`{"roomCode":"SPREE2","groupName":"Luchse","lat":52.52,"long":13.40}`))
	if err != nil {
		t.Fatal(err)
	}
	post.Body.Close()

	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		data, ok := strings.CutPrefix(sc.Text(), "data: ")
		if !ok {
			continue
		}
		var ev RoomEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			t.Fatal(err)
		}
		if ev.Type != EventLocationUpdated || ev.GroupName != "Luchse" || ev.Position == nil {
			t.Fatalf("unexpected event: %+v", ev)
		}
		return
	}
	t.Fatalf("stream ended without event: %v", sc.Err())
}

func TestBrokerRoomsAreIsolated(t *testing.T) {
	b := NewBroker()
	a := b.Subscribe("spree2")
	other := b.Subscribe("OTHER1")
	defer b.Unsubscribe("SPREE2", a)
	defer b.Unsubscribe("OTHER1", other)

	b.Publish(" SPREE2 ", RoomEvent{Type: EventCeremonyStarted})

	select {
	case data := <-a:
		if !strings.Contains(string(data), EventCeremonyStarted) {
			t.Fatalf("unexpected payload %s", data)
		}
	default:
		t.Fatal("expected event for subscribed room")
	}
	select {
	case data := <-other:
		t.Fatalf("unexpected event for other room: %s", data)
	default:
	}
}

func TestErrorBody(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, http.MethodPost, "/api/rooms/SPREE2/join-group", `{"groupName":"Pinguine"}`)
	resp := decode[ErrorResponse](t, w)
	if resp.Error == "" {
		t.Fatal("expected error message")
	}}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

type memCache struct {
	mu   sync.Mutex
	data map[string]rallye.Position
}

func (c *memCache) Put(_ context.Context, code string, groupID int64, pos rallye.Position) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[locationKey(code, groupID)] = pos
	return nil
}

func (c *memCache) Get(_ context.Context, code string, groupID int64) (rallye.Position, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pos, ok := c.data[locationKey(code, groupID)]
	return pos, ok, nil
}

func TestAdminLocationPrefersCache(t *testing.T) {
	store, logger := newTestStore(t)
	cache := &memCache{data: map[string]rallye.Position{}}
	h := New(":0", logger, Deps{Store: store, Cache: cache}, nil).Handler()

	w := do(t, h, http.MethodPost, "/api/sessiongroups/location",
		`{"roomCode":"spree2","groupName":"Adler","lat":52.52,"long":13.40}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if _, ok := cache.data["rallye:location:SPREE2:1"]; !ok {
		t.Fatalf("expected cache entry keyed by upper-case code, got %v", cache.data)
	}

	// A fresher position only known to the cache wins over the database row.
	cache.data["rallye:location:SPREE2:1"] = rallye.Position{Lat: 52.53, Lon: 13.41}
	w = do(t, h, http.MethodGet, "/api/admin/rooms/SPREE2/players/1/location", "")
	if loc := decode[LocationResponse](t, w).Location; loc.Lat != 52.53 {
		t.Fatalf("expected cached location, got %+v", loc)
	}
}

func TestAdminEditsPOIs(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, http.MethodPost, "/api/admin/pois", `{"rallyeId":1,"name":" Museumsinsel ","lat":52.5169,"long":13.4019}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	created := decode[POIEnvelope](t, w).POI
	if created.ID == 0 || created.Name != "Museumsinsel" || created.RadiusMeters != 50 || created.RallyeID != 1 {
		t.Fatalf("unexpected poi: %+v", created)
	}

	w = do(t, h, http.MethodGet, "/api/pois?rallyeId=1", "")
	if n := len(decode[POIsResponse](t, w).POIs); n != 6 {
		t.Fatalf("expected 6 pois, got %d", n)
	}

	w = do(t, h, http.MethodPut, "/api/admin/pois/"+itoa(created.ID), `{"name":"Altes Museum","lat":52.5194,"long":13.3985,"radiusMeters":35}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[POIEnvelope](t, w).POI; got.Name != "Altes Museum" || got.RadiusMeters != 35 || got.Lat != 52.5194 || got.RallyeID != 1 {
		t.Fatalf("unexpected updated poi: %+v", got)
	}

	w = do(t, h, http.MethodDelete, "/api/admin/pois/"+itoa(created.ID), "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodDelete, "/api/admin/pois/"+itoa(created.ID), "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected repeated delete to answer 204, got %d", w.Code)
	}
	w = do(t, h, http.MethodGet, "/api/pois?rallyeId=1", "")
	if n := len(decode[POIsResponse](t, w).POIs); n != 5 {
		t.Fatalf("expected 5 pois after delete, got %d", n)
	}
}

func TestAdminPOIValidation(t *testing.T) {
	h := newTestServer(t).Handler()

	tests := []struct {
		name, method, path, body string
		want                     int
	}{
		{"missing rallye", http.MethodPost, "/api/admin/pois", `{"name":"X","lat":52.5,"long":13.4}`, http.StatusBadRequest},
		{"unknown rallye", http.MethodPost, "/api/admin/pois", `{"rallyeId":99,"name":"X","lat":52.5,"long":13.4}`, http.StatusNotFound},
		{"missing lat", http.MethodPost, "/api/admin/pois", `{"rallyeId":1,"name":"X","long":13.4}`, http.StatusBadRequest},
		{"blank name", http.MethodPost, "/api/admin/pois", `{"rallyeId":1,"name":"  ","lat":52.5,"long":13.4}`, http.StatusBadRequest},
		{"out of range", http.MethodPost, "/api/admin/pois", `{"rallyeId":1,"name":"X","lat":91,"long":13.4}`, http.StatusBadRequest},
		{"negative radius", http.MethodPost, "/api/admin/pois", `{"rallyeId":1,"name":"X","lat":52.5,"long":13.4,"radiusMeters":-1}`, http.StatusBadRequest},
		{"update unknown", http.MethodPut, "/api/admin/pois/9999", `{"name":"X","lat":52.5,"long":13.4}`, http.StatusNotFound},
		{"update bad id", http.MethodPut, "/api/admin/pois/abc", `{"name":"X","lat":52.5,"long":13.4}`, http.StatusBadRequest},
		{"malformed", http.MethodPost, "/api/admin/pois", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, tt.method, tt.path, tt.body)
			if w.Code != tt.want {
				t.Fatalf("expected %d, got %d: %s", tt.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestAdminEditsQuestions(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, http.MethodPost, "/api/admin/pois/1/questions", `{"text":"Welcher Fluss?","answer":"Spree"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	q := decode[QuestionEnvelope](t, w).Question
	if q.ID == 0 || q.Answer != "Spree" || len(q.Options) != 0 {
		t.Fatalf("unexpected question: %+v", q)
	}

	w = do(t, h, http.MethodPut, "/api/admin/questions/"+itoa(q.ID),
		`{"text":"Welcher Fluss?","options":["Havel","Spree",""],"correctOptionIndex":1}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode[QuestionEnvelope](t, w).Question; len(got.Options) != 2 || got.CorrectOptionIndex != 1 {
		t.Fatalf("unexpected updated question: %+v", got)
	}

	w = do(t, h, http.MethodGet, "/api/questions?poiId=1", "")
	qs := decode[QuestionsResponse](t, w).Questions
	if last := qs[len(qs)-1]; last.ID != q.ID || last.Options[1] != "Spree" {
		t.Fatalf("expected edited question in list, got %+v", last)
	}

	w = do(t, h, http.MethodDelete, "/api/admin/questions/"+itoa(q.ID), "")
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodGet, "/api/questions?poiId=1", "")
	if n := len(decode[QuestionsResponse](t, w).Questions); n != len(qs)-1 {
		t.Fatalf("expected %d questions after delete, got %d", len(qs)-1, n)
	}

	for _, tt := range []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, "/api/admin/pois/9999/questions", `{"text":"X","answer":"Y"}`, http.StatusNotFound},
		{http.MethodPost, "/api/admin/pois/1/questions", `{"text":"X"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/admin/pois/1/questions", `{"answer":"Y"}`, http.StatusBadRequest},
		{http.MethodPost, "/api/admin/pois/1/questions", `{"text":"X","options":["a","b"],"correctOptionIndex":2}`, http.StatusBadRequest},
		{http.MethodPut, "/api/admin/questions/9999", `{"text":"X","answer":"Y"}`, http.StatusNotFound},
	} {
		if w := do(t, h, tt.method, tt.path, tt.body); w.Code != tt.want {
			t.Errorf("%s %s: expected %d, got %d: %s", tt.method, tt.path, tt.want, w.Code, w.Body.String())
		}
	}
}

func TestDeleteContentKeepsAwardedPoints(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, http.MethodPost, "/api/points",
		`{"roomCode":"SPREE2","groupName":"Adler","poiId":1,"questionId":1,"correct":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	if w := do(t, h, http.MethodDelete, "/api/admin/pois/1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, h, http.MethodGet, "/api/questions?poiId=1", "")
	if n := len(decode[QuestionsResponse](t, w).Questions); n != 0 {
		t.Fatalf("expected questions to go with the poi, got %d", n)
	}

	w = do(t, h, http.MethodGet, "/api/sessiongroups?roomCode=SPREE2", "")
	rows := decode[SessionGroupsResponse](t, w).SessionGroups
	if len(rows) != 1 || rows[0].Points != DefaultPointsPerAnswer {
		t.Fatalf("expected awarded points to stay, got %+v", rows)
	}
}

func TestDeleteRoom(t *testing.T) {
	h := newTestServer(t).Handler()

	w := do(t, h, http.MethodGet, "/api/rooms/check/SPREE2", "")
	id := decode[RoomCheckResponse](t, w).ID

	w = do(t, h, http.MethodPost, "/api/points",
		`{"roomCode":"SPREE2","groupName":"Adler","poiId":1,"questionId":1,"correct":true}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	do(t, h, http.MethodPost, "/api/sessiongroups/location", `{"roomCode":"SPREE2","groupName":"Adler","lat":52.52,"long":13.40}`)

	w = do(t, h, http.MethodDelete, "/api/rooms/"+itoa(id), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if resp := decode[DeleteRoomResponse](t, w); !resp.Success || resp.Room.Code != "SPREE2" {
		t.Fatalf("unexpected delete response: %+v", resp)
	}

	w = do(t, h, http.MethodGet, "/api/rooms/check/SPREE2", "")
	if decode[RoomCheckResponse](t, w).Exists {
		t.Fatal("expected deleted room to be gone")
	}
	if w := do(t, h, http.MethodDelete, "/api/rooms/"+itoa(id), ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 on second delete, got %d", w.Code)
	}
	if w := do(t, h, http.MethodDelete, "/api/rooms/SPREE2", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a code instead of an id, got %d", w.Code)
	}
}
