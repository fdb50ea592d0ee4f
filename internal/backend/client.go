// Package backend is the typed HTTP client for the rallye API. Every
// response passes through a normalizing decoder, so callers only ever see
// the domain types of package rallye.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/rallye/internal/rallye"
)

const DefaultTimeout = 10 * time.Second

// StatusError is a non-2xx response.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend returned %d", e.Status)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return rallye.ErrNotFound
	}
	return nil
}

type Client struct {
	base   string
	http   *http.Client
	logger *slog.Logger
}

// New returns a client for the API rooted at baseURL (e.g. http://host:8080).
// A nil httpClient gets one with DefaultTimeout.
func New(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		http:   httpClient,
		logger: logger,
	}
}

func (c *Client) do(ctx context.Context, method, path string, in any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w: %w", method, path, rallye.ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w: %w", method, path, rallye.ErrNetwork, err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s %s: %w", method, path, statusError(resp.StatusCode, data))
	}
	return data, nil
}

func statusError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	return &StatusError{Status: status, Message: payload.Error}
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.do(ctx, http.MethodGet, path, nil)
}

func roomPath(code, suffix string) string {
	return "/api/rooms/" + url.PathEscape(code) + suffix
}

func adminPlayerPath(code string, groupID int64, suffix string) string {
	return "/api/admin/rooms/" + url.PathEscape(code) + "/players/" + strconv.FormatInt(groupID, 10) + suffix
}

// Rooms

// CheckRoom looks a room code up. Unknown or closed codes report Exists false.
func (c *Client) CheckRoom(ctx context.Context, code string) (rallye.RoomCheck, error) {
	data, err := c.get(ctx, "/api/rooms/check/"+url.PathEscape(code), nil)
	if err != nil {
		return rallye.RoomCheck{}, err
	}
	var w wireRoomCheck
	if err := json.Unmarshal(data, &w); err != nil {
		return rallye.RoomCheck{}, fmt.Errorf("decode room check: %w", err)
	}
	r := w.room()
	return rallye.RoomCheck{Exists: w.Exists, RallyeID: r.RallyeID, Status: r.Status}, nil
}

func (c *Client) CreateRoom(ctx context.Context, rallyeID int64) (rallye.Room, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/rooms", map[string]int64{"rallyeId": rallyeID})
	if err != nil {
		return rallye.Room{}, err
	}
	return decodeRoom(data)
}

func (c *Client) ListRooms(ctx context.Context) ([]rallye.Room, error) {
	data, err := c.get(ctx, "/api/rooms", nil)
	if err != nil {
		return nil, err
	}
	rows, err := decodeList[wireRoom](data, "rooms")
	if err != nil {
		return nil, fmt.Errorf("decode rooms: %w", err)
	}
	rooms := make([]rallye.Room, len(rows))
	for i, w := range rows {
		rooms[i] = w.room()
	}
	return rooms, nil
}

func (c *Client) StartRoom(ctx context.Context, id int64) (rallye.Room, error) {
	data, err := c.do(ctx, http.MethodPatch, "/api/rooms/"+strconv.FormatInt(id, 10)+"/start", nil)
	if err != nil {
		return rallye.Room{}, err
	}
	return decodeRoom(data)
}

func (c *Client) CloseRoom(ctx context.Context, id int64) (rallye.Room, error) {
	data, err := c.do(ctx, http.MethodPatch, "/api/rooms/"+strconv.FormatInt(id, 10)+"/close", nil)
	if err != nil {
		return rallye.Room{}, err
	}
	return decodeRoom(data)
}

func (c *Client) FinishRoom(ctx context.Context, code string) (rallye.Room, error) {
	data, err := c.do(ctx, http.MethodPost, roomPath(code, "/finish"), nil)
	if err != nil {
		return rallye.Room{}, err
	}
	return decodeRoom(data)
}

// DeleteRoom removes a room with everything recorded in it.
func (c *Client) DeleteRoom(ctx context.Context, id int64) (rallye.Room, error) {
	data, err := c.do(ctx, http.MethodDelete, "/api/rooms/"+strconv.FormatInt(id, 10), nil)
	if err != nil {
		return rallye.Room{}, err
	}
	return decodeRoom(data)
}

func decodeRoom(data []byte) (rallye.Room, error) {
	w, err := decodeObject[wireRoom](data, "room")
	if err != nil {
		return rallye.Room{}, fmt.Errorf("decode room: %w", err)
	}
	return w.room(), nil
}

func (c *Client) TakenGroups(ctx context.Context, code string) ([]string, error) {
	data, err := c.get(ctx, roomPath(code, "/taken-groups"), nil)
	if err != nil {
		return nil, err
	}
	names, err := decodeList[string](data, "takenGroups")
	if err != nil {
		return nil, fmt.Errorf("decode taken groups: %w", err)
	}
	return names, nil
}

// JoinGroup claims groupName in the room. It fails with rallye.ErrGroupTaken
// when another player already holds the name.
func (c *Client) JoinGroup(ctx context.Context, code, groupName string) error {
	_, err := c.do(ctx, http.MethodPost, roomPath(code, "/join-group"), map[string]string{"groupName": groupName})
	var se *StatusError
	if errors.As(err, &se) && se.Status == http.StatusConflict {
		return fmt.Errorf("join %s as %q: %w", code, groupName, rallye.ErrGroupTaken)
	}
	return err
}

// Content

func (c *Client) ListRallyes(ctx context.Context) ([]rallye.Rallye, error) {
	data, err := c.get(ctx, "/api/rallyes", nil)
	if err != nil {
		return nil, err
	}
	rows, err := decodeList[wireRallye](data, "rallyes")
	if err != nil {
		return nil, fmt.Errorf("decode rallyes: %w", err)
	}
	out := make([]rallye.Rallye, len(rows))
	for i, w := range rows {
		out[i] = w.entry()
	}
	return out, nil
}

// ListPOIs loads the POIs of a rallye together with their questions. POIs
// whose question lookup fails are still returned, without questions,
// alongside an error joining every failed lookup.
func (c *Client) ListPOIs(ctx context.Context, rallyeID int64) ([]rallye.POI, error) {
	data, err := c.get(ctx, "/api/pois", url.Values{"rallyeId": {strconv.FormatInt(rallyeID, 10)}})
	if err != nil {
		return nil, err
	}
	rows, err := decodeList[wirePOI](data, "pois")
	if err != nil {
		return nil, fmt.Errorf("decode pois: %w", err)
	}

	pois := make([]rallye.POI, 0, len(rows))
	for _, w := range rows {
		p := w.poi()
		if p.RallyeID != 0 && p.RallyeID != rallyeID {
			continue
		}
		pois = append(pois, p)
	}

	failed := make([]error, len(pois))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range pois {
		g.Go(func() error {
			qs, err := c.ListQuestions(gctx, pois[i].ID)
			if err != nil {
				if gctx.Err() == nil {
					c.logger.Warn("question lookup failed", "poi", pois[i].ID, "error", err)
				}
				failed[i] = fmt.Errorf("questions of %q: %w", pois[i].Name, err)
				return nil
			}
			pois[i].Questions = qs
			return nil
		})
	}
	_ = g.Wait()

	if err := errors.Join(failed...); err != nil {
		if !errors.Is(err, rallye.ErrNetwork) {
			err = fmt.Errorf("%w: %w", rallye.ErrNetwork, err)
		}
		return pois, err
	}
	return pois, nil
}

func (c *Client) ListQuestions(ctx context.Context, poiID int64) ([]rallye.Question, error) {
	data, err := c.get(ctx, "/api/questions", url.Values{"poiId": {strconv.FormatInt(poiID, 10)}})
	if err != nil {
		return nil, err
	}
	rows, err := decodeList[wireQuestion](data, "questions")
	if err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	qs := make([]rallye.Question, len(rows))
	for i, w := range rows {
		qs[i] = w.question()
	}
	return qs, nil
}

// Content editing

func poiBody(p rallye.POI) map[string]any {
	body := map[string]any{
		"rallyeId":     p.RallyeID,
		"name":         p.Name,
		"radiusMeters": p.RadiusMeters,
	}
	if p.Coordinate != nil {
		body["lat"] = p.Coordinate.Lat
		body["long"] = p.Coordinate.Lon
	}
	return body
}

func questionBody(q rallye.Question) map[string]any {
	return map[string]any{
		"text":               q.Text,
		"options":            q.Options,
		"correctOptionIndex": q.CorrectOptionIndex,
		"answer":             q.Answer,
	}
}

func decodePOI(data []byte) (rallye.POI, error) {
	w, err := decodeObject[wirePOI](data, "poi")
	if err != nil {
		return rallye.POI{}, fmt.Errorf("decode poi: %w", err)
	}
	return w.poi(), nil
}

func decodeQuestion(data []byte) (rallye.Question, error) {
	w, err := decodeObject[wireQuestion](data, "question")
	if err != nil {
		return rallye.Question{}, fmt.Errorf("decode question: %w", err)
	}
	return w.question(), nil
}

func (c *Client) CreatePOI(ctx context.Context, p rallye.POI) (rallye.POI, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/admin/pois", poiBody(p))
	if err != nil {
		return rallye.POI{}, err
	}
	return decodePOI(data)
}

func (c *Client) UpdatePOI(ctx context.Context, p rallye.POI) (rallye.POI, error) {
	data, err := c.do(ctx, http.MethodPut, "/api/admin/pois/"+strconv.FormatInt(p.ID, 10), poiBody(p))
	if err != nil {
		return rallye.POI{}, err
	}
	return decodePOI(data)
}

func (c *Client) DeletePOI(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/admin/pois/"+strconv.FormatInt(id, 10), nil)
	return err
}

func (c *Client) CreateQuestion(ctx context.Context, poiID int64, q rallye.Question) (rallye.Question, error) {
	data, err := c.do(ctx, http.MethodPost, "/api/admin/pois/"+strconv.FormatInt(poiID, 10)+"/questions", questionBody(q))
	if err != nil {
		return rallye.Question{}, err
	}
	return decodeQuestion(data)
}

func (c *Client) UpdateQuestion(ctx context.Context, q rallye.Question) (rallye.Question, error) {
	data, err := c.do(ctx, http.MethodPut, "/api/admin/questions/"+strconv.FormatInt(q.ID, 10), questionBody(q))
	if err != nil {
		return rallye.Question{}, err
	}
	return decodeQuestion(data)
}

func (c *Client) DeleteQuestion(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/admin/questions/"+strconv.FormatInt(id, 10), nil)
	return err
}

// Scoring

func (c *Client) PushLocation(ctx context.Context, u rallye.LocationUpdate) error {
	_, err := c.do(ctx, http.MethodPost, "/api/sessiongroups/location", map[string]any{
		"roomCode":  u.RoomCode,
		"groupName": u.GroupName,
		"lat":       u.Position.Lat,
		"long":      u.Position.Lon,
	})
	return err
}

func (c *Client) ListScores(ctx context.Context, roomCode string) ([]rallye.GroupScore, error) {
	data, err := c.get(ctx, "/api/sessiongroups", url.Values{"roomCode": {roomCode}})
	if err != nil {
		return nil, err
	}
	rows, err := decodeList[wireScore](data, "sessiongroups")
	if err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	out := make([]rallye.GroupScore, len(rows))
	for i, w := range rows {
		out[i] = w.score()
	}
	return out, nil
}

// GroupNames returns the group directory. The room code is not part of the
// lookup; names are shared across rooms.
func (c *Client) GroupNames(ctx context.Context, _ string) ([]rallye.Group, error) {
	data, err := c.get(ctx, "/api/group-names", nil)
	if err != nil {
		return nil, err
	}
	return decodeGroups(data, "groupNames")
}

func decodeGroups(data []byte, key string) ([]rallye.Group, error) {
	rows, err := decodeList[wireGroup](data, key, "players", "groups")
	if err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}
	out := make([]rallye.Group, len(rows))
	for i, w := range rows {
		out[i] = w.group()
	}
	return out, nil
}

func (c *Client) ReportPoints(ctx context.Context, r rallye.PointReport) error {
	_, err := c.do(ctx, http.MethodPost, "/api/points", map[string]any{
		"roomCode":   r.RoomCode,
		"groupName":  r.GroupName,
		"poiId":      r.POIID,
		"questionId": r.QuestionID,
		"correct":    r.Correct,
	})
	return err
}

func (c *Client) CeremonyStarted(ctx context.Context, roomCode string) (bool, error) {
	data, err := c.get(ctx, roomPath(roomCode, "/ceremony"), nil)
	if err != nil {
		return false, err
	}
	var payload struct {
		Ceremony bool `json:"ceremony"`
		Started  bool `json:"started"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return false, fmt.Errorf("decode ceremony: %w", err)
	}
	return payload.Ceremony || payload.Started, nil
}

func (c *Client) StartCeremony(ctx context.Context, roomCode string) error {
	_, err := c.do(ctx, http.MethodPost, roomPath(roomCode, "/ceremony"), nil)
	return err
}

// Admin

func (c *Client) ListPlayers(ctx context.Context, roomCode string) ([]rallye.Group, error) {
	data, err := c.get(ctx, "/api/admin/rooms/"+url.PathEscape(roomCode)+"/players", nil)
	if err != nil {
		return nil, err
	}
	return decodeGroups(data, "players")
}

func (c *Client) PlayerRoute(ctx context.Context, roomCode string, groupID int64) ([]rallye.Position, error) {
	data, err := c.get(ctx, adminPlayerPath(roomCode, groupID, "/route"), nil)
	if err != nil {
		return nil, err
	}
	rows, err := decodeList[wireLatLon](data, "route", "points")
	if err != nil {
		return nil, fmt.Errorf("decode route: %w", err)
	}
	route := make([]rallye.Position, 0, len(rows))
	for _, w := range rows {
		if p := w.position(); p != nil {
			route = append(route, *p)
		}
	}
	return route, nil
}

func (c *Client) PlayerLocation(ctx context.Context, roomCode string, groupID int64) (rallye.Position, bool, error) {
	data, err := c.get(ctx, adminPlayerPath(roomCode, groupID, "/location"), nil)
	if errors.Is(err, rallye.ErrNotFound) {
		return rallye.Position{}, false, nil
	}
	if err != nil {
		return rallye.Position{}, false, err
	}
	w, err := decodeObject[wireLatLon](data, "location")
	if err != nil {
		return rallye.Position{}, false, fmt.Errorf("decode location: %w", err)
	}
	p := w.position()
	if p == nil {
		return rallye.Position{}, false, nil
	}
	return *p, true, nil
}

func (c *Client) PlayerScore(ctx context.Context, roomCode string, groupID int64) (int, error) {
	data, err := c.get(ctx, adminPlayerPath(roomCode, groupID, "/score"), nil)
	if err != nil {
		return 0, err
	}
	var payload struct {
		Points flexInt `json:"points"`
		Score  flexInt `json:"score"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return 0, fmt.Errorf("decode score: %w", err)
	}
	return int(first(payload.Points, payload.Score)), nil
}
