package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/playperu/rallye/internal/rallye"
)

// flexInt accepts a JSON number or a numeric string.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse integer %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat struct {
	V   float64
	Set bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", s, err)
	}
	*f = flexFloat{V: v, Set: true}
	return nil
}

func first[T comparable](vals ...T) T {
	var zero T
	for _, v := range vals {
		if v != zero {
			return v
		}
	}
	return zero
}

func firstFloat(vals ...flexFloat) (float64, bool) {
	for _, v := range vals {
		if v.Set {
			return v.V, true
		}
	}
	return 0, false
}

// decodeList accepts either a bare JSON array or an object wrapping the
// array under one of keys.
func decodeList[T any](body []byte, keys ...string) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || string(body) == "null" {
		return nil, nil
	}
	if body[0] == '[' {
		var out []T
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, err
		}
		return out, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, err
	}
	for _, k := range append(keys, "data", "items") {
		raw, ok := wrapper[k]
		if !ok {
			continue
		}
		return decodeList[T](raw)
	}
	return nil, nil
}

// decodeObject accepts an object either bare or wrapped under key.
func decodeObject[T any](body []byte, key string) (T, error) {
	var out T
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err == nil {
		if raw, ok := wrapper[key]; ok && len(raw) > 0 && raw[0] == '{' {
			body = raw
		}
	}
	err := json.Unmarshal(body, &out)
	return out, err
}

type wireLatLon struct {
	Lat       flexFloat   `json:"lat"`
	Latitude  flexFloat   `json:"latitude"`
	Long      flexFloat   `json:"long"`
	Lng       flexFloat   `json:"lng"`
	Lon       flexFloat   `json:"lon"`
	Longitude flexFloat   `json:"longitude"`
	Coords    []flexFloat `json:"coords"`
}

func (w wireLatLon) position() *rallye.Position {
	var c0, c1 flexFloat
	if len(w.Coords) == 2 {
		c0, c1 = w.Coords[0], w.Coords[1]
	}
	lat, okLat := firstFloat(w.Lat, w.Latitude, c0)
	lon, okLon := firstFloat(w.Long, w.Lng, w.Lon, w.Longitude, c1)
	if !okLat || !okLon {
		return nil
	}
	return &rallye.Position{Lat: lat, Lon: lon}
}

type wirePOI struct {
	wireLatLon
	ID                flexInt   `json:"id"`
	POIID             flexInt   `json:"poi_id"`
	RallyeID          flexInt   `json:"rallyeId"`
	RallyeIDSnake     flexInt   `json:"rallye_id"`
	Name              string    `json:"name"`
	POIName           string    `json:"poi_name"`
	Radius            flexFloat `json:"radius"`
	RadiusMeters      flexFloat `json:"radiusMeters"`
	RadiusMetersSnake flexFloat `json:"radius_meters"`
}

func (w wirePOI) poi() rallye.POI {
	radius, _ := firstFloat(w.RadiusMeters, w.RadiusMetersSnake, w.Radius)
	return rallye.POI{
		ID:           int64(first(w.ID, w.POIID)),
		RallyeID:     int64(first(w.RallyeID, w.RallyeIDSnake)),
		Name:         first(w.Name, w.POIName),
		Coordinate:   w.position(),
		RadiusMeters: radius,
	}
}

// optionList accepts an array of strings or a string holding one.
type optionList []string

func (o *optionList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*o = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		*o = nil
		return nil
	}
	if err := json.Unmarshal([]byte(s), &list); err != nil {
		return fmt.Errorf("options: %w", err)
	}
	*o = list
	return nil
}

type wireQuestion struct {
	ID                 flexInt    `json:"id"`
	QID                flexInt    `json:"q_id"`
	Text               string     `json:"text"`
	Question           string     `json:"question"`
	QuestionText       string     `json:"question_text"`
	Options            optionList `json:"options"`
	Answers            optionList `json:"answers"`
	Choices            optionList `json:"choices"`
	CorrectOptionIndex *flexInt   `json:"correctOptionIndex"`
	CorrectAnswerIndex *flexInt   `json:"correctAnswerIndex"`
	CorrectAnswerIdx   *flexInt   `json:"correct_answer_idx"`
	Answer             string     `json:"answer"`
	CorrectAnswer      string     `json:"correctAnswer"`
}

func (w wireQuestion) question() rallye.Question {
	q := rallye.Question{
		ID:     int64(first(w.ID, w.QID)),
		Text:   first(w.Text, w.Question, w.QuestionText),
		Answer: first(w.Answer, w.CorrectAnswer),
	}
	for _, opts := range []optionList{w.Options, w.Answers, w.Choices} {
		if len(opts) > 0 {
			q.Options = opts
			break
		}
	}
	for _, idx := range []*flexInt{w.CorrectOptionIndex, w.CorrectAnswerIndex, w.CorrectAnswerIdx} {
		if idx != nil {
			q.CorrectOptionIndex = int(*idx)
			break
		}
	}
	return q
}

type wireRoom struct {
	ID            flexInt `json:"id"`
	SessionID     flexInt `json:"session_id"`
	Code          string  `json:"code"`
	EntryCode     string  `json:"entry_code"`
	RallyeID      flexInt `json:"rallyeId"`
	RallyeIDSnake flexInt `json:"rallye_id"`
	Status        string  `json:"status"`
}

func (w wireRoom) room() rallye.Room {
	return rallye.Room{
		ID:       int64(first(w.ID, w.SessionID)),
		Code:     first(w.Code, w.EntryCode),
		RallyeID: int64(first(w.RallyeID, w.RallyeIDSnake)),
		Status:   rallye.RoomStatus(strings.ToLower(w.Status)),
	}
}

type wireRoomCheck struct {
	wireRoom
	Exists bool `json:"exists"`
}

type wireGroup struct {
	ID             flexInt `json:"id"`
	GroupID        flexInt `json:"groupId"`
	GroupIDSnake   flexInt `json:"group_id"`
	Name           string  `json:"name"`
	GroupName      string  `json:"groupName"`
	GroupNameSnake string  `json:"group_name"`
}

func (w wireGroup) group() rallye.Group {
	return rallye.Group{
		ID:   int64(first(w.GroupID, w.GroupIDSnake, w.ID)),
		Name: first(w.GroupName, w.GroupNameSnake, w.Name),
	}
}

type wireScore struct {
	wireLatLon
	GroupID      flexInt `json:"groupId"`
	GroupIDSnake flexInt `json:"group_id"`
	Points       flexInt `json:"points"`
}

func (w wireScore) score() rallye.GroupScore {
	return rallye.GroupScore{
		GroupID:  int64(first(w.GroupID, w.GroupIDSnake)),
		Points:   int(w.Points),
		Location: w.position(),
	}
}

type wireRallye struct {
	ID          flexInt `json:"id"`
	RallyeID    flexInt `json:"rallye_id"`
	Name        string  `json:"name"`
	RallyeName  string  `json:"rallye_name"`
	Description string  `json:"description"`
}

func (w wireRallye) entry() rallye.Rallye {
	return rallye.Rallye{
		ID:          int64(first(w.ID, w.RallyeID)),
		Name:        first(w.Name, w.RallyeName),
		Description: w.Description,
	}
}
