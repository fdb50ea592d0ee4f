// Package rallye defines the core domain types and error conditions of the
// city rallye. It has zero external dependencies.
package rallye

import (
	"errors"
	"time"
)

// DefaultRadiusMeters applies to POIs that do not carry their own geofence.
const DefaultRadiusMeters = 50.0

var (
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrNotNearby           = errors.New("not nearby")
	ErrAlreadyAnswered     = errors.New("already answered")
	ErrUnknownQuestion     = errors.New("unknown question")
	ErrNetwork             = errors.New("network failure")
	ErrNotFound            = errors.New("not found")
	ErrGroupTaken          = errors.New("group name already taken")
)

type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type Mode string

const (
	ModeGPS       Mode = "gps"
	ModeSimulated Mode = "simulated"
)

func (m Mode) Valid() bool {
	return m == ModeGPS || m == ModeSimulated
}

type Rallye struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type POI struct {
	ID           int64
	RallyeID     int64
	Name         string
	Coordinate   *Position
	RadiusMeters float64
	Questions    []Question
}

// Radius returns the geofence radius, falling back to DefaultRadiusMeters.
func (p POI) Radius() float64 {
	if p.RadiusMeters <= 0 {
		return DefaultRadiusMeters
	}
	return p.RadiusMeters
}

// Question is a multiple-choice question when Options is non-empty and a
// free-text question otherwise, checked against Answer.
type Question struct {
	ID                 int64
	Text               string
	Options            []string
	CorrectOptionIndex int
	Answer             string
}

func (q Question) FreeText() bool { return len(q.Options) == 0 }

type AnswerAttempt struct {
	QuestionID int64
	POIID      int64
	Value      string
	At         time.Time
	Correct    bool
}

// GameState is a read-only snapshot of a running game session.
type GameState struct {
	POIs             []POI
	ActivePOIIndex   int
	RemainingSeconds int
	Mode             Mode
	Finished         bool
}

type ScoreboardEntry struct {
	GroupID   int64
	GroupName string
	Points    int
}

type Group struct {
	ID   int64
	Name string
}

// GroupScore is one backend score row for a group in a room.
type GroupScore struct {
	GroupID  int64
	Points   int
	Location *Position
}

type Room struct {
	ID       int64
	Code     string
	RallyeID int64
	Status   RoomStatus
}

type RoomStatus string

const (
	RoomOpen    RoomStatus = "open"
	RoomStarted RoomStatus = "started"
	RoomClosed  RoomStatus = "closed"
)

// Joinable reports whether players may still enter a room with this status.
func (s RoomStatus) Joinable() bool {
	return s == RoomOpen || s == RoomStarted
}

// RoomCheck is the answer to a room code lookup.
type RoomCheck struct {
	Exists   bool
	RallyeID int64
	Status   RoomStatus
}

type LocationUpdate struct {
	RoomCode  string
	GroupName string
	Position  Position
}

// PointReport announces a newly-correct answer to the scoring service.
type PointReport struct {
	RoomCode   string
	GroupName  string
	POIID      int64
	QuestionID int64
	Correct    bool
}
