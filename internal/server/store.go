package server

import (
	"context"

	"github.com/playperu/rallye/internal/rallye"
)

// Award is one correct-answer report against a room.
type Award struct {
	RoomCode   string
	GroupName  string
	POIID      int64
	QuestionID int64
	Points     int
}

// AwardResult tells whether an award changed the score.
type AwardResult struct {
	Awarded bool
	Total   int
	GroupID int64
}

type Store interface {
	// Rooms
	CheckRoom(ctx context.Context, code string) (rallye.Room, error)
	RoomByCode(ctx context.Context, code string) (rallye.Room, error)
	CreateRoom(ctx context.Context, rallyeID int64) (rallye.Room, error)
	ListOpenRooms(ctx context.Context) ([]rallye.Room, error)
	SetRoomStatus(ctx context.Context, id int64, status rallye.RoomStatus) (rallye.Room, error)
	FinishRoom(ctx context.Context, code string) (rallye.Room, error)
	TakenGroups(ctx context.Context, code string) ([]string, error)
	JoinGroup(ctx context.Context, code, groupName string) (rallye.Group, error)
	Ceremony(ctx context.Context, code string) (bool, error)
	StartCeremony(ctx context.Context, code string) error
	DeleteRoom(ctx context.Context, id int64) (rallye.Room, error)

	// Content
	ListRallyes(ctx context.Context) ([]rallye.Rallye, error)
	ListPOIs(ctx context.Context, rallyeID int64) ([]rallye.POI, error)
	ListQuestions(ctx context.Context, poiID int64) ([]rallye.Question, error)

	// Content editing. Deletes are idempotent.
	CreatePOI(ctx context.Context, p rallye.POI) (rallye.POI, error)
	UpdatePOI(ctx context.Context, p rallye.POI) (rallye.POI, error)
	DeletePOI(ctx context.Context, id int64) error
	CreateQuestion(ctx context.Context, poiID int64, q rallye.Question) (rallye.Question, error)
	UpdateQuestion(ctx context.Context, q rallye.Question) (rallye.Question, error)
	DeleteQuestion(ctx context.Context, id int64) error

	// Scoring
	GroupNames(ctx context.Context) ([]rallye.Group, error)
	RecordLocation(ctx context.Context, u rallye.LocationUpdate) (rallye.Group, error)
	ListScores(ctx context.Context, code string) ([]rallye.GroupScore, error)
	AwardPoints(ctx context.Context, a Award) (AwardResult, error)

	// Admin live view
	ListPlayers(ctx context.Context, code string) ([]rallye.Group, error)
	PlayerRoute(ctx context.Context, code string, groupID int64) ([]rallye.Position, error)
	PlayerLocation(ctx context.Context, code string, groupID int64) (rallye.Position, error)
	PlayerScore(ctx context.Context, code string, groupID int64) (int, error)
}
