package server

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/playperu/rallye/internal/rallye"
)

const (
	roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 6
	roomCodeAttempts = 10
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func newRoomCode() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(roomCodeAlphabet)))
	for range roomCodeLength {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(roomCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

const roomColumns = `id, code, rallye_id, status`

func scanRoom(row interface{ Scan(...any) error }) (rallye.Room, error) {
	var r rallye.Room
	var status string
	err := row.Scan(&r.ID, &r.Code, &r.RallyeID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return r, rallye.ErrNotFound
	}
	r.Status = rallye.RoomStatus(status)
	return r, err
}

func roomByCode(ctx context.Context, q queryer, code string, joinableOnly bool) (rallye.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE code = ? COLLATE NOCASE`
	if joinableOnly {
		query += ` AND status IN ('open', 'started')`
	}
	return scanRoom(q.QueryRowContext(ctx, query, strings.TrimSpace(code)))
}

func groupByName(ctx context.Context, q queryer, name string) (rallye.Group, error) {
	var g rallye.Group
	err := q.QueryRowContext(ctx, `SELECT id, name FROM rallye_groups WHERE name = ?`, name).Scan(&g.ID, &g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return g, rallye.ErrNotFound
	}
	return g, err
}

// Rooms

// CheckRoom matches code case-insensitively among open and started rooms.
func (s *SQLiteStore) CheckRoom(ctx context.Context, code string) (rallye.Room, error) {
	return roomByCode(ctx, s.db, code, true)
}

func (s *SQLiteStore) RoomByCode(ctx context.Context, code string) (rallye.Room, error) {
	return roomByCode(ctx, s.db, code, false)
}

func (s *SQLiteStore) CreateRoom(ctx context.Context, rallyeID int64) (rallye.Room, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM rallyes WHERE id = ?`, rallyeID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return rallye.Room{}, rallye.ErrNotFound
	}
	if err != nil {
		return rallye.Room{}, err
	}

	for range roomCodeAttempts {
		code, err := newRoomCode()
		if err != nil {
			return rallye.Room{}, fmt.Errorf("generating room code: %w", err)
		}
		room, err := scanRoom(s.db.QueryRowContext(ctx, `
			INSERT INTO rooms (code, rallye_id) VALUES (?, ?)
			ON CONFLICT (code) DO NOTHING
			RETURNING `+roomColumns, code, rallyeID))
		if errors.Is(err, rallye.ErrNotFound) {
			continue
		}
		return room, err
	}
	return rallye.Room{}, fmt.Errorf("no free room code after %d attempts", roomCodeAttempts)
}

func (s *SQLiteStore) ListOpenRooms(ctx context.Context) ([]rallye.Room, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+roomColumns+` FROM rooms
		WHERE status IN ('open', 'started')
		ORDER BY id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := []rallye.Room{}
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, r)
	}
	return rooms, rows.Err()
}

func (s *SQLiteStore) SetRoomStatus(ctx context.Context, id int64, status rallye.RoomStatus) (rallye.Room, error) {
	return scanRoom(s.db.QueryRowContext(ctx, `
		UPDATE rooms SET status = ? WHERE id = ?
		RETURNING `+roomColumns, string(status), id))
}

func (s *SQLiteStore) FinishRoom(ctx context.Context, code string) (rallye.Room, error) {
	return scanRoom(s.db.QueryRowContext(ctx, `
		UPDATE rooms SET status = 'closed' WHERE code = ? COLLATE NOCASE
		RETURNING `+roomColumns, strings.TrimSpace(code)))
}

func (s *SQLiteStore) TakenGroups(ctx context.Context, code string) ([]string, error) {
	room, err := s.RoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.name FROM rallye_groups g
		JOIN room_groups rg ON rg.group_id = g.id
		WHERE rg.room_id = ?
		ORDER BY g.name
	`, room.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// JoinGroup claims a directory group for a room. A name already claimed in
// the room fails with rallye.ErrGroupTaken.
func (s *SQLiteStore) JoinGroup(ctx context.Context, code, groupName string) (rallye.Group, error) {
	var g rallye.Group
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		room, err := roomByCode(ctx, tx, code, true)
		if err != nil {
			return err
		}
		g, err = groupByName(ctx, tx, groupName)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO room_groups (room_id, group_id) VALUES (?, ?)
			ON CONFLICT (room_id, group_id) DO NOTHING
		`, room.ID, g.ID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return rallye.ErrGroupTaken
		}
		return nil
	})
	return g, err
}

func (s *SQLiteStore) Ceremony(ctx context.Context, code string) (bool, error) {
	var started bool
	err := s.db.QueryRowContext(ctx, `SELECT ceremony FROM rooms WHERE code = ? COLLATE NOCASE`, strings.TrimSpace(code)).Scan(&started)
	if errors.Is(err, sql.ErrNoRows) {
		return false, rallye.ErrNotFound
	}
	return started, err
}

func (s *SQLiteStore) StartCeremony(ctx context.Context, code string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE rooms SET ceremony = 1 WHERE code = ? COLLATE NOCASE`, strings.TrimSpace(code))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return rallye.ErrNotFound
	}
	return nil
}

// DeleteRoom removes a room together with its groups, routes and awards.
func (s *SQLiteStore) DeleteRoom(ctx context.Context, id int64) (rallye.Room, error) {
	return scanRoom(s.db.QueryRowContext(ctx, `DELETE FROM rooms WHERE id = ? RETURNING `+roomColumns, id))
}

// Content

func (s *SQLiteStore) ListRallyes(ctx context.Context) ([]rallye.Rallye, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description FROM rallyes ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []rallye.Rallye{}
	for rows.Next() {
		var r rallye.Rallye
		if err := rows.Scan(&r.ID, &r.Name, &r.Description); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const poiColumns = `id, rallye_id, name, lat, lon, radius_meters`

func scanPOI(row interface{ Scan(...any) error }) (rallye.POI, error) {
	var p rallye.POI
	var pos rallye.Position
	err := row.Scan(&p.ID, &p.RallyeID, &p.Name, &pos.Lat, &pos.Lon, &p.RadiusMeters)
	if errors.Is(err, sql.ErrNoRows) {
		return p, rallye.ErrNotFound
	}
	p.Coordinate = &pos
	return p, err
}

const questionColumns = `id, text, options, correct_option_index, answer`

func scanQuestion(row interface{ Scan(...any) error }) (rallye.Question, error) {
	var q rallye.Question
	var options string
	err := row.Scan(&q.ID, &q.Text, &options, &q.CorrectOptionIndex, &q.Answer)
	if errors.Is(err, sql.ErrNoRows) {
		return q, rallye.ErrNotFound
	}
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return q, fmt.Errorf("question %d options: %w", q.ID, err)
	}
	return q, nil
}

func encodeOptions(options []string) (string, error) {
	if options == nil {
		options = []string{}
	}
	b, err := json.Marshal(options)
	return string(b), err
}

// ListPOIs returns the POIs of rallyeID, or of every rallye when it is 0.
// Questions are not included.
func (s *SQLiteStore) ListPOIs(ctx context.Context, rallyeID int64) ([]rallye.POI, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+poiColumns+` FROM pois
		WHERE ? = 0 OR rallye_id = ?
		ORDER BY id
	`, rallyeID, rallyeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []rallye.POI{}
	for rows.Next() {
		p, err := scanPOI(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ListQuestions(ctx context.Context, poiID int64) ([]rallye.Question, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+questionColumns+` FROM questions
		WHERE poi_id = ?
		ORDER BY id
	`, poiID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []rallye.Question{}
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// CreatePOI adds p to its rallye. An unknown rallye fails with
// rallye.ErrNotFound.
func (s *SQLiteStore) CreatePOI(ctx context.Context, p rallye.POI) (rallye.POI, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM rallyes WHERE id = ?`, p.RallyeID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return rallye.POI{}, rallye.ErrNotFound
	}
	if err != nil {
		return rallye.POI{}, err
	}
	return scanPOI(s.db.QueryRowContext(ctx, `
		INSERT INTO pois (rallye_id, name, lat, lon, radius_meters) VALUES (?, ?, ?, ?, ?)
		RETURNING `+poiColumns, p.RallyeID, p.Name, p.Coordinate.Lat, p.Coordinate.Lon, p.Radius()))
}

// UpdatePOI rewrites name, coordinate and radius. The rallye is kept.
func (s *SQLiteStore) UpdatePOI(ctx context.Context, p rallye.POI) (rallye.POI, error) {
	return scanPOI(s.db.QueryRowContext(ctx, `
		UPDATE pois SET name = ?, lat = ?, lon = ?, radius_meters = ? WHERE id = ?
		RETURNING `+poiColumns, p.Name, p.Coordinate.Lat, p.Coordinate.Lon, p.Radius(), p.ID))
}

// DeletePOI removes the POI and its questions. Awards already credited
// stay in the group totals.
func (s *SQLiteStore) DeletePOI(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM awards WHERE question_id IN (SELECT id FROM questions WHERE poi_id = ?)
		`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM pois WHERE id = ?`, id)
		return err
	})
}

func (s *SQLiteStore) CreateQuestion(ctx context.Context, poiID int64, q rallye.Question) (rallye.Question, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM pois WHERE id = ?`, poiID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return rallye.Question{}, rallye.ErrNotFound
	}
	if err != nil {
		return rallye.Question{}, err
	}
	options, err := encodeOptions(q.Options)
	if err != nil {
		return rallye.Question{}, err
	}
	return scanQuestion(s.db.QueryRowContext(ctx, `
		INSERT INTO questions (poi_id, text, options, correct_option_index, answer) VALUES (?, ?, ?, ?, ?)
		RETURNING `+questionColumns, poiID, q.Text, options, q.CorrectOptionIndex, q.Answer))
}

func (s *SQLiteStore) UpdateQuestion(ctx context.Context, q rallye.Question) (rallye.Question, error) {
	options, err := encodeOptions(q.Options)
	if err != nil {
		return rallye.Question{}, err
	}
	return scanQuestion(s.db.QueryRowContext(ctx, `
		UPDATE questions SET text = ?, options = ?, correct_option_index = ?, answer = ? WHERE id = ?
		RETURNING `+questionColumns, q.Text, options, q.CorrectOptionIndex, q.Answer, q.ID))
}

// DeleteQuestion removes the question. Awards already credited stay in the
// group totals.
func (s *SQLiteStore) DeleteQuestion(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM awards WHERE question_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id)
		return err
	})
}

// Scoring

func (s *SQLiteStore) GroupNames(ctx context.Context) ([]rallye.Group, error) {
	return s.listGroups(ctx, `SELECT id, name FROM rallye_groups ORDER BY name`)
}

func (s *SQLiteStore) listGroups(ctx context.Context, query string, args ...any) ([]rallye.Group, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []rallye.Group{}
	for rows.Next() {
		var g rallye.Group
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// RecordLocation stores the group's latest position and appends it to the
// route. The group joins the room implicitly.
func (s *SQLiteStore) RecordLocation(ctx context.Context, u rallye.LocationUpdate) (rallye.Group, error) {
	var g rallye.Group
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		room, err := roomByCode(ctx, tx, u.RoomCode, true)
		if err != nil {
			return err
		}
		g, err = groupByName(ctx, tx, u.GroupName)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO room_groups (room_id, group_id, lat, lon, located_at)
			VALUES (?, ?, ?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			ON CONFLICT (room_id, group_id) DO UPDATE SET
				lat = excluded.lat, lon = excluded.lon, located_at = excluded.located_at
		`, room.ID, g.ID, u.Position.Lat, u.Position.Lon); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO route_points (room_id, group_id, lat, lon) VALUES (?, ?, ?, ?)
		`, room.ID, g.ID, u.Position.Lat, u.Position.Lon)
		return err
	})
	return g, err
}

func (s *SQLiteStore) ListScores(ctx context.Context, code string) ([]rallye.GroupScore, error) {
	room, err := s.RoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT group_id, points, lat, lon FROM room_groups
		WHERE room_id = ?
		ORDER BY points DESC, group_id
	`, room.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []rallye.GroupScore{}
	for rows.Next() {
		var gs rallye.GroupScore
		var lat, lon sql.NullFloat64
		if err := rows.Scan(&gs.GroupID, &gs.Points, &lat, &lon); err != nil {
			return nil, err
		}
		if lat.Valid && lon.Valid {
			gs.Location = &rallye.Position{Lat: lat.Float64, Lon: lon.Float64}
		}
		out = append(out, gs)
	}
	return out, rows.Err()
}

// AwardPoints credits a.Points at most once per (room, group, question).
func (s *SQLiteStore) AwardPoints(ctx context.Context, a Award) (AwardResult, error) {
	var res AwardResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		room, err := roomByCode(ctx, tx, a.RoomCode, true)
		if err != nil {
			return err
		}
		g, err := groupByName(ctx, tx, a.GroupName)
		if err != nil {
			return err
		}
		res.GroupID = g.ID

		var known int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM questions WHERE id = ?`, a.QuestionID).Scan(&known)
		if errors.Is(err, sql.ErrNoRows) {
			return rallye.ErrUnknownQuestion
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO room_groups (room_id, group_id) VALUES (?, ?)
			ON CONFLICT (room_id, group_id) DO NOTHING
		`, room.ID, g.ID); err != nil {
			return err
		}

		ins, err := tx.ExecContext(ctx, `
			INSERT INTO awards (room_id, group_id, question_id, points) VALUES (?, ?, ?, ?)
			ON CONFLICT (room_id, group_id, question_id) DO NOTHING
		`, room.ID, g.ID, a.QuestionID, a.Points)
		if err != nil {
			return err
		}
		if n, _ := ins.RowsAffected(); n == 1 {
			res.Awarded = true
			if _, err := tx.ExecContext(ctx, `
				UPDATE room_groups SET points = points + ? WHERE room_id = ? AND group_id = ?
			`, a.Points, room.ID, g.ID); err != nil {
				return err
			}
		}

		return tx.QueryRowContext(ctx, `
			SELECT points FROM room_groups WHERE room_id = ? AND group_id = ?
		`, room.ID, g.ID).Scan(&res.Total)
	})
	return res, err
}

// Admin live view

func (s *SQLiteStore) ListPlayers(ctx context.Context, code string) ([]rallye.Group, error) {
	room, err := s.RoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.listGroups(ctx, `
		SELECT g.id, g.name FROM rallye_groups g
		JOIN room_groups rg ON rg.group_id = g.id
		WHERE rg.room_id = ?
		ORDER BY g.name
	`, room.ID)
}

func (s *SQLiteStore) PlayerRoute(ctx context.Context, code string, groupID int64) ([]rallye.Position, error) {
	room, err := s.RoomByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT lat, lon FROM route_points
		WHERE room_id = ? AND group_id = ?
		ORDER BY id
	`, room.ID, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	route := []rallye.Position{}
	for rows.Next() {
		var p rallye.Position
		if err := rows.Scan(&p.Lat, &p.Lon); err != nil {
			return nil, err
		}
		route = append(route, p)
	}
	return route, rows.Err()
}

// PlayerLocation fails with rallye.ErrNotFound until the group has sent a position.
func (s *SQLiteStore) PlayerLocation(ctx context.Context, code string, groupID int64) (rallye.Position, error) {
	var lat, lon sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `
		SELECT rg.lat, rg.lon FROM room_groups rg
		JOIN rooms r ON r.id = rg.room_id
		WHERE r.code = ? COLLATE NOCASE AND rg.group_id = ?
	`, strings.TrimSpace(code), groupID).Scan(&lat, &lon)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !(lat.Valid && lon.Valid)) {
		return rallye.Position{}, rallye.ErrNotFound
	}
	if err != nil {
		return rallye.Position{}, err
	}
	return rallye.Position{Lat: lat.Float64, Lon: lon.Float64}, nil
}

func (s *SQLiteStore) PlayerScore(ctx context.Context, code string, groupID int64) (int, error) {
	var points int
	err := s.db.QueryRowContext(ctx, `
		SELECT rg.points FROM room_groups rg
		JOIN rooms r ON r.id = rg.room_id
		WHERE r.code = ? COLLATE NOCASE AND rg.group_id = ?
	`, strings.TrimSpace(code), groupID).Scan(&points)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, rallye.ErrNotFound
	}
	return points, err
}
