package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
)

// DemoRoomCode is the open room created with the demo rallye.
const DemoRoomCode = "SPREE2"

type seedQuestion struct {
	text    string
	options []string
	correct int
	answer  string
}

type seedPOI struct {
	name      string
	lat, lon  float64
	radius    float64
	questions []seedQuestion
}

var demoGroups = []string{"Adler", "Bären", "Füchse", "Luchse", "Wölfe", "Eulen"}

var demoPOIs = []seedPOI{
	{
		name: "Brandenburger Tor", lat: 52.516275, lon: 13.377704, radius: 60,
		questions: []seedQuestion{
			{text: "In welchem Jahr wurde das Tor fertiggestellt?", options: []string{"1701", "1791", "1871", "1918"}, correct: 1},
			{text: "Wie heißt die Figur auf dem Tor?", answer: "Quadriga"},
		},
	},
	{
		name: "Reichstagsgebäude", lat: 52.518620, lon: 13.376198, radius: 50,
		questions: []seedQuestion{
			{text: "Wer entwarf die gläserne Kuppel?", options: []string{"Norman Foster", "Zaha Hadid", "Renzo Piano"}, correct: 0},
		},
	},
	{
		name: "Fernsehturm", lat: 52.520815, lon: 13.409419, radius: 75,
		questions: []seedQuestion{
			{text: "Wie hoch ist der Fernsehturm in Metern?", options: []string{"268", "301", "368", "412"}, correct: 2},
			{text: "Auf welchem Platz steht der Turm?", answer: "Alexanderplatz"},
		},
	},
	{
		name: "Berliner Dom", lat: 52.519067, lon: 13.401078, radius: 50,
		questions: []seedQuestion{
			{text: "Auf welcher Insel steht der Dom?", answer: "Museumsinsel"},
		},
	},
	{
		name: "Gendarmenmarkt", lat: 52.513558, lon: 13.392734, radius: 60,
		questions: []seedQuestion{
			{text: "Wie viele Dome stehen am Gendarmenmarkt?", options: []string{"1", "2", "3"}, correct: 1},
		},
	},
}

// SeedDemo creates the Berlin Mitte demo rallye, the group directory and an
// open room. It does nothing when any rallye exists.
func SeedDemo(ctx context.Context, logger *slog.Logger, db *sql.DB) error {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rallyes`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var rallyeID int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO rallyes (name, description) VALUES (?, ?) RETURNING id
	`, "Berlin Mitte", "Vom Brandenburger Tor zum Alexanderplatz").Scan(&rallyeID); err != nil {
		return err
	}

	for _, p := range demoPOIs {
		var poiID int64
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO pois (rallye_id, name, lat, lon, radius_meters) VALUES (?, ?, ?, ?, ?) RETURNING id
		`, rallyeID, p.name, p.lat, p.lon, p.radius).Scan(&poiID); err != nil {
			return err
		}
		for _, q := range p.questions {
			opts := q.options
			if opts == nil {
				opts = []string{}
			}
			data, _ := json.Marshal(opts)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO questions (poi_id, text, options, correct_option_index, answer) VALUES (?, ?, ?, ?, ?)
			`, poiID, q.text, string(data), q.correct, q.answer); err != nil {
				return err
			}
		}
	}

	for _, name := range demoGroups {
		if _, err := tx.ExecContext(ctx, `INSERT INTO rallye_groups (name) VALUES (?)`, name); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO rooms (code, rallye_id, status) VALUES (?, ?, 'open')
	`, DemoRoomCode, rallyeID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logger.Info("demo rallye seeded", "rallye", rallyeID, "room", DemoRoomCode, "pois", len(demoPOIs))
	return nil
}
