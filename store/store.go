// Package store exports decoded BUFR messages to a SQLite database.
package store

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/sdifrance/gobufr/bufr"
)

// DB wraps a SQLite database connection.
type DB struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "enable WAL")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT NOT NULL,
	edition INTEGER NOT NULL,
	category INTEGER NOT NULL,
	category_name TEXT,
	observed INTEGER NOT NULL,
	compressed INTEGER NOT NULL,
	subsets INTEGER NOT NULL,
	time TEXT NOT NULL,
	created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS observations (
	message_id INTEGER NOT NULL REFERENCES messages(id),
	subset INTEGER NOT NULL,
	position INTEGER NOT NULL,
	code TEXT NOT NULL,
	name TEXT NOT NULL,
	units TEXT NOT NULL,
	value REAL,
	PRIMARY KEY (message_id, subset, position)
);

CREATE INDEX IF NOT EXISTS idx_messages_time ON messages(time);
CREATE INDEX IF NOT EXISTS idx_observations_code ON observations(code);
`

// SaveMessage stores a message and all of its values. Missing values are
// stored as NULL.
func (d *DB) SaveMessage(ctx context.Context, source string, msg *bufr.Message) (int64, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages (source, edition, category, category_name, observed, compressed, subsets, time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, source, int(msg.Edition), int(msg.Category), msg.CategoryName, msg.Observed, msg.Compressed, msg.Subsets, msg.Time.Format(time.RFC3339))
	if err != nil {
		return 0, errors.Wrap(err, "insert message")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "insert message")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (message_id, subset, position, code, name, units, value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, errors.Wrap(err, "prepare observation insert")
	}
	defer stmt.Close()

	for i, desc := range msg.Descriptors {
		for s, v := range msg.Values[i] {
			var value sql.NullFloat64
			if !math.IsNaN(v) {
				value = sql.NullFloat64{Float64: v, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, id, s, i, desc.Code().String(), desc.Name(), desc.Units(), value); err != nil {
				return 0, errors.Wrapf(err, "insert observation %d of subset %d", i, s)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit")
	}
	return id, nil
}

// Observation is one stored value.
type Observation struct {
	Subset   int
	Position int
	Code     string
	Name     string
	Units    string
	// Value is NaN for missing data.
	Value float64
}

// Observations returns the values stored for a message, ordered by subset
// and element position.
func (d *DB) Observations(ctx context.Context, messageID int64) ([]Observation, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT subset, position, code, name, units, value
		FROM observations
		WHERE message_id = ?
		ORDER BY subset, position
	`, messageID)
	if err != nil {
		return nil, errors.Wrap(err, "query observations")
	}
	defer rows.Close()

	var out []Observation
	for rows.Next() {
		var o Observation
		var value sql.NullFloat64
		if err := rows.Scan(&o.Subset, &o.Position, &o.Code, &o.Name, &o.Units, &value); err != nil {
			return nil, errors.Wrap(err, "scan observation")
		}
		o.Value = math.NaN()
		if value.Valid {
			o.Value = value.Float64
		}
		out = append(out, o)
	}
	return out, errors.Wrap(rows.Err(), "query observations")
}

// MessageCount returns the number of stored messages.
func (d *DB) MessageCount(ctx context.Context) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`).Scan(&n)
	return n, errors.Wrap(err, "count messages")
}
