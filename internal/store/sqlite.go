package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ZhangSihui999/PsPM/internal/channel"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS session (
    id          INTEGER PRIMARY KEY CHECK (id = 1),
    version     INTEGER NOT NULL,
    duration    REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS history (
    seq             INTEGER PRIMARY KEY AUTOINCREMENT,
    action          TEXT NOT NULL,
    channel_type    TEXT NOT NULL,
    channel_id      INTEGER NOT NULL,
    message         TEXT NOT NULL,
    at_ns           INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS channels (
    position        INTEGER PRIMARY KEY,
    type            TEXT NOT NULL,
    kind            TEXT NOT NULL,
    units           TEXT NOT NULL,
    sample_rate     REAL NOT NULL,
    data            TEXT NOT NULL,
    marker          TEXT
);
`

// SQLiteBackend persists the session in a SQLite database with the
// same whole-session load/save contract as the JSON file backend: each
// save rewrites the session inside one transaction.
type SQLiteBackend struct {
	db  *sql.DB
	reg *channel.Registry
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, reg *channel.Registry) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteBackend{db: db, reg: reg}, nil
}

// Load reads the whole session. An empty database yields an empty
// session.
func (b *SQLiteBackend) Load() (*Session, error) {
	f := &sessionFile{Version: FormatVersion}

	err := b.db.QueryRow(`SELECT version, duration FROM session WHERE id = 1`).
		Scan(&f.Version, &f.Duration)
	if err == sql.ErrNoRows {
		return NewSession(b.reg), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session row: %w", err)
	}

	rows, err := b.db.Query(`SELECT action, channel_type, channel_id, message, at_ns FROM history ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h HistoryEntry
		var atNs int64
		if err := rows.Scan(&h.Action, &h.ChannelType, &h.ChannelID, &h.Message, &atNs); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		h.At = time.Unix(0, atNs).UTC()
		f.History = append(f.History, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	chRows, err := b.db.Query(`SELECT type, kind, units, sample_rate, data, marker FROM channels ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("read channels: %w", err)
	}
	defer chRows.Close()
	for chRows.Next() {
		var c channel.Channel
		var dataJSON string
		var markerJSON sql.NullString
		if err := chRows.Scan(&c.Type, &c.Kind, &c.Units, &c.SampleRate, &dataJSON, &markerJSON); err != nil {
			return nil, fmt.Errorf("scan channel row: %w", err)
		}
		if err := json.Unmarshal([]byte(dataJSON), &c.Data); err != nil {
			return nil, fmt.Errorf("decode channel data: %w", err)
		}
		if markerJSON.Valid {
			c.Marker = &channel.MarkerInfo{}
			if err := json.Unmarshal([]byte(markerJSON.String), c.Marker); err != nil {
				return nil, fmt.Errorf("decode marker info: %w", err)
			}
		}
		f.Channels = append(f.Channels, &c)
	}
	if err := chRows.Err(); err != nil {
		return nil, fmt.Errorf("read channels: %w", err)
	}

	return sessionFromFile(f, b.reg)
}

// Save rewrites the whole session in one transaction. On failure the
// transaction rolls back and the database keeps its previous state.
func (b *SQLiteBackend) Save(s *Session) error {
	f := s.toFile()

	tx, err := b.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM session`, `DELETE FROM history`, `DELETE FROM channels`} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("clear previous session: %w", err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO session (id, version, duration) VALUES (1, ?, ?)`,
		f.Version, f.Duration); err != nil {
		return fmt.Errorf("write session row: %w", err)
	}

	for _, h := range f.History {
		if _, err := tx.Exec(
			`INSERT INTO history (action, channel_type, channel_id, message, at_ns) VALUES (?, ?, ?, ?, ?)`,
			string(h.Action), h.ChannelType, h.ChannelID, h.Message, h.At.UnixNano()); err != nil {
			return fmt.Errorf("write history row: %w", err)
		}
	}

	for i, c := range f.Channels {
		dataJSON, err := json.Marshal(c.Data)
		if err != nil {
			return fmt.Errorf("encode channel %d data: %w", i+1, err)
		}
		var markerJSON any
		if c.Marker != nil {
			m, err := json.Marshal(c.Marker)
			if err != nil {
				return fmt.Errorf("encode channel %d marker: %w", i+1, err)
			}
			markerJSON = string(m)
		}
		if _, err := tx.Exec(
			`INSERT INTO channels (position, type, kind, units, sample_rate, data, marker) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			i+1, c.Type, string(c.Kind), c.Units, c.SampleRate, string(dataJSON), markerJSON); err != nil {
			return fmt.Errorf("write channel %d: %w", i+1, err)
		}
	}

	return tx.Commit()
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
