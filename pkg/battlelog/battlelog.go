// Package battlelog keeps a record of each battle (shots, hits, phase
// changes, targets lost) in a sqlite database for review afterwards.
package battlelog

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/Ngotcode/pixybattle/pkg/botlog"
)

//go:embed schema.sql
var schemaSQL string

type Kind string

const (
	Shot       Kind = "shot"
	Hit        Kind = "hit"
	Phase      Kind = "phase"
	TargetLost Kind = "target_lost"
)

type DB struct {
	*sql.DB
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases shared and writes serialised.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	l := botlog.For("battlelog")
	l.Debug().Str("path", path).Msg("Opened battle log")
	return &DB{db}, nil
}

// Session is one battle. Its methods are safe to call on a nil Session,
// which records nothing.
type Session struct {
	db *DB
	ID uuid.UUID
}

func (db *DB) StartSession(notes string) (*Session, error) {
	id := uuid.New()
	_, err := db.Exec(`INSERT INTO sessions (id, started_at, notes) VALUES (?, ?, ?)`,
		id.String(), time.Now().UnixNano(), notes)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}
	return &Session{db: db, ID: id}, nil
}

func (s *Session) Record(kind Kind, detail string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(`INSERT INTO events (session_id, at, kind, detail) VALUES (?, ?, ?, ?)`,
		s.ID.String(), time.Now().UnixNano(), string(kind), detail)
	if err != nil {
		return fmt.Errorf("failed to record %s event: %w", kind, err)
	}
	return nil
}

func (s *Session) End() error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(`UPDATE sessions SET ended_at = ? WHERE id = ?`, time.Now().UnixNano(), s.ID.String())
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	return nil
}

type Event struct {
	At     time.Time
	Kind   Kind
	Detail string
}

// Events returns a session's events in the order they happened.
func (db *DB) Events(session uuid.UUID) ([]Event, error) {
	rows, err := db.Query(`SELECT at, kind, detail FROM events WHERE session_id = ? ORDER BY at, id`, session.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var at int64
		var e Event
		if err := rows.Scan(&at, &e.Kind, &e.Detail); err != nil {
			return nil, err
		}
		e.At = time.Unix(0, at)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Summary counts a session's events by kind.
func (db *DB) Summary(session uuid.UUID) (map[Kind]int, error) {
	rows, err := db.Query(`SELECT kind, COUNT(*) FROM events WHERE session_id = ? GROUP BY kind`, session.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[Kind]int{}
	for rows.Next() {
		var kind Kind
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[kind] = n
	}
	return out, rows.Err()
}
