// Package journal keeps a local SQLite audit trail of session events so a
// proctor can reconstruct what happened on the candidate's machine after the
// fact. Everything here is best effort: a failed write is logged and
// swallowed, never surfaced into the exam flow.
package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Journal is an append-only session event log.
type Journal struct {
	db  *sql.DB
	log zerolog.Logger
}

// Event is one journal row.
type Event struct {
	ID        int64     `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Kind      string    `json:"kind"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

// Open creates or opens the journal database at path.
func Open(path string, log zerolog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{
		db:  db,
		log: log.With().Str("component", "journal").Logger(),
	}
	if err := j.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init journal schema: %w", err)
	}
	return j, nil
}

func (j *Journal) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS session_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		detail TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_session_events_session ON session_events(session_id);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Append writes one event.
func (j *Journal) Append(sessionID uuid.UUID, kind, detail string) error {
	_, err := j.db.Exec(
		`INSERT INTO session_events (session_id, kind, detail, created_at) VALUES (?, ?, ?, ?)`,
		sessionID.String(), kind, detail, time.Now().UTC(),
	)
	return err
}

// Events returns all events of a session in insertion order.
func (j *Journal) Events(sessionID uuid.UUID) ([]Event, error) {
	rows, err := j.db.Query(
		`SELECT id, session_id, kind, detail, created_at
		 FROM session_events WHERE session_id = ? ORDER BY id`,
		sessionID.String(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			ev    Event
			rawID string
		)
		if err := rows.Scan(&ev.ID, &rawID, &ev.Kind, &ev.Detail, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if ev.SessionID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("corrupt session id %q: %w", rawID, err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// SessionRecorder binds the journal to one session and absorbs write errors,
// matching the monitor's Recorder contract.
type SessionRecorder struct {
	j         *Journal
	sessionID uuid.UUID
}

// Recorder returns a Recorder for the given session.
func (j *Journal) Recorder(sessionID uuid.UUID) *SessionRecorder {
	return &SessionRecorder{j: j, sessionID: sessionID}
}

func (r *SessionRecorder) Record(kind, detail string) {
	if err := r.j.Append(r.sessionID, kind, detail); err != nil {
		r.j.log.Warn().Err(err).Str("kind", kind).Msg("Journal write failed")
	}
}
