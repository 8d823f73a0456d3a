package journal

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func TestAppendAndEvents(t *testing.T) {
	j := openTestJournal(t)
	sessionID := uuid.New()

	require.NoError(t, j.Append(sessionID, "session_started", ""))
	require.NoError(t, j.Append(sessionID, "violation_raised", "left full-screen mode"))
	require.NoError(t, j.Append(sessionID, "submit_succeeded", "trigger=MANUAL"))

	events, err := j.Events(sessionID)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Insertion order is preserved.
	require.Equal(t, "session_started", events[0].Kind)
	require.Equal(t, "violation_raised", events[1].Kind)
	require.Equal(t, "left full-screen mode", events[1].Detail)
	require.Equal(t, "submit_succeeded", events[2].Kind)
	for _, ev := range events {
		require.Equal(t, sessionID, ev.SessionID)
		require.False(t, ev.CreatedAt.IsZero())
	}
}

func TestEventsScopedToSession(t *testing.T) {
	j := openTestJournal(t)
	a, b := uuid.New(), uuid.New()

	require.NoError(t, j.Append(a, "session_started", ""))
	require.NoError(t, j.Append(b, "session_started", ""))
	require.NoError(t, j.Append(a, "session_closed", "SUBMITTED"))

	events, err := j.Events(a)
	require.NoError(t, err)
	require.Len(t, events, 2)

	events, err = j.Events(b)
	require.NoError(t, err)
	require.Len(t, events, 1)
}

func TestEventsEmptyForUnknownSession(t *testing.T) {
	j := openTestJournal(t)
	events, err := j.Events(uuid.New())
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestRecorderAbsorbsFailures(t *testing.T) {
	j := openTestJournal(t)
	sessionID := uuid.New()
	rec := j.Recorder(sessionID)

	rec.Record("lockdown_entered", "")

	events, err := j.Events(sessionID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	// A closed journal must not panic or propagate the error.
	require.NoError(t, j.Close())
	rec.Record("lockdown_exited", "")
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	sessionID := uuid.New()

	j, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, j.Append(sessionID, "session_started", ""))
	require.NoError(t, j.Close())

	j, err = Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer j.Close()

	events, err := j.Events(sessionID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "session_started", events[0].Kind)
}
