package storage

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestDB(t *testing.T) *BoltDB {
	t.Helper()
	db, err := Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSaveAndListSessions(t *testing.T) {
	db := openTestDB(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		rec := &SessionRecord{
			ID:          uuid.NewString(),
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			PrimaryPort: 7860,
			ControlPort: 7861,
		}
		require.NoError(t, db.SaveSession(rec))
	}

	sessions, err := db.ListSessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 3)

	// Newest first.
	assert.True(t, sessions[0].StartedAt.After(sessions[1].StartedAt))
	assert.True(t, sessions[1].StartedAt.After(sessions[2].StartedAt))
}

func TestSessionOutcomeResave(t *testing.T) {
	db := openTestDB(t)

	rec := &SessionRecord{
		ID:          uuid.NewString(),
		StartedAt:   time.Now().UTC(),
		PrimaryPort: 7860,
	}
	require.NoError(t, db.SaveSession(rec))

	rec.EndedAt = time.Now().UTC()
	rec.Outcome = "fatal"
	rec.FatalReason = "readiness timeout"
	require.NoError(t, db.SaveSession(rec))

	sessions, err := db.ListSessions(10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "fatal", sessions[0].Outcome)
	assert.Equal(t, "readiness timeout", sessions[0].FatalReason)
}

func TestRecordAndListCrashes(t *testing.T) {
	db := openTestDB(t)
	sessionID := uuid.NewString()

	base := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 4; i++ {
		err := db.RecordCrash(&CrashRecord{
			SessionID: sessionID,
			At:        base.Add(time.Duration(i) * time.Second),
			ExitCode:  1,
			Attempt:   uint(i + 1),
			Restarted: i < 3,
		})
		require.NoError(t, err)
	}
	// A crash from another session must be filtered out.
	require.NoError(t, db.RecordCrash(&CrashRecord{
		SessionID: uuid.NewString(),
		At:        base.Add(10 * time.Second),
		ExitCode:  2,
	}))

	crashes, err := db.ListCrashes(sessionID, 10)
	require.NoError(t, err)
	require.Len(t, crashes, 4)

	// ULID keys sort chronologically, listing is newest first.
	assert.Equal(t, uint(4), crashes[0].Attempt)
	assert.False(t, crashes[0].Restarted)
	assert.Equal(t, uint(1), crashes[3].Attempt)

	all, err := db.ListCrashes("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestListLimits(t *testing.T) {
	db := openTestDB(t)
	sessionID := uuid.NewString()

	for i := 0; i < 5; i++ {
		require.NoError(t, db.RecordCrash(&CrashRecord{
			SessionID: sessionID,
			At:        time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
			ExitCode:  1,
		}))
	}

	crashes, err := db.ListCrashes(sessionID, 2)
	require.NoError(t, err)
	assert.Len(t, crashes, 2)
}
