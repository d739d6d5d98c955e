package battlelog

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "battle.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRecordAndReadBack(t *testing.T) {
	db := openTestDB(t)
	s, err := db.StartSession("arena 1")
	require.NoError(t, err)

	require.NoError(t, s.Record(Phase, "searching"))
	require.NoError(t, s.Record(Shot, "1"))
	require.NoError(t, s.Record(Shot, "2"))
	require.NoError(t, s.Record(Hit, ""))
	require.NoError(t, s.End())

	events, err := db.Events(s.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	assert.Equal(t, Phase, events[0].Kind)
	assert.Equal(t, "searching", events[0].Detail)
	assert.Equal(t, Hit, events[3].Kind)
	assert.False(t, events[3].At.Before(events[0].At))

	summary, err := db.Summary(s.ID)
	require.NoError(t, err)
	assert.Equal(t, map[Kind]int{Phase: 1, Shot: 2, Hit: 1}, summary)
}

func TestSessionsAreSeparate(t *testing.T) {
	db := openTestDB(t)
	a, err := db.StartSession("")
	require.NoError(t, err)
	b, err := db.StartSession("")
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)

	require.NoError(t, a.Record(Shot, ""))

	events, err := db.Events(b.ID)
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = db.Events(uuid.New())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestNilSessionRecordsNothing(t *testing.T) {
	var s *Session
	assert.NoError(t, s.Record(Shot, ""))
	assert.NoError(t, s.End())
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battle.db")
	db, err := Open(path)
	require.NoError(t, err)
	s, err := db.StartSession("")
	require.NoError(t, err)
	require.NoError(t, s.Record(TargetLost, "Block{sig=1}"))
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	events, err := db.Events(s.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, TargetLost, events[0].Kind)
}
