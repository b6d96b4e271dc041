package store

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/soyeahso/uncover/internal/domain"
	"github.com/soyeahso/uncover/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	log := logging.New(nil, "silent")
	db, err := Open(Memory, log)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// stepClock returns a clock that advances one second per call.
func stepClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

// --- DB/Migration tests ---

func TestOpen_InMemory(t *testing.T) {
	db := testDB(t)
	assert.NotNil(t, db.SQL())
	assert.NoError(t, db.Ping(context.Background()))

	v, err := db.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, migrations[len(migrations)-1].Version, v)
}

func TestMigrationsAppliedOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_history.db")
	for range 2 {
		db, err := Open(path, logging.New(nil, "silent"))
		require.NoError(t, err)

		var n int
		require.NoError(t, db.SQL().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&n))
		assert.Equal(t, len(migrations), n)
		require.NoError(t, db.Close())
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chat_history.db")
	db, err := Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)

	ctx := context.Background()
	sessions := NewSessionStore(db)
	require.NoError(t, sessions.CreateSession(ctx, "Session 1"))
	require.NoError(t, db.Close())

	db, err = Open(path, logging.New(nil, "silent"))
	require.NoError(t, err)
	defer db.Close()

	got, ok, err := NewSessionStore(db).GetSession(ctx, "Session 1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Session 1", got.Name)
}

func TestMigrations_Idempotent(t *testing.T) {
	db := testDB(t)
	require.NoError(t, db.migrate(context.Background()))

	var count int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, len(migrations), count)
}

func TestSchema_TablesExist(t *testing.T) {
	db := testDB(t)

	for _, table := range []string{"sessions", "chat_history", "endpoints"} {
		var name string
		err := db.sql.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

// --- Sessions ---

func TestCreateSession_NameEqualsID(t *testing.T) {
	db := testDB(t)
	s := NewSessionStore(db)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, "Session 1"))

	got, ok, err := s.GetSession(ctx, "Session 1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Session 1", got.ID)
	assert.Equal(t, "Session 1", got.Name)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestCreateSession_Idempotent(t *testing.T) {
	db := testDB(t)
	s := NewSessionStore(db)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, "Session 1"))
	require.NoError(t, s.RenameSession(ctx, "Trip planning", "Session 1"))
	require.NoError(t, s.CreateSession(ctx, "Session 1"))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "Trip planning", sessions[0].Name, "second create must not reset the name")
}

func TestGetSession_Missing(t *testing.T) {
	s := NewSessionStore(testDB(t))
	_, ok, err := s.GetSession(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListSessions_NewestFirst(t *testing.T) {
	db := testDB(t)
	db.now = stepClock()
	s := NewSessionStore(db)
	ctx := context.Background()

	for _, id := range []string{"Session 1", "Session 2", "Session 3"} {
		require.NoError(t, s.CreateSession(ctx, id))
	}

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "Session 3", sessions[0].ID)
	assert.Equal(t, "Session 2", sessions[1].ID)
	assert.Equal(t, "Session 1", sessions[2].ID)

	n, err := s.CountSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestListSessions_SameTimestampUsesInsertOrder(t *testing.T) {
	db := testDB(t)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return fixed }
	s := NewSessionStore(db)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, "b"))
	require.NoError(t, s.CreateSession(ctx, "a"))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "a", sessions[0].ID)
}

func TestListSessions_Empty(t *testing.T) {
	sessions, err := NewSessionStore(testDB(t)).ListSessions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestRenameSession_DuplicateNamesAllowed(t *testing.T) {
	s := NewSessionStore(testDB(t))
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, "Session 1"))
	require.NoError(t, s.CreateSession(ctx, "Session 2"))
	require.NoError(t, s.RenameSession(ctx, "Recipes", "Session 1"))
	require.NoError(t, s.RenameSession(ctx, "Recipes", "Session 2"))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	for _, sess := range sessions {
		assert.Equal(t, "Recipes", sess.Name)
	}
}

func TestRenameSession_MissingIsNoop(t *testing.T) {
	s := NewSessionStore(testDB(t))
	assert.NoError(t, s.RenameSession(context.Background(), "x", "ghost"))
}

// --- Messages ---

func TestAppendMessage_InsertionOrder(t *testing.T) {
	db := testDB(t)
	// Clock runs backwards; ordering must still follow insertion.
	ts := time.Date(2024, 1, 1, 0, 0, 10, 0, time.UTC)
	db.now = func() time.Time {
		ts = ts.Add(-time.Second)
		return ts
	}
	s := NewSessionStore(db)
	ctx := context.Background()

	_, err := s.AppendMessage(ctx, "Session 1", domain.SenderUser, "first")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "Session 1", domain.SenderAI, "second")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "Session 1", domain.SenderUser, "third")
	require.NoError(t, err)

	msgs, err := s.Messages(ctx, "Session 1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "first", msgs[0].Body)
	assert.Equal(t, "second", msgs[1].Body)
	assert.Equal(t, "third", msgs[2].Body)
	assert.Equal(t, domain.SenderAI, msgs[1].Sender)
}

func TestAppendMessage_OrphanAllowed(t *testing.T) {
	s := NewSessionStore(testDB(t))
	ctx := context.Background()

	msg, err := s.AppendMessage(ctx, "never-created", domain.SenderUser, "hello")
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)

	msgs, err := s.Messages(ctx, "never-created")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, ok, err := s.GetSession(ctx, "never-created")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMessages_ScopedToSession(t *testing.T) {
	s := NewSessionStore(testDB(t))
	ctx := context.Background()

	_, err := s.AppendMessage(ctx, "a", domain.SenderUser, "for a")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "b", domain.SenderUser, "for b")
	require.NoError(t, err)

	msgs, err := s.Messages(ctx, "a")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "for a", msgs[0].Body)
}

func TestContext(t *testing.T) {
	s := NewSessionStore(testDB(t))
	ctx := context.Background()

	got, err := s.Context(ctx, "Session 1")
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = s.AppendMessage(ctx, "Session 1", domain.SenderUser, "hi")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "Session 1", domain.SenderAI, "hello")
	require.NoError(t, err)

	got, err = s.Context(ctx, "Session 1")
	require.NoError(t, err)
	assert.Equal(t, "User: hi\nAI: hello\n", got)
}

// --- Delete ---

func TestDeleteSession_CascadesMessages(t *testing.T) {
	s := NewSessionStore(testDB(t))
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, "Session 1"))
	require.NoError(t, s.CreateSession(ctx, "Session 2"))
	_, err := s.AppendMessage(ctx, "Session 1", domain.SenderUser, "bye")
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "Session 2", domain.SenderUser, "stay")
	require.NoError(t, err)

	s.DeleteSession(ctx, "Session 1")

	_, ok, err := s.GetSession(ctx, "Session 1")
	require.NoError(t, err)
	assert.False(t, ok)

	msgs, err := s.Messages(ctx, "Session 1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = s.Messages(ctx, "Session 2")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestDeleteSession_MissingIsNoop(t *testing.T) {
	s := NewSessionStore(testDB(t))
	s.DeleteSession(context.Background(), "ghost")
}

func TestDeleteSession_FailureIsLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	db, err := Open(Memory, logging.New(&buf, "error"))
	require.NoError(t, err)
	s := NewSessionStore(db)
	require.NoError(t, db.Close())

	assert.NotPanics(t, func() { s.DeleteSession(context.Background(), "Session 1") })
	assert.Contains(t, buf.String(), "failed to delete session")
}

func TestDeleteSession_AbortedMidwayLeavesSessionAndMessages(t *testing.T) {
	var buf bytes.Buffer
	db, err := Open(Memory, logging.New(&buf, "error"))
	require.NoError(t, err)
	defer db.Close()
	s := NewSessionStore(db)
	ctx := context.Background()

	require.NoError(t, s.CreateSession(ctx, "Session 1"))
	_, err = s.AppendMessage(ctx, "Session 1", domain.SenderUser, "hello")
	require.NoError(t, err)

	// chat_history goes first, so the abort lands after rows were already removed.
	_, err = db.SQL().ExecContext(ctx, `CREATE TRIGGER keep_sessions BEFORE DELETE ON sessions
		BEGIN SELECT RAISE(ABORT, 'locked'); END`)
	require.NoError(t, err)

	s.DeleteSession(ctx, "Session 1")
	assert.Contains(t, buf.String(), "failed to delete session")

	msgs, err := s.Messages(ctx, "Session 1")
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, ok, err := s.GetSession(ctx, "Session 1")
	require.NoError(t, err)
	assert.True(t, ok)
}

// --- Endpoints ---

func TestLatestEndpoint_Empty(t *testing.T) {
	e := NewEndpointStore(testDB(t))
	_, ok, err := e.LatestEndpoint(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveEndpoint_AppendOnlyLatestWins(t *testing.T) {
	db := testDB(t)
	db.now = stepClock()
	e := NewEndpointStore(db)
	ctx := context.Background()

	_, err := e.SaveEndpoint(ctx, "10.0.0.1", 8000, "http", "k1")
	require.NoError(t, err)
	saved, err := e.SaveEndpoint(ctx, "api.example.com", 443, "https", "k2")
	require.NoError(t, err)

	latest, ok, err := e.LatestEndpoint(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, saved.ID, latest.ID)
	assert.Equal(t, "api.example.com", latest.URL)
	assert.Equal(t, 443, latest.Port)
	assert.Equal(t, "https", latest.Protocol)
	assert.Equal(t, "k2", latest.APIKey)

	var rows int
	require.NoError(t, db.sql.QueryRow("SELECT COUNT(*) FROM endpoints").Scan(&rows))
	assert.Equal(t, 2, rows)
}

func TestSaveEndpoint_SameTimestampUsesLastInsert(t *testing.T) {
	db := testDB(t)
	fixed := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	db.now = func() time.Time { return fixed }
	e := NewEndpointStore(db)
	ctx := context.Background()

	_, err := e.SaveEndpoint(ctx, "first", 1, "http", "")
	require.NoError(t, err)
	_, err = e.SaveEndpoint(ctx, "second", 2, "http", "")
	require.NoError(t, err)

	latest, ok, err := e.LatestEndpoint(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", latest.URL)
	assert.Equal(t, fixed, latest.SavedAt)
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 3, 2, 1, 0, 0, 5, time.UTC)
	assert.True(t, want.Equal(parseTimestamp(want.Format(timeLayout))))
	assert.Equal(t, time.Date(2024, 3, 2, 1, 0, 0, 0, time.UTC), parseTimestamp("2024-03-02 01:00:00"))
}
