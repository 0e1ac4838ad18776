package services_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/MegaGrindStone/stream-chat-ui/internal/models"
	"github.com/MegaGrindStone/stream-chat-ui/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBolt(t *testing.T) services.BoltDB {
	t.Helper()
	db, err := services.NewBoltDB(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestBoltDBUsers(t *testing.T) {
	db := newBolt(t)
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	u, err := db.UpsertUser(ctx, models.User{
		ID:            "u1",
		Email:         "a@example.com",
		Name:          "A",
		GoogleSubject: "sub-1",
		CreatedAt:     created,
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	// Second sign-in of the same Google account keeps the original ID.
	u, err = db.UpsertUser(ctx, models.User{
		ID:            "u2",
		Email:         "a@example.com",
		Name:          "A. Renamed",
		GoogleSubject: "sub-1",
		CreatedAt:     created.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.True(t, created.Equal(u.CreatedAt))

	got, err := db.User(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "A. Renamed", got.Name)

	_, err = db.User(ctx, "u2")
	assert.ErrorIs(t, err, services.ErrNotFound)
}

func TestBoltDBSessions(t *testing.T) {
	db := newBolt(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, db.AddSession(ctx, models.Session{Token: "live", UserID: "u1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, db.AddSession(ctx, models.Session{Token: "old", UserID: "u1", ExpiresAt: now.Add(-time.Hour)}))

	s, err := db.Session(ctx, "live")
	require.NoError(t, err)
	assert.Equal(t, "u1", s.UserID)

	_, err = db.Session(ctx, "old")
	assert.ErrorIs(t, err, services.ErrNotFound)

	_, err = db.Session(ctx, "missing")
	assert.ErrorIs(t, err, services.ErrNotFound)

	n, err := db.PurgeExpiredSessions(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, db.DeleteSession(ctx, "live"))
	require.NoError(t, db.DeleteSession(ctx, "live"))
	_, err = db.Session(ctx, "live")
	assert.ErrorIs(t, err, services.ErrNotFound)
}
