package audit_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/castbridge/internal/audit"
	"github.com/nerrad567/castbridge/internal/infrastructure/database"
	_ "github.com/nerrad567/castbridge/migrations"
)

func newTestRepo(t *testing.T) *audit.SQLiteRepository {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return audit.NewSQLiteRepository(db.DB)
}

func TestCreate_FillsIDAndTimestamp(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entry := &audit.CommandLog{
		Accessory: "living-room-tv",
		CommandID: "c-1",
		Command:   "set_channel",
		Value:     `"42"`,
		Source:    "homekit",
		Status:    "completed",
		Duration:  1250 * time.Millisecond,
	}
	require.NoError(t, repo.Create(ctx, entry))
	assert.Regexp(t, `^cmd-[0-9a-f]{8}$`, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	res, err := repo.List(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, res.Logs, 1)

	got := res.Logs[0]
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, `"42"`, got.Value)
	assert.Equal(t, "homekit", got.Source)
	assert.Equal(t, 1250*time.Millisecond, got.Duration)
	assert.Empty(t, got.ErrorCode)
	assert.WithinDuration(t, entry.CreatedAt, got.CreatedAt, time.Millisecond)
}

func TestList_FiltersAndOrder(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	entries := []audit.CommandLog{
		{Accessory: "tv", CommandID: "1", Command: "set_power", Status: "completed", CreatedAt: base},
		{Accessory: "tv", CommandID: "2", Command: "set_channel", Status: "failed", ErrorCode: "BUSY", Error: "busy", CreatedAt: base.Add(time.Second)},
		{Accessory: "bedroom", CommandID: "3", Command: "set_power", Status: "completed", CreatedAt: base.Add(2 * time.Second)},
	}
	for i := range entries {
		require.NoError(t, repo.Create(ctx, &entries[i]))
	}

	all, err := repo.List(ctx, audit.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	assert.Equal(t, []string{"3", "2", "1"}, commandIDs(all.Logs), "most recent first")

	tv, err := repo.List(ctx, audit.Filter{Accessory: "tv"})
	require.NoError(t, err)
	assert.Equal(t, 2, tv.Total)

	failed, err := repo.List(ctx, audit.Filter{Status: "failed"})
	require.NoError(t, err)
	require.Len(t, failed.Logs, 1)
	assert.Equal(t, "BUSY", failed.Logs[0].ErrorCode)

	power, err := repo.List(ctx, audit.Filter{Command: "set_power", Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, power.Total)
	assert.Len(t, power.Logs, 1)
	assert.Equal(t, 1, power.Limit)
}

func TestList_ClampsPaging(t *testing.T) {
	repo := newTestRepo(t)

	res, err := repo.List(context.Background(), audit.Filter{Limit: 10000, Offset: -5})
	require.NoError(t, err)
	assert.Equal(t, 200, res.Limit)
	assert.Equal(t, 0, res.Offset)
	assert.NotNil(t, res.Logs)
}

func TestCreate_RejectsUnknownStatus(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Create(context.Background(), &audit.CommandLog{
		Accessory: "tv", CommandID: "x", Command: "read", Status: "accepted",
	})
	assert.Error(t, err)
}

func commandIDs(logs []audit.CommandLog) []string {
	ids := make([]string, len(logs))
	for i, l := range logs {
		ids[i] = l.CommandID
	}
	return ids
}

func TestPrune(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, age := range []time.Duration{40 * 24 * time.Hour, 31 * 24 * time.Hour, time.Hour} {
		require.NoError(t, repo.Create(ctx, &audit.CommandLog{
			Accessory: "tv",
			CommandID: string(rune('a' + i)),
			Command:   "read",
			Status:    "completed",
			CreatedAt: now.Add(-age),
		}))
	}

	n, err := repo.Prune(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	res, err := repo.List(ctx, audit.Filter{})
	require.NoError(t, err)
	require.Len(t, res.Logs, 1)
	assert.Equal(t, "c", res.Logs[0].CommandID)

	n, err = repo.Prune(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)
}
