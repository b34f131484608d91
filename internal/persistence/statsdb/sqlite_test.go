package statsdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"arenaforge.gg/internal/host"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "stats.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApply_Accumulates(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()
	p := uuid.New()

	require.NoError(t, <-db.Apply(ctx, p, host.StatsDelta{Kills: 2, Wins: 1, Points: 14, Games: 1}))
	require.NoError(t, <-db.Apply(ctx, p, host.StatsDelta{Deaths: 1, Losses: 1, Points: -8, Games: 1}))

	rec, ok, err := db.Get(ctx, p)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, p, rec.Player)
	require.Equal(t, host.StatsDelta{Kills: 2, Deaths: 1, Wins: 1, Losses: 1, Points: 6, Games: 2}, rec.StatsDelta)
	require.False(t, rec.UpdatedAt.IsZero())
}

func TestGet_Unknown(t *testing.T) {
	db := openTemp(t)
	_, ok, err := db.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTop_OrdersByPoints(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, <-db.Apply(ctx, a, host.StatsDelta{Points: 5}))
	require.NoError(t, <-db.Apply(ctx, b, host.StatsDelta{Points: 20}))
	require.NoError(t, <-db.Apply(ctx, c, host.StatsDelta{Points: -3}))

	top, err := db.Top(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, b, top[0].Player)
	require.Equal(t, a, top[1].Player)
}

func TestApply_CancelledContext(t *testing.T) {
	db := openTemp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, <-db.Apply(ctx, uuid.New(), host.StatsDelta{Games: 1}), context.Canceled)
}

func TestApply_AfterClose(t *testing.T) {
	db := openTemp(t)
	require.NoError(t, db.Close())
	require.ErrorIs(t, <-db.Apply(context.Background(), uuid.New(), host.StatsDelta{}), ErrClosed)
}

func TestApply_QueueFull(t *testing.T) {
	s := &DB{ch: make(chan req, 1)}
	s.ch <- req{}

	require.ErrorIs(t, <-s.Apply(context.Background(), uuid.New(), host.StatsDelta{}), ErrQueueFull)
	require.Equal(t, uint64(1), s.Drops())
}
