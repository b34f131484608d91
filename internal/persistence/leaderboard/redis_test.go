package leaderboard

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"arenaforge.gg/internal/host"
)

func newBoard(t *testing.T) (*Board, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = c.Close() })
	return New(c, "test", zerolog.Nop()), s
}

func TestApply_AccumulatesAndRanks(t *testing.T) {
	b, s := newBoard(t)
	ctx := context.Background()
	winner, loser := uuid.New(), uuid.New()

	require.NoError(t, <-b.Apply(ctx, winner, host.StatsDelta{Kills: 3, Wins: 1, Points: 16, Games: 1}))
	require.NoError(t, <-b.Apply(ctx, loser, host.StatsDelta{Deaths: 1, Losses: 1, Points: -8, Games: 1}))
	require.NoError(t, <-b.Apply(ctx, winner, host.StatsDelta{Kills: 1, Points: 2, Games: 1}))

	d, ok, err := b.Stats(ctx, winner)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, host.StatsDelta{Kills: 4, Wins: 1, Points: 18, Games: 2}, d)
	require.True(t, s.Exists("test:stats:"+winner.String()))

	top, err := b.Top(ctx, 10)
	require.NoError(t, err)
	require.Equal(t, []Entry{{Player: winner, Points: 18}, {Player: loser, Points: -8}}, top)

	r, ok, err := b.Rank(ctx, loser)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, r)
}

func TestStats_Unknown(t *testing.T) {
	b, _ := newBoard(t)
	_, ok, err := b.Stats(context.Background(), uuid.New())
	require.NoError(t, err)
	require.False(t, ok)

	_, ok, err = b.Rank(context.Background(), uuid.New())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestApply_ServerDown(t *testing.T) {
	b, s := newBoard(t)
	s.Close()
	require.Error(t, <-b.Apply(context.Background(), uuid.New(), host.StatsDelta{Games: 1}))
}
