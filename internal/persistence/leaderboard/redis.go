// Package leaderboard stores player statistics in Redis: one hash per player
// and a sorted set ranking players by points.
package leaderboard

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"arenaforge.gg/internal/host"
)

type Entry struct {
	Player uuid.UUID
	Points int
}

type Board struct {
	c      *redis.Client
	prefix string
	log    zerolog.Logger
}

func New(c *redis.Client, prefix string, log zerolog.Logger) *Board {
	if prefix == "" {
		prefix = "arena"
	}
	return &Board{c: c, prefix: prefix, log: log.With().Str("component", "leaderboard").Logger()}
}

func (b *Board) playerKey(id uuid.UUID) string { return b.prefix + ":stats:" + id.String() }
func (b *Board) rankKey() string               { return b.prefix + ":points" }

// Apply increments the player's counters and rank in one transaction.
func (b *Board) Apply(ctx context.Context, player uuid.UUID, d host.StatsDelta) <-chan error {
	done := make(chan error, 1)
	go func() {
		key := b.playerKey(player)
		_, err := b.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.HIncrBy(ctx, key, "kills", int64(d.Kills))
			p.HIncrBy(ctx, key, "deaths", int64(d.Deaths))
			p.HIncrBy(ctx, key, "wins", int64(d.Wins))
			p.HIncrBy(ctx, key, "losses", int64(d.Losses))
			p.HIncrBy(ctx, key, "points", int64(d.Points))
			p.HIncrBy(ctx, key, "games", int64(d.Games))
			p.ZIncrBy(ctx, b.rankKey(), float64(d.Points), player.String())
			return nil
		})
		done <- eris.Wrapf(err, "apply stats for %s", player)
	}()
	return done
}

// Stats returns a player's totals; ok is false for an unknown player.
func (b *Board) Stats(ctx context.Context, player uuid.UUID) (host.StatsDelta, bool, error) {
	m, err := b.c.HGetAll(ctx, b.playerKey(player)).Result()
	if err != nil {
		return host.StatsDelta{}, false, eris.Wrap(err, "read stats")
	}
	if len(m) == 0 {
		return host.StatsDelta{}, false, nil
	}
	var d host.StatsDelta
	for field, dst := range map[string]*int{
		"kills":  &d.Kills,
		"deaths": &d.Deaths,
		"wins":   &d.Wins,
		"losses": &d.Losses,
		"points": &d.Points,
		"games":  &d.Games,
	} {
		if v, ok := m[field]; ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return host.StatsDelta{}, false, eris.Wrapf(err, "field %s", field)
			}
			*dst = n
		}
	}
	return d, true, nil
}

// Top returns up to n players by points, best first.
func (b *Board) Top(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := b.c.ZRevRangeWithScores(ctx, b.rankKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, eris.Wrap(err, "read ranking")
	}
	out := make([]Entry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		id, err := uuid.Parse(member)
		if err != nil {
			b.log.Warn().Str("member", member).Msg("skipping malformed ranking entry")
			continue
		}
		out = append(out, Entry{Player: id, Points: int(z.Score)})
	}
	return out, nil
}

// Rank is the zero-based position of player, best first.
func (b *Board) Rank(ctx context.Context, player uuid.UUID) (int, bool, error) {
	r, err := b.c.ZRevRank(ctx, b.rankKey(), player.String()).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, eris.Wrap(err, "read rank")
	}
	return int(r), true, nil
}
