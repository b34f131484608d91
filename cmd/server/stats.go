package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"arenaforge.gg/internal/config"
	"arenaforge.gg/internal/host"
	"arenaforge.gg/internal/persistence/leaderboard"
	"arenaforge.gg/internal/persistence/statsdb"
)

type rankRow struct {
	Player uuid.UUID `json:"player"`
	Points int       `json:"points"`
}

// statsBackend is the configured stats sink plus its ranking query.
type statsBackend struct {
	name  string
	sink  host.StatsSink
	top   func(ctx context.Context, n int) ([]rankRow, error)
	close func() error
}

func (b *statsBackend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

func openStats(tune config.Tuning, fallback host.StatsSink, log zerolog.Logger) (*statsBackend, error) {
	switch tune.Stats {
	case "sqlite":
		db, err := statsdb.Open(statsPath(tune.DataDir), log)
		if err != nil {
			return nil, err
		}
		return &statsBackend{
			name: "sqlite",
			sink: db,
			top: func(ctx context.Context, n int) ([]rankRow, error) {
				recs, err := db.Top(ctx, n)
				if err != nil {
					return nil, err
				}
				out := make([]rankRow, 0, len(recs))
				for _, r := range recs {
					out = append(out, rankRow{Player: r.Player, Points: r.Points})
				}
				return out, nil
			},
			close: db.Close,
		}, nil
	case "redis":
		c := redis.NewClient(&redis.Options{Addr: tune.RedisAddr})
		b := leaderboard.New(c, tune.RedisKey, log)
		return &statsBackend{
			name: "redis",
			sink: b,
			top: func(ctx context.Context, n int) ([]rankRow, error) {
				es, err := b.Top(ctx, n)
				if err != nil {
					return nil, err
				}
				out := make([]rankRow, 0, len(es))
				for _, e := range es {
					out = append(out, rankRow{Player: e.Player, Points: e.Points})
				}
				return out, nil
			},
			close: c.Close,
		}, nil
	default:
		return &statsBackend{name: "none", sink: fallback}, nil
	}
}
