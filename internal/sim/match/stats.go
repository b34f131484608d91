package match

import (
	"context"
	"math"
	"time"

	"arenaforge.gg/internal/host"
)

const statsTimeout = 10 * time.Second

// CalculatePoints is the ranking formula: 2 per kill, 10 per win, -5 per
// loss and -3 per death, rounded up.
func CalculatePoints(kills, wins, losses, deaths int) int {
	return int(math.Ceil(2*float64(kills) + 10*float64(wins) - 5*float64(losses) - 3*float64(deaths)))
}

// applyStats hands the member's result to the stats sink. The completion is
// handled back on the heartbeat.
func (m *Match) applyStats(mem *member, won, lost bool) host.StatsDelta {
	d := host.StatsDelta{Kills: mem.kills, Deaths: mem.deaths, Games: 1}
	if won {
		d.Wins = 1
	}
	if lost {
		d.Losses = 1
	}
	d.Points = CalculatePoints(d.Kills, d.Wins, d.Losses, d.Deaths)
	if m.env.Stats == nil || m.env.Sched == nil {
		return d
	}

	name := mem.player.Name()
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	done := m.env.Stats.Apply(ctx, mem.player.ID(), d)
	go func() {
		defer cancel()
		var err error
		select {
		case err = <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}
		m.env.Sched.Post(func() {
			if err != nil {
				m.log.Warn().Err(err).Str("player", name).Msg("stats not saved")
				return
			}
			m.log.Debug().Str("player", name).Int("points", d.Points).Msg("stats saved")
		})
	}()
	return d
}
