package reset

import (
	"github.com/google/uuid"

	"arenaforge.gg/internal/host"
	"arenaforge.gg/internal/sim/geom"
)

// listener turns host block events into snapshots. Events arrive before the
// host applies them, so the world still holds the prior state.
type listener struct {
	r *ArenaReset
}

// attributed: a change has to happen inside the region, and a player-caused
// one also needs the gate.
func (l *listener) attributed(actor uuid.UUID, pos geom.BlockPos) (geom.Region, bool) {
	region, gate, capturing := l.r.scope()
	if !capturing || !region.Contains(pos) {
		return region, false
	}
	if actor != uuid.Nil {
		return region, gate != nil && gate(actor)
	}
	return region, true
}

func (l *listener) world(pos geom.BlockPos) (host.World, bool) {
	return l.r.worlds.World(pos.World)
}

func (l *listener) capture(w host.World, pos geom.BlockPos) {
	l.r.record(pos, w.BlockAt(pos))
}

// flood captures every connected block reachable from start through the
// 3x3x3 neighborhood without leaving region.
func (l *listener) flood(w host.World, region geom.Region, start geom.BlockPos) {
	seen := map[geom.BlockPos]bool{start: true}
	queue := []geom.BlockPos{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range cur.Neighborhood() {
			if seen[n] || !region.Contains(n) {
				continue
			}
			seen[n] = true
			st := w.BlockAt(n)
			if !w.IsConnected(st) {
				continue
			}
			l.r.record(n, st)
			queue = append(queue, n)
		}
	}
}

func (l *listener) OnBlockBreak(e *host.BlockBreak) {
	region, ok := l.attributed(e.Actor, e.Pos)
	if !ok {
		return
	}
	w, ok := l.world(e.Pos)
	if !ok {
		return
	}
	l.capture(w, e.Pos)
	l.flood(w, region, e.Pos)
}

func (l *listener) OnBlockPlace(e *host.BlockPlace) {
	if _, ok := l.attributed(e.Actor, e.Pos); !ok {
		return
	}
	if e.Replaced != "" {
		l.r.record(e.Pos, e.Replaced)
		return
	}
	if w, ok := l.world(e.Pos); ok {
		l.capture(w, e.Pos)
	}
}

// OnExplosion records blocks inside the region. Once the first inside block
// has been seen, later blocks outside the region are dropped from the blast;
// outside blocks listed before it are left in and are not recorded.
func (l *listener) OnExplosion(e *host.Explosion) {
	region, ok := l.attributed(e.Actor, e.Origin)
	if !ok {
		return
	}
	w, ok := l.world(e.Origin)
	if !ok {
		return
	}
	inside := false
	kept := make([]geom.BlockPos, 0, len(e.Blocks))
	for _, p := range e.Blocks {
		if region.Contains(p) {
			inside = true
			l.capture(w, p)
			l.flood(w, region, p)
			kept = append(kept, p)
			continue
		}
		if inside {
			continue
		}
		kept = append(kept, p)
	}
	e.Blocks = kept
}

func (l *listener) OnBlockChange(e *host.BlockChange) {
	if _, ok := l.attributed(uuid.Nil, e.Pos); !ok {
		return
	}
	if w, ok := l.world(e.Pos); ok {
		l.capture(w, e.Pos)
	}
}

func (l *listener) OnBucketUse(e *host.BucketUse) {
	region, ok := l.attributed(e.Actor, e.Clicked)
	if !ok {
		return
	}
	w, ok := l.world(e.Clicked)
	if !ok {
		return
	}
	l.capture(w, e.Clicked)
	if region.Contains(e.Target) {
		l.capture(w, e.Target)
	}
}

// Hanging entities are not blocks and cannot be replayed, so they are kept
// intact inside the region.
func (l *listener) OnHangingBreak(e *host.HangingBreak) {
	region, _, capturing := l.r.scope()
	if capturing && region.Contains(e.Pos) {
		e.Cancelled = true
	}
}
