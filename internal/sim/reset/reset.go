// Package reset records terrain changes inside an arena while a match is
// being played and writes the prior blocks back afterwards.
package reset

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"arenaforge.gg/internal/host"
	"arenaforge.gg/internal/sim/geom"
)

// ItemSweepMargin grows the region when clearing dropped items, so loot that
// fell just past the edge is removed as well.
const ItemSweepMargin = 4.0

// BlockSnapshot is the state a block had before the match first touched it.
// Snapshots are keyed by Pos.
type BlockSnapshot struct {
	Pos   geom.BlockPos
	State host.BlockState
}

// Gate reports whether an acting player belongs to a match whose changes
// must be recorded.
type Gate func(actor uuid.UUID) bool

// Result describes one replay.
type Result struct {
	Blocks int
	Items  int
	Took   time.Duration
}

type ArenaReset struct {
	arena  string
	worlds host.Worlds
	bus    host.Bus
	log    zerolog.Logger

	mu        sync.Mutex
	region    geom.Region
	gate      Gate
	snaps     map[geom.BlockPos]host.BlockState
	cancel    func()
	capturing bool
	dirty     bool
}

func New(arena string, worlds host.Worlds, bus host.Bus, log zerolog.Logger) *ArenaReset {
	return &ArenaReset{
		arena:  arena,
		worlds: worlds,
		bus:    bus,
		log:    log.With().Str("component", "reset").Str("arena", arena).Logger(),
		snaps:  map[geom.BlockPos]host.BlockState{},
	}
}

func (r *ArenaReset) Arena() string { return r.arena }

// Capture drops any stale snapshots and starts recording changes in region.
func (r *ArenaReset) Capture(region geom.Region, gate Gate) {
	r.mu.Lock()
	old := r.cancel
	r.cancel = nil
	r.region = region
	r.gate = gate
	r.snaps = map[geom.BlockPos]host.BlockState{}
	r.capturing = true
	r.dirty = false
	r.mu.Unlock()

	if old != nil {
		old()
	}
	cancel := r.bus.Subscribe(&listener{r: r})

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
	r.log.Debug().Str("region", region.Min.String()+".."+region.Max.String()).Msg("capture started")
}

func (r *ArenaReset) Capturing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capturing
}

func (r *ArenaReset) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

// Snapshots returns the recorded blocks ordered by position.
func (r *ArenaReset) Snapshots() []BlockSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedLocked()
}

// Checkpoint returns the snapshots when anything was recorded since the last
// checkpoint, and clears the dirty mark.
func (r *ArenaReset) Checkpoint() ([]BlockSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.dirty {
		return nil, false
	}
	r.dirty = false
	return r.sortedLocked(), true
}

// Reset stops capturing, writes every prior block back and removes dropped
// items around the region. With nothing recorded it does no work.
func (r *ArenaReset) Reset() Result {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.capturing = false
	snaps := r.snaps
	r.snaps = map[geom.BlockPos]host.BlockState{}
	r.dirty = false
	region := r.region
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if len(snaps) == 0 {
		return Result{}
	}

	start := time.Now()
	res := Result{Blocks: r.replay(snaps)}
	if w, ok := r.worlds.World(region.World); ok {
		for _, id := range w.DroppedItems(region.Bounds(ItemSweepMargin)) {
			if w.RemoveEntity(id) {
				res.Items++
			}
		}
	}
	res.Took = time.Since(start)
	r.log.Debug().Int("blocks", res.Blocks).Int("items", res.Items).Dur("took", res.Took).Msg("arena reset")
	return res
}

// Recover writes back snapshots left by an interrupted match.
func (r *ArenaReset) Recover(list []BlockSnapshot) int {
	m := make(map[geom.BlockPos]host.BlockState, len(list))
	for _, s := range list {
		if _, ok := m[s.Pos]; !ok {
			m[s.Pos] = s.State
		}
	}
	n := r.replay(m)
	r.log.Info().Int("blocks", n).Msg("recovered unfinished reset")
	return n
}

func (r *ArenaReset) replay(snaps map[geom.BlockPos]host.BlockState) int {
	n := 0
	for pos, st := range snaps {
		w, ok := r.worlds.World(pos.World)
		if !ok {
			r.log.Warn().Str("world", pos.World).Msg("world gone, snapshot dropped")
			continue
		}
		w.SetBlock(pos, st)
		n++
	}
	return n
}

func (r *ArenaReset) sortedLocked() []BlockSnapshot {
	out := make([]BlockSnapshot, 0, len(r.snaps))
	for pos, st := range r.snaps {
		out = append(out, BlockSnapshot{Pos: pos, State: st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos.Less(out[j].Pos) })
	return out
}

// record keeps the first state seen for pos.
func (r *ArenaReset) record(pos geom.BlockPos, st host.BlockState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.capturing {
		return
	}
	if _, ok := r.snaps[pos]; ok {
		return
	}
	r.snaps[pos] = st
	r.dirty = true
}

func (r *ArenaReset) scope() (geom.Region, Gate, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.region, r.gate, r.capturing
}
