// Package memhost is an in-memory game host: block worlds, players, an event
// bus and recording sinks. The headless server and the tests run on it.
package memhost

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"arenaforge.gg/internal/host"
	"arenaforge.gg/internal/sim/geom"
)

type subscriber struct {
	id       int
	listener any
}

type Host struct {
	mu       sync.Mutex
	worlds   map[string]*World
	players  map[uuid.UUID]*Player
	subs     []subscriber
	nextSub  int
	kits     []host.Kit
	refresh  map[string]int
	stats    map[uuid.UUID]host.StatsDelta
	StatsErr error
}

func New() *Host {
	return &Host{
		worlds:  map[string]*World{},
		players: map[uuid.UUID]*Player{},
		refresh: map[string]int{},
		stats:   map[uuid.UUID]host.StatsDelta{},
	}
}

func (h *Host) AddWorld(w *World) *World {
	h.mu.Lock()
	h.worlds[w.Name()] = w
	h.mu.Unlock()
	return w
}

func (h *Host) World(name string) (host.World, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.worlds[name]
	if !ok {
		return nil, false
	}
	return w, true
}

func (h *Host) AddPlayer(p *Player) *Player {
	h.mu.Lock()
	h.players[p.ID()] = p
	h.mu.Unlock()
	return p
}

func (h *Host) Player(id uuid.UUID) (host.Player, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.players[id]
	if !ok {
		return nil, false
	}
	return p, true
}

func (h *Host) Subscribe(listener any) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSub++
	id := h.nextSub
	h.subs = append(h.subs, subscriber{id: id, listener: listener})
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.subs {
			if s.id == id {
				h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
				return
			}
		}
	}
}

func (h *Host) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Fire delivers ev to every current subscriber in subscription order.
func (h *Host) Fire(ev any) {
	h.mu.Lock()
	subs := make([]subscriber, len(h.subs))
	copy(subs, h.subs)
	h.mu.Unlock()
	for _, s := range subs {
		host.Dispatch(s.listener, ev)
	}
}

func (h *Host) SetKits(kits ...host.Kit) {
	h.mu.Lock()
	h.kits = append([]host.Kit(nil), kits...)
	h.mu.Unlock()
}

func (h *Host) Kits() []host.Kit {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]host.Kit(nil), h.kits...)
}

func (h *Host) Refresh(arena string) {
	h.mu.Lock()
	h.refresh[arena]++
	h.mu.Unlock()
}

func (h *Host) Refreshes(arena string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refresh[arena]
}

// Apply records d on a separate goroutine, like a real storage round trip.
func (h *Host) Apply(_ context.Context, player uuid.UUID, d host.StatsDelta) <-chan error {
	out := make(chan error, 1)
	go func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.StatsErr != nil {
			out <- h.StatsErr
			return
		}
		cur := h.stats[player]
		cur.Kills += d.Kills
		cur.Deaths += d.Deaths
		cur.Wins += d.Wins
		cur.Losses += d.Losses
		cur.Points += d.Points
		cur.Games += d.Games
		h.stats[player] = cur
		out <- nil
	}()
	return out
}

func (h *Host) Stats(player uuid.UUID) host.StatsDelta {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats[player]
}

// The helpers below play the part of the game engine: fire the event, then
// apply whatever survived it.

func (h *Host) BreakBlock(w *World, pos geom.BlockPos, actor uuid.UUID) {
	h.Fire(&host.BlockBreak{Pos: pos, Actor: actor})
	w.SetBlock(pos, Air)
}

func (h *Host) PlaceBlock(w *World, pos geom.BlockPos, s host.BlockState, actor uuid.UUID) {
	h.Fire(&host.BlockPlace{Pos: pos, Actor: actor})
	w.SetBlock(pos, s)
}

// Explode returns the blocks that were actually destroyed.
func (h *Host) Explode(w *World, src host.ExplosionSource, origin geom.BlockPos, blocks []geom.BlockPos, actor uuid.UUID) []geom.BlockPos {
	ev := &host.Explosion{Source: src, Origin: origin, Blocks: append([]geom.BlockPos(nil), blocks...), Actor: actor}
	h.Fire(ev)
	for _, p := range ev.Blocks {
		w.SetBlock(p, Air)
	}
	return ev.Blocks
}

func (h *Host) UseBucket(w *World, clicked, target geom.BlockPos, fill bool, fluid host.BlockState, actor uuid.UUID) {
	h.Fire(&host.BucketUse{Clicked: clicked, Target: target, Fill: fill, Actor: actor})
	if fill {
		w.SetBlock(target, Air)
		return
	}
	w.SetBlock(target, fluid)
}

func (h *Host) ChangeBlock(w *World, kind host.ChangeKind, pos geom.BlockPos, to host.BlockState) {
	h.Fire(&host.BlockChange{Kind: kind, Pos: pos})
	w.SetBlock(pos, to)
}

// BreakHanging reports whether the hanging entity was destroyed.
func (h *Host) BreakHanging(pos geom.BlockPos, actor uuid.UUID) bool {
	ev := &host.HangingBreak{Pos: pos, Actor: actor}
	h.Fire(ev)
	return !ev.Cancelled
}

// OpenChest reports whether the chest should be stocked.
func (h *Host) OpenChest(pos geom.BlockPos, actor uuid.UUID) bool {
	ev := &host.ChestOpen{Pos: pos, Actor: actor}
	h.Fire(ev)
	return ev.Refill
}

func (h *Host) Kill(victim, killer uuid.UUID) {
	h.Fire(&host.PlayerDeath{Victim: victim, Killer: killer})
}
