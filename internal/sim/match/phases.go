package match

import (
	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"arenaforge.gg/internal/host"
	"arenaforge.gg/internal/sim/geom"
	"arenaforge.gg/internal/sim/lifecycle"
	"arenaforge.gg/internal/sim/phase"
)

// idlePhase is the lobby. Its clock only runs while enough players are
// present; it ends early once every player is ready.
type idlePhase struct {
	m     *Match
	phase *phase.Phase
}

func (b *idlePhase) HandleJoin(p host.Player) error {
	m := b.m
	if _, ok := m.teams.AutoAssign(p.ID()); !ok {
		return eris.New("no free team slot")
	}
	p.ClearInventory()
	p.SetGameMode(host.Survival)
	return p.Teleport(*m.snap.Lobby)
}

func (b *idlePhase) UpdateTick() error {
	m := b.m
	if m.playerCount() < m.snap.Settings.MinPlayers {
		b.phase.ResetElapsed()
		return nil
	}
	if m.allReady() {
		m.cycler.Next()
		return nil
	}
	rate := 20
	if m.env.Sched != nil {
		rate = m.env.Sched.RateHz()
	}
	secs := (b.phase.Remaining() + rate - 1) / rate
	if secs > 0 && (secs <= 5 || secs%10 == 0) {
		m.Broadcast(MsgCountdown, secs)
	}
	return nil
}

// playingPhase deploys the teams, records terrain changes and ends the game
// when one team is left.
type playingPhase struct {
	m *Match
}

func (b *playingPhase) OnStart() {
	m := b.m
	m.startCapture()
	for _, id := range append(m.order[:0:0], m.order...) {
		mem, ok := m.audience[id]
		if !ok || mem.spectator {
			continue
		}
		if err := m.deploy(mem); err != nil {
			m.log.Warn().Err(err).Str("player", mem.player.Name()).Msg("deploy failed")
			mem.player.Send(KeyJoinFailed)
			m.Leave(mem.player)
		}
	}
	m.Broadcast(MsgStarted)
}

func (b *playingPhase) UpdateTick() error {
	b.m.EvaluateGameEnd()
	return nil
}

// Late joiners watch.
func (b *playingPhase) HandleJoin(p host.Player) error {
	mem, ok := b.m.audience[p.ID()]
	if !ok {
		return eris.New("joining player is not in the audience")
	}
	return b.m.spectate(mem)
}

func (b *playingPhase) Listener() any { return &playingListener{m: b.m} }

type playingListener struct {
	m *Match
}

func (l *playingListener) OnPlayerDeath(e *host.PlayerDeath) {
	l.m.Eliminate(e.Victim, e.Killer)
}

func (l *playingListener) OnChestOpen(e *host.ChestOpen) {
	if l.m.Has(e.Actor) && !l.m.IsSpectator(e.Actor) && l.m.chests.Open(e.Pos) {
		e.Refill = true
	}
}

// donePhase announces the result, books stats and removes the match when
// its time is up.
type donePhase struct {
	m *Match
}

func (b *donePhase) OnStart() {
	m := b.m
	w, hasWinner := m.Winner()
	if hasWinner {
		m.Broadcast(MsgWinner, w.String())
	} else {
		m.Broadcast(MsgDraw)
	}
	for _, id := range m.order {
		t, ok := m.teams.TeamOf(id)
		if !ok {
			continue
		}
		won := hasWinner && t.ID() == w
		m.applyStats(m.audience[id], won, hasWinner && !won)
	}
}

func (b *donePhase) UpdateTick() error { return nil }

func (b *donePhase) HandleJoin(host.Player) error {
	return eris.New("match is over")
}

func (b *donePhase) OnStop(reason lifecycle.StopReason) {
	if reason == lifecycle.ReasonUnknown {
		return
	}
	b.m.reg.Remove(b.m)
}

func (m *Match) startCapture() {
	src := m.snap.Source()
	terrain := src.Terrain()
	if terrain == nil || m.snap.Region == nil {
		return
	}
	reg, id := m.reg, m.id
	terrain.Capture(*m.snap.Region, func(actor uuid.UUID) bool {
		cur, ok := reg.ByID(id)
		return ok && cur.Has(actor) && cur.state.AtLeast(lifecycle.Playing)
	})
}

func (m *Match) deploy(mem *member) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("deploy panicked: %v", r)
		}
	}()
	p := mem.player
	t, ok := m.teams.AutoAssign(p.ID())
	if !ok {
		return m.spectate(mem)
	}
	slot := 0
	for i, id := range t.Members() {
		if id == p.ID() {
			slot = i
		}
	}
	loc, ok := m.snap.Spawn(t.ID(), slot)
	if !ok {
		return eris.Errorf("team %s has no spawn", t.ID())
	}
	p.ClearInventory()
	p.SetGameMode(host.Survival)
	if err := p.Teleport(loc); err != nil {
		return eris.Wrap(err, "teleport to spawn")
	}
	if len(m.kits) > 0 {
		if err := p.GiveKit(m.kits[0]); err != nil {
			return eris.Wrapf(err, "give kit %q", m.kits[0].Name)
		}
	}
	return nil
}

// Chests remembers which containers were already stocked this match.
type Chests struct {
	opened map[geom.BlockPos]bool
}

func newChests() *Chests { return &Chests{opened: map[geom.BlockPos]bool{}} }

// Open reports true the first time pos is opened.
func (c *Chests) Open(pos geom.BlockPos) bool {
	if c.opened[pos] {
		return false
	}
	c.opened[pos] = true
	return true
}

func (c *Chests) Opened() int { return len(c.opened) }

func (c *Chests) Reset() { c.opened = map[geom.BlockPos]bool{} }
