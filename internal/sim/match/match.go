// Package match runs arena matches: the registry of live matches, the match
// aggregate with its audience and teams, the lobby/playing/done phases and
// the idle reaper.
package match

import (
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"arenaforge.gg/internal/host"
	"arenaforge.gg/internal/sim/arena"
	"arenaforge.gg/internal/sim/events"
	"arenaforge.gg/internal/sim/lifecycle"
	"arenaforge.gg/internal/sim/phase"
	"arenaforge.gg/internal/sim/reset"
	"arenaforge.gg/internal/sim/team"
)

type member struct {
	player    host.Player
	saved     host.PlayerState
	spectator bool
	ready     bool
	kills     int
	deaths    int
}

// Match is one play-through of an arena. Everything but the registry indexes
// is owned by the heartbeat goroutine.
type Match struct {
	id  uuid.UUID
	reg *Registry
	env Env
	log zerolog.Logger

	snap  *arena.Snapshot
	state lifecycle.State

	audience  map[uuid.UUID]*member
	order     []uuid.UUID
	teams     *team.Map
	kits      []host.Kit
	chests    *Chests
	winner    team.ID
	hasWinner bool

	cycler *phase.Cycler
	watch  *WatchTask
}

// NewMatch builds an unregistered match for snap. It is the default factory
// of Registry.GetOrCreate.
func NewMatch(r *Registry, snap *arena.Snapshot) (*Match, error) {
	if snap == nil || snap.Source() == nil {
		return nil, eris.New("match needs an arena snapshot")
	}
	m := &Match{
		id:       uuid.New(),
		reg:      r,
		env:      r.env,
		snap:     snap,
		audience: map[uuid.UUID]*member{},
		teams:    team.NewMap(nil, 1),
		chests:   newChests(),
	}
	m.log = r.env.Log.With().Str("match", m.id.String()[:8]).Str("arena", snap.Name).Logger()

	t := r.env.Timings
	idle := &idlePhase{m: m}
	idle.phase = phase.New(lifecycle.Idle, t.LobbyCountdown, t.PhaseInterval, idle)
	playing := &playingPhase{m: m}
	done := &donePhase{m: m}

	id := m.id
	handle := func() (phase.Owner, bool) {
		cur, ok := r.ByID(id)
		if !ok {
			return nil, false
		}
		return cur, true
	}
	c, err := phase.NewCycler(handle, phase.Env{Sched: r.env.Sched, Bus: r.env.Bus, Log: m.log},
		idle.phase,
		phase.New(lifecycle.Playing, t.GameLimit, t.PhaseInterval, playing),
		phase.New(lifecycle.Done, t.DoneDuration, t.PhaseInterval, done),
	)
	if err != nil {
		return nil, eris.Wrap(err, "build phases")
	}
	m.cycler = c
	m.watch = newWatchTask(r, id, t.WatchInterval, t.IdleGrace)
	return m, nil
}

func (m *Match) ID() uuid.UUID             { return m.id }
func (m *Match) Arena() *arena.Snapshot    { return m.snap }
func (m *Match) State() lifecycle.State    { return m.state }
func (m *Match) Teams() *team.Map          { return m.teams }
func (m *Match) Cycler() *phase.Cycler     { return m.cycler }
func (m *Match) Kits() []host.Kit          { return m.kits }
func (m *Match) Chests() *Chests           { return m.chests }
func (m *Match) Size() int                 { return len(m.audience) }
func (m *Match) Has(player uuid.UUID) bool { return m.audience[player] != nil }

func (m *Match) Winner() (team.ID, bool) { return m.winner, m.hasWinner }

// MaxCapacity is the number of team slots; spectators do not count.
func (m *Match) MaxCapacity() int { return m.teams.Capacity() }

// SetState is called by the cycler on every transition.
func (m *Match) SetState(s lifecycle.State) {
	prev := m.state
	m.state = s
	m.log.Info().Stringer("from", prev).Stringer("to", s).Msg("state changed")
	m.emit(events.Event{Type: events.MatchState, Data: map[string]any{"from": prev.String()}})
	if m.env.Signs != nil {
		m.env.Signs.Refresh(m.snap.Name)
	}
}

// Player resolves an audience member, so a Match can serve as host.Players
// for team broadcasts.
func (m *Match) Player(id uuid.UUID) (host.Player, bool) {
	mem, ok := m.audience[id]
	if !ok {
		return nil, false
	}
	return mem.player, true
}

// Audience returns the joined players in join order.
func (m *Match) Audience() []host.Player {
	out := make([]host.Player, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.audience[id].player)
	}
	return out
}

func (m *Match) IsSpectator(player uuid.UUID) bool {
	mem, ok := m.audience[player]
	return ok && mem.spectator
}

func (m *Match) Broadcast(key string, args ...any) {
	for _, id := range m.order {
		m.audience[id].player.Send(key, args...)
	}
}

// refreshSnapshot swaps in a fresh copy of the arena's setup. Register calls
// it before indexing so the world index and the match agree.
func (m *Match) refreshSnapshot() error {
	if !m.snap.Complete() {
		return eris.Wrapf(ErrIncomplete, "arena %q", m.snap.Name)
	}
	m.snap = m.snap.Source().Snapshot()
	if !m.snap.Complete() {
		return eris.Wrapf(ErrIncomplete, "arena %q", m.snap.Name)
	}
	return nil
}

func (m *Match) notifyRegister() error {
	m.teams = team.NewMap(m.snap.PopulatedTeams(), m.snap.Settings.TeamSize)
	if m.env.Kits != nil {
		m.kits = m.env.Kits.Kits()
	}
	m.emit(events.Event{Type: events.MatchRegistered, Data: map[string]any{"capacity": m.MaxCapacity()}})
	m.cycler.Jump(lifecycle.Idle)
	m.watch.Start()
	return nil
}

func (m *Match) notifyRemoval() {
	m.watch.Stop()
	m.cycler.Shutdown()
	for _, id := range append([]uuid.UUID(nil), m.order...) {
		if mem, ok := m.audience[id]; ok {
			m.Leave(mem.player)
		}
	}
	m.chests.Reset()

	src := m.snap.Source()
	if src == nil {
		panic("match: arena snapshot lost its source arena")
	}
	var res reset.Result
	if terrain := src.Terrain(); terrain != nil {
		res = terrain.Reset()
	}
	m.emit(events.Event{Type: events.ArenaReset, Data: map[string]any{
		"blocks": res.Blocks, "items": res.Items, "took_ms": res.Took.Milliseconds(),
	}})
	if m.env.Signs != nil {
		m.env.Signs.Refresh(m.snap.Name)
	}
	m.log.Info().Int("blocks", res.Blocks).Msg("match removed")
	m.emit(events.Event{Type: events.MatchRemoved})
}

// Join adds p to the audience. Rejections are *RuleError values whose key has
// already been sent to p.
func (m *Match) Join(p host.Player) error {
	id := p.ID()
	if m.Has(id) {
		return m.reject(p, KeyAlreadyJoined)
	}
	if other, ok := m.reg.ByPlayer(id); ok && other != m {
		return m.reject(p, KeyInOtherMatch)
	}
	if !m.state.Joinable() {
		return m.reject(p, KeyNotJoinable)
	}
	if m.state == lifecycle.Idle && m.playerCount() >= m.MaxCapacity() {
		victim := m.evictable()
		if !p.HasPriority() || victim == nil {
			return m.reject(p, KeyFull)
		}
		victim.player.Send(KeyEvicted)
		m.emit(events.Event{Type: events.PlayerEvicted, Player: victim.player.ID().String()})
		m.Leave(victim.player)
	}

	if err := m.admit(p); err != nil {
		m.log.Warn().Err(err).Str("player", p.Name()).Msg("join failed")
		m.Leave(p)
		p.Send(KeyJoinFailed)
		return &RuleError{Key: KeyJoinFailed, Err: err}
	}
	return nil
}

func (m *Match) reject(p host.Player, key string) error {
	p.Send(key)
	return rule(key)
}

func (m *Match) admit(p host.Player) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("join panicked: %v", r)
		}
	}()
	id := p.ID()
	m.audience[id] = &member{player: p, saved: p.Capture()}
	m.order = append(m.order, id)

	if ph := m.cycler.Active(); ph != nil {
		if err := ph.HandleJoin(p); err != nil {
			return err
		}
	}
	mem := m.audience[id]
	if mem == nil {
		return eris.New("player left while joining")
	}
	ev := events.Event{Type: events.PlayerJoined, Player: id.String()}
	if t, ok := m.teams.TeamOf(id); ok {
		ev.Team = t.ID().String()
	}
	m.emit(ev)
	if !mem.spectator {
		m.Broadcast(MsgJoined, p.Name(), m.playerCount(), m.MaxCapacity())
	}
	return nil
}

// Leave removes p from the match and restores what it had before joining.
// It reports false when p was not in the audience.
func (m *Match) Leave(p host.Player) bool {
	id := p.ID()
	mem, ok := m.audience[id]
	if !ok {
		return false
	}
	m.teams.Remove(id)
	delete(m.audience, id)
	for i, o := range m.order {
		if o == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if !mem.spectator {
		m.Broadcast(MsgLeft, p.Name(), m.playerCount(), m.MaxCapacity())
	}
	if ph := m.cycler.Active(); ph != nil {
		ph.HandleLeave(p)
	}
	mem.spectator = false

	if mem.saved == nil {
		panic("match: no saved state for leaving player " + id.String())
	}
	if err := p.Restore(mem.saved); err != nil {
		m.log.Error().Err(err).Str("player", p.Name()).Msg("restore failed")
	}
	m.emit(events.Event{Type: events.PlayerLeft, Player: id.String()})
	return true
}

// SetReady marks a lobby player ready or not.
func (m *Match) SetReady(player uuid.UUID, ready bool) error {
	mem, ok := m.audience[player]
	if !ok {
		return rule(KeyNotInMatch)
	}
	if m.state != lifecycle.Idle {
		return rule(KeyNotLobby)
	}
	mem.ready = ready
	return nil
}

// Eliminate records a death while playing and turns the victim into a
// spectator. killer may be uuid.Nil.
func (m *Match) Eliminate(victim, killer uuid.UUID) bool {
	if m.state != lifecycle.Playing {
		return false
	}
	mem, ok := m.audience[victim]
	if !ok || mem.spectator {
		return false
	}
	t, ok := m.teams.TeamOf(victim)
	if !ok || !t.MarkDead(victim) {
		return false
	}
	mem.deaths++
	killerName := ""
	if k, ok := m.audience[killer]; ok && killer != victim {
		k.kills++
		killerName = k.player.Name()
	}
	if err := m.spectate(mem); err != nil {
		m.log.Warn().Err(err).Str("player", mem.player.Name()).Msg("spectate failed")
	}
	m.Broadcast(MsgEliminated, mem.player.Name(), killerName)
	m.emit(events.Event{Type: events.PlayerEliminate, Player: victim.String(), Team: t.ID().String(),
		Data: map[string]any{"killer": killerName}})
	m.EvaluateGameEnd()
	return true
}

// EvaluateGameEnd finishes the game once at most one team has living
// members. The surviving team, if any, wins.
func (m *Match) EvaluateGameEnd() bool {
	if m.state != lifecycle.Playing {
		return false
	}
	alive := m.teams.AliveTeams()
	if len(alive) > 1 {
		return false
	}
	if len(alive) == 1 && !m.hasWinner {
		m.winner = alive[0].ID()
		m.hasWinner = true
		m.emit(events.Event{Type: events.MatchWinner, Team: m.winner.String()})
	}
	m.cycler.Jump(lifecycle.Done)
	return true
}

func (m *Match) spectate(mem *member) error {
	mem.spectator = true
	mem.player.SetGameMode(host.Spectator)
	return mem.player.Teleport(*m.snap.Spectator)
}

func (m *Match) playerCount() int {
	n := 0
	for _, mem := range m.audience {
		if !mem.spectator {
			n++
		}
	}
	return n
}

func (m *Match) allReady() bool {
	n := 0
	for _, mem := range m.audience {
		if mem.spectator {
			continue
		}
		if !mem.ready {
			return false
		}
		n++
	}
	return n > 0
}

func (m *Match) anyOnline() bool {
	for _, mem := range m.audience {
		if mem.player.Online() {
			return true
		}
	}
	return false
}

// evictable picks the latest non-priority player.
func (m *Match) evictable() *member {
	for i := len(m.order) - 1; i >= 0; i-- {
		mem := m.audience[m.order[i]]
		if !mem.spectator && !mem.player.HasPriority() {
			return mem
		}
	}
	return nil
}

func (m *Match) emit(e events.Event) {
	if m.env.Events == nil {
		return
	}
	if m.env.Sched != nil {
		e.Tick = m.env.Sched.Tick()
	}
	e.Time = time.Now().UTC()
	e.Match = m.id.String()
	e.Arena = m.snap.Name
	e.State = m.state.String()
	m.env.Events.Emit(e)
}
