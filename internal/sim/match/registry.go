package match

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"arenaforge.gg/internal/host"
	"arenaforge.gg/internal/sim/arena"
	"arenaforge.gg/internal/sim/events"
	"arenaforge.gg/internal/sim/sched"
)

// Timings are in heartbeat ticks.
type Timings struct {
	PhaseInterval  int
	LobbyCountdown int
	GameLimit      int
	DoneDuration   int
	WatchInterval  int
	IdleGrace      int
}

// DefaultTimings is a 30s lobby, a 15 minute game, 10s of results and a
// minute of grace for an empty match.
func DefaultTimings(rateHz int) Timings {
	if rateHz <= 0 {
		rateHz = 20
	}
	return Timings{
		PhaseInterval:  rateHz,
		LobbyCountdown: 30 * rateHz,
		GameLimit:      15 * 60 * rateHz,
		DoneDuration:   10 * rateHz,
		WatchInterval:  rateHz,
		IdleGrace:      60 * rateHz,
	}
}

type Env struct {
	Sched   *sched.Scheduler
	Bus     host.Bus
	Kits    host.KitPool
	Signs   host.Signs
	Stats   host.StatsSink
	Events  events.Sink
	Log     zerolog.Logger
	Timings Timings
}

// Factory builds an unregistered match for an arena snapshot.
type Factory func(r *Registry, snap *arena.Snapshot) (*Match, error)

// Registry indexes live matches by id, arena and world. At most one match
// runs per arena.
type Registry struct {
	env Env

	mu      sync.Mutex
	byID    map[uuid.UUID]*Match
	byArena map[string]*Match
	byWorld map[string]map[uuid.UUID]*Match

	createMu sync.Mutex
}

func NewRegistry(env Env) *Registry {
	if env.Timings == (Timings{}) {
		rate := 20
		if env.Sched != nil {
			rate = env.Sched.RateHz()
		}
		env.Timings = DefaultTimings(rate)
	}
	env.Log = env.Log.With().Str("component", "match").Logger()
	return &Registry{
		env:     env,
		byID:    map[uuid.UUID]*Match{},
		byArena: map[string]*Match{},
		byWorld: map[string]map[uuid.UUID]*Match{},
	}
}

// Register indexes m and moves it out of SETUP. A failure leaves no trace.
func (r *Registry) Register(m *Match) error {
	if err := m.refreshSnapshot(); err != nil {
		return eris.Wrap(err, "register match")
	}
	arenaName, world := m.snap.Name, m.snap.World()

	r.mu.Lock()
	if _, ok := r.byArena[arenaName]; ok {
		r.mu.Unlock()
		return eris.Wrapf(ErrArenaBusy, "arena %q", arenaName)
	}
	if _, ok := r.byID[m.id]; ok {
		r.mu.Unlock()
		return eris.Wrapf(ErrDuplicateMatch, "match %s", m.id)
	}
	r.byID[m.id] = m
	r.byArena[arenaName] = m
	if r.byWorld[world] == nil {
		r.byWorld[world] = map[uuid.UUID]*Match{}
	}
	r.byWorld[world][m.id] = m
	r.mu.Unlock()

	if err := m.notifyRegister(); err != nil {
		r.unindex(m)
		return eris.Wrap(err, "register match")
	}
	return nil
}

// Remove unindexes m and tears it down. It reports false when m was not
// registered.
func (r *Registry) Remove(m *Match) bool {
	if !r.unindex(m) {
		return false
	}
	m.notifyRemoval()
	return true
}

func (r *Registry) unindex(m *Match) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byID[m.id]; !ok || cur != m {
		return false
	}
	delete(r.byID, m.id)
	for name, cur := range r.byArena {
		if cur == m {
			delete(r.byArena, name)
		}
	}
	for world, set := range r.byWorld {
		delete(set, m.id)
		if len(set) == 0 {
			delete(r.byWorld, world)
		}
	}
	return true
}

// GetOrCreate returns the arena's match, creating and registering one with
// factory (NewMatch when nil) if there is none.
func (r *Registry) GetOrCreate(a *arena.Arena, factory Factory) (*Match, error) {
	r.createMu.Lock()
	defer r.createMu.Unlock()
	if m, ok := r.ByArena(a.Name()); ok {
		return m, nil
	}
	if factory == nil {
		factory = NewMatch
	}
	m, err := factory(r, a.Snapshot())
	if err != nil {
		return nil, eris.Wrapf(err, "create match for %q", a.Name())
	}
	if err := r.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (r *Registry) ByID(id uuid.UUID) (*Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	return m, ok
}

func (r *Registry) ByArena(name string) (*Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byArena[name]
	return m, ok
}

func (r *Registry) ByWorld(world string) []*Match {
	r.mu.Lock()
	out := make([]*Match, 0, len(r.byWorld[world]))
	for _, m := range r.byWorld[world] {
		out = append(out, m)
	}
	r.mu.Unlock()
	sortMatches(out)
	return out
}

// ByPlayer finds the match a player has joined. Call it from the heartbeat.
func (r *Registry) ByPlayer(player uuid.UUID) (*Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.byID {
		if m.Has(player) {
			return m, true
		}
	}
	return nil, false
}

// All returns live matches ordered by arena name.
func (r *Registry) All() []*Match {
	r.mu.Lock()
	out := make([]*Match, 0, len(r.byID))
	for _, m := range r.byID {
		out = append(out, m)
	}
	r.mu.Unlock()
	sortMatches(out)
	return out
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Shutdown removes every match, resetting their arenas.
func (r *Registry) Shutdown() int {
	n := 0
	for _, m := range r.All() {
		if r.Remove(m) {
			n++
		}
	}
	return n
}

func sortMatches(ms []*Match) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].snap.Name != ms[j].snap.Name {
			return ms[i].snap.Name < ms[j].snap.Name
		}
		return ms[i].id.String() < ms[j].id.String()
	})
}
