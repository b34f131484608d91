// Package arena holds arena definitions. An Arena is live and editable; a
// match plays on a Snapshot copied from it.
package arena

import (
	"sort"
	"sync"

	"arenaforge.gg/internal/sim/geom"
	"arenaforge.gg/internal/sim/reset"
	"arenaforge.gg/internal/sim/team"
)

type Settings struct {
	TeamSize   int  `yaml:"team_size"`
	MinPlayers int  `yaml:"min_players"`
	Protection bool `yaml:"protection"`
	// Custom holds per-arena rule values read by game modes.
	Custom map[string]string `yaml:"custom,omitempty"`
}

func (s Settings) clone() Settings {
	out := s
	if s.Custom != nil {
		out.Custom = make(map[string]string, len(s.Custom))
		for k, v := range s.Custom {
			out.Custom[k] = v
		}
	}
	return out
}

type Arena struct {
	name  string
	reset *reset.ArenaReset

	mu        sync.RWMutex
	region    *geom.Region
	lobby     *geom.Location
	spectator *geom.Location
	spawns    map[team.ID][]geom.Location
	settings  Settings
}

func New(name string, r *reset.ArenaReset) *Arena {
	return &Arena{
		name:     name,
		reset:    r,
		spawns:   map[team.ID][]geom.Location{},
		settings: Settings{TeamSize: 1, MinPlayers: 2},
	}
}

func (a *Arena) Name() string { return a.name }

// Terrain is the capture/rollback engine bound to this arena.
func (a *Arena) Terrain() *reset.ArenaReset { return a.reset }

func (a *Arena) SetRegion(world string, c1, c2 geom.BlockPos) {
	r := geom.NewRegion(world, c1, c2)
	a.mu.Lock()
	a.region = &r
	a.mu.Unlock()
}

func (a *Arena) SetLobby(l geom.Location) {
	a.mu.Lock()
	a.lobby = &l
	a.mu.Unlock()
}

func (a *Arena) SetSpectator(l geom.Location) {
	a.mu.Lock()
	a.spectator = &l
	a.mu.Unlock()
}

func (a *Arena) AddSpawn(id team.ID, l geom.Location) {
	a.mu.Lock()
	a.spawns[id] = append(a.spawns[id], l)
	a.mu.Unlock()
}

func (a *Arena) ClearSpawns(id team.ID) {
	a.mu.Lock()
	delete(a.spawns, id)
	a.mu.Unlock()
}

func (a *Arena) SetTeamSize(n int) {
	a.mu.Lock()
	a.settings.TeamSize = max(n, 1)
	a.mu.Unlock()
}

func (a *Arena) SetMinPlayers(n int) {
	a.mu.Lock()
	a.settings.MinPlayers = max(n, 1)
	a.mu.Unlock()
}

func (a *Arena) SetProtection(on bool) {
	a.mu.Lock()
	a.settings.Protection = on
	a.mu.Unlock()
}

func (a *Arena) SetCustom(key, value string) {
	a.mu.Lock()
	if a.settings.Custom == nil {
		a.settings.Custom = map[string]string{}
	}
	a.settings.Custom[key] = value
	a.mu.Unlock()
}

// Snapshot copies the arena as it is now.
func (a *Arena) Snapshot() *Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := &Snapshot{
		Name:     a.name,
		Spawns:   make(map[team.ID][]geom.Location, len(a.spawns)),
		Settings: a.settings.clone(),
		source:   a,
	}
	if a.region != nil {
		r := *a.region
		s.Region = &r
	}
	if a.lobby != nil {
		l := *a.lobby
		s.Lobby = &l
	}
	if a.spectator != nil {
		l := *a.spectator
		s.Spectator = &l
	}
	for id, locs := range a.spawns {
		s.Spawns[id] = append([]geom.Location(nil), locs...)
	}
	return s
}

// Snapshot is a point-in-time copy of an Arena. It is never mutated.
type Snapshot struct {
	Name      string
	Region    *geom.Region
	Lobby     *geom.Location
	Spectator *geom.Location
	Spawns    map[team.ID][]geom.Location
	Settings  Settings

	source *Arena
}

// Source is the live arena the snapshot was taken from.
func (s *Snapshot) Source() *Arena { return s.source }

func (s *Snapshot) World() string {
	if s.Region == nil {
		return ""
	}
	return s.Region.World
}

// PopulatedTeams lists teams with at least one spawn point, by id.
func (s *Snapshot) PopulatedTeams() []team.ID {
	out := make([]team.ID, 0, len(s.Spawns))
	for id, locs := range s.Spawns {
		if len(locs) > 0 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Complete reports whether the arena can host a match.
func (s *Snapshot) Complete() bool {
	return s.Region != nil && s.Lobby != nil && s.Spectator != nil && len(s.PopulatedTeams()) > 0
}

// MaxPlayers is the number of roster slots a match on this arena has.
func (s *Snapshot) MaxPlayers() int {
	return len(s.PopulatedTeams()) * max(s.Settings.TeamSize, 1)
}

// Spawn returns the n-th spawn of a team, wrapping around.
func (s *Snapshot) Spawn(id team.ID, n int) (geom.Location, bool) {
	locs := s.Spawns[id]
	if len(locs) == 0 {
		return geom.Location{}, false
	}
	return locs[n%len(locs)], true
}
