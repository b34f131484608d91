package arena

import (
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"arenaforge.gg/internal/host"
	"arenaforge.gg/internal/sim/geom"
	"arenaforge.gg/internal/sim/reset"
	"arenaforge.gg/internal/sim/team"
)

var ErrExists = eris.New("arena already exists")

// Store is the pool of declared arenas.
type Store struct {
	worlds host.Worlds
	bus    host.Bus
	log    zerolog.Logger

	mu     sync.RWMutex
	arenas map[string]*Arena
}

func NewStore(worlds host.Worlds, bus host.Bus, log zerolog.Logger) *Store {
	return &Store{worlds: worlds, bus: bus, log: log, arenas: map[string]*Arena{}}
}

func (s *Store) Create(name string) (*Arena, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, eris.New("arena name is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.arenas[strings.ToLower(name)]; ok {
		return nil, eris.Wrapf(ErrExists, "arena %q", name)
	}
	a := New(name, reset.New(name, s.worlds, s.bus, s.log))
	s.arenas[strings.ToLower(name)] = a
	return a, nil
}

// Get looks an arena up by name, ignoring case.
func (s *Store) Get(name string) (*Arena, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.arenas[strings.ToLower(strings.TrimSpace(name))]
	return a, ok
}

func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := strings.ToLower(strings.TrimSpace(name))
	if _, ok := s.arenas[k]; !ok {
		return false
	}
	delete(s.arenas, k)
	return true
}

// All returns arenas sorted by name.
func (s *Store) All() []*Arena {
	s.mu.RLock()
	out := make([]*Arena, 0, len(s.arenas))
	for _, a := range s.arenas {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

type File struct {
	Arenas []Spec `yaml:"arenas"`
}

type Spec struct {
	Name      string                     `yaml:"name"`
	World     string                     `yaml:"world"`
	Region    RegionSpec                 `yaml:"region"`
	Lobby     *geom.Location             `yaml:"lobby,omitempty"`
	Spectator *geom.Location             `yaml:"spectator,omitempty"`
	Teams     map[string][]geom.Location `yaml:"teams"`
	Settings  Settings                   `yaml:"settings"`
}

type RegionSpec struct {
	Min Corner `yaml:"min"`
	Max Corner `yaml:"max"`
}

type Corner struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

func (c Corner) pos(world string) geom.BlockPos {
	return geom.BlockPos{World: world, X: c.X, Y: c.Y, Z: c.Z}
}

// Normalize fills in defaults: locations inherit the arena world and team
// size and minimum players are at least one.
func (f *File) Normalize() {
	for i := range f.Arenas {
		a := &f.Arenas[i]
		a.Name = strings.TrimSpace(a.Name)
		a.World = strings.TrimSpace(a.World)
		if a.Settings.TeamSize <= 0 {
			a.Settings.TeamSize = 1
		}
		if a.Settings.MinPlayers <= 0 {
			a.Settings.MinPlayers = 2
		}
		fix := func(l *geom.Location) {
			if l != nil && l.World == "" {
				l.World = a.World
			}
		}
		fix(a.Lobby)
		fix(a.Spectator)
		for _, locs := range a.Teams {
			for j := range locs {
				fix(&locs[j])
			}
		}
	}
}

func (f File) Validate() error {
	seen := map[string]bool{}
	for _, a := range f.Arenas {
		if a.Name == "" {
			return eris.New("arena with empty name")
		}
		k := strings.ToLower(a.Name)
		if seen[k] {
			return eris.Errorf("duplicate arena %q", a.Name)
		}
		seen[k] = true
		if a.World == "" {
			return eris.Errorf("arena %q: world is required", a.Name)
		}
		for name := range a.Teams {
			if _, ok := team.Parse(name); !ok {
				return eris.Errorf("arena %q: unknown team %q", a.Name, name)
			}
		}
	}
	return nil
}

// Load reads arenas.yaml into the store. Arenas already present are refused.
func (s *Store) Load(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, eris.Wrap(err, "read arenas")
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return 0, eris.Wrap(err, "arenas.yaml")
	}
	f.Normalize()
	if err := f.Validate(); err != nil {
		return 0, eris.Wrap(err, "arenas.yaml")
	}
	for _, spec := range f.Arenas {
		if _, err := s.Apply(spec); err != nil {
			return 0, err
		}
	}
	return len(f.Arenas), nil
}

// Apply creates one arena from its definition.
func (s *Store) Apply(spec Spec) (*Arena, error) {
	a, err := s.Create(spec.Name)
	if err != nil {
		return nil, err
	}
	a.SetRegion(spec.World, spec.Region.Min.pos(spec.World), spec.Region.Max.pos(spec.World))
	if spec.Lobby != nil {
		a.SetLobby(*spec.Lobby)
	}
	if spec.Spectator != nil {
		a.SetSpectator(*spec.Spectator)
	}
	for name, locs := range spec.Teams {
		id, _ := team.Parse(name)
		for _, l := range locs {
			a.AddSpawn(id, l)
		}
	}
	a.SetTeamSize(spec.Settings.TeamSize)
	a.SetMinPlayers(spec.Settings.MinPlayers)
	a.SetProtection(spec.Settings.Protection)
	for k, v := range spec.Settings.Custom {
		a.SetCustom(k, v)
	}
	s.log.Debug().Str("arena", a.Name()).Bool("complete", a.Snapshot().Complete()).Msg("arena loaded")
	return a, nil
}
