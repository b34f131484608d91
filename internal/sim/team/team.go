// Package team holds the per-match team rosters.
package team

import (
	"strings"

	"github.com/google/uuid"

	"arenaforge.gg/internal/host"
)

type ID int

const (
	Red ID = iota
	Blue
	Green
	Yellow
	Aqua
	White
	Pink
	Gray
	idCount
)

var names = [...]string{"RED", "BLUE", "GREEN", "YELLOW", "AQUA", "WHITE", "PINK", "GRAY"}

func (id ID) String() string {
	if id < 0 || id >= idCount {
		return "NONE"
	}
	return names[id]
}

func (id ID) Valid() bool { return id >= 0 && id < idCount }

// Parse accepts a team name in any case.
func Parse(s string) (ID, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return ID(i), true
		}
	}
	return -1, false
}

func All() []ID {
	out := make([]ID, 0, idCount)
	for id := Red; id < idCount; id++ {
		out = append(out, id)
	}
	return out
}

// Team is a capacity-bounded roster. Members stay on the roster after dying;
// Dead lists them and Alive excludes them.
type Team struct {
	id       ID
	capacity int
	members  []uuid.UUID
	dead     map[uuid.UUID]bool
}

func New(id ID, capacity int) *Team {
	if capacity < 1 {
		capacity = 1
	}
	return &Team{id: id, capacity: capacity, dead: map[uuid.UUID]bool{}}
}

func (t *Team) ID() ID        { return t.id }
func (t *Team) Capacity() int { return t.capacity }
func (t *Team) Len() int      { return len(t.members) }
func (t *Team) Full() bool    { return len(t.members) >= t.capacity }

func (t *Team) Has(p uuid.UUID) bool {
	for _, m := range t.members {
		if m == p {
			return true
		}
	}
	return false
}

// Add reports false when the team is full or p is already on it.
func (t *Team) Add(p uuid.UUID) bool {
	if t.Full() || t.Has(p) {
		return false
	}
	t.members = append(t.members, p)
	return true
}

func (t *Team) Remove(p uuid.UUID) bool {
	for i, m := range t.members {
		if m == p {
			t.members = append(t.members[:i], t.members[i+1:]...)
			delete(t.dead, p)
			return true
		}
	}
	return false
}

func (t *Team) MarkDead(p uuid.UUID) bool {
	if !t.Has(p) || t.dead[p] {
		return false
	}
	t.dead[p] = true
	return true
}

func (t *Team) IsDead(p uuid.UUID) bool { return t.dead[p] }

// Members returns the roster in join order.
func (t *Team) Members() []uuid.UUID {
	return append([]uuid.UUID(nil), t.members...)
}

func (t *Team) Alive() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(t.members))
	for _, m := range t.members {
		if !t.dead[m] {
			out = append(out, m)
		}
	}
	return out
}

func (t *Team) Dead() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(t.dead))
	for _, m := range t.members {
		if t.dead[m] {
			out = append(out, m)
		}
	}
	return out
}

// Broadcast sends a message to every member players can resolve.
func (t *Team) Broadcast(players host.Players, key string, args ...any) {
	for _, m := range t.members {
		if p, ok := players.Player(m); ok {
			p.Send(key, args...)
		}
	}
}
