package team

import (
	"sort"

	"github.com/google/uuid"
)

// Map is the fixed set of teams of one match. Teams are chosen at creation;
// only rosters change afterwards.
type Map struct {
	teams    []*Team
	byPlayer map[uuid.UUID]*Team
}

// NewMap creates one team per distinct id, ordered by id.
func NewMap(ids []ID, capacity int) *Map {
	seen := map[ID]bool{}
	uniq := make([]ID, 0, len(ids))
	for _, id := range ids {
		if id.Valid() && !seen[id] {
			seen[id] = true
			uniq = append(uniq, id)
		}
	}
	sort.Slice(uniq, func(i, j int) bool { return uniq[i] < uniq[j] })

	m := &Map{byPlayer: map[uuid.UUID]*Team{}}
	for _, id := range uniq {
		m.teams = append(m.teams, New(id, capacity))
	}
	return m
}

func (m *Map) Teams() []*Team { return append([]*Team(nil), m.teams...) }

func (m *Map) Get(id ID) (*Team, bool) {
	for _, t := range m.teams {
		if t.id == id {
			return t, true
		}
	}
	return nil, false
}

// Capacity is the total number of roster slots.
func (m *Map) Capacity() int {
	n := 0
	for _, t := range m.teams {
		n += t.capacity
	}
	return n
}

func (m *Map) Len() int { return len(m.byPlayer) }

func (m *Map) TeamOf(p uuid.UUID) (*Team, bool) {
	t, ok := m.byPlayer[p]
	return t, ok
}

// Assign puts p on team id, moving it off any previous team.
func (m *Map) Assign(p uuid.UUID, id ID) bool {
	t, ok := m.Get(id)
	if !ok {
		return false
	}
	if cur, ok := m.byPlayer[p]; ok {
		if cur == t {
			return true
		}
		if t.Full() {
			return false
		}
		cur.Remove(p)
	}
	if !t.Add(p) {
		return false
	}
	m.byPlayer[p] = t
	return true
}

// AutoAssign places p on the least-filled team, lowest id first. A player
// already on a team stays there.
func (m *Map) AutoAssign(p uuid.UUID) (*Team, bool) {
	if t, ok := m.byPlayer[p]; ok {
		return t, true
	}
	var best *Team
	for _, t := range m.teams {
		if t.Full() {
			continue
		}
		if best == nil || t.Len() < best.Len() {
			best = t
		}
	}
	if best == nil {
		return nil, false
	}
	best.Add(p)
	m.byPlayer[p] = best
	return best, true
}

func (m *Map) Remove(p uuid.UUID) bool {
	t, ok := m.byPlayer[p]
	if !ok {
		return false
	}
	delete(m.byPlayer, p)
	return t.Remove(p)
}

// AliveTeams lists teams with at least one living member.
func (m *Map) AliveTeams() []*Team {
	out := make([]*Team, 0, len(m.teams))
	for _, t := range m.teams {
		if len(t.Alive()) > 0 {
			out = append(out, t)
		}
	}
	return out
}
