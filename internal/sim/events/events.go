// Package events is the match lifecycle feed shared by the audit log and the
// websocket hub.
package events

import (
	"sync"
	"time"
)

type Type string

const (
	MatchRegistered Type = "match.registered"
	MatchState      Type = "match.state"
	MatchWinner     Type = "match.winner"
	MatchRemoved    Type = "match.removed"
	PlayerJoined    Type = "player.joined"
	PlayerLeft      Type = "player.left"
	PlayerEvicted   Type = "player.evicted"
	PlayerEliminate Type = "player.eliminated"
	ArenaReset      Type = "arena.reset"
)

type Event struct {
	Tick   uint64         `json:"tick"`
	Time   time.Time      `json:"time"`
	Type   Type           `json:"type"`
	Match  string         `json:"match"`
	Arena  string         `json:"arena"`
	State  string         `json:"state,omitempty"`
	Player string         `json:"player,omitempty"`
	Team   string         `json:"team,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// Sink receives events on the heartbeat goroutine and must not block it.
type Sink interface {
	Emit(Event)
}

type Fanout []Sink

func (f Fanout) Emit(e Event) {
	for _, s := range f {
		if s != nil {
			s.Emit(e)
		}
	}
}

type Discard struct{}

func (Discard) Emit(Event) {}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t Type) int {
	n := 0
	for _, e := range r.Events() {
		if e.Type == t {
			n++
		}
	}
	return n
}
