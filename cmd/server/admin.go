package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"arenaforge.gg/internal/sim/arena"
	"arenaforge.gg/internal/sim/match"
	"arenaforge.gg/internal/sim/sched"
	"arenaforge.gg/internal/transport/ws"
)

const heartbeatWait = 5 * time.Second

type admin struct {
	sched *sched.Scheduler
	reg   *match.Registry
	store *arena.Store
	hub   *ws.Hub
	stats *statsBackend
}

func newAdmin(s *sched.Scheduler, reg *match.Registry, store *arena.Store, hub *ws.Hub, stats *statsBackend) *admin {
	return &admin{sched: s, reg: reg, store: store, hub: hub, stats: stats}
}

type teamView struct {
	Team    string `json:"team"`
	Members int    `json:"members"`
	Alive   int    `json:"alive"`
}

type matchView struct {
	ID       string     `json:"id"`
	Arena    string     `json:"arena"`
	State    string     `json:"state"`
	Players  int        `json:"players"`
	Capacity int        `json:"capacity"`
	Teams    []teamView `json:"teams"`
	Winner   string     `json:"winner,omitempty"`
}

type arenaView struct {
	Name       string `json:"name"`
	World      string `json:"world"`
	Complete   bool   `json:"complete"`
	MaxPlayers int    `json:"max_players"`
	Capturing  bool   `json:"capturing"`
	Recorded   int    `json:"recorded_blocks"`
	Match      string `json:"match,omitempty"`
}

func viewMatch(m *match.Match) matchView {
	v := matchView{
		ID:       m.ID().String(),
		Arena:    m.Arena().Name,
		State:    m.State().String(),
		Players:  m.Size(),
		Capacity: m.MaxCapacity(),
	}
	for _, t := range m.Teams().Teams() {
		v.Teams = append(v.Teams, teamView{Team: t.ID().String(), Members: t.Len(), Alive: len(t.Alive())})
	}
	if w, ok := m.Winner(); ok {
		v.Winner = w.String()
	}
	return v
}

// onHeartbeat runs fn on the heartbeat goroutine and waits for it.
func (a *admin) onHeartbeat(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	a.sched.Post(func() {
		fn()
		close(done)
	})
	ctx, cancel := context.WithTimeout(ctx, heartbeatWait)
	defer cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *admin) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /metrics", a.metrics)
	mux.HandleFunc("GET /v1/events", a.hub.Handler())
	mux.HandleFunc("GET /admin/v1/matches", a.local(a.listMatches))
	mux.HandleFunc("POST /admin/v1/matches/{id}/remove", a.local(a.removeMatch))
	mux.HandleFunc("GET /admin/v1/arenas", a.local(a.listArenas))
	mux.HandleFunc("GET /admin/v1/leaderboard", a.local(a.leaderboard))
	return mux
}

// local restricts a handler to loopback peers.
func (a *admin) local(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func (a *admin) listMatches(rw http.ResponseWriter, r *http.Request) {
	var out []matchView
	err := a.onHeartbeat(r.Context(), func() {
		for _, m := range a.reg.All() {
			out = append(out, viewMatch(m))
		}
	})
	if err != nil {
		http.Error(rw, "heartbeat busy", http.StatusServiceUnavailable)
		return
	}
	if out == nil {
		out = []matchView{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"tick": a.sched.Tick(), "matches": out})
}

func (a *admin) removeMatch(rw http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(rw, "bad match id", http.StatusBadRequest)
		return
	}
	var found, removed bool
	err = a.onHeartbeat(r.Context(), func() {
		m, ok := a.reg.ByID(id)
		if !ok {
			return
		}
		found = true
		removed = a.reg.Remove(m)
	})
	if err != nil {
		http.Error(rw, "heartbeat busy", http.StatusServiceUnavailable)
		return
	}
	if !found {
		http.Error(rw, "no such match", http.StatusNotFound)
		return
	}
	writeJSON(rw, http.StatusOK, map[string]any{"id": id.String(), "removed": removed})
}

func (a *admin) listArenas(rw http.ResponseWriter, r *http.Request) {
	out := []arenaView{}
	for _, ar := range a.store.All() {
		snap := ar.Snapshot()
		v := arenaView{
			Name:       snap.Name,
			World:      snap.World(),
			Complete:   snap.Complete(),
			MaxPlayers: snap.MaxPlayers(),
		}
		if t := ar.Terrain(); t != nil {
			v.Capturing = t.Capturing()
			v.Recorded = t.Len()
		}
		if m, ok := a.reg.ByArena(snap.Name); ok {
			v.Match = m.ID().String()
		}
		out = append(out, v)
	}
	writeJSON(rw, http.StatusOK, map[string]any{"arenas": out})
}

func (a *admin) leaderboard(rw http.ResponseWriter, r *http.Request) {
	if a.stats == nil || a.stats.top == nil {
		http.Error(rw, "no ranking backend", http.StatusNotImplemented)
		return
	}
	n := 10
	if s := r.URL.Query().Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 || v > 1000 {
			http.Error(rw, "bad n", http.StatusBadRequest)
			return
		}
		n = v
	}
	rows, err := a.stats.top(r.Context(), n)
	if err != nil {
		http.Error(rw, err.Error(), http.StatusBadGateway)
		return
	}
	if rows == nil {
		rows = []rankRow{}
	}
	writeJSON(rw, http.StatusOK, map[string]any{"backend": a.stats.name, "top": rows})
}

func (a *admin) metrics(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(rw, "# HELP arena_heartbeat_tick Heartbeats run so far.\n")
	fmt.Fprintf(rw, "# TYPE arena_heartbeat_tick counter\n")
	fmt.Fprintf(rw, "arena_heartbeat_tick %d\n", a.sched.Tick())

	fmt.Fprintf(rw, "# HELP arena_matches Live matches.\n")
	fmt.Fprintf(rw, "# TYPE arena_matches gauge\n")
	fmt.Fprintf(rw, "arena_matches %d\n", a.reg.Len())

	fmt.Fprintf(rw, "# HELP arena_recorded_blocks Blocks awaiting reset per arena.\n")
	fmt.Fprintf(rw, "# TYPE arena_recorded_blocks gauge\n")
	for _, ar := range a.store.All() {
		if t := ar.Terrain(); t != nil {
			fmt.Fprintf(rw, "arena_recorded_blocks{arena=%q} %d\n", ar.Name(), t.Len())
		}
	}

	fmt.Fprintf(rw, "# HELP arena_event_subscribers Connected event feed clients.\n")
	fmt.Fprintf(rw, "# TYPE arena_event_subscribers gauge\n")
	fmt.Fprintf(rw, "arena_event_subscribers %d\n", a.hub.Clients())
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
