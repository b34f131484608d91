package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"arenaforge.gg/internal/config"
	"arenaforge.gg/internal/host"
	"arenaforge.gg/internal/host/memhost"
	"arenaforge.gg/internal/sim/arena"
	"arenaforge.gg/internal/sim/events"
	"arenaforge.gg/internal/sim/match"
	"arenaforge.gg/internal/sim/sched"
	"arenaforge.gg/internal/transport/ws"
)

type server struct {
	url   string
	reg   *match.Registry
	m     *match.Match
	stats *statsBackend
	admin *admin
}

func newTestServer(t *testing.T) *server {
	t.Helper()
	h := memhost.New()
	store := arena.NewStore(h, h, zerolog.Nop())
	n, err := store.Load(filepath.Join("..", "..", "configs", "arenas.yaml"))
	require.NoError(t, err)
	require.Equal(t, 2, n)
	ensureWorlds(h, store)

	tune := config.Defaults()
	tune.DataDir = t.TempDir()
	stats, err := openStats(tune, h, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = stats.Close() })

	s := sched.New(200, zerolog.Nop())
	reg := match.NewRegistry(match.Env{
		Sched:  s,
		Bus:    h,
		Kits:   h,
		Signs:  h,
		Stats:  stats.sink,
		Events: events.Discard{},
		Log:    zerolog.Nop(),
	})
	sky, _ := store.Get("skyisland")
	m, err := reg.GetOrCreate(sky, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	hub := ws.NewHub(zerolog.Nop())
	a := newAdmin(s, reg, store, hub, stats)
	srv := httptest.NewServer(a.routes())
	t.Cleanup(srv.Close)
	return &server{url: srv.URL, reg: reg, m: m, stats: stats, admin: a}
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func post(t *testing.T, url string) int {
	t.Helper()
	resp, err := http.Post(url, "application/json", nil)
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode
}

func TestAdmin_ListMatches(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Matches []matchView `json:"matches"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.url+"/admin/v1/matches", &body))
	require.Len(t, body.Matches, 1)
	mv := body.Matches[0]
	require.Equal(t, srv.m.ID().String(), mv.ID)
	require.Equal(t, "skyisland", mv.Arena)
	require.Equal(t, "IDLE", mv.State)
	require.Equal(t, 4, mv.Capacity)
	require.Len(t, mv.Teams, 2)
}

func TestAdmin_ListArenas(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Arenas []arenaView `json:"arenas"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.url+"/admin/v1/arenas", &body))
	require.Len(t, body.Arenas, 2)
	require.Equal(t, "lavapit", body.Arenas[0].Name)
	require.Equal(t, 4, body.Arenas[0].MaxPlayers)
	require.Empty(t, body.Arenas[0].Match)
	require.Equal(t, srv.m.ID().String(), body.Arenas[1].Match)
	require.True(t, body.Arenas[1].Complete)
}

func TestAdmin_RemoveMatch(t *testing.T) {
	srv := newTestServer(t)

	require.Equal(t, http.StatusBadRequest, post(t, srv.url+"/admin/v1/matches/nope/remove"))
	require.Equal(t, http.StatusNotFound, post(t, srv.url+"/admin/v1/matches/"+uuid.NewString()+"/remove"))
	require.Equal(t, http.StatusOK, post(t, srv.url+"/admin/v1/matches/"+srv.m.ID().String()+"/remove"))
	require.Equal(t, http.StatusNotFound, post(t, srv.url+"/admin/v1/matches/"+srv.m.ID().String()+"/remove"))
	require.Zero(t, srv.reg.Len())

	resp, err := http.Get(srv.url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(b), "arena_matches 0\n")
	require.Contains(t, string(b), `arena_recorded_blocks{arena="skyisland"} 0`)
}

func TestAdmin_Leaderboard(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()
	top, mid := uuid.New(), uuid.New()
	require.NoError(t, <-srv.stats.sink.Apply(ctx, top, host.StatsDelta{Wins: 1, Points: 10, Games: 1}))
	require.NoError(t, <-srv.stats.sink.Apply(ctx, mid, host.StatsDelta{Kills: 1, Points: 2, Games: 1}))

	var body struct {
		Backend string    `json:"backend"`
		Top     []rankRow `json:"top"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.url+"/admin/v1/leaderboard?n=1", &body))
	require.Equal(t, "sqlite", body.Backend)
	require.Equal(t, []rankRow{{Player: top, Points: 10}}, body.Top)

	require.Equal(t, http.StatusBadRequest, getJSON(t, srv.url+"/admin/v1/leaderboard?n=0", &body))
}

func TestAdmin_LoopbackOnly(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/matches", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	rw := httptest.NewRecorder()
	srv.admin.routes().ServeHTTP(rw, req)
	require.Equal(t, http.StatusForbidden, rw.Code)
}

func TestAdmin_Healthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.url + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	require.Equal(t, "ok", strings.TrimSpace(string(b)))
}
