package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTuning(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_FileOverDefaults(t *testing.T) {
	path := writeTuning(t, "tick_rate_hz: 10\nlobby_seconds: 5\nstats: SQLite\n")

	tu, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 10, tu.TickRateHz)
	require.Equal(t, 5, tu.LobbySeconds)
	require.Equal(t, Defaults().GameLimitSeconds, tu.GameLimitSeconds)
	require.Equal(t, "sqlite", tu.Stats)
}

func TestLoad_EnvWins(t *testing.T) {
	path := writeTuning(t, "done_seconds: 7\n")
	t.Setenv("ARENA_DONE_SECONDS", "3")
	t.Setenv("ARENA_STATS", "redis")
	t.Setenv("ARENA_REDIS_ADDR", "127.0.0.1:6379")
	t.Setenv("ARENA_EVENTS_LOOPBACK_ONLY", "true")

	tu, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 3, tu.DoneSeconds)
	require.Equal(t, "redis", tu.Stats)
	require.Equal(t, "127.0.0.1:6379", tu.RedisAddr)
	require.True(t, tu.EventsLoopbackOnly)
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string]string{
		"zero lobby":     "lobby_seconds: 0\n",
		"redis no addr":  "stats: redis\n",
		"unknown stats":  "stats: mongo\n",
		"fast heartbeat": "tick_rate_hz: 5000\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeTuning(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestTimings(t *testing.T) {
	tu := Defaults()
	tu.TickRateHz = 10
	tu.LobbySeconds = 3
	tu.GameLimitSeconds = 60
	tu.DoneSeconds = 2
	tu.IdleGraceSeconds = 5

	tm := tu.Timings()
	require.Equal(t, 10, tm.PhaseInterval)
	require.Equal(t, 30, tm.LobbyCountdown)
	require.Equal(t, 600, tm.GameLimit)
	require.Equal(t, 20, tm.DoneDuration)
	require.Equal(t, 50, tm.IdleGrace)
}
