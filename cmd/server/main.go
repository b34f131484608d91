package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"arenaforge.gg/internal/config"
	"arenaforge.gg/internal/host/memhost"
	"arenaforge.gg/internal/logging"
	persistlog "arenaforge.gg/internal/persistence/log"
	"arenaforge.gg/internal/persistence/journal"
	"arenaforge.gg/internal/sim/arena"
	"arenaforge.gg/internal/sim/events"
	"arenaforge.gg/internal/sim/match"
	"arenaforge.gg/internal/sim/sched"
	"arenaforge.gg/internal/transport/ws"
)

func main() {
	var (
		tuningPath = flag.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (empty for defaults)")
		arenasPath = flag.String("arenas", "", "arena definitions (default: arenas_path from tuning)")
		addr       = flag.String("addr", "", "http listen address (default: http_addr from tuning)")
	)
	flag.Parse()

	tp := strings.TrimSpace(*tuningPath)
	if tp != "" {
		if _, err := os.Stat(tp); errors.Is(err, os.ErrNotExist) {
			tp = ""
		}
	}
	tune, err := config.Load(tp)
	if err != nil {
		boot := logging.New("info", false)
		boot.Fatal().Err(err).Msg("load tuning")
	}
	if *arenasPath != "" {
		tune.ArenasPath = *arenasPath
	}
	if *addr != "" {
		tune.HTTPAddr = *addr
	}
	log := logging.New(tune.LogLevel, tune.LogPretty)

	if err := run(tune, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(tune config.Tuning, log zerolog.Logger) error {
	ctx, cancel := signalContext()
	defer cancel()

	if err := os.MkdirAll(tune.DataDir, 0o755); err != nil {
		return err
	}

	h := memhost.New()
	store := arena.NewStore(h, h, log)
	n, err := store.Load(tune.ArenasPath)
	if err != nil {
		return err
	}
	ensureWorlds(h, store)
	log.Info().Int("arenas", n).Str("path", tune.ArenasPath).Msg("arenas loaded")

	j := journal.Open(tune.DataDir)
	restored, err := journal.Recover(j, store, log)
	if err != nil {
		return err
	}
	if restored > 0 {
		log.Warn().Int("arenas", restored).Msg("restored arenas left dirty by an earlier run")
	}

	stats, err := openStats(tune, h, log)
	if err != nil {
		return err
	}
	defer stats.Close()

	audit := persistlog.NewAuditLogger(tune.DataDir, log)
	defer audit.Close()
	hub := ws.NewHub(log)
	hub.LoopbackOnly = tune.EventsLoopbackOnly
	defer hub.Close()

	s := sched.New(tune.TickRateHz, log)
	reg := match.NewRegistry(match.Env{
		Sched:   s,
		Bus:     h,
		Kits:    h,
		Signs:   h,
		Stats:   stats.sink,
		Events:  events.Fanout{audit, hub},
		Log:     log,
		Timings: tune.Timings(),
	})

	cp := journal.NewCheckpointer(j, store, log)
	cp.Start(s, tune.CheckpointEveryTicks)

	srv := &http.Server{
		Addr:              tune.HTTPAddr,
		Handler:           newAdmin(s, reg, store, hub, stats).routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", tune.HTTPAddr).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server failed")
			cancel()
		}
	}()

	if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("heartbeat failed")
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = srv.Shutdown(shutdownCtx)

	// The heartbeat has stopped, so this goroutine now owns the matches.
	removed := reg.Shutdown()
	cp.Tick()
	cp.Close()
	log.Info().Int("matches", removed).Msg("matches removed, arenas reset")
	return nil
}

// ensureWorlds gives the in-memory host an empty world for every arena.
func ensureWorlds(h *memhost.Host, store *arena.Store) {
	for _, a := range store.All() {
		name := a.Snapshot().World()
		if name == "" {
			continue
		}
		if _, ok := h.World(name); !ok {
			h.AddWorld(memhost.NewWorld(name))
		}
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func statsPath(dataDir string) string {
	return filepath.Join(dataDir, "stats", "stats.sqlite")
}
