// Package statsdb keeps per-player match statistics in SQLite. Writes are
// queued to a single writer goroutine so the heartbeat never waits on disk.
package statsdb

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"arenaforge.gg/internal/host"
)

var (
	ErrClosed    = eris.New("stats db closed")
	ErrQueueFull = eris.New("stats queue full")
)

type Record struct {
	Player uuid.UUID
	host.StatsDelta
	UpdatedAt time.Time
}

type req struct {
	ctx    context.Context
	player uuid.UUID
	delta  host.StatsDelta
	done   chan error
}

type DB struct {
	db  *sql.DB
	log zerolog.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.RWMutex
	closed atomic.Bool
	drops  atomic.Uint64
}

func Open(path string, log zerolog.Logger) (*DB, error) {
	if path == "" {
		return nil, eris.New("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, eris.Wrap(err, "create db dir")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "open sqlite")
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &DB{
		db:  db,
		log: log.With().Str("component", "statsdb").Logger(),
		ch:  make(chan req, 4096),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(p); err != nil {
			return eris.Wrapf(err, "pragma %q", p)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS player_stats (
		player TEXT PRIMARY KEY,
		kills INTEGER NOT NULL DEFAULT 0,
		deaths INTEGER NOT NULL DEFAULT 0,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		points INTEGER NOT NULL DEFAULT 0,
		games INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	);`)
	if err != nil {
		return eris.Wrap(err, "create player_stats")
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_player_stats_points ON player_stats(points DESC);`); err != nil {
		return eris.Wrap(err, "create points index")
	}
	return nil
}

// Close drains queued writes and closes the database.
func (s *DB) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed.Store(true)
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Drops counts writes refused because the queue was full.
func (s *DB) Drops() uint64 { return s.drops.Load() }

// Apply adds d to the player's totals. The returned channel yields the
// outcome once the writer has committed it.
func (s *DB) Apply(ctx context.Context, player uuid.UUID, d host.StatsDelta) <-chan error {
	done := make(chan error, 1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Load() {
		done <- ErrClosed
		return done
	}
	select {
	case s.ch <- req{ctx: ctx, player: player, delta: d, done: done}:
	default:
		s.drops.Add(1)
		done <- ErrQueueFull
	}
	return done
}

func (s *DB) loop() {
	stmt, err := s.db.Prepare(`INSERT INTO player_stats(player,kills,deaths,wins,losses,points,games,updated_at)
		VALUES(?,?,?,?,?,?,?,?)
		ON CONFLICT(player) DO UPDATE SET
			kills=kills+excluded.kills,
			deaths=deaths+excluded.deaths,
			wins=wins+excluded.wins,
			losses=losses+excluded.losses,
			points=points+excluded.points,
			games=games+excluded.games,
			updated_at=excluded.updated_at`)
	if err != nil {
		s.log.Error().Err(err).Msg("prepare upsert")
	} else {
		defer stmt.Close()
	}

	for r := range s.ch {
		if stmt == nil {
			r.done <- eris.Wrap(err, "stats db unusable")
			continue
		}
		if cerr := r.ctx.Err(); cerr != nil {
			r.done <- cerr
			continue
		}
		d := r.delta
		_, xerr := stmt.ExecContext(r.ctx,
			r.player.String(),
			d.Kills, d.Deaths, d.Wins, d.Losses, d.Points, d.Games,
			time.Now().UTC().Format(time.RFC3339Nano),
		)
		if xerr != nil {
			xerr = eris.Wrapf(xerr, "upsert stats for %s", r.player)
		}
		r.done <- xerr
	}
}

// Get returns a player's totals; ok is false for an unknown player.
func (s *DB) Get(ctx context.Context, player uuid.UUID) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT kills,deaths,wins,losses,points,games,updated_at
		FROM player_stats WHERE player=?`, player.String())
	rec, err := scan(row.Scan, player.String())
	if eris.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Top returns up to n players by points, best first.
func (s *DB) Top(ctx context.Context, n int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT player,kills,deaths,wins,losses,points,games,updated_at
		FROM player_stats ORDER BY points DESC, player ASC LIMIT ?`, n)
	if err != nil {
		return nil, eris.Wrap(err, "query top")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var id string
		rec, err := scan(func(dest ...any) error {
			return rows.Scan(append([]any{&id}, dest...)...)
		}, "")
		if err != nil {
			return nil, err
		}
		if rec.Player, err = uuid.Parse(id); err != nil {
			return nil, eris.Wrapf(err, "bad player id %q", id)
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "iterate top")
}

func scan(fn func(dest ...any) error, id string) (Record, error) {
	var (
		rec Record
		ts  string
	)
	d := &rec.StatsDelta
	if err := fn(&d.Kills, &d.Deaths, &d.Wins, &d.Losses, &d.Points, &d.Games, &ts); err != nil {
		if err == sql.ErrNoRows {
			return rec, err
		}
		return rec, eris.Wrap(err, "scan stats")
	}
	if id != "" {
		rec.Player, _ = uuid.Parse(id)
	}
	rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
	return rec, nil
}
