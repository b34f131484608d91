package journal

import (
	"sync"

	"github.com/rs/zerolog"

	"arenaforge.gg/internal/sim/arena"
	"arenaforge.gg/internal/sim/reset"
	"arenaforge.gg/internal/sim/sched"
)

type job struct {
	blocks []reset.BlockSnapshot
	del    bool
}

// Checkpointer journals every arena's captured snapshots on a heartbeat task
// and removes the journal once the arena has been reset. Files are written
// by a background goroutine; only the latest job per arena is kept.
type Checkpointer struct {
	j     *Journal
	store *arena.Store
	log   zerolog.Logger

	// heartbeat only
	onDisk map[string]bool
	task   sched.TaskID

	mu      sync.Mutex
	pending map[string]job
	wake    chan struct{}
	quit    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewCheckpointer(j *Journal, store *arena.Store, log zerolog.Logger) *Checkpointer {
	c := &Checkpointer{
		j:       j,
		store:   store,
		log:     log.With().Str("component", "journal").Logger(),
		onDisk:  map[string]bool{},
		pending: map[string]job{},
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop()
	}()
	return c
}

// Start schedules Tick every period heartbeats.
func (c *Checkpointer) Start(s *sched.Scheduler, period int) {
	if c.task != 0 {
		return
	}
	c.task = s.Every(period, c.Tick)
}

// Tick queues a write for every arena with new snapshots and a delete for
// every journaled arena that has been reset since.
func (c *Checkpointer) Tick() {
	for _, a := range c.store.All() {
		t := a.Terrain()
		if t == nil {
			continue
		}
		name := a.Name()
		if blocks, ok := t.Checkpoint(); ok {
			c.queue(name, job{blocks: blocks})
			c.onDisk[name] = true
			continue
		}
		if c.onDisk[name] && !t.Capturing() && t.Len() == 0 {
			c.queue(name, job{del: true})
			delete(c.onDisk, name)
		}
	}
}

func (c *Checkpointer) queue(arena string, jb job) {
	c.mu.Lock()
	c.pending[arena] = jb
	c.mu.Unlock()
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *Checkpointer) loop() {
	for {
		select {
		case <-c.wake:
			c.flush()
		case <-c.quit:
			c.flush()
			return
		}
	}
}

// Flush writes everything queued so far. Close calls it too.
func (c *Checkpointer) flush() {
	c.mu.Lock()
	jobs := c.pending
	c.pending = map[string]job{}
	c.mu.Unlock()

	for name, jb := range jobs {
		var err error
		if jb.del {
			err = c.j.Delete(name)
		} else {
			err = c.j.Write(name, jb.blocks)
		}
		if err != nil {
			c.log.Error().Err(err).Str("arena", name).Bool("delete", jb.del).Msg("journal write failed")
			continue
		}
		c.log.Debug().Str("arena", name).Int("blocks", len(jb.blocks)).Bool("delete", jb.del).Msg("journal updated")
	}
}

// Close stops the writer after flushing pending jobs. Cancel the heartbeat
// task first.
func (c *Checkpointer) Close() {
	c.once.Do(func() {
		close(c.quit)
		c.wg.Wait()
	})
}

// Recover restores every arena that has a journal left from an earlier run
// and deletes the journal. Journals of unknown arenas are kept.
func Recover(j *Journal, store *arena.Store, log zerolog.Logger) (int, error) {
	names, err := j.Pending()
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, name := range names {
		a, ok := store.Get(name)
		if !ok || a.Terrain() == nil {
			log.Warn().Str("arena", name).Msg("journal for unknown arena left in place")
			continue
		}
		e, err := j.Read(name)
		if err != nil {
			return restored, err
		}
		n := a.Terrain().Recover(e.Blocks)
		if err := j.Delete(name); err != nil {
			return restored, err
		}
		log.Info().Str("arena", name).Int("blocks", n).Time("saved", e.Header.Saved).Msg("arena restored from journal")
		restored++
	}
	return restored, nil
}
