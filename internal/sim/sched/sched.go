package sched

import (
	"context"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// TaskID identifies a repeating task. The zero value is never issued.
type TaskID uint64

type task struct {
	id     TaskID
	period uint64
	next   uint64
	fn     func()
}

// Scheduler is the heartbeat every match ticks on. Tasks registered with Every
// run on the heartbeat goroutine only; Every and Cancel must be called from
// that goroutine too. Other goroutines hand work over with Post.
type Scheduler struct {
	rateHz int
	log    zerolog.Logger

	tick   atomic.Uint64
	tasks  map[TaskID]*task
	nextID TaskID

	mu     sync.Mutex
	posted []func()
}

func New(rateHz int, log zerolog.Logger) *Scheduler {
	if rateHz <= 0 {
		rateHz = 20
	}
	return &Scheduler{
		rateHz: rateHz,
		log:    log.With().Str("component", "sched").Logger(),
		tasks:  map[TaskID]*task{},
	}
}

func (s *Scheduler) RateHz() int { return s.rateHz }

// Tick returns the number of heartbeats run so far. Safe from any goroutine.
func (s *Scheduler) Tick() uint64 { return s.tick.Load() }

// Every runs fn every period ticks, first on the next heartbeat.
func (s *Scheduler) Every(period int, fn func()) TaskID {
	if period < 1 {
		period = 1
	}
	s.nextID++
	t := &task{
		id:     s.nextID,
		period: uint64(period),
		next:   s.tick.Load() + 1,
		fn:     fn,
	}
	s.tasks[t.id] = t
	return t.id
}

// Cancel stops a task. It reports false when the task was not scheduled.
func (s *Scheduler) Cancel(id TaskID) bool {
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

func (s *Scheduler) Scheduled(id TaskID) bool {
	_, ok := s.tasks[id]
	return ok
}

func (s *Scheduler) Len() int { return len(s.tasks) }

// Post queues fn to run on the heartbeat goroutine at the start of the next
// tick. It is safe to call from any goroutine and never blocks.
func (s *Scheduler) Post(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.posted = append(s.posted, fn)
	s.mu.Unlock()
}

// Step runs a single heartbeat: posted callbacks first, then every due task in
// registration order. Tasks added during the step first run on the next one.
// A task that panics is logged and cancelled; the rest of the heartbeat runs.
func (s *Scheduler) Step() {
	now := s.tick.Add(1)

	s.mu.Lock()
	posted := s.posted
	s.posted = nil
	s.mu.Unlock()
	for _, fn := range posted {
		s.call(0, fn)
	}

	due := make([]TaskID, 0, len(s.tasks))
	for id, t := range s.tasks {
		if t.next <= now {
			due = append(due, id)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i] < due[j] })
	for _, id := range due {
		t, ok := s.tasks[id]
		if !ok {
			// Cancelled by an earlier task this tick.
			continue
		}
		t.next = now + t.period
		s.call(id, t.fn)
	}
}

// call runs fn, recovering a panic. id is zero for posted callbacks.
func (s *Scheduler) call(id TaskID, fn func()) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		ev := s.log.Error().Uint64("tick", s.Tick()).Interface("panic", r).Bytes("stack", debug.Stack())
		if id != 0 {
			s.Cancel(id)
			ev = ev.Uint64("task", uint64(id))
		}
		ev.Msg("task panicked")
	}()
	fn()
}

// Run drives Step at the configured rate until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(s.rateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.log.Info().Int("rate_hz", s.rateHz).Msg("heartbeat started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Uint64("tick", s.Tick()).Msg("heartbeat stopped")
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			s.Step()
			if el := time.Since(start); el > interval {
				s.log.Warn().Dur("step", el).Dur("budget", interval).Msg("heartbeat overran")
			}
		}
	}
}

// Ticks converts a wall-clock duration to heartbeat ticks, rounding up.
func (s *Scheduler) Ticks(d time.Duration) int {
	per := time.Second / time.Duration(s.rateHz)
	n := int((d + per - 1) / per)
	if n < 1 {
		n = 1
	}
	return n
}
