package match

import (
	"github.com/google/uuid"

	"arenaforge.gg/internal/sim/sched"
)

// WatchTask removes a match once nobody in its audience has been online for
// the grace period.
type WatchTask struct {
	reg      *Registry
	match    uuid.UUID
	interval int
	grace    int

	idle int
	task sched.TaskID
}

func newWatchTask(r *Registry, match uuid.UUID, interval, grace int) *WatchTask {
	return &WatchTask{reg: r, match: match, interval: max(interval, 1), grace: grace}
}

func (w *WatchTask) Running() bool { return w.task != 0 }

// Idle is the number of ticks the audience has been offline.
func (w *WatchTask) Idle() int { return w.idle }

func (w *WatchTask) Start() {
	if w.task != 0 {
		return
	}
	w.idle = 0
	w.task = w.reg.env.Sched.Every(w.interval, w.tick)
}

func (w *WatchTask) Stop() {
	if w.task == 0 {
		return
	}
	w.reg.env.Sched.Cancel(w.task)
	w.task = 0
}

func (w *WatchTask) tick() {
	defer func() {
		if r := recover(); r != nil {
			w.Stop()
			panic(r)
		}
	}()
	m, ok := w.reg.ByID(w.match)
	if !ok {
		w.Stop()
		return
	}
	if m.anyOnline() {
		w.idle = 0
		return
	}
	w.idle += w.interval
	if w.idle >= w.grace {
		w.Stop()
		m.log.Info().Int("idle_ticks", w.idle).Msg("no one online, removing match")
		w.reg.Remove(m)
	}
}
