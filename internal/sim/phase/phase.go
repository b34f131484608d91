// Package phase runs the timed stages of a match and the state machine that
// moves a match between them.
package phase

import (
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"arenaforge.gg/internal/host"
	"arenaforge.gg/internal/sim/lifecycle"
	"arenaforge.gg/internal/sim/sched"
)

// Behavior is what a concrete phase does. Every phase decides how a joining
// player is handled.
type Behavior interface {
	UpdateTick() error
	HandleJoin(p host.Player) error
}

type Starter interface{ OnStart() }

type Stopper interface {
	OnStop(reason lifecycle.StopReason)
}

type Leaver interface{ HandleLeave(p host.Player) }

// ListenerProvider supplies an event listener that is subscribed to the bus
// while the phase runs.
type ListenerProvider interface{ Listener() any }

// Scheduler is the part of sched.Scheduler a phase needs.
type Scheduler interface {
	Every(period int, fn func()) sched.TaskID
	Cancel(id sched.TaskID) bool
}

type Phase struct {
	state    lifecycle.State
	duration int
	interval int
	behavior Behavior

	elapsed     int
	task        sched.TaskID
	unsubscribe func()

	cycler *Cycler
	log    zerolog.Logger
}

// New creates a phase that runs for duration ticks and calls UpdateTick every
// interval ticks.
func New(state lifecycle.State, duration, interval int, b Behavior) *Phase {
	return &Phase{
		state:    state,
		duration: duration,
		interval: max(interval, 1),
		behavior: b,
		log:      zerolog.Nop(),
	}
}

func (p *Phase) State() lifecycle.State { return p.state }
func (p *Phase) Duration() int          { return p.duration }
func (p *Phase) Interval() int          { return p.interval }
func (p *Phase) Elapsed() int           { return p.elapsed }
func (p *Phase) Running() bool          { return p.task != 0 }
func (p *Phase) Behavior() Behavior     { return p.behavior }

func (p *Phase) Remaining() int { return max(p.duration-p.elapsed, 0) }

// ResetElapsed restarts the phase clock without restarting the phase.
func (p *Phase) ResetElapsed() { p.elapsed = 0 }

// Start is a no-op when the phase is already running.
func (p *Phase) Start() {
	if p.task != 0 {
		return
	}
	p.elapsed = 0
	if lp, ok := p.behavior.(ListenerProvider); ok && p.cycler.env.Bus != nil {
		if l := lp.Listener(); l != nil {
			p.unsubscribe = p.cycler.env.Bus.Subscribe(l)
		}
	}
	p.task = p.cycler.env.Sched.Every(p.interval, p.tick)
	p.log.Debug().Int("duration", p.duration).Int("interval", p.interval).Msg("phase started")
	if s, ok := p.behavior.(Starter); ok {
		s.OnStart()
	}
}

// Stop is a no-op when the phase is not running. The task is cancelled before
// OnStop runs.
func (p *Phase) Stop(reason lifecycle.StopReason) {
	if p.task == 0 {
		return
	}
	p.cycler.env.Sched.Cancel(p.task)
	p.task = 0
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	p.log.Debug().Stringer("reason", reason).Int("elapsed", p.elapsed).Msg("phase stopped")
	if s, ok := p.behavior.(Stopper); ok {
		s.OnStop(reason)
	}
}

func (p *Phase) HandleJoin(pl host.Player) error {
	return p.behavior.HandleJoin(pl)
}

func (p *Phase) HandleLeave(pl host.Player) {
	if l, ok := p.behavior.(Leaver); ok {
		l.HandleLeave(pl)
	}
}

func (p *Phase) tick() {
	if _, ok := p.cycler.owner(); !ok {
		p.Stop(lifecycle.ReasonUnknown)
		return
	}
	if p.elapsed >= p.duration {
		p.Stop(lifecycle.ReasonTime)
		p.cycler.Next()
		return
	}
	if err := p.update(); err != nil {
		p.log.Error().Err(err).Int("elapsed", p.elapsed).Msg("phase tick failed")
		// The hook may already have moved the match on.
		if p.task != 0 {
			p.Stop(lifecycle.ReasonError)
			p.cycler.Next()
		}
		return
	}
	p.elapsed += p.interval
}

func (p *Phase) update() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("panic in %s tick: %v", p.state, r)
		}
	}()
	return p.behavior.UpdateTick()
}
