package phase

import (
	"sync"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"arenaforge.gg/internal/host"
	"arenaforge.gg/internal/sim/lifecycle"
)

// Owner is the match a cycler drives. Its state follows the cycler.
type Owner interface {
	SetState(lifecycle.State)
}

// Handle resolves the owner. It reports false once the owner is gone, after
// which the cycler does nothing.
type Handle func() (Owner, bool)

type Env struct {
	Sched Scheduler
	Bus   host.Bus
	Log   zerolog.Logger
}

// Cycler owns one phase per state and keeps at most one of them running.
// Transitions are serialized; phase hooks run inside a transition and must
// not call Jump or Next themselves.
type Cycler struct {
	owner  Handle
	env    Env
	phases [lifecycle.Count]*Phase
	log    zerolog.Logger

	mu      sync.Mutex
	current atomic.Int32
}

func NewCycler(owner Handle, env Env, phases ...*Phase) (*Cycler, error) {
	c := &Cycler{owner: owner, env: env, log: env.Log}
	n := 0
	for _, p := range phases {
		if p == nil {
			continue
		}
		if !p.state.Valid() || p.state == lifecycle.Setup {
			return nil, eris.Errorf("phase for state %s cannot be cycled to", p.state)
		}
		if c.phases[p.state] != nil {
			return nil, eris.Errorf("duplicate phase for state %s", p.state)
		}
		p.cycler = c
		p.log = env.Log.With().Stringer("phase", p.state).Logger()
		c.phases[p.state] = p
		n++
	}
	if n < 2 {
		return nil, eris.New("a cycler needs at least two phases")
	}
	c.current.Store(int32(lifecycle.Setup))
	return c, nil
}

func (c *Cycler) Current() lifecycle.State { return lifecycle.State(c.current.Load()) }

// Phase returns the phase registered for s, or nil.
func (c *Cycler) Phase(s lifecycle.State) *Phase {
	if !s.Valid() {
		return nil
	}
	return c.phases[s]
}

// Active returns the running phase, or nil.
func (c *Cycler) Active() *Phase {
	p := c.Phase(c.Current())
	if p == nil || !p.Running() {
		return nil
	}
	return p
}

// Jump stops the current phase, moves the owner to target and starts the
// phase for it. Jumping to the current state does nothing.
func (c *Cycler) Jump(target lifecycle.State) *Phase {
	owner, ok := c.owner()
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	cur := c.Current()
	if cur == target {
		return c.phases[cur]
	}
	next := c.Phase(target)
	if next == nil {
		c.log.Error().Stringer("from", cur).Stringer("to", target).Msg("no phase for target state")
		return nil
	}
	if old := c.phases[cur]; old != nil {
		old.Stop(lifecycle.ReasonUnknown)
	}
	owner.SetState(target)
	c.current.Store(int32(target))
	next.Start()
	return next
}

// Next jumps to the state after the current one.
func (c *Cycler) Next() *Phase {
	return c.Jump(c.Current().Next())
}

// Shutdown stops the running phase and leaves the state as it is.
func (c *Cycler) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p := c.phases[c.Current()]; p != nil {
		p.Stop(lifecycle.ReasonUnknown)
	}
}
