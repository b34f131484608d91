package memhost

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"arenaforge.gg/internal/host"
	"arenaforge.gg/internal/sim/geom"
)

type Message struct {
	Key  string
	Args []any
}

type playerState struct {
	Loc       geom.Location
	Mode      host.GameMode
	Inventory []host.ItemStack
}

type Player struct {
	id       uuid.UUID
	name     string
	priority bool

	mu        sync.Mutex
	online    bool
	loc       geom.Location
	mode      host.GameMode
	inventory []host.ItemStack
	messages  []Message

	// FailKit makes GiveKit return an error, simulating a broken kit.
	FailKit bool
}

func NewPlayer(name string, priority bool) *Player {
	return &Player{id: uuid.New(), name: name, priority: priority, online: true}
}

func (p *Player) ID() uuid.UUID     { return p.id }
func (p *Player) Name() string      { return p.name }
func (p *Player) HasPriority() bool { return p.priority }

func (p *Player) Online() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online
}

func (p *Player) SetOnline(v bool) {
	p.mu.Lock()
	p.online = v
	p.mu.Unlock()
}

func (p *Player) Capture() host.PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	inv := make([]host.ItemStack, len(p.inventory))
	copy(inv, p.inventory)
	return playerState{Loc: p.loc, Mode: p.mode, Inventory: inv}
}

func (p *Player) Restore(s host.PlayerState) error {
	st, ok := s.(playerState)
	if !ok {
		return fmt.Errorf("memhost: foreign player state %T", s)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loc = st.Loc
	p.mode = st.Mode
	p.inventory = make([]host.ItemStack, len(st.Inventory))
	copy(p.inventory, st.Inventory)
	return nil
}

func (p *Player) Teleport(l geom.Location) error {
	p.mu.Lock()
	p.loc = l
	p.mu.Unlock()
	return nil
}

func (p *Player) SetGameMode(m host.GameMode) {
	p.mu.Lock()
	p.mode = m
	p.mu.Unlock()
}

func (p *Player) ClearInventory() {
	p.mu.Lock()
	p.inventory = nil
	p.mu.Unlock()
}

func (p *Player) GiveKit(k host.Kit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailKit {
		return fmt.Errorf("memhost: kit %q unavailable", k.Name)
	}
	p.inventory = append(p.inventory, k.Items...)
	return nil
}

func (p *Player) Send(key string, args ...any) {
	p.mu.Lock()
	p.messages = append(p.messages, Message{Key: key, Args: args})
	p.mu.Unlock()
}

func (p *Player) Location() geom.Location {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loc
}

func (p *Player) Mode() host.GameMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

func (p *Player) Inventory() []host.ItemStack {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]host.ItemStack, len(p.inventory))
	copy(out, p.inventory)
	return out
}

func (p *Player) Messages() []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Received reports whether the player was sent key at least once.
func (p *Player) Received(key string) bool {
	for _, m := range p.Messages() {
		if m.Key == key {
			return true
		}
	}
	return false
}
