// Package host declares the capabilities the arena engine consumes from the
// game server it is embedded in. Nothing here knows about matches.
package host

import (
	"context"

	"github.com/google/uuid"

	"arenaforge.gg/internal/sim/geom"
)

// BlockState is an opaque serialized block (type plus data). Equal strings are
// equal blocks.
type BlockState string

type EntityID string

type World interface {
	Name() string
	BlockAt(p geom.BlockPos) BlockState
	SetBlock(p geom.BlockPos, s BlockState)
	// IsConnected reports whether a block depends on or forms part of a
	// multi-block structure (attachments, plants, doors).
	IsConnected(s BlockState) bool
	DroppedItems(box geom.Box) []EntityID
	RemoveEntity(id EntityID) bool
}

type Worlds interface {
	World(name string) (World, bool)
}

type GameMode int

const (
	Survival GameMode = iota
	Adventure
	Spectator
)

// PlayerState is whatever the host needs to put a player back exactly as they
// were before joining (inventory, position, mode, health).
type PlayerState interface{}

type Player interface {
	ID() uuid.UUID
	Name() string
	Online() bool
	HasPriority() bool

	Capture() PlayerState
	Restore(PlayerState) error

	Teleport(geom.Location) error
	SetGameMode(GameMode)
	ClearInventory()
	GiveKit(Kit) error

	// Send delivers a localized message; key and args are resolved by the host.
	Send(key string, args ...any)
}

type Players interface {
	Player(id uuid.UUID) (Player, bool)
}

type ItemStack struct {
	Item  string `yaml:"item"`
	Count int    `yaml:"count"`
}

type Kit struct {
	Name  string      `yaml:"name"`
	Items []ItemStack `yaml:"items"`
}

type KitPool interface {
	Kits() []Kit
}

// Signs refreshes join signs or other world displays bound to an arena.
type Signs interface {
	Refresh(arena string)
}

type StatsDelta struct {
	Kills  int `json:"kills"`
	Deaths int `json:"deaths"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Points int `json:"points"`
	Games  int `json:"games"`
}

// StatsSink persists per-player statistics. Apply must not block the caller;
// the returned channel yields exactly one result.
type StatsSink interface {
	Apply(ctx context.Context, player uuid.UUID, d StatsDelta) <-chan error
}

// Bus delivers world events to subscribers. A subscriber implements any of the
// *Handler interfaces in events.go; cancel removes it.
type Bus interface {
	Subscribe(listener any) (cancel func())
}
