package host

import (
	"github.com/google/uuid"

	"arenaforge.gg/internal/sim/geom"
)

// Block events are delivered before the world changes, so World.BlockAt still
// returns the prior state while handlers run.

type BlockBreak struct {
	Pos   geom.BlockPos
	Actor uuid.UUID
}

type BlockPlace struct {
	Pos geom.BlockPos
	// Replaced is the state being overwritten when the host already applied
	// the placement; empty means read it from the world.
	Replaced BlockState
	Actor    uuid.UUID
}

type ExplosionSource int

const (
	ExplodedByBlock ExplosionSource = iota
	ExplodedByEntity
)

// Explosion carries the blocks about to be destroyed. Handlers may shrink
// Blocks; the host destroys whatever is left.
type Explosion struct {
	Source ExplosionSource
	Origin geom.BlockPos
	Blocks []geom.BlockPos
	Actor  uuid.UUID
}

type ChangeKind int

const (
	ChangeSpread ChangeKind = iota
	ChangeBurn
	ChangeForm
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeSpread:
		return "SPREAD"
	case ChangeBurn:
		return "BURN"
	default:
		return "FORM"
	}
}

// BlockChange is a mechanism-driven change with no acting player (fluid flow,
// fire, ice/snow forming).
type BlockChange struct {
	Kind ChangeKind
	Pos  geom.BlockPos
}

type BucketUse struct {
	Clicked geom.BlockPos
	// Target is the block the bucket empties into or drains.
	Target geom.BlockPos
	Fill   bool
	Actor  uuid.UUID
}

type HangingBreak struct {
	Pos       geom.BlockPos
	Actor     uuid.UUID
	Cancelled bool
}

// ChestOpen fires when a player opens a container. Handlers set Refill to
// have the host stock it from its loot tables.
type ChestOpen struct {
	Pos    geom.BlockPos
	Actor  uuid.UUID
	Refill bool
}

type PlayerDeath struct {
	Victim uuid.UUID
	Killer uuid.UUID
}

type BlockBreakHandler interface{ OnBlockBreak(*BlockBreak) }
type BlockPlaceHandler interface{ OnBlockPlace(*BlockPlace) }
type ExplosionHandler interface{ OnExplosion(*Explosion) }
type BlockChangeHandler interface{ OnBlockChange(*BlockChange) }
type BucketHandler interface{ OnBucketUse(*BucketUse) }
type HangingBreakHandler interface{ OnHangingBreak(*HangingBreak) }
type PlayerDeathHandler interface{ OnPlayerDeath(*PlayerDeath) }
type ChestOpenHandler interface{ OnChestOpen(*ChestOpen) }

// Dispatch hands ev to every handler interface l implements. Hosts use it to
// fan out a single event to a subscriber.
func Dispatch(l any, ev any) {
	switch e := ev.(type) {
	case *BlockBreak:
		if h, ok := l.(BlockBreakHandler); ok {
			h.OnBlockBreak(e)
		}
	case *BlockPlace:
		if h, ok := l.(BlockPlaceHandler); ok {
			h.OnBlockPlace(e)
		}
	case *Explosion:
		if h, ok := l.(ExplosionHandler); ok {
			h.OnExplosion(e)
		}
	case *BlockChange:
		if h, ok := l.(BlockChangeHandler); ok {
			h.OnBlockChange(e)
		}
	case *BucketUse:
		if h, ok := l.(BucketHandler); ok {
			h.OnBucketUse(e)
		}
	case *HangingBreak:
		if h, ok := l.(HangingBreakHandler); ok {
			h.OnHangingBreak(e)
		}
	case *PlayerDeath:
		if h, ok := l.(PlayerDeathHandler); ok {
			h.OnPlayerDeath(e)
		}
	case *ChestOpen:
		if h, ok := l.(ChestOpenHandler); ok {
			h.OnChestOpen(e)
		}
	}
}
