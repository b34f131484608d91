package memhost

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"

	"arenaforge.gg/internal/host"
	"arenaforge.gg/internal/sim/geom"
)

const Air host.BlockState = "air"

type itemEntity struct {
	ID    host.EntityID
	Pos   geom.Vec3
	Item  string
	Count int
}

// World is a sparse in-memory block world. Unloaded chunks read as air.
type World struct {
	name string

	mu        sync.Mutex
	palette   []host.BlockState
	paletteID map[host.BlockState]uint16
	chunks    map[ChunkKey]*Chunk
	connected map[host.BlockState]bool
	items     map[host.EntityID]*itemEntity
	nextItem  int
}

func NewWorld(name string, connected ...host.BlockState) *World {
	w := &World{
		name:      name,
		palette:   []host.BlockState{Air},
		paletteID: map[host.BlockState]uint16{Air: 0},
		chunks:    map[ChunkKey]*Chunk{},
		connected: map[host.BlockState]bool{},
		items:     map[host.EntityID]*itemEntity{},
	}
	for _, s := range connected {
		w.connected[s] = true
	}
	return w
}

func (w *World) Name() string { return w.name }

func (w *World) BlockAt(p geom.BlockPos) host.BlockState {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch, ok := w.chunks[chunkKeyOf(p)]
	if !ok {
		return Air
	}
	return w.palette[ch.Get(mod(p.X, chunkSize), mod(p.Y, chunkSize), mod(p.Z, chunkSize))]
}

func (w *World) SetBlock(p geom.BlockPos, s host.BlockState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s == "" {
		s = Air
	}
	id, ok := w.paletteID[s]
	if !ok {
		id = uint16(len(w.palette))
		w.palette = append(w.palette, s)
		w.paletteID[s] = id
	}
	k := chunkKeyOf(p)
	ch, ok := w.chunks[k]
	if !ok {
		if s == Air {
			return
		}
		ch = newChunk(k)
		w.chunks[k] = ch
	}
	ch.Set(mod(p.X, chunkSize), mod(p.Y, chunkSize), mod(p.Z, chunkSize), id)
}

func (w *World) IsConnected(s host.BlockState) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected[s]
}

// Fill sets every block of r to s.
func (w *World) Fill(r geom.Region, s host.BlockState) {
	for x := r.Min.X; x <= r.Max.X; x++ {
		for y := r.Min.Y; y <= r.Max.Y; y++ {
			for z := r.Min.Z; z <= r.Max.Z; z++ {
				w.SetBlock(geom.BlockPos{World: w.name, X: x, Y: y, Z: z}, s)
			}
		}
	}
}

// Digest hashes every loaded chunk; equal digests mean identical terrain.
func (w *World) Digest() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	h := sha256.New()
	for _, k := range sortedKeys(w.chunks) {
		ch := w.chunks[k]
		d := ch.Digest()
		fmt.Fprintf(h, "%d,%d,%d:", k.CX, k.CY, k.CZ)
		h.Write(d[:])
		// Palette ids are only stable within one world; hash the states too.
		for _, id := range ch.Blocks {
			if id != 0 {
				h.Write([]byte(w.palette[id]))
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (w *World) DropItem(pos geom.Vec3, item string, count int) host.EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextItem++
	id := host.EntityID(fmt.Sprintf("IT%06d", w.nextItem))
	w.items[id] = &itemEntity{ID: id, Pos: pos, Item: item, Count: count}
	return id
}

func (w *World) DroppedItems(box geom.Box) []host.EntityID {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]host.EntityID, 0)
	for id, it := range w.items {
		if box.Contains(w.name, it.Pos) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (w *World) RemoveEntity(id host.EntityID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.items[id]; !ok {
		return false
	}
	delete(w.items, id)
	return true
}

func (w *World) ItemCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.items)
}

func chunkKeyOf(p geom.BlockPos) ChunkKey {
	return ChunkKey{
		CX: floorDiv(p.X, chunkSize),
		CY: floorDiv(p.Y, chunkSize),
		CZ: floorDiv(p.Z, chunkSize),
	}
}
