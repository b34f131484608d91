package journal

import (
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"arenaforge.gg/internal/host/memhost"
	"arenaforge.gg/internal/sim/arena"
	"arenaforge.gg/internal/sim/geom"
	"arenaforge.gg/internal/sim/reset"
)

func at(x, y, z int) geom.BlockPos { return geom.BlockPos{World: "sky", X: x, Y: y, Z: z} }

func TestJournal_RoundTrip(t *testing.T) {
	j := Open(t.TempDir())
	blocks := []reset.BlockSnapshot{
		{Pos: at(1, 0, 1), State: "stone"},
		{Pos: at(2, 1, 1), State: memhost.Air},
	}
	require.NoError(t, j.Write("sky", blocks))

	e, err := j.Read("sky")
	require.NoError(t, err)
	require.Equal(t, "sky", e.Header.Arena)
	require.Equal(t, 2, e.Header.Blocks)
	require.Equal(t, blocks, e.Blocks)

	names, err := j.Pending()
	require.NoError(t, err)
	require.Equal(t, []string{"sky"}, names)

	require.NoError(t, j.Delete("sky"))
	require.NoError(t, j.Delete("sky"))
	names, err = j.Pending()
	require.NoError(t, err)
	require.Empty(t, names)
}

func TestJournal_RejectsPathNames(t *testing.T) {
	j := Open(t.TempDir())
	require.Error(t, j.Write("../etc", nil))
	require.Error(t, j.Delete(""))
	_, err := j.Read("a/b")
	require.Error(t, err)
}

func TestJournal_NoDirIsEmpty(t *testing.T) {
	names, err := Open(t.TempDir()).Pending()
	require.NoError(t, err)
	require.Empty(t, names)
}

type rig struct {
	h     *memhost.Host
	w     *memhost.World
	store *arena.Store
	a     *arena.Arena
	j     *Journal
}

func newRig(t *testing.T) *rig {
	t.Helper()
	h := memhost.New()
	w := h.AddWorld(memhost.NewWorld("sky"))
	w.Fill(geom.NewRegion("sky", at(0, 0, 0), at(9, 0, 9)), "stone")
	store := arena.NewStore(h, h, zerolog.Nop())
	a, err := store.Create("Sky")
	require.NoError(t, err)
	a.SetRegion("sky", at(0, 0, 0), at(9, 9, 9))
	return &rig{h: h, w: w, store: store, a: a, j: Open(t.TempDir())}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestCheckpointer_WritesThenDeletes(t *testing.T) {
	r := newRig(t)
	c := NewCheckpointer(r.j, r.store, zerolog.Nop())
	t.Cleanup(c.Close)

	player := uuid.New()
	snap := r.a.Snapshot()
	r.a.Terrain().Capture(*snap.Region, func(id uuid.UUID) bool { return id == player })
	r.h.BreakBlock(r.w, at(3, 0, 3), player)

	c.Tick()
	path := r.j.Path("Sky")
	require.Eventually(t, func() bool { return exists(path) }, 2*time.Second, 10*time.Millisecond)

	e, err := r.j.Read("Sky")
	require.NoError(t, err)
	require.Equal(t, []reset.BlockSnapshot{{Pos: at(3, 0, 3), State: "stone"}}, e.Blocks)

	// Nothing new: no rewrite, no delete while still capturing.
	c.Tick()
	require.True(t, exists(path))

	r.a.Terrain().Reset()
	c.Tick()
	require.Eventually(t, func() bool { return !exists(path) }, 2*time.Second, 10*time.Millisecond)
}

func TestRecover_RestoresAndDeletes(t *testing.T) {
	r := newRig(t)
	pristine := r.w.Digest()
	require.NoError(t, r.j.Write("Sky", []reset.BlockSnapshot{
		{Pos: at(4, 0, 4), State: "stone"},
		{Pos: at(4, 1, 4), State: memhost.Air},
	}))
	require.NoError(t, r.j.Write("gone", []reset.BlockSnapshot{{Pos: at(0, 0, 0), State: "stone"}}))

	// The server died mid-match: one block mined, one placed.
	r.w.SetBlock(at(4, 0, 4), memhost.Air)
	r.w.SetBlock(at(4, 1, 4), "cobblestone")
	require.NotEqual(t, pristine, r.w.Digest())

	n, err := Recover(r.j, r.store, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, pristine, r.w.Digest())

	left, err := r.j.Pending()
	require.NoError(t, err)
	require.Equal(t, []string{"gone"}, left)
}
