package reset

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"arenaforge.gg/internal/host"
	"arenaforge.gg/internal/host/memhost"
	"arenaforge.gg/internal/sim/geom"
)

type fixture struct {
	h      *memhost.Host
	w      *memhost.World
	r      *ArenaReset
	region geom.Region
	player uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	h := memhost.New()
	w := h.AddWorld(memhost.NewWorld("sky", "torch", "vine"))
	region := geom.NewRegion("sky", geom.BlockPos{}, geom.BlockPos{X: 9, Y: 9, Z: 9})
	w.Fill(geom.NewRegion("sky", geom.BlockPos{}, geom.BlockPos{X: 9, Y: 0, Z: 9}), "stone")
	return &fixture{
		h:      h,
		w:      w,
		r:      New("sky", h, h, zerolog.Nop()),
		region: region,
		player: uuid.New(),
	}
}

func (f *fixture) capture() {
	f.r.Capture(f.region, func(actor uuid.UUID) bool { return actor == f.player })
}

func at(x, y, z int) geom.BlockPos { return geom.BlockPos{World: "sky", X: x, Y: y, Z: z} }

func TestReset_EmptyIsNoop(t *testing.T) {
	f := newFixture(t)
	before := f.w.Digest()

	require.Equal(t, Result{}, f.r.Reset())
	f.capture()
	require.Equal(t, 0, f.r.Len())
	require.Equal(t, Result{}, f.r.Reset())

	require.Equal(t, before, f.w.Digest())
	require.Equal(t, 0, f.r.Len())
	require.Equal(t, 0, f.h.Subscribers())
}

func TestCapture_EarliestWriteWins(t *testing.T) {
	f := newFixture(t)
	before := f.w.Digest()
	f.capture()

	p := at(2, 0, 2)
	f.h.BreakBlock(f.w, p, f.player)
	f.h.PlaceBlock(f.w, p, "dirt", f.player)
	f.h.PlaceBlock(f.w, p, "glass", f.player)

	require.Equal(t, []BlockSnapshot{{Pos: p, State: "stone"}}, f.r.Snapshots())
	res := f.r.Reset()
	require.Equal(t, 1, res.Blocks)
	require.Equal(t, host.BlockState("stone"), f.w.BlockAt(p))
	require.Equal(t, before, f.w.Digest())
}

func TestCapture_GateAndRegion(t *testing.T) {
	f := newFixture(t)
	f.capture()

	f.h.BreakBlock(f.w, at(1, 0, 1), uuid.New())
	f.h.ChangeBlock(f.w, host.ChangeForm, at(40, 0, 40), "ice")
	require.Equal(t, 0, f.r.Len())

	f.h.ChangeBlock(f.w, host.ChangeSpread, at(3, 1, 3), "water")
	require.Equal(t, []BlockSnapshot{{Pos: at(3, 1, 3), State: memhost.Air}}, f.r.Snapshots())
}

func TestCapture_GatedPlayerOutsideRegion(t *testing.T) {
	f := newFixture(t)
	f.w.SetBlock(at(40, 0, 40), "stone")
	f.capture()

	f.h.BreakBlock(f.w, at(40, 0, 40), f.player)
	f.h.PlaceBlock(f.w, at(-1, 0, 0), "dirt", f.player)
	f.h.UseBucket(f.w, at(9, 0, 9), at(10, 0, 9), false, "water", f.player)
	require.Equal(t, []BlockSnapshot{{Pos: at(9, 0, 9), State: "stone"}}, f.r.Snapshots())

	f.r.Reset()
	require.Equal(t, memhost.Air, f.w.BlockAt(at(40, 0, 40)))
	require.Equal(t, host.BlockState("dirt"), f.w.BlockAt(at(-1, 0, 0)))
}

func TestCapture_NotCapturingIgnoresEvents(t *testing.T) {
	f := newFixture(t)
	f.capture()
	f.h.BreakBlock(f.w, at(1, 0, 1), f.player)
	f.r.Reset()
	require.Equal(t, 0, f.h.Subscribers())

	f.h.BreakBlock(f.w, at(2, 0, 2), f.player)
	require.Equal(t, 0, f.r.Len())
	require.Equal(t, memhost.Air, f.w.BlockAt(at(2, 0, 2)))
}

func TestCapture_ConnectedFlood(t *testing.T) {
	f := newFixture(t)
	f.w.SetBlock(at(2, 1, 2), "stone")
	f.w.SetBlock(at(2, 2, 2), "torch")
	f.w.SetBlock(at(3, 3, 2), "vine")
	f.w.SetBlock(at(9, 2, 2), "torch")
	before := f.w.Digest()
	f.capture()

	f.h.BreakBlock(f.w, at(2, 1, 2), f.player)
	// the host drops the orphaned decorations
	f.w.SetBlock(at(2, 2, 2), memhost.Air)
	f.w.SetBlock(at(3, 3, 2), memhost.Air)

	require.Equal(t, []BlockSnapshot{
		{Pos: at(2, 1, 2), State: "stone"},
		{Pos: at(2, 2, 2), State: "torch"},
		{Pos: at(3, 3, 2), State: "vine"},
	}, f.r.Snapshots())

	f.r.Reset()
	require.Equal(t, before, f.w.Digest())
}

func TestCapture_FloodStaysInRegion(t *testing.T) {
	f := newFixture(t)
	f.w.SetBlock(at(9, 1, 9), "torch")
	f.w.SetBlock(at(10, 1, 9), "torch")
	f.capture()

	f.h.BreakBlock(f.w, at(9, 0, 9), f.player)
	require.Equal(t, 2, f.r.Len())
	for _, s := range f.r.Snapshots() {
		require.True(t, f.region.Contains(s.Pos), s.Pos.String())
	}
}

func TestCapture_ExplosionFilterDependsOnOrder(t *testing.T) {
	out1, in, out2 := at(-2, 0, 0), at(1, 0, 1), at(12, 0, 0)

	cases := []struct {
		name   string
		blocks []geom.BlockPos
		kept   []geom.BlockPos
	}{
		{"inside first", []geom.BlockPos{in, out1, out2}, []geom.BlockPos{in}},
		{"outside first", []geom.BlockPos{out1, in, out2}, []geom.BlockPos{out1, in}},
		{"inside last", []geom.BlockPos{out1, out2, in}, []geom.BlockPos{out1, out2, in}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			for _, p := range tc.blocks {
				f.w.SetBlock(p, "stone")
			}
			f.capture()
			got := f.h.Explode(f.w, host.ExplodedByBlock, at(1, 1, 1), tc.blocks, uuid.Nil)
			require.Equal(t, tc.kept, got)
			require.Equal(t, []BlockSnapshot{{Pos: in, State: "stone"}}, f.r.Snapshots())
		})
	}
}

func TestCapture_ExplosionOutsideMatchUntouched(t *testing.T) {
	f := newFixture(t)
	f.capture()
	blocks := []geom.BlockPos{at(1, 0, 1), at(-3, 0, 0)}
	got := f.h.Explode(f.w, host.ExplodedByEntity, at(1, 1, 1), blocks, uuid.New())
	require.Equal(t, blocks, got)
	require.Equal(t, 0, f.r.Len())
}

func TestCapture_BucketRecordsBothBlocks(t *testing.T) {
	f := newFixture(t)
	before := f.w.Digest()
	f.capture()

	f.h.UseBucket(f.w, at(4, 0, 4), at(4, 1, 4), false, "water", f.player)
	require.Equal(t, 2, f.r.Len())
	f.r.Reset()
	require.Equal(t, memhost.Air, f.w.BlockAt(at(4, 1, 4)))
	require.Equal(t, before, f.w.Digest())
}

func TestCapture_HangingInsideCancelled(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.h.BreakHanging(at(1, 1, 1), f.player))
	f.capture()
	require.False(t, f.h.BreakHanging(at(1, 1, 1), f.player))
	require.True(t, f.h.BreakHanging(at(30, 1, 1), f.player))
}

func TestReset_SweepsItemsWithMargin(t *testing.T) {
	f := newFixture(t)
	f.w.DropItem(geom.Vec3{X: -3, Y: 1, Z: 1}, "ARROW", 4)
	f.w.DropItem(geom.Vec3{X: 5, Y: 2, Z: 5}, "BOW", 1)
	f.w.DropItem(geom.Vec3{X: 30, Y: 1, Z: 1}, "ARROW", 1)
	f.capture()
	f.h.BreakBlock(f.w, at(5, 0, 5), f.player)

	res := f.r.Reset()
	require.Equal(t, 2, res.Items)
	require.Equal(t, 1, f.w.ItemCount())
}

func TestCheckpointAndRecover(t *testing.T) {
	f := newFixture(t)
	before := f.w.Digest()
	f.capture()

	_, dirty := f.r.Checkpoint()
	require.False(t, dirty)
	f.h.BreakBlock(f.w, at(6, 0, 6), f.player)
	snaps, dirty := f.r.Checkpoint()
	require.True(t, dirty)
	require.Len(t, snaps, 1)
	_, dirty = f.r.Checkpoint()
	require.False(t, dirty)

	// a fresh engine after a crash only has the journal
	fresh := New("sky", f.h, f.h, zerolog.Nop())
	require.Equal(t, 1, fresh.Recover(snaps))
	require.Equal(t, before, f.w.Digest())
}
