package geom

// Region is an axis-aligned cuboid of blocks in one world. Min and Max are
// inclusive and always normalized.
type Region struct {
	World string
	Min   BlockPos
	Max   BlockPos
}

// NewRegion builds a normalized region from two arbitrary corners.
func NewRegion(world string, a, b BlockPos) Region {
	lo := BlockPos{World: world, X: min(a.X, b.X), Y: min(a.Y, b.Y), Z: min(a.Z, b.Z)}
	hi := BlockPos{World: world, X: max(a.X, b.X), Y: max(a.Y, b.Y), Z: max(a.Z, b.Z)}
	return Region{World: world, Min: lo, Max: hi}
}

func (r Region) Contains(p BlockPos) bool {
	if p.World != r.World {
		return false
	}
	return p.X >= r.Min.X && p.X <= r.Max.X &&
		p.Y >= r.Min.Y && p.Y <= r.Max.Y &&
		p.Z >= r.Min.Z && p.Z <= r.Max.Z
}

// Volume is the number of blocks in the region.
func (r Region) Volume() int {
	return (r.Max.X - r.Min.X + 1) * (r.Max.Y - r.Min.Y + 1) * (r.Max.Z - r.Min.Z + 1)
}

// Bounds returns the continuous box covering the region, grown by margin on every side.
func (r Region) Bounds(margin float64) Box {
	return Box{
		World: r.World,
		Min:   Vec3{X: float64(r.Min.X) - margin, Y: float64(r.Min.Y) - margin, Z: float64(r.Min.Z) - margin},
		Max:   Vec3{X: float64(r.Max.X+1) + margin, Y: float64(r.Max.Y+1) + margin, Z: float64(r.Max.Z+1) + margin},
	}
}

// Box is a continuous axis-aligned volume used for entity queries.
type Box struct {
	World string
	Min   Vec3
	Max   Vec3
}

func (b Box) Contains(world string, v Vec3) bool {
	if world != b.World {
		return false
	}
	return v.X >= b.Min.X && v.X <= b.Max.X &&
		v.Y >= b.Min.Y && v.Y <= b.Max.Y &&
		v.Z >= b.Min.Z && v.Z <= b.Max.Z
}
