package geom

import "fmt"

// BlockPos addresses a single block tile in a named world.
type BlockPos struct {
	World string
	X     int
	Y     int
	Z     int
}

func (p BlockPos) String() string {
	return fmt.Sprintf("%s(%d,%d,%d)", p.World, p.X, p.Y, p.Z)
}

func (p BlockPos) Add(dx, dy, dz int) BlockPos {
	return BlockPos{World: p.World, X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

// Less orders positions by world, then x, y, z.
func (p BlockPos) Less(o BlockPos) bool {
	if p.World != o.World {
		return p.World < o.World
	}
	if p.X != o.X {
		return p.X < o.X
	}
	if p.Y != o.Y {
		return p.Y < o.Y
	}
	return p.Z < o.Z
}

// Neighborhood returns the 26 positions of the 3x3x3 cube around p (p excluded).
func (p BlockPos) Neighborhood() []BlockPos {
	out := make([]BlockPos, 0, 26)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				out = append(out, p.Add(dx, dy, dz))
			}
		}
	}
	return out
}

type Vec3 struct {
	X float64
	Y float64
	Z float64
}

// Location is an entity position with facing.
type Location struct {
	World string  `yaml:"world"`
	X     float64 `yaml:"x"`
	Y     float64 `yaml:"y"`
	Z     float64 `yaml:"z"`
	Yaw   float32 `yaml:"yaw,omitempty"`
	Pitch float32 `yaml:"pitch,omitempty"`
}

func (l Location) Vec() Vec3 { return Vec3{X: l.X, Y: l.Y, Z: l.Z} }

func (l Location) Block() BlockPos {
	return BlockPos{World: l.World, X: floor(l.X), Y: floor(l.Y), Z: floor(l.Z)}
}

func floor(v float64) int {
	i := int(v)
	if v < 0 && float64(i) != v {
		i--
	}
	return i
}
