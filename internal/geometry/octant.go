package geometry

import "github.com/golang/geo/r3"

// Octant bit assignment shared by GetOctant and ChildCube:
// bit 0 set if X >= center, bit 1 if Y >= center, bit 2 if Z >= center.
// Octant 0 is the bottom front left child, octant 7 the top back right one.
const (
	OctantBitX uint8 = 1 << iota
	OctantBitY
	OctantBitZ
)

const NumOctants = 8

// Returns the index of the octant of the cube that contains the given position
func GetOctant(p r3.Vector, cube BoundingCube) uint8 {
	var result uint8 = 0
	if p.X >= cube.Center.X {
		result |= OctantBitX
	}
	if p.Y >= cube.Center.Y {
		result |= OctantBitY
	}
	if p.Z >= cube.Center.Z {
		result |= OctantBitZ
	}
	return result
}

// Returns the cube of the given child octant: half the radius, center shifted by half the
// parent radius along each axis according to the octant bits
func ChildCube(parent BoundingCube, octant uint8) BoundingCube {
	r := parent.ChildRadius()
	offset := r3.Vector{X: -r, Y: -r, Z: -r}
	if octant&OctantBitX != 0 {
		offset.X = r
	}
	if octant&OctantBitY != 0 {
		offset.Y = r
	}
	if octant&OctantBitZ != 0 {
		offset.Z = r
	}
	return BoundingCube{Center: parent.Center.Add(offset), Radius: r}
}
