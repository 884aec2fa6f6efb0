package geometry

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Radius given to cubes built from boxes with no extent (empty or single point inputs)
const DegenerateRadius = 0.5

// relative tolerances used by Contains so that points lying exactly on a shared octant face
// are accepted by both the parent and the child computed from it, whatever the rounding of
// the child center
const (
	containsRadiusEpsilon = 1e-9
	containsCenterEpsilon = 1e-12
)

// Cubic axis aligned region used as the extent of every octree node
type BoundingCube struct {
	Center r3.Vector
	Radius float64 // half the side length
}

// Builds a new BoundingCube, failing if the radius is not strictly positive
func NewBoundingCube(center r3.Vector, radius float64) (BoundingCube, error) {
	if !(radius > 0) || math.IsInf(radius, 0) {
		return BoundingCube{}, errors.Errorf("invalid bounding cube radius %v", radius)
	}
	return BoundingCube{Center: center, Radius: radius}, nil
}

// Builds the cube enclosing the given box: centered on the box center with a side length equal
// to the largest box dimension
func NewBoundingCubeFromBox(bbox *BoundingBox) BoundingCube {
	radius := bbox.MaxDimension() / 2
	if !(radius > 0) {
		radius = DegenerateRadius
	}
	return BoundingCube{
		Center: r3.Vector{X: bbox.Xmid, Y: bbox.Ymid, Z: bbox.Zmid},
		Radius: radius,
	}
}

func (c BoundingCube) Min() r3.Vector {
	return r3.Vector{X: c.Center.X - c.Radius, Y: c.Center.Y - c.Radius, Z: c.Center.Z - c.Radius}
}

func (c BoundingCube) Max() r3.Vector {
	return r3.Vector{X: c.Center.X + c.Radius, Y: c.Center.Y + c.Radius, Z: c.Center.Z + c.Radius}
}

func (c BoundingCube) Side() float64 {
	return 2 * c.Radius
}

func (c BoundingCube) ChildRadius() float64 {
	return c.Radius / 2
}

func (c BoundingCube) Volume() float64 {
	side := c.Side()
	return side * side * side
}

// Reports whether the point lies inside the cube, faces included
func (c BoundingCube) Contains(p r3.Vector) bool {
	return c.ContainsWithTolerance(p, c.tolerance())
}

func (c BoundingCube) tolerance() float64 {
	magnitude := math.Max(math.Abs(c.Center.X), math.Max(math.Abs(c.Center.Y), math.Abs(c.Center.Z)))
	return containsRadiusEpsilon*c.Radius + containsCenterEpsilon*magnitude
}

func (c BoundingCube) ContainsWithTolerance(p r3.Vector, tolerance float64) bool {
	r := c.Radius + tolerance
	return math.Abs(p.X-c.Center.X) <= r &&
		math.Abs(p.Y-c.Center.Y) <= r &&
		math.Abs(p.Z-c.Center.Z) <= r
}

func (c BoundingCube) AsBoundingBox() *BoundingBox {
	min, max := c.Min(), c.Max()
	return NewBoundingBox(min.X, max.X, min.Y, max.Y, min.Z, max.Z)
}
