package grid_tree

import (
	"math"
	"sort"

	"github.com/ecopia-map/octree_indexer/internal/data"
	"github.com/golang/geo/r3"
)

// Integer coordinates of a grid cell inside a node, relative to the node cube minimum.
// All three axes take part in the key: distinct cells never share an entry.
type gridIndex struct {
	x int64
	y int64
	z int64
}

func (i gridIndex) less(other gridIndex) bool {
	if i.x != other.x {
		return i.x < other.x
	}
	if i.y != other.y {
		return i.y < other.y
	}
	return i.z < other.z
}

// A cubic cell retaining the single point closest to its center
type gridCell struct {
	index    gridIndex
	center   r3.Vector
	point    *data.Point
	distance float64 // distance between point and center
}

// Stores the point if it is closer to the cell center than the current occupant and returns the
// point pushed out: the previous occupant, the given point itself, or nil if the cell was empty.
// On equal distances the occupant stays.
func (c *gridCell) pushPoint(point *data.Point) *data.Point {
	distance := point.Position().Distance(c.center)
	if c.point == nil {
		c.point = point
		c.distance = distance
		return nil
	}
	if distance < c.distance {
		pushedOut := c.point
		c.point = point
		c.distance = distance
		return pushedOut
	}
	return point
}

// Regular grid of cubic cells of the given size anchored at origin, holding at most one point per cell
type voxelGrid struct {
	origin   r3.Vector
	cellSize float64
	cells    map[gridIndex]*gridCell
}

func newVoxelGrid(origin r3.Vector, cellSize float64) *voxelGrid {
	return &voxelGrid{
		origin:   origin,
		cellSize: cellSize,
		cells:    make(map[gridIndex]*gridCell),
	}
}

// returns the index of the cell where the input position is falling in
func (g *voxelGrid) getPointGridCellIndex(p r3.Vector) gridIndex {
	return gridIndex{
		getDimensionIndex(p.X, g.origin.X, g.cellSize),
		getDimensionIndex(p.Y, g.origin.Y, g.cellSize),
		getDimensionIndex(p.Z, g.origin.Z, g.cellSize),
	}
}

func getDimensionIndex(value float64, origin float64, cellSize float64) int64 {
	return int64(math.Floor((value - origin) / cellSize))
}

func (g *voxelGrid) getCellCenter(index gridIndex) r3.Vector {
	return r3.Vector{
		X: g.origin.X + (float64(index.x)+0.5)*g.cellSize,
		Y: g.origin.Y + (float64(index.y)+0.5)*g.cellSize,
		Z: g.origin.Z + (float64(index.z)+0.5)*g.cellSize,
	}
}

// pushes a point to its grid cell and returns the point eventually pushed out
func (g *voxelGrid) pushPoint(point *data.Point) *data.Point {
	index := g.getPointGridCellIndex(point.Position())
	cell := g.cells[index]
	if cell == nil {
		cell = &gridCell{index: index, center: g.getCellCenter(index)}
		g.cells[index] = cell
	}
	return cell.pushPoint(point)
}

func (g *voxelGrid) numberOfPoints() int {
	return len(g.cells)
}

// Points retained by the cells, ordered by cell index so that output files are reproducible
func (g *voxelGrid) getPoints() []*data.Point {
	cells := make([]*gridCell, 0, len(g.cells))
	for _, cell := range g.cells {
		cells = append(cells, cell)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i].index.less(cells[j].index) })

	points := make([]*data.Point, len(cells))
	for i, cell := range cells {
		points[i] = cell.point
	}
	return points
}
