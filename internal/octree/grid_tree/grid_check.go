package grid_tree

import (
	stdio "io"

	"github.com/ecopia-map/octree_indexer/internal/geometry"
	"github.com/ecopia-map/octree_indexer/internal/io"
	"github.com/pkg/errors"
)

// Summary of a node file read back from disk
type NodeFileCheck struct {
	PointCount  int64
	OutsideCube int64 // points lying outside the node cube
	SharedCells int64 // points falling in a grid cell already holding another point
}

// Reads a node file and checks its points against the node cube and, if cellSize is positive,
// against the grid the node was decimated with. A zero tolerance uses the default relative one.
func CheckNodeFile(format io.Format, path string, cube geometry.BoundingCube, cellSize float64, tolerance float64) (*NodeFileCheck, error) {
	reader, err := format.Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var grid *voxelGrid
	if cellSize > 0 {
		grid = newVoxelGrid(cube.Min(), cellSize)
	}

	check := &NodeFileCheck{}
	for {
		point, err := reader.Next()
		if err == stdio.EOF {
			break
		}
		if err != nil {
			return check, errors.Wrapf(err, "cannot read %s", path)
		}
		check.PointCount++

		position := point.Position()
		inside := cube.Contains(position)
		if tolerance > 0 {
			inside = cube.ContainsWithTolerance(position, tolerance)
		}
		if !inside {
			check.OutsideCube++
		}
		if grid != nil && grid.pushPoint(point) != nil {
			check.SharedCells++
		}
	}
	return check, nil
}
