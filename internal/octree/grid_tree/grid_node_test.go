package grid_tree

import (
	stdio "io"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/ecopia-map/octree_indexer/internal/data"
	"github.com/ecopia-map/octree_indexer/internal/geometry"
	"github.com/ecopia-map/octree_indexer/internal/io"
	"github.com/ecopia-map/octree_indexer/internal/octree"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

func writeXyzPoints(t *testing.T, path string, points []r3.Vector) {
	t.Helper()
	writer, err := io.NewXyzFormat().Create(path, nil)
	test.That(t, err, test.ShouldBeNil)
	for i, p := range points {
		err := writer.Write(data.NewPoint(p.X, p.Y, p.Z, uint16(i%256), 0, 0, uint16(i), 0, nil))
		test.That(t, err, test.ShouldBeNil)
	}
	test.That(t, writer.Close(), test.ShouldBeNil)
}

func readXyzPoints(t *testing.T, path string) []r3.Vector {
	t.Helper()
	reader, err := io.NewXyzFormat().Open(path)
	test.That(t, err, test.ShouldBeNil)
	defer reader.Close()

	points := make([]r3.Vector, 0)
	for {
		point, err := reader.Next()
		if err == stdio.EOF {
			break
		}
		test.That(t, err, test.ShouldBeNil)
		points = append(points, point.Position())
	}
	return points
}

func randomPoints(seed int64, n int, cube geometry.BoundingCube) []r3.Vector {
	rnd := rand.New(rand.NewSource(seed))
	min := cube.Min()
	points := make([]r3.Vector, n)
	for i := range points {
		points[i] = r3.Vector{
			X: min.X + rnd.Float64()*cube.Side(),
			Y: min.Y + rnd.Float64()*cube.Side(),
			Z: min.Z + rnd.Float64()*cube.Side(),
		}
	}
	return points
}

func TestGridNodeOctantCenters(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.xyz")
	cube := geometry.BoundingCube{Center: r3.Vector{}, Radius: 1}
	writeXyzPoints(t, input, []r3.Vector{
		{X: -0.5, Y: -0.5, Z: -0.5},
		{X: 0.5, Y: -0.5, Z: -0.5},
		{X: -0.5, Y: 0.5, Z: -0.5},
		{X: 0.5, Y: 0.5, Z: 0.5},
	})

	work := &io.WorkUnit{
		InputPath:  input,
		OutputPath: filepath.Join(dir, "r.xyz"),
		Cube:       cube,
		CellSize:   cube.Side(),
	}
	result, err := NewGridNode(io.NewXyzFormat()).Process(work)
	test.That(t, err, test.ShouldBeNil)

	// a single cell holds all the points at the same distance from its center: the first one stays
	test.That(t, result.InputCount, test.ShouldEqual, int64(4))
	test.That(t, result.PointCount, test.ShouldEqual, int64(1))
	test.That(t, result.Counts, test.ShouldResemble, octree.ChildCounts{0, 1, 1, 0, 0, 0, 0, 1})
	test.That(t, result.PendingOutput, test.ShouldEqual, "")
	test.That(t, readXyzPoints(t, work.OutputPath), test.ShouldResemble, []r3.Vector{{X: -0.5, Y: -0.5, Z: -0.5}})

	for i := 0; i < geometry.NumOctants; i++ {
		childFile := octree.ComputeFilePath(work.OutputPath, uint8(i))
		_, statErr := os.Stat(childFile)
		test.That(t, statErr == nil, test.ShouldEqual, result.Counts[i] > 0)
	}
	test.That(t, readXyzPoints(t, filepath.Join(dir, "r7.xyz")), test.ShouldResemble, []r3.Vector{{X: 0.5, Y: 0.5, Z: 0.5}})
}

func TestGridNodeConservation(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.xyz")
	cube := geometry.BoundingCube{Center: r3.Vector{X: 100, Y: -50, Z: 10}, Radius: 8}
	points := randomPoints(7, 3000, cube)
	writeXyzPoints(t, input, points)

	work := &io.WorkUnit{
		InputPath:  input,
		OutputPath: filepath.Join(dir, "r.xyz"),
		Cube:       cube,
		CellSize:   2,
		InputCount: int64(len(points)),
	}
	result, err := NewGridNode(io.NewXyzFormat()).Process(work)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.InputCount, test.ShouldEqual, int64(len(points)))
	test.That(t, result.PointCount+result.Counts.Sum(), test.ShouldEqual, result.InputCount)

	// one point per occupied cell, the closest to the cell center
	grid := newVoxelGrid(cube.Min(), work.CellSize)
	closest := map[gridIndex]float64{}
	for _, p := range points {
		index := grid.getPointGridCellIndex(p)
		d := p.Distance(grid.getCellCenter(index))
		if current, ok := closest[index]; !ok || d < current {
			closest[index] = d
		}
	}
	retained := readXyzPoints(t, work.OutputPath)
	test.That(t, len(retained), test.ShouldEqual, len(closest))
	test.That(t, int64(len(retained)), test.ShouldEqual, result.PointCount)
	seen := map[gridIndex]bool{}
	for _, p := range retained {
		index := grid.getPointGridCellIndex(p)
		test.That(t, seen[index], test.ShouldBeFalse)
		seen[index] = true
		test.That(t, p.Distance(grid.getCellCenter(index)), test.ShouldEqual, closest[index])
	}

	// every routed point lies in the cube of its child
	for i := 0; i < geometry.NumOctants; i++ {
		childFile := octree.ComputeFilePath(work.OutputPath, uint8(i))
		if result.Counts[i] == 0 {
			continue
		}
		childCube := geometry.ChildCube(cube, uint8(i))
		childPoints := readXyzPoints(t, childFile)
		test.That(t, int64(len(childPoints)), test.ShouldEqual, result.Counts[i])
		for _, p := range childPoints {
			test.That(t, childCube.Contains(p), test.ShouldBeTrue)
		}
	}

	check, err := CheckNodeFile(io.NewXyzFormat(), work.OutputPath, cube, work.CellSize, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, check, test.ShouldResemble, &NodeFileCheck{PointCount: result.PointCount})
}

func TestGridNodeEmptyInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "empty.xyz")
	writeXyzPoints(t, input, nil)

	work := &io.WorkUnit{
		InputPath:  input,
		OutputPath: filepath.Join(dir, "r.xyz"),
		Cube:       geometry.BoundingCube{Radius: geometry.DegenerateRadius},
		CellSize:   1,
	}
	result, err := NewGridNode(io.NewXyzFormat()).Process(work)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.PointCount, test.ShouldEqual, int64(0))
	test.That(t, result.Counts, test.ShouldResemble, octree.ChildCounts{})
	test.That(t, readXyzPoints(t, work.OutputPath), test.ShouldBeEmpty)

	entries, err := os.ReadDir(dir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, entries, test.ShouldHaveLength, 2)
}

func TestGridNodeInputUnavailable(t *testing.T) {
	dir := t.TempDir()
	work := &io.WorkUnit{
		NodePath:   "3",
		InputPath:  filepath.Join(dir, "r3.xyz"),
		OutputPath: filepath.Join(dir, "r3.xyz"),
		Cube:       geometry.BoundingCube{Radius: 1},
		CellSize:   1,
	}
	result, err := NewGridNode(io.NewXyzFormat()).Process(work)
	test.That(t, errors.Is(err, octree.ErrNodeInputUnavailable), test.ShouldBeTrue)
	test.That(t, result.Counts, test.ShouldResemble, octree.ChildCounts{})
	test.That(t, result.PointCount, test.ShouldEqual, int64(0))
}

func TestGridNodeInPlace(t *testing.T) {
	dir := t.TempDir()
	cube := geometry.BoundingCube{Center: r3.Vector{X: 1, Y: 1, Z: 1}, Radius: 1}
	nodeFile := filepath.Join(dir, "r5.xyz")
	points := randomPoints(3, 500, cube)
	writeXyzPoints(t, nodeFile, points)

	work := &io.WorkUnit{
		NodePath:   "5",
		InputPath:  nodeFile,
		OutputPath: nodeFile,
		Cube:       cube,
		CellSize:   0.5,
	}
	result, err := NewGridNode(io.NewXyzFormat()).Process(work)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, result.PendingOutput, test.ShouldEqual, filepath.Join(dir, "r5.tmp.xyz"))
	// the node file is left untouched until the result is committed
	test.That(t, readXyzPoints(t, nodeFile), test.ShouldHaveLength, len(points))

	test.That(t, result.Commit(), test.ShouldBeNil)
	test.That(t, int64(len(readXyzPoints(t, nodeFile))), test.ShouldEqual, result.PointCount)
	_, err = os.Stat(filepath.Join(dir, "r5.tmp.xyz"))
	test.That(t, os.IsNotExist(err), test.ShouldBeTrue)
	test.That(t, result.Commit(), test.ShouldBeNil)

	// children of r5 are r50..r57
	test.That(t, result.Counts.Sum(), test.ShouldBeGreaterThan, int64(0))
	for i := 0; i < geometry.NumOctants; i++ {
		if result.Counts[i] > 0 {
			_, err := os.Stat(filepath.Join(dir, "r5"+string(rune('0'+i))+".xyz"))
			test.That(t, err, test.ShouldBeNil)
		}
	}
}
