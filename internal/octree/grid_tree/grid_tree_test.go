package grid_tree

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/ecopia-map/octree_indexer/internal/geometry"
	"github.com/ecopia-map/octree_indexer/internal/io"
	"github.com/ecopia-map/octree_indexer/internal/octree"
	"github.com/ecopia-map/octree_indexer/internal/tiler"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/test"
)

type recordedNode struct {
	path      string
	file      string
	count     int64
	decimated bool
}

type testRecorder struct {
	nodes   map[string]recordedNode
	skipped []string
}

func newTestRecorder() *testRecorder {
	return &testRecorder{nodes: map[string]recordedNode{}}
}

func (r *testRecorder) RecordNode(result *octree.NodeResult) {
	r.nodes[result.Work.NodePath] = recordedNode{result.Work.NodePath, result.Work.OutputPath, result.PointCount, true}
}

func (r *testRecorder) RecordLeaf(work *io.WorkUnit) {
	r.nodes[work.NodePath] = recordedNode{work.NodePath, work.OutputPath, work.InputCount, false}
}

func (r *testRecorder) RecordSkipped(work *io.WorkUnit) {
	r.skipped = append(r.skipped, work.NodePath)
}

func (r *testRecorder) paths() []string {
	paths := make([]string, 0, len(r.nodes))
	for path := range r.nodes {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

type memoryJournal struct {
	records map[string]*octree.NodeRecord
}

func (j *memoryJournal) Completed(nodePath string) (*octree.NodeRecord, bool, error) {
	record, ok := j.records[nodePath]
	return record, ok, nil
}

func (j *memoryJournal) MarkCompleted(record *octree.NodeRecord) error {
	j.records[record.Path] = record
	return nil
}

// fails as if the input of the given node was missing
type unavailableNodeProcessor struct {
	octree.INodeProcessor
	nodePath string
}

func (p *unavailableNodeProcessor) Process(work *io.WorkUnit) (*octree.NodeResult, error) {
	if work.NodePath == p.nodePath {
		return &octree.NodeResult{Work: work}, errors.Wrap(octree.ErrNodeInputUnavailable, work.InputPath)
	}
	return p.INodeProcessor.Process(work)
}

func newTestTree(input string, output string, target int64, journal octree.INodeJournal, recorder octree.INodeRecorder) *GridTree {
	format := io.NewXyzFormat()
	return NewGridTree(NewGridNode(format), format, GridTreeOptions{
		InputPath:        input,
		OutputDir:        output,
		BaseName:         "r",
		TargetPointCount: target,
		QueueOrder:       tiler.BreadthFirst,
		MaxDepth:         tiler.DefaultMaxDepth,
	}, journal, recorder)
}

func TestComputeInitialCellSize(t *testing.T) {
	box := geometry.NewBoundingBox(0, 10, 0, 10, 0, 10)
	cube := ComputeRootCube(box)
	test.That(t, cube.Center, test.ShouldResemble, r3.Vector{X: 5, Y: 5, Z: 5})
	test.That(t, cube.Radius, test.ShouldEqual, 5.)
	test.That(t, ComputeInitialCellSize(box, cube, 1000), test.ShouldAlmostEqual, 1.)
	test.That(t, ComputeInitialCellSize(box, cube, 8), test.ShouldAlmostEqual, 5.)

	// flat boxes fall back to the cube volume
	flat := geometry.NewBoundingBox(0, 10, 0, 10, 3, 3)
	test.That(t, ComputeInitialCellSize(flat, ComputeRootCube(flat), 1000), test.ShouldAlmostEqual, 1.)
}

func TestGridTreeBuild(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.xyz")
	output := filepath.Join(dir, "out")
	test.That(t, mkdir(output), test.ShouldBeNil)

	cube := geometry.BoundingCube{Center: r3.Vector{X: 5, Y: 5, Z: 5}, Radius: 5}
	points := randomPoints(11, 5000, cube)
	writeXyzPoints(t, input, points)

	recorder := newTestRecorder()
	tree := newTestTree(input, output, 200, nil, recorder)
	stats, err := tree.Build()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stats.ProcessedNodes, test.ShouldBeGreaterThan, 1)
	test.That(t, stats.SkippedNodes, test.ShouldEqual, 0)
	test.That(t, stats.TruncatedNodes, test.ShouldEqual, 0)

	// every point ends up in exactly one node file
	var total int64
	for _, path := range recorder.paths() {
		node := recorder.nodes[path]
		test.That(t, node.file, test.ShouldEqual, filepath.Join(output, "r"+path+".xyz"))
		filePoints := readXyzPoints(t, node.file)
		test.That(t, int64(len(filePoints)), test.ShouldEqual, node.count)
		if !node.decimated {
			test.That(t, node.count, test.ShouldBeLessThanOrEqualTo, int64(200))
		}
		nodeCube := octree.NodeCube(tree.GetTopology().Bounds(), path)
		for _, p := range filePoints {
			test.That(t, nodeCube.Contains(p), test.ShouldBeTrue)
		}
		total += node.count
	}
	test.That(t, total, test.ShouldEqual, int64(len(points)))

	topo := tree.GetTopology()
	test.That(t, topo.NodeCount(), test.ShouldEqual, len(recorder.nodes))
	test.That(t, topo.NodeCount(), test.ShouldEqual, stats.ProcessedNodes+stats.LeafNodes)
	test.That(t, topo.Depth(), test.ShouldEqual, stats.MaxDepth)
	for _, path := range recorder.paths() {
		test.That(t, topo.Find(path), test.ShouldNotBeNil)
	}

	_, err = tree.Build()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGridTreeEmptyInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.xyz")
	writeXyzPoints(t, input, nil)

	output := filepath.Join(dir, "out")
	test.That(t, mkdir(output), test.ShouldBeNil)
	recorder := newTestRecorder()
	tree := newTestTree(input, output, 10, nil, recorder)
	stats, err := tree.Build()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stats, test.ShouldResemble, &octree.BuildStats{ProcessedNodes: 1})
	test.That(t, recorder.paths(), test.ShouldResemble, []string{""})
	test.That(t, readXyzPoints(t, filepath.Join(output, "r.xyz")), test.ShouldBeEmpty)
	test.That(t, tree.GetTopology().NodeCount(), test.ShouldEqual, 1)
}

func TestGridTreeMissingInput(t *testing.T) {
	dir := t.TempDir()
	tree := newTestTree(filepath.Join(dir, "missing.xyz"), dir, 10, nil, nil)
	_, err := tree.Build()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGridTreeInvalidTarget(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.xyz")
	writeXyzPoints(t, input, []r3.Vector{{X: 1, Y: 2, Z: 3}})
	_, err := newTestTree(input, dir, 0, nil, nil).Build()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestGridTreeCoincidentPoints(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.xyz")
	points := make([]r3.Vector, 50)
	for i := range points {
		points[i] = r3.Vector{X: 1, Y: 1, Z: 1}
	}
	writeXyzPoints(t, input, points)

	format := io.NewXyzFormat()
	recorder := newTestRecorder()
	tree := NewGridTree(NewGridNode(format), format, GridTreeOptions{
		InputPath:        input,
		OutputDir:        dir,
		BaseName:         "r",
		TargetPointCount: 10,
		MaxDepth:         3,
	}, nil, recorder)
	stats, err := tree.Build()
	test.That(t, err, test.ShouldBeNil)

	// the points sit on the root center, then on the minimum corner of every node below it:
	// each level keeps one of them and routes the rest to a single child
	test.That(t, stats.ProcessedNodes, test.ShouldEqual, 4)
	test.That(t, stats.TruncatedNodes, test.ShouldEqual, 1)
	test.That(t, stats.MaxDepth, test.ShouldEqual, 4)
	test.That(t, recorder.paths(), test.ShouldResemble, []string{"", "7", "70", "700", "7000"})
	test.That(t, recorder.nodes["7000"].count, test.ShouldEqual, int64(46))
	test.That(t, recorder.nodes["7000"].decimated, test.ShouldBeFalse)
}

// without MaxDepth, coincident points stop where the next file names would be too long
func TestGridTreeCoincidentPointsUnlimitedDepth(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.xyz")
	points := make([]r3.Vector, 50)
	for i := range points {
		points[i] = r3.Vector{X: 1, Y: 1, Z: 1}
	}
	writeXyzPoints(t, input, points)

	format := io.NewXyzFormat()
	baseName := strings.Repeat("n", 240)
	maxDepth := octree.MaxNodeDepth(baseName, format.Extension())
	test.That(t, maxDepth, test.ShouldEqual, 7)

	recorder := newTestRecorder()
	tree := NewGridTree(NewGridNode(format), format, GridTreeOptions{
		InputPath:        input,
		OutputDir:        dir,
		BaseName:         baseName,
		TargetPointCount: 10,
	}, nil, recorder)
	stats, err := tree.Build()
	test.That(t, err, test.ShouldBeNil)

	test.That(t, stats.ProcessedNodes, test.ShouldEqual, maxDepth+1)
	test.That(t, stats.TruncatedNodes, test.ShouldEqual, 1)
	test.That(t, stats.MaxDepth, test.ShouldEqual, maxDepth+1)
	deepest := "7" + strings.Repeat("0", maxDepth)
	test.That(t, recorder.nodes[deepest].count, test.ShouldEqual, int64(50-maxDepth-1))
	test.That(t, recorder.nodes[deepest].decimated, test.ShouldBeFalse)
	_, err = os.Stat(filepath.Join(dir, octree.NodeFileName(baseName, deepest, format.Extension())))
	test.That(t, err, test.ShouldBeNil)
}

func TestGridTreeSkipsUnavailableNodes(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.xyz")
	cube := geometry.BoundingCube{Center: r3.Vector{}, Radius: 1}
	writeXyzPoints(t, input, randomPoints(5, 4000, cube))

	format := io.NewXyzFormat()
	recorder := newTestRecorder()
	processor := &unavailableNodeProcessor{INodeProcessor: NewGridNode(format), nodePath: "0"}
	tree := NewGridTree(processor, format, GridTreeOptions{
		InputPath:        input,
		OutputDir:        dir,
		BaseName:         "r",
		TargetPointCount: 100,
	}, nil, recorder)
	stats, err := tree.Build()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stats.SkippedNodes, test.ShouldEqual, 1)
	test.That(t, recorder.skipped, test.ShouldResemble, []string{"0"})
	for _, path := range recorder.paths() {
		test.That(t, len(path) > 1 && path[0] == '0', test.ShouldBeFalse)
	}

	t.Run("root input is required", func(t *testing.T) {
		processor := &unavailableNodeProcessor{INodeProcessor: NewGridNode(format), nodePath: ""}
		tree := NewGridTree(processor, format, GridTreeOptions{
			InputPath:        input,
			OutputDir:        t.TempDir(),
			BaseName:         "r",
			TargetPointCount: 100,
		}, nil, nil)
		_, err := tree.Build()
		test.That(t, errors.Is(err, octree.ErrNodeInputUnavailable), test.ShouldBeTrue)
	})
}

func TestGridTreeQueueOrders(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.xyz")
	cube := geometry.BoundingCube{Center: r3.Vector{X: -3, Y: 4, Z: 0}, Radius: 2}
	writeXyzPoints(t, input, randomPoints(9, 3000, cube))

	build := func(order tiler.QueueOrder) *testRecorder {
		format := io.NewXyzFormat()
		recorder := newTestRecorder()
		tree := NewGridTree(NewGridNode(format), format, GridTreeOptions{
			InputPath:        input,
			OutputDir:        t.TempDir(),
			BaseName:         "r",
			TargetPointCount: 50,
			QueueOrder:       order,
		}, nil, recorder)
		_, err := tree.Build()
		test.That(t, err, test.ShouldBeNil)
		return recorder
	}

	bfs := build(tiler.BreadthFirst)
	dfs := build(tiler.DepthFirst)
	test.That(t, dfs.paths(), test.ShouldResemble, bfs.paths())
	for _, path := range bfs.paths() {
		test.That(t, dfs.nodes[path].count, test.ShouldEqual, bfs.nodes[path].count)
		test.That(t, dfs.nodes[path].decimated, test.ShouldEqual, bfs.nodes[path].decimated)
	}
}

func TestGridTreeResume(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.xyz")
	cube := geometry.BoundingCube{Center: r3.Vector{X: 0, Y: 0, Z: 0}, Radius: 10}
	writeXyzPoints(t, input, randomPoints(13, 3000, cube))

	journal := &memoryJournal{records: map[string]*octree.NodeRecord{}}
	first := newTestRecorder()
	tree := newTestTree(input, dir, 100, journal, first)
	stats, err := tree.Build()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, journal.records, test.ShouldHaveLength, stats.ProcessedNodes)

	second := newTestRecorder()
	resumed := newTestTree(input, dir, 100, journal, second)
	resumedStats, err := resumed.Build()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resumedStats.ProcessedNodes, test.ShouldEqual, 0)
	test.That(t, resumedStats.ResumedNodes, test.ShouldEqual, stats.ProcessedNodes)
	test.That(t, resumedStats.LeafNodes, test.ShouldEqual, stats.LeafNodes)
	test.That(t, second.nodes, test.ShouldResemble, first.nodes)
	test.That(t, resumed.GetTopology().Equal(tree.GetTopology()), test.ShouldBeTrue)
}

func mkdir(path string) error {
	return os.MkdirAll(path, 0o755)
}
