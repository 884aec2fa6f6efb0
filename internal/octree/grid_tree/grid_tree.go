package grid_tree

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/ecopia-map/octree_indexer/internal/geometry"
	"github.com/ecopia-map/octree_indexer/internal/io"
	"github.com/ecopia-map/octree_indexer/internal/octree"
	"github.com/ecopia-map/octree_indexer/internal/octree/topology"
	"github.com/ecopia-map/octree_indexer/internal/tiler"
	"github.com/ecopia-map/octree_indexer/tools"
	"github.com/golang/glog"
	"github.com/pkg/errors"
)

type GridTreeOptions struct {
	InputPath        string
	OutputDir        string
	BaseName         string
	TargetPointCount int64
	QueueOrder       tiler.QueueOrder
	MaxDepth         int // 0 for as deep as node file names allow
}

// Builds the octree one node at a time. The root is decimated from the input file, then every
// child left with more points than the target is queued and decimated in place with a cell size
// half the one of its parent, until the queue is empty.
type GridTree struct {
	processor octree.INodeProcessor
	format    io.Format
	options   GridTreeOptions
	journal   octree.INodeJournal
	recorder  octree.INodeRecorder

	topology *topology.Tree
	stats    *octree.BuildStats
	built    bool
}

// journal and recorder are optional
func NewGridTree(
	processor octree.INodeProcessor,
	format io.Format,
	options GridTreeOptions,
	journal octree.INodeJournal,
	recorder octree.INodeRecorder,
) *GridTree {
	return &GridTree{
		processor: processor,
		format:    format,
		options:   options,
		journal:   journal,
		recorder:  recorder,
	}
}

// Builds the hierarchical tree structure
func (tree *GridTree) Build() (*octree.BuildStats, error) {
	if tree.built {
		return nil, errors.New("octree already built")
	}
	if tree.options.TargetPointCount <= 0 {
		return nil, errors.Errorf("target point count must be positive, got %d", tree.options.TargetPointCount)
	}

	root, err := tree.rootWorkUnit()
	if err != nil {
		return nil, err
	}
	tree.topology = topology.NewTree(root.Cube)
	tree.stats = &octree.BuildStats{}

	queue := io.NewTaskQueue(tree.options.QueueOrder)
	queue.Push(root)
	for queue.Len() > 0 {
		work, _ := queue.Pop()
		result, err := tree.processNode(work)
		if err != nil {
			return tree.stats, err
		}
		if result == nil {
			continue
		}
		tree.enqueueChildren(queue, result)
	}

	tree.built = true
	return tree.stats, nil
}

func (tree *GridTree) GetTopology() *topology.Tree {
	return tree.topology
}

func (tree *GridTree) rootWorkUnit() (*io.WorkUnit, error) {
	reader, err := tree.format.Open(tree.options.InputPath)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open input")
	}
	header, err := reader.Header()
	closeErr := reader.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read header of %s", tree.options.InputPath)
	}
	if closeErr != nil {
		return nil, errors.Wrapf(closeErr, "cannot close %s", tree.options.InputPath)
	}

	bbox := header.BoundingBox()
	cube := ComputeRootCube(bbox)
	cellSize := ComputeInitialCellSize(bbox, cube, tree.options.TargetPointCount)

	tools.LogOutput(
		fmt.Sprintf("Input %s: %d points", tree.options.InputPath, header.NumberPoints),
		"\n - Box = "+tools.FmtJSONString(bbox.GetAsArray()),
		"\n - Root cube center = ("+tools.FormatVector(cube.Center)+"), radius = "+tools.FormatFloat(cube.Radius),
	)

	output := filepath.Join(tree.options.OutputDir, octree.NodeFileName(tree.options.BaseName, "", tree.format.Extension()))
	return &io.WorkUnit{
		NodePath:   "",
		InputPath:  tree.options.InputPath,
		OutputPath: output,
		Cube:       cube,
		CellSize:   cellSize,
		InputCount: header.NumberPoints,
	}, nil
}

// Returns the result of the node, or nil if the node input could not be opened and the node was skipped
func (tree *GridTree) processNode(work *io.WorkUnit) (*octree.NodeResult, error) {
	if result, ok, err := tree.resumeNode(work); err != nil || ok {
		return result, err
	}

	result, err := tree.processor.Process(work)
	if err != nil {
		if errors.Is(err, octree.ErrNodeInputUnavailable) && !work.IsRoot() {
			glog.Warningf("skipping node %q: %v", work.NodePath, err)
			tree.stats.SkippedNodes++
			tree.recordSkipped(work)
			return nil, nil
		}
		return nil, errors.Wrapf(err, "cannot process node %q", work.NodePath)
	}

	if tree.journal != nil {
		if err := tree.journal.MarkCompleted(octree.NewNodeRecord(result)); err != nil {
			return nil, errors.Wrapf(err, "cannot journal node %q", work.NodePath)
		}
	}
	if err := result.Commit(); err != nil {
		return nil, err
	}

	LogNodeResult(result)
	tree.stats.ProcessedNodes++
	tree.trackDepth(work)
	tree.recordNode(result)
	return result, nil
}

// takes over a node a previous run already completed, committing its output if the run stopped
// right before doing it
func (tree *GridTree) resumeNode(work *io.WorkUnit) (*octree.NodeResult, bool, error) {
	if tree.journal == nil {
		return nil, false, nil
	}
	record, ok, err := tree.journal.Completed(work.NodePath)
	if err != nil {
		return nil, false, errors.Wrapf(err, "cannot query journal for node %q", work.NodePath)
	}
	if !ok {
		return nil, false, nil
	}
	result := record.Result(work)
	if err := result.Commit(); err != nil {
		return nil, false, err
	}
	glog.Infof("node %q already completed, %d points retained", work.NodePath, result.PointCount)
	tree.stats.ResumedNodes++
	tree.trackDepth(work)
	tree.recordNode(result)
	return result, true, nil
}

func (tree *GridTree) enqueueChildren(queue io.TaskQueue, result *octree.NodeResult) {
	work := result.Work
	for i, count := range result.Counts {
		if count == 0 {
			continue
		}
		octant := uint8(i)
		childPath := octree.ChildNodePath(work.NodePath, octant)
		tree.topology.Ensure(childPath)

		childFile := octree.ComputeFilePath(work.OutputPath, octant)
		child := &io.WorkUnit{
			NodePath:   childPath,
			InputPath:  childFile,
			OutputPath: childFile,
			Cube:       geometry.ChildCube(work.Cube, octant),
			CellSize:   work.CellSize / 2,
			InputCount: count,
		}
		tree.trackDepth(child)

		if count <= tree.options.TargetPointCount {
			tree.stats.LeafNodes++
			tree.recordLeaf(child)
			continue
		}
		if maxDepth := tree.maxDepth(); child.Depth() > maxDepth {
			glog.Warningf("node %q holds %d points but is deeper than %d, left undecimated",
				childPath, count, maxDepth)
			tree.stats.TruncatedNodes++
			tree.recordLeaf(child)
			continue
		}
		queue.Push(child)
	}
}

// MaxDepth if set, bounded by the depth at which node file names get too long
func (tree *GridTree) maxDepth() int {
	maxDepth := octree.MaxNodeDepth(tree.options.BaseName, tree.format.Extension())
	if tree.options.MaxDepth > 0 && tree.options.MaxDepth < maxDepth {
		maxDepth = tree.options.MaxDepth
	}
	return maxDepth
}

func (tree *GridTree) trackDepth(work *io.WorkUnit) {
	if work.Depth() > tree.stats.MaxDepth {
		tree.stats.MaxDepth = work.Depth()
	}
}

func (tree *GridTree) recordNode(result *octree.NodeResult) {
	if tree.recorder != nil {
		tree.recorder.RecordNode(result)
	}
}

func (tree *GridTree) recordLeaf(work *io.WorkUnit) {
	if tree.recorder != nil {
		tree.recorder.RecordLeaf(work)
	}
}

func (tree *GridTree) recordSkipped(work *io.WorkUnit) {
	if tree.recorder != nil {
		tree.recorder.RecordSkipped(work)
	}
}

// Returns the cube centered on the box with a side equal to the largest box dimension
func ComputeRootCube(bbox *geometry.BoundingBox) geometry.BoundingCube {
	return geometry.NewBoundingCubeFromBox(bbox)
}

// Returns the cell size of the root grid: the side of the cell that would hold a single point if
// the target number of points were evenly spread over the box volume. Flat boxes use the cube
// volume instead.
func ComputeInitialCellSize(bbox *geometry.BoundingBox, cube geometry.BoundingCube, targetPointCount int64) float64 {
	volume := bbox.Volume()
	if !(volume > 0) {
		volume = cube.Volume()
	}
	return math.Cbrt(volume / float64(targetPointCount))
}
