package grid_tree

import (
	"fmt"
	stdio "io"
	"path/filepath"
	"strings"

	"github.com/ecopia-map/octree_indexer/internal/data"
	"github.com/ecopia-map/octree_indexer/internal/geometry"
	"github.com/ecopia-map/octree_indexer/internal/io"
	"github.com/ecopia-map/octree_indexer/internal/octree"
	"github.com/ecopia-map/octree_indexer/tools"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Processes octree nodes stored as point files. A node keeps, for each cell of a grid of its
// cube, the point closest to the cell center and propagates every point rejected by the cells
// to the file of the child octant it falls in. Children get cells half the size.
type GridNode struct {
	format io.Format
}

func NewGridNode(format io.Format) *GridNode {
	return &GridNode{format: format}
}

// Child output files of a node, opened on the first point routed to them
type childWriters struct {
	format     io.Format
	template   io.PointReader
	outputPath string
	writers    [geometry.NumOctants]io.PointWriter
}

func (c *childWriters) write(octant uint8, point *data.Point) error {
	writer := c.writers[octant]
	if writer == nil {
		path := octree.ComputeFilePath(c.outputPath, octant)
		var err error
		writer, err = c.format.Create(path, c.template)
		if err != nil {
			return errors.Wrapf(err, "cannot open child file %s", path)
		}
		c.writers[octant] = writer
	}
	return writer.Write(point)
}

// closes every open writer and returns the number of points each received
func (c *childWriters) close() (octree.ChildCounts, error) {
	var counts octree.ChildCounts
	var err error
	for i, writer := range c.writers {
		if writer == nil {
			continue
		}
		counts[i] = writer.Count()
		err = multierr.Append(err, writer.Close())
		c.writers[i] = nil
	}
	return counts, err
}

// Streams the node input once. Retained points end up in the node output file, the other ones
// in the child files. If the input cannot be opened the returned error wraps
// octree.ErrNodeInputUnavailable and all counts are zero.
func (n *GridNode) Process(work *io.WorkUnit) (result *octree.NodeResult, err error) {
	result = &octree.NodeResult{Work: work}
	if !(work.CellSize > 0) {
		return result, errors.Errorf("invalid cell size %v for node %q", work.CellSize, work.NodePath)
	}

	reader, openErr := n.format.Open(work.InputPath)
	if openErr != nil {
		return result, errors.Wrapf(octree.ErrNodeInputUnavailable, "%s: %v", work.InputPath, openErr)
	}

	n.logNodeStart(work)

	children := &childWriters{format: n.format, template: reader, outputPath: work.OutputPath}
	var ownWriter io.PointWriter
	defer func() {
		// every handle is released whatever the outcome
		counts, closeErr := children.close()
		if ownWriter != nil {
			closeErr = multierr.Append(closeErr, ownWriter.Close())
		}
		closeErr = multierr.Append(closeErr, reader.Close())
		if err == nil && closeErr != nil {
			err = errors.Wrapf(closeErr, "cannot close files of node %q", work.NodePath)
		}
		result.Counts = counts
		if err != nil {
			result.Counts = octree.ChildCounts{}
		}
	}()

	grid := newVoxelGrid(work.Cube.Min(), work.CellSize)
	for {
		point, readErr := reader.Next()
		if readErr == stdio.EOF {
			break
		}
		if readErr != nil {
			return result, errors.Wrapf(readErr, "cannot read node %q", work.NodePath)
		}
		result.InputCount++

		pushedOut := grid.pushPoint(point)
		if pushedOut == nil {
			continue
		}
		octant := geometry.GetOctant(pushedOut.Position(), work.Cube)
		if err := children.write(octant, pushedOut); err != nil {
			return result, err
		}
	}

	// the input may be the node file itself: write aside and move it over once the input is closed
	outputPath := work.OutputPath
	if work.InPlace() {
		outputPath = pendingOutputPath(work.OutputPath)
		result.PendingOutput = outputPath
	}
	ownWriter, err = n.format.Create(outputPath, reader)
	if err != nil {
		return result, errors.Wrapf(err, "cannot open node file %s", outputPath)
	}
	for _, point := range grid.getPoints() {
		if err := ownWriter.Write(point); err != nil {
			return result, errors.Wrapf(err, "cannot write node file %s", outputPath)
		}
	}
	result.PointCount = ownWriter.Count()
	closeErr := ownWriter.Close()
	ownWriter = nil
	if closeErr != nil {
		return result, errors.Wrapf(closeErr, "cannot close node file %s", outputPath)
	}

	return result, nil
}

// r3.las is decimated into r3.tmp.las, which keeps the extension of the format
func pendingOutputPath(path string) string {
	extension := filepath.Ext(path)
	return strings.TrimSuffix(path, extension) + octree.PendingSuffix + extension
}

func (n *GridNode) logNodeStart(work *io.WorkUnit) {
	min, max := work.Cube.Min(), work.Cube.Max()
	tools.LogOutput(
		fmt.Sprintf("Processing node %q from %s", work.NodePath, work.InputPath),
		"\n - Extent = ("+tools.FormatVector(min)+") - ("+tools.FormatVector(max)+")",
		"\n - Cell size = "+tools.FormatFloat(work.CellSize),
	)
}

func LogNodeResult(result *octree.NodeResult) {
	tools.LogOutput(
		fmt.Sprintf(" - Node %q: %d points read, %d retained, children %v",
			result.Work.NodePath, result.InputCount, result.PointCount, result.Counts),
	)
}
