package pkg

import (
	"fmt"
	stdio "io"
	"os"
	"path/filepath"

	"github.com/ecopia-map/octree_indexer/internal/io"
	"github.com/ecopia-map/octree_indexer/internal/manifest"
	"github.com/ecopia-map/octree_indexer/internal/octree"
	"github.com/ecopia-map/octree_indexer/internal/octree/grid_tree"
	"github.com/ecopia-map/octree_indexer/internal/octree/topology"
	"github.com/ecopia-map/octree_indexer/internal/tiler"
	"github.com/ecopia-map/octree_indexer/tools"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Checks an output folder against its manifest
type TilerVerify struct {
	fileFinder tools.FileFinder
	out        stdio.Writer
}

func NewTilerVerify(fileFinder tools.FileFinder) tiler.ITiler {
	return &TilerVerify{
		fileFinder: fileFinder,
		out:        os.Stdout,
	}
}

// Returns an error if any node of the folder fails a check. Every problem found is listed on the
// output writer.
func (tilerVerify *TilerVerify) RunTiler(opts *tiler.TilerOptions) error {
	verifyOpts := opts.TilerVerifyOptions
	if verifyOpts == nil {
		return errors.New("missing verify options")
	}
	folder := opts.Input

	m, err := manifest.Read(filepath.Join(folder, verifyOpts.ManifestFile))
	if err != nil {
		return err
	}
	formatName := opts.Format
	if formatName == "" || formatName == io.FormatAuto {
		formatName = m.Format
	}
	format, err := io.ResolveFormat(formatName, "")
	if err != nil {
		return err
	}

	var problems error
	for _, node := range m.Nodes {
		problems = multierr.Append(problems, tilerVerify.verifyNode(folder, format, m, node, verifyOpts.Tolerance))
	}
	problems = multierr.Append(problems, tilerVerify.verifyNodeFiles(folder, format, m))
	if verifyOpts.TopologyFile != "" {
		problems = multierr.Append(problems, verifyTopology(filepath.Join(folder, verifyOpts.TopologyFile), m))
	}

	errs := multierr.Errors(problems)
	for _, problem := range errs {
		fmt.Fprintln(tilerVerify.out, "FAIL", problem)
	}
	tools.LogOutputf("Verified %d nodes, %d points, %d problems", len(m.Nodes), m.TotalPointCount(), len(errs))
	if len(errs) > 0 {
		return errors.Errorf("%d problems found in %s", len(errs), folder)
	}
	return nil
}

func (tilerVerify *TilerVerify) verifyNode(folder string, format io.Format, m *manifest.Manifest, node *manifest.Node, tolerance float64) error {
	if node.Skipped {
		glog.Warningf("node %q was skipped by the build", node.Path)
		return nil
	}

	var problems error
	cellSize := 0.0
	if node.Decimated {
		cellSize = node.CellSize
		if node.PointCount+node.ChildCounts.Sum() != node.InputPointCount {
			problems = multierr.Append(problems, errors.Errorf("node %q: %d retained and %d routed points out of %d read",
				node.Path, node.PointCount, node.ChildCounts.Sum(), node.InputPointCount))
		}
		for _, octant := range node.Children {
			childPath := octree.ChildNodePath(node.Path, uint8(octant))
			child := m.Find(childPath)
			if child == nil {
				problems = multierr.Append(problems, errors.Errorf("node %q: child %q missing from the manifest", node.Path, childPath))
			} else if child.InputPointCount != node.ChildCounts[octant] {
				problems = multierr.Append(problems, errors.Errorf("node %q: %d points routed to child %q, which holds %d",
					node.Path, node.ChildCounts[octant], childPath, child.InputPointCount))
			}
		}
	}

	check, err := grid_tree.CheckNodeFile(format, filepath.Join(folder, node.File), node.BoundingCube.BoundingCube(), cellSize, tolerance)
	if err != nil {
		return multierr.Append(problems, errors.Wrapf(err, "node %q", node.Path))
	}
	if check.PointCount != node.PointCount {
		problems = multierr.Append(problems, errors.Errorf("node %q: file %s holds %d points, expected %d",
			node.Path, node.File, check.PointCount, node.PointCount))
	}
	if check.OutsideCube > 0 {
		problems = multierr.Append(problems, errors.Errorf("node %q: %d points outside the node cube", node.Path, check.OutsideCube))
	}
	if check.SharedCells > 0 {
		problems = multierr.Append(problems, errors.Errorf("node %q: %d points share a grid cell with another point", node.Path, check.SharedCells))
	}
	return problems
}

// reports node files left in the folder that the manifest does not list
func (tilerVerify *TilerVerify) verifyNodeFiles(folder string, format io.Format, m *manifest.Manifest) error {
	files, err := tilerVerify.fileFinder.GetFilesWithExtension(folder, format.Extension())
	if err != nil {
		return errors.Wrapf(err, "cannot list %s", folder)
	}
	var problems error
	for _, file := range files {
		nodePath, ok := octree.ParseNodePath(m.BaseName, format.Extension(), file)
		if !ok {
			continue
		}
		if m.Find(nodePath) == nil {
			problems = multierr.Append(problems, errors.Errorf("file %s is not a node of the manifest", filepath.Base(file)))
		}
	}
	return problems
}

// the topology file must have the shape of the tree recorded by the manifest
func verifyTopology(path string, m *manifest.Manifest) error {
	if !tools.FileExists(path) {
		glog.Warningf("no topology file %s", path)
		return nil
	}
	tree, err := topology.ReadFile(path)
	if err != nil {
		return err
	}

	expected := topology.NewTree(m.BoundingCube.BoundingCube())
	for _, node := range m.Nodes {
		expected.Ensure(node.Path)
	}
	var problems error
	if !tree.Equal(expected) {
		problems = multierr.Append(problems, errors.Errorf("topology %s has %d nodes and does not match the %d nodes of the manifest",
			filepath.Base(path), tree.NodeCount(), expected.NodeCount()))
	}
	if !tools.IsFloatEqual(tree.Bounds().Radius, expected.Bounds().Radius) {
		problems = multierr.Append(problems, errors.Errorf("topology %s has radius %v, manifest %v",
			filepath.Base(path), tree.Bounds().Radius, expected.Bounds().Radius))
	}
	return problems
}
