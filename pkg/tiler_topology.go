package pkg

import (
	"fmt"
	stdio "io"
	"os"

	"github.com/ecopia-map/octree_indexer/internal/octree/topology"
	"github.com/ecopia-map/octree_indexer/internal/tiler"
	"github.com/ecopia-map/octree_indexer/tools"
	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Prints the shape of a topology file
type TilerTopology struct {
	out stdio.Writer
}

func NewTilerTopology() tiler.ITiler {
	return &TilerTopology{out: os.Stdout}
}

func (tilerTopology *TilerTopology) RunTiler(opts *tiler.TilerOptions) error {
	if opts.TilerTopologyOptions == nil {
		return errors.New("missing topology options")
	}
	path := opts.TilerTopologyOptions.Input

	tree, err := topology.ReadFile(path)
	if errors.Is(err, topology.ErrTruncated) && tree != nil {
		glog.Warningf("%s is truncated, printing the nodes read", path)
	} else if err != nil {
		return err
	}

	bounds := tree.Bounds()
	fmt.Fprintf(tilerTopology.out, "file: %s\n", path)
	fmt.Fprintf(tilerTopology.out, "min: %s\n", tools.FormatVector(bounds.Min()))
	fmt.Fprintf(tilerTopology.out, "max: %s\n", tools.FormatVector(bounds.Max()))
	fmt.Fprintf(tilerTopology.out, "nodes: %d\n", tree.NodeCount())
	fmt.Fprintf(tilerTopology.out, "depth: %d\n", tree.Depth())
	for level, count := range tree.CountByLevel() {
		fmt.Fprintf(tilerTopology.out, "level %d: %d\n", level, count)
	}
	return nil
}
