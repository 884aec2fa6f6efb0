package std_algorithm_manager

import (
	"github.com/ecopia-map/octree_indexer/internal/io"
	"github.com/ecopia-map/octree_indexer/internal/octree"
	"github.com/ecopia-map/octree_indexer/internal/octree/grid_tree"
	"github.com/ecopia-map/octree_indexer/internal/tiler"
	"github.com/ecopia-map/octree_indexer/pkg/algorithm_manager"
)

type StandardAlgorithmManager struct {
	options *tiler.TilerOptions
	format  io.Format
}

// Fails if the point format of the options cannot be resolved
func NewAlgorithmManager(opts *tiler.TilerOptions) (algorithm_manager.AlgorithmManager, error) {
	format, err := io.ResolveFormat(opts.Format, opts.Input)
	if err != nil {
		return nil, err
	}
	return &StandardAlgorithmManager{
		options: opts,
		format:  format,
	}, nil
}

func (m *StandardAlgorithmManager) GetPointFormat() io.Format {
	return m.format
}

func (m *StandardAlgorithmManager) GetNodeProcessor() octree.INodeProcessor {
	return grid_tree.NewGridNode(m.format)
}

func (m *StandardAlgorithmManager) GetTreeAlgorithm(journal octree.INodeJournal, recorder octree.INodeRecorder) octree.ITree {
	opts := m.options
	gridTreeOptions := grid_tree.GridTreeOptions{
		InputPath:        opts.Input,
		TargetPointCount: opts.TargetPointCount,
		QueueOrder:       opts.QueueOrder,
		MaxDepth:         opts.MaxDepth,
	}
	if opts.TilerIndexOptions != nil {
		gridTreeOptions.OutputDir = opts.TilerIndexOptions.Output
		gridTreeOptions.BaseName = opts.TilerIndexOptions.BaseName
	}

	return grid_tree.NewGridTree(m.GetNodeProcessor(), m.format, gridTreeOptions, journal, recorder)
}
