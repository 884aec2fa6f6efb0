package algorithm_manager

import (
	"github.com/ecopia-map/octree_indexer/internal/io"
	"github.com/ecopia-map/octree_indexer/internal/octree"
)

type AlgorithmManager interface {
	GetPointFormat() io.Format
	GetNodeProcessor() octree.INodeProcessor
	// journal and recorder may be nil
	GetTreeAlgorithm(journal octree.INodeJournal, recorder octree.INodeRecorder) octree.ITree
}
