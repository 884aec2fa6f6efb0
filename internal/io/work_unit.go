package io

import (
	"github.com/ecopia-map/octree_indexer/internal/geometry"
)

// Contains the minimal data needed to process a single octree node: the file holding its points,
// the file receiving its decimated points, its extent and the grid cell size of its level
type WorkUnit struct {
	NodePath   string // octant digits from the root, empty for the root itself
	InputPath  string
	OutputPath string
	Cube       geometry.BoundingCube
	CellSize   float64
	InputCount int64 // points the parent routed to this node, -1 if unknown
}

func (w *WorkUnit) Depth() int {
	return len(w.NodePath)
}

func (w *WorkUnit) IsRoot() bool {
	return w.NodePath == ""
}

// Input and output are the same file for every node below the root: the node is decimated in place
func (w *WorkUnit) InPlace() bool {
	return w.InputPath == w.OutputPath
}
