package octree

import (
	"os"

	"github.com/ecopia-map/octree_indexer/internal/geometry"
	"github.com/ecopia-map/octree_indexer/internal/io"
	"github.com/ecopia-map/octree_indexer/internal/octree/topology"
	"github.com/pkg/errors"
)

// Returned, wrapped, together with all-zero counts when the input file of a node cannot be opened.
// The node is then treated as having nothing to contribute to its children.
var ErrNodeInputUnavailable = errors.New("node input unavailable")

// Number of points routed to each child octant of a node
type ChildCounts [geometry.NumOctants]int64

func (c ChildCounts) Sum() int64 {
	var sum int64
	for _, count := range c {
		sum += count
	}
	return sum
}

// Outcome of processing one node. The decimated points may still sit in PendingOutput until
// Commit moves them over the node file.
type NodeResult struct {
	Work          *io.WorkUnit
	InputCount    int64 // points read from the node input
	PointCount    int64 // points retained by the node
	Counts        ChildCounts
	PendingOutput string
}

// Moves the decimated points in place. Calling it again once done is a no-op.
func (r *NodeResult) Commit() error {
	if r.PendingOutput == "" {
		return nil
	}
	if err := os.Rename(r.PendingOutput, r.Work.OutputPath); err != nil {
		return errors.Wrapf(err, "cannot move %s to %s", r.PendingOutput, r.Work.OutputPath)
	}
	r.PendingOutput = ""
	return nil
}

type INodeProcessor interface {
	// Streams the node input once, keeps one point per grid cell in the node file and appends every
	// other point to the file of its child octant
	Process(work *io.WorkUnit) (*NodeResult, error)
}

// Durable trace of a processed node, enough to skip it when an interrupted build is resumed
type NodeRecord struct {
	Path          string      `json:"path"`
	InputCount    int64       `json:"input_count"`
	PointCount    int64       `json:"point_count"`
	Counts        ChildCounts `json:"counts"`
	PendingOutput string      `json:"pending_output,omitempty"`
}

func NewNodeRecord(result *NodeResult) *NodeRecord {
	return &NodeRecord{
		Path:          result.Work.NodePath,
		InputCount:    result.InputCount,
		PointCount:    result.PointCount,
		Counts:        result.Counts,
		PendingOutput: result.PendingOutput,
	}
}

// Rebuilds the result of a node from its record. A pending output that is no longer on disk has
// already been committed.
func (r *NodeRecord) Result(work *io.WorkUnit) *NodeResult {
	result := &NodeResult{
		Work:       work,
		InputCount: r.InputCount,
		PointCount: r.PointCount,
		Counts:     r.Counts,
	}
	if r.PendingOutput != "" {
		if _, err := os.Stat(r.PendingOutput); err == nil {
			result.PendingOutput = r.PendingOutput
		}
	}
	return result
}

type INodeJournal interface {
	// Returns the record of the node if a previous run completed it
	Completed(nodePath string) (*NodeRecord, bool, error)
	// Must be durable before the node output is committed
	MarkCompleted(record *NodeRecord) error
}

// Receives every node of the tree as the build discovers it
type INodeRecorder interface {
	RecordNode(result *NodeResult)
	RecordLeaf(work *io.WorkUnit)
	RecordSkipped(work *io.WorkUnit)
}

type BuildStats struct {
	ProcessedNodes int // nodes decimated during this run
	ResumedNodes   int // nodes taken over from the journal
	LeafNodes      int // child files left as they were written, at or below the target count
	SkippedNodes   int // nodes whose input could not be opened
	TruncatedNodes int // nodes over the target count left undecimated at the depth limit
	MaxDepth       int
}

type ITree interface {
	Build() (*BuildStats, error)
	GetTopology() *topology.Tree
}
