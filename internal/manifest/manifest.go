package manifest

import (
	"encoding/json"
	"io/ioutil"
	"path/filepath"
	"sort"

	"github.com/ecopia-map/octree_indexer/internal/geometry"
	"github.com/ecopia-map/octree_indexer/internal/io"
	"github.com/ecopia-map/octree_indexer/internal/octree"
	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const Version = "1.0"

type Asset struct {
	Version   string `json:"version"`
	Generator string `json:"generator"`
}

type Cube struct {
	Center [3]float64 `json:"center"`
	Radius float64    `json:"radius"`
}

func NewCube(cube geometry.BoundingCube) Cube {
	return Cube{
		Center: [3]float64{cube.Center.X, cube.Center.Y, cube.Center.Z},
		Radius: cube.Radius,
	}
}

func (c Cube) BoundingCube() geometry.BoundingCube {
	return geometry.BoundingCube{
		Center: r3.Vector{X: c.Center[0], Y: c.Center[1], Z: c.Center[2]},
		Radius: c.Radius,
	}
}

type Node struct {
	Path            string  `json:"path"`
	File            string  `json:"file"` // relative to the manifest folder
	Depth           int     `json:"depth"`
	CellSize        float64 `json:"cell_size,omitempty"` // grid the node was decimated with, 0 for raw leaves
	BoundingCube    Cube    `json:"bounding_cube"`
	InputPointCount int64   `json:"input_point_count"`
	PointCount      int64   `json:"point_count"`
	Decimated       bool    `json:"decimated"`
	Skipped         bool    `json:"skipped,omitempty"` // input could not be opened
	// octants of the children holding points, each of them has its own entry
	Children    []int              `json:"children"`
	ChildCounts octree.ChildCounts `json:"child_counts"`
}

// Canonical record of an index run: the tree position, extent and point counts of every node file
type Manifest struct {
	Asset            Asset   `json:"asset"`
	BuildID          string  `json:"build_id"`
	Source           string  `json:"source"`
	Format           string  `json:"format"`
	BaseName         string  `json:"base_name"`
	TargetPointCount int64   `json:"target_point_count"`
	BoundingCube     Cube    `json:"bounding_cube"`
	Nodes            []*Node `json:"nodes"`

	index map[string]int // position in Nodes by path, rebuilt by Find when stale
}

func New(generator string, source string, format string, baseName string, targetPointCount int64) *Manifest {
	return &Manifest{
		Asset: Asset{
			Version:   Version,
			Generator: generator,
		},
		BuildID:          uuid.New().String(),
		Source:           source,
		Format:           format,
		BaseName:         baseName,
		TargetPointCount: targetPointCount,
		Nodes:            make([]*Node, 0),
	}
}

// Returns the node with the given path, nil if missing
func (m *Manifest) Find(path string) *Node {
	if len(m.index) != len(m.Nodes) {
		m.reindex()
	}
	i, ok := m.index[path]
	if ok && m.Nodes[i].Path != path {
		// Nodes was reordered or edited since the last lookup
		m.reindex()
		i, ok = m.index[path]
	}
	if !ok {
		return nil
	}
	return m.Nodes[i]
}

// first entry wins on duplicated paths
func (m *Manifest) reindex() {
	m.index = make(map[string]int, len(m.Nodes))
	for i := len(m.Nodes) - 1; i >= 0; i-- {
		m.index[m.Nodes[i].Path] = i
	}
}

// Orders the nodes level by level, by path within a level
func (m *Manifest) Sort() {
	m.index = nil
	sort.SliceStable(m.Nodes, func(i, j int) bool {
		a, b := m.Nodes[i], m.Nodes[j]
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		return a.Path < b.Path
	})
}

func (m *Manifest) TotalPointCount() int64 {
	var total int64
	for _, node := range m.Nodes {
		total += node.PointCount
	}
	return total
}

func Write(path string, m *Manifest) error {
	m.Sort()
	data, err := json.MarshalIndent(m, "", "\t")
	if err != nil {
		return errors.Wrap(err, "cannot encode manifest")
	}
	if err := ioutil.WriteFile(path, data, 0666); err != nil {
		return errors.Wrapf(err, "cannot write manifest %s", path)
	}
	return nil
}

func Read(path string) (*Manifest, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read manifest %s", path)
	}
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, errors.Wrapf(err, "cannot decode manifest %s", path)
	}
	return m, nil
}

// Fills a manifest with the nodes reported by a build
type Recorder struct {
	manifest *Manifest
	index    map[string]int
}

func NewRecorder(m *Manifest) *Recorder {
	index := make(map[string]int, len(m.Nodes))
	for i, node := range m.Nodes {
		index[node.Path] = i
	}
	return &Recorder{manifest: m, index: index}
}

func (r *Recorder) Manifest() *Manifest {
	return r.manifest
}

func (r *Recorder) RecordNode(result *octree.NodeResult) {
	work := result.Work
	if work.IsRoot() {
		r.manifest.BoundingCube = NewCube(work.Cube)
	}
	node := newNode(work)
	node.CellSize = work.CellSize
	node.InputPointCount = result.InputCount
	node.PointCount = result.PointCount
	node.Decimated = true
	node.ChildCounts = result.Counts
	for i, count := range result.Counts {
		if count > 0 {
			node.Children = append(node.Children, i)
		}
	}
	r.put(node)
}

// Leaves are the files written by their parent, kept as they are
func (r *Recorder) RecordLeaf(work *io.WorkUnit) {
	node := newNode(work)
	node.InputPointCount = work.InputCount
	node.PointCount = work.InputCount
	r.put(node)
}

func (r *Recorder) RecordSkipped(work *io.WorkUnit) {
	node := newNode(work)
	node.InputPointCount = work.InputCount
	node.Skipped = true
	r.put(node)
}

// a resumed node replaces the entry of the same path
func (r *Recorder) put(node *Node) {
	if i, ok := r.index[node.Path]; ok {
		r.manifest.Nodes[i] = node
		return
	}
	r.index[node.Path] = len(r.manifest.Nodes)
	r.manifest.Nodes = append(r.manifest.Nodes, node)
}

func newNode(work *io.WorkUnit) *Node {
	return &Node{
		Path:         work.NodePath,
		File:         filepath.Base(work.OutputPath),
		Depth:        work.Depth(),
		BoundingCube: NewCube(work.Cube),
		Children:     make([]int, 0),
	}
}
