package topology

import (
	"strconv"

	"github.com/ecopia-map/octree_indexer/internal/geometry"
)

// Node of an octree topology. Nodes hold no geometry nor payload: the extent of a node is
// recomputed from the tree bounds and the octant path leading to it.
type Node struct {
	parent   *Node
	index    uint8
	children [geometry.NumOctants]*Node
}

// Returns the child at octant i, nil if absent or if i is out of range
func (n *Node) Child(i int) *Node {
	if i < 0 || i >= geometry.NumOctants {
		return nil
	}
	return n.children[i]
}

// Creates the child at octant i. Returns false if it already exists or i is out of range.
func (n *Node) CreateChild(i int) bool {
	if i < 0 || i >= geometry.NumOctants || n.children[i] != nil {
		return false
	}
	n.children[i] = &Node{parent: n, index: uint8(i)}
	return true
}

// Deletes the child at octant i together with its whole subtree. Returns false if there is no
// such child.
func (n *Node) DeleteChild(i int) bool {
	if i < 0 || i >= geometry.NumOctants || n.children[i] == nil {
		return false
	}
	n.children[i].parent = nil
	n.children[i] = nil
	return true
}

func (n *Node) HasChildren() bool {
	return n.ChildMask() != 0
}

// One bit per existing child, most significant bit first: bit 7-i is set iff child i exists
func (n *Node) ChildMask() byte {
	var bits byte
	for i, child := range n.children {
		if child != nil {
			bits |= 0x01 << (7 - uint(i))
		}
	}
	return bits
}

func (n *Node) Parent() *Node {
	return n.parent
}

func (n *Node) IsRoot() bool {
	return n.parent == nil
}

// Octant digits from the root to this node, empty for the root
func (n *Node) Path() string {
	var digits []byte
	for node := n; node.parent != nil; node = node.parent {
		digits = append(digits, '0'+node.index)
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}

func (n *Node) Depth() int {
	depth := 0
	for node := n; node.parent != nil; node = node.parent {
		depth++
	}
	return depth
}

// Octree made of topology nodes, with the cube covered by its root
type Tree struct {
	bounds geometry.BoundingCube
	root   *Node
}

func NewTree(bounds geometry.BoundingCube) *Tree {
	return &Tree{bounds: bounds, root: &Node{}}
}

func (t *Tree) Root() *Node {
	return t.root
}

func (t *Tree) Bounds() geometry.BoundingCube {
	return t.bounds
}

func (t *Tree) SetBounds(bounds geometry.BoundingCube) {
	t.bounds = bounds
}

// Returns the node at the given octant path, nil if it does not exist
func (t *Tree) Find(path string) *Node {
	node := t.root
	for i := 0; i < len(path) && node != nil; i++ {
		octant, err := strconv.Atoi(path[i : i+1])
		if err != nil {
			return nil
		}
		node = node.Child(octant)
	}
	return node
}

// Returns the node at the given octant path, creating the missing nodes along it
func (t *Tree) Ensure(path string) *Node {
	node := t.root
	for i := 0; i < len(path); i++ {
		octant, err := strconv.Atoi(path[i : i+1])
		if err != nil || octant >= geometry.NumOctants {
			return nil
		}
		node.CreateChild(octant)
		node = node.Child(octant)
	}
	return node
}

// Cube of the given node, derived from the tree bounds
func (t *Tree) NodeBounds(n *Node) geometry.BoundingCube {
	cube := t.bounds
	path := n.Path()
	for i := 0; i < len(path); i++ {
		cube = geometry.ChildCube(cube, path[i]-'0')
	}
	return cube
}

// Visits the nodes breadth first. Returning false from fn stops the walk.
func (t *Tree) Walk(fn func(node *Node, depth int) bool) {
	type item struct {
		node  *Node
		depth int
	}
	queue := []item{{t.root, 0}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if !fn(current.node, current.depth) {
			return
		}
		for _, child := range current.node.children {
			if child != nil {
				queue = append(queue, item{child, current.depth + 1})
			}
		}
	}
}

func (t *Tree) NodeCount() int {
	count := 0
	t.Walk(func(*Node, int) bool {
		count++
		return true
	})
	return count
}

// Number of levels below the root: 0 for a lone root
func (t *Tree) Depth() int {
	depth := 0
	t.Walk(func(_ *Node, d int) bool {
		if d > depth {
			depth = d
		}
		return true
	})
	return depth
}

func (t *Tree) CountByLevel() []int {
	var levels []int
	t.Walk(func(_ *Node, d int) bool {
		for len(levels) <= d {
			levels = append(levels, 0)
		}
		levels[d]++
		return true
	})
	return levels
}

// Reports whether both trees have the same existing and absent children at every position
func (t *Tree) Equal(other *Tree) bool {
	return equalNodes(t.root, other.root)
}

func equalNodes(a *Node, b *Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	for i := range a.children {
		if !equalNodes(a.children[i], b.children[i]) {
			return false
		}
	}
	return true
}
