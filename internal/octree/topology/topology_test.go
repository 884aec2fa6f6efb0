package topology

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ecopia-map/octree_indexer/internal/geometry"
	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

// root with children 0, 2, 4, 6, 7, child 6 with children 0 to 3
func newSampleTree() *Tree {
	tree := NewTree(geometry.BoundingCube{Center: r3.Vector{X: 1, Y: 2, Z: 3}, Radius: 4})
	root := tree.Root()
	for _, i := range []int{0, 2, 4, 6, 7} {
		root.CreateChild(i)
	}
	for i := 0; i < 4; i++ {
		root.Child(6).CreateChild(i)
	}
	return tree
}

func TestNodeChildren(t *testing.T) {
	tree := NewTree(geometry.BoundingCube{Radius: 1})
	root := tree.Root()
	test.That(t, root.IsRoot(), test.ShouldBeTrue)
	test.That(t, root.HasChildren(), test.ShouldBeFalse)

	test.That(t, root.CreateChild(3), test.ShouldBeTrue)
	test.That(t, root.CreateChild(3), test.ShouldBeFalse)
	test.That(t, root.CreateChild(8), test.ShouldBeFalse)
	test.That(t, root.CreateChild(-1), test.ShouldBeFalse)
	test.That(t, root.HasChildren(), test.ShouldBeTrue)
	test.That(t, root.ChildMask(), test.ShouldEqual, byte(0x10))

	child := root.Child(3)
	test.That(t, child.Parent(), test.ShouldEqual, root)
	test.That(t, child.CreateChild(5), test.ShouldBeTrue)
	test.That(t, child.Child(5).Path(), test.ShouldEqual, "35")
	test.That(t, child.Child(5).Depth(), test.ShouldEqual, 2)
	test.That(t, tree.NodeCount(), test.ShouldEqual, 3)

	// deleting a node drops its whole subtree
	test.That(t, root.DeleteChild(3), test.ShouldBeTrue)
	test.That(t, root.DeleteChild(3), test.ShouldBeFalse)
	test.That(t, root.Child(3), test.ShouldBeNil)
	test.That(t, tree.NodeCount(), test.ShouldEqual, 1)
}

func TestTreeLookup(t *testing.T) {
	tree := newSampleTree()
	test.That(t, tree.Find(""), test.ShouldEqual, tree.Root())
	test.That(t, tree.Find("63").Path(), test.ShouldEqual, "63")
	test.That(t, tree.Find("64"), test.ShouldBeNil)
	test.That(t, tree.Find("1"), test.ShouldBeNil)

	test.That(t, tree.NodeCount(), test.ShouldEqual, 10)
	test.That(t, tree.Depth(), test.ShouldEqual, 2)
	test.That(t, tree.CountByLevel(), test.ShouldResemble, []int{1, 5, 4})

	node := tree.Ensure("725")
	test.That(t, node.Path(), test.ShouldEqual, "725")
	test.That(t, tree.NodeCount(), test.ShouldEqual, 12)
	test.That(t, tree.Ensure("9"), test.ShouldBeNil)

	cube := tree.NodeBounds(tree.Find("63"))
	test.That(t, cube.Radius, test.ShouldEqual, 1.)
	test.That(t, cube.Center, test.ShouldResemble, r3.Vector{X: 0, Y: 5, Z: 4})
}

func TestCodecLayout(t *testing.T) {
	var buf bytes.Buffer
	written, err := newSampleTree().WriteTo(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, written, test.ShouldEqual, int64(buf.Len()))

	// signature, 6 floats, 10 nodes
	test.That(t, buf.Len(), test.ShouldEqual, len(Signature)+48+10)
	test.That(t, buf.Bytes()[:17], test.ShouldResemble, []byte("SPATIUMGL_OCTREE\n"))
	nodes := buf.Bytes()[len(Signature)+48:]
	test.That(t, nodes, test.ShouldResemble, []byte{0xAB, 0, 0, 0, 0xF0, 0, 0, 0, 0, 0})
}

func TestCodecRoundTrip(t *testing.T) {
	tree := newSampleTree()
	var buf bytes.Buffer
	_, err := tree.WriteTo(&buf)
	test.That(t, err, test.ShouldBeNil)

	read, err := Read(&buf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, read.Equal(tree), test.ShouldBeTrue)
	test.That(t, read.Bounds(), test.ShouldResemble, tree.Bounds())

	other := newSampleTree()
	other.Find("6").DeleteChild(3)
	test.That(t, read.Equal(other), test.ShouldBeFalse)

	t.Run("files", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "octree.idx")
		_, err := WriteFile(path, tree)
		test.That(t, err, test.ShouldBeNil)
		read, err := ReadFile(path)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, read.Equal(tree), test.ShouldBeTrue)
	})

	t.Run("lone root", func(t *testing.T) {
		lone := NewTree(geometry.BoundingCube{Radius: 0.5})
		var buf bytes.Buffer
		_, err := lone.WriteTo(&buf)
		test.That(t, err, test.ShouldBeNil)
		read, err := Read(&buf)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, read.NodeCount(), test.ShouldEqual, 1)
	})
}

func TestCodecTruncated(t *testing.T) {
	var buf bytes.Buffer
	_, err := newSampleTree().WriteTo(&buf)
	test.That(t, err, test.ShouldBeNil)
	data := buf.Bytes()

	// the last nodes announced by child 6 are missing
	read, err := Read(bytes.NewReader(data[:len(data)-2]))
	test.That(t, errors.Is(err, ErrTruncated), test.ShouldBeTrue)
	test.That(t, read, test.ShouldNotBeNil)
	test.That(t, read.NodeCount(), test.ShouldEqual, 10)

	// only the root byte is left
	read, err = Read(bytes.NewReader(data[:len(Signature)+48+1]))
	test.That(t, errors.Is(err, ErrTruncated), test.ShouldBeTrue)
	test.That(t, read.CountByLevel(), test.ShouldResemble, []int{1, 5})

	_, err = Read(bytes.NewReader(data[:len(Signature)+10]))
	test.That(t, errors.Is(err, ErrTruncated), test.ShouldBeTrue)
}

func TestCodecBadSignature(t *testing.T) {
	_, err := Read(bytes.NewReader([]byte("POINTCLOUD_QUADTREE\n")))
	test.That(t, errors.Is(err, ErrBadSignature), test.ShouldBeTrue)

	_, err = Read(bytes.NewReader(append([]byte("SPATIUMGL_QUADTREE\n"), make([]byte, 49)...)))
	test.That(t, errors.Is(err, ErrBadSignature), test.ShouldBeTrue)

	_, err = Read(bytes.NewReader([]byte("POINT")))
	test.That(t, errors.Is(err, ErrBadSignature), test.ShouldBeTrue)
}
