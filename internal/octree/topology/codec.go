package topology

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/ecopia-map/octree_indexer/internal/geometry"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Topology file format:
//  1. ASCII signature line
//  2. extent: xmin, ymin, zmin, xmax, ymax, zmax as little endian 64 bit floats
//  3. nodes in breadth first order, one byte each, bit 7-i set iff child i exists
const Signature = "SPATIUMGL_OCTREE\n"

var (
	ErrBadSignature = errors.New("not an octree topology file")
	// The stream ended while nodes announced by their parent were still unread
	ErrTruncated = errors.New("truncated octree topology")
)

// Writes the tree topology, returning the number of bytes written
func (t *Tree) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	var written int64

	n, err := bw.WriteString(Signature)
	written += int64(n)
	if err != nil {
		return written, err
	}

	extent := t.bounds.AsBoundingBox().GetAsArray()
	if err := binary.Write(bw, binary.LittleEndian, extent); err != nil {
		return written, err
	}
	written += int64(binary.Size(extent))

	queue := []*Node{t.root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if err := bw.WriteByte(node.ChildMask()); err != nil {
			return written, err
		}
		written++

		for _, child := range node.children {
			if child != nil {
				queue = append(queue, child)
			}
		}
	}

	return written, bw.Flush()
}

// Reads a topology written by WriteTo. If the stream ends before the traversal does, the nodes
// read so far are returned together with ErrTruncated.
func Read(r io.Reader) (*Tree, error) {
	br := bufio.NewReader(r)

	signature := make([]byte, len(Signature))
	if _, err := io.ReadFull(br, signature); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrBadSignature
		}
		return nil, err
	}
	if !bytes.Equal(signature, []byte(Signature)) {
		return nil, ErrBadSignature
	}

	var extent [6]float64
	if err := binary.Read(br, binary.LittleEndian, &extent); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrTruncated
		}
		return nil, err
	}
	tree := NewTree(cubeFromExtent(extent))

	queue := []*Node{tree.root}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		bits, err := br.ReadByte()
		if err == io.EOF {
			return tree, ErrTruncated
		} else if err != nil {
			return tree, err
		}

		for i := 0; i < geometry.NumOctants; i++ {
			mask := byte(0x01 << (7 - uint(i)))
			if bits&mask != 0 && node.CreateChild(i) {
				queue = append(queue, node.children[i])
			}
		}
	}

	return tree, nil
}

func WriteFile(path string, tree *Tree) (int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot create topology file %s", path)
	}
	written, err := tree.WriteTo(file)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return written, errors.Wrapf(err, "cannot write topology file %s", path)
	}
	return written, nil
}

// Same as Read on the content of the given file. A truncated file yields the partial tree and
// an error matching ErrTruncated.
func ReadFile(path string) (*Tree, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open topology file %s", path)
	}
	defer file.Close()
	return Read(file)
}

func cubeFromExtent(extent [6]float64) geometry.BoundingCube {
	min := r3.Vector{X: extent[0], Y: extent[1], Z: extent[2]}
	max := r3.Vector{X: extent[3], Y: extent[4], Z: extent[5]}
	return geometry.BoundingCube{
		Center: min.Add(max).Mul(0.5),
		Radius: (max.X - min.X) / 2,
	}
}
