package octree

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ecopia-map/octree_indexer/internal/geometry"
)

// Every node is persisted in its own file named after the octant digits leading to it:
// the root is base+ext, its child 3 is base+"3"+ext, that child's child 1 is base+"31"+ext.

// Inserted before the extension of a node file decimated in place until the output is committed
const PendingSuffix = ".tmp"

// Longest file name accepted by common file systems
const MaxFileNameLength = 255

func NodeFileName(baseName string, nodePath string, extension string) string {
	return baseName + nodePath + extension
}

// Returns the file of the given child of the node stored in file
func ComputeFilePath(file string, childIndex uint8) string {
	extension := filepath.Ext(file)
	return strings.TrimSuffix(file, extension) + strconv.Itoa(int(childIndex)) + extension
}

func ChildNodePath(nodePath string, childIndex uint8) string {
	return nodePath + strconv.Itoa(int(childIndex))
}

// Inverse of NodeFileName. Reports false if fileName is not a node file of the given base name.
func ParseNodePath(baseName string, extension string, fileName string) (string, bool) {
	name := filepath.Base(fileName)
	if !strings.HasPrefix(name, baseName) || !strings.HasSuffix(name, extension) {
		return "", false
	}
	if len(name) < len(baseName)+len(extension) {
		return "", false
	}
	nodePath := name[len(baseName) : len(name)-len(extension)]
	if !IsValidNodePath(nodePath) {
		return "", false
	}
	return nodePath, true
}

// Like ParseNodePath, for the in-place output of a node: base+path+PendingSuffix+ext
func ParsePendingNodePath(baseName string, extension string, fileName string) (string, bool) {
	return ParseNodePath(baseName, PendingSuffix+extension, fileName)
}

// Deepest node that can be decimated in place without any of its files, the in-place output and
// the children included, having a name longer than MaxFileNameLength
func MaxNodeDepth(baseName string, extension string) int {
	return MaxFileNameLength - len(baseName) - len(extension) - len(PendingSuffix)
}

func IsValidNodePath(nodePath string) bool {
	for _, c := range nodePath {
		if c < '0' || c >= '0'+geometry.NumOctants {
			return false
		}
	}
	return true
}

// Octant indexes of a node path, root first
func OctantsOf(nodePath string) []uint8 {
	octants := make([]uint8, len(nodePath))
	for i := 0; i < len(nodePath); i++ {
		octants[i] = nodePath[i] - '0'
	}
	return octants
}

// Recomputes the cube of a node from the root cube and the node path
func NodeCube(root geometry.BoundingCube, nodePath string) geometry.BoundingCube {
	cube := root
	for _, octant := range OctantsOf(nodePath) {
		cube = geometry.ChildCube(cube, octant)
	}
	return cube
}
