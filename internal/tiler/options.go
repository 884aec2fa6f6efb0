package tiler

import "strings"

type QueueOrder string

const (
	// Nodes are processed level by level: every node of a level before any of the next one
	BreadthFirst QueueOrder = "BFS"
	// A subtree is processed completely before its next sibling. Sibling subtrees are independent,
	// so both orders produce the same files.
	DepthFirst QueueOrder = "DFS"
)

func (o QueueOrder) String() string {
	if o == BreadthFirst {
		return "BFS"
	} else if o == DepthFirst {
		return "DFS"
	}
	return ""
}

func ParseQueueOrder(value string) QueueOrder {
	normalizedValue := strings.Trim(strings.ToUpper(value), " ")
	if normalizedValue == "BFS" {
		return BreadthFirst
	} else if normalizedValue == "DFS" {
		return DepthFirst
	}
	return ""
}

const (
	DefaultBaseName     = "r"
	DefaultTopologyFile = "octree.idx"
	DefaultManifestFile = "manifest.json"
	DefaultMaxDepth     = 30
)

// Contains the options needed for the indexing algorithm
type TilerOptions struct {
	Input            string     `toml:"input"`              // Input point file, or output folder for verify
	Format           string     `toml:"format"`             // Point format name, "auto" to detect it from the input extension
	TargetPointCount int64      `toml:"target_point_count"` // Nodes holding more points than this are subdivided
	QueueOrder       QueueOrder `toml:"queue_order"`        // Order in which pending nodes are processed
	MaxDepth         int        `toml:"max_depth"`          // Deepest level that is still subdivided, 0 for as deep as file names allow

	Command              string                `toml:"-"`
	TilerIndexOptions    *TilerIndexOptions    `toml:"-"`
	TilerTopologyOptions *TilerTopologyOptions `toml:"-"`
	TilerVerifyOptions   *TilerVerifyOptions   `toml:"-"`
}

type TilerIndexOptions struct {
	Output       string `toml:"output"`        // Output folder
	BaseName     string `toml:"base_name"`     // File name of the root node, without extension
	TopologyFile string `toml:"topology_file"` // Topology file written in the output folder, empty to disable
	ManifestFile string `toml:"manifest_file"` // Manifest written in the output folder, empty to disable
	Journal      bool   `toml:"journal"`       // Record completed nodes in a journal in the output folder
	Resume       bool   `toml:"resume"`        // Skip nodes the journal records as completed
}

type TilerTopologyOptions struct {
	Input string // Topology file to inspect
}

type TilerVerifyOptions struct {
	ManifestFile string  `toml:"manifest_file"` // Manifest file name inside the verified folder
	TopologyFile string  `toml:"topology_file"` // Topology file name inside the verified folder, empty to skip
	Tolerance    float64 `toml:"tolerance"`     // Slack allowed when checking that points lie in their node cube
}

// Builds options holding the defaults of the index command
func NewDefaultTilerOptions() *TilerOptions {
	return &TilerOptions{
		Format:     "auto",
		QueueOrder: BreadthFirst,
		MaxDepth:   DefaultMaxDepth,
		TilerIndexOptions: &TilerIndexOptions{
			BaseName:     DefaultBaseName,
			TopologyFile: DefaultTopologyFile,
			ManifestFile: DefaultManifestFile,
			Journal:      true,
		},
		TilerVerifyOptions: &TilerVerifyOptions{
			ManifestFile: DefaultManifestFile,
			TopologyFile: DefaultTopologyFile,
		},
	}
}

type ITiler interface {
	RunTiler(opts *TilerOptions) error
}
