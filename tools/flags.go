package tools

import (
	"flag"

	"github.com/golang/glog"
)

const (
	CommandIndex    = "index"
	CommandTopology = "topology"
	CommandVerify   = "verify"
)

type FlagsGlobal struct {
	Help    *bool `json:"help"`
	Version *bool `json:"version"`
}

type FlagsForCommandIndex struct {
	Input            *string `json:"input"`
	Output           *string `json:"output"`
	TargetPointCount *int    `json:"target_point_count"`
	Format           *string `json:"format"`
	BaseName         *string `json:"base_name"`
	QueueOrder       *string `json:"queue_order"`
	MaxDepth         *int    `json:"max_depth"`
	TopologyFile     *string `json:"topology_file"`
	ManifestFile     *string `json:"manifest_file"`
	Journal          *bool   `json:"journal"`
	Resume           *bool   `json:"resume"`
	Config           *string `json:"config"`
	Silent           *bool
	LogTimestamp     *bool
	Help             *bool
	Version          *bool

	// long names of the flags given on the command line
	Explicit map[string]bool `json:"-"`
}

type FlagsForCommandTopology struct {
	Input  *string `json:"input"`
	Silent *bool
	Help   *bool
}

type FlagsForCommandVerify struct {
	Input        *string  `json:"input"`
	Format       *string  `json:"format"`
	ManifestFile *string  `json:"manifest_file"`
	TopologyFile *string  `json:"topology_file"`
	Tolerance    *float64 `json:"tolerance"`
	Silent       *bool
	Help         *bool
}

func ParseFlagsGlobal() FlagsGlobal {
	help := defineBoolFlag("help", "h", false, "Displays this help.")
	version := defineBoolFlag("version", "", false, "Displays the version of octree_indexer.")

	flag.Parse()

	return FlagsGlobal{
		Help:    help,
		Version: version,
	}
}

func ParseFlagsForCommandIndex(args []string) FlagsForCommandIndex {
	glog.V(1).Infoln(FmtJSONString(args))

	flagCommand := flag.NewFlagSet("command-index", flag.ExitOnError)

	input := defineStringFlagCommand(flagCommand, "input", "i", "", "Specifies the input point file (las, xyz).")
	output := defineStringFlagCommand(flagCommand, "output", "o", "", "Specifies the output folder where to write the node files.")
	targetPointCount := defineIntFlagCommand(flagCommand, "num", "n", 0, "Target number of points per node. Nodes holding more points are decimated and split into octants.")
	format := defineStringFlagCommand(flagCommand, "format", "f", "auto", "Point file format: 'auto', 'las' or 'xyz'. 'auto' picks it from the input extension.")
	baseName := defineStringFlagCommand(flagCommand, "base", "b", "r", "File name of the root node, without extension. Children append their octant digit to it.")
	queueOrder := defineStringFlagCommand(flagCommand, "order", "", "BFS", "Order in which pending nodes are processed, 'BFS' or 'DFS'.")
	maxDepth := defineIntFlagCommand(flagCommand, "max-depth", "d", 30, "Deepest level that can still be split. Deeper nodes are left undecimated. 0 to go as deep as file names allow.")
	topologyFile := defineStringFlagCommand(flagCommand, "topology", "", "octree.idx", "File name of the tree topology written in the output folder. Empty to disable.")
	manifestFile := defineStringFlagCommand(flagCommand, "manifest", "", "manifest.json", "File name of the node manifest written in the output folder. Empty to disable.")
	journal := defineBoolFlagCommand(flagCommand, "journal", "", true, "Records completed nodes in a journal so that an interrupted run can be resumed.")
	resume := defineBoolFlagCommand(flagCommand, "resume", "", false, "Skips the nodes the journal of a previous run records as completed.")
	config := defineStringFlagCommand(flagCommand, "config", "c", "", "TOML file with the options. Flags given on the command line override it.")
	silent := defineBoolFlagCommand(flagCommand, "silent", "s", false, "Use to suppress all the non-error messages.")
	logTimestamp := defineBoolFlagCommand(flagCommand, "timestamp", "t", false, "Adds timestamp to log messages.")
	help := defineBoolFlagCommand(flagCommand, "help", "h", false, "Displays this help.")
	version := defineBoolFlagCommand(flagCommand, "version", "v", false, "Displays the version of octree_indexer.")

	flagCommand.Parse(args)

	return FlagsForCommandIndex{
		Input:            input,
		Output:           output,
		TargetPointCount: targetPointCount,
		Format:           format,
		BaseName:         baseName,
		QueueOrder:       queueOrder,
		MaxDepth:         maxDepth,
		TopologyFile:     topologyFile,
		ManifestFile:     manifestFile,
		Journal:          journal,
		Resume:           resume,
		Config:           config,
		Silent:           silent,
		LogTimestamp:     logTimestamp,
		Help:             help,
		Version:          version,
		Explicit: explicitFlags(flagCommand, map[string]string{
			"i": "input", "o": "output", "n": "num", "f": "format", "b": "base",
			"d": "max-depth", "c": "config", "s": "silent", "t": "timestamp",
		}),
	}
}

func ParseFlagsForCommandTopology(args []string) FlagsForCommandTopology {
	glog.V(1).Infoln(FmtJSONString(args))

	flagCommand := flag.NewFlagSet("command-topology", flag.ExitOnError)

	input := defineStringFlagCommand(flagCommand, "input", "i", "", "Specifies the topology file to inspect.")
	silent := defineBoolFlagCommand(flagCommand, "silent", "s", false, "Use to suppress all the non-error messages.")
	help := defineBoolFlagCommand(flagCommand, "help", "h", false, "Displays this help.")

	flagCommand.Parse(args)

	return FlagsForCommandTopology{
		Input:  input,
		Silent: silent,
		Help:   help,
	}
}

func ParseFlagsForCommandVerify(args []string) FlagsForCommandVerify {
	glog.V(1).Infoln(FmtJSONString(args))

	flagCommand := flag.NewFlagSet("command-verify", flag.ExitOnError)

	input := defineStringFlagCommand(flagCommand, "input", "i", "", "Specifies the output folder of an index run.")
	format := defineStringFlagCommand(flagCommand, "format", "f", "auto", "Point file format of the node files, 'auto' uses the one recorded in the manifest.")
	manifestFile := defineStringFlagCommand(flagCommand, "manifest", "", "manifest.json", "File name of the node manifest inside the folder.")
	topologyFile := defineStringFlagCommand(flagCommand, "topology", "", "octree.idx", "File name of the tree topology inside the folder. Empty to skip its check.")
	tolerance := defineFloat64FlagCommand(flagCommand, "tolerance", "", 0, "Distance a point may lie outside its node cube, 0 for the default relative tolerance.")
	silent := defineBoolFlagCommand(flagCommand, "silent", "s", false, "Use to suppress all the non-error messages.")
	help := defineBoolFlagCommand(flagCommand, "help", "h", false, "Displays this help.")

	flagCommand.Parse(args)

	return FlagsForCommandVerify{
		Input:        input,
		Format:       format,
		ManifestFile: manifestFile,
		TopologyFile: topologyFile,
		Tolerance:    tolerance,
		Silent:       silent,
		Help:         help,
	}
}

// returns the long names of the flags set on the command line, shorthands resolved through longNames
func explicitFlags(flagCommand *flag.FlagSet, longNames map[string]string) map[string]bool {
	explicit := make(map[string]bool)
	flagCommand.Visit(func(f *flag.Flag) {
		name := f.Name
		if long, ok := longNames[name]; ok {
			name = long
		}
		explicit[name] = true
	})
	return explicit
}

func defineBoolFlag(name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flag.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flag.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineStringFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue string, usage string) *string {
	var output string
	flagCommand.StringVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.StringVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineIntFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue int, usage string) *int {
	var output int
	flagCommand.IntVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.IntVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}

	return &output
}

func defineFloat64FlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue float64, usage string) *float64 {
	var output float64
	flagCommand.Float64Var(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.Float64Var(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}

func defineBoolFlagCommand(flagCommand *flag.FlagSet, name string, shortHand string, defaultValue bool, usage string) *bool {
	var output bool
	flagCommand.BoolVar(&output, name, defaultValue, usage)
	if shortHand != name && shortHand != "" {
		flagCommand.BoolVar(&output, shortHand, defaultValue, usage+" (shorthand for "+name+")")
	}
	return &output
}
