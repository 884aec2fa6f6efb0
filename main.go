/*
 * This file is part of the Go Cesium Point Cloud Tiler distribution (https://github.com/mfbonfigli/gocesiumtiler).
 * Copyright (c) 2019 Massimo Federico Bonfigli - m.federico.bonfigli@gmail.com
 *
 * This program is free software; you can redistribute it and/or modify it
 * under the terms of the GNU Lesser General Public License Version 3 as
 * published by the Free Software Foundation;
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
 * Lesser General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General Public License
 * along with this program. If not, see <http://www.gnu.org/licenses/>.
 *
 * This software also uses third party components. You can find information
 * on their credits and licensing in the file LICENSE-3RD-PARTIES.md that
 * you should have received togheter with the source code.
 */

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ecopia-map/octree_indexer/internal/io"
	"github.com/ecopia-map/octree_indexer/internal/octree"
	"github.com/ecopia-map/octree_indexer/internal/tiler"
	"github.com/ecopia-map/octree_indexer/pkg"
	"github.com/ecopia-map/octree_indexer/pkg/algorithm_manager/std_algorithm_manager"
	"github.com/ecopia-map/octree_indexer/tools"
	"github.com/golang/glog"
)

const VERSION = "1.0.0"

const logo = `
            _                    _           _
  ___   ___| |_ _ __ ___  ___   (_)_ __   __| | _____  _____ _ __
 / _ \ / __| __| '__/ _ \/ _ \  | | '_ \ / _  |/ _ \ \/ / _ \ '__|
| (_) | (__| |_| | |  __/  __/  | | | | | (_| |  __/>  <  __/ |
 \___/ \___|\__|_|  \___|\___|  |_|_| |_|\__,_|\___/_/\_\___|_|
  An out-of-core level of detail octree builder for point clouds
`

func main() {
	defer glog.Flush()

	flagsGlobal := tools.ParseFlagsGlobal()
	glog.V(1).Infoln(tools.FmtJSONString(flagsGlobal))

	if *flagsGlobal.Version {
		printVersion()
		return
	}

	args := flag.Args()
	if len(args) == 0 || *flagsGlobal.Help {
		showHelp()
		if len(args) == 0 && !*flagsGlobal.Help {
			exit("Please specify a subcommand [index|topology|verify].")
		}
		return
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case tools.CommandIndex:
		mainCommandIndex(args)
	case tools.CommandTopology:
		mainCommandTopology(args)
	case tools.CommandVerify:
		mainCommandVerify(args)
	default:
		exit(fmt.Sprintf("Unrecognized command [%q]. Command must be one of [index|topology|verify]", cmd))
	}
}

func mainCommandIndex(args []string) {
	// Retrieve command line args
	flags := tools.ParseFlagsForCommandIndex(args)

	if *flags.Help {
		showHelp()
		return
	}
	if *flags.Version {
		printVersion()
		return
	}

	// set logging and timestamp logging
	if *flags.Silent {
		tools.DisableLogger()
	} else {
		printLogo()
	}
	if !*flags.LogTimestamp {
		tools.DisableLoggerTimestamp()
	}

	opts, err := optionsForCommandIndex(&flags)
	if err != nil {
		exit("Error parsing input parameters: " + err.Error())
	}

	// Validate TilerOptions
	if msg, res := validateOptionsForCommandIndex(opts); !res {
		exit("Error parsing input parameters: " + msg)
	}

	algorithmManager, err := std_algorithm_manager.NewAlgorithmManager(opts)
	if err != nil {
		exit("Error parsing input parameters: " + err.Error())
	}

	defer timeTrack(time.Now(), "indexing")
	err = pkg.NewTiler(tools.NewStandardFileFinder(), algorithmManager).RunTiler(opts)
	if err != nil {
		exit(fmt.Sprintf("Error while indexing: %v", err))
	}
	tools.LogOutput("Indexing Completed")
}

// Puts command line flags inside a TilerOptions struct. Values of the config file, if any, apply
// to the flags not given explicitly.
func optionsForCommandIndex(flags *tools.FlagsForCommandIndex) (*tiler.TilerOptions, error) {
	opts := tiler.NewDefaultTilerOptions()
	opts.Command = tools.CommandIndex

	fromFlag := func(name string) bool { return true }
	if *flags.Config != "" {
		if err := tiler.LoadConfigFile(*flags.Config, opts); err != nil {
			return nil, err
		}
		fromFlag = func(name string) bool { return flags.Explicit[name] }
	}

	indexOpts := opts.TilerIndexOptions
	if fromFlag("input") {
		opts.Input = *flags.Input
	}
	if fromFlag("output") {
		indexOpts.Output = *flags.Output
	}
	if fromFlag("num") {
		opts.TargetPointCount = int64(*flags.TargetPointCount)
	}
	if fromFlag("format") {
		opts.Format = *flags.Format
	}
	if fromFlag("base") {
		indexOpts.BaseName = *flags.BaseName
	}
	if fromFlag("order") {
		opts.QueueOrder = tiler.ParseQueueOrder(*flags.QueueOrder)
	}
	if fromFlag("max-depth") {
		opts.MaxDepth = *flags.MaxDepth
	}
	if fromFlag("topology") {
		indexOpts.TopologyFile = *flags.TopologyFile
	}
	if fromFlag("manifest") {
		indexOpts.ManifestFile = *flags.ManifestFile
	}
	if fromFlag("journal") {
		indexOpts.Journal = *flags.Journal
	}
	if fromFlag("resume") {
		indexOpts.Resume = *flags.Resume
	}
	return opts, nil
}

// Validates the input options provided to the command line tool checking
// that input file and output folder exist
func validateOptionsForCommandIndex(opts *tiler.TilerOptions) (string, bool) {
	indexOpts := opts.TilerIndexOptions
	if !tools.FileExists(opts.Input) || tools.IsDirectory(opts.Input) {
		return "Input file not found", false
	}
	if indexOpts.Output == "" {
		return "Output folder not specified", false
	}
	if tools.FileExists(indexOpts.Output) && !tools.IsDirectory(indexOpts.Output) {
		return "Output is not a folder", false
	}
	if opts.TargetPointCount <= 0 {
		return "num parameter must be a positive number of points", false
	}
	if opts.QueueOrder == "" {
		return "order should be either BFS or DFS", false
	}
	if opts.MaxDepth < 0 {
		return "max-depth cannot be negative", false
	}
	if indexOpts.BaseName == "" || octree.IsValidNodePath(indexOpts.BaseName[len(indexOpts.BaseName)-1:]) {
		return "base must be a file name not ending with an octant digit", false
	}

	format, err := io.ResolveFormat(opts.Format, opts.Input)
	if err != nil {
		return err.Error(), false
	}
	root := filepath.Join(indexOpts.Output, octree.NodeFileName(indexOpts.BaseName, "", format.Extension()))
	if sameFile(root, opts.Input) {
		return "Input file would be overwritten by the root node file " + root, false
	}

	return "", true
}

func sameFile(a string, b string) bool {
	infoA, errA := os.Stat(a)
	infoB, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(infoA, infoB)
}

func mainCommandTopology(args []string) {
	flags := tools.ParseFlagsForCommandTopology(args)
	if *flags.Help {
		showHelp()
		return
	}
	if *flags.Silent {
		tools.DisableLogger()
	}

	opts := tiler.NewDefaultTilerOptions()
	opts.Command = tools.CommandTopology
	opts.TilerTopologyOptions = &tiler.TilerTopologyOptions{Input: *flags.Input}
	if !tools.FileExists(opts.TilerTopologyOptions.Input) {
		exit("Error parsing input parameters: topology file not found")
	}

	if err := pkg.NewTilerTopology().RunTiler(opts); err != nil {
		exit(fmt.Sprintf("Error while reading topology: %v", err))
	}
}

func mainCommandVerify(args []string) {
	flags := tools.ParseFlagsForCommandVerify(args)
	if *flags.Help {
		showHelp()
		return
	}
	if *flags.Silent {
		tools.DisableLogger()
	}

	opts := tiler.NewDefaultTilerOptions()
	opts.Command = tools.CommandVerify
	opts.Input = *flags.Input
	opts.Format = *flags.Format
	opts.TilerVerifyOptions = &tiler.TilerVerifyOptions{
		ManifestFile: *flags.ManifestFile,
		TopologyFile: *flags.TopologyFile,
		Tolerance:    *flags.Tolerance,
	}
	if !tools.IsDirectory(opts.Input) {
		exit("Error parsing input parameters: input folder not found")
	}

	if err := pkg.NewTilerVerify(tools.NewStandardFileFinder()).RunTiler(opts); err != nil {
		exit(fmt.Sprintf("Verification failed: %v", err))
	}
	tools.LogOutput("Verification Completed")
}

// glog.Fatal would skip the flush of the deferred calls and dump the stacks
func exit(message string) {
	glog.Errorln(message)
	glog.Flush()
	fmt.Fprintln(os.Stderr, message)
	os.Exit(1)
}

func timeTrack(start time.Time, name string) {
	elapsed := time.Since(start)
	tools.LogOutputf("%s took %s", name, elapsed)
}

func printLogo() {
	fmt.Print(logo + "\n")
}

func showHelp() {
	printLogo()
	fmt.Println("***")
	fmt.Println("octree_indexer builds a level of detail octree of a point cloud, one point file per node")
	printVersion()
	fmt.Println("***")
	fmt.Println("")
	fmt.Println("Subcommands: index, topology, verify. Use -h after a subcommand for its flags.")
	fmt.Println("Global flags: ")
	flag.CommandLine.SetOutput(os.Stdout)
	flag.PrintDefaults()
}

func printVersion() {
	fmt.Println("v." + VERSION)
}
