package pkg

import (
	"fmt"
	"path/filepath"

	"github.com/ecopia-map/octree_indexer/internal/journal"
	"github.com/ecopia-map/octree_indexer/internal/manifest"
	"github.com/ecopia-map/octree_indexer/internal/octree"
	"github.com/ecopia-map/octree_indexer/internal/octree/topology"
	"github.com/ecopia-map/octree_indexer/internal/tiler"
	"github.com/ecopia-map/octree_indexer/pkg/algorithm_manager"
	"github.com/ecopia-map/octree_indexer/tools"
	"github.com/golang/glog"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// Name written as generator in the manifests
const Generator = "octree_indexer"

type TilerIndex struct {
	fileFinder       tools.FileFinder
	algorithmManager algorithm_manager.AlgorithmManager
}

func NewTiler(fileFinder tools.FileFinder, algorithmManager algorithm_manager.AlgorithmManager) tiler.ITiler {
	return &TilerIndex{
		fileFinder:       fileFinder,
		algorithmManager: algorithmManager,
	}
}

// Builds the octree of the input file into the output folder
func (tilerIndex *TilerIndex) RunTiler(opts *tiler.TilerOptions) (err error) {
	indexOpts := opts.TilerIndexOptions
	if indexOpts == nil {
		return errors.New("missing index options")
	}
	if indexOpts.Resume && !indexOpts.Journal {
		return errors.New("resume requires the journal")
	}
	if err := tools.CreateDirectoryIfDoesNotExist(indexOpts.Output); err != nil {
		return errors.Wrapf(err, "cannot create output folder %s", indexOpts.Output)
	}

	format := tilerIndex.algorithmManager.GetPointFormat()
	glog.Infof("indexing %s as %s into %s", opts.Input, format.Name(), indexOpts.Output)

	var nodeJournal octree.INodeJournal
	if indexOpts.Journal {
		j, err := tilerIndex.openJournal(opts)
		if err != nil {
			return err
		}
		defer func() {
			err = multierr.Append(err, j.Close())
		}()
		nodeJournal = j
	}
	if !indexOpts.Resume {
		if err := tilerIndex.removeNodeFiles(opts); err != nil {
			return err
		}
	}

	var recorder *manifest.Recorder
	var nodeRecorder octree.INodeRecorder
	if indexOpts.ManifestFile != "" {
		recorder = manifest.NewRecorder(manifest.New(Generator, opts.Input, format.Name(), indexOpts.BaseName, opts.TargetPointCount))
		nodeRecorder = recorder
	}

	glog.Infoln("> building octree...")
	tree := tilerIndex.algorithmManager.GetTreeAlgorithm(nodeJournal, nodeRecorder)
	stats, err := tree.Build()
	if err != nil {
		return err
	}
	logBuildStats(stats)

	if indexOpts.TopologyFile != "" {
		path := filepath.Join(indexOpts.Output, indexOpts.TopologyFile)
		if _, err := topology.WriteFile(path, tree.GetTopology()); err != nil {
			return err
		}
		glog.Infoln("> topology written to", path)
	}
	if recorder != nil {
		path := filepath.Join(indexOpts.Output, indexOpts.ManifestFile)
		if err := manifest.Write(path, recorder.Manifest()); err != nil {
			return err
		}
		glog.Infoln("> manifest written to", path)
	}

	return nil
}

// Opens the journal of the output folder. A fresh run drops the records of previous ones, a
// resumed run requires them to belong to the same build.
func (tilerIndex *TilerIndex) openJournal(opts *tiler.TilerOptions) (*journal.Journal, error) {
	indexOpts := opts.TilerIndexOptions
	j, err := journal.Open(filepath.Join(indexOpts.Output, journal.DefaultFileName))
	if err != nil {
		return nil, err
	}

	source, err := filepath.Abs(opts.Input)
	if err != nil {
		source = opts.Input
	}
	info := journal.BuildInfo{
		Source:           source,
		Format:           tilerIndex.algorithmManager.GetPointFormat().Name(),
		BaseName:         indexOpts.BaseName,
		TargetPointCount: opts.TargetPointCount,
		MaxDepth:         opts.MaxDepth,
	}

	if indexOpts.Resume {
		err = j.Check(info)
		if err == nil {
			var completed int
			completed, err = j.Len()
			glog.Infof("resuming build, %d nodes already completed", completed)
		}
	} else {
		err = j.Reset(info)
	}
	if err != nil {
		return nil, multierr.Append(err, j.Close())
	}
	return j, nil
}

// Removes the node files and the uncommitted in-place outputs a previous run left in the output
// folder, sparing the input file
func (tilerIndex *TilerIndex) removeNodeFiles(opts *tiler.TilerOptions) error {
	indexOpts := opts.TilerIndexOptions
	extension := tilerIndex.algorithmManager.GetPointFormat().Extension()
	files, err := tilerIndex.fileFinder.GetFilesWithExtension(indexOpts.Output, extension)
	if err != nil {
		return errors.Wrapf(err, "cannot list output folder %s", indexOpts.Output)
	}

	input, _ := filepath.Abs(opts.Input)
	removed := 0
	for _, file := range files {
		if abs, _ := filepath.Abs(file); abs == input {
			continue
		}
		_, isNode := octree.ParseNodePath(indexOpts.BaseName, extension, file)
		_, isPending := octree.ParsePendingNodePath(indexOpts.BaseName, extension, file)
		if !isNode && !isPending {
			continue
		}
		tools.RemoveFileIfExists(file)
		removed++
	}
	if removed > 0 {
		glog.Infof("removed %d node files of a previous run", removed)
	}
	return nil
}

func logBuildStats(stats *octree.BuildStats) {
	tools.LogOutput(
		"Octree built",
		fmt.Sprintf("\n - Processed nodes = %d", stats.ProcessedNodes),
		fmt.Sprintf("\n - Resumed nodes = %d", stats.ResumedNodes),
		fmt.Sprintf("\n - Leaf nodes = %d", stats.LeafNodes),
		fmt.Sprintf("\n - Skipped nodes = %d", stats.SkippedNodes),
		fmt.Sprintf("\n - Undecimated nodes at depth limit = %d", stats.TruncatedNodes),
		fmt.Sprintf("\n - Depth = %d", stats.MaxDepth),
	)
}
