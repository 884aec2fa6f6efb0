package tools

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type FileFinder interface {
	// Returns the files of the folder, not recursing into subfolders, with the given extension
	GetFilesWithExtension(folder string, extension string) ([]string, error)
}

type StandardFileFinder struct{}

func NewStandardFileFinder() FileFinder {
	return &StandardFileFinder{}
}

func (f *StandardFileFinder) GetFilesWithExtension(folder string, extension string) ([]string, error) {
	var files = make([]string, 0)

	baseInfo, err := os.Stat(folder)
	if err != nil {
		return nil, err
	}
	err = filepath.Walk(
		folder,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				if !os.SameFile(info, baseInfo) {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.EqualFold(filepath.Ext(info.Name()), extension) {
				files = append(files, path)
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}
