package tools

import (
	"os"

	"github.com/golang/glog"
)

func CreateDirectoryIfDoesNotExist(directory string) error {
	if _, err := os.Stat(directory); os.IsNotExist(err) {
		err := os.MkdirAll(directory, 0777)
		if err != nil {
			return err
		}
	}
	return nil
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func IsDirectory(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Removes the file if present, logging failures other than the file missing
func RemoveFileIfExists(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		glog.Warningf("cannot remove %s: %v", path, err)
	}
}
