package config

import (
	"path/filepath"
	"runtime"

	homedir "github.com/mitchellh/go-homedir"
)

func defaultDataPath() (path string) {
	if runtime.GOOS == "darwin" {
		return "~/Library/Application Support"
	}
	return "~"
}

// GetBaseDirectory gets the data directory of a network.
func GetBaseDirectory(networkID string) (path string, err error) {
	path, err = homedir.Expand(filepath.Join(defaultDataPath(), directoryName(networkID)))
	if err == nil {
		path = filepath.Clean(path)
	}
	return path, err
}

func directoryName(networkID string) (directoryName string) {
	if runtime.GOOS == "linux" {
		directoryName = ".phore-chainstate"
	} else {
		directoryName = "phore-chainstate"
	}

	if networkID != "" && networkID != "mainnet" {
		directoryName += "-" + networkID
	}
	return directoryName
}
