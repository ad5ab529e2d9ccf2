package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
)

const (
	unknownVersion     = "unknown"
	develVersionPrefix = "devel-"
	dirtyVersionSuffix = "-dirty"
	shortRevisionWidth = 12
)

// Version is stamped at link time with -ldflags "-X github.com/temirov/ltree/internal/utils.Version=v1.2.3".
var Version = ""

// GetApplicationVersion returns the stamped Version, the module version of an
// installed binary, or the VCS revision recorded by go build, in that order.
func GetApplicationVersion() string {
	if Version != "" {
		return Version
	}
	buildInfo, available := debug.ReadBuildInfo()
	if !available {
		return unknownVersion
	}
	if moduleVersion := buildInfo.Main.Version; moduleVersion != "" && moduleVersion != "(devel)" {
		return moduleVersion
	}
	return revisionVersion(buildInfo.Settings)
}

func revisionVersion(settings []debug.BuildSetting) string {
	var revision string
	var modified bool
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if revision == "" {
		return unknownVersion
	}
	if len(revision) > shortRevisionWidth {
		revision = revision[:shortRevisionWidth]
	}
	version := develVersionPrefix + revision
	if modified {
		version += dirtyVersionSuffix
	}
	return version
}

// FindRepositoryRoot returns the nearest directory at or above startDirectory
// holding a .git entry. Worktrees and submodules use a .git file, so any
// entry type counts.
func FindRepositoryRoot(startDirectory string) (string, error) {
	absoluteStart, absoluteError := filepath.Abs(startDirectory)
	if absoluteError != nil {
		return "", fmt.Errorf("resolve %s: %w", startDirectory, absoluteError)
	}
	for directory := absoluteStart; ; {
		if _, statError := os.Lstat(filepath.Join(directory, GitDirectoryName)); statError == nil {
			return directory, nil
		}
		parent := filepath.Dir(directory)
		if parent == directory {
			return "", fmt.Errorf("%w in or above %s", ErrRepositoryNotFound, absoluteStart)
		}
		directory = parent
	}
}
