// Package config loads listing defaults and ignore files.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/ltree/internal/utils"
)

const (
	gitDirectoryPattern = utils.GitDirectoryName + "/"
	commentPrefix       = "#"
	// negated re-inclusion lines are not supported and are dropped.
	negationPrefix = "!"
)

// IgnoreSources selects where the exclusion patterns of a listing root come
// from.
type IgnoreSources struct {
	UseIgnoreFile bool
	UseGitignore  bool
	IncludeGit    bool
	// Extra patterns, typically from -I and configuration, follow the file
	// patterns.
	Extra []string
}

// Patterns returns the de-duplicated patterns for rootDirectory: .ignore,
// then .gitignore, then .git/ unless IncludeGit, then Extra.
func (sources IgnoreSources) Patterns(rootDirectory string) ([]string, error) {
	var files []string
	if sources.UseIgnoreFile {
		files = append(files, utils.IgnoreFileName)
	}
	if sources.UseGitignore {
		files = append(files, utils.GitIgnoreFileName)
	}

	var patterns []string
	for _, fileName := range files {
		filePatterns, err := ReadIgnoreFile(filepath.Join(rootDirectory, fileName))
		if err != nil {
			return nil, fmt.Errorf("loading %s from %s: %w", fileName, rootDirectory, err)
		}
		patterns = append(patterns, filePatterns...)
	}
	if !sources.IncludeGit {
		patterns = append(patterns, gitDirectoryPattern)
	}
	for _, pattern := range sources.Extra {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return utils.DeduplicatePatterns(patterns), nil
}

// ReadIgnoreFile returns the patterns of one ignore file. A missing file has
// no patterns.
//
// #nosec G304
func ReadIgnoreFile(path string) ([]string, error) {
	file, openErr := os.Open(path)
	if errors.Is(openErr, fs.ErrNotExist) {
		return nil, nil
	}
	if openErr != nil {
		return nil, openErr
	}
	defer file.Close()

	var patterns []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, commentPrefix) || strings.HasPrefix(line, negationPrefix) {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}
