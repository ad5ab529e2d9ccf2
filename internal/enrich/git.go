package enrich

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/temirov/ltree/internal/types"
	"github.com/temirov/ltree/internal/utils"
)

const (
	defaultRepositoryCacheSize = 64
	repositoryRootKey          = "."
)

type repositoryStatus struct {
	files       map[string]types.GitStatus
	directories map[string]types.GitStatus
	err         error
}

// GitEnricher looks up the working tree status of entries. One
// `git status` invocation is made per repository and shared by every entry.
type GitEnricher struct {
	statuses        *lru.Cache[string, *repositoryStatus]
	inflight        singleflight.Group
	repositoryRoots sync.Map
	logger          *zap.Logger
}

// NewGitEnricher returns an enricher caching the status of up to cacheSize repositories.
func NewGitEnricher(cacheSize int, logger *zap.Logger) (*GitEnricher, error) {
	if cacheSize <= 0 {
		cacheSize = defaultRepositoryCacheSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	statuses, cacheError := lru.New[string, *repositoryStatus](cacheSize)
	if cacheError != nil {
		return nil, fmt.Errorf("unable to create git status cache: %w", cacheError)
	}
	return &GitEnricher{statuses: statuses, logger: logger}, nil
}

func (enricher *GitEnricher) Field() string {
	return FieldGitStatus
}

func (enricher *GitEnricher) Enrich(ctx context.Context, entry types.Entry) (types.Entry, error) {
	lookupDirectory := entry.ParentPath
	if entry.IsDir {
		lookupDirectory = entry.Path
	}
	repositoryRoot, insideRepository := enricher.repositoryRoot(lookupDirectory)
	if !insideRepository {
		entry.GitStatus = types.GitStatusDefault
		return entry, nil
	}

	status := enricher.repositoryStatus(ctx, repositoryRoot)
	if status.err != nil {
		return entry, status.err
	}

	relativePath, relativeError := filepath.Rel(repositoryRoot, entry.Path)
	if relativeError != nil {
		return entry, relativeError
	}
	relativePath = filepath.ToSlash(relativePath)

	var found bool
	if entry.IsDir {
		entry.GitStatus, found = status.directories[relativePath]
	} else {
		entry.GitStatus, found = status.files[relativePath]
	}
	if !found {
		entry.GitStatus = types.GitStatusUntouched
	}
	return entry, nil
}

func (enricher *GitEnricher) repositoryRoot(directory string) (string, bool) {
	if cached, found := enricher.repositoryRoots.Load(directory); found {
		root := cached.(string)
		return root, root != utils.EmptyString
	}
	root, findError := utils.FindRepositoryRoot(directory)
	if findError != nil {
		root = utils.EmptyString
	}
	enricher.repositoryRoots.Store(directory, root)
	return root, root != utils.EmptyString
}

func (enricher *GitEnricher) repositoryStatus(ctx context.Context, repositoryRoot string) *repositoryStatus {
	if cached, found := enricher.statuses.Get(repositoryRoot); found {
		return cached
	}
	result, _, _ := enricher.inflight.Do(repositoryRoot, func() (interface{}, error) {
		if cached, found := enricher.statuses.Get(repositoryRoot); found {
			return cached, nil
		}
		status := loadRepositoryStatus(ctx, repositoryRoot)
		if status.err != nil {
			enricher.logger.Debug("git status failed", zap.String("repository", repositoryRoot), zap.Error(status.err))
		}
		enricher.statuses.Add(repositoryRoot, status)
		return status, nil
	})
	return result.(*repositoryStatus)
}

func loadRepositoryStatus(ctx context.Context, repositoryRoot string) *repositoryStatus {
	// #nosec G204
	statusCommand := exec.CommandContext(ctx, "git", "-C", repositoryRoot, "status", "--porcelain", "-z", "--untracked-files=all")
	output, commandError := statusCommand.Output()
	if commandError != nil {
		return &repositoryStatus{err: fmt.Errorf("git status in %s: %w", repositoryRoot, commandError)}
	}
	return parsePorcelain(output)
}

// parsePorcelain reads `git status --porcelain -z` output. Renames and copies
// carry their source path as an extra record, which is skipped.
func parsePorcelain(output []byte) *repositoryStatus {
	status := &repositoryStatus{
		files:       map[string]types.GitStatus{},
		directories: map[string]types.GitStatus{},
	}
	records := bytes.Split(output, []byte{0})
	for recordIndex := 0; recordIndex < len(records); recordIndex++ {
		record := string(records[recordIndex])
		if len(record) < 4 {
			continue
		}
		code := record[:2]
		filePath := record[3:]
		if code[0] == 'R' || code[0] == 'C' {
			recordIndex++
		}
		fileStatus := StatusFromCode(code)
		status.files[filePath] = fileStatus
		for directory := path.Dir(filePath); ; directory = path.Dir(directory) {
			if fileStatus.Priority() > status.directories[directory].Priority() {
				status.directories[directory] = fileStatus
			}
			if directory == repositoryRootKey || directory == "/" {
				break
			}
		}
	}
	return status
}

// StatusFromCode maps a porcelain XY code onto the highest-priority status it implies.
func StatusFromCode(code string) types.GitStatus {
	switch code {
	case "DD", "AU", "UD", "UA", "DU", "AA", "UU":
		return types.GitStatusConflicted
	case "??":
		return types.GitStatusNew
	}
	resolved := types.GitStatusUntouched
	for _, marker := range code {
		var candidate types.GitStatus
		switch marker {
		case 'M', 'T', 'R', 'C':
			candidate = types.GitStatusModified
		case 'A':
			candidate = types.GitStatusNew
		case 'D':
			candidate = types.GitStatusDeleted
		default:
			continue
		}
		if candidate.Priority() > resolved.Priority() {
			resolved = candidate
		}
	}
	return resolved
}
