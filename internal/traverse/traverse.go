// Package traverse reads a directory hierarchy with a fixed pool of workers
// and hands each directory's filtered children to a handler as one batch.
package traverse

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/ltree/internal/ignore"
	"github.com/temirov/ltree/internal/types"
	"github.com/temirov/ltree/internal/utils"
)

const rootRelativePath = "."

// ErrErrorThreshold is returned when degraded reads exceed Options.ErrorThreshold.
var ErrErrorThreshold = errors.New("traversal error threshold exceeded")

// Handler receives each batch. It is called concurrently from every worker.
type Handler func(ctx context.Context, batch types.Batch) error

// Options configures one traversal.
type Options struct {
	Root string
	// MaxDepth below zero means unlimited; zero yields only the root.
	MaxDepth       int
	Matcher        *ignore.Matcher
	IncludeHidden  bool
	FollowSymlinks bool
	Workers        int
	// ErrorThreshold of zero disables the limit.
	ErrorThreshold int
	Logger         *zap.Logger
}

type directoryJob struct {
	path         string
	relativePath string
	depth        int
	// ancestors holds canonical paths from this directory up to the root. It
	// is only tracked when symlinks are followed.
	ancestors *ancestorChain
}

type ancestorChain struct {
	canonical string
	parent    *ancestorChain
}

func (chain *ancestorChain) contains(canonical string) bool {
	for link := chain; link != nil; link = link.parent {
		if link.canonical == canonical {
			return true
		}
	}
	return false
}

type walker struct {
	options        Options
	handler        Handler
	queue          *workQueue
	canonicalRoot  string
	resolveSymlink func(path string) (string, error)
	reportedCycles sync.Map
	failures       atomic.Int64
}

// Walk traverses options.Root. The first batch delivered is the synthetic
// root batch; afterwards one batch per expanded directory is delivered in no
// particular order between directories.
func Walk(ctx context.Context, options Options, handler Handler) error {
	if handler == nil {
		return errors.New("traversal handler is nil")
	}
	if options.Logger == nil {
		options.Logger = zap.NewNop()
	}
	if options.Workers <= 0 {
		options.Workers = runtime.NumCPU()
	}

	absoluteRoot, absoluteError := filepath.Abs(options.Root)
	if absoluteError != nil {
		return fmt.Errorf("unable to resolve root %s: %w", options.Root, absoluteError)
	}
	rootInfo, statError := os.Stat(absoluteRoot)
	if statError != nil {
		return fmt.Errorf("unable to stat root %s: %w", absoluteRoot, statError)
	}

	traversal := &walker{options: options, handler: handler, queue: newWorkQueue(), resolveSymlink: filepath.EvalSymlinks}

	parentDirectory := filepath.Dir(absoluteRoot)
	rootEntry := newEntry(absoluteRoot, parentDirectory, filepath.Base(absoluteRoot), rootRelativePath, 0, rootInfo)
	if linkInfo, linkError := os.Lstat(absoluteRoot); linkError == nil && linkInfo.Mode()&fs.ModeSymlink != 0 {
		rootEntry.IsSymlink = true
		rootEntry.SymlinkTarget, _ = os.Readlink(absoluteRoot)
	}
	rootEntry.Expand = rootEntry.IsDir && options.MaxDepth != 0
	rootJob := directoryJob{path: absoluteRoot, relativePath: rootRelativePath, depth: 0}
	if rootEntry.Expand && options.FollowSymlinks {
		canonicalRoot, canonicalError := filepath.EvalSymlinks(absoluteRoot)
		if canonicalError != nil {
			return fmt.Errorf("unable to resolve root %s: %w", absoluteRoot, canonicalError)
		}
		traversal.canonicalRoot = canonicalRoot
		rootJob.ancestors = &ancestorChain{canonical: canonicalRoot}
	}

	rootBatch := types.Batch{
		Directory: parentDirectory,
		Depth:     -1,
		Entries:   []types.Entry{rootEntry},
		Root:      true,
	}
	if err := handler(ctx, rootBatch); err != nil {
		return err
	}
	if !rootEntry.Expand {
		return nil
	}

	traversal.queue.push(rootJob)

	workerGroup, workerContext := errgroup.WithContext(ctx)
	for workerIndex := 0; workerIndex < options.Workers; workerIndex++ {
		workerGroup.Go(func() error {
			return traversal.work(workerContext)
		})
	}
	return workerGroup.Wait()
}

func (traversal *walker) work(ctx context.Context) error {
	for {
		job, available := traversal.queue.pop()
		if !available {
			return nil
		}
		jobError := traversal.readDirectory(ctx, job)
		traversal.queue.done()
		if jobError != nil {
			traversal.queue.abort()
			return jobError
		}
	}
}

func (traversal *walker) readDirectory(ctx context.Context, job directoryJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := types.Batch{
		Directory: job.path,
		Depth:     job.depth,
		Subtree:   utils.SubtreeKey(job.relativePath),
	}

	directoryEntries, readError := os.ReadDir(job.path)
	if readError != nil {
		traversal.options.Logger.Warn("unable to read directory", zap.String("path", job.path), zap.Error(readError))
		batch.Err = readError
		if err := traversal.handler(ctx, batch); err != nil {
			return err
		}
		return traversal.recordFailure()
	}

	var childJobs []directoryJob
	for _, directoryEntry := range directoryEntries {
		name := directoryEntry.Name()
		if !traversal.options.IncludeHidden && utils.IsHiddenName(name) {
			continue
		}
		childPath := filepath.Join(job.path, name)
		childRelativePath := utils.JoinRelative(job.relativePath, name)
		childDepth := job.depth + 1

		isSymlink := directoryEntry.Type()&fs.ModeSymlink != 0
		var followedInfo fs.FileInfo
		isDirectory := directoryEntry.IsDir()
		if isSymlink && traversal.options.FollowSymlinks {
			if targetInfo, targetError := os.Stat(childPath); targetError == nil {
				followedInfo = targetInfo
				isDirectory = targetInfo.IsDir()
			}
		}
		if traversal.options.Matcher.Match(childRelativePath, isDirectory) {
			continue
		}

		info := followedInfo
		if info == nil {
			var infoError error
			info, infoError = directoryEntry.Info()
			if infoError != nil {
				traversal.options.Logger.Debug("unable to stat entry", zap.String("path", childPath), zap.Error(infoError))
				batch.Entries = append(batch.Entries, types.Entry{
					Path:         childPath,
					ParentPath:   job.path,
					Name:         name,
					RelativePath: childRelativePath,
					Depth:        childDepth,
					IsDir:        isDirectory,
					FileType:     types.FileTypeFromMode(directoryEntry.Type()),
					Err:          infoError,
				})
				if err := traversal.recordFailure(); err != nil {
					return err
				}
				continue
			}
		}

		entry := newEntry(childPath, job.path, name, childRelativePath, childDepth, info)
		if isSymlink {
			entry.IsSymlink = true
			entry.SymlinkTarget, _ = os.Readlink(childPath)
		}
		if entry.IsDir && traversal.withinDepth(childDepth) {
			ancestors, visitError := traversal.visit(job, childPath, name, isSymlink)
			switch {
			case visitError != nil:
				traversal.options.Logger.Debug("unable to resolve symlink", zap.String("path", childPath), zap.Error(visitError))
				entry.Err = visitError
				if err := traversal.recordFailure(); err != nil {
					return err
				}
			case ancestors == nil && traversal.options.FollowSymlinks:
				entry.Cycle = true
			default:
				entry.Expand = true
				childJobs = append(childJobs, directoryJob{path: childPath, relativePath: childRelativePath, depth: childDepth, ancestors: ancestors})
			}
		}
		batch.Entries = append(batch.Entries, entry)
	}

	if err := traversal.handler(ctx, batch); err != nil {
		return err
	}
	for _, childJob := range childJobs {
		traversal.queue.push(childJob)
	}
	return nil
}

func (traversal *walker) withinDepth(depth int) bool {
	return traversal.options.MaxDepth < 0 || depth < traversal.options.MaxDepth
}

// visit decides whether a directory found in job is expanded and returns its
// ancestor chain. Without symlink following every directory is expanded and
// the chain stays nil. When following, the outcome does not depend on worker
// timing:
//   - a real directory is always expanded;
//   - a symlink whose target lies inside the root is a back-reference, since
//     the target is listed at its real path;
//   - a symlink leaving the root is expanded unless its target is one of its
//     own ancestors.
//
// A nil chain with a nil error marks a cycle.
func (traversal *walker) visit(job directoryJob, path string, name string, isSymlink bool) (*ancestorChain, error) {
	if !traversal.options.FollowSymlinks {
		return nil, nil
	}
	if !isSymlink {
		return &ancestorChain{canonical: filepath.Join(job.ancestors.canonical, name), parent: job.ancestors}, nil
	}
	canonicalPath, canonicalError := traversal.resolveSymlink(path)
	if canonicalError != nil {
		return nil, canonicalError
	}
	if withinDirectory(canonicalPath, traversal.canonicalRoot) || job.ancestors.contains(canonicalPath) {
		if _, reported := traversal.reportedCycles.LoadOrStore(canonicalPath, struct{}{}); !reported {
			traversal.options.Logger.Info("symlink cycle detected", zap.String("path", path), zap.String("canonical", canonicalPath))
		}
		return nil, nil
	}
	return &ancestorChain{canonical: canonicalPath, parent: job.ancestors}, nil
}

func withinDirectory(path string, directory string) bool {
	if path == directory {
		return true
	}
	prefix := directory
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}

func (traversal *walker) recordFailure() error {
	failures := traversal.failures.Add(1)
	threshold := traversal.options.ErrorThreshold
	if threshold > 0 && failures > int64(threshold) {
		return fmt.Errorf("%w: %d degraded reads", ErrErrorThreshold, failures)
	}
	return nil
}

func newEntry(path, parentPath, name, relativePath string, depth int, info fs.FileInfo) types.Entry {
	mode := info.Mode()
	return types.Entry{
		Path:         path,
		ParentPath:   parentPath,
		Name:         name,
		RelativePath: relativePath,
		Depth:        depth,
		IsDir:        mode.IsDir(),
		FileType:     types.FileTypeFromMode(mode),
		Info:         info,
		Size:         info.Size(),
		Modified:     info.ModTime(),
		IsSymlink:    mode&fs.ModeSymlink != 0,
	}
}
