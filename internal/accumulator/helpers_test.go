package accumulator_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/ltree/internal/accumulator"
	"github.com/temirov/ltree/internal/ignore"
	"github.com/temirov/ltree/internal/services/stream"
	"github.com/temirov/ltree/internal/traverse"
	"github.com/temirov/ltree/internal/types"
)

const syntheticRoot = "/r"

var fixedTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func rootEntry(expand bool) types.Entry {
	return types.Entry{
		Path:         syntheticRoot,
		ParentPath:   "/",
		Name:         "r",
		RelativePath: ".",
		IsDir:        true,
		FileType:     types.FileTypeDirectory,
		Expand:       expand,
	}
}

func rootBatch(expand bool) types.Batch {
	return types.Batch{Directory: "/", Depth: -1, Root: true, Entries: []types.Entry{rootEntry(expand)}}
}

func directoryEntry(parent string, name string, depth int) types.Entry {
	return types.Entry{
		Path:       parent + "/" + name,
		ParentPath: parent,
		Name:       name,
		Depth:      depth,
		IsDir:      true,
		FileType:   types.FileTypeDirectory,
		Expand:     true,
		Modified:   fixedTime,
	}
}

func fileEntry(parent string, name string, depth int, size int64) types.Entry {
	return types.Entry{
		Path:       parent + "/" + name,
		ParentPath: parent,
		Name:       name,
		Depth:      depth,
		FileType:   types.FileTypeFile,
		Size:       size,
		Modified:   fixedTime,
	}
}

func childBatch(directory string, depth int, entries ...types.Entry) types.Batch {
	return types.Batch{Directory: directory, Depth: depth, Entries: entries}
}

func applyAll(accumulatorInstance accumulator.Accumulator, batches ...types.Batch) []stream.Event {
	var events []stream.Event
	for _, batch := range batches {
		events = append(events, accumulator.Apply(accumulatorInstance, batch)...)
	}
	return events
}

func treeNodes(events []stream.Event) []*types.TreeNode {
	var nodes []*types.TreeNode
	for _, event := range events {
		if event.Kind == stream.EventKindTreeNode {
			nodes = append(nodes, event.TreeNode)
		}
	}
	return nodes
}

func childNames(node *types.TreeNode) []string {
	names := make([]string, 0, len(node.Children))
	for _, child := range node.Children {
		names = append(names, child.Entry.Name)
	}
	return names
}

func newAccumulator(t *testing.T, kind accumulator.Kind, options accumulator.Options) accumulator.Accumulator {
	t.Helper()
	accumulatorInstance, err := accumulator.New(kind, options)
	require.NoError(t, err)
	return accumulatorInstance
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for relativePath, content := range files {
		absolutePath := filepath.Join(root, filepath.FromSlash(relativePath))
		require.NoError(t, os.MkdirAll(filepath.Dir(absolutePath), 0o755))
		if content == "/" {
			require.NoError(t, os.MkdirAll(absolutePath, 0o755))
			continue
		}
		require.NoError(t, os.WriteFile(absolutePath, []byte(content), 0o644))
	}
	return root
}

// walkInto traverses root and feeds every batch straight into the
// accumulator from the worker goroutines.
func walkInto(t *testing.T, accumulatorInstance accumulator.Accumulator, options traverse.Options, patterns ...string) []stream.Event {
	t.Helper()
	if len(patterns) > 0 {
		matcher, err := ignore.Compile(patterns, ignore.MatchBoth)
		require.NoError(t, err)
		options.Matcher = matcher
	}
	var mutex sync.Mutex
	var events []stream.Event
	require.NoError(t, traverse.Walk(context.Background(), options, func(_ context.Context, batch types.Batch) error {
		produced := accumulator.Apply(accumulatorInstance, batch)
		mutex.Lock()
		events = append(events, produced...)
		mutex.Unlock()
		return nil
	}))
	finishEvents, err := accumulatorInstance.Finish(false)
	require.NoError(t, err)
	return append(events, finishEvents...)
}

func rootNode(t *testing.T, events []stream.Event) *types.TreeNode {
	t.Helper()
	for _, node := range treeNodes(events) {
		if node.Depth == 0 {
			return node
		}
	}
	t.Fatalf("root node not emitted")
	return nil
}
