package accumulator_test

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/ltree/internal/accumulator"
	"github.com/temirov/ltree/internal/services/stream"
	"github.com/temirov/ltree/internal/traverse"
	"github.com/temirov/ltree/internal/types"
)

func TestTreeIgnoredDirectoryScenario(t *testing.T) {
	root := writeTree(t, map[string]string{"b.txt": "bb", "a.txt": "a", "sub/x.txt": "x"})
	treeAccumulator := newAccumulator(t, accumulator.KindTree, accumulator.Options{Sort: accumulator.SortOptions{Key: accumulator.SortByName}})

	events := walkInto(t, treeAccumulator, traverse.Options{Root: root, MaxDepth: -1}, "sub")

	resolvedRoot := rootNode(t, events)
	assert.Equal(t, []string{"a.txt", "b.txt"}, childNames(resolvedRoot))
	assert.True(t, resolvedRoot.Complete)
	for _, node := range treeNodes(events) {
		assert.NotEqual(t, filepath.Join(root, "sub"), node.Entry.Path)
		for _, child := range node.Children {
			assert.NotContains(t, []string{"sub", "x.txt"}, child.Entry.Name)
		}
	}
	last := events[len(events)-1]
	require.Equal(t, stream.EventKindStreamComplete, last.Kind)
	assert.True(t, last.Complete.Complete)
	assert.Equal(t, 2, last.Complete.TotalFiles)
	assert.Equal(t, int64(3), resolvedRoot.Stats.Bytes)
}

func TestTreeDirectoriesFirstScenario(t *testing.T) {
	treeAccumulator := newAccumulator(t, accumulator.KindTree, accumulator.Options{
		Sort: accumulator.SortOptions{Key: accumulator.SortByName, Group: accumulator.GroupDirectoriesFirst},
	})
	aDirectory := directoryEntry(syntheticRoot, "a_dir", 1)
	aDirectory.Expand = false

	events := applyAll(treeAccumulator,
		rootBatch(true),
		childBatch(syntheticRoot, 0, fileEntry(syntheticRoot, "z.txt", 1, 1), aDirectory, fileEntry(syntheticRoot, "m.txt", 1, 1)),
	)

	assert.Equal(t, []string{"a_dir", "m.txt", "z.txt"}, childNames(rootNode(t, events)))
}

func TestTreeDepthZeroEmitsOnlyRoot(t *testing.T) {
	root := writeTree(t, map[string]string{"a.txt": "a", "nested/b.txt": "b"})
	treeAccumulator := newAccumulator(t, accumulator.KindTree, accumulator.Options{})

	events := walkInto(t, treeAccumulator, traverse.Options{Root: root, MaxDepth: 0})

	nodes := treeNodes(events)
	require.Len(t, nodes, 1)
	assert.Equal(t, 0, nodes[0].Depth)
	assert.Empty(t, nodes[0].Children)
	assert.True(t, nodes[0].Complete)
}

func TestTreeSortNonePreservesBatchOrder(t *testing.T) {
	treeAccumulator := newAccumulator(t, accumulator.KindTree, accumulator.Options{Sort: accumulator.SortOptions{Key: accumulator.SortByNone, Reverse: true}})
	events := applyAll(treeAccumulator,
		rootBatch(true),
		childBatch(syntheticRoot, 0,
			fileEntry(syntheticRoot, "c", 1, 0),
			fileEntry(syntheticRoot, "a", 1, 0),
			fileEntry(syntheticRoot, "b", 1, 0)),
	)
	assert.Equal(t, []string{"c", "a", "b"}, childNames(rootNode(t, events)))
}

func TestTreeVersionSort(t *testing.T) {
	treeAccumulator := newAccumulator(t, accumulator.KindTree, accumulator.Options{Sort: accumulator.SortOptions{Key: accumulator.SortByVersion}})
	events := applyAll(treeAccumulator,
		rootBatch(true),
		childBatch(syntheticRoot, 0,
			fileEntry(syntheticRoot, "file2", 1, 0),
			fileEntry(syntheticRoot, "file10", 1, 0),
			fileEntry(syntheticRoot, "file1", 1, 0)),
	)
	assert.Equal(t, []string{"file1", "file2", "file10"}, childNames(rootNode(t, events)))
}

func TestTreeOutOfOrderBatches(t *testing.T) {
	treeAccumulator := newAccumulator(t, accumulator.KindTree, accumulator.Options{})
	subPath := syntheticRoot + "/sub"

	events := applyAll(treeAccumulator,
		rootBatch(true),
		childBatch(subPath, 1, fileEntry(subPath, "x.txt", 2, 10)),
	)
	assert.Empty(t, treeNodes(events), "sub must wait for its own entry")

	events = applyAll(treeAccumulator, childBatch(syntheticRoot, 0, directoryEntry(syntheticRoot, "sub", 1), fileEntry(syntheticRoot, "a.txt", 1, 5)))
	nodes := treeNodes(events)
	require.Len(t, nodes, 2)
	assert.Equal(t, subPath, nodes[0].Entry.Path)
	assert.Equal(t, syntheticRoot, nodes[1].Entry.Path)
	assert.Equal(t, types.NodeStats{Bytes: 15, Files: 2, Dirs: 1}, nodes[1].Stats)

	finishEvents, err := treeAccumulator.Finish(false)
	require.NoError(t, err)
	require.Len(t, finishEvents, 1)
	assert.True(t, finishEvents[0].Complete.Complete)
}

func TestTreeParentWaitsForDescendants(t *testing.T) {
	treeAccumulator := newAccumulator(t, accumulator.KindTree, accumulator.Options{})
	onePath := syntheticRoot + "/one"
	twoPath := onePath + "/two"

	events := applyAll(treeAccumulator,
		rootBatch(true),
		childBatch(syntheticRoot, 0, directoryEntry(syntheticRoot, "one", 1)),
		childBatch(onePath, 1, directoryEntry(onePath, "two", 2)),
	)
	assert.Empty(t, treeNodes(events))

	events = applyAll(treeAccumulator, childBatch(twoPath, 2, fileEntry(twoPath, "leaf", 3, 1)))
	var order []string
	for _, node := range treeNodes(events) {
		order = append(order, node.Entry.Name)
	}
	assert.Equal(t, []string{"two", "one", "r"}, order)
}

func TestTreeCancellationFlushesIncompleteNodes(t *testing.T) {
	treeAccumulator := newAccumulator(t, accumulator.KindTree, accumulator.Options{RetainSubtrees: true})
	subPath := syntheticRoot + "/sub"

	events := applyAll(treeAccumulator,
		rootBatch(true),
		childBatch(syntheticRoot, 0, directoryEntry(syntheticRoot, "sub", 1), fileEntry(syntheticRoot, "a.txt", 1, 1)),
	)
	assert.Empty(t, treeNodes(events))

	flushEvents, err := treeAccumulator.Finish(true)
	require.NoError(t, err)
	nodes := treeNodes(flushEvents)
	require.Len(t, nodes, 2)
	assert.Equal(t, subPath, nodes[0].Entry.Path)
	assert.False(t, nodes[0].Complete)
	assert.Equal(t, syntheticRoot, nodes[1].Entry.Path)
	assert.False(t, nodes[1].Complete)
	assert.Equal(t, []string{"a.txt", "sub"}, childNames(nodes[1]))

	last := flushEvents[len(flushEvents)-1]
	require.Equal(t, stream.EventKindStreamComplete, last.Kind)
	assert.False(t, last.Complete.Complete)
}

func TestTreeFinishWithUnresolvedNodesIsCorruption(t *testing.T) {
	treeAccumulator := newAccumulator(t, accumulator.KindTree, accumulator.Options{})
	applyAll(treeAccumulator,
		rootBatch(true),
		childBatch(syntheticRoot, 0, directoryEntry(syntheticRoot, "sub", 1)),
	)
	events, err := treeAccumulator.Finish(false)
	assert.True(t, errors.Is(err, accumulator.ErrPathTableCorrupt))
	require.NotEmpty(t, events)
	assert.False(t, events[len(events)-1].Complete.Complete)
}

func TestTreeDirectoriesOnlyDropsFiles(t *testing.T) {
	treeAccumulator := newAccumulator(t, accumulator.KindTree, accumulator.Options{DirectoriesOnly: true})
	applyAll(treeAccumulator, rootBatch(true))

	result := treeAccumulator.Accumulate(fileEntry(syntheticRoot, "a.txt", 1, 1))
	assert.Equal(t, accumulator.ActionDrop, result.Action)

	leafDirectory := directoryEntry(syntheticRoot, "leaf", 1)
	leafDirectory.Expand = false
	result = treeAccumulator.Accumulate(leafDirectory)
	assert.Equal(t, accumulator.ActionEmit, result.Action)

	events := treeAccumulator.CompleteBatch(childBatch(syntheticRoot, 0))
	assert.Equal(t, []string{"leaf"}, childNames(rootNode(t, events)))
}

func TestTreeDegradedDirectoryCarriesError(t *testing.T) {
	treeAccumulator := newAccumulator(t, accumulator.KindTree, accumulator.Options{})
	lockedPath := syntheticRoot + "/locked"
	lockedBatch := childBatch(lockedPath, 1)
	lockedBatch.Err = fs.ErrPermission

	events := applyAll(treeAccumulator,
		rootBatch(true),
		childBatch(syntheticRoot, 0, directoryEntry(syntheticRoot, "locked", 1)),
		lockedBatch,
	)
	nodes := treeNodes(events)
	require.Len(t, nodes, 2)
	assert.Equal(t, fs.ErrPermission.Error(), nodes[0].Error)
	assert.True(t, nodes[1].Complete)
}

func TestTreeRetainSubtrees(t *testing.T) {
	root := writeTree(t, map[string]string{"one/two/leaf.txt": "leaf"})

	shallow := walkInto(t, newAccumulator(t, accumulator.KindTree, accumulator.Options{}), traverse.Options{Root: root, MaxDepth: -1})
	shallowRoot := rootNode(t, shallow)
	require.Len(t, shallowRoot.Children, 1)
	assert.Empty(t, shallowRoot.Children[0].Children)
	assert.Equal(t, 1, shallowRoot.Children[0].Stats.Files)

	retained := walkInto(t, newAccumulator(t, accumulator.KindTree, accumulator.Options{RetainSubtrees: true}), traverse.Options{Root: root, MaxDepth: -1})
	retainedRoot := rootNode(t, retained)
	require.Len(t, retainedRoot.Children, 1)
	require.Len(t, retainedRoot.Children[0].Children, 1)
	require.Len(t, retainedRoot.Children[0].Children[0].Children, 1)
	assert.Equal(t, "leaf.txt", retainedRoot.Children[0].Children[0].Children[0].Entry.Name)
	assert.Equal(t, types.NodeStats{Bytes: 4, Files: 1, Dirs: 2}, retainedRoot.Stats)
}

func TestTreeRootFile(t *testing.T) {
	root := writeTree(t, map[string]string{"only.txt": "abc"})
	events := walkInto(t, newAccumulator(t, accumulator.KindTree, accumulator.Options{}), traverse.Options{Root: filepath.Join(root, "only.txt"), MaxDepth: -1})
	node := rootNode(t, events)
	assert.Equal(t, "only.txt", node.Entry.Name)
	assert.Equal(t, types.NodeStats{Bytes: 3, Files: 1}, node.Stats)
}

func TestTreeLeafSetMatchesFilteredFilesystem(t *testing.T) {
	root := writeTree(t, map[string]string{
		"README.md":                "r",
		"cmd/app/main.go":          "m",
		"internal/pkg/a.go":        "a",
		"internal/pkg/a_test.log":  "l",
		"internal/pkg/deep/x/y.go": "y",
		"vendor/lib/lib.go":        "v",
		"docs/guide.md":            "g",
		"empty/":                   "/",
	})

	testCases := []struct {
		name     string
		maxDepth int
		patterns []string
		expected []string
	}{
		{
			name:     "unlimited with ignores",
			maxDepth: -1,
			patterns: []string{"vendor", "*.log"},
			expected: []string{"README.md", "cmd/app/main.go", "docs/guide.md", "empty", "internal/pkg/a.go", "internal/pkg/deep/x/y.go"},
		},
		{
			name:     "depth two",
			maxDepth: 2,
			patterns: []string{"docs"},
			expected: []string{"README.md", "cmd/app", "empty", "internal/pkg", "vendor/lib"},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			events := walkInto(t, newAccumulator(t, accumulator.KindTree, accumulator.Options{RetainSubtrees: true}),
				traverse.Options{Root: root, MaxDepth: testCase.maxDepth, Workers: 4}, testCase.patterns...)
			var leaves []string
			collectLeaves(rootNode(t, events), root, &leaves)
			sort.Strings(leaves)
			assert.Equal(t, testCase.expected, leaves)
		})
	}
}

func collectLeaves(node *types.TreeNode, root string, leaves *[]string) {
	if len(node.Children) == 0 {
		relativePath, _ := filepath.Rel(root, node.Entry.Path)
		*leaves = append(*leaves, filepath.ToSlash(relativePath))
		return
	}
	for _, child := range node.Children {
		collectLeaves(child, root, leaves)
	}
}

func TestTreeIdempotentAcrossRuns(t *testing.T) {
	files := map[string]string{}
	for _, directory := range []string{"a", "b", "c", "d/e", "d/f"} {
		for _, name := range []string{"1.txt", "2.txt", "10.txt"} {
			files[directory+"/"+name] = strings.Repeat("x", len(directory)+len(name))
		}
	}
	root := writeTree(t, files)

	render := func() string {
		events := walkInto(t, newAccumulator(t, accumulator.KindTree, accumulator.Options{
			RetainSubtrees: true,
			Sort:           accumulator.SortOptions{Key: accumulator.SortByVersion, Group: accumulator.GroupDirectoriesFirst},
		}), traverse.Options{Root: root, MaxDepth: -1, Workers: 8})
		var builder strings.Builder
		describe(rootNode(t, events), &builder)
		return builder.String()
	}
	first := render()
	for attempt := 0; attempt < 5; attempt++ {
		assert.Equal(t, first, render())
	}
}

func describe(node *types.TreeNode, builder *strings.Builder) {
	builder.WriteString(strings.Repeat(" ", node.Depth))
	builder.WriteString(node.Entry.Name)
	builder.WriteString("\n")
	for _, child := range node.Children {
		describe(child, builder)
	}
}

func TestTreeEmitsEachDirectoryOnceUnderConcurrency(t *testing.T) {
	files := map[string]string{}
	for first := 0; first < 6; first++ {
		for second := 0; second < 4; second++ {
			files[filepath.ToSlash(filepath.Join(string(rune('a'+first)), string(rune('a'+second)), "leaf.txt"))] = "z"
		}
	}
	root := writeTree(t, files)

	events := walkInto(t, newAccumulator(t, accumulator.KindTree, accumulator.Options{}), traverse.Options{Root: root, MaxDepth: -1, Workers: 16})

	seen := map[string]int{}
	for _, node := range treeNodes(events) {
		seen[node.Entry.Path]++
		assert.True(t, node.Complete)
	}
	assert.Len(t, seen, 1+6+6*4)
	for path, count := range seen {
		assert.Equal(t, 1, count, path)
	}
	resolvedRoot := rootNode(t, events)
	assert.Equal(t, types.NodeStats{Bytes: 24, Files: 24, Dirs: 30}, resolvedRoot.Stats)
}
