package accumulator

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/temirov/ltree/internal/services/stream"
	"github.com/temirov/ltree/internal/types"
)

type childSlot struct {
	entry types.Entry
	// view is set once a directory child has completed or been flushed.
	view *types.TreeNode
}

// treeNode is a directory in progress. A node created from a batch that
// arrived before the directory's own entry is a placeholder until the entry
// is attached.
type treeNode struct {
	mutex          sync.Mutex
	path           string
	entry          *types.Entry
	children       []childSlot
	childIndex     map[string]int
	batchDone      bool
	batchError     error
	unresolvedDirs int
	completed      bool
}

func newTreeNode(path string) *treeNode {
	return &treeNode{path: path, childIndex: map[string]int{}}
}

// waiting reports whether the node still depends on a batch or a child.
// Callers hold node.mutex.
func (node *treeNode) waiting() bool {
	if node.completed || node.entry == nil {
		return true
	}
	if node.entry.Expand && !node.batchDone {
		return true
	}
	return node.unresolvedDirs > 0
}

type treeAccumulator struct {
	options    Options
	table      *pathTable
	rootDone   atomic.Bool
	totalFiles atomic.Int64
	totalDirs  atomic.Int64
	orphans    atomic.Int64
}

func newTreeAccumulator(options Options) *treeAccumulator {
	return &treeAccumulator{options: options, table: newPathTable()}
}

func (accumulator *treeAccumulator) Accumulate(entry types.Entry) Result {
	if entry.Depth == 0 {
		return accumulator.accumulateRoot(entry)
	}
	if accumulator.options.DirectoriesOnly && !entry.IsDir {
		return Result{Action: ActionDrop}
	}
	if entry.IsDir {
		accumulator.totalDirs.Add(1)
	} else {
		accumulator.totalFiles.Add(1)
	}

	parent := accumulator.table.acquire(entry.ParentPath)
	parent.mutex.Lock()
	parent.childIndex[entry.Path] = len(parent.children)
	parent.children = append(parent.children, childSlot{entry: entry})
	if entry.IsDir {
		parent.unresolvedDirs++
	}
	parent.mutex.Unlock()

	if !entry.IsDir {
		return Result{Action: ActionBuffer}
	}
	events := accumulator.attachEntry(entry)
	if len(events) == 0 {
		return Result{Action: ActionBuffer}
	}
	return Result{Action: ActionEmit, Events: events}
}

func (accumulator *treeAccumulator) accumulateRoot(entry types.Entry) Result {
	if !entry.IsDir {
		accumulator.totalFiles.Add(1)
		view := leafView(entry)
		accumulator.rootDone.Store(true)
		return Result{Action: ActionEmit, Events: []stream.Event{stream.NewTreeNodeEvent(view)}}
	}
	events := accumulator.attachEntry(entry)
	if len(events) == 0 {
		return Result{Action: ActionBuffer}
	}
	return Result{Action: ActionEmit, Events: events}
}

func (accumulator *treeAccumulator) attachEntry(entry types.Entry) []stream.Event {
	node := accumulator.table.acquire(entry.Path)
	node.mutex.Lock()
	attached := entry
	node.entry = &attached
	node.mutex.Unlock()
	return accumulator.resolve(node)
}

func (accumulator *treeAccumulator) CompleteBatch(batch types.Batch) []stream.Event {
	if batch.Root {
		return nil
	}
	node := accumulator.table.acquire(batch.Directory)
	node.mutex.Lock()
	node.batchDone = true
	node.batchError = batch.Err
	node.mutex.Unlock()
	return accumulator.resolve(node)
}

// resolve completes node if nothing is pending and cascades upward. Only one
// node lock is held at a time.
func (accumulator *treeAccumulator) resolve(node *treeNode) []stream.Event {
	var events []stream.Event
	for node != nil {
		node.mutex.Lock()
		if node.waiting() {
			node.mutex.Unlock()
			return events
		}
		node.completed = true
		view := accumulator.buildView(node, true)
		entry := *node.entry
		node.mutex.Unlock()

		accumulator.table.remove(node.path)
		events = append(events, stream.NewTreeNodeEvent(view))

		if entry.Depth == 0 {
			accumulator.rootDone.Store(true)
			return events
		}
		node = accumulator.releaseChild(entry, view)
	}
	return events
}

// releaseChild stores a finished child view in its parent and returns the
// parent for a completion recheck.
func (accumulator *treeAccumulator) releaseChild(entry types.Entry, view *types.TreeNode) *treeNode {
	parent, found := accumulator.table.lookup(entry.ParentPath)
	if !found {
		accumulator.orphans.Add(1)
		accumulator.options.Logger.Error("parent node missing from path table", zap.String("path", entry.Path))
		return nil
	}
	if !accumulator.options.RetainSubtrees {
		view = view.Shallow()
	}
	parent.mutex.Lock()
	if slotIndex, exists := parent.childIndex[entry.Path]; exists {
		parent.children[slotIndex].view = view
	}
	parent.unresolvedDirs--
	parent.mutex.Unlock()
	return parent
}

// buildView sorts the node's children and aggregates its stats. Callers hold node.mutex.
func (accumulator *treeAccumulator) buildView(node *treeNode, complete bool) *types.TreeNode {
	SortEntries(node.children, func(slot childSlot) *types.Entry { return &slot.entry }, accumulator.options.Sort)
	for slotIndex, slot := range node.children {
		node.childIndex[slot.entry.Path] = slotIndex
	}

	var entry types.Entry
	if node.entry != nil {
		entry = *node.entry
	} else {
		entry = types.Entry{Path: node.path, Name: filepath.Base(node.path), IsDir: true, FileType: types.FileTypeDirectory}
	}
	view := &types.TreeNode{
		Entry:    entry.Serialize(),
		Depth:    entry.Depth,
		Complete: complete,
		Cycle:    entry.Cycle,
		IsDir:    true,
		Error:    errorText(node.batchError, entry.Err),
		Children: make([]*types.TreeNode, 0, len(node.children)),
	}
	for _, slot := range node.children {
		child := slot.view
		if child == nil && slot.entry.IsDir {
			child = leafView(slot.entry)
			child.IsDir = true
			child.Complete = false
		}
		if child == nil {
			child = leafView(slot.entry)
		}
		view.Children = append(view.Children, child)
		view.Stats.Add(child.Stats)
		if child.IsDir {
			view.Stats.Dirs++
		}
	}
	return view
}

func (accumulator *treeAccumulator) Finish(interrupted bool) ([]stream.Event, error) {
	var finishError error
	remaining := accumulator.table.drain()
	if len(remaining) > 0 && !interrupted {
		finishError = fmt.Errorf("%w: %d unresolved nodes", ErrPathTableCorrupt, len(remaining))
	}
	if orphans := accumulator.orphans.Load(); orphans > 0 && finishError == nil {
		finishError = fmt.Errorf("%w: %d nodes without parent", ErrPathTableCorrupt, orphans)
	}

	events := accumulator.flush(remaining)
	complete := !interrupted && finishError == nil && accumulator.rootDone.Load()
	events = append(events, stream.NewStreamCompleteEvent(int(accumulator.totalFiles.Load()), int(accumulator.totalDirs.Load()), complete))
	return events, finishError
}

// flush emits every unresolved node deepest first as incomplete, threading
// each flushed view into its parent so partial hierarchies survive.
func (accumulator *treeAccumulator) flush(remaining []*treeNode) []stream.Event {
	if len(remaining) == 0 {
		return nil
	}
	byPath := make(map[string]*treeNode, len(remaining))
	for _, node := range remaining {
		byPath[node.path] = node
	}
	sort.SliceStable(remaining, func(leftIndex, rightIndex int) bool {
		leftDepth, rightDepth := pathDepth(remaining[leftIndex]), pathDepth(remaining[rightIndex])
		if leftDepth != rightDepth {
			return leftDepth > rightDepth
		}
		return remaining[leftIndex].path < remaining[rightIndex].path
	})

	events := make([]stream.Event, 0, len(remaining))
	for _, node := range remaining {
		node.mutex.Lock()
		if node.completed {
			node.mutex.Unlock()
			continue
		}
		node.completed = true
		view := accumulator.buildView(node, false)
		parentPath := filepath.Dir(node.path)
		if node.entry != nil {
			parentPath = node.entry.ParentPath
		}
		node.mutex.Unlock()

		events = append(events, stream.NewTreeNodeEvent(view))
		if parent, found := byPath[parentPath]; found {
			if !accumulator.options.RetainSubtrees {
				view = view.Shallow()
			}
			parent.mutex.Lock()
			if slotIndex, exists := parent.childIndex[node.path]; exists {
				parent.children[slotIndex].view = view
			}
			parent.mutex.Unlock()
		}
	}
	return events
}

func pathDepth(node *treeNode) int {
	return strings.Count(filepath.ToSlash(node.path), "/")
}

func leafView(entry types.Entry) *types.TreeNode {
	view := &types.TreeNode{
		Entry:    entry.Serialize(),
		Depth:    entry.Depth,
		Complete: true,
		Cycle:    entry.Cycle,
		IsDir:    entry.IsDir,
		Error:    errorText(entry.Err),
	}
	if !entry.IsDir {
		view.Stats = types.NodeStats{Bytes: entry.Size, Files: 1}
	}
	return view
}

func errorText(errs ...error) string {
	for _, err := range errs {
		if err != nil {
			return err.Error()
		}
	}
	return ""
}
