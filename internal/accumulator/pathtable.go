package accumulator

import (
	"hash/maphash"
	"sync"
)

const pathTableShardCount = 64

type pathTableShard struct {
	mutex sync.Mutex
	nodes map[string]*treeNode
}

// pathTable maps a canonical directory path to its in-progress node.
// Each shard carries its own lock; nodes carry their own locks as well.
type pathTable struct {
	seed   maphash.Seed
	shards [pathTableShardCount]pathTableShard
}

func newPathTable() *pathTable {
	table := &pathTable{seed: maphash.MakeSeed()}
	for shardIndex := range table.shards {
		table.shards[shardIndex].nodes = map[string]*treeNode{}
	}
	return table
}

func (table *pathTable) shardFor(path string) *pathTableShard {
	return &table.shards[maphash.String(table.seed, path)%pathTableShardCount]
}

// acquire returns the node for path, inserting a placeholder on first discovery.
func (table *pathTable) acquire(path string) *treeNode {
	shard := table.shardFor(path)
	shard.mutex.Lock()
	defer shard.mutex.Unlock()
	node, found := shard.nodes[path]
	if !found {
		node = newTreeNode(path)
		shard.nodes[path] = node
	}
	return node
}

func (table *pathTable) lookup(path string) (*treeNode, bool) {
	shard := table.shardFor(path)
	shard.mutex.Lock()
	defer shard.mutex.Unlock()
	node, found := shard.nodes[path]
	return node, found
}

func (table *pathTable) remove(path string) {
	shard := table.shardFor(path)
	shard.mutex.Lock()
	defer shard.mutex.Unlock()
	delete(shard.nodes, path)
}

func (table *pathTable) drain() []*treeNode {
	var remaining []*treeNode
	for shardIndex := range table.shards {
		shard := &table.shards[shardIndex]
		shard.mutex.Lock()
		for path, node := range shard.nodes {
			remaining = append(remaining, node)
			delete(shard.nodes, path)
		}
		shard.mutex.Unlock()
	}
	return remaining
}

func (table *pathTable) size() int {
	total := 0
	for shardIndex := range table.shards {
		shard := &table.shards[shardIndex]
		shard.mutex.Lock()
		total += len(shard.nodes)
		shard.mutex.Unlock()
	}
	return total
}
