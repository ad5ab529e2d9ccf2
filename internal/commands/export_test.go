package commands

import (
	"context"

	"github.com/temirov/ltree/internal/traverse"
)

// ReplaceWalk swaps the traversal used by List until the returned restore runs.
func ReplaceWalk(walk func(ctx context.Context, options traverse.Options, handler traverse.Handler) error) (restore func()) {
	previous := walkTree
	walkTree = walk
	return func() { walkTree = previous }
}
