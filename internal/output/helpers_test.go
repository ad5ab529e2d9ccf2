package output_test

import (
	"github.com/temirov/ltree/internal/services/stream"
	"github.com/temirov/ltree/internal/types"
)

const (
	fixtureRootPath = "/tmp/root"
	fixtureRunID    = "run-1"
)

func fixtureTree() *types.TreeNode {
	fileEntry := func(name string, size int64) *types.TreeNode {
		return &types.TreeNode{
			Entry:    types.SerializedEntry{Path: fixtureRootPath + "/" + name, Name: name, FileType: types.FileTypeFile, Size: size},
			Depth:    1,
			Complete: true,
		}
	}
	nested := fileEntry("a.txt", 4)
	nested.Entry.Path = fixtureRootPath + "/sub/a.txt"
	nested.Depth = 2
	sub := &types.TreeNode{
		Entry:    types.SerializedEntry{Path: fixtureRootPath + "/sub", Name: "sub", FileType: types.FileTypeDirectory},
		Depth:    1,
		Children: []*types.TreeNode{nested},
		Stats:    types.NodeStats{Bytes: 4, Files: 1},
		Complete: true,
		IsDir:    true,
	}
	return &types.TreeNode{
		Entry:    types.SerializedEntry{Path: fixtureRootPath, Name: "root", FileType: types.FileTypeDirectory},
		Children: []*types.TreeNode{sub, fileEntry("top.txt", 1)},
		Stats:    types.NodeStats{Bytes: 5, Files: 2, Dirs: 1},
		Complete: true,
		IsDir:    true,
	}
}

func fixtureEvents() []stream.Event {
	tree := fixtureTree()
	events := []stream.Event{
		stream.NewWarningEvent(fixtureRootPath+"/locked", "unable to read directory: permission denied"),
		stream.NewTreeNodeEvent(tree.Children[0].Shallow()),
		stream.NewTreeNodeEvent(tree),
		stream.NewStreamCompleteEvent(2, 1, true),
	}
	for index := range events {
		events[index].Version = stream.SchemaVersion
		events[index].Run = fixtureRunID
		events[index].Accumulator = "tree"
	}
	return events
}
