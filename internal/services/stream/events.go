package stream

import (
	"encoding/xml"
	"time"

	"github.com/temirov/ltree/internal/types"
)

const SchemaVersion = 1

type EventKind string

const (
	EventKindTreeNode       EventKind = "tree_node"
	EventKindFlatBatch      EventKind = "flat_batch"
	EventKindStreamComplete EventKind = "stream_complete"
	EventKindWarning        EventKind = "warning"
)

type Event struct {
	XMLName     xml.Name  `json:"-" yaml:"-" xml:"event"`
	Version     int       `json:"version" yaml:"version" xml:"version,attr"`
	Kind        EventKind `json:"kind" yaml:"kind" xml:"kind,attr"`
	Run         string    `json:"run,omitempty" yaml:"run,omitempty" xml:"run,attr,omitempty"`
	Accumulator string    `json:"accumulator,omitempty" yaml:"accumulator,omitempty" xml:"accumulator,attr,omitempty"`
	Path        string    `json:"path,omitempty" yaml:"path,omitempty" xml:"path,attr,omitempty"`
	EmittedAt   time.Time `json:"emittedAt,omitempty" yaml:"emittedAt,omitempty" xml:"emittedAt,attr,omitempty"`

	TreeNode *types.TreeNode `json:"tree_node,omitempty" yaml:"tree_node,omitempty" xml:"node,omitempty"`
	Flat     *FlatBatch      `json:"flat_batch,omitempty" yaml:"flat_batch,omitempty" xml:"flat_batch,omitempty"`
	Complete *StreamComplete `json:"stream_complete,omitempty" yaml:"stream_complete,omitempty" xml:"stream_complete,omitempty"`
	Message  *LogEvent       `json:"message,omitempty" yaml:"message,omitempty" xml:"message,omitempty"`
}

// FlatBatch lists one directory's entries, or the whole run in non-recursive mode.
type FlatBatch struct {
	Directory string                  `json:"directory" yaml:"directory" xml:"directory,attr"`
	Entries   []types.SerializedEntry `json:"entries" yaml:"entries" xml:"entry"`
	Complete  bool                    `json:"complete" yaml:"complete" xml:"complete,attr"`
	Error     string                  `json:"error,omitempty" yaml:"error,omitempty" xml:"error,omitempty"`
}

// StreamComplete is always the last event of an accumulator's stream.
type StreamComplete struct {
	TotalFiles int  `json:"total_files" yaml:"total_files" xml:"total_files,attr"`
	TotalDirs  int  `json:"total_dirs" yaml:"total_dirs" xml:"total_dirs,attr"`
	Complete   bool `json:"complete" yaml:"complete" xml:"complete,attr"`
}

type LogEvent struct {
	Level   string `json:"level,omitempty" yaml:"level,omitempty" xml:"level,attr,omitempty"`
	Message string `json:"message" yaml:"message" xml:",chardata"`
}

// NewTreeNodeEvent wraps a resolved node.
func NewTreeNodeEvent(node *types.TreeNode) Event {
	return Event{Kind: EventKindTreeNode, Path: node.Entry.Path, TreeNode: node}
}

// NewFlatBatchEvent wraps a directory listing.
func NewFlatBatchEvent(batch *FlatBatch) Event {
	return Event{Kind: EventKindFlatBatch, Path: batch.Directory, Flat: batch}
}

// NewStreamCompleteEvent builds the terminal event.
func NewStreamCompleteEvent(totalFiles, totalDirs int, complete bool) Event {
	return Event{
		Kind:     EventKindStreamComplete,
		Complete: &StreamComplete{TotalFiles: totalFiles, TotalDirs: totalDirs, Complete: complete},
	}
}

// NewWarningEvent reports a recoverable condition.
func NewWarningEvent(path, message string) Event {
	return Event{Kind: EventKindWarning, Path: path, Message: &LogEvent{Level: "warning", Message: message}}
}
