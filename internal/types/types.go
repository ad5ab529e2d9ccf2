// Package types defines every cross‑package data structure used by the ltree CLI.
package types

import (
	"encoding/xml"
	"io/fs"
	"time"
)

const (
	FormatRaw  = "raw"
	FormatJSON = "json"
	FormatXML  = "xml"
	FormatYAML = "yaml"

	LayoutTree = "tree"
	LayoutFlat = "flat"
)

// FileType classifies an entry the way the listing presents it.
type FileType string

const (
	FileTypeFile        FileType = "file"
	FileTypeDirectory   FileType = "directory"
	FileTypeSymlink     FileType = "symlink"
	FileTypePipe        FileType = "pipe"
	FileTypeSocket      FileType = "socket"
	FileTypeCharDevice  FileType = "char_device"
	FileTypeBlockDevice FileType = "block_device"
	FileTypeSpecial     FileType = "special"
)

// FileTypeFromMode maps raw mode bits onto a FileType.
func FileTypeFromMode(mode fs.FileMode) FileType {
	switch {
	case mode.IsDir():
		return FileTypeDirectory
	case mode&fs.ModeSymlink != 0:
		return FileTypeSymlink
	case mode&fs.ModeNamedPipe != 0:
		return FileTypePipe
	case mode&fs.ModeSocket != 0:
		return FileTypeSocket
	case mode&fs.ModeCharDevice != 0:
		return FileTypeCharDevice
	case mode&fs.ModeDevice != 0:
		return FileTypeBlockDevice
	case mode.IsRegular():
		return FileTypeFile
	default:
		return FileTypeSpecial
	}
}

// GitStatus is the enrichment result of the git status lookup.
type GitStatus string

const (
	GitStatusDefault    GitStatus = "default"
	GitStatusUntouched  GitStatus = "untouched"
	GitStatusNew        GitStatus = "new"
	GitStatusModified   GitStatus = "modified"
	GitStatusDeleted    GitStatus = "deleted"
	GitStatusConflicted GitStatus = "conflicted"
	GitStatusUnknown    GitStatus = "unknown"
)

// Priority orders git statuses from most to least significant; higher wins.
func (status GitStatus) Priority() int {
	switch status {
	case GitStatusConflicted:
		return 5
	case GitStatusModified:
		return 4
	case GitStatusNew:
		return 3
	case GitStatusDeleted:
		return 2
	case GitStatusUntouched:
		return 1
	default:
		return 0
	}
}

// PermissionsUnknown is stored when permission enrichment fails.
const PermissionsUnknown = "unknown"

// Entry is one discovered filesystem object with raw and enriched metadata.
type Entry struct {
	Path          string
	ParentPath    string
	Name          string
	RelativePath  string
	Depth         int
	IsDir         bool
	FileType      FileType
	Info          fs.FileInfo
	Size          int64
	Modified      time.Time
	IsSymlink     bool
	SymlinkTarget string

	// Expand reports whether traversal will deliver a batch for this directory.
	Expand bool
	Cycle  bool

	Permissions string
	GitStatus   GitStatus

	Err error
}

// Degraded reports whether the entry could only be read partially.
func (entry Entry) Degraded() bool {
	return entry.Err != nil
}

// Serialize returns the wire representation of the entry.
func (entry Entry) Serialize() SerializedEntry {
	serialized := SerializedEntry{
		Path:        entry.Path,
		Name:        entry.Name,
		FileType:    entry.FileType,
		Size:        entry.Size,
		Permissions: entry.Permissions,
		GitStatus:   entry.GitStatus,
		IsSymlink:   entry.IsSymlink,
	}
	if !entry.Modified.IsZero() {
		serialized.Modified = entry.Modified.UTC().Format(time.RFC3339)
	}
	if serialized.GitStatus == "" {
		serialized.GitStatus = GitStatusDefault
	}
	return serialized
}

// SerializedEntry is the field set emitted for an entry by every machine-readable renderer.
type SerializedEntry struct {
	Path        string    `json:"path" yaml:"path" xml:"path,attr"`
	Name        string    `json:"name" yaml:"name" xml:"name,attr"`
	FileType    FileType  `json:"file_type" yaml:"file_type" xml:"file_type,attr"`
	Size        int64     `json:"size" yaml:"size" xml:"size,attr"`
	Permissions string    `json:"permissions" yaml:"permissions" xml:"permissions,attr"`
	Modified    string    `json:"modified" yaml:"modified" xml:"modified,attr"`
	GitStatus   GitStatus `json:"git_status" yaml:"git_status" xml:"git_status,attr"`
	IsSymlink   bool      `json:"is_symlink" yaml:"is_symlink" xml:"is_symlink,attr"`
}

// Batch is the atomic result of reading one directory.
type Batch struct {
	// Directory is the path that was read. For the root batch it is the parent of the root.
	Directory string
	Depth     int
	Entries   []Entry
	Err       error
	// Root marks the synthetic batch that introduces the root entry.
	Root bool
	// Subtree is the first path component below the root, used to partition buffering.
	Subtree string
}

// NodeStats aggregates the contents of a subtree.
type NodeStats struct {
	Bytes int64 `json:"bytes" yaml:"bytes" xml:"bytes,attr"`
	Files int   `json:"files" yaml:"files" xml:"files,attr"`
	Dirs  int   `json:"dirs" yaml:"dirs" xml:"dirs,attr"`
}

// Add folds another subtree's stats into the receiver.
func (stats *NodeStats) Add(other NodeStats) {
	stats.Bytes += other.Bytes
	stats.Files += other.Files
	stats.Dirs += other.Dirs
}

// TreeNode is the serializable view of a resolved node.
type TreeNode struct {
	XMLName  xml.Name        `json:"-" yaml:"-" xml:"node"`
	Entry    SerializedEntry `json:"entry" yaml:"entry" xml:"entry"`
	Depth    int             `json:"depth" yaml:"depth" xml:"depth,attr"`
	Children []*TreeNode     `json:"children,omitempty" yaml:"children,omitempty" xml:"children>node,omitempty"`
	Stats    NodeStats       `json:"stats" yaml:"stats" xml:"stats"`
	Complete bool            `json:"complete" yaml:"complete" xml:"complete,attr"`
	Error    string          `json:"error,omitempty" yaml:"error,omitempty" xml:"error,omitempty"`
	Cycle    bool            `json:"cycle,omitempty" yaml:"cycle,omitempty" xml:"cycle,attr,omitempty"`
	IsDir    bool            `json:"-" yaml:"-" xml:"-"`
}

// Shallow returns a copy of the node without its nested children.
func (node *TreeNode) Shallow() *TreeNode {
	if node == nil {
		return nil
	}
	copied := *node
	copied.Children = nil
	return &copied
}

// ValidatedPath is an absolute input path that already passed existence checks.
type ValidatedPath struct {
	AbsolutePath string
	IsDir        bool
}
