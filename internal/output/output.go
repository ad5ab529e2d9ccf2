// Package output renders the event stream of a listing run.
package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/temirov/ltree/internal/types"
	"github.com/temirov/ltree/internal/utils"
)

const (
	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "

	incompleteMarker  = " [incomplete]"
	cycleMarker       = " [cycle]"
	errorMarkerFormat = " [error: %s]"
	gitMarkerFormat   = "[%s] "
	summaryIncomplete = " (incomplete)"
	flatHeaderFormat  = "%s:"
	flatColumnPadding = 2
)

// gitStatusCodes are the single-letter markers printed for each git status.
var gitStatusCodes = map[types.GitStatus]string{
	types.GitStatusConflicted: "C",
	types.GitStatusModified:   "M",
	types.GitStatusNew:        "N",
	types.GitStatusDeleted:    "D",
	types.GitStatusUntouched:  "-",
	types.GitStatusUnknown:    "?",
}

type palette struct {
	directory *color.Color
	symlink   *color.Color
	marker    *color.Color
	git       map[types.GitStatus]*color.Color
}

func newPalette(enabled bool) palette {
	build := func(attributes ...color.Attribute) *color.Color {
		paint := color.New(attributes...)
		if enabled {
			paint.EnableColor()
		} else {
			paint.DisableColor()
		}
		return paint
	}
	return palette{
		directory: build(color.FgBlue, color.Bold),
		symlink:   build(color.FgCyan),
		marker:    build(color.FgRed),
		git: map[types.GitStatus]*color.Color{
			types.GitStatusConflicted: build(color.FgRed, color.Bold),
			types.GitStatusModified:   build(color.FgYellow),
			types.GitStatusNew:        build(color.FgGreen),
			types.GitStatusDeleted:    build(color.FgRed),
			types.GitStatusUntouched:  build(color.Faint),
			types.GitStatusUnknown:    build(color.Faint),
		},
	}
}

// entryLabel formats one entry: optional permissions and git marker followed
// by the colored name.
func (colors palette) entryLabel(entry types.SerializedEntry, name string) string {
	var builder strings.Builder
	if entry.Permissions != "" {
		builder.WriteString(entry.Permissions)
		builder.WriteString(" ")
	}
	if code, known := gitStatusCodes[entry.GitStatus]; known {
		builder.WriteString(colors.git[entry.GitStatus].Sprintf(gitMarkerFormat, code))
	}
	switch entry.FileType {
	case types.FileTypeDirectory:
		builder.WriteString(colors.directory.Sprint(name))
	case types.FileTypeSymlink:
		builder.WriteString(colors.symlink.Sprint(name))
	default:
		builder.WriteString(name)
	}
	return builder.String()
}

// plainWidth is the printed width of entryLabel without color codes.
func plainWidth(entry types.SerializedEntry, name string) int {
	width := len([]rune(name))
	if entry.Permissions != "" {
		width += len(entry.Permissions) + 1
	}
	if code, known := gitStatusCodes[entry.GitStatus]; known {
		width += len(fmt.Sprintf(gitMarkerFormat, code))
	}
	return width
}

func (colors palette) nodeLine(node *types.TreeNode, isRoot bool) string {
	name := node.Entry.Name
	if isRoot {
		name = node.Entry.Path
	}
	line := colors.entryLabel(node.Entry, name)
	if node.Cycle {
		line += colors.marker.Sprint(cycleMarker)
	}
	if node.Error != "" {
		line += colors.marker.Sprintf(errorMarkerFormat, node.Error)
	}
	if node.IsDir && !node.Complete {
		line += colors.marker.Sprint(incompleteMarker)
	}
	return line
}

func treeNodeLinePrefix(prefix string, isRoot bool, isLast bool) (string, string) {
	if isRoot {
		return "", ""
	}
	connector := treeBranchConnector
	childPrefix := prefix + treeBranchPadding
	if isLast {
		connector = treeLastConnector
		childPrefix = prefix + treeLastPadding
	}
	return prefix + connector, childPrefix
}

func renderTreeNode(writer io.Writer, colors palette, node *types.TreeNode, prefix string, isRoot bool, isLast bool) error {
	if node == nil {
		return nil
	}
	linePrefix, childPrefix := treeNodeLinePrefix(prefix, isRoot, isLast)
	if _, err := fmt.Fprintf(writer, "%s%s\n", linePrefix, colors.nodeLine(node, isRoot)); err != nil {
		return err
	}
	for index, child := range node.Children {
		if err := renderTreeNode(writer, colors, child, childPrefix, false, index == len(node.Children)-1); err != nil {
			return err
		}
	}
	return nil
}

// WriteTreeRaw renders a resolved hierarchy with box-drawing connectors.
func WriteTreeRaw(writer io.Writer, node *types.TreeNode, colorEnabled bool) error {
	return renderTreeNode(writer, newPalette(colorEnabled), node, "", true, true)
}

// FormatSummaryLine formats run totals the way tree(1) does.
func FormatSummaryLine(directories int, files int, bytes int64, complete bool) string {
	directoryLabel := "directories"
	if directories == 1 {
		directoryLabel = "directory"
	}
	fileLabel := "files"
	if files == 1 {
		fileLabel = "file"
	}
	line := fmt.Sprintf("%d %s, %d %s", directories, directoryLabel, files, fileLabel)
	if bytes > 0 {
		line += ", " + utils.FormatFileSize(bytes)
	}
	if !complete {
		line += summaryIncomplete
	}
	return line
}
