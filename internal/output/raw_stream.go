package output

import (
	"fmt"
	"io"

	"github.com/temirov/ltree/internal/services/stream"
)

// rawStreamRenderer prints each root hierarchy as soon as its root node
// resolves. Nested nodes are expected inside the root's children.
type rawStreamRenderer struct {
	stdout  io.Writer
	stderr  io.Writer
	color   bool
	printed int
	totals  runTotals
}

func NewRawStreamRenderer(stdout, stderr io.Writer, options RendererOptions) StreamRenderer {
	return &rawStreamRenderer{stdout: stdout, stderr: stderr, color: options.Color}
}

func (renderer *rawStreamRenderer) Handle(event stream.Event) error {
	switch event.Kind {
	case stream.EventKindWarning:
		return writeWarning(renderer.stderr, event)
	case stream.EventKindTreeNode:
		if event.TreeNode == nil || event.TreeNode.Depth != 0 || renderer.stdout == nil {
			return nil
		}
		if renderer.printed > 0 {
			if _, err := fmt.Fprintln(renderer.stdout); err != nil {
				return err
			}
		}
		renderer.printed++
		renderer.totals.bytes += event.TreeNode.Stats.Bytes
		return WriteTreeRaw(renderer.stdout, event.TreeNode, renderer.color)
	case stream.EventKindStreamComplete:
		renderer.totals.add(event.Complete)
	}
	return nil
}

// Flush prints the summary line for every run seen.
func (renderer *rawStreamRenderer) Flush() error {
	if renderer.stdout == nil || renderer.totals.runs == 0 {
		return nil
	}
	_, err := fmt.Fprintf(renderer.stdout, "\n%s\n", FormatSummaryLine(renderer.totals.dirs, renderer.totals.files, renderer.totals.bytes, renderer.totals.complete))
	return err
}
