package output

import (
	"fmt"
	"io"

	"github.com/temirov/ltree/internal/services/stream"
)

const warningLineFormat = "warning: %s: %s\n"

// writeWarning echoes a warning event to stderr. Other events are ignored.
func writeWarning(stderr io.Writer, event stream.Event) error {
	if event.Kind != stream.EventKindWarning || event.Message == nil || stderr == nil {
		return nil
	}
	_, err := fmt.Fprintf(stderr, warningLineFormat, event.Path, event.Message.Message)
	return err
}

// runTotals sums the StreamComplete events of every run a renderer has seen.
type runTotals struct {
	runs     int
	files    int
	dirs     int
	bytes    int64
	complete bool
}

func (totals *runTotals) add(complete *stream.StreamComplete) {
	if complete == nil {
		return
	}
	if totals.runs == 0 {
		totals.complete = true
	}
	totals.runs++
	totals.files += complete.TotalFiles
	totals.dirs += complete.TotalDirs
	totals.complete = totals.complete && complete.Complete
}
