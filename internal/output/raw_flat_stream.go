package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/temirov/ltree/internal/services/stream"
	"github.com/temirov/ltree/internal/types"
	"github.com/temirov/ltree/internal/utils"
)

const currentDirectory = "."

// rawFlatStreamRenderer prints every flat listing as it arrives, laid out in
// columns when a terminal width is known.
type rawFlatStreamRenderer struct {
	stdout  io.Writer
	stderr  io.Writer
	colors  palette
	width   int
	headers bool
	printed int
	totals  runTotals
}

func NewRawFlatStreamRenderer(stdout, stderr io.Writer, options RendererOptions) StreamRenderer {
	return &rawFlatStreamRenderer{
		stdout:  stdout,
		stderr:  stderr,
		colors:  newPalette(options.Color),
		width:   options.Width,
		headers: options.Headers,
	}
}

func (renderer *rawFlatStreamRenderer) Handle(event stream.Event) error {
	switch event.Kind {
	case stream.EventKindWarning:
		return writeWarning(renderer.stderr, event)
	case stream.EventKindFlatBatch:
		if event.Flat == nil || renderer.stdout == nil {
			return nil
		}
		return renderer.writeListing(event.Flat)
	case stream.EventKindStreamComplete:
		renderer.totals.add(event.Complete)
	}
	return nil
}

func (renderer *rawFlatStreamRenderer) Flush() error {
	if renderer.stdout == nil || renderer.totals.runs == 0 {
		return nil
	}
	_, err := fmt.Fprintf(renderer.stdout, "\n%s\n", FormatSummaryLine(renderer.totals.dirs, renderer.totals.files, 0, renderer.totals.complete))
	return err
}

func (renderer *rawFlatStreamRenderer) writeListing(listing *stream.FlatBatch) error {
	if renderer.headers {
		if renderer.printed > 0 {
			if _, err := fmt.Fprintln(renderer.stdout); err != nil {
				return err
			}
		}
		header := fmt.Sprintf(flatHeaderFormat, listing.Directory)
		if listing.Error != "" {
			header += renderer.colors.marker.Sprintf(errorMarkerFormat, listing.Error)
		}
		if !listing.Complete {
			header += renderer.colors.marker.Sprint(incompleteMarker)
		}
		if _, err := fmt.Fprintln(renderer.stdout, header); err != nil {
			return err
		}
	}
	renderer.printed++

	labels := make([]string, len(listing.Entries))
	widths := make([]int, len(listing.Entries))
	widest := 0
	for index, entry := range listing.Entries {
		name := displayName(entry, listing.Directory)
		labels[index] = renderer.colors.entryLabel(entry, name)
		widths[index] = plainWidth(entry, name)
		widest = max(widest, widths[index])
	}
	return writeGrid(renderer.stdout, labels, widths, widest+flatColumnPadding, renderer.width)
}

// writeGrid lays labels out row by row in equally wide columns. A width too
// narrow for two columns prints one label per line.
func writeGrid(writer io.Writer, labels []string, widths []int, columnWidth int, width int) error {
	columns := 1
	if width > 0 && columnWidth > 0 {
		columns = max(1, width/columnWidth)
	}
	for index, label := range labels {
		lastInRow := (index+1)%columns == 0 || index == len(labels)-1
		if lastInRow {
			if _, err := fmt.Fprintln(writer, label); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprint(writer, label+strings.Repeat(" ", columnWidth-widths[index])); err != nil {
			return err
		}
	}
	return nil
}

func displayName(entry types.SerializedEntry, directory string) string {
	relativePath := utils.RelativePathOrSelf(entry.Path, directory)
	if relativePath == currentDirectory || strings.HasPrefix(relativePath, "..") {
		return entry.Name
	}
	return relativePath
}
