package output

import (
	"fmt"
	"io"

	"github.com/temirov/ltree/internal/services/stream"
	"github.com/temirov/ltree/internal/types"
)

type StreamRenderer interface {
	Handle(event stream.Event) error
	Flush() error
}

// RendererOptions selects and configures a renderer.
type RendererOptions struct {
	Format string
	Layout string
	// Color enables ANSI colors in raw output.
	Color bool
	// Width is the terminal width used for flat grids; zero prints one entry per line.
	Width int
	// Headers prints a directory header before every flat listing.
	Headers bool
}

// NewStreamRenderer builds the renderer for options.Format.
func NewStreamRenderer(stdout, stderr io.Writer, options RendererOptions) (StreamRenderer, error) {
	switch options.Format {
	case types.FormatRaw, "":
		if options.Layout == types.LayoutFlat {
			return NewRawFlatStreamRenderer(stdout, stderr, options), nil
		}
		return NewRawStreamRenderer(stdout, stderr, options), nil
	case types.FormatJSON:
		return NewJSONStreamRenderer(stdout, stderr), nil
	case types.FormatXML:
		return NewXMLStreamRenderer(stdout, stderr), nil
	case types.FormatYAML:
		return NewYAMLStreamRenderer(stdout, stderr), nil
	default:
		return nil, fmt.Errorf("unsupported format '%s'", options.Format)
	}
}
