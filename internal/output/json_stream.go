package output

import (
	"encoding/json"
	"io"

	"github.com/temirov/ltree/internal/services/stream"
)

// jsonStreamRenderer writes one JSON document per event (NDJSON).
type jsonStreamRenderer struct {
	stderr  io.Writer
	encoder *json.Encoder
}

func NewJSONStreamRenderer(stdout, stderr io.Writer) StreamRenderer {
	renderer := &jsonStreamRenderer{stderr: stderr}
	if stdout != nil {
		renderer.encoder = json.NewEncoder(stdout)
		renderer.encoder.SetEscapeHTML(false)
	}
	return renderer
}

func (renderer *jsonStreamRenderer) Handle(event stream.Event) error {
	if err := writeWarning(renderer.stderr, event); err != nil {
		return err
	}
	if renderer.encoder == nil {
		return nil
	}
	return renderer.encoder.Encode(event)
}

func (renderer *jsonStreamRenderer) Flush() error {
	return nil
}
