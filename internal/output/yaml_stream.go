package output

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/temirov/ltree/internal/services/stream"
)

const yamlIndent = 2

// yamlStreamRenderer writes one YAML document per event.
type yamlStreamRenderer struct {
	stderr  io.Writer
	encoder *yaml.Encoder
}

func NewYAMLStreamRenderer(stdout, stderr io.Writer) StreamRenderer {
	renderer := &yamlStreamRenderer{stderr: stderr}
	if stdout != nil {
		renderer.encoder = yaml.NewEncoder(stdout)
		renderer.encoder.SetIndent(yamlIndent)
	}
	return renderer
}

func (renderer *yamlStreamRenderer) Handle(event stream.Event) error {
	if err := writeWarning(renderer.stderr, event); err != nil {
		return err
	}
	if renderer.encoder == nil {
		return nil
	}
	return renderer.encoder.Encode(event)
}

func (renderer *yamlStreamRenderer) Flush() error {
	if renderer.encoder == nil {
		return nil
	}
	return renderer.encoder.Close()
}
