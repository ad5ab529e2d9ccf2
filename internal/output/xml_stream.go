package output

import (
	"encoding/xml"
	"io"

	"github.com/temirov/ltree/internal/services/stream"
)

const (
	xmlEventsOpen  = "<events>\n"
	xmlEventsClose = "</events>\n"
	xmlIndent      = "  "
)

type xmlStreamRenderer struct {
	stdout  io.Writer
	stderr  io.Writer
	encoder *xml.Encoder
	started bool
	written int
}

func NewXMLStreamRenderer(stdout, stderr io.Writer) StreamRenderer {
	return &xmlStreamRenderer{stdout: stdout, stderr: stderr}
}

func (renderer *xmlStreamRenderer) Handle(event stream.Event) error {
	if err := writeWarning(renderer.stderr, event); err != nil {
		return err
	}
	return renderer.writeEvent(event)
}

// Flush closes the <events> document. A renderer that saw no event still
// writes an empty document.
func (renderer *xmlStreamRenderer) Flush() error {
	if renderer.stdout == nil {
		return nil
	}
	if err := renderer.ensureEncoder(); err != nil {
		return err
	}
	if err := renderer.encoder.Flush(); err != nil {
		return err
	}
	closing := xmlEventsClose
	if renderer.written > 0 {
		closing = "\n" + closing
	}
	_, err := io.WriteString(renderer.stdout, closing)
	return err
}

func (renderer *xmlStreamRenderer) ensureEncoder() error {
	if renderer.started {
		return nil
	}
	if _, err := io.WriteString(renderer.stdout, xml.Header); err != nil {
		return err
	}
	if _, err := io.WriteString(renderer.stdout, xmlEventsOpen); err != nil {
		return err
	}
	renderer.encoder = xml.NewEncoder(renderer.stdout)
	renderer.encoder.Indent(xmlIndent, xmlIndent)
	renderer.started = true
	return nil
}

func (renderer *xmlStreamRenderer) writeEvent(event stream.Event) error {
	if renderer.stdout == nil {
		return nil
	}
	if err := renderer.ensureEncoder(); err != nil {
		return err
	}
	if err := renderer.encoder.Encode(event); err != nil {
		return err
	}
	renderer.written++
	return renderer.encoder.Flush()
}
