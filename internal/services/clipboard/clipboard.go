// Package clipboard copies rendered listings to the system clipboard.
package clipboard

import (
	"errors"
	"regexp"

	"github.com/atotto/clipboard"
)

// ErrUnavailable reports that no clipboard utility exists on this system.
var ErrUnavailable = errors.New("system clipboard unavailable")

var colorSequencePattern = regexp.MustCompile("\x1b\\[[0-9;]*m")

// Copier copies a rendered listing to the clipboard.
type Copier interface {
	Copy(listing string) error
}

// Service implements Copier using github.com/atotto/clipboard.
type Service struct {
	unsupported bool
	write       func(string) error
}

// NewService constructs a Service backed by the system clipboard.
func NewService() *Service {
	return &Service{unsupported: clipboard.Unsupported, write: clipboard.WriteAll}
}

// Copy strips terminal color sequences from listing and writes the plain
// text. An empty listing is not written.
func (service *Service) Copy(listing string) error {
	if service.unsupported {
		return ErrUnavailable
	}
	plain := colorSequencePattern.ReplaceAllString(listing, "")
	if plain == "" {
		return nil
	}
	return service.write(plain)
}

var _ Copier = (*Service)(nil)
