package enrich

import (
	"context"
	"errors"
	"io/fs"

	"github.com/temirov/ltree/internal/types"
)

var errMissingMetadata = errors.New("entry has no metadata")

// PermissionsEnricher renders the ls-style mode string of an entry.
type PermissionsEnricher struct{}

func (PermissionsEnricher) Field() string {
	return FieldPermissions
}

func (PermissionsEnricher) Enrich(_ context.Context, entry types.Entry) (types.Entry, error) {
	if entry.Info == nil {
		return entry, errMissingMetadata
	}
	entry.Permissions = FormatPermissions(entry.Info.Mode())
	return entry, nil
}

// FormatPermissions returns the ten-character form printed by ls -l.
func FormatPermissions(mode fs.FileMode) string {
	formatted := []byte("-rwxrwxrwx")
	switch {
	case mode.IsDir():
		formatted[0] = 'd'
	case mode&fs.ModeSymlink != 0:
		formatted[0] = 'l'
	case mode&fs.ModeNamedPipe != 0:
		formatted[0] = 'p'
	case mode&fs.ModeSocket != 0:
		formatted[0] = 's'
	case mode&fs.ModeCharDevice != 0:
		formatted[0] = 'c'
	case mode&fs.ModeDevice != 0:
		formatted[0] = 'b'
	}
	permissionBits := mode.Perm()
	for bitIndex := 0; bitIndex < 9; bitIndex++ {
		if permissionBits&(1<<uint(8-bitIndex)) == 0 {
			formatted[bitIndex+1] = '-'
		}
	}
	applySpecialBit(formatted, 3, mode&fs.ModeSetuid != 0, 's')
	applySpecialBit(formatted, 6, mode&fs.ModeSetgid != 0, 's')
	applySpecialBit(formatted, 9, mode&fs.ModeSticky != 0, 't')
	return string(formatted)
}

func applySpecialBit(formatted []byte, index int, set bool, marker byte) {
	if !set {
		return
	}
	if formatted[index] == 'x' {
		formatted[index] = marker
		return
	}
	formatted[index] = marker - ('a' - 'A')
}
