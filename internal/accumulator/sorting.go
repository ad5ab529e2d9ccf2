package accumulator

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maruel/natural"

	"github.com/temirov/ltree/internal/types"
)

type SortKey string

const (
	SortByName      SortKey = "name"
	SortBySize      SortKey = "size"
	SortByTime      SortKey = "time"
	SortByExtension SortKey = "extension"
	SortByVersion   SortKey = "version"
	SortByGitStatus SortKey = "git"
	SortByNone      SortKey = "none"
)

type GroupPolicy string

const (
	GroupDirectoriesFirst GroupPolicy = "first"
	GroupDirectoriesLast  GroupPolicy = "last"
	GroupNone             GroupPolicy = "none"
)

// SortOptions is the per-directory ordering policy. Reverse flips the key's
// default direction; the group partition keeps its own direction.
type SortOptions struct {
	Key      SortKey
	Group    GroupPolicy
	Reverse  bool
	CaseFold bool
}

// ParseSortKey validates a sort key name.
func ParseSortKey(value string) (SortKey, error) {
	switch key := SortKey(strings.ToLower(strings.TrimSpace(value))); key {
	case "":
		return SortByName, nil
	case SortByName, SortBySize, SortByTime, SortByExtension, SortByVersion, SortByGitStatus, SortByNone:
		return key, nil
	case "git-status", "git_status":
		return SortByGitStatus, nil
	default:
		return "", fmt.Errorf("invalid sort key '%s'", value)
	}
}

// ParseGroupPolicy validates a directory grouping policy.
func ParseGroupPolicy(value string) (GroupPolicy, error) {
	switch policy := GroupPolicy(strings.ToLower(strings.TrimSpace(value))); policy {
	case "":
		return GroupNone, nil
	case GroupDirectoriesFirst, GroupDirectoriesLast, GroupNone:
		return policy, nil
	default:
		return "", fmt.Errorf("invalid group policy '%s'", value)
	}
}

// SortEntries orders items in place with a stable partition by group and a
// stable sort by key.
func SortEntries[T any](items []T, entryOf func(T) *types.Entry, options SortOptions) {
	if len(items) < 2 {
		return
	}
	grouped := options.Group == GroupDirectoriesFirst || options.Group == GroupDirectoriesLast
	keyed := options.Key != SortByNone && options.Key != ""
	if !grouped && !keyed {
		return
	}
	sort.SliceStable(items, func(leftIndex, rightIndex int) bool {
		left := entryOf(items[leftIndex])
		right := entryOf(items[rightIndex])
		if grouped && left.IsDir != right.IsDir {
			if options.Group == GroupDirectoriesFirst {
				return left.IsDir
			}
			return right.IsDir
		}
		if !keyed {
			return false
		}
		comparison := compareEntries(left, right, options)
		if options.Reverse {
			comparison = -comparison
		}
		return comparison < 0
	})
}

func compareEntries(left, right *types.Entry, options SortOptions) int {
	switch options.Key {
	case SortBySize:
		return compareInt64(right.Size, left.Size)
	case SortByTime:
		if comparison := right.Modified.Compare(left.Modified); comparison != 0 {
			return comparison
		}
		return compareNames(left.Name, right.Name, options.CaseFold)
	case SortByExtension:
		if comparison := strings.Compare(extensionOf(left.Name), extensionOf(right.Name)); comparison != 0 {
			return comparison
		}
		return compareNames(left.Name, right.Name, options.CaseFold)
	case SortByVersion:
		return NaturalCompare(left.Name, right.Name)
	case SortByGitStatus:
		return compareInt64(int64(right.GitStatus.Priority()), int64(left.GitStatus.Priority()))
	default:
		return compareNames(left.Name, right.Name, options.CaseFold)
	}
}

func compareNames(left, right string, caseFold bool) int {
	if caseFold {
		if comparison := strings.Compare(strings.ToLower(left), strings.ToLower(right)); comparison != 0 {
			return comparison
		}
	}
	return strings.Compare(left, right)
}

func compareInt64(left, right int64) int {
	switch {
	case left < right:
		return -1
	case left > right:
		return 1
	default:
		return 0
	}
}

func extensionOf(name string) string {
	extension := filepath.Ext(name)
	if extension == name {
		return ""
	}
	return strings.ToLower(extension)
}

// NaturalCompare orders strings treating embedded digit runs as numbers,
// so "file2" sorts before "file10". Names equal under natural order fall
// back to byte order.
func NaturalCompare(left, right string) int {
	switch {
	case natural.Less(left, right):
		return -1
	case natural.Less(right, left):
		return 1
	default:
		return strings.Compare(left, right)
	}
}
