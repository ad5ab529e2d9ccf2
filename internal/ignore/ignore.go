// Package ignore compiles shell-style glob patterns into a side-effect free
// predicate used to prune entries before traversal descends into them.
package ignore

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// MatchTarget selects which form of an entry a name-level pattern is tested against.
type MatchTarget string

const (
	MatchName MatchTarget = "name"
	MatchPath MatchTarget = "path"
	MatchBoth MatchTarget = "both"
)

const (
	directorySuffix = "/"
	extensionPrefix = "*."
	globMetaChars   = "*?[]{}"
)

// ErrBadPattern is wrapped by every PatternError.
var ErrBadPattern = errors.New("malformed ignore pattern")

// PatternError reports a pattern that cannot be compiled.
type PatternError struct {
	Pattern string
}

func (patternError *PatternError) Error() string {
	return fmt.Sprintf("%s %q", ErrBadPattern.Error(), patternError.Pattern)
}

func (patternError *PatternError) Unwrap() error {
	return ErrBadPattern
}

// ParseMatchTarget validates a configured match target.
func ParseMatchTarget(value string) (MatchTarget, error) {
	switch MatchTarget(strings.ToLower(strings.TrimSpace(value))) {
	case "", MatchBoth:
		return MatchBoth, nil
	case MatchName:
		return MatchName, nil
	case MatchPath:
		return MatchPath, nil
	default:
		return "", fmt.Errorf("invalid ignore match target '%s'", value)
	}
}

type rule struct {
	pattern       string
	directoryOnly bool
	anchored      bool
}

type ruleSet struct {
	extensions map[string]struct{}
	exactNames map[string]struct{}
	globs      []rule
}

// Matcher is a compiled, immutable pattern set. It is safe for concurrent use.
type Matcher struct {
	target   MatchTarget
	any      ruleSet
	dirOnly  ruleSet
	anchored []rule
	patterns []string
}

// Compile builds a Matcher from the provided patterns.
// Blank patterns and comments are skipped.
func Compile(patterns []string, target MatchTarget) (*Matcher, error) {
	if target == "" {
		target = MatchBoth
	}
	matcher := &Matcher{
		target:  target,
		any:     newRuleSet(),
		dirOnly: newRuleSet(),
	}
	for _, rawPattern := range patterns {
		trimmed := strings.TrimSpace(rawPattern)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		normalized := strings.ReplaceAll(trimmed, "\\", "/")
		directoryOnly := strings.HasSuffix(normalized, directorySuffix)
		normalized = strings.TrimRight(normalized, directorySuffix)
		normalized = strings.TrimPrefix(normalized, "./")
		if normalized == "" {
			return nil, &PatternError{Pattern: rawPattern}
		}
		anchored := strings.Contains(normalized, "/")
		normalized = strings.TrimPrefix(normalized, "/")
		if !doublestar.ValidatePattern(normalized) {
			return nil, &PatternError{Pattern: rawPattern}
		}
		compiled := rule{pattern: normalized, directoryOnly: directoryOnly, anchored: anchored}
		matcher.patterns = append(matcher.patterns, trimmed)
		if anchored {
			matcher.anchored = append(matcher.anchored, compiled)
			continue
		}
		if directoryOnly {
			matcher.dirOnly.add(compiled)
		} else {
			matcher.any.add(compiled)
		}
	}
	return matcher, nil
}

// Patterns returns the normalized source patterns in compile order.
func (matcher *Matcher) Patterns() []string {
	if matcher == nil {
		return nil
	}
	return append([]string(nil), matcher.patterns...)
}

// Match reports whether the entry at relativePath should be excluded.
// relativePath uses forward slashes and is relative to the traversal root.
func (matcher *Matcher) Match(relativePath string, isDir bool) bool {
	if matcher == nil {
		return false
	}
	relativePath = strings.TrimPrefix(strings.ReplaceAll(relativePath, "\\", "/"), "./")
	if relativePath == "" || relativePath == "." {
		return false
	}
	name := path.Base(relativePath)

	candidates := make([]string, 0, 2)
	if matcher.target != MatchPath {
		candidates = append(candidates, name)
	}
	if matcher.target != MatchName && relativePath != name {
		candidates = append(candidates, relativePath)
	}
	if len(candidates) == 0 {
		candidates = append(candidates, relativePath)
	}

	for _, candidate := range candidates {
		if matcher.any.matches(candidate) {
			return true
		}
		if isDir && matcher.dirOnly.matches(candidate) {
			return true
		}
	}
	for _, anchoredRule := range matcher.anchored {
		if anchoredRule.directoryOnly && !isDir {
			continue
		}
		if globMatch(anchoredRule.pattern, relativePath) {
			return true
		}
	}
	return false
}

func newRuleSet() ruleSet {
	return ruleSet{
		extensions: map[string]struct{}{},
		exactNames: map[string]struct{}{},
	}
}

func (set *ruleSet) add(compiled rule) {
	pattern := compiled.pattern
	if strings.HasPrefix(pattern, extensionPrefix) && !strings.ContainsAny(pattern[len(extensionPrefix):], globMetaChars+".") {
		set.extensions[strings.ToLower(pattern[len(extensionPrefix):])] = struct{}{}
		return
	}
	if !strings.ContainsAny(pattern, globMetaChars) {
		set.exactNames[pattern] = struct{}{}
		return
	}
	set.globs = append(set.globs, compiled)
}

func (set *ruleSet) matches(candidate string) bool {
	if len(set.extensions) > 0 {
		if extension := path.Ext(candidate); len(extension) > 1 {
			if _, found := set.extensions[strings.ToLower(extension[1:])]; found {
				return true
			}
		}
	}
	if _, found := set.exactNames[candidate]; found {
		return true
	}
	for _, globRule := range set.globs {
		if globMatch(globRule.pattern, candidate) {
			return true
		}
	}
	return false
}

func globMatch(pattern, candidate string) bool {
	matched, matchError := doublestar.Match(pattern, candidate)
	return matchError == nil && matched
}
