package ignore_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/ltree/internal/ignore"
)

func TestMatcherMatch(t *testing.T) {
	testCases := []struct {
		name         string
		patterns     []string
		target       ignore.MatchTarget
		relativePath string
		isDir        bool
		expected     bool
	}{
		{name: "exact name", patterns: []string{"sub"}, relativePath: "sub", isDir: true, expected: true},
		{name: "exact name nested", patterns: []string{"node_modules"}, relativePath: "web/node_modules", isDir: true, expected: true},
		{name: "exact name is not a prefix", patterns: []string{"sub"}, relativePath: "subway", expected: false},
		{name: "extension case insensitive", patterns: []string{"*.JPG"}, relativePath: "img/photo.jpg", expected: true},
		{name: "extension does not match other suffix", patterns: []string{"*.jpg"}, relativePath: "photo.jpeg", expected: false},
		{name: "complex glob", patterns: []string{"*.tar.gz"}, relativePath: "dist/pkg.tar.gz", expected: true},
		{name: "question mark", patterns: []string{"file?.txt"}, relativePath: "file1.txt", expected: true},
		{name: "directory only skips files", patterns: []string{"build/"}, relativePath: "build", isDir: false, expected: false},
		{name: "directory only matches directories", patterns: []string{"build/"}, relativePath: "build", isDir: true, expected: true},
		{name: "anchored path", patterns: []string{"docs/api"}, relativePath: "docs/api", isDir: true, expected: true},
		{name: "anchored path elsewhere", patterns: []string{"docs/api"}, relativePath: "other/docs/api", isDir: true, expected: false},
		{name: "leading slash anchors to root", patterns: []string{"/vendor"}, relativePath: "pkg/vendor", isDir: true, expected: false},
		{name: "leading slash root match", patterns: []string{"/vendor"}, relativePath: "vendor", isDir: true, expected: true},
		{name: "double star", patterns: []string{"**/testdata/*.golden"}, relativePath: "a/b/testdata/x.golden", expected: true},
		{name: "path target ignores bare names", patterns: []string{"a*"}, target: ignore.MatchPath, relativePath: "sub/a.txt", expected: false},
		{name: "single star does not cross separators", patterns: []string{"sub*"}, target: ignore.MatchPath, relativePath: "sub/a.txt", expected: false},
		{name: "name target", patterns: []string{"a*"}, target: ignore.MatchName, relativePath: "sub/a.txt", expected: true},
		{name: "or across patterns", patterns: []string{"*.log", "tmp"}, relativePath: "tmp", isDir: true, expected: true},
		{name: "root never matches", patterns: []string{"*"}, relativePath: ".", isDir: true, expected: false},
		{name: "comments skipped", patterns: []string{"# sub"}, relativePath: "sub", isDir: true, expected: false},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			matcher, compileError := ignore.Compile(testCase.patterns, testCase.target)
			require.NoError(t, compileError)
			assert.Equal(t, testCase.expected, matcher.Match(testCase.relativePath, testCase.isDir))
		})
	}
}

func TestCompileRejectsMalformedPattern(t *testing.T) {
	_, compileError := ignore.Compile([]string{"ok", "[unterminated"}, ignore.MatchBoth)
	require.Error(t, compileError)
	assert.ErrorIs(t, compileError, ignore.ErrBadPattern)

	var patternError *ignore.PatternError
	require.ErrorAs(t, compileError, &patternError)
	assert.Equal(t, "[unterminated", patternError.Pattern)
}

func TestNilMatcherMatchesNothing(t *testing.T) {
	var matcher *ignore.Matcher
	assert.False(t, matcher.Match("anything", true))
}

func TestParseMatchTarget(t *testing.T) {
	target, err := ignore.ParseMatchTarget("")
	require.NoError(t, err)
	assert.Equal(t, ignore.MatchBoth, target)

	target, err = ignore.ParseMatchTarget("NAME")
	require.NoError(t, err)
	assert.Equal(t, ignore.MatchName, target)

	_, err = ignore.ParseMatchTarget("bogus")
	assert.Error(t, err)
}

func TestMatcherConcurrentUse(t *testing.T) {
	matcher, compileError := ignore.Compile([]string{"*.log", "cache/", "**/gen/*.go"}, ignore.MatchBoth)
	require.NoError(t, compileError)

	var waitGroup sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for iteration := 0; iteration < 200; iteration++ {
				if !assert.True(t, matcher.Match("a/gen/x.go", false)) || !assert.False(t, matcher.Match("a/x.go", false)) {
					return
				}
			}
		}()
	}
	waitGroup.Wait()
}
