package utils_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/ltree/internal/utils"
)

func TestDeduplicatePatterns(t *testing.T) {
	testCases := []struct {
		testName string
		patterns []string
		expected []string
	}{
		{testName: "nil yields empty", patterns: nil, expected: []string{}},
		{testName: "keeps first occurrence", patterns: []string{"build/", "*.log", "build/"}, expected: []string{"build/", "*.log"}},
		{testName: "unique untouched", patterns: []string{".git/", "dist"}, expected: []string{".git/", "dist"}},
	}
	for _, testCase := range testCases {
		actual := utils.DeduplicatePatterns(testCase.patterns)
		assert.NotNil(t, actual, testCase.testName)
		assert.Equal(t, testCase.expected, actual, testCase.testName)
	}
}

func TestRelativePathOrSelf(t *testing.T) {
	root := t.TempDir()
	testCases := []struct {
		testName string
		fullPath string
		expected string
	}{
		{testName: "root is dot", fullPath: root, expected: "."},
		{testName: "child", fullPath: filepath.Join(root, "notes.txt"), expected: "notes.txt"},
		{testName: "nested uses slashes", fullPath: filepath.Join(root, "pkg", "deep", "leaf.go"), expected: "pkg/deep/leaf.go"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expected, utils.RelativePathOrSelf(testCase.fullPath, root), testCase.testName)
	}
}

// TestSubtreeKey verifies the first relative segment is used as the subtree key.
func TestSubtreeKey(t *testing.T) {
	testCases := []struct {
		testName     string
		relativePath string
		expected     string
	}{
		{testName: "root dot", relativePath: ".", expected: ""},
		{testName: "empty", relativePath: "", expected: ""},
		{testName: "top level", relativePath: "src", expected: "src"},
		{testName: "nested", relativePath: "src/internal/file.go", expected: "src"},
		{testName: "backslashes", relativePath: `src\internal`, expected: "src"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expected, utils.SubtreeKey(testCase.relativePath), testCase.testName)
	}
}

func TestJoinRelative(t *testing.T) {
	assert.Equal(t, "a.txt", utils.JoinRelative(".", "a.txt"))
	assert.Equal(t, "sub/a.txt", utils.JoinRelative("sub", "a.txt"))
}

func TestIsHiddenName(t *testing.T) {
	assert.True(t, utils.IsHiddenName(".env"))
	for _, name := range []string{"main.go", ".", ".."} {
		assert.False(t, utils.IsHiddenName(name), name)
	}
}

// TestFindRepositoryRoot verifies upward discovery of the repository root.
func TestFindRepositoryRoot(t *testing.T) {
	repositoryRoot := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(repositoryRoot, utils.GitDirectoryName), 0o755))
	nestedDirectory := filepath.Join(repositoryRoot, "a", "b")
	require.NoError(t, os.MkdirAll(nestedDirectory, 0o755))

	discoveredRoot, discoveryError := utils.FindRepositoryRoot(nestedDirectory)
	require.NoError(t, discoveryError)
	assert.Equal(t, repositoryRoot, discoveredRoot)
}

func TestFindRepositoryRootMissing(t *testing.T) {
	_, discoveryError := utils.FindRepositoryRoot(t.TempDir())
	if discoveryError == nil {
		t.Skip("temporary directory is inside a git repository")
	}
	assert.ErrorIs(t, discoveryError, utils.ErrRepositoryNotFound)
}
