package main_test

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// #nosec G204
func buildBinary(t *testing.T) string {
	t.Helper()
	binaryName := "ltree_integration_test_binary"
	if runtime.GOOS == "windows" {
		binaryName += ".exe"
	}
	binaryPath := filepath.Join(t.TempDir(), binaryName)

	currentDirectory, directoryError := os.Getwd()
	require.NoError(t, directoryError)
	buildCommand := exec.Command("go", "build", "-o", binaryPath, ".")
	buildCommand.Dir = currentDirectory
	outputData, buildErr := buildCommand.CombinedOutput()
	require.NoError(t, buildErr, "build output:\n%s", outputData)
	return binaryPath
}

// #nosec G204
func runBinary(t *testing.T, binaryPath string, workingDirectory string, arguments ...string) (string, string, int) {
	t.Helper()
	command := exec.Command(binaryPath, arguments...)
	command.Dir = workingDirectory
	command.Env = append(os.Environ(), "HOME="+t.TempDir())
	var standardOutputBuffer, standardErrorBuffer bytes.Buffer
	command.Stdout = &standardOutputBuffer
	command.Stderr = &standardErrorBuffer

	runError := command.Run()
	exitCode := 0
	if runError != nil {
		var exitError *exec.ExitError
		require.True(t, errors.As(runError, &exitError), "running %s: %v", filepath.Base(binaryPath), runError)
		exitCode = exitError.ExitCode()
	}
	return standardOutputBuffer.String(), standardErrorBuffer.String(), exitCode
}

func setupTestDirectory(t *testing.T, layout map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for relativePath, content := range layout {
		fullPath := filepath.Join(root, relativePath)
		require.NoError(t, os.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, os.WriteFile(fullPath, []byte(content), 0o644))
	}
	return root
}

func TestLtreeExitCodes(t *testing.T) {
	binaryPath := buildBinary(t)
	root := setupTestDirectory(t, map[string]string{
		"main.go":          "package main",
		"pkg/util.go":      "package pkg",
		"pkg/deep/leaf.go": "package deep",
		"build/out.bin":    "binary",
		".ignore":          "build/\n",
	})

	testCases := []struct {
		name             string
		arguments        []string
		expectedExitCode int
		expectedOutput   []string
		forbiddenOutput  []string
		expectedError    string
	}{
		{
			name:             "complete_listing",
			arguments:        []string{"--color", "never", "."},
			expectedExitCode: 0,
			expectedOutput:   []string{"├── main.go", "└── pkg", "leaf.go", "2 directories, 3 files"},
			forbiddenOutput:  []string{"build", "(incomplete)"},
		},
		{
			name:             "ignore_file_disabled",
			arguments:        []string{"--color", "never", "--no-ignore-file", "-L", "1", "."},
			expectedExitCode: 0,
			expectedOutput:   []string{"├── build"},
		},
		{
			name:             "timeout_degrades",
			arguments:        []string{"--color", "never", "--timeout", "1ns", "."},
			expectedExitCode: 1,
			expectedError:    "listing degraded",
		},
		{
			name:             "missing_path_is_fatal",
			arguments:        []string{"absent"},
			expectedExitCode: 2,
			expectedError:    "does not exist",
		},
		{
			name:             "bad_pattern_is_fatal",
			arguments:        []string{"-I", "[broken", "."},
			expectedExitCode: 2,
			expectedError:    "malformed ignore pattern",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			standardOutput, standardError, exitCode := runBinary(t, binaryPath, root, testCase.arguments...)
			require.Equal(t, testCase.expectedExitCode, exitCode, "stdout:\n%s\nstderr:\n%s", standardOutput, standardError)
			for _, expected := range testCase.expectedOutput {
				assert.Contains(t, standardOutput, expected)
			}
			for _, forbidden := range testCase.forbiddenOutput {
				assert.NotContains(t, standardOutput, forbidden)
			}
			if testCase.expectedError != "" {
				assert.Contains(t, standardError, testCase.expectedError)
			}
		})
	}
}
