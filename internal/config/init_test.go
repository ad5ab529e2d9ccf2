package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/ltree/internal/utils"
)

func TestInitializeConfigurationCreatesLocalFile(t *testing.T) {
	workingDirectory := t.TempDir()
	path, err := InitializeConfiguration(InitOptions{WorkingDirectory: workingDirectory, Target: InitTargetLocal})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(workingDirectory, utils.ConfigFileName), path)

	content, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Contains(t, string(content), "list:")
}

func TestInitializedConfigurationLoads(t *testing.T) {
	workingDirectory := t.TempDir()
	t.Setenv("HOME", t.TempDir())
	_, err := InitializeConfiguration(InitOptions{WorkingDirectory: workingDirectory})
	require.NoError(t, err)

	loaded, err := LoadApplicationConfiguration(LoadOptions{WorkingDirectory: workingDirectory})
	require.NoError(t, err)
	assert.Equal(t, "raw", loaded.List.Format)
	assert.Equal(t, "tree", loaded.List.Layout)
	assert.Equal(t, "name", loaded.List.Sort.Key)
	require.NotNil(t, loaded.List.Engine.BufferLimit)
	assert.Equal(t, 4096, *loaded.List.Engine.BufferLimit)
}

func TestInitializeConfigurationHonorsGlobalTarget(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)
	t.Setenv("USERPROFILE", homeDir)
	path, err := InitializeConfiguration(InitOptions{Target: InitTargetGlobal, Force: true})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(homeDir, utils.GlobalConfigDirectoryName, utils.GlobalConfigFileName), path)
	assert.FileExists(t, path)
}

func TestInitializeConfigurationPreventsOverwriteWithoutForce(t *testing.T) {
	workingDirectory := t.TempDir()
	path := filepath.Join(workingDirectory, utils.ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0o600))

	_, err := InitializeConfiguration(InitOptions{WorkingDirectory: workingDirectory, Target: InitTargetLocal, Force: false})
	assert.ErrorContains(t, err, "already exists")

	_, err = InitializeConfiguration(InitOptions{WorkingDirectory: workingDirectory, Target: InitTargetLocal, Force: true})
	assert.NoError(t, err)
}

func TestInitializeConfigurationRejectsUnknownTarget(t *testing.T) {
	_, err := InitializeConfiguration(InitOptions{Target: "remote", WorkingDirectory: t.TempDir()})
	assert.Error(t, err)
}
