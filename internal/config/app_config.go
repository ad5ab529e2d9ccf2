package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/temirov/ltree/internal/utils"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds listing defaults read from configuration files.
type ApplicationConfiguration struct {
	List ListConfiguration `mapstructure:"list"`
}

// ListConfiguration defines defaults for the listing command.
type ListConfiguration struct {
	Format    string              `mapstructure:"format"`
	Layout    string              `mapstructure:"layout"`
	Color     string              `mapstructure:"color"`
	Depth     *int                `mapstructure:"depth"`
	Recursive *bool               `mapstructure:"recursive"`
	Clipboard *bool               `mapstructure:"clipboard"`
	Sort      SortConfiguration   `mapstructure:"sort"`
	Paths     PathConfiguration   `mapstructure:"paths"`
	Enrich    EnrichConfiguration `mapstructure:"enrich"`
	Engine    EngineConfiguration `mapstructure:"engine"`
}

// SortConfiguration controls the per-directory ordering.
type SortConfiguration struct {
	Key      string `mapstructure:"key"`
	Group    string `mapstructure:"group"`
	Reverse  *bool  `mapstructure:"reverse"`
	CaseFold *bool  `mapstructure:"case_fold"`
}

// PathConfiguration configures which entries traversal yields.
type PathConfiguration struct {
	Exclude         []string `mapstructure:"exclude"`
	Match           string   `mapstructure:"match"`
	UseGitignore    *bool    `mapstructure:"use_gitignore"`
	UseIgnoreFile   *bool    `mapstructure:"use_ignore"`
	IncludeGit      *bool    `mapstructure:"include_git"`
	Hidden          *bool    `mapstructure:"hidden"`
	FollowSymlinks  *bool    `mapstructure:"follow_symlinks"`
	DirectoriesOnly *bool    `mapstructure:"directories_only"`
}

// EnrichConfiguration toggles the optional metadata enrichers.
type EnrichConfiguration struct {
	GitStatus   *bool `mapstructure:"git_status"`
	Permissions *bool `mapstructure:"permissions"`
}

// EngineConfiguration tunes concurrency and failure limits.
type EngineConfiguration struct {
	Workers        *int   `mapstructure:"workers"`
	EnrichWorkers  *int   `mapstructure:"enrich_workers"`
	BufferLimit    *int   `mapstructure:"buffer_limit"`
	ErrorThreshold *int   `mapstructure:"error_threshold"`
	Timeout        string `mapstructure:"timeout"`
}

// LoadApplicationConfiguration layers the global configuration file and then
// the local one (or ExplicitFilePath) into a single viper registry. Keys set by
// a later file replace earlier ones; sibling keys survive.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	registry := viper.New()
	registry.SetConfigType("yaml")

	var layers []string
	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		layers = append(layers, filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.GlobalConfigFileName))
	}
	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	layers = append(layers, localPath)

	for _, layerPath := range layers {
		if err := mergeConfigurationLayer(registry, layerPath); err != nil {
			return ApplicationConfiguration{}, err
		}
	}

	var merged ApplicationConfiguration
	if decodeErr := registry.Unmarshal(&merged); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration: %w", decodeErr)
	}
	merged.List.Paths.Exclude = utils.DeduplicatePatterns(merged.List.Paths.Exclude)
	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	switch {
	case explicitPath == "":
		return filepath.Join(workingDirectory, utils.ConfigFileName), nil
	case filepath.IsAbs(explicitPath):
		return explicitPath, nil
	default:
		return filepath.Join(workingDirectory, explicitPath), nil
	}
}

// mergeConfigurationLayer merges one YAML file into registry. A missing file
// is not an error.
//
// #nosec G304
func mergeConfigurationLayer(registry *viper.Viper, path string) error {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return nil
		}
		return fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return fmt.Errorf("configuration path %s is a directory", path)
	}
	content, readErr := os.ReadFile(path)
	if readErr != nil {
		return fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	if mergeErr := registry.MergeConfig(bytes.NewReader(content)); mergeErr != nil {
		return fmt.Errorf("parse configuration %s: %w", path, mergeErr)
	}
	return nil
}
