package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/temirov/ltree/internal/utils"
)

// InitTarget identifies where configuration should be initialized.
type InitTarget string

const (
	// InitTargetLocal writes .ltree.yaml into the working directory.
	InitTargetLocal InitTarget = "local"
	// InitTargetGlobal writes ~/.ltree/config.yaml.
	InitTargetGlobal InitTarget = "global"
)

const configurationFilePermissions os.FileMode = 0o600

// listDefaults are the values written by ltree init, keyed as they appear
// below the list section.
var listDefaults = map[string]any{
	"format":                 "raw",
	"layout":                 "tree",
	"color":                  "auto",
	"recursive":              false,
	"clipboard":              false,
	"sort.key":               "name",
	"sort.group":             "none",
	"sort.reverse":           false,
	"sort.case_fold":         false,
	"paths.exclude":          []string{},
	"paths.match":            "both",
	"paths.use_gitignore":    false,
	"paths.use_ignore":       true,
	"paths.include_git":      false,
	"paths.hidden":           false,
	"paths.follow_symlinks":  false,
	"paths.directories_only": false,
	"enrich.git_status":      false,
	"enrich.permissions":     false,
	"engine.buffer_limit":    4096,
	"engine.error_threshold": 0,
	"engine.timeout":         "",
}

// InitOptions controls how configuration initialization behaves.
type InitOptions struct {
	Target           InitTarget
	Force            bool
	WorkingDirectory string
}

// InitializeConfiguration writes the default configuration to the requested
// target and returns its path. An existing file is only replaced with Force.
func InitializeConfiguration(options InitOptions) (string, error) {
	destinationPath, resolveErr := initDestination(options)
	if resolveErr != nil {
		return "", resolveErr
	}

	registry := viper.New()
	registry.SetConfigType("yaml")
	registry.SetConfigPermissions(configurationFilePermissions)
	for key, value := range listDefaults {
		registry.Set("list."+key, value)
	}

	if options.Force {
		if err := registry.WriteConfigAs(destinationPath); err != nil {
			return "", fmt.Errorf("write configuration to %s: %w", destinationPath, err)
		}
		return destinationPath, nil
	}
	if err := registry.SafeWriteConfigAs(destinationPath); err != nil {
		var exists viper.ConfigFileAlreadyExistsError
		if errors.As(err, &exists) {
			return "", fmt.Errorf("configuration file already exists at %s", destinationPath)
		}
		return "", fmt.Errorf("write configuration to %s: %w", destinationPath, err)
	}
	return destinationPath, nil
}

func initDestination(options InitOptions) (string, error) {
	switch options.Target {
	case "", InitTargetLocal:
		workingDirectory := options.WorkingDirectory
		if workingDirectory == "" {
			current, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("determine working directory for configuration: %w", err)
			}
			workingDirectory = current
		}
		return filepath.Join(workingDirectory, utils.ConfigFileName), nil
	case InitTargetGlobal:
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory for configuration: %w", err)
		}
		configurationDirectory := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName)
		if err := os.MkdirAll(configurationDirectory, 0o755); err != nil {
			return "", fmt.Errorf("create configuration directory %s: %w", configurationDirectory, err)
		}
		return filepath.Join(configurationDirectory, utils.GlobalConfigFileName), nil
	default:
		return "", fmt.Errorf("unsupported init target %q", options.Target)
	}
}
