package utils

import "errors"

// EmptyString represents a reusable empty string constant.
const EmptyString = ""

const (
	// ConfigFileName is the name of the local configuration file.
	ConfigFileName = ".ltree.yaml"
	// GlobalConfigDirectoryName is the directory below the home directory holding the global configuration.
	GlobalConfigDirectoryName = ".ltree"
	// GlobalConfigFileName is the name of the global configuration file.
	GlobalConfigFileName = "config.yaml"

	// LoggerInitializationFailedMessageFormat reports a logger construction failure.
	LoggerInitializationFailedMessageFormat = "failed to initialize logger: %w"
	// ApplicationExecutionFailedMessage prefixes fatal run errors.
	ApplicationExecutionFailedMessage = "ltree failed"
)

// ErrRepositoryNotFound reports that no .git entry exists above a path.
var ErrRepositoryNotFound = errors.New(".git directory not found")
