// Package cli provides the command line interface.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/ltree/internal/accumulator"
	"github.com/temirov/ltree/internal/commands"
	"github.com/temirov/ltree/internal/config"
	"github.com/temirov/ltree/internal/enrich"
	"github.com/temirov/ltree/internal/ignore"
	"github.com/temirov/ltree/internal/output"
	"github.com/temirov/ltree/internal/services/clipboard"
	"github.com/temirov/ltree/internal/types"
	"github.com/temirov/ltree/internal/utils"
)

const (
	depthFlagName             = "depth"
	depthFlagShorthand        = "L"
	treeFlagName              = "tree"
	flatFlagName              = "flat"
	recursiveFlagName         = "recursive"
	recursiveFlagShorthand    = "R"
	sortFlagName              = "sort"
	sortFlagShorthand         = "s"
	sortSizeFlagName          = "sort-size"
	sortSizeFlagShorthand     = "S"
	sortTimeFlagName          = "sort-time"
	sortTimeFlagShorthand     = "t"
	sortExtensionFlagName     = "sort-extension"
	sortExtensionShorthand    = "X"
	sortVersionFlagName       = "sort-version"
	sortVersionFlagShorthand  = "v"
	unsortedFlagName          = "unsorted"
	unsortedFlagShorthand     = "U"
	reverseFlagName           = "reverse"
	reverseFlagShorthand      = "r"
	groupDirectoriesFlagName  = "group-dirs"
	caseFoldFlagName          = "case-fold"
	ignoreGlobFlagName        = "ignore-glob"
	ignoreGlobFlagShorthand   = "I"
	ignoreMatchFlagName       = "ignore-match"
	noIgnoreFileFlagName      = "no-ignore-file"
	gitignoreFlagName         = "gitignore"
	includeGitFlagName        = "git"
	allFlagName               = "all"
	allFlagShorthand          = "a"
	almostAllFlagName         = "almost-all"
	almostAllFlagShorthand    = "A"
	directoryOnlyFlagName     = "directory-only"
	directoryOnlyShorthand    = "d"
	followSymlinksFlagName    = "follow-symlinks"
	gitStatusFlagName         = "git-status"
	permissionsFlagName       = "permissions"
	formatFlagName            = "format"
	teeJSONFlagName           = "tee-json"
	colorFlagName             = "color"
	copyFlagName              = "copy"
	workersFlagName           = "workers"
	enrichWorkersFlagName     = "enrich-workers"
	bufferLimitFlagName       = "buffer-limit"
	errorThresholdFlagName    = "error-threshold"
	timeoutFlagName           = "timeout"
	configFlagName            = "config"
	logLevelFlagName          = "log-level"
	versionFlagName           = "version"
	initGlobalFlagName        = "global"
	initForceFlagName         = "force"
	defaultPath               = "."
	defaultDepth              = -1
	defaultEnrichWorkers      = 16
	versionTemplate           = "ltree version: %s\n"
	rootUse                   = "ltree [paths...]"
	rootShortDescription      = "list directory trees concurrently"
	initUse                   = "init"
	initShortDescription      = "write a default configuration file"
	primaryConsumerName       = "primary"
	teeConsumerName           = "tee"
	gitRepositoryCacheSize    = 64
	signalInterruptedLogEntry = "listing interrupted"

	rootLongDescription = `ltree lists one or more directory trees.
Directories are read concurrently and printed as soon as their subtree is known.
Use --flat for ls-style listings, --format to select raw, json, xml, or yaml output,
and --tee-json to write a second NDJSON event stream to a file.
Defaults are read from .ltree.yaml and ~/.ltree/config.yaml; run "ltree init" to create one.`
	rootUsageExample = `  # Render the current directory two levels deep
  ltree -L 2

  # List every directory recursively, largest entries first
  ltree --flat -R -S ./cmd

  # Stream JSON events while keeping a copy on disk
  ltree --format json --tee-json events.ndjson .

  # Skip build output and show git status markers
  ltree -I 'build/' --git-status .`
	initLongDescription = `Write the default configuration template.
The local target is .ltree.yaml in the working directory; --global writes ~/.ltree/config.yaml.`

	depthFlagDescription          = "maximum depth to descend (negative for unlimited, 0 for the root only)"
	treeFlagDescription           = "render a tree (default layout)"
	flatFlagDescription           = "render flat listings instead of a tree"
	recursiveFlagDescription      = "print one flat listing per directory"
	sortFlagDescription           = "sort key: name, size, time, extension, version, git, or none"
	sortSizeFlagDescription       = "sort by size, largest first"
	sortTimeFlagDescription       = "sort by modification time, newest first"
	sortExtensionFlagDescription  = "sort by extension"
	sortVersionFlagDescription    = "natural sort of version numbers within names"
	unsortedFlagDescription       = "keep directory order"
	reverseFlagDescription        = "reverse the sort order"
	groupDirectoriesDescription   = "group directories: first, last, or none"
	caseFoldFlagDescription       = "ignore case when sorting by name"
	ignoreGlobFlagDescription     = "ignore entries matching the pattern (repeatable)"
	ignoreMatchFlagDescription    = "what plain patterns match: name, path, or both"
	noIgnoreFileFlagDescription   = "do not read .ignore"
	gitignoreFlagDescription      = "read .gitignore"
	includeGitFlagDescription     = "include the .git directory"
	allFlagDescription            = "show hidden entries"
	almostAllFlagDescription      = "show hidden entries"
	directoryOnlyFlagDescription  = "list directories only"
	followSymlinksFlagDescription = "descend into symlinked directories"
	gitStatusFlagDescription      = "annotate entries with their git status"
	permissionsFlagDescription    = "annotate entries with permission bits"
	formatFlagDescription         = "output format: raw, json, xml, or yaml"
	teeJSONFlagDescription        = "also write NDJSON events to this file"
	colorFlagDescription          = "colorize output: auto, always, or never"
	copyFlagDescription           = "copy the rendered output to the clipboard"
	workersFlagDescription        = "directory reader goroutines (0 for one per CPU)"
	enrichWorkersFlagDescription  = "entries enriched concurrently"
	bufferLimitFlagDescription    = "entries buffered per subtree before the reader waits"
	errorThresholdDescription     = "abort after this many unreadable entries (0 to never abort)"
	timeoutFlagDescription        = "stop the listing after this duration and print what is known"
	configFlagDescription         = "path to a configuration file"
	logLevelFlagDescription       = "log level: debug, info, warn, or error"
	versionFlagDescription        = "display application version"
	initGlobalFlagDescription     = "write the global configuration"
	initForceFlagDescription      = "overwrite an existing configuration"

	invalidFormatMessage      = "invalid format value '%s'"
	initSuccessFormat         = "configuration written to %s\n"
	errorTeeFileFormat        = "unable to open %s: %w"
	errorCopyFormat           = "copy to clipboard: %w"
	errorIgnorePatternsFormat = "ignore patterns for %s: %w"
	errorConfigurationFormat  = "loading configuration: %w"
	// errorAbsolutePathFormat reports failure to resolve an absolute path.
	errorAbsolutePathFormat = "abs failed for '%s': %w"
	// errorPathMissingFormat reports a missing path.
	errorPathMissingFormat = "path '%s' does not exist"
	// errorStatFormat reports failure to retrieve file statistics.
	errorStatFormat = "stat failed for '%s': %w"
	// errorNoValidPaths indicates that all paths are invalid.
	errorNoValidPaths = "no valid paths"
)

// isSupportedFormat reports whether the provided format is recognized.
func isSupportedFormat(format string) bool {
	switch format {
	case types.FormatRaw, types.FormatJSON, types.FormatXML, types.FormatYAML:
		return true
	default:
		return false
	}
}

// Execute runs the ltree application.
func Execute() error {
	rootCommand := createRootCommand(clipboard.NewService())
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, os.Args[1:]))
	return rootCommand.Execute()
}

// createRootCommand builds the root Cobra command.
func createRootCommand(copier clipboard.Copier) *cobra.Command {
	var showVersion bool
	var logLevel string
	settings := newListSettings()
	logger := zap.NewNop()

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		Example:       rootUsageExample,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if showVersion {
				fmt.Fprintf(command.OutOrStdout(), versionTemplate, utils.GetApplicationVersion())
				os.Exit(0)
			}
			applicationLogger, loggerError := utils.NewApplicationLogger(logLevel)
			if loggerError != nil {
				return fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerError)
			}
			logger = applicationLogger
			return nil
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			defer func() { _ = logger.Sync() }()
			if len(arguments) == 0 {
				arguments = []string{defaultPath}
			}
			configuration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{ExplicitFilePath: settings.configPath})
			if configurationError != nil {
				return fmt.Errorf(errorConfigurationFormat, configurationError)
			}
			if applyError := settings.applyConfiguration(command.Flags(), configuration.List); applyError != nil {
				return applyError
			}
			return runList(command, settings, arguments, copier, logger)
		},
	}

	rootCommand.PersistentFlags().BoolVar(&showVersion, versionFlagName, false, versionFlagDescription)
	rootCommand.PersistentFlags().StringVar(&logLevel, logLevelFlagName, utils.DefaultLogLevel, logLevelFlagDescription)
	settings.register(rootCommand)
	rootCommand.AddCommand(createInitCommand())
	rootCommand.InitDefaultHelpCmd()
	rootCommand.InitDefaultCompletionCmd()
	return rootCommand
}

// createInitCommand returns the init subcommand.
func createInitCommand() *cobra.Command {
	var global bool
	var force bool

	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Long:  initLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			destinationPath, initError := config.InitializeConfiguration(config.InitOptions{Target: target, Force: force})
			if initError != nil {
				return initError
			}
			fmt.Fprintf(command.OutOrStdout(), initSuccessFormat, destinationPath)
			return nil
		},
	}
	registerBooleanFlag(initCommand.Flags(), &global, initGlobalFlagName, false, initGlobalFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &force, initForceFlagName, false, initForceFlagDescription)
	return initCommand
}

// runList lists every path into one renderer. A degraded path does not stop
// the remaining paths; a fatal one does.
func runList(command *cobra.Command, settings *listSettings, paths []string, copier clipboard.Copier, logger *zap.Logger) (err error) {
	format := strings.ToLower(settings.format)
	if !isSupportedFormat(format) {
		return fmt.Errorf(invalidFormatMessage, settings.format)
	}
	colorMode, colorError := output.ParseColorMode(settings.color)
	if colorError != nil {
		return colorError
	}
	sortOptions, sortError := settings.sortOptions()
	if sortError != nil {
		return sortError
	}
	matchTarget, matchError := ignore.ParseMatchTarget(settings.ignoreMatch)
	if matchError != nil {
		return matchError
	}
	validatedPaths, pathValidationError := resolveAndValidatePaths(paths)
	if pathValidationError != nil {
		return pathValidationError
	}
	enrichers, enricherError := buildEnrichers(settings, sortOptions.Key, logger)
	if enricherError != nil {
		return enricherError
	}

	stdout := command.OutOrStdout()
	var clipboardBuffer bytes.Buffer
	if settings.copyToClipboard {
		stdout = io.MultiWriter(stdout, &clipboardBuffer)
	}
	layout := settings.layout()
	renderer, rendererError := output.NewStreamRenderer(stdout, command.ErrOrStderr(), output.RendererOptions{
		Format:  format,
		Layout:  layout,
		Color:   output.ColorEnabled(colorMode, stdout),
		Width:   output.TerminalWidth(stdout),
		Headers: settings.recursive,
	})
	if rendererError != nil {
		return rendererError
	}

	var teeRenderer output.StreamRenderer
	var teeFile *os.File
	if settings.teeJSONPath != "" {
		createdFile, createError := os.Create(settings.teeJSONPath)
		if createError != nil {
			return fmt.Errorf(errorTeeFileFormat, settings.teeJSONPath, createError)
		}
		teeFile = createdFile
		teeRenderer = output.NewJSONStreamRenderer(teeFile, io.Discard)
	}

	defer func() {
		if flushErr := renderer.Flush(); flushErr != nil && err == nil {
			err = flushErr
		}
		if teeRenderer != nil {
			if flushErr := teeRenderer.Flush(); flushErr != nil && err == nil {
				err = flushErr
			}
			if closeErr := teeFile.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}
		if settings.copyToClipboard && clipboardBuffer.Len() > 0 {
			if copyErr := copier.Copy(clipboardBuffer.String()); copyErr != nil && err == nil {
				err = fmt.Errorf(errorCopyFormat, copyErr)
			}
		}
	}()

	ctx, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	if settings.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, settings.timeout)
		defer cancelTimeout()
	}

	kind := accumulator.KindTree
	if layout == types.LayoutFlat {
		kind = accumulator.KindFlat
	}
	accumulatorOptions := accumulator.Options{
		Sort:            sortOptions,
		DirectoriesOnly: settings.directoriesOnly,
		RetainSubtrees:  kind == accumulator.KindTree && format == types.FormatRaw,
		Recursive:       settings.recursive,
		Logger:          logger,
	}
	consumers := []commands.Consumer{{
		Name:        primaryConsumerName,
		Kind:        kind,
		Accumulator: accumulatorOptions,
		Handle:      renderer.Handle,
	}}
	if teeRenderer != nil {
		teeOptions := accumulatorOptions
		teeOptions.RetainSubtrees = false
		consumers = append(consumers, commands.Consumer{
			Name:        teeConsumerName,
			Kind:        kind,
			Accumulator: teeOptions,
			Handle:      teeRenderer.Handle,
		})
	}

	var degradedError error
	for _, validatedPath := range validatedPaths {
		matcher, matcherError := buildMatcher(validatedPath, settings, matchTarget, logger)
		if matcherError != nil {
			return matcherError
		}
		result, listError := commands.List(ctx, commands.ListOptions{
			Root:           validatedPath.AbsolutePath,
			Matcher:        matcher,
			MaxDepth:       settings.maxDepth(),
			IncludeHidden:  settings.includeHidden(),
			FollowSymlinks: settings.followSymlinks,
			Workers:        settings.workers,
			EnrichWorkers:  settings.enrichWorkers,
			Enrichers:      enrichers,
			BufferLimit:    settings.bufferLimit,
			ErrorThreshold: settings.errorThreshold,
			Logger:         logger,
		}, consumers)
		if listError == nil {
			continue
		}
		if !errors.Is(listError, commands.ErrDegraded) {
			return listError
		}
		logger.Warn(listError.Error(), zap.String("run", result.RunID))
		degradedError = listError
		if ctx.Err() != nil {
			logger.Info(signalInterruptedLogEntry, zap.Error(ctx.Err()))
			break
		}
	}
	return degradedError
}

// buildMatcher compiles flag, configuration and ignore-file patterns for one root.
func buildMatcher(path types.ValidatedPath, settings *listSettings, target ignore.MatchTarget, logger *zap.Logger) (*ignore.Matcher, error) {
	patterns := settings.ignorePatterns
	if path.IsDir {
		sources := config.IgnoreSources{
			UseIgnoreFile: !settings.disableIgnoreFile,
			UseGitignore:  settings.useGitignore,
			IncludeGit:    settings.includeGit,
			Extra:         settings.ignorePatterns,
		}
		combined, loadError := sources.Patterns(path.AbsolutePath)
		if loadError != nil {
			return nil, fmt.Errorf(errorIgnorePatternsFormat, path.AbsolutePath, loadError)
		}
		patterns = combined
	}
	matcher, compileError := ignore.Compile(utils.DeduplicatePatterns(patterns), target)
	if compileError != nil {
		return nil, compileError
	}
	logger.Debug("ignore patterns", zap.String("root", path.AbsolutePath), zap.Strings("patterns", matcher.Patterns()))
	return matcher, nil
}

// buildEnrichers returns the enrichers requested by settings. Sorting by git
// status turns on git enrichment.
func buildEnrichers(settings *listSettings, sortKey accumulator.SortKey, logger *zap.Logger) ([]enrich.Enricher, error) {
	var enrichers []enrich.Enricher
	if settings.permissions {
		enrichers = append(enrichers, enrich.PermissionsEnricher{})
	}
	if settings.gitStatus || sortKey == accumulator.SortByGitStatus {
		gitEnricher, gitError := enrich.NewGitEnricher(gitRepositoryCacheSize, logger)
		if gitError != nil {
			return nil, gitError
		}
		enrichers = append(enrichers, gitEnricher)
	}
	return enrichers, nil
}

// resolveAndValidatePaths converts input paths to absolute form and validates their existence.
func resolveAndValidatePaths(inputs []string) ([]types.ValidatedPath, error) {
	seen := make(map[string]struct{})
	var result []types.ValidatedPath
	for _, inputPath := range inputs {
		absolutePath, absolutePathError := filepath.Abs(inputPath)
		if absolutePathError != nil {
			return nil, fmt.Errorf(errorAbsolutePathFormat, inputPath, absolutePathError)
		}
		cleanPath := filepath.Clean(absolutePath)
		if _, ok := seen[cleanPath]; ok {
			continue
		}
		info, fileStatusError := os.Stat(cleanPath)
		if fileStatusError != nil {
			if os.IsNotExist(fileStatusError) {
				return nil, fmt.Errorf(errorPathMissingFormat, inputPath)
			}
			return nil, fmt.Errorf(errorStatFormat, inputPath, fileStatusError)
		}
		seen[cleanPath] = struct{}{}
		result = append(result, types.ValidatedPath{AbsolutePath: cleanPath, IsDir: info.IsDir()})
	}
	if len(result) == 0 {
		return nil, errors.New(errorNoValidPaths)
	}
	return result, nil
}
