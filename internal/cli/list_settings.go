package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/temirov/ltree/internal/accumulator"
	"github.com/temirov/ltree/internal/config"
	"github.com/temirov/ltree/internal/dispatch"
	"github.com/temirov/ltree/internal/ignore"
	"github.com/temirov/ltree/internal/output"
	"github.com/temirov/ltree/internal/types"
	"github.com/temirov/ltree/internal/utils"
)

const errorTimeoutFormat = "invalid timeout '%s': %w"

// listSettings holds the resolved options of the root command. Flags are
// registered directly on it; configuration values fill whatever the command
// line left unset.
type listSettings struct {
	depth             int
	tree              bool
	flat              bool
	configuredLayout  string
	recursive         bool
	sortKey           string
	sortSize          bool
	sortTime          bool
	sortExtension     bool
	sortVersion       bool
	unsorted          bool
	reverse           bool
	groupDirectories  string
	caseFold          bool
	ignorePatterns    []string
	ignoreMatch       string
	disableIgnoreFile bool
	useGitignore      bool
	includeGit        bool
	all               bool
	almostAll         bool
	directoriesOnly   bool
	followSymlinks    bool
	gitStatus         bool
	permissions       bool
	format            string
	teeJSONPath       string
	color             string
	copyToClipboard   bool
	workers           int
	enrichWorkers     int
	bufferLimit       int
	errorThreshold    int
	timeout           time.Duration
	configPath        string
}

func newListSettings() *listSettings {
	return &listSettings{}
}

func (settings *listSettings) register(command *cobra.Command) {
	flags := command.Flags()
	flags.IntVarP(&settings.depth, depthFlagName, depthFlagShorthand, defaultDepth, depthFlagDescription)
	registerBooleanFlag(flags, &settings.tree, treeFlagName, false, treeFlagDescription)
	registerBooleanFlag(flags, &settings.flat, flatFlagName, false, flatFlagDescription)
	registerBooleanFlagP(flags, &settings.recursive, recursiveFlagName, recursiveFlagShorthand, false, recursiveFlagDescription)

	flags.StringVarP(&settings.sortKey, sortFlagName, sortFlagShorthand, string(accumulator.SortByName), sortFlagDescription)
	registerBooleanFlagP(flags, &settings.sortSize, sortSizeFlagName, sortSizeFlagShorthand, false, sortSizeFlagDescription)
	registerBooleanFlagP(flags, &settings.sortTime, sortTimeFlagName, sortTimeFlagShorthand, false, sortTimeFlagDescription)
	registerBooleanFlagP(flags, &settings.sortExtension, sortExtensionFlagName, sortExtensionShorthand, false, sortExtensionFlagDescription)
	registerBooleanFlagP(flags, &settings.sortVersion, sortVersionFlagName, sortVersionFlagShorthand, false, sortVersionFlagDescription)
	registerBooleanFlagP(flags, &settings.unsorted, unsortedFlagName, unsortedFlagShorthand, false, unsortedFlagDescription)
	registerBooleanFlagP(flags, &settings.reverse, reverseFlagName, reverseFlagShorthand, false, reverseFlagDescription)
	flags.StringVar(&settings.groupDirectories, groupDirectoriesFlagName, string(accumulator.GroupNone), groupDirectoriesDescription)
	registerBooleanFlag(flags, &settings.caseFold, caseFoldFlagName, false, caseFoldFlagDescription)

	flags.StringArrayVarP(&settings.ignorePatterns, ignoreGlobFlagName, ignoreGlobFlagShorthand, nil, ignoreGlobFlagDescription)
	flags.StringVar(&settings.ignoreMatch, ignoreMatchFlagName, string(ignore.MatchBoth), ignoreMatchFlagDescription)
	registerBooleanFlag(flags, &settings.disableIgnoreFile, noIgnoreFileFlagName, false, noIgnoreFileFlagDescription)
	registerBooleanFlag(flags, &settings.useGitignore, gitignoreFlagName, false, gitignoreFlagDescription)
	registerBooleanFlag(flags, &settings.includeGit, includeGitFlagName, false, includeGitFlagDescription)
	registerBooleanFlagP(flags, &settings.all, allFlagName, allFlagShorthand, false, allFlagDescription)
	registerBooleanFlagP(flags, &settings.almostAll, almostAllFlagName, almostAllFlagShorthand, false, almostAllFlagDescription)
	registerBooleanFlagP(flags, &settings.directoriesOnly, directoryOnlyFlagName, directoryOnlyShorthand, false, directoryOnlyFlagDescription)
	registerBooleanFlag(flags, &settings.followSymlinks, followSymlinksFlagName, false, followSymlinksFlagDescription)

	registerBooleanFlag(flags, &settings.gitStatus, gitStatusFlagName, false, gitStatusFlagDescription)
	registerBooleanFlag(flags, &settings.permissions, permissionsFlagName, false, permissionsFlagDescription)

	flags.StringVar(&settings.format, formatFlagName, types.FormatRaw, formatFlagDescription)
	flags.StringVar(&settings.teeJSONPath, teeJSONFlagName, "", teeJSONFlagDescription)
	flags.StringVar(&settings.color, colorFlagName, output.ColorAuto, colorFlagDescription)
	registerBooleanFlag(flags, &settings.copyToClipboard, copyFlagName, false, copyFlagDescription)

	flags.IntVar(&settings.workers, workersFlagName, 0, workersFlagDescription)
	flags.IntVar(&settings.enrichWorkers, enrichWorkersFlagName, defaultEnrichWorkers, enrichWorkersFlagDescription)
	flags.IntVar(&settings.bufferLimit, bufferLimitFlagName, dispatch.DefaultBufferLimit, bufferLimitFlagDescription)
	flags.IntVar(&settings.errorThreshold, errorThresholdFlagName, 0, errorThresholdDescription)
	flags.DurationVar(&settings.timeout, timeoutFlagName, 0, timeoutFlagDescription)
	flags.StringVar(&settings.configPath, configFlagName, "", configFlagDescription)
}

// applyConfiguration copies configured defaults into every setting whose flag
// was not given on the command line. Configured exclusions come before the
// flag patterns.
func (settings *listSettings) applyConfiguration(flags *pflag.FlagSet, configuration config.ListConfiguration) error {
	applyString(flags, formatFlagName, &settings.format, configuration.Format)
	applyString(flags, colorFlagName, &settings.color, configuration.Color)
	if !flags.Changed(treeFlagName) && !flags.Changed(flatFlagName) {
		settings.configuredLayout = configuration.Layout
	}
	applyInt(flags, depthFlagName, &settings.depth, configuration.Depth)
	applyBool(flags, recursiveFlagName, &settings.recursive, configuration.Recursive)
	applyBool(flags, copyFlagName, &settings.copyToClipboard, configuration.Clipboard)

	if !settings.sortShortcutChanged(flags) {
		applyString(flags, sortFlagName, &settings.sortKey, configuration.Sort.Key)
	}
	applyString(flags, groupDirectoriesFlagName, &settings.groupDirectories, configuration.Sort.Group)
	applyBool(flags, reverseFlagName, &settings.reverse, configuration.Sort.Reverse)
	applyBool(flags, caseFoldFlagName, &settings.caseFold, configuration.Sort.CaseFold)

	paths := configuration.Paths
	settings.ignorePatterns = utils.DeduplicatePatterns(append(append([]string{}, paths.Exclude...), settings.ignorePatterns...))
	applyString(flags, ignoreMatchFlagName, &settings.ignoreMatch, paths.Match)
	if paths.UseIgnoreFile != nil && !flags.Changed(noIgnoreFileFlagName) {
		settings.disableIgnoreFile = !*paths.UseIgnoreFile
	}
	applyBool(flags, gitignoreFlagName, &settings.useGitignore, paths.UseGitignore)
	applyBool(flags, includeGitFlagName, &settings.includeGit, paths.IncludeGit)
	if !flags.Changed(almostAllFlagName) {
		applyBool(flags, allFlagName, &settings.all, paths.Hidden)
	}
	applyBool(flags, followSymlinksFlagName, &settings.followSymlinks, paths.FollowSymlinks)
	applyBool(flags, directoryOnlyFlagName, &settings.directoriesOnly, paths.DirectoriesOnly)

	applyBool(flags, gitStatusFlagName, &settings.gitStatus, configuration.Enrich.GitStatus)
	applyBool(flags, permissionsFlagName, &settings.permissions, configuration.Enrich.Permissions)

	engine := configuration.Engine
	applyInt(flags, workersFlagName, &settings.workers, engine.Workers)
	applyInt(flags, enrichWorkersFlagName, &settings.enrichWorkers, engine.EnrichWorkers)
	applyInt(flags, bufferLimitFlagName, &settings.bufferLimit, engine.BufferLimit)
	applyInt(flags, errorThresholdFlagName, &settings.errorThreshold, engine.ErrorThreshold)
	if engine.Timeout != "" && !flags.Changed(timeoutFlagName) {
		parsed, parseError := time.ParseDuration(engine.Timeout)
		if parseError != nil {
			return fmt.Errorf(errorTimeoutFormat, engine.Timeout, parseError)
		}
		settings.timeout = parsed
	}
	return nil
}

// layout resolves --tree and --flat against the configured layout. --flat
// wins when both are given.
func (settings *listSettings) layout() string {
	switch {
	case settings.flat:
		return types.LayoutFlat
	case settings.tree:
		return types.LayoutTree
	case settings.configuredLayout == types.LayoutFlat:
		return types.LayoutFlat
	default:
		return types.LayoutTree
	}
}

// maxDepth is the traversal depth. A flat listing without --recursive only
// shows the root's children unless a depth was asked for.
func (settings *listSettings) maxDepth() int {
	if settings.depth < 0 && !settings.recursive && settings.layout() == types.LayoutFlat {
		return 1
	}
	return settings.depth
}

func (settings *listSettings) includeHidden() bool {
	return settings.all || settings.almostAll
}

// sortOptions resolves the sort key, letting a shortcut flag override --sort.
func (settings *listSettings) sortOptions() (accumulator.SortOptions, error) {
	keyName := settings.sortKey
	switch {
	case settings.unsorted:
		keyName = string(accumulator.SortByNone)
	case settings.sortSize:
		keyName = string(accumulator.SortBySize)
	case settings.sortTime:
		keyName = string(accumulator.SortByTime)
	case settings.sortExtension:
		keyName = string(accumulator.SortByExtension)
	case settings.sortVersion:
		keyName = string(accumulator.SortByVersion)
	}
	key, keyError := accumulator.ParseSortKey(keyName)
	if keyError != nil {
		return accumulator.SortOptions{}, keyError
	}
	group, groupError := accumulator.ParseGroupPolicy(settings.groupDirectories)
	if groupError != nil {
		return accumulator.SortOptions{}, groupError
	}
	return accumulator.SortOptions{Key: key, Group: group, Reverse: settings.reverse, CaseFold: settings.caseFold}, nil
}

func (settings *listSettings) sortShortcutChanged(flags *pflag.FlagSet) bool {
	for _, name := range []string{sortSizeFlagName, sortTimeFlagName, sortExtensionFlagName, sortVersionFlagName, unsortedFlagName} {
		if flags.Changed(name) {
			return true
		}
	}
	return false
}

func applyString(flags *pflag.FlagSet, name string, target *string, value string) {
	if value == "" || flags.Changed(name) {
		return
	}
	*target = value
}

func applyBool(flags *pflag.FlagSet, name string, target *bool, value *bool) {
	if value == nil || flags.Changed(name) {
		return
	}
	*target = *value
}

func applyInt(flags *pflag.FlagSet, name string, target *int, value *int) {
	if value == nil || flags.Changed(name) {
		return
	}
	*target = *value
}
