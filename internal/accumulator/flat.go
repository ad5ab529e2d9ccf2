package accumulator

import (
	"sort"
	"sync"

	"github.com/temirov/ltree/internal/services/stream"
	"github.com/temirov/ltree/internal/types"
)

type flatDirectory struct {
	entries []types.Entry
}

// flatAccumulator lists entries one directory at a time. A directory's listing
// depends only on its own batch, so no cross-batch state is kept beyond the
// entries of batches still being accumulated.
type flatAccumulator struct {
	options    Options
	mutex      sync.Mutex
	pending    map[string]*flatDirectory
	run        []types.Entry
	rootPath   string
	totalFiles int
	totalDirs  int
}

func newFlatAccumulator(options Options) *flatAccumulator {
	return &flatAccumulator{options: options, pending: map[string]*flatDirectory{}}
}

func (accumulator *flatAccumulator) Accumulate(entry types.Entry) Result {
	accumulator.mutex.Lock()
	defer accumulator.mutex.Unlock()

	if entry.Depth == 0 {
		accumulator.rootPath = entry.Path
		if entry.IsDir {
			return Result{Action: ActionDrop}
		}
	}
	if accumulator.options.DirectoriesOnly && !entry.IsDir {
		return Result{Action: ActionDrop}
	}
	if entry.IsDir {
		accumulator.totalDirs++
	} else {
		accumulator.totalFiles++
	}

	if !accumulator.options.Recursive {
		accumulator.run = append(accumulator.run, entry)
		return Result{Action: ActionBuffer}
	}
	directory, found := accumulator.pending[entry.ParentPath]
	if !found {
		directory = &flatDirectory{}
		accumulator.pending[entry.ParentPath] = directory
	}
	directory.entries = append(directory.entries, entry)
	return Result{Action: ActionBuffer}
}

func (accumulator *flatAccumulator) CompleteBatch(batch types.Batch) []stream.Event {
	if !accumulator.options.Recursive {
		return nil
	}
	accumulator.mutex.Lock()
	directory, found := accumulator.pending[batch.Directory]
	delete(accumulator.pending, batch.Directory)
	accumulator.mutex.Unlock()

	if batch.Root && !found {
		return nil
	}
	var entries []types.Entry
	if found {
		entries = directory.entries
	}
	listing := accumulator.listing(batch.Directory, entries, true)
	listing.Error = errorText(batch.Err)
	return []stream.Event{stream.NewFlatBatchEvent(listing)}
}

func (accumulator *flatAccumulator) Finish(interrupted bool) ([]stream.Event, error) {
	accumulator.mutex.Lock()
	defer accumulator.mutex.Unlock()

	var events []stream.Event
	if accumulator.options.Recursive {
		// Apply completes every batch it feeds, so pending is only non-empty
		// for callers that drive Accumulate without CompleteBatch.
		directories := make([]string, 0, len(accumulator.pending))
		for directory := range accumulator.pending {
			directories = append(directories, directory)
		}
		sort.Strings(directories)
		for _, directory := range directories {
			events = append(events, stream.NewFlatBatchEvent(accumulator.listing(directory, accumulator.pending[directory].entries, false)))
			delete(accumulator.pending, directory)
		}
	} else {
		events = append(events, stream.NewFlatBatchEvent(accumulator.listing(accumulator.rootPath, accumulator.run, !interrupted)))
		accumulator.run = nil
	}
	events = append(events, stream.NewStreamCompleteEvent(accumulator.totalFiles, accumulator.totalDirs, !interrupted))
	return events, nil
}

func (accumulator *flatAccumulator) listing(directory string, entries []types.Entry, complete bool) *stream.FlatBatch {
	SortEntries(entries, func(entry types.Entry) *types.Entry { return &entry }, accumulator.options.Sort)
	serialized := make([]types.SerializedEntry, 0, len(entries))
	for _, entry := range entries {
		serialized = append(serialized, entry.Serialize())
	}
	return &stream.FlatBatch{Directory: directory, Entries: serialized, Complete: complete}
}
