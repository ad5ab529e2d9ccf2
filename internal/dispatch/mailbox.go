package dispatch

import (
	"context"
	"errors"
	"sync"

	"github.com/temirov/ltree/internal/types"
)

// ErrMailboxClosed is returned by Put once the mailbox no longer accepts batches.
var ErrMailboxClosed = errors.New("mailbox closed")

// Mailbox is an accumulator's input queue. Batches are taken in publication
// order, while admission is bounded per subtree: a producer publishing into a
// subtree whose queued entries exceed the limit blocks until the consumer
// drains that subtree. Other subtrees are unaffected.
type Mailbox struct {
	mutex      sync.Mutex
	limit      int
	queue      []types.Batch
	partitions map[string]int
	released   map[string]chan struct{}
	ready      chan struct{}
	closed     bool
	abandoned  bool
}

// NewMailbox creates a mailbox; a limit of zero or less disables backpressure.
func NewMailbox(limit int) *Mailbox {
	return &Mailbox{
		limit:      limit,
		partitions: map[string]int{},
		released:   map[string]chan struct{}{},
		ready:      make(chan struct{}, 1),
	}
}

func batchWeight(batch types.Batch) int {
	if len(batch.Entries) == 0 {
		return 1
	}
	return len(batch.Entries)
}

// Put enqueues batch, blocking while its subtree partition is full.
// An oversized batch is admitted into an empty partition.
func (mailbox *Mailbox) Put(ctx context.Context, batch types.Batch) error {
	for {
		admitted, release, putError := mailbox.admit(batch)
		if admitted || putError != nil {
			return putError
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-release:
		}
	}
}

// TryPut enqueues batch only if its partition has room, reporting whether it
// did. It never blocks.
func (mailbox *Mailbox) TryPut(batch types.Batch) (bool, error) {
	admitted, _, putError := mailbox.admit(batch)
	return admitted, putError
}

// admit enqueues batch when its partition has room. Otherwise it returns the
// channel closed on the partition's next release.
func (mailbox *Mailbox) admit(batch types.Batch) (bool, <-chan struct{}, error) {
	weight := batchWeight(batch)
	mailbox.mutex.Lock()
	if mailbox.closed || mailbox.abandoned {
		mailbox.mutex.Unlock()
		return false, nil, ErrMailboxClosed
	}
	queued := mailbox.partitions[batch.Subtree]
	if mailbox.limit <= 0 || queued == 0 || queued+weight <= mailbox.limit {
		mailbox.queue = append(mailbox.queue, batch)
		mailbox.partitions[batch.Subtree] = queued + weight
		mailbox.mutex.Unlock()
		mailbox.signal()
		return true, nil, nil
	}
	release, waiting := mailbox.released[batch.Subtree]
	if !waiting {
		release = make(chan struct{})
		mailbox.released[batch.Subtree] = release
	}
	mailbox.mutex.Unlock()
	return false, release, nil
}

// Take returns the oldest queued batch. ok is false once the mailbox is
// closed and empty.
func (mailbox *Mailbox) Take(ctx context.Context) (types.Batch, bool, error) {
	for {
		mailbox.mutex.Lock()
		if len(mailbox.queue) > 0 {
			batch := mailbox.queue[0]
			mailbox.queue[0] = types.Batch{}
			mailbox.queue = mailbox.queue[1:]
			remaining := mailbox.partitions[batch.Subtree] - batchWeight(batch)
			if remaining <= 0 {
				delete(mailbox.partitions, batch.Subtree)
			} else {
				mailbox.partitions[batch.Subtree] = remaining
			}
			if release, waiting := mailbox.released[batch.Subtree]; waiting {
				close(release)
				delete(mailbox.released, batch.Subtree)
			}
			mailbox.mutex.Unlock()
			return batch, true, nil
		}
		if mailbox.closed {
			mailbox.mutex.Unlock()
			return types.Batch{}, false, nil
		}
		mailbox.mutex.Unlock()

		select {
		case <-ctx.Done():
			return types.Batch{}, false, ctx.Err()
		case <-mailbox.ready:
		}
	}
}

// Close stops admission; queued batches are still delivered.
func (mailbox *Mailbox) Close() {
	mailbox.mutex.Lock()
	mailbox.closed = true
	mailbox.mutex.Unlock()
	mailbox.signal()
}

// Abandon discards the queue and releases every blocked producer. Used once
// the consumer has stopped.
func (mailbox *Mailbox) Abandon() {
	mailbox.mutex.Lock()
	defer mailbox.mutex.Unlock()
	mailbox.abandoned = true
	mailbox.queue = nil
	mailbox.partitions = map[string]int{}
	for subtree, release := range mailbox.released {
		close(release)
		delete(mailbox.released, subtree)
	}
}

// Queued reports the number of entries waiting in subtree's partition.
func (mailbox *Mailbox) Queued(subtree string) int {
	mailbox.mutex.Lock()
	defer mailbox.mutex.Unlock()
	return mailbox.partitions[subtree]
}

func (mailbox *Mailbox) signal() {
	select {
	case mailbox.ready <- struct{}{}:
	default:
	}
}
