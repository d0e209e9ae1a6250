package partition

import (
	"context"
	"sync"

	"github.com/gammazero/deque"
	"golang.org/x/sync/semaphore"

	"github.com/pombredanne/merkle-db/key"
	"github.com/pombredanne/merkle-db/nodestore"
	"github.com/pombredanne/merkle-db/patch"
	"github.com/pombredanne/merkle-db/record"
)

// maxConcurrentPartitionWrites bounds how many of partition_records'
// emitted batches may be serialized to the node store at once, matching
// spec.md §5's "reference implementation uses a bounded pool of at most 6
// concurrent workers to cap memory."
const maxConcurrentPartitionWrites = 6

// Summary is what the tree's bulk-update algorithm needs about a freshly
// emitted partition without reloading it: enough to compute split keys and
// branching decisions at the level above.
type Summary struct {
	Digest   nodestore.Digest
	FirstKey key.Key
	Count    int
}

// Accumulator buffers pending records between emitted partitions while
// consuming a key-ordered stream, the concurrency-safe double-ended queue
// pattern used throughout the ambient storage layer.
type Accumulator struct {
	mutex *sync.Mutex
	deque *deque.Deque
}

// NewAccumulator builds an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		mutex: &sync.Mutex{},
		deque: deque.New(),
	}
}

// Push appends records to the back of the accumulator.
func (a *Accumulator) Push(records ...record.Record) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	for _, r := range records {
		a.deque.PushBack(r)
	}
}

// Len returns the number of pending records.
func (a *Accumulator) Len() int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.deque.Len()
}

// TakeFront removes and returns the first n pending records.
func (a *Accumulator) TakeFront(n int) []record.Record {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if n > a.deque.Len() {
		n = a.deque.Len()
	}
	out := make([]record.Record, n)
	for i := 0; i < n; i++ {
		out[i] = a.deque.PopFront().(record.Record)
	}
	return out
}

// Drain removes and returns every pending record.
func (a *Accumulator) Drain() []record.Record {
	return a.TakeFront(a.Len())
}

// planBatches computes, in emission order, the batches partition_records
// hands to FromRecords: full-limit batches taken from the front while the
// accumulator holds at least a full split threshold, then either a final
// batch or an even split into two half-sized batches when the remainder
// overflows the limit. This is a pure function of records and params, which
// is what lets Records below serialize the batches to the node store
// concurrently while still emitting summaries in this order.
func planBatches(records []record.Record, params Params) [][]record.Record {
	acc := NewAccumulator()
	acc.Push(records...)

	var batches [][]record.Record
	for acc.Len() >= params.SplitThreshold() {
		batches = append(batches, acc.TakeFront(params.Limit))
	}

	remaining := acc.Drain()
	if len(remaining) == 0 {
		return batches
	}

	if len(remaining) > params.Limit {
		mid := len(remaining) / 2
		if mid < params.HalfLimit() {
			mid = params.HalfLimit()
		}
		return append(batches, remaining[:mid], remaining[mid:])
	}

	return append(batches, remaining)
}

// Records consumes a stream and calls partition_records, storing each
// produced partition and returning the committed references in emission
// order. Records must already be sorted in strictly ascending key order and
// free of tombstones, matching patch.Seq's output or Case B's pre-merged
// partition records.
//
// Partition writes for distinct batches are independent (spec.md §5), so
// they are serialized to the node store concurrently, bounded by a weighted
// semaphore to maxConcurrentPartitionWrites workers, the way
// nodestore/badgerstore bounds concurrent commits. Batch order is preserved
// in the returned summaries regardless of completion order.
func Records(ctx context.Context, store nodestore.Store, params Params, records []record.Record) ([]Summary, error) {
	batches := planBatches(records, params)
	if len(batches) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sema := semaphore.NewWeighted(maxConcurrentPartitionWrites)
	summaries := make([]Summary, len(batches))

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error

	for i, batch := range batches {
		if err := sema.Acquire(ctx, 1); err != nil {
			mu.Lock()
			if firstErr == nil {
				firstErr = err
			}
			mu.Unlock()
			break
		}

		wg.Add(1)
		go func(i int, batch []record.Record) {
			defer wg.Done()
			defer sema.Release(1)

			entries := make([]patch.Entry, len(batch))
			for j, r := range batch {
				entries[j] = patch.Entry{Key: r.Key, Fields: r.Fields}
			}
			p, digest, err := FromRecords(ctx, store, params, entries)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				mu.Unlock()
				return
			}
			summaries[i] = Summary{Digest: digest, FirstKey: p.FirstKey, Count: p.Count}
		}(i, batch)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return summaries, nil
}
