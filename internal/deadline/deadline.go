// Package deadline tracks per-transaction block-height deadlines derived
// from a shard's current chain height at the moment a transaction enters
// the prepared phase.
package deadline

import (
	"context"
	"fmt"
	"sync"

	"github.com/atomic2pc/atomic2pc/internal/chainerr"
	"github.com/atomic2pc/atomic2pc/internal/oracle"
	"github.com/atomic2pc/atomic2pc/internal/txid"
)

// Tracker maps in-flight transaction ids to the block height at which they
// expire.
type Tracker struct {
	oracle *oracle.BlockHeightOracle

	mu        sync.Mutex
	deadlines map[txid.ID]uint64
}

// New builds a Tracker backed by the given height oracle.
func New(o *oracle.BlockHeightOracle) *Tracker {
	return &Tracker{oracle: o, deadlines: make(map[txid.ID]uint64)}
}

// Start records a deadline of (current height + timeoutBlocks) for id. A
// second call for the same id overwrites the previously recorded deadline;
// this module does not attempt to preserve the first deadline set.
func (t *Tracker) Start(ctx context.Context, id txid.ID, timeoutBlocks uint64) error {
	height, err := t.oracle.Current(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.deadlines[id] = height + timeoutBlocks
	return nil
}

// IsExpired reports whether id's tracked deadline has strictly passed: the
// chain's current height must be greater than, not merely equal to, the
// deadline. It returns a chainerr.UnknownTransaction error if id was never
// started.
func (t *Tracker) IsExpired(ctx context.Context, id txid.ID) (bool, error) {
	deadline, ok := t.DeadlineOf(id)
	if !ok {
		return false, chainerr.NewNonRetryable(chainerr.UnknownTransaction, fmt.Sprintf("transaction %q is not tracked", id), nil)
	}

	height, err := t.oracle.Current(ctx)
	if err != nil {
		return false, err
	}

	return height > deadline, nil
}

// DeadlineOf returns the recorded deadline for id, if any.
func (t *Tracker) DeadlineOf(id txid.ID) (uint64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.deadlines[id]
	return d, ok
}

// Forget removes id's tracked deadline, if present.
func (t *Tracker) Forget(id txid.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.deadlines, id)
}
