// Package shard implements a single shard's participation in the
// cross-shard atomic commit protocol: off-chain staging and application of
// state operations, and on-chain escrow locking, committing and reclaiming.
package shard

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/atomic2pc/atomic2pc/internal/chainerr"
	"github.com/atomic2pc/atomic2pc/internal/deadline"
	"github.com/atomic2pc/atomic2pc/internal/logging"
	"github.com/atomic2pc/atomic2pc/internal/stateop"
	"github.com/atomic2pc/atomic2pc/internal/txid"
	"github.com/atomic2pc/atomic2pc/internal/wire"
)

// EscrowDriver is the on-chain surface a Participant drives. Defining it
// as an interface (rather than depending on *escrow.Adapter directly)
// lets tests substitute a fake chain without a live RPC endpoint.
type EscrowDriver interface {
	Lock(ctx context.Context, id txid.ID, recipient common.Address, amountWei *big.Int, deadline uint64) (common.Hash, error)
	Commit(ctx context.Context, id txid.ID) (common.Hash, error)
	Reclaim(ctx context.Context, id txid.ID) (common.Hash, error)
}

// Participant is one shard's view of the protocol: its key-value state,
// the operations staged per in-flight transaction, its deadline tracker,
// and its on-chain escrow driver.
type Participant struct {
	ID     string
	escrow EscrowDriver
	clock  *deadline.Tracker
	log    *logging.Logger

	mu      sync.Mutex
	state   map[string]string
	staging map[txid.ID][]string
}

// New builds a Participant for shard id, driving the given escrow adapter
// and deadline tracker.
func New(id string, escrowAdapter EscrowDriver, clock *deadline.Tracker, log *logging.Logger) *Participant {
	return &Participant{
		ID:      id,
		escrow:  escrowAdapter,
		clock:   clock,
		log:     log.Component("shard." + id),
		state:   make(map[string]string),
		staging: make(map[txid.ID][]string),
	}
}

// Prepare starts id's deadline on first sight (a deadline already tracked
// for id is kept, not restarted), votes ABORT if the deadline has already
// passed, and otherwise stages req.Operations
// (overwriting any previously staged operations for id) and votes READY.
func (p *Participant) Prepare(ctx context.Context, req *wire.PrepareRequest) (*wire.PrepareResponse, error) {
	id := txid.ID(req.TransactionID)

	if _, tracked := p.clock.DeadlineOf(id); !tracked {
		if err := p.clock.Start(ctx, id, uint64(req.TimeoutBlocks)); err != nil {
			p.log.Warn("failed to start deadline tracker, voting abort", "tx", req.TransactionID, "err", err)
			return &wire.PrepareResponse{Status: wire.VoteAbort, ShardID: p.ID}, nil
		}
	}

	expired, err := p.clock.IsExpired(ctx, id)
	if err != nil {
		p.log.Warn("failed to check deadline, voting abort", "tx", req.TransactionID, "err", err)
		return &wire.PrepareResponse{Status: wire.VoteAbort, ShardID: p.ID}, nil
	}
	if expired {
		p.log.Info("transaction already expired, voting abort", "tx", req.TransactionID)
		return &wire.PrepareResponse{Status: wire.VoteAbort, ShardID: p.ID}, nil
	}

	p.mu.Lock()
	p.staging[id] = append([]string(nil), req.Operations...)
	p.mu.Unlock()

	p.log.Info("staged operations, voting ready", "tx", req.TransactionID, "ops", len(req.Operations))
	return &wire.PrepareResponse{Status: wire.VoteReady, ShardID: p.ID}, nil
}

// Commit applies id's staged operations to state and drops the staging
// entry. Unrecognized operations are silently ignored. Committing an id
// with no staged operations is a harmless no-op, matching the reference
// behavior of popping a staging entry that defaults to empty.
func (p *Participant) Commit(ctx context.Context, req *wire.CommitRequest) (*wire.Empty, error) {
	id := txid.ID(req.TransactionID)

	p.mu.Lock()
	ops := p.staging[id]
	delete(p.staging, id)
	applied := 0
	for _, op := range ops {
		parsed, ok := stateop.Parse(op)
		if !ok {
			continue
		}
		p.state[parsed.Key] = parsed.Value
		applied++
	}
	p.mu.Unlock()

	p.clock.Forget(id)
	p.log.Info("committed", "tx", req.TransactionID, "ops_applied", applied)
	return &wire.Empty{}, nil
}

// Abort drops id's staged operations, if any.
func (p *Participant) Abort(ctx context.Context, req *wire.AbortRequest) (*wire.Empty, error) {
	id := txid.ID(req.TransactionID)

	p.mu.Lock()
	delete(p.staging, id)
	p.mu.Unlock()

	p.clock.Forget(id)
	p.log.Info("aborted", "tx", req.TransactionID)
	return &wire.Empty{}, nil
}

// Rollback is equivalent to Abort: it discards whatever was staged for id.
func (p *Participant) Rollback(ctx context.Context, req *wire.RollbackRequest) (*wire.Empty, error) {
	return p.Abort(ctx, &wire.AbortRequest{TransactionID: req.TransactionID})
}

// LockOnChain locks req.Amount into pending escrow for req.Recipient,
// deadline req.Deadline.
func (p *Participant) LockOnChain(ctx context.Context, req *wire.LockRequest) (*wire.TxHash, error) {
	id := txid.ID(req.TransactionID)
	recipient := common.HexToAddress(req.Recipient)
	amount := new(big.Int).SetUint64(req.Amount)

	hash, err := p.escrow.Lock(ctx, id, recipient, amount, req.Deadline)
	if err != nil {
		p.log.Warn("lock reverted or failed", "tx", req.TransactionID, "err", err)
		return nil, err
	}
	p.log.Info("locked on chain", "tx", req.TransactionID, "hash", hash.Hex())
	return &wire.TxHash{Hash: hash.Hex()}, nil
}

// CommitOnChain commits a pending escrow to its recipient. A revert
// (past deadline, or not pending) is reported as chainerr.FailedPrecondition.
func (p *Participant) CommitOnChain(ctx context.Context, req *wire.OnChainRequest) (*wire.TxHash, error) {
	id := txid.ID(req.TransactionID)
	hash, err := p.escrow.Commit(ctx, id)
	if err != nil {
		if chainerr.IsCode(err, chainerr.FailedPrecondition) {
			p.log.Warn("commit-on-chain reverted", "tx", req.TransactionID, "err", err)
		} else {
			p.log.Error("commit-on-chain failed", "tx", req.TransactionID, "err", err)
		}
		return nil, err
	}
	p.log.Info("committed on chain", "tx", req.TransactionID, "hash", hash.Hex())
	return &wire.TxHash{Hash: hash.Hex()}, nil
}

// ReclaimOnChain reclaims a pending escrow back to the shard's own
// account once its deadline has passed. A revert (too early, or not
// pending) is reported as chainerr.FailedPrecondition.
func (p *Participant) ReclaimOnChain(ctx context.Context, req *wire.OnChainRequest) (*wire.TxHash, error) {
	id := txid.ID(req.TransactionID)
	hash, err := p.escrow.Reclaim(ctx, id)
	if err != nil {
		if chainerr.IsCode(err, chainerr.FailedPrecondition) {
			p.log.Warn("reclaim-on-chain reverted", "tx", req.TransactionID, "err", err)
		} else {
			p.log.Error("reclaim-on-chain failed", "tx", req.TransactionID, "err", err)
		}
		return nil, err
	}
	p.log.Info("reclaimed on chain", "tx", req.TransactionID, "hash", hash.Hex())
	return &wire.TxHash{Hash: hash.Hex()}, nil
}

var _ wire.ShardServer = (*Participant)(nil)
