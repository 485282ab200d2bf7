// Package coordinator drives the cross-shard two-phase commit protocol: it
// fans Prepare out to every shard and streams the votes back without
// acting on them. When the client then calls Commit, it locks funds on
// every shard's chain, applies the off-chain commit, then finalizes escrow
// on-chain; when the client calls Abort, it instead discards staged
// operations and reclaims escrow on every shard.
package coordinator

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/atomic2pc/atomic2pc/internal/deadline"
	"github.com/atomic2pc/atomic2pc/internal/logging"
	"github.com/atomic2pc/atomic2pc/internal/txid"
	"github.com/atomic2pc/atomic2pc/internal/wire"
)

// DefaultTimeoutBlocks is used for PrepareRequests that don't specify
// their own timeout.
const DefaultTimeoutBlocks = 500

// txMeta bundles the transaction-scoped on-chain recipient and amount
// a Commit needs to build each shard's LockRequest.
type txMeta struct {
	recipient string
	amount    uint64
}

// ShardClient is the subset of wire.ShardClient's methods the coordinator
// drives. Defining it as an interface (rather than depending on
// *wire.ShardClient directly) lets tests substitute an in-memory shard
// without standing up a real gRPC connection.
type ShardClient interface {
	Prepare(ctx context.Context, req *wire.PrepareRequest) (*wire.PrepareResponse, error)
	Commit(ctx context.Context, req *wire.CommitRequest) (*wire.Empty, error)
	Abort(ctx context.Context, req *wire.AbortRequest) (*wire.Empty, error)
	LockOnChain(ctx context.Context, req *wire.LockRequest) (*wire.TxHash, error)
	CommitOnChain(ctx context.Context, req *wire.OnChainRequest) (*wire.TxHash, error)
	ReclaimOnChain(ctx context.Context, req *wire.OnChainRequest) (*wire.TxHash, error)
}

// Coordinator tracks, per shard, a client connection and a deadline
// tracker over that shard's own chain.
type Coordinator struct {
	clients map[string]ShardClient
	clocks  map[string]*deadline.Tracker
	log     *logging.Logger

	defaultTimeoutBlocks uint64

	mu     sync.Mutex
	txMeta map[txid.ID]txMeta
}

// New builds a Coordinator over the given per-shard clients and deadline
// trackers. Both maps must be keyed identically by shard id.
func New(clients map[string]ShardClient, clocks map[string]*deadline.Tracker, defaultTimeoutBlocks uint64, log *logging.Logger) *Coordinator {
	if defaultTimeoutBlocks == 0 {
		defaultTimeoutBlocks = DefaultTimeoutBlocks
	}
	return &Coordinator{
		clients:              clients,
		clocks:               clocks,
		log:                  log.Component("coordinator"),
		defaultTimeoutBlocks: defaultTimeoutBlocks,
		txMeta:               make(map[txid.ID]txMeta),
	}
}

// Prepare starts each shard's deadline, fans the PrepareRequest out to
// every shard in parallel, and streams each vote to the caller as it
// arrives. A shard that is unreachable votes ABORT rather than failing
// the whole call.
func (c *Coordinator) Prepare(req *wire.PrepareRequest, stream wire.CoordinatorPrepareServer) error {
	ctx := stream.Context()
	id := txid.ID(req.TransactionID)

	timeoutBlocks := uint64(req.TimeoutBlocks)
	if timeoutBlocks == 0 {
		timeoutBlocks = c.defaultTimeoutBlocks
	}

	for shardID, clock := range c.clocks {
		if err := clock.Start(ctx, id, timeoutBlocks); err != nil {
			c.log.Warn("failed to start deadline tracker", "shard", shardID, "tx", req.TransactionID, "err", err)
		}
	}

	c.mu.Lock()
	c.txMeta[id] = txMeta{recipient: req.OnchainRecipient, amount: req.OnchainAmount}
	c.mu.Unlock()

	votes := make(chan *wire.PrepareResponse, len(c.clients))
	g, gctx := errgroup.WithContext(ctx)

	for shardID, client := range c.clients {
		shardID, client := shardID, client
		g.Go(func() error {
			resp, err := client.Prepare(gctx, req)
			if err != nil {
				c.log.Warn("shard unreachable during prepare, voting abort on its behalf", "shard", shardID, "tx", req.TransactionID, "err", err)
				resp = &wire.PrepareResponse{Status: wire.VoteAbort, ShardID: shardID}
			}
			votes <- resp
			return nil
		})
	}

	go func() {
		_ = g.Wait()
		close(votes)
	}()

	for vote := range votes {
		if err := stream.Send(vote); err != nil {
			return err
		}
	}
	return nil
}

// Commit locks every shard's escrow, applies the off-chain commit on every
// shard, then finalizes escrow on-chain on every shard. Per-shard failures
// in the lock, off-chain commit and on-chain commit sub-phases are logged
// and do not abort the overall call, matching the reference coordinator's
// best-effort fan-out.
func (c *Coordinator) Commit(ctx context.Context, req *wire.CommitRequest) (*wire.Empty, error) {
	id := txid.ID(req.TransactionID)

	c.mu.Lock()
	meta, ok := c.txMeta[id]
	c.mu.Unlock()
	if !ok {
		return nil, unknownTransactionError(req.TransactionID)
	}

	var errs error
	for shardID, client := range c.clients {
		deadlineHeight, _ := c.clocks[shardID].DeadlineOf(id)
		_, err := client.LockOnChain(ctx, &wire.LockRequest{
			TransactionID: req.TransactionID,
			Recipient:     meta.recipient,
			Amount:        meta.amount,
			Deadline:      deadlineHeight,
		})
		if err != nil {
			c.log.Warn("lock-on-chain failed", "shard", shardID, "tx", req.TransactionID, "err", err)
			errs = multierr.Append(errs, err)
		}
	}

	for shardID, client := range c.clients {
		if _, err := client.Commit(ctx, &wire.CommitRequest{TransactionID: req.TransactionID}); err != nil {
			c.log.Warn("off-chain commit failed", "shard", shardID, "tx", req.TransactionID, "err", err)
			errs = multierr.Append(errs, err)
		}
	}

	for shardID, client := range c.clients {
		if _, err := client.CommitOnChain(ctx, &wire.OnChainRequest{TransactionID: req.TransactionID}); err != nil {
			c.log.Warn("commit-on-chain failed", "shard", shardID, "tx", req.TransactionID, "err", err)
			errs = multierr.Append(errs, err)
		}
	}

	if errs != nil {
		c.log.Warn("commit completed with per-shard failures", "tx", req.TransactionID, "errs", errs)
	}

	c.mu.Lock()
	delete(c.txMeta, id)
	c.mu.Unlock()

	return &wire.Empty{}, nil
}

// Abort discards every shard's staged operations, then reclaims escrow on
// every shard unconditionally, even on shards whose lock was never
// attempted — a reclaim on a shard with nothing pending simply reverts
// and is logged, which is cheaper than tracking lock-attempted state per
// shard.
func (c *Coordinator) Abort(ctx context.Context, req *wire.AbortRequest) (*wire.Empty, error) {
	id := txid.ID(req.TransactionID)

	var errs error
	for shardID, client := range c.clients {
		if _, err := client.Abort(ctx, &wire.AbortRequest{TransactionID: req.TransactionID}); err != nil {
			c.log.Warn("off-chain abort failed", "shard", shardID, "tx", req.TransactionID, "err", err)
			errs = multierr.Append(errs, err)
		}
	}

	for shardID, client := range c.clients {
		if _, err := client.ReclaimOnChain(ctx, &wire.OnChainRequest{TransactionID: req.TransactionID}); err != nil {
			c.log.Warn("reclaim-on-chain failed", "shard", shardID, "tx", req.TransactionID, "err", err)
			errs = multierr.Append(errs, err)
		}
	}

	if errs != nil {
		c.log.Warn("abort completed with per-shard failures", "tx", req.TransactionID, "errs", errs)
	}

	c.mu.Lock()
	delete(c.txMeta, id)
	c.mu.Unlock()

	return &wire.Empty{}, nil
}

var _ wire.CoordinatorServer = (*Coordinator)(nil)
