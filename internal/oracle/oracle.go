// Package oracle reads the current block height of a shard's blockchain,
// without caching, so that deadlines computed from it stay accurate across
// calls.
package oracle

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/atomic2pc/atomic2pc/internal/chainerr"
	"github.com/atomic2pc/atomic2pc/internal/jsonrpc"
)

// BlockHeightOracle reads a single chain's current block height on demand.
type BlockHeightOracle struct {
	client jsonrpc.Client
}

// New builds a BlockHeightOracle over the given JSON-RPC client.
func New(client jsonrpc.Client) *BlockHeightOracle {
	return &BlockHeightOracle{client: client}
}

// Current returns the chain's current block height. It never caches: every
// call issues a fresh eth_blockNumber request.
func (o *BlockHeightOracle) Current(ctx context.Context) (uint64, error) {
	result, err := o.client.Call(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, chainerr.NewRetryable(chainerr.RpcUnavailable, "eth_blockNumber rpc failed", err)
	}

	var heightHex string
	if err := json.Unmarshal(result, &heightHex); err != nil {
		return 0, chainerr.NewNonRetryable(chainerr.Internal, "failed to parse block number", err)
	}

	height, err := hexutil.DecodeUint64(heightHex)
	if err != nil {
		return 0, chainerr.NewNonRetryable(chainerr.Internal, fmt.Sprintf("failed to decode block number %q", heightHex), err)
	}

	return height, nil
}
