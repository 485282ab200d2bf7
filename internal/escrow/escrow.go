// Package escrow drives a shard's on-chain EscrowAdapter contract: locking
// funds into pending escrow, committing a pending escrow to its recipient,
// and reclaiming a pending escrow back to the shard's own account once its
// deadline has passed.
//
// Every send reads a fresh nonce from the chain (eth_getTransactionCount,
// "pending") rather than reserving one locally; callers are responsible for
// serializing sends for a given shard's signing account.
package escrow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	ethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/atomic2pc/atomic2pc/internal/chainerr"
	"github.com/atomic2pc/atomic2pc/internal/jsonrpc"
	"github.com/atomic2pc/atomic2pc/internal/txid"
)

const (
	gasLimitLock    = 200_000
	gasLimitCommit  = 100_000
	gasLimitReclaim = 100_000

	receiptPollInterval = 500 * time.Millisecond
	receiptPollTimeout  = 2 * time.Minute
)

// Adapter is the on-chain driver for a single shard's escrow contract.
type Adapter struct {
	client   jsonrpc.Client
	contract common.Address
	abi      ethabi.ABI
	signer   *signer
}

// New builds an Adapter. abiJSON is the EscrowAdapter ABI JSON (see
// abi/EscrowAdapter.json); privateKeyHex is the shard's signing key.
func New(client jsonrpc.Client, contract common.Address, abiJSON []byte, privateKeyHex string, chainID *big.Int) (*Adapter, error) {
	parsedABI, err := ethabi.JSON(bytes.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing escrow adapter abi: %w", err)
	}

	s, err := newSigner(privateKeyHex, chainID)
	if err != nil {
		return nil, err
	}

	return &Adapter{client: client, contract: contract, abi: parsedABI, signer: s}, nil
}

// Lock calls lock(txId, recipient, deadline) with amountWei attached as the
// transaction value.
func (a *Adapter) Lock(ctx context.Context, id txid.ID, recipient common.Address, amountWei *big.Int, deadline uint64) (common.Hash, error) {
	key, err := id.ToOnChainKey()
	if err != nil {
		return common.Hash{}, chainerr.NewNonRetryable(chainerr.Internal, "invalid transaction id", err)
	}

	data, err := a.abi.Pack("lock", key, recipient, new(big.Int).SetUint64(deadline))
	if err != nil {
		return common.Hash{}, chainerr.NewNonRetryable(chainerr.Internal, "encoding lock calldata", err)
	}

	hash, status, err := a.send(ctx, data, amountWei, gasLimitLock)
	if err != nil {
		return common.Hash{}, err
	}
	if status != types.ReceiptStatusSuccessful {
		return hash, chainerr.NewNonRetryable(chainerr.OnChainReverted, "lock reverted", nil)
	}
	return hash, nil
}

// Commit calls commit(txId). A revert (past deadline, or the escrow is not
// Pending) is reported as FailedPrecondition.
func (a *Adapter) Commit(ctx context.Context, id txid.ID) (common.Hash, error) {
	return a.callNoValue(ctx, "commit", id, gasLimitCommit,
		"CommitOnChain reverted (past deadline or not pending)")
}

// Reclaim calls reclaim(txId). A revert (too early, or the escrow is not
// Pending) is reported as FailedPrecondition.
func (a *Adapter) Reclaim(ctx context.Context, id txid.ID) (common.Hash, error) {
	return a.callNoValue(ctx, "reclaim", id, gasLimitReclaim,
		"ReclaimOnChain reverted (too early or not pending)")
}

func (a *Adapter) callNoValue(ctx context.Context, method string, id txid.ID, gasLimit uint64, revertMessage string) (common.Hash, error) {
	key, err := id.ToOnChainKey()
	if err != nil {
		return common.Hash{}, chainerr.NewNonRetryable(chainerr.Internal, "invalid transaction id", err)
	}

	data, err := a.abi.Pack(method, key)
	if err != nil {
		return common.Hash{}, chainerr.NewNonRetryable(chainerr.Internal, fmt.Sprintf("encoding %s calldata", method), err)
	}

	hash, status, err := a.send(ctx, data, big.NewInt(0), gasLimit)
	if err != nil {
		return common.Hash{}, chainerr.NewNonRetryable(chainerr.Internal, err.Error(), err)
	}
	if status != types.ReceiptStatusSuccessful {
		return hash, chainerr.NewNonRetryable(chainerr.FailedPrecondition, revertMessage, nil)
	}
	return hash, nil
}

// send builds, signs and submits a transaction calling the escrow contract
// with the given calldata and value, then waits for its receipt.
func (a *Adapter) send(ctx context.Context, data []byte, value *big.Int, gasLimit uint64) (common.Hash, uint64, error) {
	nonce, err := a.nonce(ctx)
	if err != nil {
		return common.Hash{}, 0, err
	}

	gasPrice, err := a.gasPrice(ctx)
	if err != nil {
		return common.Hash{}, 0, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &a.contract,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signedTx, err := a.signer.signTransaction(tx)
	if err != nil {
		return common.Hash{}, 0, chainerr.NewNonRetryable(chainerr.Internal, "signing transaction", err)
	}

	raw, err := signedTx.MarshalBinary()
	if err != nil {
		return common.Hash{}, 0, chainerr.NewNonRetryable(chainerr.Internal, "encoding signed transaction", err)
	}

	result, err := a.client.Call(ctx, "eth_sendRawTransaction", []interface{}{hexutil.Encode(raw)})
	if err != nil {
		return common.Hash{}, 0, chainerr.NewRetryable(chainerr.RpcUnavailable, "eth_sendRawTransaction failed", err)
	}

	var txHashHex string
	if err := json.Unmarshal(result, &txHashHex); err != nil {
		return common.Hash{}, 0, chainerr.NewNonRetryable(chainerr.Internal, "parsing sendRawTransaction result", err)
	}
	txHash := common.HexToHash(txHashHex)

	status, err := a.waitForReceipt(ctx, txHash)
	if err != nil {
		return txHash, 0, err
	}
	return txHash, status, nil
}

func (a *Adapter) nonce(ctx context.Context) (uint64, error) {
	result, err := a.client.Call(ctx, "eth_getTransactionCount", []interface{}{a.signer.Address().Hex(), "pending"})
	if err != nil {
		return 0, chainerr.NewRetryable(chainerr.RpcUnavailable, "eth_getTransactionCount failed", err)
	}
	var nonceHex string
	if err := json.Unmarshal(result, &nonceHex); err != nil {
		return 0, chainerr.NewNonRetryable(chainerr.Internal, "parsing nonce", err)
	}
	return hexutil.DecodeUint64(nonceHex)
}

func (a *Adapter) gasPrice(ctx context.Context) (*big.Int, error) {
	result, err := a.client.Call(ctx, "eth_gasPrice", nil)
	if err != nil {
		return nil, chainerr.NewRetryable(chainerr.RpcUnavailable, "eth_gasPrice failed", err)
	}
	var priceHex string
	if err := json.Unmarshal(result, &priceHex); err != nil {
		return nil, chainerr.NewNonRetryable(chainerr.Internal, "parsing gas price", err)
	}
	return hexutil.DecodeBig(priceHex)
}

func (a *Adapter) waitForReceipt(ctx context.Context, txHash common.Hash) (uint64, error) {
	deadline := time.Now().Add(receiptPollTimeout)

	for time.Now().Before(deadline) {
		result, err := a.client.Call(ctx, "eth_getTransactionReceipt", []interface{}{txHash.Hex()})
		if err == nil && !bytes.Equal(result, []byte("null")) && len(result) > 0 {
			var receipt struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(result, &receipt); err == nil && receipt.Status != "" {
				status, err := hexutil.DecodeUint64(receipt.Status)
				if err != nil {
					return 0, chainerr.NewNonRetryable(chainerr.Internal, "parsing receipt status", err)
				}
				return status, nil
			}
		}

		select {
		case <-ctx.Done():
			return 0, chainerr.NewRetryable(chainerr.RpcUnavailable, "context cancelled waiting for receipt", ctx.Err())
		case <-time.After(receiptPollInterval):
		}
	}

	return 0, chainerr.NewRetryable(chainerr.RpcUnavailable, "timed out waiting for transaction receipt", nil)
}
