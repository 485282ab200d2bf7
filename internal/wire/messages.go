// Package wire defines the RPC message shapes and gRPC service descriptors
// exchanged between a Coordinator and its ShardParticipants.
//
// Stub generation from a .proto file is outside this module's scope; these
// are hand-written Go structs carried over gRPC using a small gob-based
// codec (see codec.go) instead of generated proto.Message marshaling.
package wire

// VoteStatus is a shard's vote in response to a PrepareRequest.
type VoteStatus int32

const (
	VoteReady VoteStatus = 0
	VoteAbort VoteStatus = 1
)

func (v VoteStatus) String() string {
	if v == VoteReady {
		return "READY"
	}
	return "ABORT"
}

// PrepareRequest asks a shard to stage operations and vote on whether it
// can commit them.
type PrepareRequest struct {
	TransactionID    string
	Operations       []string
	TimeoutBlocks    int32
	OnchainRecipient string
	OnchainAmount    uint64
}

// PrepareResponse is a shard's vote on a PrepareRequest.
type PrepareResponse struct {
	Status  VoteStatus
	ShardID string
}

// CommitRequest asks a shard to apply its staged operations.
type CommitRequest struct {
	TransactionID string
}

// AbortRequest asks a shard to discard its staged operations.
type AbortRequest struct {
	TransactionID string
}

// RollbackRequest asks a shard to discard a transaction's staged
// operations off-chain, exactly as an AbortRequest does.
type RollbackRequest struct {
	TransactionID string
}

// OnChainRequest names the transaction an on-chain operation (Commit or
// Reclaim) applies to.
type OnChainRequest struct {
	TransactionID string
}

// LockRequest asks a shard to lock funds into pending escrow on-chain.
type LockRequest struct {
	TransactionID string
	Recipient     string
	Amount        uint64
	Deadline      uint64
}

// TxHash is the transaction hash of a submitted on-chain call.
type TxHash struct {
	Hash string
}

// Empty is returned by RPCs with no meaningful response payload.
type Empty struct{}
