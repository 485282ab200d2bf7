package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/atomic2pc/atomic2pc/internal/deadline"
	"github.com/atomic2pc/atomic2pc/internal/logging"
	"github.com/atomic2pc/atomic2pc/internal/oracle"
	"github.com/atomic2pc/atomic2pc/internal/wire"
)

type fixedHeightClient struct{ height uint64 }

func (f *fixedHeightClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	return json.Marshal("0x64")
}
func (f *fixedHeightClient) Close() error { return nil }

// mockShard is an in-memory stand-in for a gRPC-connected shard.
type mockShard struct {
	id string

	mu             sync.Mutex
	voteOverride   *wire.PrepareResponse
	prepareErr     error
	commitCalled   bool
	abortCalled    bool
	lockCalls      []*wire.LockRequest
	commitOnChain  int
	reclaimOnChain int
	reclaimErr     error
}

func (m *mockShard) Prepare(ctx context.Context, req *wire.PrepareRequest) (*wire.PrepareResponse, error) {
	if m.prepareErr != nil {
		return nil, m.prepareErr
	}
	if m.voteOverride != nil {
		return m.voteOverride, nil
	}
	return &wire.PrepareResponse{Status: wire.VoteReady, ShardID: m.id}, nil
}

func (m *mockShard) Commit(ctx context.Context, req *wire.CommitRequest) (*wire.Empty, error) {
	m.mu.Lock()
	m.commitCalled = true
	m.mu.Unlock()
	return &wire.Empty{}, nil
}

func (m *mockShard) Abort(ctx context.Context, req *wire.AbortRequest) (*wire.Empty, error) {
	m.mu.Lock()
	m.abortCalled = true
	m.mu.Unlock()
	return &wire.Empty{}, nil
}

func (m *mockShard) LockOnChain(ctx context.Context, req *wire.LockRequest) (*wire.TxHash, error) {
	m.mu.Lock()
	m.lockCalls = append(m.lockCalls, req)
	m.mu.Unlock()
	return &wire.TxHash{Hash: "0xlock"}, nil
}

func (m *mockShard) CommitOnChain(ctx context.Context, req *wire.OnChainRequest) (*wire.TxHash, error) {
	m.mu.Lock()
	m.commitOnChain++
	m.mu.Unlock()
	return &wire.TxHash{Hash: "0xcommit"}, nil
}

func (m *mockShard) ReclaimOnChain(ctx context.Context, req *wire.OnChainRequest) (*wire.TxHash, error) {
	m.mu.Lock()
	m.reclaimOnChain++
	m.mu.Unlock()
	if m.reclaimErr != nil {
		return nil, m.reclaimErr
	}
	return &wire.TxHash{Hash: "0xreclaim"}, nil
}

type recordingStream struct {
	ctx   context.Context
	mu    sync.Mutex
	votes []*wire.PrepareResponse
}

func (s *recordingStream) Send(resp *wire.PrepareResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.votes = append(s.votes, resp)
	return nil
}
func (s *recordingStream) Context() context.Context       { return s.ctx }
func (s *recordingStream) SendMsg(m interface{}) error    { return nil }
func (s *recordingStream) RecvMsg(m interface{}) error    { return nil }
func (s *recordingStream) SetHeader(_ metadata.MD) error  { return nil }
func (s *recordingStream) SendHeader(_ metadata.MD) error { return nil }
func (s *recordingStream) SetTrailer(_ metadata.MD)       {}

func newTestCoordinator(shards map[string]*mockShard) *Coordinator {
	clients := make(map[string]ShardClient, len(shards))
	clocks := make(map[string]*deadline.Tracker, len(shards))
	for id, shard := range shards {
		clients[id] = shard
		clocks[id] = deadline.New(oracle.New(&fixedHeightClient{height: 100}))
	}
	return New(clients, clocks, DefaultTimeoutBlocks, logging.New(logging.Config{Level: "error"}))
}

func TestPrepareStreamsAllVotes(t *testing.T) {
	shards := map[string]*mockShard{"shardA": {id: "shardA"}, "shardB": {id: "shardB"}}
	c := newTestCoordinator(shards)

	stream := &recordingStream{ctx: context.Background()}
	err := c.Prepare(&wire.PrepareRequest{TransactionID: "tx1", TimeoutBlocks: 10}, stream)
	require.NoError(t, err)
	assert.Len(t, stream.votes, 2)
}

func TestPrepareSynthesizesAbortForUnreachableShard(t *testing.T) {
	shards := map[string]*mockShard{
		"shardA": {id: "shardA", prepareErr: errors.New("connection refused")},
	}
	c := newTestCoordinator(shards)

	stream := &recordingStream{ctx: context.Background()}
	err := c.Prepare(&wire.PrepareRequest{TransactionID: "tx1", TimeoutBlocks: 10}, stream)
	require.NoError(t, err)
	require.Len(t, stream.votes, 1)
	assert.Equal(t, wire.VoteAbort, stream.votes[0].Status)
	assert.Equal(t, "shardA", stream.votes[0].ShardID)
}

func TestCommitLocksThenAppliesThenFinalizes(t *testing.T) {
	shardA := &mockShard{id: "shardA"}
	c := newTestCoordinator(map[string]*mockShard{"shardA": shardA})

	stream := &recordingStream{ctx: context.Background()}
	require.NoError(t, c.Prepare(&wire.PrepareRequest{
		TransactionID:    "tx1",
		TimeoutBlocks:    10,
		OnchainRecipient: "0xabc",
		OnchainAmount:    1000,
	}, stream))

	_, err := c.Commit(context.Background(), &wire.CommitRequest{TransactionID: "tx1"})
	require.NoError(t, err)

	require.Len(t, shardA.lockCalls, 1)
	assert.Equal(t, "0xabc", shardA.lockCalls[0].Recipient)
	assert.Equal(t, uint64(1000), shardA.lockCalls[0].Amount)
	assert.True(t, shardA.commitCalled)
	assert.Equal(t, 1, shardA.commitOnChain)

	_, ok := c.txMeta["tx1"]
	assert.False(t, ok, "Commit should clear transaction metadata once finished")
}

func TestCommitOnUnknownTransactionFails(t *testing.T) {
	c := newTestCoordinator(map[string]*mockShard{"shardA": {id: "shardA"}})
	_, err := c.Commit(context.Background(), &wire.CommitRequest{TransactionID: "never-prepared"})
	require.Error(t, err)
}

func TestAbortReclaimsUnconditionally(t *testing.T) {
	shardA := &mockShard{id: "shardA"}
	c := newTestCoordinator(map[string]*mockShard{"shardA": shardA})

	stream := &recordingStream{ctx: context.Background()}
	require.NoError(t, c.Prepare(&wire.PrepareRequest{TransactionID: "tx1", TimeoutBlocks: 10}, stream))

	_, err := c.Abort(context.Background(), &wire.AbortRequest{TransactionID: "tx1"})
	require.NoError(t, err)

	assert.True(t, shardA.abortCalled)
	assert.Equal(t, 1, shardA.reclaimOnChain, "Abort must reclaim even though no lock was ever attempted")
}

func TestAbortSurvivesPerShardReclaimFailure(t *testing.T) {
	shardA := &mockShard{id: "shardA", reclaimErr: errors.New("revert: not pending")}
	c := newTestCoordinator(map[string]*mockShard{"shardA": shardA})

	_, err := c.Abort(context.Background(), &wire.AbortRequest{TransactionID: "tx1"})
	require.NoError(t, err, "a reclaim revert on one shard must not fail the overall Abort call")
}
