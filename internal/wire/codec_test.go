package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGobCodecRoundTripsPrepareRequest(t *testing.T) {
	var c gobCodec
	in := &PrepareRequest{
		TransactionID:    "tx1",
		Operations:       []string{"SET x 1", "SET y hello world"},
		TimeoutBlocks:    42,
		OnchainRecipient: "0xabc",
		OnchainAmount:    1000,
	}

	data, err := c.Marshal(in)
	require.NoError(t, err)

	out := new(PrepareRequest)
	require.NoError(t, c.Unmarshal(data, out))
	assert.Equal(t, in, out)
}

func TestGobCodecRoundTripsPrepareResponse(t *testing.T) {
	var c gobCodec
	in := &PrepareResponse{Status: VoteAbort, ShardID: "shardB"}

	data, err := c.Marshal(in)
	require.NoError(t, err)

	out := new(PrepareResponse)
	require.NoError(t, c.Unmarshal(data, out))
	assert.Equal(t, in, out)
}

func TestGobCodecName(t *testing.T) {
	var c gobCodec
	assert.Equal(t, "gob2pc", c.Name())
	assert.Equal(t, CodecName, c.Name())
}

func TestVoteStatusString(t *testing.T) {
	assert.Equal(t, "READY", VoteReady.String())
	assert.Equal(t, "ABORT", VoteAbort.String())
}
