package jsonrpc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHealthyByDefaultForUnknownEndpoint(t *testing.T) {
	tracker := NewSimpleHealthTracker()
	assert.True(t, tracker.IsHealthy("http://unseen:8545"))
}

func TestCircuitOpensAfterThreeConsecutiveFailures(t *testing.T) {
	tracker := NewSimpleHealthTracker()
	endpoint := "http://node:8545"

	tracker.RecordFailure(endpoint, errors.New("timeout"))
	assert.True(t, tracker.IsHealthy(endpoint), "one failure must not open the circuit")

	tracker.RecordFailure(endpoint, errors.New("timeout"))
	assert.True(t, tracker.IsHealthy(endpoint), "two failures must not open the circuit")

	tracker.RecordFailure(endpoint, errors.New("timeout"))
	assert.False(t, tracker.IsHealthy(endpoint), "a third consecutive failure must open the circuit")
}

func TestCircuitClosesOnceSuccessesOutweighFailuresByThreshold(t *testing.T) {
	tracker := NewSimpleHealthTracker()
	endpoint := "http://node:8545"

	for i := 0; i < 3; i++ {
		tracker.RecordFailure(endpoint, errors.New("timeout"))
	}
	require := assert.New(t)
	require.False(tracker.IsHealthy(endpoint))

	tracker.circuitOpenWindow = 0
	tracker.RecordSuccess(endpoint, 10)
	require.True(tracker.IsHealthy(endpoint), "circuitOpenWindow elapsed, endpoint treated as retryable")

	h := tracker.getOrCreate(endpoint)
	require.True(h.CircuitOpen, "CircuitOpen flag itself only clears once SuccessfulCalls outweighs FailedCalls by the success threshold")

	for i := 0; i < 4; i++ {
		tracker.RecordSuccess(endpoint, 10)
	}
	require.False(tracker.getOrCreate(endpoint).CircuitOpen)
}

func TestRecordSuccessTracksRunningAverageLatency(t *testing.T) {
	tracker := NewSimpleHealthTracker()
	endpoint := "http://node:8545"

	tracker.RecordSuccess(endpoint, 100)
	h := tracker.getOrCreate(endpoint)
	assert.Equal(t, int64(100), h.AvgLatencyMs)

	tracker.RecordSuccess(endpoint, 200)
	h = tracker.getOrCreate(endpoint)
	assert.Equal(t, int64(110), h.AvgLatencyMs)
}
