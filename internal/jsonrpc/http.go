package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient implements Client over HTTP with round-robin, health-aware
// failover across multiple endpoints for a single shard's chain.
type HTTPClient struct {
	endpoints     []string
	currentIndex  int
	healthTracker HealthTracker
	httpClient    *http.Client
	requestID     atomic.Int64
	mu            sync.RWMutex
}

// NewHTTPClient builds an HTTPClient. If healthTracker is nil a
// SimpleHealthTracker is created.
func NewHTTPClient(endpoints []string, timeout time.Duration, healthTracker HealthTracker) (*HTTPClient, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}
	if healthTracker == nil {
		healthTracker = NewSimpleHealthTracker()
	}
	return &HTTPClient{
		endpoints:     endpoints,
		healthTracker: healthTracker,
		httpClient:    &http.Client{Timeout: timeout},
	}, nil
}

func (c *HTTPClient) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	var lastErr error
	attempted := make(map[string]bool, len(c.endpoints))

	for len(attempted) < len(c.endpoints) {
		endpoint := c.getNextHealthyEndpoint(attempted)
		if endpoint == "" {
			break
		}
		attempted[endpoint] = true

		result, err := c.callEndpoint(ctx, endpoint, method, params)
		if err == nil {
			return result, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("all RPC endpoints failed, last error: %w", lastErr)
}

func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) callEndpoint(ctx context.Context, endpoint, method string, params interface{}) (json.RawMessage, error) {
	start := time.Now()

	reqID := c.requestID.Add(1)
	body, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      reqID,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.healthTracker.RecordFailure(endpoint, err)
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.healthTracker.RecordFailure(endpoint, err)
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.healthTracker.RecordFailure(endpoint, fmt.Errorf("http %d", resp.StatusCode))
		return nil, fmt.Errorf("http error %d: %s", resp.StatusCode, string(respBody))
	}

	var rpcResp Response
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		c.healthTracker.RecordFailure(endpoint, err)
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if rpcResp.Error != nil {
		c.healthTracker.RecordFailure(endpoint, rpcResp.Error)
		return nil, fmt.Errorf("rpc error: %s", rpcResp.Error.Message)
	}

	c.healthTracker.RecordSuccess(endpoint, time.Since(start).Milliseconds())
	return rpcResp.Result, nil
}

func (c *HTTPClient) getNextHealthyEndpoint(attempted map[string]bool) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i := 0; i < len(c.endpoints); i++ {
		idx := (c.currentIndex + i) % len(c.endpoints)
		endpoint := c.endpoints[idx]
		if attempted[endpoint] {
			continue
		}
		if c.healthTracker.IsHealthy(endpoint) {
			c.currentIndex = (idx + 1) % len(c.endpoints)
			return endpoint
		}
	}

	for _, endpoint := range c.endpoints {
		if !attempted[endpoint] {
			return endpoint
		}
	}
	return ""
}
