// Package config loads the three JSON registries that wire a coordinator
// and its shards together: shard service addresses, shard blockchain RPC
// endpoints, and each shard's escrow contract address.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the loaded, validated view of config/shards.json,
// config/shard_rpcs.json and config/adapters.json.
type Config struct {
	// ShardAddrs maps shard_id to the shard service's host:port.
	ShardAddrs map[string]string
	// ShardRPCs maps shard_id to that shard's blockchain JSON-RPC endpoint.
	ShardRPCs map[string]string
	// Adapters maps shard_id to that shard's escrow contract address
	// (normalized to EIP-55 checksum case).
	Adapters map[string]common.Address
}

// Load reads shards.json, shard_rpcs.json and adapters.json from baseDir
// and validates that every shard_id in shards.json also appears in
// shard_rpcs.json and adapters.json. Ids present only in the latter two are
// not rejected.
func Load(baseDir string) (*Config, error) {
	shardAddrs, err := loadStringMap(filepath.Join(baseDir, "shards.json"))
	if err != nil {
		return nil, fmt.Errorf("loading shards.json: %w", err)
	}
	shardRPCs, err := loadStringMap(filepath.Join(baseDir, "shard_rpcs.json"))
	if err != nil {
		return nil, fmt.Errorf("loading shard_rpcs.json: %w", err)
	}
	rawAdapters, err := loadStringMap(filepath.Join(baseDir, "adapters.json"))
	if err != nil {
		return nil, fmt.Errorf("loading adapters.json: %w", err)
	}

	adapters := make(map[string]common.Address, len(rawAdapters))
	for shardID, addr := range rawAdapters {
		adapters[shardID] = common.HexToAddress(addr)
	}

	for shardID := range shardAddrs {
		if _, ok := shardRPCs[shardID]; !ok {
			return nil, fmt.Errorf("shard %q present in shards.json but missing from shard_rpcs.json", shardID)
		}
		if _, ok := adapters[shardID]; !ok {
			return nil, fmt.Errorf("shard %q present in shards.json but missing from adapters.json", shardID)
		}
	}

	return &Config{ShardAddrs: shardAddrs, ShardRPCs: shardRPCs, Adapters: adapters}, nil
}

func loadStringMap(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// SigningKeyEnvVar returns the environment variable name a shard reads its
// signing key from, e.g. shard id "shardA" -> "SHARDA_KEY".
func SigningKeyEnvVar(shardID string) string {
	upper := make([]byte, 0, len(shardID))
	for i := 0; i < len(shardID); i++ {
		c := shardID[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = append(upper, c)
	}
	return string(upper) + "_KEY"
}
