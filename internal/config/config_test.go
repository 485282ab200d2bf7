package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigDir(t *testing.T, shards, rpcs, adapters string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shards.json"), []byte(shards), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shard_rpcs.json"), []byte(rpcs), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "adapters.json"), []byte(adapters), 0o644))
	return dir
}

func TestLoadValidConfig(t *testing.T) {
	dir := writeConfigDir(t,
		`{"shardA": "localhost:60051"}`,
		`{"shardA": "http://localhost:8545"}`,
		`{"shardA": "0x5FbDB2315678afecb367f032d93F642f64180aa3"}`,
	)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "localhost:60051", cfg.ShardAddrs["shardA"])
	assert.Equal(t, "http://localhost:8545", cfg.ShardRPCs["shardA"])
	assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", cfg.Adapters["shardA"].Hex())
}

func TestLoadRejectsMissingShardRPC(t *testing.T) {
	dir := writeConfigDir(t,
		`{"shardA": "localhost:60051", "shardB": "localhost:60052"}`,
		`{"shardA": "http://localhost:8545"}`,
		`{"shardA": "0x5FbDB2315678afecb367f032d93F642f64180aa3", "shardB": "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"}`,
	)

	_, err := Load(dir)
	require.Error(t, err)
}

func TestSigningKeyEnvVar(t *testing.T) {
	assert.Equal(t, "SHARDA_KEY", SigningKeyEnvVar("shardA"))
	assert.Equal(t, "SHARD_B_KEY", SigningKeyEnvVar("shard_b"))
}
