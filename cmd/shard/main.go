// Command shard runs a single ShardParticipant, serving the ShardService
// RPC surface for a coordinator to drive.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"net"
	"os"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/atomic2pc/atomic2pc/internal/config"
	"github.com/atomic2pc/atomic2pc/internal/deadline"
	"github.com/atomic2pc/atomic2pc/internal/escrow"
	"github.com/atomic2pc/atomic2pc/internal/jsonrpc"
	"github.com/atomic2pc/atomic2pc/internal/logging"
	"github.com/atomic2pc/atomic2pc/internal/oracle"
	"github.com/atomic2pc/atomic2pc/internal/shard"
	"github.com/atomic2pc/atomic2pc/internal/wire"
)

func main() {
	id := flag.String("id", "", "shard id, as it appears in config/shards.json")
	port := flag.Int("port", 0, "TCP port to serve the shard RPC surface on")
	configDir := flag.String("config", "config", "directory containing shards.json, shard_rpcs.json, adapters.json")
	abiPath := flag.String("abi", "abi/EscrowAdapter.json", "path to the escrow adapter ABI JSON")
	flag.Parse()

	if *id == "" || *port == 0 {
		fmt.Fprintln(os.Stderr, "usage: shard --id <shard_id> --port <port>")
		os.Exit(2)
	}

	_ = godotenv.Load()

	log := logging.New(logging.Config{Level: "info", Format: "json"})

	if err := run(*id, *port, *configDir, *abiPath, log); err != nil {
		log.Error("shard exited", "id", *id, "err", err)
		os.Exit(1)
	}
}

func run(shardID string, port int, configDir, abiPath string, log *logging.Logger) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	rpcURL, ok := cfg.ShardRPCs[shardID]
	if !ok {
		return fmt.Errorf("shard %q has no entry in shard_rpcs.json", shardID)
	}
	contractAddr, ok := cfg.Adapters[shardID]
	if !ok {
		return fmt.Errorf("shard %q has no entry in adapters.json", shardID)
	}

	chainClient, err := jsonrpc.NewHTTPClient([]string{rpcURL}, 30*time.Second, nil)
	if err != nil {
		return fmt.Errorf("building chain rpc client: %w", err)
	}

	chainID, err := fetchChainID(chainClient)
	if err != nil {
		return fmt.Errorf("fetching chain id: %w", err)
	}

	abiJSON, err := os.ReadFile(abiPath)
	if err != nil {
		return fmt.Errorf("reading escrow adapter abi: %w", err)
	}

	privateKey := os.Getenv(config.SigningKeyEnvVar(shardID))
	if privateKey == "" {
		return fmt.Errorf("environment variable %s is not set", config.SigningKeyEnvVar(shardID))
	}

	escrowAdapter, err := escrow.New(chainClient, contractAddr, abiJSON, privateKey, chainID)
	if err != nil {
		return fmt.Errorf("building escrow adapter: %w", err)
	}

	clock := deadline.New(oracle.New(chainClient))
	participant := shard.New(shardID, escrowAdapter, clock, log)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listening on port %d: %w", port, err)
	}

	server := grpc.NewServer()
	wire.RegisterShardServer(server, participant)

	log.Info("shard serving", "id", shardID, "port", port, "contract", contractAddr.Hex())
	return server.Serve(lis)
}

func fetchChainID(client jsonrpc.Client) (*big.Int, error) {
	result, err := client.Call(context.Background(), "eth_chainId", nil)
	if err != nil {
		return nil, err
	}
	var hex string
	if err := json.Unmarshal(result, &hex); err != nil {
		return nil, err
	}
	n := new(big.Int)
	if _, ok := n.SetString(trimHexPrefix(hex), 16); !ok {
		return nil, fmt.Errorf("invalid chain id %q", hex)
	}
	return n, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[:2] == "0x" {
		return s[2:]
	}
	return s
}
