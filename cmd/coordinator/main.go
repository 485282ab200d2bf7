// Command coordinator runs the cross-shard transaction coordinator,
// binding the CoordinatorService RPC surface on :50051.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/atomic2pc/atomic2pc/internal/config"
	"github.com/atomic2pc/atomic2pc/internal/coordinator"
	"github.com/atomic2pc/atomic2pc/internal/deadline"
	"github.com/atomic2pc/atomic2pc/internal/jsonrpc"
	"github.com/atomic2pc/atomic2pc/internal/logging"
	"github.com/atomic2pc/atomic2pc/internal/oracle"
	"github.com/atomic2pc/atomic2pc/internal/wire"
)

const listenAddr = ":50051"

func main() {
	_ = godotenv.Load()

	log := logging.New(logging.Config{Level: "info", Format: "json"})

	configDir := "config"
	if len(os.Args) > 1 {
		configDir = os.Args[1]
	}

	if err := run(configDir, log); err != nil {
		log.Error("coordinator exited", "err", err)
		os.Exit(1)
	}
}

func run(configDir string, log *logging.Logger) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	clients := make(map[string]coordinator.ShardClient, len(cfg.ShardAddrs))
	clocks := make(map[string]*deadline.Tracker, len(cfg.ShardAddrs))

	for shardID, addr := range cfg.ShardAddrs {
		conn, err := grpc.NewClient(addr,
			grpc.WithTransportCredentials(insecure.NewCredentials()),
			grpc.WithDefaultCallOptions(grpc.CallContentSubtype(wire.CodecName)),
		)
		if err != nil {
			return fmt.Errorf("dialing shard %q at %s: %w", shardID, addr, err)
		}
		clients[shardID] = wire.NewShardClient(conn)

		rpcURL, ok := cfg.ShardRPCs[shardID]
		if !ok {
			return fmt.Errorf("shard %q missing from shard_rpcs.json", shardID)
		}
		chainClient, err := jsonrpc.NewHTTPClient([]string{rpcURL}, 30*time.Second, nil)
		if err != nil {
			return fmt.Errorf("building chain rpc client for shard %q: %w", shardID, err)
		}
		clocks[shardID] = deadline.New(oracle.New(chainClient))
	}

	coord := coordinator.New(clients, clocks, coordinator.DefaultTimeoutBlocks, log)

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", listenAddr, err)
	}

	server := grpc.NewServer()
	wire.RegisterCoordinatorServer(server, coord)

	log.Info("coordinator serving", "addr", listenAddr, "shards", len(clients))
	return server.Serve(lis)
}
