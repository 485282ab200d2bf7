package wire

import (
	"context"

	"google.golang.org/grpc"
)

// ShardServer is the RPC surface a shard process exposes to its
// coordinator, per the off-chain and on-chain operations of a
// ShardParticipant.
type ShardServer interface {
	Prepare(ctx context.Context, req *PrepareRequest) (*PrepareResponse, error)
	Commit(ctx context.Context, req *CommitRequest) (*Empty, error)
	Abort(ctx context.Context, req *AbortRequest) (*Empty, error)
	Rollback(ctx context.Context, req *RollbackRequest) (*Empty, error)
	LockOnChain(ctx context.Context, req *LockRequest) (*TxHash, error)
	CommitOnChain(ctx context.Context, req *OnChainRequest) (*TxHash, error)
	ReclaimOnChain(ctx context.Context, req *OnChainRequest) (*TxHash, error)
}

// ShardServiceDesc is the hand-written equivalent of a protoc-generated
// _ShardService_serviceDesc.
var ShardServiceDesc = grpc.ServiceDesc{
	ServiceName: "atomic2pc.ShardService",
	HandlerType: (*ShardServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Prepare", Handler: shardPrepareHandler},
		{MethodName: "Commit", Handler: shardCommitHandler},
		{MethodName: "Abort", Handler: shardAbortHandler},
		{MethodName: "Rollback", Handler: shardRollbackHandler},
		{MethodName: "LockOnChain", Handler: shardLockOnChainHandler},
		{MethodName: "CommitOnChain", Handler: shardCommitOnChainHandler},
		{MethodName: "ReclaimOnChain", Handler: shardReclaimOnChainHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "atomic2pc/shard.proto",
}

func shardPrepareHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(PrepareRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShardServer).Prepare(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/atomic2pc.ShardService/Prepare"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShardServer).Prepare(ctx, req.(*PrepareRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func shardCommitHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CommitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShardServer).Commit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/atomic2pc.ShardService/Commit"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShardServer).Commit(ctx, req.(*CommitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func shardAbortHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AbortRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShardServer).Abort(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/atomic2pc.ShardService/Abort"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShardServer).Abort(ctx, req.(*AbortRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func shardRollbackHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RollbackRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShardServer).Rollback(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/atomic2pc.ShardService/Rollback"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShardServer).Rollback(ctx, req.(*RollbackRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func shardLockOnChainHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShardServer).LockOnChain(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/atomic2pc.ShardService/LockOnChain"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShardServer).LockOnChain(ctx, req.(*LockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func shardCommitOnChainHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(OnChainRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShardServer).CommitOnChain(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/atomic2pc.ShardService/CommitOnChain"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShardServer).CommitOnChain(ctx, req.(*OnChainRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func shardReclaimOnChainHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(OnChainRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ShardServer).ReclaimOnChain(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/atomic2pc.ShardService/ReclaimOnChain"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ShardServer).ReclaimOnChain(ctx, req.(*OnChainRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ShardClient is a thin client stub over a grpc.ClientConnInterface, the
// hand-written equivalent of a protoc-generated shard client.
type ShardClient struct {
	cc grpc.ClientConnInterface
}

func NewShardClient(cc grpc.ClientConnInterface) *ShardClient {
	return &ShardClient{cc: cc}
}

func (c *ShardClient) Prepare(ctx context.Context, req *PrepareRequest) (*PrepareResponse, error) {
	out := new(PrepareResponse)
	if err := c.cc.Invoke(ctx, "/atomic2pc.ShardService/Prepare", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ShardClient) Commit(ctx context.Context, req *CommitRequest) (*Empty, error) {
	out := new(Empty)
	if err := c.cc.Invoke(ctx, "/atomic2pc.ShardService/Commit", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ShardClient) Abort(ctx context.Context, req *AbortRequest) (*Empty, error) {
	out := new(Empty)
	if err := c.cc.Invoke(ctx, "/atomic2pc.ShardService/Abort", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ShardClient) Rollback(ctx context.Context, req *RollbackRequest) (*Empty, error) {
	out := new(Empty)
	if err := c.cc.Invoke(ctx, "/atomic2pc.ShardService/Rollback", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ShardClient) LockOnChain(ctx context.Context, req *LockRequest) (*TxHash, error) {
	out := new(TxHash)
	if err := c.cc.Invoke(ctx, "/atomic2pc.ShardService/LockOnChain", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ShardClient) CommitOnChain(ctx context.Context, req *OnChainRequest) (*TxHash, error) {
	out := new(TxHash)
	if err := c.cc.Invoke(ctx, "/atomic2pc.ShardService/CommitOnChain", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ShardClient) ReclaimOnChain(ctx context.Context, req *OnChainRequest) (*TxHash, error) {
	out := new(TxHash)
	if err := c.cc.Invoke(ctx, "/atomic2pc.ShardService/ReclaimOnChain", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// RegisterShardServer attaches srv's handlers to s under ShardServiceDesc.
func RegisterShardServer(s grpc.ServiceRegistrar, srv ShardServer) {
	s.RegisterService(&ShardServiceDesc, srv)
}
