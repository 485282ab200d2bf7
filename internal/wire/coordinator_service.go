package wire

import (
	"context"
	"io"

	"google.golang.org/grpc"
)

// CoordinatorPrepareServer is the server-side handle for the streaming
// Prepare RPC: one PrepareResponse is sent per shard vote as it arrives.
type CoordinatorPrepareServer interface {
	Send(*PrepareResponse) error
	grpc.ServerStream
}

// CoordinatorServer is the RPC surface a coordinator process exposes to
// clients submitting cross-shard transactions.
type CoordinatorServer interface {
	Prepare(req *PrepareRequest, stream CoordinatorPrepareServer) error
	Commit(ctx context.Context, req *CommitRequest) (*Empty, error)
	Abort(ctx context.Context, req *AbortRequest) (*Empty, error)
}

// CoordinatorServiceDesc is the hand-written equivalent of a
// protoc-generated _CoordinatorService_serviceDesc.
var CoordinatorServiceDesc = grpc.ServiceDesc{
	ServiceName: "atomic2pc.CoordinatorService",
	HandlerType: (*CoordinatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Commit", Handler: coordinatorCommitHandler},
		{MethodName: "Abort", Handler: coordinatorAbortHandler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Prepare",
			Handler:       coordinatorPrepareHandler,
			ServerStreams: true,
		},
	},
	Metadata: "atomic2pc/coordinator.proto",
}

func coordinatorPrepareHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(PrepareRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(CoordinatorServer).Prepare(req, &coordinatorPrepareServerStream{stream})
}

type coordinatorPrepareServerStream struct {
	grpc.ServerStream
}

func (s *coordinatorPrepareServerStream) Send(resp *PrepareResponse) error {
	return s.ServerStream.SendMsg(resp)
}

func coordinatorCommitHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CommitRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).Commit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/atomic2pc.CoordinatorService/Commit"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CoordinatorServer).Commit(ctx, req.(*CommitRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func coordinatorAbortHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(AbortRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CoordinatorServer).Abort(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/atomic2pc.CoordinatorService/Abort"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CoordinatorServer).Abort(ctx, req.(*AbortRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterCoordinatorServer attaches srv's handlers to s under
// CoordinatorServiceDesc.
func RegisterCoordinatorServer(s grpc.ServiceRegistrar, srv CoordinatorServer) {
	s.RegisterService(&CoordinatorServiceDesc, srv)
}

// CoordinatorClient is a thin client stub over a grpc.ClientConnInterface.
type CoordinatorClient struct {
	cc grpc.ClientConnInterface
}

func NewCoordinatorClient(cc grpc.ClientConnInterface) *CoordinatorClient {
	return &CoordinatorClient{cc: cc}
}

// CoordinatorPrepareClient is the client-side handle for the streaming
// Prepare RPC.
type CoordinatorPrepareClient interface {
	Recv() (*PrepareResponse, error)
	grpc.ClientStream
}

type coordinatorPrepareClientStream struct {
	grpc.ClientStream
}

func (s *coordinatorPrepareClientStream) Recv() (*PrepareResponse, error) {
	resp := new(PrepareResponse)
	if err := s.ClientStream.RecvMsg(resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *CoordinatorClient) Prepare(ctx context.Context, req *PrepareRequest) (CoordinatorPrepareClient, error) {
	stream, err := c.cc.NewStream(ctx, &CoordinatorServiceDesc.Streams[0], "/atomic2pc.CoordinatorService/Prepare")
	if err != nil {
		return nil, err
	}
	wrapped := &coordinatorPrepareClientStream{stream}
	if err := wrapped.SendMsg(req); err != nil {
		return nil, err
	}
	if err := wrapped.CloseSend(); err != nil {
		return nil, err
	}
	return wrapped, nil
}

func (c *CoordinatorClient) Commit(ctx context.Context, req *CommitRequest) (*Empty, error) {
	out := new(Empty)
	if err := c.cc.Invoke(ctx, "/atomic2pc.CoordinatorService/Commit", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *CoordinatorClient) Abort(ctx context.Context, req *AbortRequest) (*Empty, error) {
	out := new(Empty)
	if err := c.cc.Invoke(ctx, "/atomic2pc.CoordinatorService/Abort", req, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DrainPrepareVotes reads every vote from a CoordinatorPrepareClient until
// the stream ends, for callers (tests, simple CLIs) that want the full
// vote set rather than processing it incrementally.
func DrainPrepareVotes(stream CoordinatorPrepareClient) ([]*PrepareResponse, error) {
	var votes []*PrepareResponse
	for {
		vote, err := stream.Recv()
		if err == io.EOF {
			return votes, nil
		}
		if err != nil {
			return votes, err
		}
		votes = append(votes, vote)
	}
}
