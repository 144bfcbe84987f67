package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const serviceName = "tlc.Environment"

// EnvironmentServer is the server side of the environment service.
type EnvironmentServer interface {
	Describe(context.Context, *DescribeRequest) (*DescribeResponse, error)
	Reset(context.Context, *ResetRequest) (*ResetResponse, error)
	Step(context.Context, *StepRequest) (*StepResponse, error)
	SetSaveReplay(context.Context, *SaveReplayRequest) (*Empty, error)
	SetReplayFile(context.Context, *ReplayFileRequest) (*Empty, error)
	Metrics(context.Context, *MetricsRequest) (*MetricsResponse, error)
}

// UnimplementedEnvironmentServer must be embedded by servers that do not
// implement every method.
type UnimplementedEnvironmentServer struct{}

func (UnimplementedEnvironmentServer) Describe(context.Context, *DescribeRequest) (*DescribeResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Describe not implemented")
}
func (UnimplementedEnvironmentServer) Reset(context.Context, *ResetRequest) (*ResetResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Reset not implemented")
}
func (UnimplementedEnvironmentServer) Step(context.Context, *StepRequest) (*StepResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Step not implemented")
}
func (UnimplementedEnvironmentServer) SetSaveReplay(context.Context, *SaveReplayRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method SetSaveReplay not implemented")
}
func (UnimplementedEnvironmentServer) SetReplayFile(context.Context, *ReplayFileRequest) (*Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method SetReplayFile not implemented")
}
func (UnimplementedEnvironmentServer) Metrics(context.Context, *MetricsRequest) (*MetricsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Metrics not implemented")
}

// RegisterEnvironmentServer registers srv on s.
func RegisterEnvironmentServer(s grpc.ServiceRegistrar, srv EnvironmentServer) {
	s.RegisterService(&environmentServiceDesc, srv)
}

var environmentServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*EnvironmentServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Describe", EnvironmentServer.Describe),
		unary("Reset", EnvironmentServer.Reset),
		unary("Step", EnvironmentServer.Step),
		unary("SetSaveReplay", EnvironmentServer.SetSaveReplay),
		unary("SetReplayFile", EnvironmentServer.SetReplayFile),
		unary("Metrics", EnvironmentServer.Metrics),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "environment",
}

func fullMethod(name string) string { return "/" + serviceName + "/" + name }

// unary builds the method descriptor of one request/response call.
func unary[Req, Resp any](name string, call func(EnvironmentServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(EnvironmentServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(EnvironmentServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
