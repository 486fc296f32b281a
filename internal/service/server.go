// Package service exposes an Engine over gRPC as onnxrun.v1.Inference.
package service

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

// InferenceServer is the server API for the Inference service.
type InferenceServer interface {
	ModelInfo(ctx context.Context) (*ModelInfo, error)
	Infer(ctx context.Context, inputs []*tensor.Tensor) (*InferResult, error)
}

// RegisterInferenceServer registers srv with s.
func RegisterInferenceServer(s grpc.ServiceRegistrar, srv InferenceServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InferenceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ModelInfo", Handler: modelInfoHandler},
		{MethodName: "Infer", Handler: inferHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: inferenceFile,
}

func modelInfoHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := dynamicpb.NewMessage(schema.modelInfoRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, _ any) (any, error) {
		mi, err := srv.(InferenceServer).ModelInfo(ctx)
		if err != nil {
			return nil, err
		}
		return modelInfoMessage(mi), nil
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: modelInfoMethod}
	return interceptor(ctx, in, info, handler)
}

func inferHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := dynamicpb.NewMessage(schema.inferRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req any) (any, error) {
		inputs, err := getTensors(req.(*dynamicpb.Message), "inputs")
		if err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "invalid input tensor: %v", err)
		}
		res, err := srv.(InferenceServer).Infer(ctx, inputs)
		if err != nil {
			return nil, err
		}
		out, err := inferResponseMessage(res)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "encode outputs: %v", err)
		}
		return out, nil
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: inferMethod}
	return interceptor(ctx, in, info, handler)
}
