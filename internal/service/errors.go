// internal/service/errors.go
package service

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/SyedDaiam9101/onnxrun/internal/inference"
	"github.com/SyedDaiam9101/onnxrun/internal/onnxpb"
	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

// grpcError maps known internal errors to gRPC status errors
func grpcError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, inference.ErrInputCount),
		errors.Is(err, inference.ErrUnknownInput),
		errors.Is(err, tensor.ErrShapeMismatch),
		errors.Is(err, tensor.ErrTypeMismatch),
		errors.Is(err, tensor.ErrUnsupportedType),
		errors.Is(err, onnxpb.ErrMalformed),
		errors.Is(err, onnxpb.ErrExternalData):
		return status.Errorf(codes.InvalidArgument, "invalid input: %v", err)

	case errors.Is(err, inference.ErrClosed):
		return status.Errorf(codes.FailedPrecondition, "inference engine not initialized")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	case errors.Is(err, inference.ErrRuntime):
		return status.Errorf(codes.Internal, "inference execution failed: %v", err)

	default:
		return status.Errorf(codes.Internal, "internal error: %v", err)
	}
}

// invalidArgumentError creates an InvalidArgument gRPC error
func invalidArgumentError(format string, args ...any) error {
	return status.Errorf(codes.InvalidArgument, format, args...)
}

// failedPreconditionError creates a FailedPrecondition gRPC error
func failedPreconditionError(format string, args ...any) error {
	return status.Errorf(codes.FailedPrecondition, format, args...)
}
