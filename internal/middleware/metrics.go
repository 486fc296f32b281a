// internal/middleware/metrics.go
package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/SyedDaiam9101/onnxrun/internal/metrics"
)

// UnaryMetricsInterceptor observes the handling time of every unary call,
// labelled by method and status code, and logs failed calls.
func UnaryMetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		elapsed := time.Since(start)

		// status.Code maps non-status errors to Unknown
		code := status.Code(err)
		metrics.RecordGRPCLatency(info.FullMethod, code.String(), elapsed.Seconds())

		if err != nil {
			Logger(ctx).Warn("rpc failed", "method", info.FullMethod, "code", code.String(), "elapsed", elapsed, "error", err)
		} else {
			Logger(ctx).Debug("rpc done", "method", info.FullMethod, "elapsed", elapsed)
		}
		return resp, err
	}
}
