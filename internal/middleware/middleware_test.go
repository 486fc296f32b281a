// internal/middleware/middleware_test.go
package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/SyedDaiam9101/onnxrun/internal/metrics"
)

func TestUnaryRequestIDInterceptor_GeneratesID(t *testing.T) {
	interceptor := UnaryRequestIDInterceptor()

	var capturedCtx context.Context
	mockHandler := func(ctx context.Context, req any) (any, error) {
		capturedCtx = ctx
		return "response", nil
	}

	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}
	if _, err := interceptor(context.Background(), nil, info, mockHandler); err != nil {
		t.Fatalf("Interceptor failed: %v", err)
	}

	requestID := GetRequestID(capturedCtx)
	if len(requestID) != 36 {
		t.Errorf("Expected UUID format (36 chars), got %d chars: %q", len(requestID), requestID)
	}
}

func TestUnaryRequestIDInterceptor_PreservesExistingID(t *testing.T) {
	interceptor := UnaryRequestIDInterceptor()

	existingID := "test-request-id-12345"

	var capturedCtx context.Context
	mockHandler := func(ctx context.Context, req any) (any, error) {
		capturedCtx = ctx
		return "response", nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(RequestIDHeader, existingID))
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}

	if _, err := interceptor(ctx, nil, info, mockHandler); err != nil {
		t.Fatalf("Interceptor failed: %v", err)
	}

	if requestID := GetRequestID(capturedCtx); requestID != existingID {
		t.Errorf("Expected request ID %s, got %s", existingID, requestID)
	}
}

func TestGetRequestID_EmptyContext(t *testing.T) {
	if requestID := GetRequestID(context.Background()); requestID != "" {
		t.Errorf("Expected empty request ID from empty context, got %s", requestID)
	}
}

func TestUnaryClientRequestIDInterceptor_ForwardsID(t *testing.T) {
	interceptor := UnaryClientRequestIDInterceptor()

	var sent []string
	invoker := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		sent = md.Get(RequestIDHeader)
		return nil
	}

	ctx := WithRequestID(context.Background(), "abc")
	if err := interceptor(ctx, "/test.Service/Method", nil, nil, nil, invoker); err != nil {
		t.Fatalf("Interceptor failed: %v", err)
	}
	if len(sent) != 1 || sent[0] != "abc" {
		t.Errorf("Expected forwarded id [abc], got %v", sent)
	}
}

func TestUnaryMetricsInterceptor_RecordsCode(t *testing.T) {
	interceptor := UnaryMetricsInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Metrics"}

	before := testutil.CollectAndCount(metrics.GRPCServerHandlingSeconds)

	_, err := interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.InvalidArgument, "bad")
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("Expected InvalidArgument to pass through, got %v", err)
	}

	_, err = interceptor(context.Background(), nil, info, func(ctx context.Context, req any) (any, error) {
		return nil, errors.New("plain")
	})
	if err == nil {
		t.Fatal("Expected error to pass through")
	}

	// one new series per distinct (method, code) pair
	if got := testutil.CollectAndCount(metrics.GRPCServerHandlingSeconds); got != before+2 {
		t.Errorf("Expected %d series, got %d", before+2, got)
	}
}

func TestLoggerAddsIDs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID})
	ctx := trace.ContextWithSpanContext(WithRequestID(context.Background(), "rid"), sc)

	Logger(ctx).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "request_id=rid") {
		t.Errorf("Expected request_id in %q", out)
	}
	if !strings.Contains(out, "trace_id=0102030405060708090a0b0c0d0e0f10") {
		t.Errorf("Expected trace_id in %q", out)
	}
}
