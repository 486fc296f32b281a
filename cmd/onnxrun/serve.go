package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/SyedDaiam9101/onnxrun/internal/cache"
	"github.com/SyedDaiam9101/onnxrun/internal/config"
	"github.com/SyedDaiam9101/onnxrun/internal/metrics"
	"github.com/SyedDaiam9101/onnxrun/internal/middleware"
	"github.com/SyedDaiam9101/onnxrun/internal/service"
	"github.com/SyedDaiam9101/onnxrun/internal/telemetry"
)

// drainDelay gives load balancers time to see NOT_SERVING before the
// listener closes.
const drainDelay = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [MODEL]",
		Short: "Serve a model over gRPC",
		Args:  cobra.MaximumNArgs(1),
		RunE:  serveHandler,
	}
	cmd.Flags().Int("port", 50051, "gRPC server port")
	cmd.Flags().Int("metrics-port", 9100, "Prometheus metrics and health port")
	cmd.Flags().String("redis", "", "Redis address for the output cache (empty disables it)")
	cmd.Flags().Duration("cache-ttl", 5*time.Minute, "Lifetime of cached outputs")
	cmd.Flags().Bool("otel", false, "Enable OpenTelemetry tracing")
	cmd.Flags().String("otel-endpoint", "", "OTLP endpoint (spans currently go to stderr)")
	return cmd
}

func serveHandler(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}
	if len(args) == 0 && !cfg.UseMockInference {
		return errors.New("model path is required when not using mock inference")
	}
	modelPath := ""
	if len(args) > 0 {
		modelPath = args[0]
	}

	slog.Info("starting "+telemetry.ServiceName, "port", cfg.Port, "model", modelPath,
		"redis", cfg.Redis, "metrics_port", cfg.MetricsPort, "otel", cfg.OTELEnabled)

	var tracerShutdown func(context.Context) error
	if cfg.OTELEnabled {
		tracerShutdown, err = telemetry.InitTracer(cfg.OTELEndpoint, cmd.ErrOrStderr())
		if err != nil {
			slog.Warn("failed to initialize tracer", "error", err)
		} else {
			slog.Info("OpenTelemetry tracing enabled", "endpoint", cfg.OTELEndpoint)
		}
	}

	engine, err := openEngine(cfg, modelPath)
	if err != nil {
		return fmt.Errorf("failed to load ONNX model: %w", err)
	}
	defer closeEngine(engine)

	opts, closeCache := handlerOptions(cmd.Context(), cfg, modelPath)
	defer closeCache()

	healthServer := health.NewServer()
	httpServer := startHTTPServer(cfg.MetricsPort, healthServer)

	interceptors := []grpc.UnaryServerInterceptor{
		middleware.UnaryRequestIDInterceptor(),
		middleware.UnaryMetricsInterceptor(),
	}
	var serverOpts []grpc.ServerOption
	if cfg.OTELEnabled {
		serverOpts = append(serverOpts, grpc.StatsHandler(otelgrpc.NewServerHandler()))
	}
	serverOpts = append(serverOpts, grpc.ChainUnaryInterceptor(interceptors...))
	grpcServer := grpc.NewServer(serverOpts...)

	service.RegisterInferenceServer(grpcServer, service.New(engine, opts))
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)

	addr := fmt.Sprintf(":%d", cfg.Port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	healthServer.SetServingStatus(service.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	metrics.SetHealthy()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		slog.Info("shutting down gracefully")

		healthServer.SetServingStatus(service.ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		metrics.SetUnhealthy()

		time.Sleep(drainDelay)
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP server shutdown", "error", err)
		}
		if tracerShutdown != nil {
			if err := tracerShutdown(shutdownCtx); err != nil {
				slog.Warn("tracer shutdown", "error", err)
			}
		}
	}()

	slog.Info("gRPC server listening", "addr", addr)
	if err := grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}

	slog.Info("server shutdown complete")
	return nil
}

// handlerOptions connects the optional Redis cache. A cache that cannot be
// reached is logged and skipped.
func handlerOptions(ctx context.Context, cfg *config.Config, modelPath string) (service.Options, func()) {
	opts := service.Options{Model: "mock", CacheTTL: cfg.CacheTTL}
	noop := func() {}

	if modelPath != "" {
		opts.Model = filepath.Base(modelPath)
		digest, err := cache.FileDigest(modelPath)
		if err != nil {
			slog.Warn("cannot hash model, output cache disabled", "error", err)
			return opts, noop
		}
		opts.ModelDigest = digest
	} else {
		opts.ModelDigest = "mock"
	}

	if cfg.Redis == "" {
		return opts, noop
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	c, err := cache.New(pingCtx, cfg.Redis)
	if err != nil {
		slog.Warn("continuing without cache", "error", err)
		return opts, noop
	}
	slog.Info("Redis connected", "addr", cfg.Redis)
	opts.Cache = c
	return opts, func() { c.Close() }
}

func startHTTPServer(port int, healthServer *health.Server) *http.Server {
	addr := fmt.Sprintf(":%d", port)
	server := &http.Server{
		Addr:              addr,
		Handler:           service.HTTPHandler(healthServer),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening (metrics, health)", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	return server
}
