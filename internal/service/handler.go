// internal/service/handler.go
package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/SyedDaiam9101/onnxrun/internal/cache"
	"github.com/SyedDaiam9101/onnxrun/internal/inference"
	"github.com/SyedDaiam9101/onnxrun/internal/middleware"
	"github.com/SyedDaiam9101/onnxrun/internal/runner"
	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

var tracer = otel.Tracer("github.com/SyedDaiam9101/onnxrun/internal/service")

// OutputCache stores encoded outputs. *cache.Cache implements it.
type OutputCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Options configures a Handler.
type Options struct {
	// Model is the name reported by ModelInfo.
	Model string
	// ModelDigest scopes cache keys to one model file.
	ModelDigest string
	// Cache is optional.
	Cache    OutputCache
	CacheTTL time.Duration
}

// Handler implements InferenceServer on top of an Engine.
type Handler struct {
	engine inference.Engine
	opts   Options
}

// New creates a Handler. engine may be nil, in which case every call fails
// with FailedPrecondition.
func New(engine inference.Engine, opts Options) *Handler {
	return &Handler{engine: engine, opts: opts}
}

// ModelInfo reports the served model's inputs and outputs.
func (h *Handler) ModelInfo(ctx context.Context) (*ModelInfo, error) {
	if h.engine == nil {
		return nil, failedPreconditionError("inference engine not initialized")
	}
	return &ModelInfo{
		Model:   h.opts.Model,
		Inputs:  h.engine.Inputs(),
		Outputs: h.engine.Outputs(),
	}, nil
}

// Infer runs the model on inputs, answering from the cache when the same
// inputs were seen before.
func (h *Handler) Infer(ctx context.Context, inputs []*tensor.Tensor) (*InferResult, error) {
	start := time.Now()

	requestID := middleware.GetRequestID(ctx)
	if requestID == "" {
		requestID = "unknown"
	}
	log := middleware.Logger(ctx)

	ctx, span := tracer.Start(ctx, "service.Infer")
	defer span.End()

	if len(inputs) == 0 {
		return nil, invalidArgumentError("request has no input tensors")
	}
	if h.engine == nil {
		return nil, failedPreconditionError("inference engine not initialized")
	}
	for i, t := range inputs {
		if t == nil {
			return nil, invalidArgumentError("input %d is nil", i)
		}
		if err := t.Validate(); err != nil {
			return nil, invalidArgumentError("input %d (%s): %v", i, t.Name, err)
		}
	}

	key := h.cacheKey(ctx, inputs)
	if key != "" {
		if outputs, ok := h.lookup(ctx, key); ok {
			span.SetAttributes(attribute.Bool("cached", true))
			log.Info("Infer", "inputs", len(inputs), "cached", true, "total", time.Since(start))
			return &InferResult{Outputs: outputs, Cached: true, RequestID: requestID}, nil
		}
	}

	res, err := runner.Run(ctx, h.engine, inputs)
	if err != nil {
		log.Error("inference error", "error", err)
		return nil, grpcError(err)
	}

	infos := h.engine.Outputs()
	for i, out := range res.Outputs {
		if out.Name == "" && i < len(infos) {
			out.Name = infos[i].Name
		}
	}

	if key != "" {
		h.store(ctx, key, res.Outputs)
	}

	span.SetAttributes(attribute.Bool("cached", false))
	log.Info("Infer", "inputs", len(inputs), "outputs", len(res.Outputs), "inference", res.Elapsed, "total", time.Since(start))

	return &InferResult{
		Outputs:          res.Outputs,
		RequestID:        requestID,
		InferenceSeconds: res.Elapsed.Seconds(),
	}, nil
}

// cacheKey returns "" when caching is off or the key cannot be built.
func (h *Handler) cacheKey(ctx context.Context, inputs []*tensor.Tensor) string {
	if h.opts.Cache == nil {
		return ""
	}
	key, err := cache.Key(h.opts.ModelDigest, inputs)
	if err != nil {
		middleware.Logger(ctx).Warn("cache key", "error", err)
		return ""
	}
	return key
}

// Cache failures are logged and otherwise ignored.
func (h *Handler) lookup(ctx context.Context, key string) ([]*tensor.Tensor, bool) {
	data, ok, err := h.opts.Cache.Get(ctx, key)
	if err != nil {
		middleware.Logger(ctx).Warn("cache get", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	outputs, err := cache.Decode(data)
	if err != nil {
		middleware.Logger(ctx).Warn("cache decode", "error", err)
		return nil, false
	}
	return outputs, true
}

func (h *Handler) store(ctx context.Context, key string, outputs []*tensor.Tensor) {
	data, err := cache.Encode(outputs)
	if err != nil {
		middleware.Logger(ctx).Warn("cache encode", "error", err)
		return
	}
	if err := h.opts.Cache.Set(ctx, key, data, h.opts.CacheTTL); err != nil {
		middleware.Logger(ctx).Warn("cache set", "error", err)
	}
}
