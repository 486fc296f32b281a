// Package runner drives an Engine through the example flows: a single
// inference, a reference comparison over model zoo test sets, and the
// generation of new test sets.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/SyedDaiam9101/onnxrun/internal/compare"
	"github.com/SyedDaiam9101/onnxrun/internal/dataset"
	"github.com/SyedDaiam9101/onnxrun/internal/inference"
	"github.com/SyedDaiam9101/onnxrun/internal/metrics"
	"github.com/SyedDaiam9101/onnxrun/internal/synth"
	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

var ErrComparisonFailed = errors.New("outputs differ from reference")

var tracer = otel.Tracer("github.com/SyedDaiam9101/onnxrun/internal/runner")

// Result is the output of one inference call.
type Result struct {
	Outputs []*tensor.Tensor
	Elapsed time.Duration
}

// Run performs one inference and records its latency.
func Run(ctx context.Context, engine inference.Engine, inputs []*tensor.Tensor) (*Result, error) {
	ctx, span := tracer.Start(ctx, "inference.Run")
	defer span.End()

	elements := 0
	for _, t := range inputs {
		if t != nil {
			elements += t.Len()
		}
	}
	span.SetAttributes(attribute.Int("inputs", len(inputs)), attribute.Int("input_elements", elements))
	metrics.RecordInferenceInputs(elements)

	start := time.Now()
	outputs, err := engine.Run(ctx, inputs)
	elapsed := time.Since(start)
	metrics.RecordInferenceLatency(elapsed.Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	slog.Debug("inference done", "inputs", len(inputs), "outputs", len(outputs), "elapsed", elapsed)
	return &Result{Outputs: outputs, Elapsed: elapsed}, nil
}

// Options controls reference comparison.
type Options struct {
	Decimal    int
	PrintCount int
}

// SetReport is the outcome of one test_data_set_N.
type SetReport struct {
	Set     dataset.Set
	Elapsed time.Duration
	Results []*compare.Result
	// Err is set when the set could not be loaded or run.
	Err error
}

// Passed reports whether the set ran and every output matched.
func (s *SetReport) Passed() bool {
	if s.Err != nil {
		return false
	}
	for _, r := range s.Results {
		if !r.Pass {
			return false
		}
	}
	return true
}

// Report collects every SetReport of a Test call.
type Report struct {
	Sets []*SetReport
}

// Passed reports whether every set passed.
func (r *Report) Passed() bool {
	for _, s := range r.Sets {
		if !s.Passed() {
			return false
		}
	}
	return true
}

// Err returns ErrComparisonFailed when any set failed.
func (r *Report) Err() error {
	failed := 0
	for _, s := range r.Sets {
		if !s.Passed() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%w: %d of %d test sets failed", ErrComparisonFailed, failed, len(r.Sets))
	}
	return nil
}

// Test runs every set through engine and compares the outputs with the
// references. Per-set failures are recorded in the report; only context
// cancellation aborts the loop.
func Test(ctx context.Context, engine inference.Engine, sets []dataset.Set, opts Options) (*Report, error) {
	report := &Report{}
	for _, set := range sets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		sr := testSet(ctx, engine, set, opts)
		report.Sets = append(report.Sets, sr)

		if sr.Err != nil {
			slog.Warn("test set failed", "set", set.Index, "error", sr.Err)
		} else {
			slog.Info("test set done", "set", set.Index, "outputs", len(sr.Results), "passed", sr.Passed(), "elapsed", sr.Elapsed)
		}
	}
	return report, nil
}

func testSet(ctx context.Context, engine inference.Engine, set dataset.Set, opts Options) *SetReport {
	ctx, span := tracer.Start(ctx, "runner.TestSet")
	defer span.End()
	span.SetAttributes(attribute.Int("set", set.Index), attribute.String("dir", set.Dir))

	sr := &SetReport{Set: set}
	fail := func(err error) *SetReport {
		sr.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return sr
	}

	loaded, err := dataset.Load(ctx, set)
	if err != nil {
		return fail(err)
	}

	res, err := Run(ctx, engine, loaded.Inputs)
	if err != nil {
		return fail(err)
	}
	sr.Elapsed = res.Elapsed

	for i, ref := range loaded.Outputs {
		idx := pair(engine.Outputs(), ref, i)
		name := ref.Name
		if idx < len(engine.Outputs()) {
			name = engine.Outputs()[idx].Name
		}
		if idx >= len(res.Outputs) {
			sr.Results = append(sr.Results, &compare.Result{
				Name:          name,
				ExpectedShape: ref.Shape,
				FirstMismatch: -1,
				Reason:        fmt.Sprintf("model produced %d outputs, reference %d has none", len(res.Outputs), i),
			})
			metrics.RecordComparison(false)
			continue
		}

		r, err := compare.Compare(name, ref, res.Outputs[idx], opts.Decimal, opts.PrintCount)
		if err != nil {
			return fail(err)
		}
		metrics.RecordComparison(r.Pass)
		sr.Results = append(sr.Results, r)
	}
	if !sr.Passed() {
		span.SetStatus(codes.Error, "outputs differ from reference")
	}
	return sr
}

// pair picks the model output a reference tensor belongs to: by name when
// the reference is named after an output, by position otherwise.
func pair(outputs []tensor.Info, ref *tensor.Tensor, position int) int {
	if ref.Name != "" {
		for i, o := range outputs {
			if o.Name == ref.Name {
				return i
			}
		}
	}
	return position
}

// Generate writes count new test sets under dir, using synthetic inputs and
// the engine's outputs as references.
func Generate(ctx context.Context, engine inference.Engine, gen *synth.Generator, dir string, count int) ([]dataset.Set, error) {
	next := dataset.NextIndex(dir)

	var sets []dataset.Set
	for i := 0; i < count; i++ {
		inputs, err := gen.ForModel(engine.Inputs())
		if err != nil {
			return sets, err
		}
		res, err := Run(ctx, engine, inputs)
		if err != nil {
			return sets, err
		}
		for j, out := range res.Outputs {
			if out.Name == "" && j < len(engine.Outputs()) {
				out.Name = engine.Outputs()[j].Name
			}
		}

		set, err := dataset.Write(dir, next+i, inputs, res.Outputs)
		if err != nil {
			return sets, err
		}
		slog.Info("wrote test set", "dir", set.Dir, "inputs", len(set.Inputs), "outputs", len(set.Outputs))
		sets = append(sets, set)
	}
	return sets, nil
}
