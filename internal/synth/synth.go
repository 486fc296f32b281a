// Package synth fills model inputs with generated data when no input files
// are given.
package synth

import (
	"fmt"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

// Distribution names a way of filling a tensor.
type Distribution string

const (
	Uniform Distribution = "uniform"
	Normal  Distribution = "normal"
	Zeros   Distribution = "zeros"
	Ones    Distribution = "ones"
	// Range fills element i with i % 256. Narrow integer types saturate,
	// so int8 inputs hold 127 from element 127 onward.
	Range Distribution = "range"
)

// Distributions lists the accepted names in help-text order.
var Distributions = []Distribution{Uniform, Normal, Zeros, Ones, Range}

// ParseDistribution validates a distribution name.
func ParseDistribution(s string) (Distribution, error) {
	d := Distribution(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Distributions {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown distribution %q", s)
}

// Options configures a Generator.
type Options struct {
	Distribution Distribution
	Seed         uint64
	// Low and High bound the uniform distribution. Both zero means [0, 1).
	Low, High float64
	// Mean and StdDev shape the normal distribution. StdDev zero means 1.
	Mean, StdDev float64
	// DynamicDim replaces every dynamic dimension. Zero or negative means 1.
	DynamicDim int64
}

// Generator produces deterministic tensors for a given seed.
type Generator struct {
	opts Options
	src  rand.Source
}

func NewGenerator(opts Options) (*Generator, error) {
	if opts.Distribution == "" {
		opts.Distribution = Uniform
	}
	if _, err := ParseDistribution(string(opts.Distribution)); err != nil {
		return nil, err
	}
	if opts.Low == 0 && opts.High == 0 {
		opts.High = 1
	}
	if opts.Low >= opts.High {
		return nil, fmt.Errorf("uniform bounds [%g, %g) are empty", opts.Low, opts.High)
	}
	if opts.StdDev == 0 {
		opts.StdDev = 1
	}
	if opts.DynamicDim <= 0 {
		opts.DynamicDim = 1
	}
	return &Generator{opts: opts, src: rand.NewSource(opts.Seed)}, nil
}

// Resolve replaces dynamic dims with dim.
func Resolve(shape tensor.Shape, dim int64) tensor.Shape {
	out := shape.Clone()
	for i, d := range out {
		if d < 0 {
			out[i] = dim
		}
	}
	return out
}

// Tensor generates one tensor matching info. Values are produced as float64
// and converted to the element type, so integer types truncate and saturate.
func (g *Generator) Tensor(info tensor.Info) (*tensor.Tensor, error) {
	shape := Resolve(info.Shape, g.opts.DynamicDim)
	n := shape.Size()
	if n < 0 {
		return nil, fmt.Errorf("input %s: %w: shape %s is too large", info.Name, tensor.ErrShapeMismatch, shape)
	}

	vals := make([]float64, n)
	switch g.opts.Distribution {
	case Uniform:
		dist := distuv.Uniform{Min: g.opts.Low, Max: g.opts.High, Src: g.src}
		for i := range vals {
			vals[i] = dist.Rand()
		}
	case Normal:
		dist := distuv.Normal{Mu: g.opts.Mean, Sigma: g.opts.StdDev, Src: g.src}
		for i := range vals {
			vals[i] = dist.Rand()
		}
	case Ones:
		for i := range vals {
			vals[i] = 1
		}
	case Range:
		for i := range vals {
			vals[i] = float64(i % 256)
		}
	}

	t, err := tensor.FromFloat64s(info.Name, info.Type, shape, vals)
	if err != nil {
		return nil, fmt.Errorf("input %s: %w", info.Name, err)
	}
	return t, nil
}

// ForModel generates one tensor per input info.
func (g *Generator) ForModel(infos []tensor.Info) ([]*tensor.Tensor, error) {
	out := make([]*tensor.Tensor, len(infos))
	for i, info := range infos {
		t, err := g.Tensor(info)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}
