// Package compare checks inference outputs against reference tensors.
package compare

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

// DefaultDecimal matches numpy.testing.assert_almost_equal(..., 4), the check
// used by the model zoo's reference scripts.
const DefaultDecimal = 4

// Pair is one printed element: reference value next to the actual one.
type Pair struct {
	Index    int
	Expected float64
	Actual   float64
}

// Result is the outcome of comparing one output.
type Result struct {
	Name          string
	ExpectedShape tensor.Shape
	ActualShape   tensor.Shape
	Elements      int
	Decimal       int
	Tolerance     float64
	MaxAbsDiff    float64
	MeanAbsDiff   float64
	RMSE          float64
	Mismatches    int
	FirstMismatch int
	Head          []Pair
	Pass          bool
	// Reason is set when the tensors could not be compared element-wise.
	Reason string
}

// Tolerance returns the absolute tolerance for decimal places, using the
// numpy definition 1.5 * 10^-decimal.
func Tolerance(decimal int) float64 {
	return 1.5 * math.Pow(10, -float64(decimal))
}

// Compare checks actual against expected element by element. NaN matches
// NaN. head controls how many leading pairs are kept for display.
func Compare(name string, expected, actual *tensor.Tensor, decimal, head int) (*Result, error) {
	r := &Result{
		Name:          name,
		ExpectedShape: expected.Shape.Clone(),
		ActualShape:   actual.Shape.Clone(),
		Decimal:       decimal,
		Tolerance:     Tolerance(decimal),
		FirstMismatch: -1,
	}

	if !expected.Shape.Equal(actual.Shape) {
		r.Reason = fmt.Sprintf("shape %s differs from reference %s", actual.Shape, expected.Shape)
		return r, nil
	}

	if expected.Type == tensor.String || actual.Type == tensor.String {
		return compareStrings(r, expected, actual), nil
	}

	want, err := expected.Float64s()
	if err != nil {
		return nil, fmt.Errorf("reference %s: %w", name, err)
	}
	got, err := actual.Float64s()
	if err != nil {
		return nil, fmt.Errorf("output %s: %w", name, err)
	}
	if len(want) != len(got) {
		r.Reason = fmt.Sprintf("%d elements, reference has %d", len(got), len(want))
		return r, nil
	}

	r.Elements = len(want)
	diffs := make([]float64, len(want))
	for i := range want {
		d, ok := absDiff(want[i], got[i])
		if !ok || d >= r.Tolerance {
			r.Mismatches++
			if r.FirstMismatch < 0 {
				r.FirstMismatch = i
			}
		}
		if ok {
			diffs[i] = d
		} else {
			diffs[i] = math.Inf(1)
		}
		if i < head {
			r.Head = append(r.Head, Pair{Index: i, Expected: want[i], Actual: got[i]})
		}
	}

	if n := len(diffs); n > 0 {
		r.MaxAbsDiff = floats.Max(diffs)
		r.MeanAbsDiff = floats.Sum(diffs) / float64(n)
		r.RMSE = floats.Norm(diffs, 2) / math.Sqrt(float64(n))
	}
	r.Pass = r.Mismatches == 0
	return r, nil
}

// absDiff returns |a-b|. NaN against NaN and equal infinities count as a
// zero difference; any other NaN is reported as not comparable.
func absDiff(a, b float64) (float64, bool) {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return 0, math.IsNaN(a) && math.IsNaN(b)
	case math.IsInf(a, 0) || math.IsInf(b, 0):
		return 0, a == b
	}
	return math.Abs(a - b), true
}

func compareStrings(r *Result, expected, actual *tensor.Tensor) *Result {
	if expected.Type != actual.Type {
		r.Reason = fmt.Sprintf("type %s differs from reference %s", actual.Type, expected.Type)
		return r
	}
	r.Elements = len(expected.Strings)
	for i := range expected.Strings {
		if string(expected.Strings[i]) != string(actual.Strings[i]) {
			r.Mismatches++
			if r.FirstMismatch < 0 {
				r.FirstMismatch = i
			}
		}
	}
	r.Pass = r.Mismatches == 0
	return r
}

// TopK returns the indices of the k largest values, largest first. Ties keep
// the lower index first.
func TopK(values []float64, k int) []int {
	if k > len(values) {
		k = len(values)
	}
	if k <= 0 {
		return nil
	}
	if k == 1 {
		return []int{floats.MaxIdx(values)}
	}

	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] > values[idx[b]] })
	return idx[:k]
}
