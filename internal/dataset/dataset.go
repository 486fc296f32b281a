// Package dataset understands the ONNX model zoo test data layout:
//
//	<dir>/test_data_set_N/input_M.pb
//	<dir>/test_data_set_N/output_M.pb
package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/SyedDaiam9101/onnxrun/internal/onnxpb"
	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

const setPrefix = "test_data_set_"

var ErrNoTestData = errors.New("dataset: no test_data_set_* directories found")

var (
	inputRe  = regexp.MustCompile(`^input_(\d+)\.pb$`)
	outputRe = regexp.MustCompile(`^output_(\d+)\.pb$`)
	opsetRe  = regexp.MustCompile(`-\d+$`)
)

// Set is one test_data_set_N directory.
type Set struct {
	Index   int
	Dir     string
	Inputs  []string
	Outputs []string
}

// Loaded holds the decoded tensors of a Set.
type Loaded struct {
	Set     Set
	Inputs  []*tensor.Tensor
	Outputs []*tensor.Tensor
}

// Discover lists the test sets under dir ordered by index. Files inside each
// set are ordered by their numeric suffix.
func Discover(dir string) ([]Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var sets []Set
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), setPrefix) {
			continue
		}
		idx, err := strconv.Atoi(strings.TrimPrefix(e.Name(), setPrefix))
		if err != nil {
			continue
		}
		set := Set{Index: idx, Dir: filepath.Join(dir, e.Name())}
		if set.Inputs, err = numbered(set.Dir, inputRe); err != nil {
			return nil, err
		}
		if set.Outputs, err = numbered(set.Dir, outputRe); err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	if len(sets) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoTestData, dir)
	}

	sort.Slice(sets, func(i, j int) bool { return sets[i].Index < sets[j].Index })
	return sets, nil
}

func numbered(dir string, re *regexp.Regexp) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type file struct {
		n    int
		path string
	}
	var files []file
	for _, e := range entries {
		m := re.FindStringSubmatch(e.Name())
		if m == nil || e.IsDir() {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		files = append(files, file{n, filepath.Join(dir, e.Name())})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	paths := make([]string, len(files))
	for i, f := range files {
		if f.n != i {
			return nil, fmt.Errorf("dataset: %s: expected %s index %d, found %d", dir, re.String(), i, f.n)
		}
		paths[i] = f.path
	}
	return paths, nil
}

// FindDataDir locates the directory holding test sets for a model file. It
// tries the model's own directory, then <dir>/<stem>, then <dir>/<stem> with
// a trailing opset suffix removed (vgg16-bn-7.onnx -> vgg16-bn/).
func FindDataDir(modelPath string) (string, error) {
	dir := filepath.Dir(modelPath)
	stem := strings.TrimSuffix(filepath.Base(modelPath), filepath.Ext(modelPath))

	candidates := []string{dir, filepath.Join(dir, stem)}
	if trimmed := opsetRe.ReplaceAllString(stem, ""); trimmed != stem {
		candidates = append(candidates, filepath.Join(dir, trimmed))
	}

	for _, c := range candidates {
		matches, _ := filepath.Glob(filepath.Join(c, setPrefix+"*"))
		if len(matches) > 0 {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w near %s", ErrNoTestData, modelPath)
}

// Load reads every tensor of set concurrently.
func Load(ctx context.Context, set Set) (*Loaded, error) {
	l := &Loaded{
		Set:     set,
		Inputs:  make([]*tensor.Tensor, len(set.Inputs)),
		Outputs: make([]*tensor.Tensor, len(set.Outputs)),
	}

	g, ctx := errgroup.WithContext(ctx)
	read := func(dst []*tensor.Tensor, paths []string) {
		for i, path := range paths {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				t, err := onnxpb.ReadTensorFile(path)
				if err != nil {
					return err
				}
				dst[i] = t
				return nil
			})
		}
	}
	read(l.Inputs, set.Inputs)
	read(l.Outputs, set.Outputs)

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return l, nil
}

// Write stores inputs and reference outputs as test_data_set_<index> under
// dir and returns the new Set.
func Write(dir string, index int, inputs, outputs []*tensor.Tensor) (Set, error) {
	set := Set{Index: index, Dir: filepath.Join(dir, fmt.Sprintf("%s%d", setPrefix, index))}
	if err := os.MkdirAll(set.Dir, 0o755); err != nil {
		return Set{}, err
	}

	for i, t := range inputs {
		path := filepath.Join(set.Dir, fmt.Sprintf("input_%d.pb", i))
		if err := onnxpb.WriteTensorFile(path, t); err != nil {
			return Set{}, err
		}
		set.Inputs = append(set.Inputs, path)
	}
	for i, t := range outputs {
		path := filepath.Join(set.Dir, fmt.Sprintf("output_%d.pb", i))
		if err := onnxpb.WriteTensorFile(path, t); err != nil {
			return Set{}, err
		}
		set.Outputs = append(set.Outputs, path)
	}
	return set, nil
}

// NextIndex returns the first unused test set index under dir.
func NextIndex(dir string) int {
	sets, err := Discover(dir)
	if err != nil || len(sets) == 0 {
		return 0
	}
	return sets[len(sets)-1].Index + 1
}
