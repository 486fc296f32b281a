package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SyedDaiam9101/onnxrun/internal/compare"
	"github.com/SyedDaiam9101/onnxrun/internal/onnxpb"
	"github.com/SyedDaiam9101/onnxrun/internal/runner"
	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run MODEL",
		Short: "Run one inference on synthetic or file inputs",
		Args:  cobra.ExactArgs(1),
		RunE:  runHandler,
	}
	cmd.Flags().StringSliceP("input", "i", nil, "TensorProto files to feed, in input order or named after the inputs")
	cmd.Flags().Int("print-count", 5, "Number of output values to print")
	cmd.Flags().Int("top", 0, "Print the indices of the k largest values of each output")
	cmd.Flags().String("save", "", "Directory to write the outputs to as output_N.pb")
	addSynthFlags(cmd)
	return cmd
}

func runHandler(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	engine, err := openEngine(cfg, args[0])
	if err != nil {
		return err
	}
	defer closeEngine(engine)

	var inputs []*tensor.Tensor
	if paths, _ := cmd.Flags().GetStringSlice("input"); len(paths) > 0 {
		if inputs, err = readInputs(paths); err != nil {
			return err
		}
	} else {
		gen, err := newGenerator(cmd, cfg.Distribution, cfg.Seed, cfg.DynamicDim)
		if err != nil {
			return err
		}
		if inputs, err = gen.ForModel(engine.Inputs()); err != nil {
			return err
		}
	}

	res, err := runner.Run(cmd.Context(), engine, inputs)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "inference took %s\n", res.Elapsed)

	infos := engine.Outputs()
	table := newTable(w, "OUTPUT", "TYPE", "SHAPE", "VALUES")
	for i, out := range res.Outputs {
		if out.Name == "" && i < len(infos) {
			out.Name = infos[i].Name
		}
		table.Append([]string{out.Name, out.Type.String(), out.Shape.String(), formatHead(out, cfg.PrintCount)})
	}
	table.Render()

	if k, _ := cmd.Flags().GetInt("top"); k > 0 {
		for _, out := range res.Outputs {
			if !out.Type.Numeric() {
				continue
			}
			vals, err := out.Float64s()
			if err != nil {
				return err
			}
			var parts []string
			for _, idx := range compare.TopK(vals, k) {
				parts = append(parts, fmt.Sprintf("%d (%s)", idx, formatFloat(vals[idx])))
			}
			fmt.Fprintf(w, "top %d of %s: %s\n", k, out.Name, strings.Join(parts, ", "))
		}
	}

	if dir, _ := cmd.Flags().GetString("save"); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		for i, out := range res.Outputs {
			if err := onnxpb.WriteTensorFile(filepath.Join(dir, fmt.Sprintf("output_%d.pb", i)), out); err != nil {
				return err
			}
		}
	}
	return nil
}
