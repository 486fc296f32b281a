package main

import (
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/SyedDaiam9101/onnxrun/internal/onnxpb"
	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

func newDumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump FILE...",
		Short: "Print the contents of serialized TensorProto files",
		Args:  cobra.MinimumNArgs(1),
		RunE:  dumpHandler,
	}
	cmd.Flags().Int("print-count", 5, "Number of values to print per tensor")
	return cmd
}

func dumpHandler(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	table := newTable(cmd.OutOrStdout(), "FILE", "NAME", "TYPE", "SHAPE", "MIN", "MAX", "MEAN", "VALUES")
	for _, path := range args {
		t, err := onnxpb.ReadTensorFile(path)
		if err != nil {
			return err
		}
		lo, hi, mean := stats(t)
		table.Append([]string{path, t.Name, t.Type.String(), t.Shape.String(), lo, hi, mean, formatHead(t, cfg.PrintCount)})
	}
	table.Render()
	return nil
}

// stats returns min, max and mean of a numeric tensor, "-" otherwise.
func stats(t *tensor.Tensor) (string, string, string) {
	if !t.Type.Numeric() || t.Len() == 0 {
		return "-", "-", "-"
	}
	vals, err := t.Float64s()
	if err != nil {
		return "-", "-", "-"
	}
	mean := floats.Sum(vals) / float64(len(vals))
	return formatFloat(floats.Min(vals)), formatFloat(floats.Max(vals)), formatFloat(mean)
}
