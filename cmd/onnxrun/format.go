package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/SyedDaiam9101/onnxrun/internal/onnxpb"
	"github.com/SyedDaiam9101/onnxrun/internal/synth"
	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func infoTable(w io.Writer, infos []tensor.Info) {
	table := newTable(w, "NAME", "TYPE", "SHAPE")
	for _, info := range infos {
		table.Append([]string{info.Name, info.Type.String(), info.ShapeString()})
	}
	table.Render()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

// formatHead renders the first n elements of t, with "..." when more follow.
func formatHead(t *tensor.Tensor, n int) string {
	if n <= 0 {
		return ""
	}
	var parts []string
	if t.Type == tensor.String {
		for i := 0; i < len(t.Strings) && i < n; i++ {
			parts = append(parts, strconv.Quote(string(t.Strings[i])))
		}
	} else {
		vals, err := t.Float64s()
		if err != nil {
			return err.Error()
		}
		for i := 0; i < len(vals) && i < n; i++ {
			parts = append(parts, formatFloat(vals[i]))
		}
	}
	s := "[" + strings.Join(parts, " ")
	if t.Len() > n {
		s += " ..."
	}
	return s + "]"
}

func readInputs(paths []string) ([]*tensor.Tensor, error) {
	inputs := make([]*tensor.Tensor, len(paths))
	for i, p := range paths {
		t, err := onnxpb.ReadTensorFile(p)
		if err != nil {
			return nil, err
		}
		inputs[i] = t
	}
	return inputs, nil
}

func addSynthFlags(cmd *cobra.Command) {
	cmd.Flags().String("distribution", string(synth.Uniform), fmt.Sprintf("Synthetic input distribution %v", synth.Distributions))
	cmd.Flags().Uint64("seed", 0, "Seed for synthetic inputs")
	cmd.Flags().Int64("dynamic-dim", 1, "Size substituted for dynamic dimensions")
	cmd.Flags().Float64("low", 0, "Lower bound of the uniform distribution")
	cmd.Flags().Float64("high", 1, "Upper bound of the uniform distribution")
	cmd.Flags().Float64("mean", 0, "Mean of the normal distribution")
	cmd.Flags().Float64("stddev", 1, "Standard deviation of the normal distribution")
}

func newGenerator(cmd *cobra.Command, distribution string, seed uint64, dynamicDim int64) (*synth.Generator, error) {
	dist, err := synth.ParseDistribution(distribution)
	if err != nil {
		return nil, err
	}
	low, _ := cmd.Flags().GetFloat64("low")
	high, _ := cmd.Flags().GetFloat64("high")
	mean, _ := cmd.Flags().GetFloat64("mean")
	stddev, _ := cmd.Flags().GetFloat64("stddev")

	return synth.NewGenerator(synth.Options{
		Distribution: dist,
		Seed:         seed,
		Low:          low,
		High:         high,
		Mean:         mean,
		StdDev:       stddev,
		DynamicDim:   dynamicDim,
	})
}
