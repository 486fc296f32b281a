package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SyedDaiam9101/onnxrun/internal/inference"
	"github.com/SyedDaiam9101/onnxrun/internal/onnxpb"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect MODEL",
		Short: "Show a model's metadata and input/output tensors",
		Args:  cobra.ExactArgs(1),
		RunE:  inspectHandler,
	}
	cmd.Flags().Bool("runtime", false, "Ask onnxruntime for the tensor info instead of parsing the file")
	return cmd
}

func inspectHandler(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	useRuntime, _ := cmd.Flags().GetBool("runtime")

	if useRuntime {
		if err := inference.InitRuntime(cfg.LibraryPath); err != nil {
			return err
		}
		defer inference.ShutdownRuntime()

		inputs, outputs, err := inference.Introspect(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Number of inputs = %d\n", len(inputs))
		infoTable(w, inputs)
		fmt.Fprintf(w, "\nNumber of outputs = %d\n", len(outputs))
		infoTable(w, outputs)
		return nil
	}

	m, err := onnxpb.ReadModelFile(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Model:       %s\n", args[0])
	fmt.Fprintf(w, "IR version:  %d\n", m.IRVersion)
	if m.ProducerName != "" {
		fmt.Fprintf(w, "Producer:    %s %s\n", m.ProducerName, m.ProducerVersion)
	}
	if m.Domain != "" {
		fmt.Fprintf(w, "Domain:      %s\n", m.Domain)
	}
	if m.ModelVersion != 0 {
		fmt.Fprintf(w, "Version:     %d\n", m.ModelVersion)
	}
	var opsets []string
	for _, o := range m.Opsets {
		domain := o.Domain
		if domain == "" {
			domain = "ai.onnx"
		}
		opsets = append(opsets, fmt.Sprintf("%s=%d", domain, o.Version))
	}
	fmt.Fprintf(w, "Opsets:      %s\n", strings.Join(opsets, ", "))
	fmt.Fprintf(w, "Graph:       %s (%d nodes, %d initializers)\n", m.GraphName, m.NodeCount, len(m.Initializers))

	if len(m.Metadata) > 0 {
		keys := make([]string, 0, len(m.Metadata))
		for k := range m.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintln(w, "Metadata:")
		for _, k := range keys {
			fmt.Fprintf(w, "  %s = %s\n", k, m.Metadata[k])
		}
	}
	if m.DocString != "" {
		fmt.Fprintf(w, "Doc:         %s\n", m.DocString)
	}

	inputs := m.FeedInputs()
	fmt.Fprintf(w, "\nNumber of inputs = %d\n", len(inputs))
	infoTable(w, inputs)
	fmt.Fprintf(w, "\nNumber of outputs = %d\n", len(m.Outputs))
	infoTable(w, m.Outputs)
	return nil
}
