package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/SyedDaiam9101/onnxrun/internal/middleware"
	"github.com/SyedDaiam9101/onnxrun/internal/service"
	"github.com/SyedDaiam9101/onnxrun/internal/tensor"
)

func newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query ADDR",
		Short: "Send an inference request to a running server",
		Args:  cobra.ExactArgs(1),
		RunE:  queryHandler,
	}
	cmd.Flags().StringSliceP("input", "i", nil, "TensorProto files to send (default: synthetic inputs)")
	cmd.Flags().Bool("info", false, "Only print the served model's inputs and outputs")
	cmd.Flags().Int("print-count", 5, "Number of output values to print")
	cmd.Flags().Duration("timeout", 30*time.Second, "Request timeout")
	addSynthFlags(cmd)
	return cmd
}

func queryHandler(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	conn, err := grpc.NewClient(args[0],
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(middleware.UnaryClientRequestIDInterceptor()),
	)
	if err != nil {
		return err
	}
	defer conn.Close()
	client := service.NewClient(conn)

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	mi, err := client.ModelInfo(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if info, _ := cmd.Flags().GetBool("info"); info {
		fmt.Fprintf(w, "Model: %s\n\nInputs:\n", mi.Model)
		infoTable(w, mi.Inputs)
		fmt.Fprintln(w, "\nOutputs:")
		infoTable(w, mi.Outputs)
		return nil
	}

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
		if inputs, err = gen.ForModel(mi.Inputs); err != nil {
			return err
		}
	}

	res, err := client.Infer(ctx, inputs)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "request %s: cached=%s inference=%s\n", res.RequestID, strconv.FormatBool(res.Cached),
		time.Duration(res.InferenceSeconds*float64(time.Second)))
	table := newTable(w, "OUTPUT", "TYPE", "SHAPE", "VALUES")
	for _, out := range res.Outputs {
		table.Append([]string{out.Name, out.Type.String(), out.Shape.String(), formatHead(out, cfg.PrintCount)})
	}
	table.Render()
	return nil
}
