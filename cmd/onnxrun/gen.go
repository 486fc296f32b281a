package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SyedDaiam9101/onnxrun/internal/runner"
)

func newGenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gen MODEL",
		Short: "Write new test_data_set_N directories from synthetic inputs and the model's outputs",
		Args:  cobra.ExactArgs(1),
		RunE:  genHandler,
	}
	cmd.Flags().String("data", "", "Directory to write test sets to (default: <model dir>/<model name>)")
	cmd.Flags().Int("count", 1, "Number of test sets to write")
	addSynthFlags(cmd)
	return cmd
}

func genHandler(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	count, _ := cmd.Flags().GetInt("count")
	if count <= 0 {
		return fmt.Errorf("count must be positive, got %d", count)
	}
	dir, _ := cmd.Flags().GetString("data")
	if dir == "" {
		model := args[0]
		dir = filepath.Join(filepath.Dir(model), strings.TrimSuffix(filepath.Base(model), filepath.Ext(model)))
	}

	gen, err := newGenerator(cmd, cfg.Distribution, cfg.Seed, cfg.DynamicDim)
	if err != nil {
		return err
	}

	engine, err := openEngine(cfg, args[0])
	if err != nil {
		return err
	}
	defer closeEngine(engine)

	sets, err := runner.Generate(cmd.Context(), engine, gen, dir, count)
	for _, s := range sets {
		fmt.Fprintln(cmd.OutOrStdout(), s.Dir)
	}
	return err
}
