package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/SyedDaiam9101/onnxrun/internal/dataset"
	"github.com/SyedDaiam9101/onnxrun/internal/runner"
)

func newTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test MODEL",
		Short: "Run the model zoo test sets next to a model and compare the outputs",
		Args:  cobra.ExactArgs(1),
		RunE:  testHandler,
	}
	cmd.Flags().String("data", "", "Directory holding test_data_set_N (default: next to the model)")
	cmd.Flags().Int("decimal", 4, "Decimal places outputs must agree to")
	cmd.Flags().Int("print-count", 5, "Number of reference/actual pairs to print per output")
	return cmd
}

func testHandler(cmd *cobra.Command, args []string) error {
	cfg, err := setup(cmd)
	if err != nil {
		return err
	}

	dir, _ := cmd.Flags().GetString("data")
	if dir == "" {
		if dir, err = dataset.FindDataDir(args[0]); err != nil {
			return err
		}
	}
	sets, err := dataset.Discover(dir)
	if err != nil {
		return err
	}

	engine, err := openEngine(cfg, args[0])
	if err != nil {
		return err
	}
	defer closeEngine(engine)

	report, err := runner.Test(cmd.Context(), engine, sets, runner.Options{Decimal: cfg.Decimal, PrintCount: cfg.PrintCount})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	table := newTable(w, "SET", "OUTPUT", "SHAPE", "ELEMENTS", "MAX ABS DIFF", "MISMATCHES", "RESULT")
	for _, s := range report.Sets {
		set := strconv.Itoa(s.Set.Index)
		if s.Err != nil {
			table.Append([]string{set, "-", "-", "-", "-", "-", "ERROR: " + s.Err.Error()})
			continue
		}
		for _, r := range s.Results {
			result := "PASS"
			if !r.Pass {
				result = "FAIL"
				if r.Reason != "" {
					result += ": " + r.Reason
				}
			}
			shape := "-"
			if r.ActualShape != nil {
				shape = r.ActualShape.String()
			}
			table.Append([]string{
				set,
				r.Name,
				shape,
				strconv.Itoa(r.Elements),
				formatFloat(r.MaxAbsDiff),
				strconv.Itoa(r.Mismatches),
				result,
			})
		}
	}
	table.Render()

	if cfg.PrintCount > 0 {
		for _, s := range report.Sets {
			for _, r := range s.Results {
				if len(r.Head) == 0 {
					continue
				}
				fmt.Fprintf(w, "\nset %d %s (expected, actual):\n", s.Set.Index, r.Name)
				for _, p := range r.Head {
					fmt.Fprintf(w, "  [%d] %s %s\n", p.Index, formatFloat(p.Expected), formatFloat(p.Actual))
				}
			}
		}
	}

	passed := 0
	for _, s := range report.Sets {
		if s.Passed() {
			passed++
		}
	}
	fmt.Fprintf(w, "\n%d of %d test sets passed (decimal=%d)\n", passed, len(report.Sets), cfg.Decimal)

	return report.Err()
}
