package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/SyedDaiam9101/onnxrun/internal/config"
	"github.com/SyedDaiam9101/onnxrun/internal/inference"
	"github.com/SyedDaiam9101/onnxrun/internal/logutil"
)

func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "onnxrun",
		Short:         "Inspect, run and check ONNX models",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to config file (optional)")
	pf.String("log-level", "info", "Log level: debug, info, warn or error")
	pf.String("library-path", "", "Path to the onnxruntime shared library")
	pf.Int("intra-op-threads", 1, "Threads used within one operator")
	pf.Int("inter-op-threads", 1, "Threads used across operators")
	pf.Bool("mock", false, "Use mock inference engine (for testing)")

	rootCmd.AddCommand(
		newInspectCmd(),
		newRunCmd(),
		newTestCmd(),
		newDumpCmd(),
		newGenCmd(),
		newServeCmd(),
		newQueryCmd(),
	)

	return rootCmd
}

// setup loads the configuration for cmd and installs the default logger.
func setup(cmd *cobra.Command) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cmd.Flags(), configFile)
	if err != nil {
		return nil, err
	}

	level, err := logutil.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), level))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openEngine(cfg *config.Config, modelPath string) (inference.Engine, error) {
	if cfg.UseMockInference {
		slog.Info("using mock inference engine")
		return inference.NewMock(), nil
	}

	slog.Info("loading model", "path", modelPath)
	engine, err := inference.New(modelPath, inference.Options{
		LibraryPath:    cfg.LibraryPath,
		IntraOpThreads: cfg.IntraOpThreads,
		InterOpThreads: cfg.InterOpThreads,
	})
	if err != nil {
		return nil, err
	}
	slog.Info("model loaded", "inputs", len(engine.Inputs()), "outputs", len(engine.Outputs()))
	return engine, nil
}

func closeEngine(engine inference.Engine) {
	if err := engine.Close(); err != nil {
		slog.Warn("close engine", "error", err)
	}
	if err := inference.ShutdownRuntime(); err != nil {
		slog.Warn("shutdown runtime", "error", err)
	}
}
