package main

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/YuminosukeSato/prepkit/config"
	"github.com/YuminosukeSato/prepkit/pipeline"
	"github.com/YuminosukeSato/prepkit/pkg/log"
)

type runFunc func(ctx context.Context, cfg *config.Config, logger log.Logger) (*pipeline.Result, error)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "prep",
		Short:         "Fit preprocessing on a training table and apply it to a test table",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML configuration file")
	pf.String("train", "", "training table (CSV)")
	pf.String("test", "", "test table (CSV)")
	pf.String("train-out", "", "transformed training table")
	pf.String("test-out", "", "transformed test table")
	pf.String("id-column", "", "identifier column name")
	pf.String("target-column", "", "label column name in the training table")
	pf.Int("chunk-size", 0, "rows per streamed test chunk")
	pf.Int64("seed", 0, "random seed for the sparse decomposition")
	pf.String("model-dir", "", "directory receiving the fitted models")
	pf.String("target-plot", "", "histogram of the transformed label (sparse-pca)")
	pf.String("zero-variance", "", "zero-variance column policy: error or unit")
	pf.String("estimator", "", "imputer regressor: bayesian_ridge or linear_regression")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.String("log-format", "", "json or console")

	root.AddCommand(
		newPipelineCmd(config.PipelineImpute,
			"Scale features and impute sentinel values with round-robin regression",
			pipeline.RunImputation, nil),
		newPipelineCmd(config.PipelineSparsePCA,
			"Box-Cox the label, scale features and extract sparse principal components",
			pipeline.RunSparsePCA, func(fs *pflag.FlagSet) {
				fs.Int("n-components", 0, "number of sparse components (default 200)")
			}),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version)
			},
		},
	)
	return root
}

func newPipelineCmd(name, short string, run runFunc, extraFlags func(*pflag.FlagSet)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd.Flags(), name)
			if err != nil {
				return err
			}
			return execute(cmd.Context(), cmd.ErrOrStderr(), cfg, run)
		},
	}
	if extraFlags != nil {
		extraFlags(cmd.Flags())
	}
	return cmd
}

// buildConfig layers explicitly set flags over the file and environment
// configuration and validates the result.
func buildConfig(fs *pflag.FlagSet, pipelineName string) (*config.Config, error) {
	path, _ := fs.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	stringFlags := map[string]*string{
		"train":         &cfg.Paths.Train,
		"test":          &cfg.Paths.Test,
		"train-out":     &cfg.Paths.TrainOut,
		"test-out":      &cfg.Paths.TestOut,
		"model-dir":     &cfg.Paths.ModelDir,
		"target-plot":   &cfg.Paths.TargetPlot,
		"id-column":     &cfg.Data.IDColumn,
		"target-column": &cfg.Data.TargetColumn,
		"zero-variance": &cfg.Scaler.ZeroVariance,
		"estimator":     &cfg.Imputer.Estimator,
		"log-level":     &cfg.Logging.Level,
		"log-format":    &cfg.Logging.Format,
	}
	for name, dst := range stringFlags {
		if fs.Changed(name) {
			*dst, _ = fs.GetString(name)
		}
	}
	if fs.Changed("chunk-size") {
		cfg.Data.ChunkSize, _ = fs.GetInt("chunk-size")
	}
	if fs.Changed("seed") {
		cfg.SparsePCA.Seed, _ = fs.GetInt64("seed")
	}
	if fs.Lookup("n-components") != nil && fs.Changed("n-components") {
		cfg.SparsePCA.NComponents, _ = fs.GetInt("n-components")
	}

	cfg.ApplyPipelineDefaults(pipelineName)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func execute(ctx context.Context, w io.Writer, cfg *config.Config, run runFunc) error {
	logger, err := log.Setup(cfg.Logging.Level, cfg.Logging.Format, w)
	if err != nil {
		return err
	}
	log.SetLogger(logger)
	logger = logger.With(log.RunIDKey, uuid.NewString())

	res, err := run(ctx, cfg, logger)
	if err != nil {
		logger.Error("Run failed", err)
		return err
	}
	logger.Info("Run completed",
		log.PipelineKey, res.Pipeline,
		log.SamplesKey, res.TrainRows+res.TestRows,
		log.FeaturesKey, len(res.Features),
		log.IterationKey, res.Iterations,
		log.ConvergedKey, res.Converged,
		log.DurationMsKey, res.Duration.Milliseconds(),
	)
	return nil
}
