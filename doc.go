// Package prepkit provides batch preprocessing pipelines for tabular
// datasets: statistics are fitted once on a training table and then applied,
// frozen, to a test table that is streamed in fixed-size chunks.
//
// Two pipelines are available from the prep command:
//
//   - impute: standard scaling followed by a round-robin iterative imputer.
//     Cells equal to the missing sentinel (0 by default) in the scaled space
//     are filled from regressions on the other features.
//   - sparse-pca: a Box-Cox transform of the training label, standard scaling
//     and a sparse principal component decomposition (200 components by
//     default).
//
// # Quick Start
//
//	prep impute --train train.csv --test test.csv
//	prep sparse-pca --config prep.yaml --n-components 50
//
// The same pipelines can be driven from Go:
//
//	cfg := config.Default()
//	cfg.Paths.Train, cfg.Paths.Test = "train.csv", "test.csv"
//	cfg.ApplyPipelineDefaults(config.PipelineImpute)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	res, err := pipeline.RunImputation(ctx, cfg, log.GetLogger())
//
// # Packages
//
//   - dataset: CSV tables, chunked reading and header-once chunked writing
//   - preprocessing: StandardScaler and BoxCox
//   - linear: LinearRegression and BayesianRidge used by the imputer
//   - impute: IterativeImputer and missing-value sentinels
//   - decomposition: SparsePCA
//   - metrics: coefficient of determination (R²)
//   - pipeline: the two end-to-end runs and the chunk stream
//   - report: label histograms
//   - config: YAML and environment configuration
//   - core/model: transformer interfaces, fitted state and gob persistence
//   - core/parallel: range-splitting helper for independent column work
//   - pkg/errors, pkg/log: structured errors and logging
//
// # Chunked Transform
//
// Every fitted transformer is row-independent, so the streamed test output
// is identical to transforming the whole table at once, whatever the chunk
// size. The header is written exactly once and the output file only appears
// after the last chunk succeeds.
package prepkit
