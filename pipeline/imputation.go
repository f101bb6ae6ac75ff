package pipeline

import (
	"context"
	"math"
	"time"

	"github.com/YuminosukeSato/prepkit/config"
	"github.com/YuminosukeSato/prepkit/impute"
	"github.com/YuminosukeSato/prepkit/pkg/errors"
	"github.com/YuminosukeSato/prepkit/pkg/log"
)

// RunImputation scales the training features, fits the iterative imputer on
// the scaled matrix and writes [ID, target, features...]. The test table is
// then streamed through the same scaler and imputer and written as
// [ID, features...].
//
// cfg must have been validated.
func RunImputation(ctx context.Context, cfg *config.Config, logger log.Logger) (res *Result, err error) {
	defer errors.Recover(&err, "pipeline.RunImputation")

	start := time.Now()
	logger = logger.With(log.PipelineKey, config.PipelineImpute)

	y, feats, err := loadTrain(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	scaler, scaled, err := fitScaler(cfg, feats, logger)
	if err != nil {
		return nil, err
	}

	sentinel, err := impute.ParseSentinel(cfg.Imputer.MissingValue)
	if err != nil {
		return nil, err
	}
	imp := impute.NewIterativeImputer(sentinel)
	imp.MaxIter = cfg.Imputer.MaxIter
	imp.Tol = cfg.Imputer.Tol
	imp.Estimator = cfg.Imputer.Estimator

	fitStart := time.Now()
	Xi, err := imp.FitTransform(scaled.Data)
	if err != nil {
		return nil, err
	}
	fields := []any{
		log.ModelNameKey, "IterativeImputer",
		log.OperationKey, log.OperationFitTransform,
		log.MissingKey, sentinel.Count(scaled.Data),
		log.IterationKey, imp.NIter,
		log.ConvergedKey, imp.Converged,
		log.DurationMsKey, time.Since(fitStart).Milliseconds(),
	}
	if mean, lo, ok := summarizeR2(imp.FinalScores()); ok {
		fields = append(fields, log.R2MeanKey, mean, log.R2MinKey, lo)
	}
	logger.Info("Imputer fitted", fields...)
	if empty := emptyColumns(imp, feats.Columns); len(empty) > 0 {
		logger.Warn("Features without observed training values are filled with 0",
			log.ModelNameKey, "IterativeImputer",
			log.EmptyColumnsKey, empty,
		)
	}

	imputed, err := scaled.WithData(feats.Columns, Xi)
	if err != nil {
		return nil, err
	}
	if err := writeTrain(cfg, imputed, y, logger); err != nil {
		return nil, err
	}
	if err := saveModels(cfg.Paths.ModelDir, logger,
		namedModel{"scaler.gob", scaler},
		namedModel{"imputer.gob", imp},
	); err != nil {
		return nil, err
	}

	testRows, outColumns, err := transformTest(ctx, cfg, logger, feats.Columns, scaler, imp)
	if err != nil {
		return nil, err
	}

	return &Result{
		Pipeline:      config.PipelineImpute,
		TrainRows:     feats.Rows(),
		TestRows:      testRows,
		Features:      feats.Columns,
		OutputColumns: outColumns,
		Iterations:    imp.NIter,
		Converged:     imp.Converged,
		Duration:      time.Since(start),
	}, nil
}

// summarizeR2 returns the mean and minimum of the defined scores.
func summarizeR2(scores []float64) (mean, lo float64, ok bool) {
	lo = math.Inf(1)
	var n int
	for _, s := range scores {
		if math.IsNaN(s) {
			continue
		}
		mean += s
		lo = math.Min(lo, s)
		n++
	}
	if n == 0 {
		return 0, 0, false
	}
	return mean / float64(n), lo, true
}

func emptyColumns(imp *impute.IterativeImputer, columns []string) []string {
	var out []string
	for _, j := range imp.EmptyFeatures {
		out = append(out, columns[j])
	}
	return out
}
