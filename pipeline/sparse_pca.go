package pipeline

import (
	"context"
	"time"

	"github.com/YuminosukeSato/prepkit/config"
	"github.com/YuminosukeSato/prepkit/decomposition"
	"github.com/YuminosukeSato/prepkit/pkg/errors"
	"github.com/YuminosukeSato/prepkit/pkg/log"
	"github.com/YuminosukeSato/prepkit/preprocessing"
	"github.com/YuminosukeSato/prepkit/report"
)

// RunSparsePCA Box-Cox transforms the training label, scales the training
// features and fits sparse PCA on them, writing [ID, target, c1..cN]. The
// test table is streamed in chunks of cfg.Data.ChunkSize through the scaler
// and the decomposition and appended as [ID, c1..cN]; the header is written
// once.
//
// cfg must have been validated.
func RunSparsePCA(ctx context.Context, cfg *config.Config, logger log.Logger) (res *Result, err error) {
	defer errors.Recover(&err, "pipeline.RunSparsePCA")

	start := time.Now()
	logger = logger.With(log.PipelineKey, config.PipelineSparsePCA)

	y, feats, err := loadTrain(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	boxcox := preprocessing.NewBoxCox()
	yt, err := boxcox.FitTransform(y)
	if err != nil {
		return nil, errors.Wrapf(err, "label column %q", cfg.Data.TargetColumn)
	}
	logger.Info("Label transformed",
		log.ModelNameKey, "BoxCox",
		log.OperationKey, log.OperationFitTransform,
		log.LambdaKey, boxcox.Lambda,
	)
	if cfg.Paths.TargetPlot != "" {
		if err := ensureDir(cfg.Paths.TargetPlot); err != nil {
			return nil, err
		}
		if err := report.TargetHistogram(cfg.Paths.TargetPlot, cfg.Data.TargetColumn+" (Box-Cox)", yt); err != nil {
			return nil, err
		}
		logger.Debug("Label histogram written", log.PathKey, cfg.Paths.TargetPlot)
	}

	scaler, scaled, err := fitScaler(cfg, feats, logger)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	spca := decomposition.NewSparsePCA(cfg.SparsePCA.NComponents)
	spca.Alpha = cfg.SparsePCA.Alpha
	spca.RidgeAlpha = cfg.SparsePCA.RidgeAlpha
	spca.MaxIter = cfg.SparsePCA.MaxIter
	spca.Tol = cfg.SparsePCA.Tol
	spca.RandomState = cfg.SparsePCA.Seed

	fitStart := time.Now()
	Z, err := spca.FitTransform(scaled.Data)
	if err != nil {
		return nil, err
	}
	logger.Info("Sparse PCA fitted",
		log.ModelNameKey, "SparsePCA",
		log.OperationKey, log.OperationFitTransform,
		log.ComponentsKey, spca.NComponents,
		log.IterationKey, spca.NIter,
		log.ConvergedKey, spca.Converged,
		log.RandomSeedKey, spca.RandomState,
		log.DurationMsKey, time.Since(fitStart).Milliseconds(),
	)

	components, err := scaled.WithData(spca.OutputNames(feats.Columns), Z)
	if err != nil {
		return nil, err
	}
	if err := writeTrain(cfg, components, yt, logger); err != nil {
		return nil, err
	}
	if err := saveModels(cfg.Paths.ModelDir, logger,
		namedModel{"boxcox.gob", boxcox},
		namedModel{"scaler.gob", scaler},
		namedModel{"sparse_pca.gob", spca},
	); err != nil {
		return nil, err
	}

	testRows, outColumns, err := transformTest(ctx, cfg, logger, feats.Columns, scaler, spca)
	if err != nil {
		return nil, err
	}

	return &Result{
		Pipeline:      config.PipelineSparsePCA,
		TrainRows:     feats.Rows(),
		TestRows:      testRows,
		Features:      feats.Columns,
		OutputColumns: outColumns,
		Iterations:    spca.NIter,
		Converged:     spca.Converged,
		Lambda:        boxcox.Lambda,
		Duration:      time.Since(start),
	}, nil
}
