package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/prepkit/config"
	"github.com/YuminosukeSato/prepkit/core/model"
	"github.com/YuminosukeSato/prepkit/dataset"
	"github.com/YuminosukeSato/prepkit/pkg/errors"
	"github.com/YuminosukeSato/prepkit/pkg/log"
	"github.com/YuminosukeSato/prepkit/preprocessing"
)

// Result summarises a finished run.
type Result struct {
	Pipeline      string
	TrainRows     int
	TestRows      int
	Features      []string
	OutputColumns []string

	// Iterations and Converged describe the iterative fit (imputer or
	// sparse PCA).
	Iterations int
	Converged  bool

	// Lambda is the fitted Box-Cox exponent (sparse-pca only).
	Lambda float64

	Duration time.Duration
}

// namedModel is a fitted model persisted under ModelDir.
type namedModel struct {
	file  string
	model interface{}
}

// loadTrain reads the training table and separates the label column.
func loadTrain(ctx context.Context, cfg *config.Config, logger log.Logger) ([]float64, *dataset.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, errors.WithStack(err)
	}
	start := time.Now()
	train, err := dataset.LoadTable(cfg.Paths.Train, cfg.Data.IDColumn)
	if err != nil {
		return nil, nil, err
	}
	if train.Rows() == 0 {
		return nil, nil, errors.NewModelError("pipeline.loadTrain", "training table has no rows", errors.ErrEmptyData)
	}
	y, feats, err := train.Split(cfg.Data.TargetColumn)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Training table loaded",
		log.OperationKey, log.OperationLoad,
		log.PhaseKey, log.PhaseTrain,
		log.PathKey, cfg.Paths.Train,
		log.SamplesKey, feats.Rows(),
		log.FeaturesKey, len(feats.Columns),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return y, feats, nil
}

// fitScaler fits the standard scaler on the training features and returns
// the scaled matrix.
func fitScaler(cfg *config.Config, feats *dataset.Table, logger log.Logger) (*preprocessing.StandardScaler, *dataset.Table, error) {
	policy, err := preprocessing.ParseZeroVariancePolicy(cfg.Scaler.ZeroVariance)
	if err != nil {
		return nil, nil, err
	}
	scaler := preprocessing.NewStandardScalerDefault()
	scaler.ZeroVariance = policy
	scaler.FeatureNames = feats.Columns

	Xs, err := scaler.FitTransform(feats.Data)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Scaler fitted",
		log.ModelNameKey, "StandardScaler",
		log.OperationKey, log.OperationFitTransform,
		log.FeaturesKey, scaler.NFeatures,
		log.ParamsKey, scaler.GetParams(),
	)
	scaled, err := feats.WithData(feats.Columns, Xs)
	if err != nil {
		return nil, nil, err
	}
	return scaler, scaled, nil
}

// writeTrain writes the label column followed by the transformed features.
func writeTrain(cfg *config.Config, features *dataset.Table, label []float64, logger log.Logger) error {
	out, err := features.WithLabel(cfg.Data.TargetColumn, label)
	if err != nil {
		return err
	}
	if err := ensureDir(cfg.Paths.TrainOut); err != nil {
		return err
	}
	if err := dataset.WriteTable(cfg.Paths.TrainOut, out); err != nil {
		return err
	}
	logger.Info("Training output written",
		log.OperationKey, log.OperationWrite,
		log.PhaseKey, log.PhaseTrain,
		log.PathKey, cfg.Paths.TrainOut,
		log.RowsWrittenKey, out.Rows(),
	)
	return nil
}

// transformTest streams the test table through steps into TestOut. The
// output file is committed only if every chunk succeeds.
func transformTest(ctx context.Context, cfg *config.Config, logger log.Logger, columns []string, steps ...model.Transformer) (rows int, outColumns []string, err error) {
	reader, err := dataset.OpenChunkReader(cfg.Paths.Test, cfg.Data.IDColumn, cfg.Data.ChunkSize)
	if err != nil {
		return 0, nil, err
	}
	defer reader.Close()

	header := &dataset.Table{Source: cfg.Paths.Test, Columns: reader.Columns()}
	if err := header.CheckSchema(columns); err != nil {
		return 0, nil, err
	}

	stream := NewChunkStream(reader, columns, steps...)
	if err := ensureDir(cfg.Paths.TestOut); err != nil {
		return 0, nil, err
	}
	writer, err := dataset.NewChunkWriter(cfg.Paths.TestOut, cfg.Data.IDColumn, stream.Columns())
	if err != nil {
		return 0, nil, err
	}

	start := time.Now()
	rows, err = Drain(ctx, stream, writer, func(index int, chunk *dataset.Table) {
		logger.Debug("Test chunk transformed",
			log.OperationKey, log.OperationTransform,
			log.PhaseKey, log.PhaseTest,
			log.ChunkIndexKey, index,
			log.SamplesKey, chunk.Rows(),
		)
	})
	if err != nil {
		writer.Abort()
		return 0, nil, err
	}
	if err := writer.Close(); err != nil {
		return 0, nil, err
	}

	logger.Info("Test output written",
		log.OperationKey, log.OperationWrite,
		log.PhaseKey, log.PhaseTest,
		log.PathKey, cfg.Paths.TestOut,
		log.RowsWrittenKey, rows,
		log.ChunkSizeKey, cfg.Data.ChunkSize,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return rows, stream.Columns(), nil
}

// saveModels gob-encodes the fitted models into dir. Nothing is written when
// dir is empty.
func saveModels(dir string, logger log.Logger, models ...namedModel) error {
	if dir == "" {
		return nil
	}
	for _, m := range models {
		if f, ok := m.model.(model.FittedChecker); ok && !f.IsFitted() {
			return errors.NewNotFittedError(fmt.Sprintf("%T", m.model), "save")
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewIOError("mkdir", dir, err)
	}
	for _, m := range models {
		path := filepath.Join(dir, m.file)
		if err := model.SaveModel(m.model, path); err != nil {
			return err
		}
		logger.Debug("Model saved", log.PathKey, path)
	}
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewIOError("mkdir", dir, err)
	}
	return nil
}
