// Package config holds the run configuration of both pipelines.
//
// A Config is built once at start-up from Default, an optional YAML file,
// PREP_* environment variables and command-line flags, in that order, and
// is treated as read-only afterwards.
package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/prepkit/impute"
	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "PREP"

// Pipeline names.
const (
	PipelineImpute    = "impute"
	PipelineSparsePCA = "sparse-pca"
)

// Default processing-job locations.
const (
	DefaultInputRoot  = "/opt/ml/processing/input"
	DefaultOutputRoot = "/opt/ml/processing"
)

// Config represents the complete run configuration.
type Config struct {
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Data      DataConfig      `yaml:"data" envconfig:"DATA"`
	Scaler    ScalerConfig    `yaml:"scaler" envconfig:"SCALER"`
	Imputer   ImputerConfig   `yaml:"imputer" envconfig:"IMPUTER"`
	SparsePCA SparsePCAConfig `yaml:"sparse_pca" envconfig:"SPARSE_PCA"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
}

// PathsConfig contains input and output locations.
type PathsConfig struct {
	Train    string `yaml:"train" envconfig:"TRAIN" validate:"required"`
	Test     string `yaml:"test" envconfig:"TEST" validate:"required"`
	TrainOut string `yaml:"train_out" envconfig:"TRAIN_OUT" validate:"required"`
	TestOut  string `yaml:"test_out" envconfig:"TEST_OUT" validate:"required"`

	// ModelDir receives the gob-encoded fitted models when set.
	ModelDir string `yaml:"model_dir" envconfig:"MODEL_DIR"`

	// TargetPlot receives a histogram of the transformed label when set.
	TargetPlot string `yaml:"target_plot" envconfig:"TARGET_PLOT"`
}

// DataConfig describes the tables.
type DataConfig struct {
	IDColumn     string `yaml:"id_column" envconfig:"ID_COLUMN" validate:"required"`
	TargetColumn string `yaml:"target_column" envconfig:"TARGET_COLUMN" validate:"required,nefield=IDColumn"`
	ChunkSize    int    `yaml:"chunk_size" envconfig:"CHUNK_SIZE" validate:"min=1"`
}

// ScalerConfig configures the standard scaler.
type ScalerConfig struct {
	ZeroVariance string `yaml:"zero_variance" envconfig:"ZERO_VARIANCE" validate:"oneof=error unit"`
}

// ImputerConfig configures the iterative imputer.
type ImputerConfig struct {
	MissingValue string  `yaml:"missing_value" envconfig:"MISSING_VALUE" validate:"required"`
	MaxIter      int     `yaml:"max_iter" envconfig:"MAX_ITER" validate:"min=0"`
	Tol          float64 `yaml:"tol" envconfig:"TOL" validate:"gt=0"`
	Estimator    string  `yaml:"estimator" envconfig:"ESTIMATOR" validate:"oneof=bayesian_ridge linear_regression"`
}

// SparsePCAConfig configures the sparse decomposition.
type SparsePCAConfig struct {
	NComponents int     `yaml:"n_components" envconfig:"N_COMPONENTS" validate:"min=1"`
	Alpha       float64 `yaml:"alpha" envconfig:"ALPHA" validate:"gte=0"`
	RidgeAlpha  float64 `yaml:"ridge_alpha" envconfig:"RIDGE_ALPHA" validate:"gt=0"`
	MaxIter     int     `yaml:"max_iter" envconfig:"MAX_ITER" validate:"min=1"`
	Tol         float64 `yaml:"tol" envconfig:"TOL" validate:"gte=0"`
	Seed        int64   `yaml:"seed" envconfig:"SEED"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json console"`
}

// Default returns the configuration of the original processing job. Output
// paths are left empty; ApplyPipelineDefaults fills them per pipeline.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Train: filepath.Join(DefaultInputRoot, "train", "train.csv"),
			Test:  filepath.Join(DefaultInputRoot, "test", "test.csv"),
		},
		Data: DataConfig{
			IDColumn:     "ID",
			TargetColumn: "target",
			ChunkSize:    2000,
		},
		Scaler: ScalerConfig{ZeroVariance: "error"},
		Imputer: ImputerConfig{
			MissingValue: "zero",
			MaxIter:      10,
			Tol:          1e-3,
			Estimator:    impute.EstimatorBayesianRidge,
		},
		SparsePCA: SparsePCAConfig{
			NComponents: 200,
			Alpha:       1,
			RidgeAlpha:  0.01,
			MaxIter:     1000,
			Tol:         1e-8,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load builds a configuration from Default, the YAML file at path (skipped
// when path is empty) and PREP_* environment variables. The result is not
// validated; call Validate once every overlay has been applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewIOError("read", path, err)
		}
		if err := cfg.decodeYAML(bytes.NewReader(data)); err != nil {
			return nil, errors.Wrapf(err, "config file %s", path)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.NewValidationError("environment", err.Error(), EnvPrefix+"_*")
	}
	return cfg, nil
}

func (c *Config) decodeYAML(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return errors.NewValidationError("config", err.Error(), nil)
	}
	return nil
}

// ApplyPipelineDefaults fills unset output paths with the processing-job
// locations of the named pipeline.
func (c *Config) ApplyPipelineDefaults(pipeline string) {
	var trainName, testName string
	switch pipeline {
	case PipelineSparsePCA:
		trainName, testName = "train_sparse_pca.csv", "test_sparse_pca.csv"
	default:
		trainName, testName = "train_imputed.csv", "test_imputed.csv"
	}
	if c.Paths.TrainOut == "" {
		c.Paths.TrainOut = filepath.Join(DefaultOutputRoot, "train", trainName)
	}
	if c.Paths.TestOut == "" {
		c.Paths.TestOut = filepath.Join(DefaultOutputRoot, "test", testName)
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field constraint and returns the first violation as
// a ValidationError.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return errors.NewValidationError(fieldName(fe.Namespace()),
				"failed on the '"+fe.Tag()+"' rule", fe.Value())
		}
		return errors.Wrap(err, "config validation")
	}
	if _, err := impute.ParseSentinel(c.Imputer.MissingValue); err != nil {
		return err
	}
	if c.Paths.TrainOut == c.Paths.TestOut {
		return errors.NewValidationError("paths.test_out", "must differ from paths.train_out", c.Paths.TestOut)
	}
	return nil
}

// fieldName turns "Config.Data.ChunkSize" into "data.chunksize".
func fieldName(ns string) string {
	ns = strings.TrimPrefix(ns, "Config.")
	return strings.ToLower(ns)
}
