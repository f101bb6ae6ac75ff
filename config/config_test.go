package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	for _, p := range []string{PipelineImpute, PipelineSparsePCA} {
		cfg := Default()
		cfg.ApplyPipelineDefaults(p)
		assert.NoError(t, cfg.Validate(), p)
	}

	cfg := Default()
	cfg.ApplyPipelineDefaults(PipelineSparsePCA)
	assert.Equal(t, "/opt/ml/processing/input/train/train.csv", cfg.Paths.Train)
	assert.Equal(t, "/opt/ml/processing/train/train_sparse_pca.csv", cfg.Paths.TrainOut)
	assert.Equal(t, "/opt/ml/processing/test/test_sparse_pca.csv", cfg.Paths.TestOut)
	assert.Equal(t, 200, cfg.SparsePCA.NComponents)
	assert.Equal(t, 2000, cfg.Data.ChunkSize)
}

func TestLoadLayersFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prep.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data:
  id_column: row_id
  chunk_size: 500
sparse_pca:
  n_components: 20
logging:
  format: console
`), 0o644))

	t.Setenv("PREP_DATA_CHUNK_SIZE", "64")
	t.Setenv("PREP_IMPUTER_ESTIMATOR", "linear_regression")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "row_id", cfg.Data.IDColumn)
	assert.Equal(t, 64, cfg.Data.ChunkSize, "environment overrides the file")
	assert.Equal(t, 20, cfg.SparsePCA.NComponents)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "linear_regression", cfg.Imputer.Estimator)
	assert.Equal(t, "target", cfg.Data.TargetColumn, "untouched fields keep their defaults")
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Data, cfg.Data)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	var ioe *errors.IOError
	assert.True(t, errors.As(err, &ioe))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data:\n  chunk: 3\n"), 0o644))
	_, err = Load(path)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve), "unknown keys are rejected")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunk size", func(c *Config) { c.Data.ChunkSize = 0 }},
		{"zero components", func(c *Config) { c.SparsePCA.NComponents = 0 }},
		{"unknown estimator", func(c *Config) { c.Imputer.Estimator = "forest" }},
		{"unknown zero variance policy", func(c *Config) { c.Scaler.ZeroVariance = "drop" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"target equals id", func(c *Config) { c.Data.TargetColumn = c.Data.IDColumn }},
		{"bad sentinel", func(c *Config) { c.Imputer.MissingValue = "blank" }},
		{"same outputs", func(c *Config) { c.Paths.TestOut = c.Paths.TrainOut }},
		{"missing train path", func(c *Config) { c.Paths.Train = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.ApplyPipelineDefaults(PipelineImpute)
			tt.mutate(cfg)
			err := cfg.Validate()
			var ve *errors.ValidationError
			assert.True(t, errors.As(err, &ve), "got %v", err)
		})
	}
}
