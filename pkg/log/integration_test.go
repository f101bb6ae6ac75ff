package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

func TestTestLogger(t *testing.T) {
	testLogger, buffer := NewTestLogger(LevelDebug)

	testLogger.Debug("debug message", "key1", "value1", "number", 42)
	testLogger.Info("info message", OperationKey, OperationFit)
	testLogger.Warn("warning message")
	testLogger.Error("error message", fmt.Errorf("boom"), PathKey, "train.csv")

	require.NotEmpty(t, buffer.String())
	assert.True(t, testLogger.ContainsMessage("debug message"))
	assert.True(t, testLogger.ContainsMessage("error message"))
	assert.True(t, testLogger.ContainsField("key1", "value1"))
	assert.True(t, testLogger.ContainsField("number", 42.0))
	assert.True(t, testLogger.ContainsField(ErrAttrKey, "boom"))
	assert.True(t, testLogger.ContainsField(PathKey, "train.csv"))
}

func TestTestLoggerLevelAndWith(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelWarn)

	ctxLogger := testLogger.With(ComponentKey, "impute", PhaseKey, PhaseTest)
	ctxLogger.Info("dropped")
	ctxLogger.Warn("kept")

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["message"])
	assert.Equal(t, "impute", entries[0][ComponentKey])
	assert.Equal(t, PhaseTest, entries[0][PhaseKey])

	assert.False(t, testLogger.Enabled(context.Background(), LevelInfo))
	assert.True(t, testLogger.Enabled(context.Background(), LevelError))
}

func TestSetupJSON(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)
	defer errors.SetZerologWarnFunc(nil)

	var buf bytes.Buffer
	logger, err := Setup("info", FormatJSON, &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Scaler fitted", SamplesKey, 3, FeaturesKey, 2)
	logger.Error("write failed", errors.NewIOError("write", "out.csv", fmt.Errorf("disk full")))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "INFO", first["severity"])
	assert.Equal(t, "Scaler fitted", first["message"])
	assert.Equal(t, 3.0, first[SamplesKey])

	var second map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Contains(t, second[ErrAttrKey], "disk full")

	assert.Same(t, logger, GetLogger())
}

func TestSetupConsoleRoutesWarnings(t *testing.T) {
	prev := GetLogger()
	defer SetLogger(prev)
	defer errors.SetZerologWarnFunc(nil)

	var buf bytes.Buffer
	logger, err := Setup("debug", FormatConsole, &buf)
	require.NoError(t, err)
	assert.True(t, logger.Enabled(context.Background(), LevelDebug))

	errors.Warn(errors.NewConvergenceWarning("IterativeImputer", 10, "early stopping criterion not reached"))

	out := buf.String()
	assert.Contains(t, out, "IterativeImputer failed to converge after 10 iterations")
	assert.Contains(t, out, "WRN")
}

func TestSetupRejectsUnknownValues(t *testing.T) {
	_, err := Setup("verbose", FormatJSON, &bytes.Buffer{})
	var valErr *errors.ValidationError
	assert.True(t, errors.As(err, &valErr))

	_, err = Setup("info", "xml", &bytes.Buffer{})
	assert.True(t, errors.As(err, &valErr))
}

func TestConcurrentLogging(t *testing.T) {
	testLogger, _ := NewTestLogger(LevelInfo)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				testLogger.Info("chunk written", ChunkIndexKey, id*10+j)
			}
		}(i)
	}
	wg.Wait()

	entries, err := testLogger.GetLogEntries()
	require.NoError(t, err)
	assert.Len(t, entries, 80)
}
