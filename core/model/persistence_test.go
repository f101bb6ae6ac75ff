package model

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

type stubModel struct {
	BaseEstimator
	Mean []float64
	Name string
}

var _ FittedChecker = (*stubModel)(nil)

func TestSaveLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stub.gob")
	in := &stubModel{Mean: []float64{1.5, -2}, Name: "stub"}
	in.SetFitted()
	require.NoError(t, SaveModel(in, path))

	var out stubModel
	require.NoError(t, LoadModel(&out, path))
	assert.True(t, out.IsFitted())
	assert.Equal(t, in.Mean, out.Mean)
	assert.Equal(t, "stub", out.Name)

	// 一時ファイルは残らない
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSaveModelFileMode(t *testing.T) {
	dir := t.TempDir()
	ref := filepath.Join(dir, "ref")
	require.NoError(t, os.WriteFile(ref, nil, 0o644))
	refInfo, err := os.Stat(ref)
	require.NoError(t, err)

	path := filepath.Join(dir, "stub.gob")
	require.NoError(t, SaveModel(&stubModel{Name: "m"}, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, refInfo.Mode().Perm(), info.Mode().Perm())
}

func TestSaveModelMissingDirectory(t *testing.T) {
	err := SaveModel(&stubModel{}, filepath.Join(t.TempDir(), "absent", "stub.gob"))
	var ioe *errors.IOError
	assert.True(t, errors.As(err, &ioe))
}

func TestLoadModelErrors(t *testing.T) {
	var out stubModel
	err := LoadModel(&out, filepath.Join(t.TempDir(), "absent.gob"))
	var ioe *errors.IOError
	assert.True(t, errors.As(err, &ioe))

	err = LoadModelFromReader(&out, strings.NewReader("not gob"))
	assert.Error(t, err)
}

func TestBaseEstimatorReset(t *testing.T) {
	var m stubModel
	assert.False(t, m.IsFitted())
	m.SetFitted()
	m.Reset()
	assert.False(t, m.IsFitted())

	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(&m, &buf))
	assert.NotZero(t, buf.Len())
}
