package dataset

import (
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

const sampleCSV = `id,y,a,b
r1,1.5,0,2
r2,2.5,3,
r3,3.5,NA,4
`

func TestReadTable(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader(sampleCSV), "sample", "id")
	require.NoError(t, err)

	assert.Equal(t, []string{"r1", "r2", "r3"}, tbl.IDs)
	assert.Equal(t, []string{"y", "a", "b"}, tbl.Columns)
	assert.Equal(t, 3, tbl.Rows())
	assert.Equal(t, 0.0, tbl.Data.At(0, 1))
	assert.True(t, math.IsNaN(tbl.Data.At(1, 2)), "empty cell should be NaN")
	assert.True(t, math.IsNaN(tbl.Data.At(2, 1)), "NA cell should be NaN")
}

func TestReadTableIdentifierAnywhere(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader("a,key,b\n1,k1,2\n"), "s", "key")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, tbl.Columns)
	assert.Equal(t, []string{"k1"}, tbl.IDs)
	assert.Equal(t, 2.0, tbl.Data.At(0, 1))
}

func TestReadTableSchemaErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"missing identifier column", "a,b\n1,2\n"},
		{"duplicate identifier", "id,a\nx,1\nx,2\n"},
		{"empty identifier", "id,a\n,1\n"},
		{"non-numeric cell", "id,a\nx,abc\n"},
		{"infinite cell", "id,a\nx,inf\n"},
		{"negative infinity", "id,a\nx,-Infinity\n"},
		{"overflowing cell", "id,a\nx,1e400\n"},
		{"ragged row", "id,a,b\nx,1\n"},
		{"duplicate header", "id,a,a\nx,1,2\n"},
		{"empty input", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(strings.NewReader(tt.input), "bad", "id")
			require.Error(t, err)
			var se *errors.SchemaError
			assert.True(t, errors.As(err, &se), "expected SchemaError, got %v", err)
		})
	}
}

func TestReadTableByteOrderMark(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader("\ufeffid,a\nx,1.5\n"), "bom", "id")
	require.NoError(t, err)
	assert.Equal(t, "id", tbl.IDName)
	assert.Equal(t, []string{"a"}, tbl.Columns)
	assert.Equal(t, 1.5, tbl.Data.At(0, 0))
}

func TestReadTableInfiniteCellNamesColumn(t *testing.T) {
	_, err := ReadTable(strings.NewReader("id,a,b\nx,1,2\ny,3,+Inf\n"), "inf.csv", "id")
	var se *errors.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "b", se.Column)
	assert.Equal(t, 2, se.Row)
	assert.Contains(t, se.Reason, "non-finite")
}

func TestLoadTableMissingFile(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "nope.csv"), "id")
	require.Error(t, err)
	var ioe *errors.IOError
	assert.True(t, errors.As(err, &ioe))
}

func TestChunkReader(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,a\n")
	for i := 0; i < 7; i++ {
		b.WriteString("r")
		b.WriteByte(byte('0' + i))
		b.WriteString(",1\n")
	}

	cr, err := NewChunkReader(strings.NewReader(b.String()), "s", "id", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, cr.Columns())

	var sizes []int
	var ids []string
	for {
		chunk, err := cr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, chunk.Rows())
		ids = append(ids, chunk.IDs...)
	}
	assert.Equal(t, []int{3, 3, 1}, sizes)
	assert.Equal(t, []string{"r0", "r1", "r2", "r3", "r4", "r5", "r6"}, ids)

	_, err = cr.Next()
	assert.Equal(t, io.EOF, err, "exhausted reader stays exhausted")
}

func TestChunkReaderDuplicateAcrossChunks(t *testing.T) {
	cr, err := NewChunkReader(strings.NewReader("id,a\nx,1\ny,2\nx,3\n"), "s", "id", 2)
	require.NoError(t, err)

	_, err = cr.Next()
	require.NoError(t, err)
	_, err = cr.Next()
	var se *errors.SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 3, se.Row)
}

func TestChunkReaderRejectsZeroChunk(t *testing.T) {
	_, err := NewChunkReader(strings.NewReader("id,a\n"), "s", "id", 0)
	var ve *errors.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestTableSplitAndLabel(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader(sampleCSV), "sample", "id")
	require.NoError(t, err)

	y, feats, err := tbl.Split("y")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5, 2.5, 3.5}, y)
	assert.Equal(t, []string{"a", "b"}, feats.Columns)
	assert.Equal(t, 3.0, feats.Data.At(1, 0))

	// 元のテーブルとストレージを共有しない
	feats.Data.Set(0, 0, 99)
	assert.Equal(t, 0.0, tbl.Data.At(0, 1))

	back, err := feats.WithLabel("y", y)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "a", "b"}, back.Columns)
	assert.Equal(t, 2.5, back.Data.At(1, 0))

	_, err = back.WithLabel("y", y)
	assert.Error(t, err, "label already present")

	_, _, err = tbl.Split("missing")
	var se *errors.SchemaError
	assert.True(t, errors.As(err, &se))
}

func TestTableWithDataDimensions(t *testing.T) {
	tbl := &Table{IDName: "id", IDs: []string{"a", "b"}, Columns: []string{"x"}, Data: mat.NewDense(2, 1, []float64{1, 2})}

	_, err := tbl.WithData([]string{"c1"}, mat.NewDense(3, 1, nil))
	var de *errors.DimensionError
	require.True(t, errors.As(err, &de))

	out, err := tbl.WithData([]string{"c1", "c2"}, mat.NewDense(2, 2, []float64{1, 2, 3, 4}))
	require.NoError(t, err)
	assert.Equal(t, tbl.IDs, out.IDs)
	assert.Equal(t, 4.0, out.Data.At(1, 1))
}

func TestCheckSchema(t *testing.T) {
	tbl := &Table{Source: "test", Columns: []string{"a", "b"}}

	assert.NoError(t, tbl.CheckSchema([]string{"a", "b"}))

	var de *errors.DimensionError
	assert.True(t, errors.As(tbl.CheckSchema([]string{"a"}), &de))

	var se *errors.SchemaError
	assert.True(t, errors.As(tbl.CheckSchema([]string{"b", "a"}), &se))
}

func TestWriteTableRoundTrip(t *testing.T) {
	tbl, err := ReadTable(strings.NewReader(sampleCSV), "sample", "id")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteTable(path, tbl))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, "id,y,a,b", lines[0])
	assert.Equal(t, "r2,2.5,3,", lines[2], "NaN written as empty cell")

	again, err := LoadTable(path, "id")
	require.NoError(t, err)
	assert.Equal(t, tbl.IDs, again.IDs)
	assert.Equal(t, tbl.Columns, again.Columns)
}

func TestChunkWriterHeaderOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.csv")
	w, err := NewChunkWriter(path, "id", []string{"a"})
	require.NoError(t, err)

	for _, id := range []string{"x", "y", "z"} {
		chunk := &Table{IDName: "id", IDs: []string{id}, Columns: []string{"a"}, Data: mat.NewDense(1, 1, []float64{1})}
		require.NoError(t, w.Write(chunk))
	}

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "destination must not appear before Close")

	require.NoError(t, w.Close())
	assert.Equal(t, 3, w.Rows())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,a\nx,1\ny,1\nz,1\n", string(raw))
}

// umaskedMode は dir に FileMode で作ったファイルの実際のパーミッション
func umaskedMode(t *testing.T, dir string) os.FileMode {
	t.Helper()
	ref := filepath.Join(dir, "ref")
	require.NoError(t, os.WriteFile(ref, nil, FileMode))
	info, err := os.Stat(ref)
	require.NoError(t, err)
	return info.Mode().Perm()
}

func TestOutputFilesUseFileMode(t *testing.T) {
	dir := t.TempDir()
	want := umaskedMode(t, dir)
	tbl, err := ReadTable(strings.NewReader(sampleCSV), "sample", "id")
	require.NoError(t, err)

	table := filepath.Join(dir, "table.csv")
	require.NoError(t, WriteTable(table, tbl))

	chunked := filepath.Join(dir, "chunked.csv")
	w, err := NewChunkWriter(chunked, "id", tbl.Columns)
	require.NoError(t, err)
	require.NoError(t, w.Write(tbl))
	require.NoError(t, w.Close())

	raw := filepath.Join(dir, "raw.txt")
	require.NoError(t, WriteFileAtomic(raw, func(w io.Writer) error {
		_, err := io.WriteString(w, "ok")
		return err
	}))

	for _, path := range []string{table, chunked, raw} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, want, info.Mode().Perm(), path)
	}
}

func TestWriteFileAtomicFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.txt")
	err := WriteFileAtomic(path, func(io.Writer) error { return errors.New("boom") })

	var ioe *errors.IOError
	assert.True(t, errors.As(err, &ioe))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChunkWriterEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	w, err := NewChunkWriter(path, "id", []string{"c1", "c2"})
	require.NoError(t, err)
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,c1,c2\n", string(raw))
}

func TestChunkWriterAbortAndSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aborted.csv")
	w, err := NewChunkWriter(path, "id", []string{"a"})
	require.NoError(t, err)

	bad := &Table{IDName: "id", IDs: []string{"x"}, Columns: []string{"b"}, Data: mat.NewDense(1, 1, nil)}
	require.Error(t, w.Write(bad))

	w.Abort()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "abort leaves nothing behind")
}
