package pipeline

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepkit/dataset"
	"github.com/YuminosukeSato/prepkit/decomposition"
	"github.com/YuminosukeSato/prepkit/pkg/errors"
	"github.com/YuminosukeSato/prepkit/preprocessing"
)

type sliceSource struct {
	chunks []*dataset.Table
}

func (s *sliceSource) Next() (*dataset.Table, error) {
	if len(s.chunks) == 0 {
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

type collectSink struct {
	chunks []*dataset.Table
}

func (s *collectSink) Write(chunk *dataset.Table) error {
	s.chunks = append(s.chunks, chunk)
	return nil
}

func chunkOf(ids []string, columns []string, values ...float64) *dataset.Table {
	return &dataset.Table{
		IDName:  "ID",
		IDs:     ids,
		Columns: columns,
		Data:    mat.NewDense(len(ids), len(columns), values),
	}
}

func TestChunkStreamAppliesTransformsInOrder(t *testing.T) {
	cols := []string{"a", "b"}
	train := mat.NewDense(4, 2, []float64{1, 2, 2, 4, 3, 7, 4, 9})
	scaler := preprocessing.NewStandardScalerDefault()
	require.NoError(t, scaler.Fit(train))
	spca := decomposition.NewSparsePCA(1)
	Xs, err := scaler.Transform(train)
	require.NoError(t, err)
	require.NoError(t, spca.Fit(Xs))

	src := &sliceSource{chunks: []*dataset.Table{
		chunkOf([]string{"x", "y"}, cols, 1, 2, 3, 4),
		chunkOf([]string{"z"}, cols, 5, 6),
	}}
	stream := NewChunkStream(src, cols, scaler, spca)
	assert.Equal(t, []string{"c1"}, stream.Columns())

	sink := &collectSink{}
	rows, err := Drain(context.Background(), stream, sink, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	require.Len(t, sink.chunks, 2)
	assert.Equal(t, []string{"x", "y"}, sink.chunks[0].IDs)
	assert.Equal(t, []string{"c1"}, sink.chunks[1].Columns)

	// 一括変換と一致する
	whole, err := scaler.Transform(mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6}))
	require.NoError(t, err)
	want, err := spca.Transform(whole)
	require.NoError(t, err)
	assert.InDelta(t, want.At(2, 0), sink.chunks[1].Data.At(0, 0), 1e-12)

	_, err = stream.Next()
	assert.Equal(t, io.EOF, err)
}

func TestChunkStreamRejectsSchemaDrift(t *testing.T) {
	src := &sliceSource{chunks: []*dataset.Table{chunkOf([]string{"x"}, []string{"a", "c"}, 1, 2)}}
	stream := NewChunkStream(src, []string{"a", "b"})

	_, err := stream.Next()
	var se *errors.SchemaError
	assert.True(t, errors.As(err, &se))
}

func TestDrainStopsOnCancelledContext(t *testing.T) {
	src := &sliceSource{chunks: []*dataset.Table{chunkOf([]string{"x"}, []string{"a"}, 1)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &collectSink{}
	_, err := Drain(ctx, src, sink, nil)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, sink.chunks)
}

func TestDrainObservesEveryChunk(t *testing.T) {
	src := &sliceSource{chunks: []*dataset.Table{
		chunkOf([]string{"a"}, []string{"v"}, 1),
		chunkOf([]string{"b", "c"}, []string{"v"}, 2, 3),
	}}
	var seen []int
	rows, err := Drain(context.Background(), NewChunkStream(src, []string{"v"}), &collectSink{},
		func(index int, chunk *dataset.Table) { seen = append(seen, index) })
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	assert.Equal(t, []int{0, 1}, seen)
}
