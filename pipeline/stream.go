// Package pipeline wires the loaders, fitted transforms and writers into
// the two batch preparation runs.
//
// Both runs fit on the training table only. The test table is streamed
// through the frozen transforms chunk by chunk, so memory stays bounded by
// the chunk size and the transform logic can be exercised without files
// through ChunkStream.
package pipeline

import (
	"context"
	"io"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepkit/core/model"
	"github.com/YuminosukeSato/prepkit/dataset"
	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// ChunkSource yields consecutive row chunks and io.EOF once exhausted.
// *dataset.ChunkReader satisfies it.
type ChunkSource interface {
	Next() (*dataset.Table, error)
}

// ChunkSink consumes chunks in order. *dataset.ChunkWriter satisfies it.
type ChunkSink interface {
	Write(chunk *dataset.Table) error
}

// ChunkStream applies an ordered list of fitted transforms to every chunk
// of a source. Like its source it is lazy, finite and not restartable.
type ChunkStream struct {
	src     ChunkSource
	in      []string
	out     []string
	steps   []model.Transformer
	index   int
	stopped bool
}

// NewChunkStream returns a stream over src. Every chunk must carry exactly
// the columns the transforms were fitted on.
func NewChunkStream(src ChunkSource, columns []string, steps ...model.Transformer) *ChunkStream {
	out := columns
	for _, step := range steps {
		if namer, ok := step.(model.OutputNamer); ok {
			out = namer.OutputNames(out)
		}
	}
	return &ChunkStream{src: src, in: columns, out: out, steps: steps}
}

// Columns returns the column names of the transformed chunks.
func (s *ChunkStream) Columns() []string {
	return s.out
}

// Next transforms and returns the next chunk, or io.EOF at the end.
func (s *ChunkStream) Next() (*dataset.Table, error) {
	if s.stopped {
		return nil, io.EOF
	}
	chunk, err := s.src.Next()
	if err != nil {
		if err == io.EOF {
			s.stopped = true
		}
		return nil, err
	}
	idx := s.index
	s.index++

	if err := chunk.CheckSchema(s.in); err != nil {
		return nil, err
	}

	var X mat.Matrix = chunk.Data
	for _, step := range s.steps {
		if X, err = step.Transform(X); err != nil {
			return nil, errors.Wrapf(err, "chunk %d", idx)
		}
	}
	return chunk.WithData(s.out, X)
}

// Drain copies every chunk of src into sink in order and returns the number
// of rows written. The context is checked before each chunk; observe, when
// non-nil, is called after each chunk has been written.
func Drain(ctx context.Context, src ChunkSource, sink ChunkSink, observe func(index int, chunk *dataset.Table)) (int, error) {
	rows := 0
	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return rows, errors.Wrapf(err, "stopped before chunk %d", index)
		}
		chunk, err := src.Next()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		if err := sink.Write(chunk); err != nil {
			return rows, err
		}
		rows += chunk.Rows()
		if observe != nil {
			observe(index, chunk)
		}
	}
}
