package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/google/renameio/v2"

	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// FileMode is the permission of every output file, before the umask.
const FileMode os.FileMode = 0o644

// WriteTable writes t to path as CSV with a header row and the identifier
// as first column. The file appears only once it is completely written.
func WriteTable(path string, t *Table) (err error) {
	af, err := createAtomic(path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			af.abort()
		}
	}()

	if err = Encode(af.f, t, true); err != nil {
		return errors.NewIOError("write", path, err)
	}
	return af.commit()
}

// WriteFileAtomic creates path with FileMode through write. The file
// appears only if write succeeds; an existing file is replaced whole.
func WriteFileAtomic(path string, write func(w io.Writer) error) (err error) {
	af, err := createAtomic(path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			af.abort()
		}
	}()

	if err = write(af.f); err != nil {
		return errors.NewIOError("write", path, err)
	}
	return af.commit()
}

// Encode writes the rows of t to w, preceded by the header when header is
// true. NaN cells are written empty.
func Encode(w io.Writer, t *Table, header bool) error {
	cw := csv.NewWriter(w)
	rec := make([]string, len(t.Columns)+1)

	if header {
		rec[0] = t.IDName
		copy(rec[1:], t.Columns)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	for i, id := range t.IDs {
		rec[0] = id
		for j := range t.Columns {
			rec[j+1] = formatFloat(t.Data.At(i, j))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ChunkWriter appends chunks of one table to a destination file. The
// header is written once, before the first chunk; every chunk must carry
// the same columns. Nothing is visible at path until Close succeeds.
type ChunkWriter struct {
	path    string
	idName  string
	columns []string
	af      *atomicFile
	header  bool
	rows    int
}

// NewChunkWriter starts a chunked write of a table with the given
// identifier name and columns.
func NewChunkWriter(path, idName string, columns []string) (*ChunkWriter, error) {
	af, err := createAtomic(path)
	if err != nil {
		return nil, err
	}
	return &ChunkWriter{path: path, idName: idName, columns: columns, af: af}, nil
}

// Write appends the rows of chunk.
func (w *ChunkWriter) Write(chunk *Table) error {
	if w.af == nil {
		return errors.NewIOError("write", w.path, os.ErrClosed)
	}
	if err := chunk.CheckSchema(w.columns); err != nil {
		return err
	}
	out := *chunk
	out.IDName = w.idName
	if err := Encode(w.af.f, &out, !w.header); err != nil {
		return errors.NewIOError("write", w.path, err)
	}
	w.header = true
	w.rows += chunk.Rows()
	return nil
}

// Rows returns the number of data rows written so far.
func (w *ChunkWriter) Rows() int {
	return w.rows
}

// Close writes the header if no chunk was written and commits the file.
func (w *ChunkWriter) Close() error {
	if w.af == nil {
		return nil
	}
	if !w.header {
		empty := &Table{IDName: w.idName, Columns: w.columns}
		if err := Encode(w.af.f, empty, true); err != nil {
			w.Abort()
			return errors.NewIOError("write", w.path, err)
		}
		w.header = true
	}
	af := w.af
	w.af = nil
	return af.commit()
}

// Abort discards everything written so far.
func (w *ChunkWriter) Abort() {
	if w.af != nil {
		w.af.abort()
		w.af = nil
	}
}

// atomicFile is a pending file in the destination directory that is
// renamed over the destination on commit.
type atomicFile struct {
	path string
	f    *renameio.PendingFile
}

func createAtomic(path string) (*atomicFile, error) {
	f, err := renameio.NewPendingFile(path, renameio.WithPermissions(FileMode))
	if err != nil {
		return nil, errors.NewIOError("create", path, err)
	}
	return &atomicFile{path: path, f: f}, nil
}

func (a *atomicFile) commit() error {
	if err := a.f.CloseAtomicallyReplace(); err != nil {
		_ = a.f.Cleanup()
		return errors.NewIOError("rename", a.path, err)
	}
	return nil
}

func (a *atomicFile) abort() {
	_ = a.f.Cleanup()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
