package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// DefaultChunkSize is the number of rows per streamed chunk.
const DefaultChunkSize = 2000

// ChunkReader reads a CSV table lazily in chunks of at most ChunkSize
// rows. It is finite and cannot be restarted; duplicate identifiers are
// detected across chunks.
type ChunkReader struct {
	source    string
	idName    string
	chunkSize int

	r       *csv.Reader
	closer  io.Closer
	idIdx   int
	colIdx  []int
	columns []string

	seen map[string]struct{}
	row  int
	done bool
}

// OpenChunkReader opens path and reads its header.
func OpenChunkReader(path, idName string, chunkSize int) (*ChunkReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	cr, err := NewChunkReader(f, path, idName, chunkSize)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	cr.closer = f
	return cr, nil
}

// NewChunkReader reads the header from r. source is used in error messages.
func NewChunkReader(r io.Reader, source, idName string, chunkSize int) (*ChunkReader, error) {
	if chunkSize < 1 {
		return nil, errors.NewValidationError("chunk_size", "must be at least 1", chunkSize)
	}

	cr := &ChunkReader{
		source:    source,
		idName:    idName,
		chunkSize: chunkSize,
		r:         csv.NewReader(bufio.NewReader(r)),
		seen:      make(map[string]struct{}),
	}
	cr.r.ReuseRecord = true
	cr.r.TrimLeadingSpace = true

	header, err := cr.r.Read()
	if err == io.EOF {
		return nil, errors.NewSchemaError(source, "", 0, "missing header row")
	}
	if err != nil {
		return nil, cr.readError(err)
	}

	cr.idIdx = -1
	names := make(map[string]struct{}, len(header))
	for j, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := names[h]; dup {
			return nil, errors.NewSchemaError(source, h, 0, "duplicate column name")
		}
		names[h] = struct{}{}
		if h == idName {
			cr.idIdx = j
			continue
		}
		cr.colIdx = append(cr.colIdx, j)
		cr.columns = append(cr.columns, h)
	}
	if cr.idIdx < 0 {
		return nil, errors.NewSchemaError(source, idName, 0, "identifier column not found")
	}
	cr.r.FieldsPerRecord = len(header)
	return cr, nil
}

// Columns returns the data column names (identifier excluded).
func (cr *ChunkReader) Columns() []string {
	return cr.columns
}

// Next returns the next chunk, or io.EOF once the input is exhausted.
// Returned chunks are never empty.
func (cr *ChunkReader) Next() (*Table, error) {
	t, err := cr.read(cr.chunkSize)
	if err != nil {
		return nil, err
	}
	if t.Rows() == 0 {
		return nil, io.EOF
	}
	return t, nil
}

// Close releases the underlying file when the reader owns one.
func (cr *ChunkReader) Close() error {
	if cr.closer == nil {
		return nil
	}
	err := cr.closer.Close()
	cr.closer = nil
	return err
}

// read consumes up to limit rows; limit <= 0 means all remaining rows.
func (cr *ChunkReader) read(limit int) (*Table, error) {
	t := &Table{Source: cr.source, IDName: cr.idName, Columns: cr.columns}
	if cr.done {
		return t, nil
	}

	nc := len(cr.columns)
	var values []float64
	for limit <= 0 || len(t.IDs) < limit {
		rec, err := cr.r.Read()
		if err == io.EOF {
			cr.done = true
			break
		}
		if err != nil {
			return nil, cr.readError(err)
		}
		cr.row++

		id := strings.TrimSpace(rec[cr.idIdx])
		if id == "" {
			return nil, errors.NewSchemaError(cr.source, cr.idName, cr.row, "empty identifier")
		}
		if _, dup := cr.seen[id]; dup {
			return nil, errors.NewSchemaError(cr.source, cr.idName, cr.row, fmt.Sprintf("duplicate identifier %q", id))
		}
		cr.seen[id] = struct{}{}
		t.IDs = append(t.IDs, id)

		for k, j := range cr.colIdx {
			v, bad := parseCell(rec[j])
			if bad != "" {
				return nil, errors.NewSchemaError(cr.source, cr.columns[k], cr.row,
					fmt.Sprintf("%s %q", bad, rec[j]))
			}
			values = append(values, v)
		}
	}

	if len(t.IDs) > 0 && nc > 0 {
		t.Data = mat.NewDense(len(t.IDs), nc, values)
	}
	return t, nil
}

func (cr *ChunkReader) readError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) && errors.Is(pe.Err, csv.ErrFieldCount) {
		return errors.NewSchemaError(cr.source, "", pe.Line-1, "wrong number of fields")
	}
	return errors.NewIOError("read", cr.source, err)
}

// ReadTable reads the whole of r into a Table keyed by idName.
func ReadTable(r io.Reader, source, idName string) (*Table, error) {
	cr, err := NewChunkReader(r, source, idName, DefaultChunkSize)
	if err != nil {
		return nil, err
	}
	return cr.read(0)
}

// LoadTable reads the CSV file at path into a Table keyed by idName.
func LoadTable(path, idName string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	defer f.Close()
	return ReadTable(f, path, idName)
}

// parseCell parses a numeric cell. Empty cells and the usual NA spellings
// become NaN. Infinities are rejected, as is anything ParseFloat refuses.
func parseCell(s string) (float64, string) {
	s = strings.TrimSpace(s)
	switch s {
	case "", "NA", "NaN", "nan", "null":
		return math.NaN(), ""
	}
	v, err := strconv.ParseFloat(s, 64)
	switch {
	case err != nil && !errors.Is(err, strconv.ErrRange):
		return 0, "non-numeric value"
	case err != nil || math.IsInf(v, 0):
		return 0, "non-finite value"
	}
	return v, ""
}
