// Package dataset holds the tabular data model shared by the pipelines:
// an identifier-keyed Table, a CSV loader that can stream fixed-size
// chunks, and writers that commit output atomically.
package dataset

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// Table is an ordered set of rows keyed by a unique identifier, with a
// fixed ordered list of numeric columns. Data is nil when the table has no
// rows.
type Table struct {
	Source  string
	IDName  string
	IDs     []string
	Columns []string
	Data    *mat.Dense
}

// Rows returns the number of rows.
func (t *Table) Rows() int {
	return len(t.IDs)
}

// ColumnIndex returns the position of name in Columns, or -1.
func (t *Table) ColumnIndex(name string) int {
	for j, c := range t.Columns {
		if c == name {
			return j
		}
	}
	return -1
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]float64, error) {
	j := t.ColumnIndex(name)
	if j < 0 {
		return nil, errors.NewSchemaError(t.Source, name, 0, "column not found")
	}
	out := make([]float64, t.Rows())
	for i := range out {
		out[i] = t.Data.At(i, j)
	}
	return out, nil
}

// Split separates the label column from the features. The returned
// feature table keeps every other column in file order and shares no
// storage with t.
func (t *Table) Split(label string) ([]float64, *Table, error) {
	y, err := t.Column(label)
	if err != nil {
		return nil, nil, err
	}
	if len(t.Columns) < 2 {
		return nil, nil, errors.NewSchemaError(t.Source, "", 0, "no feature columns besides the label")
	}

	li := t.ColumnIndex(label)
	names := make([]string, 0, len(t.Columns)-1)
	for j, c := range t.Columns {
		if j != li {
			names = append(names, c)
		}
	}

	var data *mat.Dense
	if n := t.Rows(); n > 0 {
		data = mat.NewDense(n, len(names), nil)
		for i := 0; i < n; i++ {
			k := 0
			for j := range t.Columns {
				if j == li {
					continue
				}
				data.Set(i, k, t.Data.At(i, j))
				k++
			}
		}
	}

	return y, &Table{
		Source:  t.Source,
		IDName:  t.IDName,
		IDs:     t.IDs,
		Columns: names,
		Data:    data,
	}, nil
}

// WithData returns a table with the same identifiers and the given columns
// and values. The row count of data must match.
func (t *Table) WithData(columns []string, data mat.Matrix) (*Table, error) {
	out := &Table{Source: t.Source, IDName: t.IDName, IDs: t.IDs, Columns: columns}
	if t.Rows() == 0 {
		return out, nil
	}
	r, c := data.Dims()
	if r != t.Rows() {
		return nil, errors.NewDimensionError("Table.WithData", t.Rows(), r, 0)
	}
	if c != len(columns) {
		return nil, errors.NewDimensionError("Table.WithData", len(columns), c, 1)
	}
	out.Data = mat.DenseCopyOf(data)
	return out, nil
}

// WithLabel returns a table whose first column is the label followed by
// the columns of t.
func (t *Table) WithLabel(name string, values []float64) (*Table, error) {
	if len(values) != t.Rows() {
		return nil, errors.NewDimensionError("Table.WithLabel", t.Rows(), len(values), 0)
	}
	if t.ColumnIndex(name) >= 0 {
		return nil, errors.NewSchemaError(t.Source, name, 0, "label column already present")
	}

	columns := append([]string{name}, t.Columns...)
	out := &Table{Source: t.Source, IDName: t.IDName, IDs: t.IDs, Columns: columns}
	if t.Rows() == 0 {
		return out, nil
	}
	out.Data = mat.NewDense(t.Rows(), len(columns), nil)
	for i := 0; i < t.Rows(); i++ {
		out.Data.Set(i, 0, values[i])
		for j := range t.Columns {
			out.Data.Set(i, j+1, t.Data.At(i, j))
		}
	}
	return out, nil
}

// CheckSchema verifies that t has exactly the given columns in order.
// A different column count is a DimensionError; same count with different
// names or order is a SchemaError.
func (t *Table) CheckSchema(columns []string) error {
	if len(t.Columns) != len(columns) {
		return errors.NewDimensionError("Table.CheckSchema "+t.Source, len(columns), len(t.Columns), 1)
	}
	for j, c := range columns {
		if t.Columns[j] != c {
			return errors.NewSchemaError(t.Source, t.Columns[j], 0,
				"column does not match the fitted schema (expected "+c+")")
		}
	}
	return nil
}
