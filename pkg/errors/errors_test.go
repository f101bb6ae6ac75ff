package errors

import (
	"fmt"
	"os"
	"strings"
	"testing"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "SparsePCA.Fit",
			kind:    "empty data",
			err:     ErrEmptyData,
			wantMsg: "prepkit: SparsePCA.Fit: empty data: empty data",
		},
		{
			name:    "without original error",
			op:      "BoxCox.Transform",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "prepkit: BoxCox.Transform: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}

			var modelErr *ModelError
			if !As(err, &modelErr) {
				t.Error("Error should be castable to *ModelError")
			}
			if tt.err != nil && !Is(err, tt.err) {
				t.Error("ModelError should unwrap to the original error")
			}
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("StandardScaler.Transform", 3, 2, 1)

	want := "prepkit: StandardScaler.Transform: dimension mismatch on axis 1 (features). Expected 3, got 2"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatal("Error should be castable to *DimensionError")
	}
	if dimErr.Expected != 3 || dimErr.Got != 2 {
		t.Errorf("unexpected fields: %+v", dimErr)
	}
}

func TestNewIOError(t *testing.T) {
	err := NewIOError("open", "/no/such/train.csv", os.ErrNotExist)

	if !strings.HasPrefix(err.Error(), "prepkit: open /no/such/train.csv: ") {
		t.Errorf("unexpected message: %v", err)
	}

	var ioErr *IOError
	if !As(err, &ioErr) {
		t.Fatal("Error should be castable to *IOError")
	}
	if !Is(err, os.ErrNotExist) {
		t.Error("IOError should unwrap to os.ErrNotExist")
	}
}

func TestNewSchemaError(t *testing.T) {
	tests := []struct {
		name    string
		column  string
		row     int
		wantMsg string
	}{
		{
			name:    "row and column",
			column:  "ID",
			row:     4,
			wantMsg: `prepkit: schema error in train.csv:4 (column "ID"): duplicate identifier "7"`,
		},
		{
			name:    "header level",
			column:  "",
			row:     0,
			wantMsg: `prepkit: schema error in train.csv: duplicate identifier "7"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewSchemaError("train.csv", tt.column, tt.row, `duplicate identifier "7"`)
			if err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", err.Error(), tt.wantMsg)
			}
			var schemaErr *SchemaError
			if !As(err, &schemaErr) {
				t.Error("Error should be castable to *SchemaError")
			}
		})
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("IterativeImputer", "Transform")

	want := "prepkit: IterativeImputer: this model is not fitted yet. Call Fit() before using Transform()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewValueError(t *testing.T) {
	err := NewValueErrorf("BoxCox.Fit", "data must be positive (found %g at index %d)", -1.0, 3)

	want := "prepkit: BoxCox.Fit: data must be positive (found -1 at index 3)"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var valErr *ValueError
	if !As(err, &valErr) {
		t.Error("Error should be castable to *ValueError")
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("n_components", "must be at least 1", 0)

	want := "prepkit: validation failed for parameter 'n_components': must be at least 1 (got: 0)"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}
}

func TestWarn(t *testing.T) {
	var got []error
	prev := SetWarningHandler(func(w error) {
		got = append(got, w)
	})
	defer SetWarningHandler(prev)

	Warn(NewConvergenceWarning("IterativeImputer", 10, "early stopping criterion not reached"))

	if len(got) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(got))
	}
	want := "IterativeImputer failed to converge after 10 iterations: early stopping criterion not reached"
	if got[0].Error() != want {
		t.Errorf("Error() = %v, want %v", got[0].Error(), want)
	}

	// zerolog側が設定されていればそちらが優先される
	var viaZerolog int
	SetZerologWarnFunc(func(error) { viaZerolog++ })
	defer SetZerologWarnFunc(nil)

	Warn(NewConvergenceWarning("IterativeImputer", 10, ""))
	if viaZerolog != 1 || len(got) != 1 {
		t.Errorf("expected zerolog func to take precedence, zerolog=%d handler=%d", viaZerolog, len(got))
	}
}
