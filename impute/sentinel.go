// Package impute は欠損値の補完を行う変換器を提供します。
//
// 欠損値は Sentinel（番兵値）で表します。デフォルトの ZeroSentinel は
// 標準化後の値がちょうど0のセルを欠損とみなします。
package impute

import (
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// Sentinel は欠損を表す値のポリシー
type Sentinel struct {
	Name  string
	Value float64
	NaN   bool
}

var (
	// ZeroSentinel は値0を欠損とみなす。
	// 学習データに観測値が1つもない列は0で埋まるため、その列は出力でも
	// 欠損と区別できない（IterativeImputer.EmptyFeatures に記録される）
	ZeroSentinel = Sentinel{Name: "zero", Value: 0}

	// NaNSentinel はNaNを欠損とみなす
	NaNSentinel = Sentinel{Name: "nan", NaN: true}
)

// ParseSentinel は "zero", "nan" または数値リテラルをSentinelに変換する
func ParseSentinel(s string) (Sentinel, error) {
	switch s {
	case "", "zero":
		return ZeroSentinel, nil
	case "nan", "NaN":
		return NaNSentinel, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return Sentinel{}, errors.NewValidationError("missing_value", "must be zero, nan or a finite number", s)
	}
	return Sentinel{Name: s, Value: v}, nil
}

// Matches はvが欠損かどうかを返す
func (s Sentinel) Matches(v float64) bool {
	if s.NaN {
		return math.IsNaN(v)
	}
	return v == s.Value
}

// Count はXの欠損セル数を返す
func (s Sentinel) Count(X mat.Matrix) int {
	r, c := X.Dims()
	n := 0
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if s.Matches(X.At(i, j)) {
				n++
			}
		}
	}
	return n
}

func (s Sentinel) String() string {
	if s.Name != "" {
		return s.Name
	}
	return strconv.FormatFloat(s.Value, 'g', -1, 64)
}

// check は入力に Inf があるか、番兵がNaNでないのに NaN があれば ValueError を返す
func (s Sentinel) check(op string, X mat.Matrix) error {
	r, c := X.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := X.At(i, j)
			if math.IsInf(v, 0) {
				return errors.NewValueErrorf(op, "input contains Inf at row %d, column %d", i, j)
			}
			if !s.NaN && math.IsNaN(v) {
				return errors.NewValueErrorf(op,
					"input contains NaN at row %d, column %d but the missing-value sentinel is %s", i, j, s)
			}
		}
	}
	return nil
}
