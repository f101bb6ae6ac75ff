// Package metrics は回帰の評価指標を提供する。
package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// R2Score は決定係数（R²）を計算する
//
// yTrue と yPred は n×1 の列ベクトル。yTrue が定数のときは定義できないため
// ValueError を返す。
func R2Score(yTrue, yPred mat.Matrix) (float64, error) {
	n, err := checkColumns("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var yMean float64
	for i := 0; i < n; i++ {
		yMean += yTrue.At(i, 0)
	}
	yMean /= float64(n)

	// 全変動 (TSS) と残差変動 (RSS)
	var tss, rss float64
	for i := 0; i < n; i++ {
		d := yTrue.At(i, 0) - yMean
		e := yTrue.At(i, 0) - yPred.At(i, 0)
		tss += d * d
		rss += e * e
	}
	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero")
	}
	return 1 - rss/tss, nil
}

func checkColumns(op string, yTrue, yPred mat.Matrix) (int, error) {
	rt, ct := yTrue.Dims()
	rp, cp := yPred.Dims()
	if rt == 0 {
		return 0, errors.NewModelError(op, "empty target", errors.ErrEmptyData)
	}
	if ct != 1 || cp != 1 {
		return 0, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	if rp != rt {
		return 0, errors.NewDimensionError(op, rt, rp, 0)
	}
	return rt, nil
}
