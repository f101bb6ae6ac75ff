package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// Regressor は単一ターゲットの回帰モデル
//
// IterativeImputer はこのインターフェースを通して特徴量ごとの回帰を行う。
type Regressor interface {
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
	Score(X, y mat.Matrix) (float64, error)
	IsFitted() bool
}

// validateXY は Fit の入力形状を検証する
func validateXY(op string, X, y mat.Matrix) (r, c int, err error) {
	r, c = X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return 0, 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return 0, 0, errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return 0, 0, errors.NewValueError(op, "y must be a column vector")
	}
	return r, c, nil
}

// center は列平均を引いたXとyのコピー、および平均を返す
func center(X, y mat.Matrix) (Xc *mat.Dense, yc *mat.VecDense, xMean []float64, yMean float64) {
	r, c := X.Dims()
	Xc = mat.DenseCopyOf(X)
	xMean = make([]float64, c)
	for j := 0; j < c; j++ {
		xMean[j] = mat.Sum(Xc.ColView(j)) / float64(r)
		for i := 0; i < r; i++ {
			Xc.Set(i, j, Xc.At(i, j)-xMean[j])
		}
	}

	yc = mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yMean += y.At(i, 0)
	}
	yMean /= float64(r)
	for i := 0; i < r; i++ {
		yc.SetVec(i, y.At(i, 0)-yMean)
	}
	return Xc, yc, xMean, yMean
}

// predictLinear は y = X·coef + intercept を計算する
func predictLinear(op string, X mat.Matrix, coef []float64, intercept float64) (mat.Matrix, error) {
	r, c := X.Dims()
	if c != len(coef) {
		return nil, errors.NewDimensionError(op, len(coef), c, 1)
	}

	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred := intercept
		for j := 0; j < c; j++ {
			pred += X.At(i, j) * coef[j]
		}
		predictions.Set(i, 0, pred)
	}
	return predictions, nil
}
