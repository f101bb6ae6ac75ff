package linear

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepkit/core/model"
	"github.com/YuminosukeSato/prepkit/metrics"
	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// LinearRegression は最小二乗法による線形回帰モデル
type LinearRegression struct {
	model.BaseEstimator
	Coef      []float64 // 係数
	Intercept float64   // 切片
	NFeatures int       // 特徴量の数
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Fit はモデルを訓練データで学習させる
//
// 中心化したXに対する最小二乗問題をSVDで解き、切片は平均から求める。
// 列が線形従属でも最小ノルム解を返す。
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c, err := validateXY("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}
	lr.Reset()

	Xc, yc, xMean, yMean := center(X, y)

	var svd mat.SVD
	if !svd.Factorize(Xc, mat.SVDThin) {
		return errors.NewModelError("LinearRegression.Fit", "SVD did not converge", errors.ErrSingularMatrix)
	}
	// rcond 未満の特異値は0とみなす
	rcond := 1e-15 * float64(max(r, c))
	w := mat.NewVecDense(c, nil)
	if rank := svd.Rank(rcond); rank > 0 {
		svd.SolveVecTo(w, yc, rank)
	}

	coef := make([]float64, c)
	intercept := yMean
	for j := 0; j < c; j++ {
		coef[j] = w.AtVec(j)
		intercept -= xMean[j] * coef[j]
	}
	if err := errors.CheckMatrix("LinearRegression.Fit", mat.NewDense(1, c, coef), 0); err != nil {
		return errors.NewModelError("LinearRegression.Fit", "singular matrix", err)
	}

	lr.Coef = coef
	lr.Intercept = intercept
	lr.NFeatures = c
	lr.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}
	return predictLinear("LinearRegression.Predict", X, lr.Coef, lr.Intercept)
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	if !lr.IsFitted() {
		return 0, errors.NewNotFittedError("LinearRegression", "Score")
	}
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, yPred)
}
