package linear

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepkit/core/model"
	"github.com/YuminosukeSato/prepkit/metrics"
	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// BayesianRidge はエビデンス最大化で正則化の強さを推定するリッジ回帰
//
// ノイズの精度 alpha と重みの精度 lambda をガンマ事前分布のもとで交互に
// 更新する（scikit-learn の BayesianRidge と同じ更新式）。IterativeImputer
// のデフォルトの推定器。
type BayesianRidge struct {
	model.BaseEstimator

	// ハイパーパラメータ
	MaxIter int
	Tol     float64
	Alpha1  float64
	Alpha2  float64
	Lambda1 float64
	Lambda2 float64

	// 学習結果
	Coef      []float64
	Intercept float64
	Alpha     float64 // ノイズの精度
	Lambda    float64 // 重みの精度
	NIter     int
	NFeatures int
}

// NewBayesianRidge はscikit-learnと同じデフォルト値でBayesianRidgeを作成する
func NewBayesianRidge() *BayesianRidge {
	return &BayesianRidge{
		MaxIter: 300,
		Tol:     1e-3,
		Alpha1:  1e-6,
		Alpha2:  1e-6,
		Lambda1: 1e-6,
		Lambda2: 1e-6,
	}
}

// Fit はモデルを訓練データで学習させる
func (br *BayesianRidge) Fit(X, y mat.Matrix) error {
	r, c, err := validateXY("BayesianRidge.Fit", X, y)
	if err != nil {
		return err
	}
	br.Reset()

	Xc, yc, xMean, yMean := center(X, y)
	n := float64(r)

	// 薄いSVD: Xc = U·diag(s)·Vᵀ
	var svd mat.SVD
	if ok := svd.Factorize(Xc, mat.SVDThin); !ok {
		return errors.NewModelError("BayesianRidge.Fit", "SVD did not converge", errors.ErrSingularMatrix)
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	eig := make([]float64, len(s))
	for i, sv := range s {
		eig[i] = sv * sv
	}
	// Uᵀy は反復中に変わらない
	var uty mat.VecDense
	uty.MulVec(u.T(), yc)

	yVar := mat.Dot(yc, yc) / n
	alpha := 1 / (yVar + eps)
	lambda := 1.0

	coef := mat.NewVecDense(c, nil)
	var coefOld *mat.VecDense
	var rmse float64
	iter := 0
	for ; iter < br.MaxIter; iter++ {
		rmse = br.updateCoef(coef, Xc, yc, &v, s, eig, &uty, alpha, lambda)

		var gamma, coefSq float64
		for _, e := range eig {
			gamma += alpha * e / (lambda + alpha*e)
		}
		coefSq = mat.Dot(coef, coef)
		lambda = (gamma + 2*br.Lambda1) / (coefSq + 2*br.Lambda2)
		alpha = (n - gamma + 2*br.Alpha1) / (rmse + 2*br.Alpha2)

		if coefOld != nil {
			var diff float64
			for j := 0; j < c; j++ {
				diff += math.Abs(coefOld.AtVec(j) - coef.AtVec(j))
			}
			if diff < br.Tol {
				iter++
				break
			}
		}
		coefOld = mat.VecDenseCopyOf(coef)
	}

	// 最終的なalpha, lambdaで係数を更新
	br.updateCoef(coef, Xc, yc, &v, s, eig, &uty, alpha, lambda)

	out := make([]float64, c)
	intercept := yMean
	for j := 0; j < c; j++ {
		out[j] = coef.AtVec(j)
		intercept -= xMean[j] * out[j]
	}
	if err := errors.CheckMatrix("BayesianRidge.Fit", mat.NewDense(1, c, out), iter); err != nil {
		return err
	}

	br.Coef = out
	br.Intercept = intercept
	br.Alpha = alpha
	br.Lambda = lambda
	br.NIter = iter
	br.NFeatures = c
	br.SetFitted()
	return nil
}

// updateCoef は coef = V·diag(s/(s²+λ/α))·Uᵀy を計算し、残差平方和を返す
func (br *BayesianRidge) updateCoef(coef *mat.VecDense, Xc *mat.Dense, yc *mat.VecDense,
	v *mat.Dense, s, eig []float64, uty *mat.VecDense, alpha, lambda float64) float64 {
	k := len(s)
	w := mat.NewVecDense(k, nil)
	for i := 0; i < k; i++ {
		w.SetVec(i, s[i]/(eig[i]+lambda/alpha)*uty.AtVec(i))
	}
	coef.MulVec(v, w)

	var resid mat.VecDense
	resid.MulVec(Xc, coef)
	resid.SubVec(yc, &resid)
	return mat.Dot(&resid, &resid)
}

// Predict は入力データに対する予測（事後平均）を返す
func (br *BayesianRidge) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !br.IsFitted() {
		return nil, errors.NewNotFittedError("BayesianRidge", "Predict")
	}
	return predictLinear("BayesianRidge.Predict", X, br.Coef, br.Intercept)
}

// Score はモデルの決定係数（R²）を計算する
func (br *BayesianRidge) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := br.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(y, yPred)
}

// String はモデルの文字列表現を返す
func (br *BayesianRidge) String() string {
	if !br.IsFitted() {
		return fmt.Sprintf("BayesianRidge(max_iter=%d, tol=%g)", br.MaxIter, br.Tol)
	}
	return fmt.Sprintf("BayesianRidge(alpha=%.4g, lambda=%.4g, n_iter=%d)", br.Alpha, br.Lambda, br.NIter)
}

// eps はfloat64のマシンイプシロン
const eps = 2.220446049250313e-16
