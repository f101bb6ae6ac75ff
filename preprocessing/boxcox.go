package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/prepkit/core/model"
	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// BoxCox はラベル列を正規分布に近づけるBox-Cox変換
//
// λ は対数尤度 (λ-1)Σlog(y) - n/2·log(var(y_λ)) を最大化するように
// Nelder-Mead法で求める（初期値 λ=0）。変換は λ≠0 なら (y^λ-1)/λ、λ=0 なら log(y)。
type BoxCox struct {
	model.BaseEstimator

	// Lambda は学習済みの指数
	Lambda float64

	// LogLikelihood は Lambda における対数尤度
	LogLikelihood float64
}

// NewBoxCox は新しいBoxCoxを作成する
func NewBoxCox() *BoxCox {
	return &BoxCox{}
}

// Fit はyから最尤推定でλを求める
func (b *BoxCox) Fit(y []float64) error {
	if len(y) == 0 {
		return errors.NewModelError("BoxCox.Fit", "empty data", errors.ErrEmptyData)
	}
	b.Reset()
	if err := checkBoxCoxDomain("BoxCox.Fit", y); err != nil {
		return err
	}
	if floats.Min(y) == floats.Max(y) {
		return errors.NewValueError("BoxCox.Fit", "data must not be constant")
	}

	logs := make([]float64, len(y))
	for i, v := range y {
		logs[i] = math.Log(v)
	}
	sumLog := floats.Sum(logs)

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			llf := boxCoxLLF(x[0], y, logs, sumLog)
			if math.IsNaN(llf) || math.IsInf(llf, 0) {
				return math.Inf(1)
			}
			return -llf
		},
	}
	result, err := optimize.Minimize(problem, []float64{0}, nil, &optimize.NelderMead{})
	if result == nil {
		return errors.NewModelError("BoxCox.Fit", "lambda optimisation failed", err)
	}
	lambda := result.X[0]
	if err := errors.CheckScalar("BoxCox.Fit", lambda, result.Stats.MajorIterations); err != nil {
		return err
	}

	b.Lambda = lambda
	b.LogLikelihood = boxCoxLLF(lambda, y, logs, sumLog)
	b.SetFitted()
	return nil
}

// Transform は学習済みのλでyを変換した新しいスライスを返す
func (b *BoxCox) Transform(y []float64) ([]float64, error) {
	if !b.IsFitted() {
		return nil, errors.NewNotFittedError("BoxCox", "Transform")
	}
	if err := checkBoxCoxDomain("BoxCox.Transform", y); err != nil {
		return nil, err
	}
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = boxCox(v, b.Lambda)
	}
	return out, nil
}

// FitTransform はλを求めて同じデータを変換する
func (b *BoxCox) FitTransform(y []float64) ([]float64, error) {
	if err := b.Fit(y); err != nil {
		return nil, err
	}
	return b.Transform(y)
}

// InverseTransform は変換後の値を元のスケールに戻す
func (b *BoxCox) InverseTransform(z []float64) ([]float64, error) {
	if !b.IsFitted() {
		return nil, errors.NewNotFittedError("BoxCox", "InverseTransform")
	}
	out := make([]float64, len(z))
	for i, v := range z {
		if b.Lambda == 0 {
			out[i] = math.Exp(v)
		} else {
			out[i] = math.Pow(b.Lambda*v+1, 1/b.Lambda)
		}
	}
	return out, nil
}

// BoxCoxLogLikelihood は与えたλでの対数尤度を返す（yは正であること）
func BoxCoxLogLikelihood(lambda float64, y []float64) float64 {
	logs := make([]float64, len(y))
	for i, v := range y {
		logs[i] = math.Log(v)
	}
	return boxCoxLLF(lambda, y, logs, floats.Sum(logs))
}

// String は変換器の文字列表現を返す
func (b *BoxCox) String() string {
	if !b.IsFitted() {
		return "BoxCox()"
	}
	return fmt.Sprintf("BoxCox(lambda=%.6g)", b.Lambda)
}

func boxCox(v, lambda float64) float64 {
	if lambda == 0 {
		return math.Log(v)
	}
	return (math.Pow(v, lambda) - 1) / lambda
}

func boxCoxLLF(lambda float64, y, logs []float64, sumLog float64) float64 {
	n := float64(len(y))
	var variance float64
	if lambda == 0 {
		_, variance = stat.PopMeanVariance(logs, nil)
	} else {
		t := make([]float64, len(y))
		for i, v := range y {
			t[i] = boxCox(v, lambda)
		}
		_, variance = stat.PopMeanVariance(t, nil)
	}
	return (lambda-1)*sumLog - n/2*math.Log(variance)
}

func checkBoxCoxDomain(op string, y []float64) error {
	for i, v := range y {
		if !(v > 0) || math.IsInf(v, 1) {
			return errors.NewValueErrorf(op, "data must be positive and finite (found %g at index %d)", v, i)
		}
	}
	return nil
}
