package preprocessing

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/prepkit/core/model"
	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// zeroVarianceEps より小さい標準偏差は分散0とみなす
const zeroVarianceEps = 1e-8

// ZeroVariancePolicy は分散0の列をどう扱うかを表す
type ZeroVariancePolicy int

const (
	// ZeroVarianceError は分散0の列を検出したらValueErrorを返す（デフォルト）
	ZeroVarianceError ZeroVariancePolicy = iota
	// ZeroVarianceUnit は分散0の列のスケールを1にして平均だけを引く（scikit-learnと同じ挙動）
	ZeroVarianceUnit
)

// ParseZeroVariancePolicy は設定文字列 ("error", "unit") をポリシーに変換する
func ParseZeroVariancePolicy(s string) (ZeroVariancePolicy, error) {
	switch s {
	case "error", "":
		return ZeroVarianceError, nil
	case "unit":
		return ZeroVarianceUnit, nil
	default:
		return ZeroVarianceError, errors.NewValidationError("zero_variance", "must be error or unit", s)
	}
}

func (p ZeroVariancePolicy) String() string {
	if p == ZeroVarianceUnit {
		return "unit"
	}
	return "error"
}

// StandardScaler はscikit-learn互換の標準化スケーラー
// データを平均0、標準偏差1に変換する
type StandardScaler struct {
	model.BaseEstimator

	// Mean は各特徴量の平均値
	Mean []float64

	// Scale は各特徴量の標準偏差（母標準偏差）
	Scale []float64

	// NFeatures は特徴量の数
	NFeatures int

	// NSamplesSeen は学習に使った（NaNでない）値の数、列ごと
	NSamplesSeen []int

	// WithMean は平均を引くかどうか (デフォルト: true)
	WithMean bool

	// WithStd は標準偏差で割るかどうか (デフォルト: true)
	WithStd bool

	// ZeroVariance は分散0の列の扱い
	ZeroVariance ZeroVariancePolicy

	// FeatureNames はエラーメッセージ用の列名（任意）
	FeatureNames []string
}

// NewStandardScaler は新しいStandardScalerを作成する
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	err := scaler.Fit(X)
//	XScaled, err := scaler.Transform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault はデフォルト設定でStandardScalerを作成する
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// Fit は訓練データから列ごとの平均と標準偏差を計算する
//
// NaN のセルは統計量の計算から除外する。分散0の列は ZeroVariance ポリシーに
// 従って扱い、デフォルトではNaN/Infを黙って出力しないようエラーにする。
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	s.Reset()
	if errors.HasInf(X) {
		return errors.NewValueError("StandardScaler.Fit", "input contains Inf")
	}

	mean := make([]float64, c)
	scale := make([]float64, c)
	seen := make([]int, c)
	col := make([]float64, 0, r)
	var degenerate []string

	for j := 0; j < c; j++ {
		col = col[:0]
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !math.IsNaN(v) {
				col = append(col, v)
			}
		}
		seen[j] = len(col)
		if len(col) == 0 {
			degenerate = append(degenerate, s.columnName(j))
			scale[j] = 1
			continue
		}

		m, std := stat.PopMeanStdDev(col, nil)
		if s.WithMean {
			mean[j] = m
		}
		scale[j] = 1
		if s.WithStd {
			scale[j] = std
			// 標準偏差が0に近い場合
			if math.Abs(std) < zeroVarianceEps {
				degenerate = append(degenerate, s.columnName(j))
				scale[j] = 1
			}
		}
	}

	if len(degenerate) > 0 && s.ZeroVariance == ZeroVarianceError {
		return errors.NewValueErrorf("StandardScaler.Fit",
			"zero variance in %d column(s): %s", len(degenerate), strings.Join(degenerate, ", "))
	}

	s.Mean = mean
	s.Scale = scale
	s.NSamplesSeen = seen
	s.NFeatures = c
	s.SetFitted()
	return nil
}

// Transform は学習済みの統計情報で (x - mean) / std を計算する
//
// 入力行列は変更しない。NaN はそのままNaNとして出力する。
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "Transform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}
	if errors.HasInf(X) {
		return nil, errors.NewValueError("StandardScaler.Transform", "input contains Inf")
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}
	return result, nil
}

// FitTransform は訓練データで学習し、同じデータを変換する
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform は標準化されたデータを元のスケールに戻す
func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("StandardScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.InverseTransform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, X.At(i, j)*s.Scale[j]+s.Mean[j])
		}
	}
	return result, nil
}

// GetParams はスケーラーのパラメータを取得する
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean":     s.WithMean,
		"with_std":      s.WithStd,
		"zero_variance": s.ZeroVariance.String(),
	}
}

// String はスケーラーの文字列表現を返す
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)",
		s.WithMean, s.WithStd, s.NFeatures)
}

func (s *StandardScaler) columnName(j int) string {
	if j < len(s.FeatureNames) {
		return s.FeatureNames[j]
	}
	return fmt.Sprintf("#%d", j)
}
