package impute

import (
	"encoding/gob"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/prepkit/core/model"
	"github.com/YuminosukeSato/prepkit/linear"
	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// 回帰器の種類
const (
	EstimatorBayesianRidge    = "bayesian_ridge"
	EstimatorLinearRegression = "linear_regression"
)

func init() {
	// Step.Regressor をgobで保存できるようにする
	gob.Register(&linear.BayesianRidge{})
	gob.Register(&linear.LinearRegression{})
}

// NewRegressor は名前から回帰器を作成する
func NewRegressor(kind string) (linear.Regressor, error) {
	switch kind {
	case EstimatorBayesianRidge, "":
		return linear.NewBayesianRidge(), nil
	case EstimatorLinearRegression:
		return linear.NewLinearRegression(), nil
	default:
		return nil, errors.NewValidationError("estimator",
			"must be "+EstimatorBayesianRidge+" or "+EstimatorLinearRegression, kind)
	}
}

// Step は1回分の特徴量ごとの回帰
type Step struct {
	Feature   int
	Neighbors []int
	Regressor linear.Regressor
	// R2 は学習に使った行での決定係数。目的の列が定数なら NaN
	R2 float64
}

// IterativeImputer は各特徴量を他の特徴量から回帰して欠損を埋める補完器
//
// scikit-learn の IterativeImputer と同じく、平均で初期補完したあと
// 欠損率の低い順に特徴量を1つずつ回帰で埋め直すラウンドを繰り返す。
// 学習時の回帰の列（Steps）はそのまま保存され、Transform で同じ順に再生される。
//
//	imp := impute.NewIterativeImputer(impute.ZeroSentinel)
//	err := imp.Fit(XTrain)
//	XTest, err := imp.Transform(XTest)
type IterativeImputer struct {
	model.BaseEstimator

	// ハイパーパラメータ
	Sentinel  Sentinel
	MaxIter   int
	Tol       float64
	Estimator string

	// 学習結果
	InitialFill []float64
	Order       []int
	// EmptyFeatures は学習時に観測値が1つもなかった列。0で埋められる
	EmptyFeatures []int
	Steps         []Step
	NIter         int
	Converged     bool
	NFeatures     int
}

// NewIterativeImputer はデフォルト設定 (max_iter=10, tol=1e-3, BayesianRidge) で作成する
func NewIterativeImputer(s Sentinel) *IterativeImputer {
	return &IterativeImputer{
		Sentinel:  s,
		MaxIter:   10,
		Tol:       1e-3,
		Estimator: EstimatorBayesianRidge,
	}
}

// Fit は訓練データから初期補完値と回帰の列を学習する
//
// 上限回数までに収束しなければ ConvergenceWarning を出すが、学習自体は成功する。
func (imp *IterativeImputer) Fit(X mat.Matrix) error {
	_, err := imp.fit(X)
	return err
}

// FitTransform は学習し、学習中に得た補完済みの行列を返す
func (imp *IterativeImputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	return imp.fit(X)
}

func (imp *IterativeImputer) fit(X mat.Matrix) (*mat.Dense, error) {
	const op = "IterativeImputer.Fit"

	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	imp.Reset()
	if imp.MaxIter < 0 {
		return nil, errors.NewValidationError("max_iter", "must be non-negative", imp.MaxIter)
	}
	if _, err := NewRegressor(imp.Estimator); err != nil {
		return nil, err
	}
	if err := imp.Sentinel.check(op, X); err != nil {
		return nil, err
	}

	mask := imp.mask(X)

	// 観測値の平均で初期補完。観測値のない列は0で埋め、回帰の対象から外す
	fill := make([]float64, c)
	missing := make([]int, c)
	var active, empty []int
	var maxAbs float64
	for j := 0; j < c; j++ {
		var sum float64
		var n int
		for i := 0; i < r; i++ {
			if mask[i][j] {
				missing[j]++
				continue
			}
			v := X.At(i, j)
			sum += v
			n++
			maxAbs = math.Max(maxAbs, math.Abs(v))
		}
		if n == 0 {
			empty = append(empty, j)
			continue
		}
		fill[j] = sum / float64(n)
		active = append(active, j)
	}

	Xt := imp.initialFill(X, mask, fill)

	// 欠損の少ない順（同数なら列順）
	order := append([]int(nil), active...)
	sort.SliceStable(order, func(a, b int) bool { return missing[order[a]] < missing[order[b]] })

	imp.InitialFill = fill
	imp.Order = order
	imp.EmptyFeatures = empty
	imp.Steps = nil
	imp.NIter = 0
	imp.Converged = true
	imp.NFeatures = c

	if len(active) < 2 || imp.MaxIter == 0 {
		imp.SetFitted()
		return Xt, nil
	}

	tol := imp.Tol * maxAbs
	prev := mat.NewDense(r, c, nil)
	imp.Converged = false
	for iter := 1; iter <= imp.MaxIter; iter++ {
		prev.Copy(Xt)
		for _, feat := range order {
			step, err := imp.fitStep(Xt, mask, feat, active)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: round %d, feature %d", op, iter, feat)
			}
			if err := imp.applyStep(Xt, mask, step); err != nil {
				return nil, err
			}
			imp.Steps = append(imp.Steps, step)
		}
		imp.NIter = iter

		var delta float64
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				delta = math.Max(delta, math.Abs(Xt.At(i, j)-prev.At(i, j)))
			}
		}
		if delta < tol {
			imp.Converged = true
			break
		}
	}

	if !imp.Converged {
		errors.Warn(errors.NewConvergenceWarning("IterativeImputer", imp.NIter,
			"early stopping criterion not reached"))
	}
	imp.SetFitted()
	return Xt, nil
}

// fitStep はfeatを観測されている行だけで他の特徴量から回帰する
func (imp *IterativeImputer) fitStep(Xt *mat.Dense, mask [][]bool, feat int, active []int) (Step, error) {
	neighbors := make([]int, 0, len(active)-1)
	for _, j := range active {
		if j != feat {
			neighbors = append(neighbors, j)
		}
	}

	var rows []int
	for i := range mask {
		if !mask[i][feat] {
			rows = append(rows, i)
		}
	}

	reg, err := NewRegressor(imp.Estimator)
	if err != nil {
		return Step{}, err
	}
	y := mat.NewDense(len(rows), 1, nil)
	for k, i := range rows {
		y.Set(k, 0, Xt.At(i, feat))
	}
	Xn := gather(Xt, rows, neighbors)
	if err := reg.Fit(Xn, y); err != nil {
		return Step{}, err
	}
	r2, err := reg.Score(Xn, y)
	if err != nil {
		var ve *errors.ValueError
		if !errors.As(err, &ve) {
			return Step{}, err
		}
		r2 = math.NaN()
	}
	return Step{Feature: feat, Neighbors: neighbors, Regressor: reg, R2: r2}, nil
}

// applyStep はstepの回帰で欠損行だけを書き換える
func (imp *IterativeImputer) applyStep(Xt *mat.Dense, mask [][]bool, step Step) error {
	var rows []int
	for i := range mask {
		if mask[i][step.Feature] {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	pred, err := step.Regressor.Predict(gather(Xt, rows, step.Neighbors))
	if err != nil {
		return err
	}
	for k, i := range rows {
		Xt.Set(i, step.Feature, pred.At(k, 0))
	}
	return nil
}

// Transform は学習済みの初期補完値と回帰の列で欠損セルだけを埋める
//
// 欠損でないセルは入力と同じ値のまま返す。各行は独立に処理されるため、
// 行をどう分割して渡しても結果は同じになる。
func (imp *IterativeImputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	const op = "IterativeImputer.Transform"
	if !imp.IsFitted() {
		return nil, errors.NewNotFittedError("IterativeImputer", "Transform")
	}
	if _, c := X.Dims(); c != imp.NFeatures {
		return nil, errors.NewDimensionError(op, imp.NFeatures, c, 1)
	}
	if err := imp.Sentinel.check(op, X); err != nil {
		return nil, err
	}

	mask := imp.mask(X)
	Xt := imp.initialFill(X, mask, imp.InitialFill)
	for _, step := range imp.Steps {
		if err := imp.applyStep(Xt, mask, step); err != nil {
			return nil, errors.Wrap(err, op)
		}
	}
	return Xt, nil
}

// FinalScores は最終ラウンドの各ステップの R² を Order の順に返す。
// 回帰を1度も行っていなければ nil。
func (imp *IterativeImputer) FinalScores() []float64 {
	n := len(imp.Order)
	if n == 0 || len(imp.Steps) < n {
		return nil
	}
	scores := make([]float64, n)
	for k, step := range imp.Steps[len(imp.Steps)-n:] {
		scores[k] = step.R2
	}
	return scores
}

// OutputNames は入力と同じ列名を返す
func (imp *IterativeImputer) OutputNames(inputNames []string) []string {
	return inputNames
}

// String は補完器の文字列表現を返す
func (imp *IterativeImputer) String() string {
	if !imp.IsFitted() {
		return fmt.Sprintf("IterativeImputer(missing_values=%s, max_iter=%d, tol=%g, estimator=%s)",
			imp.Sentinel, imp.MaxIter, imp.Tol, imp.Estimator)
	}
	return fmt.Sprintf("IterativeImputer(n_features=%d, n_iter=%d, converged=%t)",
		imp.NFeatures, imp.NIter, imp.Converged)
}

func (imp *IterativeImputer) mask(X mat.Matrix) [][]bool {
	r, c := X.Dims()
	mask := make([][]bool, r)
	for i := range mask {
		mask[i] = make([]bool, c)
		for j := 0; j < c; j++ {
			mask[i][j] = imp.Sentinel.Matches(X.At(i, j))
		}
	}
	return mask
}

func (imp *IterativeImputer) initialFill(X mat.Matrix, mask [][]bool, fill []float64) *mat.Dense {
	Xt := mat.DenseCopyOf(X)
	for i := range mask {
		for j, m := range mask[i] {
			if m {
				Xt.Set(i, j, fill[j])
			}
		}
	}
	return Xt
}

func gather(X *mat.Dense, rows, cols []int) *mat.Dense {
	out := mat.NewDense(len(rows), len(cols), nil)
	for a, i := range rows {
		for b, j := range cols {
			out.Set(a, b, X.At(i, j))
		}
	}
	return out
}
