// Package decomposition は次元削減のための変換器を提供します。
package decomposition

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/prepkit/core/model"
	"github.com/YuminosukeSato/prepkit/core/parallel"
	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

const (
	// 使われていない原子とみなす A_kk の閾値
	unusedAtomEps = 1e-6

	// lasso の座標降下法の設定
	cdMaxIter = 1000
	cdTol     = 1e-4

	// 並列化する最小の列数
	encodeMinColumns = 32
)

// SparsePCA はL1正則化によって疎な主成分を求める次元削減
//
// scikit-learn の SparsePCA と同じ定式化で、中心化したデータ Xc に対して
//
//	min 0.5·||Xc - U·V||² + Alpha·Σ|V|   (||U_k|| ≤ 1)
//
// を解く。V（NComponents × 特徴量）が疎な成分で、U は座標降下法による
// lasso と辞書のブロック座標更新を交互に行って求める。初期値は薄いSVD。
// 変換は成分へのリッジ回帰 (X-mean)·Cᵀ(CCᵀ+RidgeAlpha·I)⁻¹ で、行ごとに独立。
type SparsePCA struct {
	model.BaseEstimator

	// ハイパーパラメータ
	NComponents int
	Alpha       float64
	RidgeAlpha  float64
	MaxIter     int
	Tol         float64
	RandomState int64

	// 学習結果
	Mean       []float64
	Components *mat.Dense // NComponents × NFeatures、行は単位ベクトル（全0の行を除く）
	Projection *mat.Dense // (CCᵀ+RidgeAlpha·I)⁻¹C
	Cost       float64
	NIter      int
	Converged  bool
	NFeatures  int
}

// NewSparsePCA はscikit-learnと同じデフォルト値でSparsePCAを作成する
//
//	spca := decomposition.NewSparsePCA(200)
//	Z, err := spca.FitTransform(XTrain)
func NewSparsePCA(nComponents int) *SparsePCA {
	return &SparsePCA{
		NComponents: nComponents,
		Alpha:       1,
		RidgeAlpha:  0.01,
		MaxIter:     1000,
		Tol:         1e-8,
	}
}

// Fit は訓練データから疎な成分を学習する
func (s *SparsePCA) Fit(X mat.Matrix) error {
	const op = "SparsePCA.Fit"

	if s.NComponents < 1 {
		return errors.NewValidationError("n_components", "must be at least 1", s.NComponents)
	}
	if s.Alpha < 0 || s.RidgeAlpha <= 0 {
		return errors.NewValidationError("alpha", "alpha must be >= 0 and ridge_alpha > 0",
			fmt.Sprintf("alpha=%g ridge_alpha=%g", s.Alpha, s.RidgeAlpha))
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	s.Reset()
	if errors.HasNaN(X) || errors.HasInf(X) {
		return errors.NewValueError(op, "input contains NaN or Inf")
	}

	mean := make([]float64, p)
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, X)
		mean[j] = stat.Mean(col, nil)
	}
	Xc := mat.NewDense(n, p, nil)
	Xc.Apply(func(i, j int, v float64) float64 { return v - mean[j] }, X)

	U, V, err := s.initialize(Xc)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(uint64(s.RandomState), 0))
	var cost, prevCost float64
	s.Converged = false
	iter := 0
	for iter < s.MaxIter {
		iter++
		s.encode(Xc, U, V)
		s.updateDictionary(Xc, U, V, rng)

		cost = s.cost(Xc, U, V)
		if err := errors.CheckScalar(op, cost, iter); err != nil {
			return err
		}
		if iter > 1 {
			if prevCost-cost < s.Tol*cost {
				s.Converged = true
				break
			}
		}
		prevCost = cost
	}
	if !s.Converged {
		errors.Warn(errors.NewConvergenceWarning("SparsePCA", iter, "cost did not stabilise"))
	}

	flipSigns(U, V)
	components := normalizeRows(V)

	proj, err := projection(components, s.RidgeAlpha)
	if err != nil {
		return errors.NewModelError(op, "ridge projection", err)
	}

	s.Mean = mean
	s.Components = components
	s.Projection = proj
	s.Cost = cost
	s.NIter = iter
	s.NFeatures = p
	s.SetFitted()
	return nil
}

// initialize は薄いSVD Xc = U_x·S·V_xᵀ から U = U_x·S、V = V_xᵀ を作る。
// 成分数がランクを超える分は0で埋める。
func (s *SparsePCA) initialize(Xc *mat.Dense) (U, V *mat.Dense, err error) {
	n, p := Xc.Dims()
	k := s.NComponents

	var svd mat.SVD
	if ok := svd.Factorize(Xc, mat.SVDThin); !ok {
		return nil, nil, errors.NewModelError("SparsePCA.Fit", "SVD did not converge", errors.ErrSingularMatrix)
	}
	sv := svd.Values(nil)
	var ux, vx mat.Dense
	svd.UTo(&ux)
	svd.VTo(&vx)

	U = mat.NewDense(n, k, nil)
	V = mat.NewDense(k, p, nil)
	for c := 0; c < k && c < len(sv); c++ {
		for i := 0; i < n; i++ {
			U.Set(i, c, ux.At(i, c)*sv[c])
		}
		for j := 0; j < p; j++ {
			V.Set(c, j, vx.At(j, c))
		}
	}
	flipSigns(U, V)
	return U, V, nil
}

// encode は辞書Uを固定して各特徴量の係数（Vの列）をlassoで解く
//
//	min_v 0.5·||Xc_j - U·v||² + Alpha·|v|
func (s *SparsePCA) encode(Xc, U, V *mat.Dense) {
	k, p := V.Dims()

	var G, C mat.Dense
	G.Mul(U.T(), U)
	C.Mul(U.T(), Xc)

	// 特徴量の列ごとに独立した lasso なので列範囲で並列化する
	parallel.For(p, encodeMinColumns, func(start, end int) {
		v := make([]float64, k)
		q := make([]float64, k) // q = G·v
		for j := start; j < end; j++ {
			mat.Col(v, j, V)
			for a := 0; a < k; a++ {
				q[a] = floats.Dot(G.RawRowView(a), v)
			}
			s.lasso(&G, &C, j, v, q)
			V.SetCol(j, v)
		}
	})
}

// lasso は列 j の係数 v を座標降下法で更新する。
func (s *SparsePCA) lasso(G, C *mat.Dense, j int, v, q []float64) {
	k := len(v)
	for sweep := 0; sweep < cdMaxIter; sweep++ {
		var maxDelta, maxW float64
		for a := 0; a < k; a++ {
			gaa := G.At(a, a)
			old := v[a]
			var nv float64
			if gaa > 0 {
				rho := C.At(a, j) - q[a] + gaa*old
				nv = softThreshold(rho, s.Alpha) / gaa
			}
			if d := nv - old; d != 0 {
				v[a] = nv
				ga := G.RawRowView(a)
				for b := 0; b < k; b++ {
					q[b] += ga[b] * d
				}
				maxDelta = math.Max(maxDelta, math.Abs(d))
			}
			maxW = math.Max(maxW, math.Abs(nv))
		}
		if maxW == 0 || maxDelta/maxW < cdTol {
			return
		}
	}
}

func (s *SparsePCA) updateDictionary(Xc, U, V *mat.Dense, rng *rand.Rand) {
	n, k := U.Dims()
	_, p := Xc.Dims()

	var A, B mat.Dense
	A.Mul(V, V.T())
	B.Mul(Xc, V.T())

	atom := make([]float64, n)
	for c := 0; c < k; c++ {
		akk := A.At(c, c)
		if akk > unusedAtomEps {
			for i := 0; i < n; i++ {
				var ua float64
				for l := 0; l < k; l++ {
					ua += U.At(i, l) * A.At(l, c)
				}
				atom[i] = U.At(i, c) + (B.At(i, c)-ua)/akk
			}
		} else {
			mat.Col(atom, rng.IntN(p), Xc)
			noise := 0.01 * stat.PopStdDev(atom, nil)
			if noise == 0 {
				noise = 0.01
			}
			for i := range atom {
				atom[i] += noise * rng.NormFloat64()
			}
			for j := 0; j < p; j++ {
				V.Set(c, j, 0)
			}
		}

		norm := math.Max(math.Sqrt(floats.Dot(atom, atom)), 1)
		for i := range atom {
			atom[i] /= norm
		}
		U.SetCol(c, atom)
	}
}

func (s *SparsePCA) cost(Xc, U, V *mat.Dense) float64 {
	var R mat.Dense
	R.Mul(U, V)
	R.Sub(Xc, &R)
	fro := mat.Norm(&R, 2)

	var l1 float64
	k, p := V.Dims()
	for c := 0; c < k; c++ {
		for j := 0; j < p; j++ {
			l1 += math.Abs(V.At(c, j))
		}
	}
	return 0.5*fro*fro + s.Alpha*l1
}

// Transform は学習済みの成分にデータを射影する
//
// 出力はNComponents列。行ごとに独立なので、分割して渡しても結果は同じになる。
func (s *SparsePCA) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !s.IsFitted() {
		return nil, errors.NewNotFittedError("SparsePCA", "Transform")
	}
	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("SparsePCA.Transform", s.NFeatures, c, 1)
	}
	if errors.HasNaN(X) || errors.HasInf(X) {
		return nil, errors.NewValueError("SparsePCA.Transform", "input contains NaN or Inf")
	}

	Xc := mat.NewDense(r, c, nil)
	Xc.Apply(func(i, j int, v float64) float64 { return v - s.Mean[j] }, X)

	out := mat.NewDense(r, s.NComponents, nil)
	out.Mul(Xc, s.Projection.T())
	return out, nil
}

// FitTransform は学習し、同じデータを変換する
func (s *SparsePCA) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// OutputNames は c1..cN を返す
func (s *SparsePCA) OutputNames([]string) []string {
	return ComponentNames(s.NComponents)
}

// ComponentNames は c1..cN の列名を返す
func ComponentNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = "c" + strconv.Itoa(i+1)
	}
	return names
}

// String は変換器の文字列表現を返す
func (s *SparsePCA) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("SparsePCA(n_components=%d, alpha=%g, ridge_alpha=%g)", s.NComponents, s.Alpha, s.RidgeAlpha)
	}
	return fmt.Sprintf("SparsePCA(n_components=%d, n_features=%d, n_iter=%d, cost=%.6g)",
		s.NComponents, s.NFeatures, s.NIter, s.Cost)
}

// flipSigns は各成分のVの絶対値最大の要素が正になるように符号を揃える
func flipSigns(U, V *mat.Dense) {
	k, p := V.Dims()
	n, _ := U.Dims()
	for c := 0; c < k; c++ {
		var best float64
		for j := 0; j < p; j++ {
			if v := V.At(c, j); math.Abs(v) > math.Abs(best) {
				best = v
			}
		}
		if best >= 0 {
			continue
		}
		for j := 0; j < p; j++ {
			V.Set(c, j, -V.At(c, j))
		}
		for i := 0; i < n; i++ {
			U.Set(i, c, -U.At(i, c))
		}
	}
}

// normalizeRows はVの各行を単位ベクトルにしたコピーを返す（全0の行はそのまま）
func normalizeRows(V *mat.Dense) *mat.Dense {
	k, p := V.Dims()
	out := mat.DenseCopyOf(V)
	for c := 0; c < k; c++ {
		norm := mat.Norm(out.RowView(c), 2)
		if norm == 0 {
			norm = 1
		}
		for j := 0; j < p; j++ {
			out.Set(c, j, out.At(c, j)/norm)
		}
	}
	return out
}

// projection は (CCᵀ+ridge·I)⁻¹C をコレスキー分解で求める
func projection(components *mat.Dense, ridge float64) (*mat.Dense, error) {
	k, _ := components.Dims()
	gram := mat.NewSymDense(k, nil)
	gram.SymOuterK(1, components)
	for c := 0; c < k; c++ {
		gram.SetSym(c, c, gram.At(c, c)+ridge)
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return nil, errors.ErrSingularMatrix
	}
	var proj mat.Dense
	if err := chol.SolveTo(&proj, components); err != nil {
		return nil, err
	}
	return &proj, nil
}

func softThreshold(x, t float64) float64 {
	switch {
	case x > t:
		return x - t
	case x < -t:
		return x + t
	default:
		return 0
	}
}
