package linear

import (
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// createBenchmarkData はベンチマーク用のデータを生成する
func createBenchmarkData(rows, cols int) (*mat.Dense, *mat.Dense) {
	// シードを固定して再現性を確保
	rng := rand.New(rand.NewPCG(42, 42))

	X := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			X.Set(i, j, rng.Float64()*2.0-1.0)
		}
	}

	// y = 1 + Σ (j+1)/2 · x_j + 小さなノイズ
	y := mat.NewDense(rows, 1, nil)
	for i := 0; i < rows; i++ {
		sum := 1.0
		for j := 0; j < cols; j++ {
			sum += X.At(i, j) * float64(j+1) * 0.5
		}
		sum += (rng.Float64() - 0.5) * 0.1
		y.Set(i, 0, sum)
	}

	return X, y
}

// 画像特徴量のような幅の広いデータでの1特徴量分の回帰コストを測る
func BenchmarkRegressorFit(b *testing.B) {
	sizes := []struct {
		name string
		rows int
		cols int
	}{
		{"Small_100x10", 100, 10},
		{"Medium_2000x50", 2000, 50},
		{"Wide_500x200", 500, 200},
	}

	regressors := map[string]func() Regressor{
		"LinearRegression": func() Regressor { return NewLinearRegression() },
		"BayesianRidge":    func() Regressor { return NewBayesianRidge() },
	}

	for name, newRegressor := range regressors {
		for _, size := range sizes {
			b.Run(name+"/"+size.name, func(b *testing.B) {
				X, y := createBenchmarkData(size.rows, size.cols)

				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					if err := newRegressor().Fit(X, y); err != nil {
						b.Fatal(err)
					}
				}
			})
		}
	}
}
