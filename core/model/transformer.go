package model

import "gonum.org/v1/gonum/mat"

// Transformer はfit/transformの2段階で使うデータ変換のインターフェース
//
// Fit は学習データからパラメータを求めて固定し、Transform はその固定された
// パラメータを任意のデータ（同じ列構成）に適用する。Transform が学習済みの
// パラメータを書き換えてはならない。
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (mat.Matrix, error)
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// FittedChecker は学習済み状態を問い合わせられる変換器
type FittedChecker interface {
	IsFitted() bool
}

// OutputNamer は出力列名が入力列名と異なる変換器（次元削減など）が実装する
type OutputNamer interface {
	OutputNames(inputNames []string) []string
}
