package model

// EstimatorState はモデルの学習状態を表す
type EstimatorState int

const (
	// NotFitted はモデルが未学習の状態
	NotFitted EstimatorState = iota
	// Fitted はモデルが学習済みの状態
	Fitted
)

// BaseEstimator は全ての変換器の基底となる構造体
//
// State はgobで保存・復元できるように公開フィールドにしている。
// 学習済みのパラメータは Fit 以降は読み取り専用として扱う。
type BaseEstimator struct {
	State EstimatorState
}

// IsFitted はモデルが学習済みかどうかを返す
func (e *BaseEstimator) IsFitted() bool {
	return e.State == Fitted
}

// SetFitted はモデルを学習済み状態に設定する
func (e *BaseEstimator) SetFitted() {
	e.State = Fitted
}

// Reset はモデルを未学習状態に戻す。各 Fit の先頭で呼ばれる
func (e *BaseEstimator) Reset() {
	e.State = NotFitted
}
