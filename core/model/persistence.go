package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/google/renameio/v2"

	"github.com/YuminosukeSato/prepkit/pkg/errors"
)

// SaveModel は学習済みモデルをgob形式でファイルに保存する
//
// 一時ファイルに書き込んでからリネームするため、失敗時に壊れたファイルは残らない。
// パーミッションは 0644（umask 適用後）。
//
//	var scaler preprocessing.StandardScaler
//	// ... scaler.Fit(X) ...
//	err := model.SaveModel(&scaler, "scaler.gob")
func SaveModel(m interface{}, filename string) (err error) {
	pf, err := renameio.NewPendingFile(filename, renameio.WithPermissions(0o644))
	if err != nil {
		return errors.NewIOError("create", filename, err)
	}
	defer func() {
		if err != nil {
			_ = pf.Cleanup()
		}
	}()

	if err = SaveModelToWriter(m, pf); err != nil {
		return err
	}
	if err = pf.CloseAtomicallyReplace(); err != nil {
		return errors.NewIOError("rename", filename, err)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む
//
//	var scaler preprocessing.StandardScaler
//	err := model.LoadModel(&scaler, "scaler.gob")
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.NewIOError("open", filename, err)
	}
	defer file.Close()

	return LoadModelFromReader(m, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
