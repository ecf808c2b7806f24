package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nao1215/hogwartsedx/pkg/apperr"
)

// ErrKeyExtraction は保存済みパスからオブジェクトキーを取り出せなかったことを表す。
var ErrKeyExtraction = errors.New("file key extraction failed")

// KeyExtractionMessage はキー取り出し失敗時に呼び出し元へ返すメッセージ。
const KeyExtractionMessage = "File key extraction failed"

// ResolveKey は保存済みパスから "{bucket}/" 以降をオブジェクトキーとして取り出す。
// 区切りが見つからない場合や残りが空の場合は ErrKeyExtraction を返す。
// bucketは設定値を渡すこと。リクエスト由来の値を渡してはならない。
func ResolveKey(storedPath, bucket string) (string, error) {
	if bucket == "" {
		return "", apperr.Integrity(KeyExtractionMessage, fmt.Errorf("%w: バケット名が空です", ErrKeyExtraction))
	}

	_, key, found := strings.Cut(storedPath, bucket+"/")
	if !found || key == "" {
		return "", apperr.Integrity(KeyExtractionMessage,
			fmt.Errorf("%w: path=%q bucket=%q", ErrKeyExtraction, storedPath, bucket))
	}
	return key, nil
}
