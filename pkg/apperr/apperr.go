// Package apperr はアプリケーション全体で共通のエラー分類を提供する。
//
// 入力不正・対象なし・データ不整合・依存先障害・配信失敗の5種類にエラーを分類し、
// HTTPハンドラがステータスコードを決定できるようにする。
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind はエラーの分類を表す。
type Kind int

const (
	// KindUnknown は分類されていないエラーを表す。
	KindUnknown Kind = iota
	// KindValidation は書き込み系APIの入力不正を表す。
	KindValidation
	// KindNotFound はslugやuniqueIdによる検索でヒットしなかったことを表す。
	KindNotFound
	// KindIntegrity は保存済みデータの不整合を表す。呼び出し側では修正できない。
	KindIntegrity
	// KindDependency はストレージ署名やDB読み込みなど依存先の障害を表す。
	KindDependency
	// KindDelivery はメール配信の失敗を表す。呼び出し元に返してはならない。
	KindDelivery
)

// String はKindの名前を返す。
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindIntegrity:
		return "integrity"
	case KindDependency:
		return "dependency"
	case KindDelivery:
		return "delivery"
	default:
		return "unknown"
	}
}

// Error は分類付きのアプリケーションエラー。
type Error struct {
	// Kind はエラーの分類。
	Kind Kind
	// Message は呼び出し元にそのまま返してよいメッセージ。
	Message string
	// Err は原因となったエラー。
	Err error
}

// Error はエラーメッセージを返す。
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.Message == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap は原因となったエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation は入力不正エラーを生成する。
func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// NotFound は対象なしエラーを生成する。
func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// Integrity はデータ不整合エラーを生成する。
func Integrity(message string, err error) error {
	return &Error{Kind: KindIntegrity, Message: message, Err: err}
}

// Dependency は依存先障害エラーを生成する。
func Dependency(message string, err error) error {
	return &Error{Kind: KindDependency, Message: message, Err: err}
}

// Delivery はメール配信失敗エラーを生成する。
func Delivery(message string, err error) error {
	return &Error{Kind: KindDelivery, Message: message, Err: err}
}

// KindOf はエラーチェーンから最初に見つかった分類を返す。
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// MessageOf は呼び出し元に返すメッセージを取り出す。
// 分類のないエラーや依存先障害の詳細は隠す。
func MessageOf(err error, fallback string) string {
	var appErr *Error
	if !errors.As(err, &appErr) {
		return fallback
	}
	switch appErr.Kind {
	case KindValidation, KindNotFound, KindIntegrity:
		if appErr.Message != "" {
			return appErr.Message
		}
	}
	return fallback
}

// HTTPStatus はエラーの分類に対応するHTTPステータスコードを返す。
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound, KindIntegrity:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
