// Package server はHTTPサーバーを組み立てる。
//
// DB接続、ストレージの署名クライアント、メール送信、配信ワーカー、メトリクスを
// 起動時に一度だけ生成し、各機能のハンドラへ注入する。
package server
