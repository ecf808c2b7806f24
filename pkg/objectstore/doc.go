// Package objectstore はS3互換オブジェクトストレージへのアクセスを提供する。
//
// 保存済みパスからオブジェクトキーを取り出す処理と、期限付きの署名付き
// ダウンロードURLの発行を担当する。成果物のバイト列をサービス自身が
// 中継することはなく、常に署名付きURLへのリダイレクトで配布する。
package objectstore
