// Package certificate は発行済み証明書の検索とダウンロードを提供する。
//
// 証明書は外部で生成され、公開ID（uniqueId）でのみ参照される。
// ダウンロードはサービス自身がファイルを返さず、保存済みパスから取り出した
// オブジェクトキーに対する期限付き署名付きURLへリダイレクトする。
package certificate
