// Package notification は通知レコードの作成と参照を提供する。
//
// 投稿公開時の配信処理から呼ばれる Writer と、認証済みユーザーが自分の通知を
// 一覧・既読化するためのHTTPハンドラを含む。
package notification
