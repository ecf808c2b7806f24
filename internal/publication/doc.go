// Package publication は投稿の公開と購読者への配信を提供する。
//
// Publisher は投稿を永続化したあと配信キューへイベントを積むだけで、
// 通知とメールの成否を待たずに呼び出し元へ返る。
// Dispatcher がキューを消化し、購読者ごとに通知レコードの作成とメール送信を行う。
// 購読者単位の失敗はログに記録され、他の購読者の処理には影響しない。
package publication
