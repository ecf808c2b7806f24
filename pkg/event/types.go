// Package event は投稿公開などのドメインイベントを定義する。
// 配信キューの作業項目として使用する。
package event

import (
	"encoding/json"
	"time"
)

// AggregateType はイベントの対象となるエンティティの種類を表す。
type AggregateType string

const (
	// AggregateTypePost は投稿エンティティを表す。
	AggregateTypePost AggregateType = "Post"
)

// Type はイベントの種類を表す。
type Type string

const (
	// TypePostPublished は投稿が永続化され、購読者への配信待ちになったことを表す。
	TypePostPublished Type = "PostPublished"
)

// Event はプロセス内の配信キューを流れる不変のイベントレコード。
type Event struct {
	// ID はイベントの一意識別子（UUID）。
	ID string `json:"id"`
	// AggregateID は対象エンティティの識別子。
	AggregateID string `json:"aggregate_id"`
	// AggregateType は対象エンティティの種類。
	AggregateType AggregateType `json:"aggregate_type"`
	// EventType はイベントの種類。
	EventType Type `json:"event_type"`
	// Data はイベント固有のデータ（JSON形式）。
	Data json.RawMessage `json:"data"`
	// CreatedAt はイベントが作成された日時。
	CreatedAt time.Time `json:"created_at"`
}

// PostPublishedData はPostPublishedイベントのデータ。
// 配信処理は投稿を読み直さず、このスナップショットだけで通知とメールを組み立てる。
type PostPublishedData struct {
	// PostID は公開された投稿のID。
	PostID string `json:"post_id"`
	// Title は投稿のタイトル。
	Title string `json:"title"`
	// Slug は投稿の公開用slug。
	Slug string `json:"slug"`
	// Category は投稿のカテゴリ。購読者の解決に使う。
	Category string `json:"category"`
	// AuthorID は投稿者のユーザーID。
	AuthorID string `json:"author_id"`
}
