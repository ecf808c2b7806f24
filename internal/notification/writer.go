package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/hogwartsedx/internal/store"
)

// Writer は通知レコードを1件ずつ永続化する。
// 冪等性キーは持たないため、同じ投稿で2回呼ばれれば2件作成される。
type Writer struct {
	// queries は通知テーブルへのクエリ。
	queries *store.Queries
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// NewWriter は新しいWriterを生成する。
func NewWriter(queries *store.Queries) *Writer {
	return &Writer{queries: queries, now: time.Now}
}

// Write はユーザー宛ての未読通知を1件作成して返す。
func (w *Writer) Write(ctx context.Context, userID, message string) (store.Notification, error) {
	n := store.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Message:   message,
		CreatedAt: w.now().UTC(),
	}
	if err := w.queries.CreateNotification(ctx, n); err != nil {
		return store.Notification{}, fmt.Errorf("通知の作成に失敗 (user_id=%s): %w", userID, err)
	}
	return n, nil
}

// NewPostMessage は新着投稿の通知メッセージを組み立てる。
func NewPostMessage(title, category string) string {
	return fmt.Sprintf(`A new post titled "%s" has been added to the category "%s".`, title, category)
}
