package publication

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/hogwartsedx/internal/notification"
	"github.com/nao1215/hogwartsedx/internal/store"
	"github.com/nao1215/hogwartsedx/pkg/mailer"
	"github.com/nao1215/hogwartsedx/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeSender は送信したメールを記録するテスト用Sender。
// failFor に含まれる宛先への送信はエラーになり、blockFor に含まれる宛先への送信は
// 応答しないサーバーのようにctxの期限まで戻らない。
type fakeSender struct {
	mu       sync.Mutex
	sent     []mailer.Message
	failFor  map[string]bool
	blockFor map[string]bool
}

func (s *fakeSender) Send(ctx context.Context, msg mailer.Message) error {
	s.mu.Lock()
	fail, block := s.failFor[msg.To], s.blockFor[msg.To]
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if fail {
		return errors.New("smtp: connection refused")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *fakeSender) messages() []mailer.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mailer.Message(nil), s.sent...)
}

// failingWriter は指定ユーザーへの通知作成だけを失敗させるNotificationWriter。
type failingWriter struct {
	next    NotificationWriter
	failFor map[string]bool
}

func (w *failingWriter) Write(ctx context.Context, userID, message string) (store.Notification, error) {
	if w.failFor[userID] {
		return store.Notification{}, errors.New("database is locked")
	}
	return w.next.Write(ctx, userID, message)
}

// testEnv は配信まで含めた投稿公開のテスト環境。
type testEnv struct {
	queries    *store.Queries
	sender     *fakeSender
	metrics    *metrics.Metrics
	dispatcher *Dispatcher
	publisher  *Publisher
}

// setupTestEnv はインメモリDBと偽のSenderでテスト環境を構築する。
// writer がnilの場合は実際の通知Writerを使う。
func setupTestEnv(t *testing.T, writer NotificationWriter, opts DispatcherOptions) *testEnv {
	t.Helper()

	db, err := store.Open(t.Context(), ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	queries := store.New(db)
	if writer == nil {
		writer = notification.NewWriter(queries)
	}
	if opts.Workers == 0 {
		opts.Workers = 4
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = 16
	}
	if opts.PostBaseURL == "" {
		opts.PostBaseURL = "http://localhost:3000/"
	}

	sender := &fakeSender{failFor: map[string]bool{}, blockFor: map[string]bool{}}
	m := metrics.MustNew(prometheus.NewRegistry())
	dispatcher := NewDispatcher(NewResolver(queries), writer, sender, m, opts)
	t.Cleanup(dispatcher.Close)

	return &testEnv{
		queries:    queries,
		sender:     sender,
		metrics:    m,
		dispatcher: dispatcher,
		publisher:  NewPublisher(queries, dispatcher),
	}
}

// mustCreateUser はユーザーを作成し、指定カテゴリをフォローさせる。
func mustCreateUser(t *testing.T, q *store.Queries, id, name string, categories ...string) store.User {
	t.Helper()
	params := store.CreateUserParams{ID: id, Name: name, Email: id + "@hogwarts.example", Role: store.RoleUser}
	if err := q.CreateUser(t.Context(), params); err != nil {
		t.Fatalf("ユーザーの作成に失敗: %v", err)
	}
	for _, c := range categories {
		if err := q.FollowCategory(t.Context(), id, c); err != nil {
			t.Fatalf("カテゴリのフォローに失敗: %v", err)
		}
	}
	u, err := q.GetUserByID(t.Context(), id)
	if err != nil {
		t.Fatalf("ユーザーの取得に失敗: %v", err)
	}
	return u
}

// countNotifications はユーザーの通知件数を返す。
func countNotifications(t *testing.T, q *store.Queries, userID string) int {
	t.Helper()
	list, err := q.ListNotificationsByUserID(t.Context(), userID)
	if err != nil {
		t.Fatalf("通知一覧の取得に失敗: %v", err)
	}
	return len(list)
}
