package publication

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nao1215/hogwartsedx/internal/notification"
	"github.com/nao1215/hogwartsedx/pkg/event"
	"github.com/nao1215/hogwartsedx/pkg/metrics"
)

func publishAndDrain(t *testing.T, env *testEnv, authorID string, in Input) {
	t.Helper()
	env.dispatcher.Start(context.Background())
	if _, err := env.publisher.Publish(t.Context(), authorID, in); err != nil {
		t.Fatalf("Publish()でエラーが発生: %v", err)
	}
	env.dispatcher.Close()
}

func TestDispatcher(t *testing.T) {
	t.Parallel()

	t.Run("フォローしているユーザーの数だけ通知とメールが作られる", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t, nil, DispatcherOptions{Workers: 2})
		mustCreateUser(t, env.queries, "author", "Albus Dumbledore")

		var followers []string
		for i := range 5 {
			id := fmt.Sprintf("follower-%d", i)
			mustCreateUser(t, env.queries, id, "Student", "potions")
			followers = append(followers, id)
		}
		mustCreateUser(t, env.queries, "other-1", "Other", "charms")
		mustCreateUser(t, env.queries, "other-2", "Other")

		publishAndDrain(t, env, "author", Input{Title: "Polyjuice", Category: "potions", Content: "Lacewing flies"})

		for _, id := range followers {
			if got := countNotifications(t, env.queries, id); got != 1 {
				t.Errorf("%sの通知数 = %d, want 1", id, got)
			}
		}
		for _, id := range []string{"other-1", "other-2", "author"} {
			if got := countNotifications(t, env.queries, id); got != 0 {
				t.Errorf("%sの通知数 = %d, want 0", id, got)
			}
		}
		if got := len(env.sender.messages()); got != 5 {
			t.Errorf("メール数 = %d, want 5", got)
		}
		if got := testutil.ToFloat64(env.metrics.Notifications.WithLabelValues(metrics.ResultOK)); got != 5 {
			t.Errorf("通知メトリクス = %v, want 5", got)
		}
	})

	t.Run("通知とメールの文面", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t, nil, DispatcherOptions{PostBaseURL: "https://hogwarts.example/"})
		mustCreateUser(t, env.queries, "author", "Albus Dumbledore")
		mustCreateUser(t, env.queries, "harry", "Harry Potter", "quidditch")

		publishAndDrain(t, env, "author", Input{Title: "Seeker Tactics", Category: "quidditch", Content: "Catch the snitch"})

		list, err := env.queries.ListNotificationsByUserID(t.Context(), "harry")
		if err != nil || len(list) != 1 {
			t.Fatalf("通知の取得に失敗: list=%v err=%v", list, err)
		}
		wantMessage := notification.NewPostMessage("Seeker Tactics", "quidditch")
		if list[0].Message != wantMessage {
			t.Errorf("通知メッセージ = %q, want %q", list[0].Message, wantMessage)
		}

		mails := env.sender.messages()
		if len(mails) != 1 {
			t.Fatalf("メール数 = %d, want 1", len(mails))
		}
		if mails[0].To != "harry@hogwarts.example" {
			t.Errorf("宛先 = %q", mails[0].To)
		}
		if mails[0].Subject != "New Post Notification in quidditch" {
			t.Errorf("件名 = %q", mails[0].Subject)
		}
		wantBody := wantMessage + "\n\nCheck out the new post: Seeker Tactics\n\nRead more: https://hogwarts.example/posts/seeker-tactics"
		if mails[0].Body != wantBody {
			t.Errorf("本文 = %q, want %q", mails[0].Body, wantBody)
		}
	})

	t.Run("1人のメール送信失敗は他の購読者に影響しない", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t, nil, DispatcherOptions{Workers: 1})
		mustCreateUser(t, env.queries, "author", "Albus Dumbledore")
		mustCreateUser(t, env.queries, "ron", "Ron Weasley", "chess")
		mustCreateUser(t, env.queries, "hermione", "Hermione Granger", "chess")
		env.sender.failFor["ron@hogwarts.example"] = true

		publishAndDrain(t, env, "author", Input{Title: "Wizard Chess", Category: "chess", Content: "Knight to E5"})

		for _, id := range []string{"ron", "hermione"} {
			if got := countNotifications(t, env.queries, id); got != 1 {
				t.Errorf("%sの通知数 = %d, want 1", id, got)
			}
		}
		mails := env.sender.messages()
		if len(mails) != 1 || mails[0].To != "hermione@hogwarts.example" {
			t.Errorf("送信済みメール = %+v, want hermioneの1通", mails)
		}
		if got := testutil.ToFloat64(env.metrics.Emails.WithLabelValues(metrics.ResultFailed)); got != 1 {
			t.Errorf("メール失敗メトリクス = %v, want 1", got)
		}
	})

	t.Run("応答しないメール送信は期限で打ち切られ次の投稿の配信を止めない", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t, nil, DispatcherOptions{Workers: 1, SendTimeout: 50 * time.Millisecond})
		mustCreateUser(t, env.queries, "author", "Albus Dumbledore")
		mustCreateUser(t, env.queries, "hedwig", "Hedwig", "owls")
		mustCreateUser(t, env.queries, "hooch", "Rolanda Hooch", "brooms")
		env.sender.blockFor["hedwig@hogwarts.example"] = true

		env.dispatcher.Start(context.Background())
		for _, in := range []Input{
			{Title: "Owl Post", Category: "owls", Content: "Letters"},
			{Title: "Nimbus 2000", Category: "brooms", Content: "Fast"},
		} {
			if _, err := env.publisher.Publish(t.Context(), "author", in); err != nil {
				t.Fatalf("Publish()でエラーが発生: %v", err)
			}
		}

		closed := make(chan struct{})
		go func() {
			env.dispatcher.Close()
			close(closed)
		}()
		select {
		case <-closed:
		case <-time.After(5 * time.Second):
			t.Fatal("配信キューが消化されない")
		}

		for _, id := range []string{"hedwig", "hooch"} {
			if got := countNotifications(t, env.queries, id); got != 1 {
				t.Errorf("%sの通知数 = %d, want 1", id, got)
			}
		}
		mails := env.sender.messages()
		if len(mails) != 1 || mails[0].To != "hooch@hogwarts.example" {
			t.Errorf("送信済みメール = %+v, want hoochの1通", mails)
		}
		if got := testutil.ToFloat64(env.metrics.Emails.WithLabelValues(metrics.ResultFailed)); got != 1 {
			t.Errorf("メール失敗メトリクス = %v, want 1", got)
		}
		if got := testutil.ToFloat64(env.metrics.FanOutItems.WithLabelValues(metrics.ResultOK)); got != 2 {
			t.Errorf("配信完了メトリクス = %v, want 2", got)
		}
	})

	t.Run("1人の通知作成失敗はその人のメールだけを止める", func(t *testing.T) {
		t.Parallel()
		writer := &failingWriter{failFor: map[string]bool{"neville": true}}
		env := setupTestEnv(t, writer, DispatcherOptions{Workers: 1})
		writer.next = notification.NewWriter(env.queries)

		mustCreateUser(t, env.queries, "author", "Albus Dumbledore")
		mustCreateUser(t, env.queries, "neville", "Neville Longbottom", "herbology")
		mustCreateUser(t, env.queries, "luna", "Luna Lovegood", "herbology")

		publishAndDrain(t, env, "author", Input{Title: "Mimbulus", Category: "herbology", Content: "Stinksap"})

		if got := countNotifications(t, env.queries, "neville"); got != 0 {
			t.Errorf("nevilleの通知数 = %d, want 0", got)
		}
		if got := countNotifications(t, env.queries, "luna"); got != 1 {
			t.Errorf("lunaの通知数 = %d, want 1", got)
		}
		mails := env.sender.messages()
		if len(mails) != 1 || mails[0].To != "luna@hogwarts.example" {
			t.Errorf("送信済みメール = %+v, want lunaの1通", mails)
		}
	})

	t.Run("同じ投稿を2回配信すると通知も2件になる", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t, nil, DispatcherOptions{})
		mustCreateUser(t, env.queries, "ginny", "Ginny Weasley", "quidditch")

		ev, err := event.NewPostPublished(event.PostPublishedData{PostID: "p1", Title: "Bludgers", Slug: "bludgers", Category: "quidditch"})
		if err != nil {
			t.Fatalf("イベントの生成に失敗: %v", err)
		}
		env.dispatcher.Start(context.Background())
		env.dispatcher.Enqueue(ev)
		env.dispatcher.Enqueue(ev)
		env.dispatcher.Close()

		if got := countNotifications(t, env.queries, "ginny"); got != 2 {
			t.Errorf("通知数 = %d, want 2", got)
		}
	})

	t.Run("キューが満杯の場合は待たずに破棄する", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t, nil, DispatcherOptions{QueueSize: 1})

		ev, err := event.NewPostPublished(event.PostPublishedData{PostID: "p1", Title: "t", Slug: "t", Category: "c"})
		if err != nil {
			t.Fatalf("イベントの生成に失敗: %v", err)
		}
		// Start前なので消化されずにキューに残る
		if !env.dispatcher.Enqueue(ev) {
			t.Fatal("1件目のEnqueueが失敗した")
		}
		if env.dispatcher.Enqueue(ev) {
			t.Error("満杯のキューへのEnqueueが成功した")
		}
		if got := testutil.ToFloat64(env.metrics.FanOutItems.WithLabelValues(metrics.ResultDropped)); got != 1 {
			t.Errorf("破棄メトリクス = %v, want 1", got)
		}
	})

	t.Run("停止後のEnqueueは破棄される", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t, nil, DispatcherOptions{})
		env.dispatcher.Start(context.Background())
		env.dispatcher.Close()

		ev, _ := event.NewPostPublished(event.PostPublishedData{PostID: "p1", Category: "c"})
		if env.dispatcher.Enqueue(ev) {
			t.Error("停止後のEnqueueが成功した")
		}
	})

	t.Run("未対応のイベント種別は無視する", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t, nil, DispatcherOptions{})
		mustCreateUser(t, env.queries, "draco", "Draco Malfoy", "c")

		ev, err := event.New("x", event.AggregateTypePost, event.Type("PostDeleted"), map[string]string{"category": "c"})
		if err != nil {
			t.Fatalf("イベントの生成に失敗: %v", err)
		}
		env.dispatcher.Start(context.Background())
		env.dispatcher.Enqueue(ev)
		env.dispatcher.Close()

		if got := countNotifications(t, env.queries, "draco"); got != 0 {
			t.Errorf("通知数 = %d, want 0", got)
		}
		if strings.Contains(fmt.Sprint(env.sender.messages()), "draco") {
			t.Error("未対応のイベントでメールが送信された")
		}
	})
}
