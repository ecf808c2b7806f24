package publication

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/hogwartsedx/internal/notification"
	"github.com/nao1215/hogwartsedx/internal/store"
	"github.com/nao1215/hogwartsedx/pkg/apperr"
	"github.com/nao1215/hogwartsedx/pkg/event"
	"github.com/nao1215/hogwartsedx/pkg/mailer"
	"github.com/nao1215/hogwartsedx/pkg/metrics"
)

// DispatcherOptions はDispatcherの設定。
type DispatcherOptions struct {
	// Workers は1件の配信で同時に処理する購読者数の上限。
	Workers int
	// QueueSize は配信キューの容量。
	QueueSize int
	// PostBaseURL はメール本文に載せる投稿URLの起点。
	PostBaseURL string
	// SendTimeout はメール1通の送信を待つ上限。0以下なら defaultSendTimeout。
	SendTimeout time.Duration
}

// defaultSendTimeout はSendTimeout未指定時の送信待ちの上限。
const defaultSendTimeout = 10 * time.Second

// NotificationWriter は購読者1人分の通知レコードを作成する。
type NotificationWriter interface {
	Write(ctx context.Context, userID, message string) (store.Notification, error)
}

// Dispatcher は配信キューを消化し、購読者ごとに通知作成とメール送信を行う。
// 配信の成否は記録するだけで、どの失敗も呼び出し元へは返さない。
type Dispatcher struct {
	resolver *Resolver
	writer   NotificationWriter
	sender   mailer.Sender
	metrics  *metrics.Metrics
	opts     DispatcherOptions

	queue chan *event.Event
	done  chan struct{}

	// mu は closed と started を保護する。Enqueue中にキューが閉じられないよう読み取りロックを取る。
	mu      sync.RWMutex
	closed  bool
	started bool
}

// NewDispatcher は新しいDispatcherを生成する。Start を呼ぶまでキューは消化されない。
func NewDispatcher(
	resolver *Resolver,
	writer NotificationWriter,
	sender mailer.Sender,
	m *metrics.Metrics,
	opts DispatcherOptions,
) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = 1
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = defaultSendTimeout
	}
	opts.PostBaseURL = strings.TrimRight(opts.PostBaseURL, "/")

	return &Dispatcher{
		resolver: resolver,
		writer:   writer,
		sender:   sender,
		metrics:  m,
		opts:     opts,
		queue:    make(chan *event.Event, opts.QueueSize),
		done:     make(chan struct{}),
	}
}

// Start はキューを消化するgoroutineを1つ起動する。2回目以降の呼び出しは何もしない。
// ctx はリクエストとは独立した、プロセス存続期間のコンテキストを渡すこと。
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	log.Printf("[FanOut] 配信ワーカーを開始します。並列数: %d, キュー容量: %d", d.opts.Workers, d.opts.QueueSize)
	go func() {
		defer close(d.done)
		for ev := range d.queue {
			d.handle(ctx, ev)
		}
	}()
}

// Enqueue はイベントを配信キューに積む。キューが満杯または停止済みの場合は破棄してfalseを返す。
func (d *Dispatcher) Enqueue(ev *event.Event) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		log.Printf("[FanOut] 停止済みのため配信を破棄: event_id=%s aggregate_id=%s", ev.ID, ev.AggregateID)
		d.metrics.FanOutItems.WithLabelValues(metrics.ResultDropped).Inc()
		return false
	}

	select {
	case d.queue <- ev:
		return true
	default:
		log.Printf("[FanOut] キューが満杯のため配信を破棄: event_id=%s aggregate_id=%s", ev.ID, ev.AggregateID)
		d.metrics.FanOutItems.WithLabelValues(metrics.ResultDropped).Inc()
		return false
	}
}

// Close は新規の受け付けを止め、キューに残った配信がすべて終わるまで待つ。
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if started {
		<-d.done
	}
}

// handle はキューの1項目を処理する。
func (d *Dispatcher) handle(ctx context.Context, ev *event.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PANIC] 配信処理でパニック (event_id=%s): %v", ev.ID, r)
			d.metrics.FanOutItems.WithLabelValues(metrics.ResultFailed).Inc()
		}
	}()

	if ev.EventType != event.TypePostPublished {
		log.Printf("[FanOut] 未対応のイベント種別をスキップ: %s", ev.EventType)
		return
	}

	data, err := event.DecodeData[event.PostPublishedData](ev)
	if err != nil {
		log.Printf("[FanOut] イベントのデコードに失敗 (event_id=%s): %v", ev.ID, err)
		d.metrics.FanOutItems.WithLabelValues(metrics.ResultFailed).Inc()
		return
	}

	subscribers, err := d.resolver.Resolve(ctx, data.Category)
	if err != nil {
		log.Printf("[FanOut] 購読者の解決に失敗 (post_id=%s category=%s): %v", data.PostID, data.Category, err)
		d.metrics.FanOutItems.WithLabelValues(metrics.ResultFailed).Inc()
		return
	}

	message := notification.NewPostMessage(data.Title, data.Category)
	subject, body := d.composeMail(data, message)

	// 各goroutineはエラーを返さないため、1件の失敗で他の購読者の処理が取り消されることはない
	var g errgroup.Group
	g.SetLimit(d.opts.Workers)
	for _, u := range subscribers {
		g.Go(func() error {
			d.deliver(ctx, u, message, subject, body)
			return nil
		})
	}
	_ = g.Wait()

	log.Printf("[FanOut] 配信完了: post_id=%s category=%s 購読者数=%d", data.PostID, data.Category, len(subscribers))
	d.metrics.FanOutItems.WithLabelValues(metrics.ResultOK).Inc()
}

// deliver は購読者1人分の通知作成とメール送信を行う。
// 通知の作成に失敗した場合、その購読者へのメールは送らない。
func (d *Dispatcher) deliver(ctx context.Context, u store.User, message, subject, body string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[PANIC] 購読者への配信でパニック (user_id=%s): %v", u.ID, r)
		}
	}()

	if _, err := d.writer.Write(ctx, u.ID, message); err != nil {
		log.Printf("[FanOut] 通知の作成に失敗: %v", err)
		d.metrics.Notifications.WithLabelValues(metrics.ResultFailed).Inc()
		return
	}
	d.metrics.Notifications.WithLabelValues(metrics.ResultOK).Inc()

	// 応答しないメールサーバーでワーカーが止まり、後続の配信まで滞らないよう期限を付ける
	sendCtx, cancel := context.WithTimeout(ctx, d.opts.SendTimeout)
	defer cancel()
	err := d.sender.Send(sendCtx, mailer.Message{To: u.Email, Subject: subject, Body: body})
	if err != nil {
		err = apperr.Delivery("failed to send notification email", err)
		log.Printf("[FanOut] メール送信に失敗 (user_id=%s): %v", u.ID, err)
		d.metrics.Emails.WithLabelValues(metrics.ResultFailed).Inc()
		return
	}
	d.metrics.Emails.WithLabelValues(metrics.ResultOK).Inc()
}

// composeMail は通知メールの件名と本文を組み立てる。
func (d *Dispatcher) composeMail(data *event.PostPublishedData, message string) (string, string) {
	subject := fmt.Sprintf("New Post Notification in %s", data.Category)
	extra := fmt.Sprintf("Check out the new post: %s\n\nRead more: %s/posts/%s", data.Title, d.opts.PostBaseURL, data.Slug)
	return subject, message + "\n\n" + extra
}
