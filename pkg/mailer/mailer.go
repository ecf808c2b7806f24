// Package mailer はメール送信を提供する。
//
// SMTPによる送信と、SMTPが未設定の環境向けにログへ記録するだけの送信を持つ。
// 送信失敗の扱い（記録して握りつぶす等）は呼び出し側が決める。
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/nao1215/hogwartsedx/pkg/config"
)

// Message は1通のテキストメール。
type Message struct {
	// From は送信元アドレス。空の場合は送信者の既定値を使う。
	From string
	// To は宛先アドレス。
	To string
	// Subject は件名。
	Subject string
	// Body はプレーンテキストの本文。
	Body string
}

// Sender はメールを1通送信する。並行に呼び出してよい。
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// dialer はgomailのDialerのうち使用するメソッド。テストで差し替える。
type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender はSMTPサーバー経由でメールを送信するSender。
type SMTPSender struct {
	// dialer はSMTP接続を張って送信する。
	dialer dialer
	// from は既定の送信元アドレス。
	from string
	// timeout は1通の送信にかける時間の上限。0なら呼び出し側のctxだけに従う。
	timeout time.Duration
}

// New はメール設定からSenderを生成する。
// SMTPホストが未設定の場合はログに記録するだけのSenderを返す。
func New(cfg config.MailConfig) Sender {
	if cfg.Host == "" {
		log.Println("[Mail] SMTPホストが未設定のため、メールはログにのみ記録します")
		return LogSender{}
	}
	return &SMTPSender{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		timeout: cfg.Timeout,
	}
}

// Send はメールを1通送信する。送信ごとにSMTP接続を張る。
// ctxの期限（またはtimeout）を過ぎた場合は、サーバーの応答を待たずにエラーを返す。
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.To == "" {
		return errors.New("宛先アドレスが空です")
	}

	from := msg.From
	if from == "" {
		from = s.from
	}

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.Body)

	// gomailのDialerは接続後の読み書きに期限を設けないため、送信は別goroutineで行う。
	// 期限切れで戻った後のgoroutineは、サーバーが接続を閉じた時点で終了する。
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.dialer.DialAndSend(m)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("SMTP送信に失敗 (to=%s): %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("SMTP送信が時間内に終わりません (to=%s): %w", msg.To, ctx.Err())
	}
}

// LogSender は送信せずにログへ記録するだけのSender。
type LogSender struct{}

// Send は宛先と件名をログに記録する。
func (LogSender) Send(_ context.Context, msg Message) error {
	log.Printf("[Mail] 送信をスキップ: to=%s subject=%q", msg.To, msg.Subject)
	return nil
}
