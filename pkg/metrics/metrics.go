// Package metrics はPrometheusのメトリクスを定義する。
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hogwartsedx"

// 結果ラベルの値。
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// Metrics はサーバーが公開するPrometheusコレクタの集合。
type Metrics struct {
	// FanOutItems は処理した配信キューの項目数。
	FanOutItems *prometheus.CounterVec
	// Notifications は作成を試みた通知レコード数。
	Notifications *prometheus.CounterVec
	// Emails は送信を試みたメール数。
	Emails *prometheus.CounterVec
	// CertificateDownloads は証明書ダウンロードの各段階の結果。
	CertificateDownloads *prometheus.CounterVec
	// HTTPRequests はHTTPリクエスト数。
	HTTPRequests *prometheus.CounterVec
}

var (
	defaultOnce sync.Once
	defaultSet  *Metrics
)

// Default はグローバルレジストリに登録された共有インスタンスを返す。
// 重複登録によるpanicを避けるため一度だけ生成する。
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultSet = MustNew(prometheus.DefaultRegisterer)
	})
	return defaultSet
}

// MustNew は指定したレジストリにコレクタを登録して返す。
// テストでは prometheus.NewRegistry() を渡す。
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		FanOutItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_items_total",
			Help:      "Publish fan-out work items by outcome.",
		}, []string{"result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_notifications_total",
			Help:      "Notification records written during fan-out by outcome.",
		}, []string{"result"}),
		Emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_emails_total",
			Help:      "Notification emails attempted during fan-out by outcome.",
		}, []string{"result"}),
		CertificateDownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificate_downloads_total",
			Help:      "Certificate download requests by terminal stage and outcome.",
		}, []string{"stage", "result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(m.FanOutItems, m.Notifications, m.Emails, m.CertificateDownloads, m.HTTPRequests)
	return m
}
