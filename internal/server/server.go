package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nao1215/hogwartsedx/internal/account"
	"github.com/nao1215/hogwartsedx/internal/certificate"
	"github.com/nao1215/hogwartsedx/internal/notification"
	"github.com/nao1215/hogwartsedx/internal/publication"
	"github.com/nao1215/hogwartsedx/internal/store"
	"github.com/nao1215/hogwartsedx/pkg/config"
	"github.com/nao1215/hogwartsedx/pkg/mailer"
	"github.com/nao1215/hogwartsedx/pkg/metrics"
	"github.com/nao1215/hogwartsedx/pkg/middleware"
	"github.com/nao1215/hogwartsedx/pkg/objectstore"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間の上限。
const shutdownTimeout = 10 * time.Second

// Server はアプリケーションのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// cfg はサーバー設定。
	cfg *config.Config
	// db はSQLiteデータベース接続。
	db *sql.DB
	// queries はテーブル操作のクエリ。
	queries *store.Queries
	// signer は証明書ダウンロード用の署名クライアント。
	signer objectstore.Signer
	// sender は通知メールの送信クライアント。
	sender mailer.Sender
	// metrics はPrometheusのメトリクス。
	metrics *metrics.Metrics
	// gatherer は /metrics で公開するレジストリ。
	gatherer prometheus.Gatherer
	// dispatcher は購読者への配信ワーカー。
	dispatcher *publication.Dispatcher
}

// Option はNewServerの依存を差し替える。
type Option func(*Server)

// WithSigner は署名クライアントを差し替える。
func WithSigner(signer objectstore.Signer) Option {
	return func(s *Server) { s.signer = signer }
}

// WithSender はメール送信クライアントを差し替える。
func WithSender(sender mailer.Sender) Option {
	return func(s *Server) { s.sender = sender }
}

// WithRegistry はメトリクスを登録するレジストリを差し替える。
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.metrics = metrics.MustNew(reg)
		s.gatherer = reg
	}
}

// NewServer は設定から依存を組み立ててサーバーを生成する。
// 配信ワーカーは生成時に起動する。
func NewServer(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}

	db, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	s.db = db
	s.queries = store.New(db)

	if s.signer == nil {
		signer, err := objectstore.NewMinioSigner(cfg.Storage)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.signer = signer
	}
	if s.sender == nil {
		s.sender = mailer.New(cfg.Mail)
	}
	if s.metrics == nil {
		s.metrics = metrics.Default()
		s.gatherer = prometheus.DefaultGatherer
	}

	s.dispatcher = publication.NewDispatcher(
		publication.NewResolver(s.queries),
		notification.NewWriter(s.queries),
		s.sender,
		s.metrics,
		publication.DispatcherOptions{
			Workers:     cfg.FanOut.Workers,
			QueueSize:   cfg.FanOut.QueueSize,
			PostBaseURL: cfg.PostBaseURL,
			SendTimeout: cfg.Mail.Timeout,
		},
	)
	// 配信はリクエストから切り離して実行するため、リクエストのコンテキストは使わない
	s.dispatcher.Start(context.WithoutCancel(ctx))

	s.router = gin.New()
	s.router.Use(middleware.Recovery())
	s.router.Use(gin.Logger())
	s.router.Use(middleware.CORS([]string{cfg.FrontendURL}))
	s.router.Use(middleware.Metrics(s.metrics))
	s.setupRoutes()

	return s, nil
}

// Handler はHTTPハンドラを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	public := s.router.Group("")
	protected := s.router.Group("")
	protected.Use(middleware.JWTAuth(s.cfg.JWTSecret))

	publication.NewHandler(publication.NewPublisher(s.queries, s.dispatcher), s.queries).
		RegisterRoutes(public, protected)
	certificate.NewHandler(certificate.NewLocator(s.queries), s.signer, s.cfg.Storage.SignedURLTTL, s.metrics).
		RegisterRoutes(public)
	notification.NewHandler(s.queries).RegisterRoutes(protected)
	account.NewHandler(s.queries, s.cfg.JWTSecret, s.cfg.DevTokenEnabled).RegisterRoutes(public, protected)
	if s.cfg.DevTokenEnabled {
		log.Println("[Server] 開発用トークン発行APIが有効です。本番環境では無効にしてください")
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		if err := s.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "service": "hogwartsedx"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "hogwartsedx"})
	})
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされるまで処理を続ける。
// キャンセル後は処理中のリクエストを待ってから配信ワーカーとDBを閉じる。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[Server] リッスンを開始します: %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	log.Println("[Server] シャットダウンします")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("シャットダウンに失敗: %w", err)
	}
	return nil
}

// Close は配信キューを消化してからDB接続を閉じる。
func (s *Server) Close() {
	s.dispatcher.Close()
	if err := s.db.Close(); err != nil {
		log.Printf("[Server] DB切断エラー: %v", err)
	}
}
