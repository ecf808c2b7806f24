// hogwartsedxサーバーのエントリポイント。
// 投稿の公開と購読者への通知配信、証明書の検索とダウンロードを担当する。
// SIGINT/SIGTERMを受けると処理中のリクエストと配信を終えてから停止する。
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/hogwartsedx/internal/server"
	"github.com/nao1215/hogwartsedx/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("サーバーの初期化に失敗: %v", err)
	}

	log.Printf("hogwartsedxを起動します: :%s", cfg.Port)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("hogwartsedxの実行に失敗: %v", err)
	}
}
