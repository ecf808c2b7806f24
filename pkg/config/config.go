// Package config はサーバーの設定を読み込む。
//
// 既定値、設定ファイル（hogwartsedx.yaml）、環境変数の順に上書きする。
// 環境変数名は設定キーを大文字にしたもの（例: database_path → DATABASE_PATH）。
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config はサーバー全体の設定。
type Config struct {
	// Port はHTTPサーバーのリッスンポート。
	Port string
	// DatabasePath はSQLiteデータベースのDSN。
	DatabasePath string
	// JWTSecret はJWT署名用の秘密鍵。
	JWTSecret string
	// FrontendURL はCORSで許可するフロントエンドのオリジン。
	FrontendURL string
	// PostBaseURL は通知メールに載せる投稿URLのベース。
	PostBaseURL string
	// DevTokenEnabled は開発用トークン発行API（POST /auth/dev-token）を公開するかどうか。
	// 本番環境では有効にしてはならない。
	DevTokenEnabled bool
	// Storage はオブジェクトストレージの設定。
	Storage StorageConfig
	// Mail はメール送信の設定。
	Mail MailConfig
	// FanOut は購読者への通知配信の設定。
	FanOut FanOutConfig
}

// StorageConfig はS3互換オブジェクトストレージの設定。
type StorageConfig struct {
	// Bucket は証明書ファイルを保存しているバケット名。リクエストから受け取ってはならない。
	Bucket string
	// Endpoint はS3互換APIのエンドポイント（例: s3.amazonaws.com）。
	Endpoint string
	// Region はバケットのリージョン。署名時のロケーション問い合わせを省くために必須。
	Region string
	// AccessKeyID はアクセスキーID。
	AccessKeyID string
	// SecretAccessKey はシークレットアクセスキー。
	SecretAccessKey string
	// UseSSL はHTTPSで接続するかどうか。
	UseSSL bool
	// SignedURLTTL は署名付きURLの有効期間。
	SignedURLTTL time.Duration
}

// MailConfig はSMTPによるメール送信の設定。
type MailConfig struct {
	// Host はSMTPサーバーのホスト名。空の場合はメールを送信せずログに記録する。
	Host string
	// Port はSMTPサーバーのポート番号。
	Port int
	// Username はSMTP認証のユーザー名。
	Username string
	// Password はSMTP認証のパスワード。
	Password string
	// From は送信元メールアドレス。
	From string
	// Timeout は1通の送信にかける時間の上限。応答しないSMTPサーバーで配信が止まらないようにする。
	Timeout time.Duration
}

// FanOutConfig は通知配信ワーカーの設定。
type FanOutConfig struct {
	// Workers は1件の投稿あたりの同時配信数の上限。
	Workers int
	// QueueSize は配信待ちキューの長さ。
	QueueSize int
}

// setDefaults は全設定キーの既定値を登録する。
// AutomaticEnvは既定値のあるキーしか環境変数を参照しないため、全キーを登録する。
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("database_path", "/data/hogwartsedx.db?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	v.SetDefault("jwt_secret", "dev-secret-key")
	v.SetDefault("frontend_url", "http://localhost:3000")
	v.SetDefault("post_base_url", "http://localhost:3000")
	v.SetDefault("dev_token_enabled", false)

	v.SetDefault("storage_bucket", "sanjaybasket")
	v.SetDefault("storage_endpoint", "s3.amazonaws.com")
	v.SetDefault("storage_region", "us-east-1")
	v.SetDefault("storage_access_key_id", "")
	v.SetDefault("storage_secret_access_key", "")
	v.SetDefault("storage_use_ssl", true)
	v.SetDefault("signed_url_ttl_seconds", 60)

	v.SetDefault("smtp_host", "")
	v.SetDefault("smtp_port", 587)
	v.SetDefault("smtp_username", "")
	v.SetDefault("smtp_password", "")
	v.SetDefault("mail_from", "no-reply@localhost")
	v.SetDefault("smtp_timeout_seconds", 10)

	v.SetDefault("fanout_workers", 4)
	v.SetDefault("fanout_queue_size", 256)
}

// Load は既定値・設定ファイル・環境変数から設定を読み込む。
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("hogwartsedx")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/hogwartsedx")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("設定ファイルの読み込みに失敗: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper は既に値が設定されたviperインスタンスから設定を組み立てる。
func FromViper(v *viper.Viper) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Port:            v.GetString("port"),
		DatabasePath:    v.GetString("database_path"),
		JWTSecret:       v.GetString("jwt_secret"),
		FrontendURL:     v.GetString("frontend_url"),
		PostBaseURL:     v.GetString("post_base_url"),
		DevTokenEnabled: v.GetBool("dev_token_enabled"),
		Storage: StorageConfig{
			Bucket:          v.GetString("storage_bucket"),
			Endpoint:        v.GetString("storage_endpoint"),
			Region:          v.GetString("storage_region"),
			AccessKeyID:     v.GetString("storage_access_key_id"),
			SecretAccessKey: v.GetString("storage_secret_access_key"),
			UseSSL:          v.GetBool("storage_use_ssl"),
			SignedURLTTL:    time.Duration(v.GetInt("signed_url_ttl_seconds")) * time.Second,
		},
		Mail: MailConfig{
			Host:     v.GetString("smtp_host"),
			Port:     v.GetInt("smtp_port"),
			Username: v.GetString("smtp_username"),
			Password: v.GetString("smtp_password"),
			From:     v.GetString("mail_from"),
			Timeout:  time.Duration(v.GetInt("smtp_timeout_seconds")) * time.Second,
		},
		FanOut: FanOutConfig{
			Workers:   v.GetInt("fanout_workers"),
			QueueSize: v.GetInt("fanout_queue_size"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate は起動できない設定を検出する。
func (c *Config) validate() error {
	if c.Storage.Bucket == "" {
		return errors.New("storage_bucket が設定されていません")
	}
	if c.Storage.Region == "" {
		return errors.New("storage_region が設定されていません")
	}
	if c.Storage.SignedURLTTL < time.Second || c.Storage.SignedURLTTL > 7*24*time.Hour {
		return fmt.Errorf("signed_url_ttl_seconds が範囲外です: %s", c.Storage.SignedURLTTL)
	}
	if c.Mail.Timeout < time.Second {
		return fmt.Errorf("smtp_timeout_seconds は1以上が必要です: %s", c.Mail.Timeout)
	}
	if c.FanOut.Workers < 1 {
		return fmt.Errorf("fanout_workers は1以上が必要です: %d", c.FanOut.Workers)
	}
	if c.FanOut.QueueSize < 1 {
		return fmt.Errorf("fanout_queue_size は1以上が必要です: %d", c.FanOut.QueueSize)
	}
	return nil
}
