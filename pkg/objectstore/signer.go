package objectstore

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nao1215/hogwartsedx/pkg/apperr"
	"github.com/nao1215/hogwartsedx/pkg/config"
)

// Signer は期限付きの署名付きダウンロードURLを発行する。
// 実装は起動時に一度だけ生成し、並行に使用してよい。
type Signer interface {
	// Bucket は署名対象のバケット名を返す。キーの取り出しにも同じ値を使う。
	Bucket() string
	// Issue はkeyに対してttlの間だけ有効な署名付きURLを返す。
	Issue(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// MinioSigner はminio-goクライアントで署名付きURLを発行するSigner。
type MinioSigner struct {
	// client はS3互換APIクライアント。
	client *minio.Client
	// bucket は設定で固定されたバケット名。
	bucket string
}

// NewMinioSigner はストレージ設定からSignerを生成する。
// リージョンを指定するため、署名時にバケットのロケーション問い合わせは発生しない。
func NewMinioSigner(cfg config.StorageConfig) (*MinioSigner, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("ストレージクライアントの生成に失敗: %w", err)
	}
	return &MinioSigner{client: client, bucket: cfg.Bucket}, nil
}

// Bucket は署名対象のバケット名を返す。
func (s *MinioSigner) Bucket() string {
	return s.bucket
}

// Issue はGETObject用の署名付きURLを発行する。失敗しても再試行しない。
func (s *MinioSigner) Issue(ctx context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", apperr.Dependency("署名付きURLの発行に失敗", err)
	}
	return u.String(), nil
}
