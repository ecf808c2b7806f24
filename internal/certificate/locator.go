package certificate

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/nao1215/hogwartsedx/internal/store"
	"github.com/nao1215/hogwartsedx/pkg/apperr"
)

// dateLayout は日付フィルタの書式。
const dateLayout = "2006-01-02"

// 呼び出し元にそのまま返すメッセージ。
const (
	NotFoundMessage    = "Certificate not found"
	InvalidDateMessage = "Invalid date"
)

// Filter は証明書一覧の絞り込み条件。空の項目は条件に含めない。
type Filter struct {
	// UserName は所有者の表示名に対する部分一致（大文字小文字を区別しない）。
	UserName string
	// UniqueID は公開IDの完全一致。
	UniqueID string
	// Date は発行日（YYYY-MM-DD）。保存時のタイムゾーン（UTC）の暦日で比較する。
	Date string
}

// Locator は公開IDや絞り込み条件から証明書を探す。
type Locator struct {
	queries *store.Queries
}

// NewLocator は新しいLocatorを生成する。
func NewLocator(queries *store.Queries) *Locator {
	return &Locator{queries: queries}
}

// FindByPublicID は公開IDで証明書を所有者名付きで返す。
func (l *Locator) FindByPublicID(ctx context.Context, uniqueID string) (store.Certificate, error) {
	c, err := l.queries.GetCertificateByUniqueID(ctx, uniqueID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Certificate{}, apperr.NotFound(NotFoundMessage)
	}
	if err != nil {
		return store.Certificate{}, apperr.Dependency("failed to load certificate", err)
	}
	return c, nil
}

// List は条件に一致する証明書を発行日時の新しい順に返す。条件はANDで結合する。
func (l *Locator) List(ctx context.Context, f Filter) ([]store.Certificate, error) {
	params := store.ListCertificatesParams{UniqueID: strings.TrimSpace(f.UniqueID)}

	if date := strings.TrimSpace(f.Date); date != "" {
		from, to, err := dayRange(date)
		if err != nil {
			return nil, err
		}
		params.IssuedFrom, params.IssuedTo = from, to
	}

	if name := strings.TrimSpace(f.UserName); name != "" {
		ids, err := l.queries.SearchUserIDsByName(ctx, name)
		if err != nil {
			return nil, apperr.Dependency("failed to search users", err)
		}
		params.FilterUserIDs = true
		params.UserIDs = ids
	}

	certificates, err := l.queries.ListCertificates(ctx, params)
	if err != nil {
		return nil, apperr.Dependency("failed to list certificates", err)
	}
	return certificates, nil
}

// dayRange は暦日の [00:00:00.000, 23:59:59.999] を返す。
func dayRange(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, date, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, apperr.Validation(InvalidDateMessage)
	}
	return day, day.Add(24*time.Hour - time.Millisecond), nil
}
