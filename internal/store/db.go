// Package store はSQLiteに対する永続化層を提供する。
//
// ユーザー・投稿・通知・証明書の各テーブルに対するクエリを Queries にまとめる。
// スキーマは migrations/ 以下のSQLファイルで管理し、Open時に適用する。
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/nao1215/hogwartsedx/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// TimeLayout はDBに保存する日時の書式。
// 固定長のUTC文字列にすることで、文字列比較が時系列順と一致する。
const TimeLayout = "2006-01-02 15:04:05.000"

// FormatTime は日時をDB保存用の文字列に変換する。
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// DBTX は *sql.DB と *sql.Tx の共通インターフェース。
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries はテーブル操作のクエリを実行するオブジェクト。並行に使用してよい。
type Queries struct {
	db DBTX
}

// New は新しいQueriesを生成する。
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// foldFunc はUnicodeの大文字小文字を畳み込むSQL関数の名前。
// SQLite組み込みのLOWER()とLIKEはASCIIしか畳み込まないため、検索ではこちらを使う。
const foldFunc = "unicode_fold"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(foldFunc, 1, foldCase)
}

// foldCase は文字列を小文字に畳み込む。文字列以外の値はそのまま返す。
func foldCase(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

// isUniqueViolation はerrがcolumn（"table.column"）の一意制約違反かどうかを返す。
func isUniqueViolation(err error, column string) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), column)
}

// Open はSQLiteデータベースを開き、マイグレーションを適用する。
// ":memory:" を指定した場合は接続ごとに別DBになるため接続数を1に制限する。
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate は埋め込まれたマイグレーションを適用する。
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := migration.Run(ctx, db, migrationsFS, "migrations"); err != nil {
		return fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return nil
}
