package store

import (
	"context"
	"strings"
	"time"
)

const createCertificate = `
INSERT INTO certificates (id, unique_id, user_id, file_path, issued_at)
VALUES (?, ?, ?, ?, ?)
`

// CreateCertificateParams はCreateCertificateの引数。
type CreateCertificateParams struct {
	ID       string
	UniqueID string
	UserID   string
	FilePath string
	IssuedAt time.Time
}

// CreateCertificate は証明書を登録する。証明書の生成自体は外部で行われる。
func (q *Queries) CreateCertificate(ctx context.Context, arg CreateCertificateParams) error {
	_, err := q.db.ExecContext(ctx, createCertificate,
		arg.ID, arg.UniqueID, arg.UserID, arg.FilePath, FormatTime(arg.IssuedAt))
	return err
}

const certificateSelect = `
SELECT c.id, c.unique_id, c.user_id, COALESCE(u.name, ''), c.file_path, c.issued_at
FROM certificates c
LEFT JOIN users u ON u.id = c.user_id
`

func scanCertificate(row interface{ Scan(...any) error }) (Certificate, error) {
	var c Certificate
	err := row.Scan(&c.ID, &c.UniqueID, &c.UserID, &c.UserName, &c.FilePath, &c.IssuedAt)
	return c, err
}

const getCertificateByUniqueID = certificateSelect + `WHERE c.unique_id = ?`

// GetCertificateByUniqueID は公開IDで証明書を取得する。存在しない場合は sql.ErrNoRows を返す。
func (q *Queries) GetCertificateByUniqueID(ctx context.Context, uniqueID string) (Certificate, error) {
	return scanCertificate(q.db.QueryRowContext(ctx, getCertificateByUniqueID, uniqueID))
}

// ListCertificatesParams はListCertificatesの絞り込み条件。指定された条件はANDで結合する。
type ListCertificatesParams struct {
	// FilterUserIDs がtrueの場合、UserIDs に含まれる所有者の証明書だけを返す。
	// UserIDs が空なら結果も空になる。
	FilterUserIDs bool
	UserIDs       []string
	// UniqueID が空でない場合、公開IDが完全一致するものだけを返す。
	UniqueID string
	// IssuedFrom と IssuedTo がともに非ゼロの場合、発行日時がその閉区間に入るものだけを返す。
	IssuedFrom time.Time
	IssuedTo   time.Time
}

// ListCertificates は条件に一致する証明書を発行日時の新しい順に返す。
func (q *Queries) ListCertificates(ctx context.Context, arg ListCertificatesParams) ([]Certificate, error) {
	var (
		where []string
		args  []any
	)

	if arg.FilterUserIDs {
		if len(arg.UserIDs) == 0 {
			return []Certificate{}, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(arg.UserIDs)), ",")
		where = append(where, "c.user_id IN ("+placeholders+")")
		for _, id := range arg.UserIDs {
			args = append(args, id)
		}
	}
	if arg.UniqueID != "" {
		where = append(where, "c.unique_id = ?")
		args = append(args, arg.UniqueID)
	}
	if !arg.IssuedFrom.IsZero() && !arg.IssuedTo.IsZero() {
		where = append(where, "c.issued_at BETWEEN ? AND ?")
		args = append(args, FormatTime(arg.IssuedFrom), FormatTime(arg.IssuedTo))
	}

	query := certificateSelect
	if len(where) > 0 {
		query += "WHERE " + strings.Join(where, " AND ") + "\n"
	}
	query += "ORDER BY c.issued_at DESC, c.rowid DESC"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	certificates := []Certificate{}
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		certificates = append(certificates, c)
	}
	return certificates, rows.Err()
}
