package store

import (
	"context"
	"strings"
)

const createUser = `
INSERT INTO users (id, name, email, role)
VALUES (?, ?, ?, ?)
`

// CreateUserParams はCreateUserの引数。
type CreateUserParams struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// CreateUser はユーザーを作成する。Roleが空の場合は "user" とする。
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) error {
	role := arg.Role
	if role == "" {
		role = RoleUser
	}
	_, err := q.db.ExecContext(ctx, createUser, arg.ID, arg.Name, arg.Email, role)
	return err
}

const userColumns = `id, name, email, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	return u, err
}

const getUserByID = `SELECT ` + userColumns + ` FROM users WHERE id = ?`

// GetUserByID はIDでユーザーを取得する。存在しない場合は sql.ErrNoRows を返す。
func (q *Queries) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const getUserByEmail = `SELECT ` + userColumns + ` FROM users WHERE email = ?`

// GetUserByEmail はメールアドレスでユーザーを取得する。
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByEmail, email))
}

const listUsersByCategory = `
SELECT u.id, u.name, u.email, u.role, u.created_at
FROM users u
JOIN user_categories uc ON uc.user_id = u.id
WHERE uc.category = ?
ORDER BY u.id
`

// ListUsersByCategory は指定カテゴリをフォローしているユーザーを返す。
func (q *Queries) ListUsersByCategory(ctx context.Context, category string) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, listUsersByCategory, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

const searchUserIDsByName = `
SELECT id FROM users
WHERE ` + foldFunc + `(name) LIKE '%' || ` + foldFunc + `(?) || '%' ESCAPE '\'
ORDER BY id
`

// SearchUserIDsByName は表示名に部分一致（大文字小文字を区別しない）するユーザーIDを返す。
func (q *Queries) SearchUserIDsByName(ctx context.Context, name string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, searchUserIDsByName, EscapeLike(name))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const followCategory = `
INSERT INTO user_categories (user_id, category) VALUES (?, ?)
ON CONFLICT (user_id, category) DO NOTHING
`

// FollowCategory はカテゴリをフォローする。既にフォロー済みの場合は何もしない。
func (q *Queries) FollowCategory(ctx context.Context, userID, category string) error {
	_, err := q.db.ExecContext(ctx, followCategory, userID, category)
	return err
}

const unfollowCategory = `DELETE FROM user_categories WHERE user_id = ? AND category = ?`

// UnfollowCategory はカテゴリのフォローを解除する。
func (q *Queries) UnfollowCategory(ctx context.Context, userID, category string) error {
	_, err := q.db.ExecContext(ctx, unfollowCategory, userID, category)
	return err
}

const listCategoriesByUserID = `
SELECT category FROM user_categories WHERE user_id = ? ORDER BY category
`

// ListCategoriesByUserID はユーザーがフォローしているカテゴリを返す。
func (q *Queries) ListCategoriesByUserID(ctx context.Context, userID string) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listCategoriesByUserID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// likeEscaper はLIKEのワイルドカードをエスケープする。
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike はLIKE句に渡す文字列のワイルドカードをエスケープする。
// クエリ側で ESCAPE '\' を指定すること。
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}
