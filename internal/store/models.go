package store

import "time"

// ロールの値。
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User はusersテーブルの1行。
type User struct {
	ID        string
	Name      string
	Email     string
	Role      string
	CreatedAt time.Time
}

// Post はpostsテーブルの1行。
// AuthorName は公開時点の表示名のスナップショットで、ユーザー側の変更に追従しない。
type Post struct {
	ID         string
	Title      string
	Slug       string
	Content    string
	TitleImage string
	TitleVideo string
	Summary    string
	Subtitles  []string
	AuthorID   string
	AuthorName string
	Category   string
	CreatedAt  time.Time
}

// Notification はnotificationsテーブルの1行。
type Notification struct {
	ID        string
	UserID    string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}

// Certificate はcertificatesテーブルの1行に所有者の表示名を結合したもの。
type Certificate struct {
	ID       string
	UniqueID string
	UserID   string
	UserName string
	FilePath string
	IssuedAt time.Time
}
