package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSlugTaken は作成しようとした投稿のslugが既に使われていることを表す。
var ErrSlugTaken = errors.New("slugは既に使われています")

const createPost = `
INSERT INTO posts (
    id, title, slug, content, title_image, title_video, summary, subtitles,
    author_id, author_name, category, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreatePost は投稿を作成する。CreatedAt は呼び出し側で設定すること。
// slugが使用済みの場合は ErrSlugTaken を返す。
func (q *Queries) CreatePost(ctx context.Context, p Post) error {
	subtitles := p.Subtitles
	if subtitles == nil {
		subtitles = []string{}
	}
	encoded, err := json.Marshal(subtitles)
	if err != nil {
		return fmt.Errorf("subtitlesのシリアライズに失敗: %w", err)
	}

	_, err = q.db.ExecContext(ctx, createPost,
		p.ID, p.Title, p.Slug, p.Content, p.TitleImage, p.TitleVideo, p.Summary, string(encoded),
		p.AuthorID, p.AuthorName, p.Category, FormatTime(p.CreatedAt),
	)
	if isUniqueViolation(err, "posts.slug") {
		return fmt.Errorf("%w: %s", ErrSlugTaken, p.Slug)
	}
	return err
}

const postColumns = `id, title, slug, content, title_image, title_video, summary, subtitles,
    author_id, author_name, category, created_at`

func scanPost(row interface{ Scan(...any) error }) (Post, error) {
	var (
		p         Post
		subtitles string
	)
	if err := row.Scan(
		&p.ID, &p.Title, &p.Slug, &p.Content, &p.TitleImage, &p.TitleVideo, &p.Summary, &subtitles,
		&p.AuthorID, &p.AuthorName, &p.Category, &p.CreatedAt,
	); err != nil {
		return Post{}, err
	}
	if err := json.Unmarshal([]byte(subtitles), &p.Subtitles); err != nil {
		return Post{}, fmt.Errorf("subtitlesのデシリアライズに失敗 (id=%s): %w", p.ID, err)
	}
	return p, nil
}

func (q *Queries) listPosts(ctx context.Context, query string, args ...any) ([]Post, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

const getPostBySlug = `SELECT ` + postColumns + ` FROM posts WHERE slug = ?`

// GetPostBySlug はslugで投稿を取得する。存在しない場合は sql.ErrNoRows を返す。
func (q *Queries) GetPostBySlug(ctx context.Context, slug string) (Post, error) {
	return scanPost(q.db.QueryRowContext(ctx, getPostBySlug, slug))
}

const listPosts = `SELECT ` + postColumns + ` FROM posts ORDER BY created_at DESC, rowid DESC`

// ListPosts は全投稿を作成日時の新しい順に返す。
func (q *Queries) ListPosts(ctx context.Context) ([]Post, error) {
	return q.listPosts(ctx, listPosts)
}

const listPostsByAuthorID = `SELECT ` + postColumns + ` FROM posts
WHERE author_id = ?
ORDER BY created_at DESC, rowid DESC`

// ListPostsByAuthorID は指定ユーザーの投稿を新しい順に返す。
func (q *Queries) ListPostsByAuthorID(ctx context.Context, authorID string) ([]Post, error) {
	return q.listPosts(ctx, listPostsByAuthorID, authorID)
}

const searchPosts = `SELECT ` + postColumns + ` FROM posts
WHERE ` + foldFunc + `(title) LIKE '%' || ` + foldFunc + `(?1) || '%' ESCAPE '\'
   OR ` + foldFunc + `(content) LIKE '%' || ` + foldFunc + `(?1) || '%' ESCAPE '\'
ORDER BY created_at DESC, rowid DESC`

// SearchPosts はタイトルまたは本文にキーワードを含む投稿を返す（大文字小文字を区別しない）。
func (q *Queries) SearchPosts(ctx context.Context, keyword string) ([]Post, error) {
	return q.listPosts(ctx, searchPosts, EscapeLike(keyword))
}
