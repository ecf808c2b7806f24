package publication

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/hogwartsedx/internal/store"
	"github.com/nao1215/hogwartsedx/pkg/apperr"
	"github.com/nao1215/hogwartsedx/pkg/event"
)

// Input は投稿公開の入力。
type Input struct {
	Title      string
	Category   string
	Content    string
	TitleImage string
	TitleVideo string
	Summary    string
	Subtitles  []string
}

// validate は必須項目が空白だけでないことを確認する。
func (in Input) validate() error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return apperr.Validation("title is required")
	case strings.TrimSpace(in.Category) == "":
		return apperr.Validation("category is required")
	case strings.TrimSpace(in.Content) == "":
		return apperr.Validation("content is required")
	}
	return nil
}

// Enqueuer は配信キューへイベントを積む。満杯の場合は待たずにfalseを返す。
type Enqueuer interface {
	Enqueue(e *event.Event) bool
}

// Publisher は投稿を永続化し、配信をキューに積む。
type Publisher struct {
	// queries は投稿・ユーザーテーブルへのクエリ。
	queries *store.Queries
	// queue は配信キュー。
	queue Enqueuer
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
}

// NewPublisher は新しいPublisherを生成する。
func NewPublisher(queries *store.Queries, queue Enqueuer) *Publisher {
	return &Publisher{queries: queries, queue: queue, now: time.Now}
}

// Publish はauthorIDのユーザーとして投稿を作成して返す。
// 投稿の永続化に失敗した場合だけエラーを返し、その場合は配信を行わない。
// 配信はキューに積むだけで、その結果は戻り値に影響しない。
func (p *Publisher) Publish(ctx context.Context, authorID string, in Input) (store.Post, error) {
	if err := in.validate(); err != nil {
		return store.Post{}, err
	}

	author, err := p.queries.GetUserByID(ctx, authorID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Post{}, apperr.Validation("author not found")
	}
	if err != nil {
		return store.Post{}, apperr.Dependency("failed to load author", err)
	}

	subtitles := in.Subtitles
	if subtitles == nil {
		subtitles = []string{}
	}

	post := store.Post{
		ID:         uuid.New().String(),
		Title:      strings.TrimSpace(in.Title),
		Content:    in.Content,
		TitleImage: in.TitleImage,
		TitleVideo: in.TitleVideo,
		Summary:    in.Summary,
		Subtitles:  subtitles,
		AuthorID:   author.ID,
		AuthorName: author.Name,
		Category:   strings.TrimSpace(in.Category),
		CreatedAt:  p.now().UTC(),
	}
	if err := p.insert(ctx, &post, slugify(in.Title)); err != nil {
		return store.Post{}, err
	}
	log.Printf("[Publish] 投稿を作成しました: id=%s slug=%s category=%s", post.ID, post.Slug, post.Category)

	ev, err := event.NewPostPublished(event.PostPublishedData{
		PostID:   post.ID,
		Title:    post.Title,
		Slug:     post.Slug,
		Category: post.Category,
		AuthorID: post.AuthorID,
	})
	if err != nil {
		log.Printf("[Publish] 配信イベントの生成に失敗 (post_id=%s): %v", post.ID, err)
		return post, nil
	}
	p.queue.Enqueue(ev)

	return post, nil
}

// insert は投稿を保存する。slugが使用済みなら（同時に同じタイトルで公開された場合も含めて）
// サフィックスを付け替えて作成し直す。
func (p *Publisher) insert(ctx context.Context, post *store.Post, base string) error {
	post.Slug = base
	for attempt := 1; ; attempt++ {
		err := p.queries.CreatePost(ctx, *post)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrSlugTaken) {
			return apperr.Dependency("failed to create post", err)
		}
		if attempt >= maxSlugAttempts {
			return apperr.Dependency("failed to generate slug", err)
		}
		post.Slug = withSuffix(base)
	}
}
