package publication

import (
	"context"

	"github.com/nao1215/hogwartsedx/internal/store"
	"github.com/nao1215/hogwartsedx/pkg/apperr"
)

// Resolver はカテゴリの購読者を解決する。
type Resolver struct {
	queries *store.Queries
}

// NewResolver は新しいResolverを生成する。
func NewResolver(queries *store.Queries) *Resolver {
	return &Resolver{queries: queries}
}

// Resolve はcategoryをフォローしている全ユーザーを返す。該当者がいなければ空スライスを返す。
func (r *Resolver) Resolve(ctx context.Context, category string) ([]store.User, error) {
	users, err := r.queries.ListUsersByCategory(ctx, category)
	if err != nil {
		return nil, apperr.Dependency("failed to resolve subscribers", err)
	}
	return users, nil
}
