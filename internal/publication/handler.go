package publication

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/nao1215/hogwartsedx/internal/store"
	"github.com/nao1215/hogwartsedx/pkg/apperr"
	"github.com/nao1215/hogwartsedx/pkg/middleware"
)

// Handler は投稿APIのHTTPハンドラ。エラーは {"message": ...} で返す。
type Handler struct {
	publisher *Publisher
	queries   *store.Queries
}

// NewHandler は新しいHandlerを生成する。
func NewHandler(publisher *Publisher, queries *store.Queries) *Handler {
	return &Handler{publisher: publisher, queries: queries}
}

// RegisterRoutes は投稿APIを登録する。閲覧は認証不要、作成と自分の投稿一覧は認証必須。
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	// 投稿の作成
	protected.POST("/posts", h.handleCreate())
	// 自分の投稿一覧
	protected.GET("/posts/mine", h.handleListMine())

	public.GET("/posts", h.handleList())
	public.GET("/posts/search", h.handleSearch())
	public.GET("/posts/:slug", h.handleGet())
}

// createPostRequest は投稿作成リクエストのボディ。
type createPostRequest struct {
	Title      string   `json:"title" binding:"required"`
	Category   string   `json:"category" binding:"required"`
	Content    string   `json:"content" binding:"required"`
	TitleImage string   `json:"titleImage"`
	TitleVideo string   `json:"titleVideo"`
	Summary    string   `json:"summary"`
	Subtitles  []string `json:"subtitles"`
}

// postResponse は投稿のJSONレスポンス構造。
type postResponse struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Slug       string   `json:"slug"`
	Content    string   `json:"content"`
	TitleImage string   `json:"titleImage,omitempty"`
	TitleVideo string   `json:"titleVideo,omitempty"`
	Summary    string   `json:"summary,omitempty"`
	Subtitles  []string `json:"subtitles"`
	AuthorID   string   `json:"authorId"`
	AuthorName string   `json:"authorName"`
	Category   string   `json:"category"`
	CreatedAt  string   `json:"createdAt"`
}

func toPostResponse(p store.Post) postResponse {
	subtitles := p.Subtitles
	if subtitles == nil {
		subtitles = []string{}
	}
	return postResponse{
		ID:         p.ID,
		Title:      p.Title,
		Slug:       p.Slug,
		Content:    p.Content,
		TitleImage: p.TitleImage,
		TitleVideo: p.TitleVideo,
		Summary:    p.Summary,
		Subtitles:  subtitles,
		AuthorID:   p.AuthorID,
		AuthorName: p.AuthorName,
		Category:   p.Category,
		CreatedAt:  p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func toPostResponses(posts []store.Post) []postResponse {
	responses := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		responses = append(responses, toPostResponse(p))
	}
	return responses
}

// bindingMessage はリクエストのバインドエラーを呼び出し元向けの文言にする。
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return strings.ToLower(verrs[0].Field()) + " is required"
	}
	return "invalid request body"
}

// handleCreate は投稿を作成するハンドラ。配信の完了は待たない。
func (h *Handler) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authorID := middleware.GetUserID(c)
		if authorID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}

		var req createPostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"message": bindingMessage(err)})
			return
		}

		post, err := h.publisher.Publish(c.Request.Context(), authorID, Input{
			Title:      req.Title,
			Category:   req.Category,
			Content:    req.Content,
			TitleImage: req.TitleImage,
			TitleVideo: req.TitleVideo,
			Summary:    req.Summary,
			Subtitles:  req.Subtitles,
		})
		if err != nil {
			if apperr.KindOf(err) == apperr.KindDependency {
				log.Printf("[Publish] 投稿作成エラー: %v", err)
			}
			c.JSON(apperr.HTTPStatus(err), gin.H{"message": apperr.MessageOf(err, "Internal server error")})
			return
		}

		c.JSON(http.StatusCreated, toPostResponse(post))
	}
}

// handleList は全投稿を新しい順に返すハンドラ。
func (h *Handler) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		posts, err := h.queries.ListPosts(c.Request.Context())
		if err != nil {
			log.Printf("[Publish] 投稿一覧取得エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, toPostResponses(posts))
	}
}

// handleSearch はタイトルまたは本文にkeywordを含む投稿を返すハンドラ。
// keywordが空の場合は全件を返す。
func (h *Handler) handleSearch() gin.HandlerFunc {
	return func(c *gin.Context) {
		posts, err := h.queries.SearchPosts(c.Request.Context(), c.Query("keyword"))
		if err != nil {
			log.Printf("[Publish] 投稿検索エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, toPostResponses(posts))
	}
}

// handleListMine は認証済みユーザー自身の投稿を新しい順に返すハンドラ。
func (h *Handler) handleListMine() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}

		posts, err := h.queries.ListPostsByAuthorID(c.Request.Context(), userID)
		if err != nil {
			log.Printf("[Publish] 自分の投稿一覧取得エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, toPostResponses(posts))
	}
}

// handleGet はslugで投稿を1件返すハンドラ。
func (h *Handler) handleGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		post, err := h.queries.GetPostBySlug(c.Request.Context(), c.Param("slug"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Post not found"})
			return
		}
		if err != nil {
			log.Printf("[Publish] 投稿取得エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}
		c.JSON(http.StatusOK, toPostResponse(post))
	}
}
