package account

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/hogwartsedx/internal/store"
	"github.com/nao1215/hogwartsedx/pkg/middleware"
)

// 開発用ユーザー。開発用トークンはこのユーザーに対してのみ発行する。
const (
	devEmail = "dev@localhost"
	devName  = "開発ユーザー"
)

// Handler はアカウントAPIのHTTPハンドラ。
type Handler struct {
	// queries はユーザーテーブルへのクエリ。
	queries *store.Queries
	// jwtSecret はJWT署名用の秘密鍵。
	jwtSecret string
	// devTokenEnabled は開発用トークン発行APIを登録するかどうか。
	devTokenEnabled bool
}

// NewHandler は新しいHandlerを生成する。
// devTokenEnabled がfalseの場合、開発用トークン発行APIは登録しない。
func NewHandler(queries *store.Queries, jwtSecret string, devTokenEnabled bool) *Handler {
	return &Handler{queries: queries, jwtSecret: jwtSecret, devTokenEnabled: devTokenEnabled}
}

// RegisterRoutes はアカウントAPIを登録する。
func (h *Handler) RegisterRoutes(public, protected *gin.RouterGroup) {
	if h.devTokenEnabled {
		// 開発用トークン発行（認証不要）
		public.POST("/auth/dev-token", h.handleDevToken())
	}

	me := protected.Group("/me")
	{
		me.GET("", h.handleGetCurrentUser())
		me.PUT("/categories/:category", h.handleFollow())
		me.DELETE("/categories/:category", h.handleUnfollow())
	}
}

// handleDevToken は開発用ユーザーのJWTトークンを発行するハンドラを返す。
// リクエストの内容は参照せず、常に固定の開発用ユーザー（一般権限）として発行する。
func (h *Handler) handleDevToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		// 開発用ユーザーが存在しなければ作成
		user, err := h.queries.GetUserByEmail(ctx, devEmail)
		if errors.Is(err, sql.ErrNoRows) {
			params := store.CreateUserParams{
				ID:    uuid.New().String(),
				Name:  devName,
				Email: devEmail,
				Role:  store.RoleUser,
			}
			if err := h.queries.CreateUser(ctx, params); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー作成に失敗しました"})
				log.Printf("[Account] 開発ユーザー作成エラー: %v", err)
				return
			}
			user, err = h.queries.GetUserByID(ctx, params.ID)
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー取得に失敗しました"})
			log.Printf("[Account] 開発ユーザー取得エラー: %v", err)
			return
		}

		token, err := middleware.GenerateJWT(h.jwtSecret, middleware.Identity{
			UserID: user.ID,
			Email:  user.Email,
			Name:   user.Name,
			Role:   user.Role,
		}, middleware.DefaultTokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			log.Printf("[Account] JWT生成エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":  token,
			"userId": user.ID,
		})
	}
}

// userResponse はユーザー情報のJSONレスポンス構造。
type userResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Role       string   `json:"role"`
	Categories []string `json:"categories"`
	CreatedAt  string   `json:"createdAt"`
}

// handleGetCurrentUser は認証済みユーザーの情報とフォロー中のカテゴリを返すハンドラを返す。
func (h *Handler) handleGetCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		user, err := h.queries.GetUserByID(c.Request.Context(), userID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー取得に失敗しました"})
			log.Printf("[Account] ユーザー取得エラー: %v", err)
			return
		}

		categories, err := h.queries.ListCategoriesByUserID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "カテゴリ取得に失敗しました"})
			log.Printf("[Account] カテゴリ取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, userResponse{
			ID:         user.ID,
			Name:       user.Name,
			Email:      user.Email,
			Role:       user.Role,
			Categories: categories,
			CreatedAt:  user.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
}

// handleFollow はカテゴリをフォローするハンドラを返す。フォロー済みでも成功する。
func (h *Handler) handleFollow() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, category, ok := categoryParams(c)
		if !ok {
			return
		}
		if err := h.queries.FollowCategory(c.Request.Context(), userID, category); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "カテゴリのフォローに失敗しました"})
			log.Printf("[Account] カテゴリフォローエラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"category": category, "following": true})
	}
}

// handleUnfollow はカテゴリのフォローを解除するハンドラを返す。未フォローでも成功する。
func (h *Handler) handleUnfollow() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, category, ok := categoryParams(c)
		if !ok {
			return
		}
		if err := h.queries.UnfollowCategory(c.Request.Context(), userID, category); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "カテゴリのフォロー解除に失敗しました"})
			log.Printf("[Account] カテゴリフォロー解除エラー: %v", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"category": category, "following": false})
	}
}

// categoryParams は認証済みユーザーIDとパスのカテゴリを取り出す。
// 取り出せない場合はレスポンスを書き込んでfalseを返す。
func categoryParams(c *gin.Context) (string, string, bool) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
		return "", "", false
	}
	category := strings.TrimSpace(c.Param("category"))
	if category == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "カテゴリを指定してください"})
		return "", "", false
	}
	return userID, category, true
}
