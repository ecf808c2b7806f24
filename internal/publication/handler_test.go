package publication

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

// setupTestRouter は投稿APIを登録したルーターを返す。
// 認証済みグループはX-User-IDヘッダーの値をユーザーIDとして扱う。
func setupTestRouter(env *testEnv) *gin.Engine {
	router := gin.New()
	public := router.Group("")
	protected := router.Group("")
	protected.Use(func(c *gin.Context) {
		if userID := c.GetHeader("X-User-ID"); userID != "" {
			c.Set("user_id", userID)
		}
		c.Next()
	})
	NewHandler(env.publisher, env.queries).RegisterRoutes(public, protected)
	return router
}

func doJSON(router *gin.Engine, method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v, body=%s", err, w.Body.String())
	}
	return v
}

func TestHandleCreate(t *testing.T) {
	t.Parallel()

	t.Run("購読者がいなくても201で投稿を返す", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t, nil, DispatcherOptions{})
		env.dispatcher.Start(context.Background())
		mustCreateUser(t, env.queries, "author", "Rubeus Hagrid")
		router := setupTestRouter(env)

		w := doJSON(router, http.MethodPost, "/posts", "author", map[string]any{
			"title":      "Hippogriffs",
			"category":   "creatures",
			"content":    "Always bow first.",
			"titleImage": "https://img.example/buckbeak.png",
			"subtitles":  []string{"Bowing"},
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("ステータスコード: got %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
		}

		got := decodeBody[postResponse](t, w)
		if got.Slug != "hippogriffs" || got.AuthorID != "author" || got.AuthorName != "Rubeus Hagrid" {
			t.Errorf("レスポンス = %+v", got)
		}
		if got.TitleImage != "https://img.example/buckbeak.png" {
			t.Errorf("titleImage = %q", got.TitleImage)
		}

		env.dispatcher.Close()
		if n := len(env.sender.messages()); n != 0 {
			t.Errorf("メール数 = %d, want 0", n)
		}
	})

	t.Run("タイトルが無い場合は400で通知もメールも作らない", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t, nil, DispatcherOptions{})
		env.dispatcher.Start(context.Background())
		mustCreateUser(t, env.queries, "author", "Rubeus Hagrid")
		mustCreateUser(t, env.queries, "fan", "Fan", "creatures")
		router := setupTestRouter(env)

		w := doJSON(router, http.MethodPost, "/posts", "author", map[string]any{
			"category": "creatures",
			"content":  "No title",
		})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
		body := decodeBody[map[string]string](t, w)
		if body["message"] != "title is required" {
			t.Errorf("message = %q, want %q", body["message"], "title is required")
		}

		env.dispatcher.Close()
		if got := countNotifications(t, env.queries, "fan"); got != 0 {
			t.Errorf("通知数 = %d, want 0", got)
		}
		if n := len(env.sender.messages()); n != 0 {
			t.Errorf("メール数 = %d, want 0", n)
		}
	})

	t.Run("空白だけのタイトルは400", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t, nil, DispatcherOptions{})
		mustCreateUser(t, env.queries, "author", "Rubeus Hagrid")
		router := setupTestRouter(env)

		w := doJSON(router, http.MethodPost, "/posts", "author", map[string]any{
			"title": "   ", "category": "creatures", "content": "x",
		})
		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("不正なJSONは400", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t, nil, DispatcherOptions{})
		router := setupTestRouter(env)

		req := httptest.NewRequest(http.MethodPost, "/posts", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", "author")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("未認証は401", func(t *testing.T) {
		t.Parallel()
		env := setupTestEnv(t, nil, DispatcherOptions{})
		router := setupTestRouter(env)

		w := doJSON(router, http.MethodPost, "/posts", "", map[string]any{"title": "t", "category": "c", "content": "x"})
		if w.Code != http.StatusUnauthorized {
			t.Errorf("ステータスコード: got %d, want %d", w.Code, http.StatusUnauthorized)
		}
	})
}

func TestHandleRead(t *testing.T) {
	t.Parallel()

	env := setupTestEnv(t, nil, DispatcherOptions{})
	mustCreateUser(t, env.queries, "remus", "Remus Lupin")
	mustCreateUser(t, env.queries, "sirius", "Sirius Black")
	router := setupTestRouter(env)

	for _, tc := range []struct{ author, title, content string }{
		{"remus", "Boggarts", "Riddikulus"},
		{"sirius", "Animagi", "Padfoot"},
		{"remus", "Werewolves", "Full moon"},
	} {
		w := doJSON(router, http.MethodPost, "/posts", tc.author, map[string]any{
			"title": tc.title, "category": "dada", "content": tc.content,
		})
		if w.Code != http.StatusCreated {
			t.Fatalf("投稿の作成に失敗: %d %s", w.Code, w.Body.String())
		}
	}

	t.Run("一覧は新しい順", func(t *testing.T) {
		t.Parallel()
		got := decodeBody[[]postResponse](t, doJSON(router, http.MethodGet, "/posts", "", nil))
		if len(got) != 3 {
			t.Fatalf("件数 = %d, want 3", len(got))
		}
		if got[0].Title != "Werewolves" || got[2].Title != "Boggarts" {
			t.Errorf("並び順 = %s, %s, %s", got[0].Title, got[1].Title, got[2].Title)
		}
	})

	t.Run("slugで1件取得できる", func(t *testing.T) {
		t.Parallel()
		w := doJSON(router, http.MethodGet, "/posts/animagi", "", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusOK)
		}
		if got := decodeBody[postResponse](t, w); got.AuthorName != "Sirius Black" {
			t.Errorf("authorName = %q", got.AuthorName)
		}
	})

	t.Run("存在しないslugは404", func(t *testing.T) {
		t.Parallel()
		w := doJSON(router, http.MethodGet, "/posts/horcruxes", "", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("ステータスコード: got %d, want %d", w.Code, http.StatusNotFound)
		}
		if body := decodeBody[map[string]string](t, w); body["message"] != "Post not found" {
			t.Errorf("message = %q, want %q", body["message"], "Post not found")
		}
	})

	t.Run("検索は大文字小文字を区別せずタイトルと本文を対象にする", func(t *testing.T) {
		t.Parallel()
		got := decodeBody[[]postResponse](t, doJSON(router, http.MethodGet, "/posts/search?keyword=RIDDIK", "", nil))
		if len(got) != 1 || got[0].Title != "Boggarts" {
			t.Errorf("検索結果 = %+v", got)
		}

		got = decodeBody[[]postResponse](t, doJSON(router, http.MethodGet, "/posts/search?keyword=wolves", "", nil))
		if len(got) != 1 || got[0].Title != "Werewolves" {
			t.Errorf("検索結果 = %+v", got)
		}
	})

	t.Run("自分の投稿だけを返す", func(t *testing.T) {
		t.Parallel()
		got := decodeBody[[]postResponse](t, doJSON(router, http.MethodGet, "/posts/mine", "remus", nil))
		if len(got) != 2 {
			t.Fatalf("件数 = %d, want 2", len(got))
		}
		for _, p := range got {
			if p.AuthorID != "remus" {
				t.Errorf("authorId = %q, want remus", p.AuthorID)
			}
		}
	})
}
