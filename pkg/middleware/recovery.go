package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery は投稿・証明書・通知などのハンドラで起きたパニックを回復するGinミドルウェアを返す。
// スタックトレースを [PANIC] タグ付きでログに残し、内部の詳細を含まない500を返す。
// 配信ワーカー内のパニックはリクエストの外で起きるため、Dispatcherが別に回復する。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[PANIC] %s %s: %v\n%s", c.Request.Method, c.Request.URL.Path, r, debug.Stack())
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "内部サーバーエラーが発生しました",
				})
			}
		}()
		c.Next()
	}
}
