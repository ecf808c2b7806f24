package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/hogwartsedx/pkg/metrics"
)

// unmatchedRoute はルーティングに一致しなかったリクエストのrouteラベル。
const unmatchedRoute = "unmatched"

// Metrics はリクエスト数をメソッド・ルート・ステータス別に記録するGinミドルウェアを返す。
// ラベルのカーディナリティを抑えるため、routeには実パスではなくルートのパターンを使う。
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
