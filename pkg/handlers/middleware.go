package handlers

import (
	"strings"

	"ml-forecast-admin/pkg/services"

	"github.com/gin-gonic/gin"
)

// BearerToken はリクエストの Authorization ヘッダーのトークンをコンテキストに載せ、
// 予測サービスへの呼び出しで使わせるミドルウェアです。
// 埋め込み表示ではホストがユーザーのトークンを渡します。
func BearerToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if len(header) > len("Bearer ") && strings.EqualFold(header[:len("Bearer ")], "Bearer ") {
			token := strings.TrimSpace(header[len("Bearer "):])
			if token != "" {
				c.Request = c.Request.WithContext(services.WithToken(c.Request.Context(), token))
			}
		}
		c.Next()
	}
}
