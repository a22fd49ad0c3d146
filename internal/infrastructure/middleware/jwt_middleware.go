package middleware

import (
	"net/http"
	"strings"

	"agrilink_server/pkg/errorx"
	"agrilink_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
)

// ContextUserID 认证通过后用户 ID 在 gin.Context 中的键
const ContextUserID = "user_id"

// JWTAuth JWT 认证中间件
// Token 依次从 Authorization: Bearer、token Cookie、token 查询参数中读取
// 浏览器建立 websocket 时无法自定义请求头，因此后两种方式主要供 /wss 使用
func JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 提取 Token
		token, ok := extractToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errorx.CodeUnauthorized,
				"msg":  "请先登录",
			})
			return
		}

		// 2. 验证 Token
		claims, err := jwt.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errorx.CodeUnauthorized,
				"msg":  "Token 已过期或无效，请重新登录",
			})
			return
		}

		// 3. 认证服务签发的 Token 可能不带 sub；带了就必须是 Access Token
		if claims.Subject != "" && claims.Subject != "access_token" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code": errorx.CodeUnauthorized,
				"msg":  "请使用 Access Token 访问此接口",
			})
			return
		}

		// 4. 将用户信息存入上下文，供后续 Handler 使用
		c.Set(ContextUserID, claims.UserID)
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, bool) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
			return parts[1], true
		}
		return "", false
	}
	if cookie, err := c.Cookie("token"); err == nil && cookie != "" {
		return cookie, true
	}
	if q := c.Query("token"); q != "" {
		return q, true
	}
	return "", false
}

// CurrentUserID 读取 JWTAuth 写入的用户 ID
func CurrentUserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
