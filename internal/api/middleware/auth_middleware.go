package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cvCanvas/internal/auth"
)

// UserIDKey 是认证后写入 gin.Context 的用户 ID 键。
const UserIDKey = "userID"

// TokenValidator 由 auth.Issuer 实现。
type TokenValidator interface {
	Validate(raw, tokenType string) (*auth.Claims, error)
}

// AuthMiddleware 校验访问令牌并将 userID 注入上下文。
func AuthMiddleware(tokens TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c)
			return
		}

		claims, err := tokens.Validate(rawToken, auth.TokenAccess)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}
