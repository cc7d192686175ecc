package httpapi

import (
	"net/http"
	"strings"
	"time"

	"ai-fitness-coach/internal/auth"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const claimsKey = "claims"

// TokenVerifier checks bearer tokens.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// requireAuth rejects requests without a valid bearer token.
func requireAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		claims, err := v.Verify(token)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// requireSubjectAccess lets clients reach only their own subject.
func requireSubjectAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := c.MustGet(claimsKey).(*auth.Claims)
		if !ok || !claims.CanAccess(c.Param("id")) {
			respondError(c, http.StatusForbidden, "forbidden", "forbidden")
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
