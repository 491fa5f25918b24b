package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"casino-core/internal/services"
	"casino-core/internal/store"
)

func AuthMiddleware(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
			if tokenString == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				c.Abort()
				return
			}
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("account_id", claims.AccountID)

		c.Next()
	}
}

// RateLimitMiddleware throttles the hot paths per account with windowed
// counters in the store. Paths without a configured limit pass through.
func RateLimitMiddleware(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		accountID, exists := c.Get("account_id")
		if !exists {
			c.Next()
			return
		}

		path := c.Request.URL.Path

		var limit int64
		var window time.Duration

		switch {
		case strings.HasSuffix(path, "/bet"):
			limit = 30
			window = time.Minute
		case strings.HasSuffix(path, "/cashout"):
			limit = 60
			window = time.Minute
		case strings.HasSuffix(path, "/reveal"), strings.HasSuffix(path, "/action"):
			limit = 120
			window = time.Minute
		default:
			c.Next()
			return
		}

		key := fmt.Sprintf("%d:%s", accountID.(int64), path)
		count, err := st.IncrCounter(c.Request.Context(), key, window)
		if err != nil || count > limit {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
