package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Guyuepp/popularity-service/internal/metrics"
)

const (
	HeaderUserID     = "X-User-ID"
	HeaderAdminToken = "X-Admin-Token"

	// ContextUserID is the gin context key holding the caller identity.
	ContextUserID = "user_id"
)

// CORS allows the given origins, or every origin when none is configured.
func CORS(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", HeaderUserID, HeaderAdminToken},
		ExposeHeaders: []string{"Content-Length", "X-RateLimit-Retry-After"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// SetRequestContextWithTimeout bounds the request context of every handler.
func SetRequestContextWithTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Identity copies the caller identity from the X-User-ID header into the context.
// Authentication happens upstream; an absent header means an anonymous caller.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uid := c.GetHeader(HeaderUserID); uid != "" {
			c.Set(ContextUserID, uid)
		}
		c.Next()
	}
}

// RequireUser rejects anonymous callers.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextUserID) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "user not authenticated"})
			return
		}
		c.Next()
	}
}

// AdminToken guards operator routes. An empty token disables them.
func AdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "admin routes are disabled"})
			return
		}
		supplied := c.GetHeader(HeaderAdminToken)
		if supplied == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "admin token required"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(supplied), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "invalid admin token"})
			return
		}
		c.Next()
	}
}

// Metrics records the duration of every request by route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveHTTPRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), start)
	}
}
