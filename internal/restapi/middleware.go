package restapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/synapsegraph/synapse/internal/ratelimit"
)

// =============================================================================
// AUTH MIDDLEWARE
// =============================================================================

// APIKeyAuthMiddleware checks for a valid API key on every route except
// health. No-op if apiKey is empty.
func APIKeyAuthMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if c.Request.URL.Path == "/api/v1/health" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] == apiKey {
				c.Next()
				return
			}
		}
		if c.GetHeader("X-API-Key") == apiKey {
			c.Next()
			return
		}

		UnauthorizedError(c, "invalid or missing API key")
		c.Abort()
	}
}

// =============================================================================
// RATE LIMIT MIDDLEWARE
// =============================================================================

// routeToToolCategory maps a route to the rate limiter tool bucket that
// should govern it.
func routeToToolCategory(path, method string) string {
	switch {
	case strings.Contains(path, "/search"):
		return "search"
	case strings.Contains(path, "/related"):
		return "search"
	case method == "POST" && strings.HasSuffix(path, "/memories"):
		return "store_memory"
	default:
		return ""
	}
}

// RateLimitMiddleware throttles requests through limiter, separate from the
// embedder collaborator's own dedicated bucket: the two rate limiters are
// kept distinct.
func RateLimitMiddleware(limiter *ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		toolCategory := routeToToolCategory(c.Request.URL.Path, c.Request.Method)
		if toolCategory == "" {
			toolCategory = "default"
		}

		result := limiter.Allow(toolCategory)
		if !result.Allowed {
			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			TooManyRequestsError(c, fmt.Sprintf("rate limit exceeded for %s, retry after %ds", result.LimitType, retryAfter))
			c.Abort()
			return
		}

		c.Next()
	}
}

// =============================================================================
// BODY SIZE MIDDLEWARE
// =============================================================================

// MaxBodySizeMiddleware rejects requests whose body exceeds maxBytes.
func MaxBodySizeMiddleware(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil && c.Request.ContentLength > maxBytes {
			PayloadTooLargeError(c, fmt.Sprintf("request body too large, maximum %d bytes", maxBytes))
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

const (
	MaxContentLength = 100 * 1024
	MaxQueryLength   = 10 * 1024
	MaxTags          = 100
	MaxTagLength     = 200
	MaxLimit         = 1000
	DefaultLimit     = 50
	DefaultBodyLimit = 1 * 1024 * 1024
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func validateTags(tags []string) error {
	if len(tags) > MaxTags {
		return fmt.Errorf("too many tags: %d (maximum %d)", len(tags), MaxTags)
	}
	for _, tag := range tags {
		if len(tag) > MaxTagLength {
			return fmt.Errorf("tag too long: %d characters (maximum %d)", len(tag), MaxTagLength)
		}
	}
	return nil
}

func validateContent(content string) error {
	if len(content) > MaxContentLength {
		return fmt.Errorf("content too long: %d bytes (maximum %d)", len(content), MaxContentLength)
	}
	return nil
}

func validateQuery(query string) error {
	if len(query) > MaxQueryLength {
		return fmt.Errorf("query too long: %d bytes (maximum %d)", len(query), MaxQueryLength)
	}
	return nil
}

func parseIntQuery(c *gin.Context, key string, defaultVal int) int {
	val := c.Query(key)
	if val == "" {
		return defaultVal
	}
	n := 0
	for _, r := range val {
		if r < '0' || r > '9' {
			return defaultVal
		}
		n = n*10 + int(r-'0')
	}
	return n
}
