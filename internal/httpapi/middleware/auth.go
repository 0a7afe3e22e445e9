// Package middleware holds the gin middleware chain for the HTTP
// surface: shared-secret auth and panic/error recovery into the
// fleetd error taxonomy.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fleetd/internal/ferrors"
)

// publicPaths is the explicit public endpoint set from §4.5: browser
// pages, read-only stores, health, and search never require the shared
// secret.
var publicPaths = map[string]bool{
	"/status":    true,
	"/recent":    true,
	"/pinned":    true,
	"/summary":   true,
	"/search":    true,
	"/health":    true,
	"/knowledge": true,
	"/config":    true,
}

// coordinationPrefixes are path prefixes that skip auth regardless of
// method, per §4.5's explicit carve-out for the coordination surface.
// The admin-only forced-fail route under /tasks is the one exception.
var coordinationPrefixes = []string{"/instance", "/tasks", "/agents", "/handoffs"}

func isPublic(path string) bool {
	if strings.HasPrefix(path, "/tasks/") && strings.HasSuffix(path, "/force-fail") {
		return false
	}
	if publicPaths[path] {
		return true
	}
	if strings.HasPrefix(path, "/webhook/") {
		return true
	}
	if path == "/mcp" || strings.HasPrefix(path, "/mcp/") {
		return true
	}
	for _, prefix := range coordinationPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// RequireAPIKey enforces the shared secret on every non-public route.
// The secret may be carried in X-API-Key, an Authorization: Bearer
// header, or a key= query parameter.
func RequireAPIKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || isPublic(c.Request.URL.Path) {
			c.Next()
			return
		}

		supplied := c.GetHeader("X-API-Key")
		if supplied == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				supplied = strings.TrimPrefix(auth, "Bearer ")
			}
		}
		if supplied == "" {
			supplied = c.Query("key")
		}

		if supplied == "" || supplied != apiKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// ErrorHandler maps an *ferrors.Error surfaced via c.Error into its
// taxonomy-mapped HTTP status, and recovers bare panics into a 500.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal: unhandled panic"})
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		if fe, ok := ferrors.As(err); ok {
			c.JSON(fe.Status(), gin.H{"error": fe.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal: " + err.Error()})
	}
}
