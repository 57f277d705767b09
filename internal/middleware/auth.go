package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"ordermail/internal/common"

	"github.com/gin-gonic/gin"
)

// Auth returns middleware that validates the X-API-Key header against configured keys.
// This is service-to-service authentication, not JWT-based.
func Auth(validKeys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			common.Abort(c, http.StatusUnauthorized, "missing X-API-Key header")
			return
		}

		if !isValidKey(apiKey, validKeys) {
			common.Abort(c, http.StatusUnauthorized, "invalid API key")
			return
		}

		c.Next()
	}
}

// CronOrAPIKey accepts either "Authorization: Bearer <cronKey>", as sent by an
// external scheduler, or a valid X-API-Key. An empty cronKey disables the bearer path.
func CronOrAPIKey(cronKey string, validKeys []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c.GetHeader("Authorization")); ok && cronKey != "" {
			if subtle.ConstantTimeCompare([]byte(token), []byte(cronKey)) == 1 {
				c.Next()
				return
			}
			common.Abort(c, http.StatusUnauthorized, "invalid bearer token")
			return
		}

		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			common.Abort(c, http.StatusUnauthorized, "missing credentials")
			return
		}
		if !isValidKey(apiKey, validKeys) {
			common.Abort(c, http.StatusUnauthorized, "invalid API key")
			return
		}
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

// isValidKey checks the provided key against the list of valid keys using constant-time comparison.
func isValidKey(key string, validKeys []string) bool {
	for _, valid := range validKeys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}
