package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Jm9710/appProducotres/internal/pkg/response"
)

// InternalTokenAuth protects machine-to-machine endpoints with a static
// bearer token and an optional client IP allow list.
func InternalTokenAuth(token string, allowedIPs []string, log zerolog.Logger) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedIPs))
	for _, ip := range allowedIPs {
		allowed[ip] = true
	}

	fail := func(c *gin.Context, status int, code, message, reason string) {
		log.Warn().
			Int("status", status).
			Str("request_id", RequestIDFrom(c)).
			Str("client_ip", c.ClientIP()).
			Str("reason", reason).
			Msg("internal token rejected")
		response.AbortError(c, status, code, message)
	}

	return func(c *gin.Context) {
		if len(allowed) > 0 && !allowed[c.ClientIP()] {
			fail(c, http.StatusForbidden, "AUTH_INVALID", "IP not allowed", "ip_not_allowed")
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			fail(c, http.StatusUnauthorized, "AUTH_MISSING", "Authorization header is required", "missing_auth")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			fail(c, http.StatusUnauthorized, "AUTH_INVALID", "Authorization header must be 'Bearer <token>'", "invalid_auth_format")
			return
		}

		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			fail(c, http.StatusForbidden, "AUTH_INVALID", "Invalid internal token", "invalid_token")
			return
		}

		c.Next()
	}
}
