package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/eventdesk/internal/auth"
)

// Session returns a middleware that validates the admin session (cookie or Bearer
// header) and, when valid, stores its claims in the request context. Requests
// without a valid session pass through unchanged; admin operations are gated by
// auth.Gate further down.
func Session(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token, _ = c.Cookie(auth.CookieName)
		}
		if token != "" {
			if claims, err := jwtService.Validate(token); err == nil {
				c.Request = c.Request.WithContext(auth.WithClaims(c.Request.Context(), claims))
			}
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
