package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/eventdesk/internal/auth"
)

func TestSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jwtSvc := auth.NewJWTService("secret", 1)
	tok, err := jwtSvc.Generate("organizer")
	require.NoError(t, err)

	router := gin.New()
	router.Use(Session(jwtSvc))
	router.GET("/", func(c *gin.Context) {
		if (auth.SessionGate{}).IsAdmin(c.Request.Context()) {
			c.String(http.StatusOK, "admin")
			return
		}
		c.String(http.StatusOK, "public")
	})

	tests := []struct {
		name  string
		setup func(r *http.Request)
		want  string
	}{
		{"no session", func(*http.Request) {}, "public"},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: tok}) }, "admin"},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }, "admin"},
		{"bad cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "junk"}) }, "public"},
		{"wrong scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic "+tok) }, "public"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Body.String())
		})
	}
}
