package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-webinar/eventdesk/pkg/utils"
)

func TestJWTService(t *testing.T) {
	svc := NewJWTService("secret", 1)
	tok, err := svc.Generate("organizer")
	require.NoError(t, err)

	claims, err := svc.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "organizer", claims.Username)
	assert.Equal(t, RoleAdmin, claims.Role)

	_, err = NewJWTService("other", 1).Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Validate("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestSessionGate(t *testing.T) {
	var gate SessionGate
	assert.False(t, gate.IsAdmin(context.Background()))
	assert.True(t, gate.IsAdmin(WithClaims(context.Background(), &Claims{Role: RoleAdmin})))
	assert.False(t, gate.IsAdmin(WithClaims(context.Background(), &Claims{Role: "guest"})))
}

func TestLoginHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hash, err := utils.HashPassword("hunter22")
	require.NoError(t, err)

	jwtSvc := NewJWTService("secret", 1)
	h := NewHandler(Credentials{Username: "organizer", PasswordHash: hash}, jwtSvc, SessionGate{}, false, nil)
	router := gin.New()
	router.POST("/login", h.Login)
	router.POST("/logout", h.Logout)
	router.GET("/check", h.Check)

	t.Run("wrong password", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"organizer","password":"nope"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("sets session cookie", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"username":"organizer","password":"hunter22"}`))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)

		var cookie *http.Cookie
		for _, ck := range w.Result().Cookies() {
			if ck.Name == CookieName {
				cookie = ck
			}
		}
		require.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)
		claims, err := jwtSvc.Validate(cookie.Value)
		require.NoError(t, err)
		assert.Equal(t, "organizer", claims.Username)
	})

	t.Run("check without session", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/check", nil))
		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Data struct {
				IsAdmin bool `json:"isAdmin"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.False(t, body.Data.IsAdmin)
	})

	t.Run("logout expires cookie", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/logout", nil))
		require.Equal(t, http.StatusOK, w.Code)
		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, CookieName, cookies[0].Name)
		assert.Negative(t, cookies[0].MaxAge)
	})
}
