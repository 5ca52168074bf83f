package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-webinar/eventdesk/pkg/response"
	"github.com/aura-webinar/eventdesk/pkg/utils"
)

// CookieName is the session cookie set on login.
const CookieName = "admin_session"

// LoginRequest is the body for POST /api/admin/login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Credentials is the single admin account configured for the deployment.
type Credentials struct {
	Username     string
	PasswordHash string // bcrypt
}

// Handler handles admin session HTTP endpoints.
type Handler struct {
	creds        Credentials
	jwt          *JWTService
	gate         Gate
	secureCookie bool
	logger       *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(creds Credentials, jwt *JWTService, gate Gate, secureCookie bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{creds: creds, jwt: jwt, gate: gate, secureCookie: secureCookie, logger: logger}
}

// Login handles POST /api/admin/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if h.creds.PasswordHash == "" || req.Username != h.creds.Username || !utils.CheckPassword(req.Password, h.creds.PasswordHash) {
		h.logger.Warn("admin login rejected", zap.String("username", req.Username), zap.String("client_ip", c.ClientIP()))
		response.Unauthorized(c, "invalid username or password")
		return
	}

	token, err := h.jwt.Generate(req.Username)
	if err != nil {
		h.logger.Error("generate session token failed", zap.Error(err))
		response.Internal(c, "failed to create session")
		return
	}
	h.setCookie(c, token, int(h.jwt.TTL().Seconds()))
	response.OK(c, gin.H{"isAdmin": true, "token": token})
}

// Logout handles POST /api/admin/logout.
func (h *Handler) Logout(c *gin.Context) {
	h.setCookie(c, "", -1)
	response.OK(c, gin.H{"isAdmin": false})
}

// Check handles GET /api/admin/check.
func (h *Handler) Check(c *gin.Context) {
	response.OK(c, gin.H{"isAdmin": h.gate.IsAdmin(c.Request.Context())})
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, value, maxAge, "/", "", h.secureCookie, true)
}
