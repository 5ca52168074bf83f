// Package server assembles the HTTP routes.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/aura-webinar/eventdesk/internal/auth"
	"github.com/aura-webinar/eventdesk/internal/checkin"
	"github.com/aura-webinar/eventdesk/internal/forms"
	"github.com/aura-webinar/eventdesk/internal/middleware"
	"github.com/aura-webinar/eventdesk/internal/realtime"
	"github.com/aura-webinar/eventdesk/internal/registrations"
	"github.com/aura-webinar/eventdesk/pkg/response"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth          *auth.Handler
	Forms         *forms.Handler
	Registrations *registrations.Handler
	CheckIn       *checkin.Handler
	Hub           *realtime.Hub
}

// Options configures cross-cutting middleware.
type Options struct {
	JWT                *auth.JWTService
	Gate               auth.Gate
	CORSAllowedOrigins string
	Logger             *zap.Logger
}

// NewRouter builds the gin engine with every public and admin route.
func NewRouter(h Handlers, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(opts.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Session(opts.JWT))

	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		// Public
		api.GET("/published-form", h.Forms.GetPublished)
		api.POST("/registrations", h.Registrations.Submit)
		api.GET("/codes/:token", h.Registrations.CodeImage)
	}

	admin := api.Group("/admin")
	{
		admin.POST("/login", h.Auth.Login)
		admin.POST("/logout", h.Auth.Logout)
		admin.GET("/check", h.Auth.Check)

		// Forms
		admin.GET("/forms", h.Forms.List)
		admin.POST("/forms", h.Forms.Create)
		admin.GET("/forms/:id", h.Forms.GetByID)
		admin.PUT("/forms/:id", h.Forms.Update)
		admin.DELETE("/forms/:id", h.Forms.Delete)
		admin.POST("/forms/:id/publish", h.Forms.Publish)
		admin.POST("/forms/:id/unpublish", h.Forms.Unpublish)

		// Registrations
		admin.GET("/forms/:id/registrations", h.Registrations.ListByForm)
		admin.GET("/forms/:id/stats", h.Registrations.Stats)
		admin.GET("/registrations/:id", h.Registrations.GetByID)
		admin.GET("/registrations/:id/code-url", h.Registrations.CodeURL)

		// Entrance
		admin.POST("/checkin", h.CheckIn.CheckIn)
		admin.GET("/forms/:id/live", realtime.ServeWs(h.Hub, opts.Gate, logger))
	}

	return router
}
