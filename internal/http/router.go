// Package http wires the server-rendered console UI: routing, controllers,
// and template plumbing.
package http

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/smolnikov/adminpanel/internal/audit"
	"github.com/smolnikov/adminpanel/internal/backend"
	"github.com/smolnikov/adminpanel/internal/guard"
	"github.com/smolnikov/adminpanel/internal/notify"
	"github.com/smolnikov/adminpanel/internal/session"
	"github.com/smolnikov/adminpanel/internal/state"
)

// RouterConfig carries the router's dependencies.
type RouterConfig struct {
	Session  *session.Manager
	Backend  *backend.Client
	Audit    *audit.Repository
	Sessions *guard.SessionManager
	Guard    *guard.Guard
	Database *state.DB
	Notifier notify.Notifier

	TemplatesPath string
	StaticPath    string
	CSRFSecret    []byte
	SecureCookies bool
	Version       string

	// LoginLimiter throttles POST /login across all clients. Optional.
	LoginLimiter *rate.Limiter

	// MetricsRegistry backs GET /metrics. Optional.
	MetricsRegistry *prometheus.Registry
}

// NewRouter creates and configures the HTTP router with all endpoints.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(guard.SecurityHeaders())

	// CSRF must run before the session middleware so the session context is
	// preserved on top of CSRF's request replacement.
	if len(cfg.CSRFSecret) > 0 {
		router.Use(guard.CSRF(cfg.CSRFSecret, cfg.SecureCookies))
	}
	if cfg.Sessions != nil {
		router.Use(cfg.Sessions.LoadSave())
	}

	tmpl := template.Must(template.New("").ParseGlob(cfg.TemplatesPath + "/*.html"))
	router.SetHTMLTemplate(tmpl)
	router.Static("/static", cfg.StaticPath)

	render := newRenderer(cfg.Session, cfg.Sessions, cfg.Version)
	authController := NewAuthController(cfg.Session, render, cfg.LoginLimiter)
	pages := NewPagesController(cfg.Session, cfg.Backend, cfg.Audit, render, cfg.Notifier)
	health := NewHealthController(cfg.Database, cfg.Version)

	router.GET("/healthz", health.Status)
	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if cfg.MetricsRegistry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.MetricsRegistry, promhttp.HandlerOpts{})))
	}

	router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/login")
	})
	router.GET("/login", authController.LoginPage)
	router.POST("/login", authController.Login)
	router.GET("/signup", authController.SignupPage)
	router.POST("/signup", authController.Signup)
	router.POST("/logout", authController.Logout)
	router.GET("/logout", authController.Logout)

	protected := router.Group("/", cfg.Guard.Protect())
	protected.GET("/dashboard", pages.Dashboard)
	protected.GET("/profile", pages.ProfilePage)
	protected.POST("/profile", pages.UpdateProfile)
	protected.GET("/users", cfg.Guard.RequirePermission("manage_users"), pages.UsersPage)
	protected.GET("/roles", cfg.Guard.RequirePermission("manage_roles"), pages.RolesPage)

	return router
}
