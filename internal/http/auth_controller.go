package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/smolnikov/adminpanel/internal/backend"
	"github.com/smolnikov/adminpanel/internal/guard"
	"github.com/smolnikov/adminpanel/internal/session"
)

// AuthController serves the login, signup, and logout endpoints.
type AuthController struct {
	session *session.Manager
	render  *renderer
	limiter *rate.Limiter
}

func NewAuthController(manager *session.Manager, render *renderer, limiter *rate.Limiter) *AuthController {
	return &AuthController{session: manager, render: render, limiter: limiter}
}

// LoginPage renders the login form. An already logged-in operator is sent
// straight to the dashboard.
func (a *AuthController) LoginPage(c *gin.Context) {
	if a.session.Status() == session.StatusReady && a.session.User() != nil {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}

	a.render.HTML(c, http.StatusOK, "login.html", gin.H{
		"Title": "Log in",
		"Email": "",
		"Next":  c.Query("next"),
	})
}

// Login handles the login form submission.
func (a *AuthController) Login(c *gin.Context) {
	if a.limiter != nil && !a.limiter.Allow() {
		a.render.HTML(c, http.StatusTooManyRequests, "login.html", gin.H{
			"Title": "Log in",
			"Error": "Too many login attempts. Please wait a moment.",
			"Email": c.PostForm("email"),
			"Next":  c.PostForm("next"),
		})
		return
	}

	email := c.PostForm("email")
	password := c.PostForm("password")

	_, err := a.session.Login(c.Request.Context(), email, password)
	if err != nil {
		a.render.HTML(c, http.StatusOK, "login.html", gin.H{
			"Title": "Log in",
			"Email": email,
			"Next":  c.PostForm("next"),
		})
		return
	}

	c.Redirect(http.StatusSeeOther, guard.SanitizeRedirectPath(c.PostForm("next")))
}

// SignupPage renders the registration form.
func (a *AuthController) SignupPage(c *gin.Context) {
	if a.session.Status() == session.StatusReady && a.session.User() != nil {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}

	a.render.HTML(c, http.StatusOK, "signup.html", gin.H{
		"Title": "Sign up",
		"Name":  "",
		"Email": "",
	})
}

// Signup handles the registration form submission. A successful signup
// leaves the operator logged in.
func (a *AuthController) Signup(c *gin.Context) {
	reg := backend.Registration{
		Name:     c.PostForm("name"),
		Email:    c.PostForm("email"),
		Password: c.PostForm("password"),
	}

	if _, err := a.session.Signup(c.Request.Context(), reg); err != nil {
		a.render.HTML(c, http.StatusOK, "signup.html", gin.H{
			"Title": "Sign up",
			"Name":  reg.Name,
			"Email": reg.Email,
		})
		return
	}

	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// Logout clears the session and returns to the login page.
func (a *AuthController) Logout(c *gin.Context) {
	a.session.Logout(c.Request.Context())
	c.Redirect(http.StatusSeeOther, "/login")
}
