package guard

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/smolnikov/adminpanel/internal/session"
)

// Guard gates protected routes on the auth session.
type Guard struct {
	session *session.Manager
}

func New(manager *session.Manager) *Guard {
	return &Guard{session: manager}
}

// Protect returns a middleware that holds requests while startup
// verification is still running and redirects logged-out requests to the
// login page. While verifying it renders a waiting page rather than
// redirecting, so a slow backend never bounces a valid session to login.
func (g *Guard) Protect() gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.session.Status() != session.StatusReady {
			c.HTML(http.StatusOK, "verifying.html", gin.H{})
			c.Abort()
			return
		}

		if g.session.User() == nil {
			c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.Path))
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequirePermission returns a middleware that sends requests lacking the
// named permission back to the dashboard. It repeats the Protect checks so
// it stays correct even when mounted on its own.
func (g *Guard) RequirePermission(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if g.session.Status() != session.StatusReady {
			c.HTML(http.StatusOK, "verifying.html", gin.H{})
			c.Abort()
			return
		}
		if g.session.User() == nil {
			c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.Path))
			c.Abort()
			return
		}
		if !g.session.HasPermission(name) {
			c.Redirect(http.StatusFound, "/dashboard")
			c.Abort()
			return
		}
		c.Next()
	}
}
