package http

import (
	"github.com/gin-gonic/gin"

	"github.com/smolnikov/adminpanel/internal/guard"
	"github.com/smolnikov/adminpanel/internal/notify"
	"github.com/smolnikov/adminpanel/internal/session"
)

// renderer renders templates with the base data every page needs: the
// logged-in account, its capabilities, the CSRF token, and any queued
// notifications.
type renderer struct {
	session  *session.Manager
	sessions *guard.SessionManager
	version  string
}

func newRenderer(manager *session.Manager, sessions *guard.SessionManager, version string) *renderer {
	return &renderer{session: manager, sessions: sessions, version: version}
}

func (r *renderer) HTML(c *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if _, set := data["Title"]; !set {
		data["Title"] = "Admin Console"
	}

	user := r.session.User()
	data["User"] = user
	data["IsAdmin"] = r.session.IsAdmin()
	data["CanManageUsers"] = r.session.HasPermission("manage_users")
	data["CanManageRoles"] = r.session.HasPermission("manage_roles")
	data["CSRFToken"] = guard.CSRFToken(c)
	data["Version"] = r.version
	data["ToastMillis"] = notify.DisplayDuration.Milliseconds()

	if r.sessions != nil {
		data["Notifications"] = r.popFlashes(c)
	}

	c.HTML(status, name, data)
}

func (r *renderer) popFlashes(c *gin.Context) []notify.Notification {
	// The request may not have gone through LoadSave (tests, error paths).
	defer func() { _ = recover() }()
	return r.sessions.PopFlashes(c.Request.Context())
}
