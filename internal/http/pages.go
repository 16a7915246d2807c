package http

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/smolnikov/adminpanel/internal/audit"
	"github.com/smolnikov/adminpanel/internal/backend"
	"github.com/smolnikov/adminpanel/internal/entities"
	"github.com/smolnikov/adminpanel/internal/notify"
	"github.com/smolnikov/adminpanel/internal/session"
)

const recentEventsLimit = 10

// PagesController serves the protected pages behind the guard.
type PagesController struct {
	session  *session.Manager
	backend  *backend.Client
	audit    *audit.Repository
	render   *renderer
	notifier notify.Notifier
}

func NewPagesController(manager *session.Manager, api *backend.Client, auditRepo *audit.Repository, render *renderer, notifier notify.Notifier) *PagesController {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &PagesController{session: manager, backend: api, audit: auditRepo, render: render, notifier: notifier}
}

type dashboardStats struct {
	TotalUsers int
	TotalRoles int
}

// Dashboard renders the landing page. Admins additionally see backend-wide
// statistics; fetching them is best effort and a failure shows zeros with a
// notification rather than an error page.
func (p *PagesController) Dashboard(c *gin.Context) {
	data := gin.H{"Title": "Dashboard"}

	if p.session.IsAdmin() {
		stats, err := p.fetchStats(c.Request.Context())
		if err != nil {
			p.notifier.Error(c.Request.Context(), "Failed to fetch statistics")
		}
		data["Stats"] = stats
	}

	if p.audit != nil {
		events, err := p.audit.Recent(recentEventsLimit)
		if err == nil {
			data["RecentEvents"] = events
		}
	}

	p.render.HTML(c, http.StatusOK, "dashboard.html", data)
}

// fetchStats loads the user and role counts concurrently. A failure of
// either fetch fails the whole load; the zero stats are still rendered.
func (p *PagesController) fetchStats(ctx context.Context) (dashboardStats, error) {
	token := p.session.Token()

	var (
		wg       sync.WaitGroup
		users    []entities.User
		roles    []entities.Role
		usersErr error
		rolesErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		users, usersErr = p.backend.Users(ctx, token)
	}()
	go func() {
		defer wg.Done()
		roles, rolesErr = p.backend.Roles(ctx, token)
	}()
	wg.Wait()

	if usersErr != nil {
		return dashboardStats{}, usersErr
	}
	if rolesErr != nil {
		return dashboardStats{}, rolesErr
	}
	return dashboardStats{TotalUsers: len(users), TotalRoles: len(roles)}, nil
}

// UsersPage lists all accounts. Reaching it requires the manage_users
// permission, enforced by the route middleware.
func (p *PagesController) UsersPage(c *gin.Context) {
	users, err := p.backend.Users(c.Request.Context(), p.session.Token())
	if err != nil {
		p.notifier.Error(c.Request.Context(), "Failed to fetch users")
	}

	p.render.HTML(c, http.StatusOK, "users.html", gin.H{
		"Title": "Users",
		"Users": users,
	})
}

// RolesPage lists all roles with their permissions.
func (p *PagesController) RolesPage(c *gin.Context) {
	roles, err := p.backend.Roles(c.Request.Context(), p.session.Token())
	if err != nil {
		p.notifier.Error(c.Request.Context(), "Failed to fetch roles")
	}

	rows := make([]roleRow, 0, len(roles))
	for _, role := range roles {
		perms, _ := role.Permissions()
		names := make([]string, 0, len(perms))
		for _, perm := range perms {
			names = append(names, perm.Name)
		}
		rows = append(rows, roleRow{Name: role.Name(), Permissions: names})
	}

	p.render.HTML(c, http.StatusOK, "roles.html", gin.H{
		"Title": "Roles",
		"Roles": rows,
	})
}

type roleRow struct {
	Name        string
	Permissions []string
}

// ProfilePage renders the account settings form.
func (p *PagesController) ProfilePage(c *gin.Context) {
	p.render.HTML(c, http.StatusOK, "profile.html", gin.H{
		"Title": "Profile",
	})
}

// UpdateProfile applies the submitted changes. The password field is only
// sent when filled in.
func (p *PagesController) UpdateProfile(c *gin.Context) {
	update := backend.ProfileUpdate{
		Name:     c.PostForm("name"),
		Email:    c.PostForm("email"),
		Password: c.PostForm("password"),
	}

	// Outcome notifications come from the session manager; the page just
	// re-renders with the result either way.
	_, _ = p.session.UpdateProfile(c.Request.Context(), update)
	c.Redirect(http.StatusSeeOther, "/profile")
}
