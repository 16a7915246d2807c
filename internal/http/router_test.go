package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/smolnikov/adminpanel/internal/backend"
	"github.com/smolnikov/adminpanel/internal/guard"
	"github.com/smolnikov/adminpanel/internal/session"
)

type stubStore struct {
	token string
}

func (s *stubStore) Get() (string, error) { return s.token, nil }
func (s *stubStore) Set(t string) error   { s.token = t; return nil }
func (s *stubStore) Clear() error         { s.token = ""; return nil }

var testTemplates = map[string]string{
	"login.html":     `login-page {{.Error}}`,
	"signup.html":    `signup-page`,
	"dashboard.html": `dashboard{{with .Stats}} users:{{.TotalUsers}} roles:{{.TotalRoles}}{{end}}`,
	"users.html":     `users-page count:{{len .Users}}`,
	"roles.html":     `roles-page count:{{len .Roles}}`,
	"profile.html":   `profile-page {{with .User}}{{.Email}}{{end}}`,
	"verifying.html": `checking session`,
}

func writeTemplates(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range testTemplates {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

type routerOptions struct {
	storedToken string
	limiter     *rate.Limiter
	registry    *prometheus.Registry
	skipInit    bool
}

func setupRouter(t *testing.T, backendHandler http.Handler, opts routerOptions) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	server := httptest.NewServer(backendHandler)
	t.Cleanup(server.Close)

	api := backend.NewClient(server.URL, 5*time.Second)
	manager := session.NewManager(&stubStore{token: opts.storedToken}, api)
	if !opts.skipInit {
		manager.Initialize(context.Background())
	}

	sessions := &guard.SessionManager{SessionManager: scs.New()}

	return NewRouter(RouterConfig{
		Session:         manager,
		Backend:         api,
		Sessions:        sessions,
		Guard:           guard.New(manager),
		Notifier:        guard.FlashNotifier{Sessions: sessions},
		TemplatesPath:   writeTemplates(t),
		StaticPath:      t.TempDir(),
		SecureCookies:   false,
		Version:         "test",
		LoginLimiter:    opts.limiter,
		MetricsRegistry: opts.registry,
	})
}

func adminBackend() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds map[string]string
		json.NewDecoder(r.Body).Decode(&creds)
		if creds["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"token": "t1"})
	})
	mux.HandleFunc("/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{"id": 1, "name": "Op", "email": "op@example.com", "role": "admin"},
		})
	})
	mux.HandleFunc("/roles", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"admin","permissions":["manage_users","manage_roles"]}]`))
	})
	mux.HandleFunc("/users", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1,"name":"Op","email":"op@example.com","role":"admin"}]`))
	})
	return mux
}

func viewerBackend() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{"id": 2, "name": "Viewer", "email": "viewer@example.com", "role": "viewer"},
		})
	})
	mux.HandleFunc("/roles", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"viewer","permissions":[]}]`))
	})
	return mux
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func postForm(router *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestPing(t *testing.T) {
	router := setupRouter(t, http.NotFoundHandler(), routerOptions{})

	w := get(router, "/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "pong")
}

func TestHealthz_NoDatabaseConfigured(t *testing.T) {
	router := setupRouter(t, http.NotFoundHandler(), routerOptions{})

	w := get(router, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "test", health.Version)
}

func TestRoot_RedirectsToLogin(t *testing.T) {
	router := setupRouter(t, http.NotFoundHandler(), routerOptions{})

	w := get(router, "/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestLoginPage_LoggedOut(t *testing.T) {
	router := setupRouter(t, http.NotFoundHandler(), routerOptions{})

	w := get(router, "/login")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "login-page")
}

func TestLoginPage_AlreadyLoggedIn(t *testing.T) {
	router := setupRouter(t, adminBackend(), routerOptions{storedToken: "t1"})

	w := get(router, "/login")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestDashboard_RedirectsLoggedOut(t *testing.T) {
	router := setupRouter(t, http.NotFoundHandler(), routerOptions{})

	w := get(router, "/dashboard")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/login?next=")
}

func TestDashboard_ShowsWaitingPageWhileUninitialized(t *testing.T) {
	router := setupRouter(t, http.NotFoundHandler(), routerOptions{skipInit: true})

	w := get(router, "/dashboard")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "checking session")
}

func TestDashboard_AdminSeesStats(t *testing.T) {
	router := setupRouter(t, adminBackend(), routerOptions{storedToken: "t1"})

	w := get(router, "/dashboard")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "users:1")
	assert.Contains(t, w.Body.String(), "roles:1")
}

func TestLogin_SuccessRedirects(t *testing.T) {
	router := setupRouter(t, adminBackend(), routerOptions{})

	w := postForm(router, "/login", url.Values{
		"email":    {"op@example.com"},
		"password": {"secret"},
	})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestLogin_HonorsNextPath(t *testing.T) {
	router := setupRouter(t, adminBackend(), routerOptions{})

	w := postForm(router, "/login", url.Values{
		"email":    {"op@example.com"},
		"password": {"secret"},
		"next":     {"/users"},
	})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/users", w.Header().Get("Location"))
}

func TestLogin_RejectsExternalRedirect(t *testing.T) {
	router := setupRouter(t, adminBackend(), routerOptions{})

	w := postForm(router, "/login", url.Values{
		"email":    {"op@example.com"},
		"password": {"secret"},
		"next":     {"https://evil.example"},
	})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestLogin_FailureRendersForm(t *testing.T) {
	router := setupRouter(t, adminBackend(), routerOptions{})

	w := postForm(router, "/login", url.Values{
		"email":    {"op@example.com"},
		"password": {"wrong"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "login-page")
}

func TestLogin_RateLimited(t *testing.T) {
	router := setupRouter(t, adminBackend(), routerOptions{
		limiter: rate.NewLimiter(rate.Limit(0), 0),
	})

	w := postForm(router, "/login", url.Values{
		"email":    {"op@example.com"},
		"password": {"secret"},
	})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestLogout_RedirectsToLogin(t *testing.T) {
	router := setupRouter(t, adminBackend(), routerOptions{storedToken: "t1"})

	w := postForm(router, "/logout", url.Values{})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = get(router, "/dashboard")
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestUsersPage_AdminAllowed(t *testing.T) {
	router := setupRouter(t, adminBackend(), routerOptions{storedToken: "t1"})

	w := get(router, "/users")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "users-page count:1")
}

func TestUsersPage_ViewerRedirected(t *testing.T) {
	router := setupRouter(t, viewerBackend(), routerOptions{storedToken: "t1"})

	w := get(router, "/users")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
}

func TestProfilePage_ShowsAccount(t *testing.T) {
	router := setupRouter(t, adminBackend(), routerOptions{storedToken: "t1"})

	w := get(router, "/profile")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "op@example.com")
}

func TestMetrics_Exposed(t *testing.T) {
	router := setupRouter(t, http.NotFoundHandler(), routerOptions{
		registry: prometheus.NewRegistry(),
	})

	w := get(router, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSecurityHeaders_Present(t *testing.T) {
	router := setupRouter(t, http.NotFoundHandler(), routerOptions{})

	w := get(router, "/ping")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
