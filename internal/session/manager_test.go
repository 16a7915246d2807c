package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/smolnikov/adminpanel/internal/backend"
)

// memoryStore is an in-memory TokenStore for tests.
type memoryStore struct {
	mu    sync.Mutex
	token string

	getErr error
}

func (s *memoryStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return "", s.getErr
	}
	return s.token, nil
}

func (s *memoryStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

func (s *memoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, message)
}

func (n *recordingNotifier) Error(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

func (n *recordingNotifier) lastError() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.errors) == 0 {
		return ""
	}
	return n.errors[len(n.errors)-1]
}

type backendHandlers struct {
	login   http.HandlerFunc
	signup  http.HandlerFunc
	profile http.HandlerFunc
	roles   http.HandlerFunc
}

func newTestBackend(t *testing.T, h backendHandlers) *backend.Client {
	t.Helper()
	mux := http.NewServeMux()
	if h.login != nil {
		mux.HandleFunc("/auth/login", h.login)
	}
	if h.signup != nil {
		mux.HandleFunc("/auth/signup", h.signup)
	}
	if h.profile != nil {
		mux.HandleFunc("/auth/profile", h.profile)
	}
	if h.roles != nil {
		mux.HandleFunc("/roles", h.roles)
	}
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return backend.NewClient(server.URL, 5*time.Second)
}

func serveProfile(user map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"user": user})
	}
}

func serveRoles(roles string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(roles))
	}
}

func TestInitialize_NoStoredToken(t *testing.T) {
	api := newTestBackend(t, backendHandlers{
		profile: func(w http.ResponseWriter, r *http.Request) {
			t.Error("profile should not be fetched without a token")
		},
	})
	m := NewManager(&memoryStore{}, api)

	if m.Status() != StatusUninitialized {
		t.Fatalf("Status() before Initialize = %v", m.Status())
	}

	m.Initialize(context.Background())

	if m.Status() != StatusReady {
		t.Errorf("Status() = %v, want %v", m.Status(), StatusReady)
	}
	if m.User() != nil {
		t.Error("User() should be nil without a stored token")
	}
	if m.Loading() {
		t.Error("Loading() should be false after Initialize")
	}
}

func TestInitialize_StoreReadFailure(t *testing.T) {
	api := newTestBackend(t, backendHandlers{})
	store := &memoryStore{getErr: errors.New("disk gone")}
	m := NewManager(store, api)

	m.Initialize(context.Background())

	if m.Status() != StatusReady {
		t.Errorf("Status() = %v, want %v", m.Status(), StatusReady)
	}
	if m.User() != nil {
		t.Error("User() should be nil when the store is unreadable")
	}
}

func TestInitialize_RejectedTokenCleared(t *testing.T) {
	api := newTestBackend(t, backendHandlers{
		profile: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
	})
	store := &memoryStore{token: "stale"}
	notifier := &recordingNotifier{}
	m := NewManager(store, api, WithNotifier(notifier))

	m.Initialize(context.Background())

	if m.Status() != StatusReady {
		t.Errorf("Status() = %v, want %v", m.Status(), StatusReady)
	}
	if m.User() != nil {
		t.Error("User() should be nil after a rejected token")
	}
	if got, _ := store.Get(); got != "" {
		t.Errorf("stored token = %q, want cleared", got)
	}
	if len(notifier.errors) != 0 || len(notifier.successes) != 0 {
		t.Error("startup verification must not notify the operator")
	}
}

func TestInitialize_RestoresSessionAndEnrichesRole(t *testing.T) {
	api := newTestBackend(t, backendHandlers{
		profile: serveProfile(map[string]any{"id": 7, "name": "Op", "email": "op@example.com", "role": "editor"}),
		roles:   serveRoles(`[{"name":"editor","permissions":["manage_users"]},{"name":"viewer","permissions":[]}]`),
	})
	m := NewManager(&memoryStore{token: "t1"}, api)

	m.Initialize(context.Background())

	user := m.User()
	if user == nil {
		t.Fatal("User() = nil, want restored account")
	}
	if m.Token() != "t1" {
		t.Errorf("Token() = %q, want %q", m.Token(), "t1")
	}
	if !user.Role.Detailed() {
		t.Fatal("role should be enriched from the roles listing")
	}
	if !m.HasPermission("manage_users") {
		t.Error("HasPermission(manage_users) = false after enrichment")
	}
	if m.HasPermission("manage_roles") {
		t.Error("HasPermission(manage_roles) = true, permission not granted")
	}
}

func TestInitialize_EnrichmentIsCaseSensitive(t *testing.T) {
	api := newTestBackend(t, backendHandlers{
		profile: serveProfile(map[string]any{"id": 7, "name": "Op", "email": "op@example.com", "role": "Editor"}),
		roles:   serveRoles(`[{"name":"editor","permissions":["manage_users"]}]`),
	})
	m := NewManager(&memoryStore{token: "t1"}, api)

	m.Initialize(context.Background())

	user := m.User()
	if user == nil {
		t.Fatal("User() = nil")
	}
	if user.Role.Detailed() {
		t.Error("a role record differing only in case must not match")
	}
	if m.HasPermission("manage_users") {
		t.Error("HasPermission() must be false without permission data")
	}
}

func TestInitialize_EnrichmentFailureKeepsNamedRole(t *testing.T) {
	api := newTestBackend(t, backendHandlers{
		profile: serveProfile(map[string]any{"id": 7, "name": "Op", "email": "op@example.com", "role": "Admin"}),
		roles: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		},
	})
	m := NewManager(&memoryStore{token: "t1"}, api)

	m.Initialize(context.Background())

	user := m.User()
	if user == nil {
		t.Fatal("User() = nil, enrichment failure must not break the session")
	}
	if user.Role.Name() != "Admin" {
		t.Errorf("role = %q, want the named role kept", user.Role.Name())
	}
	if !m.IsAdmin() {
		t.Error("IsAdmin() must still work off the role name")
	}
	if !m.HasPermission("anything") {
		t.Error("admins pass every permission check")
	}
}

func TestLogin_StoresTokenAndLoadsUser(t *testing.T) {
	var profileToken string
	api := newTestBackend(t, backendHandlers{
		login: func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"token": "t1"})
		},
		profile: func(w http.ResponseWriter, r *http.Request) {
			profileToken = r.Header.Get("Authorization")
			json.NewEncoder(w).Encode(map[string]any{
				"user": map[string]any{"id": 7, "name": "Op", "email": "op@example.com", "role": "user"},
			})
		},
		roles: serveRoles(`[{"name":"user","permissions":[]}]`),
	})
	store := &memoryStore{}
	notifier := &recordingNotifier{}
	m := NewManager(store, api, WithNotifier(notifier))
	m.Initialize(context.Background())

	user, err := m.Login(context.Background(), "op@example.com", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if user.Email != "op@example.com" {
		t.Errorf("Login() user = %+v", user)
	}
	if got, _ := store.Get(); got != "t1" {
		t.Errorf("stored token = %q, want %q", got, "t1")
	}
	if profileToken != "Bearer t1" {
		t.Errorf("profile fetched with %q, want the fresh token", profileToken)
	}
	if len(notifier.successes) != 1 || notifier.successes[0] != "Login successful" {
		t.Errorf("success notifications = %v", notifier.successes)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	api := newTestBackend(t, backendHandlers{
		login: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "Invalid credentials"})
		},
	})
	store := &memoryStore{}
	notifier := &recordingNotifier{}
	m := NewManager(store, api, WithNotifier(notifier))
	m.Initialize(context.Background())

	_, err := m.Login(context.Background(), "op@example.com", "wrong")
	if err == nil {
		t.Fatal("Login() expected error")
	}
	if got, _ := store.Get(); got != "" {
		t.Errorf("stored token = %q, want empty after failed login", got)
	}
	if m.User() != nil {
		t.Error("User() should stay nil after failed login")
	}
	if notifier.lastError() != "Invalid credentials" {
		t.Errorf("error notification = %q, want backend message", notifier.lastError())
	}
}

func TestLogin_ProfileFailureRollsBack(t *testing.T) {
	api := newTestBackend(t, backendHandlers{
		login: func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"token": "t1"})
		},
		profile: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		},
	})
	store := &memoryStore{}
	m := NewManager(store, api)
	m.Initialize(context.Background())

	_, err := m.Login(context.Background(), "op@example.com", "secret")
	if err == nil {
		t.Fatal("Login() expected error")
	}
	if got, _ := store.Get(); got != "" {
		t.Errorf("stored token = %q, want cleared when the profile fetch fails", got)
	}
}

func TestSignup_LogsIn(t *testing.T) {
	api := newTestBackend(t, backendHandlers{
		signup: func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"user":  map[string]any{"id": 1, "name": "New", "email": "new@example.com", "role": "user"},
				"token": "t2",
			})
		},
		roles: serveRoles(`[]`),
	})
	store := &memoryStore{}
	m := NewManager(store, api)
	m.Initialize(context.Background())

	user, err := m.Signup(context.Background(), backend.Registration{Name: "New", Email: "new@example.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if user.Email != "new@example.com" {
		t.Errorf("Signup() user = %+v", user)
	}
	if got, _ := store.Get(); got != "t2" {
		t.Errorf("stored token = %q, want %q", got, "t2")
	}
}

func TestSignup_ValidationError(t *testing.T) {
	api := newTestBackend(t, backendHandlers{
		signup: func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"errors":[{"msg":"Email taken"}]}`))
		},
	})
	store := &memoryStore{}
	notifier := &recordingNotifier{}
	m := NewManager(store, api, WithNotifier(notifier))
	m.Initialize(context.Background())

	_, err := m.Signup(context.Background(), backend.Registration{Email: "dup@example.com"})
	if err == nil {
		t.Fatal("Signup() expected error")
	}
	if got, _ := store.Get(); got != "" {
		t.Errorf("stored token = %q, want empty after failed signup", got)
	}
	if notifier.lastError() != "Email taken" {
		t.Errorf("error notification = %q, want first validation message", notifier.lastError())
	}
}

func TestLogout_ClearsEverythingAndIsIdempotent(t *testing.T) {
	api := newTestBackend(t, backendHandlers{
		profile: serveProfile(map[string]any{"id": 7, "name": "Op", "email": "op@example.com", "role": "admin"}),
		roles:   serveRoles(`[]`),
	})
	store := &memoryStore{token: "t1"}
	m := NewManager(store, api)
	m.Initialize(context.Background())

	if m.User() == nil {
		t.Fatal("precondition: should be logged in")
	}

	m.Logout(context.Background())

	if m.User() != nil {
		t.Error("User() should be nil after logout")
	}
	if m.Token() != "" {
		t.Error("Token() should be empty after logout")
	}
	if got, _ := store.Get(); got != "" {
		t.Errorf("stored token = %q, want cleared", got)
	}
	if m.Status() != StatusReady {
		t.Errorf("Status() = %v, want ready after logout", m.Status())
	}

	m.Logout(context.Background())
	if m.User() != nil || m.Token() != "" {
		t.Error("second logout should be a no-op")
	}
}

func TestIsAdmin_IgnoresCase(t *testing.T) {
	for _, roleName := range []string{"admin", "Admin", "ADMIN"} {
		api := newTestBackend(t, backendHandlers{
			profile: serveProfile(map[string]any{"id": 7, "name": "Op", "email": "op@example.com", "role": roleName}),
			roles:   serveRoles(`[]`),
		})
		m := NewManager(&memoryStore{token: "t1"}, api)
		m.Initialize(context.Background())

		if !m.IsAdmin() {
			t.Errorf("IsAdmin() = false for role %q", roleName)
		}
		if !m.HasPermission("manage_users") {
			t.Errorf("HasPermission() = false for admin role %q", roleName)
		}
	}
}

func TestHasPermission_LoggedOut(t *testing.T) {
	api := newTestBackend(t, backendHandlers{})
	m := NewManager(&memoryStore{}, api)
	m.Initialize(context.Background())

	if m.IsAdmin() {
		t.Error("IsAdmin() must be false when logged out")
	}
	if m.HasPermission("manage_users") {
		t.Error("HasPermission() must be false when logged out")
	}
}

func TestHasPermission_IgnoresCase(t *testing.T) {
	api := newTestBackend(t, backendHandlers{
		profile: serveProfile(map[string]any{"id": 7, "name": "Op", "email": "op@example.com", "role": "editor"}),
		roles:   serveRoles(`[{"name":"editor","permissions":["Manage_Users"]}]`),
	})
	m := NewManager(&memoryStore{token: "t1"}, api)
	m.Initialize(context.Background())

	if !m.HasPermission("manage_users") {
		t.Error("HasPermission() should match permission names ignoring case")
	}
}

func TestUpdateProfile_RefreshesUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/profile", serveProfile(map[string]any{"id": 7, "name": "Op", "email": "op@example.com", "role": "admin"}))
	mux.HandleFunc("/roles", serveRoles(`[]`))
	mux.HandleFunc("/users/profile", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": 7, "name": "Renamed", "email": "op@example.com", "role": "admin"})
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	notifier := &recordingNotifier{}
	m := NewManager(&memoryStore{token: "t1"}, backend.NewClient(server.URL, 5*time.Second), WithNotifier(notifier))
	m.Initialize(context.Background())

	user, err := m.UpdateProfile(context.Background(), backend.ProfileUpdate{Name: "Renamed"})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if user.Name != "Renamed" {
		t.Errorf("UpdateProfile() name = %q", user.Name)
	}
	if got := m.User(); got == nil || got.Name != "Renamed" {
		t.Errorf("User() = %+v, want refreshed account", got)
	}
	if len(notifier.successes) == 0 || notifier.successes[len(notifier.successes)-1] != "Profile updated successfully" {
		t.Errorf("success notifications = %v", notifier.successes)
	}
}

func TestUpdateProfile_NotLoggedIn(t *testing.T) {
	api := newTestBackend(t, backendHandlers{})
	m := NewManager(&memoryStore{}, api)
	m.Initialize(context.Background())

	if _, err := m.UpdateProfile(context.Background(), backend.ProfileUpdate{Name: "X"}); err == nil {
		t.Error("UpdateProfile() expected error when logged out")
	}
}

func TestStatus_VerifyingWhileProfileInFlight(t *testing.T) {
	release := make(chan struct{})
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		<-release
		json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{"id": 7, "name": "Op", "email": "op@example.com", "role": "admin"},
		})
	})
	mux.HandleFunc("/roles", serveRoles(`[]`))
	server := httptest.NewServer(mux)
	defer server.Close()

	m := NewManager(&memoryStore{token: "t1"}, backend.NewClient(server.URL, 5*time.Second))

	done := make(chan struct{})
	go func() {
		m.Initialize(context.Background())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for m.Status() != StatusVerifying {
		select {
		case <-deadline:
			t.Fatal("manager never entered the verifying state")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	if !m.Loading() {
		t.Error("Loading() should be true while verifying")
	}

	close(release)
	<-done

	if m.Status() != StatusReady {
		t.Errorf("Status() = %v, want ready", m.Status())
	}
	if m.User() == nil {
		t.Error("User() = nil after successful verification")
	}
}
