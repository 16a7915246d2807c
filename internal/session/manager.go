// Package session implements the authentication session core: one
// process-wide manager that owns the persisted token, the verified account,
// and the role data backing every authorization decision.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/smolnikov/adminpanel/internal/backend"
	"github.com/smolnikov/adminpanel/internal/entities"
	"github.com/smolnikov/adminpanel/internal/notify"
)

// AdminRoleName is the role that bypasses all permission checks.
const AdminRoleName = "admin"

// Status tracks the manager through startup verification.
type Status int

const (
	// StatusUninitialized is the state before Initialize has started.
	StatusUninitialized Status = iota
	// StatusVerifying is the state while the stored token is being checked.
	StatusVerifying
	// StatusReady is the settled state, authenticated or not.
	StatusReady
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusVerifying:
		return "verifying"
	case StatusReady:
		return "ready"
	default:
		return "unknown"
	}
}

// TokenStore persists the backend session token between restarts.
type TokenStore interface {
	Get() (string, error)
	Set(token string) error
	Clear() error
}

// Backend is the slice of the API client the manager needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (string, error)
	Signup(ctx context.Context, reg backend.Registration) (*backend.SignupResponse, error)
	Profile(ctx context.Context, token string) (*entities.User, error)
	Roles(ctx context.Context, token string) ([]entities.Role, error)
	UpdateProfile(ctx context.Context, token string, update backend.ProfileUpdate) (*entities.User, error)
}

// Auditor records auth lifecycle events. Recording must never fail the
// operation being recorded.
type Auditor interface {
	Record(eventType entities.AuthEventType, email, description string, cause error)
}

// Metrics receives auth outcome counts.
type Metrics interface {
	RecordLoginAttempt(success bool)
	RecordVerification(success bool)
	RecordSignup(success bool)
}

// Manager is the single authority on who is logged in. All reads and writes
// of the session state go through it; it is safe for concurrent use.
type Manager struct {
	store   TokenStore
	backend Backend

	notifier notify.Notifier
	auditor  Auditor
	metrics  Metrics
	logger   *slog.Logger

	mu     sync.RWMutex
	status Status
	token  string
	user   *entities.User
}

// Option configures optional manager collaborators.
type Option func(*Manager)

func WithNotifier(n notify.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

func WithAuditor(a Auditor) Option {
	return func(m *Manager) { m.auditor = a }
}

func WithMetrics(mc Metrics) Option {
	return func(m *Manager) { m.metrics = mc }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a manager in the uninitialized state. Call Initialize
// once before serving traffic.
func NewManager(store TokenStore, api Backend, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		backend:  api,
		notifier: notify.Discard{},
		logger:   slog.Default(),
		status:   StatusUninitialized,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize restores the session from the persisted token. It never fails:
// any problem (no token, unreadable store, rejected token, unreachable
// backend) settles the manager as ready and logged out, with the stored
// token cleared. Startup problems are logged, never surfaced to the
// operator.
func (m *Manager) Initialize(ctx context.Context) {
	m.mu.Lock()
	m.status = StatusVerifying
	m.mu.Unlock()

	m.logger.Debug("verifying stored session")

	token, err := m.store.Get()
	if err != nil {
		m.logger.Debug("failed to read stored token", "error", err)
		m.setReady(nil, "")
		return
	}
	if token == "" {
		m.logger.Debug("no stored token, starting logged out")
		m.setReady(nil, "")
		return
	}

	user, err := m.backend.Profile(ctx, token)
	if err != nil {
		m.logger.Debug("stored token rejected, clearing it", "error", err)
		m.recordMetricVerification(false)
		m.audit(entities.AuthEventVerify, "", "stored token verification failed", err)
		if clearErr := m.store.Clear(); clearErr != nil {
			m.logger.Debug("failed to clear stored token", "error", clearErr)
		}
		m.setReady(nil, "")
		return
	}

	m.recordMetricVerification(true)
	m.audit(entities.AuthEventVerify, user.Email, "stored token verified", nil)
	m.enrichRole(ctx, user, token)
	m.setReady(user, token)
	m.logger.Debug("session restored", "email", user.Email, "role", user.Role.Name())
}

// Refresh re-verifies the current token against the backend without leaving
// the ready state. A rejected token logs the session out; transient backend
// failures keep it untouched.
func (m *Manager) Refresh(ctx context.Context) {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()
	if token == "" {
		return
	}

	user, err := m.backend.Profile(ctx, token)
	if err != nil {
		var authErr *backend.AuthError
		if errors.As(err, &authErr) && authErr.StatusCode == 401 {
			m.logger.Debug("token no longer valid, logging out", "error", err)
			m.recordMetricVerification(false)
			m.audit(entities.AuthEventVerify, "", "token re-verification rejected", err)
			m.Logout(ctx)
			return
		}
		m.logger.Debug("token re-verification inconclusive", "error", err)
		return
	}

	m.recordMetricVerification(true)
	m.enrichRole(ctx, user, token)
	m.setReady(user, token)
}

// Login authenticates with the backend, persists the new token, and loads
// the account behind it. On any failure the manager stays logged out.
func (m *Manager) Login(ctx context.Context, email, password string) (*entities.User, error) {
	token, err := m.backend.Login(ctx, email, password)
	if err != nil {
		return nil, m.loginFailed(ctx, email, err)
	}

	if err := m.store.Set(token); err != nil {
		return nil, m.loginFailed(ctx, email, err)
	}

	user, err := m.backend.Profile(ctx, token)
	if err != nil {
		// The token worked for login but the profile fetch failed. Do not
		// keep a half-established session.
		if clearErr := m.store.Clear(); clearErr != nil {
			m.logger.Debug("failed to clear token after profile failure", "error", clearErr)
		}
		return nil, m.loginFailed(ctx, email, err)
	}

	m.enrichRole(ctx, user, token)
	m.setReady(user, token)

	m.recordMetricLogin(true)
	m.audit(entities.AuthEventLogin, email, "login succeeded", nil)
	m.notifier.Success(ctx, "Login successful")
	return user, nil
}

func (m *Manager) loginFailed(ctx context.Context, email string, err error) error {
	m.recordMetricLogin(false)
	m.audit(entities.AuthEventLogin, email, "login failed", err)
	m.notifier.Error(ctx, userMessage(err, "Login failed"))
	return err
}

// Signup registers a new account. The backend returns a token alongside the
// new account, so a successful signup leaves the operator logged in.
func (m *Manager) Signup(ctx context.Context, reg backend.Registration) (*entities.User, error) {
	resp, err := m.backend.Signup(ctx, reg)
	if err != nil {
		m.recordMetricSignup(false)
		m.audit(entities.AuthEventSignup, reg.Email, "signup failed", err)
		m.notifier.Error(ctx, userMessage(err, "Signup failed"))
		return nil, err
	}

	if err := m.store.Set(resp.Token); err != nil {
		m.recordMetricSignup(false)
		m.audit(entities.AuthEventSignup, reg.Email, "signup failed", err)
		m.notifier.Error(ctx, "Signup failed")
		return nil, err
	}

	user := resp.User
	m.enrichRole(ctx, user, resp.Token)
	m.setReady(user, resp.Token)

	m.recordMetricSignup(true)
	m.audit(entities.AuthEventSignup, reg.Email, "signup succeeded", nil)
	m.notifier.Success(ctx, "Account created")
	return user, nil
}

// Logout clears the session and the persisted token. Logging out while
// logged out is a no-op.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	wasLoggedIn := m.user != nil
	email := ""
	if m.user != nil {
		email = m.user.Email
	}
	m.user = nil
	m.token = ""
	m.status = StatusReady
	m.mu.Unlock()

	if err := m.store.Clear(); err != nil {
		m.logger.Debug("failed to clear stored token on logout", "error", err)
	}
	if wasLoggedIn {
		m.audit(entities.AuthEventLogout, email, "logged out", nil)
	}
}

// UpdateProfile applies a partial update to the logged-in account and
// refreshes the in-memory user from the backend's response.
func (m *Manager) UpdateProfile(ctx context.Context, update backend.ProfileUpdate) (*entities.User, error) {
	m.mu.RLock()
	token := m.token
	email := ""
	if m.user != nil {
		email = m.user.Email
	}
	m.mu.RUnlock()

	if token == "" {
		err := errors.New("not logged in")
		m.notifier.Error(ctx, "Failed to update profile")
		return nil, err
	}

	user, err := m.backend.UpdateProfile(ctx, token, update)
	if err != nil {
		m.audit(entities.AuthEventProfileUpdate, email, "profile update failed", err)
		m.notifier.Error(ctx, userMessage(err, "Failed to update profile"))
		return nil, err
	}

	m.enrichRole(ctx, user, token)
	m.setReady(user, token)

	m.audit(entities.AuthEventProfileUpdate, user.Email, "profile updated", nil)
	m.notifier.Success(ctx, "Profile updated successfully")
	return user, nil
}

// IsAdmin reports whether the logged-in account holds the admin role. The
// role name comparison ignores case.
func (m *Manager) IsAdmin() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isAdmin(m.user)
}

// HasPermission reports whether the logged-in account may perform the named
// action. Admins pass every check. An account whose role is known only by
// name has no permission data and fails all non-admin checks.
func (m *Manager) HasPermission(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.user == nil {
		return false
	}
	if isAdmin(m.user) {
		return true
	}

	perms, known := m.user.Role.Permissions()
	if !known {
		return false
	}
	for _, p := range perms {
		if p.Is(name) {
			return true
		}
	}
	return false
}

// User returns the logged-in account, or nil.
func (m *Manager) User() *entities.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.user == nil {
		return nil
	}
	u := *m.user
	return &u
}

// Token returns the current session token, empty when logged out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Loading reports whether startup verification is still in flight.
func (m *Manager) Loading() bool {
	return m.Status() != StatusReady
}

// enrichRole upgrades a role known only by name to the full record from the
// roles listing, matching the name exactly. Enrichment is advisory: any
// failure, including no matching record, keeps the named role as is.
func (m *Manager) enrichRole(ctx context.Context, user *entities.User, token string) {
	if user == nil || user.Role.Detailed() || user.Role.IsZero() {
		return
	}

	roles, err := m.backend.Roles(ctx, token)
	if err != nil {
		m.logger.Debug("role enrichment failed", "role", user.Role.Name(), "error", err)
		return
	}

	for _, role := range roles {
		if role.Name() == user.Role.Name() {
			user.Role = role
			return
		}
	}
	m.logger.Debug("no role record matched", "role", user.Role.Name())
}

func (m *Manager) setReady(user *entities.User, token string) {
	m.mu.Lock()
	m.user = user
	m.token = token
	m.status = StatusReady
	m.mu.Unlock()
}

func (m *Manager) audit(eventType entities.AuthEventType, email, description string, cause error) {
	if m.auditor != nil {
		m.auditor.Record(eventType, email, description, cause)
	}
}

func (m *Manager) recordMetricLogin(success bool) {
	if m.metrics != nil {
		m.metrics.RecordLoginAttempt(success)
	}
}

func (m *Manager) recordMetricVerification(success bool) {
	if m.metrics != nil {
		m.metrics.RecordVerification(success)
	}
}

func (m *Manager) recordMetricSignup(success bool) {
	if m.metrics != nil {
		m.metrics.RecordSignup(success)
	}
}

func isAdmin(user *entities.User) bool {
	if user == nil {
		return false
	}
	return strings.EqualFold(user.Role.Name(), AdminRoleName)
}

// userMessage extracts the operator-facing message from an error, falling
// back when the error carries none (transport failures, encoding problems).
func userMessage(err error, fallback string) string {
	var authErr *backend.AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	return fallback
}
