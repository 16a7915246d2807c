// Package guard owns the browser-facing access control: the scs-backed
// browser session (used as the flash notification carrier), CSRF
// protection, security headers, and the route middleware that keeps
// protected pages behind the auth session.
package guard

import (
	"context"
	"database/sql"
	"encoding/gob"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/smolnikov/adminpanel/internal/notify"
)

const flashKey = "flash"

func init() {
	gob.Register([]notify.Notification{})
}

// SessionManager wraps scs.SessionManager with the console's flash queue.
// The browser session carries no identity; the auth session manager is the
// only authority on who is logged in. The cookie exists so notifications
// survive the POST-redirect-GET cycle.
type SessionManager struct {
	*scs.SessionManager
}

// NewSessionManager creates a configured session manager backed by the
// state database. The sqlDB parameter should be the underlying *sql.DB.
func NewSessionManager(sqlDB *sql.DB, lifetime time.Duration, secure bool) (*SessionManager, error) {
	_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	if err != nil {
		return nil, err
	}

	sm := scs.New()
	sm.Store = sqlite3store.New(sqlDB)
	sm.Lifetime = lifetime
	sm.IdleTimeout = lifetime / 2

	sm.Cookie.Name = "console_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = secure
	sm.Cookie.SameSite = http.SameSiteStrictMode
	sm.Cookie.Path = "/"

	return &SessionManager{SessionManager: sm}, nil
}

// PushFlash appends a notification to the session's flash queue.
func (sm *SessionManager) PushFlash(ctx context.Context, n notify.Notification) {
	queue, _ := sm.Get(ctx, flashKey).([]notify.Notification)
	sm.Put(ctx, flashKey, append(queue, n))
}

// PopFlashes removes and returns all queued notifications.
func (sm *SessionManager) PopFlashes(ctx context.Context) []notify.Notification {
	queue, _ := sm.Pop(ctx, flashKey).([]notify.Notification)
	return queue
}
