// Package session configures the server-side session store that backs the
// verified actor of every API request.
package session

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

// DefaultLifetime is how long a session stays valid after login.
const DefaultLifetime = 24 * time.Hour

// DefaultIdleTimeout expires sessions that see no requests.
const DefaultIdleTimeout = 2 * time.Hour

// New creates a session manager persisted in the sessions table of db.
// In production the cookie is Secure and uses the __Host- prefix, which
// binds it to the exact origin.
func New(db *sql.DB, isDev bool) *scs.SessionManager {
	sm := scs.New()
	sm.Store = sqlite3store.New(db)

	sm.Lifetime = DefaultLifetime
	sm.IdleTimeout = DefaultIdleTimeout
	sm.Cookie.HttpOnly = true
	sm.Cookie.Path = "/"
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = !isDev
	if !isDev {
		sm.Cookie.Name = "__Host-session"
	}

	return sm
}
