package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/alexedwards/scs/v2"
	"golang.org/x/crypto/bcrypt"
)

const sessionKey = "authenticated"

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a password with a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// apiKeyBytes keeps prefix plus hex within bcrypt's 72-byte input limit
const apiKeyBytes = 24

// GenerateAPIKey generates a random API key
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, apiKeyBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return "timeslice_" + hex.EncodeToString(bytes), nil
}

// Middleware guards the dashboard. With no password hash configured every
// request is let through.
type Middleware struct {
	passwordHash string
	apiKeyHash   string
	sessionMgr   *scs.SessionManager
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(passwordHash, apiKeyHash string, sessionMgr *scs.SessionManager) *Middleware {
	return &Middleware{
		passwordHash: passwordHash,
		apiKeyHash:   apiKeyHash,
		sessionMgr:   sessionMgr,
	}
}

// Enabled reports whether a password is required
func (m *Middleware) Enabled() bool {
	return m.passwordHash != ""
}

// Authenticated reports whether the request carries a logged-in session
func (m *Middleware) Authenticated(r *http.Request) bool {
	return !m.Enabled() || m.sessionMgr.GetBool(r.Context(), sessionKey)
}

// Login checks password and marks the session as logged in
func (m *Middleware) Login(r *http.Request, password string) (bool, error) {
	if !m.Enabled() {
		return true, nil
	}
	if !CheckPassword(password, m.passwordHash) {
		return false, nil
	}
	if err := m.sessionMgr.RenewToken(r.Context()); err != nil {
		return false, err
	}
	m.sessionMgr.Put(r.Context(), sessionKey, true)
	return true, nil
}

// Logout destroys the session
func (m *Middleware) Logout(r *http.Request) error {
	return m.sessionMgr.Destroy(r.Context())
}

// RequireAuth middleware requires a valid session
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !m.Authenticated(r) {
			if strings.HasPrefix(r.URL.Path, "/api/") || r.URL.Path == "/data.json" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPIKey middleware accepts either a logged-in session or a valid
// API key, for scripted rebuilds
func (m *Middleware) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Enabled() && m.sessionMgr.GetBool(r.Context(), sessionKey) {
			next.ServeHTTP(w, r)
			return
		}
		if !m.Enabled() && m.apiKeyHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			// Try Authorization: Bearer token
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if apiKey == "" {
			http.Error(w, "API key required", http.StatusUnauthorized)
			return
		}
		if m.apiKeyHash == "" || !CheckPassword(apiKey, m.apiKeyHash) {
			http.Error(w, "Invalid API key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
