// Package session implements signed cookie sessions that carry only a user ID.
package session

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	// CookieName holds the encoded session payload.
	CookieName = "session"
	// SignatureCookieName holds the HMAC signature of the payload cookie.
	SignatureCookieName = "session.sig"
	// StateCookieName holds the OAuth state between redirect and callback.
	StateCookieName = "oauth_state"

	// DefaultTTL is the session lifetime when none is configured.
	DefaultTTL = 24 * time.Hour

	stateTTL = 10 * time.Minute
)

var (
	// ErrNoSession is returned when the request carries no session cookies.
	ErrNoSession = errors.New("no session")
	// ErrInvalidSignature is returned when the signature does not match.
	ErrInvalidSignature = errors.New("invalid session signature")
	// ErrExpired is returned when the session payload is past its expiry.
	ErrExpired = errors.New("session expired")
	// ErrMalformed is returned when the payload cannot be decoded.
	ErrMalformed = errors.New("malformed session")
)

// payload is the session cookie content.
type payload struct {
	UserID    string `json:"uid"`
	ExpiresAt int64  `json:"exp"`
}

// Manager issues, reads and clears session cookies.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewManager creates a Manager. secure sets the Secure flag on every cookie.
func NewManager(secret string, ttl time.Duration, secure bool) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		secure: secure,
		now:    time.Now,
	}
}

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue writes a fresh session for userID.
func (m *Manager) Issue(w http.ResponseWriter, userID string) error {
	expires := m.now().Add(m.ttl)

	raw, err := json.Marshal(payload{UserID: userID, ExpiresAt: expires.Unix()})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	value := base64.RawURLEncoding.EncodeToString(raw)

	http.SetCookie(w, m.cookie(CookieName, value, expires))
	http.SetCookie(w, m.cookie(SignatureCookieName, m.sign(value), expires))
	return nil
}

// Read returns the user ID carried by the request's session.
func (m *Manager) Read(r *http.Request) (string, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", ErrNoSession
	}
	sig, err := r.Cookie(SignatureCookieName)
	if err != nil {
		return "", ErrInvalidSignature
	}

	if !hmac.Equal([]byte(m.sign(c.Value)), []byte(sig.Value)) {
		return "", ErrInvalidSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return "", ErrMalformed
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil || p.UserID == "" {
		return "", ErrMalformed
	}

	if m.now().Unix() >= p.ExpiresAt {
		return "", ErrExpired
	}

	return p.UserID, nil
}

// Clear expires both session cookies.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.expired(CookieName))
	http.SetCookie(w, m.expired(SignatureCookieName))
}

// IssueState stores a random OAuth state in a short-lived cookie and returns it.
func (m *Manager) IssueState(w http.ResponseWriter) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	state := base64.RawURLEncoding.EncodeToString(b)

	http.SetCookie(w, m.cookie(StateCookieName, state, m.now().Add(stateTTL)))
	return state, nil
}

// ConsumeState compares got with the state cookie and clears the cookie.
func (m *Manager) ConsumeState(w http.ResponseWriter, r *http.Request, got string) bool {
	c, err := r.Cookie(StateCookieName)
	http.SetCookie(w, m.expired(StateCookieName))
	if err != nil || c.Value == "" || got == "" {
		return false
	}
	return hmac.Equal([]byte(c.Value), []byte(got))
}

// sign returns the base64url HMAC-SHA256 of "session=<value>".
func (m *Manager) sign(value string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(CookieName + "=" + value))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (m *Manager) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (m *Manager) expired(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
