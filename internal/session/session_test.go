package session

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// roundTrip copies cookies set on rec into a new request.
func roundTrip(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func cookieByName(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestManager_IssueAndRead(t *testing.T) {
	t.Parallel()

	m := NewManager("secret", 0, false)
	rec := httptest.NewRecorder()

	if err := m.Issue(rec, "u1"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	userID, err := m.Read(roundTrip(rec))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if userID != "u1" {
		t.Errorf("expected u1, got %s", userID)
	}
}

func TestManager_CookieAttributes(t *testing.T) {
	t.Parallel()

	m := NewManager("secret", time.Hour, true)
	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return fixed }

	rec := httptest.NewRecorder()
	if err := m.Issue(rec, "u1"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	for _, name := range []string{CookieName, SignatureCookieName} {
		c := cookieByName(rec, name)
		if c == nil {
			t.Fatalf("cookie %s not set", name)
		}
		if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
			t.Errorf("cookie %s has wrong attributes: %+v", name, c)
		}
		if !c.Expires.Equal(fixed.Add(time.Hour)) {
			t.Errorf("cookie %s expires %v, want %v", name, c.Expires, fixed.Add(time.Hour))
		}
	}
}

func TestManager_DefaultTTL(t *testing.T) {
	t.Parallel()

	if got := NewManager("s", 0, false).TTL(); got != 24*time.Hour {
		t.Errorf("expected 24h default, got %v", got)
	}
}

func TestManager_Tampered(t *testing.T) {
	t.Parallel()

	m := NewManager("secret", 0, false)
	rec := httptest.NewRecorder()
	if err := m.Issue(rec, "u1"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	forged := httptest.NewRecorder()
	if err := m.Issue(forged, "u2"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	// payload of u2 with signature of u1
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookieByName(forged, CookieName))
	req.AddCookie(cookieByName(rec, SignatureCookieName))

	if _, err := m.Read(req); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestManager_WrongSecret(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	if err := NewManager("one", 0, false).Issue(rec, "u1"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := NewManager("two", 0, false).Read(roundTrip(rec)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestManager_Expired(t *testing.T) {
	t.Parallel()

	m := NewManager("secret", time.Hour, false)
	start := time.Now()
	m.now = func() time.Time { return start }

	rec := httptest.NewRecorder()
	if err := m.Issue(rec, "u1"); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	m.now = func() time.Time { return start.Add(2 * time.Hour) }
	if _, err := m.Read(roundTrip(rec)); !errors.Is(err, ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
}

func TestManager_Missing(t *testing.T) {
	t.Parallel()

	m := NewManager("secret", 0, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	if _, err := m.Read(req); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}

	req.AddCookie(&http.Cookie{Name: CookieName, Value: "abc"})
	if _, err := m.Read(req); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("expected ErrInvalidSignature without signature cookie, got %v", err)
	}
}

func TestManager_Clear(t *testing.T) {
	t.Parallel()

	m := NewManager("secret", 0, false)
	rec := httptest.NewRecorder()
	m.Clear(rec)

	for _, name := range []string{CookieName, SignatureCookieName} {
		c := cookieByName(rec, name)
		if c == nil {
			t.Fatalf("cookie %s not cleared", name)
		}
		if c.MaxAge >= 0 || c.Value != "" {
			t.Errorf("cookie %s should be expired: %+v", name, c)
		}
	}
}

func TestManager_State(t *testing.T) {
	t.Parallel()

	m := NewManager("secret", 0, false)
	rec := httptest.NewRecorder()

	state, err := m.IssueState(rec)
	if err != nil {
		t.Fatalf("IssueState failed: %v", err)
	}

	if !m.ConsumeState(httptest.NewRecorder(), roundTrip(rec), state) {
		t.Error("expected matching state")
	}
	if m.ConsumeState(httptest.NewRecorder(), roundTrip(rec), "other") {
		t.Error("expected mismatched state to fail")
	}
	if m.ConsumeState(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil), state) {
		t.Error("expected missing state cookie to fail")
	}
}
