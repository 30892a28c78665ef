package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notely/notely/internal/auth"
	"github.com/notely/notely/internal/cache"
	"github.com/notely/notely/internal/handler"
	"github.com/notely/notely/internal/handler/dto"
	"github.com/notely/notely/internal/metrics"
	"github.com/notely/notely/internal/model"
	"github.com/notely/notely/internal/oauth"
	"github.com/notely/notely/internal/repository"
	"github.com/notely/notely/internal/repository/memory"
	"github.com/notely/notely/internal/service"
	"github.com/notely/notely/internal/session"
	"github.com/notely/notely/internal/view"
)

const (
	testSessionSecret = "session-secret"
	testTokenSecret   = "token-secret"
)

type fakeGitHub struct {
	email string
	err   error
}

func (f *fakeGitHub) AuthCodeURL(state string) string {
	return "https://github.test/login/oauth/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeGitHub) Exchange(_ context.Context, code string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.email, nil
}

type denyLimiter struct{}

func (denyLimiter) CheckIPRateLimit(context.Context, string, string, int, int) (*cache.RateLimitResult, error) {
	return &cache.RateLimitResult{Allowed: false, RetryAfter: 30 * time.Second}, nil
}

type app struct {
	router   http.Handler
	store    *memory.Store
	recorder *metrics.InMemoryRecorder
}

func newApp(t *testing.T, opts ...func(*handler.RouterConfig)) *app {
	t.Helper()
	return newAppWithStore(t, memory.New(), opts...)
}

func newAppWithStore(t *testing.T, store *memory.Store, opts ...func(*handler.RouterConfig)) *app {
	t.Helper()

	v, err := view.New()
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := metrics.NewInMemory()

	cfg := handler.RouterConfig{
		Logger:        logger,
		View:          v,
		Recorder:      recorder,
		Metrics:       recorder,
		Users:         service.NewUserService(store, recorder),
		Notes:         service.NewNoteService(store, nil, 0, recorder),
		Sessions:      session.NewManager(testSessionSecret, 0, false),
		Tokens:        auth.NewTokenIssuer(testTokenSecret, 0),
		DB:            store,
		IsDevelopment: true,
		MaxBodySize:   1 << 20,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &app{router: handler.NewRouter(cfg), store: store, recorder: recorder}
}

// browser replays cookies between requests the way a user agent would.
type browser struct {
	t       *testing.T
	app     *app
	cookies map[string]*http.Cookie
}

func (a *app) browser(t *testing.T) *browser {
	return &browser{t: t, app: a, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	b.app.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) postForm(path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) send(method, path string, values url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) register(email, password string) {
	b.t.Helper()
	rec := b.postForm("/register", url.Values{"email": {email}, "password": {password}})
	require.Equal(b.t, http.StatusSeeOther, rec.Code, rec.Body.String())
	require.Equal(b.t, "/", rec.Header().Get("Location"))
}

func (b *browser) createNote(title, body string) *model.Note {
	b.t.Helper()
	rec := b.postForm("/notes", url.Values{"title": {title}, "body": {body}})
	require.Equal(b.t, http.StatusSeeOther, rec.Code, rec.Body.String())

	user := b.currentUser()
	notes, err := b.app.store.ListNotesByOwner(context.Background(), user.ID)
	require.NoError(b.t, err)
	require.NotEmpty(b.t, notes)
	return notes[0]
}

func (b *browser) currentUser() *model.User {
	b.t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	id, err := session.NewManager(testSessionSecret, 0, false).Read(req)
	require.NoError(b.t, err)
	user, err := b.app.store.GetUserByID(context.Background(), id)
	require.NoError(b.t, err)
	return user
}

func TestScenario_RegisterLoginCreateList(t *testing.T) {
	a := newApp(t)

	// Register, then log out and in again with the same credentials
	b := a.browser(t)
	b.register("alice@example.com", "secret123")

	rec := b.get("/logout")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.NotContains(t, b.cookies, session.CookieName)

	rec = b.postForm("/login", url.Values{"email": {"alice@example.com"}, "password": {"secret123"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Contains(t, b.cookies, session.CookieName)

	rec = b.postForm("/notes", url.Values{"title": {"Groceries"}, "body": {"milk, eggs"}})
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	rec = b.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, strings.Count(rec.Body.String(), "Groceries"))
	assert.Contains(t, rec.Body.String(), "milk, eggs")

	alice := b.currentUser()
	notes, err := a.store.ListNotesByOwner(context.Background(), alice.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Groceries", notes[0].Title)
	assert.Equal(t, alice.ID, notes[0].OwnerID)
	assert.NotEqual(t, "secret123", alice.PasswordHash)
}

func TestProtectedPages_RedirectWithoutSession(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)

	for _, path := range []string{"/", "/notes/new", "/notes/abc", "/notes/abc/edit", "/logout"} {
		rec := b.get(path)
		assert.Equal(t, http.StatusFound, rec.Code, path)
		assert.Equal(t, "/login", rec.Header().Get("Location"), path)
	}
}

func TestStaleSession_RedirectsAndClears(t *testing.T) {
	first := newApp(t)
	b := first.browser(t)
	b.register("alice@example.com", "secret123")
	b.createNote("Secret plans", "do not leak")

	// Same signing secret, but the user no longer exists
	second := newApp(t)
	b.app = second

	rec := b.get("/")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.NotContains(t, rec.Body.String(), "Secret plans")
	assert.NotContains(t, b.cookies, session.CookieName, "stale session must be cleared")
}

func TestGuestPages_RedirectWhenLoggedIn(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.register("alice@example.com", "secret123")

	for _, path := range []string{"/login", "/register"} {
		rec := b.get(path)
		assert.Equal(t, http.StatusFound, rec.Code, path)
		assert.Equal(t, "/", rec.Header().Get("Location"), path)
	}
}

func TestRegister_ValidationErrors(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.register("alice@example.com", "secret123")
	b.get("/logout")

	tests := []struct {
		name   string
		email  string
		pass   string
		expect string
	}{
		{"missing email", "", "secret123", "Email is required"},
		{"invalid email", "not-an-email", "secret123", "Email invalid email"},
		{"taken email", "ALICE@example.com", "secret123", "Email is already taken"},
		{"missing password", "bob@example.com", "", "Password is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.browser(t).postForm("/register", url.Values{"email": {tt.email}, "password": {tt.pass}})
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expect)
			assert.NotContains(t, rec.Body.String(), `value="secret123"`, "password must not be echoed")
		})
	}
}

func TestLogin_GenericFailureMessage(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.register("alice@example.com", "secret123")
	b.get("/logout")

	for _, creds := range []url.Values{
		{"email": {"alice@example.com"}, "password": {"wrong"}},
		{"email": {"nobody@example.com"}, "password": {"secret123"}},
	} {
		rec := a.browser(t).postForm("/login", creds)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), handler.MsgInvalidCredentials)
	}
	assert.Equal(t, uint64(2), a.recorder.Snapshot().LoginsFailed)
}

func TestCreateNote_EmptyTitleReRenders(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.register("alice@example.com", "secret123")

	rec := b.postForm("/notes", url.Values{"title": {"   "}, "body": {"kept body"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Title is required")
	assert.Contains(t, rec.Body.String(), "kept body")
}

func TestNotePages_ShowEditUpdateDelete(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.register("alice@example.com", "secret123")
	note := b.createNote("Groceries", "milk, eggs")

	rec := b.get("/notes/" + note.ID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "milk, eggs")

	rec = b.get("/notes/" + note.ID + "/edit")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="Groceries"`)

	// Real verb: 204 with no body
	rec = b.send(http.MethodPatch, "/notes/"+note.ID, url.Values{"title": {"Shopping"}, "body": {"bread"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	got, err := a.store.GetNote(context.Background(), note.OwnerID, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "Shopping", got.Title)
	assert.Equal(t, "bread", got.Body)

	// HTML form override: redirect back to the note
	rec = b.postForm("/notes/"+note.ID, url.Values{"_method": {"PATCH"}, "title": {"Errands"}, "body": {""}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/notes/"+note.ID, rec.Header().Get("Location"))

	rec = b.postForm("/notes/"+note.ID, url.Values{"_method": {"PATCH"}, "title": {""}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Title is required")

	// Delete twice: both succeed
	rec = b.send(http.MethodDelete, "/notes/"+note.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = b.send(http.MethodDelete, "/notes/"+note.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = b.get("/notes/" + note.ID)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotePages_UpdateWithJSON(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.register("alice@example.com", "secret123")
	note := b.createNote("Groceries", "milk")

	req := httptest.NewRequest(http.MethodPatch, "/notes/"+note.ID, strings.NewReader(`{"title":"New","body":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := b.do(req)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	got, err := a.store.GetNote(context.Background(), note.OwnerID, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)
	assert.Equal(t, "x", got.Body)
}

func TestNotePages_OversizedFormIsRejected(t *testing.T) {
	a := newApp(t, func(cfg *handler.RouterConfig) { cfg.MaxBodySize = 256 })
	b := a.browser(t)
	b.register("alice@example.com", "secret123")
	note := b.createNote("Groceries", "milk")

	values := url.Values{"_method": {"PATCH"}, "title": {"Big"}, "body": {strings.Repeat("x", 1024)}}
	req := httptest.NewRequest(http.MethodPost, "/notes/"+note.ID, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.ContentLength = -1
	rec := b.do(req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	got, err := a.store.GetNote(context.Background(), note.OwnerID, note.ID)
	require.NoError(t, err)
	assert.Equal(t, "Groceries", got.Title)
}

func TestNotePages_DeleteViaForm(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.register("alice@example.com", "secret123")
	note := b.createNote("Groceries", "")

	rec := b.postForm("/notes/"+note.ID, url.Values{"_method": {"DELETE"}})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	notes, err := a.store.ListNotesByOwner(context.Background(), note.OwnerID)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestNotePages_UpdateMissingIsNotFound(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.register("alice@example.com", "secret123")

	rec := b.send(http.MethodPatch, "/notes/does-not-exist", url.Values{"title": {"x"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNotePages_OwnershipEnforced(t *testing.T) {
	a := newApp(t)

	alice := a.browser(t)
	alice.register("alice@example.com", "secret123")
	note := alice.createNote("Diary", "private")

	bob := a.browser(t)
	bob.register("bob@example.com", "hunter22")

	assert.Equal(t, http.StatusNotFound, bob.get("/notes/"+note.ID).Code)
	assert.Equal(t, http.StatusNotFound, bob.get("/notes/"+note.ID+"/edit").Code)
	assert.Equal(t, http.StatusNotFound, bob.send(http.MethodPatch, "/notes/"+note.ID, url.Values{"title": {"pwned"}}).Code)
	assert.Equal(t, http.StatusNotFound, bob.send(http.MethodPatch, "/notes/"+note.ID, url.Values{"title": {""}}).Code)
	assert.Equal(t, http.StatusNoContent, bob.send(http.MethodDelete, "/notes/"+note.ID, nil).Code)

	rec := bob.get("/")
	assert.NotContains(t, rec.Body.String(), "Diary")

	got, err := a.store.GetNote(context.Background(), note.OwnerID, note.ID)
	require.NoError(t, err)
	require.NotNil(t, got, "bob must not delete alice's note")
	assert.Equal(t, "Diary", got.Title)
}

func TestCreateNote_ImageWithoutStorage(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.register("alice@example.com", "secret123")

	body := "--XBOUNDARY\r\n" +
		"Content-Disposition: form-data; name=\"title\"\r\n\r\nCat\r\n" +
		"--XBOUNDARY\r\n" +
		"Content-Disposition: form-data; name=\"image\"; filename=\"cat.png\"\r\n" +
		"Content-Type: image/png\r\n\r\n\x89PNG\r\n\x1a\n0000\r\n" +
		"--XBOUNDARY--\r\n"
	req := httptest.NewRequest(http.MethodPost, "/notes", strings.NewReader(body))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=XBOUNDARY")

	rec := b.do(req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Image "+service.MsgImageDisabled)
}

func apiAuth(t *testing.T, a *app, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(dto.Credentials{Email: email, Password: password})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/auth", strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func apiRequest(a *app, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func TestScenario_APITokenFlow(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.register("alice@example.com", "secret123")
	b.createNote("Groceries", "milk, eggs")

	rec := apiAuth(t, a, "alice@example.com", "secret123")
	require.Equal(t, http.StatusOK, rec.Code)

	var tokenResp dto.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokenResp))
	require.NotEmpty(t, tokenResp.Token)

	for _, header := range []string{tokenResp.Token, "Bearer " + tokenResp.Token} {
		rec = apiRequest(a, http.MethodGet, "/api/notes", header, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var notes []dto.NoteResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notes))
		require.Len(t, notes, 1)
		assert.Equal(t, "Groceries", notes[0].Title)
	}

	rec = apiRequest(a, http.MethodPost, "/api/notes", tokenResp.Token, `{"title":"Call mom","body":"sunday"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created dto.NoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "Call mom", created.Title)
	assert.NotEmpty(t, created.ID)

	rec = apiRequest(a, http.MethodPost, "/api/notes", tokenResp.Token, `{"title":"","body":"x"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var ve dto.ValidationErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ve))
	assert.Equal(t, service.MsgRequired, ve.Errors["title"])

	rec = apiRequest(a, http.MethodPost, "/api/notes", tokenResp.Token, `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_Rejections(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.register("alice@example.com", "secret123")

	rec := apiAuth(t, a, "alice@example.com", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	expired, err := auth.NewTokenIssuer(testTokenSecret, time.Nanosecond).Issue(b.currentUser().ID)
	require.NoError(t, err)
	time.Sleep(time.Second)

	ghost, err := auth.NewTokenIssuer(testTokenSecret, 0).Issue("01HZZZZZZZZZZZZZZZZZZZZZZZ")
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantMsg string
	}{
		{"garbage", "garbage", "Invalid token"},
		{"missing", "", "Not authenticated"},
		{"expired", expired, "Invalid token"},
		{"deleted user", ghost, "Not authenticated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := apiRequest(a, http.MethodGet, "/api/notes", tt.token, "")
			require.Equal(t, http.StatusUnauthorized, rec.Code)

			var body dto.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantMsg, body.Error)
		})
	}
}

func TestAPI_SessionCookieIsNotAToken(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)
	b.register("alice@example.com", "secret123")

	rec := b.get("/api/notes")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_UnknownRouteIsJSON(t *testing.T) {
	a := newApp(t)
	rec := apiRequest(a, http.MethodGet, "/api/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestOAuth_GitHubFlow(t *testing.T) {
	provider := &fakeGitHub{email: "Alice@Example.com"}
	a := newApp(t, func(cfg *handler.RouterConfig) { cfg.GitHub = provider })
	b := a.browser(t)

	rec := b.get("/login")
	assert.Contains(t, rec.Body.String(), "/auth/github")

	rec = b.get("/auth/github")
	require.Equal(t, http.StatusFound, rec.Code)
	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := location.Query().Get("state")
	require.NotEmpty(t, state)
	require.Contains(t, b.cookies, session.StateCookieName)

	rec = b.get("/auth/github/callback?code=abc&state=" + url.QueryEscape(state))
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.NotContains(t, b.cookies, session.StateCookieName)

	user := b.currentUser()
	assert.Equal(t, "alice@example.com", user.Email)

	// Existing accounts are reused
	b.get("/logout")
	rec = b.get("/auth/github")
	location, _ = url.Parse(rec.Header().Get("Location"))
	b.get("/auth/github/callback?code=abc&state=" + url.QueryEscape(location.Query().Get("state")))
	assert.Equal(t, user.ID, b.currentUser().ID)
}

func TestOAuth_StateMismatch(t *testing.T) {
	a := newApp(t, func(cfg *handler.RouterConfig) { cfg.GitHub = &fakeGitHub{email: "alice@example.com"} })
	b := a.browser(t)

	b.get("/auth/github")
	rec := b.get("/auth/github/callback?code=abc&state=forged")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, b.cookies, session.CookieName)
}

func TestOAuth_ExchangeFailure(t *testing.T) {
	a := newApp(t, func(cfg *handler.RouterConfig) {
		cfg.GitHub = &fakeGitHub{err: errors.Join(oauth.ErrExchange, errors.New("bad code"))}
	})
	b := a.browser(t)

	rec := b.get("/auth/github")
	location, _ := url.Parse(rec.Header().Get("Location"))
	rec = b.get("/auth/github/callback?code=abc&state=" + url.QueryEscape(location.Query().Get("state")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Something went wrong")
}

func TestOAuth_UnusableEmail(t *testing.T) {
	a := newApp(t, func(cfg *handler.RouterConfig) { cfg.GitHub = &fakeGitHub{email: "dev@company.studio"} })
	b := a.browser(t)

	rec := b.get("/auth/github")
	location, _ := url.Parse(rec.Header().Get("Location"))
	rec = b.get("/auth/github/callback?code=abc&state=" + url.QueryEscape(location.Query().Get("state")))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), handler.MsgOAuthEmailRejected)
	assert.NotContains(t, b.cookies, session.CookieName)

	_, err := a.store.GetUserByEmail(context.Background(), "dev@company.studio")
	assert.ErrorIs(t, err, repository.ErrUserNotFound, "no account is created")
}

func TestOAuth_DisabledRoutesAreNotFound(t *testing.T) {
	a := newApp(t)
	rec := a.browser(t).get("/auth/github")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit_CredentialEndpoints(t *testing.T) {
	a := newApp(t, func(cfg *handler.RouterConfig) {
		cfg.Limiter = denyLimiter{}
		cfg.RateLimit = handler.RateLimit{Enabled: true, PerMinute: 10, Burst: 5}
	})

	rec := a.browser(t).postForm("/login", url.Values{"email": {"a@b.co"}, "password": {"x"}})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))

	rec = apiAuth(t, a, "a@b.co", "x")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	// Reads are never limited
	assert.Equal(t, http.StatusOK, a.browser(t).get("/login").Code)
	assert.Equal(t, uint64(2), a.recorder.Snapshot().RateLimited)
}

func TestProbesAndHeaders(t *testing.T) {
	a := newApp(t)
	b := a.browser(t)

	rec := b.get("/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = b.get("/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"ok"`)

	rec = b.get("/login")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	b.register("alice@example.com", "secret123")
	rec = b.get("/metrics")
	assert.Contains(t, rec.Body.String(), "notely_users_registered_total 1")
}
