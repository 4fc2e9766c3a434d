package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RuslanFatikhov/CoffeeLog/internal/auth"
	"github.com/RuslanFatikhov/CoffeeLog/internal/auth/authtest"
	"github.com/RuslanFatikhov/CoffeeLog/internal/auth/verifier"
	"github.com/RuslanFatikhov/CoffeeLog/internal/entry"
	"github.com/RuslanFatikhov/CoffeeLog/internal/middleware"
	"github.com/RuslanFatikhov/CoffeeLog/internal/session"
	"github.com/RuslanFatikhov/CoffeeLog/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testIssuer   = "https://accounts.example.com"
	testAudience = "client-123"
)

// fakeProvider satisfies provider.Provider and records what the handler
// hands it, standing in for the external identity provider.
type fakeProvider struct {
	mu          sync.Mutex
	lastState   string
	lastNonce   string
	lastCode    string
	rawIDToken  string
	exchangeErr error
}

func (f *fakeProvider) AuthCodeURL(state string, nonce string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastState, f.lastNonce = state, nonce
	return "https://provider.test/authorize?state=" + url.QueryEscape(state) +
		"&nonce=" + url.QueryEscape(nonce)
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCode = code
	if f.exchangeErr != nil {
		return "", f.exchangeErr
	}
	return f.rawIDToken, nil
}

func (f *fakeProvider) pending() (state, nonce string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastState, f.lastNonce
}

type fakeUserStore struct {
	mu        sync.Mutex
	bySubject map[string]user.User
	nextID    int
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{bySubject: make(map[string]user.User)}
}

func (s *fakeUserStore) Upsert(_ context.Context, identity *auth.Identity) (*user.User, error) {
	if identity == nil || identity.Subject == "" || identity.Email == "" {
		return nil, auth.ErrIncompleteClaims
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	u, ok := s.bySubject[identity.Subject]
	if !ok {
		s.nextID++
		u = user.User{
			ID:              fmt.Sprintf("uid-%d", s.nextID),
			ExternalSubject: identity.Subject,
			CreatedAt:       now,
		}
	}
	u.Email = identity.Email
	u.DisplayName = identity.DisplayName
	u.AvatarURL = identity.AvatarURL
	u.UpdatedAt = now
	s.bySubject[identity.Subject] = u
	return &u, nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.bySubject {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *fakeUserStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bySubject)
}

type fakeEntryStore struct {
	mu      sync.Mutex
	entries map[string]entry.Entry
}

func newFakeEntryStore() *fakeEntryStore {
	return &fakeEntryStore{entries: make(map[string]entry.Entry)}
}

func (s *fakeEntryStore) ListByOwner(_ context.Context, owner string) ([]entry.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []entry.Entry{}
	for _, e := range s.entries {
		if e.OwnerKey == owner {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeEntryStore) Get(_ context.Context, id string, owner string) (*entry.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.OwnerKey != owner {
		return nil, entry.ErrNotFound
	}
	return &e, nil
}

func (s *fakeEntryStore) UpsertBatch(_ context.Context, entries []entry.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		if existing, ok := s.entries[e.ID]; ok && existing.OwnerKey != e.OwnerKey {
			return entry.ErrNotFound
		}
	}
	for _, e := range entries {
		s.entries[e.ID] = e
	}
	return nil
}

func (s *fakeEntryStore) Delete(_ context.Context, id string, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.OwnerKey != owner {
		return entry.ErrNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *fakeEntryStore) get(id string) (entry.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

type fixture struct {
	router   *gin.Engine
	provider *fakeProvider
	signer   *authtest.Signer
	users    *fakeUserStore
	entries  *fakeEntryStore
	sessions session.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		provider: &fakeProvider{},
		signer:   authtest.NewSigner(t),
		users:    newFakeUserStore(),
		entries:  newFakeEntryStore(),
		sessions: session.NewMemoryStore(),
	}

	codec := session.NewCodec("test-signing-secret")
	h := New(
		f.provider,
		verifier.New(testIssuer, testAudience, f.signer.KeySet()),
		f.sessions,
		f.users,
		codec,
		false,
	)

	router := gin.New()
	h.RegisterRoutes(router)

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(middleware.NewAuthMiddleware(codec, f.sessions)))
	api.GET("/me", h.Me)
	entry.NewHandler(f.entries).RegisterRoutes(api)

	f.router = router
	return f
}

// browser keeps a cookie jar across requests, like a real user agent.
type browser struct {
	t       *testing.T
	router  *gin.Engine
	cookies map[string]string
}

func (f *fixture) newBrowser(t *testing.T) *browser {
	return &browser{t: t, router: f.router, cookies: make(map[string]string)}
}

func (b *browser) do(method, target string, body io.Reader) *httptest.ResponseRecorder {
	b.t.Helper()

	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for name, value := range b.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, req)

	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(b.cookies, ck.Name)
			continue
		}
		b.cookies[ck.Name] = ck.Value
	}
	return rec
}

func (f *fixture) claimsFor(subject, email, nonce string) map[string]any {
	now := time.Now()
	return map[string]any{
		"iss":     testIssuer,
		"aud":     testAudience,
		"sub":     subject,
		"email":   email,
		"name":    "Test User",
		"picture": "https://img.example.com/u.png",
		"nonce":   nonce,
		"iat":     now.Unix(),
		"exp":     now.Add(time.Hour).Unix(),
	}
}

// login walks a browser through the whole handshake for the given
// subject and returns the callback response.
func (f *fixture) login(t *testing.T, b *browser, subject, email string) *httptest.ResponseRecorder {
	t.Helper()

	rec := b.do(http.MethodGet, "/auth/google/start", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	state, nonce := f.provider.pending()
	require.NotEmpty(t, state)
	require.NotEmpty(t, nonce)

	f.provider.rawIDToken = f.signer.Mint(t, f.claimsFor(subject, email, nonce))

	return b.do(http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state)+"&code=abc", nil)
}

func TestLogin_EndToEnd(t *testing.T) {
	f := newFixture(t)
	b := f.newBrowser(t)

	rec := b.do(http.MethodGet, "/auth/google/start", nil)
	require.Equal(t, http.StatusFound, rec.Code)

	location := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(location, "https://provider.test/authorize?"), location)

	state, nonce := f.provider.pending()
	redirect, err := url.Parse(location)
	require.NoError(t, err)
	assert.Equal(t, state, redirect.Query().Get("state"))
	assert.Equal(t, nonce, redirect.Query().Get("nonce"))

	f.provider.rawIDToken = f.signer.Mint(t, f.claimsFor("g-123", "a@x.com", nonce))

	rec = b.do(http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state)+"&code=abc", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/settings", rec.Header().Get("Location"))
	assert.Equal(t, "abc", f.provider.lastCode)

	rec = b.do(http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"a@x.com"`)

	// create a record; its owner comes from the session
	rec = b.do(http.MethodPost, "/api/entries",
		strings.NewReader(`{"id":"e1","coffee_name":"Yirgacheffe","brew_date":"2026-08-30"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	stored, ok := f.entries.get("e1")
	require.True(t, ok)
	assert.Equal(t, "g-123", stored.OwnerKey)

	// a browser with no session never sees it
	stranger := f.newBrowser(t)
	rec = stranger.do(http.MethodGet, "/api/entry/e1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin_RepeatedBindKeepsOneUser(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		b := f.newBrowser(t)
		rec := f.login(t, b, "g-123", fmt.Sprintf("a+%d@x.com", i))
		require.Equal(t, http.StatusFound, rec.Code)
	}

	assert.Equal(t, 1, f.users.count())
}

func TestCallback_MissingParameters(t *testing.T) {
	f := newFixture(t)
	b := f.newBrowser(t)

	tests := []struct {
		name   string
		target string
	}{
		{name: "missing state", target: "/auth/google/callback?code=abc"},
		{name: "missing code", target: "/auth/google/callback?state=s1"},
		{name: "missing both", target: "/auth/google/callback"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := b.do(http.MethodGet, tt.target, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, `{"error":"missing_parameter"}`, rec.Body.String())
		})
	}
}

func TestCallback_StateMismatchBurnsHandshake(t *testing.T) {
	f := newFixture(t)
	b := f.newBrowser(t)

	rec := b.do(http.MethodGet, "/auth/google/start", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	state, _ := f.provider.pending()

	rec = b.do(http.MethodGet, "/auth/google/callback?state=wrong&code=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"state_mismatch"}`, rec.Body.String())

	// the correct state can no longer win either; the user restarts
	rec = b.do(http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state)+"&code=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"no_pending_handshake"}`, rec.Body.String())

	// session stayed anonymous throughout
	rec = b.do(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCallback_ReplayRejected(t *testing.T) {
	f := newFixture(t)
	b := f.newBrowser(t)

	rec := f.login(t, b, "g-123", "a@x.com")
	require.Equal(t, http.StatusFound, rec.Code)

	state, _ := f.provider.pending()
	rec = b.do(http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state)+"&code=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"no_pending_handshake"}`, rec.Body.String())
}

func TestCallback_WithoutStart(t *testing.T) {
	f := newFixture(t)
	b := f.newBrowser(t)

	rec := b.do(http.MethodGet, "/auth/google/callback?state=s1&code=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"no_pending_handshake"}`, rec.Body.String())
}

func TestCallback_ExchangeFailures(t *testing.T) {
	tests := []struct {
		name        string
		exchangeErr error
		wantKind    string
	}{
		{
			name:        "provider returned error status",
			exchangeErr: &auth.ExchangeError{Status: http.StatusInternalServerError},
			wantKind:    "provider_exchange",
		},
		{
			name:        "provider unreachable",
			exchangeErr: fmt.Errorf("%w: connection refused", auth.ErrProviderUnreachable),
			wantKind:    "provider_unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := f.newBrowser(t)

			rec := b.do(http.MethodGet, "/auth/google/start", nil)
			require.Equal(t, http.StatusFound, rec.Code)
			state, _ := f.provider.pending()
			f.provider.exchangeErr = tt.exchangeErr

			rec = b.do(http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state)+"&code=abc", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, fmt.Sprintf(`{"error":%q}`, tt.wantKind), rec.Body.String())

			// failure consumed the handshake all the same
			rec = b.do(http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state)+"&code=abc", nil)
			assert.JSONEq(t, `{"error":"no_pending_handshake"}`, rec.Body.String())
		})
	}
}

func TestCallback_BadNonce(t *testing.T) {
	f := newFixture(t)
	b := f.newBrowser(t)

	rec := b.do(http.MethodGet, "/auth/google/start", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	state, _ := f.provider.pending()

	f.provider.rawIDToken = f.signer.Mint(t, f.claimsFor("g-123", "a@x.com", "stale-nonce"))

	rec = b.do(http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state)+"&code=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid_id_token"}`, rec.Body.String())
	assert.Equal(t, 0, f.users.count(), "no user may be bound from an unverified token")
}

func TestCallback_IncompleteClaims(t *testing.T) {
	f := newFixture(t)
	b := f.newBrowser(t)

	rec := b.do(http.MethodGet, "/auth/google/start", nil)
	require.Equal(t, http.StatusFound, rec.Code)
	state, nonce := f.provider.pending()

	claims := f.claimsFor("g-123", "a@x.com", nonce)
	delete(claims, "email")
	f.provider.rawIDToken = f.signer.Mint(t, claims)

	rec = b.do(http.MethodGet, "/auth/google/callback?state="+url.QueryEscape(state)+"&code=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"incomplete_claims"}`, rec.Body.String())
	assert.Equal(t, 0, f.users.count())
}

func TestLogout_Idempotent(t *testing.T) {
	f := newFixture(t)
	b := f.newBrowser(t)

	rec := f.login(t, b, "g-123", "a@x.com")
	require.Equal(t, http.StatusFound, rec.Code)

	rec = b.do(http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec = b.do(http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// logging out again from ANONYMOUS is still fine
	rec = b.do(http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestOwnershipIsolation(t *testing.T) {
	f := newFixture(t)

	alice := f.newBrowser(t)
	require.Equal(t, http.StatusFound, f.login(t, alice, "sub-A", "a@x.com").Code)

	rec := alice.do(http.MethodPost, "/api/entries",
		strings.NewReader(`{"id":"r1","coffee_name":"Gesha","brew_date":"2026-08-30","notes":"original"}`))
	require.Equal(t, http.StatusOK, rec.Code)

	bob := f.newBrowser(t)
	require.Equal(t, http.StatusFound, f.login(t, bob, "sub-B", "b@x.com").Code)

	// read, update and delete of a foreign record are all plain 404s
	rec = bob.do(http.MethodGet, "/api/entry/r1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = bob.do(http.MethodPost, "/api/entries",
		strings.NewReader(`{"id":"r1","coffee_name":"Hijacked","brew_date":"2026-08-31"}`))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = bob.do(http.MethodDelete, "/api/entry/r1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// and the record is untouched
	stored, ok := f.entries.get("r1")
	require.True(t, ok)
	assert.Equal(t, "sub-A", stored.OwnerKey)
	assert.Equal(t, "Gesha", stored.CoffeeName)
	assert.Equal(t, "original", stored.Notes)

	// bob's own listing does not include it either
	rec = bob.do(http.MethodGet, "/api/entries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestReLogin_ReplacesSessionIdentity(t *testing.T) {
	f := newFixture(t)
	b := f.newBrowser(t)

	require.Equal(t, http.StatusFound, f.login(t, b, "g-123", "a@x.com").Code)
	require.Equal(t, http.StatusFound, f.login(t, b, "g-456", "b@x.com").Code)

	rec := b.do(http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"email":"b@x.com"`)
}
