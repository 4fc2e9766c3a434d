package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/RuslanFatikhov/CoffeeLog/internal/auth"
	"github.com/RuslanFatikhov/CoffeeLog/internal/auth/provider"
	"github.com/RuslanFatikhov/CoffeeLog/internal/auth/verifier"
	"github.com/RuslanFatikhov/CoffeeLog/internal/middleware"
	"github.com/RuslanFatikhov/CoffeeLog/internal/session"
	"github.com/RuslanFatikhov/CoffeeLog/internal/user"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const sessionTTL = 24 * time.Hour

// Handler drives the login handshake: redirect out, consume the
// callback, verify claims, bind the identity, establish the session.
type Handler struct {
	provider   provider.Provider
	verifier   *verifier.Verifier
	sessions   session.Store
	users      user.Store
	codec      *session.Codec
	cookieOpts session.CookieOptions
}

func New(
	p provider.Provider,
	v *verifier.Verifier,
	sessions session.Store,
	users user.Store,
	codec *session.Codec,
	secureCookies bool,
) *Handler {
	return &Handler{
		provider:   p,
		verifier:   v,
		sessions:   sessions,
		users:      users,
		codec:      codec,
		cookieOpts: session.CookieOptions{Secure: secureCookies},
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/auth/google/start", h.Start)
	r.GET("/auth/google/callback", h.Callback)
	// logout is idempotent and allowed from any state
	r.POST("/logout", h.Logout)
	r.GET("/logout", h.Logout)
}

// Start begins a login: mints a fresh state/nonce pair, stores it as the
// session's pending handshake and redirects to the provider. Starting
// again just replaces the pending handshake.
func (h *Handler) Start(c *gin.Context) {
	sid, ok := h.codec.ReadCookie(c.Request)
	if !ok {
		sid = auth.NewToken()
	}

	hs := session.Handshake{
		State: auth.NewToken(),
		Nonce: auth.NewToken(),
	}

	if err := h.sessions.StartLogin(c.Request.Context(), sid, hs); err != nil {
		logrus.WithError(err).Error("failed to store login handshake")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_unavailable"})
		return
	}

	h.codec.SetCookie(c.Writer, sid, time.Now().Add(sessionTTL), h.cookieOpts)
	c.Redirect(http.StatusFound, h.provider.AuthCodeURL(hs.State, hs.Nonce))
}

// Callback finishes a login. The pending handshake is consumed before
// anything else, so whatever happens afterwards the same callback URL
// can never be replayed; a failed attempt restarts from /auth/google/start.
func (h *Handler) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing_parameter"})
		return
	}

	sid, ok := h.codec.ReadCookie(c.Request)
	if !ok {
		// no session cookie means no session, hence no pending handshake
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_pending_handshake"})
		return
	}

	hs, err := h.sessions.ConsumeHandshake(c.Request.Context(), sid, state)
	if err != nil {
		h.failCallback(c, err)
		return
	}

	rawIDToken, err := h.provider.Exchange(c.Request.Context(), code)
	if err != nil {
		h.failCallback(c, err)
		return
	}

	identity, err := h.verifier.Verify(c.Request.Context(), rawIDToken, hs.Nonce)
	if err != nil {
		h.failCallback(c, err)
		return
	}

	u, err := h.users.Upsert(c.Request.Context(), identity)
	if err != nil {
		if errors.Is(err, auth.ErrIncompleteClaims) {
			h.failCallback(c, err)
			return
		}
		logrus.WithError(err).Error("failed to bind identity")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bind_failed"})
		return
	}

	expiresAt := time.Now().Add(sessionTTL)
	err = h.sessions.Establish(c.Request.Context(), sid, session.Authenticated{
		UserID:          u.ID,
		ExternalSubject: u.ExternalSubject,
		ExpiresAt:       expiresAt,
	})
	if err != nil {
		logrus.WithError(err).Error("failed to establish session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session_unavailable"})
		return
	}

	h.codec.SetCookie(c.Writer, sid, expiresAt, h.cookieOpts)

	logrus.WithFields(logrus.Fields{
		"user_id": u.ID,
	}).Info("login succeeded")

	c.Redirect(http.StatusFound, "/settings")
}

// failCallback maps a handshake failure onto a 400 with a machine-
// readable kind. Internal detail (which token check failed, the upstream
// status) is logged, never shown to the browser.
func (h *Handler) failCallback(c *gin.Context, err error) {
	kind := "authentication_failed"
	log := logrus.WithError(err)

	var exchangeErr *auth.ExchangeError
	var tokenErr *auth.TokenError

	switch {
	case errors.Is(err, session.ErrNoPendingHandshake):
		kind = "no_pending_handshake"
	case errors.Is(err, session.ErrStateMismatch):
		kind = "state_mismatch"
	case errors.Is(err, auth.ErrProviderUnreachable):
		kind = "provider_unreachable"
	case errors.As(err, &exchangeErr):
		kind = "provider_exchange"
		log = log.WithField("upstream_status", exchangeErr.Status)
	case errors.As(err, &tokenErr):
		kind = "invalid_id_token"
		log = log.WithField("failed_check", string(tokenErr.Check))
	case errors.Is(err, auth.ErrIncompleteClaims):
		kind = "incomplete_claims"
	}

	log.WithField("kind", kind).Warn("login callback rejected")
	c.JSON(http.StatusBadRequest, gin.H{"error": kind})
}

// Logout clears the session unconditionally and is idempotent: logging
// out an anonymous session is not an error.
func (h *Handler) Logout(c *gin.Context) {
	if sid, ok := h.codec.ReadCookie(c.Request); ok {
		if err := h.sessions.Clear(c.Request.Context(), sid); err != nil {
			logrus.WithError(err).Warn("failed to clear session")
		}
	}

	h.codec.ClearCookie(c.Writer, h.cookieOpts)
	c.Redirect(http.StatusFound, "/login")
}

// Me returns the authenticated user's profile.
func (h *Handler) Me(c *gin.Context) {
	p, ok := middleware.PrincipalFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_required"})
		return
	}

	u, err := h.users.GetByID(c.Request.Context(), p.UserID)
	if err != nil {
		logrus.WithError(err).Error("failed to load user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "user_unavailable"})
		return
	}
	if u == nil {
		// session points at a user that no longer exists
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_required"})
		return
	}

	c.JSON(http.StatusOK, u)
}
