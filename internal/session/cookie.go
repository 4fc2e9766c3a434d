package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"
)

const (
	// CookieName uses the __Host- prefix: browsers then require Secure,
	// Path=/ and no Domain, pinning the cookie to this exact host.
	CookieName = "__Host-session"
)

// CookieOptions defines how session cookies are issued.
type CookieOptions struct {
	Path     string
	HttpOnly bool
	Secure   bool
	SameSite http.SameSite
}

// normalize applies safe defaults without breaking callers.
func (o CookieOptions) normalize() CookieOptions {
	if o.Path == "" {
		o.Path = "/" // required for __Host-
	}
	if !o.HttpOnly {
		o.HttpOnly = true
	}
	if o.SameSite == 0 {
		o.SameSite = http.SameSiteLaxMode
	}
	return o
}

// Codec signs session ids with an HMAC so a forged or tampered cookie is
// indistinguishable from an absent one. The cookie value is
// "<sid>.<base64url(HMAC-SHA256(secret, sid))>".
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

func (c *Codec) sign(sid string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(sid))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Encode returns the signed cookie value for a session id.
func (c *Codec) Encode(sid string) string {
	return sid + "." + c.sign(sid)
}

// Decode verifies a cookie value and returns the session id. ok is false
// for malformed values and bad signatures.
func (c *Codec) Decode(value string) (sid string, ok bool) {
	i := strings.LastIndexByte(value, '.')
	if i <= 0 || i == len(value)-1 {
		return "", false
	}

	sid, sig := value[:i], value[i+1:]
	if !hmac.Equal([]byte(sig), []byte(c.sign(sid))) {
		return "", false
	}
	return sid, true
}

// SetCookie issues the signed session cookie to the client.
func (c *Codec) SetCookie(w http.ResponseWriter, sid string, expiresAt time.Time, opts CookieOptions) {
	opts = opts.normalize()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    c.Encode(sid),
		Path:     opts.Path,
		Expires:  expiresAt,
		HttpOnly: opts.HttpOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}

// ReadCookie extracts and verifies the session id from the request.
func (c *Codec) ReadCookie(r *http.Request) (sid string, ok bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return c.Decode(cookie.Value)
}

// ClearCookie removes the session cookie from the client.
func (c *Codec) ClearCookie(w http.ResponseWriter, opts CookieOptions) {
	opts = opts.normalize()

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     opts.Path,
		MaxAge:   -1,
		HttpOnly: opts.HttpOnly,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
	})
}
