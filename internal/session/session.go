// Package session keeps the logged-in identifier and one-shot flash
// messages in signed cookies.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	audienceSession = "session"
	audienceFlash   = "flash"

	flashSuffix = "_flash"
	flashTTL    = 5 * time.Minute
	maxFlashes  = 20

	// maxFlashMessage bounds one message in runes; maxFlashToken bounds the
	// signed cookie value so the whole Set-Cookie header stays under the
	// 4096 bytes browsers keep.
	maxFlashMessage = 300
	maxFlashToken   = 3500
)

// ErrNoSession is returned when the request carries no valid session.
var ErrNoSession = errors.New("no session")

// Config controls the session cookie.
type Config struct {
	Secret     string        `koanf:"secret" yaml:"secret"`
	CookieName string        `koanf:"cookie_name" yaml:"cookie_name"`
	TTL        time.Duration `koanf:"ttl" yaml:"ttl"`
	Secure     bool          `koanf:"secure" yaml:"secure"`
}

// Flash is a message shown once on the next rendered page.
type Flash struct {
	Category string `json:"c"`
	Message  string `json:"m"`
}

type flashClaims struct {
	Flashes []Flash `json:"f"`
	jwt.RegisteredClaims
}

// Manager issues and reads session and flash cookies.
type Manager struct {
	secret     []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	now        func() time.Time
}

// NewManager returns a manager for cfg.
func NewManager(cfg Config) *Manager {
	name := cfg.CookieName
	if name == "" {
		name = "katas_session"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Manager{
		secret:     []byte(cfg.Secret),
		cookieName: name,
		ttl:        ttl,
		secure:     cfg.Secure,
		now:        time.Now,
	}
}

// Login stores the user's secret identifier in the session cookie.
func (m *Manager) Login(w http.ResponseWriter, secret string) error {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   secret,
		Audience:  jwt.ClaimStrings{audienceSession},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	token, err := m.sign(claims)
	if err != nil {
		return err
	}
	m.setCookie(w, m.cookieName, token, now.Add(m.ttl))
	return nil
}

// Logout clears the session cookie.
func (m *Manager) Logout(w http.ResponseWriter) {
	m.clearCookie(w, m.cookieName)
}

// Secret returns the secret identifier of the logged-in user.
func (m *Manager) Secret(r *http.Request) (string, error) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return "", ErrNoSession
	}

	var claims jwt.RegisteredClaims
	if err := m.parse(c.Value, audienceSession, &claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if claims.Subject == "" {
		return "", ErrNoSession
	}
	return claims.Subject, nil
}

// WriteFlashes replaces the pending flash messages. An empty list clears
// the cookie. Long messages are shortened and trailing flashes that do not
// fit the cookie are replaced by a count of what was left out.
func (m *Manager) WriteFlashes(w http.ResponseWriter, flashes []Flash) error {
	if len(flashes) == 0 {
		m.clearCookie(w, m.FlashCookieName())
		return nil
	}

	kept := make([]Flash, 0, len(flashes))
	for _, f := range flashes {
		kept = append(kept, Flash{Category: f.Category, Message: truncate(f.Message, maxFlashMessage)})
	}

	now := m.now()
	var token string
	for n := min(len(kept), maxFlashes); n > 0; n-- {
		batch := kept[:n:n]
		if dropped := len(kept) - n; dropped > 0 {
			batch = append(kept[:n-1:n-1], Flash{Category: "info", Message: fmt.Sprintf("%d more messages not shown.", dropped+1)})
		}
		var err error
		token, err = m.sign(flashClaims{
			Flashes: batch,
			RegisteredClaims: jwt.RegisteredClaims{
				Audience:  jwt.ClaimStrings{audienceFlash},
				ExpiresAt: jwt.NewNumericDate(now.Add(flashTTL)),
			},
		})
		if err != nil {
			return err
		}
		if len(token) <= maxFlashToken {
			break
		}
	}
	m.setCookie(w, m.FlashCookieName(), token, now.Add(flashTTL))
	return nil
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}

// ReadFlashes returns the flashes carried by the request. Invalid or
// expired cookies yield none.
func (m *Manager) ReadFlashes(r *http.Request) []Flash {
	c, err := r.Cookie(m.FlashCookieName())
	if err != nil || c.Value == "" {
		return nil
	}
	var claims flashClaims
	if err := m.parse(c.Value, audienceFlash, &claims); err != nil {
		return nil
	}
	return claims.Flashes
}

// FlashCookieName is the name of the cookie carrying flashes.
func (m *Manager) FlashCookieName() string {
	return m.cookieName + flashSuffix
}

// ClearFlashes drops the flash cookie once its messages were shown.
func (m *Manager) ClearFlashes(w http.ResponseWriter) {
	m.clearCookie(w, m.FlashCookieName())
}

func (m *Manager) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign cookie: %w", err)
	}
	return signed, nil
}

func (m *Manager) parse(value, audience string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	return err
}

func (m *Manager) setCookie(w http.ResponseWriter, name, value string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (m *Manager) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
