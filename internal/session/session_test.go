package session

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newManager(now time.Time) *Manager {
	m := NewManager(Config{Secret: "test-secret", CookieName: "sess", TTL: time.Hour})
	m.now = func() time.Time { return now }
	return m
}

// replay copies the cookies set on rec into a fresh request.
func replay(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			continue
		}
		req.AddCookie(c)
	}
	return req
}

func TestLoginRoundTrip(t *testing.T) {
	now := time.Date(2024, 5, 16, 12, 0, 0, 0, time.UTC)
	m := newManager(now)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Login(rec, "alice"))

	secret, err := m.Secret(replay(rec))
	require.NoError(t, err)
	assert.Equal(t, "alice", secret)

	cookie := rec.Result().Cookies()[0]
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "sess", cookie.Name)
}

func TestSecretRejectsBadCookies(t *testing.T) {
	now := time.Date(2024, 5, 16, 12, 0, 0, 0, time.UTC)
	m := newManager(now)

	t.Run("missing", func(t *testing.T) {
		_, err := m.Secret(httptest.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("expired", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, m.Login(rec, "alice"))
		later := newManager(now.Add(2 * time.Hour))
		_, err := later.Secret(replay(rec))
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("wrong key", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, m.Login(rec, "alice"))
		other := NewManager(Config{Secret: "other", CookieName: "sess"})
		other.now = m.now
		_, err := other.Secret(replay(rec))
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("flash token is not a session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		require.NoError(t, m.WriteFlashes(rec, []Flash{{"info", "hi"}}))
		req := replay(rec)
		c, err := req.Cookie("sess_flash")
		require.NoError(t, err)
		forged := httptest.NewRequest(http.MethodGet, "/", nil)
		forged.AddCookie(&http.Cookie{Name: "sess", Value: c.Value})
		_, err = m.Secret(forged)
		assert.ErrorIs(t, err, ErrNoSession)
	})
}

func TestFlashes(t *testing.T) {
	m := newManager(time.Date(2024, 5, 16, 12, 0, 0, 0, time.UTC))

	rec := httptest.NewRecorder()
	flashes := []Flash{{"success", "Kata submitted successfully!"}, {"error", "Note cannot be longer than 200 characters."}}
	require.NoError(t, m.WriteFlashes(rec, flashes))
	assert.Equal(t, flashes, m.ReadFlashes(replay(rec)))

	rec = httptest.NewRecorder()
	m.ClearFlashes(rec)
	assert.Empty(t, m.ReadFlashes(replay(rec)))
	cleared := rec.Result().Cookies()[0]
	assert.Equal(t, -1, cleared.MaxAge)
}

func TestFlashesFitInOneCookie(t *testing.T) {
	m := newManager(time.Date(2024, 5, 16, 12, 0, 0, 0, time.UTC))

	flashes := []Flash{{"error", strings.Repeat("<", 5000)}}
	for i := 0; i < 30; i++ {
		flashes = append(flashes, Flash{"error", fmt.Sprintf("Error for kata 'Kata %d': %s", i, strings.Repeat("x", 150))})
	}

	rec := httptest.NewRecorder()
	require.NoError(t, m.WriteFlashes(rec, flashes))
	headers := rec.Header().Values("Set-Cookie")
	require.Len(t, headers, 1)
	assert.Less(t, len(headers[0]), 4096)

	got := m.ReadFlashes(replay(rec))
	require.NotEmpty(t, got)
	assert.Less(t, len(got), len(flashes))
	assert.Equal(t, maxFlashMessage, utf8.RuneCountInString(got[0].Message))
	assert.True(t, strings.HasSuffix(got[0].Message, "…"))
	last := got[len(got)-1]
	assert.Equal(t, "info", last.Category)
	assert.Equal(t, fmt.Sprintf("%d more messages not shown.", len(flashes)-len(got)+1), last.Message)
}

func TestLogoutClearsCookie(t *testing.T) {
	m := newManager(time.Now())
	rec := httptest.NewRecorder()
	m.Logout(rec)

	c := rec.Result().Cookies()[0]
	assert.Equal(t, "sess", c.Name)
	assert.Equal(t, -1, c.MaxAge)
}
