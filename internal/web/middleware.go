package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/eleven-am/katas/internal/kata"
	"github.com/eleven-am/katas/internal/store"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const userKey = "user"

func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		duration := time.Since(start)

		s.log.Zap().Info("http request",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Int("status", responseStatus(c, err)),
			zap.Duration("duration", duration),
			zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
		)

		return err
	}
}

func (s *Server) instrument(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)

		status := responseStatus(c, err)
		route := c.Path()
		if route == "" {
			route = "unmatched"
		}
		s.metrics.RequestDuration.
			WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
		return err
	}
}

// responseStatus is the status the client sees once the error handler has
// written err, which happens after every middleware returned.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

// loadUser resolves the session cookie to a user. A cookie naming a user
// that no longer exists is cleared.
func (s *Server) loadUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := s.sessions.Secret(c.Request())
		if err != nil {
			return next(c)
		}

		user, err := s.store.UserBySecret(c.Request().Context(), secret)
		switch {
		case err == nil:
			c.Set(userKey, user)
		case errors.Is(err, store.ErrNotFound):
			s.sessions.Logout(c.Response())
		default:
			return err
		}
		return next(c)
	}
}

func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if currentUser(c) != nil {
			return next(c)
		}
		if wantsJSON(c) {
			return echo.NewHTTPError(http.StatusUnauthorized, "Please log in to continue.")
		}
		addFlash(c, "error", "Please log in to continue.")
		return s.redirect(c, "/login")
	}
}

func currentUser(c echo.Context) *kata.User {
	u, _ := c.Get(userKey).(*kata.User)
	return u
}

func currentUserID(c echo.Context) int64 {
	if u := currentUser(c); u != nil {
		return u.ID
	}
	return 0
}

// wantsJSON reports whether the client asked for a JSON response rather
// than a page or redirect.
func wantsJSON(c echo.Context) bool {
	r := c.Request()
	if strings.Contains(r.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON) {
		return true
	}
	if r.Header.Get(echo.HeaderXRequestedWith) == "XMLHttpRequest" {
		return true
	}
	return strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}
