package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/eleven-am/katas/internal/store"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type loginData struct {
	Suggested string
}

func (s *Server) handleLoginForm(c echo.Context) error {
	return s.render(c, http.StatusOK, "login", s.newPage(c, "Log in", loginData{Suggested: uuid.NewString()}))
}

func (s *Server) handleLogin(c echo.Context) error {
	secret := strings.TrimSpace(c.FormValue("secret_username"))
	displayName := strings.TrimSpace(c.FormValue("display_name"))

	if secret == "" {
		addFlash(c, "error", "Please enter your secret username.")
		return s.redirect(c, "/login")
	}

	user, created, err := s.store.Login(c.Request().Context(), secret, displayName)
	if errors.Is(err, store.ErrDisplayNameRequired) {
		addFlash(c, "error", "Please provide a display name for registration.")
		return s.redirect(c, "/login")
	}
	if err != nil {
		return err
	}

	if err := s.sessions.Login(c.Response(), user.SecretUsername); err != nil {
		return err
	}

	if created {
		s.log.Info("user registered", "user_id", user.ID)
		addFlash(c, "success", fmt.Sprintf("Welcome! Your secret username is %s. Please save it for future logins.", user.SecretUsername))
	}
	return s.redirect(c, "/")
}

func (s *Server) handleLogout(c echo.Context) error {
	s.sessions.Logout(c.Response())
	return s.redirect(c, "/")
}

func (s *Server) handleDeleteAccount(c echo.Context) error {
	user := currentUser(c)

	if err := s.store.DeleteAccount(c.Request().Context(), user.ID); err != nil {
		s.log.Error("account deletion failed", "user_id", user.ID, "error", err)
		addFlash(c, "error", "Something went wrong while deleting your account. Nothing was removed.")
		return s.redirect(c, "/")
	}

	s.sessions.Logout(c.Response())
	addFlash(c, "success", "Your account has been deleted.")
	return s.redirect(c, "/")
}
