package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/eleven-am/katas/internal/kata"
	"github.com/eleven-am/katas/internal/prompt"
	"github.com/labstack/echo/v4"
)

type promptsData struct {
	Prompts  []kata.Prompt
	Tokens   []string
	Compiled string
	Source   string
}

var promptTokens = []string{
	prompt.TokenDifficulties,
	prompt.TokenCompletionTimes,
	prompt.TokenUploadSchema,
	prompt.TokenLastUpvoted,
	prompt.TokenLastSaved,
	prompt.TokenLastCompleted,
}

func (s *Server) promptsPage(c echo.Context, data promptsData) error {
	prompts, err := s.store.Prompts(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	data.Prompts = prompts
	data.Tokens = promptTokens
	return s.render(c, http.StatusOK, "prompts", s.newPage(c, "Prompts", data))
}

func (s *Server) handlePrompts(c echo.Context) error {
	return s.promptsPage(c, promptsData{})
}

func (s *Server) handleSavePrompt(c echo.Context) error {
	name := strings.TrimSpace(c.FormValue("name"))
	content := c.FormValue("content")
	if name == "" || strings.TrimSpace(content) == "" {
		if wantsJSON(c) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "Prompt name and content are required.")
		}
		addFlash(c, "error", "Prompt name and content are required.")
		return s.redirect(c, "/prompts")
	}

	p, err := s.store.SavePrompt(c.Request().Context(), currentUserID(c), name, content)
	if err != nil {
		return err
	}
	if wantsJSON(c) {
		return c.JSON(http.StatusOK, p)
	}
	addFlash(c, "success", "Prompt saved.")
	return s.redirect(c, "/prompts")
}

func (s *Server) handleGetPrompt(c echo.Context) error {
	id, err := paramID(c, "Prompt")
	if err != nil {
		return err
	}
	p, err := s.store.Prompt(c.Request().Context(), id, currentUserID(c))
	if err != nil {
		return storeError(err, "Prompt")
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeletePrompt(c echo.Context) error {
	id, err := paramID(c, "Prompt")
	if err != nil {
		return err
	}
	if err := s.store.DeletePrompt(c.Request().Context(), id, currentUserID(c)); err != nil {
		return storeError(err, "Prompt")
	}
	if wantsJSON(c) {
		return c.NoContent(http.StatusNoContent)
	}
	addFlash(c, "success", "Prompt deleted.")
	return s.redirect(c, "/prompts")
}

// handleCompilePrompt expands placeholders in either a saved prompt
// (prompt_id) or ad-hoc content.
func (s *Server) handleCompilePrompt(c echo.Context) error {
	ctx := c.Request().Context()
	userID := currentUserID(c)

	text := c.FormValue("content")
	if raw := strings.TrimSpace(c.FormValue("prompt_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, "Prompt not found")
		}
		p, err := s.store.Prompt(ctx, id, userID)
		if err != nil {
			return storeError(err, "Prompt")
		}
		text = p.Content
	}

	compiled, err := s.compiler.Compile(ctx, userID, text)
	if err != nil {
		return err
	}
	s.metrics.PromptCompilationsTotal.Inc()

	if wantsJSON(c) {
		return c.JSON(http.StatusOK, map[string]string{"compiled": compiled})
	}
	return s.promptsPage(c, promptsData{Compiled: compiled, Source: text})
}
