package web

import (
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/eleven-am/katas/internal/kata"
	"github.com/eleven-am/katas/internal/session"
	"github.com/eleven-am/katas/internal/store"
	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{"index", "login", "submit", "kata", "list", "prompts", "error"}

const flashKey = "flashes"

// page is the data every template receives.
type page struct {
	Title   string
	User    *kata.User
	Flashes []session.Flash
	Data    interface{}
}

type templateRenderer struct {
	pages map[string]*template.Template
}

// card is what the kata_card partial renders.
type card struct {
	Kata     kata.Kata
	Source   string
	Query    string
	LoggedIn bool
}

var templateFuncs = template.FuncMap{
	"join": strings.Join,
	"date": func(k kata.Kata) string {
		return k.Created().Format("Jan 2, 2006")
	},
	"add": func(a, b int) int { return a + b },
	"sub": func(a, b int) int { return a - b },
	"pageURL": func(query string, page int) string {
		v, _ := url.ParseQuery(query)
		v.Set("page", strconv.Itoa(page))
		return "/?" + v.Encode()
	},
	"actionURL": func(id int64, action, query string) string {
		u := fmt.Sprintf("/kata/%d/%s", id, action)
		if query != "" {
			u += "?" + query
		}
		return u
	},
	"card": func(k kata.Kata, source, query string, loggedIn bool) card {
		return card{Kata: k, Source: source, Query: query, LoggedIn: loggedIn}
	},
}

func newTemplateRenderer() (*templateRenderer, error) {
	r := &templateRenderer{pages: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS,
			"templates/layout.html",
			"templates/"+name+".html",
		)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		r.pages[name] = t
	}
	return r, nil
}

func (r *templateRenderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

func addFlash(c echo.Context, category, message string) {
	flashes, _ := c.Get(flashKey).([]session.Flash)
	c.Set(flashKey, append(flashes, session.Flash{Category: category, Message: message}))
}

func pendingFlashes(c echo.Context) []session.Flash {
	flashes, _ := c.Get(flashKey).([]session.Flash)
	return flashes
}

// redirect stores pending flashes for the next page and redirects.
func (s *Server) redirect(c echo.Context, to string) error {
	if flashes := pendingFlashes(c); len(flashes) > 0 {
		if err := s.sessions.WriteFlashes(c.Response(), flashes); err != nil {
			return err
		}
	}
	return c.Redirect(http.StatusSeeOther, to)
}

// newPage collects the flashes carried in from a redirect plus any added
// while handling this request, and clears the flash cookie.
func (s *Server) newPage(c echo.Context, title string, data interface{}) *page {
	flashes := append(s.sessions.ReadFlashes(c.Request()), pendingFlashes(c)...)
	if _, err := c.Request().Cookie(s.sessions.FlashCookieName()); err == nil {
		s.sessions.ClearFlashes(c.Response())
	}
	c.Set(flashKey, nil)

	return &page{
		Title:   title,
		User:    currentUser(c),
		Flashes: flashes,
		Data:    data,
	}
}

func (s *Server) render(c echo.Context, code int, name string, p *page) error {
	return c.Render(code, name, p)
}

type errorData struct {
	Code    int
	Message string
}

// handleError renders HTTP errors as JSON or an error page. Anything that
// is not an *echo.HTTPError is logged and reported generically.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := "Something went wrong. Please try again."

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		}
		if code >= http.StatusInternalServerError {
			s.log.Error("request failed", "path", c.Path(), "error", he)
			message = "Something went wrong. Please try again."
		}
	} else {
		s.log.Error("request failed",
			"path", c.Path(),
			"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			"error", err,
		)
	}

	var renderErr error
	if c.Request().Method == http.MethodHead {
		renderErr = c.NoContent(code)
	} else if wantsJSON(c) {
		renderErr = c.JSON(code, map[string]string{"error": message})
	} else {
		renderErr = s.render(c, code, "error", s.newPage(c, http.StatusText(code), errorData{Code: code, Message: message}))
	}
	if renderErr != nil {
		s.log.Error("failed to write error response", "error", renderErr)
	}
}

// storeError maps store sentinels to HTTP errors; what names the entity.
func storeError(err error, what string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, what+" not found")
	case errors.Is(err, store.ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, "You do not own this "+strings.ToLower(what)+".")
	}
	return err
}

func paramID(c echo.Context, what string) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, echo.NewHTTPError(http.StatusNotFound, what+" not found")
	}
	return id, nil
}
