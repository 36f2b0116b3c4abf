package web

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/eleven-am/katas/internal/importer"
	"github.com/eleven-am/katas/internal/kata"
	"github.com/eleven-am/katas/internal/listing"
	"github.com/eleven-am/katas/internal/store"
	"github.com/labstack/echo/v4"
)

const (
	autocompleteMinLength = 2
	autocompleteLimit     = 5
)

type indexData struct {
	Filter          listing.Filter
	Query           string
	CardQuery       string
	Katas           []kata.Kata
	Total           int64
	Page            int
	TotalPages      int
	Difficulties    []string
	CompletionTimes []string
}

func (s *Server) handleIndex(c echo.Context) error {
	f := listing.ParseFilter(c.QueryParams()).Normalize()

	result, err := s.store.ListKatas(c.Request().Context(), f, currentUserID(c))
	if err != nil {
		return err
	}
	cardQuery := f.Values()
	if f.Page > 1 {
		cardQuery.Set("page", strconv.Itoa(f.Page))
	}

	return s.render(c, http.StatusOK, "index", s.newPage(c, "Katas", indexData{
		Filter:          f,
		Query:           f.Values().Encode(),
		CardQuery:       cardQuery.Encode(),
		Katas:           result.Katas,
		Total:           result.Total,
		Page:            result.Page,
		TotalPages:      result.TotalPages,
		Difficulties:    kata.AllowedDifficulties,
		CompletionTimes: kata.AllowedCompletionTimes,
	}))
}

type submitData struct {
	Difficulties    []string
	CompletionTimes []string
	UploadSchema    string
}

func (s *Server) handleSubmitForm(c echo.Context) error {
	return s.render(c, http.StatusOK, "submit", s.newPage(c, "Submit a kata", submitData{
		Difficulties:    kata.AllowedDifficulties,
		CompletionTimes: kata.AllowedCompletionTimes,
		UploadSchema:    kata.UploadSchema,
	}))
}

// readSubmission accepts the submit form or a JSON object shaped like one
// bulk-import record.
func readSubmission(c echo.Context) (kata.Submission, error) {
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		var rec kata.Record
		if err := c.Bind(&rec); err != nil {
			return kata.Submission{}, echo.NewHTTPError(http.StatusBadRequest, "invalid kata submission")
		}
		return rec.Submission(), nil
	}
	return kata.Submission{
		Title:          c.FormValue("title"),
		Content:        c.FormValue("content"),
		Topics:         kata.SplitTopics(c.FormValue("topics")),
		Difficulty:     c.FormValue("difficulty"),
		CompletionTime: c.FormValue("completion_time"),
	}, nil
}

func (s *Server) handleSubmit(c echo.Context) error {
	sub, err := readSubmission(c)
	if err != nil {
		return err
	}

	created, err := s.store.CreateKata(c.Request().Context(), currentUserID(c), sub)
	var verr *kata.ValidationError
	if errors.As(err, &verr) {
		if wantsJSON(c) {
			return c.JSON(http.StatusUnprocessableEntity, map[string][]string{"errors": verr.Violations})
		}
		for _, v := range verr.Violations {
			addFlash(c, "error", v)
		}
		return s.redirect(c, "/submit")
	}
	if err != nil {
		return err
	}

	s.metrics.RecordCreated("form")
	if wantsJSON(c) {
		return c.JSON(http.StatusCreated, created)
	}
	addFlash(c, "success", "Kata submitted successfully!")
	return s.redirect(c, fmt.Sprintf("/kata/%d", created.ID))
}

type previewRequest struct {
	Content string `json:"content" form:"content"`
}

func (s *Server) handlePreview(c echo.Context) error {
	var req previewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid preview request")
	}
	html, err := s.markdown.Render(req.Content)
	if err != nil {
		return err
	}
	return c.HTML(http.StatusOK, string(html))
}

type kataData struct {
	Kata      *kata.Kata
	HTML      template.HTML
	IsAuthor  bool
	NoteDraft string
	NoteLimit int
}

func (s *Server) handleViewKata(c echo.Context) error {
	id, err := paramID(c, "Kata")
	if err != nil {
		return err
	}
	return s.showKata(c, http.StatusOK, id, nil)
}

// showKata renders the kata page. A non-nil draft replaces the stored note
// in the note form, so rejected text can be corrected in place.
func (s *Server) showKata(c echo.Context, code int, id int64, draft *string) error {
	k, err := s.store.Kata(c.Request().Context(), id, currentUserID(c))
	if err != nil {
		return storeError(err, "Kata")
	}

	html, err := s.markdown.Render(k.Content)
	if err != nil {
		return err
	}

	data := kataData{
		Kata:      k,
		HTML:      html,
		IsAuthor:  currentUserID(c) == k.AuthorID,
		NoteDraft: k.Note,
		NoteLimit: kata.MaxNoteLength,
	}
	if draft != nil {
		data.NoteDraft = *draft
	}
	return s.render(c, code, "kata", s.newPage(c, k.Title, data))
}

var toggleMessages = map[kata.ActionKind][2]string{
	kata.ActionUpvote:   {"Kata upvoted successfully!", "Upvote removed."},
	kata.ActionSave:     {"Kata saved successfully!", "Kata unsaved."},
	kata.ActionComplete: {"Kata marked as complete!", "Kata unmarked as complete."},
}

func (s *Server) handleToggle(kind kata.ActionKind) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := paramID(c, "Kata")
		if err != nil {
			return err
		}

		res, err := s.store.Toggle(c.Request().Context(), currentUserID(c), id, kind)
		if err != nil {
			return storeError(err, "Kata")
		}
		s.metrics.RecordToggle(string(kind), res.Active)

		if wantsJSON(c) {
			return c.JSON(http.StatusOK, res)
		}

		msgs := toggleMessages[kind]
		if res.Active {
			addFlash(c, "success", msgs[0])
		} else {
			addFlash(c, "info", msgs[1])
		}
		return s.redirect(c, returnTo(c, id))
	}
}

// returnTo picks the page a toggle or note form came from. The index
// keeps its filters and page through the form action's query string.
func returnTo(c echo.Context, id int64) string {
	switch c.FormValue("source") {
	case "index":
		if q := c.QueryString(); q != "" {
			return "/?" + q
		}
		return "/"
	case "saved":
		return "/saved"
	case "completed":
		return "/completed"
	case "my_katas":
		return "/my_katas"
	}
	return fmt.Sprintf("/kata/%d", id)
}

func (s *Server) handleNote(c echo.Context) error {
	id, err := paramID(c, "Kata")
	if err != nil {
		return err
	}

	var remove bool
	switch strings.ToLower(c.FormValue("clear")) {
	case "1", "true", "on", "yes":
		remove = true
	}

	res, err := s.store.SaveNote(c.Request().Context(), currentUserID(c), id, c.FormValue("note"), remove)
	var tooLong *store.NoteTooLongError
	if errors.As(err, &tooLong) {
		if wantsJSON(c) {
			return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": tooLong.Error(), "note": tooLong.Text})
		}
		addFlash(c, "error", tooLong.Error())
		return s.showKata(c, http.StatusUnprocessableEntity, id, &tooLong.Text)
	}
	if err != nil {
		return storeError(err, "Kata")
	}

	if wantsJSON(c) {
		return c.JSON(http.StatusOK, map[string]interface{}{"kata_id": id, "note": res.Content, "deleted": res.Deleted})
	}
	if res.Deleted {
		addFlash(c, "info", "Note deleted.")
	} else {
		addFlash(c, "success", "Note saved.")
	}
	return s.redirect(c, returnTo(c, id))
}

func (s *Server) handleDeleteKata(c echo.Context) error {
	id, err := paramID(c, "Kata")
	if err != nil {
		return err
	}

	err = s.store.DeleteKata(c.Request().Context(), id, currentUserID(c))
	if errors.Is(err, store.ErrNotOwner) && !wantsJSON(c) {
		addFlash(c, "error", "You can only delete your own katas.")
		return s.redirect(c, fmt.Sprintf("/kata/%d", id))
	}
	if err != nil {
		return storeError(err, "Kata")
	}

	if wantsJSON(c) {
		return c.NoContent(http.StatusNoContent)
	}
	addFlash(c, "success", "Kata deleted.")
	return s.redirect(c, "/my_katas")
}

type listData struct {
	Source string
	Katas  []kata.Kata
	Empty  string
}

func (s *Server) handleActionList(kind kata.ActionKind, title string) echo.HandlerFunc {
	source := map[kata.ActionKind]string{kata.ActionSave: "saved", kata.ActionComplete: "completed"}[kind]
	return func(c echo.Context) error {
		katas, err := s.store.KatasByAction(c.Request().Context(), currentUserID(c), kind)
		if err != nil {
			return err
		}
		return s.render(c, http.StatusOK, "list", s.newPage(c, title, listData{
			Source: source,
			Katas:  katas,
			Empty:  "Nothing here yet.",
		}))
	}
}

func (s *Server) handleMyKatas(c echo.Context) error {
	katas, err := s.store.KatasByAuthor(c.Request().Context(), currentUserID(c))
	if err != nil {
		return err
	}
	return s.render(c, http.StatusOK, "list", s.newPage(c, "My Katas", listData{
		Source: "my_katas",
		Katas:  katas,
		Empty:  "You have not submitted any katas yet.",
	}))
}

// importResponse is the JSON summary of a bulk upload.
type importResponse struct {
	Uploaded int      `json:"uploaded"`
	Errors   []string `json:"errors"`
}

func (s *Server) handleBulkUpload(c echo.Context) error {
	var (
		sources    []importer.Source
		readErrors []string
	)

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "could not read request body")
		}
		sources = append(sources, importer.Source{Label: "body", Data: body})
	} else {
		sources = append(sources, importer.Source{Label: "data", Data: []byte(c.FormValue("json_data"))})

		fh, err := c.FormFile("json_file")
		switch {
		case err == nil && fh.Filename != "":
			data, err := readUpload(fh)
			if err != nil {
				readErrors = append(readErrors, "Error reading JSON file: the upload could not be read.")
				s.log.Warn("bulk upload file unreadable", "error", err)
			} else {
				sources = append(sources, importer.Source{Label: "file", Data: data})
			}
		case err != nil && !errors.Is(err, http.ErrMissingFile):
			s.log.Debug("no uploaded file", "error", err)
		}
	}

	res, err := s.importer.Import(c.Request().Context(), currentUserID(c), sources...)
	if errors.Is(err, importer.ErrNoInput) && len(readErrors) == 0 {
		if wantsJSON(c) {
			return echo.NewHTTPError(http.StatusBadRequest, "No JSON data or file provided for bulk upload.")
		}
		addFlash(c, "info", "No JSON data or file provided for bulk upload.")
		return s.redirect(c, "/submit")
	}
	if res == nil {
		res = &importer.Result{}
	}
	if err != nil && !errors.Is(err, importer.ErrNoInput) {
		return err
	}
	msgs := append(readErrors, res.Errors...)

	if wantsJSON(c) {
		if msgs == nil {
			msgs = []string{}
		}
		return c.JSON(http.StatusOK, importResponse{Uploaded: res.Uploaded, Errors: msgs})
	}

	if res.Uploaded > 0 {
		addFlash(c, "success", fmt.Sprintf("Successfully uploaded %d katas.", res.Uploaded))
	}
	for _, m := range msgs {
		addFlash(c, "error", m)
	}
	return s.redirect(c, "/")
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) handleAutocomplete(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("query"))
	if utf8.RuneCountInString(q) < autocompleteMinLength {
		return c.JSON(http.StatusOK, store.Suggestions{Titles: []store.TitleSuggestion{}, Topics: []string{}})
	}

	res, err := s.store.Autocomplete(c.Request().Context(), q, autocompleteLimit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}
