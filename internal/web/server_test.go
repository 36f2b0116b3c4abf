package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eleven-am/katas/internal/config"
	"github.com/eleven-am/katas/internal/listing"
	"github.com/eleven-am/katas/internal/logger"
	"github.com/eleven-am/katas/internal/metrics"
	"github.com/eleven-am/katas/internal/session"
	"github.com/eleven-am/katas/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newTestServer(t *testing.T) (*client, *store.Store) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, store.NewDBConfig(filepath.Join(t.TempDir(), "web.db")),
		store.WithPageSize(5), store.WithLogger(logger.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))

	srv, err := NewServer(config.Default().Server, Deps{
		Store:    st,
		Sessions: session.NewManager(session.Config{Secret: "test-secret"}),
		Logger:   logger.Nop(),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &client{
		t:    t,
		base: ts.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, st
}

func (c *client) do(req *http.Request) (*http.Response, string) {
	c.t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, string(body)
}

func (c *client) get(path string) (*http.Response, string) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *client) getJSON(path string) (*http.Response, string) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	require.NoError(c.t, err)
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *client) postForm(path string, form url.Values) (*http.Response, string) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) postFormJSON(path string, form url.Values) (*http.Response, string) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *client) postJSON(path string, body string) (*http.Response, string) {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewBufferString(body))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) login(secret, name string) {
	c.t.Helper()
	resp, _ := c.postForm("/login", url.Values{"secret_username": {secret}, "display_name": {name}})
	require.Equal(c.t, http.StatusSeeOther, resp.StatusCode)
}

func kataForm(title string) url.Values {
	return url.Values{
		"title":           {title},
		"content":         {"Reverse a **string** in place. $x^2$"},
		"topics":          {"strings, arrays"},
		"difficulty":      {"easy"},
		"completion_time": {"<10 mins"},
	}
}

func TestHealth(t *testing.T) {
	c, _ := newTestServer(t)

	resp, body := c.get("/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestAuthRequired(t *testing.T) {
	c, _ := newTestServer(t)

	resp, _ := c.get("/submit")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	_, body := c.get("/login")
	assert.Contains(t, body, "Please log in to continue.")

	resp, _ = c.postFormJSON("/kata/1/upvote", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLoginRequiresDisplayNameToRegister(t *testing.T) {
	c, _ := newTestServer(t)

	resp, _ := c.postForm("/login", url.Values{"secret_username": {"alice-secret"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	_, body := c.get("/login")
	assert.Contains(t, body, "Please provide a display name for registration.")
}

func TestKataNotFound(t *testing.T) {
	c, _ := newTestServer(t)

	resp, body := c.get("/kata/999")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Kata not found")

	resp, _ = c.get("/kata/abc")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSubmitRejectsInvalidKata(t *testing.T) {
	c, st := newTestServer(t)
	c.login("alice-secret", "Alice")

	form := kataForm(strings.Repeat("t", 101))
	form.Set("topics", "a,b,c,d,e,f")
	resp, _ := c.postForm("/submit", form)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/submit", resp.Header.Get("Location"))

	_, body := c.get("/submit")
	assert.Contains(t, body, "Title cannot be longer than 100 characters.")
	assert.Contains(t, body, "You can only add up to 5 topics.")

	page, err := st.ListKatas(context.Background(), listingAll(), 0)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestToggleJSON(t *testing.T) {
	c, _ := newTestServer(t)
	c.login("alice-secret", "Alice")
	c.postForm("/submit", kataForm("Reverse a string"))

	var res store.ToggleResult
	resp, body := c.postFormJSON("/kata/1/upvote", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Equal(t, store.ToggleResult{KataID: 1, Action: "upvote", Active: true, Count: 1}, res)

	_, body = c.postFormJSON("/kata/1/upvote", nil)
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Equal(t, store.ToggleResult{KataID: 1, Action: "upvote", Active: false, Count: 0}, res)

	resp, _ = c.postFormJSON("/kata/42/save", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestToggleRedirectsToSource(t *testing.T) {
	c, _ := newTestServer(t)
	c.login("alice-secret", "Alice")
	c.postForm("/submit", kataForm("Reverse a string"))

	tests := []struct {
		path   string
		source string
		want   string
	}{
		{"/kata/1/save?difficulty=easy&page=2", "index", "/?difficulty=easy&page=2"},
		{"/kata/1/save", "saved", "/saved"},
		{"/kata/1/complete", "completed", "/completed"},
		{"/kata/1/complete", "my_katas", "/my_katas"},
		{"/kata/1/upvote", "", "/kata/1"},
	}
	for _, tt := range tests {
		resp, _ := c.postForm(tt.path, url.Values{"source": {tt.source}})
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, tt.path)
		assert.Equal(t, tt.want, resp.Header.Get("Location"), tt.path)
	}
}

func TestNoteTooLong(t *testing.T) {
	c, _ := newTestServer(t)
	c.login("alice-secret", "Alice")
	c.postForm("/submit", kataForm("Reverse a string"))

	long := strings.Repeat("n", 201)
	resp, body := c.postFormJSON("/kata/1/note", url.Values{"note": {long}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Note cannot be longer than 200 characters.")

	resp, body = c.postForm("/kata/1/note", url.Values{"note": {long}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "Note cannot be longer than 200 characters.")
	assert.Contains(t, body, long)

	_, body = c.get("/kata/1")
	assert.NotContains(t, body, long)
}

func TestLongNoteDraftStaysOutOfCookies(t *testing.T) {
	c, st := newTestServer(t)
	c.login("alice-secret", "Alice")
	c.postForm("/submit", kataForm("Reverse a string"))
	c.postForm("/kata/1/note", url.Values{"note": {"keep me"}})

	long := strings.Repeat("n", 5000)
	resp, body := c.postForm("/kata/1/note", url.Values{"note": {long}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, long)
	for _, h := range resp.Header.Values("Set-Cookie") {
		assert.Less(t, len(h), 4096)
	}

	note, err := st.Note(context.Background(), 1, 1)
	require.NoError(t, err)
	assert.Equal(t, "keep me", note)
}

func TestBulkUploadErrorsFitInFlashCookie(t *testing.T) {
	c, _ := newTestServer(t)
	c.login("alice-secret", "Alice")

	var records []string
	for i := 0; i < 40; i++ {
		records = append(records, fmt.Sprintf(`{"title": "%s %d", "content": "c", "topics": "a", "difficulty": "easy", "completion_time": "<10 mins"}`, strings.Repeat("t", 100), i))
	}
	resp, _ := c.postForm("/bulk_upload_katas", url.Values{"json_data": {"[" + strings.Join(records, ",") + "]"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	for _, h := range resp.Header.Values("Set-Cookie") {
		assert.Less(t, len(h), 4096)
	}

	_, body := c.get("/")
	assert.Contains(t, body, "Title cannot be longer than 100 characters.")
	assert.Contains(t, body, "more messages not shown.")
}

func TestSubmitJSON(t *testing.T) {
	c, _ := newTestServer(t)
	c.login("alice-secret", "Alice")

	resp, body := c.postJSON("/submit", `{"title": "Two Sum", "content": "Find two numbers.", "topics": ["arrays", "hashing"], "difficulty": "easy", "completion_time": "<10 mins"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		ID     int64    `json:"id"`
		Title  string   `json:"title"`
		Topics []string `json:"topics"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &created))
	assert.Equal(t, "Two Sum", created.Title)
	assert.Equal(t, []string{"arrays", "hashing"}, created.Topics)

	resp, body = c.postJSON("/submit", `{"title": "", "content": "x", "topics": "a", "difficulty": "easy", "completion_time": "<10 mins"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.JSONEq(t, `{"errors":["Title is required."]}`, body)

	resp, _ = c.postJSON("/submit", `{"title": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHugePageNumber(t *testing.T) {
	c, _ := newTestServer(t)
	c.login("alice-secret", "Alice")
	c.postForm("/submit", kataForm("Reverse a string"))

	resp, body := c.get("/?page=9223372036854775807")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "Reverse a string")
}

func TestFailedRequestsAreRecordedAs500(t *testing.T) {
	c, st := newTestServer(t)
	failed := metrics.Get().RequestDuration.WithLabelValues(http.MethodGet, "/", "500").(prometheus.Metric)
	ok := metrics.Get().RequestDuration.WithLabelValues(http.MethodGet, "/", "200").(prometheus.Metric)
	failedBefore, okBefore := sampleCount(t, failed), sampleCount(t, ok)

	require.NoError(t, st.Close())
	resp, _ := c.get("/")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	assert.Equal(t, failedBefore+1, sampleCount(t, failed))
	assert.Equal(t, okBefore, sampleCount(t, ok))
}

func sampleCount(t *testing.T, m prometheus.Metric) uint64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	return out.GetHistogram().GetSampleCount()
}

func TestAutocomplete(t *testing.T) {
	c, _ := newTestServer(t)
	c.login("alice-secret", "Alice")
	c.postForm("/submit", kataForm("Reverse a string"))

	_, body := c.get("/autocomplete?query=R")
	assert.JSONEq(t, `{"titles":[],"topics":[]}`, body)

	_, body = c.get("/autocomplete?query=rev")
	assert.JSONEq(t, `{"titles":[{"id":1,"title":"Reverse a string"}],"topics":[]}`, body)

	_, body = c.get("/autocomplete?query=str")
	assert.JSONEq(t, `{"titles":[{"id":1,"title":"Reverse a string"}],"topics":["strings"]}`, body)
}

func TestPreview(t *testing.T) {
	c, _ := newTestServer(t)

	resp, body := c.postJSON("/preview", `{"content":"**bold** <script>alert(1)</script>"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "<strong>bold</strong>")
	assert.NotContains(t, body, "<script>")
}

func TestBulkUploadJSONBody(t *testing.T) {
	c, _ := newTestServer(t)
	c.login("alice-secret", "Alice")

	payload := `[
		{"title": "One", "content": "c", "topics": "a, b", "difficulty": "easy", "completion_time": "<10 mins"},
		{"title": "Two", "content": "c", "topics": ["a"], "difficulty": "impossible", "completion_time": "<10 mins"}
	]`
	resp, body := c.postJSON("/bulk_upload_katas", payload)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res importResponse
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Equal(t, 1, res.Uploaded)
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "Error for kata 'Two': "))
}

func TestBulkUploadWithoutInput(t *testing.T) {
	c, _ := newTestServer(t)
	c.login("alice-secret", "Alice")

	resp, _ := c.postForm("/bulk_upload_katas", url.Values{})
	assert.Equal(t, "/submit", resp.Header.Get("Location"))
	_, body := c.get("/submit")
	assert.Contains(t, body, "No JSON data or file provided for bulk upload.")
}

func TestPrompts(t *testing.T) {
	c, _ := newTestServer(t)
	c.login("alice-secret", "Alice")
	c.postForm("/submit", kataForm("Reverse a string"))
	c.postForm("/kata/1/upvote", nil)

	resp, body := c.postFormJSON("/save_prompt", url.Values{"name": {"daily"}, "content": {"Pick from {{allowed_difficulties}} {{last_10_upvoted}}"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"name":"daily"`)

	resp, body = c.getJSON("/get_prompt/1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "{{allowed_difficulties}}")

	_, body = c.postFormJSON("/compile_prompt", url.Values{"prompt_id": {"1"}})
	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Contains(t, out["compiled"], "Pick from easy, medium, hard")
	assert.Contains(t, out["compiled"], `"title": "Reverse a string"`)

	other := *c
	jar, _ := cookiejar.New(nil)
	other.http = &http.Client{Jar: jar, CheckRedirect: c.http.CheckRedirect}
	other.login("bob-secret", "Bob")
	resp, _ = other.getJSON("/get_prompt/1")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = c.postForm("/delete_prompt/1", nil)
	assert.Equal(t, "/prompts", resp.Header.Get("Location"))
	resp, _ = c.getJSON("/get_prompt/1")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEndToEnd(t *testing.T) {
	c, st := newTestServer(t)

	c.login("alice-secret", "Alice")
	_, body := c.get("/")
	assert.Contains(t, body, "Welcome! Your secret username is alice-secret.")

	resp, _ := c.postForm("/submit", kataForm("Reverse a string"))
	require.Equal(t, "/kata/1", resp.Header.Get("Location"))

	_, body = c.get("/kata/1")
	assert.Contains(t, body, "Kata submitted successfully!")
	assert.Contains(t, body, "<strong>string</strong>")
	assert.Contains(t, body, "Delete kata")

	_, body = c.get("/?difficulty=easy")
	assert.Contains(t, body, "Reverse a string")
	_, body = c.get("/?difficulty=hard")
	assert.NotContains(t, body, "Reverse a string")

	var res store.ToggleResult
	_, body = c.postFormJSON("/kata/1/upvote", nil)
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.True(t, res.Active)
	assert.EqualValues(t, 1, res.Count)
	_, body = c.postFormJSON("/kata/1/upvote", nil)
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.False(t, res.Active)
	assert.EqualValues(t, 0, res.Count)

	c.postForm("/kata/1/save", url.Values{"source": {"kata"}})
	_, body = c.get("/saved")
	assert.Contains(t, body, "Reverse a string")

	c.postForm("/kata/1/complete", url.Values{"source": {"kata"}})
	_, body = c.get("/completed")
	assert.Contains(t, body, "Reverse a string")

	c.postForm("/kata/1/note", url.Values{"note": {"try two pointers"}})
	_, body = c.get("/kata/1")
	assert.Contains(t, body, "try two pointers")

	_, body = c.get("/?search=Reve")
	assert.Contains(t, body, "Reverse a string")
	_, body = c.get("/?search=zebra")
	assert.NotContains(t, body, "Reverse a string")

	resp, _ = c.postForm("/delete_account", nil)
	assert.Equal(t, "/", resp.Header.Get("Location"))
	_, body = c.get("/")
	assert.Contains(t, body, "Your account has been deleted.")
	assert.Contains(t, body, "Log in")

	resp, _ = c.get("/my_katas")
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	page, err := st.ListKatas(context.Background(), listingAll(), 0)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func listingAll() listing.Filter {
	return listing.Filter{Page: 1}
}
