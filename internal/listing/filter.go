// Package listing composes the filtered, sorted and paginated kata listing
// queries together with their matching count queries.
package listing

import (
	"net/url"
	"strconv"
	"strings"
)

// DefaultPageSize is the number of katas shown per listing page.
const DefaultPageSize = 20

// Sort keys.
const (
	SortCreatedAt = "created_at"
	SortUpvotes   = "upvotes"
	SortSaves     = "saves"
)

// Date buckets accepted by the created_since filter.
const (
	SinceToday     = "today"
	SinceThisWeek  = "this_week"
	SinceThisMonth = "this_month"
	SinceThisYear  = "this_year"
)

// Filter is the open set of optional listing parameters. Empty fields
// do not constrain the result.
type Filter struct {
	Difficulty     string
	CompletionTime string
	Topic          string
	Search         string
	CreatedSince   string
	SortBy         string
	Page           int
}

// ParseFilter reads a filter from listing query parameters.
func ParseFilter(q url.Values) Filter {
	f := Filter{
		Difficulty:     strings.TrimSpace(q.Get("difficulty")),
		CompletionTime: strings.TrimSpace(q.Get("completion_time")),
		Topic:          strings.TrimSpace(q.Get("topic")),
		Search:         strings.TrimSpace(q.Get("search")),
		CreatedSince:   strings.TrimSpace(q.Get("created_since")),
		SortBy:         strings.TrimSpace(q.Get("sort_by")),
		Page:           1,
	}
	if p, err := strconv.Atoi(q.Get("page")); err == nil {
		f.Page = p
	}
	return f.Normalize()
}

// Normalize clamps the page and falls back to the default sort key.
func (f Filter) Normalize() Filter {
	if f.Page < 1 {
		f.Page = 1
	}
	switch f.SortBy {
	case SortUpvotes, SortSaves, SortCreatedAt:
	default:
		f.SortBy = SortCreatedAt
	}
	return f
}

// Values encodes the non-empty filter fields, without the page, so
// pagination and redirect links can carry the current filter.
func (f Filter) Values() url.Values {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("difficulty", f.Difficulty)
	set("completion_time", f.CompletionTime)
	set("topic", f.Topic)
	set("search", f.Search)
	set("created_since", f.CreatedSince)
	if f.SortBy != "" && f.SortBy != SortCreatedAt {
		v.Set("sort_by", f.SortBy)
	}
	return v
}
