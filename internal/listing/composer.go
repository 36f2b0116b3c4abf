package listing

import (
	"math"
	"time"

	"github.com/Masterminds/squirrel"
)

// KataColumns is the select list shared by every kata listing.
var KataColumns = []string{
	"k.id", "k.title", "k.content", "k.author_id", "u.display_name AS author_name",
	"k.upvotes", "k.saves", "k.completions", "k.difficulty", "k.completion_time", "k.created_at",
}

// Predicate is one AND-ed term of a listing filter.
type Predicate struct {
	Name string
	Cond squirrel.Sqlizer
}

// Composer builds listing and count queries.
type Composer struct {
	PageSize int
	Now      func() time.Time
}

// NewComposer returns a composer with the given page size and the wall clock.
func NewComposer(pageSize int) *Composer {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Composer{PageSize: pageSize, Now: time.Now}
}

func (c *Composer) now() time.Time {
	if c.Now == nil {
		return time.Now().UTC()
	}
	return c.Now().UTC()
}

// Predicates returns the filter's conjunctive terms in a fixed order.
func (c *Composer) Predicates(f Filter) []Predicate {
	var preds []Predicate

	if f.Difficulty != "" {
		preds = append(preds, Predicate{"difficulty", squirrel.Eq{"k.difficulty": f.Difficulty}})
	}
	if f.CompletionTime != "" {
		preds = append(preds, Predicate{"completion_time", squirrel.Eq{"k.completion_time": f.CompletionTime}})
	}
	if f.Topic != "" {
		preds = append(preds, Predicate{"topic", squirrel.Expr(
			"k.id IN (SELECT kt.kata_id FROM kata_topics kt JOIN topics t ON kt.topic_id = t.id WHERE t.name = ?)",
			f.Topic,
		)})
	}
	if match := MatchExpression(f.Search); match != "" {
		preds = append(preds, Predicate{"search", squirrel.Expr(
			"k.id IN (SELECT rowid FROM katas_fts WHERE katas_fts MATCH ?)",
			match,
		)})
	}
	if bound, ok := CreatedSinceBound(f.CreatedSince, c.now()); ok {
		preds = append(preds, Predicate{"created_since", squirrel.GtOrEq{"k.created_at": bound.Unix()}})
	}

	return preds
}

func (c *Composer) where(f Filter) squirrel.And {
	and := squirrel.And{}
	for _, p := range c.Predicates(f) {
		and = append(and, p.Cond)
	}
	return and
}

func base(columns ...string) squirrel.SelectBuilder {
	return squirrel.Select(columns...).
		From("katas k").
		Join("users u ON k.author_id = u.id").
		PlaceholderFormat(squirrel.Question)
}

// CountQuery counts every kata matching f, ignoring pagination.
func (c *Composer) CountQuery(f Filter) squirrel.SelectBuilder {
	b := base("COUNT(*)")
	if where := c.where(f); len(where) > 0 {
		b = b.Where(where)
	}
	return b
}

// PageQuery selects one page of katas matching f. A non-zero viewerID
// adds a leading tier key: untouched katas first, saved ones next and
// completed ones last.
func (c *Composer) PageQuery(f Filter, viewerID int64) squirrel.SelectBuilder {
	f = f.Normalize()

	b := base(KataColumns...)
	if where := c.where(f); len(where) > 0 {
		b = b.Where(where)
	}

	if viewerID != 0 {
		b = b.OrderByClause(
			"CASE WHEN EXISTS (SELECT 1 FROM user_kata_actions a WHERE a.kata_id = k.id AND a.user_id = ? AND a.action_type = 'complete') THEN 2 "+
				"WHEN EXISTS (SELECT 1 FROM user_kata_actions a WHERE a.kata_id = k.id AND a.user_id = ? AND a.action_type = 'save') THEN 1 "+
				"ELSE 0 END ASC",
			viewerID, viewerID,
		)
	}

	return b.OrderBy("k."+f.SortBy+" DESC", "k.id DESC").
		Limit(uint64(c.PageSize)).
		Offset(c.Offset(f.Page))
}

// Offset is the row offset of a 1-based page. It never exceeds what
// SQLite accepts as a signed 64-bit OFFSET; such pages are simply empty.
func (c *Composer) Offset(page int) uint64 {
	if page < 1 {
		page = 1
	}
	size := uint64(c.PageSize)
	if size == 0 {
		return 0
	}
	skip := uint64(page - 1)
	if limit := uint64(math.MaxInt64) / size; skip > limit {
		skip = limit
	}
	return skip * size
}

// TotalPages is ceil(total / pageSize).
func TotalPages(total int64, pageSize int) int {
	if total <= 0 || pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
