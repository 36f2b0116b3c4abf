package store

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/eleven-am/katas/internal/kata"
	"github.com/eleven-am/katas/internal/listing"
)

// KataPage is one page of a filtered listing.
type KataPage struct {
	Katas      []kata.Kata
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
}

func kataSelect() squirrel.SelectBuilder {
	return psql.Select(listing.KataColumns...).
		From("katas k").
		Join("users u ON k.author_id = u.id")
}

// CreateKata validates sub and writes the kata, its topics and topic links
// as one unit. The full-text row is maintained by trigger.
func (s *Store) CreateKata(ctx context.Context, authorID int64, sub kata.Submission) (*kata.Kata, error) {
	if err := kata.Validate(sub); err != nil {
		return nil, err
	}

	topics := kata.DedupeTopics(sub.Topics)
	created := &kata.Kata{
		AuthorID:       authorID,
		Title:          strings.TrimSpace(sub.Title),
		Content:        sub.Content,
		Difficulty:     sub.Difficulty,
		CompletionTime: sub.CompletionTime,
		CreatedAt:      s.timestamp(),
		Topics:         topics,
	}

	err := s.WithTransaction(ctx, func(tx *Store) error {
		q := psql.Insert("katas").
			Columns("title", "content", "author_id", "difficulty", "completion_time", "topics_text", "created_at").
			Values(created.Title, created.Content, authorID, created.Difficulty, created.CompletionTime,
				strings.Join(topics, " "), created.CreatedAt)
		res, err := tx.execBuilt(ctx, "create_kata", "katas", q)
		if err != nil {
			return err
		}
		if created.ID, err = res.LastInsertId(); err != nil {
			return &Error{Op: "create_kata", Table: "katas", Err: err}
		}

		for _, name := range topics {
			topicID, err := tx.ensureTopic(ctx, name)
			if err != nil {
				return err
			}
			link := psql.Insert("kata_topics").
				Columns("kata_id", "topic_id").
				Values(created.ID, topicID)
			if _, err := tx.execBuilt(ctx, "link_topic", "kata_topics", link); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Debug("kata created", "kata_id", created.ID, "author_id", authorID, "topics", len(topics))
	return created, nil
}

func (s *Store) ensureTopic(ctx context.Context, name string) (int64, error) {
	ins := psql.Insert("topics").
		Columns("name").
		Values(name).
		Suffix("ON CONFLICT(name) DO NOTHING")
	if _, err := s.execBuilt(ctx, "ensure_topic", "topics", ins); err != nil {
		return 0, err
	}

	var id int64
	sel := psql.Select("id").From("topics").Where(squirrel.Eq{"name": name})
	if err := s.getBuilt(ctx, "ensure_topic", "topics", &id, sel); err != nil {
		return 0, err
	}
	return id, nil
}

// Kata loads one kata with its topics and, for a non-zero viewerID, the
// viewer's flags and note.
func (s *Store) Kata(ctx context.Context, id, viewerID int64) (*kata.Kata, error) {
	var k kata.Kata
	q := kataSelect().Where(squirrel.Eq{"k.id": id})
	if err := s.getBuilt(ctx, "get_kata", "katas", &k, q); err != nil {
		return nil, err
	}

	list := []kata.Kata{k}
	if err := s.enrich(ctx, list, viewerID); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// DeleteKata removes a kata authored by userID along with its links,
// actions and notes.
func (s *Store) DeleteKata(ctx context.Context, id, userID int64) error {
	return s.WithTransaction(ctx, func(tx *Store) error {
		var authorID int64
		q := psql.Select("author_id").From("katas").Where(squirrel.Eq{"id": id})
		if err := tx.getBuilt(ctx, "delete_kata", "katas", &authorID, q); err != nil {
			return err
		}
		if authorID != userID {
			return &Error{Op: "delete_kata", Table: "katas", Err: ErrNotOwner}
		}

		for _, table := range []string{"user_kata_actions", "user_kata_notes", "kata_topics"} {
			del := psql.Delete(table).Where(squirrel.Eq{"kata_id": id})
			if _, err := tx.execBuilt(ctx, "delete_kata", table, del); err != nil {
				return err
			}
		}

		del := psql.Delete("katas").Where(squirrel.Eq{"id": id})
		_, err := tx.execBuilt(ctx, "delete_kata", "katas", del)
		return err
	})
}

// ListKatas runs the filtered listing: the total count and one page, each
// kata enriched with topics and the viewer's interaction state.
func (s *Store) ListKatas(ctx context.Context, f listing.Filter, viewerID int64) (*KataPage, error) {
	f = f.Normalize()

	page := &KataPage{Page: f.Page, PageSize: s.composer.PageSize}

	if err := s.getBuilt(ctx, "count_katas", "katas", &page.Total, s.composer.CountQuery(f)); err != nil {
		return nil, err
	}
	page.TotalPages = listing.TotalPages(page.Total, page.PageSize)

	if f.Page > page.TotalPages {
		page.Katas = []kata.Kata{}
		return page, nil
	}
	if err := s.selectBuilt(ctx, "list_katas", "katas", &page.Katas, s.composer.PageQuery(f, viewerID)); err != nil {
		return nil, err
	}
	if err := s.enrich(ctx, page.Katas, viewerID); err != nil {
		return nil, err
	}
	return page, nil
}

// KatasByAction lists katas the user has applied kind to, most recent
// action first.
func (s *Store) KatasByAction(ctx context.Context, userID int64, kind kata.ActionKind) ([]kata.Kata, error) {
	var katas []kata.Kata
	q := kataSelect().
		Join("user_kata_actions a ON a.kata_id = k.id").
		Where(squirrel.Eq{"a.user_id": userID, "a.action_type": string(kind)}).
		OrderBy("a.created_at DESC", "a.rowid DESC")
	if err := s.selectBuilt(ctx, "katas_by_action", "katas", &katas, q); err != nil {
		return nil, err
	}
	if err := s.enrich(ctx, katas, userID); err != nil {
		return nil, err
	}
	return katas, nil
}

// KatasByAuthor lists the katas a user wrote, newest first.
func (s *Store) KatasByAuthor(ctx context.Context, authorID int64) ([]kata.Kata, error) {
	var katas []kata.Kata
	q := kataSelect().
		Where(squirrel.Eq{"k.author_id": authorID}).
		OrderBy("k.created_at DESC", "k.id DESC")
	if err := s.selectBuilt(ctx, "katas_by_author", "katas", &katas, q); err != nil {
		return nil, err
	}
	if err := s.enrich(ctx, katas, authorID); err != nil {
		return nil, err
	}
	return katas, nil
}

func (s *Store) enrich(ctx context.Context, katas []kata.Kata, viewerID int64) error {
	if err := s.attachTopics(ctx, katas); err != nil {
		return err
	}
	return s.Resolve(ctx, viewerID, katas)
}

func kataIDs(katas []kata.Kata) []int64 {
	ids := make([]int64, len(katas))
	for i := range katas {
		ids[i] = katas[i].ID
	}
	return ids
}

func indexByID(katas []kata.Kata) map[int64]*kata.Kata {
	idx := make(map[int64]*kata.Kata, len(katas))
	for i := range katas {
		idx[katas[i].ID] = &katas[i]
	}
	return idx
}

// attachTopics loads topic names for all katas in one query, in the order
// they were linked.
func (s *Store) attachTopics(ctx context.Context, katas []kata.Kata) error {
	if len(katas) == 0 {
		return nil
	}

	var rows []struct {
		KataID int64  `db:"kata_id"`
		Name   string `db:"name"`
	}
	q := psql.Select("kt.kata_id", "t.name").
		From("kata_topics kt").
		Join("topics t ON t.id = kt.topic_id").
		Where(squirrel.Eq{"kt.kata_id": kataIDs(katas)}).
		OrderBy("kt.kata_id", "kt.rowid")
	if err := s.selectBuilt(ctx, "attach_topics", "kata_topics", &rows, q); err != nil {
		return err
	}

	idx := indexByID(katas)
	for _, k := range idx {
		k.Topics = []string{}
	}
	for _, r := range rows {
		if k, ok := idx[r.KataID]; ok {
			k.Topics = append(k.Topics, r.Name)
		}
	}
	return nil
}

// Suggestions is the typeahead result.
type Suggestions struct {
	Titles []TitleSuggestion `json:"titles"`
	Topics []string          `json:"topics"`
}

// TitleSuggestion is a kata title matched by typeahead.
type TitleSuggestion struct {
	ID    int64  `db:"id" json:"id"`
	Title string `db:"title" json:"title"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Autocomplete returns up to limit titles and topic names containing term.
func (s *Store) Autocomplete(ctx context.Context, term string, limit int) (*Suggestions, error) {
	pattern := "%" + likeEscaper.Replace(strings.TrimSpace(term)) + "%"
	out := &Suggestions{Titles: []TitleSuggestion{}, Topics: []string{}}

	titles := psql.Select("id", "title").
		From("katas").
		Where(`title LIKE ? ESCAPE '\'`, pattern).
		OrderBy("upvotes DESC", "id DESC").
		Limit(uint64(limit))
	if err := s.selectBuilt(ctx, "autocomplete", "katas", &out.Titles, titles); err != nil {
		return nil, err
	}

	topics := psql.Select("name").
		From("topics").
		Where(`name LIKE ? ESCAPE '\'`, pattern).
		OrderBy("name").
		Limit(uint64(limit))
	if err := s.selectBuilt(ctx, "autocomplete", "topics", &out.Topics, topics); err != nil {
		return nil, err
	}
	return out, nil
}
