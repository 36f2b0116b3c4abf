package store

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/Masterminds/squirrel"
	"github.com/eleven-am/katas/internal/kata"
)

// ToggleResult is the state after a toggle.
type ToggleResult struct {
	KataID int64           `json:"kata_id"`
	Action kata.ActionKind `json:"action"`
	Active bool            `json:"active"`
	Count  int64           `json:"count"`
}

// Resolve sets the viewer's upvoted, saved and completed flags and note on
// every kata, with one query for actions and one for notes. A zero viewerID
// leaves everything unset.
func (s *Store) Resolve(ctx context.Context, viewerID int64, katas []kata.Kata) error {
	for i := range katas {
		katas[i].IsUpvoted, katas[i].IsSaved, katas[i].IsCompleted = false, false, false
		katas[i].Note = ""
	}
	if viewerID == 0 || len(katas) == 0 {
		return nil
	}

	ids := kataIDs(katas)
	idx := indexByID(katas)

	var actions []struct {
		KataID int64  `db:"kata_id"`
		Kind   string `db:"action_type"`
	}
	aq := psql.Select("kata_id", "action_type").
		From("user_kata_actions").
		Where(squirrel.Eq{"user_id": viewerID}).
		Where(squirrel.Eq{"kata_id": ids})
	if err := s.selectBuilt(ctx, "resolve_actions", "user_kata_actions", &actions, aq); err != nil {
		return err
	}
	for _, a := range actions {
		k, ok := idx[a.KataID]
		if !ok {
			continue
		}
		switch kata.ActionKind(a.Kind) {
		case kata.ActionUpvote:
			k.IsUpvoted = true
		case kata.ActionSave:
			k.IsSaved = true
		case kata.ActionComplete:
			k.IsCompleted = true
		}
	}

	var notes []struct {
		KataID  int64  `db:"kata_id"`
		Content string `db:"content"`
	}
	nq := psql.Select("kata_id", "content").
		From("user_kata_notes").
		Where(squirrel.Eq{"user_id": viewerID}).
		Where(squirrel.Eq{"kata_id": ids})
	if err := s.selectBuilt(ctx, "resolve_notes", "user_kata_notes", &notes, nq); err != nil {
		return err
	}
	for _, n := range notes {
		if k, ok := idx[n.KataID]; ok {
			k.Note = n.Content
		}
	}
	return nil
}

// Toggle flips one action for (userID, kataID). The row is removed with a
// conditional delete when present and otherwise inserted with ON CONFLICT
// DO NOTHING, so the unique key arbitrates concurrent requests and the
// counter only moves when a row actually changed.
func (s *Store) Toggle(ctx context.Context, userID, kataID int64, kind kata.ActionKind) (*ToggleResult, error) {
	column := kind.CounterColumn()
	if column == "" {
		return nil, &Error{Op: "toggle", Table: "user_kata_actions", Err: ErrCheck}
	}

	result := &ToggleResult{KataID: kataID, Action: kind}

	err := s.WithTransaction(ctx, func(tx *Store) error {
		if err := tx.kataExists(ctx, "toggle", kataID); err != nil {
			return err
		}

		del := psql.Delete("user_kata_actions").
			Where(squirrel.Eq{"user_id": userID}).
			Where(squirrel.Eq{"kata_id": kataID}).
			Where(squirrel.Eq{"action_type": string(kind)})
		res, err := tx.execBuilt(ctx, "toggle", "user_kata_actions", del)
		if err != nil {
			return err
		}
		removed, err := res.RowsAffected()
		if err != nil {
			return &Error{Op: "toggle", Table: "user_kata_actions", Err: err}
		}
		if removed > 0 {
			result.Active = false
			result.Count, err = tx.bumpCounter(ctx, kataID, column, -1)
			return err
		}

		ins := psql.Insert("user_kata_actions").
			Columns("user_id", "kata_id", "action_type", "created_at").
			Values(userID, kataID, string(kind), tx.timestamp()).
			Suffix("ON CONFLICT DO NOTHING")
		res, err = tx.execBuilt(ctx, "toggle", "user_kata_actions", ins)
		if err != nil {
			return err
		}
		inserted, err := res.RowsAffected()
		if err != nil {
			return &Error{Op: "toggle", Table: "user_kata_actions", Err: err}
		}

		result.Active = true
		if inserted > 0 {
			result.Count, err = tx.bumpCounter(ctx, kataID, column, 1)
			return err
		}
		// applied by a concurrent request that already counted it
		q := psql.Select(column).From("katas").Where(squirrel.Eq{"id": kataID})
		return tx.getBuilt(ctx, "toggle", "katas", &result.Count, q)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) kataExists(ctx context.Context, op string, kataID int64) error {
	var id int64
	q := psql.Select("id").From("katas").Where(squirrel.Eq{"id": kataID})
	return s.getBuilt(ctx, op, "katas", &id, q)
}

func (s *Store) bumpCounter(ctx context.Context, kataID int64, column string, delta int) (int64, error) {
	var count int64
	q := psql.Update("katas").
		Set(column, squirrel.Expr(column+" + ?", delta)).
		Where(squirrel.Eq{"id": kataID}).
		Suffix("RETURNING " + column)
	if err := s.getBuilt(ctx, "toggle", "katas", &count, q); err != nil {
		return 0, err
	}
	return count, nil
}

// NoteResult reports what SaveNote did.
type NoteResult struct {
	Content string
	Deleted bool
}

// SaveNote upserts the user's note on a kata. Blank text or clear removes
// it. Text over the limit is rejected without touching the stored note.
func (s *Store) SaveNote(ctx context.Context, userID, kataID int64, text string, clear bool) (*NoteResult, error) {
	text = strings.TrimSpace(text)
	if !clear && utf8.RuneCountInString(text) > kata.MaxNoteLength {
		return nil, &NoteTooLongError{Text: text, Limit: kata.MaxNoteLength}
	}

	if err := s.kataExists(ctx, "save_note", kataID); err != nil {
		return nil, err
	}

	if clear || text == "" {
		del := psql.Delete("user_kata_notes").
			Where(squirrel.Eq{"user_id": userID}).
			Where(squirrel.Eq{"kata_id": kataID})
		if _, err := s.execBuilt(ctx, "clear_note", "user_kata_notes", del); err != nil {
			return nil, err
		}
		return &NoteResult{Deleted: true}, nil
	}

	ins := psql.Insert("user_kata_notes").
		Columns("user_id", "kata_id", "content", "updated_at").
		Values(userID, kataID, text, s.timestamp()).
		Suffix("ON CONFLICT(user_id, kata_id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at")
	if _, err := s.execBuilt(ctx, "save_note", "user_kata_notes", ins); err != nil {
		return nil, err
	}
	return &NoteResult{Content: text}, nil
}

// Note returns the user's note on a kata, or "" when there is none.
func (s *Store) Note(ctx context.Context, userID, kataID int64) (string, error) {
	var notes []string
	q := psql.Select("content").
		From("user_kata_notes").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"kata_id": kataID})
	if err := s.selectBuilt(ctx, "get_note", "user_kata_notes", &notes, q); err != nil {
		return "", err
	}
	if len(notes) == 0 {
		return "", nil
	}
	return notes[0], nil
}
