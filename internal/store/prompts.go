package store

import (
	"context"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/eleven-am/katas/internal/kata"
)

// SavePrompt creates the user's prompt called name, or replaces its
// content when one already exists.
func (s *Store) SavePrompt(ctx context.Context, userID int64, name, content string) (*kata.Prompt, error) {
	name = strings.TrimSpace(name)
	p := &kata.Prompt{UserID: userID, Name: name, Content: content}

	q := psql.Insert("prompts").
		Columns("user_id", "name", "content").
		Values(userID, name, content).
		Suffix("ON CONFLICT(user_id, name) DO UPDATE SET content = excluded.content RETURNING id")
	if err := s.getBuilt(ctx, "save_prompt", "prompts", &p.ID, q); err != nil {
		return nil, err
	}
	return p, nil
}

// Prompt loads a prompt owned by userID.
func (s *Store) Prompt(ctx context.Context, id, userID int64) (*kata.Prompt, error) {
	var p kata.Prompt
	q := psql.Select("id", "user_id", "name", "content").
		From("prompts").
		Where(squirrel.Eq{"id": id})
	if err := s.getBuilt(ctx, "get_prompt", "prompts", &p, q); err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, &Error{Op: "get_prompt", Table: "prompts", Err: ErrNotOwner}
	}
	return &p, nil
}

// Prompts lists the user's prompts by name.
func (s *Store) Prompts(ctx context.Context, userID int64) ([]kata.Prompt, error) {
	prompts := []kata.Prompt{}
	q := psql.Select("id", "user_id", "name", "content").
		From("prompts").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("name")
	if err := s.selectBuilt(ctx, "list_prompts", "prompts", &prompts, q); err != nil {
		return nil, err
	}
	return prompts, nil
}

// DeletePrompt removes a prompt owned by userID.
func (s *Store) DeletePrompt(ctx context.Context, id, userID int64) error {
	return s.WithTransaction(ctx, func(tx *Store) error {
		if _, err := tx.Prompt(ctx, id, userID); err != nil {
			return err
		}
		del := psql.Delete("prompts").Where(squirrel.Eq{"id": id})
		_, err := tx.execBuilt(ctx, "delete_prompt", "prompts", del)
		return err
	})
}

// RecentSnapshots returns up to limit katas the user most recently applied
// kind to, newest first. Katas deleted since the action are skipped.
func (s *Store) RecentSnapshots(ctx context.Context, userID int64, kind kata.ActionKind, limit int) ([]kata.Snapshot, error) {
	var ids []int64
	q := psql.Select("kata_id").
		From("user_kata_actions").
		Where(squirrel.Eq{"user_id": userID}).
		Where(squirrel.Eq{"action_type": string(kind)}).
		OrderBy("created_at DESC", "rowid DESC").
		Limit(uint64(limit))
	if err := s.selectBuilt(ctx, "recent_actions", "user_kata_actions", &ids, q); err != nil {
		return nil, err
	}

	snapshots := []kata.Snapshot{}
	if len(ids) == 0 {
		return snapshots, nil
	}

	var katas []kata.Kata
	if err := s.selectBuilt(ctx, "recent_katas", "katas", &katas, kataSelect().Where(squirrel.Eq{"k.id": ids})); err != nil {
		return nil, err
	}
	if err := s.attachTopics(ctx, katas); err != nil {
		return nil, err
	}

	idx := indexByID(katas)
	for _, id := range ids {
		k, ok := idx[id]
		if !ok {
			continue
		}
		snapshots = append(snapshots, kata.Snapshot{
			Title:          k.Title,
			Content:        k.Content,
			Difficulty:     k.Difficulty,
			CompletionTime: k.CompletionTime,
			Topics:         k.Topics,
		})
	}
	return snapshots, nil
}
