package store

import (
	"context"
	"fmt"

	"github.com/eleven-am/katas/internal/kata"
)

// DeleteAccount removes a user and everything they own in one transaction:
// their katas with the links, actions and notes attached to them, the
// user's own actions (decrementing the counters they contributed), notes,
// prompts and finally the user row.
func (s *Store) DeleteAccount(ctx context.Context, userID int64) error {
	const ownKatas = "SELECT id FROM katas WHERE author_id = ?"

	err := s.WithTransaction(ctx, func(tx *Store) error {
		for _, kind := range kata.ActionKinds {
			col := kind.CounterColumn()
			stmt := fmt.Sprintf(
				"UPDATE katas SET %[1]s = %[1]s - 1 WHERE id IN (SELECT kata_id FROM user_kata_actions WHERE user_id = ? AND action_type = ?)",
				col,
			)
			if _, err := tx.exec(ctx, "delete_account", "katas", stmt, userID, string(kind)); err != nil {
				return err
			}
		}

		steps := []struct {
			table string
			stmt  string
			args  []interface{}
		}{
			{"user_kata_actions", "DELETE FROM user_kata_actions WHERE user_id = ?", []interface{}{userID}},
			{"user_kata_actions", "DELETE FROM user_kata_actions WHERE kata_id IN (" + ownKatas + ")", []interface{}{userID}},
			{"user_kata_notes", "DELETE FROM user_kata_notes WHERE user_id = ? OR kata_id IN (" + ownKatas + ")", []interface{}{userID, userID}},
			{"kata_topics", "DELETE FROM kata_topics WHERE kata_id IN (" + ownKatas + ")", []interface{}{userID}},
			{"katas", "DELETE FROM katas WHERE author_id = ?", []interface{}{userID}},
			{"prompts", "DELETE FROM prompts WHERE user_id = ?", []interface{}{userID}},
		}
		for _, step := range steps {
			if _, err := tx.exec(ctx, "delete_account", step.table, step.stmt, step.args...); err != nil {
				return err
			}
		}

		res, err := tx.exec(ctx, "delete_account", "users", "DELETE FROM users WHERE id = ?", userID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return &Error{Op: "delete_account", Table: "users", Err: ErrNotFound}
		}
		return nil
	})
	if err != nil {
		s.log.Error("account deletion rolled back", "user_id", userID, "error", err)
		return err
	}

	s.log.Info("account deleted", "user_id", userID)
	return nil
}
