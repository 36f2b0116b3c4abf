package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/eleven-am/katas/internal/kata"
	"github.com/eleven-am/katas/internal/logger"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mockNow = time.Date(2024, time.May, 16, 15, 30, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	db := sqlx.NewDb(mockDB, DriverName)
	s := New(db, WithClock(func() time.Time { return mockNow }), WithLogger(logger.Nop()))
	return s, mock
}

func q(s string) string {
	return regexp.QuoteMeta(s)
}

func TestToggleAppliesAbsentAction(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM katas WHERE id = ?")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(q("DELETE FROM user_kata_actions WHERE user_id = ? AND kata_id = ? AND action_type = ?")).
		WithArgs(int64(3), int64(7), "upvote").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("INSERT INTO user_kata_actions (user_id,kata_id,action_type,created_at) VALUES (?,?,?,?) ON CONFLICT DO NOTHING")).
		WithArgs(int64(3), int64(7), "upvote", mockNow.Unix()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("UPDATE katas SET upvotes = upvotes + ? WHERE id = ? RETURNING upvotes")).
		WithArgs(1, int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"upvotes"}).AddRow(5))
	mock.ExpectCommit()

	res, err := s.Toggle(context.Background(), 3, 7, kata.ActionUpvote)
	require.NoError(t, err)
	assert.Equal(t, &ToggleResult{KataID: 7, Action: kata.ActionUpvote, Active: true, Count: 5}, res)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleRemovesPresentAction(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM katas WHERE id = ?")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(q("DELETE FROM user_kata_actions")).
		WithArgs(int64(3), int64(7), "save").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("UPDATE katas SET saves = saves + ? WHERE id = ? RETURNING saves")).
		WithArgs(-1, int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"saves"}).AddRow(0))
	mock.ExpectCommit()

	res, err := s.Toggle(context.Background(), 3, 7, kata.ActionSave)
	require.NoError(t, err)
	assert.False(t, res.Active)
	assert.Equal(t, int64(0), res.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleConflictDoesNotCountTwice(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM katas WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectExec(q("DELETE FROM user_kata_actions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q("INSERT INTO user_kata_actions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("SELECT completions FROM katas WHERE id = ?")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"completions"}).AddRow(2))
	mock.ExpectCommit()

	res, err := s.Toggle(context.Background(), 3, 7, kata.ActionComplete)
	require.NoError(t, err)
	assert.True(t, res.Active)
	assert.Equal(t, int64(2), res.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestToggleMissingKataRollsBack(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT id FROM katas WHERE id = ?")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	_, err := s.Toggle(context.Background(), 3, 99, kata.ActionUpvote)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAccountRollsBackOnFailure(t *testing.T) {
	s, mock := newMockStore(t)
	boom := errors.New("disk I/O error")

	mock.ExpectBegin()
	for _, col := range []string{"upvotes", "saves", "completions"} {
		mock.ExpectExec(q("UPDATE katas SET " + col + " = " + col + " - 1")).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectExec(q("DELETE FROM user_kata_actions WHERE user_id = ?")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(q("DELETE FROM user_kata_actions WHERE kata_id IN")).
		WithArgs(int64(3)).
		WillReturnError(boom)
	mock.ExpectRollback()

	err := s.DeleteAccount(context.Background(), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAccountCommitsAllSteps(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	for range kata.ActionKinds {
		mock.ExpectExec(q("UPDATE katas SET")).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	for _, stmt := range []string{
		"DELETE FROM user_kata_actions WHERE user_id = ?",
		"DELETE FROM user_kata_actions WHERE kata_id IN",
		"DELETE FROM user_kata_notes",
		"DELETE FROM kata_topics",
		"DELETE FROM katas WHERE author_id = ?",
		"DELETE FROM prompts WHERE user_id = ?",
	} {
		mock.ExpectExec(q(stmt)).WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(q("DELETE FROM users WHERE id = ?")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, s.DeleteAccount(context.Background(), 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteKataRejectsNonAuthor(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(q("SELECT author_id FROM katas WHERE id = ?")).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"author_id"}).AddRow(1))
	mock.ExpectRollback()

	err := s.DeleteKata(context.Background(), 7, 2)
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransactionRollsBackOnPanic(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = s.WithTransaction(context.Background(), func(*Store) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveNoteTooLongDoesNotTouchDatabase(t *testing.T) {
	s, mock := newMockStore(t)

	long := make([]rune, kata.MaxNoteLength+1)
	for i := range long {
		long[i] = 'n'
	}

	_, err := s.SaveNote(context.Background(), 3, 7, string(long), false)
	var tooLong *NoteTooLongError
	require.ErrorAs(t, err, &tooLong)
	assert.Equal(t, string(long), tooLong.Text)
	assert.NoError(t, mock.ExpectationsWereMet())
}
