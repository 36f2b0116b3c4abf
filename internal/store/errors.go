package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrNotFound     = errors.New("record not found")
	ErrDuplicateKey = errors.New("duplicate key violation")
	ErrForeignKey   = errors.New("foreign key violation")
	ErrNotNull      = errors.New("not null constraint violation")
	ErrCheck        = errors.New("check constraint violation")
	ErrNotOwner     = errors.New("not owned by user")
	ErrBusy         = errors.New("database is busy")
)

// Error provides detailed error information
type Error struct {
	Op     string // Operation that failed
	Table  string // Table involved
	Err    error  // Underlying error
	Column string // Column name (if applicable)
}

func (e *Error) Error() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("store: %s", e.Op))

	if e.Table != "" {
		parts = append(parts, fmt.Sprintf("table=%s", e.Table))
	}
	if e.Column != "" {
		parts = append(parts, fmt.Sprintf("column=%s", e.Column))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NoteTooLongError rejects a note and carries the attempted text back to
// the caller so it can be corrected.
type NoteTooLongError struct {
	Text  string
	Limit int
}

func (e *NoteTooLongError) Error() string {
	return fmt.Sprintf("Note cannot be longer than %d characters.", e.Limit)
}

// ParseSQLiteError converts SQLite driver errors to store errors
func ParseSQLiteError(err error, op, table string) error {
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &Error{Op: op, Table: table, Err: ErrNotFound}
	}

	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "UNIQUE constraint failed"),
		strings.Contains(errStr, "PRIMARY KEY constraint failed"):
		return &Error{Op: op, Table: table, Err: fmt.Errorf("%w: %s", ErrDuplicateKey, errStr), Column: extractColumnName(errStr)}
	case strings.Contains(errStr, "FOREIGN KEY constraint failed"):
		return &Error{Op: op, Table: table, Err: fmt.Errorf("%w: %s", ErrForeignKey, errStr)}
	case strings.Contains(errStr, "NOT NULL constraint failed"):
		return &Error{Op: op, Table: table, Err: fmt.Errorf("%w: %s", ErrNotNull, errStr), Column: extractColumnName(errStr)}
	case strings.Contains(errStr, "CHECK constraint failed"):
		return &Error{Op: op, Table: table, Err: fmt.Errorf("%w: %s", ErrCheck, errStr)}
	case strings.Contains(errStr, "database is locked"), strings.Contains(errStr, "SQLITE_BUSY"):
		return &Error{Op: op, Table: table, Err: fmt.Errorf("%w: %s", ErrBusy, errStr)}
	}

	return &Error{Op: op, Table: table, Err: err}
}

// extractColumnName pulls "table.column" out of messages like
// "UNIQUE constraint failed: users.secret_username (2067)".
func extractColumnName(errStr string) string {
	idx := strings.Index(errStr, "failed: ")
	if idx == -1 {
		return ""
	}
	rest := errStr[idx+len("failed: "):]
	if end := strings.IndexAny(rest, " ,("); end != -1 {
		rest = rest[:end]
	}
	if dot := strings.LastIndex(rest, "."); dot != -1 {
		return rest[dot+1:]
	}
	return rest
}
