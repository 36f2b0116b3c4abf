package store

import (
	"context"
	"errors"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/eleven-am/katas/internal/kata"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question)

// UserBySecret looks up a user by their secret identifier.
func (s *Store) UserBySecret(ctx context.Context, secret string) (*kata.User, error) {
	var u kata.User
	q := psql.Select("id", "secret_username", "display_name").
		From("users").
		Where(squirrel.Eq{"secret_username": secret})
	if err := s.getBuilt(ctx, "user_by_secret", "users", &u, q); err != nil {
		return nil, err
	}
	return &u, nil
}

// UserByID looks up a user by id.
func (s *Store) UserByID(ctx context.Context, id int64) (*kata.User, error) {
	var u kata.User
	q := psql.Select("id", "secret_username", "display_name").
		From("users").
		Where(squirrel.Eq{"id": id})
	if err := s.getBuilt(ctx, "user_by_id", "users", &u, q); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser registers a new secret identifier.
func (s *Store) CreateUser(ctx context.Context, secret, displayName string) (*kata.User, error) {
	secret = strings.TrimSpace(secret)
	displayName = strings.TrimSpace(displayName)

	q := psql.Insert("users").
		Columns("secret_username", "display_name").
		Values(secret, displayName)
	res, err := s.execBuilt(ctx, "create_user", "users", q)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, &Error{Op: "create_user", Table: "users", Err: err}
	}
	return &kata.User{ID: id, SecretUsername: secret, DisplayName: displayName}, nil
}

// ErrDisplayNameRequired is returned by Login when an unknown identifier
// is presented without a display name to register it under.
var ErrDisplayNameRequired = errors.New("display name required to register")

// Login returns the user owning secret, registering it first when it is
// unknown and a display name is supplied. created reports a registration.
func (s *Store) Login(ctx context.Context, secret, displayName string) (user *kata.User, created bool, err error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, false, &Error{Op: "login", Table: "users", Err: ErrNotFound}
	}

	user, err = s.UserBySecret(ctx, secret)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	if strings.TrimSpace(displayName) == "" {
		return nil, false, ErrDisplayNameRequired
	}

	user, err = s.CreateUser(ctx, secret, displayName)
	if errors.Is(err, ErrDuplicateKey) {
		// registered concurrently
		user, err = s.UserBySecret(ctx, secret)
		return user, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}
