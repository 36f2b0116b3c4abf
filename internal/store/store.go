// Package store is the persistence layer: users, katas, topics, per-user
// actions and notes, and saved prompts, all in one sqlite file.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/eleven-am/katas/internal/listing"
	"github.com/eleven-am/katas/internal/logger"
	"github.com/jmoiron/sqlx"
)

// Store runs repository operations against either the pool or an open
// transaction.
type Store struct {
	db       *sqlx.DB
	executor DBExecutor
	composer *listing.Composer
	now      func() time.Time
	log      logger.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock used for timestamps and date buckets.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
		s.composer.Now = now
	}
}

// WithPageSize sets the listing page size.
func WithPageSize(size int) Option {
	return func(s *Store) {
		now := s.composer.Now
		s.composer = listing.NewComposer(size)
		s.composer.Now = now
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		s.log = l
	}
}

// New wraps an open database handle.
func New(db *sqlx.DB, opts ...Option) *Store {
	s := &Store{
		db:       db,
		executor: db,
		composer: listing.NewComposer(listing.DefaultPageSize),
		now:      time.Now,
		log:      logger.Store(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to the sqlite file described by cfg.
func Open(ctx context.Context, cfg *DBConfig, opts ...Option) (*Store, error) {
	db, err := cfg.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return New(db, opts...), nil
}

func (s *Store) withExecutor(exec DBExecutor) *Store {
	return &Store{
		db:       s.db,
		executor: exec,
		composer: s.composer,
		now:      s.now,
		log:      s.log,
	}
}

// DB returns the underlying pool.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// PageSize is the number of katas per listing page.
func (s *Store) PageSize() int {
	return s.composer.PageSize
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the pool.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTransaction runs fn inside a transaction. The transaction is rolled
// back if fn returns an error or panics. Nested calls reuse the outer
// transaction.
func (s *Store) WithTransaction(ctx context.Context, fn func(*Store) error) error {
	if _, isTransaction := s.executor.(*sqlx.Tx); isTransaction {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(s.withExecutor(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("failed to rollback transaction: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (s *Store) timestamp() int64 {
	return s.now().UTC().Unix()
}
