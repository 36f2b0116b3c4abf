package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

func init() {
	sqlx.BindDriver(DriverName, sqlx.QUESTION)
}

// DBConfig holds connection settings for the sqlite file.
type DBConfig struct {
	Path            string
	BusyTimeout     time.Duration
	ConnMaxLifetime time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
}

// NewDBConfig returns settings suitable for a single web process.
func NewDBConfig(path string) *DBConfig {
	return &DBConfig{
		Path:            path,
		BusyTimeout:     5 * time.Second,
		ConnMaxLifetime: 10 * time.Minute,
		MaxOpenConns:    4,
		MaxIdleConns:    4,
	}
}

// DSN renders the connection string. Pragmas are passed through the DSN so
// that every pooled connection gets them, not only the first.
func (cfg *DBConfig) DSN() string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	if !isMemory(cfg.Path) {
		q.Add("_pragma", "journal_mode(WAL)")
		q.Add("_pragma", "synchronous(NORMAL)")
	}
	q.Set("_txlock", "immediate")

	path := cfg.Path
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + "?" + q.Encode()
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Connect opens the pool and checks that the file is usable.
func (cfg *DBConfig) Connect(ctx context.Context) (*sqlx.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := sqlx.Open(DriverName, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if isMemory(cfg.Path) {
		// each connection to :memory: is a separate database
		maxOpen = 1
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
