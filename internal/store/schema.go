package store

import (
	"context"
	"fmt"
)

// SearchTable is the FTS5 index over kata title, content and topics.
const SearchTable = "katas_fts"

// Tables lists every table the application expects, with its columns.
var Tables = map[string][]string{
	"users":             {"id", "secret_username", "display_name"},
	"katas":             {"id", "title", "content", "author_id", "upvotes", "saves", "completions", "difficulty", "completion_time", "topics_text", "created_at"},
	"topics":            {"id", "name"},
	"kata_topics":       {"kata_id", "topic_id"},
	"user_kata_actions": {"user_id", "kata_id", "action_type", "created_at"},
	"user_kata_notes":   {"user_id", "kata_id", "content", "updated_at"},
	"prompts":           {"id", "user_id", "name", "content"},
	SearchTable:         {"title", "content", "topics_text"},
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		secret_username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS katas (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL CHECK (length(title) <= 100),
		content TEXT NOT NULL CHECK (length(content) <= 10000),
		author_id INTEGER NOT NULL REFERENCES users(id),
		upvotes INTEGER NOT NULL DEFAULT 0,
		saves INTEGER NOT NULL DEFAULT 0,
		completions INTEGER NOT NULL DEFAULT 0,
		difficulty TEXT NOT NULL,
		completion_time TEXT NOT NULL,
		topics_text TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_katas_author ON katas(author_id)`,
	`CREATE INDEX IF NOT EXISTS idx_katas_created ON katas(created_at)`,
	`CREATE TABLE IF NOT EXISTS topics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE CHECK (length(name) <= 20)
	)`,
	`CREATE TABLE IF NOT EXISTS kata_topics (
		kata_id INTEGER NOT NULL REFERENCES katas(id),
		topic_id INTEGER NOT NULL REFERENCES topics(id),
		PRIMARY KEY (kata_id, topic_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_kata_topics_topic ON kata_topics(topic_id)`,
	`CREATE TABLE IF NOT EXISTS user_kata_actions (
		user_id INTEGER NOT NULL REFERENCES users(id),
		kata_id INTEGER NOT NULL REFERENCES katas(id),
		action_type TEXT NOT NULL CHECK (action_type IN ('upvote', 'save', 'complete')),
		created_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, kata_id, action_type)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_actions_kata ON user_kata_actions(kata_id)`,
	`CREATE TABLE IF NOT EXISTS user_kata_notes (
		user_id INTEGER NOT NULL REFERENCES users(id),
		kata_id INTEGER NOT NULL REFERENCES katas(id),
		content TEXT NOT NULL CHECK (length(content) <= 200),
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, kata_id)
	)`,
	`CREATE TABLE IF NOT EXISTS prompts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL REFERENCES users(id),
		name TEXT NOT NULL,
		content TEXT NOT NULL,
		UNIQUE (user_id, name)
	)`,
	`CREATE VIRTUAL TABLE IF NOT EXISTS katas_fts USING fts5(
		title, content, topics_text,
		content='katas', content_rowid='id'
	)`,
	`CREATE TRIGGER IF NOT EXISTS katas_fts_insert AFTER INSERT ON katas BEGIN
		INSERT INTO katas_fts(rowid, title, content, topics_text)
		VALUES (new.id, new.title, new.content, new.topics_text);
	END`,
	`CREATE TRIGGER IF NOT EXISTS katas_fts_delete AFTER DELETE ON katas BEGIN
		INSERT INTO katas_fts(katas_fts, rowid, title, content, topics_text)
		VALUES ('delete', old.id, old.title, old.content, old.topics_text);
	END`,
	`CREATE TRIGGER IF NOT EXISTS katas_fts_update AFTER UPDATE OF title, content, topics_text ON katas BEGIN
		INSERT INTO katas_fts(katas_fts, rowid, title, content, topics_text)
		VALUES ('delete', old.id, old.title, old.content, old.topics_text);
		INSERT INTO katas_fts(rowid, title, content, topics_text)
		VALUES (new.id, new.title, new.content, new.topics_text);
	END`,
}

// Migrate creates any missing table, index, trigger and the full-text index.
// It is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	return s.WithTransaction(ctx, func(tx *Store) error {
		for i, stmt := range schema {
			if _, err := tx.executor.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("schema statement %d: %w", i+1, err)
			}
		}
		return nil
	})
}
