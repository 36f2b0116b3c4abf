// Package kata holds the domain types shared by the store, the listing
// composer and the web layer.
package kata

import (
	"strings"
	"time"
)

// Page and field limits.
const (
	MaxTitleLength   = 100
	MaxContentLength = 10000
	MaxTopics        = 5
	MaxTopicLength   = 20
	MaxNoteLength    = 200
)

// Difficulty values accepted at submission.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// AllowedDifficulties lists difficulties in display order.
var AllowedDifficulties = []string{DifficultyEasy, DifficultyMedium, DifficultyHard}

// AllowedCompletionTimes lists completion-time buckets in display order.
var AllowedCompletionTimes = []string{"<10 mins", "<30 mins", "<1 hr", ">1 hr"}

// ActionKind is one of the three per-user interactions with a kata.
type ActionKind string

const (
	ActionUpvote   ActionKind = "upvote"
	ActionSave     ActionKind = "save"
	ActionComplete ActionKind = "complete"
)

// ActionKinds lists every action kind.
var ActionKinds = []ActionKind{ActionUpvote, ActionSave, ActionComplete}

// ParseActionKind maps a path segment to an action kind.
func ParseActionKind(s string) (ActionKind, bool) {
	switch ActionKind(s) {
	case ActionUpvote, ActionSave, ActionComplete:
		return ActionKind(s), true
	}
	return "", false
}

// CounterColumn is the katas column that aggregates this action.
func (a ActionKind) CounterColumn() string {
	switch a {
	case ActionUpvote:
		return "upvotes"
	case ActionSave:
		return "saves"
	case ActionComplete:
		return "completions"
	}
	return ""
}

// User is a registered account. SecretUsername is the login credential.
type User struct {
	ID             int64  `db:"id" json:"id"`
	SecretUsername string `db:"secret_username" json:"-"`
	DisplayName    string `db:"display_name" json:"display_name"`
}

// Kata is a stored exercise together with its per-request enrichment.
type Kata struct {
	ID             int64  `db:"id" json:"id"`
	Title          string `db:"title" json:"title"`
	Content        string `db:"content" json:"content"`
	AuthorID       int64  `db:"author_id" json:"author_id"`
	AuthorName     string `db:"author_name" json:"author_name"`
	Upvotes        int64  `db:"upvotes" json:"upvotes"`
	Saves          int64  `db:"saves" json:"saves"`
	Completions    int64  `db:"completions" json:"completions"`
	Difficulty     string `db:"difficulty" json:"difficulty"`
	CompletionTime string `db:"completion_time" json:"completion_time"`
	CreatedAt      int64  `db:"created_at" json:"created_at"`

	Topics      []string `db:"-" json:"topics"`
	IsUpvoted   bool     `db:"-" json:"is_upvoted"`
	IsSaved     bool     `db:"-" json:"is_saved"`
	IsCompleted bool     `db:"-" json:"is_completed"`
	Note        string   `db:"-" json:"note,omitempty"`
}

// Created returns the creation time in UTC.
func (k *Kata) Created() time.Time {
	return time.Unix(k.CreatedAt, 0).UTC()
}

// Flag reports the requesting user's state for one action kind.
func (k *Kata) Flag(kind ActionKind) bool {
	switch kind {
	case ActionUpvote:
		return k.IsUpvoted
	case ActionSave:
		return k.IsSaved
	case ActionComplete:
		return k.IsCompleted
	}
	return false
}

// Count returns the aggregate counter for one action kind.
func (k *Kata) Count(kind ActionKind) int64 {
	switch kind {
	case ActionUpvote:
		return k.Upvotes
	case ActionSave:
		return k.Saves
	case ActionComplete:
		return k.Completions
	}
	return 0
}

// Prompt is a saved prompt template owned by a user.
type Prompt struct {
	ID      int64  `db:"id" json:"id"`
	UserID  int64  `db:"user_id" json:"-"`
	Name    string `db:"name" json:"name"`
	Content string `db:"content" json:"content"`
}

// Snapshot is the view of a kata embedded into compiled prompts.
type Snapshot struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Difficulty     string   `json:"difficulty"`
	CompletionTime string   `json:"completion_time"`
	Topics         []string `json:"topics"`
}

// SplitTopics splits a comma-separated topic list, trimming blanks.
func SplitTopics(s string) []string {
	parts := strings.Split(s, ",")
	topics := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			topics = append(topics, t)
		}
	}
	return topics
}
