// Package prompt expands placeholder tokens in saved prompt text.
package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eleven-am/katas/internal/kata"
	"github.com/eleven-am/katas/internal/logger"
)

// Recognized tokens. Anything else in braces is left as written.
const (
	TokenDifficulties    = "{{allowed_difficulties}}"
	TokenCompletionTimes = "{{allowed_completion_times}}"
	TokenUploadSchema    = "{{upload_schema}}"
	TokenLastUpvoted     = "{{last_10_upvoted}}"
	TokenLastSaved       = "{{last_10_saved}}"
	TokenLastCompleted   = "{{last_10_completed}}"
)

// SnapshotLimit is how many recent katas an activity token expands to.
const SnapshotLimit = 10

// ActivitySource supplies a user's recent katas for one action kind.
type ActivitySource interface {
	RecentSnapshots(ctx context.Context, userID int64, kind kata.ActionKind, limit int) ([]kata.Snapshot, error)
}

// Compiler substitutes tokens with static values or activity snapshots.
type Compiler struct {
	source ActivitySource
	limit  int
	log    logger.Logger
}

// NewCompiler returns a compiler reading activity from source.
func NewCompiler(source ActivitySource) *Compiler {
	return &Compiler{
		source: source,
		limit:  SnapshotLimit,
		log:    logger.Prompt(),
	}
}

type activityToken struct {
	token string
	kind  kata.ActionKind
}

var activityTokens = []activityToken{
	{TokenLastUpvoted, kata.ActionUpvote},
	{TokenLastSaved, kata.ActionSave},
	{TokenLastCompleted, kata.ActionComplete},
}

// Compile replaces every recognized token in text. Activity snapshots are
// only queried when their token occurs.
func (c *Compiler) Compile(ctx context.Context, userID int64, text string) (string, error) {
	pairs := []string{
		TokenDifficulties, strings.Join(kata.AllowedDifficulties, ", "),
		TokenCompletionTimes, strings.Join(kata.AllowedCompletionTimes, ", "),
		TokenUploadSchema, kata.UploadSchema,
	}

	for _, at := range activityTokens {
		if !strings.Contains(text, at.token) {
			continue
		}
		rendered, err := c.snapshot(ctx, userID, at.kind)
		if err != nil {
			return "", err
		}
		pairs = append(pairs, at.token, rendered)
	}

	// a single pass keeps substituted values from being expanded again
	out := strings.NewReplacer(pairs...).Replace(text)
	c.log.Debug("prompt compiled", "user_id", userID, "tokens", len(pairs)/2)
	return out, nil
}

func (c *Compiler) snapshot(ctx context.Context, userID int64, kind kata.ActionKind) (string, error) {
	snaps, err := c.source.RecentSnapshots(ctx, userID, kind, c.limit)
	if err != nil {
		return "", fmt.Errorf("load recent %s katas: %w", kind, err)
	}
	if snaps == nil {
		snaps = []kata.Snapshot{}
	}
	for i := range snaps {
		if snaps[i].Topics == nil {
			snaps[i].Topics = []string{}
		}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snaps); err != nil {
		return "", fmt.Errorf("encode recent %s katas: %w", kind, err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
