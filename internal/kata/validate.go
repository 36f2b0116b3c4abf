package kata

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"
)

// Submission is a candidate kata before it is stored.
type Submission struct {
	Title          string
	Content        string
	Topics         []string
	Difficulty     string
	CompletionTime string
}

// ValidationError carries every violated constraint of a submission.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid kata: " + strings.Join(e.Violations, "; ")
}

// Validate checks s against the submission rules and returns a
// *ValidationError listing all violations, or nil.
func Validate(s Submission) error {
	var v []string

	if strings.TrimSpace(s.Title) == "" {
		v = append(v, "Title is required.")
	} else if utf8.RuneCountInString(s.Title) > MaxTitleLength {
		v = append(v, fmt.Sprintf("Title cannot be longer than %d characters.", MaxTitleLength))
	}

	if strings.TrimSpace(s.Content) == "" {
		v = append(v, "Content is required.")
	} else if utf8.RuneCountInString(s.Content) > MaxContentLength {
		v = append(v, fmt.Sprintf("Content cannot be longer than %d characters.", MaxContentLength))
	}

	if !slices.Contains(AllowedDifficulties, s.Difficulty) {
		v = append(v, "Invalid difficulty.")
	}
	if !slices.Contains(AllowedCompletionTimes, s.CompletionTime) {
		v = append(v, "Invalid completion time.")
	}

	if len(s.Topics) > MaxTopics {
		v = append(v, fmt.Sprintf("You can only add up to %d topics.", MaxTopics))
	}
	for _, t := range s.Topics {
		if utf8.RuneCountInString(t) > MaxTopicLength {
			v = append(v, fmt.Sprintf("Each topic must be %d characters or less.", MaxTopicLength))
			break
		}
	}

	if len(v) > 0 {
		return &ValidationError{Violations: v}
	}
	return nil
}

// DedupeTopics drops repeated topic names, keeping first occurrence order.
func DedupeTopics(topics []string) []string {
	seen := make(map[string]struct{}, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
