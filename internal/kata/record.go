package kata

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Record is one entry of a bulk-import payload.
type Record struct {
	Title          string    `json:"title"`
	Content        string    `json:"content"`
	Topics         TopicList `json:"topics"`
	Difficulty     string    `json:"difficulty"`
	CompletionTime string    `json:"completion_time"`
}

// Submission converts the record for validation and storage.
func (r Record) Submission() Submission {
	return Submission{
		Title:          r.Title,
		Content:        r.Content,
		Topics:         []string(r.Topics),
		Difficulty:     r.Difficulty,
		CompletionTime: r.CompletionTime,
	}
}

// TopicList accepts either "a,b,c" or ["a","b","c"].
type TopicList []string

func (t *TopicList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = SplitTopics(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("topics must be a string or an array of strings: %w", err)
	}
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, SplitTopics(s)...)
	}
	*t = out
	return nil
}

// ParseRecords decodes a JSON array of kata records.
func ParseRecords(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// UploadSchema describes the bulk-import record format.
const UploadSchema = `[
  {
    "title": "string, required, at most 100 characters",
    "content": "string, required, Markdown with optional LaTeX, at most 10000 characters",
    "topics": "comma-separated string (or array), at most 5 topics of 20 characters each",
    "difficulty": "one of: easy, medium, hard",
    "completion_time": "one of: <10 mins, <30 mins, <1 hr, >1 hr"
  }
]`
