// Package importer loads batches of kata records, committing each record
// on its own so one bad record never undoes the others.
package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/eleven-am/katas/internal/kata"
	"github.com/eleven-am/katas/internal/logger"
	"github.com/eleven-am/katas/internal/metrics"
)

// ErrNoInput is returned when no source carried any data.
var ErrNoInput = errors.New("no JSON data or file provided for bulk upload")

// Creator stores one validated kata.
type Creator interface {
	CreateKata(ctx context.Context, authorID int64, sub kata.Submission) (*kata.Kata, error)
}

// Source is one payload to import, such as the inline form field or an
// uploaded file. Label names it in parse error messages.
type Source struct {
	Label string
	Data  []byte
}

// Result summarizes an import.
type Result struct {
	Uploaded int
	Created  []int64
	Errors   []string
}

// Importer validates and stores records from one or more sources.
type Importer struct {
	creator Creator
	metrics *metrics.Metrics
	log     logger.Logger
}

// New returns an importer writing through creator.
func New(creator Creator) *Importer {
	return &Importer{
		creator: creator,
		metrics: metrics.Get(),
		log:     logger.Import(),
	}
}

// Import parses every non-empty source and stores each record. A source
// that fails to parse is reported and skipped; the others still import.
func (i *Importer) Import(ctx context.Context, authorID int64, sources ...Source) (*Result, error) {
	res := &Result{}
	var records []kata.Record
	provided := false

	for _, src := range sources {
		if len(src.Data) == 0 {
			continue
		}
		provided = true
		parsed, err := kata.ParseRecords(src.Data)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("Error parsing JSON %s: %v", src.Label, err))
			continue
		}
		records = append(records, parsed...)
	}

	if !provided {
		return nil, ErrNoInput
	}

	for _, rec := range records {
		k, err := i.creator.CreateKata(ctx, authorID, rec.Submission())
		if err != nil {
			res.Errors = append(res.Errors, recordErrors(rec, err)...)
			var verr *kata.ValidationError
			if !errors.As(err, &verr) {
				i.log.Error("bulk import record failed", "author_id", authorID, "title", rec.Title, "error", err)
			}
			continue
		}
		res.Uploaded++
		res.Created = append(res.Created, k.ID)
		i.metrics.RecordCreated("import")
	}

	i.metrics.RecordImport(res.Uploaded, len(records)-res.Uploaded)
	i.log.Info("bulk import finished",
		"author_id", authorID,
		"records", len(records),
		"uploaded", res.Uploaded,
		"errors", len(res.Errors),
	)
	return res, nil
}

func recordErrors(rec kata.Record, err error) []string {
	title := rec.Title
	if title == "" {
		title = "N/A"
	}

	var verr *kata.ValidationError
	if errors.As(err, &verr) {
		out := make([]string, 0, len(verr.Violations))
		for _, v := range verr.Violations {
			out = append(out, fmt.Sprintf("Error for kata '%s': %s", title, v))
		}
		return out
	}
	return []string{fmt.Sprintf("Error for kata '%s': it could not be saved.", title)}
}
