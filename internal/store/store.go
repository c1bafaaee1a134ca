package store

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusCompleted Status = "completed"
	// StatusDegraded marks records whose translation fell back to the source text.
	StatusDegraded Status = "degraded"
)

var ErrInvalidRecord = errors.New("invalid translation record")

// Record is an immutable audit entry. ID is zero until a Gateway assigns one.
type Record struct {
	ID              int64
	CreatedAt       time.Time
	SourceLanguage  string
	TargetLanguage  string
	SourceText      string
	TranslatedText  string
	DurationSeconds float64
	Confidence      float64
	Status          Status
}

// NewRecord stamps the creation time once and defaults the status to
// completed.
func NewRecord(now time.Time, source, target, sourceText, translatedText string, duration, confidence float64, status Status) Record {
	if status == "" {
		status = StatusCompleted
	}
	return Record{
		CreatedAt:       now.UTC(),
		SourceLanguage:  source,
		TargetLanguage:  target,
		SourceText:      sourceText,
		TranslatedText:  translatedText,
		DurationSeconds: duration,
		Confidence:      confidence,
		Status:          status,
	}
}

func (r Record) Validate() error {
	switch {
	case r.SourceLanguage == "" || r.TargetLanguage == "":
		return errors.Join(ErrInvalidRecord, errors.New("source and target language are required"))
	case r.ID != 0:
		return errors.Join(ErrInvalidRecord, errors.New("record already has an id"))
	case r.CreatedAt.IsZero():
		return errors.Join(ErrInvalidRecord, errors.New("creation time is required"))
	}
	return nil
}

// Gateway persists translation records. All returns newest first.
type Gateway interface {
	Insert(ctx context.Context, record Record) (int64, error)
	All(ctx context.Context, limit int) ([]Record, error)
	ByID(ctx context.Context, id int64) (Record, bool, error)
	ByLanguagePair(ctx context.Context, source, target string, limit int) ([]Record, error)
	Close() error
}
