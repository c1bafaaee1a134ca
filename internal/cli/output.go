package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fmueller/voxlate/internal/store"
	"github.com/fmueller/voxlate/internal/workflow"
)

const (
	outputText = "text"
	outputJSON = "json"
)

type recordView struct {
	ID              int64     `json:"id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	SourceLanguage  string    `json:"source_language"`
	TargetLanguage  string    `json:"target_language"`
	SourceText      string    `json:"source_text"`
	TranslatedText  string    `json:"translated_text"`
	DurationSeconds float64   `json:"duration_seconds"`
	Confidence      float64   `json:"confidence"`
	Status          string    `json:"status"`
}

func viewOf(r store.Record) recordView {
	return recordView{
		ID:              r.ID,
		CreatedAt:       r.CreatedAt,
		SourceLanguage:  r.SourceLanguage,
		TargetLanguage:  r.TargetLanguage,
		SourceText:      r.SourceText,
		TranslatedText:  r.TranslatedText,
		DurationSeconds: r.DurationSeconds,
		Confidence:      r.Confidence,
		Status:          string(r.Status),
	}
}

func (a *appState) printResult(result workflow.Result) error {
	w := a.outWriter()
	if a.output == outputJSON {
		return writeJSON(w, viewOf(result.Record))
	}

	r := result.Record
	fmt.Fprintf(w, "[%s] %s\n", r.SourceLanguage, r.SourceText)
	fmt.Fprintf(w, "[%s] %s\n", r.TargetLanguage, r.TranslatedText)
	if result.Stored {
		fmt.Fprintf(w, "saved as #%d\n", r.ID)
	}
	return nil
}

func (a *appState) printRecord(r store.Record) error {
	w := a.outWriter()
	if a.output == outputJSON {
		return writeJSON(w, viewOf(r))
	}

	fmt.Fprintf(w, "ID:          %d\n", r.ID)
	fmt.Fprintf(w, "Created:     %s\n", r.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Languages:   %s -> %s\n", r.SourceLanguage, r.TargetLanguage)
	fmt.Fprintf(w, "Status:      %s\n", r.Status)
	fmt.Fprintf(w, "Duration:    %.2fs\n", r.DurationSeconds)
	fmt.Fprintf(w, "Confidence:  %.2f\n", r.Confidence)
	fmt.Fprintf(w, "\n%s\n\n%s\n", r.SourceText, r.TranslatedText)
	return nil
}

func (a *appState) printRecords(records []store.Record) error {
	w := a.outWriter()
	if a.output == outputJSON {
		views := make([]recordView, 0, len(records))
		for _, r := range records {
			views = append(views, viewOf(r))
		}
		return writeJSON(w, views)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "no translations yet")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tPAIR\tSTATUS\tTRANSLATION")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s->%s\t%s\t%s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.SourceLanguage, r.TargetLanguage, r.Status, truncate(r.TranslatedText, 60))
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
