// Package report renders normalized records and aggregates to CSV and
// console text.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/triagestats/triagestats/internal/analyze"
)

const notAvailable = "N/A"

var csvHeader = []string{
	"repository",
	"type",
	"number",
	"title",
	"created_at",
	"first_response_at",
	"response_hours",
	"responder",
	"within_one_day",
	"week_start",
	"url",
}

// WriteCSV renders records in the fixed column order the report consumers
// expect. Field values for absent responses are the literal "N/A".
func WriteCSV(w io.Writer, records []*analyze.Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, record := range records {
		if err := writer.Write(csvRow(record)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func csvRow(record *analyze.Record) []string {
	responseAt := notAvailable
	responseHours := notAvailable
	responder := notAvailable
	if record.Response != nil {
		responseAt = record.Response.At.UTC().Format(time.RFC3339)
		responder = record.Response.Author
	}
	if record.Hours != nil {
		responseHours = fmt.Sprintf("%.2f", *record.Hours)
	}

	withinOneDay := "no"
	if record.WithinOneDay {
		withinOneDay = "yes"
	}

	return []string{
		record.Repo,
		strings.ToUpper(string(record.Type)),
		fmt.Sprintf("%d", record.Number),
		record.Title,
		record.CreatedAt.UTC().Format(time.RFC3339),
		responseAt,
		responseHours,
		responder,
		withinOneDay,
		record.WeekStart.Format("2006-01-02"),
		record.URL,
	}
}

// Unanswered returns the subset of records without a response within one
// business day, for the notification attachment.
func Unanswered(records []*analyze.Record) []*analyze.Record {
	var subset []*analyze.Record
	for _, record := range records {
		if !record.WithinOneDay {
			subset = append(subset, record)
		}
	}
	return subset
}
