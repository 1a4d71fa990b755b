package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/triagestats/triagestats/internal/analyze"
	"github.com/triagestats/triagestats/internal/response"
)

func testRecords() []*analyze.Record {
	created := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	hours := 6.3333
	return []*analyze.Record{
		{
			Repo:      "server",
			Type:      analyze.TypeIssue,
			Number:    7,
			Title:     `crash on start, says "nil pointer"`,
			Author:    "community-user",
			CreatedAt: created,
			URL:       "https://github.com/example-org/server/issues/7",
			Response: &response.Resolved{
				At:     created.Add(6*time.Hour + 20*time.Minute),
				Author: "alice",
				Source: response.SourceComment,
			},
			Hours:        &hours,
			WithinOneDay: true,
			WeekStart:    time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			Repo:      "server",
			Type:      analyze.TypePull,
			Number:    8,
			Title:     "add retry knob",
			Author:    "another-user",
			CreatedAt: created.Add(time.Hour),
			URL:       "https://github.com/example-org/server/pull/8",
			WeekStart: time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestWriteCSVHeaderAndRows(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testRecords()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		"repository,type,number,title,created_at,first_response_at,response_hours,responder,within_one_day,week_start,url",
		lines[0],
	)
	assert.Equal(t,
		`server,ISSUE,7,"crash on start, says ""nil pointer""",2024-03-04T09:00:00Z,2024-03-04T15:20:00Z,6.33,alice,yes,2024-03-04,https://github.com/example-org/server/issues/7`,
		lines[1],
	)
	assert.Equal(t,
		"server,PR,8,add retry knob,2024-03-04T10:00:00Z,N/A,N/A,N/A,no,2024-03-04,https://github.com/example-org/server/pull/8",
		lines[2],
	)
}

func TestWriteCSVEmptyRecords(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"), "only the header line is written")
}

func TestUnanswered(t *testing.T) {
	t.Parallel()

	records := testRecords()
	subset := Unanswered(records)
	require.Len(t, subset, 1)
	assert.Equal(t, 8, subset[0].Number)
}

func TestWriteSummaryRendersTables(t *testing.T) {
	t.Parallel()

	overall := analyze.Overall(testRecords())
	weekly := analyze.Weekly(testRecords())

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, overall, weekly))

	out := buf.String()
	assert.Contains(t, out, "== First-response summary ==")
	assert.Contains(t, out, "issues")
	assert.Contains(t, out, "pull requests")
	assert.Contains(t, out, "response hours (n=1)")
	assert.Contains(t, out, "== Weekly breakdown ==")
	assert.Contains(t, out, "2024-03-04")
}

func TestWriteSummaryNoResponses(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, analyze.OverallMetrics{}, nil))
	assert.Contains(t, buf.String(), "response hours: no responses recorded")
}
