package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/triagestats/triagestats/internal/analyze"
)

// WriteSummary renders the overall metrics and the weekly table as console text.
func WriteSummary(w io.Writer, overall analyze.OverallMetrics, weekly []analyze.WeeklySummary) error {
	if _, err := fmt.Fprintln(w, "== First-response summary =="); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "type\ttotal\tresponded\twithin 1 business day")
	fmt.Fprintf(tw, "issues\t%d\t%d (%.1f%%)\t%d (%.1f%%)\n",
		overall.Issues.Total,
		overall.Issues.Responded, overall.Issues.RespondedRate,
		overall.Issues.WithinOneDay, overall.Issues.WithinOneDayPct,
	)
	fmt.Fprintf(tw, "pull requests\t%d\t%d (%.1f%%)\t%d (%.1f%%)\n",
		overall.Pulls.Total,
		overall.Pulls.Responded, overall.Pulls.RespondedRate,
		overall.Pulls.WithinOneDay, overall.Pulls.WithinOneDayPct,
	)
	if err := tw.Flush(); err != nil {
		return err
	}

	if overall.Hours.Count > 0 {
		if _, err := fmt.Fprintf(w,
			"\nresponse hours (n=%d): min %.2f, max %.2f, mean %.2f, median %.2f\n",
			overall.Hours.Count, overall.Hours.Min, overall.Hours.Max, overall.Hours.Mean, overall.Hours.Median,
		); err != nil {
			return err
		}
	} else {
		if _, err := fmt.Fprintln(w, "\nresponse hours: no responses recorded"); err != nil {
			return err
		}
	}

	if len(weekly) == 0 {
		return nil
	}

	if _, err := fmt.Fprintln(w, "\n== Weekly breakdown =="); err != nil {
		return err
	}
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "week\titems\twithin 1 business day")
	for _, week := range weekly {
		fmt.Fprintf(tw, "%s\t%d\t%d (%.1f%%)\n",
			week.WeekStart.Format("2006-01-02"),
			week.Total,
			week.WithinOneDay, week.WithinOneDayPct,
		)
	}
	return tw.Flush()
}
