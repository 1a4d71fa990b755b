// Package notify delivers the human-readable digest to a Slack incoming
// webhook. Delivery is best-effort: the analysis and the local report are the
// primary deliverable.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/triagestats/triagestats/internal/analyze"
)

// HTTPDoer is implemented by http.Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config configures Slack webhook delivery.
type Config struct {
	WebhookURL string
	Channel    string
}

// Notifier posts digest messages to a Slack incoming webhook.
type Notifier struct {
	cfg  Config
	doer HTTPDoer
}

// New creates a Slack notifier.
func New(cfg Config, doer HTTPDoer) (*Notifier, error) {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Notifier{
		cfg:  cfg,
		doer: doer,
	}, nil
}

type messagePayload struct {
	Channel     string              `json:"channel,omitempty"`
	Text        string              `json:"text"`
	Attachments []attachmentPayload `json:"attachments,omitempty"`
}

type attachmentPayload struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// SendDigest posts the run summary, optionally attaching the CSV subset of
// items not answered within one business day.
func (n *Notifier) SendDigest(ctx context.Context, overall analyze.OverallMetrics, weekly []analyze.WeeklySummary, unansweredCSV string) error {
	payload := messagePayload{
		Channel: n.cfg.Channel,
		Text:    digestText(overall, weekly),
	}
	if unansweredCSV != "" {
		payload.Attachments = append(payload.Attachments, attachmentPayload{
			Title: "Items without a first response within one business day",
			Text:  "```" + unansweredCSV + "```",
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal digest payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build digest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.doer.Do(req)
	if err != nil {
		return fmt.Errorf("post digest: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post digest: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func digestText(overall analyze.OverallMetrics, weekly []analyze.WeeklySummary) string {
	builder := strings.Builder{}
	builder.WriteString("*First-response report*\n")
	builder.WriteString(fmt.Sprintf(
		"Issues: %d total, %d responded (%.1f%%), %d within one business day (%.1f%%)\n",
		overall.Issues.Total, overall.Issues.Responded, overall.Issues.RespondedRate,
		overall.Issues.WithinOneDay, overall.Issues.WithinOneDayPct,
	))
	builder.WriteString(fmt.Sprintf(
		"Pull requests: %d total, %d responded (%.1f%%), %d within one business day (%.1f%%)\n",
		overall.Pulls.Total, overall.Pulls.Responded, overall.Pulls.RespondedRate,
		overall.Pulls.WithinOneDay, overall.Pulls.WithinOneDayPct,
	))
	if overall.Hours.Count > 0 {
		builder.WriteString(fmt.Sprintf(
			"Response hours: median %.2f, mean %.2f (min %.2f, max %.2f, n=%d)\n",
			overall.Hours.Median, overall.Hours.Mean, overall.Hours.Min, overall.Hours.Max, overall.Hours.Count,
		))
	}
	if len(weekly) > 0 {
		builder.WriteString("Weekly within-one-day rate:\n")
		for _, week := range weekly {
			builder.WriteString(fmt.Sprintf(
				"  %s: %d/%d (%.1f%%)\n",
				week.WeekStart.Format("2006-01-02"), week.WithinOneDay, week.Total, week.WithinOneDayPct,
			))
		}
	}
	return builder.String()
}
