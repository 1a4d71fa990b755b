// Package analyze turns raw fetched items into normalized response records
// and aggregates them into overall and weekly metrics.
package analyze

import (
	"context"
	"time"

	"github.com/triagestats/triagestats/internal/businesshours"
	"github.com/triagestats/triagestats/internal/membership"
	"github.com/triagestats/triagestats/internal/response"
	"go.uber.org/zap"
)

// ItemType distinguishes issues from pull requests.
type ItemType string

const (
	// TypeIssue marks a plain issue.
	TypeIssue ItemType = "issue"
	// TypePull marks a pull request.
	TypePull ItemType = "pr"
)

// RawItem is one fetched issue or pull request before eligibility filtering.
type RawItem struct {
	Repo      string
	Type      ItemType
	Number    int
	Title     string
	Author    string
	CreatedAt time.Time
	URL       string
	State     string
}

// Record is the durable analysis unit for one community item. It is created
// once and never mutated; Response and Hours are nil together iff no
// qualifying response was found.
type Record struct {
	Repo         string
	Type         ItemType
	Number       int
	Title        string
	Author       string
	CreatedAt    time.Time
	URL          string
	Response     *response.Resolved
	Hours        *float64
	WithinOneDay bool
	WeekStart    time.Time
}

// Responded reports whether a qualifying response exists.
func (r *Record) Responded() bool {
	return r.Response != nil
}

// FirstResponder locates the first qualifying response for raw items.
type FirstResponder interface {
	FirstResponse(ctx context.Context, item response.Item, responders response.ResponderSet) (*response.Resolved, error)
}

// Processor assembles records: it drops insider-authored items, resolves the
// first response, and computes the business-hours classification.
type Processor struct {
	locator  FirstResponder
	resolver *membership.Resolver
	logger   *zap.Logger
}

// NewProcessor creates an item processor.
func NewProcessor(locator FirstResponder, resolver *membership.Resolver, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		locator:  locator,
		resolver: resolver,
		logger:   logger,
	}
}

// Process returns the normalized record for raw, or nil when the item is
// internal traffic (authored by an insider or bot) and must be dropped from
// every aggregate.
func (p *Processor) Process(ctx context.Context, raw RawItem) (*Record, error) {
	set := p.resolver.ForRepo(raw.Repo)
	if set.Excluded(raw.Author) {
		p.logger.Debug("dropping insider-authored item",
			zap.String("repo", raw.Repo),
			zap.String("type", string(raw.Type)),
			zap.Int("number", raw.Number),
			zap.String("author", raw.Author),
		)
		return nil, nil
	}

	resolved, err := p.locator.FirstResponse(ctx, response.Item{
		Repo:   raw.Repo,
		Number: raw.Number,
		IsPull: raw.Type == TypePull,
		Closed: raw.State == "closed",
	}, set)
	if err != nil {
		return nil, err
	}

	record := &Record{
		Repo:      raw.Repo,
		Type:      raw.Type,
		Number:    raw.Number,
		Title:     raw.Title,
		Author:    raw.Author,
		CreatedAt: raw.CreatedAt.UTC(),
		URL:       raw.URL,
		Response:  resolved,
		WeekStart: businesshours.WeekStart(raw.CreatedAt),
	}
	if resolved != nil {
		hours := businesshours.Elapsed(raw.CreatedAt, resolved.At)
		record.Hours = &hours
		record.WithinOneDay = hours <= businesshours.OneBusinessDay
	}
	return record, nil
}
