// Package response finds the first qualifying response to an issue or pull
// request across its heterogeneous event streams.
package response

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/triagestats/triagestats/internal/githubapi"
	"go.uber.org/zap"
)

// Source names the event stream a response came from.
type Source string

const (
	// SourceComment is an ordinary issue/PR conversation comment.
	SourceComment Source = "comment"
	// SourceReviewComment is an inline review comment.
	SourceReviewComment Source = "review_comment"
	// SourceReview is a formal review submission.
	SourceReview Source = "review"
	// SourceMerge is a merge performed by an eligible responder.
	SourceMerge Source = "merge"
)

// Event is one candidate response in the uniform shape the earliest-wins
// scan operates on.
type Event struct {
	At     time.Time
	Author string
	Source Source
}

// Resolved is the chosen first response for one item.
type Resolved struct {
	At     time.Time
	Author string
	Source Source
}

// Item identifies the work item a response is looked up for.
type Item struct {
	Repo   string
	Number int
	IsPull bool
	Closed bool
}

// ResponderSet answers responder-eligibility queries.
type ResponderSet interface {
	EligibleResponder(login string) bool
}

// EventClient is the event-stream service surface the locator consumes.
type EventClient interface {
	ListIssueComments(ctx context.Context, owner, repo string, number, pageSize int) (githubapi.CommentsResult, error)
	ListReviewComments(ctx context.Context, owner, repo string, number, pageSize int) (githubapi.CommentsResult, error)
	ListReviews(ctx context.Context, owner, repo string, number, pageSize int) (githubapi.ReviewsResult, error)
	GetPullDetail(ctx context.Context, owner, repo string, number int) (githubapi.PullDetail, error)
}

// Locator resolves first responses. The scan is bounded to PageSize events
// per stream; a true first response beyond that page is not observed.
type Locator struct {
	client   EventClient
	owner    string
	pageSize int
	logger   *zap.Logger
}

// NewLocator creates a response locator for one organization.
func NewLocator(client EventClient, owner string, pageSize int, logger *zap.Logger) (*Locator, error) {
	if client == nil {
		return nil, fmt.Errorf("event client is required")
	}
	if owner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{
		client:   client,
		owner:    owner,
		pageSize: pageSize,
		logger:   logger,
	}, nil
}

// FirstResponse returns the earliest qualifying response to item, or nil when
// none exists in the scanned pages. Fetch failures are recovered per item:
// logged and treated as no response, except quota exhaustion which aborts.
func (l *Locator) FirstResponse(ctx context.Context, item Item, responders ResponderSet) (*Resolved, error) {
	var events []Event
	var err error
	if item.IsPull {
		events, err = l.pullEvents(ctx, item, responders)
	} else {
		events, err = l.issueEvents(ctx, item, responders)
	}
	if err != nil {
		if githubapi.IsRateLimit(err) {
			return nil, err
		}
		l.logger.Warn("response lookup failed; treating item as unanswered",
			zap.String("repo", item.Repo),
			zap.Int("number", item.Number),
			zap.Error(err),
		)
		return nil, nil
	}
	return earliest(events), nil
}

func (l *Locator) issueEvents(ctx context.Context, item Item, responders ResponderSet) ([]Event, error) {
	result, err := l.client.ListIssueComments(ctx, l.owner, item.Repo, item.Number, l.pageSize)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if result.Status != githubapi.EndpointStatusOK {
		return nil, fmt.Errorf("list comments: unexpected status %s", result.Status)
	}

	// Comments arrive oldest first; the first eligible author wins, so the
	// scan can stop at the first hit.
	for _, comment := range result.Comments {
		if responders.EligibleResponder(comment.Author) {
			return []Event{{At: comment.CreatedAt, Author: comment.Author, Source: SourceComment}}, nil
		}
	}
	return nil, nil
}

// pullEvents gathers candidate events from up to four streams concurrently:
// conversation comments, review comments, formal reviews, and the merge
// event when the pull request is closed.
func (l *Locator) pullEvents(ctx context.Context, item Item, responders ResponderSet) ([]Event, error) {
	type streamResult struct {
		events []Event
		err    error
	}

	fetchers := []func() streamResult{
		func() streamResult {
			result, err := l.client.ListIssueComments(ctx, l.owner, item.Repo, item.Number, l.pageSize)
			if err != nil {
				return streamResult{err: fmt.Errorf("list comments: %w", err)}
			}
			if result.Status != githubapi.EndpointStatusOK {
				return streamResult{err: fmt.Errorf("list comments: unexpected status %s", result.Status)}
			}
			return streamResult{events: commentEvents(result.Comments, SourceComment, responders)}
		},
		func() streamResult {
			result, err := l.client.ListReviewComments(ctx, l.owner, item.Repo, item.Number, l.pageSize)
			if err != nil {
				return streamResult{err: fmt.Errorf("list review comments: %w", err)}
			}
			if result.Status != githubapi.EndpointStatusOK {
				return streamResult{err: fmt.Errorf("list review comments: unexpected status %s", result.Status)}
			}
			return streamResult{events: commentEvents(result.Comments, SourceReviewComment, responders)}
		},
		func() streamResult {
			result, err := l.client.ListReviews(ctx, l.owner, item.Repo, item.Number, l.pageSize)
			if err != nil {
				return streamResult{err: fmt.Errorf("list reviews: %w", err)}
			}
			if result.Status != githubapi.EndpointStatusOK {
				return streamResult{err: fmt.Errorf("list reviews: unexpected status %s", result.Status)}
			}
			var events []Event
			for _, review := range result.Reviews {
				// Pending reviews carry no submission timestamp and do not count.
				if review.SubmittedAt.IsZero() {
					continue
				}
				if !responders.EligibleResponder(review.Author) {
					continue
				}
				events = append(events, Event{At: review.SubmittedAt, Author: review.Author, Source: SourceReview})
			}
			return streamResult{events: events}
		},
	}

	// Open pull requests cannot have a merge-based response; skip the
	// detail round-trip entirely.
	if item.Closed {
		fetchers = append(fetchers, func() streamResult {
			detail, err := l.client.GetPullDetail(ctx, l.owner, item.Repo, item.Number)
			if err != nil {
				return streamResult{err: fmt.Errorf("pull detail: %w", err)}
			}
			if detail.Status != githubapi.EndpointStatusOK {
				return streamResult{err: fmt.Errorf("pull detail: unexpected status %s", detail.Status)}
			}
			if !detail.Merged || detail.MergedAt.IsZero() || !responders.EligibleResponder(detail.MergedBy) {
				return streamResult{}
			}
			return streamResult{events: []Event{{At: detail.MergedAt, Author: detail.MergedBy, Source: SourceMerge}}}
		})
	}

	results := make([]streamResult, len(fetchers))
	var wg sync.WaitGroup
	for i, fetch := range fetchers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = fetch()
		}()
	}
	wg.Wait()

	var events []Event
	for _, result := range results {
		if result.err != nil {
			return nil, result.err
		}
		events = append(events, result.events...)
	}
	return events, nil
}

func commentEvents(comments []githubapi.ItemComment, source Source, responders ResponderSet) []Event {
	var events []Event
	for _, comment := range comments {
		if !responders.EligibleResponder(comment.Author) {
			continue
		}
		events = append(events, Event{At: comment.CreatedAt, Author: comment.Author, Source: source})
	}
	return events
}

// earliest picks the minimum-timestamp event with a single linear scan.
// Ties keep the first-seen event.
func earliest(events []Event) *Resolved {
	if len(events) == 0 {
		return nil
	}
	best := events[0]
	for _, event := range events[1:] {
		if event.At.Before(best.At) {
			best = event
		}
	}
	return &Resolved{At: best.At, Author: best.Author, Source: best.Source}
}
