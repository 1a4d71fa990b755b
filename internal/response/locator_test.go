package response

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/triagestats/triagestats/internal/githubapi"
	"go.uber.org/zap"
)

type staticResponders map[string]bool

func (s staticResponders) EligibleResponder(login string) bool {
	return s[login]
}

type fakeEventClient struct {
	mu sync.Mutex

	comments       githubapi.CommentsResult
	commentsErr    error
	reviewComments githubapi.CommentsResult
	reviewsResult  githubapi.ReviewsResult
	detail         githubapi.PullDetail
	detailErr      error

	detailCalls int
}

func (f *fakeEventClient) ListIssueComments(context.Context, string, string, int, int) (githubapi.CommentsResult, error) {
	if f.commentsErr != nil {
		return githubapi.CommentsResult{}, f.commentsErr
	}
	return f.comments, nil
}

func (f *fakeEventClient) ListReviewComments(context.Context, string, string, int, int) (githubapi.CommentsResult, error) {
	return f.reviewComments, nil
}

func (f *fakeEventClient) ListReviews(context.Context, string, string, int, int) (githubapi.ReviewsResult, error) {
	return f.reviewsResult, nil
}

func (f *fakeEventClient) GetPullDetail(context.Context, string, string, int) (githubapi.PullDetail, error) {
	f.mu.Lock()
	f.detailCalls++
	f.mu.Unlock()
	if f.detailErr != nil {
		return githubapi.PullDetail{}, f.detailErr
	}
	return f.detail, nil
}

func at(hour int) time.Time {
	return time.Date(2024, time.March, 4, hour, 0, 0, 0, time.UTC)
}

func okComments(comments ...githubapi.ItemComment) githubapi.CommentsResult {
	return githubapi.CommentsResult{Status: githubapi.EndpointStatusOK, Comments: comments}
}

func okReviews(reviews ...githubapi.PullReview) githubapi.ReviewsResult {
	return githubapi.ReviewsResult{Status: githubapi.EndpointStatusOK, Reviews: reviews}
}

func newTestLocator(t *testing.T, client EventClient) *Locator {
	t.Helper()
	locator, err := NewLocator(client, "example-org", 10, zap.NewNop())
	require.NoError(t, err)
	return locator
}

func TestFirstResponseIssueFirstEligibleComment(t *testing.T) {
	t.Parallel()

	client := &fakeEventClient{
		comments: okComments(
			githubapi.ItemComment{Author: "stranger", CreatedAt: at(9)},
			githubapi.ItemComment{Author: "alice", CreatedAt: at(10)},
			githubapi.ItemComment{Author: "bob", CreatedAt: at(11)},
		),
	}
	locator := newTestLocator(t, client)
	responders := staticResponders{"alice": true, "bob": true}

	resolved, err := locator.FirstResponse(context.Background(), Item{Repo: "server", Number: 7}, responders)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "alice", resolved.Author)
	assert.Equal(t, SourceComment, resolved.Source)
	assert.Equal(t, at(10), resolved.At)
}

func TestFirstResponseIssueNoEligibleComment(t *testing.T) {
	t.Parallel()

	client := &fakeEventClient{
		comments: okComments(
			githubapi.ItemComment{Author: "stranger", CreatedAt: at(9)},
		),
	}
	locator := newTestLocator(t, client)

	resolved, err := locator.FirstResponse(context.Background(), Item{Repo: "server", Number: 7}, staticResponders{})
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestFirstResponsePullEarliestAcrossStreams(t *testing.T) {
	t.Parallel()

	client := &fakeEventClient{
		comments: okComments(
			githubapi.ItemComment{Author: "alice", CreatedAt: at(14)},
		),
		reviewComments: okComments(
			githubapi.ItemComment{Author: "bob", CreatedAt: at(12)},
		),
		reviewsResult: okReviews(
			githubapi.PullReview{Author: "carol", State: "APPROVED", SubmittedAt: at(13)},
		),
		detail: githubapi.PullDetail{
			Status:   githubapi.EndpointStatusOK,
			Merged:   true,
			MergedAt: at(11),
			MergedBy: "dave",
		},
	}
	locator := newTestLocator(t, client)
	responders := staticResponders{"alice": true, "bob": true, "carol": true, "dave": true}
	item := Item{Repo: "server", Number: 42, IsPull: true, Closed: true}

	resolved, err := locator.FirstResponse(context.Background(), item, responders)
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, "dave", resolved.Author)
	assert.Equal(t, SourceMerge, resolved.Source)
	assert.Equal(t, at(11), resolved.At)
}

func TestFirstResponsePullSkipsPendingReviews(t *testing.T) {
	t.Parallel()

	client := &fakeEventClient{
		comments:       okComments(),
		reviewComments: okComments(),
		reviewsResult: okReviews(
			githubapi.PullReview{Author: "alice", State: "PENDING"},
			githubapi.PullReview{Author: "alice", State: "APPROVED", SubmittedAt: at(15)},
		),
	}
	locator := newTestLocator(t, client)
	item := Item{Repo: "server", Number: 42, IsPull: true}

	resolved, err := locator.FirstResponse(context.Background(), item, staticResponders{"alice": true})
	require.NoError(t, err)
	require.NotNil(t, resolved)
	assert.Equal(t, SourceReview, resolved.Source)
	assert.Equal(t, at(15), resolved.At)
}

func TestFirstResponseOpenPullSkipsDetailFetch(t *testing.T) {
	t.Parallel()

	client := &fakeEventClient{
		comments:       okComments(),
		reviewComments: okComments(),
		reviewsResult:  okReviews(),
	}
	locator := newTestLocator(t, client)
	item := Item{Repo: "server", Number: 42, IsPull: true, Closed: false}

	resolved, err := locator.FirstResponse(context.Background(), item, staticResponders{})
	require.NoError(t, err)
	assert.Nil(t, resolved)
	assert.Equal(t, 0, client.detailCalls)
}

func TestFirstResponseMergeByOutsiderDoesNotCount(t *testing.T) {
	t.Parallel()

	client := &fakeEventClient{
		comments:       okComments(),
		reviewComments: okComments(),
		reviewsResult:  okReviews(),
		detail: githubapi.PullDetail{
			Status:   githubapi.EndpointStatusOK,
			Merged:   true,
			MergedAt: at(11),
			MergedBy: "stranger",
		},
	}
	locator := newTestLocator(t, client)
	item := Item{Repo: "server", Number: 42, IsPull: true, Closed: true}

	resolved, err := locator.FirstResponse(context.Background(), item, staticResponders{"alice": true})
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestFirstResponseRecoversFetchFailure(t *testing.T) {
	t.Parallel()

	client := &fakeEventClient{commentsErr: fmt.Errorf("boom")}
	locator := newTestLocator(t, client)

	resolved, err := locator.FirstResponse(context.Background(), Item{Repo: "server", Number: 7}, staticResponders{})
	require.NoError(t, err)
	assert.Nil(t, resolved)
}

func TestFirstResponsePropagatesRateLimit(t *testing.T) {
	t.Parallel()

	client := &fakeEventClient{
		commentsErr: &githubapi.RateLimitError{
			Resource: "core",
			Limit:    5000,
			ResetAt:  at(18),
		},
	}
	locator := newTestLocator(t, client)

	_, err := locator.FirstResponse(context.Background(), Item{Repo: "server", Number: 7}, staticResponders{})
	require.Error(t, err)
	assert.True(t, githubapi.IsRateLimit(err))
}

func TestEarliestTieKeepsFirstSeen(t *testing.T) {
	t.Parallel()

	resolved := earliest([]Event{
		{At: at(10), Author: "alice", Source: SourceComment},
		{At: at(10), Author: "bob", Source: SourceReview},
	})
	require.NotNil(t, resolved)
	assert.Equal(t, "alice", resolved.Author)
	assert.Equal(t, SourceComment, resolved.Source)
}
