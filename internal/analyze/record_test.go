package analyze

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/triagestats/triagestats/internal/githubapi"
	"github.com/triagestats/triagestats/internal/membership"
	"github.com/triagestats/triagestats/internal/response"
	"go.uber.org/zap"
)

type staticLister struct {
	members []string
}

func (s *staticLister) ListOrgMembers(context.Context, string) (githubapi.MembersResult, error) {
	return githubapi.MembersResult{Status: githubapi.EndpointStatusOK, Logins: s.members}, nil
}

func (s *staticLister) ListTeamMembers(context.Context, string, string) (githubapi.MembersResult, error) {
	return githubapi.MembersResult{Status: githubapi.EndpointStatusOK}, nil
}

type staticLocator struct {
	resolved *response.Resolved
	err      error
	lastItem response.Item
}

func (s *staticLocator) FirstResponse(_ context.Context, item response.Item, _ response.ResponderSet) (*response.Resolved, error) {
	s.lastItem = item
	return s.resolved, s.err
}

func resolvedAt(at time.Time) *response.Resolved {
	return &response.Resolved{At: at, Author: "alice", Source: response.SourceComment}
}

func newTestResolver(t *testing.T, cfg membership.Config, members ...string) *membership.Resolver {
	t.Helper()
	cfg.Org = "example-org"
	resolver, err := membership.Resolve(context.Background(), &staticLister{members: members}, cfg, zap.NewNop())
	require.NoError(t, err)
	return resolver
}

func TestProcessDropsInsiderAuthoredItem(t *testing.T) {
	t.Parallel()

	resolver := newTestResolver(t, membership.Config{}, "alice")
	locator := &staticLocator{}
	processor := NewProcessor(locator, resolver, zap.NewNop())

	record, err := processor.Process(context.Background(), RawItem{
		Repo:   "server",
		Type:   TypeIssue,
		Number: 7,
		Author: "alice",
	})
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestProcessDropsBotAuthoredItem(t *testing.T) {
	t.Parallel()

	resolver := newTestResolver(t, membership.Config{Bots: []string{"release-bot"}}, "alice")
	processor := NewProcessor(&staticLocator{}, resolver, zap.NewNop())

	record, err := processor.Process(context.Background(), RawItem{
		Repo:   "server",
		Type:   TypePull,
		Number: 8,
		Author: "release-bot",
	})
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestProcessRespondedRecord(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	responded := created.Add(6 * time.Hour)
	resolver := newTestResolver(t, membership.Config{}, "alice")
	locator := &staticLocator{resolved: resolvedAt(responded)}
	processor := NewProcessor(locator, resolver, zap.NewNop())

	record, err := processor.Process(context.Background(), RawItem{
		Repo:      "server",
		Type:      TypeIssue,
		Number:    7,
		Title:     "panic on start",
		Author:    "community-user",
		CreatedAt: created,
		State:     "open",
	})
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.Responded())
	require.NotNil(t, record.Hours)
	assert.InDelta(t, 6.0, *record.Hours, 0.001)
	assert.True(t, record.WithinOneDay)
	assert.Equal(t, time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC), record.WeekStart)
}

func TestProcessUnansweredRecord(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, time.March, 6, 9, 0, 0, 0, time.UTC)
	resolver := newTestResolver(t, membership.Config{}, "alice")
	processor := NewProcessor(&staticLocator{}, resolver, zap.NewNop())

	record, err := processor.Process(context.Background(), RawItem{
		Repo:      "server",
		Type:      TypeIssue,
		Number:    9,
		Author:    "community-user",
		CreatedAt: created,
	})
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.False(t, record.Responded())
	assert.Nil(t, record.Hours)
	assert.False(t, record.WithinOneDay)
}

func TestProcessWithinOneDayBoundary(t *testing.T) {
	t.Parallel()

	// Monday 00:00 to Tuesday 00:00 is exactly one business day.
	created := time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)
	responded := created.Add(24 * time.Hour)
	resolver := newTestResolver(t, membership.Config{}, "alice")
	processor := NewProcessor(&staticLocator{resolved: resolvedAt(responded)}, resolver, zap.NewNop())

	record, err := processor.Process(context.Background(), RawItem{
		Repo:      "server",
		Type:      TypeIssue,
		Number:    10,
		Author:    "community-user",
		CreatedAt: created,
	})
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.True(t, record.WithinOneDay)
}

func TestProcessMarksClosedPulls(t *testing.T) {
	t.Parallel()

	resolver := newTestResolver(t, membership.Config{}, "alice")
	locator := &staticLocator{}
	processor := NewProcessor(locator, resolver, zap.NewNop())

	_, err := processor.Process(context.Background(), RawItem{
		Repo:   "server",
		Type:   TypePull,
		Number: 11,
		Author: "community-user",
		State:  "closed",
	})
	require.NoError(t, err)
	assert.True(t, locator.lastItem.IsPull)
	assert.True(t, locator.lastItem.Closed)
}
