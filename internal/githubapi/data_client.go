package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultGitHubAPIBaseURL = "https://api.github.com/"

// EndpointStatus represents a normalized GitHub API endpoint outcome.
type EndpointStatus string

const (
	// EndpointStatusOK indicates a successful response.
	EndpointStatusOK EndpointStatus = "ok"
	// EndpointStatusForbidden indicates authorization failure or restricted access.
	EndpointStatusForbidden EndpointStatus = "forbidden"
	// EndpointStatusNotFound indicates the resource does not exist or is hidden.
	EndpointStatusNotFound EndpointStatus = "not_found"
	// EndpointStatusUnavailable indicates a temporary service-side failure.
	EndpointStatusUnavailable EndpointStatus = "unavailable"
	// EndpointStatusUnknown indicates an unclassified non-success status.
	EndpointStatusUnknown EndpointStatus = "unknown"
)

// ItemKind distinguishes issues from pull requests in search queries.
type ItemKind string

const (
	// KindIssue selects plain issues.
	KindIssue ItemKind = "issue"
	// KindPull selects pull requests.
	KindPull ItemKind = "pr"
)

// SearchItem is one issue or pull request from the search endpoint.
type SearchItem struct {
	Number    int
	Title     string
	Author    string
	CreatedAt time.Time
	URL       string
	State     string
}

// SearchResult is the typed result for a date-scoped item search.
type SearchResult struct {
	Status   EndpointStatus
	Items    []SearchItem
	Metadata CallMetadata
}

// PullDetail is the typed result for a pull request detail read.
type PullDetail struct {
	Status   EndpointStatus
	Merged   bool
	MergedAt time.Time
	MergedBy string
	Metadata CallMetadata
}

// ItemComment is one comment-like event with an author and a timestamp.
type ItemComment struct {
	Author    string
	CreatedAt time.Time
}

// CommentsResult is the typed result for a bounded comment page.
type CommentsResult struct {
	Status   EndpointStatus
	Comments []ItemComment
	Metadata CallMetadata
}

// PullReview is one formal review submission. SubmittedAt is zero for
// reviews GitHub reports without a submission timestamp (pending reviews).
type PullReview struct {
	Author      string
	State       string
	SubmittedAt time.Time
}

// ReviewsResult is the typed result for a bounded review page.
type ReviewsResult struct {
	Status   EndpointStatus
	Reviews  []PullReview
	Metadata CallMetadata
}

// MembersResult is the typed result for an org or team member listing.
type MembersResult struct {
	Status   EndpointStatus
	Logins   []string
	Metadata CallMetadata
}

// DataClient is a typed GitHub REST data client for report-relevant endpoints.
type DataClient struct {
	baseURL       *url.URL
	requestClient *Client
}

// NewDataClient creates a typed data client over the generic retry/rate-limit request client.
func NewDataClient(baseURL string, requestClient *Client) (*DataClient, error) {
	if requestClient == nil {
		return nil, fmt.Errorf("request client is required")
	}

	parsed, err := parseAPIBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	return &DataClient{
		baseURL:       parsed,
		requestClient: requestClient,
	}, nil
}

// SearchItems lists issues or pull requests of one repository created in a
// date window, oldest first, via the search endpoint. Search draws from its
// own, much tighter quota; callers must sequence these calls.
func (c *DataClient) SearchItems(ctx context.Context, owner, repo string, kind ItemKind, from, to time.Time) (SearchResult, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	if trimmedOwner == "" {
		return SearchResult{}, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return SearchResult{}, fmt.Errorf("repo is required")
	}
	if kind != KindIssue && kind != KindPull {
		return SearchResult{}, fmt.Errorf("kind must be issue or pr")
	}
	if from.IsZero() || to.IsZero() {
		return SearchResult{}, fmt.Errorf("search window is required")
	}
	if to.Before(from) {
		return SearchResult{}, fmt.Errorf("window end must not be before window start")
	}

	query := fmt.Sprintf(
		"repo:%s/%s is:%s created:%s..%s",
		trimmedOwner, trimmedRepo, kind,
		from.UTC().Format("2006-01-02"), to.UTC().Format("2006-01-02"),
	)

	result := SearchResult{
		Status: EndpointStatusOK,
	}
	page := 1
	for {
		reqURL := c.cloneBaseURL()
		reqURL.Path = joinURLPath(reqURL.Path, "search", "issues")
		values := reqURL.Query()
		values.Set("q", query)
		values.Set("sort", "created")
		values.Set("order", "asc")
		values.Set("per_page", "100")
		values.Set("page", strconv.Itoa(page))
		reqURL.RawQuery = values.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
		if err != nil {
			return SearchResult{}, fmt.Errorf("build search request: %w", err)
		}

		resp, metadata, err := c.requestClient.Do(req)
		result.Metadata = mergeMetadata(result.Metadata, metadata)
		if err != nil {
			return SearchResult{}, fmt.Errorf("search request failed: %w", err)
		}
		if resp == nil {
			return SearchResult{}, fmt.Errorf("search request failed: nil response")
		}

		status := endpointStatusFromHTTP(resp.StatusCode)
		if status != EndpointStatusOK {
			_ = resp.Body.Close()
			result.Status = status
			return result, nil
		}

		var payload searchPayload
		if err := decodeJSONAndClose(resp, &payload); err != nil {
			return SearchResult{}, fmt.Errorf("decode search response: %w", err)
		}

		for _, item := range payload.Items {
			typed := SearchItem{
				Number:    item.Number,
				Title:     item.Title,
				CreatedAt: parseRFC3339(item.CreatedAt),
				URL:       item.HTMLURL,
				State:     item.State,
			}
			if item.User != nil {
				typed.Author = item.User.Login
			}
			result.Items = append(result.Items, typed)
		}

		if len(payload.Items) == 0 || !hasNextPage(resp.Header.Get("Link")) {
			break
		}
		page++
	}

	return result, nil
}

// GetPullDetail reads merge status for one pull request.
func (c *DataClient) GetPullDetail(ctx context.Context, owner, repo string, number int) (PullDetail, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	if trimmedOwner == "" {
		return PullDetail{}, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return PullDetail{}, fmt.Errorf("repo is required")
	}
	if number <= 0 {
		return PullDetail{}, fmt.Errorf("pull number must be > 0")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(reqURL.Path, "repos", url.PathEscape(trimmedOwner), url.PathEscape(trimmedRepo), "pulls", strconv.Itoa(number))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return PullDetail{}, fmt.Errorf("build pull detail request: %w", err)
	}

	resp, metadata, err := c.requestClient.Do(req)
	if err != nil {
		return PullDetail{}, fmt.Errorf("pull detail request failed: %w", err)
	}
	if resp == nil {
		return PullDetail{}, fmt.Errorf("pull detail request failed: nil response")
	}

	status := endpointStatusFromHTTP(resp.StatusCode)
	result := PullDetail{
		Status:   status,
		Metadata: metadata,
	}
	if status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload pullDetailPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return PullDetail{}, fmt.Errorf("decode pull detail response: %w", err)
	}

	result.Merged = payload.Merged
	result.MergedAt = parseNullableRFC3339(payload.MergedAt)
	if payload.MergedBy != nil {
		result.MergedBy = payload.MergedBy.Login
	}
	return result, nil
}

// ListIssueComments lists the oldest pageSize comments of one issue or pull request.
func (c *DataClient) ListIssueComments(ctx context.Context, owner, repo string, number, pageSize int) (CommentsResult, error) {
	return c.listComments(ctx, owner, repo, pageSize, "issues", strconv.Itoa(number), "comments")
}

// ListReviewComments lists the oldest pageSize review comments of one pull request.
func (c *DataClient) ListReviewComments(ctx context.Context, owner, repo string, number, pageSize int) (CommentsResult, error) {
	return c.listComments(ctx, owner, repo, pageSize, "pulls", strconv.Itoa(number), "comments")
}

func (c *DataClient) listComments(ctx context.Context, owner, repo string, pageSize int, segments ...string) (CommentsResult, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	if trimmedOwner == "" {
		return CommentsResult{}, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return CommentsResult{}, fmt.Errorf("repo is required")
	}
	if pageSize <= 0 {
		return CommentsResult{}, fmt.Errorf("page size must be > 0")
	}

	reqURL := c.cloneBaseURL()
	pathSegments := append([]string{"repos", url.PathEscape(trimmedOwner), url.PathEscape(trimmedRepo)}, segments...)
	reqURL.Path = joinURLPath(reqURL.Path, pathSegments...)
	values := reqURL.Query()
	values.Set("per_page", strconv.Itoa(pageSize))
	values.Set("sort", "created")
	values.Set("direction", "asc")
	reqURL.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return CommentsResult{}, fmt.Errorf("build list comments request: %w", err)
	}

	resp, metadata, err := c.requestClient.Do(req)
	if err != nil {
		return CommentsResult{}, fmt.Errorf("list comments request failed: %w", err)
	}
	if resp == nil {
		return CommentsResult{}, fmt.Errorf("list comments request failed: nil response")
	}

	status := endpointStatusFromHTTP(resp.StatusCode)
	result := CommentsResult{
		Status:   status,
		Metadata: metadata,
	}
	if status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload []commentPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return CommentsResult{}, fmt.Errorf("decode list comments response: %w", err)
	}

	for _, comment := range payload {
		typed := ItemComment{
			CreatedAt: parseRFC3339(comment.CreatedAt),
		}
		if comment.User != nil {
			typed.Author = comment.User.Login
		}
		result.Comments = append(result.Comments, typed)
	}
	return result, nil
}

// ListReviews lists the oldest pageSize formal reviews of one pull request.
func (c *DataClient) ListReviews(ctx context.Context, owner, repo string, number, pageSize int) (ReviewsResult, error) {
	trimmedOwner := strings.TrimSpace(owner)
	trimmedRepo := strings.TrimSpace(repo)
	if trimmedOwner == "" {
		return ReviewsResult{}, fmt.Errorf("owner is required")
	}
	if trimmedRepo == "" {
		return ReviewsResult{}, fmt.Errorf("repo is required")
	}
	if number <= 0 {
		return ReviewsResult{}, fmt.Errorf("pull number must be > 0")
	}
	if pageSize <= 0 {
		return ReviewsResult{}, fmt.Errorf("page size must be > 0")
	}

	reqURL := c.cloneBaseURL()
	reqURL.Path = joinURLPath(
		reqURL.Path,
		"repos",
		url.PathEscape(trimmedOwner),
		url.PathEscape(trimmedRepo),
		"pulls",
		strconv.Itoa(number),
		"reviews",
	)
	values := reqURL.Query()
	values.Set("per_page", strconv.Itoa(pageSize))
	reqURL.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return ReviewsResult{}, fmt.Errorf("build list reviews request: %w", err)
	}

	resp, metadata, err := c.requestClient.Do(req)
	if err != nil {
		return ReviewsResult{}, fmt.Errorf("list reviews request failed: %w", err)
	}
	if resp == nil {
		return ReviewsResult{}, fmt.Errorf("list reviews request failed: nil response")
	}

	status := endpointStatusFromHTTP(resp.StatusCode)
	result := ReviewsResult{
		Status:   status,
		Metadata: metadata,
	}
	if status != EndpointStatusOK {
		_ = resp.Body.Close()
		return result, nil
	}

	var payload []reviewPayload
	if err := decodeJSONAndClose(resp, &payload); err != nil {
		return ReviewsResult{}, fmt.Errorf("decode list reviews response: %w", err)
	}

	for _, review := range payload {
		typed := PullReview{
			State:       review.State,
			SubmittedAt: parseNullableRFC3339(review.SubmittedAt),
		}
		if review.User != nil {
			typed.Author = review.User.Login
		}
		result.Reviews = append(result.Reviews, typed)
	}
	return result, nil
}

// ListOrgMembers lists all members of one organization with pagination support.
func (c *DataClient) ListOrgMembers(ctx context.Context, org string) (MembersResult, error) {
	trimmedOrg := strings.TrimSpace(org)
	if trimmedOrg == "" {
		return MembersResult{}, fmt.Errorf("organization is required")
	}
	return c.listMembers(ctx, "orgs", url.PathEscape(trimmedOrg), "members")
}

// ListTeamMembers lists all members of one organization team with pagination support.
func (c *DataClient) ListTeamMembers(ctx context.Context, org, teamSlug string) (MembersResult, error) {
	trimmedOrg := strings.TrimSpace(org)
	trimmedSlug := strings.TrimSpace(teamSlug)
	if trimmedOrg == "" {
		return MembersResult{}, fmt.Errorf("organization is required")
	}
	if trimmedSlug == "" {
		return MembersResult{}, fmt.Errorf("team slug is required")
	}
	return c.listMembers(ctx, "orgs", url.PathEscape(trimmedOrg), "teams", url.PathEscape(trimmedSlug), "members")
}

func (c *DataClient) listMembers(ctx context.Context, segments ...string) (MembersResult, error) {
	result := MembersResult{
		Status: EndpointStatusOK,
	}
	page := 1
	for {
		reqURL := c.cloneBaseURL()
		reqURL.Path = joinURLPath(reqURL.Path, segments...)
		values := reqURL.Query()
		values.Set("per_page", "100")
		values.Set("page", strconv.Itoa(page))
		reqURL.RawQuery = values.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
		if err != nil {
			return MembersResult{}, fmt.Errorf("build list members request: %w", err)
		}

		resp, metadata, err := c.requestClient.Do(req)
		result.Metadata = mergeMetadata(result.Metadata, metadata)
		if err != nil {
			return MembersResult{}, fmt.Errorf("list members request failed: %w", err)
		}
		if resp == nil {
			return MembersResult{}, fmt.Errorf("list members request failed: nil response")
		}

		status := endpointStatusFromHTTP(resp.StatusCode)
		if status != EndpointStatusOK {
			_ = resp.Body.Close()
			result.Status = status
			return result, nil
		}

		var payload []userPayload
		if err := decodeJSONAndClose(resp, &payload); err != nil {
			return MembersResult{}, fmt.Errorf("decode list members response: %w", err)
		}

		for _, member := range payload {
			result.Logins = append(result.Logins, member.Login)
		}

		if len(payload) == 0 || !hasNextPage(resp.Header.Get("Link")) {
			break
		}
		page++
	}

	return result, nil
}

func parseAPIBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = defaultGitHubAPIBaseURL
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse github api base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse github api base url: missing scheme or host")
	}
	if !strings.HasSuffix(parsed.Path, "/") {
		parsed.Path += "/"
	}
	return parsed, nil
}

func (c *DataClient) cloneBaseURL() *url.URL {
	cloned := *c.baseURL
	return &cloned
}

func joinURLPath(base string, segments ...string) string {
	trimmedBase := strings.TrimSuffix(base, "/")
	builder := strings.Builder{}
	builder.WriteString(trimmedBase)
	for _, segment := range segments {
		builder.WriteString("/")
		builder.WriteString(strings.TrimPrefix(segment, "/"))
	}
	return builder.String()
}

func endpointStatusFromHTTP(statusCode int) EndpointStatus {
	switch statusCode {
	case http.StatusForbidden:
		return EndpointStatusForbidden
	case http.StatusNotFound:
		return EndpointStatusNotFound
	}
	if statusCode >= 200 && statusCode <= 299 {
		return EndpointStatusOK
	}
	if statusCode >= 500 {
		return EndpointStatusUnavailable
	}
	return EndpointStatusUnknown
}

func decodeJSONAndClose(resp *http.Response, target any) error {
	defer resp.Body.Close()
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(target); err != nil {
		return err
	}
	return nil
}

func hasNextPage(linkHeader string) bool {
	if strings.TrimSpace(linkHeader) == "" {
		return false
	}
	parts := strings.Split(linkHeader, ",")
	for _, part := range parts {
		if strings.Contains(part, `rel="next"`) {
			return true
		}
	}
	return false
}

func parseRFC3339(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

func parseNullableRFC3339(raw *string) time.Time {
	if raw == nil {
		return time.Time{}
	}
	return parseRFC3339(*raw)
}

func mergeMetadata(current CallMetadata, incoming CallMetadata) CallMetadata {
	current.Attempts += incoming.Attempts
	current.LastDecision = incoming.LastDecision
	current.LastRateHeaders = incoming.LastRateHeaders
	return current
}

type searchPayload struct {
	TotalCount int                 `json:"total_count"`
	Items      []searchItemPayload `json:"items"`
}

type searchItemPayload struct {
	Number    int          `json:"number"`
	Title     string       `json:"title"`
	User      *userPayload `json:"user"`
	State     string       `json:"state"`
	CreatedAt string       `json:"created_at"`
	HTMLURL   string       `json:"html_url"`
}

type pullDetailPayload struct {
	Merged   bool         `json:"merged"`
	MergedAt *string      `json:"merged_at"`
	MergedBy *userPayload `json:"merged_by"`
}

type commentPayload struct {
	User      *userPayload `json:"user"`
	CreatedAt string       `json:"created_at"`
}

type reviewPayload struct {
	User        *userPayload `json:"user"`
	State       string       `json:"state"`
	SubmittedAt *string      `json:"submitted_at"`
}

type userPayload struct {
	Login string `json:"login"`
}
