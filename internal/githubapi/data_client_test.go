package githubapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newServerClient(t *testing.T, handler http.Handler) *DataClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	requestClient := NewClient(server.Client(), RetryConfig{MaxAttempts: 1}, RateLimitPolicy{})
	requestClient.Sleep = func(time.Duration) {}

	dataClient, err := NewDataClient(server.URL, requestClient)
	if err != nil {
		t.Fatalf("NewDataClient returned error: %v", err)
	}
	return dataClient
}

func rateHeaders(w http.ResponseWriter) {
	w.Header().Set("X-RateLimit-Remaining", "4000")
}

func TestSearchItemsPaginates(t *testing.T) {
	t.Parallel()

	var queries []string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/issues" {
			http.NotFound(w, r)
			return
		}
		queries = append(queries, r.URL.Query().Get("q"))
		rateHeaders(w)
		page := r.URL.Query().Get("page")
		if page == "1" {
			w.Header().Set("Link", `<https://api.example/search/issues?page=2>; rel="next"`)
			fmt.Fprint(w, `{"total_count":3,"items":[
				{"number":1,"title":"first","user":{"login":"alice"},"state":"open","created_at":"2024-03-04T09:00:00Z","html_url":"https://example/1"},
				{"number":2,"title":"second","user":{"login":"bob"},"state":"closed","created_at":"2024-03-05T09:00:00Z","html_url":"https://example/2"}
			]}`)
			return
		}
		fmt.Fprint(w, `{"total_count":3,"items":[
			{"number":3,"title":"third","user":{"login":"carol"},"state":"open","created_at":"2024-03-06T09:00:00Z","html_url":"https://example/3"}
		]}`)
	})

	client := newServerClient(t, handler)
	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC)

	result, err := client.SearchItems(context.Background(), "example-org", "server", KindIssue, from, to)
	if err != nil {
		t.Fatalf("SearchItems returned error: %v", err)
	}
	if result.Status != EndpointStatusOK {
		t.Fatalf("Status = %s, want ok", result.Status)
	}
	if len(result.Items) != 3 {
		t.Fatalf("Items = %d, want 3", len(result.Items))
	}
	if result.Items[0].Author != "alice" || result.Items[0].Number != 1 {
		t.Fatalf("Items[0] = %+v", result.Items[0])
	}
	wantQuery := "repo:example-org/server is:issue created:2024-03-01..2024-03-31"
	if queries[0] != wantQuery {
		t.Fatalf("query = %q, want %q", queries[0], wantQuery)
	}
}

func TestSearchItemsReportsForbidden(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rateHeaders(w)
		w.WriteHeader(http.StatusForbidden)
	})
	client := newServerClient(t, handler)
	from := time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

	result, err := client.SearchItems(context.Background(), "example-org", "server", KindPull, from, from)
	if err != nil {
		t.Fatalf("SearchItems returned error: %v", err)
	}
	if result.Status != EndpointStatusForbidden {
		t.Fatalf("Status = %s, want forbidden", result.Status)
	}
}

func TestGetPullDetail(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/example-org/server/pulls/42" {
			http.NotFound(w, r)
			return
		}
		rateHeaders(w)
		fmt.Fprint(w, `{"merged":true,"merged_at":"2024-03-04T12:00:00Z","merged_by":{"login":"maintainer"}}`)
	})
	client := newServerClient(t, handler)

	detail, err := client.GetPullDetail(context.Background(), "example-org", "server", 42)
	if err != nil {
		t.Fatalf("GetPullDetail returned error: %v", err)
	}
	if !detail.Merged {
		t.Fatal("Merged should be true")
	}
	if detail.MergedBy != "maintainer" {
		t.Fatalf("MergedBy = %q, want maintainer", detail.MergedBy)
	}
	want := time.Date(2024, time.March, 4, 12, 0, 0, 0, time.UTC)
	if !detail.MergedAt.Equal(want) {
		t.Fatalf("MergedAt = %s, want %s", detail.MergedAt, want)
	}
}

func TestListIssueCommentsBoundsPageSize(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/example-org/server/issues/7/comments" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("per_page") != "10" {
			t.Errorf("per_page = %q, want 10", r.URL.Query().Get("per_page"))
		}
		rateHeaders(w)
		fmt.Fprint(w, `[
			{"user":{"login":"alice"},"created_at":"2024-03-04T09:30:00Z"},
			{"user":{"login":"bob"},"created_at":"2024-03-04T10:00:00Z"}
		]`)
	})
	client := newServerClient(t, handler)

	result, err := client.ListIssueComments(context.Background(), "example-org", "server", 7, 10)
	if err != nil {
		t.Fatalf("ListIssueComments returned error: %v", err)
	}
	if len(result.Comments) != 2 {
		t.Fatalf("Comments = %d, want 2", len(result.Comments))
	}
	if result.Comments[0].Author != "alice" {
		t.Fatalf("Comments[0].Author = %q, want alice", result.Comments[0].Author)
	}
}

func TestListReviewsKeepsNullSubmission(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/example-org/server/pulls/9/reviews" {
			http.NotFound(w, r)
			return
		}
		rateHeaders(w)
		fmt.Fprint(w, `[
			{"user":{"login":"alice"},"state":"PENDING","submitted_at":null},
			{"user":{"login":"bob"},"state":"APPROVED","submitted_at":"2024-03-04T11:00:00Z"}
		]`)
	})
	client := newServerClient(t, handler)

	result, err := client.ListReviews(context.Background(), "example-org", "server", 9, 10)
	if err != nil {
		t.Fatalf("ListReviews returned error: %v", err)
	}
	if len(result.Reviews) != 2 {
		t.Fatalf("Reviews = %d, want 2", len(result.Reviews))
	}
	if !result.Reviews[0].SubmittedAt.IsZero() {
		t.Fatal("pending review must carry a zero SubmittedAt")
	}
	if result.Reviews[1].SubmittedAt.IsZero() {
		t.Fatal("approved review must carry its submission time")
	}
}

func TestListOrgMembersPaginates(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orgs/example-org/members" {
			http.NotFound(w, r)
			return
		}
		rateHeaders(w)
		if r.URL.Query().Get("page") == "1" {
			w.Header().Set("Link", `<https://api.example/orgs/example-org/members?page=2>; rel="next"`)
			fmt.Fprint(w, `[{"login":"alice"},{"login":"bob"}]`)
			return
		}
		fmt.Fprint(w, `[{"login":"carol"}]`)
	})
	client := newServerClient(t, handler)

	result, err := client.ListOrgMembers(context.Background(), "example-org")
	if err != nil {
		t.Fatalf("ListOrgMembers returned error: %v", err)
	}
	if len(result.Logins) != 3 {
		t.Fatalf("Logins = %v, want 3 entries", result.Logins)
	}
}

func TestListTeamMembersPath(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/orgs/example-org/teams/backend/members" {
			http.NotFound(w, r)
			return
		}
		rateHeaders(w)
		fmt.Fprint(w, `[{"login":"dave"}]`)
	})
	client := newServerClient(t, handler)

	result, err := client.ListTeamMembers(context.Background(), "example-org", "backend")
	if err != nil {
		t.Fatalf("ListTeamMembers returned error: %v", err)
	}
	if len(result.Logins) != 1 || result.Logins[0] != "dave" {
		t.Fatalf("Logins = %v, want [dave]", result.Logins)
	}
}
