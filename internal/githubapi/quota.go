package githubapi

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// QuotaProbe reads rate-limit status via the go-github client. The probe
// endpoint does not count against any quota, so it is safe to call on the
// abort path.
type QuotaProbe struct {
	rest *RESTClient
}

// NewQuotaProbe creates a quota probe over a go-github REST client.
func NewQuotaProbe(rest *RESTClient) (*QuotaProbe, error) {
	if rest == nil || rest.Client == nil {
		return nil, fmt.Errorf("rest client is required")
	}
	return &QuotaProbe{rest: rest}, nil
}

// GetQuotaStatus reads the current core and search quota state.
func (p *QuotaProbe) GetQuotaStatus(ctx context.Context) ([]QuotaStatus, error) {
	limits, _, err := p.rest.Client.RateLimit.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("read rate limit status: %w", err)
	}

	var statuses []QuotaStatus
	if limits.Core != nil {
		statuses = append(statuses, QuotaStatus{
			Resource:  QuotaResourceCore,
			Remaining: limits.Core.Remaining,
			Limit:     limits.Core.Limit,
			ResetAt:   limits.Core.Reset.Time.UTC(),
		})
	}
	if limits.Search != nil {
		statuses = append(statuses, QuotaStatus{
			Resource:  QuotaResourceSearch,
			Remaining: limits.Search.Remaining,
			Limit:     limits.Search.Limit,
			ResetAt:   limits.Search.Reset.Time.UTC(),
		})
	}
	return statuses, nil
}

// DecorateRateLimit enriches a quota-exhaustion error with probe context when
// the probe succeeds; the original error is returned unchanged otherwise.
func DecorateRateLimit(ctx context.Context, probe *QuotaProbe, err error) error {
	if probe == nil || !IsRateLimit(err) {
		return err
	}

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	statuses, probeErr := probe.GetQuotaStatus(probeCtx)
	if probeErr != nil {
		return err
	}

	var rateErr *RateLimitError
	if !errors.As(err, &rateErr) {
		return err
	}
	for _, status := range statuses {
		if string(status.Resource) == rateErr.Resource || (rateErr.Resource == "" && status.Resource == QuotaResourceCore) {
			return &RateLimitError{
				Resource:  string(status.Resource),
				Remaining: status.Remaining,
				Limit:     status.Limit,
				ResetAt:   status.ResetAt,
			}
		}
	}
	return err
}
