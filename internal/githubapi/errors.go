package githubapi

import (
	"errors"
	"fmt"
	"time"
)

// ErrUnauthorized reports an authentication or authorization failure from GitHub.
var ErrUnauthorized = errors.New("github: unauthorized")

// RateLimitError reports exhaustion of a GitHub request quota, decorated with
// quota-status context so the operator knows when a re-run can succeed.
type RateLimitError struct {
	Resource  string
	Remaining int
	Limit     int
	ResetAt   time.Time
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return fmt.Sprintf("github: %s rate limit exhausted (%d/%d remaining)", e.Resource, e.Remaining, e.Limit)
	}
	return fmt.Sprintf(
		"github: %s rate limit exhausted (%d/%d remaining, resets %s)",
		e.Resource, e.Remaining, e.Limit, e.ResetAt.UTC().Format(time.RFC3339),
	)
}

// IsRateLimit reports whether err is a quota-exhaustion failure.
func IsRateLimit(err error) bool {
	var rateErr *RateLimitError
	return errors.As(err, &rateErr)
}
