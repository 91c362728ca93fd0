package models

import "time"

// NotificationResult is the outcome of the composite notification check.
type NotificationResult struct {
	Allowed bool `json:"allowed"`
	// Remaining is computed against the per-user minute scope only, even when
	// another scope denied the request.
	Remaining int `json:"remaining"`
	// RetryAfter is set when denied: the remaining lifetime of the counter
	// that triggered the denial.
	RetryAfter time.Duration `json:"-"`
	// Limit is the per-user minute limit Remaining relates to.
	Limit int `json:"limit"`
	// DeniedBy names the scope that denied the request, empty when allowed.
	DeniedBy string `json:"denied_by,omitempty"`
	// Degraded reports that the store failed and the result is a fail-open
	// default rather than a counted decision.
	Degraded bool `json:"-"`
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (r *NotificationResult) RetryAfterSeconds() int {
	return ceilSeconds(r.RetryAfter)
}

// WindowResult is the outcome of a single fixed-window check.
type WindowResult struct {
	Allowed    bool
	Count      int64
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	Degraded   bool
}

// UserRateLimitStatus is a read-only snapshot of a user's counters.
type UserRateLimitStatus struct {
	UserID string      `json:"user_id"`
	Minute WindowUsage `json:"minute"`
	Hour   WindowUsage `json:"hour"`
	Day    WindowUsage `json:"day"`
}

// WindowUsage reports usage of one window. Missing counters count as zero.
type WindowUsage struct {
	Count     int64 `json:"count"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	// ResetIn is the remaining lifetime of the window, zero if no counter exists.
	ResetInSeconds int `json:"reset_in_seconds"`
}

// NewWindowUsage derives remaining from a count and limit.
func NewWindowUsage(count int64, limit int, resetIn time.Duration) WindowUsage {
	return WindowUsage{
		Count:          count,
		Limit:          limit,
		Remaining:      Remaining(limit, count),
		ResetInSeconds: ceilSeconds(resetIn),
	}
}

// BucketResult is the outcome of a token-bucket check.
type BucketResult struct {
	Allowed bool
	// Remaining is the whole number of tokens left after this request.
	Remaining  int
	Capacity   int
	RetryAfter time.Duration
	Degraded   bool
}

func (r *BucketResult) RetryAfterSeconds() int {
	return ceilSeconds(r.RetryAfter)
}

// BucketState is the persisted token-bucket record.
type BucketState struct {
	Tokens float64 `json:"tokens"`
	// LastRefill is epoch milliseconds of the last applied refill boundary.
	LastRefill int64 `json:"lastRefill"`
}

// Remaining returns max(0, limit-count).
func Remaining(limit int, count int64) int {
	r := int64(limit) - count
	if r < 0 {
		return 0
	}
	return int(r)
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
