package adsb

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// RateLimitError is returned for an HTTP 429 from a feed. RetryAfter is the
// server's requested pause, zero when it sent none.
type RateLimitError struct {
	StatusCode int
	RetryAfter time.Duration
	Message    string
	Headers    RateLimitHeaders
}

// RateLimitHeaders is the quota state advertised by the server. Limit and
// Remaining are -1 when the header was absent.
type RateLimitHeaders struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return e.Message
}

// IsRateLimitError checks if an error is, or wraps, a rate limit error.
func IsRateLimitError(err error) (*RateLimitError, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle, true
	}
	return nil, false
}

// StatusError is a non-200, non-429 reply from a feed.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if repeated. Client
// errors (4xx) will not.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500
}

// rateLimitError builds the error for a 429 response received at now.
func rateLimitError(resp *http.Response, now time.Time) *RateLimitError {
	return &RateLimitError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header, now),
		Message:    "Rate limit exceeded",
		Headers:    rateLimitHeaders(resp.Header),
	}
}

// parseRetryAfter reads Retry-After as delay-seconds ("30") or an HTTP date
// ("Wed, 21 Oct 2015 07:28:00 GMT"). Missing, malformed or past values give 0.
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs > 0 {
			return time.Duration(secs) * time.Second
		}
		return 0
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}

// rateLimitHeaders reads the quota headers, accepting both the
// X-Rate-Limit-* and X-RateLimit-* spellings.
func rateLimitHeaders(h http.Header) RateLimitHeaders {
	rlh := RateLimitHeaders{Limit: -1, Remaining: -1}
	if v, ok := headerInt(h, "X-Rate-Limit-Limit", "X-RateLimit-Limit"); ok {
		rlh.Limit = int(v)
	}
	if v, ok := headerInt(h, "X-Rate-Limit-Remaining", "X-RateLimit-Remaining"); ok {
		rlh.Remaining = int(v)
	}
	if v, ok := headerInt(h, "X-Rate-Limit-Reset", "X-RateLimit-Reset"); ok {
		rlh.Reset = time.Unix(v, 0)
	}
	return rlh
}

// headerInt returns the first of names present in h. A present but
// unparsable header stops the search.
func headerInt(h http.Header, names ...string) (int64, bool) {
	for _, name := range names {
		if v := h.Get(name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			return n, err == nil
		}
	}
	return 0, false
}
