package remote

import (
	"errors"
	"strings"

	"github.com/mrlokans/courseimport/internal/storage"
)

// Provider reason codes that mean the caller is being throttled
var rateLimitReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
	"backendRateLimit":      true,
}

// IsRateLimited reports whether err signals throttling by the provider.
// Structured status and reason codes are checked first; the message match is a last resort
// for errors that lost their structure on the way up and can misfire on unrelated text.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, storage.ErrRateLimited) {
		return true
	}

	var apiErr *storage.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == 429 || rateLimitReasons[apiErr.Reason] {
			return true
		}
	}

	return strings.Contains(strings.ToLower(err.Error()), "rate limit")
}
