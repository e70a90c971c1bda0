package generation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lcollado/adforge/internal/domain"
)

// Message fragments providers use for rate limiting and quota exhaustion.
var rateLimitPatterns = []string{
	"rate limit",
	"too many requests",
	"quota",
	"request count exceeded",
	"plan limit",
}

var authPatterns = []string{
	"api key",
	"unauthorized",
	"forbidden",
	"invalid credential",
	"authentication",
	"permission denied",
}

var invalidRequestPatterns = []string{
	"invalid request",
	"invalid parameter",
	"unsupported",
	"malformed",
	"validation failed",
	"content blocked",
}

var transientPatterns = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"temporarily unavailable",
	"eof",
	"broken pipe",
}

// Classify maps a raw provider failure onto exactly one domain error
// kind. Classification is pure: the same input always yields the same
// kind, and only the failure shape (status code, timeout flag, message
// text) is inspected.
func Classify(err error) domain.ErrorKind {
	if err == nil {
		return domain.KindUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return domain.KindTransient
	}

	var raw *RawError
	if errors.As(err, &raw) {
		if kind, ok := classifyStatus(raw.StatusCode); ok {
			return kind
		}
		if raw.Timeout {
			return domain.KindTransient
		}
		return classifyMessage(raw.Message)
	}

	return classifyMessage(err.Error())
}

// RetryHint extracts a provider-supplied minimum wait from a failure.
// Returns zero and false when the provider gave no hint.
func RetryHint(err error) (time.Duration, bool) {
	var raw *RawError
	if errors.As(err, &raw) && raw.RetryAfter > 0 {
		return raw.RetryAfter, true
	}
	return 0, false
}

func classifyStatus(status int) (domain.ErrorKind, bool) {
	switch {
	case status == 0:
		return "", false
	case status == 429:
		return domain.KindRateLimited, true
	case status == 401 || status == 403:
		return domain.KindAuthFailure, true
	case status == 408:
		return domain.KindTransient, true
	case status >= 400 && status < 500:
		return domain.KindInvalidRequest, true
	case status >= 500:
		return domain.KindTransient, true
	}
	return "", false
}

func classifyMessage(msg string) domain.ErrorKind {
	lower := strings.ToLower(msg)

	for _, p := range rateLimitPatterns {
		if strings.Contains(lower, p) {
			return domain.KindRateLimited
		}
	}
	for _, p := range authPatterns {
		if strings.Contains(lower, p) {
			return domain.KindAuthFailure
		}
	}
	for _, p := range invalidRequestPatterns {
		if strings.Contains(lower, p) {
			return domain.KindInvalidRequest
		}
	}
	for _, p := range transientPatterns {
		if strings.Contains(lower, p) {
			return domain.KindTransient
		}
	}

	return domain.KindUnknown
}
