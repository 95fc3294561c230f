package model

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind classifies backend failures for the loop's retry policy.
type ErrorKind int

const (
	// ErrorKindOther is a non-retryable backend failure.
	ErrorKindOther ErrorKind = iota
	// ErrorKindRateLimit is a rate-limit rejection, retried with
	// exponential backoff.
	ErrorKindRateLimit
	// ErrorKindTimeout is a timed-out request, retried with linear backoff.
	ErrorKindTimeout
)

// Sentinel errors backends may wrap to make classification explicit.
var (
	ErrRateLimited = errors.New("rate limited")
	ErrTimeout     = errors.New("request timeout")
)

// KindOf classifies a backend error. Wrapped sentinels are authoritative;
// otherwise the message is sniffed for provider-specific markers, since SDK
// error types vary per vendor.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindOther
	}

	if errors.Is(err, ErrRateLimited) {
		return ErrorKindRateLimit
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "rate_limit") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") {
		return ErrorKindRateLimit
	}
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") {
		return ErrorKindTimeout
	}

	return ErrorKindOther
}
