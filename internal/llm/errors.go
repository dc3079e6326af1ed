package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrTransport   = errors.New("provider request failed")
	ErrRateLimited = errors.New("provider rate limit reached")
	ErrRefused     = errors.New("provider refused the request")
	ErrTruncated   = errors.New("provider output truncated")
)

// ProviderError is returned for every failure that happens at or below the
// provider call. Kind is one of the sentinel errors above, and every kind
// also matches ErrTransport.
type ProviderError struct {
	Provider string
	Kind     error
	Status   int
	Limit    int64
	Detail   string
	Err      error
}

func (e *ProviderError) Error() string {
	switch e.Kind {
	case ErrRateLimited:
		msg := fmt.Sprintf("%s rate limit reached (HTTP %d): wait a moment and retry, or switch to another LLM provider", e.Provider, http.StatusTooManyRequests)
		if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	case ErrTruncated:
		return fmt.Sprintf("%s output was truncated at the %d token max output limit; raise LLM_MAX_OUTPUT_TOKENS or shorten the input", e.Provider, e.Limit)
	case ErrRefused:
		return fmt.Sprintf("%s refused the request: %s", e.Provider, e.Detail)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s request failed: %s", e.Provider, e.Detail)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool {
	return target == e.Kind || target == ErrTransport
}

// classify wraps err as a ProviderError. status is the HTTP status reported by
// the SDK, or 0 when the failure never produced a response.
func classify(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	kind := ErrTransport
	if status == http.StatusTooManyRequests || isRateLimitText(err.Error()) {
		kind = ErrRateLimited
	}
	return &ProviderError{Provider: provider, Kind: kind, Status: status, Err: err}
}

var rateLimitPhrases = []string{"status 429", "status code 429", "429 too many requests", "too many requests", "rate limit"}

// isRateLimitText spots rate limiting in errors that carry no status. A bare
// "429" is not enough; ports and request ids contain it too.
func isRateLimitText(msg string) bool {
	lower := strings.ToLower(msg)
	for _, phrase := range rateLimitPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
