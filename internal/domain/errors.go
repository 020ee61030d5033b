package domain

import (
	"errors"
	"fmt"
)

// ErrSymbolNotFound marks that the upstream exchange does not know the
// requested symbol. Wrapped per-symbol via NotFound.
var ErrSymbolNotFound = errors.New("symbol not found")

// NotFound wraps ErrSymbolNotFound with the offending symbol.
func NotFound(symbol string) error {
	return fmt.Errorf("%w: %q", ErrSymbolNotFound, symbol)
}

// IsNotFound reports whether err signals an unknown symbol/resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSymbolNotFound)
}

// UpstreamError is a transient failure talking to the exchange: transport
// errors, timeouts, unexpected payloads, rate-limit rejections. It is never
// cached; the next request for the same key retries upstream.
type UpstreamError struct {
	Op          string // upstream operation, e.g. "ticker", "ohlcv"
	RateLimited bool
	Err         error
}

func (e *UpstreamError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("upstream %s: rate limited: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsRateLimited reports whether err is an upstream rate-limit rejection.
func IsRateLimited(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.RateLimited
}

// ValidationError rejects a malformed request before any cache or upstream
// interaction.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
