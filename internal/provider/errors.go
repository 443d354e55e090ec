package provider

import (
	"errors"
	"fmt"
)

// Sentinel errors for the token lifecycle.
var (
	// ErrRefreshFailed means the refresh token was rejected. This is
	// terminal: no retry helps, the user must re-authenticate.
	ErrRefreshFailed = errors.New("refresh token rejected")

	// ErrTokenExchangeFailed means the provider rejected the one-time
	// authorization code or the redirect URI did not match.
	ErrTokenExchangeFailed = errors.New("token exchange failed")

	// ErrSyncTokenExpired means the incremental-sync cursor is no longer
	// valid and the caller must fall back to a full range scan.
	ErrSyncTokenExpired = errors.New("sync token expired")
)

// ProviderError wraps any other provider API failure, carrying the HTTP
// status and response body for diagnostics. These are transient from the
// sync engine's point of view (rate limits, 5xx, etc.).
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Status, e.Body)
}

// IsProviderError reports whether err (or any error in its chain) is a
// ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
