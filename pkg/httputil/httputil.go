// Package httputil provides shared HTTP plumbing for registry and
// resource clients.
//
// # Overview
//
// All upstream requests in quarry go through the same client shape:
//
//   - [NewClient]: client construction used by registry, tarball, and
//     loader code
//   - [Get]: context-aware GET with response status checking
//
// No client-level timeout is configured; transfers are bounded only by
// the caller's context. Retry and backoff are left to callers.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when the upstream responds with 404.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for transport failures and non-2xx responses.
	ErrNetwork = errors.New("network error")
)

// NewClient creates the HTTP client used for upstream requests.
// Redirects are followed; the effective URL after redirects is available
// from the response. No client-level timeout is set, so cancellation and
// deadlines come from the request context.
func NewClient() *http.Client {
	return &http.Client{}
}

// Get performs an HTTP GET with the given context and validates the
// response status. On success the caller owns resp.Body and must close
// it. 404 responses map to [ErrNotFound]; transport errors and other
// non-2xx statuses map to [ErrNetwork].
func Get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if err := CheckStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// CheckStatus maps an HTTP status code to a sentinel error.
// 2xx codes return nil, 404 returns [ErrNotFound], and everything else
// returns [ErrNetwork] with the status embedded.
func CheckStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
