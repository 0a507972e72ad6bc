package sessgate

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ambiyansyah-risyal/sessgate/internal/singleflight"
)

// tokenKey is the single key the coordinator uses in its flight group; there
// is only ever one anti-forgery token per client.
const tokenKey = "csrf"

// HeaderCSRFToken is the header mutating requests carry the token in.
const HeaderCSRFToken = "X-CSRF-Token"

// tokenCoordinator owns the cached anti-forgery token. It guarantees that at
// most one fetch is outstanding at any time: concurrent callers with an
// empty cache share one network round trip and observe the identical value
// or the identical failure. All state lives behind Token and Invalidate; no
// other component touches it.
type tokenCoordinator struct {
	flight *singleflight.Group[string]
	fetch  func(ctx context.Context) (string, error)
}

func newTokenCoordinator(fetch func(ctx context.Context) (string, error)) *tokenCoordinator {
	return &tokenCoordinator{
		flight: singleflight.New[string](),
		fetch:  fetch,
	}
}

// Token returns the cached token, joins an in-flight fetch, or starts one.
// The shared result reports whether this caller avoided a network fetch.
func (tc *tokenCoordinator) Token(ctx context.Context) (token string, shared bool, err error) {
	return tc.flight.Do(ctx, tokenKey, func() (string, error) {
		return tc.fetch(ctx)
	})
}

// Invalidate drops the cached token (and detaches any in-flight fetch) so
// the next Token call fetches fresh. Called after every session refresh
// attempt and available to applications that know the token is stale.
func (tc *tokenCoordinator) Invalidate() {
	tc.flight.Forget(tokenKey)
}

// csrfResponse is the token endpoint's body.
type csrfResponse struct {
	CSRFToken string `json:"csrf_token"`
}

// fetchToken performs the actual GET against the token endpoint. The session
// cookie rides along via the client's jar; no anti-forgery header is needed
// on this read.
func (c *Client) fetchToken(ctx context.Context) (string, error) {
	dest := c.resolveURL(c.tokenPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, dest, nil)
	if err != nil {
		return "", err
	}

	c.emit(Event{Kind: EventTokenFetch, Method: http.MethodGet, Path: c.tokenPath})
	if c.metrics != nil {
		c.metrics.RecordTokenFetch()
	}
	if c.debugEnabled() && c.debug.LogTokens {
		c.logger.Debug("Fetching anti-forgery token", "url", dest)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("token fetch: unexpected status %d", resp.StatusCode)
	}

	payload, err := readPayload(resp)
	if err != nil {
		return "", fmt.Errorf("token fetch: %w", err)
	}

	var parsed csrfResponse
	if err := payload.Decode(&parsed); err != nil {
		return "", fmt.Errorf("token fetch: %w", err)
	}
	if parsed.CSRFToken == "" {
		return "", fmt.Errorf("token fetch: empty csrf_token in response")
	}
	return parsed.CSRFToken, nil
}
