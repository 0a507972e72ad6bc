package sessgate

import (
	"context"
	"fmt"
	"net/http"
)

// executeWithRefresh wraps execute with the one-shot session recovery:
// a 401 on a fresh call triggers one refresh and, if that succeeds, one
// replay of the original call. A 401 on the replay, or a failed refresh,
// is returned as-is. Worst case per logical call: original round trip,
// one refresh, one replay.
func (c *Client) executeWithRefresh(ctx context.Context, call *pendingCall) (Result, error) {
	if c.validationError != nil {
		return Result{}, c.validationError
	}

	res, err := c.execute(ctx, call)
	if err != nil {
		return res, err
	}
	if res.StatusCode != http.StatusUnauthorized || call.replayed {
		return res, nil
	}

	if rerr := c.refreshSession(ctx); rerr != nil {
		// The token is invalidated even on a failed refresh; whatever the
		// server did to the session may have rotated it.
		c.tokens.Invalidate()
		c.emit(Event{Kind: EventRefreshError, Method: call.method, Path: call.path, Err: rerr})
		if c.metrics != nil {
			c.metrics.RecordRefresh("failure")
		}
		if c.debugEnabled() && c.debug.LogRefresh {
			c.logger.Warn("Session refresh failed", "method", call.method, "path", call.path, "error", rerr.Error())
		}
		return res, nil
	}

	c.tokens.Invalidate()
	if c.metrics != nil {
		c.metrics.RecordRefresh("success")
		c.metrics.RecordReplay(call.method, call.path)
	}
	if c.debugEnabled() && c.debug.LogRefresh {
		c.logger.Info("Session refreshed, replaying call", "method", call.method, "path", call.path)
	}

	call.replayed = true
	c.emit(Event{Kind: EventReplay, Method: call.method, Path: call.path, Replayed: true})
	return c.execute(ctx, call)
}

// refreshSession calls the refresh endpoint; any 2xx means the session was
// renewed. The refresh route is exempt from anti-forgery enforcement, so the
// request goes out bare apart from the session cookie.
func (c *Client) refreshSession(ctx context.Context) error {
	dest := c.resolveURL(c.refreshPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, dest, nil)
	if err != nil {
		return err
	}

	c.emit(Event{Kind: EventRefresh, Method: http.MethodPost, Path: c.refreshPath})
	if c.debugEnabled() && c.debug.LogRefresh {
		c.logger.Debug("Refreshing session", "url", dest)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("refresh: unexpected status %d", resp.StatusCode)
	}
	return nil
}
